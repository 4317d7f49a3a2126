package repository

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-formstore/pkg/node"
)

var (
	labelPolicyOnce sync.Once
	labelPolicy     *bluemonday.Policy
)

// displayLabel is the plain text label stored on the row: the node's label
// with markup stripped, falling back to its name, id or key.
func displayLabel(n node.Node) string {
	switch v := n.(type) {
	case *node.Text:
		return plainText(v.Value)
	case *node.Condition:
		return plainText(v.If)
	}
	common := node.CommonOf(n)
	if common == nil {
		return ""
	}
	for _, candidate := range []string{common.Label, common.Name, common.ID, common.Key} {
		if cleaned := plainText(candidate); cleaned != "" {
			return cleaned
		}
	}
	switch v := n.(type) {
	case *node.Element:
		return v.El
	case *node.Component:
		return v.Cmp
	case *node.Input:
		return string(v.Kind)
	}
	return ""
}

func plainText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	labelPolicyOnce.Do(func() {
		labelPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(labelPolicy.Sanitize(trimmed)))
}
