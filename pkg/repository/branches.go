package repository

import (
	"context"
	"fmt"

	"github.com/goliatone/go-formstore/pkg/node"
	"github.com/goliatone/go-formstore/pkg/store"
)

// Condition branches live in the condition's payload rather than as rows.
// Static options of branch inputs still go to option groups, owned by the
// condition and keyed by the input's path inside the branches, such as
// then[0] or else[1].children[2].

func walkBranches(cond *node.Condition, fn func(path string, siblings []node.Node) error) error {
	if err := node.Walk("then", cond.Then.Nodes, fn); err != nil {
		return err
	}
	if cond.Else != nil {
		return node.Walk("else", cond.Else.Nodes, fn)
	}
	return nil
}

// branchInputs calls fn for every input inside cond's branches.
func branchInputs(cond *node.Condition, fn func(path string, in *node.Input) error) error {
	return walkBranches(cond, func(list string, siblings []node.Node) error {
		for idx, sibling := range siblings {
			if in, ok := sibling.(*node.Input); ok {
				if err := fn(fmt.Sprintf("%s[%d]", list, idx), in); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// nameBranches settles the names of branch inputs. Every branch list is its
// own sibling scope.
func (r *Repository) nameBranches(cond *node.Condition, path string) error {
	return walkBranches(cond, func(list string, siblings []node.Node) error {
		taken := make(map[string]struct{})
		for idx, sibling := range siblings {
			in, ok := sibling.(*node.Input)
			if !ok {
				continue
			}
			if err := r.assignName(in, fmt.Sprintf("%s.%s[%d]", path, list, idx), taken); err != nil {
				return err
			}
		}
		return nil
	})
}

func loadBranchGroups(ctx context.Context, q store.Querier, ownerID string) (map[string]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, branch_path FROM option_groups WHERE owner_id = ? AND branch_path IS NOT NULL`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("repository: list branch options of %s: %w", ownerID, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, fmt.Errorf("repository: scan branch options: %w", err)
		}
		out[path] = id
	}
	return out, rows.Err()
}

// syncBranchOptions mirrors syncOptions for branch inputs: static options get
// a fresh group, expressions drop the previous one, unset options keep it.
// Groups whose path no longer holds an input are dropped.
func (r *Repository) syncBranchOptions(ctx context.Context, tx *store.Tx, ownerID string, cond *node.Condition) error {
	existing, err := loadBranchGroups(ctx, tx, ownerID)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{})
	err = branchInputs(cond, func(path string, in *node.Input) error {
		if in.Options == nil {
			keep[path] = struct{}{}
			return nil
		}
		if !in.Options.Static() {
			return nil
		}
		_, err := r.createOptionGroup(ctx, tx, in.Name, ownerID, path, in.Options.Items)
		return err
	})
	if err != nil {
		return err
	}
	for path, groupID := range existing {
		if _, ok := keep[path]; ok {
			continue
		}
		if err := deleteOptionGroup(ctx, tx, groupID); err != nil {
			return err
		}
	}
	return nil
}

// loadBranchOptions fills the static options of cond's branch inputs from
// their groups.
func (r *Repository) loadBranchOptions(ctx context.Context, q store.Querier, ownerID string, cond *node.Condition) error {
	groups, err := loadBranchGroups(ctx, q, ownerID)
	if err != nil || len(groups) == 0 {
		return err
	}
	return branchInputs(cond, func(path string, in *node.Input) error {
		groupID, ok := groups[path]
		if !ok {
			return nil
		}
		items, err := r.loadOptions(ctx, q, groupID)
		if err != nil {
			return err
		}
		in.Options = node.RecordOptions(items...)
		return nil
	})
}

// sameBranchOptions reports whether saving cond would leave its branch
// option groups as stored.
func (r *Repository) sameBranchOptions(ctx context.Context, q store.Querier, ownerID string, cond *node.Condition) (bool, error) {
	groups, err := loadBranchGroups(ctx, q, ownerID)
	if err != nil {
		return false, err
	}
	same := true
	err = branchInputs(cond, func(path string, in *node.Input) error {
		if !same {
			return nil
		}
		ok, err := r.sameOptions(ctx, q, groups[path], in.Options)
		same = ok
		return err
	})
	return same && err == nil, err
}
