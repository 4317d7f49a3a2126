package node

import "strconv"

// Variant tags the shape a node follows. The string value is the tag persisted
// alongside stored rows.
type Variant string

const (
	VariantText      Variant = "text"
	VariantCondition Variant = "condition"
	VariantElement   Variant = "$el"
	VariantComponent Variant = "$cmp"
	VariantInput     Variant = "$formkit"
)

// Node is implemented by the five variant types only.
type Node interface {
	Variant() Variant
	Storage() *Stored
	sealed()
}

// Stored carries persistence state that never appears on the wire.
type Stored struct {
	ID        string
	Protected bool
}

// Storage exposes the persistence state of the embedding node.
func (s *Stored) Storage() *Stored { return s }

// Common holds the attributes shared by Element, Component and Input.
type Common struct {
	Key                  string
	If                   string
	For                  []any
	Bind                 string
	Meta                 map[string]any
	ID                   string
	Name                 string
	Label                string
	Help                 string
	Validation           string
	ValidationLabel      string
	ValidationVisibility string
	ValidationMessages   any
	Placeholder          string
	Value                any
	PrefixIcon           string
	Classes              any

	// Children is nil when the wire object carried no children or when the
	// node was parsed without recursion.
	Children []Node

	// Extra holds every wire key the variant does not handle.
	Extra map[string]any
}

// Text is a literal leaf.
type Text struct {
	Stored
	Value string
}

// Condition renders Then when If holds and Else otherwise.
type Condition struct {
	Stored
	If    string
	Then  Branch
	Else  *Branch
	Extra map[string]any
}

// Branch is one arm of a Condition. List records whether the wire value was
// an array rather than a single node.
type Branch struct {
	Nodes []Node
	List  bool
}

// Element is a plain markup element.
type Element struct {
	Stored
	Common
	El    string
	Attrs map[string]any
}

// Component references a named UI component.
type Component struct {
	Stored
	Common
	Cmp   string
	Props map[string]any
}

// Input is a form input. Only the fields handled by Kind are meaningful.
type Input struct {
	Stored
	Common
	Kind     InputKind
	Readonly *bool

	Text    string
	Min     *int
	Max     *int
	Step    any
	Options *Options

	EmptyMessage string
	SelectIcon   string

	UpControl   *bool
	DownControl *bool
	AddLabel    string

	CalendarIcon string
	Format       string
	NextIcon     string
	PrevIcon     string
}

func (*Text) Variant() Variant      { return VariantText }
func (*Condition) Variant() Variant { return VariantCondition }
func (*Element) Variant() Variant   { return VariantElement }
func (*Component) Variant() Variant { return VariantComponent }
func (*Input) Variant() Variant     { return VariantInput }

func (*Text) sealed()      {}
func (*Condition) sealed() {}
func (*Element) sealed()   {}
func (*Component) sealed() {}
func (*Input) sealed()     {}

// CommonOf returns the shared attributes of n, or nil for Text and Condition.
func CommonOf(n Node) *Common {
	switch v := n.(type) {
	case *Element:
		return &v.Common
	case *Component:
		return &v.Common
	case *Input:
		return &v.Common
	}
	return nil
}

// Children returns the children of n. Text and Condition never have any.
func Children(n Node) []Node {
	if c := CommonOf(n); c != nil {
		return c.Children
	}
	return nil
}

// Walk calls fn for nodes and then for every sibling list below them, depth
// first: children lists and condition branches. path names nodes; an element
// is path[i], and the lists below it are path[i].children, path[i].then and
// path[i].else. An error from fn stops the walk.
func Walk(path string, nodes []Node, fn func(path string, siblings []Node) error) error {
	if err := fn(path, nodes); err != nil {
		return err
	}
	for idx, n := range nodes {
		here := path + "[" + strconv.Itoa(idx) + "]"
		if cond, ok := n.(*Condition); ok {
			if err := Walk(here+".then", cond.Then.Nodes, fn); err != nil {
				return err
			}
			if cond.Else != nil {
				if err := Walk(here+".else", cond.Else.Nodes, fn); err != nil {
					return err
				}
			}
			continue
		}
		if children := Children(n); len(children) > 0 {
			if err := Walk(here+".children", children, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
