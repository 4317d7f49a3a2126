package node

// OptionsShape records which wire form an options value was read from.
type OptionsShape uint8

const (
	// OptionsExpression is a dynamic expression evaluated by the renderer.
	OptionsExpression OptionsShape = iota + 1
	// OptionsStrings is a list of bare values.
	OptionsStrings
	// OptionsRecords is a list of {value, label} objects.
	OptionsRecords
	// OptionsMap is an object mapping value to label.
	OptionsMap
)

// Option is a single value/label pair.
type Option struct {
	Value string
	Label string
}

// Options is the value of a select-like input's options field.
type Options struct {
	Shape      OptionsShape
	Expression string
	Items      []Option
}

// ExpressionOptions wraps a dynamic options expression.
func ExpressionOptions(expr string) *Options {
	return &Options{Shape: OptionsExpression, Expression: expr}
}

// RecordOptions builds a record-shaped options value from items.
func RecordOptions(items ...Option) *Options {
	return &Options{Shape: OptionsRecords, Items: append([]Option(nil), items...)}
}

// Static reports whether the options are a fixed list rather than an
// expression.
func (o *Options) Static() bool {
	return o != nil && o.Shape != OptionsExpression
}
