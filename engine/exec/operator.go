package exec

// Operator is a node in the physical plan tree: on Execute it yields
// the full row set it produces (the model is eagerly materializing,
// not streaming, per spec.md §9's "coroutine-free execution" note).
// Variant dispatch is by interface satisfaction.
type Operator interface {
	Execute() ([]Row, error)
	Children() []Operator
	String() string
}

type baseOperator struct {
	children []Operator
}

func (b *baseOperator) Children() []Operator { return b.children }
