package exec

// Filter yields only the child's rows satisfying Predicate.
type Filter struct {
	baseOperator
	Predicate Expr
}

func NewFilter(child Operator, predicate Expr) *Filter {
	return &Filter{baseOperator: baseOperator{children: []Operator{child}}, Predicate: predicate}
}

func (f *Filter) Execute() ([]Row, error) {
	rows, err := f.children[0].Execute()
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if truthy(f.Predicate.Eval(row)) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *Filter) String() string { return "Filter" }
