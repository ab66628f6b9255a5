package exec

// Project yields each row restricted to Columns. "*" passes the row
// through unchanged; any other name is resolved like ColumnRef (exact
// key, or qualified/unqualified suffix match) and defaults to NULL if
// nothing matches, per spec.md §4.11.
type Project struct {
	baseOperator
	Columns []string
}

func NewProject(child Operator, columns []string) *Project {
	return &Project{baseOperator: baseOperator{children: []Operator{child}}, Columns: columns}
}

func (p *Project) Execute() ([]Row, error) {
	rows, err := p.children[0].Execute()
	if err != nil {
		return nil, err
	}

	passthrough := false
	for _, c := range p.Columns {
		if c == "*" {
			passthrough = true
			break
		}
	}
	if passthrough {
		return rows, nil
	}

	out := make([]Row, len(rows))
	for i, row := range rows {
		projected := Row{}
		for _, col := range p.Columns {
			projected[col] = ColumnRef{Name: col}.Eval(row)
		}
		out[i] = projected
	}
	return out, nil
}

func (p *Project) String() string { return "Project" }
