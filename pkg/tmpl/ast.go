package tmpl

// Stmt is one parsed template statement.
type Stmt interface {
	stmt()
}

// TextStmt is a literal text run.
type TextStmt struct {
	Text string
}

// OutputStmt is a {{ ... }} expression whose result is written to output.
type OutputStmt struct {
	Expr string
	Line int
}

// DoStmt is a {% do ... %} expression evaluated for its side effects.
type DoStmt struct {
	Expr string
	Line int
}

// IfBranch is one condition/body arm of an if statement.
type IfBranch struct {
	Cond string
	Line int
	Body []Stmt
}

// IfStmt is an {% if %}/{% elif %}/{% else %} chain.
type IfStmt struct {
	Branches []IfBranch
	Else     []Stmt
}

// ForStmt is a {% for <vars> in <expr> %} loop.
type ForStmt struct {
	Vars []string
	Iter string
	Line int
	Body []Stmt
}

// SetStmt is an inline {% set name = expr %} assignment.
type SetStmt struct {
	Name string
	Expr string
	Line int
}

// SetBlockStmt is a block-form {% set name %}...{% endset %} assignment; the
// rendered body becomes the value.
type SetBlockStmt struct {
	Name string
	Body []Stmt
	Line int
}

// Param is one declared macro parameter, with an optional default expression.
type Param struct {
	Name    string
	Default string
}

// MacroDef is a named callable fragment definition. All three custom block
// forms (macro, materialization, docs) lower to one of these; Name carries
// the fully disambiguated resolved name.
type MacroDef struct {
	Name   string
	Params []Param
	Body   []Stmt
	Line   int
}

func (*TextStmt) stmt()     {}
func (*OutputStmt) stmt()   {}
func (*DoStmt) stmt()       {}
func (*IfStmt) stmt()       {}
func (*ForStmt) stmt()      {}
func (*SetStmt) stmt()      {}
func (*SetBlockStmt) stmt() {}
func (*MacroDef) stmt()     {}
