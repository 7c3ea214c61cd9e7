package lang

// Node is implemented by every AST node; it exposes the node's source span.
type Node interface {
	Pos() Span
}

// File is a parsed .pcad source: an ordered list of declarations.
type File struct {
	Decls []*Decl
	Span  Span
}

func (f *File) Pos() Span { return f.Span }

// DeclKind is the leading keyword of a declaration.
type DeclKind uint8

const (
	DeclSolid DeclKind = iota
	DeclFeature
)

func (k DeclKind) String() string {
	if k == DeclFeature {
		return "feature"
	}
	return "solid"
}

// Decl is one `solid`/`feature` block: a named operation with an ordered
// list of entries.
type Decl struct {
	Kind    DeclKind
	ID      string
	Op      string
	Entries []Entry
	Span    Span
}

func (d *Decl) Pos() Span { return d.Span }

// Entry is implemented by LetEntry and FieldEntry, the two statement forms
// allowed inside a declaration block.
type Entry interface {
	Node
	entryNode()
	EntryName() string
	EntryExpr() *Expr
}

// LetEntry binds a scoped local visible only to subsequent entries of the
// same declaration.
type LetEntry struct {
	Name string
	Expr *Expr
	Span Span
}

func (e *LetEntry) Pos() Span         { return e.Span }
func (e *LetEntry) entryNode()        {}
func (e *LetEntry) EntryName() string { return e.Name }
func (e *LetEntry) EntryExpr() *Expr  { return e.Expr }

// FieldEntry becomes part of the declaration's output field map.
type FieldEntry struct {
	Name string
	Expr *Expr
	Span Span
}

func (e *FieldEntry) Pos() Span         { return e.Span }
func (e *FieldEntry) entryNode()        {}
func (e *FieldEntry) EntryName() string { return e.Name }
func (e *FieldEntry) EntryExpr() *Expr  { return e.Expr }

// ObjectField is one name: expr pair inside an object literal.
type ObjectField struct {
	Name string
	Expr *Expr
	Span Span
}

// UnaryOp is a prefix operator.
type UnaryOp uint8

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
)

// BinaryOp is an infix operator.
type BinaryOp uint8

const (
	BinOr BinaryOp = iota
	BinAnd
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinAdd
	BinSub
	BinMul
	BinDiv
	BinMod
)

// ExprKind discriminates the Expr tagged union.
type ExprKind uint8

const (
	ExprNumber ExprKind = iota
	ExprString
	ExprBool
	ExprNull
	ExprVector
	ExprObject
	ExprReference
	ExprIdent
	ExprCall
	ExprUnary
	ExprBinary
)

// Expr is every expression node in the grammar, tagged by Kind. Only the
// fields relevant to Kind are populated; this mirrors the teacher's
// interface-tagged AST nodes but collapses them into one struct since
// PuppyCAD's expression grammar is small enough that a single tagged
// struct reads more plainly than a dozen single-field node types.
type Expr struct {
	Kind ExprKind
	Span Span

	Number float64
	String string
	Bool   bool

	Vector [3]*Expr // ExprVector
	Fields []ObjectField // ExprObject

	Segments []string // ExprReference (len==1 reused for ExprIdent's single name)

	CallName string // ExprCall
	Args     []*Expr

	UnaryOp UnaryOp
	Operand *Expr

	BinOp BinaryOp
	Left  *Expr
	Right *Expr
}

func (e *Expr) Pos() Span { return e.Span }

// Ident returns the bare identifier name for an ExprIdent node.
func (e *Expr) Ident() string {
	if len(e.Segments) != 1 {
		return ""
	}
	return e.Segments[0]
}
