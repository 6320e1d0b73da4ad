package astshim

import (
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
)

// base carries the fields every fixture node needs, matching the shape
// every Node implementation repeats (spec §6 is_poisoned/range). Private is
// only meaningful on item declarations (spec §6 Visibility); expression
// fixtures simply leave it false.
type base struct {
	Poisoned bool
	Span     diagnostics.Span
	Private  bool
}

func (b base) IsPoisoned() bool        { return b.Poisoned }
func (b base) Range() diagnostics.Span { return b.Span }

// --- Expressions (spec §4.7.1) ---

type IntLiteral struct {
	base
	Text string // raw digits, parsed by lowering (spec: "parse as u64; on overflow emit PositiveIntegerOverflow")
}

type FloatLiteral struct {
	base
	Text string
}

type PathExpr struct {
	base
	Segments []intern.Word
	Args     []TypeRef // generic args, if any
}

type BinaryExpr struct {
	base
	Op    string // "=", "+", "-", "*", "/", etc.
	Left  Node
	Right Node
}

type CallExpr struct {
	base
	Callee Node
	Args   []Node
}

type FieldInit struct {
	Name  intern.Word
	Value Node
}

type StructExpr struct {
	base
	Path   PathExpr
	Fields []FieldInit
}

type Stmt struct {
	base
	// Terminator marks a statement the source syntax flagged as the
	// block's tail expression (spec §4.7.1 Block: "statements that
	// terminate the block... must be last").
	Terminator bool
	Let        *LetStmt // non-nil for a `let` statement
	Expr       Node     // the statement's expression (for both let initializers handled separately and bare expression statements)
}

type LetStmt struct {
	Name        intern.Word
	DeclaredTy  *TypeRef
	Initializer Node
}

type BlockExpr struct {
	base
	Stmts []Stmt
}

type IfExpr struct {
	base
	Cond Node
	Then Node
	Else Node // nil if no else branch
}

type TupleExpr struct {
	base
	Elems []Node
}

type AddrOfExpr struct {
	base
	Inner Node
}

type MemberExpr struct {
	base
	Left  Node
	Field intern.Word
}

type IntrinsicExpr struct {
	base
	Name intern.Word
	Args []Node
}

func (IntLiteral) Kind() string    { return "IntLiteral" }
func (FloatLiteral) Kind() string  { return "FloatLiteral" }
func (PathExpr) Kind() string      { return "PathExpr" }
func (BinaryExpr) Kind() string    { return "BinaryExpr" }
func (CallExpr) Kind() string      { return "CallExpr" }
func (StructExpr) Kind() string    { return "StructExpr" }
func (BlockExpr) Kind() string     { return "BlockExpr" }
func (IfExpr) Kind() string        { return "IfExpr" }
func (TupleExpr) Kind() string     { return "TupleExpr" }
func (AddrOfExpr) Kind() string    { return "AddrOfExpr" }
func (MemberExpr) Kind() string    { return "MemberExpr" }
func (IntrinsicExpr) Kind() string { return "IntrinsicExpr" }

// --- Type references (unlowered, as written in source) ---

// TypeRef is an unlowered type as written in source: a path with optional
// generic arguments, a pointer, an array, or a tuple. Lowering turns this
// into a typeir.TypeId.
type TypeRef struct {
	base
	Segments []intern.Word // nil for Ptr/Array/Tuple
	Args     []TypeRef

	Ptr   *TypeRef
	Array *ArrayTypeRef
	Tuple []TypeRef
}

type ArrayTypeRef struct {
	Elem *TypeRef
	Len  uint64
}

func (TypeRef) Kind() string { return "TypeRef" }

// --- Items (spec §4.7 Pass 1) ---

type GenericParamDecl struct {
	Name         intern.Word
	Restrictions []TraitBoundRef
}

// TraitBoundRef is a where-clause predicate as written in source: a trait
// path plus its generic arguments (spec §4.5 verify_where_clause).
type TraitBoundRef struct {
	Segments []intern.Word
	Args     []TypeRef
	Span     diagnostics.Span
}

type FieldDecl struct {
	Name intern.Word
	Ty   TypeRef
}

type VariantDecl struct {
	Name    intern.Word
	Payload *TypeRef // nil for a unit variant
}

type StructDecl struct {
	base
	Name    intern.Word
	Generics []GenericParamDecl
	Fields  []FieldDecl
}

type EnumDecl struct {
	base
	Name     intern.Word
	Generics []GenericParamDecl
	Variants []VariantDecl
}

type AssocTypeDecl struct {
	Name         intern.Word
	Restrictions []TraitBoundRef
}

type MethodSigDecl struct {
	base
	Name       intern.Word
	Generics   []GenericParamDecl
	Params     []FieldDecl
	ReturnTy   *TypeRef
	Body       Node // nil for a trait's method declaration (no body)
}

type TraitDecl struct {
	base
	Name          intern.Word
	Generics      []GenericParamDecl
	AssocTypes    []AssocTypeDecl
	Methods       []MethodSigDecl
}

type FunctionDecl struct {
	base
	Name     intern.Word
	Generics []GenericParamDecl
	Params   []FieldDecl
	ReturnTy *TypeRef
	Body     Node
}

type AssocTypeAssign struct {
	Name intern.Word
	Ty   TypeRef
}

type ApplyDecl struct {
	base
	Generics    []GenericParamDecl
	TraitPath   *TraitBoundRef // nil for a bare `apply Target { ... }`
	ImplementorTy TypeRef
	AssocTypes  []AssocTypeAssign
	Methods     []MethodSigDecl
}

// AliasDecl is a `type X = ...` declaration (supplemented feature: absent
// from spec.md's item list, present in original_source's flux_hir and the
// teacher's typesystem.ExpandTypeAlias).
type AliasDecl struct {
	base
	Name    intern.Word
	Aliased TypeRef
}

func (AliasDecl) Kind() string { return "AliasDecl" }

type UseDecl struct {
	base
	Path  []intern.Word
	Alias *intern.Word
}

type ModDecl struct {
	base
	Name intern.Word
}

func (StructDecl) Kind() string   { return "StructDecl" }
func (EnumDecl) Kind() string     { return "EnumDecl" }
func (TraitDecl) Kind() string    { return "TraitDecl" }
func (FunctionDecl) Kind() string { return "FunctionDecl" }
func (ApplyDecl) Kind() string    { return "ApplyDecl" }
func (UseDecl) Kind() string      { return "UseDecl" }
func (ModDecl) Kind() string      { return "ModDecl" }
