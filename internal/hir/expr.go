package hir

import (
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/typeir"
)

// ExprKind tags the shape of a lowered expression (spec §4.7.1). This tree
// mirrors astshim's fixture expression shapes one-for-one but carries a
// resolved TypeId per node instead of unlowered syntax.
type ExprKind int

const (
	EKPoisoned ExprKind = iota
	EKIntLit
	EKFloatLit
	EKLocal
	EKItemRef
	EKBinary
	EKCall
	EKEnumCtor
	EKMethodCall
	EKStruct
	EKBlock
	EKIf
	EKTuple
	EKAddrOf
	EKMember
	EKIntrinsic
)

func (k ExprKind) String() string {
	switch k {
	case EKPoisoned:
		return "poisoned"
	case EKIntLit:
		return "int"
	case EKFloatLit:
		return "float"
	case EKLocal:
		return "local"
	case EKItemRef:
		return "item"
	case EKBinary:
		return "binary"
	case EKCall:
		return "call"
	case EKEnumCtor:
		return "enum-ctor"
	case EKMethodCall:
		return "method-call"
	case EKStruct:
		return "struct"
	case EKBlock:
		return "block"
	case EKIf:
		return "if"
	case EKTuple:
		return "tuple"
	case EKAddrOf:
		return "addr-of"
	case EKMember:
		return "member"
	case EKIntrinsic:
		return "intrinsic"
	default:
		return "?"
	}
}

// ExprField is one `name: value` pair of a lowered struct expression.
type ExprField struct {
	Name  intern.Word
	Value *Expr
}

// Stmt is one lowered block statement (spec §4.7.2).
type Stmt struct {
	Terminator bool // this statement is the block's tail expression
	LetName    *intern.Word
	Expr       *Expr
}

// Expr is one lowered expression node (spec §4.7.1: "each expression
// lowering returns (expr_id, type_id)" — Type plays the role of expr_id's
// paired type_id, and the node itself stands in for expr_id since nothing
// else needs to address an expression by a separate integer handle).
type Expr struct {
	Kind ExprKind
	Type typeir.TypeId
	Span diagnostics.Span

	IntText string
	Op      string
	Left    *Expr
	Right   *Expr
	Callee  *Expr
	Args    []*Expr
	Fields  []ExprField
	Stmts   []Stmt
	Cond    *Expr
	Then    *Expr
	Else    *Expr
	Elems   []*Expr
	Inner   *Expr
	Field   intern.Word
	Name    intern.Word
}
