package hir

import (
	"fmt"
	"strings"

	"github.com/flux-lang/flux-core/internal/intern"
	"github.com/flux-lang/flux-core/internal/typeir"
)

// Print renders a lowered body as an indented tree for tests to assert
// lowering shape readably instead of deep reflect.DeepEqual comparisons
// against the Expr struct (supplemented from original_source's
// flux_hir::prettyprint/hir/pp.rs and the teacher's internal/prettyprinter —
// a test-support feature, not a new compile-time behavior).
func Print(arena *typeir.Arena, words *intern.Interner, e *Expr) string {
	var b strings.Builder
	printExpr(&b, arena, words, e, 0)
	return b.String()
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
}

func printExpr(b *strings.Builder, arena *typeir.Arena, words *intern.Interner, e *Expr, depth int) {
	if e == nil {
		indent(b, depth)
		b.WriteString("<nil>\n")
		return
	}
	indent(b, depth)
	fmt.Fprintf(b, "%s : %s\n", e.Kind, typeString(arena, words, e.Type))

	switch e.Kind {
	case EKBinary:
		printExpr(b, arena, words, e.Left, depth+1)
		printExpr(b, arena, words, e.Right, depth+1)
	case EKIf:
		printExpr(b, arena, words, e.Cond, depth+1)
		printExpr(b, arena, words, e.Then, depth+1)
		if e.Else != nil {
			printExpr(b, arena, words, e.Else, depth+1)
		}
	case EKBlock:
		for _, s := range e.Stmts {
			printExpr(b, arena, words, s.Expr, depth+1)
		}
	case EKCall, EKEnumCtor, EKMethodCall:
		for _, a := range e.Args {
			printExpr(b, arena, words, a, depth+1)
		}
	case EKTuple:
		for _, el := range e.Elems {
			printExpr(b, arena, words, el, depth+1)
		}
	case EKAddrOf:
		printExpr(b, arena, words, e.Inner, depth+1)
	case EKMember:
		printExpr(b, arena, words, e.Left, depth+1)
	case EKStruct:
		for _, f := range e.Fields {
			printExpr(b, arena, words, f.Value, depth+1)
		}
	}
}

func typeString(arena *typeir.Arena, words *intern.Interner, id typeir.TypeId) string {
	terminal := arena.Terminal(id)
	switch k := arena.GetKind(terminal).(type) {
	case typeir.KUnknown:
		return "?"
	case typeir.KInt:
		return "{int}"
	case typeir.KFloat:
		return "{float}"
	case typeir.KNever:
		return "!"
	case typeir.KGeneric:
		return words.Resolve(k.Name)
	case typeir.KThisPath:
		return "This"
	case typeir.KConcrete:
		return concreteString(arena, words, k.Concrete)
	default:
		return "?"
	}
}

func concreteString(arena *typeir.Arena, words *intern.Interner, c typeir.ConcreteKind) string {
	switch cv := c.(type) {
	case typeir.CPath:
		var b strings.Builder
		for i, seg := range cv.Segments {
			if i > 0 {
				b.WriteString("::")
			}
			b.WriteString(words.Resolve(seg))
		}
		if len(cv.Args) > 0 {
			b.WriteString("<")
			for i, a := range cv.Args {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(typeString(arena, words, a))
			}
			b.WriteString(">")
		}
		return b.String()
	case typeir.CPtr:
		return "*" + typeString(arena, words, cv.Elem)
	case typeir.CArray:
		return fmt.Sprintf("[%s; %d]", typeString(arena, words, cv.Elem), cv.Len)
	case typeir.CTuple:
		var b strings.Builder
		b.WriteString("(")
		for i, el := range cv.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(typeString(arena, words, el))
		}
		b.WriteString(")")
		return b.String()
	}
	return "?"
}
