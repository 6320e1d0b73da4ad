// Package astshim is the external AST node-accessor interface HIR lowering
// consumes (spec §6): a red-green syntax tree and its concrete parser are
// out of scope (spec §1 Out of scope), so this package defines only the
// Node contract — cast/is_poisoned/range plus typed child accessors — that
// a real parser's node types would satisfy, plus a minimal in-memory
// fixture node set for building test inputs.
//
// Grounded on original_source's flux-syntax AstNode trait (cast, range)
// merged with the teacher's flatter Node/GetToken interface (funvibe-funxy
// internal/ast ast_core.go): the teacher has no syntax-tree layer to cast
// from, so a fixture Node here simply *is* its own typed shape and Cast is
// a plain type assertion rather than a syntax-kind dispatch table.
package astshim

import "github.com/flux-lang/flux-core/internal/diagnostics"

// Node is the base contract every AST node satisfies (spec §6).
type Node interface {
	// IsPoisoned reports whether the parser recovered from a syntax error
	// at this node; lowering must still produce a best-effort HIR node
	// rather than aborting (spec §6, §7).
	IsPoisoned() bool
	// Range returns this node's source span.
	Range() diagnostics.Span
}

// Cast attempts to view n as a T, returning false (not panicking) if n is
// not that shape (spec §6 cast(syntax) -> Option<Self>).
func Cast[T Node](n Node) (T, bool) {
	t, ok := n.(T)
	return t, ok
}

// MissingChild substitutes for an absent optional child (spec §6: "the
// lowering must gracefully handle None... by substituting a placeholder
// and emitting no duplicate diagnostic — the parser is expected to have
// already reported it").
type MissingChild struct {
	span diagnostics.Span
}

// NewMissingChild builds a placeholder standing in for a missing child,
// anchored at parentSpan since a missing child has no range of its own.
func NewMissingChild(parentSpan diagnostics.Span) MissingChild {
	return MissingChild{span: parentSpan}
}

func (MissingChild) IsPoisoned() bool          { return true }
func (m MissingChild) Range() diagnostics.Span { return m.span }
