package typeir

import (
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/intern"
)

// InsertUnknown inserts a fresh KUnknown (spec §4.2 insert_unknown).
func (a *Arena) InsertUnknown(span diagnostics.Span) TypeId {
	return a.Insert(KUnknown{}, span)
}

// InsertInt inserts a fresh unresolved-integer-literal type (spec §4.2
// insert_int).
func (a *Arena) InsertInt(span diagnostics.Span) TypeId {
	return a.Insert(KInt{}, span)
}

// InsertFloat inserts a fresh unresolved-float-literal type (spec §4.2
// insert_float).
func (a *Arena) InsertFloat(span diagnostics.Span) TypeId {
	return a.Insert(KFloat{}, span)
}

// InsertUnit inserts the zero-element tuple `()` (spec §4.2 insert_unit).
func (a *Arena) InsertUnit(span diagnostics.Span) TypeId {
	return a.Insert(KConcrete{Concrete: CTuple{}}, span)
}

// InsertBool inserts a concrete path referring to the built-in bool type
// (spec §4.2 insert_bool).
func (a *Arena) InsertBool(span diagnostics.Span, boolWord intern.Word) TypeId {
	return a.Insert(KConcrete{Concrete: CPath{Segments: []intern.Word{boolWord}}}, span)
}
