package unify

import "github.com/flux-lang/flux-core/internal/typeir"

// TypesUnify is the non-mutating variant used by trait resolution to test
// candidate applications (spec §4.4 types_unify): it snapshots the arena,
// attempts a real unification, and always restores the snapshot, reporting
// only whether the attempt would have succeeded.
func (u *Unifier) TypesUnify(a, b typeir.TypeId) bool {
	arena := u.env.Arena()
	snap := arena.Snapshot()
	defer arena.Restore(snap)

	d := u.Unify(a, b, arena.GetSpan(a))
	return d == nil
}
