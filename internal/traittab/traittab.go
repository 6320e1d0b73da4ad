// Package traittab implements the Trait Application Table (spec §4.3, C3):
// per-trait-id lists of applications, with conflict detection on insert and
// a candidate query used by trait resolution (C5). Grounded on the
// teacher's instance registration path (funvibe-funxy internal/analyzer
// declarations_instances_core.go: functional-dependency overlap check,
// later-declaration-is-primary diagnostic) generalized from functional
// dependencies to the spec's full-unification conflict rule.
package traittab

import (
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/typeir"
)

// Prober is the non-mutating unification check the table needs to compare
// applications without committing arena bindings (spec §4.4 types_unify).
type Prober interface {
	TypesUnify(a, b typeir.TypeId) bool
}

// Application is one `apply Trait<trait_args> for impltor_root<impltor_args>`
// site (spec §4.3).
type Application struct {
	TraitArgs    []typeir.TypeId
	ImpltorRoot  typeir.TypeId
	ImpltorArgs  []typeir.TypeId
	SourceSpan   diagnostics.Span
}

// Table stores every registered Application, keyed by trait id.
type Table struct {
	byTrait map[typeir.TraitId][]Application
	prober  Prober
}

// New builds an empty Table that uses prober to compare candidate
// applications non-destructively. prober may be nil and wired in later via
// SetProber, for callers that build the trait resolver (which itself needs
// this table) before they have a unifier to probe with.
func New(prober Prober) *Table {
	return &Table{byTrait: make(map[typeir.TraitId][]Application), prober: prober}
}

// SetProber completes construction when prober was nil at New time.
func (t *Table) SetProber(prober Prober) {
	t.prober = prober
}

func pairwiseUnify(prober Prober, a, b []typeir.TypeId) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !prober.TypesUnify(a[i], b[i]) {
			return false
		}
	}
	return true
}

func conflicts(prober Prober, a, b Application) bool {
	if !prober.TypesUnify(a.ImpltorRoot, b.ImpltorRoot) {
		return false
	}
	return pairwiseUnify(prober, a.ImpltorArgs, b.ImpltorArgs) && pairwiseUnify(prober, a.TraitArgs, b.TraitArgs)
}

// AddApplication inserts app under traitID, reporting an OverlappingApplications
// diagnostic (primary label on app, secondary on the earlier conflicting
// application) if app conflicts with an existing one (spec §4.3
// add_application, §4.5 conflict detection). On conflict, app is still
// recorded: a conflicting application is a source-level mistake, not an
// internal invariant violation, and later solving should still see both
// sites rather than silently drop one (spec Testable Property 6: conflict
// symmetry — adding B after A and A after B must both report, with roles
// swapped).
func (t *Table) AddApplication(traitID typeir.TraitId, app Application) *diagnostics.Diagnostic {
	existing := t.byTrait[traitID]
	var diag *diagnostics.Diagnostic
	for _, e := range existing {
		if conflicts(t.prober, app, e) {
			diag = diagnostics.New(diagnostics.CodeOverlappingApplications, app.SourceSpan,
				"this trait application overlaps with an earlier one").
				WithSecondary(e.SourceSpan, "earlier conflicting application here")
			break
		}
	}
	t.byTrait[traitID] = append(existing, app)
	return diag
}

// CandidatesFor returns every Application of traitID whose implementor root
// unifies with impltorID under the current arena state (spec §4.3
// candidates_for). Callers that don't want unification side effects to
// leak between candidates must snapshot and roll back around each trial
// unification themselves (spec §4.5 step 3) — CandidatesFor only filters by
// the non-mutating Prober, it does not commit any bindings.
func (t *Table) CandidatesFor(traitID typeir.TraitId, impltorID typeir.TypeId) []Application {
	var out []Application
	for _, app := range t.byTrait[traitID] {
		if t.prober.TypesUnify(app.ImpltorRoot, impltorID) {
			out = append(out, app)
		}
	}
	return out
}

// All returns every application registered for traitID, for diagnostics
// that need to enumerate every site regardless of whether it unifies with
// anything in particular.
func (t *Table) All(traitID typeir.TraitId) []Application {
	return t.byTrait[traitID]
}
