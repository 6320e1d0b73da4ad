// Package solver implements the Obligation Solver (spec §4.8, C8): a
// fixed-point loop that drains a TEnv's obligation queue by discharging
// TypeEq obligations through the unifier and Implements obligations through
// the trait resolver, stopping when the queue empties or a pass makes no
// progress.
package solver

import (
	"log"

	"github.com/dustin/go-humanize"

	"github.com/flux-lang/flux-core/internal/config"
	"github.com/flux-lang/flux-core/internal/diagnostics"
	"github.com/flux-lang/flux-core/internal/tenv"
	"github.com/flux-lang/flux-core/internal/traitres"
	"github.com/flux-lang/flux-core/internal/typeir"
	"github.com/flux-lang/flux-core/internal/unify"
)

// Solver drains a TEnv's obligation queue to a fixed point (spec §4.8).
// Implements the hir.Solver interface via Solve.
type Solver struct {
	maxPasses int
	logger    *log.Logger
}

// New builds a Solver bounded by session's MaxSolverPasses, logging pass
// statistics through logger. A nil logger disables logging.
func New(session config.Session, logger *log.Logger) *Solver {
	return &Solver{maxPasses: session.MaxSolverPasses, logger: logger}
}

// Solve runs the fixed-point loop (spec §4.8 steps 1-3) over env's
// obligation queue, using uni to discharge TypeEq obligations and traits to
// discharge Implements obligations. Returns CouldNotInfer diagnostics for
// whatever residue remains once a pass makes no progress, plus any
// diagnostic raised while discharging an obligation along the way.
func (s *Solver) Solve(env *tenv.TEnv, uni *unify.Unifier, traits *traitres.Resolver) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	prevSize := -1

	for pass := 0; pass < s.maxPasses; pass++ {
		pending := env.Obligations()
		if len(pending) == 0 {
			return diags
		}

		for _, obl := range pending {
			switch o := obl.(type) {
			case tenv.OblTypeEq:
				if d := uni.Unify(o.Lhs, o.Rhs, o.Span); d != nil {
					diags = append(diags, d)
				}
			case tenv.OblImplements:
				arena := env.Arena()
				if _, stillUnknown := arena.GetKind(arena.Terminal(o.Subject)).(typeir.KUnknown); stillUnknown {
					env.AddRestriction(o.Subject, o.Restriction, o.Span)
					continue
				}
				ok, d := traits.ResolveTraitRestriction(env, o.Subject, o.Restriction)
				if d != nil {
					diags = append(diags, d)
					continue
				}
				if !ok {
					env.AddRestriction(o.Subject, o.Restriction, o.Span)
				}
			}
		}

		residual := env.PendingObligations()
		if s.logger != nil {
			s.logger.Printf("solver pass %d: %s obligations remain", pass, humanize.Comma(int64(len(residual))))
		}

		if len(residual) == 0 {
			return diags
		}
		if len(residual) == prevSize {
			return append(diags, noProgressDiagnostics(env.Obligations())...)
		}
		prevSize = len(residual)
	}

	return append(diags, noProgressDiagnostics(env.Obligations())...)
}

// noProgressDiagnostics reports CouldNotInfer for every Implements
// obligation left once a pass made no progress (spec §4.8 step 3) or the
// safety-backstop pass count was exhausted (spec §9 termination argument).
func noProgressDiagnostics(residual []tenv.Obligation) []*diagnostics.Diagnostic {
	var diags []*diagnostics.Diagnostic
	for _, obl := range residual {
		if eq, ok := obl.(tenv.OblImplements); ok {
			diags = append(diags, diagnostics.New(diagnostics.CodeCouldNotInfer, eq.Span,
				"could not infer a type satisfying this restriction"))
		}
	}
	return diags
}
