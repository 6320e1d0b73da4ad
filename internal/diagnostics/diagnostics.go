// Package diagnostics is the structured error model (spec §4.9, C9):
// diagnostics accumulate in a vector owned by the lowering context and are
// never rendered to text here — rendering is an external collaborator's job
// (spec §1 Out of scope, §6).
package diagnostics

import "github.com/google/uuid"

// Severity classifies a Diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Code is one of the fixed diagnostic codes named in spec §4.9.
type Code string

const (
	CodeTypeMismatch                      Code = "TypeMismatch"
	CodeCouldNotInfer                     Code = "CouldNotInfer"
	CodeTraitBoundsUnsatisfied             Code = "TraitBoundsUnsatisfied"
	CodeOverlappingApplications           Code = "OverlappingApplications"
	CodeAmbiguousIntegerSpecialization     Code = "AmbiguousIntegerSpecialization"
	CodeUnresolvedPath                     Code = "UnresolvedPath"
	CodePrivateItem                        Code = "PrivateItem"
	CodePrivateModule                      Code = "PrivateModule"
	CodeUnknownLocal                       Code = "UnknownLocal"
	CodeUnknownEnumVariant                 Code = "UnknownEnumVariant"
	CodeIncorrectNumArgsInCall             Code = "IncorrectNumArgsInCall"
	CodeIncorrectNumGenericArgsInWherePred Code = "IncorrectNumGenericArgsInWherePredicate"
	CodeUnusedGenericParams                Code = "UnusedGenericParams"
	CodeDuplicateGenericParams             Code = "DuplicateGenericParams"
	CodeStmtFollowingTerminatorExpr        Code = "StmtFollowingTerminatorExpr"
	CodeUnimplementedTraitMethods          Code = "UnimplementedTraitMethods"
	CodeMethodsDontBelongInApply           Code = "MethodsDontBelongInApply"
	CodeUninitializedFieldsInStructExpr    Code = "UninitializedFieldsInStructExpr"
	CodeUnknownFieldsInStructExpr          Code = "UnknownFieldsInStructExpr"
	CodeAssocTypeDoesntBelong              Code = "AssocTypeDoesntBelong"
	CodeUnassignedAssocTypes               Code = "UnassignedAssocTypes"
	CodeWherePredicatesDontMatchInApply    Code = "WherePredicatesDontMatchInApplyMethod"
	CodeCouldNotFindMethodReferenced       Code = "CouldNotFindMethodReferenced"
	CodeCouldNotFindFieldReferenced        Code = "CouldNotFindFieldReferenced"
	CodeEnumVariantMissingArg              Code = "EnumVariantMissingArg"
	CodePositiveIntegerOverflow            Code = "PositiveIntegerOverflow"
	CodeExpectedDifferentItem              Code = "ExpectedDifferentItem"
)

// Label attaches a message to a span; a Diagnostic's secondary labels point
// at related spans (e.g. the earlier conflicting declaration).
type Label struct {
	Span    Span
	Message string
}

// Diagnostic is one structured error or warning record (spec §4.9).
type Diagnostic struct {
	Code      Code
	Severity  Severity
	Primary   Label
	Secondary []Label
	Help      string
}

// New builds an error-severity Diagnostic with only a primary label.
func New(code Code, span Span, message string) *Diagnostic {
	return &Diagnostic{
		Code:     code,
		Severity: SeverityError,
		Primary:  Label{Span: span, Message: message},
	}
}

// WithSecondary appends a secondary label and returns d for chaining.
func (d *Diagnostic) WithSecondary(span Span, message string) *Diagnostic {
	d.Secondary = append(d.Secondary, Label{Span: span, Message: message})
	return d
}

// WithHelp sets d's help text and returns d for chaining.
func (d *Diagnostic) WithHelp(help string) *Diagnostic {
	d.Help = help
	return d
}

// Batch is the output of one compilation session: every Diagnostic raised,
// tagged with a session id so a consumer driving several sessions in
// parallel (internal/driver/parallel.go) can tell them apart in logs.
type Batch struct {
	SessionID   uuid.UUID
	Diagnostics []Diagnostic
}

// NewBatch starts an empty Batch with a fresh session id.
func NewBatch() *Batch {
	return &Batch{SessionID: uuid.New()}
}

// Add appends d to the batch, ignoring a nil d (lets call sites write
// `batch.Add(maybeNilDiagnostic)` without a guard, matching the teacher's
// `addError` no-op-on-nil convention).
func (b *Batch) Add(d *Diagnostic) {
	if d == nil {
		return
	}
	b.Diagnostics = append(b.Diagnostics, *d)
}

// HasErrors reports whether the batch contains any error-severity
// diagnostic.
func (b *Batch) HasErrors() bool {
	for _, d := range b.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
