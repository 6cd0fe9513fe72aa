package identity

import (
	"fmt"

	"github.com/jtang613/pdbident/pkg/pdb/provider"
)

// Kind classifies a validation failure. Every kind is fatal to the caller's
// session; none has a degraded result.
type Kind int

const (
	KindInvalidHintCombination Kind = iota + 1
	KindInvalidHintValue
	KindLoadOrValidationFailure
	KindSessionEstablishmentFailure
	KindEmptyGlobalScope
	KindIdentityExtractionFailure
	KindAllocationFailure
)

var kindNames = map[Kind]string{
	KindInvalidHintCombination:      "InvalidHintCombination",
	KindInvalidHintValue:            "InvalidHintValue",
	KindLoadOrValidationFailure:     "LoadOrValidationFailure",
	KindSessionEstablishmentFailure: "SessionEstablishmentFailure",
	KindEmptyGlobalScope:            "EmptyGlobalScope",
	KindIdentityExtractionFailure:   "IdentityExtractionFailure",
	KindAllocationFailure:           "AllocationFailure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrInvalidHintCombination      = &Error{Kind: KindInvalidHintCombination}
	ErrInvalidHintValue            = &Error{Kind: KindInvalidHintValue}
	ErrLoadOrValidationFailure     = &Error{Kind: KindLoadOrValidationFailure}
	ErrSessionEstablishmentFailure = &Error{Kind: KindSessionEstablishmentFailure}
	ErrEmptyGlobalScope            = &Error{Kind: KindEmptyGlobalScope}
	ErrIdentityExtractionFailure   = &Error{Kind: KindIdentityExtractionFailure}
	ErrAllocationFailure           = &Error{Kind: KindAllocationFailure}
)

// Error is a validation failure.
type Error struct {
	Kind   Kind
	Msg    string
	Status provider.Status // Provider status, S_OK when the failure is not the provider's
	Err    error
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Msg:    fmt.Sprintf(format, args...),
		Status: provider.StatusOf(err),
		Err:    err,
	}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}
