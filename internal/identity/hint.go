package identity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jtang613/pdbident/pkg/pdb/guid"
)

// Hint carries the optional expected identity of a PDB. Signature is a GUID
// in text form or a hexadecimal 32-bit signature; Age is hexadecimal. Both
// must be set or both nil.
type Hint struct {
	Signature *string
	Age       *string
}

// NoHint loads without any identity check.
var NoHint = Hint{}

// HintOf returns a hint with both values set.
func HintOf(signature, age string) Hint {
	return Hint{Signature: &signature, Age: &age}
}

// Strategy is the load strategy selected from a Hint.
type Strategy int

const (
	Unvalidated Strategy = iota
	ValidatedByGUID
	ValidatedBySignature
)

func (s Strategy) String() string {
	switch s {
	case Unvalidated:
		return "Unvalidated"
	case ValidatedByGUID:
		return "ValidatedByGUID"
	case ValidatedBySignature:
		return "ValidatedBySignature"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Plan is a resolved strategy with its parsed identity values.
type Plan struct {
	Strategy  Strategy
	GUID      guid.GUID // ValidatedByGUID only
	Signature uint32    // ValidatedBySignature only
	Age       uint32    // Both validated strategies
}

// ResolvePlan selects the load strategy for h. A signature that parses as a
// GUID selects ValidatedByGUID; otherwise it must be a hexadecimal number.
func ResolvePlan(h Hint) (Plan, error) {
	switch {
	case h.Signature == nil && h.Age == nil:
		return Plan{Strategy: Unvalidated}, nil
	case h.Signature == nil:
		return Plan{}, newError(KindInvalidHintCombination, nil,
			"invalid combination of GUID/signature/age parameters: age given without signature")
	case h.Age == nil:
		return Plan{}, newError(KindInvalidHintCombination, nil,
			"invalid combination of GUID/signature/age parameters: signature given without age")
	}

	age, err := parseHex32(*h.Age)
	if err != nil {
		return Plan{}, newError(KindInvalidHintValue, err, "invalid age %q", *h.Age)
	}

	if g, err := guid.Parse(strings.TrimSpace(*h.Signature)); err == nil {
		return Plan{Strategy: ValidatedByGUID, GUID: g, Age: age}, nil
	}

	sig, err := parseHex32(*h.Signature)
	if err != nil {
		return Plan{}, newError(KindInvalidHintValue, err,
			"signature %q is neither a GUID nor a hexadecimal signature", *h.Signature)
	}
	return Plan{Strategy: ValidatedBySignature, Signature: sig, Age: age}, nil
}

// parseHex32 parses an unsigned 32-bit hexadecimal number with an optional 0x prefix.
func parseHex32(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
