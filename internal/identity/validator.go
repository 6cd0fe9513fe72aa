// Package identity establishes a validated session on a PDB and extracts the
// identity (executable name, GUID and age) that binds it to its executable.
package identity

import (
	"github.com/rs/zerolog"

	"github.com/jtang613/pdbident/pkg/pdb/guid"
	"github.com/jtang613/pdbident/pkg/pdb/provider"
)

// guidBufferSize is the fixed buffer the GUID text is written into.
var guidBufferSize = 64

// Record is the identity of a loaded PDB.
type Record struct {
	ExecutableName string
	GUID           guid.GUID
	GUIDText       string // Canonical braced form of GUID
	Age            uint32
}

// Result is a validated session handed to symbol consumers. Session and
// Global live until the provider subsystem is torn down.
type Result struct {
	Plan    Plan
	Session provider.Session
	Global  provider.Symbol
	Record  Record
}

// Validator loads PDBs through a data source and checks their identity.
type Validator struct {
	logger zerolog.Logger
}

// New returns a validator logging to logger.
func New(logger zerolog.Logger) *Validator {
	return &Validator{logger: logger.With().Str("component", "identity").Logger()}
}

// Validate runs a validator that does not log.
func Validate(src provider.DataSource, filename string, hint Hint) (*Result, error) {
	return New(zerolog.Nop()).Validate(src, filename, hint)
}

// Validate loads filename with the strategy selected by hint, opens a
// session, resolves the global scope and extracts the identity record.
// Every returned error is an *Error.
func (v *Validator) Validate(src provider.DataSource, filename string, hint Hint) (*Result, error) {
	if src == nil {
		return nil, &Error{
			Kind:   KindLoadOrValidationFailure,
			Msg:    "no data source",
			Status: provider.E_INVALIDARG,
		}
	}

	path, err := provider.NewWideString(filename)
	if err != nil {
		return nil, newError(KindAllocationFailure, err, "unable to convert file name")
	}
	defer path.Release()

	plan, err := ResolvePlan(hint)
	if err != nil {
		return nil, err
	}

	log := v.logger.With().Str("file", filename).Str("strategy", plan.Strategy.String()).Logger()
	log.Debug().Msg("loading PDB")

	err = load(src, path, plan)
	path.Release()
	if err != nil {
		status := provider.StatusOf(err)
		log.Debug().Err(err).Stringer("status", status).Msg("load failed")
		return nil, &Error{
			Kind:   KindLoadOrValidationFailure,
			Msg:    "unable to load " + filename,
			Status: status,
			Err:    err,
		}
	}

	session, err := src.OpenSession()
	if err != nil || session == nil {
		return nil, newError(KindSessionEstablishmentFailure, err, "unable to open session")
	}
	global, err := session.GlobalScope()
	if err != nil || global == nil {
		return nil, newError(KindSessionEstablishmentFailure, err, "unable to get global scope")
	}

	id := global.SymIndexID()
	if id == 0 {
		return nil, newError(KindEmptyGlobalScope, nil, "unable to get global symbol index")
	}

	record, err := extract(global)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Uint32("sym_index_id", id).
		Str("exe", record.ExecutableName).
		Str("guid", record.GUIDText).
		Uint32("age", record.Age).
		Msg("PDB validated")

	return &Result{Plan: plan, Session: session, Global: global, Record: record}, nil
}

func load(src provider.DataSource, path *provider.WideString, plan Plan) error {
	switch plan.Strategy {
	case ValidatedByGUID:
		g := plan.GUID
		return src.LoadAndValidateDataFromPDB(path, &g, 0, plan.Age)
	case ValidatedBySignature:
		return src.LoadAndValidateDataFromPDB(path, nil, plan.Signature, plan.Age)
	default:
		return src.LoadDataFromPDB(path)
	}
}

func extract(global provider.Symbol) (Record, error) {
	name, err := global.Name()
	if err != nil {
		return Record{}, newError(KindIdentityExtractionFailure, err, "unable to get executable name")
	}

	g, err := global.GUID()
	if err != nil {
		return Record{}, newError(KindIdentityExtractionFailure, err, "unable to get GUID")
	}

	buf := make([]byte, guidBufferSize)
	n := g.Format(buf)
	if n == 0 {
		return Record{}, newError(KindAllocationFailure, nil,
			"unable to convert GUID: %d byte buffer, need %d", len(buf), guid.StringLen)
	}

	age, err := global.Age()
	if err != nil {
		return Record{}, newError(KindIdentityExtractionFailure, err, "unable to get PDB age")
	}

	return Record{
		ExecutableName: name,
		GUID:           g,
		GUIDText:       string(buf[:n]),
		Age:            age,
	}, nil
}
