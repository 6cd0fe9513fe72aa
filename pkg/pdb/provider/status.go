package provider

import (
	"errors"
	"fmt"
)

// Status is an HRESULT-style result code reported by a symbol provider.
type Status uint32

// General status codes.
const (
	S_OK                Status = 0x00000000
	S_FALSE             Status = 0x00000001
	E_FAIL              Status = 0x80004005
	E_INVALIDARG        Status = 0x80070057
	E_OUTOFMEMORY       Status = 0x8007000E
	E_UNEXPECTED        Status = 0x8000FFFF
	REGDB_E_CLASSNOTREG Status = 0x80040154
)

// facilityPDB is the facility of the E_PDB_* family.
const facilityPDB = 0x6D

func pdbStatus(code uint32) Status {
	return Status(0x80000000 | facilityPDB<<16 | code)
}

// PDB status codes.
var (
	E_PDB_OK              = pdbStatus(0)
	E_PDB_USAGE           = pdbStatus(1)
	E_PDB_OUT_OF_MEMORY   = pdbStatus(2)
	E_PDB_FILE_SYSTEM     = pdbStatus(3)
	E_PDB_NOT_FOUND       = pdbStatus(4)
	E_PDB_INVALID_SIG     = pdbStatus(5)
	E_PDB_INVALID_AGE     = pdbStatus(6)
	E_PDB_NOT_IMPLEMENTED = pdbStatus(9)
	E_PDB_V1_PDB          = pdbStatus(10)
	E_PDB_FORMAT          = pdbStatus(11)
	E_PDB_CORRUPT         = pdbStatus(13)
	E_PDB_ACCESS_DENIED   = pdbStatus(15)
	E_PDB_NO_DEBUG_INFO   = pdbStatus(19)
)

var statusNames = map[Status]string{
	S_OK:                  "S_OK",
	S_FALSE:               "S_FALSE",
	E_FAIL:                "E_FAIL",
	E_INVALIDARG:          "E_INVALIDARG",
	E_OUTOFMEMORY:         "E_OUTOFMEMORY",
	E_UNEXPECTED:          "E_UNEXPECTED",
	REGDB_E_CLASSNOTREG:   "REGDB_E_CLASSNOTREG",
	E_PDB_OK:              "E_PDB_OK",
	E_PDB_USAGE:           "E_PDB_USAGE",
	E_PDB_OUT_OF_MEMORY:   "E_PDB_OUT_OF_MEMORY",
	E_PDB_FILE_SYSTEM:     "E_PDB_FILE_SYSTEM",
	E_PDB_NOT_FOUND:       "E_PDB_NOT_FOUND",
	E_PDB_INVALID_SIG:     "E_PDB_INVALID_SIG",
	E_PDB_INVALID_AGE:     "E_PDB_INVALID_AGE",
	E_PDB_NOT_IMPLEMENTED: "E_PDB_NOT_IMPLEMENTED",
	E_PDB_V1_PDB:          "E_PDB_V1_PDB",
	E_PDB_FORMAT:          "E_PDB_FORMAT",
	E_PDB_CORRUPT:         "E_PDB_CORRUPT",
	E_PDB_ACCESS_DENIED:   "E_PDB_ACCESS_DENIED",
	E_PDB_NO_DEBUG_INFO:   "E_PDB_NO_DEBUG_INFO",
}

// Failed reports whether s is a failure code (high bit set).
func (s Status) Failed() bool {
	return s&0x80000000 != 0
}

// String returns the symbolic name of s followed by its raw value.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return fmt.Sprintf("%s (0x%08x)", name, uint32(s))
	}
	return fmt.Sprintf("0x%08x", uint32(s))
}

// StatusError is an error carrying a provider status.
type StatusError struct {
	Status Status
	Err    error
}

// Errorf returns a StatusError with a formatted cause.
func Errorf(status Status, format string, args ...any) *StatusError {
	return &StatusError{Status: status, Err: fmt.Errorf(format, args...)}
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return e.Status.String()
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusOf extracts the status carried by err. Errors without a status
// report E_FAIL; a nil error reports S_OK.
func StatusOf(err error) Status {
	if err == nil {
		return S_OK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return E_FAIL
}
