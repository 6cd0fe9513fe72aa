// Package provider defines the contracts between the identity validator and a
// debug-symbol provider, and manages the provider subsystem lifecycle.
//
// A provider is registered under a name, in the style of database/sql
// drivers, and instantiated once per process by Bootstrap:
//
//	sub, err := provider.Bootstrap("native")
//	if err != nil {
//		return err
//	}
//	defer sub.Teardown()
package provider

import "github.com/jtang613/pdbident/pkg/pdb/guid"

// DataSource loads a PDB file and opens query sessions against it.
type DataSource interface {
	// LoadDataFromPDB loads the file without any identity check.
	LoadDataFromPDB(path *WideString) error

	// LoadAndValidateDataFromPDB loads the file and verifies that it matches
	// the expected identity. When g is nil the 32-bit signature is compared
	// instead of the GUID. The age must match in both cases.
	LoadAndValidateDataFromPDB(path *WideString, g *guid.GUID, signature uint32, age uint32) error

	// OpenSession opens a query session on the loaded file.
	OpenSession() (Session, error)
}

// Session is a query context over a loaded PDB.
type Session interface {
	// GlobalScope returns the root symbol of the store.
	GlobalScope() (Symbol, error)
	Close() error
}

// Symbol is a node of the symbol tree. Only the accessors needed for the
// global scope identity are part of the contract.
type Symbol interface {
	// SymIndexID returns the symbol's index in the session; zero means none.
	SymIndexID() uint32
	Name() (string, error)
	GUID() (guid.GUID, error)
	Age() (uint32, error)
}

// Factory instantiates a data source.
type Factory func() (DataSource, error)
