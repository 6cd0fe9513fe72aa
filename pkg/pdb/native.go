package pdb

import (
	"errors"
	"io/fs"

	"github.com/jtang613/pdbident/pkg/pdb/guid"
	"github.com/jtang613/pdbident/pkg/pdb/msf"
	"github.com/jtang613/pdbident/pkg/pdb/provider"
	"github.com/jtang613/pdbident/pkg/pdb/streams"
)

// NativeProvider is the name the pure-Go provider registers under.
const NativeProvider = "native"

// globalScopeID is the session index of the executable symbol.
const globalScopeID = 1

func init() {
	provider.Register(NativeProvider, func() (provider.DataSource, error) {
		return NewSource(), nil
	})
}

// Source is a provider.DataSource backed by this package's PDB reader.
// A source loads at most one file.
type Source struct {
	open func(path string) (*PDB, error)
	pdb  *PDB
}

// NewSource returns a source that reads PDB files from disk.
func NewSource() *Source {
	return &Source{open: Open}
}

// NewSourceFunc returns a source that obtains PDBs from open instead of the file system.
func NewSourceFunc(open func(path string) (*PDB, error)) *Source {
	return &Source{open: open}
}

// LoadDataFromPDB implements provider.DataSource.
func (s *Source) LoadDataFromPDB(path *provider.WideString) error {
	p, err := s.load(path)
	if err != nil {
		return err
	}
	s.pdb = p
	return nil
}

// LoadAndValidateDataFromPDB implements provider.DataSource.
func (s *Source) LoadAndValidateDataFromPDB(path *provider.WideString, g *guid.GUID, signature uint32, age uint32) error {
	p, err := s.load(path)
	if err != nil {
		return err
	}

	if err := checkIdentity(p.pdbInfo, g, signature, age); err != nil {
		_ = p.Close()
		return err
	}

	s.pdb = p
	return nil
}

func checkIdentity(info *streams.PDBInfo, g *guid.GUID, signature uint32, age uint32) error {
	if g != nil {
		if !info.HasGUID {
			return provider.Errorf(provider.E_PDB_INVALID_SIG, "store version %d has no GUID", info.Version)
		}
		if info.GUID != *g {
			return provider.Errorf(provider.E_PDB_INVALID_SIG, "GUID %s does not match expected %s", info.GUID, *g)
		}
	} else if info.Signature != signature {
		return provider.Errorf(provider.E_PDB_INVALID_SIG, "signature 0x%08x does not match expected 0x%08x", info.Signature, signature)
	}

	if info.Age != age {
		return provider.Errorf(provider.E_PDB_INVALID_AGE, "age 0x%x does not match expected 0x%x", info.Age, age)
	}
	return nil
}

func (s *Source) load(path *provider.WideString) (*PDB, error) {
	if s.pdb != nil {
		return nil, provider.Errorf(provider.E_PDB_USAGE, "data source already loaded %s", s.pdb.Path())
	}

	name, err := path.String()
	if err != nil {
		return nil, &provider.StatusError{Status: provider.E_INVALIDARG, Err: err}
	}

	p, err := s.open(name)
	if err != nil {
		return nil, &provider.StatusError{Status: openStatus(err), Err: err}
	}
	return p, nil
}

// openStatus maps reader errors onto provider status codes.
func openStatus(err error) provider.Status {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return provider.E_PDB_NOT_FOUND
	case errors.Is(err, fs.ErrPermission):
		return provider.E_PDB_ACCESS_DENIED
	case errors.Is(err, msf.ErrInvalidMagic), errors.Is(err, ErrNoInfoStream):
		return provider.E_PDB_FORMAT
	case errors.Is(err, msf.ErrCorrupt),
		errors.Is(err, streams.ErrTruncatedInfo),
		errors.Is(err, streams.ErrInvalidDBI):
		return provider.E_PDB_CORRUPT
	default:
		return provider.E_PDB_FILE_SYSTEM
	}
}

// OpenSession implements provider.DataSource.
func (s *Source) OpenSession() (provider.Session, error) {
	if s.pdb == nil {
		return nil, provider.Errorf(provider.E_UNEXPECTED, "no PDB loaded")
	}
	return &session{pdb: s.pdb}, nil
}

// Loaded returns the loaded PDB, or nil.
func (s *Source) Loaded() *PDB {
	return s.pdb
}

// Close releases the loaded file. The source can load again afterwards.
func (s *Source) Close() error {
	if s.pdb == nil {
		return nil
	}
	err := s.pdb.Close()
	s.pdb = nil
	return err
}

type session struct {
	pdb    *PDB
	closed bool
}

func (s *session) GlobalScope() (provider.Symbol, error) {
	if s.closed {
		return nil, provider.Errorf(provider.E_UNEXPECTED, "session closed")
	}
	return &exeSymbol{session: s}, nil
}

func (s *session) Close() error {
	s.closed = true
	return nil
}

// exeSymbol is the global scope: the executable the store describes.
type exeSymbol struct {
	session *session
}

// SymIndexID is zero for stores without debug info, which have no symbol tree.
func (e *exeSymbol) SymIndexID() uint32 {
	if e.session.closed || !e.session.pdb.HasDebugInfo() {
		return 0
	}
	return globalScopeID
}

func (e *exeSymbol) Name() (string, error) {
	if e.session.closed {
		return "", provider.Errorf(provider.E_UNEXPECTED, "session closed")
	}
	return e.session.pdb.ExecutableName(), nil
}

func (e *exeSymbol) GUID() (guid.GUID, error) {
	if e.session.closed {
		return guid.Nil, provider.Errorf(provider.E_UNEXPECTED, "session closed")
	}
	return e.session.pdb.pdbInfo.GUID, nil
}

func (e *exeSymbol) Age() (uint32, error) {
	if e.session.closed {
		return 0, provider.Errorf(provider.E_UNEXPECTED, "session closed")
	}
	return e.session.pdb.pdbInfo.Age, nil
}
