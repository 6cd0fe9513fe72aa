package pdb

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jtang613/pdbident/pkg/pdb/codeview"
	"github.com/jtang613/pdbident/pkg/pdb/msf"
	"github.com/jtang613/pdbident/pkg/pdb/streams"
)

// Fixed stream indices
const (
	StreamPDB = 1 // PDB info stream
	StreamDBI = 3 // Debug info stream
)

// ErrNoInfoStream is returned when the container has no PDB info stream.
var ErrNoInfoStream = errors.New("PDB info stream missing")

// PDB represents an opened PDB file.
type PDB struct {
	path    string
	msf     *msf.MSF
	pdbInfo *streams.PDBInfo
	dbi     *streams.DBIStream
}

// Open opens a PDB file and parses the streams that carry its identity.
func Open(path string) (*PDB, error) {
	m, err := msf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MSF: %w", err)
	}

	p, err := newPDB(path, m)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return p, nil
}

// NewReader parses a PDB held in r. The name is used where the file name
// would be, e.g. as the executable name fallback.
func NewReader(name string, r io.ReaderAt) (*PDB, error) {
	m, err := msf.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open MSF: %w", err)
	}
	return newPDB(name, m)
}

func newPDB(path string, m *msf.MSF) (*PDB, error) {
	p := &PDB{path: path, msf: m}

	if m.NumStreams() <= StreamPDB {
		return nil, ErrNoInfoStream
	}
	reader, err := m.StreamReader(StreamPDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDB info stream: %w", err)
	}
	p.pdbInfo, err = streams.ReadPDBInfo(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDB info stream: %w", err)
	}

	// A store without debug info has no DBI stream; that is not an error here.
	if m.NumStreams() > StreamDBI {
		stream, err := m.Stream(StreamDBI)
		if err == nil && stream.Size() > 0 {
			data, err := stream.ReadAll()
			if err != nil {
				return nil, fmt.Errorf("failed to read DBI stream: %w", err)
			}
			p.dbi, err = streams.ReadDBIStream(data)
			if err != nil {
				return nil, fmt.Errorf("failed to parse DBI stream: %w", err)
			}
		}
	}

	return p, nil
}

// Close closes the PDB file.
func (p *PDB) Close() error {
	if p.msf != nil {
		return p.msf.Close()
	}
	return nil
}

// Path returns the path or name the PDB was opened with.
func (p *PDB) Path() string {
	return p.path
}

// InfoStream returns the parsed PDB info stream.
func (p *PDB) InfoStream() *streams.PDBInfo {
	return p.pdbInfo
}

// HasDebugInfo reports whether the store carries a DBI stream.
func (p *PDB) HasDebugInfo() bool {
	return p.dbi != nil
}

// Info returns basic PDB file information.
func (p *PDB) Info() *PDBInfo {
	info := &PDBInfo{
		File:         p.path,
		Executable:   p.ExecutableName(),
		GUID:         p.pdbInfo.GUID.String(),
		Signature:    p.pdbInfo.Signature,
		Age:          p.pdbInfo.Age,
		Version:      p.pdbInfo.Version,
		Streams:      p.msf.NumStreams(),
		NamedStreams: p.pdbInfo.NamedStreams,
	}

	if p.dbi != nil {
		info.Machine = streams.MachineTypeName(p.dbi.Header.Machine)
		info.DBIAge = p.dbi.Header.Age
		info.Modules = len(p.dbi.Modules)
		info.Linker = p.linkerInfo()
	}

	return info
}

// ExecutableName returns the name of the executable the PDB was linked for,
// without directory or extension. It comes from the linker's environment
// block and falls back to the PDB's own file name.
func (p *PDB) ExecutableName() string {
	if exe := p.linkerExecutable(); exe != "" {
		return stem(exe)
	}
	return stem(p.path)
}

// linkerExecutable reads the "exe" entry of the linker module's S_ENVBLOCK.
func (p *PDB) linkerExecutable() string {
	for _, sym := range p.linkerSymbols() {
		if sym.Kind != codeview.S_ENVBLOCK {
			continue
		}
		env, err := codeview.ParseEnvBlockSym(sym.Data)
		if err != nil {
			continue
		}
		if exe := env.Entries["exe"]; exe != "" {
			return exe
		}
	}
	return ""
}

// linkerSymbols returns the symbol records of the "* Linker *" module.
// Unreadable or absent symbol streams yield nil.
func (p *PDB) linkerSymbols() []codeview.SymbolRecord {
	if p.dbi == nil {
		return nil
	}
	mod, ok := p.dbi.LinkerModule()
	if !ok || !mod.HasSymbols() {
		return nil
	}

	stream, err := p.msf.Stream(int(mod.ModuleSymStream))
	if err != nil || stream.Size() == 0 {
		return nil
	}
	data, err := stream.ReadAll()
	if err != nil {
		return nil
	}
	if uint32(len(data)) > mod.SymByteSize {
		data = data[:mod.SymByteSize]
	}

	// A truncated tail still leaves the records before it usable.
	symbols, _ := codeview.ParseSymbols(data)
	return symbols
}

// linkerInfo summarizes the linker module, or returns nil when there is none.
func (p *PDB) linkerInfo() *LinkerInfo {
	symbols := p.linkerSymbols()
	if len(symbols) == 0 {
		return nil
	}

	info := &LinkerInfo{}
	for _, sym := range symbols {
		info.Records = append(info.Records, codeview.SymbolKindName(sym.Kind))

		switch sym.Kind {
		case codeview.S_OBJNAME:
			if obj, err := codeview.ParseObjNameSym(sym.Data); err == nil {
				info.Object = obj.Name
			}
		case codeview.S_ENVBLOCK:
			if env, err := codeview.ParseEnvBlockSym(sym.Data); err == nil {
				info.Environment = env.Entries
			}
		}
	}
	return info
}

// stem strips any Windows or POSIX directory and the final extension.
func stem(path string) string {
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.LastIndexByte(path, '.'); i > 0 {
		path = path[:i]
	}
	return path
}
