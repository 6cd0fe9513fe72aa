package streams

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// DBI Stream versions
const (
	DBIStreamVersionVC41 = 930803
	DBIStreamVersionV50  = 19960307
	DBIStreamVersionV60  = 19970606
	DBIStreamVersionV70  = 19990903
	DBIStreamVersionV110 = 20091201
)

// Machine types
const (
	MachineUnknown = 0x0000
	MachineI386    = 0x014c
	MachineIA64    = 0x0200
	MachineAMD64   = 0x8664
	MachineARM     = 0x01c0
	MachineARM64   = 0xAA64
)

// DBIHeaderSize is the size of the fixed DBI header.
const DBIHeaderSize = 64

// moduleInfoFixedSize is the size of a module info record before its two names.
const moduleInfoFixedSize = 64

// NoStream marks an absent stream index in DBI fields.
const NoStream = 0xFFFF

// LinkerModuleName is the pseudo-module the linker emits its own symbols into.
const LinkerModuleName = "* Linker *"

// ErrInvalidDBI is returned when the DBI stream header is malformed.
var ErrInvalidDBI = errors.New("invalid DBI stream")

// DBIHeader is the fixed header of the DBI stream (64 bytes).
type DBIHeader struct {
	VersionSignature        int32  // Always -1
	VersionHeader           uint32 // DBI version
	Age                     uint32 // PDB age
	GlobalStreamIndex       uint16 // Global symbols stream index
	BuildNumber             uint16 // Toolchain version
	PublicStreamIndex       uint16 // Public symbols stream index
	PdbDllVersion           uint16
	SymRecordStream         uint16 // Symbol record stream index
	PdbDllRbld              uint16
	ModInfoSize             int32 // Size of module info substream
	SectionContributionSize int32 // Size of section contribution substream
	SectionMapSize          int32 // Size of section map substream
	SourceInfoSize          int32 // Size of source info substream
	TypeServerMapSize       int32 // Size of type server map substream
	MFCTypeServerIndex      uint32
	OptionalDbgHeaderSize   int32 // Size of optional debug header
	ECSubstreamSize         int32 // Size of EC substream
	Flags                   uint16
	Machine                 uint16 // CPU type
	Padding                 uint32
}

// DBIStream represents the parsed DBI stream.
type DBIStream struct {
	Header  DBIHeader
	Modules []ModuleInfo
}

// ModuleInfo contains the parts of a module record needed to locate its symbols.
type ModuleInfo struct {
	Flags           uint16
	ModuleSymStream uint16 // Stream containing module symbols (0xFFFF if none)
	SymByteSize     uint32 // Size of symbol data in bytes
	SourceFileCount uint16
	ModuleName      string // Object file name
	ObjFileName     string // Archive or object file path
}

// ReadDBIStream parses the DBI stream.
func ReadDBIStream(data []byte) (*DBIStream, error) {
	if len(data) < DBIHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidDBI, len(data))
	}

	var header DBIHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read DBI header: %w", err)
	}
	if header.VersionSignature != -1 {
		return nil, fmt.Errorf("%w: version signature %d", ErrInvalidDBI, header.VersionSignature)
	}

	dbi := &DBIStream{Header: header}

	if header.ModInfoSize > 0 {
		end := DBIHeaderSize + int(header.ModInfoSize)
		if end > len(data) {
			return nil, fmt.Errorf("%w: module info substream overruns stream", ErrInvalidDBI)
		}
		dbi.Modules = parseModuleInfo(data[DBIHeaderSize:end])
	}

	return dbi, nil
}

// parseModuleInfo parses the module info substream.
func parseModuleInfo(data []byte) []ModuleInfo {
	var modules []ModuleInfo
	offset := 0

	for offset+moduleInfoFixedSize <= len(data) {
		rec := data[offset:]

		// Layout: Unused1(4) SectionContrib(28) Flags(2) ModuleSymStream(2)
		// SymByteSize(4) C11ByteSize(4) C13ByteSize(4) SourceFileCount(2) ...
		mod := ModuleInfo{
			Flags:           binary.LittleEndian.Uint16(rec[32:]),
			ModuleSymStream: binary.LittleEndian.Uint16(rec[34:]),
			SymByteSize:     binary.LittleEndian.Uint32(rec[36:]),
			SourceFileCount: binary.LittleEndian.Uint16(rec[48:]),
		}
		offset += moduleInfoFixedSize

		name, n := readCString(data[offset:])
		if n < 0 {
			break
		}
		mod.ModuleName = name
		offset += n

		obj, n := readCString(data[offset:])
		if n < 0 {
			break
		}
		mod.ObjFileName = obj
		offset += n

		// Align to 4-byte boundary
		offset = (offset + 3) &^ 3

		modules = append(modules, mod)
	}

	return modules
}

// readCString returns the NUL-terminated string at the start of data and the
// number of bytes consumed including the terminator, or -1 if unterminated.
func readCString(data []byte) (string, int) {
	end := bytes.IndexByte(data, 0)
	if end == -1 {
		return "", -1
	}
	return string(data[:end]), end + 1
}

// MachineTypeName returns the human-readable name for a machine type.
func MachineTypeName(machine uint16) string {
	switch machine {
	case MachineI386:
		return "x86"
	case MachineAMD64:
		return "x64"
	case MachineARM:
		return "ARM"
	case MachineARM64:
		return "ARM64"
	case MachineIA64:
		return "IA64"
	default:
		return fmt.Sprintf("0x%04x", machine)
	}
}

// HasSymbols returns true if the module has symbol information.
func (m *ModuleInfo) HasSymbols() bool {
	return m.ModuleSymStream != NoStream && m.SymByteSize > 0
}

// LinkerModule returns the linker's pseudo-module, if present.
func (d *DBIStream) LinkerModule() (*ModuleInfo, bool) {
	for i := range d.Modules {
		if d.Modules[i].ModuleName == LinkerModuleName {
			return &d.Modules[i], true
		}
	}
	return nil, false
}
