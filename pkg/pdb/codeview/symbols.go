// Package codeview provides parsing for CodeView debug symbol records.
package codeview

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// CVSignatureC13 prefixes every C13 module symbol substream.
const CVSignatureC13 = 4

// Symbol type constants (S_* values) used when reading the linker module.
const (
	S_END        = 0x0006
	S_OBJNAME    = 0x1101
	S_BUILDINFO  = 0x114c
	S_COMPILE3   = 0x113c
	S_ENVBLOCK   = 0x113d
	S_SECTION    = 0x1136
	S_COFFGROUP  = 0x1137
	S_EXPORT     = 0x1138
	S_PUB32      = 0x110e
	S_PROCREF    = 0x1125
	S_LPROCREF   = 0x1127
	S_GDATA32    = 0x110d
	S_LDATA32    = 0x110c
	S_GPROC32    = 0x1110
	S_LPROC32    = 0x110f
	S_THUNK32    = 0x1102
	S_TRAMPOLINE = 0x112c
)

// SymbolRecord represents a parsed CodeView symbol record.
type SymbolRecord struct {
	Kind uint16
	Data []byte
}

// ObjNameSym represents an object file name symbol (S_OBJNAME).
type ObjNameSym struct {
	Signature uint32
	Name      string
}

// EnvBlockSym represents the linker environment block (S_ENVBLOCK):
// a flags byte followed by NUL-terminated key/value pairs.
type EnvBlockSym struct {
	Flags   uint8
	Entries map[string]string
	Keys    []string // Keys in record order
}

// ParseSymbols splits a symbol substream into records.
func ParseSymbols(data []byte) ([]SymbolRecord, error) {
	var symbols []SymbolRecord
	offset := 0

	if len(data) >= 4 && binary.LittleEndian.Uint32(data) == CVSignatureC13 {
		offset = 4
	}

	for offset+4 <= len(data) {
		recLen := int(binary.LittleEndian.Uint16(data[offset:]))
		offset += 2

		if recLen < 2 || offset+recLen > len(data) {
			return symbols, fmt.Errorf("symbol record at offset %d overruns substream", offset-2)
		}

		symbols = append(symbols, SymbolRecord{
			Kind: binary.LittleEndian.Uint16(data[offset:]),
			Data: data[offset+2 : offset+recLen],
		})
		offset += recLen
	}

	return symbols, nil
}

// ParseObjNameSym parses an S_OBJNAME record.
func ParseObjNameSym(data []byte) (*ObjNameSym, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("objname symbol data too small: %d bytes", len(data))
	}
	return &ObjNameSym{
		Signature: binary.LittleEndian.Uint32(data),
		Name:      cString(data[4:]),
	}, nil
}

// ParseEnvBlockSym parses an S_ENVBLOCK record.
func ParseEnvBlockSym(data []byte) (*EnvBlockSym, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("envblock symbol data too small: %d bytes", len(data))
	}

	env := &EnvBlockSym{
		Flags:   data[0],
		Entries: make(map[string]string),
	}

	rest := data[1:]
	for len(rest) > 0 {
		key, n := nextCString(rest)
		if key == "" {
			break
		}
		rest = rest[n:]

		value, n := nextCString(rest)
		rest = rest[n:]

		if _, dup := env.Entries[key]; !dup {
			env.Keys = append(env.Keys, key)
		}
		env.Entries[key] = value
	}

	return env, nil
}

// SymbolKindName returns a short name for the record kinds this package knows.
func SymbolKindName(kind uint16) string {
	switch kind {
	case S_END:
		return "S_END"
	case S_OBJNAME:
		return "S_OBJNAME"
	case S_BUILDINFO:
		return "S_BUILDINFO"
	case S_COMPILE3:
		return "S_COMPILE3"
	case S_ENVBLOCK:
		return "S_ENVBLOCK"
	case S_SECTION:
		return "S_SECTION"
	case S_COFFGROUP:
		return "S_COFFGROUP"
	case S_EXPORT:
		return "S_EXPORT"
	case S_PUB32:
		return "S_PUB32"
	case S_PROCREF:
		return "S_PROCREF"
	case S_LPROCREF:
		return "S_LPROCREF"
	case S_GDATA32:
		return "S_GDATA32"
	case S_LDATA32:
		return "S_LDATA32"
	case S_GPROC32:
		return "S_GPROC32"
	case S_LPROC32:
		return "S_LPROC32"
	case S_THUNK32:
		return "S_THUNK32"
	case S_TRAMPOLINE:
		return "S_TRAMPOLINE"
	default:
		return fmt.Sprintf("0x%04x", kind)
	}
}

func cString(data []byte) string {
	s, _ := nextCString(data)
	return s
}

// nextCString returns the string up to the first NUL and the bytes consumed.
func nextCString(data []byte) (string, int) {
	idx := bytes.IndexByte(data, 0)
	if idx == -1 {
		return string(data), len(data)
	}
	return string(data[:idx]), idx + 1
}
