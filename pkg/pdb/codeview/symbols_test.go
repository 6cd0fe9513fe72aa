package codeview

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(kind uint16, data []byte) []byte {
	rec := make([]byte, 4, 4+len(data))
	binary.LittleEndian.PutUint16(rec, uint16(len(data)+2))
	binary.LittleEndian.PutUint16(rec[2:], kind)
	return append(rec, data...)
}

func TestParseSymbols(t *testing.T) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(CVSignatureC13))
	buf.Write(record(S_OBJNAME, []byte{0, 0, 0, 0, 'a', 0}))
	buf.Write(record(S_END, nil))

	symbols, err := ParseSymbols(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.Equal(t, uint16(S_OBJNAME), symbols[0].Kind)
	assert.Equal(t, []byte{0, 0, 0, 0, 'a', 0}, symbols[0].Data)
	assert.Equal(t, uint16(S_END), symbols[1].Kind)
	assert.Empty(t, symbols[1].Data)
}

func TestParseSymbols_Overrun(t *testing.T) {
	data := record(S_OBJNAME, []byte{1, 2, 3, 4})
	data = append(data, record(S_ENVBLOCK, []byte{0, 'k', 0, 'v', 0})...)
	truncated := data[:len(data)-2]

	symbols, err := ParseSymbols(truncated)
	assert.Error(t, err)
	require.Len(t, symbols, 1, "records before the overrun are kept")
	assert.Equal(t, uint16(S_OBJNAME), symbols[0].Kind)
}

func TestParseObjNameSym(t *testing.T) {
	obj, err := ParseObjNameSym([]byte{0x78, 0x56, 0x34, 0x12, 'm', 'a', 'i', 'n', '.', 'o', 0})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), obj.Signature)
	assert.Equal(t, "main.o", obj.Name)

	_, err = ParseObjNameSym([]byte{1, 2})
	assert.Error(t, err)
}

func TestParseEnvBlockSym(t *testing.T) {
	data := []byte("\x00cwd\x00C:\\src\x00exe\x00C:\\bin\\a.exe\x00exe\x00dup\x00\x00")

	env, err := ParseEnvBlockSym(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), env.Flags)
	assert.Equal(t, []string{"cwd", "exe"}, env.Keys)
	assert.Equal(t, `C:\src`, env.Entries["cwd"])
	assert.Equal(t, "dup", env.Entries["exe"], "later entries win")

	_, err = ParseEnvBlockSym(nil)
	assert.Error(t, err)
}

func TestParseEnvBlockSym_Unterminated(t *testing.T) {
	env, err := ParseEnvBlockSym([]byte("\x01exe\x00a.exe"))
	require.NoError(t, err)
	assert.Equal(t, uint8(1), env.Flags)
	assert.Equal(t, "a.exe", env.Entries["exe"])
}

func TestSymbolKindName(t *testing.T) {
	assert.Equal(t, "S_ENVBLOCK", SymbolKindName(S_ENVBLOCK))
	assert.Equal(t, "S_GPROC32", SymbolKindName(S_GPROC32))
	assert.Equal(t, "0x1234", SymbolKindName(0x1234))
}
