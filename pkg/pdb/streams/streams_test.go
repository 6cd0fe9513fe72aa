package streams

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtang613/pdbident/pkg/pdb/guid"
)

func le(values ...any) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func TestReadPDBInfo_VC70(t *testing.T) {
	g := guid.MustParse("6F9619FF-8B86-D011-B42D-00C04FC964FF")
	data := le(uint32(PDBStreamVersionVC70), uint32(0xAABBCCDD), uint32(3))
	data = append(data, g[:]...)
	// "/names\0" at offset 0, one present entry.
	data = append(data, le(uint32(7))...)
	data = append(data, "/names\x00"...)
	data = append(data, le(uint32(1), uint32(1), uint32(1), uint32(1), uint32(0), uint32(0), uint32(12))...)

	info, err := ReadPDBInfo(bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, info.HasGUID)
	assert.Equal(t, g, info.GUID)
	assert.Equal(t, uint32(0xAABBCCDD), info.Signature)
	assert.Equal(t, uint32(3), info.Age)
	assert.Equal(t, map[string]uint32{"/names": 12}, info.NamedStreams)
}

func TestReadPDBInfo_Legacy(t *testing.T) {
	data := le(uint32(PDBStreamVersionVC50), uint32(0x3C5A1B2F), uint32(1))

	info, err := ReadPDBInfo(bytes.NewReader(data))
	require.NoError(t, err)
	assert.False(t, info.HasGUID)
	assert.Equal(t, guid.FromSignature(0x3C5A1B2F), info.GUID)
	assert.Empty(t, info.NamedStreams)
}

func TestReadPDBInfo_Truncated(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"header", le(uint32(PDBStreamVersionVC70), uint32(1))},
		{"guid", append(le(uint32(PDBStreamVersionVC70), uint32(1), uint32(1)), 1, 2, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadPDBInfo(bytes.NewReader(tt.data))
			assert.ErrorIs(t, err, ErrTruncatedInfo)
		})
	}
}

func TestHasGUIDField(t *testing.T) {
	assert.False(t, HasGUIDField(PDBStreamVersionVC98))
	assert.True(t, HasGUIDField(PDBStreamVersionVC70Dep))
	assert.True(t, HasGUIDField(PDBStreamVersionVC140))
}

func dbiHeader(modInfoSize int32) []byte {
	return le(DBIHeader{
		VersionSignature: -1,
		VersionHeader:    DBIStreamVersionV70,
		Age:              4,
		ModInfoSize:      modInfoSize,
		Machine:          MachineI386,
	})
}

func TestReadDBIStream(t *testing.T) {
	var mod bytes.Buffer
	fixed := make([]byte, moduleInfoFixedSize)
	binary.LittleEndian.PutUint16(fixed[34:], 9)
	binary.LittleEndian.PutUint32(fixed[36:], 128)
	mod.Write(fixed)
	mod.WriteString(LinkerModuleName + "\x00\x00")
	for mod.Len()%4 != 0 {
		mod.WriteByte(0)
	}

	data := append(dbiHeader(int32(mod.Len())), mod.Bytes()...)
	dbi, err := ReadDBIStream(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), dbi.Header.Age)
	assert.Equal(t, "x86", MachineTypeName(dbi.Header.Machine))

	linker, ok := dbi.LinkerModule()
	require.True(t, ok)
	assert.Equal(t, uint16(9), linker.ModuleSymStream)
	assert.True(t, linker.HasSymbols())
}

func TestReadDBIStream_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"short", make([]byte, DBIHeaderSize-1)},
		{"signature", le(DBIHeader{VersionSignature: 0})},
		{"overrun", dbiHeader(128)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDBIStream(tt.data)
			assert.ErrorIs(t, err, ErrInvalidDBI)
		})
	}
}

func TestMachineTypeName(t *testing.T) {
	assert.Equal(t, "x64", MachineTypeName(MachineAMD64))
	assert.Equal(t, "ARM64", MachineTypeName(MachineARM64))
	assert.Equal(t, "0x1234", MachineTypeName(0x1234))
}
