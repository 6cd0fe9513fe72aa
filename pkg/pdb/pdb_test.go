package pdb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtang613/pdbident/pkg/pdb/guid"
	"github.com/jtang613/pdbident/pkg/pdb/pdbtest"
	"github.com/jtang613/pdbident/pkg/pdb/streams"
)

var testGUID = guid.GUID{0xFF, 0x19, 0x96, 0x6F, 0x86, 0x8B, 0x11, 0xD0, 0xB4, 0x2D, 0x00, 0xC0, 0x4F, 0xC9, 0x64, 0xFF}

func openBytes(t *testing.T, name string, b pdbtest.Builder) *PDB {
	t.Helper()
	p, err := NewReader(name, bytes.NewReader(b.Bytes()))
	require.NoError(t, err)
	return p
}

func TestOpen(t *testing.T) {
	path := pdbtest.Builder{
		Signature: 0x5F3A1B2C,
		Age:       2,
		GUID:      testGUID,
		ExePath:   `C:\build\bin\notepad.exe`,
		Machine:   streams.MachineAMD64,
	}.WriteFile(t, t.TempDir(), "notepad.pdb")

	p, err := Open(path)
	require.NoError(t, err)
	defer p.Close()

	info := p.Info()
	assert.Equal(t, path, info.File)
	assert.Equal(t, "notepad", info.Executable)
	assert.Equal(t, "{6F9619FF-8B86-D011-B42D-00C04FC964FF}", info.GUID)
	assert.Equal(t, uint32(0x5F3A1B2C), info.Signature)
	assert.Equal(t, uint32(2), info.Age)
	assert.Equal(t, uint32(2), info.DBIAge)
	assert.Equal(t, uint32(streams.PDBStreamVersionVC70), info.Version)
	assert.Equal(t, "x64", info.Machine)
	assert.Equal(t, 1, info.Modules)
	assert.True(t, p.HasDebugInfo())
}

func TestInfo_Linker(t *testing.T) {
	p := openBytes(t, "app.pdb", pdbtest.Builder{Age: 1, ExePath: `C:\out\app.exe`})

	linker := p.Info().Linker
	require.NotNil(t, linker)
	assert.Equal(t, streams.LinkerModuleName, linker.Object)
	assert.Equal(t, []string{"S_OBJNAME", "S_ENVBLOCK"}, linker.Records)
	assert.Equal(t, `C:\out\app.exe`, linker.Environment["exe"])
	assert.Equal(t, `C:\build`, linker.Environment["cwd"])
}

func TestInfo_NoLinkerModule(t *testing.T) {
	p := openBytes(t, "app.pdb", pdbtest.Builder{Age: 1, WithDBI: true})
	assert.Nil(t, p.Info().Linker)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(t.TempDir() + "/absent.pdb")
	assert.Error(t, err)
}

func TestNewReader_WithoutDebugInfo(t *testing.T) {
	p := openBytes(t, "x.pdb", pdbtest.Builder{Age: 1})
	assert.False(t, p.HasDebugInfo())
	assert.Equal(t, 0, p.Info().Modules)
}

func TestNewReader_NoInfoStream(t *testing.T) {
	data := pdbtest.Container(512, [][]byte{nil})

	_, err := NewReader("x.pdb", bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrNoInfoStream)
}

func TestNewReader_TruncatedInfoStream(t *testing.T) {
	data := pdbtest.Container(512, [][]byte{nil, {0x04, 0x74, 0x31}})

	_, err := NewReader("x.pdb", bytes.NewReader(data))
	assert.ErrorIs(t, err, streams.ErrTruncatedInfo)
}

func TestNewReader_BadDBI(t *testing.T) {
	dbi := make([]byte, streams.DBIHeaderSize)
	data := pdbtest.Container(512, [][]byte{nil, pdbtest.Builder{}.InfoStream(), nil, dbi})

	_, err := NewReader("x.pdb", bytes.NewReader(data))
	assert.ErrorIs(t, err, streams.ErrInvalidDBI)
}

func TestNamedStreams(t *testing.T) {
	p := openBytes(t, "a.pdb", pdbtest.Builder{
		NamedStreams: map[string]uint32{"/names": 7, "/LinkInfo": 5},
	})

	assert.Equal(t, map[string]uint32{"/names": 7, "/LinkInfo": 5}, p.InfoStream().NamedStreams)
}

func TestLegacyStoreGUID(t *testing.T) {
	p := openBytes(t, "old.pdb", pdbtest.Builder{
		Version:   streams.PDBStreamVersionVC50,
		Signature: 0x12345678,
		Age:       5,
	})

	info := p.InfoStream()
	assert.False(t, info.HasGUID)
	assert.Equal(t, guid.FromSignature(0x12345678), info.GUID)
	assert.Equal(t, uint32(5), info.Age)
}

func TestExecutableName(t *testing.T) {
	tests := []struct {
		name    string
		pdbName string
		builder pdbtest.Builder
		want    string
	}{
		{
			name:    "windows path in env block",
			pdbName: "whatever.pdb",
			builder: pdbtest.Builder{ExePath: `C:\out\Release\game.exe`},
			want:    "game",
		},
		{
			name:    "posix path in env block",
			pdbName: "whatever.pdb",
			builder: pdbtest.Builder{ExePath: "/build/out/server.dll"},
			want:    "server",
		},
		{
			name:    "no linker module falls back to pdb name",
			pdbName: `D:\symbols\kernel32.pdb`,
			builder: pdbtest.Builder{WithDBI: true},
			want:    "kernel32",
		},
		{
			name:    "no debug info falls back to pdb name",
			pdbName: "/tmp/syms/app.v2.pdb",
			builder: pdbtest.Builder{},
			want:    "app.v2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := openBytes(t, tt.pdbName, tt.builder)
			assert.Equal(t, tt.want, p.ExecutableName())
		})
	}
}

func TestStem(t *testing.T) {
	assert.Equal(t, "a", stem("a.pdb"))
	assert.Equal(t, "a", stem(`C:\x\y\a.exe`))
	assert.Equal(t, ".hidden", stem("/x/.hidden"))
	assert.Equal(t, "noext", stem("dir/noext"))
}
