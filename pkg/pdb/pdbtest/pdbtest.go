// Package pdbtest builds small synthetic PDB files for tests.
package pdbtest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/jtang613/pdbident/pkg/pdb/codeview"
	"github.com/jtang613/pdbident/pkg/pdb/guid"
	"github.com/jtang613/pdbident/pkg/pdb/msf"
	"github.com/jtang613/pdbident/pkg/pdb/streams"
)

// Stream numbers used by the builder.
const (
	streamOldDirectory = iota
	streamPDB
	streamTPI
	streamDBI
	streamIPI
	streamLinkerSymbols
)

// Builder describes the PDB to generate. The zero value is a VC70 store
// without debug info.
type Builder struct {
	BlockSize    uint32 // Defaults to 512
	Version      uint32 // PDB info stream version, defaults to VC70
	Signature    uint32
	Age          uint32
	GUID         guid.GUID
	NamedStreams map[string]uint32

	WithDBI bool   // Emit a DBI stream
	Machine uint16 // DBI machine type
	ExePath string // Linker S_ENVBLOCK "exe" entry; implies WithDBI
}

// Bytes returns the encoded MSF container.
func (b Builder) Bytes() []byte {
	blockSize := b.BlockSize
	if blockSize == 0 {
		blockSize = 512
	}

	streamData := make([][]byte, streamIPI+1)
	streamData[streamPDB] = b.InfoStream()
	if b.WithDBI || b.ExePath != "" {
		var linker []byte
		if b.ExePath != "" {
			linker = linkerSymbols(b.ExePath)
			streamData = append(streamData, linker)
		}
		streamData[streamDBI] = b.dbiStream(len(linker))
	}

	return Container(blockSize, streamData)
}

// WriteFile writes the container to dir/name and returns the path.
func (b Builder) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b.Bytes(), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// InfoStream returns the encoded PDB info stream.
func (b Builder) InfoStream() []byte {
	version := b.Version
	if version == 0 {
		version = streams.PDBStreamVersionVC70
	}

	var buf bytes.Buffer
	put(&buf, version, b.Signature, b.Age)
	if streams.HasGUIDField(version) {
		buf.Write(b.GUID[:])
	}

	names := make([]string, 0, len(b.NamedStreams))
	for name := range b.NamedStreams {
		names = append(names, name)
	}
	sort.Strings(names)

	var strBuf bytes.Buffer
	offsets := make([]uint32, len(names))
	for i, name := range names {
		offsets[i] = uint32(strBuf.Len())
		strBuf.WriteString(name)
		strBuf.WriteByte(0)
	}

	n := uint32(len(names))
	present := make([]uint32, (n+31)/32)
	for i := uint32(0); i < n; i++ {
		present[i/32] |= 1 << (i % 32)
	}

	put(&buf, uint32(strBuf.Len()))
	buf.Write(strBuf.Bytes())
	put(&buf, n, n, uint32(len(present)))
	put(&buf, present)
	put(&buf, uint32(0)) // deleted bit vector
	for i, name := range names {
		put(&buf, offsets[i], b.NamedStreams[name])
	}
	return buf.Bytes()
}

func (b Builder) dbiStream(linkerSymSize int) []byte {
	var modInfo bytes.Buffer
	if linkerSymSize > 0 {
		fixed := make([]byte, 64)
		binary.LittleEndian.PutUint16(fixed[34:], streamLinkerSymbols)
		binary.LittleEndian.PutUint32(fixed[36:], uint32(linkerSymSize))
		modInfo.Write(fixed)
		modInfo.WriteString(streams.LinkerModuleName)
		modInfo.WriteByte(0)
		modInfo.WriteByte(0) // empty object file name
		for modInfo.Len()%4 != 0 {
			modInfo.WriteByte(0)
		}
	}

	header := streams.DBIHeader{
		VersionSignature:  -1,
		VersionHeader:     streams.DBIStreamVersionV70,
		Age:               b.Age,
		GlobalStreamIndex: streams.NoStream,
		PublicStreamIndex: streams.NoStream,
		SymRecordStream:   streams.NoStream,
		ModInfoSize:       int32(modInfo.Len()),
		Machine:           b.Machine,
	}

	var buf bytes.Buffer
	put(&buf, header)
	buf.Write(modInfo.Bytes())
	return buf.Bytes()
}

// linkerSymbols encodes a C13 symbol substream holding S_OBJNAME and S_ENVBLOCK.
func linkerSymbols(exePath string) []byte {
	var buf bytes.Buffer
	put(&buf, uint32(codeview.CVSignatureC13))

	var obj bytes.Buffer
	put(&obj, uint32(0))
	obj.WriteString(streams.LinkerModuleName)
	obj.WriteByte(0)
	writeRecord(&buf, codeview.S_OBJNAME, obj.Bytes())

	var env bytes.Buffer
	env.WriteByte(0)
	for _, kv := range [][2]string{
		{"cwd", `C:\build`},
		{"exe", exePath},
		{"pdb", `C:\build\out.pdb`},
	} {
		env.WriteString(kv[0])
		env.WriteByte(0)
		env.WriteString(kv[1])
		env.WriteByte(0)
	}
	env.WriteByte(0)
	writeRecord(&buf, codeview.S_ENVBLOCK, env.Bytes())

	return buf.Bytes()
}

func writeRecord(buf *bytes.Buffer, kind uint16, data []byte) {
	put(buf, uint16(len(data)+2), kind)
	buf.Write(data)
}

// Container encodes arbitrary stream contents as an MSF container. Block 0
// holds the superblock, blocks 1-2 the free block maps, followed by the
// stream data, the directory and finally the block map.
func Container(blockSize uint32, streamData [][]byte) []byte {
	next := uint32(3)
	alloc := func(size int) []uint32 {
		n := (uint32(size) + blockSize - 1) / blockSize
		blocks := make([]uint32, n)
		for i := range blocks {
			blocks[i] = next
			next++
		}
		return blocks
	}

	streamBlocks := make([][]uint32, len(streamData))
	for i, data := range streamData {
		streamBlocks[i] = alloc(len(data))
	}

	var dir bytes.Buffer
	put(&dir, uint32(len(streamData)))
	for _, data := range streamData {
		put(&dir, uint32(len(data)))
	}
	for _, blocks := range streamBlocks {
		put(&dir, blocks)
	}
	dirBlocks := alloc(dir.Len())
	blockMapAddr := next
	next++

	file := make([]byte, int(next)*int(blockSize))
	writeBlocks := func(blocks []uint32, data []byte) {
		for i, blk := range blocks {
			chunk := data[i*int(blockSize):]
			if len(chunk) > int(blockSize) {
				chunk = chunk[:blockSize]
			}
			copy(file[int(blk)*int(blockSize):], chunk)
		}
	}
	for i, data := range streamData {
		writeBlocks(streamBlocks[i], data)
	}
	writeBlocks(dirBlocks, dir.Bytes())

	var blockMap bytes.Buffer
	put(&blockMap, dirBlocks)
	copy(file[int(blockMapAddr)*int(blockSize):], blockMap.Bytes())

	var super bytes.Buffer
	super.Write(msf.MSFMagic)
	put(&super, blockSize, uint32(1), next, uint32(dir.Len()), uint32(0), blockMapAddr)
	copy(file, super.Bytes())

	return file
}

func put(buf *bytes.Buffer, values ...any) {
	for _, v := range values {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
}
