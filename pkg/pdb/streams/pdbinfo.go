// Package streams provides parsers for the various PDB streams.
package streams

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jtang613/pdbident/pkg/pdb/guid"
)

// PDB Stream versions
const (
	PDBStreamVersionVC2     = 19941610
	PDBStreamVersionVC4     = 19950623
	PDBStreamVersionVC41    = 19950814
	PDBStreamVersionVC50    = 19960307
	PDBStreamVersionVC98    = 19970604
	PDBStreamVersionVC70Dep = 19990604
	PDBStreamVersionVC70    = 20000404
	PDBStreamVersionVC80    = 20030901
	PDBStreamVersionVC110   = 20091201
	PDBStreamVersionVC140   = 20140508
)

// ErrTruncatedInfo is returned when the PDB info stream is shorter than its fixed header.
var ErrTruncatedInfo = errors.New("truncated PDB info stream")

// PDBInfo represents the PDB Info Stream (Stream 1).
type PDBInfo struct {
	Version      uint32
	Signature    uint32 // Timestamp of PDB creation
	Age          uint32 // Number of times PDB has been written
	GUID         guid.GUID
	HasGUID      bool              // False for stores older than VC70
	NamedStreams map[string]uint32 // Map of named streams to stream indices
}

// pdbInfoHeader is the fixed header shared by every version.
type pdbInfoHeader struct {
	Version   uint32
	Signature uint32
	Age       uint32
}

// HasGUIDField reports whether stores of the given version carry a GUID after the header.
func HasGUIDField(version uint32) bool {
	return version >= PDBStreamVersionVC70Dep
}

// ReadPDBInfo parses the PDB info stream.
func ReadPDBInfo(r io.Reader) (*PDBInfo, error) {
	var header pdbInfoHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedInfo, err)
	}

	info := &PDBInfo{
		Version:      header.Version,
		Signature:    header.Signature,
		Age:          header.Age,
		NamedStreams: make(map[string]uint32),
	}

	if HasGUIDField(header.Version) {
		if _, err := io.ReadFull(r, info.GUID[:]); err != nil {
			return nil, fmt.Errorf("%w: missing GUID: %v", ErrTruncatedInfo, err)
		}
		info.HasGUID = true
	} else {
		info.GUID = guid.FromSignature(header.Signature)
	}

	// Named streams might not be present in older PDBs, so a short map is not an error.
	_ = readNamedStreams(r, info.NamedStreams)

	return info, nil
}

const maxNameBufferSize = 1 << 20

// readNamedStreams reads the serialized name -> stream index hash table.
// Format: StringTableSize + StringTable + Size + Capacity + Present + Deleted + pairs.
func readNamedStreams(r io.Reader, out map[string]uint32) error {
	var strBufSize uint32
	if err := binary.Read(r, binary.LittleEndian, &strBufSize); err != nil {
		return err
	}
	if strBufSize > maxNameBufferSize {
		return fmt.Errorf("name buffer of %d bytes", strBufSize)
	}
	strBuf := make([]byte, strBufSize)
	if _, err := io.ReadFull(r, strBuf); err != nil {
		return err
	}

	var hashSize, hashCapacity uint32
	if err := binary.Read(r, binary.LittleEndian, &hashSize); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &hashCapacity); err != nil {
		return err
	}

	presentWords, err := readBitVector(r)
	if err != nil {
		return err
	}
	if _, err := readBitVector(r); err != nil {
		return err
	}

	if limit := uint32(len(presentWords)) * 32; hashCapacity > limit {
		hashCapacity = limit
	}
	for i := uint32(0); i < hashCapacity; i++ {
		if !isBitSet(presentWords, i) {
			continue
		}

		var pair struct {
			KeyOffset   uint32
			StreamIndex uint32
		}
		if err := binary.Read(r, binary.LittleEndian, &pair); err != nil {
			return err
		}
		if pair.KeyOffset < strBufSize {
			out[extractCString(strBuf[pair.KeyOffset:])] = pair.StreamIndex
		}
	}
	return nil
}

const maxBitVectorWords = 1 << 16

func readBitVector(r io.Reader) ([]uint32, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	if count > maxBitVectorWords {
		return nil, fmt.Errorf("bit vector of %d words", count)
	}
	words := make([]uint32, count)
	if err := binary.Read(r, binary.LittleEndian, words); err != nil {
		return nil, err
	}
	return words, nil
}

// isBitSet checks if bit n is set in the bit vector.
func isBitSet(words []uint32, n uint32) bool {
	wordIdx := n / 32
	bitIdx := n % 32
	if wordIdx >= uint32(len(words)) {
		return false
	}
	return (words[wordIdx] & (1 << bitIdx)) != 0
}

// extractCString extracts a null-terminated string from bytes.
func extractCString(data []byte) string {
	idx := bytes.IndexByte(data, 0)
	if idx == -1 {
		return string(data)
	}
	return string(data[:idx])
}
