// Package msf implements parsing for Microsoft's Multi-Stream Format (MSF) container.
package msf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MSF 7.00 magic signature
var MSFMagic = []byte("Microsoft C/C++ MSF 7.00\r\n\x1aDS\x00\x00\x00")

var (
	// ErrInvalidMagic is returned when the file does not start with the MSF 7.00 magic.
	ErrInvalidMagic = errors.New("invalid MSF magic: not a valid PDB file")
	// ErrCorrupt is returned when the container structure is inconsistent.
	ErrCorrupt = errors.New("corrupt MSF container")
)

// SuperBlock is the header structure at the beginning of an MSF file.
// It contains metadata needed to navigate the file's stream structure.
type SuperBlock struct {
	Magic             [32]byte // Must be MSFMagic
	BlockSize         uint32   // Block size in bytes (512, 1024, 2048, or 4096)
	FreeBlockMapBlock uint32   // Index of active FPM block (1 or 2)
	NumBlocks         uint32   // Total number of blocks in file
	NumDirectoryBytes uint32   // Size of stream directory in bytes
	Unknown           uint32   // Reserved/unknown field
	BlockMapAddr      uint32   // Block index containing the stream directory block map
}

// SuperBlockSize is the size of the SuperBlock structure in bytes.
const SuperBlockSize = 56

// ValidBlockSizes are the allowed block sizes for MSF files.
var ValidBlockSizes = []uint32{512, 1024, 2048, 4096}

// ReadSuperBlock reads and validates the SuperBlock from the beginning of an MSF file.
func ReadSuperBlock(r io.Reader) (*SuperBlock, error) {
	var sb SuperBlock

	if _, err := io.ReadFull(r, sb.Magic[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrInvalidMagic
		}
		return nil, fmt.Errorf("failed to read magic: %w", err)
	}
	if !bytes.Equal(sb.Magic[:], MSFMagic) {
		return nil, ErrInvalidMagic
	}

	fields := []*uint32{
		&sb.BlockSize,
		&sb.FreeBlockMapBlock,
		&sb.NumBlocks,
		&sb.NumDirectoryBytes,
		&sb.Unknown,
		&sb.BlockMapAddr,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, fmt.Errorf("%w: truncated superblock: %v", ErrCorrupt, err)
		}
	}

	if !isValidBlockSize(sb.BlockSize) {
		return nil, fmt.Errorf("%w: invalid block size: %d", ErrCorrupt, sb.BlockSize)
	}
	if sb.FreeBlockMapBlock != 1 && sb.FreeBlockMapBlock != 2 {
		return nil, fmt.Errorf("%w: invalid FreeBlockMapBlock: %d (must be 1 or 2)", ErrCorrupt, sb.FreeBlockMapBlock)
	}
	if sb.BlockMapAddr >= sb.NumBlocks {
		return nil, fmt.Errorf("%w: block map address %d beyond %d blocks", ErrCorrupt, sb.BlockMapAddr, sb.NumBlocks)
	}
	if sb.NumDirectoryBlocks() > sb.BlockSize/4 {
		return nil, fmt.Errorf("%w: stream directory of %d bytes does not fit one block map", ErrCorrupt, sb.NumDirectoryBytes)
	}

	return &sb, nil
}

// NumDirectoryBlocks returns the number of blocks needed to store the stream directory.
func (sb *SuperBlock) NumDirectoryBlocks() uint32 {
	return blocksFor(sb.NumDirectoryBytes, sb.BlockSize)
}

// blocksFor returns the number of blockSize blocks covering size bytes.
// Sizes near 4 GiB must not wrap, so the sum is taken in 64 bits.
func blocksFor(size, blockSize uint32) uint32 {
	return uint32((uint64(size) + uint64(blockSize) - 1) / uint64(blockSize))
}

// FileSize returns the expected file size based on block count.
func (sb *SuperBlock) FileSize() int64 {
	return int64(sb.NumBlocks) * int64(sb.BlockSize)
}

func isValidBlockSize(size uint32) bool {
	for _, valid := range ValidBlockSizes {
		if size == valid {
			return true
		}
	}
	return false
}
