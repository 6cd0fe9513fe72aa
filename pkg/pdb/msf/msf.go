package msf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// unusedStreamSize marks a deleted or unused stream in the directory.
const unusedStreamSize = 0xFFFFFFFF

// MSF represents an opened MSF (Multi-Stream Format) file.
type MSF struct {
	src        io.ReaderAt
	closer     io.Closer
	superBlock *SuperBlock
	directory  *StreamDirectory
	streams    []*Stream
}

// Open opens an MSF file and parses its structure.
func Open(path string) (*MSF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	m, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	m.closer = f
	return m, nil
}

// NewReader parses an MSF container from r. The caller keeps ownership of r.
func NewReader(r io.ReaderAt) (*MSF, error) {
	m := &MSF{src: r}

	var err error
	m.superBlock, err = ReadSuperBlock(io.NewSectionReader(r, 0, SuperBlockSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	}

	if err := m.readStreamDirectory(); err != nil {
		return nil, fmt.Errorf("failed to read stream directory: %w", err)
	}

	m.buildStreams()
	return m, nil
}

// Close closes the MSF file. It is a no-op for containers built with NewReader.
func (m *MSF) Close() error {
	if m.closer == nil {
		return nil
	}
	err := m.closer.Close()
	m.closer = nil
	return err
}

// SuperBlock returns the MSF SuperBlock.
func (m *MSF) SuperBlock() *SuperBlock {
	return m.superBlock
}

// NumStreams returns the number of streams in the file.
func (m *MSF) NumStreams() int {
	return int(m.directory.NumStreams)
}

// Stream returns the stream at the given index.
func (m *MSF) Stream(index int) (*Stream, error) {
	if index < 0 || index >= len(m.streams) {
		return nil, fmt.Errorf("stream index %d out of range [0, %d)", index, len(m.streams))
	}
	return m.streams[index], nil
}

// StreamReader returns a reader for the stream at the given index.
func (m *MSF) StreamReader(index int) (*StreamReader, error) {
	s, err := m.Stream(index)
	if err != nil {
		return nil, err
	}
	return NewStreamReader(s), nil
}

// BlockSize returns the block size used by this MSF file.
func (m *MSF) BlockSize() uint32 {
	return m.superBlock.BlockSize
}

// readAt fills p from the container at off. A short read is an error.
func (m *MSF) readAt(p []byte, off int64) (int, error) {
	n, err := m.src.ReadAt(p, off)
	if n == len(p) {
		return n, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

func (m *MSF) blockOffset(block uint32) int64 {
	return int64(block) * int64(m.superBlock.BlockSize)
}

// readStreamDirectory reads the block map and the directory blocks it lists.
func (m *MSF) readStreamDirectory() error {
	numDirBlocks := m.superBlock.NumDirectoryBlocks()

	rawMap := make([]byte, numDirBlocks*4)
	if _, err := m.readAt(rawMap, m.blockOffset(m.superBlock.BlockMapAddr)); err != nil {
		return fmt.Errorf("%w: failed to read block map: %v", ErrCorrupt, err)
	}

	// Grow the directory as blocks are read so a bogus size cannot force a
	// large allocation before the file runs out.
	blockSize := m.superBlock.BlockSize
	remaining := m.superBlock.NumDirectoryBytes
	dirData := make([]byte, 0, min(remaining, blockSize))
	block := make([]byte, blockSize)
	for i := uint32(0); i < numDirBlocks; i++ {
		blockIdx := binary.LittleEndian.Uint32(rawMap[i*4:])
		if blockIdx >= m.superBlock.NumBlocks {
			return fmt.Errorf("%w: directory block %d beyond %d blocks", ErrCorrupt, blockIdx, m.superBlock.NumBlocks)
		}
		toRead := min(remaining, blockSize)
		if _, err := m.readAt(block[:toRead], m.blockOffset(blockIdx)); err != nil {
			return fmt.Errorf("%w: failed to read directory block %d: %v", ErrCorrupt, blockIdx, err)
		}
		dirData = append(dirData, block[:toRead]...)
		remaining -= toRead
	}

	return m.parseStreamDirectory(dirData)
}

// parseStreamDirectory parses the stream directory from raw bytes.
func (m *MSF) parseStreamDirectory(data []byte) error {
	r := bytes.NewReader(data)

	var numStreams uint32
	if err := binary.Read(r, binary.LittleEndian, &numStreams); err != nil {
		return fmt.Errorf("%w: failed to read NumStreams: %v", ErrCorrupt, err)
	}
	if uint64(numStreams)*4 > uint64(r.Len()) {
		return fmt.Errorf("%w: directory claims %d streams", ErrCorrupt, numStreams)
	}

	streamSizes := make([]uint32, numStreams)
	if err := binary.Read(r, binary.LittleEndian, streamSizes); err != nil {
		return fmt.Errorf("%w: failed to read stream sizes: %v", ErrCorrupt, err)
	}

	blockSize := m.superBlock.BlockSize
	streamBlocks := make([][]uint32, numStreams)
	for i, size := range streamSizes {
		if size == unusedStreamSize {
			continue
		}
		numBlocks := blocksFor(size, blockSize)
		if uint64(numBlocks)*4 > uint64(r.Len()) {
			return fmt.Errorf("%w: block list for stream %d truncated", ErrCorrupt, i)
		}
		blocks := make([]uint32, numBlocks)
		if err := binary.Read(r, binary.LittleEndian, blocks); err != nil {
			return fmt.Errorf("%w: failed to read block list for stream %d: %v", ErrCorrupt, i, err)
		}
		for _, b := range blocks {
			if b >= m.superBlock.NumBlocks {
				return fmt.Errorf("%w: stream %d references block %d beyond %d blocks", ErrCorrupt, i, b, m.superBlock.NumBlocks)
			}
		}
		streamBlocks[i] = blocks
	}

	m.directory = &StreamDirectory{
		NumStreams:   numStreams,
		StreamSizes:  streamSizes,
		StreamBlocks: streamBlocks,
	}
	return nil
}

// buildStreams creates Stream objects for all streams in the directory.
func (m *MSF) buildStreams() {
	m.streams = make([]*Stream, m.directory.NumStreams)
	for i, size := range m.directory.StreamSizes {
		if size == unusedStreamSize {
			m.streams[i] = &Stream{msf: m}
			continue
		}
		m.streams[i] = &Stream{
			msf:    m,
			size:   size,
			blocks: m.directory.StreamBlocks[i],
		}
	}
}
