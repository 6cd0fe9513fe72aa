package msf

import (
	"fmt"
	"io"
)

// Stream represents a single stream within an MSF file.
// Streams are composed of potentially non-contiguous blocks.
type Stream struct {
	msf    *MSF
	size   uint32
	blocks []uint32
}

// Size returns the size of the stream in bytes.
func (s *Stream) Size() uint32 {
	return s.size
}

// Blocks returns the block indices that make up this stream.
func (s *Stream) Blocks() []uint32 {
	return s.blocks
}

// ReadAll reads the entire stream contents into a byte slice.
func (s *Stream) ReadAll() ([]byte, error) {
	if capacity := uint64(len(s.blocks)) * uint64(s.msf.superBlock.BlockSize); uint64(s.size) > capacity {
		return nil, fmt.Errorf("%w: stream of %d bytes backed by %d bytes of blocks", ErrCorrupt, s.size, capacity)
	}
	data := make([]byte, s.size)
	if _, err := io.ReadFull(NewStreamReader(s), data); err != nil {
		return nil, err
	}
	return data, nil
}

// StreamReader provides sequential read access to a stream's data,
// handling the non-contiguous block layout transparently.
type StreamReader struct {
	stream *Stream
	offset int64
}

// NewStreamReader creates a new reader for the given stream.
func NewStreamReader(s *Stream) *StreamReader {
	return &StreamReader{stream: s}
}

// Read implements io.Reader for streaming data from non-contiguous blocks.
func (sr *StreamReader) Read(p []byte) (int, error) {
	size := int64(sr.stream.size)
	if sr.offset >= size {
		return 0, io.EOF
	}

	blockSize := int64(sr.stream.msf.superBlock.BlockSize)
	total := 0
	for len(p) > 0 && sr.offset < size {
		blockIdx := sr.offset / blockSize
		if blockIdx >= int64(len(sr.stream.blocks)) {
			return total, fmt.Errorf("%w: stream offset %d has no backing block", ErrCorrupt, sr.offset)
		}
		posInBlock := sr.offset % blockSize

		toRead := int64(len(p))
		if rem := blockSize - posInBlock; toRead > rem {
			toRead = rem
		}
		if rem := size - sr.offset; toRead > rem {
			toRead = rem
		}

		fileOffset := sr.stream.msf.blockOffset(sr.stream.blocks[blockIdx]) + posInBlock
		n, err := sr.stream.msf.readAt(p[:toRead], fileOffset)
		total += n
		sr.offset += int64(n)
		if err != nil {
			return total, err
		}
		p = p[n:]
	}
	return total, nil
}

// Seek implements io.Seeker. Offsets are clamped to the stream bounds.
func (sr *StreamReader) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = sr.offset + offset
	case io.SeekEnd:
		newOffset = int64(sr.stream.size) + offset
	default:
		return sr.offset, fmt.Errorf("invalid whence %d", whence)
	}

	if newOffset < 0 {
		newOffset = 0
	}
	if newOffset > int64(sr.stream.size) {
		newOffset = int64(sr.stream.size)
	}
	sr.offset = newOffset
	return sr.offset, nil
}

// StreamDirectory represents the directory of all streams in the MSF file.
type StreamDirectory struct {
	NumStreams   uint32
	StreamSizes  []uint32
	StreamBlocks [][]uint32
}
