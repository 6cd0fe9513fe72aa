// Package report writes the identity header that opens a PDB document and
// the terminator that closes it.
package report

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jtang613/pdbident/internal/identity"
)

// Terminator closes the document opened by the header.
const Terminator = "</pdb>"

// ErrAlreadyOpen is returned when a second header is written.
var ErrAlreadyOpen = errors.New("report already opened")

// Header returns the header line for file, without a trailing newline.
// The file path is written exactly as given.
func Header(file string, rec identity.Record) string {
	return fmt.Sprintf(`<pdb file="%s" exe="%s" guid="%s" age="%d">`,
		file, rec.ExecutableName, rec.GUIDText, rec.Age)
}

// Writer emits a header/terminator pair. The terminator is only ever
// written after a header, and at most once.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	opened bool
	closed bool
}

// NewWriter returns a writer emitting to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Open writes the header, opening the document.
func (w *Writer) Open(file string, rec identity.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.opened {
		return ErrAlreadyOpen
	}
	if _, err := io.WriteString(w.out, Header(file, rec)+"\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	w.opened = true
	return nil
}

// IsOpen reports whether a header has been written and not yet closed.
func (w *Writer) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.opened && !w.closed
}

// Close writes the terminator if the document was opened. Further calls do nothing.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.opened || w.closed {
		return nil
	}
	w.closed = true
	if _, err := io.WriteString(w.out, Terminator+"\n"); err != nil {
		return fmt.Errorf("write terminator: %w", err)
	}
	return nil
}
