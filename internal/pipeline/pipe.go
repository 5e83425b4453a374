package pipeline

import (
	"os"
)

// PipeLink is a unidirectional byte channel between exactly two processes.
// The link owns both ends until they are moved out with TakeReader or
// TakeWriter; Close releases whatever it still owns.
type PipeLink struct {
	r *os.File
	w *os.File
}

// NewPipeLink creates an OS pipe.
func NewPipeLink() (*PipeLink, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	return &PipeLink{r: r, w: w}, nil
}

// TakeReader moves the read end out of the link. The caller becomes
// responsible for closing it. Returns nil if it was already taken.
func (l *PipeLink) TakeReader() *os.File {
	r := l.r
	l.r = nil
	return r
}

// TakeWriter moves the write end out of the link. The caller becomes
// responsible for closing it. Returns nil if it was already taken.
func (l *PipeLink) TakeWriter() *os.File {
	w := l.w
	l.w = nil
	return w
}

// Reader returns the read end without moving it.
func (l *PipeLink) Reader() *os.File {
	return l.r
}

// Close closes the ends still owned by the link. Safe to call repeatedly.
func (l *PipeLink) Close() error {
	var first error
	if l.r != nil {
		first = l.r.Close()
		l.r = nil
	}
	if l.w != nil {
		if err := l.w.Close(); err != nil && first == nil {
			first = err
		}
		l.w = nil
	}
	return first
}
