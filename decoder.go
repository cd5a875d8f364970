package resfs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Value is a decoded structured document: a tree of map[string]any, []any
// and scalars.
type Value = any

// Decoder turns the text of a structured file into a Value. source labels the
// text in diagnostics, usually the address it was read from.
type Decoder interface {
	Decode(source, text string) (Value, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(source, text string) (Value, error)

// Decode calls f.
func (f DecoderFunc) Decode(source, text string) (Value, error) {
	return f(source, text)
}

// ErrorLogger is implemented by decoder errors that carry a human-readable,
// possibly multi-line diagnostic. ReadStructured copies it into FormatError.Log.
type ErrorLogger interface {
	ErrorLog() string
}

// DecoderTable maps file extensions, including the leading dot, to decoders.
type DecoderTable struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewDecoderTable creates an empty table.
func NewDecoderTable() *DecoderTable {
	return &DecoderTable{decoders: make(map[string]Decoder)}
}

// Register adds or replaces the decoder for ext.
func (t *DecoderTable) Register(ext string, d Decoder) error {
	if ext == "" || ext[0] != '.' {
		return fmt.Errorf("extension %q must start with a dot", ext)
	}
	if d == nil {
		return errors.New("decoder cannot be nil")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.decoders[ext] = d
	return nil
}

// Lookup returns the decoder registered for ext.
func (t *DecoderTable) Lookup(ext string) (Decoder, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.decoders[ext]
	return d, ok
}

// Extensions returns the registered extensions in sorted order.
func (t *DecoderTable) Extensions() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	exts := make([]string, 0, len(t.decoders))
	for ext := range t.decoders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Clone returns an independent copy of the table.
func (t *DecoderTable) Clone() *DecoderTable {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := NewDecoderTable()
	for ext, d := range t.decoders {
		c.decoders[ext] = d
	}
	return c
}

// Decode runs the decoder registered for ext over text. An unregistered
// extension fails with ErrUnknownFormat; a decoder failure is returned as a
// *FormatError.
func (t *DecoderTable) Decode(ext, source, text string) (Value, error) {
	d, ok := t.Lookup(ext)
	if !ok {
		return nil, &PathError{Op: "decode", Path: source, Err: fmt.Errorf("%w: %q", ErrUnknownFormat, ext)}
	}
	v, err := d.Decode(source, text)
	if err != nil {
		return nil, newFormatError(source, ext, err)
	}
	return v, nil
}

func newFormatError(source, ext string, err error) *FormatError {
	log := err.Error()
	var logger ErrorLogger
	if errors.As(err, &logger) {
		log = logger.ErrorLog()
	}
	return &FormatError{Source: source, Extension: ext, Log: log, Err: err}
}

// ============================================================================
// Registry dispatch
// ============================================================================

// IsInterchangeFormat reports whether a decoder is registered for ext.
func (r *Registry) IsInterchangeFormat(ext string) bool {
	_, ok := r.decoders.Lookup(ext)
	return ok
}

// IsDataFile reports whether p has an extension with a registered decoder.
func (r *Registry) IsDataFile(p Path) bool {
	return r.IsInterchangeFormat(p.Extension())
}

// ReadStructured reads p and decodes it with the decoder registered for its
// extension. An unknown extension fails with ErrUnknownFormat before any I/O.
func (r *Registry) ReadStructured(ctx context.Context, p Path) (Value, error) {
	ext := p.Extension()
	if !r.IsInterchangeFormat(ext) {
		return nil, &PathError{Op: "readstructured", Path: p.String(), Err: fmt.Errorf("%w: %q", ErrUnknownFormat, ext)}
	}
	text, err := r.ReadString(ctx, p)
	if err != nil {
		return nil, err
	}
	return r.decoders.Decode(ext, p.String(), text)
}
