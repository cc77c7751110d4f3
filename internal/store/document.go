// Package store persists configuration documents on disk and serialises
// read-modify-write cycles on them.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// registry hands out one mutex per absolute path so that every Document
// opened on the same file shares the same writer lock.
var registry = struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}{locks: make(map[string]*sync.Mutex)}

func pathLock(abs string) *sync.Mutex {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	l, ok := registry.locks[abs]
	if !ok {
		l = &sync.Mutex{}
		registry.locks[abs] = l
	}
	return l
}

// normalizer is implemented by documents that need their maps initialised
// after decoding.
type normalizer interface {
	Normalize()
}

// Document is a file-backed value of type T. The in-memory copy is loaded
// lazily and treated as a read-through cache of the file.
//
// Readers use Snapshot. Writers go through Update, or bracket their work with
// Lock/Unlock when several documents change together.
type Document[T any] struct {
	path  string
	codec Codec
	write *sync.Mutex

	mu     sync.Mutex
	value  *T
	loaded bool
}

// Open returns a document bound to path. The file is not read until first use.
func Open[T any](path string) (*Document[T], error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return &Document[T]{
		path:  abs,
		codec: CodecFor(abs),
		write: pathLock(abs),
	}, nil
}

func (d *Document[T]) Path() string { return d.path }

// Exists reports whether the backing file is present.
func (d *Document[T]) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// Load returns the cached value, reading the file on first use.
func (d *Document[T]) Load() *T {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		d.value = d.read()
		d.loaded = true
	}
	return d.value
}

// Reload discards the cached value and reads the file again.
func (d *Document[T]) Reload() *T {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = d.read()
	d.loaded = true
	return d.value
}

// Invalidate drops the cached value. The next Load reads the file.
func (d *Document[T]) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = nil
	d.loaded = false
}

// Snapshot returns a deep copy of the current value, waiting for any writer
// holding the lock to finish.
func (d *Document[T]) Snapshot() (T, error) {
	d.Lock()
	defer d.Unlock()
	return d.Copy()
}

// Copy returns a deep copy of the current value without taking the writer
// lock. Use it while already holding the lock.
func (d *Document[T]) Copy() (T, error) {
	current := d.Load()

	var out T
	data, err := d.codec.Marshal(current)
	if err != nil {
		return out, fmt.Errorf("failed to copy %s: %w", d.path, err)
	}
	if err := d.codec.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to copy %s: %w", d.path, err)
	}
	normalize(&out)
	return out, nil
}

// Lock acquires the path-scoped writer lock.
func (d *Document[T]) Lock() { d.write.Lock() }

// Unlock releases the path-scoped writer lock.
func (d *Document[T]) Unlock() { d.write.Unlock() }

// Update runs fn against a value freshly read from disk and persists the
// result. fn returning an error leaves the file untouched and the cache
// invalidated.
func (d *Document[T]) Update(ctx context.Context, fn func(*T) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.Lock()
	defer d.Unlock()

	value := d.Reload()
	if err := fn(value); err != nil {
		d.Invalidate()
		return err
	}
	return d.Save(value)
}

// Save writes value to disk atomically and makes it the cached value. The
// caller's value is written even if the cache was dropped in the meantime.
// Callers must hold the writer lock.
func (d *Document[T]) Save(value *T) error {
	if value == nil {
		return fmt.Errorf("failed to encode %s: nil document", d.path)
	}
	data, err := d.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", d.path, err)
	}

	if err := writeAtomic(d.path, data); err != nil {
		return err
	}

	d.mu.Lock()
	d.value = value
	d.loaded = true
	d.mu.Unlock()

	log.Debug().Str("path", d.path).Str("codec", d.codec.Name()).Int("bytes", len(data)).Msg("Document saved")
	return nil
}

// read decodes the file into a fresh value. I/O and decode errors degrade to
// an empty document.
func (d *Document[T]) read() *T {
	value := new(T)
	data, err := os.ReadFile(d.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Debug().Str("path", d.path).Msg("Document not found, starting empty")
	case err != nil:
		log.Warn().Err(err).Str("path", d.path).Msg("Failed to read document, starting empty")
	case len(data) > 0:
		if err := d.codec.Unmarshal(data, value); err != nil {
			log.Warn().Err(err).Str("path", d.path).Msg("Failed to decode document, starting empty")
			value = new(T)
		}
	}
	normalize(value)
	return value
}

func normalize(v any) {
	if n, ok := v.(normalizer); ok {
		n.Normalize()
	}
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}
