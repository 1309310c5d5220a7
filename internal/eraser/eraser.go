// Package eraser destroys file contents by overwriting them in place
// before unlinking.
//
// Every file receives exactly three passes over its current length:
// random bytes, a fixed fill byte, random bytes. Each pass is synced to
// storage before the next one starts. Data is written in fixed-size chunks
// so memory use does not depend on file size.
package eraser

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/illarion/photovault/internal/errs"
	"github.com/illarion/photovault/internal/metrics"
)

// Passes is the number of overwrite passes per file.
const Passes = 3

// DefaultChunkSize bounds the write buffer.
const DefaultChunkSize = 64 * 1024

var (
	// ErrAccessDenied is returned when the file cannot be opened for writing.
	ErrAccessDenied = errors.New("access denied")
	// ErrOverwriteFailed matches any *OverwriteError.
	ErrOverwriteFailed = errors.New("overwrite failed")
)

// OverwriteError reports the pass (1-based) that failed. The file is left
// in its partially overwritten state.
type OverwriteError struct {
	Pass int
	Err  error
}

func (e *OverwriteError) Error() string {
	return fmt.Sprintf("overwrite pass %d failed: %v", e.Pass, e.Err)
}

func (e *OverwriteError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrOverwriteFailed) hold for any pass.
func (e *OverwriteError) Is(target error) bool { return target == ErrOverwriteFailed }

// PassFunc observes a completed pass.
type PassFunc func(path string, pass int, written int64)

// Eraser performs secure deletion. The zero value is not usable; use New.
type Eraser struct {
	mu sync.Mutex

	chunkSize int
	fill      byte
	random    io.Reader
	onPass    PassFunc
	log       zerolog.Logger
}

// Option configures an Eraser.
type Option func(*Eraser)

// WithChunkSize sets the overwrite buffer size. Non-positive values are ignored.
func WithChunkSize(n int) Option {
	return func(e *Eraser) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithFillByte sets the byte written on the second pass.
func WithFillByte(b byte) Option {
	return func(e *Eraser) { e.fill = b }
}

// WithRandom replaces crypto/rand as the source for passes 1 and 3.
func WithRandom(r io.Reader) Option {
	return func(e *Eraser) { e.random = r }
}

// WithPassHook registers an observer called after each synced pass.
func WithPassHook(fn PassFunc) Option {
	return func(e *Eraser) { e.onPass = fn }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Eraser) { e.log = l }
}

// New creates an Eraser.
func New(opts ...Option) *Eraser {
	e := &Eraser{
		chunkSize: DefaultChunkSize,
		random:    rand.Reader,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Erase overwrites path three times and removes it.
func (e *Eraser) Erase(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.erase(path)
}

// EraseMany erases each path independently. The result holds one entry per
// path; a nil value means success.
func (e *Eraser) EraseMany(paths []string) map[string]error {
	e.mu.Lock()
	defer e.mu.Unlock()

	results := make(map[string]error, len(paths))
	for _, p := range paths {
		results[p] = e.erase(p)
	}
	return results
}

func (e *Eraser) erase(path string) error {
	const op = "eraser.Erase"

	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return errs.E(errs.ErrNotFound, op, err)
	}
	if err != nil {
		return errs.E(errs.ErrIO, op, err)
	}
	if !info.Mode().IsRegular() {
		return errs.Errorf(errs.ErrInvalidInput, op, "not a regular file: %s", path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return errs.E(errs.ErrIO, op, fmt.Errorf("%w: %w", ErrAccessDenied, err))
		}
		return errs.E(errs.ErrIO, op, err)
	}

	size := info.Size()
	buf := make([]byte, min(int64(e.chunkSize), max(size, 1)))
	for pass := 1; pass <= Passes; pass++ {
		if err := e.overwrite(f, size, buf, pass); err != nil {
			f.Close()
			e.log.Warn().Str("path", path).Int("pass", pass).Err(err).Msg("secure erase aborted")
			return errs.E(errs.ErrIO, op, &OverwriteError{Pass: pass, Err: err})
		}
		metrics.ErasePasses.Inc()
		if e.onPass != nil {
			e.onPass(path, pass, size)
		}
	}

	if err := f.Close(); err != nil {
		return errs.E(errs.ErrIO, op, err)
	}
	if err := os.Remove(path); err != nil {
		return errs.E(errs.ErrIO, op, err)
	}
	return nil
}

func (e *Eraser) overwrite(f *os.File, size int64, buf []byte, pass int) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}

	random := pass != 2
	if !random {
		for i := range buf {
			buf[i] = e.fill
		}
	}

	for remaining := size; remaining > 0; {
		chunk := buf[:min(int64(len(buf)), remaining)]
		if random {
			if _, err := io.ReadFull(e.random, chunk); err != nil {
				return fmt.Errorf("random source: %w", err)
			}
		}
		n, err := f.Write(chunk)
		if err != nil {
			return err
		}
		remaining -= int64(n)
	}

	return f.Sync()
}
