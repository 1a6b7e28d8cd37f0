// Package artifactstore implements the node's on-disk layout: photo and
// audio files under date-sharded folders, a JSON manifest sidecar per
// artifact, and the atomic write discipline that keeps both crash-safe.
package artifactstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for storage failure classification. Use errors.Is(err,
// ErrXxx) rather than string matching.
var (
	// ErrNotMounted indicates the store's root directory is unavailable,
	// mirroring sd_ok being false on the board.
	ErrNotMounted = errors.New("storage not mounted")

	// ErrDiskFull indicates the filesystem is out of space (ENOSPC). It is
	// also the classification for any filesystem error that is not a
	// missing path or a permission failure.
	ErrDiskFull = errors.New("no space left on device")

	// ErrNotFound indicates a manifest or artifact path does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt indicates a manifest failed to parse as JSON.
	ErrCorrupt = errors.New("manifest corrupt")

	// ErrPermission indicates the process lacks access to a path.
	ErrPermission = errors.New("permission denied")

	// ErrCapturePaused indicates WritePhoto was called while capture is
	// paused, mirroring capture_and_save's early return when
	// capture_paused is set.
	ErrCapturePaused = errors.New("capture paused")
)

// StoreError wraps an underlying error with storage classification,
// preserving the chain for errors.As.
type StoreError struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func newStoreError(kind error, op, path string, err error) *StoreError {
	return &StoreError{Kind: kind, Op: op, Path: path, Err: err}
}
