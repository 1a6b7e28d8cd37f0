package artifactstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fieldnode/sensornode/internal/iox"
	"github.com/fieldnode/sensornode/internal/types"
)

// Store wraps a root directory standing in for the SD card mount point.
// All paths it hands out or accepts are slash-separated and rooted at
// Root, matching the board's single-partition SD_MMC layout.
type Store struct {
	Root string

	mu     sync.Mutex // guards manifest directory creation
	paused bool
}

// SetCapturePaused mirrors capture_paused: while true, WritePhoto fails
// rather than writing a new photo into a disk the retention controller
// has flagged as critically low. Set by the scheduler during an
// emergency retention sweep, the same trigger that pauses audio in
// vad.Machine.SetCapturePaused.
func (s *Store) SetCapturePaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

// New returns a Store rooted at root. root must already exist; New does
// not create it, mirroring the firmware's assumption that SD_MMC.begin()
// has already run.
func New(root string) *Store {
	return &Store{Root: root}
}

func (s *Store) abs(relPath string) string {
	return filepath.Join(s.Root, filepath.FromSlash(relPath))
}

// DateFolder returns the photo folder for the given time, or "/unsynced"
// if synced is false, per build_date_folder.
func DateFolder(t time.Time, synced bool) string {
	if !synced {
		return "/unsynced"
	}
	return t.Format("/20060102")
}

// PhotoFilename returns the photo filename for seq, per build_filename.
// When synced is false the board falls back to a seq-only name since the
// clock cannot be trusted for the HHMMSS prefix.
func PhotoFilename(t time.Time, synced bool, seq uint32) string {
	if !synced {
		return fmt.Sprintf("/img_%d.jpg", seq)
	}
	return fmt.Sprintf("/%02d%02d%02d_%06d.jpg", t.Hour(), t.Minute(), t.Second(), seq)
}

// AudioFolder returns the audio folder for the given time, per
// build_audio_folder.
func AudioFolder(t time.Time, synced bool) string {
	if !synced {
		return "/unsynced_audio"
	}
	return t.Format("/audio/20060102")
}

// AudioFilename returns the audio filename for seq, per
// build_audio_filename.
func AudioFilename(t time.Time, synced bool, seq uint32) string {
	if !synced {
		return fmt.Sprintf("/audio_%d.wav", seq)
	}
	return fmt.Sprintf("/%02d%02d%02d_%06d.wav", t.Hour(), t.Minute(), t.Second(), seq)
}

// EnsureFolder creates folder (and any /audio parent it needs) if it does
// not already exist, mirroring ensure_audio_folder's handling of the
// shared /audio parent directory.
func (s *Store) EnsureFolder(folder string) error {
	if strings.HasPrefix(folder, "/audio/") {
		if err := os.MkdirAll(s.abs("/audio"), 0o755); err != nil {
			return newStoreError(classifyFSErr(err), "mkdir", "/audio", err)
		}
	}
	if err := os.MkdirAll(s.abs(folder), 0o755); err != nil {
		return newStoreError(classifyFSErr(err), "mkdir", folder, err)
	}
	return nil
}

// WritePhoto writes jpeg bytes to folder/filename and returns the artifact
// relative path, per capture_and_save's file-write step. Fails with
// ErrCapturePaused if capture is currently paused.
func (s *Store) WritePhoto(folder, filename string, jpeg []byte) (string, error) {
	s.mu.Lock()
	paused := s.paused
	s.mu.Unlock()
	if paused {
		return "", newStoreError(ErrCapturePaused, "write", folder+filename, ErrCapturePaused)
	}

	if err := s.EnsureFolder(folder); err != nil {
		return "", err
	}
	relPath := folder + filename
	if err := os.WriteFile(s.abs(relPath), jpeg, 0o644); err != nil {
		return "", newStoreError(classifyFSErr(err), "write", relPath, err)
	}
	return relPath, nil
}

// ManifestPath returns the canonical manifest path for seq.
func ManifestPath(seq uint32) string {
	return types.ManifestPath(seq)
}

// WriteManifestAtomic serializes m to JSON and writes it via a tmp file
// that is fsynced and closed; any existing manifest for the same seq is
// then removed and the tmp file renamed into place. This matches
// write_manifest_atomic: a crash leaves the old manifest, the new one, or
// (between the remove and the rename) none, never a half-written one.
func (s *Store) WriteManifestAtomic(m *types.Manifest) error {
	s.mu.Lock()
	manifestDir := s.abs("/manifests")
	if err := os.MkdirAll(manifestDir, 0o755); err != nil {
		s.mu.Unlock()
		return newStoreError(classifyFSErr(err), "mkdir", "/manifests", err)
	}
	s.mu.Unlock()

	relPath := ManifestPath(m.Seq)
	finalPath := s.abs(relPath)
	tmpPath := finalPath + ".tmp"

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("artifactstore: marshal manifest seq=%d: %w", m.Seq, err)
	}

	f, err := os.Create(tmpPath)
	if err != nil {
		return newStoreError(classifyFSErr(err), "create", relPath+".tmp", err)
	}
	if _, err := f.Write(payload); err != nil {
		iox.DiscardClose(f)
		os.Remove(tmpPath)
		return newStoreError(classifyFSErr(err), "write", relPath+".tmp", err)
	}
	if err := f.Sync(); err != nil {
		iox.DiscardClose(f)
		os.Remove(tmpPath)
		return newStoreError(classifyFSErr(err), "sync", relPath+".tmp", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return newStoreError(classifyFSErr(err), "close", relPath+".tmp", err)
	}

	if err := os.Remove(finalPath); err != nil && !os.IsNotExist(err) {
		os.Remove(tmpPath)
		return newStoreError(classifyFSErr(err), "remove", relPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return newStoreError(classifyFSErr(err), "rename", relPath, err)
	}
	return nil
}

// LoadManifest reads and parses the manifest at relPath, filling in
// inferred item_type/content_type when the stored JSON omits them, per
// load_manifest.
func (s *Store) LoadManifest(relPath string) (*types.Manifest, error) {
	data, err := os.ReadFile(s.abs(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newStoreError(ErrNotFound, "read", relPath, err)
		}
		return nil, newStoreError(classifyFSErr(err), "read", relPath, err)
	}

	var m types.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, newStoreError(ErrCorrupt, "parse", relPath, err)
	}
	return m.Filled(), nil
}

// IterManifests lists every manifest seq present under /manifests, sorted
// ascending. The firmware has no such bulk listing (it scans lazily via
// find_oldest_pending), but the host build needs one to drive the
// ordering helpers in internal/ordering without re-walking the directory
// for every call.
func (s *Store) IterManifests() ([]uint32, error) {
	dir := s.abs("/manifests")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newStoreError(classifyFSErr(err), "readdir", "/manifests", err)
	}

	var seqs []uint32
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		raw := strings.TrimSuffix(name, ".json")
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			continue
		}
		seqs = append(seqs, uint32(v))
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

// OpenArtifact opens the artifact file at relPath for reading, used by the
// upload engine to stream artifact bytes.
func (s *Store) OpenArtifact(relPath string) (*os.File, error) {
	f, err := os.Open(s.abs(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newStoreError(ErrNotFound, "open", relPath, err)
		}
		return nil, newStoreError(classifyFSErr(err), "open", relPath, err)
	}
	return f, nil
}

// RemoveArtifact deletes the artifact and its manifest, per
// enforce_retention's deletion step. Missing files are not an error: a
// previous partial sweep may have already removed one half of the pair.
func (s *Store) RemoveArtifact(relPath string, seq uint32) error {
	if err := os.Remove(s.abs(relPath)); err != nil && !os.IsNotExist(err) {
		return newStoreError(classifyFSErr(err), "remove", relPath, err)
	}
	manifestRel := ManifestPath(seq)
	if err := os.Remove(s.abs(manifestRel)); err != nil && !os.IsNotExist(err) {
		return newStoreError(classifyFSErr(err), "remove", manifestRel, err)
	}
	return nil
}

// RemoveFile deletes the artifact at relPath without touching any
// manifest. Used to discard an audio clip that finished shorter than the
// minimum keep duration and so never had a manifest written for it.
func (s *Store) RemoveFile(relPath string) error {
	if err := os.Remove(s.abs(relPath)); err != nil && !os.IsNotExist(err) {
		return newStoreError(classifyFSErr(err), "remove", relPath, err)
	}
	return nil
}

func classifyFSErr(err error) error {
	switch {
	case os.IsNotExist(err):
		return ErrNotFound
	case os.IsPermission(err):
		return ErrPermission
	case errors.Is(err, syscall.ENOSPC):
		return ErrDiskFull
	default:
		return ErrDiskFull
	}
}
