package artifactstore

import (
	"errors"
	"testing"
	"time"

	"github.com/fieldnode/sensornode/internal/types"
)

func TestDateFolder_UnsyncedFallback(t *testing.T) {
	if got := DateFolder(time.Now(), false); got != "/unsynced" {
		t.Errorf("DateFolder(unsynced) = %q, want /unsynced", got)
	}
	ts := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	if got := DateFolder(ts, true); got != "/20260803" {
		t.Errorf("DateFolder(synced) = %q, want /20260803", got)
	}
}

func TestPhotoFilename_UnsyncedUsesSeqOnly(t *testing.T) {
	if got := PhotoFilename(time.Now(), false, 42); got != "/img_42.jpg" {
		t.Errorf("PhotoFilename(unsynced) = %q, want /img_42.jpg", got)
	}
	ts := time.Date(2026, 8, 3, 14, 5, 9, 0, time.UTC)
	if got := PhotoFilename(ts, true, 7); got != "/140509_000007.jpg" {
		t.Errorf("PhotoFilename(synced) = %q, want /140509_000007.jpg", got)
	}
}

func TestWritePhoto_FailsWhenPaused(t *testing.T) {
	s := New(t.TempDir())
	s.SetCapturePaused(true)

	if _, err := s.WritePhoto("/20260803", "/img.jpg", []byte("jpeg")); !errors.Is(err, ErrCapturePaused) {
		t.Fatalf("WritePhoto while paused: got %v, want ErrCapturePaused", err)
	}

	s.SetCapturePaused(false)
	if _, err := s.WritePhoto("/20260803", "/img.jpg", []byte("jpeg")); err != nil {
		t.Fatalf("WritePhoto after unpause: %v", err)
	}
}

func TestWriteManifestAtomic_RoundTrip(t *testing.T) {
	store := New(t.TempDir())

	m := &types.Manifest{
		Filepath:        "/20260803/140509_000007.jpg",
		Seq:             7,
		CapturedAtEpoch: 1_754_000_000,
		Status:          types.StatusPending,
		ItemType:        types.ItemPhoto,
		ContentType:     "image/jpeg",
	}
	if err := store.WriteManifestAtomic(m); err != nil {
		t.Fatalf("WriteManifestAtomic: %v", err)
	}

	loaded, err := store.LoadManifest(ManifestPath(7))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if loaded.Filepath != m.Filepath || loaded.Seq != m.Seq || loaded.Status != m.Status {
		t.Errorf("loaded manifest %+v does not match written %+v", loaded, m)
	}
}

func TestWriteManifestAtomic_OverwritesExisting(t *testing.T) {
	store := New(t.TempDir())

	m := &types.Manifest{Seq: 1, Status: types.StatusPending, ItemType: types.ItemPhoto, ContentType: "image/jpeg"}
	if err := store.WriteManifestAtomic(m); err != nil {
		t.Fatalf("WriteManifestAtomic: %v", err)
	}
	m.Status = types.StatusUploaded
	if err := store.WriteManifestAtomic(m); err != nil {
		t.Fatalf("WriteManifestAtomic (overwrite): %v", err)
	}

	loaded, err := store.LoadManifest(ManifestPath(1))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if loaded.Status != types.StatusUploaded {
		t.Errorf("Status = %q, want UPLOADED after overwrite", loaded.Status)
	}
}

func TestLoadManifest_InfersItemTypeFromExtension(t *testing.T) {
	store := New(t.TempDir())

	m := &types.Manifest{Seq: 2, Filepath: "/audio/20260803/120000_000002.wav", Status: types.StatusPending}
	if err := store.WriteManifestAtomic(m); err != nil {
		t.Fatalf("WriteManifestAtomic: %v", err)
	}

	loaded, err := store.LoadManifest(ManifestPath(2))
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if loaded.ItemType != types.ItemAudio {
		t.Errorf("ItemType = %q, want audio (inferred from .wav suffix)", loaded.ItemType)
	}
	if loaded.ContentType != "audio/wav" {
		t.Errorf("ContentType = %q, want audio/wav", loaded.ContentType)
	}
}

func TestLoadManifest_MissingReturnsNotFound(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.LoadManifest(ManifestPath(999))
	if err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

func TestIterManifests_SortedAscending(t *testing.T) {
	store := New(t.TempDir())
	for _, seq := range []uint32{5, 1, 3} {
		m := &types.Manifest{Seq: seq, Status: types.StatusPending, ItemType: types.ItemPhoto, ContentType: "image/jpeg"}
		if err := store.WriteManifestAtomic(m); err != nil {
			t.Fatalf("WriteManifestAtomic seq=%d: %v", seq, err)
		}
	}

	seqs, err := store.IterManifests()
	if err != nil {
		t.Fatalf("IterManifests: %v", err)
	}
	want := []uint32{1, 3, 5}
	if len(seqs) != len(want) {
		t.Fatalf("IterManifests returned %v, want %v", seqs, want)
	}
	for i, s := range want {
		if seqs[i] != s {
			t.Errorf("seqs[%d] = %d, want %d", i, seqs[i], s)
		}
	}
}

func TestRemoveArtifact_RemovesBothFiles(t *testing.T) {
	store := New(t.TempDir())
	relPath, err := store.WritePhoto("/20260803", "/140000_000001.jpg", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("WritePhoto: %v", err)
	}
	m := &types.Manifest{Seq: 1, Filepath: relPath, Status: types.StatusUploaded, ItemType: types.ItemPhoto, ContentType: "image/jpeg"}
	if err := store.WriteManifestAtomic(m); err != nil {
		t.Fatalf("WriteManifestAtomic: %v", err)
	}

	if err := store.RemoveArtifact(relPath, 1); err != nil {
		t.Fatalf("RemoveArtifact: %v", err)
	}
	if _, err := store.LoadManifest(ManifestPath(1)); err == nil {
		t.Error("expected manifest to be gone after RemoveArtifact")
	}
}
