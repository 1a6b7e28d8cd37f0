package retention

import (
	"testing"

	"github.com/fieldnode/sensornode/internal/artifactstore"
	"github.com/fieldnode/sensornode/internal/devicemetrics"
	"github.com/fieldnode/sensornode/internal/types"
)

// fakeSpace reports fixed total and used values; deletions do not change
// them.
type fakeSpace struct {
	total uint64
	used  uint64
}

func (f *fakeSpace) TotalBytes() (uint64, error) { return f.total, nil }
func (f *fakeSpace) UsedBytes() (uint64, error)  { return f.used, nil }

func writeUploaded(t *testing.T, store *artifactstore.Store, seq uint32, epoch uint64, body string) string {
	t.Helper()
	relPath, err := store.WritePhoto("/20260803", fmtName(seq), []byte(body))
	if err != nil {
		t.Fatalf("WritePhoto seq=%d: %v", seq, err)
	}
	m := &types.Manifest{
		Filepath:        relPath,
		Seq:             seq,
		CapturedAtEpoch: epoch,
		Status:          types.StatusUploaded,
		ItemType:        types.ItemPhoto,
		ContentType:     "image/jpeg",
	}
	if err := store.WriteManifestAtomic(m); err != nil {
		t.Fatalf("WriteManifestAtomic seq=%d: %v", seq, err)
	}
	return relPath
}

func fmtName(seq uint32) string {
	return "/photo" + string(rune('0'+int(seq))) + ".jpg"
}

func TestSweep_NoOpWhenAboveThreshold(t *testing.T) {
	dir := t.TempDir()
	store := artifactstore.New(dir)
	space := &fakeSpace{total: 1000, used: 100} // 90% free
	metrics := devicemetrics.NewCollector("test")
	ctrl := New(store, space, metrics, Config{MinFreePercent: 15, EmergencyFreePercent: 5})

	res, err := ctrl.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Deletions != 0 {
		t.Errorf("Deletions = %d, want 0 when already above threshold", res.Deletions)
	}
}

func TestSweep_DeletesOldestUploadedFirst(t *testing.T) {
	dir := t.TempDir()
	store := artifactstore.New(dir)
	writeUploaded(t, store, 1, 300, "a")
	writeUploaded(t, store, 2, 100, "b") // oldest
	writeUploaded(t, store, 3, 200, "c")

	// used reads 900 (10% free) on the first check and 700 (30% free)
	// after that, so one delete is enough to clear the 15% threshold.
	space := &onceFreeingSpace{total: 1000, used: 900, reduceBy: 200}
	metrics := devicemetrics.NewCollector("test")
	ctrl := New(store, space, metrics, Config{MinFreePercent: 15, EmergencyFreePercent: 5})

	res, err := ctrl.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Deletions != 1 {
		t.Fatalf("Deletions = %d, want 1", res.Deletions)
	}

	if _, err := store.LoadManifest(types.ManifestPath(2)); err == nil {
		t.Error("expected seq=2 (oldest captured_at_epoch) to have been deleted first")
	}
	if _, err := store.LoadManifest(types.ManifestPath(1)); err != nil {
		t.Error("seq=1 should still be present")
	}
}

// onceFreeingSpace simulates one deletion freeing reduceBy bytes; after
// the first UsedBytes() call following a Sweep-internal FreePercent
// recheck it reports reduced usage, modeling a single delete clearing
// the threshold.
type onceFreeingSpace struct {
	total, used, reduceBy uint64
	calls                 int
}

func (f *onceFreeingSpace) TotalBytes() (uint64, error) { return f.total, nil }
func (f *onceFreeingSpace) UsedBytes() (uint64, error) {
	f.calls++
	if f.calls > 1 {
		return f.used - f.reduceBy, nil
	}
	return f.used, nil
}

func TestSweep_PausesCaptureUnderEmergencyThreshold(t *testing.T) {
	dir := t.TempDir()
	store := artifactstore.New(dir)
	writeUploaded(t, store, 1, 100, "a")

	space := &fakeSpace{total: 1000, used: 970} // 3% free, below both thresholds, nothing to delete further
	metrics := devicemetrics.NewCollector("test")
	ctrl := New(store, space, metrics, Config{MinFreePercent: 15, EmergencyFreePercent: 5})

	res, err := ctrl.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !res.CapturePaused {
		t.Error("expected CapturePaused when free% remains below emergency threshold after sweep")
	}
}

func TestSweep_NoUploadedItemsStopsGracefully(t *testing.T) {
	dir := t.TempDir()
	store := artifactstore.New(dir)
	space := &fakeSpace{total: 1000, used: 950} // 5% free, below MinFreePercent, no items to delete
	metrics := devicemetrics.NewCollector("test")
	ctrl := New(store, space, metrics, Config{MinFreePercent: 15, EmergencyFreePercent: 5})

	res, err := ctrl.Sweep()
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Deletions != 0 {
		t.Errorf("Deletions = %d, want 0 when nothing is UPLOADED to delete", res.Deletions)
	}
}
