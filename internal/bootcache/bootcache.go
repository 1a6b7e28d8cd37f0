// Package bootcache persists a msgpack snapshot of the node's boot-time
// state to disk so `devicesim inspect --offline` can report recent
// activity without spinning up the full scheduler. It is a side channel:
// nothing downstream of boot reads it back, and a missing or stale file
// never blocks normal operation.
package bootcache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/fieldnode/sensornode/internal/devicemetrics"
	"github.com/fieldnode/sensornode/internal/iox"
)

// Snapshot captures everything inspect needs to print without touching
// the artifact store, the upload manifests, or a live microphone feed.
type Snapshot struct {
	BootID       string                 `msgpack:"boot_id"`
	SavedAtEpoch uint64                 `msgpack:"saved_at_epoch"`
	NextSeq      uint32                 `msgpack:"next_seq"`
	WiFiOK       bool                   `msgpack:"wifi_ok"`
	LastWiFiRSSI int                    `msgpack:"last_wifi_rssi"`
	NTPSynced    bool                   `msgpack:"ntp_synced"`
	Metrics      devicemetrics.Snapshot `msgpack:"metrics"`
}

// Save msgpack-encodes snap and writes it to path using the same
// tmp-write-then-rename discipline as the artifact store and seq
// counter, so a crash mid-write never leaves inspect reading a torn
// file.
func Save(path string, snap Snapshot) error {
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("bootcache: marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "bootcache-*.tmp")
	if err != nil {
		return fmt.Errorf("bootcache: create tmp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		iox.DiscardClose(tmp)
		os.Remove(tmpName)
		return fmt.Errorf("bootcache: write tmp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		iox.DiscardClose(tmp)
		os.Remove(tmpName)
		return fmt.Errorf("bootcache: sync tmp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("bootcache: close tmp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("bootcache: rename tmp file: %w", err)
	}
	return nil
}

// Load reads and decodes the snapshot at path. Returns a zero Snapshot
// and a nil error if no cache file exists yet (first boot).
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("bootcache: read %s: %w", path, err)
	}

	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("bootcache: decode %s: %w", path, err)
	}
	return snap, nil
}
