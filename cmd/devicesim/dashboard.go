package main

import (
	"github.com/fieldnode/sensornode/internal/artifactstore"
	"github.com/fieldnode/sensornode/internal/types"

	"github.com/fieldnode/sensornode/cli/tui"
)

// snapshot builds one tui.DashboardData frame from the node's live
// collaborators. Called on every TUI poll tick and once for `inspect`.
func (n *node) snapshot() (tui.DashboardData, error) {
	freePercent, err := n.retCtl.FreePercent()
	if err != nil {
		return tui.DashboardData{}, err
	}

	pending, err := n.uploadEng.CountPending()
	if err != nil {
		pending = -1
	}

	histogram, err := n.attemptHistogram()
	if err != nil {
		return tui.DashboardData{}, err
	}

	snap := n.metrics.Snapshot()
	return tui.DashboardData{
		DeviceID: n.cfg.DeviceID,

		Recording:    n.vadm.Recording(),
		WiFiOK:       snap.WiFiRSSI != 0,
		WiFiRSSI:     snap.WiFiRSSI,
		NTPSynced:    n.clock.Synced(),
		BacklogCount: pending,

		SDUsedMB:             snap.SDUsedMB,
		SDFreeMB:             snap.SDFreeMB,
		SDFreePercent:        freePercent,
		MinFreePercent:       n.cfg.Retention.MinFreePercent,
		EmergencyFreePercent: n.cfg.Retention.EmergencyFreePercent,

		PhotosCaptured: snap.PhotosCaptured,
		AudioClipsKept: snap.AudioClipsKept,
		UploadSuccess:  snap.UploadSuccess,
		UploadFailure:  snap.UploadFailure,

		AttemptHistogram: histogram,
	}, nil
}

// attemptHistogram groups every PENDING manifest by its current
// UploadAttempts count, for the dashboard's retry histogram.
func (n *node) attemptHistogram() (map[int]int64, error) {
	seqs, err := n.store.IterManifests()
	if err != nil {
		return nil, err
	}

	histogram := make(map[int]int64)
	for _, seq := range seqs {
		m, err := n.store.LoadManifest(artifactstore.ManifestPath(seq))
		if err != nil {
			continue // skip a manifest that vanished or failed to parse between list and load
		}
		if m.Status != types.StatusPending {
			continue
		}
		histogram[m.UploadAttempts]++
	}
	return histogram, nil
}
