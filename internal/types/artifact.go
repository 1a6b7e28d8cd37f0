// Package types defines the domain types shared across the sensor node
// pipeline: artifact manifests, status transitions and item kinds.
package types

import "fmt"

// ItemType discriminates the two artifact kinds the node ever produces.
type ItemType string

const (
	ItemPhoto ItemType = "photo"
	ItemAudio ItemType = "audio"
)

// ContentType returns the canonical MIME type for the item kind.
func (t ItemType) ContentType() string {
	if t == ItemAudio {
		return "audio/wav"
	}
	return "image/jpeg"
}

// Status is a manifest's position in the PENDING -> {UPLOADED,FAILED} DAG.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusUploaded Status = "UPLOADED"
	StatusFailed   Status = "FAILED"
)

// Manifest is the JSON sidecar persisted for exactly one artifact.
// Field names and casing are contractual: this is the on-disk format,
// and it must round-trip exactly through WriteManifestAtomic/LoadManifest.
type Manifest struct {
	Filepath          string   `json:"filepath"`
	Seq               uint32   `json:"seq"`
	CapturedAtEpoch   uint64   `json:"captured_at_epoch"`
	Status            Status   `json:"status"`
	ItemType          ItemType `json:"item_type"`
	ContentType       string   `json:"content_type"`
	UploadAttempts    int      `json:"upload_attempts"`
	LastAttemptEpoch  uint64   `json:"last_attempt_epoch"`
}

// ManifestPath returns the canonical path of the manifest for seq.
func ManifestPath(seq uint32) string {
	return fmt.Sprintf("/manifests/%d.json", seq)
}

// Filled fills in ItemType/ContentType when missing, inferring from the
// filepath extension, per load_manifest's backfill-on-read behavior.
func (m *Manifest) Filled() *Manifest {
	if m.ItemType == "" {
		if hasSuffix(m.Filepath, ".wav") {
			m.ItemType = ItemAudio
		} else {
			m.ItemType = ItemPhoto
		}
	}
	if m.ContentType == "" {
		m.ContentType = m.ItemType.ContentType()
	}
	return m
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
