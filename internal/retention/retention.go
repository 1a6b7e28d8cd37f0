// Package retention implements the node's free-space enforcement: delete
// already-uploaded artifacts oldest-first until free space clears the
// normal threshold, and pause new captures outright if it is still below
// the emergency threshold afterward.
package retention

import (
	"fmt"

	"github.com/fieldnode/sensornode/internal/artifactstore"
	"github.com/fieldnode/sensornode/internal/devicemetrics"
	"github.com/fieldnode/sensornode/internal/ordering"
	"github.com/fieldnode/sensornode/internal/types"
)

// FreeSpacer reports the storage volume's total and used bytes. Backed by
// a real filesystem stat call in production and a fake in boardsim/tests.
type FreeSpacer interface {
	TotalBytes() (uint64, error)
	UsedBytes() (uint64, error)
}

// Config controls the thresholds retention enforces. Percentages are
// whole numbers, e.g. MinFreePercent: 15 for 15%.
type Config struct {
	// MinFreePercent is the threshold below which retention starts
	// deleting uploaded artifacts.
	MinFreePercent uint8

	// EmergencyFreePercent is the threshold below which capture is
	// paused outright even after a deletion pass.
	EmergencyFreePercent uint8
}

// Controller enforces Config against a Store, sweeping oldest-first.
type Controller struct {
	store   *artifactstore.Store
	space   FreeSpacer
	metrics *devicemetrics.Collector
	cfg     Config
}

// New builds a Controller.
func New(store *artifactstore.Store, space FreeSpacer, metrics *devicemetrics.Collector, cfg Config) *Controller {
	return &Controller{store: store, space: space, metrics: metrics, cfg: cfg}
}

// SweepResult reports what one Sweep call did.
type SweepResult struct {
	FreePercentBefore uint8
	FreePercentAfter  uint8
	Deletions         int
	CapturePaused     bool
}

// FreePercent returns the storage volume's free space as a whole
// percentage, per free_percent. A zero-byte volume (nothing mounted)
// reports 0 rather than dividing by zero.
func (c *Controller) FreePercent() (uint8, error) {
	total, err := c.space.TotalBytes()
	if err != nil {
		return 0, fmt.Errorf("retention: total bytes: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	used, err := c.space.UsedBytes()
	if err != nil {
		return 0, fmt.Errorf("retention: used bytes: %w", err)
	}
	if used > total {
		used = total
	}
	free := total - used
	return uint8((free * 100) / total), nil
}

// Sweep runs one retention pass, per enforce_retention: while free space
// is below MinFreePercent, delete the oldest UPLOADED artifact and
// recheck. capture_paused (reported via CapturePaused) is cleared as soon
// as free space is no longer below EmergencyFreePercent, even if it
// remains below MinFreePercent: a sweep that made some progress but not
// enough to clear the normal threshold still lets new captures resume.
func (c *Controller) Sweep() (SweepResult, error) {
	before, err := c.FreePercent()
	if err != nil {
		return SweepResult{}, err
	}

	if before >= c.cfg.MinFreePercent {
		return SweepResult{FreePercentBefore: before, FreePercentAfter: before}, nil
	}

	deletions := 0
	freePct := before
	for freePct < c.cfg.MinFreePercent {
		seqs, err := c.store.IterManifests()
		if err != nil {
			return SweepResult{}, err
		}

		victim, ok, err := c.oldestUploaded(seqs)
		if err != nil {
			return SweepResult{}, err
		}
		if !ok {
			break
		}

		if err := c.store.RemoveArtifact(victim.Filepath, victim.Seq); err != nil {
			return SweepResult{}, err
		}
		deletions++

		freePct, err = c.FreePercent()
		if err != nil {
			return SweepResult{}, err
		}
	}

	c.metrics.IncRetentionDeletes(int64(deletions))

	paused := freePct < c.cfg.EmergencyFreePercent
	if paused {
		c.metrics.IncRetentionEmergency()
	}

	return SweepResult{
		FreePercentBefore: before,
		FreePercentAfter:  freePct,
		Deletions:         deletions,
		CapturePaused:     paused,
	}, nil
}

func (c *Controller) oldestUploaded(seqs []uint32) (*types.Manifest, bool, error) {
	var best *types.Manifest
	var bestCandidate ordering.Candidate
	found := false

	for _, seq := range seqs {
		m, err := c.store.LoadManifest(types.ManifestPath(seq))
		if err != nil {
			continue // a manifest that vanished or failed to parse mid-scan is simply skipped
		}
		if m.Status != types.StatusUploaded {
			continue
		}

		cand := ordering.Candidate{Seq: m.Seq, CapturedAtEpoch: m.CapturedAtEpoch}
		if ordering.Better(cand, bestCandidate, found) {
			best = m
			bestCandidate = cand
			found = true
		}
	}

	return best, found, nil
}
