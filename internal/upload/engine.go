package upload

import (
	"context"
	"path"
	"time"

	"github.com/fieldnode/sensornode/internal/artifactstore"
	"github.com/fieldnode/sensornode/internal/clockid"
	"github.com/fieldnode/sensornode/internal/devicelog"
	"github.com/fieldnode/sensornode/internal/devicemetrics"
	"github.com/fieldnode/sensornode/internal/iox"
	"github.com/fieldnode/sensornode/internal/ordering"
	"github.com/fieldnode/sensornode/internal/types"
)

// Config controls batching and retry for the upload engine. Backoff is
// indexed by attempt number (1-based); an attempt count past the end of
// the slice uses the slice's last entry, matching backoff_seconds' final
// branch which returns UPLOAD_BACKOFF_SEC_3 for any attempts >= 3.
type Config struct {
	MaxAttempts int
	Backoff     []time.Duration
	BatchSize   int
	AllowInsecureTLS bool
}

func (c Config) backoffFor(attempts int) time.Duration {
	if attempts <= 0 || len(c.Backoff) == 0 {
		return 0
	}
	idx := attempts - 1
	if idx >= len(c.Backoff) {
		idx = len(c.Backoff) - 1
	}
	return c.Backoff[idx]
}

// Engine drives the PENDING -> {UPLOADED, FAILED} transition for
// manifests, one item at a time, per upload_one_pending / upload_batch.
type Engine struct {
	store   *artifactstore.Store
	clock   *clockid.Clock
	api     *APIClient
	metrics *devicemetrics.Collector
	log     *devicelog.Logger
	cfg     Config
}

// New builds an Engine.
func New(store *artifactstore.Store, clock *clockid.Clock, api *APIClient, metrics *devicemetrics.Collector, log *devicelog.Logger, cfg Config) *Engine {
	return &Engine{store: store, clock: clock, api: api, metrics: metrics, log: log, cfg: cfg}
}

// BatchResult summarizes one RunBatch call.
type BatchResult struct {
	Uploaded int
	Failed   int
	Attempted int
}

// RunBatch uploads up to Config.BatchSize pending items, stopping early
// on the first failure within the batch, per upload_batch's
// early-break-on-failure loop.
func (e *Engine) RunBatch(ctx context.Context) (BatchResult, error) {
	var res BatchResult

	for i := 0; i < e.cfg.BatchSize; i++ {
		item, ok, err := e.selectOldestPending()
		if err != nil {
			return res, err
		}
		if !ok {
			break
		}

		res.Attempted++
		ok, err = e.uploadOne(ctx, item)
		if err != nil {
			return res, err
		}
		if ok {
			res.Uploaded++
		} else {
			res.Failed++
			break
		}
	}
	return res, nil
}

// selectOldestPending walks /manifests, eagerly transitioning any item
// that has exhausted its attempt budget to FAILED, skipping items still
// inside their backoff window, and returning the oldest remaining
// PENDING candidate per internal/ordering, mirroring find_oldest_pending.
func (e *Engine) selectOldestPending() (*types.Manifest, bool, error) {
	seqs, err := e.store.IterManifests()
	if err != nil {
		return nil, false, err
	}

	now := e.clock.NowEpoch()
	var best *types.Manifest
	var bestCandidate ordering.Candidate
	found := false

	for _, seq := range seqs {
		m, err := e.store.LoadManifest(types.ManifestPath(seq))
		if err != nil {
			continue
		}
		if m.Status != types.StatusPending {
			continue
		}

		if m.UploadAttempts >= e.cfg.MaxAttempts {
			m.Status = types.StatusFailed
			if err := e.store.WriteManifestAtomic(m); err != nil {
				return nil, false, err
			}
			e.metrics.IncUploadFailure()
			continue
		}

		backoff := e.cfg.backoffFor(m.UploadAttempts)
		if backoff > 0 && now-m.LastAttemptEpoch < uint64(backoff.Seconds()) {
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

// uploadOne runs the full six-step flow for one item: bump attempts and
// persist PENDING before the attempt (so a reboot mid-upload still counts
// it), request an upload target, stream the bytes, notify ingest, then
// finalize UPLOADED or fall back to PENDING/FAILED. The bool result
// reports whether the item reached UPLOADED.
func (e *Engine) uploadOne(ctx context.Context, m *types.Manifest) (bool, error) {
	m.UploadAttempts++
	m.LastAttemptEpoch = e.clock.NowEpoch()
	if err := e.store.WriteManifestAtomic(m); err != nil {
		return false, err
	}

	target, err := e.api.RequestTarget(ctx, m, path.Base(m.Filepath))
	if err != nil {
		return e.retryOrFail(m, err)
	}

	f, err := e.store.OpenArtifact(m.Filepath)
	if err != nil {
		return e.retryOrFail(m, err)
	}
	defer iox.CloseLogging(f, func(err error) {
		if e.log != nil {
			e.log.Warn("close artifact after upload", map[string]any{"seq": m.Seq, "error": err.Error()})
		}
	})

	info, err := f.Stat()
	if err != nil {
		return e.retryOrFail(m, err)
	}

	if err := StreamPUT(ctx, target.Host, target.Port, target.Path, m.ContentType, f, info.Size(), e.cfg.AllowInsecureTLS); err != nil {
		return e.retryOrFail(m, err)
	}

	if err := e.api.NotifyIngest(ctx, m, target, e.clock.Synced()); err != nil {
		return e.retryOrFail(m, err)
	}

	m.Status = types.StatusUploaded
	if err := e.store.WriteManifestAtomic(m); err != nil {
		return false, err
	}
	e.metrics.IncUploadSuccess()
	if e.log != nil {
		e.log.Info("upload succeeded", map[string]any{"seq": m.Seq, "attempts": m.UploadAttempts})
	}
	return true, nil
}

// retryOrFail persists the item back to PENDING (to be retried once its
// backoff window passes) or FAILED if attempts are exhausted, per
// upload_one_pending's failure path.
func (e *Engine) retryOrFail(m *types.Manifest, cause error) (bool, error) {
	if m.UploadAttempts >= e.cfg.MaxAttempts {
		m.Status = types.StatusFailed
		e.metrics.IncUploadFailure()
	} else {
		m.Status = types.StatusPending
		e.metrics.IncUploadRetry()
	}
	if e.log != nil {
		e.log.Warn("upload attempt failed", map[string]any{"seq": m.Seq, "attempts": m.UploadAttempts, "error": cause.Error()})
	}
	if err := e.store.WriteManifestAtomic(m); err != nil {
		return false, err
	}
	return false, nil
}

// CountPending returns the number of manifests currently PENDING, per
// count_pending_manifests. Used to populate the telemetry backlog_count
// field.
func (e *Engine) CountPending() (int64, error) {
	seqs, err := e.store.IterManifests()
	if err != nil {
		return 0, err
	}
	var count int64
	for _, seq := range seqs {
		m, err := e.store.LoadManifest(types.ManifestPath(seq))
		if err != nil {
			continue
		}
		if m.Status == types.StatusPending {
			count++
		}
	}
	return count, nil
}
