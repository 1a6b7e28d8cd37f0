// Package scheduler drives the node's cooperative per-tick loop: a
// single goroutine that feeds the microphone through VAD, retries Wi-Fi
// and NTP on their own cadences, captures photos, raises heartbeat
// clips, runs upload batches, enforces retention, and sends telemetry,
// in that fixed order, once per tick, mirroring the board's loop().
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldnode/sensornode/internal/artifactstore"
	"github.com/fieldnode/sensornode/internal/clockid"
	"github.com/fieldnode/sensornode/internal/devicelog"
	"github.com/fieldnode/sensornode/internal/devicemetrics"
	"github.com/fieldnode/sensornode/internal/endpointpool"
	"github.com/fieldnode/sensornode/internal/retention"
	"github.com/fieldnode/sensornode/internal/types"
	"github.com/fieldnode/sensornode/internal/upload"
	"github.com/fieldnode/sensornode/internal/vad"
)

// Camera captures one still frame. Implemented by boardsim.
type Camera interface {
	CaptureJPEG(ctx context.Context) ([]byte, error)
}

// Microphone returns the next frame of PCM samples, or a zero-length
// frame if none is available this tick (e.g. the fake source isn't
// producing audio continuously). Implemented by boardsim.
type Microphone interface {
	ReadFrame(ctx context.Context) ([]int16, error)
}

// WiFiRadio attempts to associate with candidate, reporting link
// strength on success. Implemented by boardsim.
type WiFiRadio interface {
	Connect(ctx context.Context, candidate string) (rssi int, err error)
}

// NTPClient attempts to sync the wall clock against host. Implemented
// by boardsim.
type NTPClient interface {
	Sync(ctx context.Context, host string) error
}

// TelemetrySender delivers one telemetry payload. Implemented by
// upload.APIClient.
type TelemetrySender interface {
	SendTelemetry(ctx context.Context, snapshot devicemetrics.Snapshot) error
}

// Config holds the per-step cadences and feature toggles read from
// device.yaml. Interval fields use the scheduler's own clock (time.Now),
// not clockid.Clock, since gating is about wall-clock elapsed time
// regardless of NTP sync state.
type Config struct {
	CaptureInterval        time.Duration
	UploadInterval         time.Duration
	RetentionCheckInterval time.Duration
	TelemetryInterval      time.Duration
	WiFiRetryInterval      time.Duration
	NTPRetryInterval       time.Duration
	HeartbeatInterval      time.Duration

	AudioEnabled     bool
	PhotoClipEnabled bool
	HeartbeatEnabled bool
}

// Loop is the node's per-tick cooperative scheduler.
type Loop struct {
	vad       *vad.Machine
	wifiPool  *endpointpool.Pool
	ntpPool   *endpointpool.Pool
	clock     *clockid.Clock
	seqs      *clockid.SeqStore
	store     *artifactstore.Store
	upload    *upload.Engine
	retention *retention.Controller
	space     retention.FreeSpacer
	metrics   *devicemetrics.Collector
	log       *devicelog.Logger

	camera    Camera
	mic       Microphone
	wifi      WiFiRadio
	ntp       NTPClient
	telemetry TelemetrySender

	cfg Config
	now func() time.Time

	wifiOK       bool
	lastWiFiRSSI int

	lastWiFiAttempt time.Time
	lastNTPAttempt  time.Time
	lastCapture     time.Time
	lastHeartbeat   time.Time
	lastUpload      time.Time
	lastRetention   time.Time
	lastTelemetry   time.Time
}

// New builds a Loop. All the collaborator arguments may be nil where a
// step is disabled at the Config level (e.g. ntp may be nil if the node
// has no NTP pool configured at all), but Camera, Microphone, store,
// seqs, clock and vad are always required.
func New(
	vm *vad.Machine,
	wifiPool, ntpPool *endpointpool.Pool,
	clock *clockid.Clock,
	seqs *clockid.SeqStore,
	store *artifactstore.Store,
	uploadEngine *upload.Engine,
	retentionCtl *retention.Controller,
	space retention.FreeSpacer,
	metrics *devicemetrics.Collector,
	log *devicelog.Logger,
	camera Camera,
	mic Microphone,
	wifi WiFiRadio,
	ntp NTPClient,
	telemetry TelemetrySender,
	cfg Config,
) *Loop {
	return &Loop{
		vad:       vm,
		wifiPool:  wifiPool,
		ntpPool:   ntpPool,
		clock:     clock,
		seqs:      seqs,
		store:     store,
		upload:    uploadEngine,
		retention: retentionCtl,
		space:     space,
		metrics:   metrics,
		log:       log,
		camera:    camera,
		mic:       mic,
		wifi:      wifi,
		ntp:       ntp,
		telemetry: telemetry,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Boot runs the setup()-equivalent boot sequence: one eager photo
// capture before any network attempt, matching the board's rationale
// that the first frame after power-on shouldn't wait on Wi-Fi. Wi-Fi and
// NTP are then each attempted once, best-effort: failures here are not
// fatal, since the Loop will keep retrying both on their own cadence.
func (l *Loop) Boot(ctx context.Context) error {
	if err := l.capturePhoto(ctx); err != nil {
		if l.log != nil {
			l.log.Warn("boot capture failed", map[string]any{"error": err.Error()})
		}
	}
	l.lastCapture = l.now()

	l.attemptWiFi(ctx)
	if l.wifiOK {
		l.attemptNTP(ctx)
	}
	return nil
}

// Tick runs exactly one pass of the eight-step loop body.
func (l *Loop) Tick(ctx context.Context) error {
	if err := l.tickAudio(ctx); err != nil {
		return fmt.Errorf("scheduler: audio tick: %w", err)
	}

	recording := l.vad.Recording()
	now := l.now()

	if !l.wifiOK && !recording && now.Sub(l.lastWiFiAttempt) >= l.cfg.WiFiRetryInterval {
		l.attemptWiFi(ctx)
		l.lastWiFiAttempt = now
	}

	if l.wifiOK && !l.clock.Synced() && !recording && now.Sub(l.lastNTPAttempt) >= l.cfg.NTPRetryInterval {
		l.attemptNTP(ctx)
		l.lastNTPAttempt = now
	}

	if now.Sub(l.lastCapture) >= l.cfg.CaptureInterval {
		if err := l.capturePhoto(ctx); err != nil {
			l.metrics.IncPhotoFailure()
			if l.log != nil {
				l.log.Warn("photo capture failed", map[string]any{"error": err.Error()})
			}
		}
		l.lastCapture = now
	}

	if l.cfg.AudioEnabled && l.cfg.HeartbeatEnabled && !recording && !l.vad.HeartbeatPending() &&
		now.Sub(l.lastHeartbeat) >= l.cfg.HeartbeatInterval {
		l.vad.RequestHeartbeat()
		l.metrics.IncHeartbeatClip()
		l.lastHeartbeat = now
	}

	if !recording && now.Sub(l.lastUpload) >= l.cfg.UploadInterval {
		if _, err := l.upload.RunBatch(ctx); err != nil && l.log != nil {
			l.log.Warn("upload batch failed", map[string]any{"error": err.Error()})
		}
		l.lastUpload = now
	}

	if !recording && now.Sub(l.lastRetention) >= l.cfg.RetentionCheckInterval {
		result, err := l.retention.Sweep()
		if err != nil {
			if l.log != nil {
				l.log.Warn("retention sweep failed", map[string]any{"error": err.Error()})
			}
		} else {
			l.vad.SetCapturePaused(result.CapturePaused)
			l.store.SetCapturePaused(result.CapturePaused)
		}
		l.lastRetention = now
	}

	if !recording && now.Sub(l.lastTelemetry) >= l.cfg.TelemetryInterval {
		l.sendTelemetry(ctx)
		l.lastTelemetry = now
	}

	return nil
}

func (l *Loop) tickAudio(ctx context.Context) error {
	if !l.cfg.AudioEnabled || l.mic == nil {
		return nil
	}
	frame, err := l.mic.ReadFrame(ctx)
	if err != nil {
		return err
	}
	return l.vad.Tick(frame)
}

func (l *Loop) attemptWiFi(ctx context.Context) {
	if l.wifiPool == nil || l.wifi == nil {
		return
	}
	candidate, err := l.wifiPool.Select()
	if err != nil {
		return
	}
	rssi, err := l.wifi.Connect(ctx, candidate)
	if err != nil {
		l.wifiPool.MarkFailed(candidate)
		return
	}
	l.wifiOK = true
	l.lastWiFiRSSI = rssi
	l.wifiPool.MarkSuccess(candidate)
}

func (l *Loop) attemptNTP(ctx context.Context) {
	if l.ntpPool == nil || l.ntp == nil {
		return
	}
	candidate, err := l.ntpPool.Select()
	if err != nil {
		return
	}
	if err := l.ntp.Sync(ctx, candidate); err != nil {
		l.ntpPool.MarkFailed(candidate)
		return
	}
	l.clock.MarkSynced()
	l.ntpPool.MarkSuccess(candidate)
}

// capturePhoto runs the capture_and_save sequence: allocate a sequence
// number, build the date folder/filename, write the JPEG, write a
// PENDING manifest, and, if audio is idle, arm a forced-start photo
// clip. Photo capture is gated only by its own interval; unlike upload,
// retention and telemetry it runs even while a clip is recording,
// matching the board's unconditional capture cadence.
func (l *Loop) capturePhoto(ctx context.Context) error {
	jpeg, err := l.camera.CaptureJPEG(ctx)
	if err != nil {
		return err
	}

	seq, err := l.seqs.Next()
	if err != nil {
		return err
	}

	capturedEpoch := l.clock.CapturedEpoch()
	synced := l.clock.Synced()
	now := l.now()
	folder := artifactstore.DateFolder(now, synced)
	filename := artifactstore.PhotoFilename(now, synced, seq)

	relPath, err := l.store.WritePhoto(folder, filename, jpeg)
	if err != nil {
		return err
	}

	manifest := &types.Manifest{
		Filepath:        relPath,
		Seq:             seq,
		CapturedAtEpoch: capturedEpoch,
		Status:          types.StatusPending,
		ItemType:        types.ItemPhoto,
		ContentType:     types.ItemPhoto.ContentType(),
	}
	if err := l.store.WriteManifestAtomic(manifest); err != nil {
		return err
	}
	l.metrics.IncPhotoCaptured()

	if l.cfg.AudioEnabled && l.cfg.PhotoClipEnabled && !l.vad.Recording() {
		l.vad.RequestPhotoClip(capturedEpoch)
	}
	return nil
}

const bytesPerMB = 1024 * 1024

func (l *Loop) sendTelemetry(ctx context.Context) {
	pending, err := l.upload.CountPending()
	if err != nil {
		pending = -1
	}

	var usedMB, freeMB uint64
	if l.space != nil {
		if total, err := l.space.TotalBytes(); err == nil {
			if used, err := l.space.UsedBytes(); err == nil {
				usedMB = used / bytesPerMB
				if total > used {
					freeMB = (total - used) / bytesPerMB
				}
			}
		}
	}

	l.metrics.SetTelemetryGauges(usedMB, freeMB, pending, l.lastWiFiRSSI)

	if l.telemetry == nil {
		return
	}
	if err := l.telemetry.SendTelemetry(ctx, l.metrics.Snapshot()); err != nil && l.log != nil {
		l.log.Warn("telemetry send failed", map[string]any{"error": err.Error()})
	}
}
