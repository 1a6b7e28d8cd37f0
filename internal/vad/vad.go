// Package vad implements the node's voice-activity-detection state
// machine: an adaptive RMS threshold over a noise floor tracked by an
// exponential moving average, a preroll ring buffer so a clip's first
// instant of speech is never lost to detection latency, and forced-start
// arbitration so a photo capture or a periodic heartbeat clip can start a
// recording outright, bypassing RMS detection.
package vad

import (
	"math"
	"time"

	"github.com/fieldnode/sensornode/internal/artifactstore"
	"github.com/fieldnode/sensornode/internal/clockid"
	"github.com/fieldnode/sensornode/internal/devicemetrics"
	"github.com/fieldnode/sensornode/internal/types"
)

// Config holds the tunables read from device.yaml (audio.* section). Field
// names mirror the board's config.h constants so the two can be compared
// line for line.
type Config struct {
	SampleRate uint32
	FrameMS    uint32
	PrerollMS  uint32
	MinSec     float64
	MaxSec     float64

	VADStartFrames int
	VADStopFrames  int
	RMSStartMult   float64
	RMSStopMult    float64

	NoiseEMAAlpha      float64
	NoiseUpdateMaxMult float64

	PhotoClipEnabled bool
	PhotoClipPostMS  uint32

	HeartbeatEnabled    bool
	HeartbeatIntervalMS uint32
	HeartbeatDurationMS uint32
}

// prerollSamples returns how many int16 samples the preroll ring buffer
// holds for this config.
func (c Config) prerollSamples() int {
	return int(msToSamples(c.PrerollMS, c.SampleRate))
}

func msToSamples(ms, sampleRate uint32) uint32 {
	return uint32((uint64(sampleRate) * uint64(ms)) / 1000)
}

func computeRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum uint64
	for _, s := range samples {
		v := int64(s)
		sum += uint64(v * v)
	}
	mean := float64(sum) / float64(len(samples))
	return math.Sqrt(mean)
}

// Machine is the per-boot-session VAD state: IDLE with an armed preroll
// buffer, or RECORDING with an open AudioSink. Not safe for concurrent
// use; the scheduler calls Tick from a single goroutine.
type Machine struct {
	store   *artifactstore.Store
	seqs    *clockid.SeqStore
	clock   *clockid.Clock
	metrics *devicemetrics.Collector
	cfg     Config
	enabled bool
	now     func() time.Time

	prerollBuf    []int16
	prerollIndex  int
	prerollFilled bool

	recording        bool
	paused           bool
	sink             *artifactstore.AudioSink
	seq              uint32
	startEpoch       uint64
	noiseRMS         float64
	vadOverCount     int
	vadUnderCount    int
	forceActive      bool
	forceStopSamples uint64

	photoClipPending bool
	photoClipEpoch   uint64
	heartbeatPending bool
}

// New builds a Machine. enabled should reflect whether the microphone
// initialized successfully (audio_pins_ready / init_audio on the board);
// when false, Tick is a permanent no-op for the life of the process,
// matching audio_ok gating the entire tick on the firmware.
func New(store *artifactstore.Store, seqs *clockid.SeqStore, clock *clockid.Clock, metrics *devicemetrics.Collector, cfg Config, enabled bool) *Machine {
	m := &Machine{
		store:   store,
		seqs:    seqs,
		clock:   clock,
		metrics: metrics,
		cfg:     cfg,
		enabled: enabled,
		now:     time.Now,
	}
	if enabled && cfg.PrerollMS > 0 {
		m.prerollBuf = make([]int16, cfg.prerollSamples())
	}
	return m
}

// Recording reports whether a clip is currently being written.
func (m *Machine) Recording() bool {
	return m.recording
}

// SetCapturePaused mirrors capture_paused: while true, neither RMS
// detection nor a forced start may open a new recording. Set by the
// scheduler during an emergency retention sweep.
func (m *Machine) SetCapturePaused(paused bool) {
	m.paused = paused
}

// RequestPhotoClip arms a forced-start recording anchored at capturedEpoch,
// mirroring capture_and_save raising audio_photo_clip_pending. The
// firmware only raises this when audio is idle; callers are expected to
// check Recording() first, but a call while recording is simply ignored.
func (m *Machine) RequestPhotoClip(capturedEpoch uint64) {
	if !m.enabled || !m.cfg.PhotoClipEnabled || m.recording {
		return
	}
	m.photoClipPending = true
	m.photoClipEpoch = capturedEpoch
}

// HeartbeatPending reports whether a heartbeat clip is armed but not yet
// started, so the scheduler can skip re-raising it every tick.
func (m *Machine) HeartbeatPending() bool {
	return m.heartbeatPending
}

// RequestHeartbeat arms a forced-start heartbeat recording, mirroring the
// scheduler raising audio_heartbeat_pending on its interval.
func (m *Machine) RequestHeartbeat() {
	if !m.enabled || !m.cfg.HeartbeatEnabled || m.recording {
		return
	}
	m.heartbeatPending = true
}

// Tick feeds one frame of PCM samples through the state machine, per
// audio_tick. It drives forced-start arbitration, RMS/noise-floor
// detection, preroll buffering, and recording finalization.
func (m *Machine) Tick(frame []int16) error {
	if !m.enabled || len(frame) == 0 {
		return nil
	}

	rms := computeRMS(frame)

	if !m.recording {
		return m.tickIdle(frame, rms)
	}
	return m.tickRecording(frame, rms)
}

func (m *Machine) tickIdle(frame []int16, rms float64) error {
	var forceStart bool
	var forceSamples uint64
	var forceEpoch uint64

	switch {
	case m.photoClipPending:
		m.photoClipPending = false
		m.heartbeatPending = false
		forceSamples = uint64(m.cfg.prerollSamples()) + uint64(msToSamples(m.cfg.PhotoClipPostMS, m.cfg.SampleRate))
		forceEpoch = m.photoClipEpoch
		forceStart = true
	case m.heartbeatPending:
		m.heartbeatPending = false
		forceSamples = uint64(m.cfg.prerollSamples()) + uint64(msToSamples(m.cfg.HeartbeatDurationMS, m.cfg.SampleRate))
		forceEpoch = m.clock.CapturedEpoch()
		forceStart = true
	}

	if forceStart {
		return m.startRecording(frame, forceEpoch, forceSamples)
	}

	m.prerollPush(frame)

	if m.noiseRMS <= 1.0 {
		m.noiseRMS = rms
	} else if rms < m.noiseRMS*m.cfg.NoiseUpdateMaxMult {
		m.noiseRMS = m.noiseRMS*(1-m.cfg.NoiseEMAAlpha) + rms*m.cfg.NoiseEMAAlpha
	}

	if rms > m.noiseRMS*m.cfg.RMSStartMult {
		m.vadOverCount++
	} else {
		m.vadOverCount = 0
	}

	if m.vadOverCount >= m.cfg.VADStartFrames {
		if err := m.startRecording(frame, m.clock.CapturedEpoch(), 0); err != nil {
			return err
		}
		if m.recording {
			m.vadOverCount = 0
		}
	}
	return nil
}

func (m *Machine) tickRecording(frame []int16, rms float64) error {
	if _, err := m.sink.WriteSamples(frame); err != nil {
		_ = m.finish(false)
		return err
	}

	if m.forceActive {
		if m.forceStopSamples > 0 && uint64(m.sink.SampleCount()) >= m.forceStopSamples {
			return m.finish(true)
		}
		return nil
	}

	if rms < m.noiseRMS*m.cfg.RMSStopMult {
		m.vadUnderCount++
	} else {
		m.vadUnderCount = 0
	}

	durationSec := float64(m.sink.SampleCount()) / float64(m.cfg.SampleRate)
	if m.vadUnderCount >= m.cfg.VADStopFrames || durationSec >= m.cfg.MaxSec {
		return m.finish(true)
	}
	return nil
}

func (m *Machine) startRecording(frame []int16, epoch uint64, forceStopSamples uint64) error {
	if m.paused || m.recording {
		return nil
	}

	seq, err := m.seqs.Next()
	if err != nil {
		return err
	}

	// epoch is 0 when the caller captured it before NTP sync; propagate
	// that through rather than substituting a wall-clock guess, since 0
	// means "captured_at_epoch unknown," not "unset by caller."
	startEpoch := clockid.AdjustStartEpoch(epoch, uint64(m.cfg.PrerollMS/1000))

	now := m.now()
	synced := m.clock.Synced()
	folder := artifactstore.AudioFolder(now, synced)
	filename := artifactstore.AudioFilename(now, synced, seq)

	sink, err := m.store.BeginAudio(folder, filename, m.cfg.SampleRate)
	if err != nil {
		return err
	}

	m.sink = sink
	m.seq = seq
	m.startEpoch = startEpoch
	m.forceStopSamples = forceStopSamples
	m.forceActive = forceStopSamples > 0
	m.vadUnderCount = 0

	m.writePreroll()
	m.recording = true

	if _, err := sink.WriteSamples(frame); err != nil {
		_ = m.finish(false)
		return err
	}

	m.metrics.IncAudioClipStarted()
	return nil
}

func (m *Machine) finish(keep bool) error {
	if !m.recording {
		return nil
	}

	minSamples := uint64(m.cfg.MinSec * float64(m.cfg.SampleRate))
	if uint64(m.sink.SampleCount()) < minSamples {
		keep = false
	}

	relPath := m.sink.RelPath
	seq := m.seq
	startEpoch := m.startEpoch

	finishErr := m.sink.Finish()

	m.recording = false
	m.forceActive = false
	m.forceStopSamples = 0
	m.sink = nil
	m.vadOverCount = 0
	m.vadUnderCount = 0

	if finishErr != nil {
		return finishErr
	}

	if !keep {
		m.metrics.IncAudioClipDropped()
		return m.store.RemoveFile(relPath)
	}

	m.metrics.IncAudioClipKept()
	manifest := &types.Manifest{
		Filepath:        relPath,
		Seq:             seq,
		CapturedAtEpoch: startEpoch,
		Status:          types.StatusPending,
		ItemType:        types.ItemAudio,
		ContentType:     types.ItemAudio.ContentType(),
	}
	return m.store.WriteManifestAtomic(manifest)
}

// prerollPush appends frame to the ring buffer, per preroll_push.
func (m *Machine) prerollPush(frame []int16) {
	if len(m.prerollBuf) == 0 {
		return
	}
	for _, s := range frame {
		m.prerollBuf[m.prerollIndex] = s
		m.prerollIndex++
		if m.prerollIndex >= len(m.prerollBuf) {
			m.prerollIndex = 0
			m.prerollFilled = true
		}
	}
}

// writePreroll flushes the ring buffer into the currently open sink, per
// preroll_write. An only-partially-filled buffer is treated as starting
// at index 0 rather than wrapping, since nothing has been overwritten yet.
func (m *Machine) writePreroll() {
	if len(m.prerollBuf) == 0 || m.sink == nil {
		return
	}

	available := m.prerollIndex
	if m.prerollFilled {
		available = len(m.prerollBuf)
	}
	if available == 0 {
		return
	}

	start := 0
	if m.prerollFilled {
		start = m.prerollIndex
	}
	firstLen := available
	if m.prerollFilled {
		firstLen = len(m.prerollBuf) - start
	}

	if firstLen > 0 {
		_, _ = m.sink.WriteSamples(m.prerollBuf[start : start+firstLen])
	}
	if m.prerollFilled && start > 0 {
		_, _ = m.sink.WriteSamples(m.prerollBuf[:start])
	}
}
