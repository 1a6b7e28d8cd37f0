// Package devicemetrics accumulates the counters the node reports in its
// hourly telemetry payload and exposes to cli/tui. It is a leaf package
// with no dependency on the pipeline packages it is used from.
package devicemetrics

import "sync"

// Snapshot is an immutable point-in-time view of node metrics. Returned by
// Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Capture
	PhotosCaptured int64 `json:"photos_captured"`
	PhotoFailures  int64 `json:"photo_failures"`

	// VAD / audio
	AudioClipsStarted int64 `json:"audio_clips_started"`
	AudioClipsKept    int64 `json:"audio_clips_kept"`
	AudioClipsDropped int64 `json:"audio_clips_dropped"` // shorter than AUDIO_MIN_SEC, or a frame write failed
	HeartbeatClips    int64 `json:"heartbeat_clips"`

	// Upload
	UploadSuccess int64 `json:"upload_success"`
	UploadFailure int64 `json:"upload_failure"`
	UploadRetry   int64 `json:"upload_retry"`

	// Retention
	RetentionDeletes     int64 `json:"retention_deletes"`
	RetentionEmergencies int64 `json:"retention_emergencies"` // sweeps that ran under the emergency threshold

	// Telemetry payload dimensions (send_telemetry fields)
	SDUsedMB        uint64 `json:"sd_used_mb"`
	SDFreeMB        uint64 `json:"sd_free_mb"`
	BacklogCount    int64  `json:"backlog_count"`
	WiFiRSSI        int    `json:"wifi_rssi"`
	FirmwareVersion string `json:"firmware_version"`
}

// Collector accumulates counters for one boot session. Thread-safe via
// sync.Mutex. All increment methods are nil-receiver safe so a nil
// *Collector (e.g. in a test harness that doesn't care about metrics)
// can be passed around freely.
type Collector struct {
	mu sync.Mutex

	photosCaptured int64
	photoFailures  int64

	audioClipsStarted int64
	audioClipsKept    int64
	audioClipsDropped int64
	heartbeatClips    int64

	uploadSuccess int64
	uploadFailure int64
	uploadRetry   int64

	retentionDeletes     int64
	retentionEmergencies int64

	sdUsedMB        uint64
	sdFreeMB        uint64
	backlogCount    int64
	wifiRSSI        int
	firmwareVersion string
}

// NewCollector creates an empty Collector tagged with the firmware version
// reported alongside every telemetry payload.
func NewCollector(firmwareVersion string) *Collector {
	return &Collector{firmwareVersion: firmwareVersion}
}

// --- Capture ---

func (c *Collector) IncPhotoCaptured() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.photosCaptured++
	c.mu.Unlock()
}

func (c *Collector) IncPhotoFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.photoFailures++
	c.mu.Unlock()
}

// --- VAD / audio ---

func (c *Collector) IncAudioClipStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.audioClipsStarted++
	c.mu.Unlock()
}

func (c *Collector) IncAudioClipKept() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.audioClipsKept++
	c.mu.Unlock()
}

func (c *Collector) IncAudioClipDropped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.audioClipsDropped++
	c.mu.Unlock()
}

func (c *Collector) IncHeartbeatClip() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.heartbeatClips++
	c.mu.Unlock()
}

// --- Upload ---

func (c *Collector) IncUploadSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uploadSuccess++
	c.mu.Unlock()
}

func (c *Collector) IncUploadFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uploadFailure++
	c.mu.Unlock()
}

func (c *Collector) IncUploadRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uploadRetry++
	c.mu.Unlock()
}

// --- Retention ---

func (c *Collector) IncRetentionDeletes(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.retentionDeletes += n
	c.mu.Unlock()
}

func (c *Collector) IncRetentionEmergency() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.retentionEmergencies++
	c.mu.Unlock()
}

// --- Telemetry dimensions ---

// SetTelemetryGauges updates the point-in-time fields reported in the
// hourly telemetry payload: SD usage, backlog depth and link quality.
func (c *Collector) SetTelemetryGauges(sdUsedMB, sdFreeMB uint64, backlogCount int64, wifiRSSI int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.sdUsedMB = sdUsedMB
	c.sdFreeMB = sdFreeMB
	c.backlogCount = backlogCount
	c.wifiRSSI = wifiRSSI
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all metrics. The
// Collector can continue to be mutated independently of the returned value.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		PhotosCaptured: c.photosCaptured,
		PhotoFailures:  c.photoFailures,

		AudioClipsStarted: c.audioClipsStarted,
		AudioClipsKept:    c.audioClipsKept,
		AudioClipsDropped: c.audioClipsDropped,
		HeartbeatClips:    c.heartbeatClips,

		UploadSuccess: c.uploadSuccess,
		UploadFailure: c.uploadFailure,
		UploadRetry:   c.uploadRetry,

		RetentionDeletes:     c.retentionDeletes,
		RetentionEmergencies: c.retentionEmergencies,

		SDUsedMB:        c.sdUsedMB,
		SDFreeMB:        c.sdFreeMB,
		BacklogCount:    c.backlogCount,
		WiFiRSSI:        c.wifiRSSI,
		FirmwareVersion: c.firmwareVersion,
	}
}
