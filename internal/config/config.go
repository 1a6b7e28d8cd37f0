// Package config loads device.yaml, the node's single configuration
// file. config.h's #define constants become overridable YAML fields
// here. Two board tunables stay fixed in internal/upload: the 8192-byte
// PUT stream buffer (upload.chunk_bytes is loaded but not read) and the
// 5 s connection timeout.
package config

import "time"

// Config mirrors device.yaml in full.
type Config struct {
	DeviceID    string `yaml:"device_id"`
	DeviceToken string `yaml:"device_token"`

	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Capture   CaptureConfig   `yaml:"capture"`
	Upload    UploadConfig    `yaml:"upload"`
	Retention RetentionConfig `yaml:"retention"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Network   NetworkConfig   `yaml:"network"`
	Audio     AudioConfig     `yaml:"audio"`
}

// APIConfig holds the control-plane endpoint the node talks to.
type APIConfig struct {
	BaseURL          string `yaml:"base_url"`
	UploadTargetPath string `yaml:"upload_target_path"`
	IngestNotifyPath string `yaml:"ingest_notify_path"`
	TelemetryPath    string `yaml:"telemetry_path"`
	AllowInsecureTLS bool   `yaml:"allow_insecure_tls"`
}

// StorageConfig holds the simulated SD card mount point and capacity.
type StorageConfig struct {
	Root          string `yaml:"root"`
	CapacityBytes uint64 `yaml:"capacity_bytes"`
}

// CaptureConfig controls photo cadence.
type CaptureConfig struct {
	IntervalMS uint64 `yaml:"interval_ms"`
}

// UploadConfig mirrors the board's UPLOAD_* constants.
type UploadConfig struct {
	MaxAttempts int    `yaml:"max_attempts"`
	BackoffSec  [3]int `yaml:"backoff_sec"`
	IntervalMS  uint64 `yaml:"interval_ms"`
	BatchSize   int    `yaml:"batch_size"`
	ChunkBytes  int    `yaml:"chunk_bytes"`
}

// RetentionConfig mirrors the board's SD_* and RETENTION_* constants.
type RetentionConfig struct {
	MinFreePercent       uint8  `yaml:"min_free_percent"`
	EmergencyFreePercent uint8  `yaml:"emergency_free_percent"`
	CheckIntervalMS      uint64 `yaml:"check_interval_ms"`
}

// TelemetryConfig controls the hourly telemetry cadence and firmware
// version string reported in every payload.
type TelemetryConfig struct {
	IntervalMS      uint64 `yaml:"interval_ms"`
	FirmwareVersion string `yaml:"firmware_version"`
}

// NetworkConfig lists the Wi-Fi SSIDs and NTP hosts the node will roam
// between, and their retry cadences.
type NetworkConfig struct {
	WiFiSSIDs   []string `yaml:"wifi_ssids"`
	WiFiRetryMS uint64   `yaml:"wifi_retry_ms"`
	NTPHosts    []string `yaml:"ntp_hosts"`
	NTPRetryMS  uint64   `yaml:"ntp_retry_ms"`
}

// AudioConfig mirrors the board's AUDIO_* constants.
type AudioConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SampleRate uint32  `yaml:"sample_rate"`
	FrameMS    uint32  `yaml:"frame_ms"`
	PrerollMS  uint32  `yaml:"preroll_ms"`
	MinSec     float64 `yaml:"min_sec"`
	MaxSec     float64 `yaml:"max_sec"`

	VADStartFrames int     `yaml:"vad_start_frames"`
	VADStopFrames  int     `yaml:"vad_stop_frames"`
	RMSStartMult   float64 `yaml:"rms_start_mult"`
	RMSStopMult    float64 `yaml:"rms_stop_mult"`

	NoiseEMAAlpha      float64 `yaml:"noise_ema_alpha"`
	NoiseUpdateMaxMult float64 `yaml:"noise_update_max_mult"`

	PhotoClipEnabled bool   `yaml:"photo_clip_enabled"`
	PhotoClipPostMS  uint32 `yaml:"photo_clip_post_ms"`

	HeartbeatEnabled    bool   `yaml:"heartbeat_enabled"`
	HeartbeatIntervalMS uint64 `yaml:"heartbeat_interval_ms"`
	HeartbeatDurationMS uint32 `yaml:"heartbeat_duration_ms"`
}

// Default returns the configuration the board ships with out of the
// box, per config.h. Load starts from this and overlays whatever
// device.yaml sets.
func Default() *Config {
	return &Config{
		API: APIConfig{
			UploadTargetPath: "/devices/upload-url",
			IngestNotifyPath: "/devices/ingest",
			TelemetryPath:    "/devices/telemetry",
			AllowInsecureTLS: false, // dev-only; device.yaml must turn it on
		},
		Storage: StorageConfig{
			Root:          "./sdcard",
			CapacityBytes: 8 << 30, // 8 GiB, a typical microSD in this class of board
		},
		Capture: CaptureConfig{IntervalMS: 30_000},
		Upload: UploadConfig{
			MaxAttempts: 3,
			BackoffSec:  [3]int{60, 300, 1800},
			IntervalMS:  15_000,
			BatchSize:   5,
			ChunkBytes:  8192,
		},
		Retention: RetentionConfig{
			MinFreePercent:       15,
			EmergencyFreePercent: 5,
			CheckIntervalMS:      60 * 60 * 1000,
		},
		Telemetry: TelemetryConfig{
			IntervalMS:      60 * 60 * 1000,
			FirmwareVersion: "0.1.0",
		},
		Network: NetworkConfig{
			WiFiRetryMS: 10_000,
			NTPRetryMS:  15_000,
			NTPHosts:    []string{"pool.ntp.org"},
		},
		Audio: AudioConfig{
			Enabled:    true,
			SampleRate: 16000,
			FrameMS:    20,
			PrerollMS:  1000,
			MinSec:     1,
			MaxSec:     60,

			VADStartFrames: 4,
			VADStopFrames:  50,
			RMSStartMult:   3.0,
			RMSStopMult:    1.8,

			NoiseEMAAlpha:      0.01,
			NoiseUpdateMaxMult: 1.5,

			PhotoClipEnabled: true,
			PhotoClipPostMS:  9000,

			HeartbeatEnabled:    true,
			HeartbeatIntervalMS: 5 * 60 * 1000,
			HeartbeatDurationMS: 3000,
		},
	}
}

// Duration helpers convert the YAML's millisecond ints to time.Duration
// for the scheduler/vad Config structs that consume them.
func msToDuration(ms uint64) time.Duration { return time.Duration(ms) * time.Millisecond }

// Interval returns the capture cadence as a time.Duration.
func (c CaptureConfig) Interval() time.Duration { return msToDuration(c.IntervalMS) }

// Interval returns the upload batch cadence as a time.Duration.
func (u UploadConfig) Interval() time.Duration { return msToDuration(u.IntervalMS) }

// Backoff returns the three-entry backoff schedule as time.Duration,
// for direct use in upload.Config.
func (u UploadConfig) Backoff() []time.Duration {
	out := make([]time.Duration, len(u.BackoffSec))
	for i, s := range u.BackoffSec {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

// Interval returns the retention sweep cadence as a time.Duration.
func (r RetentionConfig) Interval() time.Duration { return msToDuration(r.CheckIntervalMS) }

// Interval returns the telemetry send cadence as a time.Duration.
func (t TelemetryConfig) Interval() time.Duration { return msToDuration(t.IntervalMS) }

// WiFiRetry returns the Wi-Fi reconnect cadence as a time.Duration.
func (n NetworkConfig) WiFiRetry() time.Duration { return msToDuration(n.WiFiRetryMS) }

// NTPRetry returns the NTP resync cadence as a time.Duration.
func (n NetworkConfig) NTPRetry() time.Duration { return msToDuration(n.NTPRetryMS) }

// HeartbeatInterval returns the heartbeat-raise cadence as a time.Duration.
func (a AudioConfig) HeartbeatInterval() time.Duration { return msToDuration(a.HeartbeatIntervalMS) }
