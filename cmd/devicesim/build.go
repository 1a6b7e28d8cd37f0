package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldnode/sensornode/internal/artifactstore"
	"github.com/fieldnode/sensornode/internal/boardsim"
	"github.com/fieldnode/sensornode/internal/clockid"
	"github.com/fieldnode/sensornode/internal/config"
	"github.com/fieldnode/sensornode/internal/devicelog"
	"github.com/fieldnode/sensornode/internal/devicemetrics"
	"github.com/fieldnode/sensornode/internal/endpointpool"
	"github.com/fieldnode/sensornode/internal/retention"
	"github.com/fieldnode/sensornode/internal/scheduler"
	"github.com/fieldnode/sensornode/internal/upload"
	"github.com/fieldnode/sensornode/internal/vad"
)

// node bundles every wired-up collaborator the CLI commands drive. It
// exists so run/inspect/replay can share one construction path instead
// of re-deriving the dependency graph three times.
type node struct {
	cfg *config.Config

	log       *devicelog.Logger
	clock     *clockid.Clock
	seqs      *clockid.SeqStore
	store     *artifactstore.Store
	disk      *boardsim.SimulatedDisk
	metrics   *devicemetrics.Collector
	vadm      *vad.Machine
	wifiPool  *endpointpool.Pool
	ntpPool   *endpointpool.Pool
	uploadEng *upload.Engine
	retCtl    *retention.Controller
	loop      *scheduler.Loop

	bootCachePath string
}

// buildNode wires a node entirely out of boardsim fakes: the simulator
// has no real camera, microphone, radio or SD card, only cfg and the
// local filesystem standing in for the SD card mount.
func buildNode(cfg *config.Config) (*node, error) {
	if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		return nil, fmt.Errorf("devicesim: create storage root %s: %w", cfg.Storage.Root, err)
	}

	clock := clockid.NewClock()
	log := devicelog.NewLogger(devicelog.Identity{DeviceID: cfg.DeviceID, BootID: clock.BootID()})

	seqs, err := clockid.OpenSeqStore(filepath.Join(cfg.Storage.Root, "seq.dat"))
	if err != nil {
		return nil, fmt.Errorf("devicesim: open seq store: %w", err)
	}

	store := artifactstore.New(cfg.Storage.Root)
	disk := boardsim.NewSimulatedDisk(cfg.Storage.Root, cfg.Storage.CapacityBytes)
	metrics := devicemetrics.NewCollector(cfg.Telemetry.FirmwareVersion)

	vadCfg := vad.Config{
		SampleRate:          cfg.Audio.SampleRate,
		FrameMS:             cfg.Audio.FrameMS,
		PrerollMS:           cfg.Audio.PrerollMS,
		MinSec:              cfg.Audio.MinSec,
		MaxSec:              cfg.Audio.MaxSec,
		VADStartFrames:      cfg.Audio.VADStartFrames,
		VADStopFrames:       cfg.Audio.VADStopFrames,
		RMSStartMult:        cfg.Audio.RMSStartMult,
		RMSStopMult:         cfg.Audio.RMSStopMult,
		NoiseEMAAlpha:       cfg.Audio.NoiseEMAAlpha,
		NoiseUpdateMaxMult:  cfg.Audio.NoiseUpdateMaxMult,
		PhotoClipEnabled:    cfg.Audio.PhotoClipEnabled,
		PhotoClipPostMS:     cfg.Audio.PhotoClipPostMS,
		HeartbeatEnabled:    cfg.Audio.HeartbeatEnabled,
		HeartbeatIntervalMS: uint32(cfg.Audio.HeartbeatIntervalMS),
		HeartbeatDurationMS: cfg.Audio.HeartbeatDurationMS,
	}
	vadm := vad.New(store, seqs, clock, metrics, vadCfg, cfg.Audio.Enabled)

	wifiPool := endpointpool.New("wifi", cfg.Network.WiFiSSIDs)
	ntpPool := endpointpool.New("ntp", cfg.Network.NTPHosts)

	api := upload.NewAPIClient(cfg.API.BaseURL, cfg.DeviceToken, cfg.API.UploadTargetPath, cfg.API.IngestNotifyPath, cfg.API.AllowInsecureTLS)
	api.TelemetryPath = cfg.API.TelemetryPath

	uploadEng := upload.New(store, clock, api, metrics, log, upload.Config{
		MaxAttempts: cfg.Upload.MaxAttempts,
		Backoff:     cfg.Upload.Backoff(),
		BatchSize:   cfg.Upload.BatchSize,

		AllowInsecureTLS: cfg.API.AllowInsecureTLS,
	})

	retCtl := retention.New(store, disk, metrics, retention.Config{
		MinFreePercent:       cfg.Retention.MinFreePercent,
		EmergencyFreePercent: cfg.Retention.EmergencyFreePercent,
	})

	reachableWiFi := make(map[string]int, len(cfg.Network.WiFiSSIDs))
	for i, ssid := range cfg.Network.WiFiSSIDs {
		reachableWiFi[ssid] = -40 - i*5
	}
	reachableNTP := make(map[string]bool, len(cfg.Network.NTPHosts))
	for _, host := range cfg.Network.NTPHosts {
		reachableNTP[host] = true
	}

	camera := boardsim.NewFakeCamera(4096)
	mic := boardsim.NewToneMicrophone(cfg.Audio.SampleRate, cfg.Audio.FrameMS, 50, 20, 8000)
	wifi := boardsim.NewFakeWiFiRadio(reachableWiFi)
	ntp := boardsim.NewFakeNTPClient(reachableNTP)

	loop := scheduler.New(
		vadm, wifiPool, ntpPool, clock, seqs, store, uploadEng, retCtl, disk, metrics, log,
		camera, mic, wifi, ntp, api,
		scheduler.Config{
			CaptureInterval:        cfg.Capture.Interval(),
			UploadInterval:         cfg.Upload.Interval(),
			RetentionCheckInterval: cfg.Retention.Interval(),
			TelemetryInterval:      cfg.Telemetry.Interval(),
			WiFiRetryInterval:      cfg.Network.WiFiRetry(),
			NTPRetryInterval:       cfg.Network.NTPRetry(),
			HeartbeatInterval:      cfg.Audio.HeartbeatInterval(),
			AudioEnabled:           cfg.Audio.Enabled,
			PhotoClipEnabled:       cfg.Audio.PhotoClipEnabled,
			HeartbeatEnabled:       cfg.Audio.HeartbeatEnabled,
		},
	)

	return &node{
		cfg:           cfg,
		log:           log,
		clock:         clock,
		seqs:          seqs,
		store:         store,
		disk:          disk,
		metrics:       metrics,
		vadm:          vadm,
		wifiPool:      wifiPool,
		ntpPool:       ntpPool,
		uploadEng:     uploadEng,
		retCtl:        retCtl,
		loop:          loop,
		bootCachePath: filepath.Join(cfg.Storage.Root, "bootcache.msgpack"),
	}, nil
}
