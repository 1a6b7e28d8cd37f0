// Package boardsim stands in for the physical board collaborators the
// scheduler depends on but that only exist as silicon on the real
// device: the camera, the microphone, the Wi-Fi radio, the NTP client,
// and the SD card's free space. Each type here satisfies one of
// internal/scheduler's consumer-defined interfaces so cmd/devicesim can
// drive the full scheduler loop against synthetic input.
package boardsim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
)

// FakeCamera produces a minimal, structurally valid JPEG (just the SOI
// and EOI markers padded to FrameSize) on every capture, incrementing a
// counter embedded in the padding so consecutive captures are never
// byte-identical. Setting Err makes every call fail, simulating
// esp_camera_fb_get() returning nothing when the sensor glitches.
type FakeCamera struct {
	mu        sync.Mutex
	n         int
	FrameSize int
	Err       error
}

// NewFakeCamera returns a FakeCamera whose captures are frameSize bytes.
func NewFakeCamera(frameSize int) *FakeCamera {
	if frameSize < 4 {
		frameSize = 4
	}
	return &FakeCamera{FrameSize: frameSize}
}

// CaptureJPEG implements scheduler.Camera.
func (c *FakeCamera) CaptureJPEG(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}

	c.n++
	buf := make([]byte, c.FrameSize)
	buf[0], buf[1] = 0xFF, 0xD8 // SOI
	payload := []byte(fmt.Sprintf("frame-%d", c.n))
	copy(buf[2:], payload)
	buf[len(buf)-2], buf[len(buf)-1] = 0xFF, 0xD9 // EOI
	return buf, nil
}

// ToneMicrophone emits silent frames punctuated by sine-wave tone
// bursts every toneEveryFrames frames, lasting toneDurationFrames
// frames, enough to reliably cross VADStartFrames in internal/vad
// without requiring a real audio source.
type ToneMicrophone struct {
	mu sync.Mutex

	sampleRate   uint32
	frameSamples int
	amplitude    int16

	toneEveryFrames    int
	toneDurationFrames int

	tick int
}

// NewToneMicrophone builds a ToneMicrophone. frameMS and sampleRate must
// match the vad.Config the scheduler's Machine was built with.
func NewToneMicrophone(sampleRate, frameMS uint32, toneEveryFrames, toneDurationFrames int, amplitude int16) *ToneMicrophone {
	frameSamples := int((uint64(sampleRate) * uint64(frameMS)) / 1000)
	if frameSamples <= 0 {
		frameSamples = 1
	}
	return &ToneMicrophone{
		sampleRate:         sampleRate,
		frameSamples:       frameSamples,
		amplitude:          amplitude,
		toneEveryFrames:    toneEveryFrames,
		toneDurationFrames: toneDurationFrames,
	}
}

// ReadFrame implements scheduler.Microphone.
func (m *ToneMicrophone) ReadFrame(ctx context.Context) ([]int16, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame := make([]int16, m.frameSamples)
	inTone := m.toneEveryFrames > 0 && (m.tick%m.toneEveryFrames) < m.toneDurationFrames
	if inTone {
		const toneHz = 440.0
		for i := range frame {
			t := float64(i) / float64(m.sampleRate)
			frame[i] = int16(float64(m.amplitude) * math.Sin(2*math.Pi*toneHz*t))
		}
	}
	m.tick++
	return frame, nil
}

// ErrUnreachable is returned by FakeWiFiRadio/FakeNTPClient for a
// candidate not present in their Reachable set.
var ErrUnreachable = errors.New("boardsim: candidate unreachable")

// FakeWiFiRadio resolves a fixed set of reachable SSIDs to an RSSI
// value; any other candidate fails to connect.
type FakeWiFiRadio struct {
	mu        sync.Mutex
	Reachable map[string]int
}

// NewFakeWiFiRadio builds a FakeWiFiRadio over reachable (ssid -> rssi).
func NewFakeWiFiRadio(reachable map[string]int) *FakeWiFiRadio {
	return &FakeWiFiRadio{Reachable: reachable}
}

// Connect implements scheduler.WiFiRadio.
func (w *FakeWiFiRadio) Connect(ctx context.Context, candidate string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rssi, ok := w.Reachable[candidate]
	if !ok {
		return 0, ErrUnreachable
	}
	return rssi, nil
}

// FakeNTPClient resolves a fixed set of reachable hosts; any other host
// fails to sync.
type FakeNTPClient struct {
	mu        sync.Mutex
	Reachable map[string]bool
}

// NewFakeNTPClient builds a FakeNTPClient over the given reachable hosts.
func NewFakeNTPClient(reachable map[string]bool) *FakeNTPClient {
	return &FakeNTPClient{Reachable: reachable}
}

// Sync implements scheduler.NTPClient.
func (n *FakeNTPClient) Sync(ctx context.Context, host string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.Reachable[host] {
		return ErrUnreachable
	}
	return nil
}

// SimulatedDisk reports the SD card's capacity as a fixed configured
// size and its used bytes as the actual size of everything written
// under root, since the simulation has no separate block device to
// stat. Implements retention.FreeSpacer.
type SimulatedDisk struct {
	root          string
	capacityBytes uint64
}

// NewSimulatedDisk returns a SimulatedDisk rooted at root with the given
// total capacity.
func NewSimulatedDisk(root string, capacityBytes uint64) *SimulatedDisk {
	return &SimulatedDisk{root: root, capacityBytes: capacityBytes}
}

// TotalBytes implements retention.FreeSpacer.
func (d *SimulatedDisk) TotalBytes() (uint64, error) {
	return d.capacityBytes, nil
}

// UsedBytes implements retention.FreeSpacer by walking root and summing
// regular file sizes.
func (d *SimulatedDisk) UsedBytes() (uint64, error) {
	var total uint64
	err := filepath.Walk(d.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += uint64(info.Size())
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("boardsim: walk %s: %w", d.root, err)
	}
	return total, nil
}
