package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/fieldnode/sensornode/internal/bootcache"
	"github.com/fieldnode/sensornode/internal/config"
	"github.com/fieldnode/sensornode/internal/iox"

	"github.com/fieldnode/sensornode/cli/tui"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "boot the node and tick its scheduler loop until interrupted",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "tui",
				Usage: "show a live status dashboard instead of log lines",
			},
			&cli.DurationFlag{
				Name:  "tui-refresh",
				Usage: "dashboard refresh interval",
				Value: time.Second,
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("devicesim: %v", err), exitRunError)
	}

	n, err := buildNode(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("devicesim: %v", err), exitRunError)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := n.loop.Boot(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("devicesim: boot failed: %v", err), exitRunError)
	}
	n.log.Info("booted", map[string]any{"device_id": cfg.DeviceID})

	if c.Bool("tui") {
		go func() {
			if err := tui.Run(n.snapshot, c.Duration("tui-refresh")); err != nil {
				n.log.Error("tui exited", map[string]any{"error": err.Error()})
			}
			cancel()
		}()
	}

	// The loop ticks on the audio frame cadence, since tickAudio needs
	// that resolution to feed VAD; every other step gates itself on its
	// own slower interval inside Loop.Tick.
	resolution := time.Duration(cfg.Audio.FrameMS) * time.Millisecond
	if !cfg.Audio.Enabled || resolution <= 0 {
		resolution = 200 * time.Millisecond
	}

	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return n.shutdown()
		case <-ticker.C:
			if err := n.loop.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return n.shutdown()
				}
				n.log.Error("tick failed", map[string]any{"error": err.Error()})
			}
		}
	}
}

// shutdown snapshots boot-time state to the bootcache so a cold
// `inspect --offline` has something to read.
func (n *node) shutdown() error {
	defer iox.DiscardErr(n.log.Sync)

	snap := bootcache.Snapshot{
		BootID:       n.clock.BootID(),
		SavedAtEpoch: n.clock.NowEpoch(),
		NextSeq:      n.seqs.Peek(),
		NTPSynced:    n.clock.Synced(),
		Metrics:      n.metrics.Snapshot(),
	}
	if snap.Metrics.WiFiRSSI != 0 {
		snap.WiFiOK = true
		snap.LastWiFiRSSI = snap.Metrics.WiFiRSSI
	}

	if err := bootcache.Save(n.bootCachePath, snap); err != nil {
		n.log.Error("bootcache save failed", map[string]any{"error": err.Error()})
		return err
	}
	return nil
}
