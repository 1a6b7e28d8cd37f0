package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/fieldnode/sensornode/internal/config"
)

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "drive a fixed number of ticks with no wall-clock sleep, for deterministic local testing",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "ticks",
				Usage:    "number of scheduler ticks to run",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "report-every",
				Usage: "print a progress line every N ticks (0 disables)",
				Value: 100,
			},
		},
		Action: replayAction,
	}
}

func replayAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("devicesim: %v", err), exitRunError)
	}

	n, err := buildNode(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("devicesim: %v", err), exitRunError)
	}

	ctx := context.Background()
	if err := n.loop.Boot(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("devicesim: boot failed: %v", err), exitRunError)
	}

	ticks := c.Int("ticks")
	reportEvery := c.Int("report-every")

	for i := 1; i <= ticks; i++ {
		if err := n.loop.Tick(ctx); err != nil {
			return cli.Exit(fmt.Sprintf("devicesim: tick %d failed: %v", i, err), exitRunError)
		}
		if reportEvery > 0 && i%reportEvery == 0 {
			snap := n.metrics.Snapshot()
			fmt.Printf("tick %d/%d: photos=%d clips=%d uploaded=%d upload_fails=%d\n",
				i, ticks, snap.PhotosCaptured, snap.AudioClipsKept, snap.UploadSuccess, snap.UploadFailure)
		}
	}

	return n.shutdown()
}
