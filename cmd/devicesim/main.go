// Package main provides the devicesim CLI entrypoint: a host-side
// simulation of the camera+microphone sensor node, driven entirely by
// boardsim fakes instead of real hardware.
//
// Usage:
//
//	devicesim [--config device.yaml] run [--tui]
//	devicesim [--config device.yaml] inspect [--offline]
//	devicesim [--config device.yaml] replay --ticks N
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	exitSuccess  = 0
	exitRunError = 1
)

func main() {
	app := &cli.App{
		Name:    "devicesim",
		Usage:   "simulated sensor node: capture, VAD, upload, retention",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to device.yaml",
				Value: "./device.yaml",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			inspectCommand(),
			replayCommand(),
		},
		ExitErrHandler: exitErrHandler,
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(exitRunError)
	}
}

func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(exitRunError)
}
