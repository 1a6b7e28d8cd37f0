// Package iox provides small I/O helpers for resource cleanup shared by
// the artifact store, upload engine, clockid/bootcache persistence, and
// devicesim's shutdown path.
package iox

import "io"

// DiscardClose closes c and discards the error. Use in defer statements
// where a close failure is unactionable (e.g. a read-only fd):
//
//	defer iox.DiscardClose(f)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c. Designed for
// t.Cleanup registration in tests.
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error. Use for non-Close
// cleanup calls (e.g. Sync) where the error is unactionable:
//
//	defer iox.DiscardErr(f.Sync)
func DiscardErr(fn func() error) { _ = fn() }

// CloseLogging closes c and reports any error through report. Use where a
// close failure is worth a log line but must never change control flow
// (e.g. closing a manifest file after a successful write):
//
//	defer iox.CloseLogging(f, func(err error) { logger.Warn("close failed", err) })
func CloseLogging(c io.Closer, report func(error)) {
	if err := c.Close(); err != nil && report != nil {
		report(err)
	}
}
