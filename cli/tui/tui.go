package tui

import "time"

// Run starts the live dashboard, polling poll every interval. It blocks
// until the user quits.
func Run(poll PollFunc, interval time.Duration) error {
	return RunDashboard(poll, interval)
}
