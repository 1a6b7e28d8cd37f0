// Package endpointpool selects among a device's configured candidate
// endpoints (Wi-Fi SSIDs, NTP hosts) the way a round-robin proxy selector picks
// scrape endpoints: round-robin by default, sticking to whichever
// candidate last worked until it fails. The firmware this generalizes
// hardcodes exactly one SSID and relies on a single default NTP pool;
// a real fleet deployment needs to roam between several known networks.
package endpointpool

import (
	"errors"
	"sync"
)

// ErrEmptyPool is returned when a Pool has no candidates configured.
var ErrEmptyPool = errors.New("endpointpool: no candidates configured")

// Pool tracks round-robin position and a sticky last-good candidate for
// one category of endpoint (e.g. "wifi" or "ntp"). Safe for concurrent
// use.
type Pool struct {
	mu         sync.Mutex
	name       string
	candidates []string
	rrIndex    int
	sticky     string
}

// New builds a Pool named name (used only for logging/diagnostics) over
// candidates, in the priority order they should be tried.
func New(name string, candidates []string) *Pool {
	cp := make([]string, len(candidates))
	copy(cp, candidates)
	return &Pool{name: name, candidates: cp}
}

// Name returns the pool's diagnostic name.
func (p *Pool) Name() string {
	return p.name
}

// Select returns the candidate to try next: the sticky last-good
// candidate if one is set, otherwise the next round-robin position.
// Select does not itself advance the round-robin counter. Call
// MarkFailed to do that, mirroring the selector's commit-vs-preview split.
func (p *Pool) Select() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.candidates) == 0 {
		return "", ErrEmptyPool
	}
	if p.sticky != "" {
		return p.sticky, nil
	}
	return p.candidates[p.rrIndex%len(p.candidates)], nil
}

// MarkSuccess records that candidate worked, making it sticky for future
// Select calls until it fails.
func (p *Pool) MarkSuccess(candidate string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sticky = candidate
}

// MarkFailed clears any sticky assignment to candidate and advances the
// round-robin counter so the next Select call tries a different
// candidate.
func (p *Pool) MarkFailed(candidate string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sticky == candidate {
		p.sticky = ""
	}
	p.rrIndex++
	if n := len(p.candidates); n > 1 && p.candidates[p.rrIndex%n] == candidate {
		p.rrIndex++
	}
}

// Candidates returns a copy of the configured candidate list, in order.
func (p *Pool) Candidates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]string, len(p.candidates))
	copy(cp, p.candidates)
	return cp
}
