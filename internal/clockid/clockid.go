// Package clockid provides the node's notion of time and identity: a wall
// clock that degrades gracefully when NTP has not synced, and a persistent
// sequence counter that survives reboot. On the real board the counter is
// backed by the ESP32's Preferences (NVS) partition; here it is backed by a
// flat file using the same atomic tmp-write-then-rename discipline as the
// artifact store, since a torn write would let two artifacts collide on
// the same seq after a crash.
package clockid

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fieldnode/sensornode/internal/iox"
	"github.com/google/uuid"
)

// Clock reports the current time and whether it is NTP-backed. NowEpoch
// always reads the host wall clock; CapturedEpoch reports 0 until
// MarkSynced has been called.
type Clock struct {
	mu     sync.Mutex
	synced bool
	base   time.Time
	bootID string
}

// NewClock returns a Clock in the unsynced state, tagged with a fresh
// boot ID used to correlate log lines and telemetry across one power-on
// cycle.
func NewClock() *Clock {
	return &Clock{base: time.Now(), bootID: uuid.NewString()}
}

// BootID identifies this power-on cycle. Distinct from the persistent seq
// counter, which survives across reboots.
func (c *Clock) BootID() string {
	return c.bootID
}

// MarkSynced records that NTP sync succeeded, per sync_time_best_effort.
func (c *Clock) MarkSynced() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synced = true
}

// Synced reports whether NTP has synced this boot session.
func (c *Clock) Synced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.synced
}

// NowEpoch returns the current Unix epoch in seconds, unconditionally.
// Used for internal bookkeeping (upload backoff timers, bootcache
// timestamps) where a real elapsed-time value is wanted regardless of
// NTP sync state. Callers that need now_epoch()'s "0 if unknown" capture
// semantics must use CapturedEpoch instead.
func (c *Clock) NowEpoch() uint64 {
	return uint64(time.Now().Unix())
}

// CapturedEpoch returns the current Unix epoch if NTP has synced this
// boot session, or 0 if unknown, mirroring now_epoch's contract for
// captured_at_epoch fields: a capture made before sync must record 0,
// never a wall-clock guess.
func (c *Clock) CapturedEpoch() uint64 {
	if !c.Synced() {
		return 0
	}
	return c.NowEpoch()
}

// AdjustStartEpoch subtracts prerollSec from capturedEpoch, per
// adjust_start_epoch. If the subtraction would underflow (epoch smaller
// than the preroll window, i.e. clock only just synced), the epoch is
// returned unchanged rather than wrapping.
func AdjustStartEpoch(capturedEpoch uint64, prerollSec uint64) uint64 {
	if capturedEpoch > prerollSec {
		return capturedEpoch - prerollSec
	}
	return capturedEpoch
}

// SeqStore persists a monotonically increasing uint32 counter across
// reboots. Backed by a single flat file written atomically (tmp file +
// fsync + rename) so a power loss mid-write never corrupts the counter or
// causes two artifacts to be assigned the same seq.
type SeqStore struct {
	mu   sync.Mutex
	path string
	next uint32
}

// OpenSeqStore loads the counter from path, creating it (starting at 0) if
// absent. path's parent directory must already exist.
func OpenSeqStore(path string) (*SeqStore, error) {
	s := &SeqStore{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("clockid: read seq store %s: %w", path, err)
	}

	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("clockid: parse seq store %s: %w", path, err)
	}
	s.next = uint32(v)
	return s, nil
}

// Next returns the next sequence value and persists the incremented
// counter before returning, mirroring get_next_seq's write-then-return
// semantics: the value handed to the caller is never reused even if the
// process dies immediately after.
func (s *SeqStore) Next() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.next
	if err := s.persist(seq + 1); err != nil {
		return 0, err
	}
	s.next = seq + 1
	return seq, nil
}

// Peek returns the next value that Next would hand out, without consuming
// it. Used by cmd/devicesim's shutdown to record next_seq in the bootcache.
func (s *SeqStore) Peek() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *SeqStore) persist(v uint32) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "seq-*.tmp")
	if err != nil {
		return fmt.Errorf("clockid: create tmp seq file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(strconv.FormatUint(uint64(v), 10)); err != nil {
		iox.DiscardClose(tmp)
		os.Remove(tmpName)
		return fmt.Errorf("clockid: write tmp seq file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		iox.DiscardClose(tmp)
		os.Remove(tmpName)
		return fmt.Errorf("clockid: sync tmp seq file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("clockid: close tmp seq file: %w", err)
	}

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		os.Remove(tmpName)
		return fmt.Errorf("clockid: remove stale seq file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("clockid: rename tmp seq file: %w", err)
	}
	return nil
}
