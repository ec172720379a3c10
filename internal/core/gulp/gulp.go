// Package gulp accumulates candidates into bounded batches ("gulps") and tracks the
// ACCRUING -> PROCESSING -> ACCRUING cycle of the single pipeline worker
package gulp

import (
	"strings"
	"sync"
	"time"

	"t2/internal/core/candidate"
	perr "t2/internal/platform/errors"

	"github.com/google/uuid"
)

// Sentinel is the one-byte control record heimdall sends to end a gulp
const Sentinel byte = 0x03

// Policy selects how a gulp closes
type Policy string

const (
	// PolicySentinel closes on the Sentinel record
	PolicySentinel Policy = "sentinel"
	// PolicyCount closes once Size candidates have been accumulated
	PolicyCount Policy = "count"
)

// ParsePolicy maps a config string onto a Policy
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicySentinel, PolicyCount:
		return p, nil
	default:
		return "", perr.WithField(perr.Configf("unknown gulp policy %q", s), "policy")
	}
}

// State of the accumulator
type State uint8

const (
	// Accruing accepts new candidates into the open gulp
	Accruing State = iota
	// Processing means a drained gulp is in a pass; input is refused until Release
	Processing
)

func (s State) String() string {
	if s == Processing {
		return "processing"
	}
	return "accruing"
}

// Config controls gulp closing
type Config struct {
	Policy Policy
	Size   int // required for PolicyCount
}

// Validate reports configuration errors
func (c Config) Validate() error {
	switch c.Policy {
	case PolicySentinel:
		return nil
	case PolicyCount:
		if c.Size < 1 {
			return perr.WithField(perr.Configf("count policy needs a gulp size >= 1, got %d", c.Size), "gulp_size")
		}
		return nil
	default:
		return perr.WithField(perr.Configf("unknown gulp policy %q", c.Policy), "policy")
	}
}

// Gulp is one closed batch, exclusively owned by the pass that drained it
type Gulp struct {
	ID         uuid.UUID
	Seq        uint64
	Candidates []candidate.Candidate
	Rejected   int // records dropped by the parser while this gulp was open
	OpenedAt   time.Time
	ClosedAt   time.Time
}

// Len returns the number of candidates
func (g Gulp) Len() int { return len(g.Candidates) }

// Empty reports whether the gulp holds no candidates
func (g Gulp) Empty() bool { return len(g.Candidates) == 0 }

var (
	newID = uuid.New
	now   = time.Now
)

// Accumulator buffers candidates for the single open gulp
type Accumulator struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	closed   bool
	open     []candidate.Candidate
	rejected int
	openedAt time.Time
	seq      uint64
}

// New constructs an Accumulator; the config must be valid
func New(cfg Config) (*Accumulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &Accumulator{cfg: cfg}
	if cfg.Policy == PolicyCount {
		a.open = make([]candidate.Candidate, 0, cfg.Size)
	}
	return a, nil
}

// Add appends a candidate to the open gulp. Fails with ErrorCodeBusy while a pass
// is processing or when the gulp is already closed and waiting to be drained
func (a *Accumulator) Add(c candidate.Candidate) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.acceptingLocked(); err != nil {
		return err
	}
	a.appendLocked(c)
	return nil
}

// Offer takes one raw inbound record. It reports whether the gulp is now closed.
// A record that fails to parse returns an ErrorCodeParse error and leaves the gulp open
func (a *Accumulator) Offer(rec []byte) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.acceptingLocked(); err != nil {
		return false, err
	}

	if len(rec) == 1 && rec[0] == Sentinel {
		// only meaningful under the sentinel policy; otherwise the control byte is ignored
		if a.cfg.Policy == PolicySentinel {
			a.closed = true
		}
		return a.closed, nil
	}

	c, err := candidate.ParseRecord(rec)
	if err != nil {
		a.rejected++
		return false, err
	}
	a.appendLocked(c)
	return a.closed, nil
}

func (a *Accumulator) acceptingLocked() error {
	if a.state == Processing {
		return perr.Busyf("gulp %d is processing", a.seq)
	}
	if a.closed {
		return perr.Busyf("gulp is closed and waiting to be drained")
	}
	return nil
}

func (a *Accumulator) appendLocked(c candidate.Candidate) {
	if len(a.open) == 0 {
		a.openedAt = now()
	}
	a.open = append(a.open, c)
	if a.cfg.Policy == PolicyCount && len(a.open) >= a.cfg.Size {
		a.closed = true
	}
}

// Closed reports whether the open gulp hit its closing condition
func (a *Accumulator) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// Drain hands the accumulated candidates to the caller, resets to an empty gulp
// and moves to Processing. Drain on an unclosed gulp flushes what is there
func (a *Accumulator) Drain() Gulp {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.seq++
	g := Gulp{
		ID:         newID(),
		Seq:        a.seq,
		Candidates: a.open,
		Rejected:   a.rejected,
		OpenedAt:   a.openedAt,
		ClosedAt:   now(),
	}
	if g.OpenedAt.IsZero() {
		g.OpenedAt = g.ClosedAt
	}

	a.open = make([]candidate.Candidate, 0, cap(a.open))
	a.rejected = 0
	a.openedAt = time.Time{}
	a.closed = false
	a.state = Processing
	return g
}

// Release ends the current pass and resumes accruing
func (a *Accumulator) Release() {
	a.mu.Lock()
	a.state = Accruing
	a.mu.Unlock()
}

// Discard drops a partially accumulated gulp (teardown between gulps) and returns
// how many candidates were thrown away
func (a *Accumulator) Discard() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.open)
	a.open = a.open[:0]
	a.rejected = 0
	a.openedAt = time.Time{}
	a.closed = false
	return n
}

// State returns the current state
func (a *Accumulator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Len returns the number of candidates in the open gulp
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.open)
}

// Policy returns the configured closing policy
func (a *Accumulator) Policy() Policy { return a.cfg.Policy }
