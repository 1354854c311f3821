// Package session drives one verification round trip against the device
// under test: it transmits a fixed expected payload a configured number of
// times, consumes the validated payloads the receiver extracts from the
// echo stream, and grades every field against the expected value.
//
// Correlation is positional: the link carries no sequence numbers, so the
// Kth payload received is assumed to answer the Kth frame sent.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/linkcheck/internal/frame"
	"github.com/banshee-data/linkcheck/internal/monitoring"
)

// ErrReceiverStopped is returned when the payload channel closes before
// all expected payloads arrived, distinguishing a dead transport from an
// ordinary cancellation.
var ErrReceiverStopped = errors.New("receiver stopped before all frames arrived")

// Record grades one payload field against its expected value. Records are
// immutable once created and ordered by field within a payload, payloads
// in arrival order.
type Record struct {
	// Field is the 1-based measurement channel index.
	Field    int
	Expected uint8
	Received uint8
	// ErrorPct is the signed percent deviation from the expected value.
	ErrorPct float64
	Pass     bool
}

// Result is the outcome of one verification session.
type Result struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Sent       int
	Received   int
	Records    []Record
}

// Config tunes a verification session. Zero durations and tolerance take
// defaults; Expected has no default and must be supplied.
type Config struct {
	// Expected is the payload transmitted each round and graded against.
	// Every value must be non-zero: percent error divides by it.
	Expected []byte
	// PacketsToSend is how many frames to transmit, and equally how many
	// payloads the session waits to receive.
	PacketsToSend int
	// SendDelay is the pause between transmitted frames.
	SendDelay time.Duration
	// RecvTimeout bounds each individual wait for a payload. A timeout is
	// logged and retried, never counted as a reception. Callers needing a
	// hard ceiling cancel the context instead.
	RecvTimeout time.Duration
	// TolerancePct is the maximum |percent error| graded as PASS.
	TolerancePct float64
}

const (
	defaultSendDelay    = 5 * time.Millisecond
	defaultRecvTimeout  = time.Second
	defaultTolerancePct = 1.0
)

func (c Config) withDefaults() Config {
	if c.SendDelay <= 0 {
		c.SendDelay = defaultSendDelay
	}
	if c.RecvTimeout <= 0 {
		c.RecvTimeout = defaultRecvTimeout
	}
	if c.TolerancePct <= 0 {
		c.TolerancePct = defaultTolerancePct
	}
	return c
}

// Validate checks the config against the frame layout. A zero expected
// value is rejected here, before any traffic, because grading divides by it.
func (c Config) Validate(frameCfg frame.Config) error {
	if len(c.Expected) != frameCfg.PayloadLen {
		return fmt.Errorf("expected payload has %d values, frame layout carries %d", len(c.Expected), frameCfg.PayloadLen)
	}
	for i, v := range c.Expected {
		if v == 0 {
			return fmt.Errorf("expected value for field %d is zero: percent error is undefined", i+1)
		}
	}
	if c.PacketsToSend <= 0 {
		return fmt.Errorf("packets to send must be positive, got %d", c.PacketsToSend)
	}
	return nil
}

// Session orchestrates one send-then-compare run. The transmit side and
// the receive side share nothing but the payload channel.
type Session struct {
	cfg      Config
	frameCfg frame.Config
	tx       io.Writer
	payloads <-chan frame.Payload
}

// New validates cfg against the frame layout and returns a Session that
// transmits on tx and consumes validated payloads from payloads.
func New(cfg Config, frameCfg frame.Config, tx io.Writer, payloads <-chan frame.Payload) (*Session, error) {
	if err := frameCfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(frameCfg); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	return &Session{
		cfg:      cfg.withDefaults(),
		frameCfg: frameCfg,
		tx:       tx,
		payloads: payloads,
	}, nil
}

// Run performs the round trip and returns the graded records. Whatever
// records accumulated are returned even on error, so a report can still be
// rendered after an aborted session. Run returns ctx.Err on cancellation,
// ErrReceiverStopped (wrapping the receiver's reason is the caller's job)
// if the payload channel closes early, and nil after a full run.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}
	defer func() { res.FinishedAt = time.Now() }()

	wire, err := s.frameCfg.Encode(s.cfg.Expected)
	if err != nil {
		return res, err
	}

	// Transmit phase: fire-and-forget per frame, no retransmission. All
	// resilience lives in the framer's resync and the receive retry below.
	for i := 0; i < s.cfg.PacketsToSend; i++ {
		if _, err := s.tx.Write(wire); err != nil {
			return res, fmt.Errorf("write frame %d/%d: %w", i+1, s.cfg.PacketsToSend, err)
		}
		res.Sent++
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-time.After(s.cfg.SendDelay):
		}
	}

	// Receive phase: wait for exactly as many payloads as frames sent.
	// A timed-out wait is a liveness report, not a failure; a permanently
	// stalled link loops here until the caller cancels.
	for res.Received < s.cfg.PacketsToSend {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case p, ok := <-s.payloads:
			if !ok {
				return res, ErrReceiverStopped
			}
			s.grade(res, p)
			res.Received++
		case <-time.After(s.cfg.RecvTimeout):
			monitoring.Logf("timeout waiting for frame (%d/%d received)", res.Received, s.cfg.PacketsToSend)
		}
	}

	return res, nil
}

// grade appends one record per field, in field order.
func (s *Session) grade(res *Result, p frame.Payload) {
	for i, expected := range s.cfg.Expected {
		received := p[i]
		errPct := (float64(received) - float64(expected)) / float64(expected) * 100
		res.Records = append(res.Records, Record{
			Field:    i + 1,
			Expected: expected,
			Received: received,
			ErrorPct: errPct,
			Pass:     math.Abs(errPct) <= s.cfg.TolerancePct,
		})
	}
}
