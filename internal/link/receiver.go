package link

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/linkcheck/internal/frame"
	"github.com/banshee-data/linkcheck/internal/monitoring"
)

// ReceiverConfig tunes the receive loop. Zero values take defaults.
type ReceiverConfig struct {
	// ChunkSize bounds how many bytes each port read may return.
	ChunkSize int
	// ReadTimeout is applied to the port so reads return promptly with no
	// data instead of blocking; it bounds shutdown latency.
	ReadTimeout time.Duration
	// QueueSize is the payload channel capacity. It is sized generously so
	// the read path never waits on a slow consumer.
	QueueSize int
}

const (
	defaultChunkSize   = 64
	defaultReadTimeout = 100 * time.Millisecond
	defaultQueueSize   = 256
)

func (c ReceiverConfig) withDefaults() ReceiverConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	return c
}

// Receiver drains a serial port on its own goroutine, feeds the bytes
// through a Framer, and publishes every validated payload in arrival
// order on a buffered channel. The framer's buffer is touched only from
// the Run goroutine, so it needs no lock.
type Receiver struct {
	port     Porter
	framer   *frame.Framer
	cfg      ReceiverConfig
	payloads chan frame.Payload

	// err records why the loop stopped; it is written before the payload
	// channel closes, so consumers may read it via Err after the channel
	// is drained. nil means a clean, cancelled shutdown.
	err error
}

// NewReceiver creates a Receiver for the given port and frame layout.
func NewReceiver(port Porter, frameCfg frame.Config, cfg ReceiverConfig) *Receiver {
	cfg = cfg.withDefaults()
	return &Receiver{
		port:     port,
		framer:   frame.NewFramer(frameCfg),
		cfg:      cfg,
		payloads: make(chan frame.Payload, cfg.QueueSize),
	}
}

// Payloads returns the channel of validated payloads. It is closed when
// the receive loop exits, whether by cancellation or transport failure.
func (r *Receiver) Payloads() <-chan frame.Payload {
	return r.payloads
}

// Err reports why the receive loop stopped. It is meaningful only after
// the Payloads channel has closed; nil means cancellation, non-nil means
// the transport failed.
func (r *Receiver) Err() error {
	return r.err
}

// Run reads from the port until ctx is cancelled or the port fails hard.
// The stop signal is checked each iteration; an in-flight read is not
// interrupted, so shutdown latency is bounded by one read timeout. Empty
// reads (timeout, no data) are not errors and simply loop again.
func (r *Receiver) Run(ctx context.Context) error {
	defer close(r.payloads)

	if err := r.port.SetReadTimeout(r.cfg.ReadTimeout); err != nil {
		r.err = fmt.Errorf("set read timeout: %w", err)
		return r.err
	}

	buf := make([]byte, r.cfg.ChunkSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := r.port.Read(buf)
		if err != nil {
			r.err = fmt.Errorf("serial read: %w", err)
			monitoring.Logf("receiver stopping: %v", r.err)
			return r.err
		}
		if n == 0 {
			continue
		}

		for _, p := range r.framer.Feed(buf[:n]) {
			select {
			case r.payloads <- p:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
