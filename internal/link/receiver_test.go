package link

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/banshee-data/linkcheck/internal/frame"
	"github.com/banshee-data/linkcheck/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func encodeFrame(t *testing.T, p frame.Payload) []byte {
	t.Helper()
	wire, err := frame.DefaultConfig().Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return wire
}

func collectPayloads(t *testing.T, ch <-chan frame.Payload, n int) []frame.Payload {
	t.Helper()
	var got []frame.Payload
	for len(got) < n {
		select {
		case p, ok := <-ch:
			if !ok {
				t.Fatalf("payload channel closed after %d of %d payloads", len(got), n)
			}
			got = append(got, p)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for payload %d of %d", len(got)+1, n)
		}
	}
	return got
}

func TestReceiverExtractsPayloads(t *testing.T) {
	port := NewMockPort()
	payload := frame.Payload{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110}
	port.AddReadData(encodeFrame(t, payload))
	port.AddReadData(encodeFrame(t, payload))

	r := NewReceiver(port, frame.DefaultConfig(), ReceiverConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	got := collectPayloads(t, r.Payloads(), 2)
	for i, p := range got {
		if !bytes.Equal(p, payload) {
			t.Errorf("payload %d = % X, want % X", i, p, payload)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v after cancellation, want nil", err)
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v after cancellation, want nil", r.Err())
	}
}

func TestReceiverResyncsAcrossReads(t *testing.T) {
	port := NewMockPort()
	payload := frame.Payload{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	wire := encodeFrame(t, payload)

	// Junk, then a frame split across two reads.
	port.AddReadData([]byte{0xDE, 0xAD})
	port.AddReadData(wire[:7])

	r := NewReceiver(port, frame.DefaultConfig(), ReceiverConfig{ChunkSize: 8})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	// Nothing yet: the frame is incomplete.
	select {
	case p := <-r.Payloads():
		t.Fatalf("premature payload % X", p)
	case <-time.After(20 * time.Millisecond):
	}

	port.AddReadData(wire[7:])
	got := collectPayloads(t, r.Payloads(), 1)
	if !bytes.Equal(got[0], payload) {
		t.Errorf("payload = % X, want % X", got[0], payload)
	}
}

func TestReceiverStopsOnTransportError(t *testing.T) {
	port := NewMockPort()
	readErr := errors.New("device unplugged")
	port.FailNextRead(readErr)

	r := NewReceiver(port, frame.DefaultConfig(), ReceiverConfig{})
	err := r.Run(context.Background())
	if !errors.Is(err, readErr) {
		t.Fatalf("Run returned %v, want wrapped %v", err, readErr)
	}
	if !errors.Is(r.Err(), readErr) {
		t.Errorf("Err() = %v, want wrapped %v", r.Err(), readErr)
	}

	// The payload channel must close so consumers observe the stop.
	select {
	case _, ok := <-r.Payloads():
		if ok {
			t.Error("expected closed payload channel")
		}
	case <-time.After(time.Second):
		t.Error("payload channel not closed after transport error")
	}
}

func TestReceiverCancellation(t *testing.T) {
	port := NewMockPort()
	r := NewReceiver(port, frame.DefaultConfig(), ReceiverConfig{ReadTimeout: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v on cancellation, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver did not stop after cancellation")
	}
}

func TestReceiverEmptyReadsAreNotErrors(t *testing.T) {
	port := NewMockPort()
	r := NewReceiver(port, frame.DefaultConfig(), ReceiverConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	// Let it spin on empty reads for a while, then deliver a frame.
	time.Sleep(30 * time.Millisecond)
	payload := frame.Payload{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	port.AddReadData(encodeFrame(t, payload))

	got := collectPayloads(t, r.Payloads(), 1)
	if !bytes.Equal(got[0], payload) {
		t.Errorf("payload = % X, want % X", got[0], payload)
	}
	cancel()
	<-done
}

func TestReceiverSetsReadTimeout(t *testing.T) {
	port := NewMockPort()
	r := NewReceiver(port, frame.DefaultConfig(), ReceiverConfig{ReadTimeout: 42 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = r.Run(ctx)

	port.mu.Lock()
	defer port.mu.Unlock()
	if port.ReadTimeout != 42*time.Millisecond {
		t.Errorf("port read timeout = %v, want 42ms", port.ReadTimeout)
	}
}

func TestReceiverConfigDefaults(t *testing.T) {
	cfg := ReceiverConfig{}.withDefaults()
	if cfg.ChunkSize != defaultChunkSize {
		t.Errorf("ChunkSize = %d, want %d", cfg.ChunkSize, defaultChunkSize)
	}
	if cfg.ReadTimeout != defaultReadTimeout {
		t.Errorf("ReadTimeout = %v, want %v", cfg.ReadTimeout, defaultReadTimeout)
	}
	if cfg.QueueSize != defaultQueueSize {
		t.Errorf("QueueSize = %d, want %d", cfg.QueueSize, defaultQueueSize)
	}
}
