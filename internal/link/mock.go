package link

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrPortClosed is returned by mock port operations after Close.
var ErrPortClosed = errors.New("serial port closed")

// MockPort implements Porter with configurable behaviour for testing and
// dev mode. Reads drain ReadBuffer; an empty buffer behaves like a serial
// read timeout (n == 0, nil error) so the receiver's empty-read path is
// exercised the same way a real quiet port exercises it.
type MockPort struct {
	mu sync.Mutex

	// ReadBuffer holds data to be returned by Read calls.
	ReadBuffer *bytes.Buffer

	// WriteBuffer captures data written to the port.
	WriteBuffer *bytes.Buffer

	// Loopback echoes every Write back into ReadBuffer, simulating a
	// device that reflects frames unchanged.
	Loopback bool

	// ReadError is returned by the next Read call if set.
	ReadError error

	// WriteError is returned by the next Write call if set.
	WriteError error

	// Closed indicates whether Close was called.
	Closed bool

	// ReadTimeout is the last timeout passed to SetReadTimeout.
	ReadTimeout time.Duration

	// IdleReadDelay is slept on empty reads so a spinning receiver does
	// not busy-loop in tests; it stands in for a real port's timeout wait.
	IdleReadDelay time.Duration
}

// NewMockPort creates an empty MockPort.
func NewMockPort() *MockPort {
	return &MockPort{
		ReadBuffer:    bytes.NewBuffer(nil),
		WriteBuffer:   bytes.NewBuffer(nil),
		IdleReadDelay: time.Millisecond,
	}
}

// NewLoopbackPort creates a MockPort that echoes writes back to reads.
func NewLoopbackPort() *MockPort {
	p := NewMockPort()
	p.Loopback = true
	return p
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	if m.Closed {
		m.mu.Unlock()
		return 0, ErrPortClosed
	}
	if m.ReadError != nil {
		err := m.ReadError
		m.ReadError = nil
		m.mu.Unlock()
		return 0, err
	}
	if m.ReadBuffer.Len() == 0 {
		delay := m.IdleReadDelay
		m.mu.Unlock()
		// Emulate a read timeout with no data.
		time.Sleep(delay)
		return 0, nil
	}
	defer m.mu.Unlock()
	return m.ReadBuffer.Read(p)
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return 0, ErrPortClosed
	}
	if m.WriteError != nil {
		err := m.WriteError
		m.WriteError = nil
		return 0, err
	}
	if m.Loopback {
		m.ReadBuffer.Write(p)
	}
	return m.WriteBuffer.Write(p)
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// SetReadTimeout records the requested timeout. The mock's Read already
// behaves like a timed-out read when no data is buffered.
func (m *MockPort) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadTimeout = timeout
	return nil
}

// AddReadData queues data for subsequent Read calls.
func (m *MockPort) AddReadData(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadBuffer.Write(data)
}

// FailNextRead arranges for the next Read call to return err.
func (m *MockPort) FailNextRead(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadError = err
}

// WrittenData returns a copy of everything written to the port so far.
func (m *MockPort) WrittenData() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.WriteBuffer.Bytes()...)
}
