package link

import (
	"bytes"
	"errors"
	"testing"
)

func TestMockPortLoopback(t *testing.T) {
	port := NewLoopbackPort()
	msg := []byte{0x24, 0x46, 0x53, 1, 2, 3}
	if _, err := port.Write(msg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make([]byte, 16)
	n, err := port.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(buf[:n], msg) {
		t.Errorf("Read = % X, want % X", buf[:n], msg)
	}
	if !bytes.Equal(port.WrittenData(), msg) {
		t.Errorf("WrittenData = % X, want % X", port.WrittenData(), msg)
	}
}

func TestMockPortEmptyReadBehavesLikeTimeout(t *testing.T) {
	port := NewMockPort()
	n, err := port.Read(make([]byte, 8))
	if n != 0 || err != nil {
		t.Errorf("empty Read = (%d, %v), want (0, nil)", n, err)
	}
}

func TestMockPortFailNextReadIsOneShot(t *testing.T) {
	port := NewMockPort()
	boom := errors.New("boom")
	port.FailNextRead(boom)

	if _, err := port.Read(make([]byte, 8)); !errors.Is(err, boom) {
		t.Fatalf("first Read err = %v, want %v", err, boom)
	}
	if _, err := port.Read(make([]byte, 8)); err != nil {
		t.Errorf("second Read err = %v, want nil", err)
	}
}

func TestMockPortClosed(t *testing.T) {
	port := NewMockPort()
	if err := port.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := port.Read(make([]byte, 8)); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Read after close err = %v, want ErrPortClosed", err)
	}
	if _, err := port.Write([]byte{1}); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Write after close err = %v, want ErrPortClosed", err)
	}
}
