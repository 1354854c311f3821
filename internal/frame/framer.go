package frame

// Framer turns an arbitrarily-chunked byte stream into a sequence of
// validated payloads. It self-heals after corruption or alignment loss by
// dropping one leading byte at a time until a valid frame boundary is
// found: a one-byte resync re-scans more than a whole-frame skip would,
// but recovers from any single-byte insertion, deletion or corruption,
// which is the right trade for a low-rate control link.
//
// A Framer is not safe for concurrent use; it is owned by whichever loop
// is draining the transport.
type Framer struct {
	cfg Config
	buf []byte
}

// NewFramer returns a Framer for the given frame layout.
func NewFramer(cfg Config) *Framer {
	return &Framer{cfg: cfg}
}

// Feed appends chunk to the internal buffer and extracts every complete
// valid frame now available, returning their payloads in stream order.
// Partial frames (including fragments shorter than the magic) stay
// buffered for the next call; an empty chunk is a no-op. A payload is
// never emitted twice and dropped bytes are never revisited.
func (f *Framer) Feed(chunk []byte) []Payload {
	f.buf = append(f.buf, chunk...)

	frameLen := f.cfg.FrameLen()
	var out []Payload
	for len(f.buf) >= frameLen {
		p, err := f.cfg.Decode(f.buf[:frameLen])
		if err != nil {
			// Bad magic or bad checksum: resync by one byte.
			f.buf = f.buf[1:]
			continue
		}
		out = append(out, p)
		f.buf = f.buf[frameLen:]
	}

	// Re-home the residue so the backing array of consumed bytes can be
	// collected between feeds.
	if len(f.buf) == 0 {
		f.buf = nil
	} else {
		f.buf = append([]byte(nil), f.buf...)
	}
	return out
}

// Pending reports how many bytes are buffered awaiting more data.
func (f *Framer) Pending() int {
	return len(f.buf)
}
