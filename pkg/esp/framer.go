package esp

import (
	"bytes"
	"strconv"
)

// Framing limits
const (
	DefaultHighWater  = 400  // Accumulated bytes tolerated without a complete frame
	DefaultCapacity   = 1024 // Hard bound on accumulated bytes
	DefaultMaxPayload = 511  // Longest request payload handed to the dispatcher
)

var (
	ipdMarker = []byte("+IPD,")
	crlf      = []byte("\r\n")
)

// Request is a client request extracted from the modem stream.
type Request struct {
	Client  int
	Payload []byte
}

// Framer accumulates modem output and extracts "+IPD,<id>,<len>[,...]:<data>"
// notifications. After a request is extracted the whole buffer is discarded,
// so at most one request is produced per accumulation.
type Framer struct {
	buf        []byte
	highWater  int
	capacity   int
	maxPayload int
}

// NewFramer creates a framer with the default limits.
func NewFramer() *Framer {
	return &Framer{
		buf:        make([]byte, 0, DefaultCapacity),
		highWater:  DefaultHighWater,
		capacity:   DefaultCapacity,
		maxPayload: DefaultMaxPayload,
	}
}

// Write appends modem output. Bytes beyond the capacity are dropped from
// the front of the buffer.
func (f *Framer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= f.capacity {
		p = p[len(p)-f.capacity:]
		f.buf = f.buf[:0]
	} else if over := len(f.buf) + len(p) - f.capacity; over > 0 {
		f.buf = append(f.buf[:0], f.buf[over:]...)
	}
	f.buf = append(f.buf, p...)
	return n, nil
}

// Len returns the number of accumulated bytes.
func (f *Framer) Len() int {
	return len(f.buf)
}

// Reset discards the accumulated bytes.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// Next extracts one request. It reports false when no complete request is
// buffered yet. Malformed notifications and buffers grown past the
// high-water mark are discarded.
func (f *Framer) Next() (Request, bool) {
	req, status := f.scan()
	switch status {
	case frameComplete:
		f.Reset()
		return req, true
	case frameMalformed:
		f.Reset()
	case frameNone, framePartial:
		if len(f.buf) > f.highWater {
			f.Reset()
		}
	}
	return Request{}, false
}

type frameStatus int

const (
	frameNone frameStatus = iota
	framePartial
	frameMalformed
	frameComplete
)

func (f *Framer) scan() (Request, frameStatus) {
	start := bytes.Index(f.buf, ipdMarker)
	if start < 0 {
		return Request{}, frameNone
	}
	rest := f.buf[start+len(ipdMarker):]

	comma := bytes.IndexByte(rest, ',')
	colon := bytes.IndexByte(rest, ':')
	if comma < 0 || colon < 0 {
		return Request{}, framePartial
	}
	if colon < comma {
		return Request{}, frameMalformed
	}

	id, err := strconv.Atoi(string(rest[:comma]))
	if err != nil || id < 0 {
		return Request{}, frameMalformed
	}

	// The declared length ends at the next comma (with connection info
	// enabled) or at the colon.
	header := rest[comma+1 : colon]
	if i := bytes.IndexByte(header, ','); i >= 0 {
		header = header[:i]
	}
	declared, err := strconv.Atoi(string(header))
	if err != nil {
		declared = 0
	}

	payload := rest[colon+1:]
	// The payload ends at the first line end, the declared length or the
	// payload bound, whichever comes first.
	end := f.maxPayload
	if declared > 0 && declared < end {
		end = declared
	}
	if i := bytes.Index(payload, crlf); i >= 0 && i+len(crlf) < end {
		end = i + len(crlf)
	}
	if len(payload) < end {
		return Request{}, framePartial
	}
	payload = payload[:end]

	return Request{
		Client:  id,
		Payload: bytes.Clone(payload),
	}, frameComplete
}
