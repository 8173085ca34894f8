package esp

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itohio/microclimate/pkg/serialport"
)

// Sim is an in-process modem speaking the AT subset the bridge uses. It
// stands in for the serial port in tests and in mock mode.
type Sim struct {
	mu          sync.Mutex
	out         []byte
	line        []byte
	readTimeout time.Duration
	closed      bool
	notify      chan struct{}

	commands []string
	clients  map[int]bool
	stations []string
	sent     map[int][]byte

	// Data mode after an accepted AT+CIPSEND.
	sendClient int
	sendLeft   int

	failures map[string]bool

	// Mute makes the modem ignore everything it receives.
	Mute atomic.Bool
}

// Ensure Sim implements serialport.Port.
var _ serialport.Port = (*Sim)(nil)

// NewSim creates a simulated modem.
func NewSim() *Sim {
	return &Sim{
		readTimeout: 10 * time.Millisecond,
		notify:      make(chan struct{}, 1),
		clients:     make(map[int]bool),
		sent:        make(map[int][]byte),
		failures:    make(map[string]bool),
	}
}

// Fail makes every command starting with prefix answer ERROR.
func (s *Sim) Fail(prefix string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[prefix] = fail
}

// Connect simulates a station joining the access point.
func (s *Sim) Connect(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations = append(s.stations, addr)
}

// Inject delivers a client request as the modem would report it.
func (s *Sim) Inject(client int, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.clients[client] {
		s.clients[client] = true
		s.emit(fmt.Sprintf("%d,CONNECT\r\n", client))
	}
	s.emit(fmt.Sprintf("\r\n+IPD,%d,%d:%s", client, len(payload), payload))
}

// Emit delivers raw bytes to the host.
func (s *Sim) Emit(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(raw)
}

// Commands returns every command line received so far.
func (s *Sim) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Sent returns the bytes transmitted to client.
func (s *Sim) Sent(client int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.sent[client])
}

// Open reports whether client has a live connection.
func (s *Sim) Open(client int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients[client]
}

// Write consumes host output.
func (s *Sim) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New("port closed")
	}
	if s.Mute.Load() {
		return len(p), nil
	}

	for i := 0; i < len(p); i++ {
		if s.sendLeft > 0 {
			n := min(s.sendLeft, len(p)-i)
			s.sent[s.sendClient] = append(s.sent[s.sendClient], p[i:i+n]...)
			s.sendLeft -= n
			i += n - 1
			if s.sendLeft == 0 {
				s.emit(fmt.Sprintf("\r\nRecv %d bytes\r\n\r\nSEND OK\r\n", len(s.sent[s.sendClient])))
			}
			continue
		}
		s.line = append(s.line, p[i])
		if bytes.HasSuffix(s.line, []byte("\r\n")) {
			cmd := string(bytes.TrimSuffix(s.line, []byte("\r\n")))
			s.line = s.line[:0]
			s.command(cmd)
		}
	}
	return len(p), nil
}

// Read returns pending modem output, waiting up to the read timeout.
func (s *Sim) Read(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, errors.New("port closed")
	}
	if len(s.out) == 0 {
		timeout := s.readTimeout
		s.mu.Unlock()

		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-s.notify:
		case <-timer.C:
			return 0, nil
		}

		s.mu.Lock()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	s.mu.Unlock()
	return n, nil
}

// SetReadTimeout sets how long Read waits for output.
func (s *Sim) SetReadTimeout(t time.Duration) error {
	s.mu.Lock()
	s.readTimeout = t
	s.mu.Unlock()
	return nil
}

// Drain returns immediately; host output is consumed by Write.
func (s *Sim) Drain() error {
	return nil
}

// ResetInputBuffer discards pending modem output.
func (s *Sim) ResetInputBuffer() error {
	s.mu.Lock()
	s.out = nil
	s.mu.Unlock()
	return nil
}

// Close closes the simulated port.
func (s *Sim) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// emit queues output for the host. Caller holds s.mu.
func (s *Sim) emit(out string) {
	s.out = append(s.out, out...)
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// command answers one command line. Caller holds s.mu.
func (s *Sim) command(cmd string) {
	if cmd == "" {
		return
	}
	s.commands = append(s.commands, cmd)

	for prefix, fail := range s.failures {
		if fail && strings.HasPrefix(cmd, prefix) {
			s.emit(cmd + "\r\n\r\nERROR\r\n")
			return
		}
	}

	switch {
	case cmd == "AT", strings.HasPrefix(cmd, "AT+CWMODE="), strings.HasPrefix(cmd, "AT+CWSAP="),
		strings.HasPrefix(cmd, "AT+CIPAP="), strings.HasPrefix(cmd, "AT+CIPMUX="),
		strings.HasPrefix(cmd, "AT+CIPSERVER="), strings.HasPrefix(cmd, "AT+CIPSTO="),
		strings.HasPrefix(cmd, "AT+CIPDINFO="):
		s.emit(cmd + "\r\n\r\nOK\r\n")

	case cmd == "AT+RESTORE":
		s.clients = make(map[int]bool)
		s.emit(cmd + "\r\n\r\nOK\r\n\r\nready\r\n")

	case cmd == "AT+CWSAP?":
		s.emit(cmd + "\r\n+CWSAP:\"sim\",\"\",1,3,4,0\r\n\r\nOK\r\n")

	case cmd == "AT+CWLIF":
		var b strings.Builder
		b.WriteString(cmd + "\r\n")
		for _, st := range s.stations {
			b.WriteString("+CWLIF:" + st + "\r\n")
		}
		b.WriteString("\r\nOK\r\n")
		s.emit(b.String())

	case strings.HasPrefix(cmd, "AT+CIPSEND="):
		var id, n int
		if _, err := fmt.Sscanf(strings.TrimPrefix(cmd, "AT+CIPSEND="), "%d,%d", &id, &n); err != nil || n <= 0 || n > 2048 {
			s.emit(cmd + "\r\n\r\nERROR\r\n")
			return
		}
		if !s.clients[id] {
			s.emit(cmd + "\r\nlink is not valid\r\n\r\nERROR\r\n")
			return
		}
		s.sendClient = id
		s.sendLeft = n
		s.emit(cmd + "\r\n\r\nOK\r\n> ")

	case strings.HasPrefix(cmd, "AT+CIPCLOSE="):
		id, err := strconv.Atoi(strings.TrimPrefix(cmd, "AT+CIPCLOSE="))
		if err != nil || !s.clients[id] {
			s.emit(cmd + "\r\n\r\nERROR\r\n")
			return
		}
		delete(s.clients, id)
		s.emit(fmt.Sprintf("%s\r\n%d,CLOSED\r\n\r\nOK\r\n", cmd, id))

	default:
		s.emit(cmd + "\r\n\r\nERROR\r\n")
	}
}
