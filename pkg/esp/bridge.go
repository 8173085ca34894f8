// Package esp drives an ESP8266-class modem over its AT command interface
// as a soft access point with a multiplexed TCP server, and exchanges
// client requests and responses through it.
package esp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/microclimate/pkg/gpio"
	"github.com/itohio/microclimate/pkg/logging"
	"github.com/itohio/microclimate/pkg/serialport"
)

// State is the bring-up status of the modem.
type State int32

const (
	StateDown State = iota
	StateInitializing
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDown:
		return "down"
	case StateInitializing:
		return "initializing"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// MaxSendSize is the largest payload a single AT+CIPSEND may carry.
const MaxSendSize = 2048

// healthFailureLimit consecutive failed station queries take the link down.
const healthFailureLimit = 3

var (
	ErrNoResponse = errors.New("esp: expected response not received")
	ErrNotActive  = errors.New("esp: bridge not active")
	ErrNoPrompt   = errors.New("esp: send prompt not received")
	ErrRejected   = errors.New("esp: command rejected")
)

var errorToken = []byte("\r\nERROR\r\n")

// AccessPoint describes the network the modem hosts.
type AccessPoint struct {
	SSID        string
	Passphrase  string
	Channel     int
	Security    int
	Address     string
	Port        int
	IdleTimeout int // Seconds
}

// Timing holds every delay and timeout of the command exchange.
type Timing struct {
	ResetPulse    time.Duration
	Settle        time.Duration
	ProbeAttempts int
	ProbeTimeout  time.Duration
	ProbeBackoff  time.Duration
	RestoreDelay  time.Duration
	Command       time.Duration // AP mode, address, mux and server commands
	Configure     time.Duration // AT+CWSAP
	Secondary     time.Duration // Best-effort settings
	Query         time.Duration // AT+CWSAP?
	Prompt        time.Duration // ">" after AT+CIPSEND
	SendComplete  time.Duration // "SEND OK" after the payload
	Close         time.Duration // "OK" after AT+CIPCLOSE
	StationCheck  time.Duration // AT+CWLIF
	Poll          time.Duration // Read wait when polling for requests
	Drain         time.Duration // Quiet period that ends a drain
}

// DefaultTiming returns the timing of a real modem.
func DefaultTiming() Timing {
	return Timing{
		ResetPulse:    100 * time.Millisecond,
		Settle:        3 * time.Second,
		ProbeAttempts: 5,
		ProbeTimeout:  time.Second,
		ProbeBackoff:  500 * time.Millisecond,
		RestoreDelay:  2 * time.Second,
		Command:       2 * time.Second,
		Configure:     5 * time.Second,
		Secondary:     time.Second,
		Query:         2 * time.Second,
		Prompt:        time.Second,
		SendComplete:  2 * time.Second,
		Close:         500 * time.Millisecond,
		StationCheck:  time.Second,
		Poll:          10 * time.Millisecond,
		Drain:         10 * time.Millisecond,
	}
}

// Bridge owns the modem's serial port. All methods except State must be
// called from a single goroutine.
type Bridge struct {
	port   serialport.Port
	ap     AccessPoint
	timing Timing
	reset  gpio.Output
	enable gpio.Output
	logger *zap.Logger

	state    atomic.Int32
	framer   *Framer
	pending  map[int]struct{}
	failures int
	rx       []byte
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option {
	return func(b *Bridge) { b.timing = t }
}

// WithReset sets the active-low reset output.
func WithReset(o gpio.Output) Option {
	return func(b *Bridge) {
		if o != nil {
			b.reset = o
		}
	}
}

// WithEnable sets the chip enable output.
func WithEnable(o gpio.Output) Option {
	return func(b *Bridge) {
		if o != nil {
			b.enable = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.logger = logging.OrNop(l) }
}

// New creates a bridge in the Down state.
func New(port serialport.Port, ap AccessPoint, opts ...Option) *Bridge {
	b := &Bridge{
		port:    port,
		ap:      ap,
		timing:  DefaultTiming(),
		reset:   gpio.Nop{},
		enable:  gpio.Nop{},
		logger:  zap.NewNop(),
		framer:  NewFramer(),
		pending: make(map[int]struct{}),
		rx:      make([]byte, 256),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current bring-up state. Safe for concurrent use.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

func (b *Bridge) setState(s State) {
	if old := State(b.state.Swap(int32(s))); old != s {
		b.logger.Info("Modem state changed",
			zap.Stringer("from", old),
			zap.Stringer("to", s),
		)
	}
}

// Pending returns the ids of clients whose request has not been answered.
func (b *Bridge) Pending() []int {
	ids := make([]int, 0, len(b.pending))
	for id := range b.pending {
		ids = append(ids, id)
	}
	return ids
}

// BringUp resets and configures the modem. On success the bridge is
// Active; on failure it is Down and the error names the failed step.
func (b *Bridge) BringUp(ctx context.Context) error {
	b.setState(StateInitializing)
	b.framer.Reset()
	clear(b.pending)
	b.failures = 0

	if err := b.bringUp(ctx); err != nil {
		b.setState(StateDown)
		return err
	}

	b.setState(StateActive)
	return nil
}

func (b *Bridge) bringUp(ctx context.Context) error {
	t := b.timing

	if err := b.enable.Set(true); err != nil {
		return fmt.Errorf("enable modem: %w", err)
	}
	if err := b.reset.Set(false); err != nil {
		return fmt.Errorf("assert reset: %w", err)
	}
	if err := sleep(ctx, t.ResetPulse); err != nil {
		return err
	}
	if err := b.reset.Set(true); err != nil {
		return fmt.Errorf("release reset: %w", err)
	}
	if err := sleep(ctx, t.Settle); err != nil {
		return err
	}
	if err := b.drain(ctx); err != nil {
		return err
	}

	if err := b.probe(ctx); err != nil {
		return err
	}

	if err := b.send("AT+RESTORE"); err != nil {
		return err
	}
	if err := sleep(ctx, t.RestoreDelay); err != nil {
		return err
	}
	if err := b.drain(ctx); err != nil {
		return err
	}

	ap := b.ap
	required := []struct {
		cmd     string
		timeout time.Duration
	}{
		{"AT+CWMODE=2", t.Command},
		{fmt.Sprintf("AT+CWSAP=%q,%q,%d,%d", ap.SSID, ap.Passphrase, ap.Channel, ap.Security), t.Configure},
		{fmt.Sprintf("AT+CIPAP=%q", ap.Address), t.Command},
		{"AT+CIPMUX=1", t.Command},
		{fmt.Sprintf("AT+CIPSERVER=1,%d", ap.Port), t.Command},
	}
	for _, step := range required {
		if err := b.exchange(ctx, step.cmd, "OK", step.timeout); err != nil {
			return err
		}
	}

	optional := []struct {
		cmd, token string
		timeout    time.Duration
	}{
		{fmt.Sprintf("AT+CIPSTO=%d", ap.IdleTimeout), "OK", t.Secondary},
		{"AT+CIPDINFO=1", "OK", t.Secondary},
		{"AT+CWSAP?", "+CWSAP:", t.Query},
	}
	for _, step := range optional {
		if err := b.exchange(ctx, step.cmd, step.token, step.timeout); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("Optional modem setting failed",
				zap.String("command", redact(step.cmd)),
				zap.Error(err),
			)
		}
	}

	b.logger.Info("Access point up",
		zap.String("ssid", ap.SSID),
		zap.String("address", ap.Address),
		zap.Int("port", ap.Port),
	)
	return nil
}

func (b *Bridge) probe(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= b.timing.ProbeAttempts; attempt++ {
		if err = b.exchange(ctx, "AT", "OK", b.timing.ProbeTimeout); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Debug("Modem probe failed", zap.Int("attempt", attempt), zap.Error(err))
		if err := sleep(ctx, b.timing.ProbeBackoff); err != nil {
			return err
		}
	}
	return fmt.Errorf("modem not responding after %d attempts: %w", b.timing.ProbeAttempts, err)
}

// Poll reads available modem output and returns at most one client request.
func (b *Bridge) Poll(ctx context.Context) (Request, bool, error) {
	if b.State() != StateActive {
		return Request{}, false, ErrNotActive
	}
	if err := ctx.Err(); err != nil {
		return Request{}, false, err
	}

	if req, ok := b.framer.Next(); ok {
		b.pending[req.Client] = struct{}{}
		return req, true, nil
	}

	if err := b.port.SetReadTimeout(b.timing.Poll); err != nil {
		return Request{}, false, fmt.Errorf("set read timeout: %w", err)
	}
	n, err := b.port.Read(b.rx)
	if err != nil {
		return Request{}, false, fmt.Errorf("read modem: %w", err)
	}
	if n == 0 {
		return Request{}, false, nil
	}
	b.framer.Write(b.rx[:n])

	req, ok := b.framer.Next()
	if ok {
		b.pending[req.Client] = struct{}{}
		b.logger.Debug("Client request",
			zap.Int("client", req.Client),
			zap.Int("bytes", len(req.Payload)),
		)
	}
	return req, ok, nil
}

// Respond sends payload to client and closes the connection. Payloads
// larger than MaxSendSize go out in several sends. If the modem does not
// prompt for data the response is abandoned.
func (b *Bridge) Respond(ctx context.Context, client int, payload []byte) error {
	delete(b.pending, client)

	if b.State() != StateActive {
		return ErrNotActive
	}

	for off := 0; off < len(payload); off += MaxSendSize {
		chunk := payload[off:min(off+MaxSendSize, len(payload))]

		if err := b.exchange(ctx, fmt.Sprintf("AT+CIPSEND=%d,%d", client, len(chunk)), ">", b.timing.Prompt); err != nil {
			if errors.Is(err, ErrNoResponse) || errors.Is(err, ErrRejected) {
				return fmt.Errorf("client %d: %w", client, ErrNoPrompt)
			}
			return err
		}
		if _, err := b.port.Write(chunk); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		if err := b.await(ctx, "SEND OK", b.timing.SendComplete); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("Send not confirmed", zap.Int("client", client), zap.Error(err))
		}
	}

	if err := b.send(fmt.Sprintf("AT+CIPCLOSE=%d", client)); err != nil {
		return err
	}
	// The close reply must not be taken for the answer to a later command.
	if err := b.await(ctx, "OK", b.timing.Close); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.Debug("Close not confirmed", zap.Int("client", client), zap.Error(err))
	}
	return nil
}

// CheckStations queries the stations joined to the access point and returns
// their count. After repeated failures the bridge goes Down so that the
// next bring-up attempt can recover the modem.
func (b *Bridge) CheckStations(ctx context.Context) (int, error) {
	if b.State() != StateActive {
		return 0, ErrNotActive
	}

	if err := b.send("AT+CWLIF"); err != nil {
		return 0, err
	}
	out, err := b.collect(ctx, "OK", b.timing.StationCheck)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		b.failures++
		if b.failures >= healthFailureLimit {
			b.logger.Warn("Modem stopped answering", zap.Int("failures", b.failures))
			b.setState(StateDown)
		}
		return 0, fmt.Errorf("station query: %w", err)
	}
	b.failures = 0

	return bytes.Count(out, []byte("+CWLIF:")), nil
}

// exchange sends cmd and waits for token.
func (b *Bridge) exchange(ctx context.Context, cmd, token string, timeout time.Duration) error {
	if err := b.send(cmd); err != nil {
		return err
	}
	if err := b.await(ctx, token, timeout); err != nil {
		return fmt.Errorf("%s: %w", redact(cmd), err)
	}
	return nil
}

func (b *Bridge) send(cmd string) error {
	if _, err := b.port.Write([]byte(cmd + "\r\n")); err != nil {
		return fmt.Errorf("write %s: %w", redact(cmd), err)
	}
	return nil
}

func (b *Bridge) await(ctx context.Context, token string, timeout time.Duration) error {
	_, err := b.collect(ctx, token, timeout)
	return err
}

// collectWindow bounds the bytes kept while searching for a token.
const collectWindow = 512

// collect reads until token appears or timeout passes and returns what was
// read. While Active, everything read is also handed to the framer so that
// requests arriving mid-exchange are not lost.
func (b *Bridge) collect(ctx context.Context, token string, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	tok := []byte(token)
	var acc []byte

	defer func() {
		if b.State() == StateActive && len(acc) > 0 {
			b.framer.Write(acc)
		}
	}()

	for {
		if bytes.Contains(acc, tok) {
			return acc, nil
		}
		if bytes.Contains(acc, errorToken) {
			return acc, ErrRejected
		}
		if err := ctx.Err(); err != nil {
			return acc, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return acc, fmt.Errorf("%w: %q", ErrNoResponse, token)
		}
		if err := b.port.SetReadTimeout(min(remaining, b.timing.Poll)); err != nil {
			return acc, fmt.Errorf("set read timeout: %w", err)
		}
		n, err := b.port.Read(b.rx)
		if err != nil {
			return acc, fmt.Errorf("read modem: %w", err)
		}
		if len(acc)+n > collectWindow {
			drop := len(acc) + n - collectWindow
			if drop > len(acc) {
				drop = len(acc)
			}
			if b.State() == StateActive {
				b.framer.Write(acc[:drop])
			}
			acc = append(acc[:0], acc[drop:]...)
		}
		acc = append(acc, b.rx[:n]...)
	}
}

// drain discards modem output until it goes quiet.
func (b *Bridge) drain(ctx context.Context) error {
	if err := b.port.ResetInputBuffer(); err != nil {
		b.logger.Debug("Failed to reset modem input", zap.Error(err))
	}
	if err := b.port.SetReadTimeout(b.timing.Drain); err != nil {
		return fmt.Errorf("set read timeout: %w", err)
	}
	for i := 0; i < 1000; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := b.port.Read(b.rx)
		if err != nil {
			return fmt.Errorf("drain modem: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// redact hides the access point passphrase in logged commands.
func redact(cmd string) string {
	if strings.HasPrefix(cmd, "AT+CWSAP=") {
		return "AT+CWSAP=..."
	}
	return cmd
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
