package climate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/microclimate/pkg/config"
	"github.com/itohio/microclimate/pkg/esp"
	"github.com/itohio/microclimate/pkg/logging"
	"github.com/itohio/microclimate/pkg/state"
)

// Modem is the client link the transport task owns.
type Modem interface {
	State() esp.State
	BringUp(ctx context.Context) error
	Poll(ctx context.Context) (esp.Request, bool, error)
	Respond(ctx context.Context, client int, payload []byte) error
	CheckStations(ctx context.Context) (int, error)
}

// Handler turns a request payload into a response.
type Handler interface {
	Handle(payload []byte) []byte
}

// Drainer applies queued commands.
type Drainer interface {
	Drain() int
}

var _ Modem = (*esp.Bridge)(nil)

// Transport owns the modem: it brings the link up, answers requests and
// applies queued commands.
type Transport struct {
	modem       Modem
	handler     Handler
	commands    Drainer
	store       *state.Store
	interval    time.Duration
	bookkeeping time.Duration
	stations    time.Duration
	retryAfter  time.Duration
	now         func() time.Time
	logger      *zap.Logger

	attempted   bool
	lastAttempt time.Time
	lastBook    time.Time
	lastCheck   time.Time
}

// NewTransport creates the transport task.
func NewTransport(modem Modem, handler Handler, commands Drainer, store *state.Store, sched config.ScheduleConfig, retryAfter time.Duration, now func() time.Time, logger *zap.Logger) *Transport {
	if now == nil {
		now = time.Now
	}
	start := now()
	return &Transport{
		modem:       modem,
		handler:     handler,
		commands:    commands,
		store:       store,
		interval:    sched.Transport,
		bookkeeping: sched.Bookkeeping,
		stations:    sched.ClientCheck,
		retryAfter:  retryAfter,
		now:         now,
		logger:      logging.OrNop(logger).Named("transport"),
		lastBook:    start,
		lastCheck:   start,
	}
}

// Run serves the link until ctx is cancelled.
func (t *Transport) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		t.Step(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step performs one transport cycle.
func (t *Transport) Step(ctx context.Context) {
	if t.modem.State() == esp.StateActive {
		t.serve(ctx)
	} else {
		t.bringUp(ctx)
	}

	now := t.now()
	if now.Sub(t.lastBook) >= t.bookkeeping {
		t.lastBook = now
		if n := t.commands.Drain(); n > 0 {
			t.logger.Debug("Commands applied", zap.Int("count", n))
		}
		t.store.Flags.Connected.Store(t.modem.State() == esp.StateActive)
	}
}

func (t *Transport) bringUp(ctx context.Context) {
	now := t.now()
	if t.attempted && now.Sub(t.lastAttempt) < t.retryAfter {
		return
	}
	t.attempted = true
	t.lastAttempt = now

	if err := t.modem.BringUp(ctx); err != nil {
		if ctx.Err() == nil {
			t.logger.Warn("Modem bring-up failed", zap.Error(err), zap.Duration("retry_after", t.retryAfter))
		}
		return
	}
	t.lastCheck = t.now()
}

func (t *Transport) serve(ctx context.Context) {
	req, ok, err := t.modem.Poll(ctx)
	if err != nil {
		t.logger.Debug("Poll failed", zap.Error(err))
		return
	}
	if ok {
		resp := t.handler.Handle(req.Payload)
		if err := t.modem.Respond(ctx, req.Client, resp); err != nil {
			t.logger.Warn("Failed to answer client", zap.Int("client", req.Client), zap.Error(err))
		}
	}

	now := t.now()
	if now.Sub(t.lastCheck) >= t.stations {
		t.lastCheck = now
		n, err := t.modem.CheckStations(ctx)
		if err != nil {
			t.logger.Warn("Station check failed", zap.Error(err), zap.Stringer("state", t.modem.State()))
			return
		}
		t.logger.Debug("Stations", zap.Int("count", n))
	}
}
