package web

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/itohio/microclimate/pkg/logging"
	"github.com/itohio/microclimate/pkg/state"
)

// Applier turns queued query strings into settings changes.
type Applier struct {
	store  *state.Store
	queue  *Queue
	logger *zap.Logger
}

// NewApplier creates an applier draining queue into store.
func NewApplier(store *state.Store, queue *Queue, logger *zap.Logger) *Applier {
	return &Applier{
		store:  store,
		queue:  queue,
		logger: logging.OrNop(logger),
	}
}

// Drain applies every queued command without waiting and returns how many
// were applied.
func (a *Applier) Drain() int {
	n := 0
	for {
		cmd, ok := a.queue.TryGet()
		if !ok {
			return n
		}
		a.Apply(cmd)
		n++
	}
}

// Apply parses a query string such as "?mode=1&heat_setpoint=23.5" and
// writes the recognized keys in one settings update. Unrecognized tokens
// and unparsable values are ignored.
func (a *Applier) Apply(query string) state.Settings {
	var edits []func(*state.Settings)

	tokens := strings.FieldsFunc(query, func(r rune) bool { return r == '?' || r == '&' })
	for _, tok := range tokens {
		key, value, found := strings.Cut(tok, "=")
		if !found {
			continue
		}
		switch key {
		case "mode":
			if on, ok := parseFlag(value); ok {
				edits = append(edits, func(s *state.Settings) { s.AutoMode = on })
			}
		case "heating":
			if on, ok := parseFlag(value); ok {
				edits = append(edits, func(s *state.Settings) { s.HeatingEnabled = on })
			}
		case "humidification":
			if on, ok := parseFlag(value); ok {
				edits = append(edits, func(s *state.Settings) { s.HumidificationEnabled = on })
			}
		case "heat_setpoint":
			if v, ok := parseSetpoint(value); ok {
				edits = append(edits, func(s *state.Settings) { s.TemperatureSetpoint = v })
			}
		case "hum_setpoint":
			if v, ok := parseSetpoint(value); ok {
				edits = append(edits, func(s *state.Settings) { s.HumiditySetpoint = v })
			}
		case "date", "time":
			// Clock setting is accepted but has no effect; the host clock
			// is managed by the operating system.
			a.logger.Debug("Ignoring clock setting", zap.String("token", tok))
		default:
			a.logger.Debug("Ignoring unknown command token", zap.String("token", tok))
		}
	}

	if len(edits) == 0 {
		return a.store.Settings()
	}

	settings := a.store.UpdateSettings(func(s *state.Settings) {
		for _, edit := range edits {
			edit(s)
		}
	})
	a.logger.Info("Settings updated",
		zap.String("command", query),
		zap.Bool("auto_mode", settings.AutoMode),
		zap.Bool("heating", settings.HeatingEnabled),
		zap.Bool("humidification", settings.HumidificationEnabled),
		zap.Float64("heat_setpoint", settings.TemperatureSetpoint),
		zap.Float64("hum_setpoint", settings.HumiditySetpoint),
	)
	return settings
}

func parseFlag(v string) (bool, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return false, false
	}
	return n != 0, true
}

func parseSetpoint(v string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
