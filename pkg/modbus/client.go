package modbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/itohio/microclimate/pkg/gpio"
	"github.com/itohio/microclimate/pkg/logging"
	"github.com/itohio/microclimate/pkg/serialport"
)

// DefaultTimeout bounds both the request write and the response read.
const DefaultTimeout = 100 * time.Millisecond

// Client reads single registers from one slave on a half-duplex RS-485 line.
type Client struct {
	port     serialport.Port
	address  byte
	function byte
	timeout  time.Duration
	dir      gpio.Output
	logger   *zap.Logger

	mu sync.Mutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithFunction selects the read function code.
func WithFunction(fn byte) ClientOption {
	return func(c *Client) { c.function = fn }
}

// WithDirection sets the transceiver direction output, driven high for the
// duration of each request write.
func WithDirection(o gpio.Output) ClientOption {
	return func(c *Client) {
		if o != nil {
			c.dir = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logging.OrNop(l) }
}

// NewClient creates a client for the slave at address.
func NewClient(port serialport.Port, address byte, opts ...ClientOption) *Client {
	c := &Client{
		port:     port,
		address:  address,
		function: FuncCodeReadHoldingRegisters,
		timeout:  DefaultTimeout,
		dir:      gpio.Nop{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ReadRegister performs one request/response exchange for reg. There is no
// retry; callers keep their previous value on error.
func (c *Client) ReadRegister(ctx context.Context, reg uint16) (uint16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.port.ResetInputBuffer(); err != nil {
		c.logger.Debug("Failed to flush bus input", zap.Error(err))
	}

	req := BuildRequest(c.address, c.function, reg, 1)
	if err := c.transmit(req[:]); err != nil {
		return 0, err
	}

	var resp [ResponseSize]byte
	n, err := serialport.ReadFull(c.port, resp[:], c.timeout)
	if err != nil {
		if errors.Is(err, serialport.ErrTimeout) {
			return 0, fmt.Errorf("%w: register 0x%04X, %d of %d bytes", ErrTimeout, reg, n, ResponseSize)
		}
		return 0, fmt.Errorf("read register 0x%04X: %w", reg, err)
	}

	value, err := ParseResponse(resp[:], c.address, c.function)
	if err != nil {
		return 0, fmt.Errorf("register 0x%04X: %w", reg, err)
	}

	c.logger.Debug("Register read",
		zap.Uint16("register", reg),
		zap.Uint16("value", value),
	)
	return value, nil
}

func (c *Client) transmit(frame []byte) error {
	if err := c.dir.Set(true); err != nil {
		return fmt.Errorf("set bus direction: %w", err)
	}
	_, werr := c.port.Write(frame)
	if werr == nil {
		// The transceiver must keep driving the bus until the last byte
		// is shifted out.
		if err := c.port.Drain(); err != nil {
			werr = fmt.Errorf("drain: %w", err)
		}
	}
	if err := c.dir.Set(false); err != nil && werr == nil {
		werr = fmt.Errorf("release bus direction: %w", err)
	}
	if werr != nil {
		return fmt.Errorf("write request: %w", werr)
	}
	return nil
}
