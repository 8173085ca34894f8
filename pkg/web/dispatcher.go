package web

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/itohio/microclimate/pkg/logging"
)

// Canned responses
const (
	responseOK = "HTTP/1.1 200 OK\r\n" +
		"Content-Type: text/plain\r\n" +
		"Access-Control-Allow-Origin: *\r\n" +
		"\r\n" +
		"OK"
	responseNotFound = "HTTP/1.1 404 Not Found\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<h1>404 Not Found</h1>"
	responseError = "HTTP/1.1 500 Internal Server Error\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"Internal Server Error"
)

// Dispatcher maps a request payload to a complete HTTP response.
type Dispatcher struct {
	renderer Renderer
	queue    *Queue
	logger   *zap.Logger
}

// NewDispatcher creates a dispatcher rendering through renderer and
// queueing commands onto queue.
func NewDispatcher(renderer Renderer, queue *Queue, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		renderer: renderer,
		queue:    queue,
		logger:   logging.OrNop(logger),
	}
}

// Handle answers one request. It never blocks on the command consumer.
func (d *Dispatcher) Handle(payload []byte) []byte {
	route := Match(payload)
	switch route {
	case RoutePage:
		body, err := d.renderer.Page()
		if err != nil {
			d.logger.Error("Failed to render page", zap.Error(err))
			return []byte(responseError)
		}
		return withBody("text/html; charset=utf-8", body)

	case RouteData:
		body, err := d.renderer.Status()
		if err != nil {
			d.logger.Error("Failed to render status", zap.Error(err))
			return []byte(responseError)
		}
		return withBody("application/json", body)

	case RouteControl, RouteSettings:
		if q := Query(payload, MaxCommandLength); q != "" {
			if !d.queue.Put(q) {
				d.logger.Warn("Command queue full, dropping command",
					zap.Stringer("route", route),
					zap.String("command", q),
				)
			}
		}
		return []byte(responseOK)

	default:
		d.logger.Debug("Unknown request", zap.ByteString("line", RequestLine(payload)))
		return []byte(responseNotFound)
	}
}

func withBody(contentType string, body []byte) []byte {
	header := fmt.Sprintf("HTTP/1.1 200 OK\r\n"+
		"Content-Type: %s\r\n"+
		"Access-Control-Allow-Origin: *\r\n"+
		"Content-Length: %d\r\n"+
		"Connection: close\r\n"+
		"\r\n", contentType, len(body))
	return append([]byte(header), body...)
}
