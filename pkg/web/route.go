// Package web answers the requests clients send through the modem: it
// routes the request line, renders pages and status, and queues control
// and settings commands for the applier.
package web

import (
	"bytes"
)

// Route identifies a request target.
type Route int

const (
	RouteNotFound Route = iota
	RoutePage
	RouteData
	RouteControl
	RouteSettings
)

func (r Route) String() string {
	switch r {
	case RoutePage:
		return "page"
	case RouteData:
		return "data"
	case RouteControl:
		return "control"
	case RouteSettings:
		return "settings"
	default:
		return "not found"
	}
}

// routes is matched in order against the start of the request line.
var routes = []struct {
	prefix string
	route  Route
}{
	{"GET / ", RoutePage},
	{"GET /index.html", RoutePage},
	{"GET /data", RouteData},
	{"GET /control", RouteControl},
	{"GET /settings", RouteSettings},
}

// RequestLine returns the first line of payload without its terminator.
func RequestLine(payload []byte) []byte {
	if i := bytes.IndexByte(payload, '\n'); i >= 0 {
		payload = payload[:i]
	}
	return bytes.TrimRight(payload, "\r")
}

// Match returns the route of a request payload.
func Match(payload []byte) Route {
	line := RequestLine(payload)
	for _, r := range routes {
		if bytes.HasPrefix(line, []byte(r.prefix)) {
			return r.route
		}
	}
	return RouteNotFound
}

// Query returns the query string of the request line, starting at '?' and
// ending before the first space, bounded to max bytes. It returns "" when
// there is none.
func Query(payload []byte, max int) string {
	line := RequestLine(payload)
	i := bytes.IndexByte(line, '?')
	if i < 0 {
		return ""
	}
	q := line[i:]
	if j := bytes.IndexByte(q, ' '); j >= 0 {
		q = q[:j]
	}
	if len(q) > max {
		q = q[:max]
	}
	return string(q)
}
