package strand

import (
	"github.com/dchest/uniuri"
	"github.com/indigo-web/strand/http"
	"github.com/indigo-web/strand/internal/timer"
)

// SessionKey is the session entry the Sessions module fills.
const SessionKey = "id"

// Sessions seeds the session of every connection with a random identifier of n characters.
func Sessions(n int) Module {
	if n <= 0 {
		n = uniuri.StdLen
	}

	return ModuleFunc(func(c *Conn) error {
		return c.Session().Set(SessionKey, uniuri.NewLen(n))
	})
}

// TimeFormat is the format of the Date header.
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// DateHeader returns a connector stamping the Date header onto every response. It never
// claims requests, so it must be registered after the connectors it decorates in order to
// be tried first.
func DateHeader() http.Connector {
	return http.ConnectorFunc(func(_ *http.Request, resp *http.Response) http.Result {
		resp.Header("Date", timer.Now().UTC().Format(TimeFormat))
		return http.Pass
	})
}
