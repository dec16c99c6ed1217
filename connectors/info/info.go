// Package info reports what the server knows about the connection and the request.
package info

import (
	"github.com/indigo-web/strand/http"
	"github.com/indigo-web/strand/http/method"
)

// Report is the body of the response.
type Report struct {
	Server  Server            `json:"server"`
	Request Request           `json:"request"`
	Session map[string]string `json:"session,omitempty"`
}

type Server struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Port     string `json:"port"`
}

type Request struct {
	Method        string            `json:"method"`
	URI           string            `json:"uri"`
	Path          string            `json:"path"`
	Query         string            `json:"query,omitempty"`
	RemoteAddr    string            `json:"remote_addr"`
	RemotePort    string            `json:"remote_port"`
	ContentLength string            `json:"content_length"`
	Headers       map[string]string `json:"headers"`
}

// New returns the connector answering GET requests to the path.
func New(path string) http.Connector {
	return http.ConnectorFunc(func(req *http.Request, resp *http.Response) http.Result {
		if req.Path() != path || (req.Method != method.GET && req.Method != method.HEAD) {
			return http.Pass
		}

		if err := resp.JSON(Collect(req)); err != nil {
			return http.Reject
		}

		return http.Success
	})
}

// Collect gathers the report of the request.
func Collect(req *http.Request) Report {
	report := Report{
		Server: Server{
			Name:     req.Meta("name"),
			Protocol: req.Meta("protocol"),
			Port:     req.Meta("port"),
		},
		Request: Request{
			Method:        req.Meta("method"),
			URI:           req.Meta("uri"),
			Path:          req.Meta("path"),
			Query:         req.Meta("query"),
			RemoteAddr:    req.Meta("remote_addr"),
			RemotePort:    req.Meta("remote_port"),
			ContentLength: req.Meta("content-length"),
			Headers:       make(map[string]string, req.Headers.Len()),
		},
	}

	for key, value := range req.Headers.Iter() {
		report.Request.Headers[key] = value
	}

	if session := req.Session(); session != nil && session.Len() > 0 {
		report.Session = make(map[string]string, session.Len())
		for key, value := range session.Iter() {
			report.Session[key] = value
		}
	}

	return report
}
