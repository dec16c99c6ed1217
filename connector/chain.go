package connector

import (
	"github.com/indigo-web/strand/http"
	"github.com/indigo-web/strand/http/status"
	"github.com/indigo-web/utils/strcomp"
)

// Entry is a connector together with its virtual host filter. An empty VHost matches any
// request.
type Entry struct {
	VHost     string
	Connector http.Connector
}

// Matches reports whether the request is addressed to the entry's virtual host.
func (e Entry) Matches(req *http.Request) bool {
	if len(e.VHost) == 0 {
		return true
	}

	host, found := req.Headers.Get("host")
	if !found {
		return false
	}

	return strcomp.EqualFold(e.VHost, normalizeHost(host))
}

// Chain is an ordered list of connectors. The server keeps a template chain, and every
// connection works on its own clone, so pruning on one connection never affects the others.
type Chain struct {
	entries []Entry
}

func New() *Chain {
	return new(Chain)
}

// Add registers the connector. The most recently added connector is tried first.
func (c *Chain) Add(vhost string, connector http.Connector) *Chain {
	entry := Entry{
		VHost:     normalizeHost(vhost),
		Connector: connector,
	}
	c.entries = append([]Entry{entry}, c.entries...)

	return c
}

// Clone returns a shallow copy of the chain. Connectors themselves are shared.
func (c *Chain) Clone() *Chain {
	entries := make([]Entry, len(c.entries))
	copy(entries, c.entries)

	return &Chain{entries: entries}
}

// Entries returns the entries in the order they are tried.
func (c *Chain) Entries() []Entry {
	return c.entries
}

func (c *Chain) Len() int {
	return len(c.entries)
}

// Dispatch offers the request to the entries one by one until some claims it:
//
//   - Reject prunes the entry off the chain and moves on;
//   - Pass moves on, keeping the entry;
//   - Continue binds the connector to the request and stops;
//   - Success binds the connector and stops. If the response status is not 200 OK, Reject
//     is returned instead, so the request takes the error path.
//
// When nobody claims the request, Reject is returned.
func (c *Chain) Dispatch(req *http.Request, resp *http.Response) http.Result {
	for i := 0; i < len(c.entries); {
		entry := c.entries[i]
		if !entry.Matches(req) {
			i++
			continue
		}

		switch result := entry.Connector.Serve(req, resp); result {
		case http.Reject:
			c.prune(i)
		case http.Pass:
			i++
		case http.Success:
			if resp.Status() != status.OK {
				return http.Reject
			}

			req.Bind(entry.Connector)
			return http.Success
		default:
			req.Bind(entry.Connector)
			return result
		}
	}

	return http.Reject
}

func (c *Chain) prune(i int) {
	c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
}
