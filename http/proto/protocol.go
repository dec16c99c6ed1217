package proto

import (
	"fmt"

	"github.com/indigo-web/utils/strcomp"
)

// Protocol versions are ordered, so the response version can be capped by a plain
// comparison.
type Protocol uint8

const (
	Unknown Protocol = iota
	HTTP09
	HTTP10
	HTTP11
	HTTP2
)

// Tokens is the ordered list of version tokens recognized in a request line.
var Tokens = []Protocol{HTTP09, HTTP10, HTTP11, HTTP2}

func (p Protocol) String() string {
	lut := [...]string{HTTP09: "HTTP/0.9", HTTP10: "HTTP/1.0", HTTP11: "HTTP/1.1", HTTP2: "HTTP/2"}
	if int(p) >= len(lut) {
		return ""
	}

	return lut[p]
}

// Match returns the first version whose token prefixes the line, compared
// case-insensitively.
func Match(line string) Protocol {
	for _, p := range Tokens {
		token := p.String()
		if len(line) >= len(token) && strcomp.EqualFold(line[:len(token)], token) {
			return p
		}
	}

	return Unknown
}

// Min returns the lower of two versions.
func Min(a, b Protocol) Protocol {
	if a < b {
		return a
	}

	return b
}

func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Protocol) UnmarshalText(text []byte) error {
	if *p = Match(string(text)); *p == Unknown || len(text) != len(p.String()) {
		return fmt.Errorf("unknown protocol version: %q", text)
	}

	return nil
}
