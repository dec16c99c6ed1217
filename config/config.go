package config

import (
	"os"
	"time"

	"github.com/indigo-web/strand/http/proto"
	json "github.com/json-iterator/go"
)

type Scheduler string

const (
	// Goroutine runs every connection on its own goroutine until it stops.
	Goroutine Scheduler = "goroutine"
	// EventLoop advances every connection from a single readiness-driven loop.
	EventLoop Scheduler = "eventloop"
)

type (
	// Limits bound a single buffer. The buffer grows by Buffer.ChunkSize at most Chunks times
	// and never beyond Ceiling bytes.
	Limits struct {
		Chunks  int
		Ceiling int
	}

	Server struct {
		// Name is reported by the server metadata lookup.
		Name string
		// Version caps the protocol version of responses.
		Version proto.Protocol
		// KeepAlive enables persistent connections. Even if enabled, a connection is kept only
		// if the client asked for it explicitly and the response length is known.
		KeepAlive bool
		// ExtendedMethods enables PUT and DELETE in addition to GET, POST and HEAD.
		ExtendedMethods bool
		// MaxPipelined limits how many parsed requests may wait for their responses.
		MaxPipelined int
		// MaxClients limits the number of simultaneously served connections.
		MaxClients int
		// Scheduler picks the way connections are driven.
		Scheduler Scheduler
	}

	Buffer struct {
		// ChunkSize is the growth step of every buffer.
		ChunkSize int
		// URI stores the request target.
		URI Limits
		// Headers stores raw header lines of requests and headers added to responses.
		Headers Limits
		// Content stores request body pieces and response bodies before they are written.
		Content Limits
		// Scratch accumulates socket reads not yet consumed by the parser.
		Scratch Limits
		// Response stores a serialized status line with headers.
		Response Limits
		// Session stores the per-connection session table.
		Session Limits
	}

	NET struct {
		// ReadBufferSize is a size of buffer in bytes which will be used to read from
		// socket
		ReadBufferSize int
		// KeepAliveTimeout bounds every wait on a socket. If no data was received in this
		// period of time, the connection is closed.
		KeepAliveTimeout time.Duration
		// AcceptLoopInterruptPeriod controls how often will the Accept() call be interrupted
		// in order to check whether it's time to stop. Defaults to 5 seconds.
		AcceptLoopInterruptPeriod time.Duration
	}
)

// Config holds settings used across the server, mainly restrictions and limitations. It is
// passed explicitly down to every connection.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because most likely this will result in ambiguous errors.
type Config struct {
	Server Server
	Buffer Buffer
	NET    NET
}

// Default returns default config.
func Default() *Config {
	return &Config{
		Server: Server{
			Name:            "libhttpserver",
			Version:         proto.HTTP11,
			KeepAlive:       true,
			ExtendedMethods: true,
			MaxPipelined:    8,
			MaxClients:      1024,
			Scheduler:       Goroutine,
		},
		Buffer: Buffer{
			ChunkSize: 64,
			URI:       Limits{Chunks: 32, Ceiling: 2048},
			Headers:   Limits{Chunks: 32, Ceiling: 2048},
			Content:   Limits{Chunks: 64, Ceiling: 4096},
			Scratch:   Limits{Chunks: 64, Ceiling: 4096},
			Response:  Limits{Chunks: 64, Ceiling: 4096},
			Session:   Limits{Chunks: 16, Ceiling: 1024},
		},
		NET: NET{
			ReadBufferSize:            1024,
			KeepAliveTimeout:          90 * time.Second,
			AcceptLoopInterruptPeriod: 5 * time.Second,
		},
	}
}

// FromJSON overlays the JSON document over the defaults. Durations are nanoseconds, the
// protocol version is a token like "HTTP/1.0".
func FromJSON(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.ConfigCompatibleWithStandardLibrary.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromFile reads the file and decodes it via FromJSON.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return FromJSON(data)
}
