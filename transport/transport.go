package transport

import "github.com/indigo-web/strand/config"

// Transport accepts connections and schedules them. Two implementations exist: TCP runs
// every connection on its own goroutine, EventLoop advances all of them from a single
// readiness-driven loop.
type Transport interface {
	Bind(addr string) error
	// Listen serves connections until stopped. It blocks.
	Listen(cfg *config.Config, spawn Spawner) error
	// Stop stops accepting new connections. Existing ones are served until they complete.
	Stop()
	// Abort closes all the live connections.
	Abort()
	Close()
	// Wait blocks until all the connections are gone.
	Wait()
}
