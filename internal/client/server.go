package client

import (
	"log"
	"net"

	"github.com/indigo-web/strand/config"
	"github.com/indigo-web/strand/connector"
	"github.com/indigo-web/strand/internal/protocol/http1"
	"github.com/indigo-web/strand/transport"
)

// Server is the part shared by all the connections. It must not be modified once
// connections are being spawned.
type Server struct {
	cfg     *config.Config
	chain   *connector.Chain
	modules []Module
	parser  *http1.Parser
	logger  *log.Logger
}

func NewServer(cfg *config.Config, chain *connector.Chain, modules []Module, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	return &Server{
		cfg:     cfg,
		chain:   chain,
		modules: modules,
		parser:  http1.NewParser(cfg),
		logger:  logger,
	}
}

// Spawn creates a connection and opens all the modules on it. If a module fails, the
// connection is torn down right away and its first step reports it stopped.
func (s *Server) Spawn(ops transport.Ops, remote net.Addr) transport.Runner {
	c := newClient(s, ops, remote)

	for _, module := range s.modules {
		ctx, err := module.Open(c)
		if err != nil {
			s.logger.Printf("WARNING: dropping connection from %s: %s", remote, err)
			c.teardown()
			break
		}

		if ctx != nil {
			c.contexts = append(c.contexts, ctx)
		}
	}

	return c
}
