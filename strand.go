package strand

import (
	"errors"
	"log"
	"net"
	"sync"

	"github.com/indigo-web/strand/config"
	"github.com/indigo-web/strand/connector"
	"github.com/indigo-web/strand/http"
	"github.com/indigo-web/strand/internal/client"
	"github.com/indigo-web/strand/transport"
)

type (
	// Conn is a single client connection, as seen by modules.
	Conn = client.Client
	// Module extends every accepted connection. See client.Module.
	Module        = client.Module
	ModuleContext = client.ModuleContext
	// ModuleFunc is a module without per-connection context.
	ModuleFunc = client.ModuleFunc
)

var (
	ErrNoListeners     = errors.New("no listeners were added")
	ErrTLSOverLoop     = errors.New("TLS modules require the goroutine scheduler")
	ErrAlreadyServing  = errors.New("the application is already serving")
	ErrBadCertificate  = errors.New("one or more passed certificates are empty")
	ErrNoCertificates  = errors.New("no certificates were passed")
	ErrUnknownSchedule = errors.New("unknown scheduler")
)

// App is the embeddable server. Connectors and modules must be registered before Serve is
// called; from then on they are shared by all the connections and never modified.
type App struct {
	cfg       *config.Config
	chain     *connector.Chain
	modules   []Module
	listeners []listener
	logger    *log.Logger
	hooks     hooks

	mu      sync.Mutex
	serving bool
	sup     *transport.Supervisor
}

type listener struct {
	addr      string
	transport transport.Transport
}

// New returns a new App instance with default config.
func New() *App {
	return &App{
		cfg:    config.Default(),
		chain:  connector.New(),
		logger: log.Default(),
	}
}

// Tune replaces the config. It must be derived from config.Default().
func (a *App) Tune(cfg *config.Config) *App {
	a.cfg = cfg
	return a
}

// Logger replaces the logger, which is log.Default() otherwise.
func (a *App) Logger(logger *log.Logger) *App {
	a.logger = logger
	return a
}

// Connector registers the connector. The most recently registered connectors are tried
// first. An empty vhost matches requests to any host.
func (a *App) Connector(vhost string, c http.Connector) *App {
	a.chain.Add(vhost, c)
	return a
}

// Module registers modules. They are opened on every connection in the order of
// registration and closed in the reverse one.
func (a *App) Module(modules ...Module) *App {
	a.modules = append(a.modules, modules...)
	return a
}

// Listen adds a listener on the address. The way connections are scheduled is set by
// the config.
func (a *App) Listen(addr string) *App {
	a.listeners = append(a.listeners, listener{addr: addr})
	return a
}

// NotifyOnStart calls the callback once all the listeners are bound.
func (a *App) NotifyOnStart(cb func()) *App {
	a.hooks.OnStart = cb
	return a
}

// NotifyOnStop calls the callback once all the listeners are down and all the connections
// are gone.
func (a *App) NotifyOnStop(cb func()) *App {
	a.hooks.OnStop = cb
	return a
}

// Serve binds all the listeners and serves until stopped or any of the listeners fails.
func (a *App) Serve() error {
	if len(a.listeners) == 0 {
		return ErrNoListeners
	}

	if a.cfg.Server.Scheduler == config.EventLoop {
		for _, m := range a.modules {
			if _, ok := m.(tlsModule); ok {
				return ErrTLSOverLoop
			}
		}
	}

	// the addresses must not be bound twice
	a.mu.Lock()
	if a.serving {
		a.mu.Unlock()
		return ErrAlreadyServing
	}
	a.serving = true
	a.mu.Unlock()

	sup, err := a.bind()
	if err != nil {
		a.mu.Lock()
		a.serving = false
		a.mu.Unlock()

		return err
	}

	a.mu.Lock()
	a.sup = sup
	a.mu.Unlock()

	callIfNotNil(a.hooks.OnStart)
	err = sup.Run(a.cfg)
	callIfNotNil(a.hooks.OnStop)

	return err
}

// bind binds every listener to its own transport.
func (a *App) bind() (*transport.Supervisor, error) {
	srv := client.NewServer(a.cfg, a.chain, a.modules, a.logger)
	sup := transport.NewSupervisor()

	for i := range a.listeners {
		t, err := a.newTransport()
		if err != nil {
			return nil, err
		}

		if err = sup.Add(a.listeners[i].addr, t, srv.Spawn); err != nil {
			return nil, err
		}

		a.listeners[i].transport = t
	}

	return sup, nil
}

func (a *App) newTransport() (transport.Transport, error) {
	switch a.cfg.Server.Scheduler {
	case config.Goroutine, "":
		return transport.NewTCP(a.logger), nil
	case config.EventLoop:
		return transport.NewEventLoop(a.logger), nil
	default:
		return nil, ErrUnknownSchedule
	}
}

// Addrs returns the addresses the listeners are bound to. Listeners whose address isn't
// known before the engine starts report nil.
func (a *App) Addrs() []net.Addr {
	addrs := make([]net.Addr, len(a.listeners))
	for i, l := range a.listeners {
		if tcp, ok := l.transport.(*transport.TCP); ok {
			addrs[i] = tcp.Addr()
		}
	}

	return addrs
}

// Stop stops accepting new connections and blocks until the served ones complete.
func (a *App) Stop() {
	if sup := a.supervisor(); sup != nil {
		sup.Stop()
	}
}

// Abort closes all the connections right away and stops.
func (a *App) Abort() {
	if sup := a.supervisor(); sup != nil {
		sup.Abort()
	}
}

func (a *App) supervisor() *transport.Supervisor {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.sup
}

type hooks struct {
	OnStart, OnStop func()
}

func callIfNotNil(f func()) {
	if f != nil {
		f()
	}
}
