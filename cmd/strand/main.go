package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/indigo-web/strand"
	"github.com/indigo-web/strand/config"
	"github.com/indigo-web/strand/connectors/info"
	"github.com/indigo-web/strand/connectors/static"
)

func main() {
	var (
		cfgPath   = flag.String("config", "", "path to a JSON config overlaying the defaults")
		root      = flag.String("root", ".", "directory to serve files from")
		addr      = flag.String("addr", ":8080", "address to listen on")
		tlsAddr   = flag.String("tls", "", "address to listen on with a self-signed certificate")
		eventloop = flag.Bool("eventloop", false, "serve all the connections from a single event loop")
		vhost     = flag.String("vhost", "", "serve only requests to this host")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.FromFile(*cfgPath); err != nil {
			log.Fatalf("cannot load config: %s", err)
		}
	}

	if *eventloop {
		cfg.Server.Scheduler = config.EventLoop
	}

	app := strand.New().
		Tune(cfg).
		Module(strand.Sessions(16)).
		Connector(*vhost, static.New("/", *root)).
		Connector(*vhost, info.New("/.info")).
		Connector("", strand.DateHeader()).
		Listen(*addr).
		NotifyOnStart(func() {
			log.Printf("serving %s on %s", *root, *addr)
		})

	if *tlsAddr != "" {
		// modules apply to every listener of an app, so TLS gets an app of its own. The
		// handshake needs blocking reads, hence the goroutine scheduler.
		tlsCfg := *cfg
		tlsCfg.Server.Scheduler = config.Goroutine
		tlsApp := strand.New().
			Tune(&tlsCfg).
			Module(strand.AutoHTTPS(), strand.Sessions(16)).
			Connector(*vhost, static.New("/", *root)).
			Connector(*vhost, info.New("/.info")).
			Connector("", strand.DateHeader()).
			Listen(*tlsAddr)

		go func() {
			if err := tlsApp.Serve(); err != nil {
				log.Fatalf("TLS listener: %s", err)
			}
		}()
		defer tlsApp.Stop()
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Print("shutting down")
		app.Stop()
	}()

	if err := app.Serve(); err != nil {
		log.Fatal(err)
	}
}
