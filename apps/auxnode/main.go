//
// main.go
//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-logr/stdr"
	"github.com/markkurossi/mpsi/auxnode"
	"github.com/markkurossi/mpsi/env"
	"github.com/markkurossi/mpsi/p2p"
)

func main() {
	log.SetFlags(0)

	listen := flag.String("listen", ":9000", "Auxiliary node listen address")
	httpAddr := flag.String("http", ":9080", "HTTP status listen address")
	verbose := flag.Int("v", 0, "Log verbosity level")
	flag.Parse()

	stdr.SetVerbosity(*verbose)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags))
	config := &env.Config{
		Logger: logger,
	}

	nw, err := p2p.NewNetwork(*listen, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer nw.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	server := auxnode.NewServer(config, nw, nw.Addr().String())

	httpServer := &http.Server{
		Addr:              *httpAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(err, "HTTP server failed")
			stop()
		}
	}()
	logger.Info("auxiliary node started", "listen", nw.Addr().String(),
		"http", *httpAddr)

	err = server.Serve(ctx)

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	httpServer.Shutdown(shutdown)

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(err, "auxiliary node failed")
		os.Exit(1)
	}
}
