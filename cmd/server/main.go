// Command server exposes one conversation over Server-Sent Events: a
// browser (or curl) posts a message and watches the reply, including any
// tool calls along the way, stream in as conversation/eventbus events
// over a real HTTP transport.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	srv, err := newServer()
	if err != nil {
		log.Fatalf("server: %v", err)
	}

	addr := ":" + envOr("PORT", "8080")
	httpSrv := &http.Server{Addr: addr, Handler: srv.router()}

	go func() {
		log.Printf("server: listening on %s", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
