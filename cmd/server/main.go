package main

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/beamit-app/beamit/internal/config"
	"github.com/beamit-app/beamit/internal/logging"
	"github.com/beamit-app/beamit/internal/relay"
	"github.com/beamit-app/beamit/internal/server"
)

func main() {
	logging.Init(logrus.InfoLevel)

	cfg := config.LoadServer()

	registry := relay.NewRegistry(relay.RegistryConfig{
		MaxMembers:           cfg.MaxMembers,
		ReconnectOverlap:     cfg.ReconnectOverlap,
		AllowWaitingReceiver: cfg.AllowWaitingReceiver,
	})

	hub := relay.NewHub(registry)
	go hub.Run()

	limiter := relay.NewRateLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)

	logrus.Infof("signaling relay listening on %s", cfg.Addr)
	logrus.Fatal(http.ListenAndServe(cfg.Addr, server.NewMux(hub, limiter)))
}
