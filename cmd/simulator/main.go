package main

import (
	"fmt"
	"log"

	"aquadash/internal/config"
	"aquadash/internal/server"
	"aquadash/internal/sim"
	"aquadash/internal/token"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	gin.SetMode(cfg.GinMode)

	st, err := sim.NewStore()
	if err != nil {
		log.Fatal(err)
	}
	hub := sim.NewHub()

	telemetry := sim.NewTelemetry(st, hub, cfg.TelemetryInterval)
	telemetry.Start()
	defer telemetry.Stop()

	tokenCfg := token.Config{
		Secret: cfg.TokenSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "aquadash",
	}

	router := server.NewRouter(server.Deps{Store: st, Hub: hub, TokenConfig: tokenCfg})
	log.Printf("listening on %s", fmt.Sprintf(":%d", cfg.Port))
	log.Fatal(server.Run(cfg, router))
}
