package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aquadash/internal/app"
	"aquadash/internal/config"
)

// Headless dashboard client: boots the session context, logs in with
// the configured credentials, opens the live channel, and prints the
// pushed state until interrupted.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Shutdown()

	a.Boot()
	ctx := context.Background()

	if !a.Session.Authenticated() {
		if cfg.LoginUsername == "" {
			log.Fatal("no persisted session and LOGIN_USERNAME is not set")
		}
		if res := a.Login(ctx, cfg.LoginUsername, cfg.LoginPassword); !res.Success {
			log.Fatalf("login: %s", res.Error)
		}
	}
	if user, ok := a.Session.User(); ok {
		log.Printf("signed in as %s (%s)", user.Username, user.Role)
	}

	if res := a.OpenChannel(ctx); !res.Success {
		log.Fatalf("open channel: %s", res.Error)
	}
	log.Printf("watching %d device(s)", len(a.Devices.List()))

	report := time.NewTicker(10 * time.Second)
	defer report.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-report.C:
			for _, dev := range a.Devices.List() {
				reading, ok := a.Sensors.Latest(dev.ID)
				if !ok {
					continue
				}
				pump, _ := a.Sensors.Pump(dev.ID)
				log.Printf("%s: water=%.1f%% temp=%.1fC pump=%s channel=%s",
					dev.Name, reading.WaterLevel, reading.Temperature, pump.Status(), a.Channel.State())
			}
			if a.Channel.Offline() {
				log.Printf("live updates offline, restart to reconnect")
			}
		case <-stop:
			log.Printf("shutting down")
			return
		}
	}
}
