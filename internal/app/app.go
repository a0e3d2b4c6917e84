package app

import (
	"context"
	"fmt"
	"log"
	"sync"

	"aquadash/internal/api"
	"aquadash/internal/config"
	"aquadash/internal/guard"
	"aquadash/internal/realtime"
	"aquadash/internal/session"
	"aquadash/internal/store"
	"aquadash/internal/token"
)

// Known dashboard views. Everything except login requires a session;
// the admin panel additionally requires the admin role.
var routes = []guard.Route{
	{Path: guard.LoginPath, Public: true},
	{Path: guard.DashboardPath},
	{Path: "/devices"},
	{Path: "/admin", AdminOnly: true},
}

// App assembles the dashboard client: the session context, the route
// guard, the live channel, and the domain caches. Components receive
// their collaborators by injection; App is the only place that knows
// the full graph.
type App struct {
	cfg config.Config

	Session    *session.Store
	Watchdog   *session.Watchdog
	Client     *api.Client
	Channel    *realtime.Channel
	Devices    *store.Devices
	Sensors    *store.Sensors
	Thresholds *store.Thresholds

	mu          sync.Mutex
	currentPath string
	returnTo    string
	subs        map[int]string
}

func New(cfg config.Config) (*App, error) {
	a := &App{cfg: cfg, currentPath: guard.LoginPath, subs: make(map[int]string)}

	keyring := session.OpenKeyring(cfg.SessionFile)

	a.Client = api.NewClient(cfg.APIBaseURL,
		func() string {
			if a.Session == nil {
				return ""
			}
			return a.Session.Token()
		},
		a.endSession,
	)

	tokenCfg := token.Config{Secret: cfg.TokenSecret, Expiry: cfg.TokenExpiry, Issuer: "aquadash"}
	var auth session.Authenticator
	switch cfg.AuthMode {
	case config.AuthModeRemote:
		auth = session.NewRemoteAuthenticator(a.Client)
	default:
		local, err := session.NewLocalAuthenticator(tokenCfg)
		if err != nil {
			return nil, fmt.Errorf("local authenticator: %w", err)
		}
		auth = local
	}

	a.Session = session.NewStore(keyring, auth)
	a.Watchdog = session.NewWatchdog(a.Session, cfg.CheckInterval, func() {
		a.forceNavigate(guard.LoginPath)
	})

	a.Channel = realtime.NewChannel(realtime.Options{
		URL:   cfg.WSBaseURL,
		Token: a.Session.Token,
	})

	a.Devices = store.NewDevices(a.Client)
	a.Sensors = store.NewSensors(a.Client)
	a.Thresholds = store.NewThresholds(a.Client)

	return a, nil
}

// Boot restores any persisted session and starts the expiry watchdog.
// The landing view depends on whether a session survived the restart.
func (a *App) Boot() {
	a.Session.Restore()
	a.Watchdog.Start()

	if a.Session.Authenticated() {
		a.forceNavigate(guard.DashboardPath)
	} else {
		a.forceNavigate(guard.LoginPath)
	}
}

// Login authenticates and, on success, lands on the remembered target
// of the redirect that brought the user to the login view.
func (a *App) Login(ctx context.Context, username, password string) session.Result {
	res := a.Session.Login(ctx, username, password)
	if !res.Success {
		return res
	}

	a.mu.Lock()
	target := a.returnTo
	a.returnTo = ""
	a.mu.Unlock()
	if target == "" {
		target = guard.DashboardPath
	}
	a.Navigate(target)
	return res
}

// Logout ends the session, tears down the live channel, clears the
// caches, and lands on the login view.
func (a *App) Logout() {
	a.CloseChannel()
	a.Session.Logout()
	a.Devices.Clear()
	a.Sensors.Clear()
	a.Thresholds.Clear()
	a.forceNavigate(guard.LoginPath)
}

// Navigate runs a route transition through the guard and returns the
// path actually landed on.
func (a *App) Navigate(path string) string {
	route := a.routeFor(path)
	snapshot := guard.Snapshot{
		Authenticated: a.Session.Authenticated(),
		Admin:         a.Session.Admin(),
	}
	decision := guard.Decide(route, snapshot)

	a.mu.Lock()
	defer a.mu.Unlock()
	if decision.Allow {
		a.currentPath = route.Path
	} else {
		a.currentPath = decision.RedirectTo
		if decision.ReturnTo != "" {
			a.returnTo = decision.ReturnTo
		}
	}
	return a.currentPath
}

func (a *App) CurrentPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentPath
}

// routeFor treats unknown paths as authenticated views so a typo never
// bypasses the guard.
func (a *App) routeFor(path string) guard.Route {
	for _, r := range routes {
		if r.Path == path {
			return r
		}
	}
	return guard.Route{Path: path}
}

func (a *App) forceNavigate(path string) {
	a.mu.Lock()
	a.currentPath = path
	a.mu.Unlock()
}

// endSession is the 401 hook shared by every REST call.
func (a *App) endSession() {
	log.Printf("app: session rejected by the backend, logging out")
	a.CloseChannel()
	a.Session.Logout()
	a.forceNavigate(guard.LoginPath)
}

// OpenChannel fetches the device list, connects the live channel, and
// subscribes every device so pushed updates land in the caches.
func (a *App) OpenChannel(ctx context.Context) store.Result {
	if res := a.Devices.Fetch(ctx); !res.Success {
		return res
	}

	a.Channel.Connect(func() {
		for _, dev := range a.Devices.List() {
			a.Watch(dev.ID)
		}
	})
	return store.Result{Success: true}
}

// Watch subscribes one device's topic, replacing any previous
// subscription for the same device.
func (a *App) Watch(deviceID int) {
	id := a.Channel.Subscribe(deviceID, realtime.Handlers{
		OnSensorUpdate: func(msg realtime.SensorUpdate) {
			a.Sensors.Apply(msg.Reading())
		},
		OnPumpStatus: func(msg realtime.PumpStatus) {
			a.Sensors.ApplyPump(msg.State())
		},
		OnThresholdUpdated: func(msg realtime.ThresholdUpdate) {
			a.Thresholds.Apply(msg.Threshold())
		},
	})

	a.mu.Lock()
	a.subs[deviceID] = id
	a.mu.Unlock()
}

// Unwatch releases one device subscription.
func (a *App) Unwatch(deviceID int) {
	a.mu.Lock()
	id, ok := a.subs[deviceID]
	delete(a.subs, deviceID)
	a.mu.Unlock()
	if ok {
		a.Channel.Unsubscribe(id)
	}
}

func (a *App) CloseChannel() {
	a.mu.Lock()
	a.subs = make(map[int]string)
	a.mu.Unlock()
	a.Channel.Close()
}

// Shutdown stops the background components. The session itself is left
// as-is so it survives a restart.
func (a *App) Shutdown() {
	a.CloseChannel()
	a.Watchdog.Stop()
}
