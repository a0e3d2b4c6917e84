package model

import "time"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

const (
	DeviceOnline  = "online"
	DeviceOffline = "offline"
)

type Device struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Location      string `json:"location"`
	Status        string `json:"status"`
	AssignedUsers []int  `json:"assignedUsers,omitempty"`
}

type Reading struct {
	DeviceID     int       `json:"deviceId"`
	WaterLevel   float64   `json:"waterLevel"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	SoilMoisture float64   `json:"soilMoisture"`
	PumpStatus   string    `json:"pumpStatus"`
	Timestamp    time.Time `json:"timestamp"`
}

const MetricWaterLevel = "water_level"

type Threshold struct {
	DeviceID   int     `json:"deviceId"`
	Metric     string  `json:"metric"`
	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`
}

const (
	PumpModeAuto   = "auto"
	PumpModeManual = "manual"

	PumpRunning = "running"
	PumpStopped = "stopped"
)

type PumpState struct {
	DeviceID      int       `json:"deviceId"`
	Running       bool      `json:"running"`
	Mode          string    `json:"mode"`
	LastActivated time.Time `json:"lastActivated"`
}

func (p PumpState) Status() string {
	if p.Running {
		return PumpRunning
	}
	return PumpStopped
}
