package realtime

import (
	"strconv"
	"time"

	"aquadash/internal/model"
)

// Message kinds pushed by the backend. Anything else is ignored.
const (
	MessageSensorUpdate     = "sensor_update"
	MessagePumpStatus       = "pump_status"
	MessageThresholdUpdated = "threshold_updated"
)

// Envelope is the common prefix of every push message: the kind tag and
// the device the message belongs to.
type Envelope struct {
	Type     string `json:"type"`
	DeviceID int    `json:"deviceId"`
}

type SensorUpdate struct {
	Type         string    `json:"type"`
	DeviceID     int       `json:"deviceId"`
	WaterLevel   float64   `json:"waterLevel"`
	Temperature  float64   `json:"temperature"`
	Humidity     float64   `json:"humidity"`
	SoilMoisture float64   `json:"soilMoisture"`
	PumpStatus   string    `json:"pumpStatus"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewSensorUpdate(r model.Reading) SensorUpdate {
	return SensorUpdate{
		Type:         MessageSensorUpdate,
		DeviceID:     r.DeviceID,
		WaterLevel:   r.WaterLevel,
		Temperature:  r.Temperature,
		Humidity:     r.Humidity,
		SoilMoisture: r.SoilMoisture,
		PumpStatus:   r.PumpStatus,
		Timestamp:    r.Timestamp,
	}
}

func (m SensorUpdate) Reading() model.Reading {
	return model.Reading{
		DeviceID:     m.DeviceID,
		WaterLevel:   m.WaterLevel,
		Temperature:  m.Temperature,
		Humidity:     m.Humidity,
		SoilMoisture: m.SoilMoisture,
		PumpStatus:   m.PumpStatus,
		Timestamp:    m.Timestamp,
	}
}

type PumpStatus struct {
	Type      string    `json:"type"`
	DeviceID  int       `json:"deviceId"`
	Running   bool      `json:"running"`
	Mode      string    `json:"mode"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPumpStatus(p model.PumpState, at time.Time) PumpStatus {
	return PumpStatus{
		Type:      MessagePumpStatus,
		DeviceID:  p.DeviceID,
		Running:   p.Running,
		Mode:      p.Mode,
		Timestamp: at,
	}
}

func (m PumpStatus) State() model.PumpState {
	return model.PumpState{
		DeviceID:      m.DeviceID,
		Running:       m.Running,
		Mode:          m.Mode,
		LastActivated: m.Timestamp,
	}
}

type ThresholdUpdate struct {
	Type       string    `json:"type"`
	DeviceID   int       `json:"deviceId"`
	Metric     string    `json:"metric"`
	LowerBound float64   `json:"lowerBound"`
	UpperBound float64   `json:"upperBound"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewThresholdUpdate(t model.Threshold, at time.Time) ThresholdUpdate {
	return ThresholdUpdate{
		Type:       MessageThresholdUpdated,
		DeviceID:   t.DeviceID,
		Metric:     t.Metric,
		LowerBound: t.LowerBound,
		UpperBound: t.UpperBound,
		Timestamp:  at,
	}
}

func (m ThresholdUpdate) Threshold() model.Threshold {
	return model.Threshold{
		DeviceID:   m.DeviceID,
		Metric:     m.Metric,
		LowerBound: m.LowerBound,
		UpperBound: m.UpperBound,
	}
}

// Frame is the client-to-server control message managing topic
// subscriptions over the live connection.
type Frame struct {
	Action string `json:"action"`
	Topic  string `json:"topic"`
}

const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// TopicForDevice returns the per-device topic path.
func TopicForDevice(deviceID int) string {
	return "/topic/device/" + strconv.Itoa(deviceID)
}
