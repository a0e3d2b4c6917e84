package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"aquadash/internal/model"
	"aquadash/internal/realtime"
	"aquadash/internal/sim"
	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	Store *sim.Store
	Hub   *sim.Hub
}

type registerDeviceBody struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

type thresholdsBody struct {
	Metric     string  `json:"metric"`
	LowerBound float64 `json:"lowerBound"`
	UpperBound float64 `json:"upperBound"`
}

func deviceID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid device id"})
		return 0, false
	}
	return id, true
}

func (h *DeviceHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"devices": h.Store.Devices()})
}

func (h *DeviceHandler) Register(c *gin.Context) {
	var body registerDeviceBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	dev, key := h.Store.RegisterDevice(body.Name, body.Location)
	c.JSON(http.StatusCreated, gin.H{"device": dev, "deviceKey": key})
}

func (h *DeviceHandler) Delete(c *gin.Context) {
	id, ok := deviceID(c)
	if !ok {
		return
	}
	if !h.Store.DeleteDevice(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *DeviceHandler) Current(c *gin.Context) {
	id, ok := deviceID(c)
	if !ok {
		return
	}
	reading, ok := h.Store.Latest(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No readings yet"})
		return
	}
	c.JSON(http.StatusOK, reading)
}

func (h *DeviceHandler) History(c *gin.Context) {
	id, ok := deviceID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	c.JSON(http.StatusOK, gin.H{"history": h.Store.History(id, limit)})
}

func (h *DeviceHandler) GetThresholds(c *gin.Context) {
	id, ok := deviceID(c)
	if !ok {
		return
	}
	th, ok := h.Store.Thresholds(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Thresholds not configured"})
		return
	}
	c.JSON(http.StatusOK, th)
}

func (h *DeviceHandler) UpdateThresholds(c *gin.Context) {
	id, ok := deviceID(c)
	if !ok {
		return
	}

	var body thresholdsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.LowerBound >= body.UpperBound {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Lower bound must be below upper bound"})
		return
	}

	th, ok := h.Store.SetThresholds(id, model.Threshold{
		Metric:     body.Metric,
		LowerBound: body.LowerBound,
		UpperBound: body.UpperBound,
	})
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		return
	}

	h.broadcast(id, realtime.NewThresholdUpdate(th, time.Now()))
	c.JSON(http.StatusOK, th)
}

func (h *DeviceHandler) StartPump(c *gin.Context) {
	h.setPump(c, true)
}

func (h *DeviceHandler) StopPump(c *gin.Context) {
	h.setPump(c, false)
}

// Manual control always flips the pump mode out of auto so the
// telemetry controller stops fighting the operator.
func (h *DeviceHandler) setPump(c *gin.Context, running bool) {
	id, ok := deviceID(c)
	if !ok {
		return
	}
	now := time.Now()
	pump, ok := h.Store.SetPump(id, running, model.PumpModeManual, now)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
		return
	}

	h.broadcast(id, realtime.NewPumpStatus(pump, now))
	c.JSON(http.StatusOK, pump)
}

func (h *DeviceHandler) broadcast(deviceID int, message any) {
	if h.Hub == nil {
		return
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return
	}
	h.Hub.Broadcast(realtime.TopicForDevice(deviceID), payload)
}
