package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"aquadash/internal/model"
)

// ErrUnauthorized is returned for any 401 response. The client also fires
// the injected onUnauthorized hook so the session can be ended immediately.
var ErrUnauthorized = errors.New("unauthorized")

// Client is a typed wrapper over the dashboard's REST collaborators. The
// bearer token is pulled from the session on every call.
type Client struct {
	base           string
	http           *http.Client
	token          func() string
	onUnauthorized func()
}

func NewClient(base string, token func() string, onUnauthorized func()) *Client {
	return &Client{
		base:           base,
		http:           &http.Client{Timeout: 10 * time.Second},
		token:          token,
		onUnauthorized: onUnauthorized,
	}
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

func (c *Client) Login(ctx context.Context, creds Credentials) (LoginResponse, error) {
	var resp LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", creds, &resp)
	return resp, err
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (model.User, error) {
	var resp struct {
		User model.User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "/auth/register", req, &resp)
	return resp.User, err
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var user model.User
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &user)
	return user, err
}

type RegisterDeviceResponse struct {
	Device    model.Device `json:"device"`
	DeviceKey string       `json:"deviceKey"`
}

func (c *Client) RegisterDevice(ctx context.Context, name, location string) (RegisterDeviceResponse, error) {
	body := map[string]string{"name": name, "location": location}
	var resp RegisterDeviceResponse
	err := c.do(ctx, http.MethodPost, "/devices", body, &resp)
	return resp, err
}

func (c *Client) Devices(ctx context.Context) ([]model.Device, error) {
	var resp struct {
		Devices []model.Device `json:"devices"`
	}
	err := c.do(ctx, http.MethodGet, "/devices", nil, &resp)
	return resp.Devices, err
}

func (c *Client) DeleteDevice(ctx context.Context, deviceID int) error {
	return c.do(ctx, http.MethodDelete, devicePath(deviceID, ""), nil, nil)
}

func (c *Client) Thresholds(ctx context.Context, deviceID int) (model.Threshold, error) {
	var t model.Threshold
	err := c.do(ctx, http.MethodGet, devicePath(deviceID, "/thresholds"), nil, &t)
	return t, err
}

func (c *Client) UpdateThresholds(ctx context.Context, deviceID int, t model.Threshold) (model.Threshold, error) {
	var updated model.Threshold
	err := c.do(ctx, http.MethodPut, devicePath(deviceID, "/thresholds"), t, &updated)
	return updated, err
}

func (c *Client) Current(ctx context.Context, deviceID int) (model.Reading, error) {
	var r model.Reading
	err := c.do(ctx, http.MethodGet, devicePath(deviceID, "/current"), nil, &r)
	return r, err
}

func (c *Client) History(ctx context.Context, deviceID, limit int) ([]model.Reading, error) {
	path := devicePath(deviceID, "/history")
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		History []model.Reading `json:"history"`
	}
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.History, err
}

func (c *Client) StartPump(ctx context.Context, deviceID int) (model.PumpState, error) {
	var p model.PumpState
	err := c.do(ctx, http.MethodPost, devicePath(deviceID, "/pump/start"), nil, &p)
	return p, err
}

func (c *Client) StopPump(ctx context.Context, deviceID int) (model.PumpState, error) {
	var p model.PumpState
	err := c.do(ctx, http.MethodPost, devicePath(deviceID, "/pump/stop"), nil, &p)
	return p, err
}

func (c *Client) Users(ctx context.Context) ([]model.User, error) {
	var resp struct {
		Users []model.User `json:"users"`
	}
	err := c.do(ctx, http.MethodGet, "/users", nil, &resp)
	return resp.Users, err
}

func (c *Client) MakeAdmin(ctx context.Context, userID int) (model.User, error) {
	var resp struct {
		User model.User `json:"user"`
	}
	err := c.do(ctx, http.MethodPut, "/users/"+strconv.Itoa(userID)+"/make-admin", nil, &resp)
	return resp.User, err
}

func (c *Client) DeleteUser(ctx context.Context, userID int) error {
	return c.do(ctx, http.MethodDelete, "/users/"+strconv.Itoa(userID), nil, nil)
}

func devicePath(deviceID int, suffix string) string {
	return "/devices/" + strconv.Itoa(deviceID) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		msg := e.Error
		if msg == "" {
			msg = e.Message
		}
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, msg)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
