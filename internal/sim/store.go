package sim

import (
	"errors"
	"sort"
	"sync"
	"time"

	"aquadash/internal/model"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const historyCap = 500

// Store is the simulator's in-memory backend state: users, devices,
// thresholds, pump states, and the capped per-device reading log.
type Store struct {
	mu sync.RWMutex

	usersByID  map[int]storedUser
	nextUserID int

	devicesByID  map[int]model.Device
	deviceKeys   map[int]string
	nextDeviceID int

	thresholds map[int]model.Threshold
	pumps      map[int]model.PumpState

	latest  map[int]model.Reading
	history map[int][]model.Reading
}

type storedUser struct {
	user model.User
	hash []byte
}

// NewStore seeds the standalone allow-list (admin/admin and user/user)
// and one demo device so the dashboard has something to show.
func NewStore() (*Store, error) {
	s := &Store{
		usersByID:   make(map[int]storedUser),
		devicesByID: make(map[int]model.Device),
		deviceKeys:  make(map[int]string),
		thresholds:  make(map[int]model.Threshold),
		pumps:       make(map[int]model.PumpState),
		latest:      make(map[int]model.Reading),
		history:     make(map[int][]model.Reading),
	}

	if _, err := s.CreateUser("admin", "admin@smartgarden.com", "admin", model.RoleAdmin); err != nil {
		return nil, err
	}
	if _, err := s.CreateUser("user", "user@smartgarden.com", "user", model.RoleUser); err != nil {
		return nil, err
	}

	dev, _ := s.RegisterDevice("Greenhouse Tank", "greenhouse")
	s.SetThresholds(dev.ID, model.Threshold{Metric: model.MetricWaterLevel, LowerBound: 20, UpperBound: 80})

	return s, nil
}

func (s *Store) Authenticate(username, password string) (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, stored := range s.usersByID {
		if stored.user.Username != username {
			continue
		}
		if bcrypt.CompareHashAndPassword(stored.hash, []byte(password)) != nil {
			return model.User{}, false
		}
		return stored.user, true
	}
	return model.User{}, false
}

func (s *Store) CreateUser(username, email, password, role string) (model.User, error) {
	if username == "" || password == "" {
		return model.User{}, errors.New("missing username or password")
	}
	if role == "" {
		role = model.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stored := range s.usersByID {
		if stored.user.Username == username {
			return model.User{}, errors.New("username already taken")
		}
	}

	s.nextUserID++
	user := model.User{ID: s.nextUserID, Username: username, Role: role, Email: email}
	s.usersByID[user.ID] = storedUser{user: user, hash: hash}
	return user, nil
}

func (s *Store) Users() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.User, 0, len(s.usersByID))
	for _, stored := range s.usersByID {
		result = append(result, stored.user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Store) MakeAdmin(userID int) (model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.usersByID[userID]
	if !ok {
		return model.User{}, false
	}
	stored.user.Role = model.RoleAdmin
	s.usersByID[userID] = stored
	return stored.user, true
}

func (s *Store) DeleteUser(userID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[userID]; !ok {
		return false
	}
	delete(s.usersByID, userID)
	return true
}

// RegisterDevice creates a device and mints the key the hardware uses to
// authenticate against the broker.
func (s *Store) RegisterDevice(name, location string) (model.Device, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDeviceID++
	dev := model.Device{
		ID:       s.nextDeviceID,
		Name:     name,
		Location: location,
		Status:   model.DeviceOffline,
	}
	key := uuid.NewString()
	s.devicesByID[dev.ID] = dev
	s.deviceKeys[dev.ID] = key
	s.pumps[dev.ID] = model.PumpState{DeviceID: dev.ID, Mode: model.PumpModeAuto}
	return dev, key
}

func (s *Store) Devices() []model.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Device, 0, len(s.devicesByID))
	for _, dev := range s.devicesByID {
		result = append(result, dev)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (s *Store) Device(deviceID int) (model.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dev, ok := s.devicesByID[deviceID]
	return dev, ok
}

func (s *Store) DeleteDevice(deviceID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devicesByID[deviceID]; !ok {
		return false
	}
	delete(s.devicesByID, deviceID)
	delete(s.deviceKeys, deviceID)
	delete(s.thresholds, deviceID)
	delete(s.pumps, deviceID)
	delete(s.latest, deviceID)
	delete(s.history, deviceID)
	return true
}

func (s *Store) SetThresholds(deviceID int, t model.Threshold) (model.Threshold, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devicesByID[deviceID]; !ok {
		return model.Threshold{}, false
	}
	t.DeviceID = deviceID
	if t.Metric == "" {
		t.Metric = model.MetricWaterLevel
	}
	s.thresholds[deviceID] = t
	return t, true
}

func (s *Store) Thresholds(deviceID int) (model.Threshold, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.thresholds[deviceID]
	return t, ok
}

func (s *Store) SetPump(deviceID int, running bool, mode string, at time.Time) (model.PumpState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devicesByID[deviceID]; !ok {
		return model.PumpState{}, false
	}
	p := s.pumps[deviceID]
	p.DeviceID = deviceID
	p.Running = running
	p.Mode = mode
	if running {
		p.LastActivated = at
	}
	s.pumps[deviceID] = p
	return p, true
}

func (s *Store) Pump(deviceID int) (model.PumpState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pumps[deviceID]
	return p, ok
}

// AppendReading records a telemetry point, evicting the oldest entry
// once the per-device log is full. The device is marked online.
func (s *Store) AppendReading(r model.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dev, ok := s.devicesByID[r.DeviceID]; ok {
		dev.Status = model.DeviceOnline
		s.devicesByID[r.DeviceID] = dev
	}

	s.latest[r.DeviceID] = r
	h := s.history[r.DeviceID]
	if len(h) >= historyCap {
		h = h[1:]
	}
	s.history[r.DeviceID] = append(h, r)
}

func (s *Store) Latest(deviceID int) (model.Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.latest[deviceID]
	return r, ok
}

func (s *Store) History(deviceID, limit int) []model.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history[deviceID]
	if limit <= 0 || limit > len(h) {
		limit = len(h)
	}
	result := make([]model.Reading, limit)
	copy(result, h[len(h)-limit:])
	return result
}
