package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-signage/internal/device"
	"github.com/nerrad567/gray-signage/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-signage/internal/playlist"
)

// DefaultCollectWindow is how long Devices listens for retained device
// documents before returning, and how long WatchDevice waits for a
// retained assignment before reporting the device as unassigned.
const DefaultCollectWindow = 2 * time.Second

// Broker is the subset of *mqtt.Client the store uses.
type Broker interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	PublishRetained(topic string, payload []byte) error
	ClearRetained(topic string) error
	QoS() byte
}

// Logger is the logging surface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// MQTTStore keeps documents as retained MQTT messages.
//
// Handlers run on the MQTT client's router goroutine; they decode the
// payload and hand a snapshot to the watch's mailbox without blocking.
type MQTTStore struct {
	broker        Broker
	topics        mqtt.Topics
	collectWindow time.Duration

	logger   Logger
	loggerMu sync.RWMutex
}

var (
	_ Store = (*MQTTStore)(nil)
	_ Admin = (*MQTTStore)(nil)
)

// NewMQTTStore creates a store on a connected broker client.
// A zero collectWindow uses DefaultCollectWindow.
func NewMQTTStore(broker Broker, collectWindow time.Duration) *MQTTStore {
	if collectWindow <= 0 {
		collectWindow = DefaultCollectWindow
	}
	return &MQTTStore{
		broker:        broker,
		collectWindow: collectWindow,
		logger:        noopLogger{},
	}
}

// SetLogger sets the logger.
func (s *MQTTStore) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

func (s *MQTTStore) getLogger() Logger {
	s.loggerMu.RLock()
	defer s.loggerMu.RUnlock()
	return s.logger
}

// WatchDevice subscribes to both halves of the device document.
//
// Snapshots start once the assignment half has been seen, or once the
// collect window after subscribing has passed without one. The broker
// delivers retained documents on subscribe, so a missing assignment at
// that point means the device is unassigned: it was never paired, was
// forgotten, or the broker lost its retained state.
func (s *MQTTStore) WatchDevice(_ context.Context, deviceID string) (*DeviceWatch, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: empty device id", ErrInvalidArgument)
	}

	var (
		mu       sync.Mutex
		rec      = device.Record{ID: deviceID}
		assigned bool
		settle   *time.Timer
	)

	topic := s.topics.DeviceDocument(deviceID)
	w := NewWatch[DeviceSnapshot](func() error {
		mu.Lock()
		if settle != nil {
			settle.Stop()
		}
		mu.Unlock()
		return s.unsubscribe(topic)
	})

	handler := func(msgTopic string, payload []byte) error {
		id, part, ok := mqtt.ParseDeviceTopic(msgTopic)
		if !ok || id != deviceID {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		switch part {
		case "registration":
			reg, exists, err := decodeRegistration(payload)
			if err != nil {
				return err
			}
			if !exists {
				reg = device.Registration{}
			}
			rec.PairingCode, rec.LastSeen = reg.PairingCode, reg.LastSeen
		case "assignment":
			a, err := decodeAssignment(payload)
			if err != nil {
				return err
			}
			rec.LocationID = a.LocationID
			assigned = true
		}
		if assigned {
			w.Deliver(DeviceSnapshot{Record: rec})
		}
		return nil
	}

	if err := s.broker.Subscribe(topic, s.broker.QoS(), handler); err != nil {
		w.box.close()
		return nil, fmt.Errorf("watching device %s: %w", deviceID, err)
	}

	mu.Lock()
	if !assigned {
		settle = time.AfterFunc(s.collectWindow, func() {
			mu.Lock()
			defer mu.Unlock()
			if assigned {
				return
			}
			s.getLogger().Debug("no retained assignment, treating device as unassigned", "device", deviceID)
			assigned = true
			w.Deliver(DeviceSnapshot{Record: rec})
		})
	}
	mu.Unlock()
	return w, nil
}

// WatchPlaylist subscribes to a location's playlist document. Payloads
// that cannot be decoded are logged and skipped, so the last good
// playlist stays in effect.
func (s *MQTTStore) WatchPlaylist(_ context.Context, locationID string) (*PlaylistWatch, error) {
	if locationID == "" {
		return nil, fmt.Errorf("%w: empty location id", ErrInvalidArgument)
	}

	topic := s.topics.LocationPlaylist(locationID)
	w := NewWatch[PlaylistSnapshot](func() error {
		return s.unsubscribe(topic)
	})

	handler := func(_ string, payload []byte) error {
		if len(payload) == 0 {
			w.Deliver(PlaylistSnapshot{LocationID: locationID})
			return nil
		}
		p, err := playlist.Decode(payload)
		if err != nil {
			s.getLogger().Warn("ignoring playlist document", "location", locationID, "error", err)
			return nil
		}
		w.Deliver(PlaylistSnapshot{LocationID: locationID, Playlist: p, Exists: true})
		return nil
	}

	if err := s.broker.Subscribe(topic, s.broker.QoS(), handler); err != nil {
		w.box.close()
		return nil, fmt.Errorf("watching playlist %s: %w", locationID, err)
	}
	return w, nil
}

// PublishRegistration overwrites the retained registration document.
func (s *MQTTStore) PublishRegistration(_ context.Context, reg device.Registration) error {
	if reg.ID == "" {
		return fmt.Errorf("%w: empty device id", ErrInvalidArgument)
	}
	reg.LastSeen = reg.LastSeen.UTC()
	return s.publishJSON(s.topics.DeviceRegistration(reg.ID), reg)
}

// Devices collects retained device documents for the collect window,
// or until ctx is done, and returns them sorted by id.
func (s *MQTTStore) Devices(ctx context.Context) ([]device.Record, error) {
	var (
		mu      sync.Mutex
		records = make(map[string]device.Record)
	)
	handler := func(topic string, payload []byte) error {
		id, part, ok := mqtt.ParseDeviceTopic(topic)
		if !ok {
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		rec := records[id]
		rec.ID = id
		switch part {
		case "registration":
			reg, _, err := decodeRegistration(payload)
			if err != nil {
				return err
			}
			rec.PairingCode, rec.LastSeen = reg.PairingCode, reg.LastSeen
		case "assignment":
			a, err := decodeAssignment(payload)
			if err != nil {
				return err
			}
			rec.LocationID = a.LocationID
		}
		records[id] = rec
		return nil
	}

	topic := s.topics.AllDeviceDocuments()
	if err := s.broker.Subscribe(topic, s.broker.QoS(), handler); err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer s.unsubscribe(topic) //nolint:errcheck // Logged inside

	timer := time.NewTimer(s.collectWindow)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]device.Record, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Assign writes a retained assignment document.
func (s *MQTTStore) Assign(_ context.Context, deviceID, locationID string) error {
	if deviceID == "" || locationID == "" {
		return fmt.Errorf("%w: device and location are required", ErrInvalidArgument)
	}
	return s.publishJSON(s.topics.DeviceAssignment(deviceID), device.Assignment{LocationID: locationID})
}

// Unassign writes an assignment without a location. The document is
// kept rather than cleared so that a screen reconnecting later still
// receives it and drops its cached assignment.
func (s *MQTTStore) Unassign(_ context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: empty device id", ErrInvalidArgument)
	}
	return s.publishJSON(s.topics.DeviceAssignment(deviceID), device.Assignment{})
}

// Forget deletes both halves of a device document. A running screen
// republishes its registration on the next heartbeat.
func (s *MQTTStore) Forget(_ context.Context, deviceID string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: empty device id", ErrInvalidArgument)
	}
	if err := s.broker.ClearRetained(s.topics.DeviceAssignment(deviceID)); err != nil {
		return fmt.Errorf("clearing assignment: %w", err)
	}
	if err := s.broker.ClearRetained(s.topics.DeviceRegistration(deviceID)); err != nil {
		return fmt.Errorf("clearing registration: %w", err)
	}
	return nil
}

// PublishPlaylist overwrites a location's retained playlist document.
func (s *MQTTStore) PublishPlaylist(_ context.Context, locationID string, p playlist.Playlist) error {
	if locationID == "" {
		return fmt.Errorf("%w: empty location id", ErrInvalidArgument)
	}
	return s.publishJSON(s.topics.LocationPlaylist(locationID), playlist.Normalize(p))
}

func (s *MQTTStore) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", topic, err)
	}
	if err := s.broker.PublishRetained(topic, payload); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

func (s *MQTTStore) unsubscribe(topic string) error {
	if err := s.broker.Unsubscribe(topic); err != nil {
		s.getLogger().Debug("unsubscribe failed", "topic", topic, "error", err)
		return err
	}
	return nil
}
