package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-signage/internal/infrastructure/config"
)

// testConfig returns a configuration pointing at a local broker.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graysignage-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// newOfflineClient returns a client that was never connected.
func newOfflineClient() *Client {
	return &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
}

// ─── Topics ────────────────────────────────────────────────────────

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"LocationPlaylist", Topics{}.LocationPlaylist("lobby"), "graysignage/location/lobby/playlist"},
		{"DeviceRegistration", Topics{}.DeviceRegistration("scr_1"), "graysignage/device/scr_1/registration"},
		{"DeviceAssignment", Topics{}.DeviceAssignment("scr_1"), "graysignage/device/scr_1/assignment"},
		{"DeviceDocument", Topics{}.DeviceDocument("scr_1"), "graysignage/device/scr_1/+"},
		{"AllDeviceRegistrations", Topics{}.AllDeviceRegistrations(), "graysignage/device/+/registration"},
		{"AllDeviceDocuments", Topics{}.AllDeviceDocuments(), "graysignage/device/+/+"},
		{"ClientStatus", Topics{}.ClientStatus("graysignage-scr_1"), "graysignage/status/graysignage-scr_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestParseDeviceTopic(t *testing.T) {
	tests := []struct {
		topic    string
		wantID   string
		wantPart string
		wantOk   bool
	}{
		{"graysignage/device/scr_1/registration", "scr_1", "registration", true},
		{"graysignage/device/scr_1/assignment", "scr_1", "assignment", true},
		{"graysignage/device/scr_1/other", "", "", false},
		{"graysignage/device/scr_1", "", "", false},
		{"graysignage/device//assignment", "", "", false},
		{"graysignage/device/scr_1/assignment/extra", "", "", false},
		{"graysignage/location/lobby/playlist", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			id, part, ok := ParseDeviceTopic(tt.topic)
			if ok != tt.wantOk || id != tt.wantID || part != tt.wantPart {
				t.Errorf("ParseDeviceTopic() = (%q, %q, %v), want (%q, %q, %v)",
					id, part, ok, tt.wantID, tt.wantPart, tt.wantOk)
			}
		})
	}
}

// ─── Options ───────────────────────────────────────────────────────

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "player", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "graysignage-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "player" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if !opts.AutoReconnect || !opts.CleanSession || !opts.Order {
		t.Error("expected auto-reconnect, clean session and ordered delivery")
	}
	if opts.TLSConfig != nil && opts.TLSConfig.MinVersion != 0 {
		t.Error("TLS should not be configured")
	}
}

func TestBuildClientOptions_ConnectRetry(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)
	if opts.ConnectRetry {
		t.Error("Connect should fail fast; only Start retries")
	}
	if opts.ConnectRetryInterval != time.Second {
		t.Errorf("ConnectRetryInterval = %v, want 1s", opts.ConnectRetryInterval)
	}

	cfg.Reconnect.InitialDelay = 0
	if got := buildClientOptions(cfg).ConnectRetryInterval; got != defaultConnectRetryInterval {
		t.Errorf("ConnectRetryInterval with no delay = %v, want %v", got, defaultConnectRetryInterval)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].String(); got != "ssl://127.0.0.1:8883" {
		t.Errorf("broker = %q, want ssl://127.0.0.1:8883", got)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "graysignage-scr_1")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatal("expected retained will")
	}
	if opts.WillTopic != "graysignage/status/graysignage-scr_1" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var msg StatusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if msg.Status != StatusOffline || msg.Reason != "unexpected_disconnect" {
		t.Errorf("will = %+v", msg)
	}
}

func TestBuildStatusPayload_OmitsEmptyReason(t *testing.T) {
	payload := string(buildStatusPayload("c1", StatusOnline, ""))
	if strings.Contains(payload, "reason") {
		t.Errorf("payload %s should omit reason", payload)
	}
	if !strings.Contains(payload, `"status":"online"`) {
		t.Errorf("payload %s missing status", payload)
	}
}

// ─── Validation without a broker ───────────────────────────────────

func TestPublish_Validation(t *testing.T) {
	c := newOfflineClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", nil, 1, ErrInvalidTopic},
		{"invalid qos", "a/b", nil, 3, ErrInvalidQoS},
		{"oversized payload", "a/b", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "a/b", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := newOfflineClient()
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, noop, ErrInvalidTopic},
		{"invalid qos", "a/b", 5, noop, ErrInvalidQoS},
		{"nil handler", "a/b", 1, nil, ErrSubscribeFailed},
		{"not connected", "a/b", 1, noop, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("failed subscribes should not be tracked, got %d", c.SubscriptionCount())
	}
}

func TestUnsubscribe_ForgetsWhileOffline(t *testing.T) {
	c := newOfflineClient()
	c.subscriptions["a/b"] = subscription{topic: "a/b"}

	if err := c.Unsubscribe("a/b"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
	if c.HasSubscription("a/b") {
		t.Error("subscription should be forgotten")
	}
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
}

func TestOfflineClient_StateAndHealth(t *testing.T) {
	c := newOfflineClient()

	if c.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestStart_UnreachableBroker(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 1

	started := time.Now()
	c := Start(cfg)
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Errorf("Start() blocked for %v", elapsed)
	}
	if !c.options.ConnectRetry {
		t.Error("Start() should retry the first connection")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true with no broker")
	}
	if err := c.Subscribe("graysignage/device/scr_1/+", 1, func(string, []byte) error { return nil }); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// ─── Dispatch ──────────────────────────────────────────────────────

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestDispatch(t *testing.T) {
	c := newOfflineClient()
	logger := &recordingLogger{}
	c.SetLogger(logger)

	var got string
	c.dispatch(func(topic string, payload []byte) error {
		got = topic + "=" + string(payload)
		return nil
	}, "a/b", []byte("1"))
	if got != "a/b=1" {
		t.Errorf("handler saw %q", got)
	}

	c.dispatch(func(string, []byte) error { return errors.New("bad document") }, "a/b", nil)
	c.dispatch(func(string, []byte) error { panic("boom") }, "a/b", nil)

	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one handler error", logger.warns)
	}
	if len(logger.errors) != 1 {
		t.Errorf("errors = %v, want one recovered panic", logger.errors)
	}
}

func TestDispatch_NoLogger(t *testing.T) {
	c := newOfflineClient()

	// Must not panic without a logger.
	c.dispatch(func(string, []byte) error { panic("boom") }, "a/b", nil)
	c.dispatch(func(string, []byte) error { return errors.New("x") }, "a/b", nil)
}

func TestCallbacks(t *testing.T) {
	c := newOfflineClient()

	var lost error
	c.SetOnDisconnect(func(err error) { lost = err })
	c.handleDisconnect(errors.New("network down"))

	if lost == nil || lost.Error() != "network down" {
		t.Errorf("onDisconnect received %v", lost)
	}
	if c.IsConnected() {
		t.Error("client should be disconnected")
	}
}
