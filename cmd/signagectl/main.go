// signagectl is the admin side of Gray Signage: it pairs screens to
// locations and publishes playlists through the MQTT document store.
//
// Usage:
//
//	signagectl devices [--location ID]
//	signagectl pair --code 123456 --location store-1
//	signagectl unpair --device dev-...
//	signagectl forget --device dev-...
//	signagectl publish --location store-1 --file playlist.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-signage/internal/infrastructure/config"
	"github.com/nerrad567/gray-signage/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-signage/internal/store"
)

// Version information - set at build time via ldflags
var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root, release := newRootCmd(connectMQTT)
	err := root.ExecuteContext(ctx)
	release()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// connectMQTT opens the MQTT document store as an admin client.
func connectMQTT(_ context.Context, cfg *config.Config) (AdminStore, func(), error) {
	// The configured client id belongs to a screen; reusing it would make
	// the broker disconnect that screen.
	mqttCfg := cfg.MQTT
	mqttCfg.Broker.ClientID = adminClientID()

	client, err := mqtt.Connect(mqttCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	closeFn := func() {
		//nolint:errcheck // Best-effort disconnect on exit
		client.Close()
	}
	return store.NewMQTTStore(client, store.DefaultCollectWindow), closeFn, nil
}

// adminClientID returns a client id unique to this invocation.
func adminClientID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "local"
	}
	return fmt.Sprintf("signagectl-%s-%d", host, os.Getpid())
}
