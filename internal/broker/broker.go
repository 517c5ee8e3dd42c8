// Package broker embeds an MQTT v5 broker so the simulator can run and be
// tested without external infrastructure.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/rs/zerolog"
)

// Broker is an embedded MQTT broker listening on a single TCP port.
type Broker struct {
	port   int
	server *mochi.Server
	logger zerolog.Logger

	mu      sync.Mutex
	running bool
}

// New creates an embedded broker. All connections are accepted; this broker
// exists for development and tests, not production.
func New(port int, logger zerolog.Logger) (*Broker, error) {
	server := mochi.New(&mochi.Options{InlineClient: true})

	// mochi-mqtt requires an auth hook to accept any connection at all.
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, fmt.Errorf("add allow hook: %w", err)
	}

	return &Broker{port: port, server: server, logger: logger}, nil
}

// Start adds the TCP listener and serves in the background.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return errors.New("broker is already running")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tcp := listeners.NewTCP(listeners.Config{
		ID:      fmt.Sprintf("tcp-%d", b.port),
		Address: fmt.Sprintf(":%d", b.port),
	})
	if err := b.server.AddListener(tcp); err != nil {
		return fmt.Errorf("add listener: %w", err)
	}

	go func() {
		if err := b.server.Serve(); err != nil {
			b.logger.Error().Err(err).Msg("Broker serve failed")
		}
	}()

	b.running = true
	b.logger.Info().Int("port", b.port).Msg("Embedded broker listening")
	return nil
}

// Stop closes the broker and all client connections.
func (b *Broker) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil
	}
	b.running = false
	return b.server.Close()
}
