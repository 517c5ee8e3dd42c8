package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/homefleet/mqtt-simulator/pkg/mqtt"
)

// ErrDecodeCommand marks an inbound command payload that cannot be turned into
// a response: invalid JSON, or a required field with no documented default.
// The affected message is dropped; the agent keeps running.
var ErrDecodeCommand = errors.New("decode command")

// Behavior is the pluggable strategy deciding what an agent publishes and
// when. OnConnected runs once after a successful connect, Tick repeatedly
// while the fleet is alive, OnMessage once per inbound publish (on a dispatch
// worker, concurrently with Tick), and OnShutdown once before the agent
// disconnects.
type Behavior interface {
	OnConnected(ctx context.Context, agent *Agent) error
	Tick(ctx context.Context, agent *Agent) error
	OnMessage(ctx context.Context, agent *Agent, msg mqtt.Message)
	OnShutdown(ctx context.Context, agent *Agent) error
}

// sleep suspends for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
