package simulation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/homefleet/mqtt-simulator/pkg/mqtt"
)

// Transform maps a raw command payload to the actuator's response record. It
// must be a pure function of the command; battery and linkquality are appended
// by the behavior afterwards.
type Transform func(payload []byte) (map[string]any, error)

// CommandTopic returns the sub-topic an actuator listens on for commands.
func CommandTopic(agentTopic string) string {
	return agentTopic + "/toggleState"
}

// ActuatorBehavior is the reactive subscriber-transformer-publisher pattern:
// it subscribes to the agent's toggleState sub-topic on connect and answers
// every command with a transformed record published under the command's own
// correlation token. Handlers run concurrently, so responses to distinct
// commands may complete out of receipt order; each keeps its own token.
type ActuatorBehavior struct {
	transform    Transform
	rand         *Rand
	idleInterval time.Duration
	minDelay     time.Duration
	maxDelay     time.Duration
}

// NewActuatorBehavior builds the behavior for one actuator from its transform
// and a dedicated random stream.
func NewActuatorBehavior(transform Transform, rand *Rand) *ActuatorBehavior {
	return &ActuatorBehavior{
		transform:    transform,
		rand:         rand,
		idleInterval: 100 * time.Millisecond,
		minDelay:     time.Millisecond,
		maxDelay:     10 * time.Millisecond,
	}
}

func (b *ActuatorBehavior) OnConnected(ctx context.Context, agent *Agent) error {
	return agent.Subscribe(ctx, CommandTopic(agent.Topic()))
}

// Tick idles in short increments so cancellation is observed promptly without
// a busy loop.
func (b *ActuatorBehavior) Tick(ctx context.Context, agent *Agent) error {
	sleep(ctx, b.idleInterval)
	return nil
}

// OnMessage handles one command: a simulated actuation delay of 1-10ms, then
// decode, transform, append fresh battery and linkquality, and respond under
// the command's correlation token. A malformed command is dropped and logged;
// it never takes the handler down.
func (b *ActuatorBehavior) OnMessage(ctx context.Context, agent *Agent, msg mqtt.Message) {
	sleep(ctx, b.rand.Duration(b.minDelay, b.maxDelay))

	response, err := b.transform(msg.Payload)
	if err != nil {
		agent.Logger().Error().Err(err).Str("payload", string(msg.Payload)).Msg("Dropping malformed command")
		return
	}
	response["battery"] = b.rand.Between(89, 92)
	response["linkquality"] = b.rand.Between(50, 255)

	payload, err := json.Marshal(response)
	if err != nil {
		agent.Logger().Error().Err(err).Msg("Failed to serialize response")
		return
	}
	if err := agent.Publish(ctx, payload, msg.Correlation); err != nil {
		agent.Logger().Error().Err(err).Msg("Failed to publish response")
	}
}

// OnShutdown drops the command subscription before the agent disconnects.
func (b *ActuatorBehavior) OnShutdown(ctx context.Context, agent *Agent) error {
	return agent.Unsubscribe(ctx, CommandTopic(agent.Topic()))
}
