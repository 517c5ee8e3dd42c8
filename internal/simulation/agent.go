package simulation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/homefleet/mqtt-simulator/pkg/mqtt"
)

const (
	// commandWorkers bounds how many inbound messages one agent handles at a
	// time. More than one, so concurrently received commands can complete out
	// of receipt order.
	commandWorkers = 4

	// shutdownTimeout bounds the terminal unsubscribe/disconnect sequence.
	shutdownTimeout = 5 * time.Second

	// handleTimeout bounds the processing of a single inbound message.
	handleTimeout = 10 * time.Second
)

// ConnState is the connection lifecycle state of an agent.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateDisconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// ClientFactory builds the transport connection for one agent. It receives the
// device name as client ID and the event callbacks, which must be wired into
// the client before Connect is ever called.
type ClientFactory func(clientID string, events mqtt.Events) mqtt.Client

// Agent is one simulated device: a unique name, a topic derived from the
// fleet's root topic, exactly one transport connection and one behavior. Name
// and topic are immutable after construction; connection state is updated both
// from the run loop and from transport callbacks.
type Agent struct {
	name     string
	topic    string
	behavior Behavior
	client   mqtt.Client
	logger   zerolog.Logger

	state    atomic.Int32
	dispatch *dispatchPool
}

// NewAgent wires the transport event callbacks and returns an agent ready to
// Run. The wiring happens exactly once, here, so no early event is lost.
func NewAgent(name, rootTopic string, behavior Behavior, factory ClientFactory, logger zerolog.Logger) *Agent {
	a := &Agent{
		name:     name,
		topic:    rootTopic + "/" + name,
		behavior: behavior,
		logger:   logger.With().Str("device", name).Logger(),
		dispatch: newDispatchPool(commandWorkers),
	}
	a.client = factory(name, mqtt.Events{
		OnConnected:    a.onConnected,
		OnDisconnected: a.onDisconnected,
		OnPublished:    a.onPublished,
		OnSubscribed:   a.onSubscribed,
		OnUnsubscribed: a.onUnsubscribed,
		OnMessage:      a.onMessage,
	})
	return a
}

// Name returns the unique device name.
func (a *Agent) Name() string { return a.name }

// Topic returns the agent's own publish topic, `{root}/{name}`.
func (a *Agent) Topic() string { return a.topic }

// State reports the agent's current connection state.
func (a *Agent) State() ConnState { return ConnState(a.state.Load()) }

// Logger exposes the agent-scoped logger to its behavior.
func (a *Agent) Logger() *zerolog.Logger { return &a.logger }

// Run drives the agent until ctx is cancelled: connect, hand over to the
// behavior, then unwind through the terminal unsubscribe/disconnect sequence.
// A failed connect leaves the agent non-functional; restarting it is the
// operator's call, not the agent's.
func (a *Agent) Run(ctx context.Context) {
	// Shutdown can win the race against fleet startup; don't open a
	// connection that would be torn down immediately.
	if ctx.Err() != nil {
		a.dispatch.Shutdown()
		return
	}

	a.state.Store(int32(StateConnecting))
	if err := a.client.Connect(ctx); err != nil {
		a.state.Store(int32(StateDisconnected))
		a.dispatch.Shutdown()
		a.logger.Warn().Err(err).Msg("Failed to connect to broker")
		return
	}
	a.state.Store(int32(StateConnected))

	if err := a.behavior.OnConnected(ctx, a); err != nil {
		a.logger.Error().Err(err).Msg("Behavior setup failed")
		a.terminate()
		return
	}

	for ctx.Err() == nil {
		if err := a.behavior.Tick(ctx, a); err != nil {
			a.logger.Error().Err(err).Msg("Behavior tick failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.behavior.OnShutdown(shutdownCtx, a); err != nil {
		a.logger.Error().Err(err).Msg("Behavior shutdown failed")
	}
	a.terminate()
}

// terminate drains in-flight message handlers and drops the connection.
// Failures here are logged, never fatal: process shutdown proceeds regardless.
func (a *Agent) terminate() {
	a.state.Store(int32(StateDisconnecting))
	a.dispatch.Shutdown()
	if err := a.client.Disconnect(); err != nil {
		a.logger.Error().Err(err).Msg("Disconnect failed")
	}
	a.state.Store(int32(StateDisconnected))
}

// Publish sends payload on the agent's own topic at QoS 2, retain false. A nil
// correlation gets a freshly generated token, so every outbound message
// carries one.
func (a *Agent) Publish(ctx context.Context, payload []byte, correlation []byte) error {
	if len(correlation) == 0 {
		correlation = []byte(uuid.NewString())
	}
	_, err := a.client.Publish(ctx, a.topic, payload, correlation)
	return err
}

// Subscribe registers for an inbound topic at QoS 2.
func (a *Agent) Subscribe(ctx context.Context, topic string) error {
	return a.client.Subscribe(ctx, topic)
}

// Unsubscribe removes an inbound subscription.
func (a *Agent) Unsubscribe(ctx context.Context, topic string) error {
	return a.client.Unsubscribe(ctx, topic)
}

func (a *Agent) onConnected(reasonCode byte) {
	if reasonCode != 0 {
		a.logger.Warn().Uint8("reason_code", reasonCode).Msg("Broker refused connection")
		return
	}
	a.state.Store(int32(StateConnected))
	a.logger.Info().Msg("Connected to broker")
}

func (a *Agent) onDisconnected() {
	a.logger.Info().Msg("Disconnected from broker")
}

func (a *Agent) onPublished(messageID uint16) {
	a.logger.Info().Uint16("mid", messageID).Msg("Publish acknowledged")
}

func (a *Agent) onSubscribed(topic string) {
	a.logger.Info().Str("topic", topic).Msg("Subscribed")
}

func (a *Agent) onUnsubscribed(topic string) {
	a.logger.Info().Str("topic", topic).Msg("Unsubscribed")
}

// onMessage runs on the transport goroutine; handling moves to the dispatch
// pool so a slow handler never blocks the network loop.
func (a *Agent) onMessage(msg mqtt.Message) {
	a.logger.Info().Str("topic", msg.Topic).Str("payload", string(msg.Payload)).Msg("Received message")
	submitted := a.dispatch.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		a.behavior.OnMessage(ctx, a, msg)
	})
	if !submitted {
		a.logger.Warn().Str("topic", msg.Topic).Msg("Dropping inbound message: agent shutting down or overloaded")
	}
}
