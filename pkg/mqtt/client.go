package mqtt

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by operations that require an established
// connection.
var ErrNotConnected = errors.New("mqtt: not connected")

// Message is a single inbound publish delivered to a subscriber, including the
// sender's correlation data when present.
type Message struct {
	Topic       string
	Payload     []byte
	Correlation []byte
}

// Events groups the callbacks fired by a Client. Callbacks run on the
// transport's own goroutines, concurrently with the owner's loop, so handlers
// must be safe to call from there and must not block the network path.
type Events struct {
	OnConnected    func(reasonCode byte)
	OnDisconnected func()
	OnPublished    func(messageID uint16)
	OnSubscribed   func(topic string)
	OnUnsubscribed func(topic string)
	OnMessage      func(msg Message)
}

// Client defines the interface for a single MQTT v5 connection. Every publish
// and subscribe uses QoS 2 with retain disabled; correlation data is carried
// as an MQTT 5 publish property.
type Client interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, topic string, payload []byte, correlation []byte) (uint16, error)
	Subscribe(ctx context.Context, topic string) error
	Unsubscribe(ctx context.Context, topic string) error
	Disconnect() error
}
