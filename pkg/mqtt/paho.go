package mqtt

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/rs/zerolog"
)

// qosExactlyOnce is the delivery guarantee used for every publish and
// subscribe in the simulation.
const qosExactlyOnce = 2

// defaultConnectTimeout bounds the dial plus CONNECT/CONNACK handshake.
const defaultConnectTimeout = 10 * time.Second

// PahoClient is a Client backed by the Eclipse Paho MQTT v5 client. It owns a
// single TCP connection to the broker and never reconnects on its own; a
// failed or lost connection leaves the client unusable until Connect is called
// again by a fresh owner.
type PahoClient struct {
	broker         string
	clientID       string
	connectTimeout time.Duration
	events         Events
	logger         zerolog.Logger

	client atomic.Pointer[paho.Client]
	nextID atomic.Uint32
}

// NewPahoClient creates an unconnected client for the given broker address
// (host:port). The event callbacks must be wired here, before Connect, so no
// early transport event is lost.
func NewPahoClient(broker, clientID string, connectTimeout time.Duration, events Events, logger zerolog.Logger) *PahoClient {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	return &PahoClient{
		broker:         broker,
		clientID:       clientID,
		connectTimeout: connectTimeout,
		events:         events,
		logger:         logger.With().Str("client_id", clientID).Logger(),
	}
}

// Connect dials the broker and runs the MQTT v5 handshake. The connected
// callback fires with the CONNACK reason code; a non-zero code is also
// surfaced as the returned error. There is no retry.
func (p *PahoClient) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", p.broker)
	if err != nil {
		return fmt.Errorf("dial broker %s: %w", p.broker, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: p.clientID,
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			p.handlePublishReceived,
		},
		OnServerDisconnect: func(d *paho.Disconnect) {
			p.logger.Warn().Uint8("reason_code", d.ReasonCode).Msg("Server closed the connection")
			if cb := p.events.OnDisconnected; cb != nil {
				cb()
			}
		},
		OnClientError: func(err error) {
			p.logger.Error().Err(err).Msg("MQTT client error")
		},
	})

	ack, err := client.Connect(ctx, &paho.Connect{
		ClientID:   p.clientID,
		CleanStart: true,
		KeepAlive:  60,
	})
	if err != nil {
		_ = conn.Close()
		if ack != nil {
			p.fireConnected(ack.ReasonCode)
		}
		return fmt.Errorf("connect to broker %s: %w", p.broker, err)
	}
	if ack.ReasonCode != 0 {
		_ = conn.Close()
		p.fireConnected(ack.ReasonCode)
		return fmt.Errorf("broker %s refused connection: reason code %d", p.broker, ack.ReasonCode)
	}

	p.client.Store(client)
	p.fireConnected(0)
	return nil
}

// Publish sends one message at QoS 2, retain false, with the given correlation
// data attached as an MQTT 5 property. It returns a client-local message ID
// and fires the published callback once the QoS 2 flow has completed.
func (p *PahoClient) Publish(ctx context.Context, topic string, payload []byte, correlation []byte) (uint16, error) {
	client := p.client.Load()
	if client == nil {
		return 0, ErrNotConnected
	}

	id := uint16(p.nextID.Add(1))
	_, err := client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     qosExactlyOnce,
		Payload: payload,
		Properties: &paho.PublishProperties{
			CorrelationData: correlation,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("publish to %s: %w", topic, err)
	}

	if cb := p.events.OnPublished; cb != nil {
		cb(id)
	}
	return id, nil
}

// Subscribe registers for a topic at QoS 2 and fires the subscribed callback
// once the broker grants it.
func (p *PahoClient) Subscribe(ctx context.Context, topic string) error {
	client := p.client.Load()
	if client == nil {
		return ErrNotConnected
	}

	_, err := client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: topic, QoS: qosExactlyOnce},
		},
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}

	if cb := p.events.OnSubscribed; cb != nil {
		cb(topic)
	}
	return nil
}

// Unsubscribe removes a subscription and fires the unsubscribed callback on
// acknowledgment.
func (p *PahoClient) Unsubscribe(ctx context.Context, topic string) error {
	client := p.client.Load()
	if client == nil {
		return ErrNotConnected
	}

	_, err := client.Unsubscribe(ctx, &paho.Unsubscribe{
		Topics: []string{topic},
	})
	if err != nil {
		return fmt.Errorf("unsubscribe from %s: %w", topic, err)
	}

	if cb := p.events.OnUnsubscribed; cb != nil {
		cb(topic)
	}
	return nil
}

// Disconnect sends a clean DISCONNECT and releases the connection.
func (p *PahoClient) Disconnect() error {
	client := p.client.Swap(nil)
	if client == nil {
		return ErrNotConnected
	}

	err := client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	if cb := p.events.OnDisconnected; cb != nil {
		cb()
	}
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// handlePublishReceived adapts an inbound paho publish to the Events message
// callback, lifting the correlation data out of the v5 properties.
func (p *PahoClient) handlePublishReceived(pr paho.PublishReceived) (bool, error) {
	cb := p.events.OnMessage
	if cb == nil {
		return true, nil
	}

	msg := Message{
		Topic:   pr.Packet.Topic,
		Payload: pr.Packet.Payload,
	}
	if props := pr.Packet.Properties; props != nil {
		msg.Correlation = props.CorrelationData
	}
	cb(msg)
	return true, nil
}

func (p *PahoClient) fireConnected(reasonCode byte) {
	if cb := p.events.OnConnected; cb != nil {
		cb(reasonCode)
	}
}
