package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/homefleet/mqtt-simulator/pkg/mqtt"
)

// MockMQTTClient is a mock implementation of the mqtt.Client interface.
type MockMQTTClient struct {
	mock.Mock

	// Events holds the callbacks an agent wired at construction, so tests can
	// drive inbound transport events directly.
	Events mqtt.Events
}

func (m *MockMQTTClient) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockMQTTClient) Publish(ctx context.Context, topic string, payload []byte, correlation []byte) (uint16, error) {
	args := m.Called(ctx, topic, payload, correlation)
	return args.Get(0).(uint16), args.Error(1)
}

func (m *MockMQTTClient) Subscribe(ctx context.Context, topic string) error {
	args := m.Called(ctx, topic)
	return args.Error(0)
}

func (m *MockMQTTClient) Unsubscribe(ctx context.Context, topic string) error {
	args := m.Called(ctx, topic)
	return args.Error(0)
}

func (m *MockMQTTClient) Disconnect() error {
	args := m.Called()
	return args.Error(0)
}
