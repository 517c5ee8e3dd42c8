package simulation_test

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/homefleet/mqtt-simulator/internal/simulation"
	"github.com/homefleet/mqtt-simulator/pkg/mqtt"
	"github.com/homefleet/mqtt-simulator/tests/mocks"
)

// fastProfile is a sensor profile with a cadence short enough for tests.
func fastProfile() simulation.SensorProfile {
	return simulation.SensorProfile{
		Type: "test",
		Flags: []simulation.FlagField{
			{Name: "on"},
			{Name: "alert", TrueOneIn: 8},
		},
		Numeric: []simulation.NumericField{
			{Name: "temperature", Min: 18, Max: 26},
			{Name: "battery", Min: 89, Max: 92},
			{Name: "linkquality", Min: 50, Max: 255},
		},
		MinInterval: time.Millisecond,
		MaxInterval: 2 * time.Millisecond,
	}
}

func newMockedAgent(name string, behavior simulation.Behavior) (*simulation.Agent, *mocks.MockMQTTClient) {
	client := new(mocks.MockMQTTClient)
	factory := func(clientID string, events mqtt.Events) mqtt.Client {
		client.Events = events
		return client
	}
	agent := simulation.NewAgent(name, "home", behavior, factory, zerolog.Nop())
	return agent, client
}

func TestSensorReadingFieldsWithinRange(t *testing.T) {
	profile := simulation.TemperatureProfile()
	behavior := simulation.NewSensorBehavior(profile, simulation.NewRand(42))

	for i := 0; i < 200; i++ {
		reading := behavior.Reading()
		for _, field := range profile.Numeric {
			value, ok := reading[field.Name].(float64)
			require.True(t, ok, "field %q missing from reading", field.Name)
			assert.GreaterOrEqual(t, value, field.Min)
			assert.LessOrEqual(t, value, field.Max)
			assert.Equal(t, math.Round(value*100)/100, value, "field %q not rounded to two decimals", field.Name)
		}
	}
}

func TestSensorPinnedFlagIsAlwaysTrue(t *testing.T) {
	behavior := simulation.NewSensorBehavior(simulation.MotionProfile(), simulation.NewRand(7))

	for i := 0; i < 50; i++ {
		reading := behavior.Reading()
		assert.Equal(t, true, reading["on"])
		_, ok := reading["alert"].(bool)
		assert.True(t, ok)
	}
}

func TestSensorReadingsReproducibleWithSeed(t *testing.T) {
	first := simulation.NewSensorBehavior(simulation.TemperatureProfile(), simulation.NewRand(1234))
	second := simulation.NewSensorBehavior(simulation.TemperatureProfile(), simulation.NewRand(1234))

	for i := 0; i < 50; i++ {
		assert.Equal(t, first.Reading(), second.Reading())
	}
}

func TestSensorTickPublishesReadingWithFreshToken(t *testing.T) {
	behavior := simulation.NewSensorBehavior(fastProfile(), simulation.NewRand(9))
	agent, client := newMockedAgent("garden1-sensor-test", behavior)

	var mu sync.Mutex
	var tokens [][]byte
	var payloads [][]byte
	client.On("Publish", mock.Anything, "home/garden1-sensor-test", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			payloads = append(payloads, args.Get(2).([]byte))
			tokens = append(tokens, args.Get(3).([]byte))
			mu.Unlock()
		}).
		Return(uint16(1), nil)

	require.NoError(t, behavior.Tick(context.Background(), agent))
	require.NoError(t, behavior.Tick(context.Background(), agent))

	require.Len(t, tokens, 2)
	assert.NotEmpty(t, tokens[0])
	assert.NotEmpty(t, tokens[1])
	assert.NotEqual(t, string(tokens[0]), string(tokens[1]), "sensor tokens must be fresh per message")

	var reading map[string]any
	require.NoError(t, json.Unmarshal(payloads[0], &reading))
	for _, field := range []string{"on", "alert", "temperature", "battery", "linkquality"} {
		assert.Contains(t, reading, field)
	}
}

func TestSensorTickStopsPromptlyOnCancel(t *testing.T) {
	profile := fastProfile()
	profile.MinInterval = 10 * time.Second
	profile.MaxInterval = 20 * time.Second
	behavior := simulation.NewSensorBehavior(profile, simulation.NewRand(3))
	agent, client := newMockedAgent("kitchen-sensor-test", behavior)

	client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(uint16(1), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = behavior.Tick(ctx, agent)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sensor tick did not observe cancellation within its suspension")
	}
}
