package simulation_test

import (
	"context"
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

// permissiveFactory hands every agent its own mock that accepts any
// transport call, and records the mocks by client ID.
func permissiveFactory(clients map[string]*mocks.MockMQTTClient) simulation.ClientFactory {
	return func(clientID string, events mqtt.Events) mqtt.Client {
		client := new(mocks.MockMQTTClient)
		client.Events = events
		client.On("Connect", mock.Anything).Return(nil).Maybe()
		client.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(uint16(1), nil).Maybe()
		client.On("Subscribe", mock.Anything, mock.Anything).Return(nil).Maybe()
		client.On("Unsubscribe", mock.Anything, mock.Anything).Return(nil).Maybe()
		client.On("Disconnect").Return(nil).Maybe()
		clients[clientID] = client
		return client
	}
}

func TestFleetBuildsRosterAgents(t *testing.T) {
	roster := simulation.Roster{
		Sensors:   map[string][]string{"temperature": {"livingroom", "kitchen"}},
		Actuators: map[string][]string{"door": {"garage"}},
	}
	clients := make(map[string]*mocks.MockMQTTClient)

	fleet, err := simulation.NewFleet(roster, "home", 1, permissiveFactory(clients), zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 3, fleet.Size())

	agent, ok := fleet.Agent("livingroom-sensor-temperature")
	require.True(t, ok)
	assert.Equal(t, "home/livingroom-sensor-temperature", agent.Topic())

	agent, ok = fleet.Agent("garage-actuator-door")
	require.True(t, ok)
	assert.Equal(t, "home/garage-actuator-door", agent.Topic())

	_, ok = fleet.Agent("garage-actuator-led")
	assert.False(t, ok)
}

func TestFleetRejectsUnknownDeviceTypes(t *testing.T) {
	clients := make(map[string]*mocks.MockMQTTClient)

	_, err := simulation.NewFleet(simulation.Roster{
		Sensors: map[string][]string{"sonar": {"garage"}},
	}, "home", 1, permissiveFactory(clients), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sensor type")

	_, err = simulation.NewFleet(simulation.Roster{
		Actuators: map[string][]string{"winch": {"garage"}},
	}, "home", 1, permissiveFactory(clients), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown actuator type")
}

func TestFleetShutdownTerminatesEveryAgent(t *testing.T) {
	roster := simulation.Roster{
		Sensors: map[string][]string{
			"temperature":   {"livingroom"},
			"motion":        {"kitchen"},
			"smokedetector": {"garage"},
		},
		Actuators: map[string][]string{
			"door":       {"garage"},
			"thermostat": {"livingroom"},
		},
	}
	clients := make(map[string]*mocks.MockMQTTClient)

	fleet, err := simulation.NewFleet(roster, "home", 99, permissiveFactory(clients), zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 5, fleet.Size())

	ctx, cancel := context.WithCancel(context.Background())
	fleet.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		fleet.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("fleet did not reach terminal state after cancellation")
	}

	for name := range clients {
		agent, ok := fleet.Agent(name)
		require.True(t, ok, "agent %q missing from registry", name)
		assert.Equal(t, simulation.StateDisconnected, agent.State(), "agent %q", name)
		clients[name].AssertCalled(t, "Disconnect")
	}
}

func TestFleetSeedIsStablePerDevice(t *testing.T) {
	roster := simulation.Roster{
		Sensors: map[string][]string{"temperature": {"livingroom"}},
	}

	readings := make([][]map[string]any, 2)
	for i := range readings {
		clients := make(map[string]*mocks.MockMQTTClient)
		_, err := simulation.NewFleet(roster, "home", 77, permissiveFactory(clients), zerolog.Nop())
		require.NoError(t, err)

		// Rebuild the behavior the fleet derives for this device and draw
		// from it: same fleet seed, same device, same sequence.
		behavior := simulation.NewSensorBehavior(simulation.TemperatureProfile(), simulation.NewRand(simulation.AgentSeed(77, "livingroom-sensor-temperature")))
		for j := 0; j < 10; j++ {
			readings[i] = append(readings[i], behavior.Reading())
		}
	}
	assert.Equal(t, readings[0], readings[1])
}
