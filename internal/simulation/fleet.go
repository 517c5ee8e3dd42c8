package simulation

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// Roster lists the room names per device type for one simulation run.
type Roster struct {
	Sensors   map[string][]string
	Actuators map[string][]string
}

// Fleet owns the full set of agents for one run and the goroutine each agent
// executes on. Agents share nothing but the run context; the registry exists
// for lookup and state inspection.
type Fleet struct {
	agents cmap.ConcurrentMap[string, *Agent]
	order  []string
	logger zerolog.Logger
	wg     sync.WaitGroup
}

// NewFleet builds one agent per roster entry. Device names follow the
// "{room}-sensor-{type}" and "{room}-actuator-{type}" convention, which also
// fixes each agent's topic under rootTopic.
func NewFleet(roster Roster, rootTopic string, seed int64, factory ClientFactory, logger zerolog.Logger) (*Fleet, error) {
	f := &Fleet{
		agents: cmap.New[*Agent](),
		logger: logger,
	}

	for deviceType, rooms := range roster.Sensors {
		profile, ok := SensorProfileFor(deviceType)
		if !ok {
			return nil, fmt.Errorf("unknown sensor type %q", deviceType)
		}
		for _, room := range rooms {
			name := fmt.Sprintf("%s-sensor-%s", room, deviceType)
			behavior := NewSensorBehavior(profile, NewRand(AgentSeed(seed, name)))
			f.add(NewAgent(name, rootTopic, behavior, factory, logger))
		}
	}

	for deviceType, rooms := range roster.Actuators {
		transform, ok := ActuatorTransformFor(deviceType)
		if !ok {
			return nil, fmt.Errorf("unknown actuator type %q", deviceType)
		}
		for _, room := range rooms {
			name := fmt.Sprintf("%s-actuator-%s", room, deviceType)
			behavior := NewActuatorBehavior(transform, NewRand(AgentSeed(seed, name)))
			f.add(NewAgent(name, rootTopic, behavior, factory, logger))
		}
	}

	return f, nil
}

// AgentSeed derives a stable per-device seed so one fleet seed reproduces
// every device's sequence. Seed 0 keeps time-based randomness.
func AgentSeed(seed int64, name string) int64 {
	if seed == 0 {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(name))
	return seed ^ int64(h.Sum64())
}

func (f *Fleet) add(agent *Agent) {
	f.agents.Set(agent.Name(), agent)
	f.order = append(f.order, agent.Name())
}

// Size returns the number of agents in the fleet.
func (f *Fleet) Size() int { return f.agents.Count() }

// Agent looks up an agent by device name.
func (f *Fleet) Agent(name string) (*Agent, bool) { return f.agents.Get(name) }

// Start runs every agent on its own goroutine. Cancelling ctx is the
// fleet-wide shutdown signal; agents observe it cooperatively at their own
// suspension points.
func (f *Fleet) Start(ctx context.Context) {
	f.logger.Info().Int("agents", f.Size()).Msg("Starting fleet")
	for _, name := range f.order {
		agent, ok := f.agents.Get(name)
		if !ok {
			continue
		}
		f.wg.Add(1)
		go func(agent *Agent) {
			defer f.wg.Done()
			agent.Run(ctx)
		}(agent)
	}
}

// Wait blocks until every agent has finished its terminal
// unsubscribe/disconnect sequence.
func (f *Fleet) Wait() {
	f.wg.Wait()
	f.logger.Info().Msg("All agents terminated")
}
