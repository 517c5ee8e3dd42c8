package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/homefleet/mqtt-simulator/pkg/mqtt"
)

// NumericField is one randomized numeric reading field with an inclusive
// range, published rounded to two decimal places.
type NumericField struct {
	Name string
	Min  float64
	Max  float64
}

// FlagField is a boolean reading field that is true with probability
// 1/TrueOneIn. TrueOneIn <= 1 pins the field to true.
type FlagField struct {
	Name      string
	TrueOneIn int
}

// SensorProfile describes one sensor type as data: the reading fields and the
// bounds of the reporting cadence. Cadences differ per type so the fleet never
// publishes in synchronized bursts.
type SensorProfile struct {
	Type        string
	Flags       []FlagField
	Numeric     []NumericField
	MinInterval time.Duration
	MaxInterval time.Duration
}

// SensorBehavior is the autonomous periodic publisher pattern: once connected,
// it publishes one synthetic reading per cycle on the agent's own topic with a
// fresh correlation token, then sleeps for a random duration within the
// profile's bounds. Sensors hold no subscriptions.
type SensorBehavior struct {
	profile SensorProfile
	rand    *Rand
}

// NewSensorBehavior builds the behavior for one sensor from its profile and a
// dedicated random stream.
func NewSensorBehavior(profile SensorProfile, rand *Rand) *SensorBehavior {
	return &SensorBehavior{profile: profile, rand: rand}
}

// Reading generates one synthetic reading record. Flag fields are drawn before
// numeric fields, in declaration order, which keeps seeded runs reproducible.
func (s *SensorBehavior) Reading() map[string]any {
	reading := make(map[string]any, len(s.profile.Flags)+len(s.profile.Numeric))
	for _, f := range s.profile.Flags {
		if f.TrueOneIn <= 1 {
			reading[f.Name] = true
		} else {
			reading[f.Name] = s.rand.OneIn(f.TrueOneIn)
		}
	}
	for _, f := range s.profile.Numeric {
		reading[f.Name] = s.rand.Between(f.Min, f.Max)
	}
	return reading
}

func (s *SensorBehavior) OnConnected(ctx context.Context, agent *Agent) error {
	return nil
}

// Tick publishes one reading and suspends for the profile's randomized
// interval. Cancellation cuts the suspension short.
func (s *SensorBehavior) Tick(ctx context.Context, agent *Agent) error {
	if ctx.Err() != nil {
		return nil
	}

	payload, err := json.Marshal(s.Reading())
	if err != nil {
		return fmt.Errorf("serialize reading: %w", err)
	}

	// Keep the cadence even when a publish fails, so a broker hiccup never
	// turns the loop hot.
	pubErr := agent.Publish(ctx, payload, nil)
	sleep(ctx, s.rand.Duration(s.profile.MinInterval, s.profile.MaxInterval))
	if pubErr != nil {
		return fmt.Errorf("publish reading: %w", pubErr)
	}
	return nil
}

// OnMessage is never reached in practice: sensors hold no subscriptions.
func (s *SensorBehavior) OnMessage(ctx context.Context, agent *Agent, msg mqtt.Message) {
	agent.Logger().Warn().Str("topic", msg.Topic).Msg("Sensor received unexpected message")
}

func (s *SensorBehavior) OnShutdown(ctx context.Context, agent *Agent) error {
	return nil
}
