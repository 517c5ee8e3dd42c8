package simulation

import (
	"encoding/json"
	"fmt"
	"time"
)

// Sensor profiles and actuator transforms mirror the traffic of the physical
// smart-home devices they stand in for. Battery charge and radio link quality
// ride along on every message.

func batteryAndLink() []NumericField {
	return []NumericField{
		{Name: "battery", Min: 89, Max: 92},
		{Name: "linkquality", Min: 50, Max: 255},
	}
}

// TemperatureProfile reports temperature and humidity every 10-15 seconds.
func TemperatureProfile() SensorProfile {
	return SensorProfile{
		Type: "temperature",
		Numeric: append([]NumericField{
			{Name: "temperature", Min: 18, Max: 26},
			{Name: "humidity", Min: 40, Max: 90},
		}, batteryAndLink()...),
		MinInterval: 10 * time.Second,
		MaxInterval: 15 * time.Second,
	}
}

// MotionProfile raises an alert on roughly one reading in eight.
func MotionProfile() SensorProfile {
	return SensorProfile{
		Type: "motion",
		Flags: []FlagField{
			{Name: "on"},
			{Name: "alert", TrueOneIn: 8},
		},
		Numeric:     batteryAndLink(),
		MinInterval: 30 * time.Second,
		MaxInterval: 60 * time.Second,
	}
}

// WindowProfile reports the window open on roughly one reading in eight.
func WindowProfile() SensorProfile {
	return SensorProfile{
		Type: "window",
		Flags: []FlagField{
			{Name: "open", TrueOneIn: 8},
		},
		Numeric:     batteryAndLink(),
		MinInterval: 100 * time.Second,
		MaxInterval: 200 * time.Second,
	}
}

// DoorProfile matches the window contact sensor, on its own topic family.
func DoorProfile() SensorProfile {
	p := WindowProfile()
	p.Type = "door"
	return p
}

// SmokeDetectorProfile alerts on roughly one reading in eleven.
func SmokeDetectorProfile() SensorProfile {
	return SensorProfile{
		Type: "smokedetector",
		Flags: []FlagField{
			{Name: "on"},
			{Name: "alert", TrueOneIn: 11},
		},
		Numeric:     batteryAndLink(),
		MinInterval: 100 * time.Second,
		MaxInterval: 200 * time.Second,
	}
}

// SensorProfileFor returns the profile for a configured sensor type.
func SensorProfileFor(deviceType string) (SensorProfile, bool) {
	switch deviceType {
	case "temperature":
		return TemperatureProfile(), true
	case "motion":
		return MotionProfile(), true
	case "window":
		return WindowProfile(), true
	case "door":
		return DoorProfile(), true
	case "smokedetector":
		return SmokeDetectorProfile(), true
	default:
		return SensorProfile{}, false
	}
}

func decodeError(err error) error {
	return fmt.Errorf("%w: %v", ErrDecodeCommand, err)
}

func missingField(name string) error {
	return fmt.Errorf("%w: missing field %q", ErrDecodeCommand, name)
}

// DoorTransform echoes the requested open state.
func DoorTransform(payload []byte) (map[string]any, error) {
	var cmd struct {
		Open *bool `json:"open"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, decodeError(err)
	}
	if cmd.Open == nil {
		return nil, missingField("open")
	}
	return map[string]any{"open": *cmd.Open}, nil
}

// ThermostatTransform echoes the active flag; the setpoint is forwarded only
// while active and forced to 0 otherwise. A missing setpoint defaults to 0.
func ThermostatTransform(payload []byte) (map[string]any, error) {
	var cmd struct {
		Active *bool    `json:"active"`
		State  *float64 `json:"state"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, decodeError(err)
	}
	if cmd.Active == nil {
		return nil, missingField("active")
	}
	state := 0.0
	if *cmd.Active && cmd.State != nil {
		state = *cmd.State
	}
	return map[string]any{"active": *cmd.Active, "state": state}, nil
}

// FireAlarmTransform echoes the requested alert state.
func FireAlarmTransform(payload []byte) (map[string]any, error) {
	var cmd struct {
		Alert *bool `json:"alert"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, decodeError(err)
	}
	if cmd.Alert == nil {
		return nil, missingField("alert")
	}
	return map[string]any{"alert": *cmd.Alert}, nil
}

// ShutterTransform echoes the active flag; the position is forwarded only
// while active and forced to 0 otherwise. A missing position defaults to 0.
func ShutterTransform(payload []byte) (map[string]any, error) {
	var cmd struct {
		Active     *bool    `json:"active"`
		Percentage *float64 `json:"percentage"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, decodeError(err)
	}
	if cmd.Active == nil {
		return nil, missingField("active")
	}
	percentage := 0.0
	if *cmd.Active && cmd.Percentage != nil {
		percentage = *cmd.Percentage
	}
	return map[string]any{"active": *cmd.Active, "percentage": percentage}, nil
}

// LedTransform echoes the requested on state.
func LedTransform(payload []byte) (map[string]any, error) {
	var cmd struct {
		On *bool `json:"on"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, decodeError(err)
	}
	if cmd.On == nil {
		return nil, missingField("on")
	}
	return map[string]any{"on": *cmd.On}, nil
}

// ActuatorTransformFor returns the transform for a configured actuator type.
func ActuatorTransformFor(deviceType string) (Transform, bool) {
	switch deviceType {
	case "door":
		return DoorTransform, true
	case "thermostat":
		return ThermostatTransform, true
	case "firealarm":
		return FireAlarmTransform, true
	case "shutter":
		return ShutterTransform, true
	case "led":
		return LedTransform, true
	default:
		return nil, false
	}
}
