package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/homefleet/mqtt-simulator/internal/broker"
	"github.com/homefleet/mqtt-simulator/internal/simulation"
	"github.com/homefleet/mqtt-simulator/internal/utils"
	"github.com/homefleet/mqtt-simulator/pkg/mqtt"
)

var (
	configPath string
	logLevel   string
	brokerPort int
)

func main() {
	root := &cobra.Command{
		Use:          "simulator",
		Short:        "Simulate a fleet of smart-home MQTT devices",
		RunE:         runSimulation,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")

	brokerCmd := &cobra.Command{
		Use:   "broker",
		Short: "Run an embedded MQTT broker for local development",
		RunE:  runBroker,
	}
	brokerCmd.Flags().IntVar(&brokerPort, "port", 1883, "TCP port to listen on")
	root.AddCommand(brokerCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	log := newLogger()

	config, err := utils.LoadConfig(configPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	// Unique suffix per run so parallel simulator instances never collide on
	// broker client IDs.
	runID := uuid.NewString()[:8]
	factory := func(clientID string, events mqtt.Events) mqtt.Client {
		return mqtt.NewPahoClient(
			config.MQTT.Broker,
			config.MQTT.ClientPrefix+"-"+runID+"-"+clientID,
			config.MQTT.ConnectTimeout,
			events,
			log,
		)
	}

	roster := simulation.Roster{
		Sensors:   config.Fleet.Sensors,
		Actuators: config.Fleet.Actuators,
	}
	fleet, err := simulation.NewFleet(roster, config.Simulation.RootTopic, config.Simulation.Seed, factory, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build fleet")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fleet.Start(ctx)

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down fleet. This may take a moment...")
	cancel()
	fleet.Wait()
	return nil
}

func runBroker(cmd *cobra.Command, args []string) error {
	log := newLogger()

	b, err := broker.New(brokerPort, log)
	if err != nil {
		return err
	}
	if err := b.Start(cmd.Context()); err != nil {
		return err
	}

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Stopping broker")
	return b.Stop()
}
