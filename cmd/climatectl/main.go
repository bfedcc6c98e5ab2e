// Command climatectl runs the control unit of the smart-window climate
// appliance: it bridges the MQTT temperature sensor, the serial window
// controller, and the operator dashboard around one control kernel.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/smartbuilding/climatectl/internal/actuator"
	"github.com/smartbuilding/climatectl/internal/api"
	"github.com/smartbuilding/climatectl/internal/config"
	"github.com/smartbuilding/climatectl/internal/kernel"
	"github.com/smartbuilding/climatectl/internal/metrics"
	"github.com/smartbuilding/climatectl/internal/sensor"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("control unit failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		port       int
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "climatectl",
		Short:         "Control unit for the smart-window climate appliance",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.API.Port = port
			}
			setupLogging(cfg.LogLevel, verbose)
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
	cmd.Flags().IntVarP(&port, "port", "p", 5000, "HTTP API port")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func setupLogging(level string, verbose bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
}

// commandBridge forwards inbound adapter events to the kernel. The links are
// constructed before the kernel that owns them, so the bridge binds late.
type commandBridge struct {
	k *kernel.Kernel
}

func (b *commandBridge) SetMode(m kernel.Mode) bool { return b.k.SetMode(m) }

func (b *commandBridge) SetManualWindow(p float64, o kernel.Origin) bool {
	return b.k.SetManualWindow(p, o)
}

func (b *commandBridge) OnSample(celsius float64) { b.k.OnSample(celsius) }

func (b *commandBridge) OnSensorHealth(status string, detail map[string]any) {
	b.k.OnSensorHealth(status, detail)
}

func run(ctx context.Context, cfg *config.Config) error {
	log.Info().Msg("starting climate control unit")

	m := metrics.New()
	bridge := &commandBridge{}

	link := actuator.NewLink(cfg.Serial, bridge, m.ActuatorCommandDropped)
	mq := sensor.NewClient(cfg.MQTT, bridge, m.SensorPublishDropped)

	k := kernel.New(cfg.Control, link, mq, m)
	bridge.k = k

	// The actuator comes up first: its device resets on connect and any
	// commands issued meanwhile queue behind the reset grace period.
	link.Start()

	if err := mq.Connect(); err != nil {
		link.Close()
		return err
	}

	k.Start()
	k.PublishInitialState()

	srv := api.NewServer(cfg.API, k, m.Handler())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		// The HTTP server failing to bind is fatal.
		shutdown(nil, k, mq, link)
		return err
	}

	shutdown(srv, k, mq, link)
	return <-errCh
}

// shutdown tears the process down in reverse dependency order: stop taking
// HTTP commands, stop the kernel, then close both links.
func shutdown(srv *api.Server, k *kernel.Kernel, mq *sensor.Client, link *actuator.Link) {
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown did not drain cleanly")
		}
	}
	k.Shutdown()
	mq.Close()
	link.Close()
	log.Info().Msg("climate control unit stopped")
}
