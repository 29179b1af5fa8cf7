package server

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/racecontroll/racecontrol/log"
	raceCmd "github.com/racecontroll/racecontrol/pkg/cmd/race"
	relayCmd "github.com/racecontroll/racecontrol/pkg/cmd/relay"
	trackcommCmd "github.com/racecontroll/racecontrol/pkg/cmd/trackcomm"
	"github.com/racecontroll/racecontrol/pkg/cmd/util"
	"github.com/racecontroll/racecontrol/pkg/config"
)

// NewServerCmd runs relay, race engine and optionally the track
// communicator in one process.
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "starts relay and race engine in one process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer()
		},
	}
	relayCmd.AddFlags(cmd)
	raceCmd.AddFlags(cmd)
	trackcommCmd.AddFlags(cmd)
	return cmd
}

func startServer() error {
	util.SetupLogger()
	ctx, cancel := util.SignalContext()
	defer cancel()
	shutdown := util.SetupTelemetry(ctx)
	defer shutdown()
	util.SetupGoRoutinesDump()

	log.Debug("Config:",
		log.String("nats", config.NatsURL),
		log.String("addr", config.Addr),
		log.Int("drivers", config.NumDrivers),
		log.String("serial", config.SerialPort))

	b, err := util.OpenBus()
	if err != nil {
		log.Error("could not open bus", log.ErrorField(err))
		return err
	}
	defer b.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return relayCmd.Run(gctx, b) })
	g.Go(func() error { return raceCmd.Run(gctx, b) })
	if config.SerialPort != "" {
		g.Go(func() error { return trackcommCmd.Run(gctx, b) })
	}
	log.Info("Server started")
	if err := g.Wait(); err != nil {
		log.Error("server stopped", log.ErrorField(err))
		return err
	}
	log.Info("Server terminated")
	return nil
}
