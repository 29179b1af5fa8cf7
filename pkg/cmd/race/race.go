package race

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/bus"
	"github.com/racecontroll/racecontrol/pkg/cmd/util"
	"github.com/racecontroll/racecontrol/pkg/config"
	"github.com/racecontroll/racecontrol/pkg/race"
)

func NewRaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "race",
		Short: "runs the race engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startRace()
		},
	}
	AddFlags(cmd)
	return cmd
}

func AddFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&config.NumDrivers,
		"num-drivers",
		2,
		"number of drivers, track n belongs to driver n")
	cmd.Flags().StringVar(&config.PushInterval,
		"push-interval",
		"1s",
		"interval for pushing the race state")
}

// Run drives races on b until ctx is done
func Run(ctx context.Context, b bus.Bus) error {
	m := race.NewManager(b,
		race.WithNumDrivers(config.NumDrivers),
		race.WithPushInterval(
			util.ParseDuration("push-interval", config.PushInterval, time.Second)),
		race.WithChannels(config.IncomingChannel, config.OutgoingChannel))
	return m.Run(ctx)
}

func startRace() error {
	util.SetupLogger()
	ctx, cancel := util.SignalContext()
	defer cancel()

	b, err := util.OpenBus()
	if err != nil {
		log.Error("could not open bus", log.ErrorField(err))
		return err
	}
	defer b.Close()

	if err := Run(ctx, b); err != nil {
		log.Error("race engine stopped", log.ErrorField(err))
		return err
	}
	log.Info("Race engine terminated")
	return nil
}
