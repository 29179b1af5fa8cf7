package trackcomm

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/bus"
	"github.com/racecontroll/racecontrol/pkg/cmd/util"
	"github.com/racecontroll/racecontrol/pkg/config"
	"github.com/racecontroll/racecontrol/pkg/normalizer"
	"github.com/racecontroll/racecontrol/pkg/trackcomm"
)

func NewTrackcommCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trackcomm",
		Short: "reads lap events from the track sensors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startTrackcomm()
		},
	}
	AddFlags(cmd)
	return cmd
}

func AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&config.SerialPort,
		"serial-port",
		"",
		"serial device of the track sensors, e.g. /dev/ttyUSB0")
	cmd.Flags().IntVar(&config.BaudRate,
		"baud-rate",
		9600,
		"baud rate of the serial device")
}

// Run publishes sensor laps on b until ctx is done or the port fails
func Run(ctx context.Context, b bus.Bus) error {
	port, err := trackcomm.OpenSerial(config.SerialPort, config.BaudRate)
	if err != nil {
		return err
	}
	log.Info("reading track sensors",
		log.String("port", config.SerialPort), log.Int("baud", config.BaudRate))
	n := normalizer.NewNormalizer(b, normalizer.WithChannel(config.IncomingChannel))
	return trackcomm.NewReader(port, n).Run(ctx)
}

func startTrackcomm() error {
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
		log.Error("track communicator stopped", log.ErrorField(err))
		return err
	}
	return nil
}
