package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/racecontroll/racecontrol/log"
	rcclient "github.com/racecontroll/racecontrol/pkg/client"
	"github.com/racecontroll/racecontrol/pkg/cmd/monitor"
	"github.com/racecontroll/racecontrol/pkg/cmd/util"
	"github.com/racecontroll/racecontrol/pkg/config"
	"github.com/racecontroll/racecontrol/pkg/model"
	"github.com/racecontroll/racecontrol/pkg/utils"
)

var ErrUsage = errors.New("usage: send start|pause|finish|lap TRACK MS")

func NewSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send start|pause|finish|lap TRACK MS",
		Short: "sends a single command on the command channel",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := ParseCommand(args)
			if err != nil {
				return err
			}
			return sendCommand(cmd.Context(), c)
		},
	}
	monitor.AddClientFlags(cmd)
	return cmd
}

// ParseCommand builds a command from the cli arguments
func ParseCommand(args []string) (model.ControlCommand, error) {
	if len(args) == 0 {
		return model.ControlCommand{}, ErrUsage
	}
	switch args[0] {
	case "start":
		return model.StartCommand(), nil
	case "pause":
		return model.PauseCommand(), nil
	case "finish", "reset":
		return model.FinishCommand(), nil
	case "lap":
		if len(args) != 3 {
			return model.ControlCommand{}, ErrUsage
		}
		track, err := strconv.Atoi(args[1])
		if err != nil {
			return model.ControlCommand{}, fmt.Errorf("track id: %w", err)
		}
		ms, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return model.ControlCommand{}, fmt.Errorf("lap time: %w", err)
		}
		return model.LapFinishedCommand(track, ms), nil
	}
	return model.ControlCommand{}, fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
}

func sendCommand(ctx context.Context, c model.ControlCommand) error {
	util.SetupLogger()
	if ctx == nil {
		ctx = context.Background()
	}
	endpoints, err := rcclient.NewEndpoints(config.URL, config.TelemetryPath, config.CommandPath)
	if err != nil {
		return err
	}
	// the relay may still be starting
	if addr, _ := utils.ExtractFromWebsocketURL(endpoints.Command); addr != "" {
		timeout := util.ParseDuration("wait-for-services", config.WaitForServices, 15*time.Second)
		if err := utils.WaitForTCP(addr, timeout); err != nil {
			return err
		}
	}
	return Send(ctx, rcclient.NewWebsocketDialer(5*time.Second), endpoints.Command, c)
}

// Send dials the command endpoint, writes c and closes the connection.
func Send(ctx context.Context, d rcclient.Dialer, url string, c model.ControlCommand) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	t, err := d.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer t.Close()
	if err := t.WriteMessage(data); err != nil {
		return fmt.Errorf("%w: %w", model.ErrTransport, err)
	}
	log.Info("command sent", log.String("url", url), log.ByteString("command", data))
	return nil
}
