package monitor

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/client"
	"github.com/racecontroll/racecontrol/pkg/cmd/util"
	"github.com/racecontroll/racecontrol/pkg/config"
	"github.com/racecontroll/racecontrol/pkg/leaderboard"
	"github.com/racecontroll/racecontrol/pkg/relay"
	"github.com/racecontroll/racecontrol/pkg/roster"
)

var logFile string

func NewMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "shows the live leaderboard and controls the race",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startMonitor()
		},
	}
	AddClientFlags(cmd)
	cmd.Flags().StringVar(&config.Roster,
		"roster",
		"",
		"yaml file with driver names, reloaded on change")
	cmd.Flags().StringVar(&logFile,
		"log-file",
		"",
		"write logs to this file (logs are discarded otherwise)")
	return cmd
}

// AddClientFlags registers the flags of commands talking to a relay
func AddClientFlags(cmd *cobra.Command) {
	defaults := relay.DefaultConfig()
	cmd.Flags().StringVar(&config.URL,
		"url",
		"ws://localhost:3000",
		"base url of the relay")
	cmd.Flags().StringVar(&config.TelemetryPath,
		"telemetry-path",
		defaults.TelemetryPath,
		"websocket path of the telemetry channel")
	cmd.Flags().StringVar(&config.CommandPath,
		"command-path",
		defaults.CommandPath,
		"websocket path of the command channel")
	cmd.Flags().StringVar(&config.ReconnectDelay,
		"reconnect-delay",
		client.DefaultReconnectDelay.String(),
		"delay before each connection attempt")
}

// the terminal belongs to the ui, so logs go to a file or nowhere
func setupLogger() (*log.Logger, func(), error) {
	var w io.Writer = io.Discard
	closer := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = f
		closer = func() { f.Close() }
	}
	logger := log.DevLogger(w, util.ParseLogLevel(config.LogLevel, log.InfoLevel))
	log.ResetDefault(logger)
	return logger, closer, nil
}

func startMonitor() error {
	logger, closeLog, err := setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := util.SignalContext()
	defer cancel()

	endpoints, err := client.NewEndpoints(config.URL, config.TelemetryPath, config.CommandPath)
	if err != nil {
		return err
	}

	var names leaderboard.NameResolver = leaderboard.IDNames
	if config.Roster != "" {
		r, err := roster.Load(config.Roster, roster.WithLogger(logger.Named("roster")))
		if err != nil {
			return err
		}
		go func() {
			if err := r.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("roster watch stopped", log.ErrorField(err))
			}
		}()
		names = r
	}

	// only the latest state matters, older ones are replaced
	updates := make(chan client.SessionState, 1)
	sup := client.NewSupervisor(endpoints,
		client.NewWebsocketDialer(5*time.Second),
		client.WithReconnectDelay(util.ParseDuration("reconnect-delay",
			config.ReconnectDelay, client.DefaultReconnectDelay)),
		client.WithNames(names),
		client.WithLogger(logger.Named("client")),
		client.WithOnChange(func(s client.SessionState) {
			select {
			case <-updates:
			default:
			}
			updates <- s
		}),
	)

	p := tea.NewProgram(newModel(config.URL, sup.Commands(), sup.State()),
		tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-updates:
				p.Send(stateMsg(s))
			}
		}
	}()
	go func() {
		if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("supervisor stopped", log.ErrorField(err))
		}
	}()

	_, err = p.Run()
	cancel()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
