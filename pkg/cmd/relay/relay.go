package relay

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/bus"
	"github.com/racecontroll/racecontrol/pkg/cmd/util"
	"github.com/racecontroll/racecontrol/pkg/config"
	"github.com/racecontroll/racecontrol/pkg/relay"
	"github.com/racecontroll/racecontrol/pkg/utils/certs"
)

func NewRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "serves the websocket channels for the race ui",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startRelay()
		},
	}
	AddFlags(cmd)
	return cmd
}

// AddFlags registers the relay flags on cmd
func AddFlags(cmd *cobra.Command) {
	defaults := relay.DefaultConfig()
	cmd.Flags().StringVar(&config.Addr,
		"addr",
		":3000",
		"listen address of the relay")
	cmd.Flags().StringVar(&config.TelemetryPath,
		"telemetry-path",
		defaults.TelemetryPath,
		"websocket path of the telemetry channel")
	cmd.Flags().StringVar(&config.CommandPath,
		"command-path",
		defaults.CommandPath,
		"websocket path of the command channel")
	cmd.Flags().StringVar(&config.TrackEventPath,
		"track-event-path",
		defaults.TrackEventPath,
		"path accepting raw track events")
	cmd.Flags().StringVar(&config.StaticDir,
		"static-dir",
		"",
		"directory with the web ui served on /")
	cmd.Flags().StringVar(&config.MinClientVersion,
		"min-client-version",
		"",
		"clients below this version are logged")
	cmd.Flags().StringVar(&config.TLSCertFile,
		"tls-cert",
		"",
		"file containing the TLS certificate")
	cmd.Flags().StringVar(&config.TLSKeyFile,
		"tls-key",
		"",
		"file containing the TLS key")
	cmd.Flags().StringVar(&config.TLSCAFile,
		"tls-ca",
		"",
		"file containing the root CA for client certificates")
	cmd.Flags().StringVar(&config.TraefikCerts,
		"traefik-certs",
		"",
		"traefik acme.json to take the certificate from")
	cmd.Flags().StringVar(&config.TraefikCertDomain,
		"traefik-domain",
		"",
		"domain to look up in the traefik certs")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (stdout prints)")
}

// Config returns the relay config from the resolved flags
func Config() relay.Config {
	return relay.Config{
		TelemetryPath:    config.TelemetryPath,
		CommandPath:      config.CommandPath,
		TrackEventPath:   config.TrackEventPath,
		StaticDir:        config.StaticDir,
		IncomingChannel:  config.IncomingChannel,
		OutgoingChannel:  config.OutgoingChannel,
		MinClientVersion: config.MinClientVersion,
	}
}

func certSource() certs.Source {
	return certs.Source{
		CertFile:      config.TLSCertFile,
		KeyFile:       config.TLSKeyFile,
		CAFile:        config.TLSCAFile,
		TraefikCerts:  config.TraefikCerts,
		TraefikDomain: config.TraefikCertDomain,
	}
}

// Run serves the relay on b until ctx is done
func Run(ctx context.Context, b bus.Bus) error {
	var opts []relay.Option
	if src := certSource(); src.Enabled() {
		p, err := certs.NewProvider(src)
		if err != nil {
			return err
		}
		tlsConfig, err := p.TLSConfig()
		if err != nil {
			return err
		}
		go func() {
			if err := p.Watch(ctx); err != nil {
				log.Warn("cert reload disabled", log.ErrorField(err))
			}
		}()
		opts = append(opts, relay.WithTLS(tlsConfig))
	}
	srv, err := relay.NewServer(b, Config(), opts...)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx, config.Addr)
}

func startRelay() error {
	util.SetupLogger()
	ctx, cancel := util.SignalContext()
	defer cancel()
	shutdown := util.SetupTelemetry(ctx)
	defer shutdown()
	util.SetupGoRoutinesDump()

	b, err := util.OpenBus()
	if err != nil {
		log.Error("could not open bus", log.ErrorField(err))
		return err
	}
	defer b.Close()

	if err := Run(ctx, b); err != nil {
		log.Error("relay stopped", log.ErrorField(err))
		return err
	}
	log.Info("Relay terminated")
	return nil
}
