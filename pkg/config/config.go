package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	NatsURL           string // url of the NATS server, empty selects the in-process bus
	WaitForServices   string // duration to wait for other services to be ready
	LogLevel          string // sets the log level (zap log level values)
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules, e.g. "*:relay debug+:*"
	IncomingChannel   string // bus channel for normalized events and commands
	OutgoingChannel   string // bus channel for race snapshots
	Addr              string // listen addr of the relay
	TelemetryPath     string // websocket path of the telemetry channel
	CommandPath       string // websocket path of the command channel
	TrackEventPath    string // http path for raw track events
	StaticDir         string // directory served on /
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry, "stdout" prints to console
	MinClientVersion  string // clients below this version are logged
	NumDrivers        int    // number of drivers (tracks) of a race
	PushInterval      string // interval for pushing the race state
	SerialPort        string // serial device of the track sensors
	BaudRate          int    // baud rate of the serial device
	URL               string // base url of the relay for clients
	ReconnectDelay    string // delay before each connection attempt
	Roster            string // path to the driver roster yaml
	TLSCertFile       string // path to TLS certificate
	TLSKeyFile        string // path to TLS key
	TLSCAFile         string // path to TLS CA
	TraefikCerts      string // path to traefik certs file
	TraefikCertDomain string // the domain to lookup within the traefik certs
)
