package client

// events are handled one at a time by the supervisor loop. Each carries
// the generation of the channel pair it belongs to, events of replaced
// pairs are ignored.
type (
	event interface {
		generation() uint64
	}
	reconnectDue struct {
		gen uint64
	}
	dialResult struct {
		gen       uint64
		telemetry Transport
		command   Transport
		err       error
	}
	telemetryFrame struct {
		gen  uint64
		data []byte
	}
	// anything the relay sends back on the command channel
	commandFrame struct {
		gen  uint64
		data []byte
	}
	channelClosed struct {
		gen     uint64
		channel string
		err     error
	}
)

func (e reconnectDue) generation() uint64   { return e.gen }
func (e dialResult) generation() uint64     { return e.gen }
func (e telemetryFrame) generation() uint64 { return e.gen }
func (e commandFrame) generation() uint64   { return e.gen }
func (e channelClosed) generation() uint64  { return e.gen }
