package model

// TrackEvent is the raw payload of a timing sensor or a UI action.
// Its shape is not fixed, it only has to be a mapping.
type TrackEvent map[string]any

// EventEnvelope is a TrackEvent after normalization. It always carries
// request "track" and type "lap_finished".
type EventEnvelope map[string]any

func (e EventEnvelope) Request() Request {
	s, _ := e["request"].(string)
	return Request(s)
}

func (e EventEnvelope) Type() string {
	s, _ := e["type"].(string)
	return s
}
