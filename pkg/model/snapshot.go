package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// NoTime marks a lap or best time which was not recorded yet
const NoTime int64 = -1

// per driver values of a snapshot, times in milliseconds
type DriverStats struct {
	LapCount int   `json:"lap_count"`
	BestTime int64 `json:"best_time"`
	LapTime  int64 `json:"lap_time"`
}

func NewDriverStats() DriverStats {
	return DriverStats{BestTime: NoTime, LapTime: NoTime}
}

// Position is transferred as a [driverId, lapCount] pair
type Position struct {
	DriverID string
	LapCount int
}

// Snapshot is a complete telemetry update.
// On the wire the driver stats are top-level attributes keyed by driver id
// next to type, status and positions.
type Snapshot struct {
	Type      MessageType
	Status    RaceStatus
	Positions []Position
	Drivers   map[string]DriverStats
}

func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.DriverID, p.LapCount})
}

func (p *Position) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("%w: position: %w", ErrDecode, err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("%w: position needs 2 elements, got %d", ErrDecode, len(pair))
	}
	id, err := decodeDriverID(pair[0])
	if err != nil {
		return err
	}
	var lapCount int
	if err := json.Unmarshal(pair[1], &lapCount); err != nil {
		return fmt.Errorf("%w: lap count of driver %s: %w", ErrDecode, id, err)
	}
	p.DriverID = id
	p.LapCount = lapCount
	return nil
}

// driver ids may arrive as strings or as numbers
func decodeDriverID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: driver id %s", ErrDecode, string(raw))
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(s.Drivers)+3)
	for id, d := range s.Drivers {
		m[id] = d
	}
	positions := s.Positions
	if positions == nil {
		positions = []Position{}
	}
	m["type"] = s.Type
	m["status"] = s.Status
	m["positions"] = positions
	return json.Marshal(m)
}

//nolint:cyclop // by design
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}
	ret := Snapshot{Drivers: make(map[string]DriverStats)}
	for k, v := range raw {
		var err error
		switch k {
		case "type":
			err = json.Unmarshal(v, &ret.Type)
		case "status":
			err = json.Unmarshal(v, &ret.Status)
		case "positions":
			err = json.Unmarshal(v, &ret.Positions)
		default:
			// only objects are driver entries
			if !bytes.HasPrefix(bytes.TrimSpace(v), []byte("{")) {
				continue
			}
			d := NewDriverStats()
			if err = json.Unmarshal(v, &d); err == nil {
				ret.Drivers[k] = d
			}
		}
		if err != nil {
			return fmt.Errorf("%w: attribute %s: %w", ErrDecode, k, err)
		}
	}
	*s = ret
	return nil
}

// Validate checks that every driver referenced in positions has stats.
func (s Snapshot) Validate() error {
	for i, p := range s.Positions {
		if _, ok := s.Drivers[p.DriverID]; !ok {
			return fmt.Errorf("%w: position %d references driver %q without stats",
				ErrMalformedSnapshot, i+1, p.DriverID)
		}
	}
	return nil
}

// DecodeSnapshot parses and validates a telemetry frame.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		// syntax errors are reported before UnmarshalJSON is called
		if !errors.Is(err, ErrDecode) {
			err = fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return Snapshot{}, err
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
