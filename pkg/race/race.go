package race

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/samber/lo"

	"github.com/racecontroll/racecontrol/log"
	"github.com/racecontroll/racecontrol/pkg/model"
)

var (
	ErrUnknownTrack = errors.New("unknown track")
	ErrNotRunning   = errors.New("race is not running")
	ErrLapTime      = errors.New("invalid lap time")
)

type (
	// Race is a plain lap race. Drivers are numbered from 0, track n is
	// mapped to driver n. Not safe for concurrent use.
	Race struct {
		status    model.RaceStatus
		drivers   []*Driver
		tracks    map[int]int
		positions []model.Position
		l         *log.Logger
	}
	Option func(*Race)
)

func WithLogger(l *log.Logger) Option {
	return func(r *Race) {
		r.l = l
	}
}

func NewRace(numDrivers int, opts ...Option) *Race {
	r := &Race{
		status:  model.StatusNotStarted,
		drivers: make([]*Driver, numDrivers),
		tracks:  make(map[int]int, numDrivers),
		l:       log.Default().Named("race"),
	}
	for _, opt := range opts {
		opt(r)
	}
	for i := range numDrivers {
		r.drivers[i] = NewDriver()
		r.tracks[i] = i
	}
	r.updatePositions()
	return r
}

func (r *Race) Status() model.RaceStatus {
	return r.status
}

// Start starts a new race or resumes a paused one.
func (r *Race) Start() bool {
	switch r.status {
	case model.StatusNotStarted:
		r.l.Info("Race started")
	case model.StatusPaused:
		r.l.Info("Race resumed")
	default:
		return false
	}
	r.status = model.StatusStarted
	return true
}

func (r *Race) Pause() bool {
	if r.status != model.StatusStarted {
		return false
	}
	r.status = model.StatusPaused
	r.l.Info("Race paused")
	return true
}

// Finish ends a started or paused race.
func (r *Race) Finish() bool {
	if r.status != model.StatusStarted && r.status != model.StatusPaused {
		return false
	}
	r.status = model.StatusFinished
	r.l.Info("Race finished")
	return true
}

// LapFinished adds a lap to the driver on trackID. Laps are only counted
// while the race is started.
func (r *Race) LapFinished(trackID int, ms int64) error {
	idx, ok := r.tracks[trackID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTrack, trackID)
	}
	if r.status != model.StatusStarted {
		return fmt.Errorf("%w: status %s", ErrNotRunning, r.status)
	}
	if ms < 0 {
		return fmt.Errorf("%w: %d", ErrLapTime, ms)
	}
	r.drivers[idx].AddLap(ms)
	r.updatePositions()
	return nil
}

// Apply executes cmd and reports whether the race changed.
func (r *Race) Apply(cmd model.ControlCommand) (bool, error) {
	switch cmd.Request {
	case model.RequestStart:
		return r.Start(), nil
	case model.RequestPause:
		return r.Pause(), nil
	case model.RequestFinish:
		return r.Finish(), nil
	case model.RequestTrack:
		if err := cmd.Validate(); err != nil {
			return false, err
		}
		if err := r.LapFinished(*cmd.TrackID, *cmd.LapFinished); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, fmt.Errorf("%w: request %q", model.ErrUnrecognizedMessage, cmd.Request)
}

// Snapshot returns a copy of the current state
func (r *Race) Snapshot() model.Snapshot {
	drivers := make(map[string]model.DriverStats, len(r.drivers))
	for i, d := range r.drivers {
		drivers[driverID(i)] = d.Stats()
	}
	return model.Snapshot{
		Type:      model.MTUpdatePositions,
		Status:    r.status,
		Positions: slices.Clone(r.positions),
		Drivers:   drivers,
	}
}

// positions are ordered by lap count, ties keep the driver order
func (r *Race) updatePositions() {
	idx := lo.Range(len(r.drivers))
	// on ties the lower driver index stays ahead, a reversed ascending sort would flip them
	slices.SortStableFunc(idx, func(a, b int) int {
		return r.drivers[b].LapCount - r.drivers[a].LapCount
	})
	r.positions = lo.Map(idx, func(i, _ int) model.Position {
		return model.Position{DriverID: driverID(i), LapCount: r.drivers[i].LapCount}
	})
}

func driverID(i int) string {
	return strconv.Itoa(i)
}
