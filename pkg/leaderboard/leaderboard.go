package leaderboard

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/racecontroll/racecontrol/pkg/model"
)

// NotAvailable is shown instead of a time when none was recorded yet
const NotAvailable = "not available"

type (
	// Row is one line of the position table
	Row struct {
		Rank     int
		DriverID string
		Name     string
		Laps     int
		BestLap  string
		LastLap  string
	}
	// NameResolver maps a driver id to a display name
	NameResolver interface {
		Name(driverID string) string
	}
	// NameFunc adapts a function to NameResolver
	NameFunc func(driverID string) string
)

func (f NameFunc) Name(driverID string) string { return f(driverID) }

// IDNames displays the driver id as name.
var IDNames = NameFunc(func(id string) string { return id })

// Header returns the column captions in the order of Row.Cells
func Header() []string {
	return []string{"POSITION", "NAME", "TOTAL LAPS", "BEST LAP", "LAST LAP"}
}

// FormatTime formats milliseconds as MM:SS:CC.
func FormatTime(ms int64) string {
	if ms == model.NoTime {
		return NotAvailable
	}
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", ms/60000, (ms/1000)%60, (ms%1000)/10)
}

// Render builds the position table of a snapshot. Rows follow the order
// of the positions list, the rank is the 1-based index in that list.
// An inconsistent snapshot yields an error and no rows.
func Render(s model.Snapshot, names NameResolver) ([]Row, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if names == nil {
		names = IDNames
	}
	return lo.Map(s.Positions, func(p model.Position, idx int) Row {
		stats := s.Drivers[p.DriverID]
		return Row{
			Rank:     idx + 1,
			DriverID: p.DriverID,
			Name:     names.Name(p.DriverID),
			Laps:     stats.LapCount,
			BestLap:  FormatTime(stats.BestTime),
			LastLap:  FormatTime(stats.LapTime),
		}
	}), nil
}

// Cells returns the row as strings matching Header
func (r Row) Cells() []string {
	return []string{
		fmt.Sprintf("%d", r.Rank),
		r.Name,
		fmt.Sprintf("%d", r.Laps),
		r.BestLap,
		r.LastLap,
	}
}
