package race

import "github.com/racecontroll/racecontrol/pkg/model"

// Driver accumulates the laps of one driver. Times are milliseconds.
type Driver struct {
	LapCount int
	LapTime  int64
	BestTime int64
}

func NewDriver() *Driver {
	return &Driver{LapTime: model.NoTime, BestTime: model.NoTime}
}

// AddLap records a finished lap. The first lap sets the best time, later
// laps replace it when faster.
func (d *Driver) AddLap(ms int64) {
	d.LapCount++
	d.LapTime = ms
	if d.BestTime == model.NoTime || ms < d.BestTime {
		d.BestTime = ms
	}
}

func (d *Driver) Stats() model.DriverStats {
	return model.DriverStats{LapCount: d.LapCount, BestTime: d.BestTime, LapTime: d.LapTime}
}
