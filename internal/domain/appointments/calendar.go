package appointments

import (
	"errors"
	"time"
)

// Day view geometry: one hour is HourHeight pixels, the grid starts at
// WindowStart and ends at WindowEnd.
const (
	HourHeight  = 96.0
	WindowStart = 8
	WindowEnd   = 20
)

var ErrOutsideWindow = errors.New("time outside the 08:00-20:00 window")

const clockLayout = "15:04"

func parseClock(s string) (time.Time, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidInput
	}
	return t, nil
}

// SlotOffset is the vertical offset of start from the top of the grid.
func SlotOffset(start string) (float64, error) {
	t, err := parseClock(start)
	if err != nil {
		return 0, err
	}
	h, m := t.Hour(), t.Minute()
	if h < WindowStart || h > WindowEnd || (h == WindowEnd && m > 0) {
		return 0, ErrOutsideWindow
	}
	return float64(h-WindowStart)*HourHeight + float64(m)/60*HourHeight, nil
}

// SlotHeight is the height of the block spanning start to end. An end past
// the window is cut at WindowEnd.
func SlotHeight(start, end string) (float64, error) {
	top, err := SlotOffset(start)
	if err != nil {
		return 0, err
	}
	bottom, err := SlotOffset(end)
	if errors.Is(err, ErrOutsideWindow) {
		if t, _ := parseClock(end); t.Hour() >= WindowEnd {
			bottom, err = float64(WindowEnd-WindowStart)*HourHeight, nil
		}
	}
	if err != nil {
		return 0, err
	}
	if bottom <= top {
		return 0, ErrInvalidInput
	}
	return bottom - top, nil
}

// CalendarEntry places an appointment on the day grid.
type CalendarEntry struct {
	Appointment
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}
