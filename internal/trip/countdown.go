package trip

import "time"

// DefaultDeparture is the planned trip start.
var DefaultDeparture = time.Date(2026, time.March, 17, 0, 0, 0, 0, time.Local)

// Remaining is the time left before departure.
type Remaining struct {
	Weeks, Days             int
	Hours, Minutes, Seconds int
	// TotalDays counts whole days, ignoring weeks.
	TotalDays int
	// Past is true once departure has passed; every other field is then 0.
	Past bool
}

// Until returns the time between now and departure.
func Until(departure, now time.Time) Remaining {
	d := departure.Sub(now)
	if d <= 0 {
		return Remaining{Past: true}
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	return Remaining{
		Weeks:     days / 7,
		Days:      days % 7,
		Hours:     int(d / time.Hour),
		Minutes:   int(d % time.Hour / time.Minute),
		Seconds:   int(d % time.Minute / time.Second),
		TotalDays: days,
	}
}

// HomeView is the landing tab. It binds no document.
type HomeView struct {
	env *Env
}

// Tab implements View.
func (h *HomeView) Tab() Tab { return TabHome }

// Loading implements View.
func (h *HomeView) Loading() bool { return false }

// Observe implements View. The home view never changes on its own.
func (h *HomeView) Observe(func()) func() { return func() {} }

// Close implements View.
func (h *HomeView) Close() {}

// Countdown returns the time left before departure.
func (h *HomeView) Countdown() Remaining {
	dep := h.env.Departure
	if dep.IsZero() {
		dep = DefaultDeparture
	}
	return Until(dep, h.env.now())
}
