package trip

import (
	"errors"
	"slices"
	"strings"

	"github.com/maruel/ksid"
)

// FlightsView edits the "flights" document.
type FlightsView struct {
	doc[FlightList]
}

// OpenFlights binds the flight list.
func OpenFlights(env *Env) *FlightsView {
	return &FlightsView{bind(env, KindFlights, FlightList{})}
}

// Tab implements View.
func (v *FlightsView) Tab() Tab { return TabFlights }

// Flights returns the current list.
func (v *FlightsView) Flights() FlightList {
	return v.b.Value()
}

// Add appends a flight and returns its new id.
func (v *FlightsView) Add(f Flight) (ksid.ID, error) {
	f.Airline = strings.TrimSpace(f.Airline)
	if f.Airline == "" {
		return 0, errors.New("airline is required")
	}
	if err := validateDate(f.DepartureDate); err != nil {
		return 0, err
	}
	if err := validateDate(f.ArrivalDate); err != nil {
		return 0, err
	}
	f.ID = ksid.NewID()
	f.Passengers = nil
	f.CreatedAt = v.env.now()
	v.update(func(l FlightList) (FlightList, bool) {
		return append(slices.Clone(l), f), true
	})
	return f.ID, nil
}

// ToggleOnboard adds or removes name from the flight's passengers.
func (v *FlightsView) ToggleOnboard(id ksid.ID, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	v.update(func(l FlightList) (FlightList, bool) {
		i := findByID(l, id, flightID)
		if i < 0 {
			return l, false
		}
		next := slices.Clone(l)
		next[i].Passengers = next[i].Passengers.Toggled(name)
		return next, true
	})
}

// Delete removes the flight.
func (v *FlightsView) Delete(id ksid.ID) {
	v.update(func(l FlightList) (FlightList, bool) {
		i := findByID(l, id, flightID)
		if i < 0 {
			return l, false
		}
		return slices.Delete(slices.Clone(l), i, i+1), true
	})
}

func flightID(f *Flight) ksid.ID { return f.ID }
