package trip

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/maruel/ksid"
)

// TrainingView edits the device user's plan inside the "training" document.
type TrainingView struct {
	doc[Training]
}

// OpenTraining binds the training document.
func OpenTraining(env *Env) *TrainingView {
	return &TrainingView{bind(env, KindTraining, Training{})}
}

// Tab implements View.
func (v *TrainingView) Tab() Tab { return TabTraining }

// All returns every trekker's plan.
func (v *TrainingView) All() Training {
	return v.b.Value()
}

// Plan returns name's plan, empty when none exists.
func (v *TrainingView) Plan(name string) TrainingPlan {
	return v.b.Value()[name]
}

// Mine returns the device user's plan.
func (v *TrainingView) Mine() (TrainingPlan, error) {
	me := v.env.Username().Value()
	if me == "" {
		return TrainingPlan{}, ErrNoUsername
	}
	return v.Plan(me), nil
}

// SetGoal replaces the device user's goal.
func (v *TrainingView) SetGoal(goal string) error {
	return v.edit(func(p *TrainingPlan) bool {
		p.Goal = goal
		return true
	})
}

// LogActivity appends an activity to the device user's log. An empty date
// defaults to today.
func (v *TrainingView) LogActivity(a Activity) (ksid.ID, error) {
	if a.Type == "" {
		a.Type = "Hike"
	}
	if !slices.Contains(ActivityTypes, a.Type) {
		return 0, fmt.Errorf("unknown activity type %q", a.Type)
	}
	if a.Duration <= 0 {
		return 0, errors.New("duration is required")
	}
	if a.Distance < 0 || a.Elevation < 0 {
		return 0, errors.New("negative measurement")
	}
	if a.Date == "" {
		a.Date = v.env.now().Format(time.DateOnly)
	}
	if err := validateDate(a.Date); err != nil {
		return 0, err
	}
	a.ID = ksid.NewID()
	err := v.edit(func(p *TrainingPlan) bool {
		p.Activities = append(slices.Clone(p.Activities), a)
		return true
	})
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

// DeleteActivity removes an activity from the device user's log.
func (v *TrainingView) DeleteActivity(id ksid.ID) error {
	return v.edit(func(p *TrainingPlan) bool {
		i := findByID(p.Activities, id, activityID)
		if i < 0 {
			return false
		}
		p.Activities = slices.Delete(slices.Clone(p.Activities), i, i+1)
		return true
	})
}

// Totals summarizes a plan's activity log.
type Totals struct {
	Activities int
	Minutes    int
	// DistanceKm is the summed distance in kilometers.
	DistanceKm float64
	// ElevationM is the summed climb in meters.
	ElevationM int
}

// Duration returns Minutes as a time.Duration.
func (t Totals) Duration() time.Duration {
	return time.Duration(t.Minutes) * time.Minute
}

// Totals sums name's activity log.
func (v *TrainingView) Totals(name string) Totals {
	var t Totals
	for _, a := range v.Plan(name).Activities {
		t.Activities++
		t.Minutes += a.Duration
		t.DistanceKm += a.Distance
		t.ElevationM += a.Elevation
	}
	return t
}

func (v *TrainingView) edit(fn func(*TrainingPlan) bool) error {
	me := v.env.Username().Value()
	if me == "" {
		return ErrNoUsername
	}
	v.update(func(t Training) (Training, bool) {
		p := t[me]
		if !fn(&p) {
			return t, false
		}
		next := maps.Clone(t)
		if next == nil {
			next = Training{}
		}
		next[me] = p
		return next, true
	})
	return nil
}

func activityID(a *Activity) ksid.ID { return a.ID }
