package trip

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// ErrNoProfile is returned when an operation needs the device's roster
// profile before one was created.
var ErrNoProfile = errors.New("create a roster profile first")

// RosterView edits the "trekkers" document.
type RosterView struct {
	doc[Roster]
}

// OpenRoster binds the roster.
func OpenRoster(env *Env) *RosterView {
	return &RosterView{bind(env, KindRoster, Roster{})}
}

// Tab implements View.
func (v *RosterView) Tab() Tab { return TabTrekkers }

// Trekkers returns the current roster.
func (v *RosterView) Trekkers() Roster {
	return v.b.Value()
}

// Me returns the roster entry selected on this device, if any.
func (v *RosterView) Me() (Trekker, bool) {
	name := v.env.CurrentUser().Value()
	if name == "" {
		return Trekker{}, false
	}
	r := v.b.Value()
	if i := indexOfName(r, name); i >= 0 {
		return r[i], true
	}
	return Trekker{}, false
}

// Join adds t to the roster, or replaces the profile with the same name
// (case-insensitive) while keeping its cheers. The device then acts as t.
func (v *RosterView) Join(t Trekker) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return errors.New("name is required")
	}
	v.update(func(r Roster) (Roster, bool) {
		next := slices.Clone(r)
		if i := indexOfName(next, t.Name); i >= 0 {
			t.Congratulations = next[i].Congratulations
			next[i] = t
		} else {
			t.Congratulations = nil
			next = append(next, t)
		}
		return next, true
	})
	v.env.CurrentUser().Set(t.Name)
	return nil
}

// UpdateProfile replaces the profile of an existing trekker.
func (v *RosterView) UpdateProfile(t Trekker) error {
	if indexOfName(v.b.Value(), t.Name) < 0 {
		return fmt.Errorf("no trekker named %q", t.Name)
	}
	return v.Join(t)
}

// Leave removes name from the roster.
func (v *RosterView) Leave(name string) {
	v.update(func(r Roster) (Roster, bool) {
		i := indexOfName(r, name)
		if i < 0 {
			return r, false
		}
		return slices.Delete(slices.Clone(r), i, i+1), true
	})
}

// ToggleCheer adds or removes the device user's congratulation on name.
func (v *RosterView) ToggleCheer(name string) error {
	me := v.env.CurrentUser().Value()
	if me == "" {
		return ErrNoProfile
	}
	now := v.env.now()
	v.update(func(r Roster) (Roster, bool) {
		i := indexOfName(r, name)
		if i < 0 {
			return r, false
		}
		next := slices.Clone(r)
		c := maps.Clone(next[i].Congratulations)
		if _, ok := c[me]; ok {
			delete(c, me)
		} else {
			if c == nil {
				c = make(map[string]time.Time)
			}
			c[me] = now
		}
		next[i].Congratulations = c
		return next, true
	})
	return nil
}

func indexOfName(r Roster, name string) int {
	return slices.IndexFunc(r, func(t Trekker) bool {
		return strings.EqualFold(t.Name, name)
	})
}
