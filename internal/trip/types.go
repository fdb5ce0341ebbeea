// Package trip holds the shared documents of a group trip and the headless
// view models that edit them.
//
// Every document is read and written whole through a binding.Binding.
// Operations compute the next document from the current one and hand it to
// Update; nothing changes locally until the store echoes the write.
package trip

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/maruel/ksid"
)

// NameSet is a set of trekker names, stored as a JSON object mapping each
// member to true.
type NameSet map[string]bool

// Has reports whether name is a member.
func (s NameSet) Has(name string) bool {
	return s[name]
}

// Len returns the number of members.
func (s NameSet) Len() int {
	n := 0
	for _, v := range s {
		if v {
			n++
		}
	}
	return n
}

// Names returns the members in sorted order.
func (s NameSet) Names() []string {
	out := make([]string, 0, len(s))
	for k, v := range s {
		if v {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

// Toggled returns a copy of s with name added or removed. s is not modified.
func (s NameSet) Toggled(name string) NameSet {
	out := maps.Clone(s)
	if out == nil {
		out = NameSet{}
	}
	if out[name] {
		delete(out, name)
	} else {
		out[name] = true
	}
	return out
}

// Trekker is one member of the trip roster.
type Trekker struct {
	Name       string `json:"name" jsonschema:"minLength=1"`
	Avatar     string `json:"avatar,omitempty"`
	Experience string `json:"experience,omitempty"`
	Reason     string `json:"reason,omitempty"`
	// Congratulations maps who cheered to when they did.
	Congratulations map[string]time.Time `json:"congratulations,omitempty"`
}

// Roster is the "trekkers" document.
type Roster []Trekker

// Validate implements binding.Validator.
func (r Roster) Validate() error {
	seen := make(map[string]bool, len(r))
	for i := range r {
		name := strings.TrimSpace(r[i].Name)
		if name == "" {
			return fmt.Errorf("trekker %d: name is required", i)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return fmt.Errorf("trekker %q: duplicate name", r[i].Name)
		}
		seen[key] = true
	}
	return nil
}

// Task is a shared to-do item. Each trekker completes it independently.
type Task struct {
	ID          ksid.ID   `json:"id"`
	Title       string    `json:"title" jsonschema:"minLength=1"`
	Description string    `json:"description,omitempty"`
	AssignedTo  string    `json:"assignedTo,omitempty"`
	DueDate     string    `json:"dueDate,omitempty" jsonschema:"format=date"`
	CompletedBy NameSet   `json:"completedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}

// TaskList is the "tasks" document.
type TaskList []Task

// Validate implements binding.Validator.
func (l TaskList) Validate() error {
	return validateRecords(l, func(t *Task) (ksid.ID, error) {
		if t.Title == "" {
			return t.ID, errors.New("title is required")
		}
		return t.ID, validateDate(t.DueDate)
	})
}

// Flight is one booked leg and who is on it.
type Flight struct {
	ID            ksid.ID   `json:"id"`
	Airline       string    `json:"airline" jsonschema:"minLength=1"`
	FlightNumber  string    `json:"flightNumber,omitempty"`
	Departure     string    `json:"departure,omitempty"`
	Arrival       string    `json:"arrival,omitempty"`
	DepartureDate string    `json:"departureDate,omitempty" jsonschema:"format=date"`
	DepartureTime string    `json:"departureTime,omitempty"`
	ArrivalDate   string    `json:"arrivalDate,omitempty" jsonschema:"format=date"`
	ArrivalTime   string    `json:"arrivalTime,omitempty"`
	Passengers    NameSet   `json:"passengers,omitempty"`
	CreatedAt     time.Time `json:"createdAt,omitzero"`
}

// FlightList is the "flights" document.
type FlightList []Flight

// Validate implements binding.Validator.
func (l FlightList) Validate() error {
	return validateRecords(l, func(f *Flight) (ksid.ID, error) {
		if f.Airline == "" {
			return f.ID, errors.New("airline is required")
		}
		if err := validateDate(f.DepartureDate); err != nil {
			return f.ID, err
		}
		return f.ID, validateDate(f.ArrivalDate)
	})
}

// PricePoint is one observed fare.
type PricePoint struct {
	ID         ksid.ID   `json:"id"`
	Price      float64   `json:"price" jsonschema:"minimum=0"`
	Airline    string    `json:"airline" jsonschema:"minLength=1"`
	Route      string    `json:"route,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	RecordedAt time.Time `json:"recordedAt,omitzero"`
	RecordedBy string    `json:"recordedBy,omitempty"`
}

// PriceHistory is the "flight-prices" document, newest first.
type PriceHistory []PricePoint

// Validate implements binding.Validator.
func (h PriceHistory) Validate() error {
	return validateRecords(h, func(p *PricePoint) (ksid.ID, error) {
		if p.Price < 0 {
			return p.ID, errors.New("price must be non-negative")
		}
		if p.Airline == "" {
			return p.ID, errors.New("airline is required")
		}
		return p.ID, nil
	})
}

// PackingItem is one thing to bring. Each trekker packs it independently.
type PackingItem struct {
	ID        ksid.ID   `json:"id"`
	Name      string    `json:"name" jsonschema:"minLength=1"`
	Category  string    `json:"category,omitempty"`
	Quantity  int       `json:"quantity,omitempty" jsonschema:"minimum=0"`
	PackedBy  NameSet   `json:"packedBy,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// PackingList is the "packing-items" document.
type PackingList []PackingItem

// Validate implements binding.Validator.
func (l PackingList) Validate() error {
	return validateRecords(l, func(p *PackingItem) (ksid.ID, error) {
		if p.Name == "" {
			return p.ID, errors.New("name is required")
		}
		if p.Quantity < 0 {
			return p.ID, errors.New("quantity must be non-negative")
		}
		return p.ID, nil
	})
}

// ChatMessage is one line of the group chat.
type ChatMessage struct {
	ID     ksid.ID   `json:"id"`
	Author string    `json:"author" jsonschema:"minLength=1"`
	Text   string    `json:"text" jsonschema:"minLength=1"`
	SentAt time.Time `json:"sentAt,omitzero"`
}

// ChatLog is the "chat" document, oldest first.
type ChatLog []ChatMessage

// Validate implements binding.Validator.
func (l ChatLog) Validate() error {
	return validateRecords(l, func(m *ChatMessage) (ksid.ID, error) {
		if m.Author == "" {
			return m.ID, errors.New("author is required")
		}
		if m.Text == "" {
			return m.ID, errors.New("text is required")
		}
		return m.ID, nil
	})
}

// Activity is one logged training session.
type Activity struct {
	ID   ksid.ID `json:"id"`
	Type string  `json:"type" jsonschema:"enum=Hike,enum=Run,enum=Gym,enum=Cycling,enum=Swimming,enum=Other"`
	// Duration is in minutes.
	Duration int `json:"duration" jsonschema:"minimum=0"`
	// Distance is in kilometers.
	Distance float64 `json:"distance,omitempty" jsonschema:"minimum=0"`
	// Elevation is the climb in meters.
	Elevation int    `json:"elevation,omitempty" jsonschema:"minimum=0"`
	Notes     string `json:"notes,omitempty"`
	Date      string `json:"date,omitempty" jsonschema:"format=date"`
}

// ActivityTypes lists the accepted Activity.Type values.
var ActivityTypes = []string{"Hike", "Run", "Gym", "Cycling", "Swimming", "Other"}

// TrainingPlan is one trekker's goal and activity log.
type TrainingPlan struct {
	Goal       string     `json:"goal,omitempty"`
	Activities []Activity `json:"activities,omitempty"`
}

// Training is the "training" document, keyed by trekker name.
type Training map[string]TrainingPlan

// Validate implements binding.Validator.
func (t Training) Validate() error {
	for name, plan := range t {
		if name == "" {
			return errors.New("training plan without a trekker name")
		}
		err := validateRecords(plan.Activities, func(a *Activity) (ksid.ID, error) {
			if !slices.Contains(ActivityTypes, a.Type) {
				return a.ID, fmt.Errorf("unknown activity type %q", a.Type)
			}
			if a.Duration < 0 || a.Distance < 0 || a.Elevation < 0 {
				return a.ID, errors.New("negative measurement")
			}
			return a.ID, validateDate(a.Date)
		})
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// validateRecords checks that every record has a unique non-zero id and
// passes check.
func validateRecords[T any](items []T, check func(*T) (ksid.ID, error)) error {
	seen := make(map[ksid.ID]bool, len(items))
	for i := range items {
		id, err := check(&items[i])
		if id.IsZero() {
			return fmt.Errorf("record %d: id is required", i)
		}
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		if seen[id] {
			return fmt.Errorf("record %s: duplicate id", id)
		}
		seen[id] = true
	}
	return nil
}

// validateDate accepts an empty string or a YYYY-MM-DD date.
func validateDate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	return nil
}
