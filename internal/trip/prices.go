package trip

import (
	"errors"
	"slices"
	"strings"

	"github.com/maruel/ksid"
)

// DefaultRoute is the route recorded when none is given.
const DefaultRoute = "BNE → HBA"

// PricesView edits the "flight-prices" document.
type PricesView struct {
	doc[PriceHistory]
}

// OpenPrices binds the price history.
func OpenPrices(env *Env) *PricesView {
	return &PricesView{bind(env, KindPrices, PriceHistory{})}
}

// Tab implements View.
func (v *PricesView) Tab() Tab { return TabPrices }

// History returns every recorded price, newest first.
func (v *PricesView) History() PriceHistory {
	return v.b.Value()
}

// Record stores a new price at the head of the history.
func (v *PricesView) Record(p PricePoint) (ksid.ID, error) {
	p.Airline = strings.TrimSpace(p.Airline)
	if p.Airline == "" {
		return 0, errors.New("airline is required")
	}
	if p.Price <= 0 {
		return 0, errors.New("price must be positive")
	}
	if p.Route == "" {
		p.Route = DefaultRoute
	}
	p.ID = ksid.NewID()
	p.RecordedAt = v.env.now()
	if p.RecordedBy == "" {
		p.RecordedBy = v.env.Username().Value()
	}
	v.update(func(h PriceHistory) (PriceHistory, bool) {
		return append(PriceHistory{p}, h...), true
	})
	return p.ID, nil
}

// Delete removes a recorded price.
func (v *PricesView) Delete(id ksid.ID) {
	v.update(func(h PriceHistory) (PriceHistory, bool) {
		i := findByID(h, id, priceID)
		if i < 0 {
			return h, false
		}
		return slices.Delete(slices.Clone(h), i, i+1), true
	})
}

// Lowest returns the cheapest recorded price.
func (v *PricesView) Lowest() (PricePoint, bool) {
	h := v.b.Value()
	if len(h) == 0 {
		return PricePoint{}, false
	}
	return slices.MinFunc(h, func(a, b PricePoint) int {
		switch {
		case a.Price < b.Price:
			return -1
		case a.Price > b.Price:
			return 1
		default:
			return 0
		}
	}), true
}

// Average returns the mean recorded price.
func (v *PricesView) Average() (float64, bool) {
	h := v.b.Value()
	if len(h) == 0 {
		return 0, false
	}
	sum := 0.
	for i := range h {
		sum += h[i].Price
	}
	return sum / float64(len(h)), true
}

// Trend returns how much the latest price moved from the one recorded
// before it. ok is false with fewer than two prices.
func (v *PricesView) Trend() (delta float64, ok bool) {
	h := v.b.Value()
	if len(h) < 2 {
		return 0, false
	}
	latest, previous := h[0], h[1]
	// The history is kept newest first but a concurrent writer may have
	// inserted out of order.
	for i := range h {
		if h[i].RecordedAt.After(latest.RecordedAt) {
			latest = h[i]
		}
	}
	found := false
	for i := range h {
		if h[i].ID == latest.ID || h[i].RecordedAt.After(latest.RecordedAt) {
			continue
		}
		if !found || h[i].RecordedAt.After(previous.RecordedAt) {
			previous = h[i]
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return latest.Price - previous.Price, true
}

func priceID(p *PricePoint) ksid.ID { return p.ID }
