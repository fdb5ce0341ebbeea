package trip

import (
	"errors"
	"slices"
	"strings"

	"github.com/maruel/ksid"
)

// PackingCategories lists the suggested item categories. Items may use any
// other category.
var PackingCategories = []string{"Clothing", "Gear", "Food & Water", "First Aid", "Navigation", "Personal", "Other"}

// PackingView edits the "packing-items" document.
type PackingView struct {
	doc[PackingList]
}

// OpenPacking binds the packing list.
func OpenPacking(env *Env) *PackingView {
	return &PackingView{bind(env, KindPacking, PackingList{})}
}

// Tab implements View.
func (v *PackingView) Tab() Tab { return TabPacking }

// Items returns the current list.
func (v *PackingView) Items() PackingList {
	return v.b.Value()
}

// Add appends an item. An empty category becomes "Other" and a zero
// quantity becomes 1.
func (v *PackingView) Add(p PackingItem) (ksid.ID, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return 0, errors.New("name is required")
	}
	if p.Quantity < 0 {
		return 0, errors.New("quantity must be non-negative")
	}
	if p.Quantity == 0 {
		p.Quantity = 1
	}
	if p.Category == "" {
		p.Category = "Other"
	}
	p.ID = ksid.NewID()
	p.PackedBy = nil
	p.CreatedAt = v.env.now()
	v.update(func(l PackingList) (PackingList, bool) {
		return append(slices.Clone(l), p), true
	})
	return p.ID, nil
}

// TogglePacked marks the item packed or unpacked for name.
func (v *PackingView) TogglePacked(id ksid.ID, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	v.update(func(l PackingList) (PackingList, bool) {
		i := findByID(l, id, packingID)
		if i < 0 {
			return l, false
		}
		next := slices.Clone(l)
		next[i].PackedBy = next[i].PackedBy.Toggled(name)
		return next, true
	})
}

// Delete removes the item.
func (v *PackingView) Delete(id ksid.ID) {
	v.update(func(l PackingList) (PackingList, bool) {
		i := findByID(l, id, packingID)
		if i < 0 {
			return l, false
		}
		return slices.Delete(slices.Clone(l), i, i+1), true
	})
}

// Progress returns how many items name has packed out of the total.
func (v *PackingView) Progress(name string) (packed, total int) {
	l := v.b.Value()
	for i := range l {
		if l[i].PackedBy.Has(name) {
			packed++
		}
	}
	return packed, len(l)
}

// ByCategory groups items by category, keeping list order within a group.
func (v *PackingView) ByCategory() map[string]PackingList {
	out := make(map[string]PackingList)
	for _, p := range v.b.Value() {
		c := p.Category
		if c == "" {
			c = "Other"
		}
		out[c] = append(out[c], p)
	}
	return out
}

func packingID(p *PackingItem) ksid.ID { return p.ID }
