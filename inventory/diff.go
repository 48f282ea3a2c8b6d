package inventory

// LotDiff is what has to be written back after a set of lot operations.
type LotDiff struct {
	Created []Lot
	Updated []Lot
	Deleted []Lot
}

func (d LotDiff) Empty() bool {
	return len(d.Created) == 0 && len(d.Updated) == 0 && len(d.Deleted) == 0
}

// Diff compares two snapshots of the same item by lot id.
func Diff(before, after LotSet) LotDiff {
	var d LotDiff
	old := make(map[string]Lot, len(before.lots))
	for _, l := range before.lots {
		old[l.LotId] = l
	}
	seen := make(map[string]bool, len(after.lots))
	for _, l := range after.lots {
		seen[l.LotId] = true
		prev, ok := old[l.LotId]
		if !ok {
			d.Created = append(d.Created, l)
			continue
		}
		if lotChanged(prev, l) {
			d.Updated = append(d.Updated, l)
		}
	}
	for _, l := range before.lots {
		if !seen[l.LotId] {
			d.Deleted = append(d.Deleted, l)
		}
	}
	return d
}

func lotChanged(a, b Lot) bool {
	if !a.Quantity.Equal(b.Quantity) || !a.PuPrice.Equal(b.PuPrice) || !a.Price.Equal(b.Price) {
		return true
	}
	if !a.Bonus.Equal(b.Bonus) || !a.Margin.Equal(b.Margin) {
		return true
	}
	if a.Batch != b.Batch || a.Currency != b.Currency || !a.Date.Equal(b.Date) {
		return true
	}
	switch {
	case a.Expiry == nil && b.Expiry == nil:
		return false
	case a.Expiry == nil || b.Expiry == nil:
		return true
	default:
		return !a.Expiry.Equal(*b.Expiry)
	}
}
