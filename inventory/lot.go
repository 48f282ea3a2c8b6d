package inventory

import (
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lot is one batch of an item on hand. Quantity is in base units and already
// includes any bonus that came with the purchase.
type Lot struct {
	LotId        string
	Batch        string
	Expiry       *time.Time
	Date         time.Time
	Seq          int
	Quantity     decimal.Decimal
	PuPrice      decimal.Decimal
	Price        decimal.Decimal
	Bonus        decimal.Decimal
	Margin       decimal.Decimal
	Currency     string
	BillId       int
	FiscalYearId int
}

// Consumption is the part of a single lot taken by a consume operation.
type Consumption struct {
	LotId    string
	Batch    string
	Expiry   *time.Time
	LotDate  time.Time
	Quantity decimal.Decimal
	PuPrice  decimal.Decimal
	Price    decimal.Decimal
}

// Reversal puts stock back into the lot it was taken from. Template is used to
// recreate the lot when it has already been pruned.
type Reversal struct {
	LotId    string
	Batch    string
	Quantity decimal.Decimal
	Template Lot
}

// LotSet is an immutable snapshot of the lots of one item, kept in FIFO order.
// Every operation returns a new snapshot and leaves the receiver untouched.
type LotSet struct {
	itemName string
	lots     []Lot
}

func NewLotSet(itemName string, lots []Lot) LotSet {
	s := LotSet{itemName: itemName}
	for _, l := range lots {
		if l.Quantity.IsPositive() {
			s.lots = append(s.lots, l)
		}
	}
	s.sort()
	return s
}

func (s LotSet) ItemName() string {
	return s.itemName
}

// Lots returns a copy of the lots in FIFO order.
func (s LotSet) Lots() []Lot {
	out := make([]Lot, len(s.lots))
	copy(out, s.lots)
	return out
}

func (s LotSet) Len() int {
	return len(s.lots)
}

func (s LotSet) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.lots {
		total = total.Add(l.Quantity)
	}
	return total
}

// AverageCost is the quantity weighted purchase price of the lots on hand.
func (s LotSet) AverageCost() decimal.Decimal {
	return WeightedAverageCost(s.lots)
}

func (s LotSet) Find(lotId string) (Lot, bool) {
	if i := s.indexOf(lotId); i >= 0 {
		return s.lots[i], true
	}
	return Lot{}, false
}

// AddLot appends a new lot. A missing LotId is generated.
func (s LotSet) AddLot(lot Lot) (LotSet, error) {
	if !lot.Quantity.IsPositive() {
		return s, apperrors.ErrValidationf("quantity for %s must be greater than zero", s.itemName)
	}
	if lot.LotId == "" {
		lot.LotId = uuid.NewString()
	} else if s.indexOf(lot.LotId) >= 0 {
		return s, apperrors.ErrValidationf("lot %s already exists for %s", lot.LotId, s.itemName)
	}
	if lot.Seq == 0 {
		lot.Seq = s.nextSeq()
	}
	next := s.clone()
	next.lots = append(next.lots, lot)
	next.sort()
	return next, nil
}

// ConsumeFIFO takes quantity from the oldest lots first.
func (s LotSet) ConsumeFIFO(quantity decimal.Decimal) (LotSet, []Consumption, error) {
	if !quantity.IsPositive() {
		return s, nil, apperrors.ErrValidationf("quantity for %s must be greater than zero", s.itemName)
	}
	available := s.Total()
	if available.LessThan(quantity) {
		return s, nil, apperrors.ErrInsufficientStock(s.itemName, "", available, quantity)
	}
	idx := make([]int, len(s.lots))
	for i := range s.lots {
		idx[i] = i
	}
	return s.consume(idx, quantity)
}

// ConsumeBatch takes quantity from one specific lot. The lot is matched by
// lotId when given, otherwise every lot carrying the batch number is drained
// oldest first.
func (s LotSet) ConsumeBatch(batch, lotId string, quantity decimal.Decimal) (LotSet, []Consumption, error) {
	if !quantity.IsPositive() {
		return s, nil, apperrors.ErrValidationf("quantity for %s must be greater than zero", s.itemName)
	}
	var idx []int
	if lotId != "" {
		if i := s.indexOf(lotId); i >= 0 {
			idx = []int{i}
		}
	} else if batch != "" {
		for i, l := range s.lots {
			if l.Batch == batch {
				idx = append(idx, i)
			}
		}
	}
	if len(idx) == 0 {
		ref := batch
		if ref == "" {
			ref = lotId
		}
		return s, nil, apperrors.ErrBatchNotFound(s.itemName, ref)
	}
	available := decimal.Zero
	for _, i := range idx {
		available = available.Add(s.lots[i].Quantity)
	}
	if available.LessThan(quantity) {
		return s, nil, apperrors.ErrInsufficientStock(s.itemName, s.lots[idx[0]].Batch, available, quantity)
	}
	return s.consume(idx, quantity)
}

// ReverseLot adds back stock that a bill took out. When the lot was pruned in
// the meantime it is recreated from the template.
func (s LotSet) ReverseLot(r Reversal) (LotSet, error) {
	if !r.Quantity.IsPositive() {
		return s, apperrors.ErrValidationf("quantity for %s must be greater than zero", s.itemName)
	}
	i := -1
	if r.LotId != "" {
		i = s.indexOf(r.LotId)
	} else if r.Batch != "" {
		for j, l := range s.lots {
			if l.Batch == r.Batch {
				i = j
				break
			}
		}
	}
	if i >= 0 {
		next := s.clone()
		next.lots[i].Quantity = next.lots[i].Quantity.Add(r.Quantity)
		return next, nil
	}
	lot := r.Template
	lot.LotId = r.LotId
	if lot.Batch == "" {
		lot.Batch = r.Batch
	}
	lot.Quantity = r.Quantity
	lot.Seq = 0
	return s.AddLot(lot)
}

// RemoveFromLot takes back stock that a bill previously put into a lot. It
// fails with StockInUse when the lot no longer holds that much.
func (s LotSet) RemoveFromLot(lotId, batch string, quantity decimal.Decimal) (LotSet, error) {
	if !quantity.IsPositive() {
		return s, apperrors.ErrValidationf("quantity for %s must be greater than zero", s.itemName)
	}
	i := s.indexOf(lotId)
	if i < 0 {
		return s, apperrors.ErrStockInUse(s.itemName, batch, decimal.Zero, quantity)
	}
	if s.lots[i].Quantity.LessThan(quantity) {
		return s, apperrors.ErrStockInUse(s.itemName, s.lots[i].Batch, s.lots[i].Quantity, quantity)
	}
	next := s.clone()
	next.lots[i].Quantity = next.lots[i].Quantity.Sub(quantity)
	next.prune()
	return next, nil
}

// ReviseLot replaces the descriptive fields of a lot (prices, batch, expiry)
// without touching its quantity, date or position.
func (s LotSet) ReviseLot(lotId string, template Lot) LotSet {
	i := s.indexOf(lotId)
	if i < 0 {
		return s
	}
	next := s.clone()
	l := &next.lots[i]
	l.Batch = template.Batch
	l.Expiry = template.Expiry
	l.PuPrice = template.PuPrice
	l.Price = template.Price
	l.Bonus = template.Bonus
	l.Margin = template.Margin
	if template.Currency != "" {
		l.Currency = template.Currency
	}
	return next
}

// ReDateLot moves a lot to a new receipt date and back into FIFO order.
func (s LotSet) ReDateLot(lotId string, date time.Time) LotSet {
	i := s.indexOf(lotId)
	if i < 0 || s.lots[i].Date.Equal(date) {
		return s
	}
	next := s.clone()
	next.lots[i].Date = date
	next.sort()
	return next
}

func (s LotSet) consume(idx []int, quantity decimal.Decimal) (LotSet, []Consumption, error) {
	next := s.clone()
	remaining := quantity
	var taken []Consumption
	for _, i := range idx {
		if !remaining.IsPositive() {
			break
		}
		l := &next.lots[i]
		take := decimal.Min(l.Quantity, remaining)
		if !take.IsPositive() {
			continue
		}
		l.Quantity = l.Quantity.Sub(take)
		remaining = remaining.Sub(take)
		taken = append(taken, Consumption{
			LotId:    l.LotId,
			Batch:    l.Batch,
			Expiry:   l.Expiry,
			LotDate:  l.Date,
			Quantity: take,
			PuPrice:  l.PuPrice,
			Price:    l.Price,
		})
	}
	next.prune()
	return next, taken, nil
}

func (s LotSet) indexOf(lotId string) int {
	if lotId == "" {
		return -1
	}
	for i, l := range s.lots {
		if l.LotId == lotId {
			return i
		}
	}
	return -1
}

func (s LotSet) nextSeq() int {
	max := 0
	for _, l := range s.lots {
		if l.Seq > max {
			max = l.Seq
		}
	}
	return max + 1
}

func (s LotSet) clone() LotSet {
	return LotSet{itemName: s.itemName, lots: s.Lots()}
}

func (s *LotSet) prune() {
	kept := s.lots[:0]
	for _, l := range s.lots {
		if l.Quantity.IsPositive() {
			kept = append(kept, l)
		}
	}
	s.lots = kept
}

// FIFO order: lot date, then insertion sequence, then lot id.
func (s *LotSet) sort() {
	sort.SliceStable(s.lots, func(i, j int) bool {
		a, b := s.lots[i], s.lots[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.LotId < b.LotId
	})
}
