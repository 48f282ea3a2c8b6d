package inventory

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"github.com/shopspring/decimal"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func day(n int) time.Time {
	return time.Date(2024, time.January, n, 0, 0, 0, 0, time.UTC)
}

func threeLots() LotSet {
	return NewLotSet("Paracetamol", []Lot{
		{LotId: "c", Batch: "B3", Date: day(3), Seq: 3, Quantity: d("10"), PuPrice: d("12")},
		{LotId: "a", Batch: "B1", Date: day(1), Seq: 1, Quantity: d("5"), PuPrice: d("10")},
		{LotId: "b", Batch: "B2", Date: day(2), Seq: 2, Quantity: d("8"), PuPrice: d("11")},
	})
}

func TestNewLotSetOrdersByDateAndDropsEmptyLots(t *testing.T) {
	s := NewLotSet("x", []Lot{
		{LotId: "late", Date: day(5), Quantity: d("1")},
		{LotId: "empty", Date: day(1), Quantity: d("0")},
		{LotId: "early-2", Date: day(2), Seq: 2, Quantity: d("1")},
		{LotId: "early-1", Date: day(2), Seq: 1, Quantity: d("1")},
	})
	got := s.Lots()
	want := []string{"early-1", "early-2", "late"}
	if len(got) != len(want) {
		t.Fatalf("expected %d lots, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].LotId != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].LotId)
		}
	}
}

func TestConsumeFIFOTakesOldestLotsFirst(t *testing.T) {
	s := threeLots()
	next, taken, err := s.ConsumeFIFO(d("9"))
	if err != nil {
		t.Fatalf("ConsumeFIFO: %v", err)
	}
	if len(taken) != 2 {
		t.Fatalf("expected 2 consumptions, got %d", len(taken))
	}
	if taken[0].LotId != "a" || !taken[0].Quantity.Equal(d("5")) {
		t.Fatalf("first consumption should drain lot a, got %+v", taken[0])
	}
	if taken[1].LotId != "b" || !taken[1].Quantity.Equal(d("4")) {
		t.Fatalf("second consumption should take 4 from lot b, got %+v", taken[1])
	}
	if _, ok := next.Find("a"); ok {
		t.Fatalf("exhausted lot a should be pruned")
	}
	if b, _ := next.Find("b"); !b.Quantity.Equal(d("4")) {
		t.Fatalf("lot b should hold 4, got %s", b.Quantity)
	}
	// receiver is untouched
	if !s.Total().Equal(d("23")) {
		t.Fatalf("original snapshot changed: total %s", s.Total())
	}
}

func TestStockIsConservedAcrossOperations(t *testing.T) {
	s := threeLots()
	start := s.Total()

	s, err := s.AddLot(Lot{Batch: "B4", Date: day(4), Quantity: d("7"), PuPrice: d("13")})
	if err != nil {
		t.Fatalf("AddLot: %v", err)
	}
	s, _, err = s.ConsumeFIFO(d("6"))
	if err != nil {
		t.Fatalf("ConsumeFIFO: %v", err)
	}
	s, _, err = s.ConsumeBatch("B3", "", d("2"))
	if err != nil {
		t.Fatalf("ConsumeBatch: %v", err)
	}
	s, err = s.ReverseLot(Reversal{LotId: "a", Batch: "B1", Quantity: d("1"), Template: Lot{Date: day(1), PuPrice: d("10")}})
	if err != nil {
		t.Fatalf("ReverseLot: %v", err)
	}

	want := start.Add(d("7")).Sub(d("6")).Sub(d("2")).Add(d("1"))
	if !s.Total().Equal(want) {
		t.Fatalf("expected total %s, got %s", want, s.Total())
	}
	for _, l := range s.Lots() {
		if !l.Quantity.IsPositive() {
			t.Fatalf("lot %s left with non-positive quantity %s", l.LotId, l.Quantity)
		}
	}
}

func TestConsumeFIFOInsufficientLeavesSnapshotUnchanged(t *testing.T) {
	s := threeLots()
	next, taken, err := s.ConsumeFIFO(d("30"))
	if !apperrors.HasCode(err, apperrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	appErr, _ := apperrors.AsAppError(err)
	if appErr.Details["available"] != "23" || appErr.Details["required"] != "30" {
		t.Fatalf("unexpected details %v", appErr.Details)
	}
	if taken != nil {
		t.Fatalf("nothing should be consumed")
	}
	if !next.Total().Equal(d("23")) || next.Len() != 3 {
		t.Fatalf("snapshot should be unchanged, total %s lots %d", next.Total(), next.Len())
	}
}

func TestConsumeBatch(t *testing.T) {
	s := threeLots()

	if _, _, err := s.ConsumeBatch("NOPE", "", d("1")); !apperrors.HasCode(err, apperrors.CodeBatchNotFound) {
		t.Fatalf("expected batch not found, got %v", err)
	}
	if _, _, err := s.ConsumeBatch("B1", "", d("6")); !apperrors.HasCode(err, apperrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	next, taken, err := s.ConsumeBatch("ignored", "c", d("4"))
	if err != nil {
		t.Fatalf("ConsumeBatch by lot id: %v", err)
	}
	if len(taken) != 1 || taken[0].LotId != "c" {
		t.Fatalf("expected lot c, got %+v", taken)
	}
	if c, _ := next.Find("c"); !c.Quantity.Equal(d("6")) {
		t.Fatalf("lot c should hold 6, got %s", c.Quantity)
	}
}

func TestReverseLotRecreatesPrunedLot(t *testing.T) {
	s := threeLots()
	s, _, err := s.ConsumeBatch("B1", "a", d("5"))
	if err != nil {
		t.Fatalf("ConsumeBatch: %v", err)
	}
	if _, ok := s.Find("a"); ok {
		t.Fatalf("lot a should be pruned")
	}
	s, err = s.ReverseLot(Reversal{
		LotId:    "a",
		Batch:    "B1",
		Quantity: d("2"),
		Template: Lot{Date: day(1), PuPrice: d("10"), Price: d("15")},
	})
	if err != nil {
		t.Fatalf("ReverseLot: %v", err)
	}
	a, ok := s.Find("a")
	if !ok {
		t.Fatalf("lot a should be recreated")
	}
	if !a.Quantity.Equal(d("2")) || a.Batch != "B1" || !a.PuPrice.Equal(d("10")) {
		t.Fatalf("unexpected recreated lot %+v", a)
	}
	if s.Lots()[0].LotId != "a" {
		t.Fatalf("recreated lot keeps its original date and sorts first")
	}
}

func TestRemoveFromLotReportsStockInUse(t *testing.T) {
	s := threeLots()
	if _, err := s.RemoveFromLot("b", "B2", d("9")); !apperrors.HasCode(err, apperrors.CodeStockInUse) {
		t.Fatalf("expected stock in use, got %v", err)
	}
	if _, err := s.RemoveFromLot("gone", "B9", d("1")); !apperrors.HasCode(err, apperrors.CodeStockInUse) {
		t.Fatalf("expected stock in use for a missing lot, got %v", err)
	}
	next, err := s.RemoveFromLot("b", "B2", d("8"))
	if err != nil {
		t.Fatalf("RemoveFromLot: %v", err)
	}
	if _, ok := next.Find("b"); ok {
		t.Fatalf("emptied lot should be pruned")
	}
}

func TestDiff(t *testing.T) {
	before := threeLots()
	after, _, err := before.ConsumeFIFO(d("6"))
	if err != nil {
		t.Fatalf("ConsumeFIFO: %v", err)
	}
	after, err = after.AddLot(Lot{LotId: "new", Date: day(9), Quantity: d("1")})
	if err != nil {
		t.Fatalf("AddLot: %v", err)
	}
	diff := Diff(before, after)
	if len(diff.Deleted) != 1 || diff.Deleted[0].LotId != "a" {
		t.Fatalf("expected lot a deleted, got %+v", diff.Deleted)
	}
	if len(diff.Updated) != 1 || diff.Updated[0].LotId != "b" {
		t.Fatalf("expected lot b updated, got %+v", diff.Updated)
	}
	if len(diff.Created) != 1 || diff.Created[0].LotId != "new" {
		t.Fatalf("expected lot new created, got %+v", diff.Created)
	}
	if !Diff(before, before).Empty() {
		t.Fatalf("diff of identical snapshots should be empty")
	}
}

func TestAverageCost(t *testing.T) {
	// (5*10 + 8*11 + 10*12) / 23 = 258/23
	got := threeLots().AverageCost()
	if !got.Equal(d("11.2174")) {
		t.Fatalf("expected 11.2174, got %s", got)
	}
	if !NewLotSet("empty", nil).AverageCost().IsZero() {
		t.Fatalf("average of nothing should be zero")
	}
}

func TestReDateLotMovesItInFIFOOrder(t *testing.T) {
	s := threeLots()
	next := s.ReDateLot("a", day(4))
	order := []string{"b", "c", "a"}
	for i, id := range order {
		if next.Lots()[i].LotId != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, next.Lots()[i].LotId)
		}
	}
	if s.Lots()[0].LotId != "a" {
		t.Fatalf("original set must not change")
	}
	diff := Diff(s, next)
	if len(diff.Updated) != 1 || diff.Updated[0].LotId != "a" || !diff.Updated[0].Date.Equal(day(4)) {
		t.Fatalf("expected lot a to be updated with its new date, got %+v", diff.Updated)
	}
	if same := s.ReDateLot("a", day(1)); !Diff(s, same).Empty() {
		t.Fatalf("re-dating to the same day should change nothing")
	}
}
