package workflow

import (
	"context"
	"sort"

	"bitbucket.org/mmdatafocus/retail_backend/inventory"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"gorm.io/gorm"
)

// stockPlan holds the lot snapshots of every item a unit of work touches.
// Lot operations only replace snapshots in memory; nothing is written until
// save, so a failed operation leaves the database as it was.
type stockPlan struct {
	items  map[int]*models.Item
	before map[int]inventory.LotSet
	after  map[int]inventory.LotSet
}

func loadStockPlan(ctx context.Context, tx *gorm.DB, companyId int, itemIds []int) (*stockPlan, error) {
	items, err := models.GetItemsByIds(ctx, tx, companyId, itemIds)
	if err != nil {
		return nil, err
	}
	p := &stockPlan{
		items:  items,
		before: make(map[int]inventory.LotSet, len(items)),
		after:  make(map[int]inventory.LotSet, len(items)),
	}
	for id, item := range items {
		set, err := models.LoadLotSet(ctx, tx, item)
		if err != nil {
			return nil, err
		}
		p.before[id] = set
		p.after[id] = set
	}
	return p, nil
}

func (p *stockPlan) item(id int) *models.Item {
	return p.items[id]
}

func (p *stockPlan) lots(id int) inventory.LotSet {
	return p.after[id]
}

func (p *stockPlan) set(id int, s inventory.LotSet) {
	p.after[id] = s
}

// save writes the lot diff of every item and re-derives its cached stock and
// average cost from the final snapshot.
func (p *stockPlan) save(ctx context.Context, tx *gorm.DB) error {
	ids := make([]int, 0, len(p.items))
	for id := range p.items {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		item := p.items[id]
		after := p.after[id]
		diff := inventory.Diff(p.before[id], after)
		if diff.Empty() && item.Stock.Equal(after.Total()) {
			continue
		}
		if err := models.SaveLotDiff(ctx, tx, item, diff); err != nil {
			return err
		}
		if err := models.SaveItemStock(ctx, tx, item, after.Total(), after.AverageCost()); err != nil {
			return err
		}
		p.before[id] = after
	}
	return nil
}
