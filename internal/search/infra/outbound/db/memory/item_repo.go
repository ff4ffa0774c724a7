package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davicafu/pujalab/internal/search/domain"
	sharedEvents "github.com/davicafu/pujalab/internal/shared/domain/events"
)

// ItemRepo es la proyección en memoria. Se usa cuando no hay MongoDB configurado y en tests.
type ItemRepo struct {
	items map[uuid.UUID]domain.Item
	mu    sync.RWMutex
}

var _ domain.ItemRepository = (*ItemRepo)(nil)

func NewItemRepo() *ItemRepo {
	return &ItemRepo{items: make(map[uuid.UUID]domain.Item)}
}

func (r *ItemRepo) InsertIfAbsent(ctx context.Context, item domain.Item) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; ok {
		return false, nil
	}
	r.items[item.ID] = item
	return true, nil
}

func (r *ItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return &item, nil
}

func (r *ItemRepo) ApplyUpdate(ctx context.Context, upd sharedEvents.AuctionUpdated, stamp domain.EventStamp) error {
	return r.modify(upd.ID, func(item *domain.Item) bool {
		item.ApplyUpdate(upd)
		item.Stamp(stamp)
		return true
	})
}

func (r *ItemRepo) RaiseCurrentHighBid(ctx context.Context, id uuid.UUID, amount int, stamp domain.EventStamp) (bool, error) {
	changed := false
	err := r.modify(id, func(item *domain.Item) bool {
		if changed = item.RaiseHighBid(amount); changed {
			item.Stamp(stamp)
		}
		return changed
	})
	return changed, err
}

func (r *ItemRepo) MarkFinished(ctx context.Context, evt sharedEvents.AuctionFinished, stamp domain.EventStamp) (bool, error) {
	changed := false
	err := r.modify(evt.AuctionID, func(item *domain.Item) bool {
		if changed = item.Finish(evt); changed {
			item.Stamp(stamp)
		}
		return changed
	})
	return changed, err
}

// modify aplica fn bajo el lock y guarda el item si fn devuelve true.
func (r *ItemRepo) modify(id uuid.UUID, fn func(*domain.Item) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	if fn(&item) {
		r.items[id] = item
	}
	return nil
}

func (r *ItemRepo) LatestUpdatedAt(ctx context.Context) (*time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *time.Time
	for _, item := range r.items {
		if latest == nil || item.UpdatedAt.After(*latest) {
			at := item.UpdatedAt
			latest = &at
		}
	}
	return latest, nil
}

func (r *ItemRepo) UpsertMany(ctx context.Context, items []domain.Item) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	written := 0
	for _, item := range items {
		current, ok := r.items[item.ID]
		if ok && current.UpdatedAt.After(item.UpdatedAt) {
			continue
		}
		if ok {
			// La puja más alta solo sube y el sello del último evento se conserva.
			if current.CurrentHighBid != nil && (item.CurrentHighBid == nil || *item.CurrentHighBid < *current.CurrentHighBid) {
				item.CurrentHighBid = current.CurrentHighBid
			}
			item.LastEventID, item.LastEventAt = current.LastEventID, current.LastEventAt
		}
		r.items[item.ID] = item
		written++
	}
	return written, nil
}

func (r *ItemRepo) Search(ctx context.Context, params domain.SearchParams, now time.Time) (domain.SearchResult, error) {
	params = params.Normalize()

	r.mu.RLock()
	matched := make([]domain.Item, 0, len(r.items))
	for _, item := range r.items {
		if params.Matches(item, now) {
			matched = append(matched, item)
		}
	}
	r.mu.RUnlock()

	params.Sort(matched)
	return params.Page(matched), nil
}
