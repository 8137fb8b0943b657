// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package recommend

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tomtom215/crmrec/internal/models"
	"github.com/tomtom215/crmrec/internal/recommend/registry"
	"github.com/tomtom215/crmrec/internal/recommend/storage"
)

// fakeData is an in-memory DataStore.
type fakeData struct {
	mu      sync.Mutex
	items   []models.Item
	ratings []models.Rating

	listItemsCalls   atomic.Int32
	listRatingsCalls atomic.Int32

	// block, when set, holds ListItems until closed; entered is signalled first.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeData) setRatings(r []models.Rating) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratings = r
}

func (f *fakeData) setItems(it []models.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = it
}

func (f *fakeData) ListItems(ctx context.Context) ([]models.Item, error) {
	f.listItemsCalls.Add(1)
	if f.block != nil {
		f.entered <- struct{}{}
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Item(nil), f.items...), nil
}

func (f *fakeData) ListRatings(ctx context.Context) ([]models.Rating, error) {
	f.listRatingsCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Rating(nil), f.ratings...), nil
}

func (f *fakeData) GetItemsByIDs(ctx context.Context, ids []int64) (map[int64]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]models.Item)
	for _, id := range ids {
		for _, it := range f.items {
			if it.ID == id {
				out[id] = it
			}
		}
	}
	return out, nil
}

func (f *fakeData) FirstItems(ctx context.Context, limit int) ([]models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := append([]models.Item(nil), f.items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// meanRanking ranks items by mean rating, ties by ascending ID.
func (f *fakeData) meanRanking(limit int) []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := map[int64]float64{}
	cnt := map[int64]float64{}
	for _, r := range f.ratings {
		sum[r.ItemID] += r.Rating
		cnt[r.ItemID]++
	}
	ids := make([]int64, 0, len(sum))
	for id := range sum {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ai, aj := sum[ids[i]]/cnt[ids[i]], sum[ids[j]]/cnt[ids[j]]
		if ai != aj {
			return ai > aj
		}
		return ids[i] < ids[j]
	})
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids
}

func (f *fakeData) UserRatings(ctx context.Context, userID int64) (map[int64]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int64]float64{}
	for _, r := range f.ratings {
		if r.UserID == userID {
			out[r.ItemID] = r.Rating
		}
	}
	return out, nil
}

func (f *fakeData) CountRatings(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.ratings)), nil
}

var errFactsDown = errors.New("facts down")

// fakeFacts is an in-memory FactStore.
type fakeFacts struct {
	fail  atomic.Bool
	calls atomic.Int32
}

func (f *fakeFacts) ContentRecommendations(ctx context.Context, productName string) ([]string, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, errFactsDown
	}
	if productName == "termite" {
		return []string{"Premium Pest Control", "Rodent Control", "Rodent Control"}, nil
	}
	return []string{}, nil
}

func (f *fakeFacts) SimilarCustomers(ctx context.Context, customerID int64) ([]models.SimilarCustomer, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, errFactsDown
	}
	return []models.SimilarCustomer{{CustomerID: 2, CommonCount: 3}, {CustomerID: 3, CommonCount: 1}}, nil
}

func (f *fakeFacts) UpsellRecommendations(ctx context.Context, productID int64) ([]string, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, errFactsDown
	}
	return []string{"Premium Pest Control"}, nil
}

func (f *fakeFacts) CrossSellRecommendations(ctx context.Context, customerID int64) ([]models.CrossSellCount, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, errFactsDown
	}
	return []models.CrossSellCount{{ProductName: "Mosquito Control", Count: 2}, {ProductName: "Rodent Control", Count: 1}}, nil
}

func testItems() []models.Item {
	return []models.Item{
		{ID: 1, Title: "Termite Shield", Description: "soil barrier against termites", Category: "termite"},
		{ID: 2, Title: "Termite Bait", Description: "bait stations for termites", Category: "termite"},
		{ID: 3, Title: "Cockroach Gel", Description: "kitchen gel bait", Category: "cockroach"},
		{ID: 4, Title: "Mosquito Fogging", Description: "outdoor fogging", Category: "mosquito"},
	}
}

// testRatings: u1 rated items 1 and 2; u2 rated 1 and 3; u3 rated 2 and 4.
func testRatings() []models.Rating {
	return []models.Rating{
		{UserID: 1, ItemID: 1, Rating: 5}, {UserID: 1, ItemID: 2, Rating: 4},
		{UserID: 2, ItemID: 1, Rating: 3}, {UserID: 2, ItemID: 3, Rating: 4},
		{UserID: 3, ItemID: 2, Rating: 2}, {UserID: 3, ItemID: 4, Rating: 5},
	}
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	r, err := registry.Open("", store)
	if err != nil {
		t.Fatalf("registry.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func newTestEngine(t *testing.T, data DataStore, facts FactStore) (*Engine, *registry.Registry) {
	t.Helper()
	reg := newTestRegistry(t)
	e, err := NewEngine(data, facts, reg, DefaultOptions())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e, reg
}

func ids(recs []Recommendation) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
