// CRMRec - CRM Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crmrec

package recommend

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/crmrec/internal/config"
	"github.com/tomtom215/crmrec/internal/models"
	"github.com/tomtom215/crmrec/internal/recommend/algorithms"
	"github.com/tomtom215/crmrec/internal/recommend/registry"
)

func TestPersonalized_ExcludesRatedItems(t *testing.T) {
	data := &fakeData{items: testItems(), ratings: testRatings()}
	e, _ := newTestEngine(t, data, nil)
	ctx := context.Background()

	if _, err := e.Train(ctx); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	recs, err := e.Recommend(ctx, StrategyPersonalized, Subject{ID: 1}, 0)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	// u1 rated 1 and 2. Item 3 co-occurs with item 1 (rated 5), item 4 with item 2 (rated 4).
	if got := ids(recs); !reflect.DeepEqual(got, []int64{3, 4}) {
		t.Errorf("personalized(u1) = %v, want [3 4]", got)
	}
	if recs[0].Item == nil || recs[0].Item.Title != "Cockroach Gel" {
		t.Errorf("first item = %+v, want canonical item 3", recs[0].Item)
	}
	if recs[0].Score <= recs[1].Score {
		t.Errorf("scores not descending: %v, %v", recs[0].Score, recs[1].Score)
	}
}

func TestPersonalized_FallbackLadder(t *testing.T) {
	ctx := context.Background()
	allRated := append(testRatings(),
		models.Rating{UserID: 9, ItemID: 1, Rating: 1}, models.Rating{UserID: 9, ItemID: 2, Rating: 1},
		models.Rating{UserID: 9, ItemID: 3, Rating: 1}, models.Rating{UserID: 9, ItemID: 4, Rating: 1},
	)

	tests := []struct {
		name    string
		ratings []models.Rating
		train   bool
		userID  int64
		want    func(d *fakeData) []int64
	}{
		{
			name:   "no ratings at all returns first items",
			userID: 1,
			want:   func(*fakeData) []int64 { return []int64{1, 2, 3, 4} },
		},
		{
			name:    "user without ratings returns top rated",
			ratings: testRatings(),
			train:   true,
			userID:  42,
			want:    func(*fakeData) []int64 { return []int64{4, 1, 3, 2} },
		},
		{
			name:    "missing similarity model returns top rated",
			ratings: testRatings(),
			userID:  1,
			want:    func(*fakeData) []int64 { return []int64{4, 1, 3, 2} },
		},
		{
			name:    "no unrated candidates returns top rated",
			ratings: allRated,
			train:   true,
			userID:  9,
			want: func(d *fakeData) []int64 {
				return d.meanRanking(5)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := &fakeData{items: testItems(), ratings: tt.ratings}
			e, _ := newTestEngine(t, data, nil)
			if tt.train {
				if _, err := e.Train(ctx); err != nil {
					t.Fatalf("Train() error = %v", err)
				}
			}

			recs, err := e.Recommend(ctx, StrategyPersonalized, Subject{ID: tt.userID}, 0)
			if err != nil {
				t.Fatalf("Recommend() error = %v", err)
			}
			if got, want := ids(recs), tt.want(data); !reflect.DeepEqual(got, want) {
				t.Errorf("personalized(%d) = %v, want %v", tt.userID, got, want)
			}
		})
	}
}

func TestPersonalized_AllCandidatesRatedFallsBack(t *testing.T) {
	data := &fakeData{items: testItems(), ratings: []models.Rating{
		{UserID: 1, ItemID: 1, Rating: 5},
		{UserID: 1, ItemID: 2, Rating: 1},
		{UserID: 2, ItemID: 1, Rating: 4},
	}}
	e, _ := newTestEngine(t, data, nil)
	ctx := context.Background()

	if _, err := e.Train(ctx); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	// Both items in the similarity model are rated above zero by u1, so
	// nothing is scored and the mean-rating ranking is returned.
	recs, err := e.Recommend(ctx, StrategyPersonalized, Subject{ID: 1}, 0)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if got := ids(recs); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Errorf("personalized(u1) = %v, want [1 2]", got)
	}
	for _, r := range recs {
		if r.Score != 0 {
			t.Errorf("fallback item %d has score %v, want 0", r.ID, r.Score)
		}
	}
}

func TestPersonalized_DoesNotLazyTrain(t *testing.T) {
	data := &fakeData{items: testItems(), ratings: testRatings()}
	e, reg := newTestEngine(t, data, nil)
	ctx := context.Background()

	if _, err := e.Recommend(ctx, StrategyPersonalized, Subject{ID: 1}, 3); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.LatestEntry(ctx, ModelSimilarity); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("similarity model published by a read, err = %v", err)
	}
}

func TestContent_LazyTrainsOnce(t *testing.T) {
	data := &fakeData{items: testItems()}
	e, reg := newTestEngine(t, data, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			// Distinct k so the response cache does not absorb calls.
			_, err := e.Recommend(ctx, StrategyContent, Subject{ID: 1}, k+1)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}
	}

	if n := data.listItemsCalls.Load(); n != 1 {
		t.Errorf("ListItems called %d times, want 1", n)
	}
	entries, err := reg.Entries(ctx, ModelContent)
	if err != nil || len(entries) != 1 {
		t.Errorf("content entries = %d (%v), want 1", len(entries), err)
	}
}

func TestContent_SimilarItems(t *testing.T) {
	data := &fakeData{items: testItems()}
	e, _ := newTestEngine(t, data, nil)
	ctx := context.Background()

	recs, err := e.Recommend(ctx, StrategyContent, Subject{ID: 1}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 || recs[0].ID != 2 {
		t.Fatalf("content(1) = %v, want item 2 first and 3 results", ids(recs))
	}
	for _, r := range recs {
		if r.ID == 1 {
			t.Error("query item returned")
		}
	}

	unknown, err := e.Recommend(ctx, StrategyContent, Subject{ID: 99}, 10)
	if err != nil || len(unknown) != 0 {
		t.Errorf("content(99) = %v, %v; want empty", unknown, err)
	}
}

func TestContent_EmptyCatalogue(t *testing.T) {
	e, reg := newTestEngine(t, &fakeData{}, nil)
	ctx := context.Background()

	recs, err := e.Recommend(ctx, StrategyContent, Subject{ID: 1}, 5)
	if err != nil || len(recs) != 0 {
		t.Errorf("content on empty store = %v, %v", recs, err)
	}
	if _, err := reg.LatestEntry(ctx, ModelContent); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("empty catalogue published a model, err = %v", err)
	}
}

func TestCollaborative(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user gets top rated", func(t *testing.T) {
		e, _ := newTestEngine(t, &fakeData{items: testItems(), ratings: testRatings()}, nil)
		recs, err := e.Recommend(ctx, StrategyCollaborative, Subject{ID: 42}, 10)
		if err != nil {
			t.Fatal(err)
		}
		if got := ids(recs); !reflect.DeepEqual(got, []int64{4, 1, 3, 2}) {
			t.Errorf("collaborative(42) = %v, want [4 1 3 2]", got)
		}
	})

	t.Run("known user ranks every item by default", func(t *testing.T) {
		e, _ := newTestEngine(t, &fakeData{items: testItems(), ratings: testRatings()}, nil)
		recs, err := e.Recommend(ctx, StrategyCollaborative, Subject{ID: 1}, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 4 {
			t.Errorf("collaborative(1) = %v, want all 4 items", ids(recs))
		}
		for i := 1; i < len(recs); i++ {
			if recs[i].Score > recs[i-1].Score {
				t.Errorf("not sorted: %v", recs)
			}
		}
	})

	t.Run("exclude rated", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ExcludeRated = true
		reg := newTestRegistry(t)
		e, err := NewEngine(&fakeData{items: testItems(), ratings: testRatings()}, nil, reg, opts)
		if err != nil {
			t.Fatal(err)
		}
		defer e.Close()

		recs, err := e.Recommend(ctx, StrategyCollaborative, Subject{ID: 1}, 10)
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range recs {
			if r.ID == 1 || r.ID == 2 {
				t.Errorf("rated item %d returned with ExcludeRated", r.ID)
			}
		}
	})
}

func TestEngine_ZeroDataRetrainKeepsModels(t *testing.T) {
	data := &fakeData{items: testItems(), ratings: testRatings()}
	e, reg := newTestEngine(t, data, nil)
	ctx := context.Background()

	if _, err := e.Train(ctx); err != nil {
		t.Fatal(err)
	}
	before := map[string]int64{}
	for _, name := range []string{ModelContent, ModelCollaborative, ModelSimilarity} {
		entry, err := reg.LatestEntry(ctx, name)
		if err != nil {
			t.Fatalf("LatestEntry(%s) error = %v", name, err)
		}
		before[name] = entry.Version
	}

	data.setItems(nil)
	data.setRatings(nil)
	report, err := e.Train(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range report.Models {
		if m.Result != ResultNoData {
			t.Errorf("%s result = %s, want %s", m.Model, m.Result, ResultNoData)
		}
	}
	for name, v := range before {
		entry, err := reg.LatestEntry(ctx, name)
		if err != nil || entry.Version != v {
			t.Errorf("%s version = %d (%v), want %d", name, entry.Version, err, v)
		}
	}
	if h, err := registry.Latest[algorithms.ContentModel](ctx, reg, ModelContent); err != nil || h.Artifact() == nil {
		t.Errorf("Latest(content) after empty retrain = %v", err)
	}
}

func TestEngine_TrainPublishesAndClearsCache(t *testing.T) {
	data := &fakeData{items: testItems(), ratings: testRatings()}
	e, _ := newTestEngine(t, data, nil)
	ctx := context.Background()

	if _, err := e.Recommend(ctx, StrategyContent, Subject{ID: 1}, 3); err != nil {
		t.Fatal(err)
	}
	if e.cache.Len() == 0 {
		t.Fatal("response not cached")
	}

	report, err := e.Train(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed() || len(report.Models) != 3 {
		t.Errorf("report = %+v", report)
	}
	if e.cache.Len() != 0 {
		t.Error("cache not cleared after training")
	}

	st, err := e.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Runs != 1 || st.IsTraining {
		t.Errorf("status = %+v", st)
	}
	for _, m := range st.Models {
		if !m.Available {
			t.Errorf("model %s unavailable after training", m.Name)
		}
	}
	// content was lazily published at v1 before Train published v2.
	if st.Models[0].Name != ModelContent || st.Models[0].Version != 2 {
		t.Errorf("content status = %+v, want version 2", st.Models[0])
	}
}

func TestEngine_TrainInProgress(t *testing.T) {
	data := &fakeData{
		items:   testItems(),
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	e, _ := newTestEngine(t, data, nil)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := e.Train(ctx)
		done <- err
	}()

	select {
	case <-data.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("training never started")
	}
	if _, err := e.Train(ctx); !errors.Is(err, ErrTrainingInProgress) {
		t.Errorf("concurrent Train() error = %v, want ErrTrainingInProgress", err)
	}
	close(data.block)
	if err := <-done; err != nil {
		t.Errorf("first Train() error = %v", err)
	}
}

func TestEngine_UnknownStrategy(t *testing.T) {
	e, _ := newTestEngine(t, &fakeData{}, nil)
	if _, err := e.Recommend(context.Background(), "nope", Subject{ID: 1}, 5); !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("error = %v, want ErrUnknownStrategy", err)
	}
}

func TestEngine_Strategies(t *testing.T) {
	e, _ := newTestEngine(t, &fakeData{}, &fakeFacts{})
	want := []string{
		StrategyCollaborative, StrategyContent, StrategyPersonalized,
		StrategySQLCollaborative, StrategySQLContent, StrategySQLCrossSell, StrategySQLUpsell,
	}
	if got := e.Strategies(); !reflect.DeepEqual(got, want) {
		t.Errorf("Strategies() = %v, want %v", got, want)
	}
}

func TestOptions(t *testing.T) {
	opts := OptionsFromConfig(&config.RecommendConfig{DefaultK: 7, MaxK: 20, ExcludeRated: true}, &config.RegistryConfig{KeepVersions: 2})
	if opts.DefaultK != 7 || opts.MaxK != 20 || !opts.ExcludeRated || opts.KeepVersions != 2 {
		t.Errorf("OptionsFromConfig() = %+v", opts)
	}
	if opts.PersonalizedTopN != 5 || opts.Components != algorithms.DefaultComponents {
		t.Errorf("defaults not applied: %+v", opts)
	}

	tests := []struct {
		k, want int
	}{
		{0, 7}, {-1, 7}, {3, 3}, {50, 20},
	}
	for _, tt := range tests {
		if got := opts.clampK(tt.k); got != tt.want {
			t.Errorf("clampK(%d) = %d, want %d", tt.k, got, tt.want)
		}
	}

	bad := DefaultOptions()
	bad.MaxK = 1
	if err := bad.Validate(); err == nil {
		t.Error("Validate() accepted max_k < default_k")
	}
}

func TestParseSubject(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		raw      string
		want     Subject
		wantErr  bool
	}{
		{"numeric id", StrategyContent, "42", Subject{ID: 42}, false},
		{"sql-content keeps text", StrategySQLContent, "termite", Subject{Query: "termite"}, false},
		{"sql-content keeps digits as text", StrategySQLContent, "2024", Subject{Query: "2024"}, false},
		{"sql-content rejects blank", StrategySQLContent, "  ", Subject{}, true},
		{"content rejects text", StrategyContent, "termite", Subject{}, true},
		{"collaborative rejects text", StrategyCollaborative, "abc", Subject{}, true},
		{"upsell rejects text", StrategySQLUpsell, "Rodent Control", Subject{}, true},
		{"rejects zero", StrategySQLCrossSell, "0", Subject{}, true},
		{"rejects negative", StrategyPersonalized, "-3", Subject{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSubject(tt.strategy, tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSubject) {
					t.Fatalf("ParseSubject(%q, %q) error = %v, want ErrInvalidSubject", tt.strategy, tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSubject(%q, %q) error = %v", tt.strategy, tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseSubject(%q, %q) = %+v, want %+v", tt.strategy, tt.raw, got, tt.want)
			}
		})
	}

	if (Subject{Query: "42"}).String() == (Subject{ID: 42}).String() {
		t.Error("subject keys collide")
	}
}
