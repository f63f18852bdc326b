// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/skyrank/internal/models"
	"github.com/tomtom215/skyrank/internal/recommend/model"
	"github.com/tomtom215/skyrank/internal/recommend/profile"
	"github.com/tomtom215/skyrank/internal/recommend/storage"
	"github.com/tomtom215/skyrank/internal/recommend/training"
)

// mockProfiles returns fixed profiles by traveler id.
type mockProfiles struct {
	mu       sync.Mutex
	profiles map[string]*profile.TravelerProfile
	err      error
	calls    int
}

func (m *mockProfiles) Build(_ context.Context, s profile.Subject) (*profile.TravelerProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.profiles[s.TravelerID]
	if !ok {
		return nil, profile.ErrUnknownTraveler
	}
	return p, nil
}

// mockTrainer counts runs.
type mockTrainer struct {
	runs atomic.Int32
}

func (m *mockTrainer) Run(context.Context) (*storage.Artifact, error) {
	m.runs.Add(1)
	return nil, training.ErrInsufficientTrainingData
}

func historyBookings() []models.Booking {
	airlines := []string{"AF", "BA", "AF", "LH", "AF", "BA", "KL", "AF", "BA", "AF", "LH", "AF"}
	base := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	out := make([]models.Booking, len(airlines))
	for i, a := range airlines {
		out[i] = models.Booking{
			ID:            fmt.Sprintf("b%d", i),
			TravelerID:    fmt.Sprintf("t%d", i%3),
			Airline:       a,
			Price:         float64(200 + i*25),
			DepartureDate: base.AddDate(0, 0, i*2),
			DepartureTime: "09:30",
			DurationHours: 2.5,
			Direct:        i%4 != 0,
			State:         models.BookingStateConfirmed,
		}
	}
	return out
}

// saveKNNArtifact fits a small KNN artifact and activates it in store.
func saveKNNArtifact(t *testing.T, store storage.ArtifactStore, policy model.UnknownPolicy) *storage.Artifact {
	t.Helper()
	ds, err := training.BuildDataset(training.RowsFromBookings(historyBookings()), policy)
	if err != nil {
		t.Fatalf("BuildDataset: %v", err)
	}
	knn, err := model.FitKNN(ds.X, ds.Bands, 5)
	if err != nil {
		t.Fatalf("FitKNN: %v", err)
	}
	enc, _ := model.Marshal(ds.Featurizer.Encoder)
	scaler, _ := model.Marshal(ds.Featurizer.Scaler)
	blob, _ := model.Marshal(knn)

	a := &storage.Artifact{
		Metadata: storage.Metadata{
			Strategy:      string(model.KindKNN),
			UnknownPolicy: string(policy),
			SampleSize:    len(ds.Rows),
			FeatureCount:  ds.Featurizer.Width(),
		},
		Encoder: enc,
		Scaler:  scaler,
		Model:   blob,
	}
	if err := store.SaveNew(context.Background(), a); err != nil {
		t.Fatalf("SaveNew: %v", err)
	}
	return a
}

func afbaProfile() *profile.TravelerProfile {
	return &profile.TravelerProfile{
		TravelerIDs:        []string{"t-af"},
		BookingCount:       6,
		PreferredAirlines:  []string{"AF", "BA"},
		PriceCategories:    []string{"medium", "low"},
		DepartureTimes:     []string{"morning"},
		DurationCategories: []string{"medium"},
		DaysOfWeek:         []int{},
		Months:             []int{},
		AvgPrice:           300,
		PrefersDirect:      true,
	}
}

func coldProfile() *profile.TravelerProfile {
	p := profile.FromBookings([]string{"t-new"}, historyBookings()[:2], time.Now())
	return p
}

type engineFixture struct {
	engine   *Engine
	store    *storage.FileStore
	profiles *mockProfiles
	artifact *storage.Artifact
}

func newFixture(t *testing.T, cfg *Config, withArtifact bool) *engineFixture {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	f := &engineFixture{
		store: store,
		profiles: &mockProfiles{profiles: map[string]*profile.TravelerProfile{
			"t-af":  afbaProfile(),
			"t-new": coldProfile(),
		}},
	}
	if withArtifact {
		f.artifact = saveKNNArtifact(t, store, model.UnknownBucket)
	}
	f.engine, err = NewEngine(cfg, store, f.profiles, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return f
}

func offer(airline string, price float64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"airline":%q,"price":%v,"departureDate":"2026-11-02","departureTime":"09:15","duration":"2h30m","isDirect":true}`,
		airline, price))
}

func TestRank_EarlyExits(t *testing.T) {
	f := newFixture(t, nil, true)
	offers := []json.RawMessage{offer("AF", 250), offer("KL", 400)}

	tests := []struct {
		name   string
		req    RankRequest
		setup  func()
		reason Reason
	}{
		{"empty offers", RankRequest{TravelerID: "t-af"}, nil, ReasonEmpty},
		{"no traveler", RankRequest{Offers: offers}, nil, ReasonNoTraveler},
		{"unknown traveler", RankRequest{Email: "nobody@example.com", Offers: offers}, nil, ReasonUnknownTraveler},
		{
			"profile unavailable",
			RankRequest{TravelerID: "t-af", Offers: offers},
			func() { f.profiles.err = errors.New("circuit breaker is open") },
			ReasonProfileUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.profiles.err = nil
			if tt.setup != nil {
				tt.setup()
			}
			resp, err := f.engine.Rank(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Rank() error = %v", err)
			}
			if resp.Reason != tt.reason || resp.Personalized {
				t.Errorf("Reason = %q personalized = %v, want %q false", resp.Reason, resp.Personalized, tt.reason)
			}
			if len(resp.Offers) != len(tt.req.Offers) {
				t.Fatalf("len(Offers) = %d, want %d", len(resp.Offers), len(tt.req.Offers))
			}
			for i, o := range resp.Offers {
				if o.Index != i || o.Scored || o.Recommended {
					t.Errorf("offer %d modified: %+v", i, o)
				}
				b, _ := json.Marshal(o)
				if string(b) != string(tt.req.Offers[i]) {
					t.Errorf("offer %d JSON = %s, want unchanged", i, b)
				}
			}
		})
	}
}

func TestRank_InvalidRequest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOffers = 2
	f := newFixture(t, cfg, true)

	_, err := f.engine.Rank(context.Background(), RankRequest{TravelerID: "t-af", K: -1, Offers: []json.RawMessage{offer("AF", 1)}})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("negative k error = %v, want ErrInvalidRequest", err)
	}
	_, err = f.engine.Rank(context.Background(), RankRequest{
		TravelerID: "t-af",
		Offers:     []json.RawMessage{offer("AF", 1), offer("AF", 2), offer("AF", 3)},
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("too many offers error = %v, want ErrInvalidRequest", err)
	}
}

func TestRank_ModelUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrainOnMissingModel = true
	cfg.OnDemandTrainInterval = time.Hour
	f := newFixture(t, cfg, false)
	trainer := &mockTrainer{}
	f.engine.SetTrainer(trainer)

	offers := []json.RawMessage{offer("AF", 250), offer("KL", 400)}
	for i := 0; i < 3; i++ {
		resp, err := f.engine.Rank(context.Background(), RankRequest{TravelerID: "t-af", Offers: offers})
		if err != nil {
			t.Fatal(err)
		}
		if resp.Reason != ReasonModelUnavailable {
			t.Errorf("Reason = %q, want model_unavailable", resp.Reason)
		}
		if resp.Offers[0].Scored {
			t.Error("expected offers unchanged")
		}
	}
	f.engine.Wait()
	if got := trainer.runs.Load(); got != 1 {
		t.Errorf("on-demand training runs = %d, want 1 (rate limited)", got)
	}
}

func TestRank_UndecodableArtifact(t *testing.T) {
	f := newFixture(t, nil, false)
	bad := &storage.Artifact{
		Metadata: storage.Metadata{Strategy: "knn"},
		Encoder:  []byte("x"), Scaler: []byte("y"), Model: []byte("z"),
	}
	if err := f.store.SaveNew(context.Background(), bad); err != nil {
		t.Fatal(err)
	}
	resp, err := f.engine.Rank(context.Background(), RankRequest{TravelerID: "t-af", Offers: []json.RawMessage{offer("AF", 1)}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Reason != ReasonModelUnavailable {
		t.Errorf("Reason = %q, want model_unavailable", resp.Reason)
	}
}

func TestRank_ColdStart(t *testing.T) {
	f := newFixture(t, nil, true)
	offers := []json.RawMessage{
		offer("AF", 450), offer("BA", 120), offer("LH", 300), offer("KL", 120), offer("AF", 90),
	}

	resp, err := f.engine.Rank(context.Background(), RankRequest{TravelerID: "t-new", Offers: offers})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Reason != ReasonColdStart {
		t.Fatalf("Reason = %q, want cold_start", resp.Reason)
	}
	if resp.BookingCount != 2 {
		t.Errorf("BookingCount = %d, want 2", resp.BookingCount)
	}

	wantOrder := []int{4, 1, 3, 2, 0}
	for i, o := range resp.Offers {
		if o.Index != wantOrder[i] {
			t.Errorf("position %d = offer %d, want %d", i, o.Index, wantOrder[i])
		}
		if o.Score != DefaultConfig().ColdStartScore {
			t.Errorf("offer %d score = %v, want cold start score", o.Index, o.Score)
		}
		if o.Recommended != (i < 3) {
			t.Errorf("position %d recommended = %v", i, o.Recommended)
		}
	}
	if resp.Recommended != 3 {
		t.Errorf("Recommended = %d, want 3", resp.Recommended)
	}
}

func TestRank_PreferredAirlineAndPrice(t *testing.T) {
	f := newFixture(t, nil, true)
	offers := []json.RawMessage{offer("KL", 400), offer("AF", 250)}

	resp, err := f.engine.Rank(context.Background(), RankRequest{TravelerID: "t-af", Offers: offers, K: 1, Debug: true})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Personalized || resp.Reason != ReasonPersonalized {
		t.Fatalf("Reason = %q", resp.Reason)
	}
	if resp.ArtifactID != f.artifact.ID {
		t.Errorf("ArtifactID = %q, want %q", resp.ArtifactID, f.artifact.ID)
	}

	a, b := resp.Offers[0], resp.Offers[1]
	if a.Index != 1 || b.Index != 0 {
		t.Fatalf("expected the AF offer first, got order %d, %d", a.Index, b.Index)
	}
	if !a.Recommended || b.Recommended {
		t.Error("expected only the AF offer recommended")
	}
	if a.Components.Airline <= 0 || a.Components.Price <= 0 {
		t.Errorf("AF components = %+v, want airline and price bonuses", a.Components)
	}
	if b.Components.Airline != 0 {
		t.Errorf("KL airline bonus = %v, want 0", b.Components.Airline)
	}
	if b.Components.PriceAdjust >= 0 {
		t.Errorf("KL price adjust = %v, want a penalty", b.Components.PriceAdjust)
	}
	if a.Score <= b.Score {
		t.Errorf("AF score %v not above KL score %v", a.Score, b.Score)
	}
}

func TestRank_FlagsExactlyTopK(t *testing.T) {
	f := newFixture(t, nil, true)

	for _, n := range []int{1, 2, 3, 7} {
		for _, k := range []int{1, 3, 5} {
			t.Run(fmt.Sprintf("n=%d,k=%d", n, k), func(t *testing.T) {
				offers := make([]json.RawMessage, n)
				for i := range offers {
					offers[i] = offer("LH", 310)
				}
				resp, err := f.engine.Rank(context.Background(), RankRequest{TravelerID: "t-af", Offers: offers, K: k})
				if err != nil {
					t.Fatal(err)
				}
				if len(resp.Offers) != n {
					t.Fatalf("len = %d, want %d", len(resp.Offers), n)
				}
				flagged := 0
				for i, o := range resp.Offers {
					if o.Index != i {
						t.Errorf("equal scores reordered: position %d holds offer %d", i, o.Index)
					}
					if o.Recommended {
						flagged++
					}
				}
				if flagged != min(k, n) {
					t.Errorf("flagged = %d, want %d", flagged, min(k, n))
				}
			})
		}
	}
}

func TestRank_Idempotent(t *testing.T) {
	f := newFixture(t, nil, true)
	offers := []json.RawMessage{offer("AF", 250), offer("BA", 180), offer("KL", 400), offer("LH", 320)}
	req := RankRequest{TravelerID: "t-af", Offers: offers}

	first, err := f.engine.Rank(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.engine.Rank(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	a, _ := json.Marshal(first.Offers)
	b, _ := json.Marshal(second.Offers)
	if string(a) != string(b) {
		t.Errorf("rankings differ:\n%s\n%s", a, b)
	}
}

func TestRank_UnseenCategories(t *testing.T) {
	for _, policy := range []model.UnknownPolicy{model.UnknownBucket, model.FirstCategory} {
		t.Run(string(policy), func(t *testing.T) {
			store, err := storage.NewFileStore(t.TempDir())
			if err != nil {
				t.Fatal(err)
			}
			saveKNNArtifact(t, store, policy)
			e, err := NewEngine(nil, store, &mockProfiles{profiles: map[string]*profile.TravelerProfile{"t-af": afbaProfile()}}, zerolog.Nop())
			if err != nil {
				t.Fatal(err)
			}

			resp, err := e.Rank(context.Background(), RankRequest{
				TravelerID: "t-af",
				Offers:     []json.RawMessage{offer("ZZ Never Seen", 275)},
				Debug:      true,
			})
			if err != nil {
				t.Fatal(err)
			}
			o := resp.Offers[0]
			if o.Error != "" {
				t.Fatalf("unseen airline failed scoring: %s", o.Error)
			}
			if !o.Recommended {
				t.Error("expected the only offer to be recommended")
			}
			found := false
			for _, col := range o.Components.UnseenCategories {
				if col == "airline" {
					found = true
				}
			}
			if !found {
				t.Errorf("UnseenCategories = %v, want airline", o.Components.UnseenCategories)
			}
		})
	}
}

func TestRank_PerOfferFailureIsIsolated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules = []Rule{{
		Name:   "explode",
		Expr:   `offer.airline == "BAD" ? profile.no_such_field == 1 : false`,
		Adjust: 1,
	}}
	f := newFixture(t, cfg, true)

	offers := []json.RawMessage{offer("BAD", 100), offer("AF", 250), offer("BA", 260)}
	resp, err := f.engine.Rank(context.Background(), RankRequest{TravelerID: "t-af", Offers: offers, K: 3})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Failed != 1 {
		t.Errorf("Failed = %d, want 1", resp.Failed)
	}
	last := resp.Offers[len(resp.Offers)-1]
	if last.Index != 0 || last.Error == "" {
		t.Fatalf("expected failed offer last, got %+v", last)
	}
	if last.Score != cfg.FailureScore || last.Recommended {
		t.Errorf("failed offer score = %v recommended = %v", last.Score, last.Recommended)
	}
	if resp.Recommended != 2 {
		t.Errorf("Recommended = %d, want 2", resp.Recommended)
	}
}

func TestRank_FailedOfferSortsBelowZeroScore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules = []Rule{
		{Name: "penalize", Expr: `offer.airline == "ZZ"`, Adjust: -5},
		{
			Name:   "explode",
			Expr:   `offer.airline == "BAD" ? profile.no_such_field == 1 : false`,
			Adjust: 1,
		},
	}
	f := newFixture(t, cfg, true)

	offers := []json.RawMessage{offer("ZZ", 250), offer("BAD", 100)}
	resp, err := f.engine.Rank(context.Background(), RankRequest{TravelerID: "t-af", Offers: offers, K: 2})
	if err != nil {
		t.Fatal(err)
	}

	first, second := resp.Offers[0], resp.Offers[1]
	if first.Index != 0 || first.Error != "" {
		t.Fatalf("first offer = %+v, want the scored ZZ offer", first)
	}
	if first.Score != 0 {
		t.Errorf("ZZ score = %v, want 0 after flooring", first.Score)
	}
	if second.Index != 1 || second.Error == "" {
		t.Fatalf("second offer = %+v, want the failed BAD offer", second)
	}
	if second.Score <= first.Score {
		t.Fatalf("failed score %v should exceed the floored score for this case", second.Score)
	}
	if !first.Recommended || second.Recommended {
		t.Errorf("recommended = %v/%v, want true/false", first.Recommended, second.Recommended)
	}
}

func TestRank_PicksUpNewArtifact(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ArtifactRefresh = 0
	f := newFixture(t, cfg, true)
	req := RankRequest{TravelerID: "t-af", Offers: []json.RawMessage{offer("AF", 250)}}

	resp, _ := f.engine.Rank(context.Background(), req)
	if resp.ArtifactVersion != 1 {
		t.Fatalf("ArtifactVersion = %d, want 1", resp.ArtifactVersion)
	}

	next := saveKNNArtifact(t, f.store, model.UnknownBucket)
	resp, _ = f.engine.Rank(context.Background(), req)
	if resp.ArtifactID != next.ID || resp.ArtifactVersion != 2 {
		t.Errorf("artifact = %s v%d, want %s v2", resp.ArtifactID, resp.ArtifactVersion, next.ID)
	}
	if f.engine.Stats().ArtifactVersion != 2 {
		t.Errorf("Stats().ArtifactVersion = %d", f.engine.Stats().ArtifactVersion)
	}
}

func TestRank_ConcurrentRequests(t *testing.T) {
	f := newFixture(t, nil, true)
	offers := []json.RawMessage{offer("AF", 250), offer("BA", 180), offer("KL", 400)}

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.engine.Rank(context.Background(), RankRequest{TravelerID: "t-af", Offers: offers})
			if err != nil {
				t.Error(err)
				return
			}
			b, _ := json.Marshal(resp.Offers)
			results[i] = string(b)
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("concurrent result %d differs", i)
		}
	}
}
