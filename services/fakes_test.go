package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"boardgame-recommender/llm"
	"boardgame-recommender/marketplace"
	"boardgame-recommender/models"
)

type memCatalog struct {
	games       []models.Game
	filterCalls int
}

func (m *memCatalog) Count(context.Context) (int64, error) { return int64(len(m.games)), nil }

func (m *memCatalog) All(context.Context) ([]models.Game, error) {
	return append([]models.Game(nil), m.games...), nil
}

func (m *memCatalog) Filter(_ context.Context, f CatalogFilter) ([]models.Game, error) {
	m.filterCalls++
	excluded := make(map[string]struct{})
	for _, id := range f.ExcludeIDs {
		excluded[id] = struct{}{}
	}
	var out []models.Game
	for _, g := range m.games {
		if _, skip := excluded[g.ID]; skip {
			continue
		}
		if f.Theme != "" && !strings.EqualFold(g.Theme, f.Theme) {
			continue
		}
		if f.Tag != "" && !g.HasTag(f.Tag) {
			continue
		}
		if f.Mechanic != "" && !g.HasMechanic(f.Mechanic) {
			continue
		}
		if f.MinComplexity != nil && (g.Complexity == nil || *g.Complexity < *f.MinComplexity) {
			continue
		}
		if f.MaxComplexity != nil && (g.Complexity == nil || *g.Complexity > *f.MaxComplexity) {
			continue
		}
		out = append(out, g)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memCatalog) Get(_ context.Context, id string) (*models.Game, error) {
	for i := range m.games {
		if m.games[i].ID == id {
			g := m.games[i]
			return &g, nil
		}
	}
	return nil, ErrGameNotFound
}

func (m *memCatalog) List(_ context.Context, offset, limit int) ([]models.Game, int64, error) {
	total := int64(len(m.games))
	if offset >= len(m.games) {
		return nil, total, nil
	}
	end := min(offset+limit, len(m.games))
	return m.games[offset:end], total, nil
}

type memPriceStore struct {
	mu      sync.Mutex
	rows    map[string]models.PriceRecord // key game|store
	upserts int
	failing bool
}

func newMemPriceStore() *memPriceStore {
	return &memPriceStore{rows: make(map[string]models.PriceRecord)}
}

func (m *memPriceStore) Latest(_ context.Context, gameID string, stores ...string) (*models.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.PriceRecord
	for _, r := range m.rows {
		if r.GameID != gameID {
			continue
		}
		if len(stores) > 0 && !containsString(stores, r.Store) {
			continue
		}
		if best == nil || r.UpdatedAt.After(best.UpdatedAt) {
			rr := r
			best = &rr
		}
	}
	return best, nil
}

func (m *memPriceStore) Upsert(_ context.Context, rec *models.PriceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("db down")
	}
	m.upserts++
	key := rec.GameID + "|" + rec.Store
	if old, ok := m.rows[key]; ok {
		rec.ID = old.ID
	}
	m.rows[key] = *rec
	return nil
}

func (m *memPriceStore) Stalest(_ context.Context, cutoff time.Time, limit int) ([]models.PriceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PriceRecord
	for _, r := range m.rows {
		if r.UpdatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPriceStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, r := range m.rows {
		if r.UpdatedAt.Before(cutoff) {
			delete(m.rows, k)
			n++
		}
	}
	return n, nil
}

func (m *memPriceStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows)), nil
}

func (m *memPriceStore) put(rec models.PriceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[rec.GameID+"|"+rec.Store] = rec
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memShareStore struct {
	mu     sync.Mutex
	shares map[string]models.SharedRecommendationSet
}

func newMemShareStore() *memShareStore {
	return &memShareStore{shares: make(map[string]models.SharedRecommendationSet)}
}

func (m *memShareStore) Create(_ context.Context, s *models.SharedRecommendationSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.shares[s.ShareID]; dup {
		return errors.New("duplicate share id")
	}
	m.shares[s.ShareID] = *s
	return nil
}

func (m *memShareStore) Get(_ context.Context, id string) (*models.SharedRecommendationSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shares[id]
	if !ok {
		return nil, ErrShareNotFound
	}
	return &s, nil
}

func (m *memShareStore) IncrementViews(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shares[id]
	if !ok {
		return ErrShareNotFound
	}
	s.ViewCount++
	m.shares[id] = s
	return nil
}

func (m *memShareStore) Delete(_ context.Context, ids ...string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.shares[id]; ok {
			delete(m.shares, id)
			n++
		}
	}
	return n, nil
}

func (m *memShareStore) sorted() []models.SharedRecommendationSet {
	out := make([]models.SharedRecommendationSet, 0, len(m.shares))
	for _, s := range m.shares {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memShareStore) CreatedBefore(_ context.Context, cutoff time.Time) ([]models.SharedRecommendationSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SharedRecommendationSet
	for _, s := range m.sorted() {
		if s.CreatedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memShareStore) Oldest(_ context.Context, n int) ([]models.SharedRecommendationSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.sorted()
	if n < len(all) {
		all = all[:n]
	}
	return all, nil
}

func (m *memShareStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.shares)), nil
}

// syncTasks runs submitted tasks inline.
type syncTasks struct {
	names []string
	errs  []error
}

func (t *syncTasks) Submit(name string, fn func(context.Context) error) bool {
	t.names = append(t.names, name)
	t.errs = append(t.errs, fn(context.Background()))
	return true
}

type fakeArchiver struct {
	archived []string
	err      error
}

func (f *fakeArchiver) Archive(_ context.Context, shares []models.SharedRecommendationSet) error {
	if f.err != nil {
		return f.err
	}
	for _, s := range shares {
		f.archived = append(f.archived, s.ShareID)
	}
	return nil
}

type fakeReference struct {
	mu    sync.Mutex
	calls int
	ref   *marketplace.Reference
	err   error
}

func (f *fakeReference) Lookup(context.Context, string) (*marketplace.Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.ref, nil
}

type fakeProducts struct {
	mu      sync.Mutex
	calls   int
	product *marketplace.Product
	err     error
}

func (f *fakeProducts) Search(context.Context, string) (*marketplace.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := *f.product
	return &p, nil
}

func (f *fakeProducts) FallbackURL(title string) string {
	return marketplace.SearchLink("", title, "tag-20")
}

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) (string, error) {
	f.prompts = append(f.prompts, req.Prompt)
	return f.reply, f.err
}

func (f *fakeLLM) Model() string { return "fake" }

type fakePrices struct {
	calls []string
}

func (f *fakePrices) ResolvePrice(_ context.Context, gameID, title string) models.ResolvedPrice {
	f.calls = append(f.calls, gameID)
	amount := 30.0
	return models.ResolvedPrice{GameID: gameID, Title: title, Store: StorePrimary, Amount: &amount, Currency: "USD", URL: "https://shop.example/" + gameID, Source: models.PriceSourceCache}
}

func testCatalog() []models.Game {
	return []models.Game{
		{ID: "g1", Title: "Ticket to Ride", Players: "2-5", Playtime: "30-60 min", MinPlayers: models.IntPtr(2), MaxPlayers: models.IntPtr(5), Complexity: models.FloatPtr(1.8), Mechanics: []string{"Set Collection", "Route Building"}, Theme: "trains", Tags: []string{"family", "gateway"}},
		{ID: "g2", Title: "Twilight Imperium: Fourth Edition", Players: "3-6", Playtime: "240-480 min", MinPlayers: models.IntPtr(3), MaxPlayers: models.IntPtr(6), Complexity: models.FloatPtr(4.5), Mechanics: []string{"Area Control", "Negotiation"}, Theme: "sci-fi", Tags: []string{"strategy", "epic"}},
		{ID: "g3", Title: "Wingspan", Players: "1-5", Playtime: "40-70 min", MinPlayers: models.IntPtr(1), MaxPlayers: models.IntPtr(5), Complexity: models.FloatPtr(2.4), Mechanics: []string{"Engine Building", "Drafting"}, Theme: "nature", Tags: []string{"family"}},
		{ID: "g4", Title: "Pandemic", Players: "2-4", Playtime: "45 min", MinPlayers: models.IntPtr(2), MaxPlayers: models.IntPtr(4), Complexity: models.FloatPtr(2.4), Mechanics: []string{"Cooperative", "Hand Management"}, Theme: "medical", Tags: []string{"cooperative"}},
		{ID: "g5", Title: "Spirit Island", Players: "1-4", Playtime: "90-120 min", MinPlayers: models.IntPtr(1), MaxPlayers: models.IntPtr(4), Complexity: models.FloatPtr(4.0), Mechanics: []string{"Cooperative", "Area Control"}, Theme: "fantasy", Tags: []string{"strategy"}},
		{ID: "g6", Title: "Codenames", Players: "2-8", Playtime: "15 min", MinPlayers: models.IntPtr(2), MaxPlayers: models.IntPtr(8), Complexity: models.FloatPtr(1.3), Mechanics: []string{"Team Play"}, Theme: "spies", Tags: []string{"party"}},
	}
}
