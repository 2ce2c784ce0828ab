package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"boardgame-recommender/llm"
	"boardgame-recommender/matching"
	"boardgame-recommender/metrics"
	"boardgame-recommender/models"
	"boardgame-recommender/sampling"

	"go.uber.org/zap"
)

const (
	minPromptLen = 3
	maxPromptLen = 1000
)

// RecommendationConfig holds the per-deployment tuning of the orchestrator.
type RecommendationConfig struct {
	FullCatalogLimit int     // catalogs up to this size go to the model whole
	SampleSize       int     // target size of the sampled catalog
	FullRequest      int     // picks requested on the full-catalog path
	SampleRequest    int     // picks requested on the sample path, 8 to 12
	DefaultCount     int     // recommendations returned when the caller does not ask
	MaxCount         int     // upper bound on a caller's count
	AcceptThreshold  float64 // minimum fuzzy-match confidence
	Temperature      float64
	MaxTokens        int
	Seed             uint64 // sampler and pitch rotation seed
}

// DefaultRecommendationConfig returns the standard tuning.
func DefaultRecommendationConfig() RecommendationConfig {
	return RecommendationConfig{
		FullCatalogLimit: 500,
		SampleSize:       120,
		FullRequest:      5,
		SampleRequest:    10,
		DefaultCount:     3,
		MaxCount:         10,
		AcceptThreshold:  0.7,
		Temperature:      0.7,
		MaxTokens:        2048,
		Seed:             42,
	}
}

// PriceResolver enriches a recommendation with price data. It never fails.
type PriceResolver interface {
	ResolvePrice(ctx context.Context, gameID, title string) models.ResolvedPrice
}

// RecommendationService turns a prompt into a validated recommendation
// list. It tries the model path that fits the catalog size and falls back
// to deterministic local scoring on any model failure.
type RecommendationService struct {
	Catalog CatalogStore
	LLM     llm.Client // nil runs the deterministic fallback only
	Prices  PriceResolver
	cfg     RecommendationConfig
	logger  *zap.Logger
}

func NewRecommendationService(catalog CatalogStore, client llm.Client, prices PriceResolver, cfg RecommendationConfig, logger *zap.Logger) *RecommendationService {
	d := DefaultRecommendationConfig()
	if cfg.FullCatalogLimit <= 0 {
		cfg.FullCatalogLimit = d.FullCatalogLimit
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = d.SampleSize
	}
	if cfg.FullRequest <= 0 {
		cfg.FullRequest = d.FullRequest
	}
	if cfg.SampleRequest < 8 || cfg.SampleRequest > 12 {
		cfg.SampleRequest = d.SampleRequest
	}
	if cfg.DefaultCount <= 0 {
		cfg.DefaultCount = d.DefaultCount
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = d.MaxCount
	}
	if cfg.AcceptThreshold <= 0 || cfg.AcceptThreshold > 1 {
		cfg.AcceptThreshold = d.AcceptThreshold
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = d.MaxTokens
	}
	return &RecommendationService{
		Catalog: catalog,
		LLM:     client,
		Prices:  prices,
		cfg:     cfg,
		logger:  logger.Named("recommend"),
	}
}

// Recommend validates the prompt, picks a strategy and returns count
// recommendations (DefaultCount when count is 0). Only invalid input, an
// unreadable or empty catalog, or a broken fallback produce an error.
func (s *RecommendationService) Recommend(ctx context.Context, prompt string, count int) (*models.RecommendationResponse, error) {
	prompt = strings.TrimSpace(prompt)
	if n := utf8.RuneCountInString(prompt); n < minPromptLen || n > maxPromptLen {
		return nil, ErrInvalidPrompt
	}
	switch {
	case count <= 0:
		count = s.cfg.DefaultCount
	case count > s.cfg.MaxCount:
		count = s.cfg.MaxCount
	}

	start := time.Now()
	catalog, err := s.Catalog.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}
	want := min(count, len(catalog))

	hints := sampling.ExtractHints(prompt)
	resp := &models.RecommendationResponse{
		Prompt:           prompt,
		InterpretedNeeds: hints.Tags(),
	}
	if resp.InterpretedNeeds == nil {
		resp.InterpretedNeeds = []string{}
	}

	var recs []models.Recommendation
	if s.LLM != nil {
		var issues []string
		strategy := models.StrategyFullDatabase
		if len(catalog) <= s.cfg.FullCatalogLimit {
			recs, issues, err = s.fullDatabase(ctx, prompt, catalog, hints, want)
		} else {
			strategy = models.StrategySampleMatch
			recs, issues, err = s.sampleMatch(ctx, prompt, catalog, hints, want)
		}
		if err == nil {
			err = validateRecommendations(recs, want)
		}
		if err != nil {
			metrics.LLMRequests.WithLabelValues(string(llm.TypeOf(err))).Inc()
			s.logger.Warn("model path failed, using local fallback",
				zap.String("strategy", strategy), zap.String("error_type", string(llm.TypeOf(err))), zap.Error(err))
			recs = nil
		} else {
			metrics.LLMRequests.WithLabelValues("success").Inc()
			resp.Strategy = strategy
			resp.ValidationIssues = issues
		}
	}

	if recs == nil {
		recs = s.fallback(catalog, hints, prompt, want)
		if err := validateRecommendations(recs, want); err != nil {
			return nil, fmt.Errorf("fallback produced invalid output: %w", err)
		}
		resp.Strategy = models.StrategyFallback
	}

	attachAlternates(recs, catalog)
	s.enrichPrices(ctx, recs)
	resp.Recommendations = recs

	metrics.RecordRecommendation(resp.Strategy, time.Since(start))
	s.logger.Info("recommendations served",
		zap.String("strategy", resp.Strategy), zap.Int("count", len(recs)), zap.Int("catalog", len(catalog)))
	return resp, nil
}

func (s *RecommendationService) complete(ctx context.Context, userPrompt string) (*llm.ParseResult, error) {
	raw, err := s.LLM.Complete(ctx, llm.Request{
		System:      llm.SystemPrompt,
		Prompt:      userPrompt,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, llm.ClassifyError(err)
	}
	return llm.ParseRecommendations(raw)
}

// fullDatabase sends the whole catalog and keeps only exact title matches.
func (s *RecommendationService) fullDatabase(ctx context.Context, prompt string, catalog []models.Game, h sampling.Hints, want int) ([]models.Recommendation, []string, error) {
	parsed, err := s.complete(ctx, llm.FullCatalogPrompt(prompt, catalog, max(s.cfg.FullRequest, want)))
	if err != nil {
		return nil, nil, err
	}

	scorer := matching.NewScorer(catalog, s.matchOptions())
	issues := append([]string(nil), parsed.Issues...)
	seen := make(map[string]struct{})
	var recs []models.Recommendation
	for _, item := range parsed.Items {
		m := scorer.Match(item.Title)
		metrics.MatchOutcomes.WithLabelValues(string(m.Kind)).Inc()
		if m.Kind != matching.KindExact {
			issues = append(issues, fmt.Sprintf("%q is not in the catalog", item.Title))
			continue
		}
		if _, dup := seen[m.Game.ID]; dup {
			continue
		}
		seen[m.Game.ID] = struct{}{}
		recs = append(recs, fromParsed(item, m, h))
	}

	if len(recs) > want {
		recs = recs[:want]
	}
	return s.fill(ctx, recs, catalog, h, prompt, want), issues, nil
}

// sampleMatch sends a sample, then reconciles every proposal against the
// full catalog and keeps matches above the acceptance threshold.
func (s *RecommendationService) sampleMatch(ctx context.Context, prompt string, catalog []models.Game, h sampling.Hints, want int) ([]models.Recommendation, []string, error) {
	sample := sampling.NewSampler(s.cfg.Seed).Sample(prompt, catalog, s.cfg.SampleSize)
	s.logger.Debug("catalog sampled", zap.Int("size", len(sample.Games)), zap.Any("pools", sample.Pools))

	parsed, err := s.complete(ctx, llm.SamplePrompt(prompt, sample.Games, s.cfg.SampleRequest))
	if err != nil {
		return nil, nil, err
	}

	scorer := matching.NewScorer(catalog, s.matchOptions())
	issues := append([]string(nil), parsed.Issues...)
	best := make(map[string]int)
	var recs []models.Recommendation
	for _, item := range parsed.Items {
		m := scorer.Match(item.Title)
		metrics.MatchOutcomes.WithLabelValues(string(m.Kind)).Inc()
		if !m.Accepted(s.cfg.AcceptThreshold) {
			issues = append(issues, fmt.Sprintf("%q has no confident catalog match (%.2f)", item.Title, m.Confidence))
			continue
		}
		if i, dup := best[m.Game.ID]; dup {
			if m.Confidence > recs[i].Confidence {
				recs[i] = fromParsed(item, m, h)
			}
			continue
		}
		best[m.Game.ID] = len(recs)
		recs = append(recs, fromParsed(item, m, h))
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Confidence > recs[j].Confidence })
	if len(recs) > want {
		recs = recs[:want]
	}
	return s.fill(ctx, recs, catalog, h, prompt, want), issues, nil
}

func (s *RecommendationService) matchOptions() matching.Options {
	opts := matching.DefaultOptions()
	opts.MinOverlap = s.cfg.AcceptThreshold
	return opts
}

// fill tops recs up to want with games chosen by prompt criteria, first
// through catalog filters, then by local scoring.
func (s *RecommendationService) fill(ctx context.Context, recs []models.Recommendation, catalog []models.Game, h sampling.Hints, prompt string, want int) []models.Recommendation {
	if len(recs) >= want {
		return recs
	}
	selected := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		if r.GameID != nil {
			selected[*r.GameID] = struct{}{}
		}
	}

	candidates := s.criteriaCandidates(ctx, h, selected, want-len(recs))
	norm := matching.Normalize(prompt)
	sort.SliceStable(candidates, func(i, j int) bool {
		return localScore(&candidates[i], h, norm) > localScore(&candidates[j], h, norm)
	})
	for i := range candidates {
		if len(recs) >= want {
			return recs
		}
		if _, dup := selected[candidates[i].ID]; dup {
			continue
		}
		selected[candidates[i].ID] = struct{}{}
		recs = append(recs, s.localRecommendation(&candidates[i], h, len(recs)))
	}

	for _, sg := range rankLocally(catalog, h, prompt, selected) {
		if len(recs) >= want {
			break
		}
		recs = append(recs, s.localRecommendation(sg.game, h, len(recs)))
	}
	return recs
}

func (s *RecommendationService) criteriaCandidates(ctx context.Context, h sampling.Hints, selected map[string]struct{}, need int) []models.Game {
	exclude := make([]string, 0, len(selected))
	for id := range selected {
		exclude = append(exclude, id)
	}

	var filters []CatalogFilter
	if h.ComplexityBand != "" {
		lo, hi := FilterForBand(h.ComplexityBand)
		filters = append(filters, CatalogFilter{MinComplexity: lo, MaxComplexity: hi})
	}
	for _, t := range firstN(h.Themes, 2) {
		filters = append(filters, CatalogFilter{Theme: t}, CatalogFilter{Tag: t})
	}
	for _, m := range firstN(h.Mechanics, 2) {
		filters = append(filters, CatalogFilter{Mechanic: m})
	}

	var out []models.Game
	seen := make(map[string]struct{})
	for _, f := range filters {
		f.ExcludeIDs = exclude
		f.Limit = need * 4
		games, err := s.Catalog.Filter(ctx, f)
		if err != nil {
			s.logger.Warn("criteria query failed", zap.Error(err))
			continue
		}
		for _, g := range games {
			if _, dup := seen[g.ID]; !dup {
				seen[g.ID] = struct{}{}
				out = append(out, g)
			}
		}
	}
	return out
}

// fallback is the terminal strategy: local scoring plus template pitches.
func (s *RecommendationService) fallback(catalog []models.Game, h sampling.Hints, prompt string, want int) []models.Recommendation {
	ranked := rankLocally(catalog, h, prompt, nil)
	recs := make([]models.Recommendation, 0, want)
	for i := 0; i < want && i < len(ranked); i++ {
		recs = append(recs, s.localRecommendation(ranked[i].game, h, i))
	}
	return recs
}

func (s *RecommendationService) localRecommendation(g *models.Game, h sampling.Hints, position int) models.Recommendation {
	rec := baseRecommendation(g)
	rec.Pitch = pitchFor(g, h, position, s.cfg.Seed)
	rec.WhyItFits = reasonsFor(g, h)
	return rec
}

func (s *RecommendationService) enrichPrices(ctx context.Context, recs []models.Recommendation) {
	if s.Prices == nil {
		return
	}
	for i := range recs {
		id := ""
		if recs[i].GameID != nil {
			id = *recs[i].GameID
		}
		rp := s.Prices.ResolvePrice(ctx, id, recs[i].Title)
		block := models.PriceBlock{Amount: rp.Amount, Source: rp.Source}
		if rp.Store != "" {
			block.Store = models.StringPtr(rp.Store)
		}
		if rp.URL != "" {
			block.URL = models.StringPtr(rp.URL)
		}
		if rp.Currency != "" {
			block.Currency = models.StringPtr(rp.Currency)
		}
		recs[i].Price = block
	}
}

// baseRecommendation carries catalog facts only; mechanics always come
// from the catalog, never from the model.
func baseRecommendation(g *models.Game) models.Recommendation {
	rec := models.Recommendation{
		GameID:     models.StringPtr(g.ID),
		Title:      g.Title,
		Mechanics:  append([]string{}, g.Mechanics...),
		Alternates: []string{},
		Specs:      models.Specs{Complexity: g.Complexity},
	}
	if g.Players != "" {
		rec.Specs.Players = models.StringPtr(g.Players)
	}
	if g.Playtime != "" {
		rec.Specs.Playtime = models.StringPtr(g.Playtime)
	}
	if g.Theme != "" {
		rec.Theme = models.StringPtr(g.Theme)
	}
	return rec
}

func fromParsed(item llm.ParsedRecommendation, m matching.MatchResult, h sampling.Hints) models.Recommendation {
	rec := baseRecommendation(m.Game)
	rec.Pitch = item.Pitch
	rec.Confidence = m.Confidence

	why := item.Reasons()
	if len(why) > 4 {
		why = why[:4]
	}
	if len(why) < 2 {
		for _, r := range reasonsFor(m.Game, h) {
			if len(why) >= 2 {
				break
			}
			why = append(why, r)
		}
	}
	rec.WhyItFits = why

	if rec.Specs.Players == nil && item.Players != "" {
		rec.Specs.Players = models.StringPtr(string(item.Players))
	}
	if rec.Specs.Playtime == nil && item.Playtime != "" {
		rec.Specs.Playtime = models.StringPtr(string(item.Playtime))
	}
	if rec.Specs.Complexity == nil && item.Complexity != nil {
		rec.Specs.Complexity = models.FloatPtr(float64(*item.Complexity))
	}
	return rec
}

// attachAlternates gives each pick up to 3 unpicked games sharing its
// theme or mechanics.
func attachAlternates(recs []models.Recommendation, catalog []models.Game) {
	picked := make(map[string]struct{}, len(recs))
	byID := make(map[string]*models.Game, len(catalog))
	for i := range catalog {
		byID[catalog[i].ID] = &catalog[i]
	}
	for _, r := range recs {
		if r.GameID != nil {
			picked[*r.GameID] = struct{}{}
		}
	}

	type alt struct {
		id, title string
		shared    int
	}
	for i := range recs {
		recs[i].Alternates = []string{}
		if recs[i].GameID == nil {
			continue
		}
		g, ok := byID[*recs[i].GameID]
		if !ok {
			continue
		}

		var alts []alt
		for j := range catalog {
			c := &catalog[j]
			if _, skip := picked[c.ID]; skip {
				continue
			}
			shared := 0
			if g.Theme != "" && strings.EqualFold(g.Theme, c.Theme) {
				shared += 2
			}
			for _, m := range g.Mechanics {
				if c.HasMechanic(m) {
					shared++
				}
			}
			if shared > 0 {
				alts = append(alts, alt{id: c.ID, title: c.Title, shared: shared})
			}
		}
		sort.SliceStable(alts, func(a, b int) bool {
			if alts[a].shared != alts[b].shared {
				return alts[a].shared > alts[b].shared
			}
			return alts[a].title < alts[b].title
		})
		for k := 0; k < len(alts) && k < 3; k++ {
			recs[i].Alternates = append(recs[i].Alternates, alts[k].id)
		}
	}
}

var errWrongCount = errors.New("wrong number of recommendations")

// validateRecommendations applies the output schema: exactly want items,
// each with a pitch, 2 to 4 bullets and at most 3 alternates.
func validateRecommendations(recs []models.Recommendation, want int) error {
	if len(recs) != want {
		return llm.NewError(llm.ErrorTypeSchema, fmt.Sprintf("expected %d recommendations, got %d", want, len(recs)), false, errWrongCount)
	}
	for i := range recs {
		if err := llm.Validator().Struct(recs[i]); err != nil {
			return llm.NewError(llm.ErrorTypeSchema, fmt.Sprintf("recommendation %d", i), false, err)
		}
	}
	return nil
}
