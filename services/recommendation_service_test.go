package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"boardgame-recommender/llm"
	"boardgame-recommender/models"
	"boardgame-recommender/sampling"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRecommender(games []models.Game, client llm.Client, prices PriceResolver) *RecommendationService {
	return NewRecommendationService(&memCatalog{games: games}, client, prices, DefaultRecommendationConfig(), zap.NewNop())
}

func ids(recs []models.Recommendation) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		if r.GameID == nil {
			out = append(out, "")
			continue
		}
		out = append(out, *r.GameID)
	}
	return out
}

func requireSchemaValid(t *testing.T, recs []models.Recommendation) {
	t.Helper()
	for _, r := range recs {
		assert.NotEmpty(t, r.Pitch, r.Title)
		assert.GreaterOrEqual(t, len(r.WhyItFits), 2, r.Title)
		assert.LessOrEqual(t, len(r.WhyItFits), 4, r.Title)
		assert.LessOrEqual(t, len(r.Alternates), 3, r.Title)
	}
}

func TestRecommend_FamilyNightPrefersLightFamilyGame(t *testing.T) {
	catalog := []models.Game{
		{ID: "heavy", Title: "Twilight Imperium: Fourth Edition", Players: "3-6", MinPlayers: models.IntPtr(3), MaxPlayers: models.IntPtr(6), Complexity: models.FloatPtr(4.5), Theme: "sci-fi", Tags: []string{"strategy"}},
		{ID: "family", Title: "Ticket to Ride", Players: "2-5", MinPlayers: models.IntPtr(2), MaxPlayers: models.IntPtr(5), Complexity: models.FloatPtr(1.8), Theme: "trains", Tags: []string{"family"}},
		{ID: "mid", Title: "Brass: Birmingham", Players: "2-4", MinPlayers: models.IntPtr(2), MaxPlayers: models.IntPtr(4), Complexity: models.FloatPtr(3.9), Theme: "economic"},
		{ID: "other", Title: "Azul", Players: "2-4", MinPlayers: models.IntPtr(2), MaxPlayers: models.IntPtr(4), Complexity: models.FloatPtr(1.8), Theme: "abstract"},
	}
	svc := newRecommender(catalog, nil, nil)

	resp, err := svc.Recommend(context.Background(), "family game night, 4 players, nothing too heavy", 0)
	require.NoError(t, err)

	assert.Equal(t, models.StrategyFallback, resp.Strategy)
	require.Len(t, resp.Recommendations, 3)
	requireSchemaValid(t, resp.Recommendations)
	assert.Equal(t, []string{"family", "other", "mid"}, ids(resp.Recommendations))
	assert.NotContains(t, ids(resp.Recommendations), "heavy")
	assert.Equal(t, []string{"4 players", "light complexity", "family friendly"}, resp.InterpretedNeeds)

	h := sampling.ExtractHints(resp.Prompt)
	assert.Equal(t, 7, localScore(&catalog[1], h, ""))
	assert.Equal(t, 0, localScore(&catalog[0], h, ""))
}

func TestRecommend_NoKeywordMatchStillReturnsThree(t *testing.T) {
	svc := newRecommender(testCatalog(), nil, nil)

	resp, err := svc.Recommend(context.Background(), "I want something like 'Wingspan'", 0)
	require.NoError(t, err)

	assert.Equal(t, models.StrategyFallback, resp.Strategy)
	require.Len(t, resp.Recommendations, 3)
	requireSchemaValid(t, resp.Recommendations)
	assert.Equal(t, "g3", *resp.Recommendations[0].GameID)
}

func TestRecommend_FallbackIsDeterministic(t *testing.T) {
	svc := newRecommender(testCatalog(), nil, nil)
	a, err := svc.Recommend(context.Background(), "a quick party game", 4)
	require.NoError(t, err)
	b, err := svc.Recommend(context.Background(), "a quick party game", 4)
	require.NoError(t, err)
	assert.Equal(t, a.Recommendations, b.Recommendations)
	assert.Len(t, a.Recommendations, 4)
}

func TestRecommend_InvalidPrompt(t *testing.T) {
	svc := newRecommender(testCatalog(), nil, nil)
	for _, p := range []string{"", "  a ", strings.Repeat("x", 1001)} {
		_, err := svc.Recommend(context.Background(), p, 0)
		assert.ErrorIs(t, err, ErrInvalidPrompt)
	}
}

func TestRecommend_EmptyCatalog(t *testing.T) {
	svc := newRecommender(nil, nil, nil)
	_, err := svc.Recommend(context.Background(), "anything fun", 0)
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}

func TestRecommend_SmallCatalogReturnsWhatExists(t *testing.T) {
	svc := newRecommender(testCatalog()[:2], nil, nil)
	resp, err := svc.Recommend(context.Background(), "anything fun", 3)
	require.NoError(t, err)
	assert.Len(t, resp.Recommendations, 2)
}

const fullCatalogReply = `Sure! {"recommendations":[
 {"title":"Ticket to Ride","pitch":"Build routes across the map.","whyItFits":["Easy to teach","Plays with 4"],"mechanics":["Deck Building"]},
 {"title":"wingspan","pitch":"Birds and engines.","reasoning":"A family favourite"},
 {"title":"Catan","pitch":"Trade sheep.","whyItFits":["Classic","Trading"]}
]}`

func TestRecommend_FullDatabaseKeepsExactMatchesOnly(t *testing.T) {
	client := &fakeLLM{reply: fullCatalogReply}
	svc := newRecommender(testCatalog(), client, nil)

	resp, err := svc.Recommend(context.Background(), "family game night, 4 players, nothing too heavy", 0)
	require.NoError(t, err)

	assert.Equal(t, models.StrategyFullDatabase, resp.Strategy)
	require.Len(t, resp.Recommendations, 3)
	requireSchemaValid(t, resp.Recommendations)
	assert.Equal(t, []string{"g1", "g3", "g4"}, ids(resp.Recommendations))

	// catalog mechanics win over model claims
	assert.Equal(t, []string{"Set Collection", "Route Building"}, resp.Recommendations[0].Mechanics)
	assert.Equal(t, "Build routes across the map.", resp.Recommendations[0].Pitch)
	assert.Equal(t, "A family favourite", resp.Recommendations[1].WhyItFits[0])

	require.Len(t, resp.ValidationIssues, 1)
	assert.Contains(t, resp.ValidationIssues[0], "Catan")

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Recommend exactly 5 games FROM THIS CATALOG ONLY")
}

func TestRecommend_ModelFailuresFallBack(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeLLM
	}{
		{"network error", &fakeLLM{err: errors.New("connection refused")}},
		{"not json", &fakeLLM{reply: "I would suggest Catan."}},
		{"schema invalid", &fakeLLM{reply: `{"recommendations":[{"title":"","pitch":""}]}`}},
		{"missing array", &fakeLLM{reply: `{"games":[]}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newRecommender(testCatalog(), tt.client, nil)
			resp, err := svc.Recommend(context.Background(), "a cooperative game for 4 players", 0)
			require.NoError(t, err)
			assert.Equal(t, models.StrategyFallback, resp.Strategy)
			require.Len(t, resp.Recommendations, 3)
			requireSchemaValid(t, resp.Recommendations)
		})
	}
}

func largeCatalog() []models.Game {
	games := testCatalog()
	for i := range 600 {
		games = append(games, models.Game{
			ID:         fmt.Sprintf("f%03d", i),
			Title:      fmt.Sprintf("Filler Game %03d", i),
			Complexity: models.FloatPtr(2.0),
			Theme:      "abstract",
		})
	}
	return games
}

const sampleReply = `{"recommendations":[
 {"title":"Twilight Imperium","pitch":"Galactic politics.","whyItFits":["Epic","Negotiation"]},
 {"title":"Codenames Duet","pitch":"Spies for two.","whyItFits":["Quick","Clever"]},
 {"title":"Spirit Island","pitch":"Defend the island.","whyItFits":["Cooperative","Deep"]},
 {"title":"Nonexistent Quest Game","pitch":"Made up.","whyItFits":["Fake","Entry"]}
]}`

func TestRecommend_SampleMatchReconcilesAgainstFullCatalog(t *testing.T) {
	client := &fakeLLM{reply: sampleReply}
	svc := newRecommender(largeCatalog(), client, nil)

	resp, err := svc.Recommend(context.Background(), "a deep strategy game for 4 players", 0)
	require.NoError(t, err)

	assert.Equal(t, models.StrategySampleMatch, resp.Strategy)
	require.Len(t, resp.Recommendations, 3)
	requireSchemaValid(t, resp.Recommendations)

	got := ids(resp.Recommendations)
	assert.Equal(t, "g5", got[0])
	assert.InDelta(t, 1.0, resp.Recommendations[0].Confidence, 1e-9)
	assert.Equal(t, "g2", got[1])
	assert.InDelta(t, 0.825, resp.Recommendations[1].Confidence, 1e-9)
	assert.Len(t, resp.ValidationIssues, 2)

	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Recommend 10 games")
}

func TestRecommend_AlternatesAndPrices(t *testing.T) {
	prices := &fakePrices{}
	svc := newRecommender(testCatalog(), nil, prices)

	resp, err := svc.Recommend(context.Background(), "cooperative game", 1)
	require.NoError(t, err)
	require.Len(t, resp.Recommendations, 1)

	rec := resp.Recommendations[0]
	// the two co-op games point at each other
	require.NotEmpty(t, rec.Alternates)
	assert.LessOrEqual(t, len(rec.Alternates), 3)
	assert.NotContains(t, rec.Alternates, *rec.GameID)

	assert.Equal(t, []string{*rec.GameID}, prices.calls)
	require.NotNil(t, rec.Price.Amount)
	assert.InDelta(t, 30.0, *rec.Price.Amount, 0.001)
	assert.Equal(t, models.PriceSourceCache, rec.Price.Source)
}

func TestAttachAlternates(t *testing.T) {
	catalog := testCatalog()
	recs := []models.Recommendation{baseRecommendation(&catalog[3])} // Pandemic

	attachAlternates(recs, catalog)

	// Spirit Island shares Cooperative; nothing else overlaps
	assert.Equal(t, []string{"g5"}, recs[0].Alternates)
}
