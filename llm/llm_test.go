package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"boardgame-recommender/models"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":{\"b\":[1,2]}}\n```", `{"a":{"b":[1,2]}}`},
		{"prose", `Sure! Here you go: {"a":"}"} hope it helps`, `{"a":"}"}`},
		{"think", "<think>hmm {not json}</think>\n{\"a\":2}", `{"a":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	_, err := ExtractJSON("I cannot help with that.")
	require.Error(t, err)
	assert.Equal(t, ErrorTypeParse, TypeOf(err))
}

func TestParseRecommendations(t *testing.T) {
	reply := `{"recommendations":[
		{"title":"Wingspan","pitch":"Birds!","reasoning":"Relaxing engine builder","players":"1-5","complexity":"2.4"},
		{"title":"Azul","pitch":"Tiles.","whyItFits":["Quick","Pretty"],"players":4,"mechanics":"Tile Placement"},
		{"title":"","pitch":"missing title"},
		{"title":"Root","pitch":"Woodland war","complexity":{"bad":true}}
	]}`

	res, err := ParseRecommendations(reply)
	require.NoError(t, err)
	require.Len(t, res.Items, 2)
	assert.Len(t, res.Issues, 2)

	wing := res.Items[0]
	assert.Equal(t, "Wingspan", wing.Title)
	assert.Equal(t, []string{"Relaxing engine builder"}, wing.Reasons())
	assert.Equal(t, FlexString("1-5"), wing.Players)
	require.NotNil(t, wing.Complexity)
	assert.InDelta(t, 2.4, float64(*wing.Complexity), 1e-9)

	azul := res.Items[1]
	assert.Equal(t, FlexString("4"), azul.Players)
	assert.Equal(t, FlexStrings{"Tile Placement"}, azul.Mechanics)
	assert.Equal(t, []string{"Quick", "Pretty"}, azul.Reasons())
}

func TestParseRecommendations_SchemaFailures(t *testing.T) {
	for _, reply := range []string{
		`not json at all`,
		`{"recommendations":[]}`,
		`{"picks":[{"title":"x","pitch":"y"}]}`,
		`{"recommendations":[{"title":"x"}]}`,
		`{"recommendations":"nope"}`,
	} {
		_, err := ParseRecommendations(reply)
		assert.Error(t, err, reply)
	}
}

func TestNew_NotConfigured(t *testing.T) {
	for _, cfg := range []Config{
		{},
		{Provider: "none", APIKey: "k"},
		{Provider: "openai"},
	} {
		c, err := New(cfg, zap.NewNop())
		assert.Nil(t, c)
		assert.ErrorIs(t, err, ErrNotConfigured)
	}
}

func TestNew_Providers(t *testing.T) {
	c, err := New(Config{Provider: "OpenAI", APIKey: "k"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", c.Model())

	c, err = New(Config{Provider: "anthropic", APIKey: "k", Model: "claude-x"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "claude-x", c.Model())

	_, err = New(Config{Provider: "cohere", APIKey: "k"}, zap.NewNop())
	assert.Error(t, err)
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, ErrorTypeTimeout, ClassifyError(context.DeadlineExceeded).Type)
	assert.Equal(t, ErrorTypeRateLimit, ClassifyError(&openai.APIError{HTTPStatusCode: 429}).Type)
	assert.Equal(t, ErrorTypeAuth, ClassifyError(&openai.APIError{HTTPStatusCode: 401}).Type)
	assert.Equal(t, ErrorTypeUnavailable, ClassifyError(&openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}).Type)
	assert.Equal(t, ErrorTypeUnknown, ClassifyError(errors.New("boom")).Type)
	assert.Nil(t, ClassifyError(nil))
}

func TestPrompts(t *testing.T) {
	games := []models.Game{
		{ID: "1", Title: "Wingspan", Players: "1-5", Complexity: models.FloatPtr(2.4), Theme: "nature", Mechanics: []string{"Engine Building"}},
		{ID: "2", Title: "Azul"},
	}
	p := FullCatalogPrompt("birds please", games, 4)
	assert.Contains(t, p, "- Wingspan | players 1-5 | weight 2.4 | nature | Engine Building")
	assert.Contains(t, p, "- Azul\n")
	assert.Contains(t, p, "exactly 4 games")

	p = SamplePrompt("birds please", games, 10)
	assert.True(t, strings.Contains(p, "Recommend 10 games"))
}
