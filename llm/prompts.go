package llm

import (
	"fmt"
	"strings"

	"boardgame-recommender/models"
)

// SystemPrompt frames every recommendation call.
const SystemPrompt = `You are an expert board game curator. You recommend board games that fit the
situation a user describes: who is playing, how long they have, how heavy a game they want and
what themes excite them. Respond with a single JSON object of the form
{"recommendations":[{"title":"...","pitch":"...","whyItFits":["...","..."],"mechanics":["..."],"players":"2-4","playtime":"30-45 min","complexity":2.1}]}
Each pitch is one or two enthusiastic sentences. Each whyItFits list has 2 to 4 short bullets.`

// catalogLine renders the essential fields of a game for prompt context.
func catalogLine(g *models.Game) string {
	var b strings.Builder
	b.WriteString(g.Title)
	if g.Players != "" {
		fmt.Fprintf(&b, " | players %s", g.Players)
	}
	if g.Playtime != "" {
		fmt.Fprintf(&b, " | %s", g.Playtime)
	}
	if g.Complexity != nil {
		fmt.Fprintf(&b, " | weight %.1f", *g.Complexity)
	}
	if g.Theme != "" {
		fmt.Fprintf(&b, " | %s", g.Theme)
	}
	if len(g.Mechanics) > 0 {
		fmt.Fprintf(&b, " | %s", strings.Join(g.Mechanics, ", "))
	}
	return b.String()
}

func catalogBlock(games []models.Game) string {
	var b strings.Builder
	for i := range games {
		b.WriteString("- ")
		b.WriteString(catalogLine(&games[i]))
		b.WriteByte('\n')
	}
	return b.String()
}

// FullCatalogPrompt asks for n picks strictly from the complete catalog.
func FullCatalogPrompt(userPrompt string, catalog []models.Game, n int) string {
	return fmt.Sprintf(`Here is our complete game catalog:
%s
User request: %q

Recommend exactly %d games FROM THIS CATALOG ONLY. Use each title exactly as written in the catalog.
Do not invent games that are not listed.`, catalogBlock(catalog), userPrompt, n)
}

// SamplePrompt asks for n picks, preferring the sample but allowing well-known
// titles; the caller reconciles everything against the full catalog.
func SamplePrompt(userPrompt string, sample []models.Game, n int) string {
	return fmt.Sprintf(`Here is a representative selection from our catalog:
%s
User request: %q

Recommend %d games that best fit the request. Prefer games from the selection above, but you
may suggest other well-known published board games if they fit clearly better. Use official titles.`,
		catalogBlock(sample), userPrompt, n)
}
