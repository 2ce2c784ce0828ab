package services

import (
	"sort"
	"strings"

	"boardgame-recommender/matching"
	"boardgame-recommender/models"
	"boardgame-recommender/sampling"
)

type scoredGame struct {
	game  *models.Game
	score int
}

// localScore rates a game against the prompt without any model call.
func localScore(g *models.Game, h sampling.Hints, normPrompt string) int {
	score := 0

	if h.ComplexityBand != "" {
		switch band := g.ComplexityBand(); {
		case band == h.ComplexityBand:
			score += 3
		case band != "" && h.ComplexityBand == models.ComplexityLight && band == models.ComplexityHeavy,
			band != "" && h.ComplexityBand == models.ComplexityHeavy && band == models.ComplexityLight:
			score -= 2
		}
	}
	for _, t := range h.Themes {
		if strings.EqualFold(g.Theme, t) || g.HasTag(t) {
			score += 3
		}
	}
	for _, m := range h.Mechanics {
		if g.HasMechanic(m) {
			score += 2
		}
	}
	if h.Players > 0 && g.SupportsPlayers(h.Players) {
		score += 2
	}
	if lo, _, ok := g.PlayerRange(); h.Solo && (g.HasTag("solo") || (ok && lo == 1)) {
		score += 2
	}
	if h.Family && g.HasTag("family") {
		score += 2
	}
	if h.Party && g.HasTag("party") {
		score += 2
	}
	if h.Date && (g.HasTag("two-player") || g.HasTag("2-player") || g.HasTag("couples")) {
		score += 2
	}
	if h.Strategy && g.HasTag("strategy") {
		score += 2
	}
	if h.Quick && (g.HasTag("quick") || g.HasTag("filler")) {
		score += 1
	}

	// a prompt naming the game outright
	if t := matching.Normalize(g.Title); len(t) > 2 && strings.Contains(" "+normPrompt+" ", " "+t+" ") {
		score += 1
	}
	return score
}

// rankLocally scores the whole catalog and returns it best-first. Ties keep
// title order so the result is deterministic.
func rankLocally(catalog []models.Game, h sampling.Hints, prompt string, exclude map[string]struct{}) []scoredGame {
	norm := matching.Normalize(prompt)
	ranked := make([]scoredGame, 0, len(catalog))
	for i := range catalog {
		if _, skip := exclude[catalog[i].ID]; skip {
			continue
		}
		ranked = append(ranked, scoredGame{game: &catalog[i], score: localScore(&catalog[i], h, norm)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].game.Title < ranked[j].game.Title
	})
	return ranked
}
