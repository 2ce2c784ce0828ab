package marketplace

import (
	"strings"

	"boardgame-recommender/matching"
)

// Product is one item returned by the product-search API.
type Product struct {
	ASIN         string
	Title        string
	Brand        string
	Manufacturer string
	Amount       *float64
	Currency     string
	URL          string
	ImageURL     string
}

var (
	boardGamePhrases = []string{"board game", "card game", "strategy game", "family game", "tabletop", "party game", "cooperative game", "dice game"}
	knownPublishers  = []string{
		"stonemaier", "z-man", "days of wonder", "cmon", "fantasy flight", "asmodee",
		"repos production", "rio grande", "czech games", "ravensburger", "catan studio",
		"leder games", "pandasaurus", "renegade", "restoration games", "capstone", "plan b",
		"next move", "iello", "queen games", "kosmos", "thames & kosmos", "gamewright",
		"exploding kittens", "hasbro", "mattel", "alderac", "aeg", "portal games", "cge",
		"greater than games", "pegasus", "lookout", "feuerland", "hans im gluck", "eagle-gryphon",
	}
	accessoryWords = []string{
		"expansion", "sleeves", "sleeve", "insert", "organizer", "playmat", "play mat",
		"dice set", "promo", "upgrade kit", "replacement", "storage", "metal coins", "coins",
		"puzzle", "t-shirt", "poster", "miniatures pack", "token set", "card holder", "compatible with",
	}
)

// Scoring thresholds. Short titles carry less signal, so their bar is lower.
const (
	MinScore      = 50.0
	MinScoreShort = 40.0
	minPrice      = 8.0
	maxPrice      = 300.0
)

// ScoreProduct rates how likely product is the retail edition of the
// game named title. Accessories and expansions that the title itself does
// not ask for are rejected outright with a negative score.
func ScoreProduct(title string, p Product) float64 {
	gameNorm := matching.Normalize(title)
	prodNorm := matching.Normalize(p.Title)
	lowerTitle := strings.ToLower(p.Title)

	for _, w := range accessoryWords {
		if strings.Contains(lowerTitle, w) && !strings.Contains(strings.ToLower(title), w) {
			return -100
		}
	}

	score := 0.0

	gameWords := matching.SignificantWords(gameNorm)
	if len(gameWords) == 0 {
		gameWords = strings.Fields(gameNorm)
	}
	if len(gameWords) > 0 {
		prodWords := make(map[string]struct{})
		for _, w := range strings.Fields(prodNorm) {
			prodWords[w] = struct{}{}
		}
		found := 0
		for _, w := range gameWords {
			if _, ok := prodWords[w]; ok {
				found++
			}
		}
		score += 50 * float64(found) / float64(len(gameWords))
	}
	if strings.HasPrefix(prodNorm, gameNorm) {
		score += 10
	}

	for _, phrase := range boardGamePhrases {
		if strings.Contains(lowerTitle, phrase) {
			score += 15
			break
		}
	}

	maker := strings.ToLower(p.Brand + " " + p.Manufacturer + " " + p.Title)
	for _, pub := range knownPublishers {
		if strings.Contains(maker, pub) {
			score += 15
			break
		}
	}

	if p.Amount != nil {
		if *p.Amount >= minPrice && *p.Amount <= maxPrice {
			score += 10
		} else {
			score -= 20
		}
	}

	return score
}

// Threshold returns the minimum acceptable score for a game title.
func Threshold(title string) float64 {
	if len(matching.SignificantWords(matching.Normalize(title))) <= 1 {
		return MinScoreShort
	}
	return MinScore
}

// SelectBest returns the top-scoring product if it clears the title's
// threshold.
func SelectBest(title string, products []Product) (*Product, float64, bool) {
	best, bestScore := -1, 0.0
	for i := range products {
		s := ScoreProduct(title, products[i])
		if best < 0 || s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < Threshold(title) {
		return nil, bestScore, false
	}
	return &products[best], bestScore, true
}
