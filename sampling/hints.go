// Package sampling builds bounded, representative subsets of a large catalog
// and extracts the keyword hints a prompt carries.
package sampling

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"boardgame-recommender/models"
)

// Hints are the needs extracted from a free-text prompt.
type Hints struct {
	Players        int    // 0 when unknown
	Solo           bool
	Party          bool
	ComplexityBand string // models.Complexity* or ""
	Themes         []string
	Mechanics      []string
	Family         bool
	Date           bool
	Strategy       bool
	Quick          bool
}

// Empty reports whether nothing useful was extracted.
func (h Hints) Empty() bool {
	return h.Players == 0 && !h.Solo && !h.Party && h.ComplexityBand == "" &&
		len(h.Themes) == 0 && len(h.Mechanics) == 0 &&
		!h.Family && !h.Date && !h.Strategy && !h.Quick
}

// Tags renders the hints as short human-readable needs.
func (h Hints) Tags() []string {
	var tags []string
	switch {
	case h.Solo:
		tags = append(tags, "solo play")
	case h.Players > 0:
		tags = append(tags, strconv.Itoa(h.Players)+" players")
	}
	if h.Party {
		tags = append(tags, "party-sized group")
	}
	if h.ComplexityBand != "" {
		tags = append(tags, h.ComplexityBand+" complexity")
	}
	for _, t := range h.Themes {
		tags = append(tags, t+" theme")
	}
	tags = append(tags, h.Mechanics...)
	if h.Family {
		tags = append(tags, "family friendly")
	}
	if h.Date {
		tags = append(tags, "date night")
	}
	if h.Strategy {
		tags = append(tags, "strategic depth")
	}
	if h.Quick {
		tags = append(tags, "short playtime")
	}
	return tags
}

// ThemeKeywords maps a catalog theme to the prompt words that suggest it.
var ThemeKeywords = map[string][]string{
	"fantasy":    {"fantasy", "dragon", "magic", "wizard", "elves", "dungeon", "quest"},
	"sci-fi":     {"sci-fi", "scifi", "space", "alien", "galaxy", "planet", "robot", "future"},
	"nature":     {"nature", "animal", "bird", "birds", "garden", "forest", "wildlife", "ecosystem"},
	"horror":     {"horror", "zombie", "cthulhu", "spooky", "scary", "monster"},
	"historical": {"history", "historical", "medieval", "ancient", "rome", "egypt", "war"},
	"economic":   {"economic", "economy", "trade", "trading", "market", "business", "money"},
	"mystery":    {"mystery", "detective", "murder", "crime", "clue"},
	"adventure":  {"adventure", "explore", "exploration", "treasure", "pirate"},
	"abstract":   {"abstract", "pattern", "puzzle", "tiles"},
	"trains":     {"train", "trains", "railroad", "railway"},
}

// MechanicKeywords maps a catalog mechanic to the prompt words that suggest it.
var MechanicKeywords = map[string][]string{
	"Cooperative":      {"co-op", "coop", "cooperative", "together", "team up", "work together"},
	"Deck Building":    {"deck building", "deckbuilding", "deck-building", "deckbuilder"},
	"Worker Placement": {"worker placement", "workers"},
	"Drafting":         {"draft", "drafting"},
	"Social Deduction": {"bluff", "bluffing", "deduction", "hidden role", "traitor", "werewolf"},
	"Area Control":     {"area control", "territory", "conquer", "area majority"},
	"Dice Rolling":     {"dice", "roll"},
	"Tile Placement":   {"tile placement", "tile laying", "tile-laying"},
	"Engine Building":  {"engine", "engine building", "combo"},
	"Trick Taking":     {"trick taking", "trick-taking"},
	"Negotiation":      {"negotiation", "negotiate", "trading"},
	"Legacy":           {"legacy", "campaign"},
}

var (
	lightPhrases  = []string{"nothing too heavy", "not too heavy", "not heavy", "nothing heavy", "not too complex", "simple", "easy", "light", "beginner", "casual", "gateway", "newbie", "new to"}
	heavyPhrases  = []string{"heavy", "complex", "deep", "brain burner", "brain-burner", "crunchy", "thinky", "challenging"}
	mediumPhrases = []string{"medium", "moderate", "midweight", "mid-weight", "middle weight"}

	soloPhrases     = []string{"solo", "alone", "by myself", "single player", "single-player", "one player"}
	couplePhrases   = []string{"couple", "two of us", "my partner", "my wife", "my husband", "girlfriend", "boyfriend", "2 player", "two player"}
	partyPhrases    = []string{"party", "large group", "big group", "lots of people", "crowd"}
	familyPhrases   = []string{"family", "kids", "children", "child", "son", "daughter"}
	datePhrases     = []string{"date", "romantic", "anniversary", "couple"}
	strategyPhrases = []string{"strategy", "strategic", "tactical", "tactics", "thinky"}
	quickPhrases    = []string{"quick", "short", "fast", "filler", "15 minutes", "20 minutes", "lunch"}

	playersPattern = regexp.MustCompile(`\b(\d{1,2})\s*(?:-|to)?\s*(?:\d{1,2}\s*)?(?:players?|people|persons?|ppl|of us|friends|gamers)\b`)
	wordNumbers    = map[string]int{"two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7, "eight": 8}
	wordPlayers    = regexp.MustCompile(`\b(two|three|four|five|six|seven|eight)\s+(?:players?|people|of us|friends)\b`)
)

// ExtractHints derives complexity, theme, mechanic and player-count hints
// from a prompt using fixed keyword tables.
func ExtractHints(prompt string) Hints {
	p := " " + strings.ToLower(prompt) + " "
	var h Hints

	switch {
	case containsAny(p, lightPhrases):
		h.ComplexityBand = models.ComplexityLight
	case containsAny(p, heavyPhrases):
		h.ComplexityBand = models.ComplexityHeavy
	case containsAny(p, mediumPhrases):
		h.ComplexityBand = models.ComplexityMedium
	}

	h.Themes = matchTable(p, ThemeKeywords)
	h.Mechanics = matchTable(p, MechanicKeywords)

	if m := playersPattern.FindStringSubmatch(p); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n <= 20 {
			h.Players = n
		}
	} else if m := wordPlayers.FindStringSubmatch(p); m != nil {
		h.Players = wordNumbers[m[1]]
	}

	switch {
	case containsAny(p, soloPhrases):
		h.Solo = true
		h.Players = 1
	case h.Players == 0 && containsAny(p, couplePhrases):
		h.Players = 2
	}
	if containsAny(p, partyPhrases) || h.Players >= 6 {
		h.Party = true
	}

	h.Family = containsAny(p, familyPhrases)
	h.Date = containsAny(p, datePhrases)
	h.Strategy = containsAny(p, strategyPhrases)
	h.Quick = containsAny(p, quickPhrases)

	return h
}

// MatchesGame counts how many hints the game satisfies.
func (h Hints) MatchesGame(g *models.Game) int {
	hits := 0
	if h.ComplexityBand != "" && g.ComplexityBand() == h.ComplexityBand {
		hits++
	}
	for _, t := range h.Themes {
		if strings.EqualFold(g.Theme, t) || g.HasTag(t) {
			hits++
		}
	}
	for _, m := range h.Mechanics {
		if g.HasMechanic(m) {
			hits++
		}
	}
	if h.Players > 0 && g.SupportsPlayers(h.Players) {
		hits++
	}
	if h.Party && g.HasTag("party") {
		hits++
	}
	return hits
}

func matchTable(p string, table map[string][]string) []string {
	var out []string
	for key, words := range table {
		if containsAny(p, words) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// containsAny matches whole phrases; p is padded with spaces by the caller.
func containsAny(p string, phrases []string) bool {
	for _, phrase := range phrases {
		if containsPhrase(p, phrase) {
			return true
		}
	}
	return false
}

func containsPhrase(p, phrase string) bool {
	idx := 0
	for {
		i := strings.Index(p[idx:], phrase)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(phrase)
		if isBoundary(p, start-1) && isBoundary(p, end) {
			return true
		}
		idx = start + 1
	}
}

func isBoundary(p string, i int) bool {
	if i < 0 || i >= len(p) {
		return true
	}
	c := p[i]
	return !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9')
}
