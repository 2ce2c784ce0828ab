package sampling

import (
	"math/rand/v2"
	"sort"
	"strings"

	"boardgame-recommender/models"
)

// Strategies reported by Sample.
const (
	StrategyAllGames = "all_games"
	StrategySampled  = "sampled"
)

// Pool shares of the target size. Random fill also absorbs any shortfall.
const (
	targetedShare   = 0.40
	complexityShare = 0.30
	themeShare      = 0.20
	maxThemes       = 8
)

// Result is a sample plus a breakdown of where its games came from.
type Result struct {
	Games    []models.Game  `json:"games"`
	Strategy string         `json:"strategy"`
	Pools    map[string]int `json:"pools"`
}

// Sampler draws stratified samples. The random source makes the random
// fill reproducible when seeded.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler returns a sampler seeded for reproducible output.
func NewSampler(seed uint64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Sample is a convenience wrapper using a fixed seed.
func Sample(prompt string, catalog []models.Game, targetSize int) Result {
	return NewSampler(1).Sample(prompt, catalog, targetSize)
}

// Sample returns at most targetSize games without duplicate ids. Catalogs
// that already fit are returned whole. Larger catalogs are sampled as the
// union of four disjoint pools: prompt-targeted, complexity-stratified,
// theme-diverse and random fill.
func (s *Sampler) Sample(prompt string, catalog []models.Game, targetSize int) Result {
	if targetSize <= 0 {
		return Result{Strategy: StrategySampled, Pools: map[string]int{}}
	}
	if len(catalog) <= targetSize {
		return Result{
			Games:    dedupe(catalog),
			Strategy: StrategyAllGames,
			Pools:    map[string]int{"all": len(catalog)},
		}
	}

	b := &builder{
		target:   targetSize,
		selected: make(map[string]struct{}, targetSize),
		pools:    make(map[string]int, 4),
	}

	hints := ExtractHints(prompt)
	b.add("targeted", targeted(hints, catalog), int(float64(targetSize)*targetedShare))
	s.addComplexityBands(b, catalog, int(float64(targetSize)*complexityShare))
	s.addThemes(b, catalog, int(float64(targetSize)*themeShare))

	rest := make([]models.Game, 0, len(catalog))
	for _, g := range catalog {
		if !b.has(g.ID) {
			rest = append(rest, g)
		}
	}
	s.rng.Shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })
	b.add("random", rest, b.target-len(b.games))

	return Result{Games: b.games, Strategy: StrategySampled, Pools: b.pools}
}

type builder struct {
	target   int
	games    []models.Game
	selected map[string]struct{}
	pools    map[string]int
}

func (b *builder) has(id string) bool {
	_, ok := b.selected[id]
	return ok
}

// add takes up to quota unseen games from candidates, never exceeding target.
func (b *builder) add(pool string, candidates []models.Game, quota int) int {
	taken := 0
	for i := range candidates {
		if taken >= quota || len(b.games) >= b.target {
			break
		}
		g := candidates[i]
		if b.has(g.ID) {
			continue
		}
		b.selected[g.ID] = struct{}{}
		b.games = append(b.games, g)
		taken++
	}
	b.pools[pool] += taken
	return taken
}

// targeted ranks games by how many prompt hints they satisfy; games that
// satisfy none are excluded.
func targeted(h Hints, catalog []models.Game) []models.Game {
	if h.Empty() {
		return nil
	}
	type scored struct {
		game models.Game
		hits int
	}
	var hits []scored
	for i := range catalog {
		if n := h.MatchesGame(&catalog[i]); n > 0 {
			hits = append(hits, scored{catalog[i], n})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].hits > hits[j].hits })

	out := make([]models.Game, len(hits))
	for i := range hits {
		out[i] = hits[i].game
	}
	return out
}

func (s *Sampler) addComplexityBands(b *builder, catalog []models.Game, quota int) {
	bands := []string{models.ComplexityLight, models.ComplexityMedium, models.ComplexityHeavy}
	byBand := make(map[string][]models.Game, len(bands))
	for _, g := range catalog {
		if band := g.ComplexityBand(); band != "" && !b.has(g.ID) {
			byBand[band] = append(byBand[band], g)
		}
	}

	per := quota / len(bands)
	extra := quota % len(bands)
	for i, band := range bands {
		games := byBand[band]
		s.rng.Shuffle(len(games), func(i, j int) { games[i], games[j] = games[j], games[i] })
		n := per
		if i < extra {
			n++
		}
		b.add("complexity", games, n)
	}
}

func (s *Sampler) addThemes(b *builder, catalog []models.Game, quota int) {
	byTheme := make(map[string][]models.Game)
	for _, g := range catalog {
		theme := strings.ToLower(strings.TrimSpace(g.Theme))
		if theme == "" || b.has(g.ID) {
			continue
		}
		byTheme[theme] = append(byTheme[theme], g)
	}
	if len(byTheme) == 0 || quota <= 0 {
		return
	}

	// largest themes first, alphabetical on ties
	themes := make([]string, 0, len(byTheme))
	for t := range byTheme {
		themes = append(themes, t)
	}
	sort.Slice(themes, func(i, j int) bool {
		if len(byTheme[themes[i]]) != len(byTheme[themes[j]]) {
			return len(byTheme[themes[i]]) > len(byTheme[themes[j]])
		}
		return themes[i] < themes[j]
	})
	if len(themes) > maxThemes {
		themes = themes[:maxThemes]
	}

	per := max(quota/len(themes), 1)
	remaining := quota
	for _, t := range themes {
		if remaining <= 0 {
			break
		}
		games := byTheme[t]
		s.rng.Shuffle(len(games), func(i, j int) { games[i], games[j] = games[j], games[i] })
		remaining -= b.add("theme", games, min(per, remaining))
	}
}

func dedupe(games []models.Game) []models.Game {
	seen := make(map[string]struct{}, len(games))
	out := make([]models.Game, 0, len(games))
	for _, g := range games {
		if _, ok := seen[g.ID]; ok {
			continue
		}
		seen[g.ID] = struct{}{}
		out = append(out, g)
	}
	return out
}
