package services

import (
	"fmt"
	"strings"

	"boardgame-recommender/models"
	"boardgame-recommender/sampling"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titleCase allocates a Caser per call; Casers are not safe for concurrent use.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

var (
	familyPitches = []string{
		"%s is a crowd-pleaser that gets everyone at the table laughing without a long rules explanation.",
		"%s hits the sweet spot for mixed ages: easy to teach, with enough choices to keep grown-ups engaged.",
	}
	datePitches = []string{
		"%s makes for a great evening for two, with tense decisions and plenty to talk about afterwards.",
		"%s shines with a partner: quick to set up and full of back-and-forth moments.",
	}
	partyPitches = []string{
		"%s scales up to a lively group and keeps everyone involved on every turn.",
		"%s turns a big group into one noisy table, and nobody sits out for long.",
	}
	strategyPitches = []string{
		"%s rewards careful planning and gives you meaningful decisions every single turn.",
		"%s is a deep, satisfying puzzle for players who love to out-think the table.",
	}
	quickPitches = []string{
		"%s delivers a full game experience in a short session, perfect when time is tight.",
		"%s sets up fast and plays fast, so you can fit in a rematch.",
	}
	defaultPitches = []string{
		"%s is a standout pick that fits what you're looking for.",
		"%s is a well-loved game that brings something fresh to the table.",
		"%s offers a great mix of accessibility and depth.",
		"%s is the kind of game that earns a permanent spot on the shelf.",
	}
)

// pitchFor picks a template conditioned on the prompt context. The default
// set rotates by seed+position so output is reproducible.
func pitchFor(g *models.Game, h sampling.Hints, position int, seed uint64) string {
	var set []string
	switch {
	case h.Family:
		set = familyPitches
	case h.Date:
		set = datePitches
	case h.Party:
		set = partyPitches
	case h.Strategy:
		set = strategyPitches
	case h.Quick:
		set = quickPitches
	default:
		set = defaultPitches
	}
	return fmt.Sprintf(set[(int(seed%uint64(len(set)))+position)%len(set)], g.Title)
}

// reasonsFor builds 2 to 4 "why it fits" bullets from catalog facts,
// leading with the hints the game satisfies.
func reasonsFor(g *models.Game, h sampling.Hints) []string {
	var out []string
	add := func(s string) {
		if len(out) < 4 && s != "" {
			out = append(out, s)
		}
	}

	if h.ComplexityBand != "" && g.ComplexityBand() == h.ComplexityBand {
		add(fmt.Sprintf("%s weight (%.1f/5), matching the complexity you asked for", titleCase(h.ComplexityBand), *g.Complexity))
	}
	if h.Players > 0 && g.SupportsPlayers(h.Players) {
		add(fmt.Sprintf("Plays well with %d players", h.Players))
	}
	for _, t := range h.Themes {
		if strings.EqualFold(g.Theme, t) || g.HasTag(t) {
			add(fmt.Sprintf("%s theme, just as requested", titleCase(t)))
			break
		}
	}
	for _, m := range h.Mechanics {
		if g.HasMechanic(m) {
			add(fmt.Sprintf("Built around %s", m))
			break
		}
	}
	if h.Family && g.HasTag("family") {
		add("Family friendly and easy to teach")
	}

	if g.Players != "" {
		add(fmt.Sprintf("Supports %s players", g.Players))
	}
	if g.Playtime != "" {
		add(fmt.Sprintf("Plays in about %s", g.Playtime))
	}
	if len(g.Mechanics) > 0 {
		add("Mechanics: " + strings.Join(firstN(g.Mechanics, 3), ", "))
	}
	if g.Theme != "" {
		add(titleCase(g.Theme) + " setting")
	}
	if len(out) < 2 {
		add("A highly rated title from our catalog")
	}
	if len(out) < 2 {
		add("Great replay value")
	}
	return out
}

func firstN(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
