// models/game.go
package models

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

// Complexity bands used by the sampler, the fallback scorer and catalog filters.
const (
	ComplexityLight  = "light"  // <= 2.5
	ComplexityMedium = "medium" // 2.5 – 3.5
	ComplexityHeavy  = "heavy"  // >= 3.5
)

// Game is a catalog entry. Rows are created by the batch importer; this
// service only reads them.
type Game struct {
	ID            string   `json:"id" gorm:"primaryKey"`
	Title         string   `json:"title" gorm:"not null;index"`
	Players       string   `json:"players"`  // free-form, e.g. "2–4"
	Playtime      string   `json:"playtime"` // free-form, e.g. "30-60 min"
	MinPlayers    *int     `json:"min_players,omitempty"`
	MaxPlayers    *int     `json:"max_players,omitempty"`
	Complexity    *float64 `json:"complexity,omitempty" gorm:"index"` // 1.0 – 5.0
	Mechanics     []string `json:"mechanics" gorm:"type:jsonb;serializer:json"`
	Theme         string   `json:"theme" gorm:"index"`
	Tags          []string `json:"tags" gorm:"type:jsonb;serializer:json"`
	Publisher     string   `json:"publisher,omitempty"`
	YearPublished int      `json:"year_published,omitempty"`
	Description   string   `json:"description"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComplexityBand classifies the game's weight. Games without a rating
// have no band.
func (g *Game) ComplexityBand() string {
	if g.Complexity == nil {
		return ""
	}
	return BandFor(*g.Complexity)
}

// BandFor maps a complexity rating to its band.
func BandFor(c float64) string {
	switch {
	case c <= 2.5:
		return ComplexityLight
	case c >= 3.5:
		return ComplexityHeavy
	default:
		return ComplexityMedium
	}
}

// playerRange reads the free-form Players text: "4", "2-5", "2–4",
// "2 to 6", "3+".
var playerRange = regexp.MustCompile(`^\s*(\d{1,2})\s*(?:(?:-|–|—|to)\s*(\d{1,2})|(\+))?`)

// PlayerRange returns the supported player counts. The MinPlayers and
// MaxPlayers columns win when both are set; otherwise Players is parsed.
// An open range ("3+") has no upper bound.
func (g *Game) PlayerRange() (lo, hi int, ok bool) {
	if g.MinPlayers != nil && g.MaxPlayers != nil {
		return *g.MinPlayers, *g.MaxPlayers, true
	}
	m := playerRange.FindStringSubmatch(g.Players)
	if m == nil {
		return 0, 0, false
	}
	lo, _ = strconv.Atoi(m[1])
	switch {
	case m[2] != "":
		hi, _ = strconv.Atoi(m[2])
	case m[3] != "":
		hi = math.MaxInt
	default:
		hi = lo
	}
	if lo <= 0 || hi < lo {
		return 0, 0, false
	}
	return lo, hi, true
}

// SupportsPlayers reports whether n players fit the game's player range.
// Games with no known range are treated as unknown (false).
func (g *Game) SupportsPlayers(n int) bool {
	lo, hi, ok := g.PlayerRange()
	return ok && n >= lo && n <= hi
}

// HasTag reports whether the game carries the tag (case-insensitive).
func (g *Game) HasTag(tag string) bool {
	return containsFold(g.Tags, tag)
}

// HasMechanic reports whether the game lists the mechanic (case-insensitive).
func (g *Game) HasMechanic(mechanic string) bool {
	return containsFold(g.Mechanics, mechanic)
}
