package models

import "time"

// Price sources reported alongside a resolved price.
const (
	PriceSourceCache    = "cache"
	PriceSourceAPI      = "api"
	PriceSourceFallback = "fallback"
)

// PriceRecord is the cached marketplace price for a game at one store.
// (game_id, store) is unique; writes go through an ON CONFLICT upsert.
type PriceRecord struct {
	ID         string   `json:"id" gorm:"primaryKey"`
	GameID     string   `json:"game_id" gorm:"not null;uniqueIndex:idx_price_game_store"`
	Store      string   `json:"store" gorm:"not null;uniqueIndex:idx_price_game_store"`
	Amount     *float64 `json:"amount,omitempty"` // nil when only a listing link is known
	Currency   string   `json:"currency"`
	URL        string   `json:"url"`
	ImageURL   string   `json:"image_url,omitempty"`
	ExternalID string   `json:"external_id,omitempty"` // ASIN or reference-site id

	UpdatedAt time.Time `json:"updated_at" gorm:"index"`
}

// Age returns how old the record is relative to now.
func (p *PriceRecord) Age(now time.Time) time.Duration {
	return now.Sub(p.UpdatedAt)
}

// ResolvedPrice is a price lookup result annotated with where it came from.
type ResolvedPrice struct {
	GameID    string    `json:"gameId"`
	Title     string    `json:"title"`
	Store     string    `json:"store"`
	Amount    *float64  `json:"amount"`
	Currency  string    `json:"currency,omitempty"`
	URL       string    `json:"url"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Source    string    `json:"source"` // cache | api | fallback
	UpdatedAt time.Time `json:"updatedAt"`
}
