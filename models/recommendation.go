package models

// Strategies reported on a RecommendationResponse.
const (
	StrategyFullDatabase = "full_database"
	StrategySampleMatch  = "sample_match"
	StrategyFallback     = "fallback"
)

// Specs is the players/playtime/complexity block of a recommendation.
type Specs struct {
	Players    *string  `json:"players"`
	Playtime   *string  `json:"playtime"`
	Complexity *float64 `json:"complexity"`
}

// PriceBlock is the price information attached to a recommendation.
type PriceBlock struct {
	Amount   *float64 `json:"amount"`
	Currency *string  `json:"currency,omitempty"`
	Store    *string  `json:"store"`
	URL      *string  `json:"url"`
	Source   string   `json:"source,omitempty"`
}

// Recommendation is a single user-facing suggestion.
type Recommendation struct {
	GameID     *string    `json:"gameId"`
	Title      string     `json:"title" validate:"required"`
	Pitch      string     `json:"pitch" validate:"required"`
	WhyItFits  []string   `json:"whyItFits" validate:"min=2,max=4,dive,required"`
	Specs      Specs      `json:"specs"`
	Mechanics  []string   `json:"mechanics"`
	Theme      *string    `json:"theme"`
	Price      PriceBlock `json:"price"`
	Alternates []string   `json:"alternates" validate:"max=3"`
	Confidence float64    `json:"confidence,omitempty"`
}

// RecommendationResponse is the payload returned by the recommend endpoint.
type RecommendationResponse struct {
	Prompt           string           `json:"prompt"`
	Strategy         string           `json:"strategy"`
	Recommendations  []Recommendation `json:"recommendations"`
	InterpretedNeeds []string         `json:"interpretedNeeds"`
	ValidationIssues []string         `json:"validationIssues,omitempty"`
}
