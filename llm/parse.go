package llm

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// ParsedRecommendation is one item of the provider's "recommendations"
// array after schema validation. Only Title and Pitch are required.
type ParsedRecommendation struct {
	Title      string      `json:"title" validate:"required,max=200"`
	Pitch      string      `json:"pitch" validate:"required,max=2000"`
	Reasoning  FlexStrings `json:"reasoning"`
	WhyItFits  FlexStrings `json:"whyItFits"`
	Mechanics  FlexStrings `json:"mechanics"`
	Players    FlexString  `json:"players"`
	Playtime   FlexString  `json:"playtime"`
	Complexity *FlexFloat  `json:"complexity" validate:"omitempty"`
}

// Reasons merges whyItFits and reasoning into a single bullet list.
func (p ParsedRecommendation) Reasons() []string {
	out := make([]string, 0, len(p.WhyItFits)+len(p.Reasoning))
	for _, r := range append(append([]string{}, p.WhyItFits...), p.Reasoning...) {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

type envelope struct {
	Recommendations []json.RawMessage `json:"recommendations" validate:"required,min=1"`
}

// ParseResult is the validated content of a provider reply.
type ParseResult struct {
	Items  []ParsedRecommendation
	Issues []string
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ParseRecommendations is the single boundary where loosely-shaped provider
// output becomes typed data. Items failing the schema are dropped and
// reported as issues; a reply with no valid items is a schema error.
func ParseRecommendations(response string) (*ParseResult, error) {
	raw, err := ExtractJSON(response)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, NewError(ErrorTypeParse, "malformed recommendations object", false, err)
	}
	if err := Validator().Struct(env); err != nil {
		return nil, NewError(ErrorTypeSchema, "missing recommendations array", false, err)
	}

	res := &ParseResult{}
	for i, item := range env.Recommendations {
		var rec ParsedRecommendation
		if err := json.Unmarshal(item, &rec); err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("item %d: malformed: %v", i, err))
			continue
		}
		rec.Title = strings.TrimSpace(rec.Title)
		rec.Pitch = strings.TrimSpace(rec.Pitch)
		if err := Validator().Struct(rec); err != nil {
			res.Issues = append(res.Issues, fmt.Sprintf("item %d (%q): %v", i, rec.Title, err))
			continue
		}
		res.Items = append(res.Items, rec)
	}

	if len(res.Items) == 0 {
		return nil, NewError(ErrorTypeSchema, "no valid recommendations", false, nil)
	}
	return res, nil
}

// FlexStrings accepts either a JSON string or an array of strings.
type FlexStrings []string

func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("expected string or string array: %w", err)
	}
	if single == "" {
		*f = nil
		return nil
	}
	*f = FlexStrings{single}
	return nil
}

// FlexString accepts a JSON string or number, e.g. "2-4" or 4.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

// FlexFloat accepts a JSON number or a numeric string such as "2.5".
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number: %w", err)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.Split(s, "/")[0]), 64)
	if err != nil {
		return fmt.Errorf("expected number, got %q", s)
	}
	*f = FlexFloat(v)
	return nil
}
