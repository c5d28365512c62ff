package domain

import "encoding/json"

// OptionalScore is a score that may be "not applicable".
// The zero value is not applicable.
type OptionalScore struct {
	Value float64
	Valid bool
}

func ScoreOf(v float64) OptionalScore { return OptionalScore{Value: v, Valid: true} }

func NotApplicable() OptionalScore { return OptionalScore{} }

// MarshalJSON encodes a not-applicable score as null.
func (s OptionalScore) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

func (s *OptionalScore) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = OptionalScore{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = ScoreOf(v)
	return nil
}

// Score breakdown for a route. Numeric scores lie in [0,100].
// VisualRaw keeps the un-normalized mean image similarity in [0,1] so the
// batch can be re-normalized without refetching images.
type RouteScore struct {
	Route      Route         `json:"route"`
	Visual     float64       `json:"visual_score"`
	VisualRaw  float64       `json:"visual_raw"`
	Efficiency float64       `json:"efficiency_score"`
	Preference OptionalScore `json:"preference_score"`
	Overall    float64       `json:"overall_score"`
	ImagesUsed int           `json:"images_used"`
}
