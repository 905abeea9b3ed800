package models

import "strings"

// Confidence is the model's self-reported certainty: low, medium or high.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Suggestion is a single suggested value with its confidence.
type Suggestion struct {
	Suggestion string     `json:"suggestion"`
	Confidence Confidence `json:"confidence"`
}

// SuggestionList holds several suggestions sharing one confidence.
type SuggestionList struct {
	Suggestions []any      `json:"suggestions"`
	Confidence  Confidence `json:"confidence"`
}

// ModelAnswer is the structured design analysis attached to a task as gpt_answer.
type ModelAnswer struct {
	BackgroundColor   Suggestion     `json:"background_color"`
	TextElements      SuggestionList `json:"text_elements"`
	VisualElements    SuggestionList `json:"visual_elements"`
	ReviewPoints      []string       `json:"review_points"`
	OverallConfidence Confidence     `json:"overall_confidence"`
}

// Normalize lower-cases every confidence value and replaces nil lists with empty ones.
func (a *ModelAnswer) Normalize() {
	a.BackgroundColor.Confidence = normalizeConfidence(a.BackgroundColor.Confidence)
	a.TextElements.Confidence = normalizeConfidence(a.TextElements.Confidence)
	a.VisualElements.Confidence = normalizeConfidence(a.VisualElements.Confidence)
	a.OverallConfidence = normalizeConfidence(a.OverallConfidence)

	if a.TextElements.Suggestions == nil {
		a.TextElements.Suggestions = []any{}
	}
	if a.VisualElements.Suggestions == nil {
		a.VisualElements.Suggestions = []any{}
	}
	if a.ReviewPoints == nil {
		a.ReviewPoints = []string{}
	}
}

func normalizeConfidence(c Confidence) Confidence {
	return Confidence(strings.ToLower(strings.TrimSpace(string(c))))
}
