// Package presenter turns analysis results into a renderable structure.
package presenter

import (
	"math"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/gema-code-review/pkg/reviewapi"
)

// PositiveThreshold is the lowest overall score styled as positive.
const PositiveThreshold = 70

// Tone drives result styling only.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
)

// BreakdownRow is one category line of the breakdown panel.
type BreakdownRow struct {
	Category string `json:"category"`
	Score    string `json:"score"`
	Label    string `json:"label"`
}

// Recommendation is one item of the ordered recommendation list.
type Recommendation struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// PresentationModel is what the results panel renders.
type PresentationModel struct {
	OverallScore         string           `json:"overall_score"`
	OverallTone          Tone             `json:"overall_tone"`
	Breakdown            []BreakdownRow   `json:"breakdown"`
	Recommendations      []Recommendation `json:"recommendations"`
	DetailedFeedback     string           `json:"detailed_feedback"`
	DetailedFeedbackHTML string           `json:"detailed_feedback_html"`
}

var feedbackPolicy = newFeedbackPolicy()

func newFeedbackPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("br")
	return policy
}

// FormatScore rounds half up to a whole percentage.
func FormatScore(n float64) string {
	return strconv.FormatInt(int64(math.Floor(n+0.5)), 10) + "%"
}

// ToneFor classifies an overall score.
func ToneFor(overall float64) Tone {
	if overall >= PositiveThreshold {
		return TonePositive
	}
	return ToneNegative
}

// Present builds the presentation model for result.
func Present(result reviewapi.AnalysisResult) PresentationModel {
	rows := make([]BreakdownRow, 0, len(result.Breakdown))
	for _, entry := range result.Breakdown {
		score := FormatScore(entry.Score)
		rows = append(rows, BreakdownRow{
			Category: entry.Category,
			Score:    score,
			Label:    entry.Category + ": " + score,
		})
	}

	recommendations := make([]Recommendation, 0, len(result.Recommendations))
	for i, text := range result.Recommendations {
		recommendations = append(recommendations, Recommendation{Index: i + 1, Text: text})
	}

	return PresentationModel{
		OverallScore:         FormatScore(result.OverallScore),
		OverallTone:          ToneFor(result.OverallScore),
		Breakdown:            rows,
		Recommendations:      recommendations,
		DetailedFeedback:     result.DetailedFeedback,
		DetailedFeedbackHTML: feedbackHTML(result.DetailedFeedback),
	}
}

func feedbackHTML(feedback string) string {
	withBreaks := strings.ReplaceAll(strings.ReplaceAll(feedback, "\r\n", "\n"), "\n", "<br>")
	return feedbackPolicy.Sanitize(withBreaks)
}
