package reviewapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CodeReviewRequest is the JSON body of the text analysis endpoint.
type CodeReviewRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

// UploadFile is the payload of the file analysis endpoint.
type UploadFile struct {
	Name    string
	Content []byte
	// ContentType is sent as the part's Content-Type when set.
	ContentType string
}

// AnalysisResult is the quality assessment returned by the review service.
type AnalysisResult struct {
	OverallScore     float64   `json:"overall_score"`
	Breakdown        Breakdown `json:"breakdown"`
	Recommendations  []string  `json:"recommendations"`
	DetailedFeedback string    `json:"detailed_feedback"`
	Language         string    `json:"language,omitempty"`
	FileName         string    `json:"file_name,omitempty"`
}

// BreakdownEntry is a single category score.
type BreakdownEntry struct {
	Category string
	Score    float64
}

// Breakdown keeps category scores in the order the service sent them.
type Breakdown []BreakdownEntry

// MarshalJSON writes the breakdown as a JSON object preserving entry order.
func (b Breakdown) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("{}"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Category)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry.Score)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of numeric scores keeping key order. A repeated key
// keeps its first position and takes the last value.
func (b *Breakdown) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*b = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("breakdown must be an object")
	}

	entries := Breakdown{}
	positions := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		category, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("breakdown key must be a string")
		}

		var score float64
		if err := dec.Decode(&score); err != nil {
			return fmt.Errorf("breakdown %q: %w", category, err)
		}
		if index, seen := positions[category]; seen {
			entries[index].Score = score
			continue
		}
		positions[category] = len(entries)
		entries = append(entries, BreakdownEntry{Category: category, Score: score})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*b = entries
	return nil
}

// Get returns the score recorded for category.
func (b Breakdown) Get(category string) (float64, bool) {
	for _, entry := range b {
		if entry.Category == category {
			return entry.Score, true
		}
	}
	return 0, false
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}
