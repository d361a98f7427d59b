package triage

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	markerCategory   = "CATEGORY:"
	markerConfidence = "CONFIDENCE:"
	markerResponse   = "RESPONSE:"

	// minResponseLines is the shortest response trusted above shortResponseCap.
	minResponseLines  = 5
	shortResponseCap  = 0.5
	missingSectionCap = 0.6
)

// requiredSections must each appear in at least one response line.
var requiredSections = []string{"Understanding:", "Diagnosis:", "Steps to Resolve:"}

// FailureKind tells why an analysis fell back to the fixed failure tuple.
type FailureKind string

const (
	FailureNone  FailureKind = ""
	FailureModel FailureKind = "model"
	FailureParse FailureKind = "parse"
)

// FallbackResponse is returned to the submitter whenever analysis fails.
const FallbackResponse = "I apologize, but I'm having trouble analyzing this ticket."

// Analysis is the structured result of one model call.
type Analysis struct {
	Category    string
	HasCategory bool
	// RawConfidence is the model's self-reported score before completeness caps.
	RawConfidence float64
	Confidence    float64
	Lines         []string
	Response      string
	Failure       FailureKind
}

// Failed reports whether the analysis is the fallback tuple.
func (a Analysis) Failed() bool {
	return a.Failure != FailureNone
}

// Tuple returns (response text, confidence, category) where category is empty
// when the model did not report one.
func (a Analysis) Tuple() (string, float64, string) {
	return a.Response, a.Confidence, a.Category
}

// FallbackAnalysis is the result used when the model or the parser fails.
func FallbackAnalysis(kind FailureKind) Analysis {
	return Analysis{
		Category:    "error",
		HasCategory: true,
		Confidence:  0,
		Response:    FallbackResponse,
		Failure:     kind,
	}
}

// ParseError reports a CONFIDENCE value that is not a number.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse confidence %q: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseAnalysis turns raw completion text into an Analysis and applies the
// completeness caps to the reported confidence.
func ParseAnalysis(raw string) (Analysis, error) {
	var (
		result    Analysis
		inSection bool
	)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, markerCategory):
			category := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(line, markerCategory)))
			result.Category = category
			result.HasCategory = category != ""
		case strings.HasPrefix(line, markerConfidence):
			value := strings.TrimSpace(strings.TrimPrefix(line, markerConfidence))
			confidence, err := parseConfidence(value)
			if err != nil {
				return Analysis{}, err
			}
			result.RawConfidence = confidence
		case strings.HasPrefix(line, markerResponse):
			inSection = true
		case inSection && line != "":
			result.Lines = append(result.Lines, line)
		}
	}

	result.Confidence = scoreCompleteness(result.RawConfidence, result.Lines)
	result.Response = strings.Join(result.Lines, "\n")
	return result, nil
}

// parseConfidence parses a score and clamps it to [0, 1].
func parseConfidence(value string) (float64, error) {
	confidence, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &ParseError{Value: value, Err: err}
	}
	if math.IsNaN(confidence) {
		return 0, &ParseError{Value: value, Err: strconv.ErrSyntax}
	}
	return math.Min(math.Max(confidence, 0), 1), nil
}

func scoreCompleteness(confidence float64, lines []string) float64 {
	if len(lines) < minResponseLines {
		confidence = math.Min(confidence, shortResponseCap)
	}
	for _, section := range requiredSections {
		if !containsSection(lines, section) {
			confidence = math.Min(confidence, missingSectionCap)
		}
	}
	return confidence
}

func containsSection(lines []string, section string) bool {
	for _, line := range lines {
		if strings.Contains(line, section) {
			return true
		}
	}
	return false
}
