// Package recommend turns per-type error counts into a prioritized list of
// remediation suggestions.
package recommend

import (
	"fmt"
	"sort"

	"logtriage/internal/classify"
)

// NoErrorsFound is the single recommendation emitted for an empty window.
const NoErrorsFound = "no errors found in window"

// Recommendation is one suggested action together with the evidence count
// that produced it.
type Recommendation struct {
	Type    classify.ErrorType `json:"error_type"`
	Count   int                `json:"count"`
	Urgency string             `json:"urgency"`
	Action  string             `json:"action"`
}

// action holds the fixed remediation text and urgency label for one type.
type action struct {
	urgency string
	text    string
}

// actions maps each built-in error type to its remediation advice.
var actions = map[classify.ErrorType]action{
	classify.FileNotFound: {
		urgency: "HIGH",
		text:    "Check if data files are missing or paths are incorrect. Verify deployment includes all necessary files.",
	},
	classify.CalculationError: {
		urgency: "HIGH",
		text:    "Review data validation logic. Check for empty datasets or zero values in calculations.",
	},
	classify.Timeout: {
		urgency: "MEDIUM",
		text:    "Investigate slow queries or external service calls. Consider increasing timeout limits or optimizing performance.",
	},
	classify.MemoryError: {
		urgency: "CRITICAL",
		text:    "Check memory limits and usage. Consider increasing memory allocation or optimizing data processing.",
	},
	classify.NetworkError: {
		urgency: "HIGH",
		text:    "Check external service status and network connectivity. Implement retry logic and circuit breakers.",
	},
	classify.PermissionError: {
		urgency: "HIGH",
		text:    "Audit IAM bindings and service account scopes. Verify recent permission or policy changes.",
	},
	classify.ValidationError: {
		urgency: "MEDIUM",
		text:    "Review input validation logic. Check API request parameters and data format requirements.",
	},
	classify.Exception: {
		urgency: "MEDIUM",
		text:    "Inspect stack traces in the grouped errors and correlate with recent deployments.",
	},
}

// unknownPlurality is the generic advice used when unclassified messages are
// the dominant category.
const unknownPlurality = "Review raw messages: most errors did not match any known pattern."

// unknownMinority notes unclassified messages when another category dominates.
const unknownMinority = "Unclassified messages observed; review raw messages for new patterns."

// priority is the fixed tie-break order between equal counts, most urgent
// first.
var priority = map[classify.ErrorType]int{
	classify.FileNotFound:     0,
	classify.PermissionError:  1,
	classify.NetworkError:     2,
	classify.Timeout:          3,
	classify.MemoryError:      4,
	classify.CalculationError: 5,
	classify.ValidationError:  6,
	classify.Exception:        7,
	classify.Unknown:          8,
}

func priorityOf(t classify.ErrorType) int {
	if p, ok := priority[t]; ok {
		return p
	}
	// Custom types from extended rule tables slot in just before Unknown.
	return priority[classify.Unknown]
}

// Suggest produces recommendations ordered by count descending; equal counts
// fall back to the fixed priority order. Every observed type yields one
// entry. A zero-entry input yields the single NoErrorsFound recommendation.
func Suggest(counts map[classify.ErrorType]int) []Recommendation {
	total := 0
	maxCount := 0
	for _, n := range counts {
		total += n
		if n > maxCount {
			maxCount = n
		}
	}
	if total == 0 {
		return []Recommendation{{Action: NoErrorsFound}}
	}

	out := make([]Recommendation, 0, len(counts))
	for t, n := range counts {
		if n == 0 {
			continue
		}
		out = append(out, Recommendation{
			Type:    t,
			Count:   n,
			Urgency: urgencyOf(t),
			Action:  actionText(t, n == maxCount),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return priorityOf(out[i].Type) < priorityOf(out[j].Type)
	})
	return out
}

func urgencyOf(t classify.ErrorType) string {
	if a, ok := actions[t]; ok {
		return a.urgency
	}
	return "LOW"
}

func actionText(t classify.ErrorType, plurality bool) string {
	if a, ok := actions[t]; ok {
		return a.text
	}
	if t == classify.Unknown {
		if plurality {
			return unknownPlurality
		}
		return unknownMinority
	}
	return "Review the grouped errors for this category."
}

// Strings renders recommendations as the ordered display list.
func Strings(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		if r.Type == "" {
			out[i] = r.Action
			continue
		}
		out[i] = fmt.Sprintf("[%s] %s (%d occurrences): %s", r.Urgency, r.Type, r.Count, r.Action)
	}
	return out
}
