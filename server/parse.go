package server

import (
	"strings"

	"github.com/regretsim/regretsim/sim"
)

// ParsedPatient is one patient extracted from a narrative scenario
// description.
type ParsedPatient struct {
	Severity    sim.Severity
	Description string
}

// Keyword sets for the rule-based triage classifier. Matching is a plain
// substring test over the lowercased description, so "heartburn" counts as
// "heart" — the classifier is a coarse fallback, not a diagnosis.
var (
	criticalKeywords = []string{"chest pain", "stroke", "unconscious", "severe", "critical", "heart", "emergency", "dying"}
	moderateKeywords = []string{"fracture", "broken", "infection", "test", "blood", "xray", "breathing", "moderate"}
	minorKeywords    = []string{"cut", "bruise", "fever", "cold", "minor", "small", "mild"}
)

// ParseScenario extracts patients from free narrative text with keyword
// rules: a patient count from number words, one patient per detected
// severity tier, and Minor fill for the remainder. An empty result means
// the text described no patients.
func ParseScenario(description string) []ParsedPatient {
	lower := strings.ToLower(description)
	if strings.TrimSpace(lower) == "" {
		return nil
	}

	count := 1
	switch {
	case strings.Contains(lower, "two") || strings.Contains(lower, "2"):
		count = 2
	case strings.Contains(lower, "three") || strings.Contains(lower, "3"):
		count = 3
	case strings.Contains(lower, "four") || strings.Contains(lower, "4"):
		count = 4
	}

	hasCritical := containsAny(lower, criticalKeywords)
	hasModerate := containsAny(lower, moderateKeywords)
	hasMinor := containsAny(lower, minorKeywords)

	var patients []ParsedPatient
	if count == 1 {
		switch {
		case hasCritical:
			patients = append(patients, ParsedPatient{sim.SeverityCritical, "critical condition"})
		case hasModerate:
			patients = append(patients, ParsedPatient{sim.SeverityModerate, "moderate condition"})
		default:
			patients = append(patients, ParsedPatient{sim.SeverityMinor, "minor condition"})
		}
		return patients
	}

	// Multiple patients: one per mentioned tier, most severe first, then
	// Minor fill up to the count.
	if hasCritical {
		patients = append(patients, ParsedPatient{sim.SeverityCritical, "critical condition"})
		count--
	}
	if hasModerate && count > 0 {
		patients = append(patients, ParsedPatient{sim.SeverityModerate, "moderate condition"})
		count--
	}
	if hasMinor && count > 0 {
		patients = append(patients, ParsedPatient{sim.SeverityMinor, "minor condition"})
		count--
	}
	for count > 0 {
		patients = append(patients, ParsedPatient{sim.SeverityMinor, "unspecified condition"})
		count--
	}
	return patients
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
