// Package quality scores raw inbound message text into a lead temperature.
//
// The scorer is deliberately a pure function: it is invoked on first contact
// and again on every re-analysis of an existing lead, so the same body must
// always produce the same result.
package quality

import (
	"strings"

	"leadrouter_backend/internal/leads/domain"
)

// Intent classifies what the sender appears to want.
type Intent string

const (
	IntentPurchase Intent = "purchase"
	IntentInquiry  Intent = "inquiry"
	IntentUnknown  Intent = "unknown"
)

// Urgency classifies how quickly the sender expects a response.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Analysis is the scorer's verdict on one message body.
type Analysis struct {
	Heat    domain.Heat `json:"heat"`
	Score   int         `json:"score"`
	Intent  Intent      `json:"intent"`
	Urgency Urgency     `json:"urgency"`
}

const baseScore = 30

// Keyword buckets. Matching is case-insensitive substring containment and
// each keyword counts at most once per message.
var (
	highIntentKeywords = []string{
		"buy", "purchase", "order", "price", "quote", "quotation",
		"cost", "rate", "payment", "deal", "want to", "interested in",
	}
	warmKeywords = []string{
		"more info", "information", "details", "catalog", "catalogue",
		"brochure", "specification", "availability", "available", "sample",
		"compare", "looking for",
	}
	urgencyKeywords = []string{
		"urgent", "immediately", "asap", "right away", "today", "now",
	}
	bulkKeywords = []string{
		"bulk", "wholesale", "units", "pieces", "quantity", "premium",
		"enterprise", "large order",
	}
)

// Analyze scores a free-text message body. It is total: any input, including
// the empty string, yields a valid analysis.
func Analyze(body string) Analysis {
	text := strings.ToLower(body)

	highIntent := countMatches(text, highIntentKeywords)
	warm := countMatches(text, warmKeywords)
	urgent := countMatches(text, urgencyKeywords)
	bulk := countMatches(text, bulkKeywords)

	score := baseScore

	switch {
	case highIntent >= 3:
		score += 40
	case highIntent == 2:
		score += 30
	case highIntent == 1:
		score += 15
	}

	switch {
	case warm >= 2:
		score += 20
	case warm == 1:
		score += 10
	}

	switch {
	case urgent >= 2:
		score += 15
	case urgent == 1:
		score += 8
	}

	switch {
	case bulk >= 2:
		score += 10
	case bulk == 1:
		score += 5
	}

	// Minor adjustments for engagement signals.
	if strings.Count(body, "?") >= 2 {
		score += 3
	}
	if len(body) > 200 {
		score += 2
	}
	if len(strings.TrimSpace(body)) < 10 {
		score -= 5
	}

	score = domain.ClampScore(score)

	intent := IntentUnknown
	if highIntent >= 1 {
		intent = IntentPurchase
	} else if warm >= 1 {
		intent = IntentInquiry
	}

	urgency := UrgencyLow
	switch {
	case urgent >= 2:
		urgency = UrgencyCritical
	case urgent == 1:
		urgency = UrgencyHigh
	}

	return Analysis{
		Heat:    heatForScore(score),
		Score:   score,
		Intent:  intent,
		Urgency: urgency,
	}
}

// IsQualifying reports whether the analysis should promote a lead straight
// to QUALIFIED: explicit purchase intent, or heat at HOT or above.
func (a Analysis) IsQualifying() bool {
	return a.Intent == IntentPurchase || a.Heat.Ordinal() >= domain.HeatHot.Ordinal()
}

func heatForScore(score int) domain.Heat {
	switch {
	case score >= 80:
		return domain.HeatOnFire
	case score >= 60:
		return domain.HeatHot
	case score >= 40:
		return domain.HeatWarm
	default:
		return domain.HeatCold
	}
}

func countMatches(text string, keywords []string) int {
	count := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			count++
		}
	}
	return count
}
