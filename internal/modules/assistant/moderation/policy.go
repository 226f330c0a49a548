// Package moderation turns classifier answers into block decisions for the
// assistant. Every failure to classify resolves through the same policy as
// an explicit indeterminate outcome.
package moderation

import (
	"strings"

	types "github.com/yungbote/huddle-backend/internal/domain"
)

type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

type Outcome string

const (
	OutcomeSafe          Outcome = "safe"
	OutcomeUnsafe        Outcome = "unsafe"
	OutcomeIndeterminate Outcome = "indeterminate"
)

type Severity string

const (
	SeverityNone Severity = "none"
	SeverityLow  Severity = "low"
	SeverityHigh Severity = "high"
)

const (
	ReasonClassifierUnavailable = "classifier_unavailable"
	ReasonHighSeverity          = "high_severity"
	ReasonFlagged               = "flagged"
)

// DefaultHighSeverity covers both the guard model hazard codes and the
// OpenAI moderation category names.
var DefaultHighSeverity = []string{
	"violent_crimes",
	"child_sexual_exploitation",
	"sexual/minors",
	"indiscriminate_weapons",
	"self_harm",
	"self-harm",
	"self-harm/intent",
	"S1",
	"S4",
	"S9",
	"S11",
}

type Verdict struct {
	Direction  Direction
	Outcome    Outcome
	Safe       bool
	Categories []string
	Severity   Severity
	Blocked    bool
	Reason     string
}

func (v Verdict) Record() *types.ModerationVerdict {
	return &types.ModerationVerdict{
		Outcome:    string(v.Outcome),
		Safe:       v.Safe,
		Categories: v.Categories,
		Severity:   string(v.Severity),
		Blocked:    v.Blocked,
	}
}

type Policy struct {
	high map[string]bool
}

func NewPolicy(highSeverity []string) Policy {
	if len(highSeverity) == 0 {
		highSeverity = DefaultHighSeverity
	}
	high := make(map[string]bool, len(highSeverity))
	for _, c := range highSeverity {
		if c = normalize(c); c != "" {
			high[c] = true
		}
	}
	return Policy{high: high}
}

func (p Policy) IsHighSeverity(category string) bool { return p.high[normalize(category)] }

// Resolve is the single place that decides blocking.
//
//	indeterminate: blocked in both directions
//	unsafe + high severity category: blocked in both directions
//	unsafe otherwise: logged only
func (p Policy) Resolve(dir Direction, outcome Outcome, categories []string) Verdict {
	v := Verdict{Direction: dir, Outcome: outcome, Categories: categories}
	switch outcome {
	case OutcomeSafe:
		v.Safe = true
		v.Severity = SeverityNone
	case OutcomeUnsafe:
		v.Severity = SeverityLow
		v.Reason = ReasonFlagged
		for _, c := range categories {
			if p.IsHighSeverity(c) {
				v.Severity = SeverityHigh
				v.Blocked = true
				v.Reason = ReasonHighSeverity
				break
			}
		}
	default:
		v.Outcome = OutcomeIndeterminate
		v.Severity = SeverityHigh
		v.Blocked = true
		v.Reason = ReasonClassifierUnavailable
	}
	return v
}

func normalize(c string) string { return strings.ToLower(strings.TrimSpace(c)) }
