// Package domain holds the pipeline vocabulary: stages, their win
// probabilities and display labels, and account lifecycle statuses.
package domain

// Stage is the pipeline position of an opportunity.
type Stage string

const (
	StageLead           Stage = "lead"
	StageQuoteRequested Stage = "quote_requested"
	StageQuoteSent      Stage = "quote_sent"
	StageNegotiation    Stage = "negotiation"
	StageQuoteSigned    Stage = "quote_signed"
	StageInDevelopment  Stage = "in_development"
	StageReview         Stage = "review"
	StageLive           Stage = "live"
	StageMaintenance    Stage = "maintenance"
	StageLost           Stage = "lost"
)

type stageInfo struct {
	probability int
	label       string
}

// orderedStages is the canonical pipeline order used for every grouped view.
var orderedStages = []Stage{
	StageLead,
	StageQuoteRequested,
	StageQuoteSent,
	StageNegotiation,
	StageQuoteSigned,
	StageInDevelopment,
	StageReview,
	StageLive,
	StageMaintenance,
	StageLost,
}

var knownStages = map[Stage]stageInfo{
	StageLead:           {probability: 10, label: "Lead"},
	StageQuoteRequested: {probability: 20, label: "Quote Requested"},
	StageQuoteSent:      {probability: 40, label: "Quote Sent"},
	StageNegotiation:    {probability: 60, label: "Negotiation"},
	StageQuoteSigned:    {probability: 90, label: "Quote Signed"},
	StageInDevelopment:  {probability: 95, label: "In Development"},
	StageReview:         {probability: 98, label: "Review"},
	StageLive:           {probability: 100, label: "Live"},
	StageMaintenance:    {probability: 100, label: "Maintenance"},
	StageLost:           {probability: 0, label: "Lost"},
}

// Stages returns every stage in pipeline order. The slice is a copy.
func Stages() []Stage {
	out := make([]Stage, len(orderedStages))
	copy(out, orderedStages)
	return out
}

// IsKnownStage reports whether s is a member of the stage enumeration.
func IsKnownStage(s string) bool {
	_, ok := knownStages[Stage(s)]
	return ok
}

// ParseStage returns the Stage for s, or false when s is not a known stage.
func ParseStage(s string) (Stage, bool) {
	if !IsKnownStage(s) {
		return "", false
	}
	return Stage(s), true
}

// ProbabilityFor returns the win probability in percent for stage, and
// false for unknown stages.
func ProbabilityFor(stage Stage) (int, bool) {
	info, ok := knownStages[stage]
	return info.probability, ok
}

// Label returns the display label for stage, or the raw value if unknown.
func (s Stage) Label() string {
	if info, ok := knownStages[s]; ok {
		return info.label
	}
	return string(s)
}

// Position returns the index of s in pipeline order, or -1.
func (s Stage) Position() int {
	for i, candidate := range orderedStages {
		if candidate == s {
			return i
		}
	}
	return -1
}

// IsClosing reports whether reaching s finally closes the deal, won or lost.
func (s Stage) IsClosing() bool {
	return s == StageLive || s == StageLost
}

// ConversionTarget is the stage a converted lead lands in.
const ConversionTarget = StageQuoteSigned

// ConversionProbability is the probability written on conversion.
// It must equal ProbabilityFor(ConversionTarget).
const ConversionProbability = 90

// IsConversionEligible reports whether an opportunity in s may be converted
// to a customer: the two pre-close stages, or already signed (re-run).
func IsConversionEligible(s Stage) bool {
	switch s {
	case StageNegotiation, StageQuoteSent, StageQuoteSigned:
		return true
	default:
		return false
	}
}
