package grade

import (
	"fmt"
	"math"
	"sort"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gradebook/backend/internal/policy"
	"gradebook/backend/internal/shared"
)

// Components are the raw inputs of a grade; nil means not entered yet
type Components struct {
	Presence         *float64
	Participation    *float64
	Evaluation       *float64
	EvaluationScores map[string]float64
}

// Finalized holds the derived values of a complete grade
type Finalized struct {
	Evaluation float64
	FinalGrade float64
}

// ComputeFinalGrade applies the component weights and rounds to 2 decimals
func ComputeFinalGrade(p *policy.Policy, presence, participation, evaluation float64) float64 {
	return shared.Round2(presence*p.PresenceWeight + participation*p.ParticipationWeight + evaluation*p.EvaluationWeight)
}

// ResolveEvaluation returns the evaluation component for a TUE.
// With a schema, evaluation is the unrounded weighted mean of the item scores
// and nil until every item is scored. Without one, the raw evaluation is returned.
func ResolveEvaluation(p *policy.Policy, tue *shared.TeachingUnitElement, c Components) (*float64, error) {
	if !tue.HasEvaluationSchema() {
		if len(c.EvaluationScores) > 0 {
			return nil, status.Errorf(codes.InvalidArgument, "TUE %s has no evaluation schema, evaluation scores are not accepted", tue.Code)
		}
		return c.Evaluation, nil
	}

	if err := ValidateSchema(p, tue.EvaluationSchema); err != nil {
		return nil, err
	}

	known := make(map[string]float64, len(tue.EvaluationSchema))
	for _, item := range tue.EvaluationSchema {
		known[item.Name] = item.Weight
	}
	for name, score := range c.EvaluationScores {
		if _, ok := known[name]; !ok {
			return nil, status.Errorf(codes.InvalidArgument, "unknown evaluation item %q for TUE %s", name, tue.Code)
		}
		if !shared.InScoreRange(score) {
			return nil, status.Errorf(codes.InvalidArgument, "evaluation item %q score %.2f out of range [0,20]", name, score)
		}
	}

	var weighted, total float64
	for _, item := range tue.EvaluationSchema {
		score, ok := c.EvaluationScores[item.Name]
		if !ok {
			return nil, nil
		}
		weighted += score * item.Weight
		total += item.Weight
	}
	evaluation := weighted / total
	return &evaluation, nil
}

// storedEvaluation is the evaluation kept on the grade; schema means are rounded
// for display while the final grade is computed from the exact mean
func storedEvaluation(tue *shared.TeachingUnitElement, evaluation *float64) *float64 {
	if evaluation == nil || !tue.HasEvaluationSchema() {
		return evaluation
	}
	v := shared.Round2(*evaluation)
	return &v
}

// ValidateSchema checks item weights are positive and sum to the policy total
func ValidateSchema(p *policy.Policy, schema []shared.EvaluationItem) error {
	var sum float64
	seen := make(map[string]bool, len(schema))
	for _, item := range schema {
		if item.Name == "" || seen[item.Name] {
			return status.Errorf(codes.FailedPrecondition, "evaluation schema has an empty or duplicate item %q", item.Name)
		}
		if item.Weight <= 0 {
			return status.Errorf(codes.FailedPrecondition, "evaluation item %q must have a positive weight", item.Name)
		}
		seen[item.Name] = true
		sum += item.Weight
	}
	if math.Abs(sum-p.EvaluationSchemaTotal) > 1e-6 {
		return status.Errorf(codes.FailedPrecondition, "evaluation schema weights sum to %.2f, expected %.0f", sum, p.EvaluationSchemaTotal)
	}
	return nil
}

// CheckRanges rejects any entered component outside [0,20]
func CheckRanges(c Components) error {
	named := map[string]*float64{
		shared.ComponentPresence:      c.Presence,
		shared.ComponentParticipation: c.Participation,
		shared.ComponentEvaluation:    c.Evaluation,
	}
	names := make([]string, 0, len(named))
	for name := range named {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if v := named[name]; v != nil && !shared.InScoreRange(*v) {
			return status.Errorf(codes.InvalidArgument, "%s %.2f out of range [0,20]", name, *v)
		}
	}
	return nil
}

// Finalize computes the final grade; every component must be present and in range
func Finalize(p *policy.Policy, tue *shared.TeachingUnitElement, c Components) (*Finalized, error) {
	if err := CheckRanges(c); err != nil {
		return nil, err
	}
	evaluation, err := ResolveEvaluation(p, tue, c)
	if err != nil {
		return nil, err
	}

	var missing []string
	if c.Presence == nil {
		missing = append(missing, shared.ComponentPresence)
	}
	if c.Participation == nil {
		missing = append(missing, shared.ComponentParticipation)
	}
	if evaluation == nil {
		missing = append(missing, shared.ComponentEvaluation)
	}
	if len(missing) > 0 {
		return nil, status.Error(codes.InvalidArgument, fmt.Sprintf("missing grade components: %v", missing))
	}

	return &Finalized{
		Evaluation: *storedEvaluation(tue, evaluation),
		FinalGrade: ComputeFinalGrade(p, *c.Presence, *c.Participation, *evaluation),
	}, nil
}
