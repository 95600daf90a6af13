// Package policy holds the institution-specific grading rules used by the
// calculation engine: component weights, validation and compensation
// thresholds, annual credit minimum and the missing-grade policy.
package policy

import (
	"fmt"
	"math"
	"strings"

	"github.com/spf13/viper"
)

// MissingGradePolicy decides how a TUE without a final grade weighs on a TU average
type MissingGradePolicy string

const (
	// MissingGradeZero keeps the TUE credits in the denominator with a zero score
	MissingGradeZero MissingGradePolicy = "zero"
	// MissingGradeExclude removes the TUE from the average entirely
	MissingGradeExclude MissingGradePolicy = "exclude"
)

// Policy is the set of named grading constants
type Policy struct {
	PresenceWeight      float64 `mapstructure:"presence_weight"`
	ParticipationWeight float64 `mapstructure:"participation_weight"`
	EvaluationWeight    float64 `mapstructure:"evaluation_weight"`

	// Sum of item weights in a TUE evaluation schema
	EvaluationSchemaTotal float64 `mapstructure:"evaluation_schema_total"`

	ValidationThreshold       float64 `mapstructure:"validation_threshold"`
	CompensationFloor         float64 `mapstructure:"compensation_floor"`
	MaxCompensatedPerSemester int     `mapstructure:"max_compensated_per_semester"`
	MinimumAnnualCredits      float64 `mapstructure:"minimum_annual_credits"`

	MissingGrade MissingGradePolicy `mapstructure:"missing_grade"`
}

// Default returns the standard LMD policy: 5/5/90 weights, validation at 12,
// compensation from 8, one compensated TU per semester, 48 annual credits.
func Default() *Policy {
	return &Policy{
		PresenceWeight:            0.05,
		ParticipationWeight:       0.05,
		EvaluationWeight:          0.90,
		EvaluationSchemaTotal:     90,
		ValidationThreshold:       12,
		CompensationFloor:         8,
		MaxCompensatedPerSemester: 1,
		MinimumAnnualCredits:      48,
		MissingGrade:              MissingGradeZero,
	}
}

// Load reads the policy from defaults, an optional file and GRADING_* env vars
func Load(path string) (*Policy, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("GRADING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read grading policy %s: %w", path, err)
		}
	}

	p := &Policy{}
	if err := v.Unmarshal(p); err != nil {
		return nil, fmt.Errorf("failed to decode grading policy: %w", err)
	}
	p.MissingGrade = MissingGradePolicy(strings.ToLower(string(p.MissingGrade)))

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func setDefaults(v *viper.Viper, p *Policy) {
	v.SetDefault("presence_weight", p.PresenceWeight)
	v.SetDefault("participation_weight", p.ParticipationWeight)
	v.SetDefault("evaluation_weight", p.EvaluationWeight)
	v.SetDefault("evaluation_schema_total", p.EvaluationSchemaTotal)
	v.SetDefault("validation_threshold", p.ValidationThreshold)
	v.SetDefault("compensation_floor", p.CompensationFloor)
	v.SetDefault("max_compensated_per_semester", p.MaxCompensatedPerSemester)
	v.SetDefault("minimum_annual_credits", p.MinimumAnnualCredits)
	v.SetDefault("missing_grade", string(p.MissingGrade))
}

// Validate checks the policy is internally consistent
func (p *Policy) Validate() error {
	sum := p.PresenceWeight + p.ParticipationWeight + p.EvaluationWeight
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("component weights must sum to 1, got %.4f", sum)
	}
	if p.EvaluationSchemaTotal <= 0 {
		return fmt.Errorf("evaluation schema total must be positive")
	}
	if p.CompensationFloor < 0 || p.CompensationFloor > p.ValidationThreshold {
		return fmt.Errorf("compensation floor %.2f must be within [0, %.2f]", p.CompensationFloor, p.ValidationThreshold)
	}
	if p.ValidationThreshold > 20 {
		return fmt.Errorf("validation threshold %.2f exceeds the 20 point scale", p.ValidationThreshold)
	}
	if p.MaxCompensatedPerSemester < 0 {
		return fmt.Errorf("max compensated TUs per semester cannot be negative")
	}
	if p.MinimumAnnualCredits < 0 {
		return fmt.Errorf("minimum annual credits cannot be negative")
	}
	switch p.MissingGrade {
	case MissingGradeZero, MissingGradeExclude:
	default:
		return fmt.Errorf("unknown missing grade policy %q", p.MissingGrade)
	}
	return nil
}

// IsValidated reports whether an average reaches the validation threshold
func (p *Policy) IsValidated(average float64) bool {
	return average >= p.ValidationThreshold
}

// IsCompensable reports whether an average sits in [floor, threshold)
func (p *Policy) IsCompensable(average float64) bool {
	return average >= p.CompensationFloor && average < p.ValidationThreshold
}

// IsHardFail reports whether an average is below the compensation floor
func (p *Policy) IsHardFail(average float64) bool {
	return average < p.CompensationFloor
}
