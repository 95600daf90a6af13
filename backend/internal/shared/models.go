// ============================================================================
// backend/internal/shared/models.go
// Shared data models for MongoDB documents
// ============================================================================

package shared

import (
	"time"
)

// ============================================================================
// Hierarchy Models (read-only to the calculation engine)
// ============================================================================

// Field represents a field of study (e.g. Computer Science)
type Field struct {
	ID       string `bson:"_id" json:"id"`
	Code     string `bson:"code" json:"code"`
	Name     string `bson:"name" json:"name"`
	IsActive bool   `bson:"is_active" json:"is_active"`
}

// Promotion is a cohort of a field at one level for one academic year
type Promotion struct {
	ID           string `bson:"_id" json:"id"`
	FieldID      string `bson:"field_id" json:"field_id"`
	Name         string `bson:"name" json:"name"`
	Level        string `bson:"level" json:"level"`                 // L1, L2, L3, M1, M2
	AcademicYear string `bson:"academic_year" json:"academic_year"` // e.g., "2024-2025"
	IsActive     bool   `bson:"is_active" json:"is_active"`
}

// Semester belongs to a promotion. Only Order (1 or 2) matters to calculations.
type Semester struct {
	ID          string `bson:"_id" json:"id"`
	PromotionID string `bson:"promotion_id" json:"promotion_id"`
	Name        string `bson:"name" json:"name"` // e.g., "S1", "S2"
	Order       int    `bson:"order" json:"order"`
	Level       string `bson:"level" json:"level"`
	IsActive    bool   `bson:"is_active" json:"is_active"`
}

// TeachingUnit (TU) is a credit-bearing group of TUEs
type TeachingUnit struct {
	ID         string  `bson:"_id" json:"id"`
	SemesterID string  `bson:"semester_id" json:"semester_id"`
	Code       string  `bson:"code" json:"code"`
	Name       string  `bson:"name" json:"name"`
	Credits    float64 `bson:"credits" json:"credits"`
	IsActive   bool    `bson:"is_active" json:"is_active"`
}

// EvaluationItem is one weighted entry of a TUE evaluation schema
type EvaluationItem struct {
	Name   string  `bson:"name" json:"name"`
	Weight float64 `bson:"weight" json:"weight"`
}

// TeachingUnitElement (TUE) is an individually graded part of a TU
type TeachingUnitElement struct {
	ID               string           `bson:"_id" json:"id"`
	TUID             string           `bson:"tu_id" json:"tu_id"`
	Code             string           `bson:"code" json:"code"`
	Name             string           `bson:"name" json:"name"`
	Credits          float64          `bson:"credits" json:"credits"`
	EvaluationSchema []EvaluationItem `bson:"evaluation_schema,omitempty" json:"evaluation_schema,omitempty"`
	IsActive         bool             `bson:"is_active" json:"is_active"`
}

// HasEvaluationSchema reports whether evaluation is derived from item scores
func (t *TeachingUnitElement) HasEvaluationSchema() bool {
	return len(t.EvaluationSchema) > 0
}

// Student represents an enrolled student
type Student struct {
	ID          string `bson:"_id" json:"id"`
	Matricule   string `bson:"matricule" json:"matricule"`
	Name        string `bson:"name" json:"name"`
	FieldID     string `bson:"field_id" json:"field_id"`
	PromotionID string `bson:"promotion_id" json:"promotion_id"`
	IsActive    bool   `bson:"is_active" json:"is_active"`
}

// ============================================================================
// Grade Models
// ============================================================================

// Grade is a student's grade for one TUE in one academic year.
// Components stay nil until entered; FinalGrade is set only when all three are present.
type Grade struct {
	ID               string             `bson:"_id" json:"id"`
	StudentID        string             `bson:"student_id" json:"student_id"`
	TUEID            string             `bson:"tue_id" json:"tue_id"`
	AcademicYear     string             `bson:"academic_year" json:"academic_year"`
	Presence         *float64           `bson:"presence" json:"presence"`
	Participation    *float64           `bson:"participation" json:"participation"`
	Evaluation       *float64           `bson:"evaluation" json:"evaluation"`
	EvaluationScores map[string]float64 `bson:"evaluation_scores,omitempty" json:"evaluation_scores,omitempty"`
	FinalGrade       *float64           `bson:"final_grade" json:"final_grade"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
}

// MissingComponents lists the raw components not yet entered
func (g *Grade) MissingComponents() []string {
	var missing []string
	if g.Presence == nil {
		missing = append(missing, ComponentPresence)
	}
	if g.Participation == nil {
		missing = append(missing, ComponentParticipation)
	}
	if g.Evaluation == nil {
		missing = append(missing, ComponentEvaluation)
	}
	return missing
}

// IsComplete reports whether all three raw components are present
func (g *Grade) IsComplete() bool {
	return g.Presence != nil && g.Participation != nil && g.Evaluation != nil
}

// ============================================================================
// Result Models (written only by the calculation engine)
// ============================================================================

// TUResult is the aggregated result of a student in one TU
type TUResult struct {
	ID            string    `bson:"_id" json:"id"`
	StudentID     string    `bson:"student_id" json:"student_id"`
	TUID          string    `bson:"tu_id" json:"tu_id"`
	SemesterID    string    `bson:"semester_id" json:"semester_id"`
	AcademicYear  string    `bson:"academic_year" json:"academic_year"`
	Average       float64   `bson:"average" json:"average"`
	Status        string    `bson:"status" json:"status"` // V, NV, V-C
	Credits       float64   `bson:"credits" json:"credits"`
	CreditsEarned float64   `bson:"credits_earned" json:"credits_earned"`
	CalculatedAt  time.Time `bson:"calculated_at" json:"calculated_at"`
}

// SemesterResult is the aggregated result of a student in one semester
type SemesterResult struct {
	ID               string    `bson:"_id" json:"id"`
	StudentID        string    `bson:"student_id" json:"student_id"`
	SemesterID       string    `bson:"semester_id" json:"semester_id"`
	AcademicYear     string    `bson:"academic_year" json:"academic_year"`
	Average          float64   `bson:"average" json:"average"`
	TotalCredits     float64   `bson:"total_credits" json:"total_credits"`
	CreditsEarned    float64   `bson:"credits_earned" json:"credits_earned"`
	Status           string    `bson:"status" json:"status"` // VALIDATED, NOT VALIDATED, ADJOURNED
	Mention          string    `bson:"mention" json:"mention"`
	CompensatedTUIDs []string  `bson:"compensated_tu_ids,omitempty" json:"compensated_tu_ids,omitempty"`
	FailedTUIDs      []string  `bson:"failed_tu_ids,omitempty" json:"failed_tu_ids,omitempty"`
	CalculatedAt     time.Time `bson:"calculated_at" json:"calculated_at"`
}

// SemesterSnapshot is the copy of a SemesterResult embedded in an AnnualResult
type SemesterSnapshot struct {
	ResultID   string  `bson:"result_id" json:"result_id"`
	SemesterID string  `bson:"semester_id" json:"semester_id"`
	Average    float64 `bson:"average" json:"average"`
	Credits    float64 `bson:"credits" json:"credits"`
	Status     string  `bson:"status" json:"status"`
	Mention    string  `bson:"mention" json:"mention"`
}

// MissingData explains why an annual result is not validated
type MissingData struct {
	Type    string `bson:"type" json:"type"`
	Ref     string `bson:"ref,omitempty" json:"ref,omitempty"`
	Message string `bson:"message" json:"message"`
}

// AnnualResult is the yearly outcome of a student at one level
type AnnualResult struct {
	ID                     string           `bson:"_id" json:"id"`
	StudentID              string           `bson:"student_id" json:"student_id"`
	AcademicYear           string           `bson:"academic_year" json:"academic_year"`
	Level                  string           `bson:"level" json:"level"`
	PromotionID            string           `bson:"promotion_id" json:"promotion_id"`
	Semester1              SemesterSnapshot `bson:"semester1" json:"semester1"`
	Semester2              SemesterSnapshot `bson:"semester2" json:"semester2"`
	AnnualAverage          float64          `bson:"annual_average" json:"annual_average"`
	TotalCredits           float64          `bson:"total_credits" json:"total_credits"`
	Status                 string           `bson:"status" json:"status"` // VALIDATED, NOT VALIDATED, INCOMPLETE
	Mention                string           `bson:"mention" json:"mention"`
	MeetsMinimumCredits    bool             `bson:"meets_minimum_credits" json:"meets_minimum_credits"`
	BothSemestersValidated bool             `bson:"both_semesters_validated" json:"both_semesters_validated"`
	MissingData            []MissingData    `bson:"missing_data" json:"missing_data"`
	CalculatedAt           time.Time        `bson:"calculated_at" json:"calculated_at"`
}

// ============================================================================
// Constants
// ============================================================================

const (
	// TU statuses
	TUStatusValidated   = "V"
	TUStatusNotValid    = "NV"
	TUStatusCompensated = "V-C"

	// Semester and annual statuses
	StatusValidated    = "VALIDATED"
	StatusNotValidated = "NOT VALIDATED"
	StatusAdjourned    = "ADJOURNED"
	StatusIncomplete   = "INCOMPLETE"

	// Grade components
	ComponentPresence      = "presence"
	ComponentParticipation = "participation"
	ComponentEvaluation    = "evaluation"

	// Score bounds
	MinScore = 0.0
	MaxScore = 20.0

	// Academic levels
	LevelL1 = "L1"
	LevelL2 = "L2"
	LevelL3 = "L3"
	LevelM1 = "M1"
	LevelM2 = "M2"

	// Missing data types on annual results
	MissingSemesterNotValidated = "semester_not_validated"
	MissingInsufficientCredits  = "insufficient_credits"

	// Collection names
	CollectionFields          = "fields"
	CollectionPromotions      = "promotions"
	CollectionSemesters       = "semesters"
	CollectionTUs             = "teaching_units"
	CollectionTUEs            = "teaching_unit_elements"
	CollectionStudents        = "students"
	CollectionGrades          = "grades"
	CollectionTUResults       = "tu_results"
	CollectionSemesterResults = "semester_results"
	CollectionAnnualResults   = "annual_results"
)

// IsValidLevel checks if a level code is known
func IsValidLevel(level string) bool {
	switch level {
	case LevelL1, LevelL2, LevelL3, LevelM1, LevelM2:
		return true
	}
	return false
}
