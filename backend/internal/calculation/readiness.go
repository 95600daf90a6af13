package calculation

import (
	"context"
	"fmt"
	"math"

	"gradebook/backend/internal/shared"
)

// Readiness statuses
const (
	ReadinessReady         = "READY"
	ReadinessAnnualPending = "READY_FOR_ANNUAL_CALCULATION"
	ReadinessIncomplete    = "INCOMPLETE"
)

const (
	reasonNoGrade            = "no grade entered"
	reasonIncompleteGrade    = "grade components missing"
	reasonTUResultMissing    = "TU result not calculated"
	reasonSemesterUndeclared = "semester not configured for this promotion"
)

// ReadinessRequest identifies one readiness check
type ReadinessRequest struct {
	StudentID    string `validate:"required"`
	AcademicYear string `validate:"required,academic_year"`
	Level        string `validate:"required,level"`
}

// ReadinessReport explains what still blocks a transcript
type ReadinessReport struct {
	StudentID            string          `json:"studentId"`
	AcademicYear         string          `json:"academicYear"`
	Level                string          `json:"level"`
	ReadyForTranscript   bool            `json:"readyForTranscript"`
	Status               string          `json:"status"`
	CompletionPercentage int             `json:"completionPercentage"`
	Missing              MissingSections `json:"missing"`
	Messages             []string        `json:"messages"`
}

// MissingSections groups the per-level details of a report
type MissingSections struct {
	Semester1         SemesterReadiness `json:"semester1"`
	Semester2         SemesterReadiness `json:"semester2"`
	AnnualCalculation AnnualReadiness   `json:"annualCalculation"`
}

// SemesterReadiness is the completion state of one ordered semester
type SemesterReadiness struct {
	Order         int            `json:"order"`
	SemesterID    string         `json:"semesterId,omitempty"`
	Name          string         `json:"name,omitempty"`
	Configured    bool           `json:"configured"`
	Calculated    bool           `json:"calculated"`
	Complete      bool           `json:"complete"`
	Status        string         `json:"status,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	MissingTUs    []MissingTU    `json:"missingTUs"`
	MissingGrades []MissingGrade `json:"missingGrades"`
}

// MissingTU is a TU without a stored result
type MissingTU struct {
	TUID   string `json:"tuId"`
	Code   string `json:"code"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// MissingGrade is a TUE whose grade is absent or lacks components
type MissingGrade struct {
	TUID       string   `json:"tuId"`
	TUCode     string   `json:"tuCode"`
	TUEID      string   `json:"tueId"`
	TUECode    string   `json:"tueCode"`
	TUEName    string   `json:"tueName"`
	Reason     string   `json:"reason"`
	Components []string `json:"components"`
}

// AnnualReadiness tells whether the annual result can be or has been produced
type AnnualReadiness struct {
	CanCalculate bool   `json:"canCalculate"`
	Calculated   bool   `json:"calculated"`
	Status       string `json:"status,omitempty"`
	ResultID     string `json:"resultId,omitempty"`
}

// ValidateTranscriptReadiness reports, without writing anything, what is
// missing before the student's annual result and transcript are available.
func (e *Engine) ValidateTranscriptReadiness(ctx context.Context, studentID, academicYear, level string) (*ReadinessReport, error) {
	req := ReadinessRequest{StudentID: studentID, AcademicYear: academicYear, Level: level}
	if err := shared.ValidateStruct(req); err != nil {
		return nil, invalidArgument(err)
	}

	student, err := e.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, storeError(err, "student "+studentID)
	}
	promotion, err := e.store.FindPromotion(ctx, student.FieldID, level, academicYear)
	if err != nil {
		return nil, storeError(err, fmt.Sprintf("%s promotion for %s", level, academicYear))
	}
	sems, err := e.store.ListSemesters(ctx, promotion.ID)
	if err != nil {
		return nil, storeError(err, "semesters of "+promotion.Name)
	}
	byOrder := semestersByOrder(sems)

	report := &ReadinessReport{
		StudentID:    studentID,
		AcademicYear: academicYear,
		Level:        level,
		Messages:     []string{},
	}

	for _, order := range []int{1, 2} {
		sr, err := e.semesterReadiness(ctx, studentID, order, byOrder[order], academicYear)
		if err != nil {
			return nil, err
		}
		if order == 1 {
			report.Missing.Semester1 = *sr
		} else {
			report.Missing.Semester2 = *sr
		}
		report.Messages = append(report.Messages, semesterMessage(sr))
	}

	s1, s2 := report.Missing.Semester1, report.Missing.Semester2
	annual := AnnualReadiness{CanCalculate: s1.Calculated && s2.Calculated}
	ar, err := e.store.FindAnnualResult(ctx, studentID, academicYear, level)
	switch {
	case err == nil:
		annual.Calculated = true
		annual.Status = ar.Status
		annual.ResultID = ar.ID
	case !isMissing(err):
		return nil, storeError(err, "annual result")
	}
	report.Missing.AnnualCalculation = annual

	done := 0
	for _, ok := range []bool{s1.Calculated, s2.Calculated, annual.Calculated} {
		if ok {
			done++
		}
	}
	report.CompletionPercentage = int(math.Round(float64(done) * 100 / 3))

	switch {
	case annual.Calculated:
		report.ReadyForTranscript = true
		report.Status = ReadinessReady
		report.Messages = append(report.Messages, fmt.Sprintf("Annual result calculated: %s", annual.Status))
	case annual.CanCalculate:
		report.Status = ReadinessAnnualPending
		report.Messages = append(report.Messages, "Both semesters calculated, annual result can be calculated")
	default:
		report.Status = ReadinessIncomplete
		report.Messages = append(report.Messages, "Annual result cannot be calculated until both semesters are calculated")
	}
	return report, nil
}

func (e *Engine) semesterReadiness(ctx context.Context, studentID string, order int, sem *shared.Semester, academicYear string) (*SemesterReadiness, error) {
	sr := &SemesterReadiness{
		Order:         order,
		MissingTUs:    []MissingTU{},
		MissingGrades: []MissingGrade{},
	}
	if sem == nil {
		sr.Reason = reasonSemesterUndeclared
		return sr, nil
	}
	sr.Configured = true
	sr.SemesterID = sem.ID
	sr.Name = sem.Name

	res, err := e.store.FindSemesterResult(ctx, studentID, sem.ID, academicYear)
	switch {
	case err == nil:
		sr.Calculated = true
		sr.Status = res.Status
	case !isMissing(err):
		return nil, storeError(err, "semester result for "+sem.Name)
	}

	tus, err := e.store.ListActiveTUs(ctx, sem.ID)
	if err != nil {
		return nil, storeError(err, "teaching units of "+sem.Name)
	}
	for _, tu := range tus {
		if _, err := e.store.FindTUResult(ctx, studentID, tu.ID, academicYear); err != nil {
			if !isMissing(err) {
				return nil, storeError(err, "TU result for "+tu.Code)
			}
			sr.MissingTUs = append(sr.MissingTUs, MissingTU{TUID: tu.ID, Code: tu.Code, Name: tu.Name, Reason: reasonTUResultMissing})
		}

		tues, err := e.store.ListActiveTUEs(ctx, tu.ID)
		if err != nil {
			return nil, storeError(err, "TUEs of "+tu.Code)
		}
		for _, tue := range tues {
			missing := MissingGrade{TUID: tu.ID, TUCode: tu.Code, TUEID: tue.ID, TUECode: tue.Code, TUEName: tue.Name}
			g, err := e.store.FindGrade(ctx, studentID, tue.ID, academicYear)
			switch {
			case isMissing(err):
				missing.Reason = reasonNoGrade
				missing.Components = []string{shared.ComponentPresence, shared.ComponentParticipation, shared.ComponentEvaluation}
			case err != nil:
				return nil, storeError(err, "grade for "+tue.Code)
			case !g.IsComplete():
				missing.Reason = reasonIncompleteGrade
				missing.Components = g.MissingComponents()
			default:
				continue
			}
			sr.MissingGrades = append(sr.MissingGrades, missing)
		}
	}

	sr.Complete = len(sr.MissingTUs) == 0 && len(sr.MissingGrades) == 0
	return sr, nil
}

func semesterMessage(sr *SemesterReadiness) string {
	label := fmt.Sprintf("Semester %d", sr.Order)
	if sr.Name != "" {
		label = fmt.Sprintf("Semester %s", sr.Name)
	}
	switch {
	case !sr.Configured:
		return fmt.Sprintf("%s: %s", label, sr.Reason)
	case sr.Calculated && sr.Complete:
		return fmt.Sprintf("%s: calculated (%s)", label, sr.Status)
	case sr.Calculated:
		return fmt.Sprintf("%s: calculated (%s) but %d TU results and %d grades are missing", label, sr.Status, len(sr.MissingTUs), len(sr.MissingGrades))
	case sr.Complete:
		return fmt.Sprintf("%s: all grades entered, semester not calculated yet", label)
	default:
		return fmt.Sprintf("%s: not calculated, %d TU results and %d grades missing", label, len(sr.MissingTUs), len(sr.MissingGrades))
	}
}
