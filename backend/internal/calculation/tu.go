package calculation

import (
	"context"

	"go.uber.org/zap"

	"gradebook/backend/internal/policy"
	"gradebook/backend/internal/shared"
)

// TURequest identifies one TU aggregation
type TURequest struct {
	StudentID    string `json:"studentId" validate:"required"`
	TUID         string `json:"tuId" validate:"required"`
	AcademicYear string `json:"academicYear" validate:"required,academic_year"`
}

// CalculateTUAverage recomputes and stores a student's result in one TU (strict mode)
func (e *Engine) CalculateTUAverage(ctx context.Context, studentID, tuID, academicYear string) (*shared.TUResult, error) {
	req := TURequest{StudentID: studentID, TUID: tuID, AcademicYear: academicYear}
	if err := shared.ValidateStruct(req); err != nil {
		return nil, invalidArgument(err)
	}

	if _, err := e.store.GetStudent(ctx, studentID); err != nil {
		return nil, storeError(err, "student "+studentID)
	}
	tu, err := e.store.GetTU(ctx, tuID)
	if err != nil {
		return nil, storeError(err, "teaching unit "+tuID)
	}
	return e.calculateTU(ctx, studentID, tu, academicYear)
}

func (e *Engine) calculateTU(ctx context.Context, studentID string, tu *shared.TeachingUnit, academicYear string) (*shared.TUResult, error) {
	result, err := e.computeTU(ctx, studentID, tu, academicYear)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpsertTUResult(ctx, result); err != nil {
		return nil, writeError(err, "TU result")
	}

	e.logger.Debug("TU result calculated",
		zap.String("student_id", studentID),
		zap.String("tu", tu.Code),
		zap.Float64("average", result.Average),
		zap.String("status", result.Status))
	return result, nil
}

// computeTU builds the TU result without persisting it
func (e *Engine) computeTU(ctx context.Context, studentID string, tu *shared.TeachingUnit, academicYear string) (*shared.TUResult, error) {
	tues, err := e.store.ListActiveTUEs(ctx, tu.ID)
	if err != nil {
		return nil, storeError(err, "TUEs of "+tu.Code)
	}

	var weighted, credits float64
	for _, tue := range tues {
		g, err := e.store.FindGrade(ctx, studentID, tue.ID, academicYear)
		if err != nil && !isMissing(err) {
			return nil, storeError(err, "grade for "+tue.Code)
		}

		if g == nil || g.FinalGrade == nil {
			if e.policy.MissingGrade == policy.MissingGradeExclude {
				continue
			}
			// zero policy: credits count, score does not
			credits += tue.Credits
			continue
		}
		weighted += *g.FinalGrade * tue.Credits
		credits += tue.Credits
	}

	average := 0.0
	if credits > 0 {
		average = shared.Round2(weighted / credits)
	}

	result := &shared.TUResult{
		StudentID:    studentID,
		TUID:         tu.ID,
		SemesterID:   tu.SemesterID,
		AcademicYear: academicYear,
		Average:      average,
		Credits:      tu.Credits,
		CalculatedAt: e.now(),
	}
	applyBaseStatus(e.policy, result, credits > 0)
	return result, nil
}

// applyBaseStatus sets V or NV from the average alone; compensation is decided per semester
func applyBaseStatus(p *policy.Policy, r *shared.TUResult, hasCredits bool) {
	if hasCredits && p.IsValidated(r.Average) {
		r.Status = shared.TUStatusValidated
		r.CreditsEarned = r.Credits
		return
	}
	r.Status = shared.TUStatusNotValid
	r.CreditsEarned = 0
}
