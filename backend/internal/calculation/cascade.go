package calculation

import (
	"context"

	"go.uber.org/zap"

	"gradebook/backend/internal/shared"
)

// Cascade stop points
const (
	StopTU       = "tu"
	StopSemester = "semester"
	StopAnnual   = "annual"
)

// CascadeTrace records which levels a grade change re-evaluated
type CascadeTrace struct {
	GradeID           string `json:"gradeId"`
	TUEvaluated       bool   `json:"tuEvaluated"`
	SemesterEvaluated bool   `json:"semesterEvaluated"`
	AnnualEvaluated   bool   `json:"annualEvaluated"`
	// StoppedAt is the first level that was not complete, empty when all three ran
	StoppedAt string `json:"stoppedAt,omitempty"`
}

// OnGradeChange walks a grade change up to the annual result. It never fails:
// incomplete levels stop the walk and errors are only logged.
func (e *Engine) OnGradeChange(ctx context.Context, gradeID string) {
	e.bestEffort("cascade", []zap.Field{zap.String("grade_id", gradeID)}, func() error {
		trace, err := e.RunCascade(ctx, gradeID)
		if err != nil {
			return err
		}
		e.logger.Debug("cascade finished",
			zap.String("grade_id", gradeID),
			zap.Bool("tu", trace.TUEvaluated),
			zap.Bool("semester", trace.SemesterEvaluated),
			zap.Bool("annual", trace.AnnualEvaluated),
			zap.String("stopped_at", trace.StoppedAt))
		return nil
	})
}

// RunCascade is OnGradeChange with its trace and errors exposed.
// Annual failures are still logged rather than returned.
func (e *Engine) RunCascade(ctx context.Context, gradeID string) (*CascadeTrace, error) {
	trace := &CascadeTrace{GradeID: gradeID}

	grade, err := e.store.GetGrade(ctx, gradeID)
	if err != nil {
		return trace, storeError(err, "grade "+gradeID)
	}
	tue, err := e.store.GetTUE(ctx, grade.TUEID)
	if err != nil {
		return trace, storeError(err, "TUE "+grade.TUEID)
	}
	tu, err := e.store.GetTU(ctx, tue.TUID)
	if err != nil {
		return trace, storeError(err, "teaching unit "+tue.TUID)
	}

	complete, err := e.tuComplete(ctx, grade.StudentID, tu.ID, grade.AcademicYear)
	if err != nil {
		return trace, err
	}
	if !complete {
		trace.StoppedAt = StopTU
		return trace, nil
	}
	if _, err := e.calculateTU(ctx, grade.StudentID, tu, grade.AcademicYear); err != nil {
		return trace, err
	}
	trace.TUEvaluated = true

	sem, err := e.store.GetSemester(ctx, tu.SemesterID)
	if err != nil {
		return trace, storeError(err, "semester "+tu.SemesterID)
	}
	complete, err = e.semesterComplete(ctx, grade.StudentID, sem.ID, grade.AcademicYear)
	if err != nil {
		return trace, err
	}
	if !complete {
		trace.StoppedAt = StopSemester
		return trace, nil
	}
	if _, err := e.calculateSemester(ctx, grade.StudentID, sem, grade.AcademicYear, false); err != nil {
		return trace, err
	}
	trace.SemesterEvaluated = true

	trace.AnnualEvaluated = e.probeAnnual(ctx, grade.StudentID, sem, grade.AcademicYear)
	if !trace.AnnualEvaluated {
		trace.StoppedAt = StopAnnual
	}
	return trace, nil
}

// tuComplete reports whether every active TUE of the TU has a grade with all three components
func (e *Engine) tuComplete(ctx context.Context, studentID, tuID, academicYear string) (bool, error) {
	tues, err := e.store.ListActiveTUEs(ctx, tuID)
	if err != nil {
		return false, storeError(err, "TUEs of "+tuID)
	}
	for _, tue := range tues {
		g, err := e.store.FindGrade(ctx, studentID, tue.ID, academicYear)
		if isMissing(err) {
			return false, nil
		}
		if err != nil {
			return false, storeError(err, "grade for "+tue.Code)
		}
		if !g.IsComplete() {
			return false, nil
		}
	}
	return true, nil
}

// semesterComplete reports whether every active TU of the semester has a stored result
func (e *Engine) semesterComplete(ctx context.Context, studentID, semesterID, academicYear string) (bool, error) {
	tus, err := e.store.ListActiveTUs(ctx, semesterID)
	if err != nil {
		return false, storeError(err, "teaching units of "+semesterID)
	}
	for _, tu := range tus {
		_, err := e.store.FindTUResult(ctx, studentID, tu.ID, academicYear)
		if isMissing(err) {
			return false, nil
		}
		if err != nil {
			return false, storeError(err, "TU result for "+tu.Code)
		}
	}
	return true, nil
}

// gradesComplete reports whether every active TU of the semester is tuComplete
func (e *Engine) gradesComplete(ctx context.Context, studentID string, sem *shared.Semester, academicYear string) (bool, error) {
	tus, err := e.store.ListActiveTUs(ctx, sem.ID)
	if err != nil {
		return false, storeError(err, "teaching units of "+sem.Name)
	}
	for _, tu := range tus {
		ok, err := e.tuComplete(ctx, studentID, tu.ID, academicYear)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}
