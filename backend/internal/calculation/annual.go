package calculation

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gradebook/backend/internal/shared"
)

// AnnualRequest identifies one annual aggregation
type AnnualRequest struct {
	StudentID    string `json:"studentId" validate:"required"`
	Level        string `json:"level" validate:"required,level"`
	AcademicYear string `json:"academicYear" validate:"required,academic_year"`
}

// CalculateAnnualResult combines both semester results of the student's
// promotion. It fails with a PreconditionError when a semester result is
// missing or when the two semesters carry no credits.
func (e *Engine) CalculateAnnualResult(ctx context.Context, studentID, level, academicYear string) (*shared.AnnualResult, error) {
	req := AnnualRequest{StudentID: studentID, Level: level, AcademicYear: academicYear}
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
	return e.calculateAnnual(ctx, student.ID, promotion, academicYear)
}

func (e *Engine) calculateAnnual(ctx context.Context, studentID string, promotion *shared.Promotion, academicYear string) (*shared.AnnualResult, error) {
	s1, s2, err := e.orderedSemesters(ctx, promotion)
	if err != nil {
		return nil, err
	}

	r1, err := e.requireSemesterResult(ctx, studentID, s1, academicYear)
	if err != nil {
		return nil, err
	}
	r2, err := e.requireSemesterResult(ctx, studentID, s2, academicYear)
	if err != nil {
		return nil, err
	}

	totalCredits := r1.TotalCredits + r2.TotalCredits
	if totalCredits == 0 {
		return nil, &PreconditionError{Err: ErrZeroCombinedCredits, Detail: fmt.Sprintf("student %s in %s", studentID, academicYear)}
	}

	average := shared.Round2((r1.Average*r1.TotalCredits + r2.Average*r2.TotalCredits) / totalCredits)
	both := r1.Status == shared.StatusValidated && r2.Status == shared.StatusValidated
	meets := totalCredits >= e.policy.MinimumAnnualCredits

	missing := []shared.MissingData{}
	for _, pair := range []struct {
		sem *shared.Semester
		res *shared.SemesterResult
	}{{s1, r1}, {s2, r2}} {
		if pair.res.Status != shared.StatusValidated {
			missing = append(missing, shared.MissingData{
				Type:    shared.MissingSemesterNotValidated,
				Ref:     pair.sem.ID,
				Message: fmt.Sprintf("semester %s is %s", pair.sem.Name, pair.res.Status),
			})
		}
	}
	if !meets {
		missing = append(missing, shared.MissingData{
			Type:    shared.MissingInsufficientCredits,
			Message: fmt.Sprintf("%.0f credits, at least %.0f required", totalCredits, e.policy.MinimumAnnualCredits),
		})
	}

	resultStatus := shared.StatusNotValidated
	if both && meets {
		resultStatus = shared.StatusValidated
	}

	result := &shared.AnnualResult{
		StudentID:              studentID,
		AcademicYear:           academicYear,
		Level:                  promotion.Level,
		PromotionID:            promotion.ID,
		Semester1:              snapshot(r1),
		Semester2:              snapshot(r2),
		AnnualAverage:          average,
		TotalCredits:           totalCredits,
		Status:                 resultStatus,
		Mention:                mentionForStatus(average, resultStatus),
		MeetsMinimumCredits:    meets,
		BothSemestersValidated: both,
		MissingData:            missing,
		CalculatedAt:           e.now(),
	}
	if err := e.store.UpsertAnnualResult(ctx, result); err != nil {
		return nil, writeError(err, "annual result")
	}

	e.logger.Info("annual result calculated",
		zap.String("student_id", studentID),
		zap.String("level", promotion.Level),
		zap.String("academic_year", academicYear),
		zap.Float64("average", result.AnnualAverage),
		zap.String("status", result.Status))
	return result, nil
}

func snapshot(r *shared.SemesterResult) shared.SemesterSnapshot {
	return shared.SemesterSnapshot{
		ResultID:   r.ID,
		SemesterID: r.SemesterID,
		Average:    r.Average,
		Credits:    r.TotalCredits,
		Status:     r.Status,
		Mention:    r.Mention,
	}
}

func (e *Engine) requireSemesterResult(ctx context.Context, studentID string, sem *shared.Semester, academicYear string) (*shared.SemesterResult, error) {
	r, err := e.store.FindSemesterResult(ctx, studentID, sem.ID, academicYear)
	if isMissing(err) {
		return nil, &PreconditionError{Err: ErrSemesterResultsMissing, Detail: fmt.Sprintf("semester %s has not been calculated", sem.Name)}
	}
	if err != nil {
		return nil, storeError(err, "semester result for "+sem.Name)
	}
	return r, nil
}

// orderedSemesters returns the promotion's semesters with order 1 and 2
func (e *Engine) orderedSemesters(ctx context.Context, promotion *shared.Promotion) (*shared.Semester, *shared.Semester, error) {
	sems, err := e.store.ListSemesters(ctx, promotion.ID)
	if err != nil {
		return nil, nil, storeError(err, "semesters of "+promotion.Name)
	}
	byOrder := semestersByOrder(sems)
	s1, s2 := byOrder[1], byOrder[2]
	if s1 == nil || s2 == nil {
		return nil, nil, status.Errorf(codes.NotFound, "promotion %s does not have both ordered semesters", promotion.Name)
	}
	return s1, s2, nil
}

func semestersByOrder(sems []shared.Semester) map[int]*shared.Semester {
	byOrder := make(map[int]*shared.Semester, 2)
	for i := range sems {
		if _, seen := byOrder[sems[i].Order]; !seen {
			byOrder[sems[i].Order] = &sems[i]
		}
	}
	return byOrder
}

// probeAnnual runs the annual aggregation when both semester results exist.
// Failures are logged; it reports whether an annual result was written.
func (e *Engine) probeAnnual(ctx context.Context, studentID string, sem *shared.Semester, academicYear string) bool {
	fields := []zap.Field{
		zap.String("student_id", studentID),
		zap.String("semester_id", sem.ID),
		zap.String("academic_year", academicYear),
	}

	evaluated := false
	e.bestEffort("annual", fields, func() error {
		promotion, err := e.store.GetPromotion(ctx, sem.PromotionID)
		if err != nil {
			return storeError(err, "promotion "+sem.PromotionID)
		}
		complete, err := e.yearComplete(ctx, studentID, promotion, academicYear)
		if err != nil || !complete {
			return err
		}
		if _, err := e.calculateAnnual(ctx, studentID, promotion, academicYear); err != nil {
			return err
		}
		evaluated = true
		return nil
	})
	return evaluated
}

// yearComplete reports whether both ordered semesters have a stored result
func (e *Engine) yearComplete(ctx context.Context, studentID string, promotion *shared.Promotion, academicYear string) (bool, error) {
	sems, err := e.store.ListSemesters(ctx, promotion.ID)
	if err != nil {
		return false, storeError(err, "semesters of "+promotion.Name)
	}
	byOrder := semestersByOrder(sems)
	for _, order := range []int{1, 2} {
		sem, ok := byOrder[order]
		if !ok {
			return false, nil
		}
		_, err := e.store.FindSemesterResult(ctx, studentID, sem.ID, academicYear)
		if isMissing(err) {
			return false, nil
		}
		if err != nil {
			return false, storeError(err, "semester result for "+sem.Name)
		}
	}
	return true, nil
}
