package calculation

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gradebook/backend/internal/shared"
)

// RecalculateRequest identifies a promotion-wide recalculation
type RecalculateRequest struct {
	PromotionID  string `json:"promotionId" validate:"required"`
	AcademicYear string `json:"academicYear" validate:"required,academic_year"`
}

// StudentOutcome is what a bulk run did for one student
type StudentOutcome struct {
	StudentID           string   `json:"studentId"`
	Matricule           string   `json:"matricule"`
	SemestersCalculated []string `json:"semestersCalculated"`
	SemestersSkipped    []string `json:"semestersSkipped"`
	AnnualStatus        string   `json:"annualStatus,omitempty"`
	Error               string   `json:"error,omitempty"`
}

// BulkReport summarizes a promotion-wide recalculation
type BulkReport struct {
	PromotionID  string           `json:"promotionId"`
	AcademicYear string           `json:"academicYear"`
	Students     int              `json:"students"`
	Succeeded    int              `json:"succeeded"`
	Failed       int              `json:"failed"`
	Duration     string           `json:"duration"`
	Outcomes     []StudentOutcome `json:"outcomes"`
}

// RecalculatePromotion recomputes every student of a promotion. Students run
// in parallel up to the worker limit; each student's own TU, semester and
// annual steps stay sequential. A failing student never stops the others.
func (e *Engine) RecalculatePromotion(ctx context.Context, promotionID, academicYear string) (*BulkReport, error) {
	req := RecalculateRequest{PromotionID: promotionID, AcademicYear: academicYear}
	if err := shared.ValidateStruct(req); err != nil {
		return nil, invalidArgument(err)
	}

	start := time.Now()
	promotion, err := e.store.GetPromotion(ctx, promotionID)
	if err != nil {
		return nil, storeError(err, "promotion "+promotionID)
	}
	students, err := e.store.ListStudentsByPromotion(ctx, promotionID)
	if err != nil {
		return nil, storeError(err, "students of "+promotion.Name)
	}
	sems, err := e.store.ListSemesters(ctx, promotionID)
	if err != nil {
		return nil, storeError(err, "semesters of "+promotion.Name)
	}

	outcomes := make([]StudentOutcome, len(students))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range students {
		i := i
		g.Go(func() error {
			outcomes[i] = e.recalculateStudent(gctx, &students[i], promotion, sems, academicYear)
			return nil
		})
	}
	_ = g.Wait()

	report := &BulkReport{
		PromotionID:  promotionID,
		AcademicYear: academicYear,
		Students:     len(students),
		Outcomes:     outcomes,
	}
	for _, o := range outcomes {
		if o.Error != "" {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	report.Duration = time.Since(start).String()

	e.logger.Info("promotion recalculated",
		zap.String("promotion", promotion.Name),
		zap.String("academic_year", academicYear),
		zap.Int("students", report.Students),
		zap.Int("failed", report.Failed),
		zap.String("duration", report.Duration))
	return report, nil
}

func (e *Engine) recalculateStudent(ctx context.Context, student *shared.Student, promotion *shared.Promotion, sems []shared.Semester, academicYear string) (outcome StudentOutcome) {
	outcome = StudentOutcome{
		StudentID:           student.ID,
		Matricule:           student.Matricule,
		SemestersCalculated: []string{},
		SemestersSkipped:    []string{},
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("student recalculation panicked", zap.String("student_id", student.ID), zap.Any("panic", r))
			outcome.Error = "internal error"
		}
	}()

	for i := range sems {
		sem := &sems[i]
		complete, err := e.gradesComplete(ctx, student.ID, sem, academicYear)
		if err != nil {
			outcome.Error = err.Error()
			return outcome
		}
		if !complete {
			outcome.SemestersSkipped = append(outcome.SemestersSkipped, sem.Name)
			continue
		}
		if _, err := e.calculateSemester(ctx, student.ID, sem, academicYear, true); err != nil {
			outcome.Error = err.Error()
			return outcome
		}
		outcome.SemestersCalculated = append(outcome.SemestersCalculated, sem.Name)
	}

	complete, err := e.yearComplete(ctx, student.ID, promotion, academicYear)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if !complete {
		return outcome
	}
	annual, err := e.calculateAnnual(ctx, student.ID, promotion, academicYear)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	outcome.AnnualStatus = annual.Status
	return outcome
}
