package calculation

import (
	"context"

	"go.uber.org/zap"

	"gradebook/backend/internal/shared"
)

// SemesterRequest identifies one semester aggregation
type SemesterRequest struct {
	StudentID    string `json:"studentId" validate:"required"`
	SemesterID   string `json:"semesterId" validate:"required"`
	AcademicYear string `json:"academicYear" validate:"required,academic_year"`
}

// CalculateSemesterAverage refreshes every TU of the semester, stores the
// semester result and then probes whether the annual result can be produced.
func (e *Engine) CalculateSemesterAverage(ctx context.Context, studentID, semesterID, academicYear string) (*shared.SemesterResult, error) {
	req := SemesterRequest{StudentID: studentID, SemesterID: semesterID, AcademicYear: academicYear}
	if err := shared.ValidateStruct(req); err != nil {
		return nil, invalidArgument(err)
	}

	if _, err := e.store.GetStudent(ctx, studentID); err != nil {
		return nil, storeError(err, "student "+studentID)
	}
	sem, err := e.store.GetSemester(ctx, semesterID)
	if err != nil {
		return nil, storeError(err, "semester "+semesterID)
	}

	result, err := e.calculateSemester(ctx, studentID, sem, academicYear, true)
	if err != nil {
		return nil, err
	}
	e.probeAnnual(ctx, studentID, sem, academicYear)
	return result, nil
}

// calculateSemester aggregates the semester. With refresh every TU result is
// recomputed and written once after the compensation decision; without it the
// stored TU results are used and only rewritten when compensation changes.
func (e *Engine) calculateSemester(ctx context.Context, studentID string, sem *shared.Semester, academicYear string, refresh bool) (*shared.SemesterResult, error) {
	tus, err := e.store.ListActiveTUs(ctx, sem.ID)
	if err != nil {
		return nil, storeError(err, "teaching units of "+sem.Name)
	}

	results := make([]*shared.TUResult, 0, len(tus))
	for i := range tus {
		tu := &tus[i]
		var r *shared.TUResult
		if refresh {
			r, err = e.computeTU(ctx, studentID, tu, academicYear)
			if err != nil {
				return nil, err
			}
		} else {
			r, err = e.store.FindTUResult(ctx, studentID, tu.ID, academicYear)
			if err != nil {
				return nil, storeError(err, "TU result for "+tu.Code)
			}
		}
		// hierarchy credits win over whatever was stored
		r.Credits = tu.Credits
		results = append(results, r)
	}

	var weighted, totalCredits float64
	var hardFails int
	var compensable []*shared.TUResult
	for _, r := range results {
		weighted += r.Average * r.Credits
		totalCredits += r.Credits
		switch {
		case e.policy.IsHardFail(r.Average):
			hardFails++
		case e.policy.IsCompensable(r.Average):
			compensable = append(compensable, r)
		}
	}

	average := 0.0
	if totalCredits > 0 {
		average = shared.Round2(weighted / totalCredits)
	}

	status := shared.StatusNotValidated
	if hardFails == 0 && e.policy.IsValidated(average) && len(compensable) <= e.policy.MaxCompensatedPerSemester {
		status = shared.StatusValidated
	}

	compensated := make(map[string]bool)
	if status == shared.StatusValidated {
		for _, r := range compensable {
			compensated[r.TUID] = true
		}
	}

	result := &shared.SemesterResult{
		StudentID:    studentID,
		SemesterID:   sem.ID,
		AcademicYear: academicYear,
		Average:      average,
		TotalCredits: totalCredits,
		Status:       status,
		Mention:      mentionForStatus(average, status),
		CalculatedAt: e.now(),
	}

	for _, r := range results {
		if e.applyCompensation(r, compensated[r.TUID]) || refresh {
			if err := e.store.UpsertTUResult(ctx, r); err != nil {
				return nil, writeError(err, "TU result")
			}
		}
		result.CreditsEarned += r.CreditsEarned
		switch r.Status {
		case shared.TUStatusCompensated:
			result.CompensatedTUIDs = append(result.CompensatedTUIDs, r.TUID)
		case shared.TUStatusNotValid:
			result.FailedTUIDs = append(result.FailedTUIDs, r.TUID)
		}
	}

	if err := e.store.UpsertSemesterResult(ctx, result); err != nil {
		return nil, writeError(err, "semester result")
	}

	e.logger.Info("semester result calculated",
		zap.String("student_id", studentID),
		zap.String("semester", sem.Name),
		zap.Float64("average", result.Average),
		zap.String("status", result.Status),
		zap.Int("compensated", len(result.CompensatedTUIDs)))
	return result, nil
}

// applyCompensation applies or withdraws compensation on a TU result and
// reports whether its status or earned credits changed.
func (e *Engine) applyCompensation(r *shared.TUResult, compensate bool) bool {
	wantStatus, wantCredits := r.Status, r.CreditsEarned
	switch {
	case compensate:
		wantStatus, wantCredits = shared.TUStatusCompensated, r.Credits
	case r.Status == shared.TUStatusCompensated:
		// compensation no longer applies
		wantStatus, wantCredits = shared.TUStatusNotValid, 0
		if e.policy.IsValidated(r.Average) && r.Credits > 0 {
			wantStatus, wantCredits = shared.TUStatusValidated, r.Credits
		}
	case r.Status == shared.TUStatusValidated:
		wantCredits = r.Credits
	}

	if wantStatus == r.Status && wantCredits == r.CreditsEarned {
		return false
	}
	r.Status = wantStatus
	r.CreditsEarned = wantCredits
	r.CalculatedAt = e.now()
	return true
}
