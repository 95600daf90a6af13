package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gradebook/backend/internal/calculation"
	"gradebook/backend/internal/gateway/util"
	"gradebook/backend/internal/shared"
)

// Calculator is the strict-mode surface of the calculation engine
type Calculator interface {
	CalculateTUAverage(ctx context.Context, studentID, tuID, academicYear string) (*shared.TUResult, error)
	CalculateSemesterAverage(ctx context.Context, studentID, semesterID, academicYear string) (*shared.SemesterResult, error)
	CalculateAnnualResult(ctx context.Context, studentID, level, academicYear string) (*shared.AnnualResult, error)
	RecalculatePromotion(ctx context.Context, promotionID, academicYear string) (*calculation.BulkReport, error)
	ValidateTranscriptReadiness(ctx context.Context, studentID, academicYear, level string) (*calculation.ReadinessReport, error)
}

// CalculationHandler serves admin-triggered calculations and readiness checks
type CalculationHandler struct {
	Engine Calculator
}

// CalculateTU handles POST /calculations/tu
func (h *CalculationHandler) CalculateTU(w http.ResponseWriter, r *http.Request) {
	var req calculation.TURequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Engine.CalculateTUAverage(r.Context(), req.StudentID, req.TUID, req.AcademicYear)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}

// CalculateSemester handles POST /calculations/semester
func (h *CalculationHandler) CalculateSemester(w http.ResponseWriter, r *http.Request) {
	var req calculation.SemesterRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Engine.CalculateSemesterAverage(r.Context(), req.StudentID, req.SemesterID, req.AcademicYear)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}

// CalculateAnnual handles POST /calculations/annual
// Answers 422 when a semester result is missing or the semesters carry no credits.
func (h *CalculationHandler) CalculateAnnual(w http.ResponseWriter, r *http.Request) {
	var req calculation.AnnualRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Engine.CalculateAnnualResult(r.Context(), req.StudentID, req.Level, req.AcademicYear)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}

// Recalculate handles POST /calculations/recalculate
func (h *CalculationHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	var req calculation.RecalculateRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.Engine.RecalculatePromotion(r.Context(), req.PromotionID, req.AcademicYear)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, report)
}

// GetReadiness handles GET /students/{studentId}/readiness
// Query Params: academicYear, level
func (h *CalculationHandler) GetReadiness(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := h.Engine.ValidateTranscriptReadiness(r.Context(), chi.URLParam(r, "studentId"), q.Get("academicYear"), q.Get("level"))
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, report)
}
