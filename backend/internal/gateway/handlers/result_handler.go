package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gradebook/backend/internal/gateway/util"
	"gradebook/backend/internal/shared"
	"gradebook/backend/internal/store"
)

// ResultHandler exposes stored results read-only for transcripts and exports
type ResultHandler struct {
	Results store.ResultRepository
}

func academicYearParam(r *http.Request) (string, error) {
	year := r.URL.Query().Get("academicYear")
	if !shared.IsValidAcademicYear(year) {
		return "", status.Errorf(codes.InvalidArgument, "academicYear must look like 2024-2025, got %q", year)
	}
	return year, nil
}

func resultError(err error, what string) error {
	if store.IsNotFound(err) {
		return status.Errorf(codes.NotFound, "%s not calculated", what)
	}
	return status.Errorf(codes.Internal, "failed to retrieve %s", what)
}

// GetTUResult handles GET /results/students/{studentId}/tu/{tuId}?academicYear=
func (h *ResultHandler) GetTUResult(w http.ResponseWriter, r *http.Request) {
	year, err := academicYearParam(r)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	res, err := h.Results.FindTUResult(r.Context(), chi.URLParam(r, "studentId"), chi.URLParam(r, "tuId"), year)
	if err != nil {
		util.HandleGRPCError(w, resultError(err, "TU result"))
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}

// GetSemesterResult handles GET /results/students/{studentId}/semesters/{semesterId}?academicYear=
// The semester's TU results are included.
func (h *ResultHandler) GetSemesterResult(w http.ResponseWriter, r *http.Request) {
	year, err := academicYearParam(r)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	studentID, semesterID := chi.URLParam(r, "studentId"), chi.URLParam(r, "semesterId")

	res, err := h.Results.FindSemesterResult(r.Context(), studentID, semesterID, year)
	if err != nil {
		util.HandleGRPCError(w, resultError(err, "semester result"))
		return
	}
	tus, err := h.Results.ListTUResults(r.Context(), studentID, semesterID, year)
	if err != nil {
		util.HandleGRPCError(w, resultError(err, "TU results"))
		return
	}
	if tus == nil {
		tus = []shared.TUResult{}
	}

	response := map[string]interface{}{
		"success":    true,
		"semester":   res,
		"tu_results": tus,
	}
	util.WriteJSON(w, http.StatusOK, response)
}

// GetAnnualResult handles GET /results/students/{studentId}/annual?academicYear=&level=
func (h *ResultHandler) GetAnnualResult(w http.ResponseWriter, r *http.Request) {
	year, err := academicYearParam(r)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	level := r.URL.Query().Get("level")
	if !shared.IsValidLevel(level) {
		util.WriteJSONError(w, http.StatusBadRequest, "level must be one of L1, L2, L3, M1, M2")
		return
	}

	res, err := h.Results.FindAnnualResult(r.Context(), chi.URLParam(r, "studentId"), year, level)
	if err != nil {
		util.HandleGRPCError(w, resultError(err, "annual result"))
		return
	}
	util.WriteJSON(w, http.StatusOK, res)
}
