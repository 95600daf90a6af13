package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gradebook/backend/internal/gateway/util"
	"gradebook/backend/internal/grade"
	"gradebook/backend/internal/shared"
)

// GradeEntry is the grade-entry service used by the handler
type GradeEntry interface {
	SaveGrade(ctx context.Context, req *grade.SaveGradeRequest) (*shared.Grade, error)
	UploadGrades(ctx context.Context, entries []grade.SaveGradeRequest) *grade.UploadResult
	GetGrade(ctx context.Context, id string) (*shared.Grade, error)
	ListStudentGrades(ctx context.Context, studentID, academicYear string) ([]shared.Grade, error)
}

// GradeHandler serves grade entry and lookup
type GradeHandler struct {
	Grades GradeEntry
}

// RESTUploadGradesRequest mirrors the JSON input for POST /grades/upload
type RESTUploadGradesRequest struct {
	Entries []grade.SaveGradeRequest `json:"entries"`
}

// SaveGrade handles POST /grades
// Creates or updates one grade. Aggregation problems downstream never fail the save.
func (h *GradeHandler) SaveGrade(w http.ResponseWriter, r *http.Request) {
	var req grade.SaveGradeRequest
	if err := util.DecodeJSON(r, &req); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	g, err := h.Grades.SaveGrade(r.Context(), &req)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, g)
}

// UploadGrades handles POST /grades/upload
// Saves a batch of entries; failures are reported per entry.
func (h *GradeHandler) UploadGrades(w http.ResponseWriter, r *http.Request) {
	var reqBody RESTUploadGradesRequest
	if err := util.DecodeJSON(r, &reqBody); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(reqBody.Entries) == 0 {
		util.WriteJSONError(w, http.StatusBadRequest, "No grade entries provided")
		return
	}

	result := h.Grades.UploadGrades(r.Context(), reqBody.Entries)

	response := map[string]interface{}{
		"success":         result.Successful > 0,
		"total_processed": result.TotalProcessed,
		"successful":      result.Successful,
		"failed":          result.Failed,
		"errors":          result.Errors,
		"message":         result.Message,
	}
	util.WriteJSON(w, http.StatusOK, response)
}

// GetGrade handles GET /grades/{id}
func (h *GradeHandler) GetGrade(w http.ResponseWriter, r *http.Request) {
	g, err := h.Grades.GetGrade(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, g)
}

// GetStudentGrades handles GET /students/{studentId}/grades
// Query Params: academicYear (optional)
func (h *GradeHandler) GetStudentGrades(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentId")
	academicYear := r.URL.Query().Get("academicYear")

	grades, err := h.Grades.ListStudentGrades(r.Context(), studentID, academicYear)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}

	response := map[string]interface{}{
		"success":      true,
		"student_id":   studentID,
		"grades":       grades,
		"total_grades": len(grades),
	}
	util.WriteJSON(w, http.StatusOK, response)
}
