package tests

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"gradebook/backend/internal/calculation"
	"gradebook/backend/internal/shared"
)

func TestGateway_Calculation(t *testing.T) {
	env := setupGatewayTestEnv(t)
	ctx := context.Background()

	// Grades are written through the store so the cascade does not run
	for _, tue := range []string{"tue-1", "tue-2"} {
		score := 13.0
		if err := env.Store.UpsertGrade(ctx, &shared.Grade{
			StudentID: "stu-1", TUEID: tue, AcademicYear: testYear,
			Presence: &score, Participation: &score, Evaluation: &score, FinalGrade: &score,
		}); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
	}

	// --- Test 1: Annual before semesters (POST /api/calculations/annual) ---
	t.Run("Annual Without Semester Results", func(t *testing.T) {
		rr := env.do(t, "POST", "/api/calculations/annual", map[string]string{
			"studentId": "stu-1", "level": shared.LevelL1, "academicYear": testYear,
		})
		if rr.Code != http.StatusUnprocessableEntity {
			t.Errorf("Expected 422, got %d. Body: %s", rr.Code, rr.Body.String())
		}
	})

	// --- Test 2: Calculate TU (POST /api/calculations/tu) ---
	t.Run("Calculate TU", func(t *testing.T) {
		rr := env.do(t, "POST", "/api/calculations/tu", map[string]string{
			"studentId": "stu-1", "tuId": "tu-1", "academicYear": testYear,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		var res shared.TUResult
		decodeData(t, rr, &res)
		if res.Average != 13.00 || res.Status != shared.TUStatusValidated {
			t.Errorf("Expected 13.00/V, got %.2f/%s", res.Average, res.Status)
		}
	})

	// --- Test 3: Readiness with nothing aggregated yet ---
	t.Run("Readiness Incomplete", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/students/stu-1/readiness?academicYear="+testYear+"&level=L1", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		var report calculation.ReadinessReport
		decodeData(t, rr, &report)
		if report.Status != calculation.ReadinessIncomplete || report.CompletionPercentage != 0 {
			t.Errorf("Expected INCOMPLETE at 0%%, got %s at %d%%", report.Status, report.CompletionPercentage)
		}
	})

	// --- Test 4: Both semesters (POST /api/calculations/semester) ---
	t.Run("Calculate Semesters", func(t *testing.T) {
		for _, sem := range []string{"sem-1", "sem-2"} {
			rr := env.do(t, "POST", "/api/calculations/semester", map[string]string{
				"studentId": "stu-1", "semesterId": sem, "academicYear": testYear,
			})
			if rr.Code != http.StatusOK {
				t.Fatalf("%s: expected 200, got %d. Body: %s", sem, rr.Code, rr.Body.String())
			}
		}
	})

	// --- Test 5: Annual result is readable (GET /api/results/students/{id}/annual) ---
	t.Run("Annual Result", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/results/students/stu-1/annual?academicYear="+testYear+"&level=L1", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		var res shared.AnnualResult
		decodeData(t, rr, &res)
		if res.AnnualAverage != 13.00 || res.Status != shared.StatusValidated || res.Mention != "C+" {
			t.Errorf("Expected 13.00/VALIDATED/C+, got %.2f/%s/%s", res.AnnualAverage, res.Status, res.Mention)
		}
	})

	t.Run("Semester Result With TUs", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/results/students/stu-1/semesters/sem-1?academicYear="+testYear, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		if !strings.Contains(rr.Body.String(), `"tu_results"`) {
			t.Errorf("Expected TU results in the body, got %s", rr.Body.String())
		}
	})

	t.Run("Readiness Ready", func(t *testing.T) {
		rr := env.do(t, "GET", "/api/students/stu-1/readiness?academicYear="+testYear+"&level=L1", nil)
		var report calculation.ReadinessReport
		decodeData(t, rr, &report)
		if !report.ReadyForTranscript || report.CompletionPercentage != 100 {
			t.Errorf("Expected ready at 100%%, got %+v", report)
		}
	})

	// --- Test 6: Bulk recalculation (POST /api/calculations/recalculate) ---
	t.Run("Recalculate Promotion", func(t *testing.T) {
		rr := env.do(t, "POST", "/api/calculations/recalculate", map[string]string{
			"promotionId": "promo", "academicYear": testYear,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d. Body: %s", rr.Code, rr.Body.String())
		}
		var report calculation.BulkReport
		decodeData(t, rr, &report)
		if report.Students != 1 || report.Succeeded != 1 {
			t.Errorf("Expected one successful student, got %+v", report)
		}
	})

	t.Run("Error Mapping", func(t *testing.T) {
		cases := []struct {
			name   string
			method string
			path   string
			body   interface{}
			want   int
		}{
			{"invalid level", "POST", "/api/calculations/annual", map[string]string{"studentId": "stu-1", "level": "L9", "academicYear": testYear}, http.StatusBadRequest},
			{"unknown TU", "POST", "/api/calculations/tu", map[string]string{"studentId": "stu-1", "tuId": "tu-x", "academicYear": testYear}, http.StatusNotFound},
			{"unknown promotion", "POST", "/api/calculations/recalculate", map[string]string{"promotionId": "promo-x", "academicYear": testYear}, http.StatusNotFound},
			{"result year missing", "GET", "/api/results/students/stu-1/tu/tu-1", nil, http.StatusBadRequest},
			{"result not calculated", "GET", "/api/results/students/stu-2/tu/tu-1?academicYear=" + testYear, nil, http.StatusNotFound},
			{"readiness bad level", "GET", "/api/students/stu-1/readiness?academicYear=" + testYear + "&level=PhD", nil, http.StatusBadRequest},
		}
		for _, tc := range cases {
			rr := env.do(t, tc.method, tc.path, tc.body)
			if rr.Code != tc.want {
				t.Errorf("%s: expected %d, got %d. Body: %s", tc.name, tc.want, rr.Code, rr.Body.String())
			}
		}
	})
}
