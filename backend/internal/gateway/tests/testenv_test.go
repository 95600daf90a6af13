package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"gradebook/backend/internal/calculation"
	"gradebook/backend/internal/gateway"
	"gradebook/backend/internal/grade"
	"gradebook/backend/internal/policy"
	"gradebook/backend/internal/shared"
	"gradebook/backend/internal/store"
)

const testYear = "2024-2025"

// TestEnv holds the running components for the test
type TestEnv struct {
	Router http.Handler
	Store  *store.MemoryStore
	Engine *calculation.Engine
}

// setupGatewayTestEnv wires the whole stack on an in-memory store.
// The promotion has one TU per semester, each with a single 30 credit TUE.
func setupGatewayTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()

	seed := []error{
		st.PutField(ctx, &shared.Field{ID: "fld", Code: "INF", Name: "Computer Science", IsActive: true}),
		st.PutPromotion(ctx, &shared.Promotion{ID: "promo", FieldID: "fld", Name: "INF L1", Level: shared.LevelL1, AcademicYear: testYear, IsActive: true}),
		st.PutSemester(ctx, &shared.Semester{ID: "sem-1", PromotionID: "promo", Name: "S1", Order: 1, Level: shared.LevelL1, IsActive: true}),
		st.PutSemester(ctx, &shared.Semester{ID: "sem-2", PromotionID: "promo", Name: "S2", Order: 2, Level: shared.LevelL1, IsActive: true}),
		st.PutTU(ctx, &shared.TeachingUnit{ID: "tu-1", SemesterID: "sem-1", Code: "INF101", Name: "Programming", Credits: 30, IsActive: true}),
		st.PutTUE(ctx, &shared.TeachingUnitElement{ID: "tue-1", TUID: "tu-1", Code: "INF101A", Name: "Algorithms", Credits: 30, IsActive: true}),
		st.PutTU(ctx, &shared.TeachingUnit{ID: "tu-2", SemesterID: "sem-2", Code: "INF201", Name: "Systems", Credits: 30, IsActive: true}),
		st.PutTUE(ctx, &shared.TeachingUnitElement{ID: "tue-2", TUID: "tu-2", Code: "INF201A", Name: "Operating Systems", Credits: 30, IsActive: true}),
		st.PutStudent(ctx, &shared.Student{ID: "stu-1", Matricule: "M001", Name: "Ada", FieldID: "fld", PromotionID: "promo", IsActive: true}),
	}
	for _, err := range seed {
		if err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
	}

	logger := zap.NewNop()
	p := policy.Default()
	engine := calculation.NewEngine(st, p, logger)
	grades := grade.NewGradeService(st, p, engine, logger, shared.CalculationConfig{})

	router := gateway.SetupRoutes(&gateway.Services{
		Grades:  grades,
		Engine:  engine,
		Results: st,
	}, shared.HTTPConfig{CORS: shared.CORSConfig{AllowedOrigins: []string{"*"}}})

	return &TestEnv{Router: router, Store: st, Engine: engine}
}

// do sends a request through the router; a non-nil body is JSON encoded
func (env *TestEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	env.Router.ServeHTTP(rr, req)
	return rr
}

// decodeData unwraps the {"success": true, "data": ...} envelope
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rr.Body.String(), err)
	}
	if !envelope.Success {
		t.Fatalf("Expected success, got %s", rr.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		t.Fatalf("invalid data %s: %v", envelope.Data, err)
	}
}

func gradeBody(tueID string, score float64) map[string]interface{} {
	return map[string]interface{}{
		"studentId":     "stu-1",
		"tueId":         tueID,
		"academicYear":  testYear,
		"presence":      score,
		"participation": score,
		"evaluation":    score,
	}
}
