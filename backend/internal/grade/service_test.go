package grade_test

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gradebook/backend/internal/calculation"
	"gradebook/backend/internal/grade"
	"gradebook/backend/internal/policy"
	"gradebook/backend/internal/shared"
	"gradebook/backend/internal/store"
)

const year = "2024-2025"

// recordingCascade remembers which grades were reported as changed
type recordingCascade struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingCascade) OnGradeChange(_ context.Context, gradeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, gradeID)
}

func (r *recordingCascade) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ids...)
}

func ptr(v float64) *float64 { return &v }

func seedStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	steps := []error{
		st.PutField(ctx, &shared.Field{ID: "fld", Code: "INF", Name: "Computer Science", IsActive: true}),
		st.PutPromotion(ctx, &shared.Promotion{ID: "promo", FieldID: "fld", Name: "INF L1", Level: shared.LevelL1, AcademicYear: year, IsActive: true}),
		st.PutSemester(ctx, &shared.Semester{ID: "sem-1", PromotionID: "promo", Name: "S1", Order: 1, Level: shared.LevelL1, IsActive: true}),
		st.PutSemester(ctx, &shared.Semester{ID: "sem-2", PromotionID: "promo", Name: "S2", Order: 2, Level: shared.LevelL1, IsActive: true}),
		st.PutTU(ctx, &shared.TeachingUnit{ID: "tu-1", SemesterID: "sem-1", Code: "INF101", Name: "Programming", Credits: 6, IsActive: true}),
		st.PutTUE(ctx, &shared.TeachingUnitElement{ID: "tue-plain", TUID: "tu-1", Code: "INF101B", Name: "Lab", Credits: 3, IsActive: true}),
		st.PutTUE(ctx, &shared.TeachingUnitElement{
			ID: "tue-schema", TUID: "tu-1", Code: "INF101A", Name: "Algorithms", Credits: 3, IsActive: true,
			EvaluationSchema: []shared.EvaluationItem{{Name: "exam", Weight: 60}, {Name: "project", Weight: 30}},
		}),
		st.PutStudent(ctx, &shared.Student{ID: "stu-1", Matricule: "M001", Name: "Ada", FieldID: "fld", PromotionID: "promo", IsActive: true}),
	}
	for _, err := range steps {
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	return st
}

func newService(st store.Store, cascade grade.CascadeTrigger) *grade.GradeService {
	return grade.NewGradeService(st, policy.Default(), cascade, zap.NewNop(), shared.CalculationConfig{})
}

func TestSaveGrade(t *testing.T) {
	ctx := context.Background()

	t.Run("Complete Grade Is Finalized", func(t *testing.T) {
		cascade := &recordingCascade{}
		svc := newService(seedStore(t), cascade)

		g, err := svc.SaveGrade(ctx, &grade.SaveGradeRequest{
			StudentID: "stu-1", TUEID: "tue-plain", AcademicYear: year,
			Presence: ptr(20), Participation: ptr(10), Evaluation: ptr(15),
		})
		if err != nil {
			t.Fatalf("SaveGrade failed: %v", err)
		}
		if g.FinalGrade == nil || *g.FinalGrade != 15.00 {
			t.Errorf("Expected final grade 15.00, got %v", g.FinalGrade)
		}
		if calls := cascade.calls(); len(calls) != 1 || calls[0] != g.ID {
			t.Errorf("Expected one cascade for %s, got %v", g.ID, calls)
		}
	})

	t.Run("Partial Grade Has No Final Grade", func(t *testing.T) {
		cascade := &recordingCascade{}
		svc := newService(seedStore(t), cascade)

		g, err := svc.SaveGrade(ctx, &grade.SaveGradeRequest{StudentID: "stu-1", TUEID: "tue-plain", AcademicYear: year, Presence: ptr(18)})
		if err != nil {
			t.Fatalf("SaveGrade failed: %v", err)
		}
		if g.FinalGrade != nil {
			t.Errorf("Expected no final grade, got %.2f", *g.FinalGrade)
		}
		if len(cascade.calls()) != 1 {
			t.Errorf("Expected the cascade to run for partial grades too, got %v", cascade.calls())
		}
	})

	t.Run("Later Entries Merge With Stored Components", func(t *testing.T) {
		svc := newService(seedStore(t), nil)

		first, err := svc.SaveGrade(ctx, &grade.SaveGradeRequest{StudentID: "stu-1", TUEID: "tue-plain", AcademicYear: year, Presence: ptr(20), Participation: ptr(20)})
		if err != nil {
			t.Fatalf("first save failed: %v", err)
		}
		second, err := svc.SaveGrade(ctx, &grade.SaveGradeRequest{StudentID: "stu-1", TUEID: "tue-plain", AcademicYear: year, Evaluation: ptr(10)})
		if err != nil {
			t.Fatalf("second save failed: %v", err)
		}
		if first.ID != second.ID {
			t.Errorf("Expected the same grade to be updated, got %s and %s", first.ID, second.ID)
		}
		if second.FinalGrade == nil || *second.FinalGrade != 11.00 {
			t.Errorf("Expected final grade 11.00, got %v", second.FinalGrade)
		}
		if !second.CreatedAt.Equal(first.CreatedAt) {
			t.Errorf("Expected CreatedAt to be kept, got %v then %v", first.CreatedAt, second.CreatedAt)
		}
	})

	t.Run("Evaluation From Schema Scores", func(t *testing.T) {
		svc := newService(seedStore(t), nil)

		g, err := svc.SaveGrade(ctx, &grade.SaveGradeRequest{
			StudentID: "stu-1", TUEID: "tue-schema", AcademicYear: year,
			Presence: ptr(20), Participation: ptr(20), EvaluationScores: map[string]float64{"exam": 15},
		})
		if err != nil {
			t.Fatalf("first save failed: %v", err)
		}
		if g.Evaluation != nil || g.FinalGrade != nil {
			t.Errorf("Expected evaluation pending until every item is scored, got %v / %v", g.Evaluation, g.FinalGrade)
		}

		g, err = svc.SaveGrade(ctx, &grade.SaveGradeRequest{
			StudentID: "stu-1", TUEID: "tue-schema", AcademicYear: year, EvaluationScores: map[string]float64{"project": 12},
		})
		if err != nil {
			t.Fatalf("second save failed: %v", err)
		}
		if g.Evaluation == nil || *g.Evaluation != 14.00 || g.FinalGrade == nil || *g.FinalGrade != 14.6 {
			t.Errorf("Expected evaluation 14.00 and final 14.60, got %v / %v", g.Evaluation, g.FinalGrade)
		}
	})

	t.Run("Rejected Entries", func(t *testing.T) {
		svc := newService(seedStore(t), nil)

		cases := []struct {
			name string
			req  *grade.SaveGradeRequest
			code codes.Code
		}{
			{"nil request", nil, codes.InvalidArgument},
			{"bad academic year", &grade.SaveGradeRequest{StudentID: "stu-1", TUEID: "tue-plain", AcademicYear: "2024-2026", Presence: ptr(10)}, codes.InvalidArgument},
			{"score above 20", &grade.SaveGradeRequest{StudentID: "stu-1", TUEID: "tue-plain", AcademicYear: year, Presence: ptr(20.5)}, codes.InvalidArgument},
			{"raw evaluation on schema TUE", &grade.SaveGradeRequest{StudentID: "stu-1", TUEID: "tue-schema", AcademicYear: year, Evaluation: ptr(12)}, codes.InvalidArgument},
			{"unknown student", &grade.SaveGradeRequest{StudentID: "nobody", TUEID: "tue-plain", AcademicYear: year, Presence: ptr(10)}, codes.NotFound},
			{"unknown TUE", &grade.SaveGradeRequest{StudentID: "stu-1", TUEID: "tue-missing", AcademicYear: year, Presence: ptr(10)}, codes.NotFound},
		}
		for _, tc := range cases {
			_, err := svc.SaveGrade(ctx, tc.req)
			if got := status.Code(err); got != tc.code {
				t.Errorf("%s: expected %s, got %s (%v)", tc.name, tc.code, got, err)
			}
		}
	})

	t.Run("Cascade Produces TU Result", func(t *testing.T) {
		st := seedStore(t)
		engine := calculation.NewEngine(st, policy.Default(), zap.NewNop())
		svc := newService(st, engine)

		if _, err := svc.SaveGrade(ctx, &grade.SaveGradeRequest{
			StudentID: "stu-1", TUEID: "tue-plain", AcademicYear: year, Presence: ptr(14), Participation: ptr(14), Evaluation: ptr(14),
		}); err != nil {
			t.Fatalf("SaveGrade failed: %v", err)
		}
		if _, err := st.FindTUResult(ctx, "stu-1", "tu-1", year); !store.IsNotFound(err) {
			t.Fatalf("Expected no TU result while a sibling TUE is ungraded, got %v", err)
		}

		if _, err := svc.SaveGrade(ctx, &grade.SaveGradeRequest{
			StudentID: "stu-1", TUEID: "tue-schema", AcademicYear: year, Presence: ptr(10), Participation: ptr(10),
			EvaluationScores: map[string]float64{"exam": 10, "project": 10},
		}); err != nil {
			t.Fatalf("SaveGrade failed: %v", err)
		}
		r, err := st.FindTUResult(ctx, "stu-1", "tu-1", year)
		if err != nil {
			t.Fatalf("Expected a TU result after the last TUE, got %v", err)
		}
		if r.Average != 12.00 || r.Status != shared.TUStatusValidated {
			t.Errorf("Expected 12.00/V, got %.2f/%s", r.Average, r.Status)
		}
	})
}

func TestUploadGrades(t *testing.T) {
	svc := newService(seedStore(t), nil)

	result := svc.UploadGrades(context.Background(), []grade.SaveGradeRequest{
		{StudentID: "stu-1", TUEID: "tue-plain", AcademicYear: year, Presence: ptr(12)},
		{StudentID: "ghost", TUEID: "tue-plain", AcademicYear: year, Presence: ptr(12)},
		{StudentID: "stu-1", TUEID: "tue-plain", AcademicYear: year, Participation: ptr(25)},
	})
	if result.TotalProcessed != 3 || result.Successful != 1 || result.Failed != 2 {
		t.Errorf("Expected 3 processed, 1 successful and 2 failed, got %+v", result)
	}
	if len(result.Errors) != 2 {
		t.Errorf("Expected 2 error messages, got %v", result.Errors)
	}
}

func TestListStudentGrades(t *testing.T) {
	ctx := context.Background()
	svc := newService(seedStore(t), nil)

	grades, err := svc.ListStudentGrades(ctx, "stu-1", year)
	if err != nil {
		t.Fatalf("ListStudentGrades failed: %v", err)
	}
	if grades == nil || len(grades) != 0 {
		t.Errorf("Expected an empty list, got %v", grades)
	}

	if _, err := svc.SaveGrade(ctx, &grade.SaveGradeRequest{StudentID: "stu-1", TUEID: "tue-plain", AcademicYear: year, Presence: ptr(12)}); err != nil {
		t.Fatalf("SaveGrade failed: %v", err)
	}
	grades, err = svc.ListStudentGrades(ctx, "stu-1", "")
	if err != nil || len(grades) != 1 {
		t.Errorf("Expected one grade, got %v (%v)", grades, err)
	}

	if _, err := svc.ListStudentGrades(ctx, "stu-1", "2024"); status.Code(err) != codes.InvalidArgument {
		t.Errorf("Expected InvalidArgument, got %v", err)
	}
	if _, err := svc.GetGrade(ctx, "GRD-missing"); status.Code(err) != codes.NotFound {
		t.Errorf("Expected NotFound, got %v", err)
	}
}
