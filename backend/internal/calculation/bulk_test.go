package calculation

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"

	"gradebook/backend/internal/policy"
	"gradebook/backend/internal/shared"
	"gradebook/backend/internal/store"
)

// flakyStore fails every grade lookup for one student
type flakyStore struct {
	*store.MemoryStore
	failFor string
}

func (s *flakyStore) FindGrade(ctx context.Context, studentID, tueID, academicYear string) (*shared.Grade, error) {
	if studentID == s.failFor {
		return nil, errors.New("connection reset")
	}
	return s.MemoryStore.FindGrade(ctx, studentID, tueID, academicYear)
}

func TestRecalculatePromotion(t *testing.T) {
	t.Run("Mixed Promotion", func(t *testing.T) {
		f := newFixture(t)
		f.addStudent("stu-2", "M002")
		f.addStudent("stu-3", "M003")

		s1 := f.addTU(testSem1, "tu-a", 30, 30)
		s2 := f.addTU(testSem2, "tu-b", 30, 30)
		f.setGrade(testStudent, s1[0], 14)
		f.setGrade(testStudent, s2[0], 12)
		f.setGrade("stu-2", s1[0], 9)
		f.setGrade("stu-2", s2[0], 16)
		f.setGrade("stu-3", s1[0], 13)

		report, err := f.engine.RecalculatePromotion(f.ctx, testPromotion, testYear)
		if err != nil {
			t.Fatalf("RecalculatePromotion failed: %v", err)
		}
		if report.Students != 3 || report.Succeeded != 3 || report.Failed != 0 {
			t.Fatalf("Expected 3 successful students, got %+v", report)
		}

		byID := make(map[string]StudentOutcome)
		for _, o := range report.Outcomes {
			byID[o.StudentID] = o
		}
		if o := byID[testStudent]; o.AnnualStatus != shared.StatusValidated || !reflect.DeepEqual(o.SemestersCalculated, []string{"S1", "S2"}) {
			t.Errorf("Expected %s VALIDATED over both semesters, got %+v", testStudent, o)
		}
		if o := byID["stu-2"]; o.AnnualStatus != shared.StatusNotValidated {
			t.Errorf("Expected stu-2 NOT VALIDATED, got %+v", o)
		}
		if o := byID["stu-3"]; o.AnnualStatus != "" || !reflect.DeepEqual(o.SemestersSkipped, []string{"S2"}) {
			t.Errorf("Expected stu-3 to skip S2 without an annual result, got %+v", o)
		}

		if _, err := f.store.FindSemesterResult(f.ctx, "stu-3", testSem2, testYear); err == nil {
			t.Error("Expected no S2 result for stu-3")
		}
		annual, err := f.store.FindAnnualResult(f.ctx, testStudent, testYear, shared.LevelL1)
		if err != nil || annual.AnnualAverage != 13.00 {
			t.Errorf("Expected stored annual average 13.00, got %+v (%v)", annual, err)
		}
	})

	t.Run("Failing Student Does Not Stop Others", func(t *testing.T) {
		mem := store.NewMemoryStore()
		f := &fixture{t: t, ctx: context.Background(), store: mem}
		f.must(mem.PutField(f.ctx, &shared.Field{ID: testField, Code: "INF", Name: "Computer Science", IsActive: true}))
		f.must(mem.PutPromotion(f.ctx, &shared.Promotion{ID: testPromotion, FieldID: testField, Name: "INF L1", Level: shared.LevelL1, AcademicYear: testYear, IsActive: true}))
		f.must(mem.PutSemester(f.ctx, &shared.Semester{ID: testSem1, PromotionID: testPromotion, Name: "S1", Order: 1, Level: shared.LevelL1, IsActive: true}))
		f.must(mem.PutSemester(f.ctx, &shared.Semester{ID: testSem2, PromotionID: testPromotion, Name: "S2", Order: 2, Level: shared.LevelL1, IsActive: true}))
		f.addStudent(testStudent, "M001")
		f.addStudent("stu-broken", "M999")

		s1 := f.addTU(testSem1, "tu-a", 30, 30)
		s2 := f.addTU(testSem2, "tu-b", 30, 30)
		for _, id := range []string{testStudent, "stu-broken"} {
			f.setGrade(id, s1[0], 12)
			f.setGrade(id, s2[0], 12)
		}

		flaky := &flakyStore{MemoryStore: mem, failFor: "stu-broken"}
		engine := NewEngine(flaky, policy.Default(), zap.NewNop(),
			WithClock(func() time.Time { return fixedNow }), WithWorkers(1))

		report, err := engine.RecalculatePromotion(f.ctx, testPromotion, testYear)
		if err != nil {
			t.Fatalf("RecalculatePromotion failed: %v", err)
		}
		if report.Succeeded != 1 || report.Failed != 1 {
			t.Fatalf("Expected 1 success and 1 failure, got %d/%d", report.Succeeded, report.Failed)
		}
		for _, o := range report.Outcomes {
			switch o.StudentID {
			case "stu-broken":
				if o.Error == "" || o.AnnualStatus != "" {
					t.Errorf("Expected an error outcome, got %+v", o)
				}
			case testStudent:
				if o.Error != "" || o.AnnualStatus != shared.StatusValidated {
					t.Errorf("Expected a VALIDATED outcome, got %+v", o)
				}
			}
		}
	})

	t.Run("Unknown Promotion", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.RecalculatePromotion(f.ctx, "promo-missing", testYear)
		assertCode(t, err, codes.NotFound)
	})

	t.Run("Invalid Year", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.RecalculatePromotion(f.ctx, testPromotion, "2024")
		assertCode(t, err, codes.InvalidArgument)
	})
}
