package calculation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gradebook/backend/internal/policy"
	"gradebook/backend/internal/shared"
	"gradebook/backend/internal/store"
)

const (
	testYear      = "2024-2025"
	testField     = "fld-inf"
	testPromotion = "promo-l1"
	testSem1      = "sem-1"
	testSem2      = "sem-2"
	testStudent   = "stu-1"
)

var fixedNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

// fixture is an L1 promotion with two empty semesters and one student
type fixture struct {
	t      *testing.T
	ctx    context.Context
	store  *store.MemoryStore
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithPolicy(t, policy.Default())
}

func newFixtureWithPolicy(t *testing.T, p *policy.Policy) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	f := &fixture{
		t:      t,
		ctx:    context.Background(),
		store:  st,
		engine: NewEngine(st, p, zap.NewNop(), WithClock(func() time.Time { return fixedNow })),
	}

	f.must(st.PutField(f.ctx, &shared.Field{ID: testField, Code: "INF", Name: "Computer Science", IsActive: true}))
	f.must(st.PutPromotion(f.ctx, &shared.Promotion{
		ID: testPromotion, FieldID: testField, Name: "INF L1", Level: shared.LevelL1, AcademicYear: testYear, IsActive: true,
	}))
	f.must(st.PutSemester(f.ctx, &shared.Semester{ID: testSem1, PromotionID: testPromotion, Name: "S1", Order: 1, Level: shared.LevelL1, IsActive: true}))
	f.must(st.PutSemester(f.ctx, &shared.Semester{ID: testSem2, PromotionID: testPromotion, Name: "S2", Order: 2, Level: shared.LevelL1, IsActive: true}))
	f.addStudent(testStudent, "M001")
	return f
}

func (f *fixture) must(err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("fixture setup failed: %v", err)
	}
}

func (f *fixture) addStudent(id, matricule string) {
	f.t.Helper()
	f.must(f.store.PutStudent(f.ctx, &shared.Student{
		ID: id, Matricule: matricule, Name: "Student " + matricule, FieldID: testField, PromotionID: testPromotion, IsActive: true,
	}))
}

// addTU creates an active TU and one active TUE per credit value, named <tuID>-e1, <tuID>-e2...
func (f *fixture) addTU(semID, tuID string, credits float64, tueCredits ...float64) []string {
	f.t.Helper()
	f.must(f.store.PutTU(f.ctx, &shared.TeachingUnit{ID: tuID, SemesterID: semID, Code: tuID, Name: "TU " + tuID, Credits: credits, IsActive: true}))
	ids := make([]string, 0, len(tueCredits))
	for i, c := range tueCredits {
		id := fmt.Sprintf("%s-e%d", tuID, i+1)
		f.must(f.store.PutTUE(f.ctx, &shared.TeachingUnitElement{ID: id, TUID: tuID, Code: id, Name: "TUE " + id, Credits: c, IsActive: true}))
		ids = append(ids, id)
	}
	return ids
}

// setGrade stores a complete grade whose components all equal score, so finalGrade == score
func (f *fixture) setGrade(studentID, tueID string, score float64) *shared.Grade {
	f.t.Helper()
	p, pa, e, fin := score, score, score, score
	g := &shared.Grade{
		StudentID: studentID, TUEID: tueID, AcademicYear: testYear,
		Presence: &p, Participation: &pa, Evaluation: &e, FinalGrade: &fin,
		CreatedAt: fixedNow, UpdatedAt: fixedNow,
	}
	f.must(f.store.UpsertGrade(f.ctx, g))
	return g
}

// setPartial stores a grade with only presence entered
func (f *fixture) setPartial(studentID, tueID string, presence float64) *shared.Grade {
	f.t.Helper()
	g := &shared.Grade{StudentID: studentID, TUEID: tueID, AcademicYear: testYear, Presence: &presence, CreatedAt: fixedNow, UpdatedAt: fixedNow}
	f.must(f.store.UpsertGrade(f.ctx, g))
	return g
}

func (f *fixture) putSemesterResult(semID string, average, credits float64, semStatus string) {
	f.t.Helper()
	f.must(f.store.UpsertSemesterResult(f.ctx, &shared.SemesterResult{
		StudentID: testStudent, SemesterID: semID, AcademicYear: testYear,
		Average: average, TotalCredits: credits, Status: semStatus, CalculatedAt: fixedNow,
	}))
}

func (f *fixture) tuResult(tuID string) *shared.TUResult {
	f.t.Helper()
	r, err := f.store.FindTUResult(f.ctx, testStudent, tuID, testYear)
	if err != nil {
		f.t.Fatalf("TU result %s not stored: %v", tuID, err)
	}
	return r
}

func (f *fixture) semesterResult(semID string) *shared.SemesterResult {
	f.t.Helper()
	r, err := f.store.FindSemesterResult(f.ctx, testStudent, semID, testYear)
	if err != nil {
		f.t.Fatalf("semester result %s not stored: %v", semID, err)
	}
	return r
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected %s error, got nil", want)
	}
	if got := status.Code(err); got != want {
		t.Fatalf("Expected %s, got %s (%v)", want, got, err)
	}
}
