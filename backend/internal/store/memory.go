package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gradebook/backend/internal/shared"
)

// WriteStats counts upserts per result kind
type WriteStats struct {
	Grades          int
	TUResults       int
	SemesterResults int
	AnnualResults   int
}

// MemoryStore is an in-process Store used by tests and STORE_DRIVER=memory
type MemoryStore struct {
	mu sync.RWMutex

	fields     map[string]shared.Field
	promotions map[string]shared.Promotion
	semesters  map[string]shared.Semester
	tus        map[string]shared.TeachingUnit
	tues       map[string]shared.TeachingUnitElement
	students   map[string]shared.Student

	grades          map[string]shared.Grade
	tuResults       map[string]shared.TUResult
	semesterResults map[string]shared.SemesterResult
	annualResults   map[string]shared.AnnualResult

	stats WriteStats
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fields:          make(map[string]shared.Field),
		promotions:      make(map[string]shared.Promotion),
		semesters:       make(map[string]shared.Semester),
		tus:             make(map[string]shared.TeachingUnit),
		tues:            make(map[string]shared.TeachingUnitElement),
		students:        make(map[string]shared.Student),
		grades:          make(map[string]shared.Grade),
		tuResults:       make(map[string]shared.TUResult),
		semesterResults: make(map[string]shared.SemesterResult),
		annualResults:   make(map[string]shared.AnnualResult),
	}
}

// Stats returns the number of upserts done so far
func (m *MemoryStore) Stats() WriteStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

func notFound(kind string, key ...string) error {
	return fmt.Errorf("%s %v: %w", kind, key, ErrNotFound)
}

// ============================================================================
// Hierarchy
// ============================================================================

func (m *MemoryStore) GetStudent(_ context.Context, id string) (*shared.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.students[id]
	if !ok {
		return nil, notFound("student", id)
	}
	return &st, nil
}

func (m *MemoryStore) ListStudentsByPromotion(_ context.Context, promotionID string) ([]shared.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []shared.Student
	for _, st := range m.students {
		if st.PromotionID == promotionID && st.IsActive {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Matricule < out[j].Matricule })
	return out, nil
}

func (m *MemoryStore) GetPromotion(_ context.Context, id string) (*shared.Promotion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.promotions[id]
	if !ok {
		return nil, notFound("promotion", id)
	}
	return &p, nil
}

func (m *MemoryStore) FindPromotion(_ context.Context, fieldID, level, academicYear string) (*shared.Promotion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.promotions {
		if p.FieldID == fieldID && p.Level == level && p.AcademicYear == academicYear && p.IsActive {
			return &p, nil
		}
	}
	return nil, notFound("promotion", fieldID, level, academicYear)
}

func (m *MemoryStore) GetSemester(_ context.Context, id string) (*shared.Semester, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.semesters[id]
	if !ok {
		return nil, notFound("semester", id)
	}
	return &s, nil
}

func (m *MemoryStore) ListSemesters(_ context.Context, promotionID string) ([]shared.Semester, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []shared.Semester
	for _, s := range m.semesters {
		if s.PromotionID == promotionID && s.IsActive {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (m *MemoryStore) GetTU(_ context.Context, id string) (*shared.TeachingUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tu, ok := m.tus[id]
	if !ok {
		return nil, notFound("teaching unit", id)
	}
	return &tu, nil
}

func (m *MemoryStore) ListActiveTUs(_ context.Context, semesterID string) ([]shared.TeachingUnit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []shared.TeachingUnit
	for _, tu := range m.tus {
		if tu.SemesterID == semesterID && tu.IsActive {
			out = append(out, tu)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryStore) GetTUE(_ context.Context, id string) (*shared.TeachingUnitElement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tue, ok := m.tues[id]
	if !ok {
		return nil, notFound("teaching unit element", id)
	}
	return &tue, nil
}

func (m *MemoryStore) ListActiveTUEs(_ context.Context, tuID string) ([]shared.TeachingUnitElement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []shared.TeachingUnitElement
	for _, tue := range m.tues {
		if tue.TUID == tuID && tue.IsActive {
			out = append(out, tue)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryStore) PutField(_ context.Context, f *shared.Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields[f.ID] = *f
	return nil
}

func (m *MemoryStore) PutPromotion(_ context.Context, p *shared.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.promotions[p.ID] = *p
	return nil
}

func (m *MemoryStore) PutSemester(_ context.Context, s *shared.Semester) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.semesters[s.ID] = *s
	return nil
}

func (m *MemoryStore) PutTU(_ context.Context, tu *shared.TeachingUnit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tus[tu.ID] = *tu
	return nil
}

func (m *MemoryStore) PutTUE(_ context.Context, tue *shared.TeachingUnitElement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tues[tue.ID] = *tue
	return nil
}

func (m *MemoryStore) PutStudent(_ context.Context, st *shared.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[st.ID] = *st
	return nil
}

// ============================================================================
// Grades
// ============================================================================

func cloneGrade(g shared.Grade) shared.Grade {
	cp := g
	cp.Presence = cloneFloat(g.Presence)
	cp.Participation = cloneFloat(g.Participation)
	cp.Evaluation = cloneFloat(g.Evaluation)
	cp.FinalGrade = cloneFloat(g.FinalGrade)
	if g.EvaluationScores != nil {
		cp.EvaluationScores = make(map[string]float64, len(g.EvaluationScores))
		for k, v := range g.EvaluationScores {
			cp.EvaluationScores[k] = v
		}
	}
	return cp
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func (m *MemoryStore) GetGrade(_ context.Context, id string) (*shared.Grade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.grades[id]
	if !ok {
		return nil, notFound("grade", id)
	}
	cp := cloneGrade(g)
	return &cp, nil
}

func (m *MemoryStore) findGradeLocked(studentID, tueID, academicYear string) (shared.Grade, bool) {
	for _, g := range m.grades {
		if g.StudentID == studentID && g.TUEID == tueID && g.AcademicYear == academicYear {
			return g, true
		}
	}
	return shared.Grade{}, false
}

func (m *MemoryStore) FindGrade(_ context.Context, studentID, tueID, academicYear string) (*shared.Grade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.findGradeLocked(studentID, tueID, academicYear)
	if !ok {
		return nil, notFound("grade", studentID, tueID, academicYear)
	}
	cp := cloneGrade(g)
	return &cp, nil
}

func (m *MemoryStore) ListGrades(_ context.Context, studentID, academicYear string) ([]shared.Grade, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []shared.Grade
	for _, g := range m.grades {
		if g.StudentID == studentID && (academicYear == "" || g.AcademicYear == academicYear) {
			out = append(out, cloneGrade(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AcademicYear != out[j].AcademicYear {
			return out[i].AcademicYear > out[j].AcademicYear
		}
		return out[i].TUEID < out[j].TUEID
	})
	return out, nil
}

func (m *MemoryStore) UpsertGrade(_ context.Context, g *shared.Grade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.findGradeLocked(g.StudentID, g.TUEID, g.AcademicYear); ok {
		g.ID = existing.ID
		g.CreatedAt = existing.CreatedAt
	} else {
		g.ID = shared.GenerateID("GRD")
	}
	m.grades[g.ID] = cloneGrade(*g)
	m.stats.Grades++
	return nil
}

// ============================================================================
// Results
// ============================================================================

func (m *MemoryStore) FindTUResult(_ context.Context, studentID, tuID, academicYear string) (*shared.TUResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.tuResults {
		if r.StudentID == studentID && r.TUID == tuID && r.AcademicYear == academicYear {
			return &r, nil
		}
	}
	return nil, notFound("tu result", studentID, tuID, academicYear)
}

func (m *MemoryStore) ListTUResults(_ context.Context, studentID, semesterID, academicYear string) ([]shared.TUResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []shared.TUResult
	for _, r := range m.tuResults {
		if r.StudentID == studentID && r.SemesterID == semesterID && r.AcademicYear == academicYear {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TUID < out[j].TUID })
	return out, nil
}

func (m *MemoryStore) UpsertTUResult(_ context.Context, r *shared.TUResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = shared.GenerateID("TUR")
	for id, existing := range m.tuResults {
		if existing.StudentID == r.StudentID && existing.TUID == r.TUID && existing.AcademicYear == r.AcademicYear {
			r.ID = id
			break
		}
	}
	m.tuResults[r.ID] = *r
	m.stats.TUResults++
	return nil
}

func (m *MemoryStore) FindSemesterResult(_ context.Context, studentID, semesterID, academicYear string) (*shared.SemesterResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.semesterResults {
		if r.StudentID == studentID && r.SemesterID == semesterID && r.AcademicYear == academicYear {
			return &r, nil
		}
	}
	return nil, notFound("semester result", studentID, semesterID, academicYear)
}

func (m *MemoryStore) UpsertSemesterResult(_ context.Context, r *shared.SemesterResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = shared.GenerateID("SEMR")
	for id, existing := range m.semesterResults {
		if existing.StudentID == r.StudentID && existing.SemesterID == r.SemesterID && existing.AcademicYear == r.AcademicYear {
			r.ID = id
			break
		}
	}
	m.semesterResults[r.ID] = *r
	m.stats.SemesterResults++
	return nil
}

func (m *MemoryStore) FindAnnualResult(_ context.Context, studentID, academicYear, level string) (*shared.AnnualResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.annualResults {
		if r.StudentID == studentID && r.AcademicYear == academicYear && r.Level == level {
			return &r, nil
		}
	}
	return nil, notFound("annual result", studentID, academicYear, level)
}

func (m *MemoryStore) UpsertAnnualResult(_ context.Context, r *shared.AnnualResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = shared.GenerateID("ANR")
	for id, existing := range m.annualResults {
		if existing.StudentID == r.StudentID && existing.AcademicYear == r.AcademicYear && existing.Level == r.Level {
			r.ID = id
			break
		}
	}
	m.annualResults[r.ID] = *r
	m.stats.AnnualResults++
	return nil
}

var (
	_ Store           = (*MemoryStore)(nil)
	_ HierarchyWriter = (*MemoryStore)(nil)
)
