// Package store defines the persistence contract of the calculation engine
// and its MongoDB and in-memory implementations.
package store

import (
	"context"
	"errors"

	"gradebook/backend/internal/shared"
)

// ErrNotFound is returned when a looked-up document does not exist
var ErrNotFound = errors.New("document not found")

// HierarchyReader gives read access to the curricular hierarchy.
// List* methods return active entities only.
type HierarchyReader interface {
	GetStudent(ctx context.Context, id string) (*shared.Student, error)
	ListStudentsByPromotion(ctx context.Context, promotionID string) ([]shared.Student, error)
	GetPromotion(ctx context.Context, id string) (*shared.Promotion, error)
	FindPromotion(ctx context.Context, fieldID, level, academicYear string) (*shared.Promotion, error)
	GetSemester(ctx context.Context, id string) (*shared.Semester, error)
	// ListSemesters returns active semesters sorted by order
	ListSemesters(ctx context.Context, promotionID string) ([]shared.Semester, error)
	GetTU(ctx context.Context, id string) (*shared.TeachingUnit, error)
	ListActiveTUs(ctx context.Context, semesterID string) ([]shared.TeachingUnit, error)
	GetTUE(ctx context.Context, id string) (*shared.TeachingUnitElement, error)
	ListActiveTUEs(ctx context.Context, tuID string) ([]shared.TeachingUnitElement, error)
}

// HierarchyWriter is used by the seeder and tests to load hierarchy documents
type HierarchyWriter interface {
	PutField(ctx context.Context, f *shared.Field) error
	PutPromotion(ctx context.Context, p *shared.Promotion) error
	PutSemester(ctx context.Context, s *shared.Semester) error
	PutTU(ctx context.Context, tu *shared.TeachingUnit) error
	PutTUE(ctx context.Context, tue *shared.TeachingUnitElement) error
	PutStudent(ctx context.Context, s *shared.Student) error
}

// GradeRepository stores raw grades, unique per (student, TUE, academic year)
type GradeRepository interface {
	GetGrade(ctx context.Context, id string) (*shared.Grade, error)
	FindGrade(ctx context.Context, studentID, tueID, academicYear string) (*shared.Grade, error)
	// ListGrades returns a student's grades; an empty academicYear lists all years
	ListGrades(ctx context.Context, studentID, academicYear string) ([]shared.Grade, error)
	// UpsertGrade writes g keyed by (student, TUE, year) and fills in its ID
	UpsertGrade(ctx context.Context, g *shared.Grade) error
}

// ResultRepository stores the aggregates produced by the engine.
// Every Upsert is atomic on its own key and fills in the stored ID.
type ResultRepository interface {
	FindTUResult(ctx context.Context, studentID, tuID, academicYear string) (*shared.TUResult, error)
	ListTUResults(ctx context.Context, studentID, semesterID, academicYear string) ([]shared.TUResult, error)
	UpsertTUResult(ctx context.Context, r *shared.TUResult) error

	FindSemesterResult(ctx context.Context, studentID, semesterID, academicYear string) (*shared.SemesterResult, error)
	UpsertSemesterResult(ctx context.Context, r *shared.SemesterResult) error

	FindAnnualResult(ctx context.Context, studentID, academicYear, level string) (*shared.AnnualResult, error)
	UpsertAnnualResult(ctx context.Context, r *shared.AnnualResult) error
}

// Store is everything the engine needs
type Store interface {
	HierarchyReader
	GradeRepository
	ResultRepository
}

// IsNotFound reports whether err means a missing document
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
