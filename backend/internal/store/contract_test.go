package store

import (
	"context"
	"testing"
	"time"

	"gradebook/backend/internal/shared"
)

const contractYear = "2024-2025"

// runStoreContract checks the behavior both Backend implementations share
func runStoreContract(t *testing.T, st Backend) {
	ctx := context.Background()
	now := time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}
	must(st.PutField(ctx, &shared.Field{ID: "fld", Code: "INF", Name: "Computer Science", IsActive: true}))
	must(st.PutPromotion(ctx, &shared.Promotion{ID: "promo", FieldID: "fld", Name: "INF L1", Level: shared.LevelL1, AcademicYear: contractYear, IsActive: true}))
	must(st.PutSemester(ctx, &shared.Semester{ID: "sem-2", PromotionID: "promo", Name: "S2", Order: 2, IsActive: true}))
	must(st.PutSemester(ctx, &shared.Semester{ID: "sem-1", PromotionID: "promo", Name: "S1", Order: 1, IsActive: true}))
	must(st.PutSemester(ctx, &shared.Semester{ID: "sem-old", PromotionID: "promo", Name: "S0", Order: 1, IsActive: false}))
	must(st.PutTU(ctx, &shared.TeachingUnit{ID: "tu-b", SemesterID: "sem-1", Code: "B200", Credits: 4, IsActive: true}))
	must(st.PutTU(ctx, &shared.TeachingUnit{ID: "tu-a", SemesterID: "sem-1", Code: "A100", Credits: 6, IsActive: true}))
	must(st.PutTU(ctx, &shared.TeachingUnit{ID: "tu-off", SemesterID: "sem-1", Code: "C300", Credits: 2, IsActive: false}))
	must(st.PutTUE(ctx, &shared.TeachingUnitElement{ID: "tue-1", TUID: "tu-a", Code: "A101", Credits: 6, IsActive: true}))
	must(st.PutStudent(ctx, &shared.Student{ID: "stu-2", Matricule: "M002", FieldID: "fld", PromotionID: "promo", IsActive: true}))
	must(st.PutStudent(ctx, &shared.Student{ID: "stu-1", Matricule: "M001", FieldID: "fld", PromotionID: "promo", IsActive: true}))
	must(st.PutStudent(ctx, &shared.Student{ID: "stu-gone", Matricule: "M000", FieldID: "fld", PromotionID: "promo", IsActive: false}))

	t.Run("Hierarchy Lists Active Entities In Order", func(t *testing.T) {
		sems, err := st.ListSemesters(ctx, "promo")
		if err != nil {
			t.Fatalf("ListSemesters failed: %v", err)
		}
		if len(sems) != 2 || sems[0].ID != "sem-1" || sems[1].ID != "sem-2" {
			t.Errorf("Expected [sem-1 sem-2], got %+v", sems)
		}

		tus, err := st.ListActiveTUs(ctx, "sem-1")
		if err != nil {
			t.Fatalf("ListActiveTUs failed: %v", err)
		}
		if len(tus) != 2 || tus[0].Code != "A100" {
			t.Errorf("Expected A100 and B200, got %+v", tus)
		}

		students, err := st.ListStudentsByPromotion(ctx, "promo")
		if err != nil {
			t.Fatalf("ListStudentsByPromotion failed: %v", err)
		}
		if len(students) != 2 || students[0].Matricule != "M001" {
			t.Errorf("Expected M001 and M002, got %+v", students)
		}

		p, err := st.FindPromotion(ctx, "fld", shared.LevelL1, contractYear)
		if err != nil || p.ID != "promo" {
			t.Errorf("Expected promo, got %+v (%v)", p, err)
		}
		if _, err := st.FindPromotion(ctx, "fld", shared.LevelL2, contractYear); !IsNotFound(err) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Grade Upsert Keeps Identity", func(t *testing.T) {
		presence := 12.0
		g := &shared.Grade{StudentID: "stu-1", TUEID: "tue-1", AcademicYear: contractYear, Presence: &presence, CreatedAt: now, UpdatedAt: now}
		if err := st.UpsertGrade(ctx, g); err != nil {
			t.Fatalf("UpsertGrade failed: %v", err)
		}
		firstID := g.ID
		if firstID == "" {
			t.Fatal("Expected an ID after the first upsert")
		}

		evaluation := 14.0
		later := now.Add(time.Hour)
		update := &shared.Grade{StudentID: "stu-1", TUEID: "tue-1", AcademicYear: contractYear, Presence: &presence, Evaluation: &evaluation, CreatedAt: later, UpdatedAt: later}
		if err := st.UpsertGrade(ctx, update); err != nil {
			t.Fatalf("second UpsertGrade failed: %v", err)
		}
		if update.ID != firstID {
			t.Errorf("Expected ID %s to be kept, got %s", firstID, update.ID)
		}

		stored, err := st.GetGrade(ctx, firstID)
		if err != nil {
			t.Fatalf("GetGrade failed: %v", err)
		}
		if stored.Evaluation == nil || *stored.Evaluation != 14 {
			t.Errorf("Expected evaluation 14, got %v", stored.Evaluation)
		}
		if !stored.CreatedAt.Equal(now) {
			t.Errorf("Expected CreatedAt %v to be kept, got %v", now, stored.CreatedAt)
		}

		grades, err := st.ListGrades(ctx, "stu-1", contractYear)
		if err != nil || len(grades) != 1 {
			t.Errorf("Expected one grade, got %d (%v)", len(grades), err)
		}
		if _, err := st.FindGrade(ctx, "stu-1", "tue-1", "2023-2024"); !IsNotFound(err) {
			t.Errorf("Expected ErrNotFound for another year, got %v", err)
		}
	})

	t.Run("Result Upserts Are Keyed", func(t *testing.T) {
		r := &shared.TUResult{StudentID: "stu-1", TUID: "tu-a", SemesterID: "sem-1", AcademicYear: contractYear, Average: 9, Status: shared.TUStatusNotValid, Credits: 6, CalculatedAt: now}
		if err := st.UpsertTUResult(ctx, r); err != nil {
			t.Fatalf("UpsertTUResult failed: %v", err)
		}
		id := r.ID

		r2 := &shared.TUResult{StudentID: "stu-1", TUID: "tu-a", SemesterID: "sem-1", AcademicYear: contractYear, Average: 9, Status: shared.TUStatusCompensated, Credits: 6, CreditsEarned: 6, CalculatedAt: now}
		if err := st.UpsertTUResult(ctx, r2); err != nil {
			t.Fatalf("second UpsertTUResult failed: %v", err)
		}
		if r2.ID != id {
			t.Errorf("Expected ID %s to be kept, got %s", id, r2.ID)
		}

		list, err := st.ListTUResults(ctx, "stu-1", "sem-1", contractYear)
		if err != nil || len(list) != 1 || list[0].Status != shared.TUStatusCompensated {
			t.Errorf("Expected one V-C result, got %+v (%v)", list, err)
		}

		sem := &shared.SemesterResult{StudentID: "stu-1", SemesterID: "sem-1", AcademicYear: contractYear, Average: 12.5, TotalCredits: 30, Status: shared.StatusValidated, CalculatedAt: now}
		if err := st.UpsertSemesterResult(ctx, sem); err != nil {
			t.Fatalf("UpsertSemesterResult failed: %v", err)
		}
		found, err := st.FindSemesterResult(ctx, "stu-1", "sem-1", contractYear)
		if err != nil || found.ID != sem.ID || found.Average != 12.5 {
			t.Errorf("Expected stored semester result, got %+v (%v)", found, err)
		}

		annual := &shared.AnnualResult{StudentID: "stu-1", AcademicYear: contractYear, Level: shared.LevelL1, AnnualAverage: 12.5, Status: shared.StatusValidated, MissingData: []shared.MissingData{}, CalculatedAt: now}
		if err := st.UpsertAnnualResult(ctx, annual); err != nil {
			t.Fatalf("UpsertAnnualResult failed: %v", err)
		}
		if _, err := st.FindAnnualResult(ctx, "stu-1", contractYear, shared.LevelL2); !IsNotFound(err) {
			t.Errorf("Expected ErrNotFound for another level, got %v", err)
		}
		got, err := st.FindAnnualResult(ctx, "stu-1", contractYear, shared.LevelL1)
		if err != nil || got.ID != annual.ID {
			t.Errorf("Expected stored annual result %s, got %+v (%v)", annual.ID, got, err)
		}
	})
}
