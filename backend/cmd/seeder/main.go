package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"gradebook/backend/internal/calculation"
	"gradebook/backend/internal/grade"
	"gradebook/backend/internal/policy"
	"gradebook/backend/internal/shared"
	"gradebook/backend/internal/store"
)

// Seed constants for the demo cohort
const (
	FieldID      = "field-inf"
	PromotionID  = "promo-inf-l1-2024"
	Semester1ID  = "sem-inf-l1-s1"
	Semester2ID  = "sem-inf-l1-s2"
	AcademicYear = "2024-2025"

	StudentID1 = "student-001" // strong, validates the year
	StudentID2 = "student-002" // one compensated TU per semester
	StudentID3 = "student-003" // grades still being entered
)

// TUSeed describes a TU and its elements for easy seeding
type TUSeed struct {
	ID         string
	SemesterID string
	Code       string
	Name       string
	Credits    float64
	Elements   []TUESeed
}

// TUESeed describes a TUE; Schema is optional
type TUESeed struct {
	ID      string
	Code    string
	Name    string
	Credits float64
	Schema  []shared.EvaluationItem
}

// StudentSeed pairs a student with the score profile used to generate grades
type StudentSeed struct {
	Student shared.Student
	// Base evaluation score per TU code; a missing code leaves that TU ungraded
	Scores map[string]float64
}

func main() {
	log.Println("Starting grading database seeder...")

	_ = shared.LoadEnv(".env")

	cfg, err := shared.LoadServiceConfig("seeder")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := shared.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var backend store.Backend
	switch cfg.StoreDriver {
	case shared.StoreDriverMemory:
		backend = store.NewMemoryStore()
	default:
		client, db, err := shared.ConnectMongoDB(&cfg.MongoDB, logger)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer shared.DisconnectMongoDB(client)

		// Drop everything to ensure a clean start
		if err := db.Drop(ctx); err != nil {
			log.Fatalf("Failed to drop database: %v", err)
		}
		log.Println("Database cleared successfully.")

		if err := shared.EnsureIndexes(ctx, db); err != nil {
			log.Fatalf("Failed to create indexes: %v", err)
		}
		backend = store.NewMongoStore(db, cfg.Calculation.QueryTimeout)
	}

	// --- 1. Seed Hierarchy ---
	seedHierarchy(ctx, backend)
	tus := tuSeeds()
	seedTeachingUnits(ctx, backend, tus)

	// --- 2. Seed Students ---
	students := studentSeeds()
	for _, s := range students {
		if err := backend.PutStudent(ctx, &s.Student); err != nil {
			log.Fatalf("Error seeding student %s: %v", s.Student.Matricule, err)
		}
		log.Printf("Seeded student: %s (%s)", s.Student.Name, s.Student.Matricule)
	}

	// --- 3. Seed Grades through the grade service so the cascade fills in results ---
	gradingPolicy, err := policy.Load(cfg.Calculation.PolicyFile)
	if err != nil {
		log.Fatalf("Invalid grading policy: %v", err)
	}
	engine := calculation.NewEngine(backend, gradingPolicy, logger.Named("calculation"))
	grades := grade.NewGradeService(backend, gradingPolicy, engine, logger.Named("grade"), cfg.Calculation)

	for _, s := range students {
		entries := gradeEntries(s, tus)
		result := grades.UploadGrades(ctx, entries)
		log.Printf("Grades for %s: %d saved, %d failed", s.Student.Matricule, result.Successful, result.Failed)
		for _, e := range result.Errors {
			log.Printf("  %s", e)
		}
	}

	// --- 4. Report ---
	for _, s := range students {
		report, err := engine.ValidateTranscriptReadiness(ctx, s.Student.ID, AcademicYear, shared.LevelL1)
		if err != nil {
			log.Printf("Readiness for %s failed: %v", s.Student.Matricule, err)
			continue
		}
		log.Printf("Readiness for %s: %s (%d%%)", s.Student.Matricule, report.Status, report.CompletionPercentage)
	}

	logger.Info("seeding completed", zap.Int("students", len(students)), zap.Int("teaching_units", len(tus)))
}

// ============================================================================
// SEEDING FUNCTIONS
// ============================================================================

func seedHierarchy(ctx context.Context, w store.HierarchyWriter) {
	log.Println("--- Seeding Field, Promotion and Semesters ---")

	if err := w.PutField(ctx, &shared.Field{ID: FieldID, Code: "INF", Name: "Computer Science", IsActive: true}); err != nil {
		log.Fatalf("Error seeding field: %v", err)
	}
	if err := w.PutPromotion(ctx, &shared.Promotion{
		ID: PromotionID, FieldID: FieldID, Name: "INF L1 2024-2025",
		Level: shared.LevelL1, AcademicYear: AcademicYear, IsActive: true,
	}); err != nil {
		log.Fatalf("Error seeding promotion: %v", err)
	}
	for _, s := range []shared.Semester{
		{ID: Semester1ID, PromotionID: PromotionID, Name: "S1", Order: 1, Level: shared.LevelL1, IsActive: true},
		{ID: Semester2ID, PromotionID: PromotionID, Name: "S2", Order: 2, Level: shared.LevelL1, IsActive: true},
	} {
		if err := w.PutSemester(ctx, &s); err != nil {
			log.Fatalf("Error seeding semester %s: %v", s.Name, err)
		}
	}
}

func seedTeachingUnits(ctx context.Context, w store.HierarchyWriter, seeds []TUSeed) {
	log.Println("--- Seeding Teaching Units ---")

	for _, s := range seeds {
		tu := shared.TeachingUnit{ID: s.ID, SemesterID: s.SemesterID, Code: s.Code, Name: s.Name, Credits: s.Credits, IsActive: true}
		if err := w.PutTU(ctx, &tu); err != nil {
			log.Fatalf("Error seeding TU %s: %v", s.Code, err)
		}
		for _, e := range s.Elements {
			tue := shared.TeachingUnitElement{
				ID: e.ID, TUID: s.ID, Code: e.Code, Name: e.Name,
				Credits: e.Credits, EvaluationSchema: e.Schema, IsActive: true,
			}
			if err := w.PutTUE(ctx, &tue); err != nil {
				log.Fatalf("Error seeding TUE %s: %v", e.Code, err)
			}
		}
		log.Printf("Seeded TU: %s (%.0f credits, %d elements)", s.Code, s.Credits, len(s.Elements))
	}
}

func tuSeeds() []TUSeed {
	examProject := []shared.EvaluationItem{{Name: "exam", Weight: 60}, {Name: "project", Weight: 30}}
	return []TUSeed{
		{"tu-inf101", Semester1ID, "INF101", "Algorithms", 8, []TUESeed{
			{"tue-inf101-a", "INF101A", "Algorithms lecture", 5, examProject},
			{"tue-inf101-b", "INF101B", "Algorithms lab", 3, nil},
		}},
		{"tu-mat101", Semester1ID, "MAT101", "Analysis", 8, []TUESeed{
			{"tue-mat101-a", "MAT101A", "Real analysis", 8, nil},
		}},
		{"tu-inf102", Semester1ID, "INF102", "Programming", 8, []TUESeed{
			{"tue-inf102-a", "INF102A", "Imperative programming", 4, nil},
			{"tue-inf102-b", "INF102B", "Programming project", 4, nil},
		}},
		{"tu-ang101", Semester1ID, "ANG101", "English", 6, []TUESeed{
			{"tue-ang101-a", "ANG101A", "Technical English", 6, nil},
		}},
		{"tu-inf201", Semester2ID, "INF201", "Data Structures", 8, []TUESeed{
			{"tue-inf201-a", "INF201A", "Data structures lecture", 5, examProject},
			{"tue-inf201-b", "INF201B", "Data structures lab", 3, nil},
		}},
		{"tu-mat201", Semester2ID, "MAT201", "Linear Algebra", 8, []TUESeed{
			{"tue-mat201-a", "MAT201A", "Linear algebra", 8, nil},
		}},
		{"tu-inf202", Semester2ID, "INF202", "Systems", 8, []TUESeed{
			{"tue-inf202-a", "INF202A", "Operating systems", 4, nil},
			{"tue-inf202-b", "INF202B", "Networks", 4, nil},
		}},
		{"tu-com201", Semester2ID, "COM201", "Communication", 6, []TUESeed{
			{"tue-com201-a", "COM201A", "Written communication", 6, nil},
		}},
	}
}

func studentSeeds() []StudentSeed {
	student := func(id, matricule, name string) shared.Student {
		return shared.Student{ID: id, Matricule: matricule, Name: name, FieldID: FieldID, PromotionID: PromotionID, IsActive: true}
	}
	return []StudentSeed{
		{student(StudentID1, "2024INF001", "Amina Diallo"), map[string]float64{
			"INF101": 15, "MAT101": 14, "INF102": 16, "ANG101": 13,
			"INF201": 14, "MAT201": 13, "INF202": 15, "COM201": 14,
		}},
		{student(StudentID2, "2024INF002", "Lucas Martin"), map[string]float64{
			"INF101": 14, "MAT101": 10, "INF102": 14, "ANG101": 13,
			"INF201": 13, "MAT201": 14, "INF202": 9.5, "COM201": 15,
		}},
		{student(StudentID3, "2024INF003", "Chen Wei"), map[string]float64{
			"INF101": 12, "MAT101": 11,
		}},
	}
}

func gradeEntries(s StudentSeed, tus []TUSeed) []grade.SaveGradeRequest {
	var entries []grade.SaveGradeRequest
	for _, tu := range tus {
		score, ok := s.Scores[tu.Code]
		if !ok {
			continue
		}
		for _, e := range tu.Elements {
			entry := grade.SaveGradeRequest{
				StudentID:     s.Student.ID,
				TUEID:         e.ID,
				AcademicYear:  AcademicYear,
				Presence:      ptr(20),
				Participation: ptr(score),
			}
			if len(e.Schema) > 0 {
				entry.EvaluationScores = make(map[string]float64, len(e.Schema))
				for _, item := range e.Schema {
					entry.EvaluationScores[item.Name] = score
				}
			} else {
				entry.Evaluation = ptr(score)
			}
			entries = append(entries, entry)
		}
	}
	return entries
}

func ptr(v float64) *float64 {
	return &v
}
