package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gradebook/backend/internal/shared"
)

// MongoStore implements Store on top of a MongoDB database
type MongoStore struct {
	db      *mongo.Database
	timeout time.Duration

	fieldsCol          *mongo.Collection
	promotionsCol      *mongo.Collection
	semestersCol       *mongo.Collection
	tusCol             *mongo.Collection
	tuesCol            *mongo.Collection
	studentsCol        *mongo.Collection
	gradesCol          *mongo.Collection
	tuResultsCol       *mongo.Collection
	semesterResultsCol *mongo.Collection
	annualResultsCol   *mongo.Collection
}

// NewMongoStore creates a MongoStore; timeout bounds every single query
func NewMongoStore(db *mongo.Database, timeout time.Duration) *MongoStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MongoStore{
		db:                 db,
		timeout:            timeout,
		fieldsCol:          db.Collection(shared.CollectionFields),
		promotionsCol:      db.Collection(shared.CollectionPromotions),
		semestersCol:       db.Collection(shared.CollectionSemesters),
		tusCol:             db.Collection(shared.CollectionTUs),
		tuesCol:            db.Collection(shared.CollectionTUEs),
		studentsCol:        db.Collection(shared.CollectionStudents),
		gradesCol:          db.Collection(shared.CollectionGrades),
		tuResultsCol:       db.Collection(shared.CollectionTUResults),
		semesterResultsCol: db.Collection(shared.CollectionSemesterResults),
		annualResultsCol:   db.Collection(shared.CollectionAnnualResults),
	}
}

// ============================================================================
// Hierarchy
// ============================================================================

func (s *MongoStore) GetStudent(ctx context.Context, id string) (*shared.Student, error) {
	var st shared.Student
	if err := s.findOne(ctx, s.studentsCol, bson.M{"_id": id}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *MongoStore) ListStudentsByPromotion(ctx context.Context, promotionID string) ([]shared.Student, error) {
	var out []shared.Student
	filter := bson.M{"promotion_id": promotionID, "is_active": true}
	opts := options.Find().SetSort(bson.D{{Key: "matricule", Value: 1}})
	if err := s.findAll(ctx, s.studentsCol, filter, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) GetPromotion(ctx context.Context, id string) (*shared.Promotion, error) {
	var p shared.Promotion
	if err := s.findOne(ctx, s.promotionsCol, bson.M{"_id": id}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) FindPromotion(ctx context.Context, fieldID, level, academicYear string) (*shared.Promotion, error) {
	var p shared.Promotion
	filter := bson.M{
		"field_id":      fieldID,
		"level":         level,
		"academic_year": academicYear,
		"is_active":     true,
	}
	if err := s.findOne(ctx, s.promotionsCol, filter, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) GetSemester(ctx context.Context, id string) (*shared.Semester, error) {
	var sem shared.Semester
	if err := s.findOne(ctx, s.semestersCol, bson.M{"_id": id}, &sem); err != nil {
		return nil, err
	}
	return &sem, nil
}

func (s *MongoStore) ListSemesters(ctx context.Context, promotionID string) ([]shared.Semester, error) {
	var out []shared.Semester
	filter := bson.M{"promotion_id": promotionID, "is_active": true}
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}})
	if err := s.findAll(ctx, s.semestersCol, filter, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) GetTU(ctx context.Context, id string) (*shared.TeachingUnit, error) {
	var tu shared.TeachingUnit
	if err := s.findOne(ctx, s.tusCol, bson.M{"_id": id}, &tu); err != nil {
		return nil, err
	}
	return &tu, nil
}

func (s *MongoStore) ListActiveTUs(ctx context.Context, semesterID string) ([]shared.TeachingUnit, error) {
	var out []shared.TeachingUnit
	filter := bson.M{"semester_id": semesterID, "is_active": true}
	opts := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})
	if err := s.findAll(ctx, s.tusCol, filter, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) GetTUE(ctx context.Context, id string) (*shared.TeachingUnitElement, error) {
	var tue shared.TeachingUnitElement
	if err := s.findOne(ctx, s.tuesCol, bson.M{"_id": id}, &tue); err != nil {
		return nil, err
	}
	return &tue, nil
}

func (s *MongoStore) ListActiveTUEs(ctx context.Context, tuID string) ([]shared.TeachingUnitElement, error) {
	var out []shared.TeachingUnitElement
	filter := bson.M{"tu_id": tuID, "is_active": true}
	opts := options.Find().SetSort(bson.D{{Key: "code", Value: 1}})
	if err := s.findAll(ctx, s.tuesCol, filter, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ============================================================================
// Hierarchy writes (seeding)
// ============================================================================

func (s *MongoStore) PutField(ctx context.Context, f *shared.Field) error {
	return s.replace(ctx, s.fieldsCol, f.ID, f)
}

func (s *MongoStore) PutPromotion(ctx context.Context, p *shared.Promotion) error {
	return s.replace(ctx, s.promotionsCol, p.ID, p)
}

func (s *MongoStore) PutSemester(ctx context.Context, sem *shared.Semester) error {
	return s.replace(ctx, s.semestersCol, sem.ID, sem)
}

func (s *MongoStore) PutTU(ctx context.Context, tu *shared.TeachingUnit) error {
	return s.replace(ctx, s.tusCol, tu.ID, tu)
}

func (s *MongoStore) PutTUE(ctx context.Context, tue *shared.TeachingUnitElement) error {
	return s.replace(ctx, s.tuesCol, tue.ID, tue)
}

func (s *MongoStore) PutStudent(ctx context.Context, st *shared.Student) error {
	return s.replace(ctx, s.studentsCol, st.ID, st)
}

// ============================================================================
// Grades
// ============================================================================

func (s *MongoStore) GetGrade(ctx context.Context, id string) (*shared.Grade, error) {
	var g shared.Grade
	if err := s.findOne(ctx, s.gradesCol, bson.M{"_id": id}, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *MongoStore) FindGrade(ctx context.Context, studentID, tueID, academicYear string) (*shared.Grade, error) {
	var g shared.Grade
	filter := bson.M{"student_id": studentID, "tue_id": tueID, "academic_year": academicYear}
	if err := s.findOne(ctx, s.gradesCol, filter, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *MongoStore) ListGrades(ctx context.Context, studentID, academicYear string) ([]shared.Grade, error) {
	var out []shared.Grade
	filter := bson.M{"student_id": studentID}
	if academicYear != "" {
		filter["academic_year"] = academicYear
	}
	opts := options.Find().SetSort(bson.D{{Key: "academic_year", Value: -1}, {Key: "tue_id", Value: 1}})
	if err := s.findAll(ctx, s.gradesCol, filter, opts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UpsertGrade(ctx context.Context, g *shared.Grade) error {
	filter := bson.M{"student_id": g.StudentID, "tue_id": g.TUEID, "academic_year": g.AcademicYear}
	return s.upsert(ctx, s.gradesCol, filter, g, "GRD", g, "created_at")
}

// ============================================================================
// Results
// ============================================================================

func (s *MongoStore) FindTUResult(ctx context.Context, studentID, tuID, academicYear string) (*shared.TUResult, error) {
	var r shared.TUResult
	filter := bson.M{"student_id": studentID, "tu_id": tuID, "academic_year": academicYear}
	if err := s.findOne(ctx, s.tuResultsCol, filter, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoStore) ListTUResults(ctx context.Context, studentID, semesterID, academicYear string) ([]shared.TUResult, error) {
	var out []shared.TUResult
	filter := bson.M{"student_id": studentID, "semester_id": semesterID, "academic_year": academicYear}
	if err := s.findAll(ctx, s.tuResultsCol, filter, options.Find(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) UpsertTUResult(ctx context.Context, r *shared.TUResult) error {
	filter := bson.M{"student_id": r.StudentID, "tu_id": r.TUID, "academic_year": r.AcademicYear}
	return s.upsert(ctx, s.tuResultsCol, filter, r, "TUR", r)
}

func (s *MongoStore) FindSemesterResult(ctx context.Context, studentID, semesterID, academicYear string) (*shared.SemesterResult, error) {
	var r shared.SemesterResult
	filter := bson.M{"student_id": studentID, "semester_id": semesterID, "academic_year": academicYear}
	if err := s.findOne(ctx, s.semesterResultsCol, filter, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoStore) UpsertSemesterResult(ctx context.Context, r *shared.SemesterResult) error {
	filter := bson.M{"student_id": r.StudentID, "semester_id": r.SemesterID, "academic_year": r.AcademicYear}
	return s.upsert(ctx, s.semesterResultsCol, filter, r, "SEMR", r)
}

func (s *MongoStore) FindAnnualResult(ctx context.Context, studentID, academicYear, level string) (*shared.AnnualResult, error) {
	var r shared.AnnualResult
	filter := bson.M{"student_id": studentID, "academic_year": academicYear, "level": level}
	if err := s.findOne(ctx, s.annualResultsCol, filter, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoStore) UpsertAnnualResult(ctx context.Context, r *shared.AnnualResult) error {
	filter := bson.M{"student_id": r.StudentID, "academic_year": r.AcademicYear, "level": r.Level}
	return s.upsert(ctx, s.annualResultsCol, filter, r, "ANR", r)
}

// ============================================================================
// Helpers
// ============================================================================

func (s *MongoStore) findOne(ctx context.Context, col *mongo.Collection, filter bson.M, out interface{}) error {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := col.FindOne(queryCtx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %v: %w", col.Name(), filter, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query %s: %w", col.Name(), err)
	}
	return nil
}

func (s *MongoStore) findAll(ctx context.Context, col *mongo.Collection, filter bson.M, opts *options.FindOptions, out interface{}) error {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := col.Find(queryCtx, filter, opts)
	if err != nil {
		return fmt.Errorf("query %s: %w", col.Name(), err)
	}
	defer cursor.Close(queryCtx)

	if err := cursor.All(queryCtx, out); err != nil {
		return fmt.Errorf("decode %s: %w", col.Name(), err)
	}
	return nil
}

func (s *MongoStore) replace(ctx context.Context, col *mongo.Collection, id string, doc interface{}) error {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := col.ReplaceOne(queryCtx, bson.M{"_id": id}, doc, opts); err != nil {
		return fmt.Errorf("write %s %s: %w", col.Name(), id, err)
	}
	return nil
}

// upsert writes doc under filter in a single atomic FindOneAndUpdate and decodes
// the stored document back into out. insertOnly fields are kept from the first write.
func (s *MongoStore) upsert(ctx context.Context, col *mongo.Collection, filter bson.M, doc interface{}, idPrefix string, out interface{}, insertOnly ...string) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", col.Name(), err)
	}
	var set bson.M
	if err := bson.Unmarshal(raw, &set); err != nil {
		return fmt.Errorf("encode %s: %w", col.Name(), err)
	}
	delete(set, "_id")

	onInsert := bson.M{"_id": shared.GenerateID(idPrefix)}
	for _, key := range insertOnly {
		if v, ok := set[key]; ok {
			onInsert[key] = v
			delete(set, key)
		}
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	update := bson.M{"$set": set, "$setOnInsert": onInsert}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	if err := col.FindOneAndUpdate(queryCtx, filter, update, opts).Decode(out); err != nil {
		return fmt.Errorf("upsert %s: %w", col.Name(), err)
	}
	return nil
}

var (
	_ Store           = (*MongoStore)(nil)
	_ HierarchyWriter = (*MongoStore)(nil)
)
