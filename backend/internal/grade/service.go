package grade

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gradebook/backend/internal/policy"
	"gradebook/backend/internal/shared"
	"gradebook/backend/internal/store"
)

// CascadeTrigger is notified after every successful grade write
type CascadeTrigger interface {
	OnGradeChange(ctx context.Context, gradeID string)
}

// SaveGradeRequest carries a grade entry. Omitted components keep their stored value.
type SaveGradeRequest struct {
	StudentID        string             `json:"studentId" validate:"required"`
	TUEID            string             `json:"tueId" validate:"required"`
	AcademicYear     string             `json:"academicYear" validate:"required,academic_year"`
	Presence         *float64           `json:"presence" validate:"omitempty,gte=0,lte=20"`
	Participation    *float64           `json:"participation" validate:"omitempty,gte=0,lte=20"`
	Evaluation       *float64           `json:"evaluation" validate:"omitempty,gte=0,lte=20"`
	EvaluationScores map[string]float64 `json:"evaluationScores" validate:"omitempty,dive,gte=0,lte=20"`
}

// UploadResult summarizes a batch of grade entries
type UploadResult struct {
	TotalProcessed int      `json:"totalProcessed"`
	Successful     int      `json:"successful"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors"`
	Message        string   `json:"message"`
}

// GradeService is the grade-entry layer
type GradeService struct {
	store          store.Store
	policy         *policy.Policy
	cascade        CascadeTrigger
	logger         *zap.Logger
	timeout        time.Duration
	cascadeTimeout time.Duration
	now            func() time.Time
}

// NewGradeService creates a new GradeService instance
func NewGradeService(st store.Store, p *policy.Policy, cascade CascadeTrigger, logger *zap.Logger, cfg shared.CalculationConfig) *GradeService {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	if cfg.CascadeTimeout <= 0 {
		cfg.CascadeTimeout = 30 * time.Second
	}
	return &GradeService{
		store:          st,
		policy:         p,
		cascade:        cascade,
		logger:         logger,
		timeout:        cfg.QueryTimeout,
		cascadeTimeout: cfg.CascadeTimeout,
		now:            time.Now,
	}
}

// SaveGrade creates or updates the grade of a student for one TUE and year.
// The final grade is computed once all components are present. The
// aggregation cascade runs after the write; its failures never reach the caller.
func (s *GradeService) SaveGrade(ctx context.Context, req *SaveGradeRequest) (*shared.Grade, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "grade entry is required")
	}
	if err := shared.ValidateStruct(req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.store.GetStudent(queryCtx, req.StudentID); err != nil {
		return nil, lookupError(err, "student "+req.StudentID)
	}
	tue, err := s.store.GetTUE(queryCtx, req.TUEID)
	if err != nil {
		return nil, lookupError(err, "TUE "+req.TUEID)
	}
	if tue.HasEvaluationSchema() && req.Evaluation != nil {
		return nil, status.Errorf(codes.InvalidArgument, "TUE %s derives evaluation from its schema, send evaluationScores instead", tue.Code)
	}

	existing, err := s.store.FindGrade(queryCtx, req.StudentID, req.TUEID, req.AcademicYear)
	if err != nil && !store.IsNotFound(err) {
		s.logger.Error("failed to load grade", zap.String("student_id", req.StudentID), zap.String("tue_id", req.TUEID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to retrieve grade")
	}

	now := s.now()
	g := &shared.Grade{
		StudentID:    req.StudentID,
		TUEID:        req.TUEID,
		AcademicYear: req.AcademicYear,
		CreatedAt:    now,
	}
	if existing != nil {
		g = existing
	}
	merge(g, req)

	c := Components{
		Presence:         g.Presence,
		Participation:    g.Participation,
		Evaluation:       g.Evaluation,
		EvaluationScores: g.EvaluationScores,
	}
	if err := CheckRanges(c); err != nil {
		return nil, err
	}
	evaluation, err := ResolveEvaluation(s.policy, tue, c)
	if err != nil {
		return nil, err
	}
	g.Evaluation = storedEvaluation(tue, evaluation)
	c.Evaluation = evaluation

	g.FinalGrade = nil
	if g.IsComplete() {
		fin, err := Finalize(s.policy, tue, c)
		if err != nil {
			return nil, err
		}
		g.FinalGrade = &fin.FinalGrade
	}
	g.UpdatedAt = now

	if err := s.store.UpsertGrade(queryCtx, g); err != nil {
		s.logger.Error("failed to save grade", zap.String("student_id", req.StudentID), zap.String("tue_id", req.TUEID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to save grade")
	}

	s.logger.Info("grade saved",
		zap.String("grade_id", g.ID),
		zap.String("student_id", g.StudentID),
		zap.String("tue", tue.Code),
		zap.Bool("complete", g.IsComplete()))

	s.triggerCascade(ctx, g.ID)
	return g, nil
}

// UploadGrades saves a batch of entries one by one, collecting per-entry failures
func (s *GradeService) UploadGrades(ctx context.Context, entries []SaveGradeRequest) *UploadResult {
	result := &UploadResult{Errors: []string{}}
	for i := range entries {
		entry := &entries[i]
		result.TotalProcessed++
		if _, err := s.SaveGrade(ctx, entry); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("student %s, TUE %s: %s", entry.StudentID, entry.TUEID, status.Convert(err).Message()))
			continue
		}
		result.Successful++
	}
	result.Message = fmt.Sprintf("Processed %d grades", result.TotalProcessed)
	return result
}

// GetGrade returns one grade by id
func (s *GradeService) GetGrade(ctx context.Context, id string) (*shared.Grade, error) {
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "grade id is required")
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	g, err := s.store.GetGrade(queryCtx, id)
	if err != nil {
		return nil, lookupError(err, "grade "+id)
	}
	return g, nil
}

// ListStudentGrades returns a student's grades, optionally for one academic year
func (s *GradeService) ListStudentGrades(ctx context.Context, studentID, academicYear string) ([]shared.Grade, error) {
	if studentID == "" {
		return nil, status.Error(codes.InvalidArgument, "student id is required")
	}
	if academicYear != "" && !shared.IsValidAcademicYear(academicYear) {
		return nil, status.Errorf(codes.InvalidArgument, "invalid academic year %q", academicYear)
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.store.GetStudent(queryCtx, studentID); err != nil {
		return nil, lookupError(err, "student "+studentID)
	}
	grades, err := s.store.ListGrades(queryCtx, studentID, academicYear)
	if err != nil {
		s.logger.Error("failed to list grades", zap.String("student_id", studentID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to retrieve grades")
	}
	if grades == nil {
		grades = []shared.Grade{}
	}
	return grades, nil
}

// triggerCascade runs the cascade detached from the request's cancellation
func (s *GradeService) triggerCascade(ctx context.Context, gradeID string) {
	if s.cascade == nil {
		return
	}
	cascadeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cascadeTimeout)
	defer cancel()
	s.cascade.OnGradeChange(cascadeCtx, gradeID)
}

func merge(g *shared.Grade, req *SaveGradeRequest) {
	if req.Presence != nil {
		g.Presence = req.Presence
	}
	if req.Participation != nil {
		g.Participation = req.Participation
	}
	if req.Evaluation != nil {
		g.Evaluation = req.Evaluation
	}
	if len(req.EvaluationScores) > 0 {
		if g.EvaluationScores == nil {
			g.EvaluationScores = make(map[string]float64, len(req.EvaluationScores))
		}
		for name, score := range req.EvaluationScores {
			g.EvaluationScores[name] = score
		}
	}
}

func lookupError(err error, what string) error {
	if store.IsNotFound(err) {
		return status.Errorf(codes.NotFound, "%s not found", what)
	}
	return status.Errorf(codes.Internal, "failed to retrieve %s", what)
}
