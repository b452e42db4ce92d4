package services

import (
	"context"
	"fmt"
	"time"

	"github.com/checkfox/go_reachout/internal/logger"
	"github.com/checkfox/go_reachout/internal/models"
	"github.com/checkfox/go_reachout/internal/queue"
	"github.com/checkfox/go_reachout/internal/repository"
)

// LeadService is the backend's write path: it validates, versions and persists
// leads, then asks the worker to re-evaluate them
type LeadService struct {
	repo       repository.LeadRepository
	queue      queue.Queue
	validator  *Validator
	normalizer *Normalizer
	now        func() time.Time
}

// NewLeadService creates a new LeadService
func NewLeadService(repo repository.LeadRepository, q queue.Queue) *LeadService {
	return &LeadService{
		repo:       repo,
		queue:      q,
		validator:  NewValidator(),
		normalizer: NewNormalizer(),
		now:        time.Now,
	}
}

// Get returns one lead
func (s *LeadService) Get(ctx context.Context, id string) (*models.Lead, error) {
	return s.repo.GetLead(ctx, id)
}

// List returns leads with the given status; an empty status lists all
func (s *LeadService) List(ctx context.Context, status models.LeadStatus) ([]*models.Lead, error) {
	if status != "" && !status.IsValid() {
		return nil, models.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	return s.repo.ListLeads(ctx, status)
}

// Upsert applies a partial update, creating the lead when it does not exist yet.
// A version in the patch must match the stored one.
func (s *LeadService) Upsert(ctx context.Context, id string, patch *models.LeadPatch) (*models.Lead, error) {
	ctx = logger.WithLeadID(ctx, id)
	if id == "" {
		return nil, models.NewValidationError("id", "id is required")
	}
	if patch != nil && patch.Stage != nil {
		stage := s.normalizer.NormalizeStage(string(*patch.Stage))
		patch.Stage = &stage
	}
	if patch != nil && patch.Priority != nil {
		priority := s.normalizer.NormalizePriority(string(*patch.Priority))
		patch.Priority = &priority
	}
	if err := s.validator.ValidatePatch(ctx, patch).Err(); err != nil {
		return nil, err
	}

	lead, err := s.repo.GetLead(ctx, id)
	if models.IsNotFound(err) {
		return s.create(ctx, id, patch)
	}
	if err != nil {
		return nil, err
	}

	if patch.Version != nil && *patch.Version != lead.Version {
		logger.Warn(ctx, "Rejected stale lead write", "expected", *patch.Version, "current", lead.Version)
		return nil, models.NewVersionConflictError(id, *patch.Version, lead.Version)
	}

	oldStage := lead.Stage
	expected := lead.Version
	patch.Apply(lead)
	s.normalizer.NormalizeLead(lead)
	if err := s.validator.ValidateLead(ctx, lead).Err(); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLead(ctx, lead, expected); err != nil {
		return nil, err
	}
	if oldStage != lead.Stage {
		logger.LogStageTransition(ctx, id, string(oldStage), string(lead.Stage))
	}

	s.enqueueEvaluation(ctx, id)
	logger.Info(ctx, "Updated lead", "version", lead.Version)
	return lead, nil
}

func (s *LeadService) create(ctx context.Context, id string, patch *models.LeadPatch) (*models.Lead, error) {
	lead := models.NewLead(id, models.StageNew)
	lead.CreatedAt = s.now().UTC()
	lead.UpdatedAt = lead.CreatedAt
	patch.Apply(lead)
	s.normalizer.NormalizeLead(lead)
	if err := s.validator.ValidateLead(ctx, lead).Err(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateLead(ctx, lead); err != nil {
		return nil, err
	}

	s.enqueueEvaluation(ctx, id)
	logger.Info(ctx, "Created lead", "stage", string(lead.Stage))
	return lead, nil
}

// Delete removes a lead
func (s *LeadService) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteLead(ctx, id); err != nil {
		return err
	}
	logger.Info(logger.WithLeadID(ctx, id), "Deleted lead")
	return nil
}

// Archive moves a lead out of the working collection
func (s *LeadService) Archive(ctx context.Context, id, by string) (*models.Lead, error) {
	return s.transition(ctx, id, func(l *models.Lead) error {
		return l.Archive(by, s.now().UTC())
	})
}

// Restore brings an archived lead back into the working collection
func (s *LeadService) Restore(ctx context.Context, id string) (*models.Lead, error) {
	return s.transition(ctx, id, func(l *models.Lead) error {
		return l.Restore(s.now().UTC())
	})
}

func (s *LeadService) transition(ctx context.Context, id string, fn func(*models.Lead) error) (*models.Lead, error) {
	ctx = logger.WithLeadID(ctx, id)

	lead, err := s.repo.GetLead(ctx, id)
	if err != nil {
		return nil, err
	}
	from := lead.Status
	if err := fn(lead); err != nil {
		return nil, models.NewValidationError("status", err.Error())
	}
	if err := s.repo.UpdateLead(ctx, lead, lead.Version); err != nil {
		return nil, err
	}

	s.enqueueEvaluation(ctx, id)
	logger.Info(ctx, "Changed lead status", "from", string(from), "to", string(lead.Status))
	return lead, nil
}

// enqueueEvaluation schedules a worker pass; the write has already succeeded so failures are only logged
func (s *LeadService) enqueueEvaluation(ctx context.Context, id string) {
	if s.queue == nil {
		return
	}
	if err := s.queue.Enqueue(ctx, queue.JobTypeEvaluateLead, queue.NewJobPayload(id)); err != nil {
		logger.LogError(ctx, "Failed to enqueue lead evaluation", err)
	}
}
