package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/medical-intake/internal/core/domain"
	"github.com/kirillkom/medical-intake/internal/core/ports"
)

// ReferenceValidator rejects requests whose cita_id or diagnosis hint does not exist.
type ReferenceValidator interface {
	ValidateReferences(ctx context.Context, req domain.IntakeRequest) error
}

// EnqueueIntakeUseCase accepts an intake request for background processing.
// Reference errors are reported to the caller before anything is published.
type EnqueueIntakeUseCase struct {
	queue     ports.JobQueue
	validator ReferenceValidator
	now       func() time.Time
}

func NewEnqueueIntakeUseCase(queue ports.JobQueue, validator ReferenceValidator) *EnqueueIntakeUseCase {
	return &EnqueueIntakeUseCase{
		queue:     queue,
		validator: validator,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (uc *EnqueueIntakeUseCase) Enqueue(ctx context.Context, req domain.IntakeRequest) (*domain.IntakeJob, error) {
	if strings.TrimSpace(req.RawText) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "enqueue intake", fmt.Errorf("texto_original is required"))
	}
	if uc.validator != nil {
		if err := uc.validator.ValidateReferences(ctx, req); err != nil {
			return nil, err
		}
	}
	id := req.RequestID
	if id == "" {
		id = uuid.NewString()
	}
	job := domain.NewIntakeJob(id, req, uc.now())
	if err := uc.queue.PublishIntakeJob(ctx, job); err != nil {
		return nil, fmt.Errorf("publish intake job: %w", err)
	}
	return &job, nil
}

// IntakeJobHandler runs queued jobs through the same pipeline as synchronous requests.
type IntakeJobHandler struct {
	processor ports.IntakeProcessor
}

func NewIntakeJobHandler(processor ports.IntakeProcessor) *IntakeJobHandler {
	return &IntakeJobHandler{processor: processor}
}

// Handle processes one job with the identity and hint it was queued with.
func (h *IntakeJobHandler) Handle(ctx context.Context, job domain.IntakeJob) error {
	_, err := h.processor.Process(ctx, job.Request())
	if err != nil {
		return fmt.Errorf("process job %s: %w", job.ID, err)
	}
	return nil
}
