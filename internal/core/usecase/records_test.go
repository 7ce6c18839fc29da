package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/medical-intake/internal/core/domain"
)

func TestGetForUserEnforcesOwnership(t *testing.T) {
	store := &recordStoreFake{byID: map[int64]*domain.StructuredRecord{
		10: {ID: 10, UserID: 1, OriginalText: "ardor"},
	}}
	uc := NewRecordsUseCase(store)

	rec, err := uc.GetForUser(context.Background(), 1, 10)
	if err != nil || rec.ID != 10 {
		t.Fatalf("expected owner to read record, got %+v %v", rec, err)
	}
	if _, err := uc.GetForUser(context.Background(), 2, 10); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user, got %v", err)
	}
	if _, err := uc.GetForUser(context.Background(), 1, 11); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing record, got %v", err)
	}
}

func TestListForUserClampsLimit(t *testing.T) {
	store := &recordStoreFake{}
	uc := NewRecordsUseCase(store)

	out, err := uc.ListForUser(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out == nil || store.lastLimit != defaultHistoryLimit {
		t.Fatalf("expected default limit and non-nil slice, got %d %#v", store.lastLimit, out)
	}
	if _, err := uc.ListForUser(context.Background(), 1, 10000); err != nil {
		t.Fatalf("list: %v", err)
	}
	if store.lastLimit != maxHistoryLimit {
		t.Fatalf("expected limit clamped to %d, got %d", maxHistoryLimit, store.lastLimit)
	}
}

func TestEnqueuePublishesJob(t *testing.T) {
	queue := &queueFake{}
	uc := NewEnqueueIntakeUseCase(queue, newIntakeFixture().build())
	uc.now = fixedClock()
	cita := int64(7)

	job, err := uc.Enqueue(context.Background(), domain.IntakeRequest{
		RawText:       "ardor al orinar",
		AppointmentID: &cita,
		Hint:          domain.NewHintByLabel("Migraña"),
		UserID:        9,
		RequestID:     "req-7",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.ID != "req-7" || len(queue.published) != 1 {
		t.Fatalf("expected job published with request id, got %+v", job)
	}
	req := queue.published[0].Request()
	if req.UserID != 9 || *req.AppointmentID != 7 || req.Hint == nil || req.Hint.Label != "Migraña" {
		t.Fatalf("job lost request fields: %+v", req)
	}
}

func TestEnqueueGeneratesIDAndValidates(t *testing.T) {
	queue := &queueFake{}
	uc := NewEnqueueIntakeUseCase(queue, nil)

	job, err := uc.Enqueue(context.Background(), domain.IntakeRequest{RawText: "fiebre"})
	if err != nil || job.ID == "" {
		t.Fatalf("expected generated job id, got %+v %v", job, err)
	}
	if _, err := uc.Enqueue(context.Background(), domain.IntakeRequest{RawText: "  "}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	queue.err = errors.New("nats down")
	if _, err := uc.Enqueue(context.Background(), domain.IntakeRequest{RawText: "fiebre"}); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestEnqueueRejectsUnknownReferences(t *testing.T) {
	f := newIntakeFixture()
	queue := &queueFake{}
	uc := NewEnqueueIntakeUseCase(queue, f.build())
	missing := int64(99)

	cases := []domain.IntakeRequest{
		{RawText: "ardor al orinar", AppointmentID: &missing},
		{RawText: "ardor al orinar", Hint: domain.NewHintByLabel("Gripe")},
		{RawText: "ardor al orinar", Hint: domain.NewHintByID(42)},
	}
	for _, req := range cases {
		if _, err := uc.Enqueue(context.Background(), req); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput for %+v, got %v", req, err)
		}
	}
	if len(queue.published) != 0 {
		t.Fatalf("invalid requests must not be published, got %d jobs", len(queue.published))
	}
	if f.summarizer.calls != 0 {
		t.Fatalf("reference checks must not run annotations")
	}
}

func TestEnqueueReferenceLookupFailureIsInternal(t *testing.T) {
	f := newIntakeFixture()
	f.appointments.err = errors.New("db down")
	queue := &queueFake{}
	uc := NewEnqueueIntakeUseCase(queue, f.build())
	cita := int64(7)

	_, err := uc.Enqueue(context.Background(), domain.IntakeRequest{RawText: "fiebre", AppointmentID: &cita})
	if err == nil || domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if len(queue.published) != 0 {
		t.Fatalf("expected nothing published")
	}
}

func TestIntakeJobHandlerRunsProcessor(t *testing.T) {
	processor := &processorFake{}
	h := NewIntakeJobHandler(processor)
	hintID := int64(4)

	err := h.Handle(context.Background(), domain.IntakeJob{ID: "job-1", UserID: 2, RawText: "fiebre", HintID: &hintID})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(processor.requests) != 1 {
		t.Fatalf("expected one processed request")
	}
	req := processor.requests[0]
	if req.RequestID != "job-1" || req.Hint == nil || req.Hint.Kind != domain.HintByID || req.Hint.ID != 4 {
		t.Fatalf("unexpected request %+v", req)
	}

	processor.err = domain.WrapError(domain.ErrInvalidInput, "process", errors.New("bad hint"))
	if err := h.Handle(context.Background(), domain.IntakeJob{ID: "job-2", RawText: "x"}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected wrapped ErrInvalidInput, got %v", err)
	}
}
