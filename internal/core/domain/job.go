package domain

import "time"

// IntakeJob is an intake request queued for asynchronous processing.
type IntakeJob struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"user_id"`
	RawText       string    `json:"texto_original"`
	AppointmentID *int64    `json:"cita_id,omitempty"`
	HintID        *int64    `json:"diagnostico_id,omitempty"`
	HintLabel     string    `json:"diagnostico_label,omitempty"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

func (j IntakeJob) Request() IntakeRequest {
	req := IntakeRequest{
		RawText:       j.RawText,
		AppointmentID: j.AppointmentID,
		UserID:        j.UserID,
		RequestID:     j.ID,
	}
	switch {
	case j.HintID != nil:
		req.Hint = NewHintByID(*j.HintID)
	case j.HintLabel != "":
		req.Hint = NewHintByLabel(j.HintLabel)
	}
	return req
}

func NewIntakeJob(id string, req IntakeRequest, now time.Time) IntakeJob {
	job := IntakeJob{
		ID:            id,
		UserID:        req.UserID,
		RawText:       req.RawText,
		AppointmentID: req.AppointmentID,
		EnqueuedAt:    now,
	}
	if req.Hint != nil {
		switch req.Hint.Kind {
		case HintByID:
			hintID := req.Hint.ID
			job.HintID = &hintID
		case HintByLabel:
			job.HintLabel = req.Hint.Label
		}
	}
	return job
}
