package model

import (
	"time"
)

// Kind distinguishes an unclaimed window from a claimed one.
const (
	KindTimeslot = "timeslot"
	KindBooking  = "booking"
)

// Status values of the slot lifecycle. A row only ever moves forward:
//
//	available -> pending -> approved | rejected
//	pending, approved   -> canceled
//	available, pending, approved -> completed (sweeper)
//
// rejected, canceled and completed are terminal.
const (
	StatusAvailable = "available"
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCanceled  = "canceled"
	StatusCompleted = "completed"
)

// ActiveStatuses are the statuses that hold a time window. Only these
// participate in overlap checks and expiry sweeps.
var ActiveStatuses = []string{StatusAvailable, StatusPending, StatusApproved}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Slot is a single persisted time window on one infrastructure: a
// timeslot while unclaimed, a booking once a user has claimed it.
// BookingDate groups rows for overlap checks; StartAt/EndAt are the
// absolute UTC bounds of the half-open window [StartAt, EndAt).
type Slot struct {
	ID               string    `json:"id,omitempty" bson:"_id,omitempty"`
	InfrastructureID string    `json:"infrastructure_id" bson:"infrastructure_id"`
	BookingDate      string    `json:"booking_date" bson:"booking_date"`
	StartAt          time.Time `json:"start_at" bson:"start_at"`
	EndAt            time.Time `json:"end_at" bson:"end_at"`
	Kind             string    `json:"kind" bson:"kind"`
	Status           string    `json:"status" bson:"status"`
	UserEmail        string    `json:"user_email,omitempty" bson:"user_email,omitempty"`
	Purpose          string    `json:"purpose,omitempty" bson:"purpose,omitempty"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" bson:"updated_at"`
}

func (s *Slot) IsTerminal() bool {
	switch s.Status {
	case StatusRejected, StatusCanceled, StatusCompleted:
		return true
	}
	return false
}

// SlotSpec is the request payload for publishing one timeslot.
type SlotSpec struct {
	InfrastructureID string `json:"infrastructure_id" validate:"required,min=1,max=100"`
	Date             string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime        string `json:"start_time" validate:"required,datetime=15:04"`
	EndTime          string `json:"end_time" validate:"required,datetime=15:04"`
}

// BatchSpec expands into SlotsPerDay back-to-back windows per calendar
// day over [StartDate, EndDate], each SlotDurationMinutes long,
// starting at DailyStartTime.
type BatchSpec struct {
	InfrastructureID    string `json:"infrastructure_id" validate:"required,min=1,max=100"`
	StartDate           string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate             string `json:"end_date" validate:"required,datetime=2006-01-02"`
	DailyStartTime      string `json:"daily_start_time" validate:"required,datetime=15:04"`
	SlotDurationMinutes int    `json:"slot_duration_minutes" validate:"required,min=1,max=1440"`
	SlotsPerDay         int    `json:"slots_per_day" validate:"required,min=1"`
}

// BatchResult reports how a batch fared. Overlapping candidates are
// skipped, never fatal.
type BatchResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// BookingRequest is the payload for claiming an available timeslot.
type BookingRequest struct {
	SlotID  string   `json:"slot_id" validate:"required,mongodb"`
	Purpose string   `json:"purpose" validate:"required,min=3,max=500"`
	Answers []Answer `json:"answers" validate:"omitempty,dive"`
}

// SweepResult reports how many expired rows a sweep retired.
type SweepResult struct {
	UpdatedCount int64 `json:"updated_count"`
}
