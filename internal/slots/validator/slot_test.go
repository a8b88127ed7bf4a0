package validator

import (
	"testing"
	"time"

	"labbook/pkg/logger"
	"labbook/pkg/model"
)

func newTestValidator() *SlotValidator {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})
	return NewSlotValidator(log, 92, 48)
}

var testNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func TestValidateSpec(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		spec    model.SlotSpec
		wantErr bool
	}{
		{
			name: "valid window",
			spec: model.SlotSpec{
				InfrastructureID: "nmr-1",
				Date:             "2026-09-02",
				StartTime:        "09:00",
				EndTime:          "10:30",
			},
			wantErr: false,
		},
		{
			name: "same day as now is allowed",
			spec: model.SlotSpec{
				InfrastructureID: "nmr-1",
				Date:             "2026-09-01",
				StartTime:        "09:00",
				EndTime:          "10:00",
			},
			wantErr: false,
		},
		{
			name: "end before start",
			spec: model.SlotSpec{
				InfrastructureID: "nmr-1",
				Date:             "2026-09-02",
				StartTime:        "10:00",
				EndTime:          "09:00",
			},
			wantErr: true,
		},
		{
			name: "zero length window",
			spec: model.SlotSpec{
				InfrastructureID: "nmr-1",
				Date:             "2026-09-02",
				StartTime:        "10:00",
				EndTime:          "10:00",
			},
			wantErr: true,
		},
		{
			name: "past date",
			spec: model.SlotSpec{
				InfrastructureID: "nmr-1",
				Date:             "2026-08-31",
				StartTime:        "09:00",
				EndTime:          "10:00",
			},
			wantErr: true,
		},
		{
			name: "missing infrastructure",
			spec: model.SlotSpec{
				Date:      "2026-09-02",
				StartTime: "09:00",
				EndTime:   "10:00",
			},
			wantErr: true,
		},
		{
			name: "malformed time",
			spec: model.SlotSpec{
				InfrastructureID: "nmr-1",
				Date:             "2026-09-02",
				StartTime:        "9am",
				EndTime:          "10:00",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateSpec(&tt.spec, testNow)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSpec() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBatch(t *testing.T) {
	v := newTestValidator()

	valid := model.BatchSpec{
		InfrastructureID:    "nmr-1",
		StartDate:           "2026-09-02",
		EndDate:             "2026-09-04",
		DailyStartTime:      "09:00",
		SlotDurationMinutes: 60,
		SlotsPerDay:         6,
	}

	tests := []struct {
		name    string
		mutate  func(spec *model.BatchSpec)
		wantErr bool
	}{
		{
			name:    "valid batch",
			mutate:  func(spec *model.BatchSpec) {},
			wantErr: false,
		},
		{
			name: "end date before start date",
			mutate: func(spec *model.BatchSpec) {
				spec.EndDate = "2026-09-01"
			},
			wantErr: true,
		},
		{
			name: "range exceeds maximum days",
			mutate: func(spec *model.BatchSpec) {
				spec.EndDate = "2027-01-01"
			},
			wantErr: true,
		},
		{
			name: "past start date",
			mutate: func(spec *model.BatchSpec) {
				spec.StartDate = "2026-08-30"
			},
			wantErr: true,
		},
		{
			name: "too many slots per day",
			mutate: func(spec *model.BatchSpec) {
				spec.SlotsPerDay = 49
				spec.SlotDurationMinutes = 1
			},
			wantErr: true,
		},
		{
			name: "grid runs past midnight",
			mutate: func(spec *model.BatchSpec) {
				spec.DailyStartTime = "22:00"
				spec.SlotDurationMinutes = 60
				spec.SlotsPerDay = 3
			},
			wantErr: true,
		},
		{
			name: "grid ends exactly at midnight",
			mutate: func(spec *model.BatchSpec) {
				spec.DailyStartTime = "22:00"
				spec.SlotDurationMinutes = 60
				spec.SlotsPerDay = 2
			},
			wantErr: false,
		},
		{
			name: "zero duration",
			mutate: func(spec *model.BatchSpec) {
				spec.SlotDurationMinutes = 0
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid
			tt.mutate(&spec)
			err := v.ValidateBatch(&spec, testNow)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBatch() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBookingRequest(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name    string
		req     model.BookingRequest
		wantErr bool
	}{
		{
			name: "valid request without answers",
			req: model.BookingRequest{
				SlotID:  "507f1f77bcf86cd799439011",
				Purpose: "calibration run",
			},
			wantErr: false,
		},
		{
			name: "valid request with answers",
			req: model.BookingRequest{
				SlotID:  "507f1f77bcf86cd799439011",
				Purpose: "calibration run",
				Answers: []model.Answer{
					model.TextAnswer("q-1", "yes"),
					model.FileAnswer("q-2", "uploads/safety-cert.pdf"),
				},
			},
			wantErr: false,
		},
		{
			name: "malformed slot id",
			req: model.BookingRequest{
				SlotID:  "not-an-object-id",
				Purpose: "calibration run",
			},
			wantErr: true,
		},
		{
			name: "purpose too short",
			req: model.BookingRequest{
				SlotID:  "507f1f77bcf86cd799439011",
				Purpose: "ab",
			},
			wantErr: true,
		},
		{
			name: "text answer with no text",
			req: model.BookingRequest{
				SlotID:  "507f1f77bcf86cd799439011",
				Purpose: "calibration run",
				Answers: []model.Answer{{QuestionID: "q-1", Kind: model.AnswerText}},
			},
			wantErr: true,
		},
		{
			name: "file answer with no file reference",
			req: model.BookingRequest{
				SlotID:  "507f1f77bcf86cd799439011",
				Purpose: "calibration run",
				Answers: []model.Answer{{QuestionID: "q-1", Kind: model.AnswerFile}},
			},
			wantErr: true,
		},
		{
			name: "unknown answer kind",
			req: model.BookingRequest{
				SlotID:  "507f1f77bcf86cd799439011",
				Purpose: "calibration run",
				Answers: []model.Answer{{QuestionID: "q-1", Kind: "video", Text: "x"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateBookingRequest(&tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBookingRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
