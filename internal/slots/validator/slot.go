package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"labbook/pkg/logger"
	"labbook/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// SlotValidator validates the request payloads of the slot and booking
// endpoints: struct tags first, then the cross-field rules the tags
// cannot express.
type SlotValidator struct {
	validate *validator.Validate
	log      *logger.Logger

	maxBatchDays   int
	maxSlotsPerDay int
}

func NewSlotValidator(log *logger.Logger, maxBatchDays, maxSlotsPerDay int) *SlotValidator {
	return &SlotValidator{
		validate:       validator.New(),
		log:            log,
		maxBatchDays:   maxBatchDays,
		maxSlotsPerDay: maxSlotsPerDay,
	}
}

// ValidateSpec checks a single-slot publication request. The window
// must be well-formed and must not start on a past date.
func (v *SlotValidator) ValidateSpec(spec *model.SlotSpec, now time.Time) error {
	if err := v.validate.Struct(spec); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}

	start, _ := time.Parse(model.TimeLayout, spec.StartTime)
	end, _ := time.Parse(model.TimeLayout, spec.EndTime)
	if !end.After(start) {
		return ValidationErrors{{
			Field:   "EndTime",
			Message: "end_time must be after start_time",
		}}
	}

	if dateBefore(spec.Date, now) {
		return ValidationErrors{{
			Field:   "Date",
			Message: "date must not be in the past",
		}}
	}

	return nil
}

// ValidateBatch checks a batch specification in full before any row is
// written; a bad spec never produces a partial batch.
func (v *SlotValidator) ValidateBatch(spec *model.BatchSpec, now time.Time) error {
	if err := v.validate.Struct(spec); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}

	var errs ValidationErrors

	startDate, _ := time.Parse(model.DateLayout, spec.StartDate)
	endDate, _ := time.Parse(model.DateLayout, spec.EndDate)

	if endDate.Before(startDate) {
		errs = append(errs, ValidationError{
			Field:   "EndDate",
			Message: "end_date must not be before start_date",
		})
	} else if days := int(endDate.Sub(startDate).Hours()/24) + 1; days > v.maxBatchDays {
		errs = append(errs, ValidationError{
			Field:   "EndDate",
			Message: fmt.Sprintf("date range spans %d days, maximum is %d", days, v.maxBatchDays),
		})
	}

	if dateBefore(spec.StartDate, now) {
		errs = append(errs, ValidationError{
			Field:   "StartDate",
			Message: "start_date must not be in the past",
		})
	}

	if spec.SlotsPerDay > v.maxSlotsPerDay {
		errs = append(errs, ValidationError{
			Field:   "SlotsPerDay",
			Message: fmt.Sprintf("slots_per_day must not exceed %d", v.maxSlotsPerDay),
		})
	}

	// The whole daily grid has to fit inside the calendar day.
	dailyStart, _ := time.Parse(model.TimeLayout, spec.DailyStartTime)
	gridMinutes := spec.SlotDurationMinutes * spec.SlotsPerDay
	dayRemaining := 24*60 - dailyStart.Hour()*60 - dailyStart.Minute()
	if gridMinutes > dayRemaining {
		errs = append(errs, ValidationError{
			Field:   "SlotsPerDay",
			Message: fmt.Sprintf("%d slots of %d minutes starting at %s run past midnight", spec.SlotsPerDay, spec.SlotDurationMinutes, spec.DailyStartTime),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateBookingRequest checks the claim payload. Answer completeness
// against the infrastructure's required questions is the service's
// job; here each supplied answer only has to be internally consistent.
func (v *SlotValidator) ValidateBookingRequest(req *model.BookingRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translate(validationErrs)
		}
		return err
	}

	var errs ValidationErrors
	for i, answer := range req.Answers {
		if answer.Empty() {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("Answers[%d]", i),
				Message: fmt.Sprintf("answer for question %q carries no value", answer.QuestionID),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func dateBefore(date string, now time.Time) bool {
	return date < now.UTC().Format(model.DateLayout)
}

func (v *SlotValidator) translate(validationErrs validator.ValidationErrors) ValidationErrors {
	var errs ValidationErrors
	for _, fieldErr := range validationErrs {
		errs = append(errs, ValidationError{
			Field:   fieldErr.Field(),
			Message: translateFieldError(fieldErr),
		})
	}
	return errs
}

func translateFieldError(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return fmt.Sprintf("must match the format %s", fieldErr.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fieldErr.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fieldErr.Param())
	case "mongodb":
		return "must be a valid object id"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fieldErr.Param())
	default:
		return fmt.Sprintf("failed %s validation", fieldErr.Tag())
	}
}
