package service

import (
	"context"
	"errors"
	"fmt"

	"courtclub/internal/domain"
	"courtclub/internal/state"
)

var (
	// ErrIncomplete blocks a submission silently: the form is not ready yet.
	ErrIncomplete = errors.New("required fields missing")

	ErrInvalidDuration   = errors.New("duration must be 60 or 90 minutes")
	ErrInvalidPlayerType = errors.New("unknown player type")
	ErrInvalidChannel    = errors.New("unknown notification channel")
	ErrPastDate          = errors.New("date is in the past")
	ErrUnknownSlot       = errors.New("unknown time slot")

	ErrSlotTaken          = errors.New("slot already reserved")
	ErrSlotClosed         = errors.New("slot closed by the club")
	ErrDuplicateContact   = errors.New("phone number already registered")
	ErrSubmissionInFlight = errors.New("submission already in progress")

	// ErrRemoteWrite wraps the domain store error of a failed persist.
	ErrRemoteWrite = errors.New("remote write failed")

	ErrAccessDenied = errors.New("invalid access code")
)

func remoteWriteError(err error) error {
	return fmt.Errorf("%w: %w", ErrRemoteWrite, err)
}

// IsValidation reports whether err is an input constraint violation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidPlayerType) ||
		errors.Is(err, ErrInvalidChannel) ||
		errors.Is(err, ErrPastDate) ||
		errors.Is(err, ErrUnknownSlot)
}

// IsConflict reports whether err means the request clashes with existing data.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotTaken) ||
		errors.Is(err, ErrSlotClosed) ||
		errors.Is(err, ErrDuplicateContact)
}

// IsTimeout reports a remote call that ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// IsNotFound covers both local and remote misses.
func IsNotFound(err error) bool {
	return errors.Is(err, state.ErrNotFound) || errors.Is(err, domain.ErrRecordNotFound)
}

// UserMessage turns a workflow error into the sentence shown to the visitor.
// ErrIncomplete has no message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIncomplete):
		return ""
	case errors.Is(err, ErrSlotTaken):
		return "This time slot has already been reserved. Please choose another time."
	case errors.Is(err, ErrSlotClosed):
		return "This time slot is not available for booking. Please choose another time."
	case errors.Is(err, ErrDuplicateContact):
		return "This phone number is already registered."
	case errors.Is(err, ErrSubmissionInFlight):
		return "Your request is already being processed."
	case errors.Is(err, ErrInvalidDuration):
		return "Sessions can be booked for 60 or 90 minutes."
	case errors.Is(err, ErrInvalidPlayerType):
		return "Please choose Member or Guest."
	case errors.Is(err, ErrInvalidChannel):
		return "Please choose Email or WhatsApp for notifications."
	case errors.Is(err, ErrPastDate):
		return "Please choose today or a future date."
	case errors.Is(err, ErrUnknownSlot):
		return "Please choose one of the listed time slots."
	case errors.Is(err, ErrAccessDenied):
		return "Invalid access code."
	case errors.Is(err, ErrRemoteWrite):
		return remoteMessage(err)
	case IsNotFound(err):
		return "The requested record no longer exists."
	default:
		return "Something went wrong. Please try again."
	}
}

func remoteMessage(err error) string {
	switch {
	case IsTimeout(err):
		return "The reservation service did not respond in time. Nothing was saved, please try again."
	case errors.Is(err, domain.ErrDuplicateRecord):
		return "This slot was just taken by someone else. Please choose another time."
	case errors.Is(err, domain.ErrRecordRejected):
		return "The reservation service rejected the request. Please check your details and try again."
	case errors.Is(err, domain.ErrRecordNotFound):
		return "The record no longer exists in the reservation service."
	default:
		return "The reservation service is unreachable right now. Nothing was saved, please try again."
	}
}
