package services

import (
	"errors"

	"classpulse/internal/identity"
)

// Service errors
var (
	// Teacher login: the class log holds no row for the supplied ID,
	// password and month combination.
	ErrInvalidCredentials = errors.New("invalid credentials or no data for this month")

	// Student login failures keep the matcher's distinction between an
	// unknown ID, a wrong name and a fragment rejected before any scan.
	ErrStudentNotFound  = identity.ErrStudentNotFound
	ErrNameMismatch     = identity.ErrNameMismatch
	ErrFragmentTooShort = identity.ErrFragmentTooShort

	// Session errors
	ErrSessionNotFound = errors.New("session not found or expired")

	// Profile errors
	ErrProfileNotFound = errors.New("no profile recorded for this teacher")

	// ErrSourceUnavailable wraps any worksheet fetch failure. The portal
	// stays up and reports the outage instead of a credentials failure.
	ErrSourceUnavailable = errors.New("worksheet data unavailable")
)
