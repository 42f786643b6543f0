package billing

import "errors"

var (
	// ErrInvalidPlan is returned when an installment plan cannot be laid out on the academic calendar.
	ErrInvalidPlan = errors.New("billing: invalid installment plan")
	// ErrNegativeAmount is returned when a money input is below zero.
	ErrNegativeAmount = errors.New("billing: negative amount")
	// ErrEnrollmentNotFound is returned when an enrollment does not exist.
	ErrEnrollmentNotFound = errors.New("billing: enrollment not found")
)
