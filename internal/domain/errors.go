package domain

import "errors"

var (
	// ErrValidation marks malformed or incomplete input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks an operation rejected because of concurrent state.
	ErrConflict = errors.New("conflict")

	// ErrAllocation marks a business-number allocation failure. Nothing is
	// committed when this is returned.
	ErrAllocation = errors.New("number allocation failed")
	// ErrInvalidTransition marks a state change not present in the
	// transition table of the entity.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvalidMembership marks a batch membership rule violation.
	ErrInvalidMembership = errors.New("invalid batch membership")
	// ErrBatchNotReady marks a batch approval attempted while members are
	// still undecided.
	ErrBatchNotReady = errors.New("batch not ready")
	// ErrAlreadyIssued marks a second card issuance for the same application.
	ErrAlreadyIssued = errors.New("card already issued")
	// ErrNotApproved marks card issuance for an application that is not
	// approved.
	ErrNotApproved = errors.New("application not approved")
	// ErrDocumentGeneration marks a print-artifact request failure. It is
	// attached to an otherwise committed transition and never rolls the
	// state change back.
	ErrDocumentGeneration = errors.New("document generation failed")
)
