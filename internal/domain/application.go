package domain

import (
	"fmt"
	"strings"
	"time"
)

// AppState represents the lifecycle state of a card application.
type AppState string

const (
	AppStateDraft       AppState = "DRAFT"
	AppStateSubmitted   AppState = "SUBMITTED"
	AppStateUnderReview AppState = "UNDER_REVIEW"
	AppStateApproved    AppState = "APPROVED"
	AppStateRejected    AppState = "REJECTED"
	AppStateIssued      AppState = "ISSUED"
)

func (s AppState) String() string { return string(s) }

func (s AppState) IsValid() bool {
	switch s {
	case AppStateDraft, AppStateSubmitted, AppStateUnderReview,
		AppStateApproved, AppStateRejected, AppStateIssued:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is defined for s.
func (s AppState) IsTerminal() bool {
	return s == AppStateRejected || s == AppStateIssued
}

// IsDecided reports whether the application has received a review decision.
func (s AppState) IsDecided() bool {
	return s == AppStateApproved || s == AppStateRejected || s == AppStateIssued
}

func ParseAppStateFromString(s string) (AppState, error) {
	st := AppState(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid application state %q", ErrValidation, s)
	}
	return st, nil
}

// appTransitions is the application transition table. A transition absent
// here fails with ErrInvalidTransition and produces no side effects.
var appTransitions = map[AppState][]AppState{
	AppStateDraft:       {AppStateSubmitted},
	AppStateSubmitted:   {AppStateUnderReview},
	AppStateUnderReview: {AppStateApproved, AppStateRejected},
	AppStateApproved:    {AppStateIssued},
	AppStateRejected:    {},
	AppStateIssued:      {},
}

// CanTransition reports whether from -> to exists in the transition table.
func (s AppState) CanTransition(to AppState) bool {
	for _, next := range appTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// DecisionOutcome is the operator verdict on a reviewed application.
type DecisionOutcome string

const (
	DecisionApprove DecisionOutcome = "APPROVE"
	DecisionReject  DecisionOutcome = "REJECT"
)

func (d DecisionOutcome) IsValid() bool {
	return d == DecisionApprove || d == DecisionReject
}

func ParseDecisionOutcomeFromString(s string) (DecisionOutcome, error) {
	d := DecisionOutcome(strings.ToUpper(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("%w: decision must be APPROVE or REJECT, got %q", ErrValidation, s)
	}
	return d, nil
}

// Application is the core workflow entity: one applicant's request for a
// card, moving from draft to a terminal disposition.
type Application struct {
	ID            string
	ApplicationNo string
	ApplicantName string
	ApplicantRef  string
	ProductCode   string
	BatchID       *string
	CardID        *string
	State         AppState
	DecisionBy    *string
	DecisionNote  *string
	DecidedAt     *time.Time
	SubmittedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a *Application) Validate() error {
	if strings.TrimSpace(a.ApplicantName) == "" {
		return fmt.Errorf("%w: applicant name is required", ErrValidation)
	}
	if strings.TrimSpace(a.ApplicantRef) == "" {
		return fmt.Errorf("%w: applicant reference is required", ErrValidation)
	}
	if strings.TrimSpace(a.ProductCode) == "" {
		return fmt.Errorf("%w: product code is required", ErrValidation)
	}
	if a.State != "" && !a.State.IsValid() {
		return fmt.Errorf("%w: invalid application state %q", ErrValidation, a.State)
	}
	return nil
}

// Transition validates and applies a state change. It mutates only the
// state and the updated timestamp; callers persist and record history.
func (a *Application) Transition(to AppState, now time.Time) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: invalid application state %q", ErrValidation, to)
	}
	if !a.State.CanTransition(to) {
		return fmt.Errorf("%w: application %s cannot move %s -> %s",
			ErrInvalidTransition, a.ApplicationNo, a.State, to)
	}
	a.State = to
	a.UpdatedAt = now
	return nil
}
