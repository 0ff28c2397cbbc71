package models

import (
	"errors"
)

var (
	ErrInvalidLedgerEntry = errors.New("invalid ledger entry")
	ErrDemandAlreadyTaken = errors.New("demand already taken")
	ErrDemandNotActive    = errors.New("demand is not active")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrSchemeMismatch     = errors.New("level does not belong to the subject's scheme")
)

// EligibilityReason names the first failed check of a take attempt.
type EligibilityReason string

const (
	ReasonEligible           EligibilityReason = "eligible"
	ReasonIncompleteProfile  EligibilityReason = "incomplete_profile"
	ReasonUnverifiedContact  EligibilityReason = "unverified_contact"
	ReasonNoSharedLocation   EligibilityReason = "no_shared_location"
	ReasonSubjectNotTaught   EligibilityReason = "subject_not_taught"
	ReasonLevelNotTaught     EligibilityReason = "level_not_taught"
	ReasonInactiveAccount    EligibilityReason = "inactive_account"
	ReasonInsufficientCredit EligibilityReason = "insufficient_credit"

	// demand state, reported before any tutor check
	ReasonAlreadyTaken EligibilityReason = "already_taken"
	ReasonNotActive    EligibilityReason = "not_active"
)

var reasonMessages = map[EligibilityReason]string{
	ReasonEligible:           "you can take this demand",
	ReasonIncompleteProfile:  "your profile is not complete",
	ReasonUnverifiedContact:  "your phone number is not verified",
	ReasonNoSharedLocation:   "you do not tutor in this town",
	ReasonSubjectNotTaught:   "you do not teach this subject",
	ReasonLevelNotTaught:     "you do not teach this subject at this level",
	ReasonInactiveAccount:    "your account is not active",
	ReasonInsufficientCredit: "you do not have enough credit",
	ReasonAlreadyTaken:       "this demand has already been taken",
	ReasonNotActive:          "this demand is not active",
}

func (r EligibilityReason) Message() string {
	if m, ok := reasonMessages[r]; ok {
		return m
	}
	return string(r)
}

// EligibilityError is returned when a tutor may not take a demand.
type EligibilityError struct {
	Reason EligibilityReason
}

func (e *EligibilityError) Error() string {
	return "cannot take demand: " + e.Reason.Message()
}

func (e *EligibilityError) Is(target error) bool {
	return e.Reason == ReasonInsufficientCredit && target == ErrInsufficientCredit
}
