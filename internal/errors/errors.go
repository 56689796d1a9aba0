// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	BusinessName string
	Month        string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign for %q / %q not found", e.BusinessName, e.Month)
}

// NewCampaignNotFound helper constructor
func NewCampaignNotFound(businessName, month string) error {
	return &ErrCampaignNotFound{BusinessName: businessName, Month: month}
}

// ErrAlreadyAssigned means the creator already occupies a slot in the
// campaign. Adds are idempotent by rejection, not by silent success.
type ErrAlreadyAssigned struct {
	CreatorID string
}

func (e *ErrAlreadyAssigned) Error() string {
	return fmt.Sprintf("creator %s is already in this campaign", e.CreatorID)
}

func NewAlreadyAssigned(creatorID string) error {
	return &ErrAlreadyAssigned{CreatorID: creatorID}
}

// ErrNotAssigned means the creator does not occupy any slot in the
// campaign.
type ErrNotAssigned struct {
	CreatorID string
}

func (e *ErrNotAssigned) Error() string {
	return fmt.Sprintf("creator %s is not in this campaign", e.CreatorID)
}

func NewNotAssigned(creatorID string) error {
	return &ErrNotAssigned{CreatorID: creatorID}
}

// ErrSlotsFull means every contracted slot is occupied and the caller
// did not allow a slot increase.
type ErrSlotsFull struct {
	ContractedSlotCount int
}

func (e *ErrSlotsFull) Error() string {
	return fmt.Sprintf("all %d contracted slots are occupied", e.ContractedSlotCount)
}

func NewSlotsFull(contracted int) error {
	return &ErrSlotsFull{ContractedSlotCount: contracted}
}

// ErrValidation means the input shape was bad (missing field, unknown
// creator id, etc).
type ErrValidation struct {
	Field  string
	Reason string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ErrValidation{Field: field, Reason: reason}
}

// ErrTransientStore wraps a storage failure that aborted the whole
// transaction. Nothing was committed; the call is safe to retry.
type ErrTransientStore struct {
	Op  string
	Err error
}

func (e *ErrTransientStore) Error() string {
	return fmt.Sprintf("transient store error during %s: %v", e.Op, e.Err)
}

func (e *ErrTransientStore) Unwrap() error {
	return e.Err
}

func NewTransientStore(op string, err error) error {
	return &ErrTransientStore{Op: op, Err: err}
}

// IsPrecondition reports whether err is one of the terminal
// precondition failures that must not be retried automatically.
func IsPrecondition(err error) bool {
	var alreadyAssigned *ErrAlreadyAssigned
	var notAssigned *ErrNotAssigned
	var slotsFull *ErrSlotsFull
	var notFound *ErrCampaignNotFound
	return errors.As(err, &alreadyAssigned) ||
		errors.As(err, &notAssigned) ||
		errors.As(err, &slotsFull) ||
		errors.As(err, &notFound)
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var transient *ErrTransientStore
	return errors.As(err, &transient)
}
