package syncer

import (
	"context"
	"errors"

	"catalogsync/internal/models"
	"catalogsync/internal/retry"
	"catalogsync/internal/services/shopify"
)

// State is a step of the per-record workflow. Only SkipDuplicate, Created
// and CreateFailed are terminal.
type State string

const (
	StateStart         State = "START"
	StateDupCheck      State = "DUP_CHECK"
	StateSkipDuplicate State = "SKIP_DUPLICATE"
	StateCreate        State = "CREATE"
	StateCreated       State = "CREATED"
	StatePostProcess   State = "POST_PROCESS"
	StateCreateFailed  State = "CREATE_FAILED"
)

type ErrorKind string

const (
	ErrorKindTransient  ErrorKind = "transient"
	ErrorKindPermission ErrorKind = "permission"
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindRemote     ErrorKind = "remote"
	ErrorKindLookup     ErrorKind = "lookup"
	ErrorKindCancelled  ErrorKind = "cancelled"
)

// Step names of POST_PROCESS.
const (
	StepInventory = "inventory"
	StepCategory  = "category"
	StepMetadata  = "metadata"
)

type StepStatus string

const (
	StepOK       StepStatus = "ok"
	StepFailed   StepStatus = "failed"
	StepSkipped  StepStatus = "skipped"
	StepFallback StepStatus = "fallback"
)

type StepResult struct {
	Name   string
	Status StepStatus
	Err    error
}

// Outcome is the result of one record. Failures are values here; only
// cancellation escapes Run as an error.
type Outcome struct {
	State State
	Ref   models.RemoteProductRef
	Kind  ErrorKind
	Err   error
	Steps []StepResult
	// ImagesStripped is set when the product was created without its images.
	ImagesStripped bool
}

func (o Outcome) Failed() bool {
	return o.State == StateCreateFailed
}

// Classify maps an error from a remote call onto an ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return ErrorKindCancelled
	case errors.Is(err, retry.ErrExhausted), retry.IsTransient(err):
		return ErrorKindTransient
	}
	var apiErr *shopify.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Permission():
			return ErrorKindPermission
		case apiErr.Validation():
			return ErrorKindValidation
		}
	}
	return ErrorKindRemote
}
