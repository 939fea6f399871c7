package models

import "errors"

var (
	// ErrReasonUnavailable means the contact reason does not exist or is inactive
	ErrReasonUnavailable = errors.New("contact reason unavailable")
	// ErrReasonNotFound means no contact reason has the given id
	ErrReasonNotFound = errors.New("contact reason not found")
	// ErrReasonInUse means form requests still reference the contact reason
	ErrReasonInUse = errors.New("contact reason is referenced by form requests")
)

// ReasonCount is the number of form requests filed under one contact reason
type ReasonCount struct {
	ReasonID uint      `json:"reason_id"`
	Key      ReasonKey `json:"key"`
	Count    int64     `json:"count"`
}
