package contact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"praxis-website/internal/models"
)

// Input field names
const (
	FieldFullName          = "fullName"
	FieldEmail             = "email"
	FieldPhone             = "phone"
	FieldPreferredDatetime = "preferredDatetime"
	FieldMessage           = "message"
	FieldContactReasonID   = "contactReasonId"
)

// Field limits in characters
const (
	MaxFullNameLength = 255
	MaxEmailLength    = 255
	MaxPhoneLength    = 50
	MaxMessageLength  = 1000
)

// Accepted preferredDatetime layouts. Layouts without an offset are read in
// the practice timezone.
var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ReasonLookup resolves active contact reasons
type ReasonLookup interface {
	FindActiveContactReason(ctx context.Context, id uint) (*models.ContactReason, error)
}

// FormData is one validated contact form submission. It cannot be changed
// after construction.
type FormData struct {
	fullName          string
	email             string
	phone             *string
	preferredDatetime *time.Time
	message           *string
	reason            models.ContactReason
}

type buildOptions struct {
	loc *time.Location
}

// BuildOption adjusts FromValidated
type BuildOption func(*buildOptions)

// InLocation reads zone-less datetime strings in loc
func InLocation(loc *time.Location) BuildOption {
	return func(o *buildOptions) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// FromValidated builds FormData from a field map that passed validation.
// It checks required fields and the contact reason again so that no other
// entry point can produce an invalid FormData.
func FromValidated(ctx context.Context, fields map[string]any, reasons ReasonLookup, opts ...BuildOption) (*FormData, error) {
	o := buildOptions{loc: time.UTC}
	for _, opt := range opts {
		opt(&o)
	}

	fullName, err := requiredString(fields, FieldFullName, MaxFullNameLength)
	if err != nil {
		return nil, err
	}
	email, err := requiredString(fields, FieldEmail, MaxEmailLength)
	if err != nil {
		return nil, err
	}
	if !isEmailSyntax(email) {
		return nil, &ConstructionError{Field: FieldEmail, Err: ErrMalformedField}
	}
	phone, err := optionalString(fields, FieldPhone, MaxPhoneLength)
	if err != nil {
		return nil, err
	}
	message, err := optionalString(fields, FieldMessage, MaxMessageLength)
	if err != nil {
		return nil, err
	}
	preferred, err := optionalDatetime(fields, o.loc)
	if err != nil {
		return nil, err
	}

	raw, ok := fields[FieldContactReasonID]
	if !ok || raw == nil {
		return nil, &ConstructionError{Field: FieldContactReasonID, Err: ErrMissingField}
	}
	reasonID, err := parseReasonID(raw)
	if err != nil {
		return nil, &ConstructionError{Field: FieldContactReasonID, Err: ErrMalformedField}
	}
	reason, err := reasons.FindActiveContactReason(ctx, reasonID)
	if errors.Is(err, models.ErrReasonUnavailable) || (err == nil && (reason == nil || !reason.IsActive)) {
		return nil, &ConstructionError{Field: FieldContactReasonID, Err: ErrInactiveReason}
	}
	if err != nil {
		return nil, fmt.Errorf("look up contact reason %d: %w", reasonID, err)
	}

	return &FormData{
		fullName:          fullName,
		email:             email,
		phone:             phone,
		preferredDatetime: preferred,
		message:           message,
		reason:            *reason,
	}, nil
}

func (f *FormData) FullName() string { return f.fullName }
func (f *FormData) Email() string { return f.email }

// Phone returns the phone number or "" when absent
func (f *FormData) Phone() string {
	if f.phone == nil {
		return ""
	}
	return *f.phone
}

// Message returns the message or "" when absent
func (f *FormData) Message() string {
	if f.message == nil {
		return ""
	}
	return *f.message
}

// PreferredDatetime returns the requested appointment time or the zero time
func (f *FormData) PreferredDatetime() time.Time {
	if f.preferredDatetime == nil {
		return time.Time{}
	}
	return *f.preferredDatetime
}

// Reason returns a copy of the contact reason
func (f *FormData) Reason() models.ContactReason { return f.reason }

func (f *FormData) HasPhone() bool { return f.phone != nil }
func (f *FormData) HasMessage() bool { return f.message != nil }
func (f *FormData) HasPreferredDatetime() bool { return f.preferredDatetime != nil }

// ToFormRequest maps the submission to its storage record
func (f *FormData) ToFormRequest() *models.FormRequest {
	fr := &models.FormRequest{
		FullName:        f.fullName,
		Email:           f.email,
		ContactReasonID: f.reason.ID,
	}
	if f.phone != nil {
		v := *f.phone
		fr.Phone = &v
	}
	if f.message != nil {
		v := *f.message
		fr.Message = &v
	}
	if f.preferredDatetime != nil {
		v := f.preferredDatetime.UTC()
		fr.PreferredDatetime = &v
	}
	return fr
}

func requiredString(fields map[string]any, key string, max int) (string, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return "", &ConstructionError{Field: key, Err: ErrMissingField}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &ConstructionError{Field: key, Err: ErrMalformedField}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", &ConstructionError{Field: key, Err: ErrMissingField}
	}
	if utf8.RuneCountInString(s) > max {
		return "", &ConstructionError{Field: key, Err: ErrMalformedField}
	}
	return s, nil
}

func optionalString(fields map[string]any, key string, max int) (*string, error) {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return nil, nil
	}
	s, ok := raw.(string)
	if !ok {
		return nil, &ConstructionError{Field: key, Err: ErrMalformedField}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(s) > max {
		return nil, &ConstructionError{Field: key, Err: ErrMalformedField}
	}
	return &s, nil
}

func optionalDatetime(fields map[string]any, loc *time.Location) (*time.Time, error) {
	raw, ok := fields[FieldPreferredDatetime]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case time.Time:
		if v.IsZero() {
			return nil, nil
		}
		return &v, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil, nil
		}
		t := *v
		return &t, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		t, err := ParseDatetime(v, loc)
		if err != nil {
			return nil, &ConstructionError{Field: FieldPreferredDatetime, Err: ErrInvalidDatetime}
		}
		return &t, nil
	default:
		return nil, &ConstructionError{Field: FieldPreferredDatetime, Err: ErrMalformedField}
	}
}

// ParseDatetime parses s with the accepted layouts. Values without an offset
// are read in loc.
func ParseDatetime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported datetime %q", s)
}

// parseReasonID accepts the id forms produced by JSON and form decoding
func parseReasonID(raw any) (uint, error) {
	var id uint64
	switch v := raw.(type) {
	case uint:
		id = uint64(v)
	case uint64:
		id = v
	case uint32:
		id = uint64(v)
	case int:
		if v < 0 {
			return 0, ErrMalformedField
		}
		id = uint64(v)
	case int64:
		if v < 0 {
			return 0, ErrMalformedField
		}
		id = uint64(v)
	case float64:
		if v < 0 || v != math.Trunc(v) || v > math.MaxUint32 {
			return 0, ErrMalformedField
		}
		id = uint64(v)
	case json.Number:
		n, err := strconv.ParseUint(v.String(), 10, 32)
		if err != nil {
			return 0, ErrMalformedField
		}
		id = n
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return 0, ErrMalformedField
		}
		id = n
	default:
		return 0, ErrMalformedField
	}
	if id == 0 || id > math.MaxUint32 {
		return 0, ErrMalformedField
	}
	return uint(id), nil
}
