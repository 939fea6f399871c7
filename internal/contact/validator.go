package contact

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"praxis-website/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Translator renders localized messages
type Translator interface {
	Translate(locale, key string, params map[string]string) string
}

// Validator checks raw contact form input. Every field is checked on each
// call so the caller gets all errors at once.
type Validator struct {
	reasons    ReasonLookup
	translator Translator
	loc        *time.Location
	now        func() time.Time
	checkMX    bool
	lookupMX   func(ctx context.Context, host string) ([]*net.MX, error)
}

// ValidatorOption configures a Validator
type ValidatorOption func(*Validator)

// WithClock replaces time.Now
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

// WithLocation sets the timezone for zone-less datetimes
func WithLocation(loc *time.Location) ValidatorOption {
	return func(v *Validator) {
		if loc != nil {
			v.loc = loc
		}
	}
}

// WithMXCheck enables a DNS lookup of the email domain
func WithMXCheck(enabled bool) ValidatorOption {
	return func(v *Validator) { v.checkMX = enabled }
}

// NewValidator creates a Validator
func NewValidator(reasons ReasonLookup, translator Translator, opts ...ValidatorOption) *Validator {
	v := &Validator{
		reasons:    reasons,
		translator: translator,
		loc:        time.UTC,
		now:        time.Now,
		lookupMX:   net.DefaultResolver.LookupMX,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Location returns the timezone zone-less datetimes are read in
func (v *Validator) Location() *time.Location {
	return v.loc
}

// Validate returns the normalized field map or ValidationErrors. Any other
// error means the reason lookup itself failed.
func (v *Validator) Validate(ctx context.Context, locale string, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	var errs ValidationErrors
	fail := func(field, rule string, params map[string]string) {
		errs = append(errs, FieldError{Field: field, Rule: rule, Message: v.message(locale, field, rule, params)})
	}

	if s, rule, params := v.checkString(raw, FieldFullName, true, MaxFullNameLength); rule != "" {
		fail(FieldFullName, rule, params)
	} else {
		out[FieldFullName] = s
	}

	if s, rule, params := v.checkString(raw, FieldEmail, true, MaxEmailLength); rule != "" {
		fail(FieldEmail, rule, params)
	} else if !isEmailSyntax(s) || !v.deliverable(ctx, s) {
		fail(FieldEmail, "email", nil)
	} else {
		out[FieldEmail] = s
	}

	for _, f := range []struct {
		name string
		max  int
	}{{FieldPhone, MaxPhoneLength}, {FieldMessage, MaxMessageLength}} {
		s, rule, params := v.checkString(raw, f.name, false, f.max)
		if rule != "" {
			fail(f.name, rule, params)
		} else if s != "" {
			out[f.name] = s
		}
	}

	if t, rule := v.checkDatetime(raw[FieldPreferredDatetime]); rule != "" {
		fail(FieldPreferredDatetime, rule, nil)
	} else if !t.IsZero() {
		out[FieldPreferredDatetime] = t
	}

	id, rule, err := v.checkReason(ctx, raw[FieldContactReasonID])
	if err != nil {
		return nil, err
	}
	if rule != "" {
		fail(FieldContactReasonID, rule, nil)
	} else {
		out[FieldContactReasonID] = id
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// checkString returns the trimmed value or the failed rule
func (v *Validator) checkString(raw map[string]any, field string, required bool, max int) (string, string, map[string]string) {
	value, present := raw[field]
	if !present || value == nil {
		if required {
			return "", "required", nil
		}
		return "", "", nil
	}
	s, ok := value.(string)
	if !ok {
		return "", "string", nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			return "", "required", nil
		}
		return "", "", nil
	}
	if err := validate.Var(s, "max="+strconv.Itoa(max)); err != nil {
		return "", "max", map[string]string{"max": strconv.Itoa(max)}
	}
	return s, "", nil
}

// checkDatetime accepts absent values; present values must parse and lie
// strictly after now.
func (v *Validator) checkDatetime(value any) (time.Time, string) {
	var t time.Time
	switch val := value.(type) {
	case nil:
		return time.Time{}, ""
	case time.Time:
		t = val
	case string:
		if strings.TrimSpace(val) == "" {
			return time.Time{}, ""
		}
		parsed, err := ParseDatetime(val, v.loc)
		if err != nil {
			return time.Time{}, "date"
		}
		t = parsed
	default:
		return time.Time{}, "date"
	}
	if !t.After(v.now()) {
		return time.Time{}, "after_now"
	}
	return t, ""
}

func (v *Validator) checkReason(ctx context.Context, value any) (uint, string, error) {
	if value == nil {
		return 0, "required", nil
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return 0, "required", nil
	}
	id, err := parseReasonID(value)
	if err != nil {
		return 0, "integer", nil
	}
	reason, err := v.reasons.FindActiveContactReason(ctx, id)
	if errors.Is(err, models.ErrReasonUnavailable) {
		return 0, "exists", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("look up contact reason %d: %w", id, err)
	}
	if reason == nil || !reason.IsActive {
		return 0, "exists", nil
	}
	return id, "", nil
}

// deliverable rejects addresses whose domain cannot receive mail: IP
// literals, single-label hosts and, when enabled, domains without MX or A records.
func (v *Validator) deliverable(ctx context.Context, email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	if strings.HasPrefix(domain, "[") || net.ParseIP(domain) != nil {
		return false
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	if !v.checkMX {
		return true
	}

	lookupCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if mx, err := v.lookupMX(lookupCtx, domain); err == nil && len(mx) > 0 {
		return true
	}
	addrs, err := net.DefaultResolver.LookupHost(lookupCtx, domain)
	return err == nil && len(addrs) > 0
}

func (v *Validator) message(locale, field, rule string, params map[string]string) string {
	if v.translator == nil {
		return rule
	}
	p := map[string]string{"attribute": v.translator.Translate(locale, "attributes."+field, nil)}
	for k, val := range params {
		p[k] = val
	}
	return v.translator.Translate(locale, "validation."+rule, p)
}

func isEmailSyntax(s string) bool {
	return validate.Var(s, "required,email") == nil
}
