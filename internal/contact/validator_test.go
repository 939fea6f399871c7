package contact

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"praxis-website/internal/i18n"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newTestValidator(t *testing.T, opts ...ValidatorOption) *Validator {
	t.Helper()
	tr, err := i18n.New("de")
	require.NoError(t, err)
	opts = append([]ValidatorOption{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewValidator(newStubReasons(), tr, opts...)
}

func TestValidate_ValidInputIsNormalized(t *testing.T) {
	v := newTestValidator(t)

	out, err := v.Validate(context.Background(), "de", map[string]any{
		FieldFullName:          " Anna Beispiel ",
		FieldEmail:             "anna@example.com",
		FieldPhone:             "   ",
		FieldMessage:           " Hallo ",
		FieldPreferredDatetime: "2026-03-09T10:00:00Z",
		FieldContactReasonID:   "1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Anna Beispiel", out[FieldFullName])
	assert.Equal(t, "Hallo", out[FieldMessage])
	assert.NotContains(t, out, FieldPhone)
	assert.Equal(t, uint(1), out[FieldContactReasonID])
	assert.Equal(t, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), out[FieldPreferredDatetime].(time.Time).UTC())
}

func TestValidate_ReportsEveryFailingField(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.Validate(context.Background(), "en", map[string]any{
		FieldPhone: strings.Repeat("1", MaxPhoneLength+1),
	})
	var verrs ValidationErrors
	require.True(t, errors.As(err, &verrs))

	assert.True(t, verrs.Has(FieldFullName, "required"))
	assert.True(t, verrs.Has(FieldEmail, "required"))
	assert.True(t, verrs.Has(FieldPhone, "max"))
	assert.True(t, verrs.Has(FieldContactReasonID, "required"))
	assert.Len(t, verrs, 4)

	byField := verrs.ByField()
	assert.Equal(t, []string{"The name field is required."}, byField[FieldFullName])
	assert.Equal(t, []string{"The phone number may not be longer than 50 characters."}, byField[FieldPhone])
}

func TestValidate_PreferredDatetimeBoundary(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name  string
		value any
		rule  string
	}{
		{"past", fixedNow.Add(-time.Minute), "after_now"},
		{"exactly now", fixedNow, "after_now"},
		{"one second ahead", fixedNow.Add(time.Second), ""},
		{"string in the past", "2026-03-01 09:00", "after_now"},
		{"string next week", "2026-03-09T09:00", ""},
		{"garbage", "morgen früh", "date"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), "de", map[string]any{
				FieldFullName:          "Anna",
				FieldEmail:             "anna@example.com",
				FieldContactReasonID:   1,
				FieldPreferredDatetime: tt.value,
			})
			if tt.rule == "" {
				assert.NoError(t, err)
				return
			}
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.True(t, verrs.Has(FieldPreferredDatetime, tt.rule), "got %v", verrs)
		})
	}
}

func TestValidate_Email(t *testing.T) {
	v := newTestValidator(t)

	for _, email := range []string{"anna", "anna@", "anna@example", "anna@localhost", "anna@127.0.0.1", "anna@example.c0m"} {
		_, err := v.Validate(context.Background(), "de", map[string]any{
			FieldFullName:        "Anna",
			FieldEmail:           email,
			FieldContactReasonID: 1,
		})
		var verrs ValidationErrors
		require.True(t, errors.As(err, &verrs), email)
		assert.True(t, verrs.Has(FieldEmail, "email"), email)
	}
}

func TestValidate_EmailMXCheck(t *testing.T) {
	v := newTestValidator(t, WithMXCheck(true))
	v.lookupMX = func(_ context.Context, host string) ([]*net.MX, error) {
		if host == "praxis-beispiel.de" {
			return []*net.MX{{Host: "mx.praxis-beispiel.de.", Pref: 10}}, nil
		}
		return nil, errors.New("no such host")
	}

	_, err := v.Validate(context.Background(), "de", map[string]any{
		FieldFullName:        "Anna",
		FieldEmail:           "anna@praxis-beispiel.de",
		FieldContactReasonID: 1,
	})
	assert.NoError(t, err)
}

func TestValidate_ContactReason(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		value any
		rule  string
	}{
		{uint(2), "exists"},
		{99, "exists"},
		{"abc", "integer"},
		{"", "required"},
	}
	for _, tt := range tests {
		_, err := v.Validate(context.Background(), "de", map[string]any{
			FieldFullName:        "Anna",
			FieldEmail:           "anna@example.com",
			FieldContactReasonID: tt.value,
		})
		var verrs ValidationErrors
		require.True(t, errors.As(err, &verrs), "%#v", tt.value)
		assert.True(t, verrs.Has(FieldContactReasonID, tt.rule), "%#v: %v", tt.value, verrs)
	}
}

func TestValidate_LookupFailure(t *testing.T) {
	reasons := newStubReasons()
	reasons.err = errors.New("connection refused")
	v := NewValidator(reasons, nil, WithClock(func() time.Time { return fixedNow }))

	_, err := v.Validate(context.Background(), "de", map[string]any{
		FieldFullName:        "Anna",
		FieldEmail:           "anna@example.com",
		FieldContactReasonID: 1,
	})
	require.Error(t, err)
	var verrs ValidationErrors
	assert.False(t, errors.As(err, &verrs))
}
