package contact

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"praxis-website/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type stubReasons struct {
	reasons map[uint]*models.ContactReason
	err     error
}

func (s *stubReasons) FindActiveContactReason(_ context.Context, id uint) (*models.ContactReason, error) {
	if s.err != nil {
		return nil, s.err
	}
	r, ok := s.reasons[id]
	if !ok || !r.IsActive {
		return nil, models.ErrReasonUnavailable
	}
	return r, nil
}

func newStubReasons() *stubReasons {
	return &stubReasons{reasons: map[uint]*models.ContactReason{
		1: {ID: 1, Key: models.ReasonAppointment, IsActive: true,
			Name: datatypes.NewJSONType(models.LocalizedText{"de": "Termin", "en": "Appointment"})},
		2: {ID: 2, Key: models.ReasonComplaint, IsActive: false,
			Name: datatypes.NewJSONType(models.LocalizedText{"de": "Beschwerde", "en": "Complaint"})},
	}}
}

func validFields() map[string]any {
	return map[string]any{
		FieldFullName:        "  Anna Beispiel ",
		FieldEmail:           "anna@example.com",
		FieldContactReasonID: uint(1),
	}
}

func TestFromValidated_OptionalFieldsAbsentWhenBlank(t *testing.T) {
	tests := []struct {
		name       string
		phone      any
		message    any
		wantPhone  bool
		wantMsg    bool
		phoneValue string
	}{
		{name: "missing", phone: nil, message: nil},
		{name: "empty", phone: "", message: ""},
		{name: "whitespace", phone: "   ", message: "\n\t "},
		{name: "present", phone: " 030 1234 ", message: "Bitte um Rückruf", wantPhone: true, wantMsg: true, phoneValue: "030 1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			if tt.phone != nil {
				fields[FieldPhone] = tt.phone
			}
			if tt.message != nil {
				fields[FieldMessage] = tt.message
			}

			form, err := FromValidated(context.Background(), fields, newStubReasons())
			require.NoError(t, err)
			assert.Equal(t, "Anna Beispiel", form.FullName())
			assert.Equal(t, tt.wantPhone, form.HasPhone())
			assert.Equal(t, tt.wantMsg, form.HasMessage())
			assert.Equal(t, tt.phoneValue, form.Phone())
			assert.False(t, form.HasPreferredDatetime())

			record := form.ToFormRequest()
			if tt.wantPhone {
				require.NotNil(t, record.Phone)
				assert.Equal(t, tt.phoneValue, *record.Phone)
			} else {
				assert.Nil(t, record.Phone)
			}
			if !tt.wantMsg {
				assert.Nil(t, record.Message)
			}
		})
	}
}

func TestFromValidated_InactiveReasonRejected(t *testing.T) {
	fields := validFields()
	fields[FieldContactReasonID] = uint(2)

	form, err := FromValidated(context.Background(), fields, newStubReasons())
	assert.Nil(t, form)

	var cerr *ConstructionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, FieldContactReasonID, cerr.Field)
	assert.ErrorIs(t, err, ErrInactiveReason)
}

func TestFromValidated_UnknownReasonRejected(t *testing.T) {
	fields := validFields()
	fields[FieldContactReasonID] = "99"

	_, err := FromValidated(context.Background(), fields, newStubReasons())
	assert.ErrorIs(t, err, ErrInactiveReason)
}

func TestFromValidated_LookupFailureIsNotConstructionError(t *testing.T) {
	reasons := newStubReasons()
	reasons.err = errors.New("database is locked")

	_, err := FromValidated(context.Background(), validFields(), reasons)
	require.Error(t, err)
	var cerr *ConstructionError
	assert.False(t, errors.As(err, &cerr))
}

func TestFromValidated_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
		want   error
	}{
		{"missing name", func(m map[string]any) { delete(m, FieldFullName) }, FieldFullName, ErrMissingField},
		{"blank name", func(m map[string]any) { m[FieldFullName] = "   " }, FieldFullName, ErrMissingField},
		{"name not a string", func(m map[string]any) { m[FieldFullName] = 42 }, FieldFullName, ErrMalformedField},
		{"missing email", func(m map[string]any) { delete(m, FieldEmail) }, FieldEmail, ErrMissingField},
		{"bad email", func(m map[string]any) { m[FieldEmail] = "anna" }, FieldEmail, ErrMalformedField},
		{"missing reason", func(m map[string]any) { delete(m, FieldContactReasonID) }, FieldContactReasonID, ErrMissingField},
		{"reason not numeric", func(m map[string]any) { m[FieldContactReasonID] = "termin" }, FieldContactReasonID, ErrMalformedField},
		{"reason fraction", func(m map[string]any) { m[FieldContactReasonID] = 1.5 }, FieldContactReasonID, ErrMalformedField},
		{"unparsable datetime", func(m map[string]any) { m[FieldPreferredDatetime] = "next tuesday" }, FieldPreferredDatetime, ErrInvalidDatetime},
		{"datetime wrong type", func(m map[string]any) { m[FieldPreferredDatetime] = 12 }, FieldPreferredDatetime, ErrMalformedField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			tt.mutate(fields)

			_, err := FromValidated(context.Background(), fields, newStubReasons())
			var cerr *ConstructionError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, tt.field, cerr.Field)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFromValidated_DatetimeForms(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	fields := validFields()
	fields[FieldPreferredDatetime] = "2030-05-06 09:30"
	fields[FieldContactReasonID] = float64(1)

	form, err := FromValidated(context.Background(), fields, newStubReasons(), InLocation(berlin))
	require.NoError(t, err)
	require.True(t, form.HasPreferredDatetime())
	assert.Equal(t, time.Date(2030, 5, 6, 7, 30, 0, 0, time.UTC), form.PreferredDatetime().UTC())

	record := form.ToFormRequest()
	require.NotNil(t, record.PreferredDatetime)
	assert.Equal(t, time.UTC, record.PreferredDatetime.Location())
	assert.Equal(t, uint(1), record.ContactReasonID)
}

func TestParseReasonID(t *testing.T) {
	for _, in := range []any{uint(3), 3, int64(3), float64(3), "3", " 3 "} {
		id, err := parseReasonID(in)
		require.NoError(t, err, "%#v", in)
		assert.Equal(t, uint(3), id)
	}
	for _, in := range []any{0, -1, "0", "x", 2.5, true} {
		_, err := parseReasonID(in)
		assert.Error(t, err, "%#v", in)
	}
}
