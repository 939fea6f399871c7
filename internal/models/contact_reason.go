package models

import (
	"time"

	"gorm.io/datatypes"
)

// ReasonKey is the stable machine name of a contact reason
type ReasonKey string

// Closed set of contact reason keys
const (
	ReasonAppointment  ReasonKey = "appointment"
	ReasonQuestion     ReasonKey = "question"
	ReasonComplaint    ReasonKey = "complaint"
	ReasonEmergency    ReasonKey = "emergency"
	ReasonPrescription ReasonKey = "prescription"
	ReasonReferral     ReasonKey = "referral"
	ReasonConsultation ReasonKey = "consultation"
	ReasonOther        ReasonKey = "other"
)

// LocalizedText maps a locale code to a label
type LocalizedText map[string]string

// In returns the label for locale, falling back to fallback and then to any label
func (t LocalizedText) In(locale, fallback string) string {
	if v, ok := t[locale]; ok && v != "" {
		return v
	}
	if v, ok := t[fallback]; ok && v != "" {
		return v
	}
	for _, v := range t {
		return v
	}
	return ""
}

// ContactReason explains why a visitor contacts the practice
type ContactReason struct {
	ID        uint                              `gorm:"primaryKey;autoIncrement" json:"id"`
	Key       ReasonKey                         `gorm:"type:varchar(32);not null;uniqueIndex" json:"key"`
	Name      datatypes.JSONType[LocalizedText] `gorm:"not null" json:"name"`
	SortOrder int                               `gorm:"not null;default:0;index" json:"sort_order"`
	IsActive  bool                              `gorm:"not null;index" json:"is_active"`
	CreatedAt time.Time                         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time                         `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ContactReason) TableName() string {
	return "contact_reasons"
}

// Label returns the localized display name
func (r *ContactReason) Label(locale string) string {
	return r.Name.Data().In(locale, "de")
}

// ReasonDefinition is the seed definition of a contact reason
type ReasonDefinition struct {
	Key       ReasonKey
	Name      LocalizedText
	SortOrder int
}

// ReasonCatalog is the authoritative definition of the contact reasons.
// The contact_reasons table is seeded from it and verified against it at startup.
var ReasonCatalog = []ReasonDefinition{
	{Key: ReasonAppointment, SortOrder: 10, Name: LocalizedText{"de": "Termin", "en": "Appointment"}},
	{Key: ReasonQuestion, SortOrder: 20, Name: LocalizedText{"de": "Allgemeine Frage", "en": "General question"}},
	{Key: ReasonPrescription, SortOrder: 30, Name: LocalizedText{"de": "Rezept", "en": "Prescription"}},
	{Key: ReasonReferral, SortOrder: 40, Name: LocalizedText{"de": "Überweisung", "en": "Referral"}},
	{Key: ReasonConsultation, SortOrder: 50, Name: LocalizedText{"de": "Beratung", "en": "Consultation"}},
	{Key: ReasonComplaint, SortOrder: 60, Name: LocalizedText{"de": "Beschwerde", "en": "Complaint"}},
	{Key: ReasonEmergency, SortOrder: 70, Name: LocalizedText{"de": "Notfall", "en": "Emergency"}},
	{Key: ReasonOther, SortOrder: 80, Name: LocalizedText{"de": "Sonstiges", "en": "Other"}},
}

// IsKnownReasonKey reports whether key belongs to the closed set
func IsKnownReasonKey(key ReasonKey) bool {
	for _, def := range ReasonCatalog {
		if def.Key == key {
			return true
		}
	}
	return false
}
