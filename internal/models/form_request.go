package models

import (
	"fmt"
	"time"
)

// FormRequest is the persisted record of one accepted contact form submission
type FormRequest struct {
	ID                uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	FullName          string         `gorm:"type:varchar(255);not null" json:"full_name"`
	Email             string         `gorm:"type:varchar(255);not null;index" json:"email"`
	ContactReasonID   uint           `gorm:"not null;index" json:"contact_reason_id"`
	ContactReason     *ContactReason `gorm:"foreignKey:ContactReasonID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"contact_reason,omitempty"`
	Phone             *string        `gorm:"type:varchar(50)" json:"phone,omitempty"`
	PreferredDatetime *time.Time     `json:"preferred_datetime,omitempty"`
	Message           *string        `gorm:"type:text" json:"message,omitempty"`
	CreatedAt         time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (FormRequest) TableName() string {
	return "form_requests"
}

// Reference is the confirmation number shown to the submitter and staff
func (fr *FormRequest) Reference() string {
	return fmt.Sprintf("KA-%06d", fr.ID)
}
