package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SubscriberPending   = "pending_confirmation"
	SubscriberConfirmed = "confirmed"
)

type Subscriber struct {
	Id                string    `json:"id" gorm:"primaryKey"`
	Email             string    `json:"email" gorm:"unique;not null"`
	Name              string    `json:"name" gorm:"not null"`
	Status            string    `json:"status" gorm:"not null;default:'pending_confirmation'"`
	ConfirmationToken string    `json:"-" gorm:"uniqueIndex;not null"`
	SubscribedAt      time.Time `json:"subscribed_at" gorm:"not null"`
}

func (s *Subscriber) BeforeCreate(tx *gorm.DB) (err error) {
	s.Id = uuid.NewString()
	if s.ConfirmationToken == "" {
		s.ConfirmationToken = uuid.NewString()
	}
	if s.SubscribedAt.IsZero() {
		s.SubscribedAt = time.Now().UTC()
	}
	return
}

// forbidden in subscriber names; these carry injection risk when echoed
// into emails or admin pages.
const forbiddenNameCharacters = `/()"<>\{}`

// ValidateSubscriberName enforces the subscriber-name rules: non-empty after
// trimming, at most 256 characters, no forbidden characters.
func ValidateSubscriberName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("subscriber name must not be empty")
	}
	if utf8.RuneCountInString(name) > 256 {
		return fmt.Errorf("subscriber name must not exceed 256 characters")
	}
	if strings.ContainsAny(name, forbiddenNameCharacters) {
		return fmt.Errorf("subscriber name contains a forbidden character")
	}
	return nil
}
