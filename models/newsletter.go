package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewsletterIssue records a published issue and how many confirmed
// subscribers it was delivered to.
type NewsletterIssue struct {
	Id          string    `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title" gorm:"not null"`
	TextContent string    `json:"text_content" gorm:"type:text;not null"`
	HtmlContent string    `json:"html_content" gorm:"type:text;not null"`
	DeliveredTo int       `json:"delivered_to" gorm:"not null"`
	PublishedAt time.Time `json:"published_at" gorm:"not null"`
}

func (issue *NewsletterIssue) BeforeCreate(tx *gorm.DB) (err error) {
	issue.Id = uuid.NewString()
	if issue.PublishedAt.IsZero() {
		issue.PublishedAt = time.Now().UTC()
	}
	return
}
