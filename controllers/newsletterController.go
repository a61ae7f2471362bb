package controllers

import (
	"log"
	"net/mail"

	"newsletter-backend/database"
	"newsletter-backend/middlewares"
	"newsletter-backend/models"
	"newsletter-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type publishNewsletterDTO struct {
	Title       string `json:"title" form:"title" validate:"required,max=256"`
	TextContent string `json:"text_content" form:"text_content" validate:"required"`
	HtmlContent string `json:"html_content" form:"html_content" validate:"required"`
	// Consumed by the idempotency middleware; listed here so form parsing
	// doesn't reject it.
	IdempotencyKey string `json:"idempotency_key" form:"idempotency_key"`
}

// PublishNewsletter delivers an issue to every confirmed subscriber and
// records it. Routes wrap this handler in the idempotency middleware, so a
// retried submission never sends the emails twice.
func PublishNewsletter(c *fiber.Ctx) error {
	var dto publishNewsletterDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}
	if Mailer == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "email delivery not configured")
	}

	var subscribers []models.Subscriber
	if err := db.Where("status = ?", models.SubscriberConfirmed).Find(&subscribers).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not load subscribers")
	}

	delivered, skipped := 0, 0
	for _, subscriber := range subscribers {
		if _, err := mail.ParseAddress(subscriber.Email); err != nil {
			// Stored contact details no longer validate; skip rather than
			// abort the whole issue.
			log.Printf("skipping confirmed subscriber %s: stored email is invalid", subscriber.Id)
			skipped++
			continue
		}
		if err := Mailer.SendEmail(c.UserContext(), subscriber.Email, dto.Title, dto.HtmlContent, dto.TextContent); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError,
				"failed to send newsletter issue to "+subscriber.Email)
		}
		delivered++
	}

	issue := models.NewsletterIssue{
		Title:       dto.Title,
		TextContent: dto.TextContent,
		HtmlContent: dto.HtmlContent,
		DeliveredTo: delivered,
	}
	if err := db.Create(&issue).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not record newsletter issue")
	}

	return c.JSON(fiber.Map{
		"message":   "The newsletter has been published!",
		"issue_id":  issue.Id,
		"delivered": delivered,
		"skipped":   skipped,
	})
}

// HealthCheck reports process liveness.
func HealthCheck(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}
