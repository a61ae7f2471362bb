package controllers

import (
	"fmt"
	"log"
	"os"

	"newsletter-backend/database"
	"newsletter-backend/middlewares"
	"newsletter-backend/models"
	"newsletter-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type subscribeDTO struct {
	Name  string `json:"name" form:"name" validate:"required,max=256"`
	Email string `json:"email" form:"email" validate:"required,email"`
}

// Subscribe stores a pending subscriber and emails a confirmation link.
func Subscribe(c *fiber.Ctx) error {
	var dto subscribeDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)
	if err := models.ValidateSubscriberName(dto.Name); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	log.Printf("adding %q <%s> as a new subscriber", dto.Name, dto.Email)

	var existing models.Subscriber
	database.DB.Where("email = ?", dto.Email).First(&existing)
	if existing.Email != "" {
		return fiber.NewError(fiber.StatusConflict, "email is already subscribed")
	}

	subscriber := models.Subscriber{
		Name:   dto.Name,
		Email:  dto.Email,
		Status: models.SubscriberPending,
	}
	if err := database.DB.Create(&subscriber).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not store subscriber")
	}

	if Mailer == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "email delivery not configured")
	}
	link := confirmationLink(subscriber.ConfirmationToken)
	err := Mailer.SendEmail(c.UserContext(), subscriber.Email,
		"Welcome!",
		fmt.Sprintf(`Welcome to our newsletter! Click <a href="%s">here</a> to confirm your subscription.`, link),
		fmt.Sprintf("Welcome to our newsletter!\nVisit %s to confirm your subscription.", link),
	)
	if err != nil {
		log.Printf("confirmation email to %s failed: %v", subscriber.Email, err)
		return fiber.NewError(fiber.StatusInternalServerError, "could not send confirmation email")
	}

	return c.JSON(fiber.Map{"message": "check your inbox to confirm the subscription"})
}

func confirmationLink(token string) string {
	base := os.Getenv("APP_BASE_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return fmt.Sprintf("%s/api/subscriptions/confirm?subscription_token=%s", base, token)
}

// ConfirmSubscription flips a pending subscriber to confirmed.
func ConfirmSubscription(c *fiber.Ctx) error {
	token := c.Query("subscription_token")
	if token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "subscription_token is required")
	}

	var subscriber models.Subscriber
	if err := database.DB.Where("confirmation_token = ?", token).First(&subscriber).Error; err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unknown subscription token")
	}

	if subscriber.Status != models.SubscriberConfirmed {
		if err := database.DB.Model(&subscriber).Update("status", models.SubscriberConfirmed).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not confirm subscription")
		}
	}

	return c.JSON(fiber.Map{"message": "subscription confirmed"})
}
