package controllers

import (
	"net/mail"
	"time"

	"newsletter-backend/database"
	"newsletter-backend/middlewares"
	"newsletter-backend/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func Register(c *fiber.Ctx) error {
	var data map[string]string
	if err := c.BodyParser(&data); err != nil {
		return err
	}

	if _, err := mail.ParseAddress(data["email"]); err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Invalid email format",
		})
	}

	var mailExist models.User
	database.DB.Where("email = ?", data["email"]).First(&mailExist)
	if mailExist.Email != "" {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "email already exists",
		})
	}

	if data["password"] != data["password_confirm"] {
		c.Status(400)
		return c.JSON(fiber.Map{
			"message": "passwords do not match",
		})
	}

	user := models.User{
		FirstName: data["first_name"],
		LastName:  data["last_name"],
		Email:     data["email"],
	}
	user.SetPassword(data["password"])
	if err := database.DB.Create(&user).Error; err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not create User",
			"error":   err.Error(),
		})
	}

	return c.JSON(user)
}

func Login(c *fiber.Ctx) error {
	var data map[string]string
	if err := c.BodyParser(&data); err != nil {
		return err
	}

	var user models.User

	if _, err := mail.ParseAddress(data["email"]); err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Invalid email format",
		})
	}

	database.DB.Where("email = ?", data["email"]).First(&user)

	if _, err := uuid.Parse(user.Id); err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Invalid Credentials",
		})
	}

	if err := user.ComparePassword(data["password"]); err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Invalid Credentials",
		})
	}

	token, err := middlewares.GenerateJWT(user.Id)
	if err != nil {
		c.Status(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"message": "Could not issue token",
		})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.Id,
			"name":  user.FirstName + " " + user.LastName,
			"email": user.Email,
		},
	})
}

func Logout(c *fiber.Ctx) error {
	cookie := fiber.Cookie{
		Name:     "jwt",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	}
	c.Cookie(&cookie)
	return c.JSON(fiber.Map{
		"message": "success",
	})
}

// Dashboard returns the authenticated admin's profile.
func Dashboard(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(string)

	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unknown user")
	}

	return c.JSON(fiber.Map{
		"user": fiber.Map{
			"id":    user.Id,
			"name":  user.FirstName + " " + user.LastName,
			"email": user.Email,
		},
	})
}

type changePasswordDTO struct {
	CurrentPassword    string `json:"current_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required,min=12,max=128"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required"`
}

// ChangePassword verifies the current password and replaces it.
func ChangePassword(c *fiber.Ctx) error {
	userID, _ := c.Locals("userID").(string)

	var dto changePasswordDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	if dto.NewPassword != dto.NewPasswordConfirm {
		return fiber.NewError(fiber.StatusBadRequest, "new passwords do not match")
	}

	db, err := database.FromCtx(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "unknown user")
	}
	if err := user.ComparePassword(dto.CurrentPassword); err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "current password is incorrect")
	}

	user.SetPassword(dto.NewPassword)
	if err := db.Model(&user).Update("password", user.Password).Error; err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "could not update password")
	}

	return c.JSON(fiber.Map{"message": "password updated"})
}
