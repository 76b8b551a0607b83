package handler

import (
	"errors"

	"inventra-api/internal/model"
	"inventra-api/internal/repository"
	"inventra-api/internal/service"
	"inventra-api/pkg/jwt"
	"inventra-api/pkg/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

const retryAfterSeconds = "1"

var (
	badRequest = []error{
		service.ErrEmptyCart,
		service.ErrWrongPassword,
		storage.ErrTooLarge,
		storage.ErrUnsupportedType,
		storage.ErrEmptyUpload,
	}
	notFound = []error{
		service.ErrOrderNotFound,
		service.ErrProductNotFound,
		service.ErrCategoryNotFound,
		service.ErrUserNotFound,
		service.ErrRoleNotFound,
		repository.ErrNotFound,
	}
	conflict = []error{
		repository.ErrInsufficientStock,
		repository.ErrDuplicate,
		repository.ErrReferenced,
		repository.ErrStaleState,
		model.ErrOrderAlreadyCompleted,
		model.ErrOrderAlreadyCancelled,
		model.ErrCancelledNotCompletable,
		model.ErrCompletedNotCancellable,
		model.ErrInvalidTransition,
		service.ErrProductInUse,
		service.ErrEmailExists,
		service.ErrCannotDeleteSelf,
	}
	unauthorized = []error{
		service.ErrInvalidCredentials,
		service.ErrUserInactive,
		service.ErrSessionReplaced,
		jwt.ErrInvalidToken,
		jwt.ErrMissingToken,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusOf maps a service error to the HTTP status it is reported with
func statusOf(err error) int {
	var (
		vErr     *service.ValidationError
		stockErr *service.InsufficientStockError
		priceErr *service.PriceMismatchError
	)
	switch {
	case errors.As(err, &vErr), isAny(err, badRequest):
		return fiber.StatusBadRequest
	case isAny(err, unauthorized):
		return fiber.StatusUnauthorized
	case isAny(err, notFound):
		return fiber.StatusNotFound
	case errors.As(err, &stockErr), errors.As(err, &priceErr), isAny(err, conflict):
		return fiber.StatusConflict
	case errors.Is(err, repository.ErrTransient):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes {error} with the mapped status. Storage and other
// unexpected errors are logged and replaced with a generic message.
func respondError(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	msg := err.Error()
	switch status {
	case fiber.StatusServiceUnavailable:
		log.Warnf("%s %s: %v", c.Method(), c.Path(), err)
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
		msg = "Service temporarily unavailable, please retry"
	case fiber.StatusInternalServerError:
		log.Errorf("%s %s: %v", c.Method(), c.Path(), err)
		msg = "Internal server error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func badJSON(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
}

// ErrorHandler keeps framework errors and recovered panics in the {error} shape
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return respondError(c, err)
}

// Helper untuk ambil User Info dari JWT Context (set by auth middleware)
func getUserID(c *fiber.Ctx) string {
	userID, ok := c.Locals("user_id").(string)
	if !ok {
		return "system"
	}
	return userID
}

func getUserName(c *fiber.Ctx) string {
	userName, ok := c.Locals("user_name").(string)
	if !ok {
		return "Unknown"
	}
	return userName
}

func getUserEmail(c *fiber.Ctx) string {
	userEmail, _ := c.Locals("user_email").(string)
	return userEmail
}

func actorFrom(c *fiber.Ctx) service.Actor {
	return service.Actor{ID: getUserID(c), Name: getUserName(c), Email: getUserEmail(c)}
}

func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(getUserID(c))
}
