package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeConfigError     = "CONFIG_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeServiceError    = "SERVICE_ERROR"
	CodeAIError         = "AI_ERROR"
	CodeParseError      = "PARSE_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details any) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func ValidationError(c *fiber.Ctx, message string, details any) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

// ConfigError reports a backend or storage that cannot be used as configured.
func ConfigError(c *fiber.Ctx, message string, details any) error {
	return Error(c, fiber.StatusServiceUnavailable, CodeConfigError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusConflict, CodeConflict, message, nil)
}

func RateLimited(c *fiber.Ctx, message string) error {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, message, nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func AIError(c *fiber.Ctx, message string, details any) error {
	return Error(c, fiber.StatusBadGateway, CodeAIError, message, details)
}

// ParseError reports a model reply that could not be turned into lyrics.
func ParseError(c *fiber.Ctx, message string, details any) error {
	return Error(c, fiber.StatusBadGateway, CodeParseError, message, details)
}

func OK(c *fiber.Ctx, data any) error {
	return c.JSON(data)
}

func Accepted(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
