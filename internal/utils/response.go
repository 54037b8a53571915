package utils

import "github.com/gofiber/fiber/v2"

// ErrorResponse is the JSON shape of every error returned by the standalone
// endpoints, mirroring the error envelope used on the relay socket.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SendJSON sends a success payload with the given status code.
func SendJSON(c *fiber.Ctx, status int, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(data)
}

// SendError sends an error envelope with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	return SendErrorDetails(c, status, message, "")
}

// SendErrorDetails sends an error envelope with supporting details.
func SendErrorDetails(c *fiber.Ctx, status int, message, details string) error {
	if message == "" {
		message = "error"
	}
	return c.Status(status).JSON(ErrorResponse{Error: message, Details: details})
}
