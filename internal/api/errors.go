package api

import (
	stderrors "errors"

	"staffing/internal/errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var statusByType = map[errors.ErrorType]int{
	errors.ErrTypeValidation:   fiber.StatusBadRequest,
	errors.ErrTypeUnauthorized: fiber.StatusForbidden,
	errors.ErrTypeNotFound:     fiber.StatusNotFound,
	errors.ErrTypeConflict:     fiber.StatusConflict,
	errors.ErrTypePrecondition: fiber.StatusUnprocessableEntity,
	errors.ErrTypeStorage:      fiber.StatusInternalServerError,
	errors.ErrTypeInternal:     fiber.StatusInternalServerError,
	errors.ErrTypeUnavailable:  fiber.StatusServiceUnavailable,
}

type errorBody struct {
	Type    errors.ErrorType `json:"type"`
	Code    errors.Code      `json:"code,omitempty"`
	Message string           `json:"message"`
}

// errorHandler renders every error returned by a handler as
// {"error": {"type", "code", "message"}}.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if stderrors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": errorBody{
				Type:    errorTypeForStatus(fe.Code),
				Message: fe.Message,
			}})
		}

		var de *errors.DomainError
		if !stderrors.As(err, &de) {
			de = errors.Internal("unexpected error", err)
		}

		status, ok := statusByType[de.Type]
		if !ok {
			status = fiber.StatusInternalServerError
		}

		body := errorBody{Type: de.Type, Code: de.Code, Message: de.Message}
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("error_type", string(de.Type)),
				zap.Error(err),
				zap.ByteString("stack", de.StackTrace()))
		}

		return c.Status(status).JSON(fiber.Map{"error": body})
	}
}

func errorTypeForStatus(status int) errors.ErrorType {
	for t, s := range statusByType {
		if s == status && t != errors.ErrTypeStorage {
			return t
		}
	}
	if status >= fiber.StatusInternalServerError {
		return errors.ErrTypeInternal
	}
	return errors.ErrTypeValidation
}
