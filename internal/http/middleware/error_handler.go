package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/workhub/backend/internal/lifecycle"
	"github.com/workhub/backend/internal/logger"
	"github.com/workhub/backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно: переводит коды
// доменных ошибок в HTTP-статусы и маскирует внутренние ошибки.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() || len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			body := gin.H{"error": appErr.Message, "code": appErr.Code}
			// Частично применённый каскад безопасно повторять: шаги идемпотентны.
			var partial *lifecycle.PartialApplyError
			if errors.As(err, &partial) {
				body["retryable"] = true
				body["step"] = partial.Step
			}
			c.JSON(appErr.HTTPStatus, body)
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{"error": "внутренняя ошибка сервера"})
	}
}
