package handlers

import (
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/config"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"github.com/gin-gonic/gin"
)

func statusForKind(kind utils.ErrorKind, validationStatus int) int {
	switch kind {
	case utils.ErrorKindValidation:
		return validationStatus
	case utils.ErrorKindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {status:false, message[, error]}. Validation failures
// map to 400.
func respondError(c *gin.Context, err error) {
	respondErrorWith(c, err, http.StatusBadRequest)
}

func respondErrorWith(c *gin.Context, err error, validationStatus int) {
	kind := utils.ErrorKindOf(err)
	status := statusForKind(kind, validationStatus)

	message := "internal server error"
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}

	body := gin.H{"status": false, "message": message}
	if config.ExposeErrorDetails() {
		body["error"] = err.Error()
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

// respondBindError reports request decoding and binding-tag failures.
func respondBindError(c *gin.Context, err error, status int) {
	c.AbortWithStatusJSON(status, gin.H{
		"status":  false,
		"message": "invalid request",
		"details": utils.ProcessValidationErrors(err),
	})
}

func respondOK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, gin.H{"status": true, "message": message, "data": data})
}
