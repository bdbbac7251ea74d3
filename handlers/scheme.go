package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"github.com/gin-gonic/gin"
)

// POST /scheme-info/update/:scheme_id
//
// Rule violations answer 422; an undecodable body answers 400.
func (h *Handler) correctScheme() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.SchemeCorrectionInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err, http.StatusBadRequest)
			return
		}

		ctx := c.Request.Context()
		schemeId := c.Param("scheme_id")
		scheme, changes, err := models.CorrectScheme(ctx, h.db(), schemeId, &input)
		if err != nil {
			respondErrorWith(c, err, http.StatusUnprocessableEntity)
			return
		}

		h.audit().Record(ctx, models.NewAuditLog(ctx, models.AuditActionUpdate, "schemes", scheme.SchemeId, changes))
		respondOK(c, "Scheme updated", scheme)
	}
}
