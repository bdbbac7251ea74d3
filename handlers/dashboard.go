package handlers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models/reports"
	"github.com/gin-gonic/gin"
)

// GET /financial-DB-MillionPlus, /financial-DB-NonMillionPlus
func (h *Handler) cityTypeDashboard(cityType models.CityType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter reports.CityTypeDashboardFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			respondBindError(c, err, http.StatusBadRequest)
			return
		}

		rows, err := reports.GetCityTypeDashboard(c.Request.Context(), h.db(), cityType, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "Dashboard data fetched", rows)
	}
}
