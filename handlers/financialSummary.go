package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/ulb_finance_backend/config"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/models/reports"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/utils"
	"bitbucket.org/mmdatafocus/ulb_finance_backend/workflow"
	"github.com/gin-gonic/gin"
)

// GET /financial-summary
//
// Any subset of filters is accepted. The response data is the freshly
// computed aggregation; reconciliation reports which summaries were written.
func (h *Handler) getFinancialSummary() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter reports.FinancialSummaryFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			respondBindError(c, err, http.StatusBadRequest)
			return
		}

		ctx := c.Request.Context()
		rows, result, err := workflow.RefreshFinancialSummaries(ctx, h.db(), h.logger, filter)
		if err != nil {
			respondError(c, err)
			return
		}

		message := "Financial summary computed"
		if batchErr := result.Err(); batchErr != nil {
			config.LogError(h.logger, "financialSummary.go", "getFinancialSummary", "reconcile financial summary", filter, batchErr)
			message = fmt.Sprintf("Financial summary computed; %d rows failed to reconcile", len(result.Failed))
		}
		if len(result.Inserted)+len(result.Updated) > 0 {
			h.audit().Record(ctx, models.NewAuditLog(ctx, models.AuditActionReconcile, "financial_summaries", "", gin.H{
				"filter":   filter,
				"inserted": result.Inserted,
				"updated":  result.Updated,
				"failed":   len(result.Failed),
			}))
		}

		c.JSON(http.StatusOK, gin.H{
			"status":         true,
			"message":        message,
			"data":           rows,
			"reconciliation": result,
		})
	}
}

// GET /financial-summary/export
//
// Read-only: the workbook is built from the aggregation without reconciling.
// archive=true also stores the workbook in GCS_BUCKET.
func (h *Handler) exportFinancialSummary() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter reports.FinancialSummaryFilter
		if err := c.ShouldBindQuery(&filter); err != nil {
			respondBindError(c, err, http.StatusBadRequest)
			return
		}
		archive, _ := strconv.ParseBool(c.DefaultQuery("archive", "false"))

		ctx := c.Request.Context()
		rows, err := reports.GetFinancialSummaryReport(ctx, h.db(), filter)
		if err != nil {
			respondError(c, err)
			return
		}

		buf, err := reports.FinancialSummaryWorkbook(reports.NormalizeRows(rows))
		if err != nil {
			respondError(c, utils.NewStorageError("failed to build workbook", err))
			return
		}

		if archive {
			objectName := utils.ExportObjectName("financial_summary", time.Now())
			uri, err := utils.UploadBytesToGCS(ctx, objectName, buf.Bytes(), utils.XlsxContentType)
			if err != nil {
				config.LogError(h.logger, "financialSummary.go", "exportFinancialSummary", "archive workbook", objectName, err)
				respondError(c, utils.NewStorageError("failed to archive workbook", err))
				return
			}
			c.Header("X-Archive-Uri", uri)
		}

		c.Header("Content-Disposition", "attachment; filename=financial_summary.xlsx")
		c.Data(http.StatusOK, utils.XlsxContentType, buf.Bytes())
	}
}

// GET /financial-summary/stored?grant_type=
func (h *Handler) listStoredFinancialSummaries() gin.HandlerFunc {
	return func(c *gin.Context) {
		var grantType *string
		if v, ok := c.GetQuery("grant_type"); ok && v != "" {
			if _, valid := models.ParseGrantType(v); !valid {
				respondError(c, utils.NewValidationError("invalid grant_type %q", v))
				return
			}
			grantType = &v
		}

		summaries, err := models.ListFinancialSummaries(c.Request.Context(), h.db(), grantType)
		if err != nil {
			respondError(c, err)
			return
		}
		respondOK(c, "Financial summaries fetched", summaries)
	}
}

// POST /financial-summary/update
func (h *Handler) updateFinancialSummaryFields() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.FinancialSummaryFieldsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err, http.StatusBadRequest)
			return
		}

		ctx := c.Request.Context()
		summary, changes, err := models.UpdateFinancialSummaryFields(ctx, h.db(), &input)
		if err != nil {
			respondError(c, err)
			return
		}

		h.audit().Record(ctx, models.NewAuditLog(ctx, models.AuditActionUpdate, "financial_summaries", strconv.Itoa(summary.UlbId), changes))
		respondOK(c, "Financial summary updated", summary)
	}
}
