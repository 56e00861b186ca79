package handlers

import (
	"net/http"

	"bitbucket.org/causeway/donors_backend/models"
	"bitbucket.org/causeway/donors_backend/models/reports"
	"github.com/gin-gonic/gin"
)

func ExportPlanSchedule() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=plan-schedule.xlsx")
		if err := reports.ExportPlanScheduleExcel(c.Request.Context(), id, c.Writer); err != nil {
			respondError(c, err)
			return
		}
	}
}

func GetCollectionsReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := reports.GetCollectionsByDonorReport(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

func GetOverdueReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		records, err := reports.GetOverdueInstallmentsReport(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, records)
	}
}

// RunDriftChecks is the admin trigger for the nightly drift scan.
func RunDriftChecks() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid, err := models.RunDriftChecks(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"correlation_id": cid})
	}
}

func GetDriftReports() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		records, total, err := models.GetDriftReports(c.Request.Context(), c.Query("correlation_id"), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		listResponse(c, records, total)
	}
}
