package handlers

import (
	"errors"
	"io"
	"net/http"

	"bitbucket.org/causeway/donors_backend/models"
	"bitbucket.org/causeway/donors_backend/utils"
	"github.com/gin-gonic/gin"
)

func CreatePaymentPlan() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPaymentPlan
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		plan, err := models.CreatePaymentPlan(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, plan)
	}
}

func GetPaymentPlan() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		plan, err := models.GetPaymentPlan(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func GetPaymentPlans() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		donorId := optionalIntQuery(c, "donor_id")
		var status *models.PlanStatus
		if v := c.Query("status"); v != "" {
			s := models.PlanStatus(v)
			status = &s
		}
		plans, total, err := models.GetPaymentPlans(c.Request.Context(), donorId, status, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		listResponse(c, plans, total)
	}
}

func UpdatePaymentPlan() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.UpdatePlanSchedule
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		plan, err := models.UpdatePlanScheduleFields(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func SetPlanStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input struct {
			Status models.PlanStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		plan, err := models.SetPlanStatus(c.Request.Context(), id, input.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

func DeletePaymentPlan() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		plan, err := models.DeletePaymentPlan(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

// GenerateSchedule materializes the plan's installment schedule. Repeating
// the call on a plan that already has rows is a no-op: nothing is written
// and the existing rows come back with 200.
func GenerateSchedule() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input struct {
			PaymentIds []int `json:"payment_ids"`
		}
		// an empty body means no pre-linked payments
		if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
			respondBadRequest(c, err)
			return
		}
		installments, err := models.GenerateSchedule(c.Request.Context(), id, input.PaymentIds)
		if errors.Is(err, models.ErrScheduleExists) {
			existing, err := models.GetInstallments(c.Request.Context(), id)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, existing)
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, installments)
	}
}

func ReschedulePlan() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input struct {
			AnchorDate string `json:"anchor_date" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		anchor, err := utils.ParseDateOnly(input.AnchorDate)
		if err != nil {
			respondBadRequest(c, err)
			return
		}
		installments, err := models.ReschedulePlan(c.Request.Context(), id, anchor)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, installments)
	}
}

func GetInstallments() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		installments, err := models.GetInstallments(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, installments)
	}
}

func UpdateInstallmentDueDate() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input struct {
			DueDate string `json:"due_date" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		newDate, err := utils.ParseDateOnly(input.DueDate)
		if err != nil {
			respondBadRequest(c, err)
			return
		}
		installment, err := models.UpdateInstallmentDueDate(c.Request.Context(), id, newDate)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, installment)
	}
}
