package handlers

import (
	"net/http"

	"bitbucket.org/causeway/donors_backend/models"
	"github.com/gin-gonic/gin"
)

func CreatePayment() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPayment
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		payment, err := models.CreatePayment(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, payment)
	}
}

func SetPaymentStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input struct {
			Status models.PaymentApprovalStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		payment, err := models.SetPaymentStatus(c.Request.Context(), id, input.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func GetPayment() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		payment, err := models.GetPayment(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}

func GetPayments() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		donorId := optionalIntQuery(c, "donor_id")
		var status *models.PaymentApprovalStatus
		if v := c.Query("status"); v != "" {
			s := models.PaymentApprovalStatus(v)
			status = &s
		}
		payments, total, err := models.GetPayments(c.Request.Context(), donorId, status, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		listResponse(c, payments, total)
	}
}

func DeletePayment() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		payment, err := models.DeletePayment(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
	}
}
