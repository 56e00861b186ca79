package handlers

import (
	"net/http"

	"bitbucket.org/causeway/donors_backend/models"
	"github.com/gin-gonic/gin"
)

func CreateDonor() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDonor
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		donor, err := models.CreateDonor(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, donor)
	}
}

func UpdateDonor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewDonor
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		donor, err := models.UpdateDonor(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, donor)
	}
}

// GetDonor serves the cached aggregate view, not a bare row read.
func GetDonor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		donor, err := models.GetDonorAggregate(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, donor)
	}
}

func GetDonors() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		var q *string
		if v := c.Query("q"); v != "" {
			q = &v
		}
		var status *models.DonorPaymentStatus
		if v := c.Query("payment_status"); v != "" {
			s := models.DonorPaymentStatus(v)
			status = &s
		}
		donors, total, err := models.GetDonors(c.Request.Context(), q, status, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		listResponse(c, donors, total)
	}
}

func DeleteDonor() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		donor, err := models.DeleteDonor(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, donor)
	}
}
