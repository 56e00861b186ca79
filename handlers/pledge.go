package handlers

import (
	"net/http"

	"bitbucket.org/causeway/donors_backend/models"
	"github.com/gin-gonic/gin"
)

func CreatePledge() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewPledge
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		pledge, err := models.CreatePledge(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, pledge)
	}
}

func SetPledgeStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input struct {
			Status models.PledgeStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		pledge, err := models.SetPledgeStatus(c.Request.Context(), id, input.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pledge)
	}
}

func GetPledge() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		pledge, err := models.GetPledge(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pledge)
	}
}

func GetPledges() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		donorId := optionalIntQuery(c, "donor_id")
		var status *models.PledgeStatus
		if v := c.Query("status"); v != "" {
			s := models.PledgeStatus(v)
			status = &s
		}
		pledges, total, err := models.GetPledges(c.Request.Context(), donorId, status, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		listResponse(c, pledges, total)
	}
}

func DeletePledge() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		pledge, err := models.DeletePledge(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, pledge)
	}
}
