package handlers

import (
	"net/http"
	"strconv"

	"bitbucket.org/causeway/donors_backend/models"
	"github.com/gin-gonic/gin"
)

func CreateCallSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewCallSession
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		session, err := models.CreateCallSession(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, session)
	}
}

func UpdateCallSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.UpdateCallSession
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, err)
			return
		}
		session, err := models.UpdateCallSessionFields(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func GetCallSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		session, err := models.GetCallSession(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

func GetCallSessions() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pagination(c)
		donorId := optionalIntQuery(c, "donor_id")
		sessions, total, err := models.GetCallSessions(c.Request.Context(), donorId, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		listResponse(c, sessions, total)
	}
}

// DeleteCallSession takes delete_plan=true to cascade into the plan-deletion
// protocol; the default unlinks the plan and leaves it standing.
func DeleteCallSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		deletePlan, _ := strconv.ParseBool(c.DefaultQuery("delete_plan", "false"))
		session, err := models.DeleteCallSession(c.Request.Context(), id, deletePlan)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}
