package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/causeway/donors_backend/models"
	"bitbucket.org/causeway/donors_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/go-sql-driver/mysql"
)

// respondError maps the models error taxonomy onto HTTP statuses:
// not-found 404, precondition failures 409, validation 400, everything
// else 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, models.ErrNothingToReschedule),
		errors.Is(err, models.ErrInstallmentNotEditable),
		errors.Is(err, models.ErrPledgeNotRejected),
		errors.Is(err, models.ErrPledgeHasPlans):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(vErrs)})
			return
		}
		var sqlErr *mysql.MySQLError
		if errors.As(err, &sqlErr) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func idParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func optionalIntQuery(c *gin.Context, name string) *int {
	v := c.Query(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func pagination(c *gin.Context) (limit int, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func listResponse(c *gin.Context, items interface{}, total int64) {
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}
