package api

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rev2018/placement-tracker/internal/api/middleware"
)

var errInvalidApplicationID = errors.New("invalid application id")

func userIDFromContext(c *gin.Context) (uint, bool) {
	return middleware.UserID(c)
}

func applicationIDParam(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errInvalidApplicationID
	}
	return uint(id), nil
}
