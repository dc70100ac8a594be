package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vnkhanh/coderoom-server/access"
	"github.com/vnkhanh/coderoom-server/middleware"
)

func respondError(c *gin.Context, err error) {
	middleware.AbortWithError(c, err)
}

func parseID(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, access.ErrInvalidInput
	}
	return uint(id), nil
}
