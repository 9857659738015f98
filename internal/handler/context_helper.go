package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/study-replan-api/internal/middleware"
	"github.com/noah-isme/study-replan-api/internal/models"
	appErrors "github.com/noah-isme/study-replan-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func planIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("planId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "planId must be a positive integer")
	}
	return id, nil
}
