package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"bitbucket.org/mmdatafocus/retail_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

const postingLock = "posting"

type handlers struct {
	poster *workflow.Poster
	logger *logrus.Logger
}

// respondError answers with the AppError form of err and keeps err on the
// gin context for customErrorLogger.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(apperrors.HTTPStatus(appErr), gin.H{"error": appErr})
}

func requestContext(c *gin.Context) (appctx.RequestContext, bool) {
	rc, ok := appctx.RequestContextFrom(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return rc, ok
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, apperrors.ErrValidation("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, apperrors.ErrValidation("invalid id").WithDetail("id", c.Param("id")))
		return 0, false
	}
	return id, true
}

// dateWindow reads ?from= and ?to=, defaulting to the fiscal year.
func dateWindow(c *gin.Context, rc appctx.RequestContext) (time.Time, time.Time, bool) {
	ctx := c.Request.Context()
	fromRaw, toRaw := c.Query("from"), c.Query("to")
	var from, to time.Time
	if fromRaw == "" || toRaw == "" {
		fy, err := models.GetFiscalYear(ctx, config.GetDB(), rc.CompanyId, rc.FiscalYearId)
		if err != nil {
			respondError(c, err)
			return from, to, false
		}
		from, to = fy.StartDate, fy.EndDate
	}
	var err error
	if fromRaw != "" {
		if from, err = utils.ParseDate(fromRaw); err != nil {
			respondError(c, apperrors.ErrValidation(err.Error()).WithDetail("from", "date"))
			return from, to, false
		}
	}
	if toRaw != "" {
		if to, err = utils.ParseDate(toRaw); err != nil {
			respondError(c, apperrors.ErrValidation(err.Error()).WithDetail("to", "date"))
			return from, to, false
		}
	}
	return from, to, true
}

// posting runs fn in one database transaction under the company's posting
// lock and answers with status and its result.
func (h *handlers) posting(c *gin.Context, name string, status int, fn func(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext) (any, error)) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	ctx, span := tracer.Start(c.Request.Context(), name)
	defer span.End()

	release, err := utils.CompanyLock(ctx, rc.CompanyId, postingLock, "handlers.go", name)
	if err != nil {
		respondError(c, err)
		return
	}
	defer release()

	var result any
	err = config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := workflow.AcquireCompanyPostingLock(tx, rc.CompanyId); err != nil {
			return err
		}
		defer workflow.ReleaseCompanyPostingLock(tx, rc.CompanyId)
		var err error
		result, err = fn(ctx, tx, rc)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		respondError(c, err)
		return
	}
	c.JSON(status, result)
}

// reading runs fn against the connection without a transaction.
func (h *handlers) reading(c *gin.Context, fn func(ctx context.Context, db *gorm.DB, rc appctx.RequestContext) (any, error)) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	result, err := fn(c.Request.Context(), config.GetDB(), rc)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
