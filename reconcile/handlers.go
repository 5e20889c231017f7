package reconcile

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vendhub/vendhub_backend/config"
	"github.com/vendhub/vendhub_backend/models"
	"github.com/vendhub/vendhub_backend/utils"
)

// CreateRunHandler persists a PENDING run and triggers background
// processing. Returns the PENDING row without waiting.
func CreateRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req CreateRunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		run, err := CreateRun(c.Request.Context(), userId, &req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, run)
	}
}

// ListRunsHandler returns runs filtered by status and date range, newest
// first.
func ListRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())
		page, pageSize := pagination(c)

		query := db.Model(&models.ReconciliationRun{})
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			query = query.Where("status = ?", status)
		}
		if from, ok := parseDateQuery(c, "date_from"); ok {
			query = query.Where("date_from >= ?", from)
		}
		if to, ok := parseDateQuery(c, "date_to"); ok {
			query = query.Where("date_to <= ?", to)
		}

		var total int64
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var runs []models.ReconciliationRun
		if err := query.
			Order("created_at desc").
			Offset((page - 1) * pageSize).
			Limit(pageSize).
			Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, RunListResponse{Items: runs, Total: total, Page: page, PageSize: pageSize})
	}
}

func RunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		run, err := GetRun(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

// RunMismatchesHandler lists a run's mismatches filtered by type and
// resolution state, ordered by order_time desc. 404s when the run id is
// unknown.
func RunMismatchesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if _, err := GetRun(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		page, pageSize := pagination(c)

		query := db.Model(&models.ReconciliationMismatch{}).Where("run_id = ?", id)
		if raw := strings.TrimSpace(c.Query("type")); raw != "" {
			mismatchType, err := models.ParseMismatchType(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mismatch type"})
				return
			}
			query = query.Where("mismatch_type = ?", mismatchType)
		}
		if raw := strings.TrimSpace(c.Query("resolved")); raw != "" {
			resolved, err := strconv.ParseBool(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid resolved filter"})
				return
			}
			query = query.Where("is_resolved = ?", resolved)
		}

		var total int64
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var mismatches []models.ReconciliationMismatch
		if err := query.
			Order("order_time desc").
			Offset((page - 1) * pageSize).
			Limit(pageSize).
			Find(&mismatches).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, MismatchListResponse{Items: mismatches, Total: total, Page: page, PageSize: pageSize})
	}
}

func ResolveMismatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, ok := utils.GetUserIdFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, ok := idParam(c)
		if !ok {
			return
		}

		var req ResolveMismatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "notes are required"})
			return
		}

		mismatch, err := ResolveMismatch(c.Request.Context(), id, userId, req.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, mismatch)
	}
}

func CancelRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		run, err := CancelRun(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, run)
	}
}

func DeleteRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		if err := DeleteRun(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func pagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = config.SearchLimit
	if v := strings.TrimSpace(c.Query("page")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			page = n
		}
	}
	if v := strings.TrimSpace(c.Query("page_size")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			pageSize = n
		}
	}
	return page, pageSize
}

func parseDateQuery(c *gin.Context, key string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func respondError(c *gin.Context, err error) {
	switch {
	case utils.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case utils.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
