package warehousesync

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/models"
)

var validate = validator.New()

func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		run := models.SyncRun{
			Status:      models.SyncRunStatusQueued,
			TriggeredBy: models.SyncTriggeredManual,
		}
		if err := db.WithContext(c.Request.Context()).Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if err := PublishSyncRun(c.Request.Context(), RunPayload{RunId: run.ID, TriggeredBy: run.TriggeredBy}); err != nil {
			config.LogError(config.GetLogger(), "warehousesync", "TriggerSyncHandler", "publish run", map[string]interface{}{
				"run_id": run.ID,
			}, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue sync run"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

// ScheduledTriggerHandler is the Cloud Scheduler entry point. It bypasses the
// session middleware and authenticates with a shared token instead.
func ScheduledTriggerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(os.Getenv("CRON_TOKEN"))
		if expected == "" || c.GetHeader("X-Cron-Token") != expected {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not ready"})
			return
		}

		run := models.SyncRun{
			Status:      models.SyncRunStatusQueued,
			TriggeredBy: models.SyncTriggeredSchedule,
		}
		if err := db.WithContext(c.Request.Context()).Create(&run).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if err := PublishSyncRun(c.Request.Context(), RunPayload{RunId: run.ID, TriggeredBy: run.TriggeredBy}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue sync run"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())

		resp := StatusResponse{}

		var run models.SyncRun
		err := db.Order("id desc").Take(&run).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err == nil {
			mapped := mapRunToResponse(run)
			resp.LastRun = &mapped
		}

		if err := db.Model(&models.MissingProduct{}).
			Where("status = ?", models.MissingStatusMissing).
			Count(&resp.MissingOpen).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if resp.LastRun != nil {
			if err := db.Model(&models.UnpublishedProduct{}).
				Where("sync_run_id = ?", resp.LastRun.ID).
				Count(&resp.UnpublishedCount).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if err := db.Model(&models.SyncLogEntry{}).
				Where("sync_run_id = ? AND alert = ?", resp.LastRun.ID, true).
				Count(&resp.AlertCount).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if err := db.Model(&models.SyncLogEntry{}).
				Where("sync_run_id = ? AND quantity >= ?", resp.LastRun.ID, highStockThreshold).
				Count(&resp.HighStockCount).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var runs []models.SyncRun
		if err := db.Order("id desc").Limit(limit).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var run models.SyncRun
		if err := db.Take(&run, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var entries []models.SyncLogEntry
		if err := db.Where("sync_run_id = ?", run.ID).Order("id").Find(&entries).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := SyncRunDetailResponse{SyncRunResponse: mapRunToResponse(run)}
		resp.Entries = make([]SyncLogEntryResponse, 0, len(entries))
		for _, entry := range entries {
			resp.Entries = append(resp.Entries, SyncLogEntryResponse{
				ID:         entry.ID,
				Sku:        entry.Sku,
				Barcode:    entry.Barcode,
				ExternalId: entry.ExternalId,
				Brand:      entry.Brand,
				Quantity:   entry.Quantity.String(),
				Alert:      entry.Alert,
				Note:       entry.Note,
			})
		}
		c.JSON(http.StatusOK, resp)
	}
}

func ReportExcelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB()
		var run models.SyncRun
		if err := db.WithContext(c.Request.Context()).Take(&run, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		filename := fmt.Sprintf("warehouse-sync-run-%d.xlsx", run.ID)
		c.Header("Content-Disposition", "attachment; filename="+filename)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err := WriteRunReportExcel(c.Request.Context(), db, run.ID, c.Writer); err != nil {
			config.LogError(config.GetLogger(), "warehousesync", "ReportExcelHandler", "write workbook", map[string]interface{}{
				"run_id": run.ID,
			}, err)
		}
	}
}

func GetSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		setting, err := models.GetSyncSetting(c.Request.Context(), config.GetDB())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, setting)
	}
}

func UpdateSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateSettingsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		db := config.GetDB()
		setting, err := models.GetSyncSetting(c.Request.Context(), db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		update := map[string]interface{}{}
		if req.FilterMissingProducts != nil {
			update["filter_missing_products"] = *req.FilterMissingProducts
		}
		if req.AllowedPrefixes != nil {
			update["allowed_prefixes"] = strings.TrimSpace(*req.AllowedPrefixes)
		}
		if req.NotifyEnabled != nil {
			update["notify_enabled"] = *req.NotifyEnabled
		}
		if req.RecipientEmail != nil {
			email := strings.TrimSpace(*req.RecipientEmail)
			if email != "" {
				if err := validate.Var(email, "email"); err != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "invalid recipient email"})
					return
				}
			}
			update["recipient_email"] = email
		}
		if req.ChunkSize != nil {
			if *req.ChunkSize <= 0 || *req.ChunkSize > 1000 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "chunk_size must be between 1 and 1000"})
				return
			}
			update["chunk_size"] = *req.ChunkSize
		}
		if req.MissingRetentionHours != nil {
			if *req.MissingRetentionHours <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "missing_retention_hours must be positive"})
				return
			}
			update["missing_retention_hours"] = *req.MissingRetentionHours
		}
		if len(update) == 0 {
			c.JSON(http.StatusOK, setting)
			return
		}

		if err := db.WithContext(c.Request.Context()).Model(setting).Updates(update).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, setting)
	}
}

func MissingProductsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := strings.TrimSpace(c.Query("status"))
		if status == "" {
			status = models.MissingStatusMissing
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var missing []models.MissingProduct
		if err := db.Where("status = ?", status).Order("id desc").Limit(500).Find(&missing).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]MissingProductResponse, 0, len(missing))
		for _, item := range missing {
			items = append(items, mapMissingToResponse(item))
		}
		c.JSON(http.StatusOK, MissingProductListResponse{Items: items})
	}
}

// CreateMissingProductHandler turns an open missing record into a real
// product and marks the record created.
func CreateMissingProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid missing product id"})
			return
		}

		var req CreateMissingProductRequest
		if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var missing models.MissingProduct
		if err := db.Take(&missing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if missing.Status != models.MissingStatusMissing {
			c.JSON(http.StatusConflict, gin.H{"error": "missing product already resolved"})
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = missing.Sku
		}

		var productId int
		err = db.Transaction(func(tx *gorm.DB) error {
			product := models.Product{
				Name:        name,
				Sku:         missing.Sku,
				Barcode:     missing.Barcode,
				Brand:       missing.Brand,
				IsStockable: true,
			}
			if err := tx.Create(&product).Error; err != nil {
				return err
			}
			productId = product.ID
			return tx.Model(&missing).Updates(map[string]interface{}{
				"status": models.MissingStatusCreated,
				"note":   fmt.Sprintf("product %d created", product.ID),
			}).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"product_id": productId})
	}
}

func IgnoreMissingProductHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid missing product id"})
			return
		}

		var req IgnoreMissingProductRequest
		if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var missing models.MissingProduct
		if err := db.Take(&missing, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if missing.Status != models.MissingStatusMissing {
			c.JSON(http.StatusConflict, gin.H{"error": "missing product already resolved"})
			return
		}

		note := strings.TrimSpace(req.Note)
		if note == "" {
			note = "ignored by operator"
		}
		if err := db.Model(&missing).Updates(map[string]interface{}{
			"status": models.MissingStatusIgnored,
			"note":   note,
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// PurgeMissingHandler removes every missing-status record unconditionally.
// created/ignored records stay for audit.
func PurgeMissingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		purged, err := NewStore(db).PurgeStaleMissing(c.Request.Context(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"purged": purged})
	}
}

func mapRunToResponse(run models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:               run.ID,
		Status:           run.Status,
		TriggeredBy:      run.TriggeredBy,
		RecordsProcessed: run.RecordsProcessed,
		RecordsFailed:    run.RecordsFailed,
		MissingCreated:   run.MissingCreated,
		MissingIgnored:   run.MissingIgnored,
		SkippedByFilter:  run.SkippedByFilter,
		ErrorCount:       run.ErrorCount,
		Message:          run.Message,
		Stats:            run.StatsJSON,
		StartedAt:        formatTime(run.StartedAt),
		FinishedAt:       formatTime(run.FinishedAt),
		DurationMs:       run.DurationMs,
	}
}

func mapMissingToResponse(missing models.MissingProduct) MissingProductResponse {
	return MissingProductResponse{
		ID:         missing.ID,
		Sku:        missing.Sku,
		ExternalId: missing.ExternalId,
		Barcode:    missing.Barcode,
		Brand:      missing.Brand,
		Quantity:   missing.Quantity.String(),
		Status:     missing.Status,
		Note:       missing.Note,
		FirstSeen:  missing.CreatedAt.UTC().Format(time.RFC3339),
		LastSeen:   formatTime(missing.LastSyncAt),
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
