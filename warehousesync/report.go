package warehousesync

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/warehouse_backend/config"
	"bitbucket.org/mmdatafocus/warehouse_backend/models"
)

const defaultReportTopic = "warehouse-sync-reports"

func reportTopic() string {
	if topic := strings.TrimSpace(os.Getenv("WAREHOUSE_SYNC_REPORT_TOPIC")); topic != "" {
		return topic
	}
	return defaultReportTopic
}

// RunReport is the JSON document published after each run for downstream
// consumers (dashboards, notification relays).
type RunReport struct {
	RunId            uint      `json:"run_id"`
	Status           string    `json:"status"`
	TriggeredBy      string    `json:"triggered_by"`
	RecordsProcessed int       `json:"records_processed"`
	RecordsFailed    int       `json:"records_failed"`
	AlertCount       int64     `json:"alert_count"`
	HighStockCount   int64     `json:"high_stock_count"`
	MissingCount     int64     `json:"missing_count"`
	UnpublishedCount int64     `json:"unpublished_count"`
	Message          string    `json:"message"`
	FinishedAt       time.Time `json:"finished_at"`
}

var highStockThreshold = int64(5)

func buildRunReport(ctx context.Context, db *gorm.DB, runId uint) (*RunReport, error) {
	var run models.SyncRun
	if err := db.WithContext(ctx).Take(&run, runId).Error; err != nil {
		return nil, fmt.Errorf("load run %d: %w", runId, err)
	}

	report := &RunReport{
		RunId:            run.ID,
		Status:           run.Status,
		TriggeredBy:      run.TriggeredBy,
		RecordsProcessed: run.RecordsProcessed,
		RecordsFailed:    run.RecordsFailed,
		Message:          run.Message,
	}
	if run.FinishedAt != nil {
		report.FinishedAt = *run.FinishedAt
	}

	err := db.WithContext(ctx).Model(&models.SyncLogEntry{}).
		Where("sync_run_id = ? AND alert = ?", runId, true).
		Count(&report.AlertCount).Error
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Model(&models.SyncLogEntry{}).
		Where("sync_run_id = ? AND quantity >= ?", runId, highStockThreshold).
		Count(&report.HighStockCount).Error
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Model(&models.MissingProduct{}).
		Where("status = ?", models.MissingStatusMissing).
		Count(&report.MissingCount).Error
	if err != nil {
		return nil, err
	}
	err = db.WithContext(ctx).Model(&models.UnpublishedProduct{}).
		Where("sync_run_id = ?", runId).
		Count(&report.UnpublishedCount).Error
	if err != nil {
		return nil, err
	}
	return report, nil
}

func publishRunReport(ctx context.Context, db *gorm.DB, runId uint) error {
	report, err := buildRunReport(ctx, db, runId)
	if err != nil {
		return err
	}
	return config.PublishJSON(ctx, reportTopic(), report)
}

// WriteRunReportExcel streams an xlsx workbook with one sheet per run
// artifact table.
func WriteRunReportExcel(ctx context.Context, db *gorm.DB, runId uint, w io.Writer) error {
	var entries []models.SyncLogEntry
	err := db.WithContext(ctx).
		Where("sync_run_id = ?", runId).
		Order("id").
		Find(&entries).Error
	if err != nil {
		return err
	}
	var unpublished []models.UnpublishedProduct
	err = db.WithContext(ctx).
		Where("sync_run_id = ?", runId).
		Order("id").
		Find(&unpublished).Error
	if err != nil {
		return err
	}
	var missing []models.MissingProduct
	err = db.WithContext(ctx).
		Where("status = ?", models.MissingStatusMissing).
		Order("id").
		Find(&missing).Error
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sync Log"
	f.SetSheetName("Sheet1", sheet)
	logHeaders := []string{"SKU", "Barcode", "External ID", "Brand", "Quantity", "Alert", "Note", "Logged At"}
	for col, header := range logHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, header)
	}
	for row, entry := range entries {
		values := []interface{}{
			entry.Sku, entry.Barcode, entry.ExternalId, entry.Brand,
			entry.Quantity.String(), entry.Alert, entry.Note,
			entry.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	unpubSheet := "Unpublished"
	f.NewSheet(unpubSheet)
	unpubHeaders := []string{"SKU", "Barcode", "External ID", "Brand", "Quantity", "Missing Fields", "Note"}
	for col, header := range unpubHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(unpubSheet, cell, header)
	}
	for row, item := range unpublished {
		values := []interface{}{
			item.Sku, item.Barcode, item.ExternalId, item.Brand,
			item.Quantity.String(), item.MissingFields, item.Note,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(unpubSheet, cell, v)
		}
	}

	missingSheet := "Missing Products"
	f.NewSheet(missingSheet)
	missingHeaders := []string{"SKU", "External ID", "Barcode", "Brand", "Quantity", "First Seen", "Last Seen"}
	for col, header := range missingHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(missingSheet, cell, header)
	}
	for row, item := range missing {
		lastSeen := ""
		if item.LastSyncAt != nil {
			lastSeen = item.LastSyncAt.Format(time.RFC3339)
		}
		values := []interface{}{
			item.Sku, item.ExternalId, item.Barcode, item.Brand,
			item.Quantity.String(), item.CreatedAt.Format(time.RFC3339), lastSeen,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(missingSheet, cell, v)
		}
	}

	return f.Write(w)
}
