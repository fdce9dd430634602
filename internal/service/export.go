package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	exportSetKey = "export_ids"
	exportTTL    = 20 * time.Minute
)

type ExportStatus struct {
	Key      string    `json:"key"`
	Type     string    `json:"type"`
	UserID   int64     `json:"user_id"`
	Filters  any       `json:"filters"`
	Progress float64   `json:"progress"`
	FileURL  *string   `json:"file_url"`
	Created  time.Time `json:"created_at"`
}

type StatusStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SAdd(ctx context.Context, key string, members ...any) error
	SMembers(ctx context.Context, key string) ([]string, error)
}

// ExportStorage is where finished workbooks land: local disk served under
// /files, or an S3 bucket with presigned download URLs.
type ExportStorage interface {
	Save(ctx context.Context, fileName string, data []byte) (string, error)
	URL(ctx context.Context, fileName string) (string, error)
}

type ExportNotifier interface {
	NotifyExportProgress(ctx context.Context, userID int64, exportID string, progress float64, stage string) error
	NotifyExportComplete(ctx context.Context, userID int64, exportID, url, filename string) error
	NotifyExportFailed(ctx context.Context, userID int64, exportID, errMsg string) error
}

// ExportService builds xlsx exports of ledger data in the background, keeps
// per-job status in redis and pushes progress to the owning user over the
// websocket hub.
type ExportService struct {
	redis    StatusStore
	storage  ExportStorage
	ws       ExportNotifier
	debts    ExportDebtSource
	payments ExportPaymentSource
	receipts ExportReceiptSource
	journal  JournalRepository
	logger   *zap.Logger
}

func NewExportService(
	redis StatusStore,
	storage ExportStorage,
	ws ExportNotifier,
	debts ExportDebtSource,
	payments ExportPaymentSource,
	receipts ExportReceiptSource,
	journal JournalRepository,
	logger *zap.Logger,
) *ExportService {
	return &ExportService{
		redis:    redis,
		storage:  storage,
		ws:       ws,
		debts:    debts,
		payments: payments,
		receipts: receipts,
		journal:  journal,
		logger:   logger,
	}
}

func (s *ExportService) saveStatus(ctx context.Context, st *ExportStatus) {
	if s.redis == nil {
		return
	}

	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		s.logger.Warn("export status write failed", zap.String("key", st.Key), zap.Error(err))
		return
	}
	_ = s.redis.SAdd(ctx, exportSetKey, st.Key)
}

func (s *ExportService) setProgress(ctx context.Context, st *ExportStatus, progress float64, stage string) {
	st.Progress = progress
	s.saveStatus(ctx, st)
	_ = s.ws.NotifyExportProgress(ctx, st.UserID, st.Key, progress, stage)
}

func (s *ExportService) GetExports(ctx context.Context, userID int64) ([]map[string]any, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	keys, err := s.redis.SMembers(ctx, exportSetKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get export keys: %w", err)
	}

	var statuses []ExportStatus
	for _, key := range keys {
		data, err := s.redis.Get(ctx, key)
		if err != nil {
			continue
		}

		var st ExportStatus
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			continue
		}
		if st.UserID == userID {
			statuses = append(statuses, st)
		}
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Created.After(statuses[j].Created)
	})

	exports := make([]map[string]any, 0, len(statuses))
	for _, st := range statuses {
		exports = append(exports, exportView(st))
	}
	return exports, nil
}

func (s *ExportService) GetExport(ctx context.Context, exportID string, userID int64) (map[string]any, error) {
	if s.redis == nil {
		return nil, errors.New("redis client not configured")
	}

	data, err := s.redis.Get(ctx, exportID)
	if err != nil {
		return nil, errors.New("export not found")
	}

	var st ExportStatus
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to parse export status: %w", err)
	}
	if st.UserID != userID {
		return nil, errors.New("export not found")
	}

	return exportView(st), nil
}

func exportView(st ExportStatus) map[string]any {
	return map[string]any{
		"key":        st.Key,
		"type":       st.Type,
		"user_id":    st.UserID,
		"progress":   st.Progress,
		"file_url":   st.FileURL,
		"filters":    st.Filters,
		"created_at": st.Created.Format(time.RFC3339),
	}
}

// runExport drives one background job: fetch rows, build the workbook, store
// it, publish the URL. Failures mark the job failed over the websocket but
// are otherwise terminal; the status entry simply expires.
func (s *ExportService) runExport(
	ctx context.Context,
	st *ExportStatus,
	sheet string,
	headers []string,
	fetch func(ctx context.Context) ([][]any, error),
) {
	rows, err := fetch(ctx)
	if err != nil {
		s.logger.Error("export fetch failed", zap.String("key", st.Key), zap.Error(err))
		_ = s.ws.NotifyExportFailed(ctx, st.UserID, st.Key, "failed to load data")
		return
	}
	s.setProgress(ctx, st, 30, "data loaded")

	data, err := buildWorkbook(sheet, headers, rows)
	if err != nil {
		s.logger.Error("export build failed", zap.String("key", st.Key), zap.Error(err))
		_ = s.ws.NotifyExportFailed(ctx, st.UserID, st.Key, "failed to build workbook")
		return
	}
	s.setProgress(ctx, st, 70, "workbook built")

	fileName := fmt.Sprintf("%s_%s.xlsx", st.Type, time.Now().Format("20060102_150405"))
	saved, err := s.storage.Save(ctx, fileName, data)
	if err != nil {
		s.logger.Error("export save failed", zap.String("key", st.Key), zap.Error(err))
		_ = s.ws.NotifyExportFailed(ctx, st.UserID, st.Key, "failed to store file")
		return
	}

	url, err := s.storage.URL(ctx, saved)
	if err != nil {
		s.logger.Error("export url failed", zap.String("key", st.Key), zap.Error(err))
		_ = s.ws.NotifyExportFailed(ctx, st.UserID, st.Key, "failed to resolve file url")
		return
	}

	st.FileURL = &url
	s.setProgress(ctx, st, 100, "done")
	_ = s.ws.NotifyExportComplete(ctx, st.UserID, st.Key, url, fileName)
}

func buildWorkbook(sheet string, headers []string, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return nil, err
		}
	}

	for i, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
