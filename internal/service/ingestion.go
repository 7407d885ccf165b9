package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeovahfialho/portfolio-analyzer/internal/ingestion"
	"github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
)

type IngestionService struct {
	parser  *ingestion.Parser
	loader  ingestion.TradeLoader
	workers int
}

func NewIngestionService(parser *ingestion.Parser, loader ingestion.TradeLoader, workers int) *IngestionService {
	return &IngestionService{
		parser:  parser,
		loader:  loader,
		workers: workers,
	}
}

type ProcessFileResult struct {
	FilePath     string   `json:"file_path"`
	RecordsCount int64    `json:"records_count"`
	RowErrors    []string `json:"row_errors,omitempty"`
	Error        string   `json:"error,omitempty"`
}

type LoadReport struct {
	JobID    string              `json:"job_id"`
	Files    []ProcessFileResult `json:"files"`
	Total    int64               `json:"total"`
	Failed   int                 `json:"failed"`
	Duration string              `json:"duration"`
}

// ProcessFiles parses and loads CSV trade exports under jobID, generating one when empty.
// A failing file does not stop the others.
func (s *IngestionService) ProcessFiles(ctx context.Context, jobID string, paths []string) *LoadReport {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	start := time.Now()
	report := &LoadReport{JobID: jobID}
	log := logger.WithContext(ctx).With(zap.String("job_id", report.JobID))

	log.Info("processando arquivos", zap.Strings("files", paths))

	pool := ingestion.NewWorkerPool(s.workers, s.parser, s.loader)
	for _, r := range pool.ProcessFiles(ctx, paths) {
		file := ProcessFileResult{
			FilePath:     r.FilePath,
			RecordsCount: r.RecordsCount,
		}
		for _, rowErr := range r.RowErrors {
			file.RowErrors = append(file.RowErrors, rowErr.Error())
		}
		if r.Error != nil {
			file.Error = r.Error.Error()
			report.Failed++
		}
		report.Total += r.RecordsCount
		report.Files = append(report.Files, file)
	}

	report.Duration = time.Since(start).String()
	log.Info("carga concluída",
		zap.Int64("records", report.Total),
		zap.Int("failed", report.Failed),
		zap.String("duration", report.Duration))

	return report
}
