package api

import (
	"encoding/json"
	"time"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/internal/scheduler"
	"github.com/jeovahfialho/portfolio-analyzer/internal/service"
	"github.com/jeovahfialho/portfolio-analyzer/internal/storage/postgres"
)

type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

type ServiceHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      int       `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Count int `json:"count"`
}

func newList[T any](data []T) ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return ListResponse[T]{Data: data, Count: len(data)}
}

type ScenarioResponse struct {
	Scenario domain.DCFScenario `json:"scenario"`
	Result   *domain.DCFResult  `json:"result,omitempty"`
	Warning  string             `json:"warning,omitempty"`
}

type StatementResponse struct {
	Symbol string      `json:"symbol"`
	Kind   string      `json:"kind"`
	Data   json.RawMessage `json:"data"`
}

type SystemStatsResponse struct {
	Database  *postgres.PoolStats  `json:"database,omitempty"`
	Tables    *postgres.TableStats `json:"tables,omitempty"`
	Scheduler *scheduler.RunStats  `json:"scheduler,omitempty"`
	API       APIStats             `json:"api"`
}

type APIStats struct {
	ActiveGoroutines int    `json:"active_goroutines"`
	MemoryUsed       string `json:"memory_used"`
	Uptime           string `json:"uptime"`
}

type LoadDataRequest struct {
	Files []string `json:"files"`
	Async bool     `json:"async"`
}

type LoadDataResponse struct {
	JobID   string      `json:"job_id,omitempty"`
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Report  *service.LoadReport `json:"report,omitempty"`
}
