package service

import (
	"context"
	"fmt"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
	"github.com/jeovahfialho/portfolio-analyzer/internal/sentiment"
)

const DefaultNewsLimit = 20

type NewsProvider interface {
	News(ctx context.Context, symbol string, limit int) ([]domain.NewsArticle, error)
}

type SentimentService struct {
	news     NewsProvider
	analyzer *sentiment.Analyzer
}

func NewSentimentService(news NewsProvider, analyzer *sentiment.Analyzer) *SentimentService {
	return &SentimentService{news: news, analyzer: analyzer}
}

func (s *SentimentService) Analyze(ctx context.Context, symbol string, limit int) (*domain.SentimentReport, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultNewsLimit
	}
	symbol = domain.NormalizeTicker(symbol)

	articles, err := s.news.News(ctx, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar notícias: %w", err)
	}

	report := s.analyzer.Analyze(symbol, articles)
	return &report, nil
}
