// Package sentiment scores news headlines and buckets them into three labels.
package sentiment

import (
	"sort"
	"strings"

	"github.com/jonreiter/govader"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
)

const (
	PositiveThreshold = 0.2
	NegativeThreshold = -0.2
)

// Scorer returns a compound polarity score in [-1, 1].
type Scorer interface {
	Compound(text string) float64
}

type vaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVaderScorer uses the VADER lexicon shipped with govader.
func NewVaderScorer() Scorer {
	return &vaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

func (v *vaderScorer) Compound(text string) float64 {
	return v.analyzer.PolarityScores(text).Compound
}

func Label(score float64) domain.SentimentLabel {
	switch {
	case score > PositiveThreshold:
		return domain.SentimentPositive
	case score < NegativeThreshold:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

type Analyzer struct {
	scorer Scorer
}

func NewAnalyzer(scorer Scorer) *Analyzer {
	return &Analyzer{scorer: scorer}
}

// Analyze scores "title. description" for every article, newest first.
func (a *Analyzer) Analyze(symbol string, articles []domain.NewsArticle) domain.SentimentReport {
	report := domain.SentimentReport{
		Symbol:   symbol,
		Articles: make([]domain.ScoredArticle, 0, len(articles)),
		Summary: map[domain.SentimentLabel]int{
			domain.SentimentPositive: 0,
			domain.SentimentNeutral:  0,
			domain.SentimentNegative: 0,
		},
	}

	for _, article := range articles {
		score := a.scorer.Compound(article.Title + ". " + strings.TrimSpace(article.Description))
		label := Label(score)

		report.Articles = append(report.Articles, domain.ScoredArticle{
			NewsArticle: article,
			Score:       score,
			Label:       label,
		})
		report.Summary[label]++
	}

	sort.SliceStable(report.Articles, func(i, j int) bool {
		return report.Articles[i].PublishedUTC.After(report.Articles[j].PublishedUTC)
	})

	return report
}
