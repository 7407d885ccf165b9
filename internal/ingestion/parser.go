package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/portfolio-analyzer/internal/domain"
)

// Columns of the trade CSV export, in order. The first row is always a header.
var Columns = []string{"ticker", "company", "date", "shares", "cost_share"}

type Parser struct {
	batchSize int
	workers   int
}

func NewParser(batchSize, workers int) *Parser {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if workers <= 0 {
		workers = 1
	}
	return &Parser{
		batchSize: batchSize,
		workers:   workers,
	}
}

type ParseResult struct {
	Trades []domain.TradeRecord
	Errors []error
}

type line struct {
	number int
	record []string
}

type parsedTrade struct {
	number int
	trade  domain.TradeRecord
}

type batch struct {
	trades []parsedTrade
	errors []error
}

// ParseFile parses rows concurrently and returns the trades in file order.
// Rows that fail to parse are reported in Errors and skipped.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) (*ParseResult, error) {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = ';'
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1

	if _, err := csvReader.Read(); err != nil {
		if err == io.EOF {
			return &ParseResult{}, nil
		}
		return nil, fmt.Errorf("erro ao ler cabeçalho: %w", err)
	}

	jobs := make(chan line, p.workers*2)
	results := make(chan *batch, p.workers)
	readErrs := make(chan error, 1)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, jobs, results, &wg)
	}

	go func() {
		defer close(jobs)

		var errs []error
		defer func() {
			readErrs <- errors.Join(errs...)
		}()

		number := 1
		for {
			record, err := csvReader.Read()
			number++
			if err == io.EOF {
				return
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("linha %d: %w", number, err))
				continue
			}

			select {
			case <-ctx.Done():
				return
			case jobs <- line{number: number, record: record}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var parsed []parsedTrade
	final := &ParseResult{}

	for result := range results {
		parsed = append(parsed, result.trades...)
		final.Errors = append(final.Errors, result.errors...)
	}
	if err := <-readErrs; err != nil {
		final.Errors = append(final.Errors, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].number < parsed[j].number })

	final.Trades = make([]domain.TradeRecord, len(parsed))
	for i, pt := range parsed {
		final.Trades[i] = pt.trade
	}

	return final, nil
}

func (p *Parser) worker(ctx context.Context, jobs <-chan line, results chan<- *batch, wg *sync.WaitGroup) {
	defer wg.Done()

	current := &batch{trades: make([]parsedTrade, 0, p.batchSize)}

	flush := func() {
		if len(current.trades) > 0 || len(current.errors) > 0 {
			results <- current
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case l, ok := <-jobs:
			if !ok {
				flush()
				return
			}

			trade, err := ParseRecord(l.record)
			if err != nil {
				current.errors = append(current.errors, fmt.Errorf("linha %d: %w", l.number, err))
				continue
			}

			current.trades = append(current.trades, parsedTrade{number: l.number, trade: trade})

			if len(current.trades) >= p.batchSize {
				results <- current
				current = &batch{trades: make([]parsedTrade, 0, p.batchSize)}
			}
		}
	}
}

// ParseRecord converts one CSV row. Numbers accept a decimal comma.
func ParseRecord(record []string) (domain.TradeRecord, error) {
	if len(record) < len(Columns) {
		return domain.TradeRecord{}, fmt.Errorf("registro inválido: %v", record)
	}

	ticker := domain.NormalizeTicker(record[0])
	if ticker == "" {
		return domain.TradeRecord{}, errors.New("ticker vazio")
	}

	date, err := domain.ParseDate(record[2])
	if err != nil {
		return domain.TradeRecord{}, err
	}

	shares, err := parseNumber(record[3])
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("quantidade inválida: %w", err)
	}

	cost, err := parseNumber(record[4])
	if err != nil {
		return domain.TradeRecord{}, fmt.Errorf("preço inválido: %w", err)
	}

	return domain.TradeRecord{
		Ticker:    ticker,
		Company:   strings.TrimSpace(record[1]),
		Date:      date,
		Shares:    shares,
		CostShare: cost,
	}, nil
}

func parseNumber(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.Replace(strings.TrimSpace(s), ",", ".", 1))
}
