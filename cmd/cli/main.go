package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeovahfialho/portfolio-analyzer/internal/config"
	"github.com/jeovahfialho/portfolio-analyzer/internal/ingestion"
	"github.com/jeovahfialho/portfolio-analyzer/internal/marketdata"
	"github.com/jeovahfialho/portfolio-analyzer/internal/report"
	"github.com/jeovahfialho/portfolio-analyzer/internal/service"
	"github.com/jeovahfialho/portfolio-analyzer/internal/storage/cache"
	"github.com/jeovahfialho/portfolio-analyzer/internal/storage/jsonfile"
	"github.com/jeovahfialho/portfolio-analyzer/internal/storage/postgres"
	"github.com/jeovahfialho/portfolio-analyzer/internal/valuation"
	pkglogger "github.com/jeovahfialho/portfolio-analyzer/pkg/logger"
)

func main() {
	var verbose bool

	var rootCmd = &cobra.Command{
		Use:   "portfolio-analyzer",
		Short: "Portfolio Analyzer CLI",
		Long: `CLI para acompanhar uma carteira de ações.
Permite carregar operações, gerar o relatório da carteira e projetar valuations DCF.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				return pkglogger.Init("debug", true)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mostra logs detalhados")

	// Comando list
	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lista arquivos disponíveis para carregar",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("dir")
			return listFiles(dataDir)
		},
	}
	listCmd.Flags().StringP("dir", "d", "./data", "Diretório dos dados")

	// Comando migrate
	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Aplica as migrations do banco",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations()
		},
	}

	// Comando load
	var loadCmd = &cobra.Command{
		Use:   "load [files...]",
		Short: "Carrega arquivos CSV de operações",
		Long: `Carrega arquivos CSV (ticker;empresa;data;quantidade;preço) no banco de dados.
Aceita múltiplos arquivos e suporta wildcards (ex: data/*.csv)`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return loadFiles(args)
		},
	}

	// Comando import
	var importCmd = &cobra.Command{
		Use:   "import",
		Short: "Importa os arquivos JSON de operações para o banco",
		RunE: func(cmd *cobra.Command, args []string) error {
			trades, _ := cmd.Flags().GetString("trades")
			closed, _ := cmd.Flags().GetString("closed")
			return importJSON(trades, closed)
		},
	}
	importCmd.Flags().String("trades", "", "Arquivo de operações abertas (padrão: TRADES_FILE)")
	importCmd.Flags().String("closed", "", "Arquivo de operações encerradas (padrão: CLOSED_TRADES_FILE)")

	// Comando report
	var reportCmd = &cobra.Command{
		Use:   "report",
		Short: "Gera o relatório da carteira",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := renderOptionsFrom(cmd)
			if err != nil {
				return err
			}
			return portfolioReport(opts)
		},
	}
	addRenderFlags(reportCmd)

	// Comando positions
	var positionsCmd = &cobra.Command{
		Use:   "positions",
		Short: "Lista as posições abertas com cotação atual",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := renderOptionsFrom(cmd)
			if err != nil {
				return err
			}
			return listPositions(opts)
		},
	}
	addRenderFlags(positionsCmd)

	// Comando closed
	var closedCmd = &cobra.Command{
		Use:   "closed",
		Short: "Lista as operações encerradas",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := renderOptionsFrom(cmd)
			if err != nil {
				return err
			}
			return listClosedTrades(opts)
		},
	}
	addRenderFlags(closedCmd)

	// Comando dcf
	var dcfCmd = &cobra.Command{
		Use:   "dcf",
		Short: "Projeta o valuation por fluxo de caixa descontado",
		Long: `Projeta o valuation DCF a partir do cenário padrão.
Com --symbol a receita base vem do último demonstrativo anual da empresa.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := renderOptionsFrom(cmd)
			if err != nil {
				return err
			}
			return projectDCF(cmd, opts)
		},
	}
	defaults := valuation.DefaultScenario()
	dcfCmd.Flags().StringP("symbol", "s", "", "Ticker para buscar a receita base")
	dcfCmd.Flags().Float64("revenue", defaults.BaseRevenue, "Receita base (bilhões)")
	dcfCmd.Flags().Float64("growth", defaults.RevenueGrowthRate, "Crescimento anual da receita")
	dcfCmd.Flags().Float64("margin", defaults.NetMargin, "Margem líquida")
	dcfCmd.Flags().Float64("terminal", defaults.TerminalGrowthRate, "Crescimento na perpetuidade")
	dcfCmd.Flags().Float64("discount", defaults.DiscountRate, "Taxa de desconto")
	dcfCmd.Flags().Float64("shares", defaults.SharesOutstanding, "Ações em circulação (bilhões)")
	dcfCmd.Flags().Int("years", defaults.ProjectionYears, "Anos de projeção")
	addRenderFlags(dcfCmd)

	// Comando health
	var healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Verifica saúde do sistema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkHealth()
		},
	}

	rootCmd.AddCommand(listCmd, migrateCmd, loadCmd, importCmd, reportCmd, positionsCmd, closedCmd, dcfCmd, healthCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

type renderOptions struct {
	currency string
	width    int
	raw      bool
}

func addRenderFlags(cmd *cobra.Command) {
	cmd.Flags().String("currency", report.DefaultCurrency, "Moeda dos valores")
	cmd.Flags().Int("width", 100, "Largura do texto no terminal")
	cmd.Flags().Bool("raw", false, "Imprime o markdown sem formatação")
}

func renderOptionsFrom(cmd *cobra.Command) (renderOptions, error) {
	var opts renderOptions
	var err error
	if opts.currency, err = cmd.Flags().GetString("currency"); err != nil {
		return opts, err
	}
	if opts.width, err = cmd.Flags().GetInt("width"); err != nil {
		return opts, err
	}
	if opts.raw, err = cmd.Flags().GetBool("raw"); err != nil {
		return opts, err
	}
	return opts, nil
}

func printMarkdown(markdown string, opts renderOptions) error {
	if opts.raw {
		fmt.Print(markdown)
		return nil
	}

	out, err := report.Render(markdown, opts.width)
	if err != nil {
		return fmt.Errorf("erro ao formatar relatório: %w", err)
	}
	fmt.Print(out)
	return nil
}

// listFiles lista arquivos disponíveis
func listFiles(dataDir string) error {
	fmt.Printf("📂 Listando arquivos em %s\n\n", dataDir)

	groups := []struct {
		label   string
		pattern string
	}{
		{"CSV (load)", "*.csv"},
		{"JSON (import)", "*.json"},
		{"YAML (setores)", "*.yaml"},
	}

	found := 0
	for _, g := range groups {
		files, err := filepath.Glob(filepath.Join(dataDir, g.pattern))
		if err != nil {
			return err
		}
		if len(files) == 0 {
			continue
		}
		found += len(files)

		fmt.Printf("📊 %d arquivos %s:\n", len(files), g.label)
		var totalSize int64
		for _, file := range files {
			info, err := os.Stat(file)
			if err != nil {
				continue
			}
			totalSize += info.Size()
			fmt.Printf("  - %-30s %10s\n", filepath.Base(file), formatBytes(info.Size()))
		}
		fmt.Printf("💾 Tamanho total: %s\n\n", formatBytes(totalSize))
	}

	if found == 0 {
		fmt.Println("❌ Nenhum arquivo encontrado")
	}
	return nil
}

// formatBytes formata tamanho em bytes
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// connectDB conecta ao PostgreSQL
func connectDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.NewDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("erro ao conectar ao banco: %w", err)
	}
	return db, nil
}

// connectCache usa Redis quando disponível
func connectCache(ctx context.Context, cfg *config.Config) cache.Store {
	redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		return cache.NewMemoryCache()
	}
	return redisCache
}

func newMarketClient(cfg *config.Config, store cache.Store) *marketdata.Client {
	return marketdata.NewClient(marketdata.Config{
		FMPAPIKey:       cfg.FMPAPIKey,
		FMPBaseURL:      cfg.FMPBaseURL,
		FMPStableURL:    cfg.FMPStableURL,
		PolygonAPIKey:   cfg.PolygonAPIKey,
		PolygonBaseURL:  cfg.PolygonBaseURL,
		Timeout:         cfg.HTTPTimeout,
		Concurrency:     cfg.FetchConcurrency,
		QuoteTTL:        cfg.CacheTTL,
		FundamentalsTTL: cfg.FundamentalsCacheTTL,
	}, store)
}

// tradeSource abre a origem configurada em TRADE_SOURCE; close libera a conexão.
func tradeSource(ctx context.Context, cfg *config.Config) (service.TradeSource, func(), error) {
	if cfg.TradeSource != config.TradeSourcePostgres {
		return jsonfile.NewStore(cfg.TradesFile, cfg.ClosedTradesFile), func() {}, nil
	}

	db, err := connectDB(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewTradeRepository(db), db.Close, nil
}

func runMigrations() error {
	cfg := config.Load()

	fmt.Println("🔄 Aplicando migrations...")
	if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}

	fmt.Println("✅ Banco atualizado!")
	return nil
}

func loadFiles(files []string) error {
	ctx := context.Background()
	cfg := config.Load()

	db, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	parser := ingestion.NewParser(cfg.BatchSize, cfg.Workers)
	loader := ingestion.NewBulkLoader(db.Pool(), cfg.BatchSize)
	ingestionService := service.NewIngestionService(parser, loader, cfg.Workers)

	fmt.Printf("📥 Carregando %d arquivo(s)...\n\n", len(files))

	result := ingestionService.ProcessFiles(ctx, "", files)
	for _, f := range result.Files {
		if f.Error != "" {
			fmt.Printf("❌ Erro em %s: %s\n", f.FilePath, f.Error)
			continue
		}
		fmt.Printf("✅ Carregados %d registros de %s\n", f.RecordsCount, f.FilePath)
		for _, rowErr := range f.RowErrors {
			fmt.Printf("   ⚠️  %s\n", rowErr)
		}
	}

	fmt.Printf("\n📊 Total: %d registros carregados em %s\n", result.Total, result.Duration)

	if result.Failed > 0 {
		return fmt.Errorf("%d arquivo(s) com erro", result.Failed)
	}
	return nil
}

func importJSON(tradesPath, closedPath string) error {
	ctx := context.Background()
	cfg := config.Load()

	if tradesPath == "" {
		tradesPath = cfg.TradesFile
	}
	if closedPath == "" {
		closedPath = cfg.ClosedTradesFile
	}

	source := jsonfile.NewStore(tradesPath, closedPath)

	trades, err := source.Trades(ctx)
	if err != nil {
		return err
	}
	closed, err := source.ClosedTrades(ctx)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	db, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := postgres.NewTradeRepository(db)

	fmt.Printf("📥 Importando %d operações abertas e %d encerradas...\n", len(trades), len(closed))

	for _, t := range trades {
		if _, err := repo.InsertTrade(ctx, t); err != nil {
			return err
		}
	}

	count, err := repo.InsertClosedTrades(ctx, closed)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %d operações abertas e %d encerradas importadas\n", len(trades), count)
	return nil
}

// openPortfolio monta o serviço da carteira; close libera banco e cache.
func openPortfolio(ctx context.Context, cfg *config.Config, withQuotes bool) (*service.PortfolioService, func(), error) {
	sectors, err := config.LoadSectorMap(cfg)
	if err != nil {
		return nil, nil, err
	}

	trades, closeSource, err := tradeSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if !withQuotes {
		return service.NewPortfolioService(trades, nil, sectors), closeSource, nil
	}

	store := connectCache(ctx, cfg)
	closeAll := func() {
		store.Close()
		closeSource()
	}
	return service.NewPortfolioService(trades, newMarketClient(cfg, store), sectors), closeAll, nil
}

func portfolioReport(opts renderOptions) error {
	ctx := context.Background()
	cfg := config.Load()

	portfolioService, closeAll, err := openPortfolio(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer closeAll()

	result, err := portfolioService.Report(ctx)
	if err != nil {
		return err
	}
	closed, err := portfolioService.ClosedTrades(ctx)
	if err != nil {
		return err
	}

	if err := printMarkdown(report.NewWriter(opts.currency).Portfolio(result, closed), opts); err != nil {
		return err
	}

	if result.Totals.Unpriced > 0 {
		fmt.Printf("⚠️  %d posição(ões) sem cotação\n", result.Totals.Unpriced)
	}
	return nil
}

func listPositions(opts renderOptions) error {
	ctx := context.Background()
	cfg := config.Load()

	portfolioService, closeAll, err := openPortfolio(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer closeAll()

	positions, err := portfolioService.Positions(ctx)
	if err != nil {
		return err
	}

	return printMarkdown(report.NewWriter(opts.currency).Positions(positions), opts)
}

func listClosedTrades(opts renderOptions) error {
	ctx := context.Background()
	cfg := config.Load()

	portfolioService, closeAll, err := openPortfolio(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer closeAll()

	closed, err := portfolioService.ClosedTrades(ctx)
	if err != nil {
		return err
	}
	if len(closed) == 0 {
		fmt.Println("Nenhuma operação encerrada")
		return nil
	}

	return printMarkdown(report.NewWriter(opts.currency).Closed(closed), opts)
}

func projectDCF(cmd *cobra.Command, opts renderOptions) error {
	ctx := context.Background()
	flags := cmd.Flags()

	scenario := valuation.DefaultScenario()

	symbol, _ := flags.GetString("symbol")
	if symbol != "" {
		cfg := config.Load()
		store := connectCache(ctx, cfg)
		defer store.Close()

		valuationService := service.NewValuationService(newMarketClient(cfg, store))
		fromSymbol, err := valuationService.ScenarioFor(ctx, symbol)
		if err != nil {
			fmt.Printf("⚠️  %v (usando receita padrão)\n", err)
		}
		scenario = fromSymbol
	}

	// Flags explícitas sempre vencem.
	overrides := []struct {
		name string
		dest *float64
	}{
		{"revenue", &scenario.BaseRevenue},
		{"growth", &scenario.RevenueGrowthRate},
		{"margin", &scenario.NetMargin},
		{"terminal", &scenario.TerminalGrowthRate},
		{"discount", &scenario.DiscountRate},
		{"shares", &scenario.SharesOutstanding},
	}
	for _, o := range overrides {
		if flags.Changed(o.name) {
			*o.dest, _ = flags.GetFloat64(o.name)
		}
	}
	if flags.Changed("years") {
		scenario.ProjectionYears, _ = flags.GetInt("years")
	}

	result, err := valuation.Project(scenario)
	if err != nil {
		return err
	}

	return printMarkdown(report.NewWriter(opts.currency).DCF(result), opts)
}

// checkHealth verifica a saúde do sistema
func checkHealth() error {
	ctx := context.Background()
	cfg := config.Load()

	fmt.Println("🏥 Verificando saúde do sistema...")
	fmt.Println()

	fmt.Printf("Origem das operações: %s\n", cfg.TradeSource)

	if cfg.TradeSource == config.TradeSourcePostgres {
		fmt.Print("PostgreSQL: ")
		db, err := connectDB(ctx, cfg)
		if err != nil {
			fmt.Printf("❌ Erro: %v\n", err)
		} else {
			defer db.Close()
			if err := db.HealthCheck(ctx); err != nil {
				fmt.Printf("❌ Erro na query: %v\n", err)
			} else {
				fmt.Println("✅ OK")
			}
		}
	} else {
		for _, path := range []string{cfg.TradesFile, cfg.ClosedTradesFile} {
			fmt.Printf("%s: ", path)
			if _, err := os.Stat(path); err != nil {
				fmt.Printf("❌ %v\n", err)
			} else {
				fmt.Println("✅ OK")
			}
		}
	}

	fmt.Print("Redis: ")
	redisCache, err := cache.NewRedisCache(ctx, cfg.RedisURL)
	if err != nil {
		fmt.Println("❌ Não disponível")
	} else {
		defer redisCache.Close()
		if err := redisCache.HealthCheck(ctx); err != nil {
			fmt.Printf("❌ Erro: %v\n", err)
		} else {
			fmt.Println("✅ OK")
		}
	}

	fmt.Print("Chave FMP: ")
	if cfg.FMPAPIKey == "" {
		fmt.Println("⚠️  não configurada")
	} else {
		fmt.Println("✅ OK")
	}

	fmt.Print("Chave Polygon: ")
	if cfg.PolygonAPIKey == "" {
		fmt.Println("⚠️  não configurada")
	} else {
		fmt.Println("✅ OK")
	}

	fmt.Println("\n✅ Verificação concluída!")
	return nil
}
