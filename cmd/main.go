package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fleet-telemetry-reporter/internal/config"
	"fleet-telemetry-reporter/internal/logger"
	"fleet-telemetry-reporter/internal/pipeline"
	"fleet-telemetry-reporter/internal/report"
	"fleet-telemetry-reporter/internal/server"
	"fleet-telemetry-reporter/internal/wialon"
)

var (
	flagToken      string
	flagStart      string
	flagEnd        string
	flagReportType string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fleet-telemetry-reporter",
		Short: "Fleet Telemetry Reporter - Wialon fleet KPI extraction and reporting",
		Long: `Extracts GPS/telemetry data from the Wialon API, normalizes device
parameters into canonical telemetry records, computes per-unit and fleet
KPIs, and renders them as an Excel report or a dashboard API.`,
	}

	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Wialon API token (overrides WIALON_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&flagStart, "start", "", "Start date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringVar(&flagEnd, "end", "", "End date (YYYY-MM-DD), defaults to start date")
	rootCmd.PersistentFlags().StringVar(&flagReportType, "report-type", "weekly", "Report type: daily, weekly or monthly")

	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration, merges CLI flags and initializes logging.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if flagToken != "" {
		cfg.Wialon.Token = flagToken
	}
	if err := logger.Init(cfg.Server.Environment); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func dateRange() (time.Time, time.Time, pipeline.ReportType, error) {
	reportType, err := pipeline.ParseReportType(flagReportType)
	if err != nil {
		return time.Time{}, time.Time{}, "", err
	}
	if flagStart == "" {
		return time.Time{}, time.Time{}, "", errors.New("--start is required")
	}
	from, err := time.Parse("2006-01-02", flagStart)
	if err != nil {
		return time.Time{}, time.Time{}, "", fmt.Errorf("invalid start date: %w", err)
	}
	end := flagEnd
	if end == "" {
		end = flagStart
	}
	to, err := time.Parse("2006-01-02", end)
	if err != nil {
		return time.Time{}, time.Time{}, "", fmt.Errorf("invalid end date: %w", err)
	}
	// The end date is inclusive: extend to the end of that day.
	to = to.Add(24*time.Hour - time.Second)
	return from, to, reportType, nil
}

func runExtraction(ctx context.Context, cfg *config.Config) (*pipeline.FleetData, error) {
	from, to, reportType, err := dateRange()
	if err != nil {
		return nil, err
	}

	client := wialon.NewClient(&cfg.Wialon)
	if err := client.Login(ctx); err != nil {
		return nil, err
	}
	defer client.Logout(ctx)

	return pipeline.NewExtractor(client).Run(ctx, from, to, reportType)
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Run a fleet extraction and generate the Excel report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			data, err := runExtraction(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			path, err := report.NewExcelRenderer(&cfg.Report).Render(data)
			if err != nil {
				return err
			}

			fmt.Printf("Extraction complete: %d/%d units, %.2f km total\n",
				data.Info.SuccessfulUnits, data.Info.TotalUnits, data.Summary.TotalDistanceKM)
			fmt.Printf("Report: %s\n", path)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a fleet extraction and serve the dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			store := server.NewStore()
			router := server.SetupRoutes(cfg, store)

			data, err := runExtraction(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			store.Set(data)

			addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
			srv := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			go func() {
				logger.Info("Dashboard server starting", zap.String("address", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Fatal("Failed to start server", zap.Error(err))
				}
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit
			logger.Info("Shutting down server")

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
}
