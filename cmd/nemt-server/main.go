package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kaizen/nemt837/internal/config"
	"github.com/kaizen/nemt837/internal/domain/claim"
	"github.com/kaizen/nemt837/internal/domain/pipeline"
	"github.com/kaizen/nemt837/internal/domain/report"
	"github.com/kaizen/nemt837/internal/platform/auth"
	"github.com/kaizen/nemt837/internal/platform/db"
	"github.com/kaizen/nemt837/internal/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nemt-server",
		Short: "NEMT 837P claim converter and submission API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(convertCmd())
	rootCmd.AddCommand(batchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the conversion API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <claim.json>",
		Short: "Convert one claim record to an 837P interchange",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			return runConvert(args[0], out)
		},
	}
	cmd.Flags().StringP("out", "o", "", "Write the interchange to this file (default stdout)")
	return cmd
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <trips.json>",
		Short: "Group trip records and emit one shared interchange",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return runBatch(args[0], dir)
		},
	}
	cmd.Flags().StringP("dir", "d", ".", "Directory for the named output file")
	return cmd
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	seq := db.NewSequenceStore(pool)
	if err := seq.EnsureTable(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare control number table")
	}
	logger.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	if cfg.IsDev() {
		logger.Warn().Msg("development mode: requests are not authenticated")
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(cfg.AuthSecret),
		}))
	}

	e.GET("/healthz", func(c echo.Context) error {
		if err := pool.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "down"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "up"})
	})

	h := server.NewHandler(cfg.Pipeline(), cfg.StateCode, seq, logger)
	h.RegisterRoutes(e.Group("/api/v1"))

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server listening")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func runConvert(path, out string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	c, err := claim.ParseClaim(data)
	if err != nil {
		return err
	}

	res, err := pipeline.Build(c, cfg.Pipeline())
	if err != nil {
		return err
	}
	printReports(res.PreReport, res.ComplianceReport, res.PayerReport)
	if res.EDI == nil {
		return fmt.Errorf("claim %s failed pre-submission validation", c.Claim.ClmNumber)
	}

	if out == "" {
		_, err = os.Stdout.Write(res.EDI)
		return err
	}
	if err := os.WriteFile(out, res.EDI, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", out, len(res.EDI))
	return nil
}

func runBatch(path, dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	trips, err := claim.ParseTrips(data)
	if err != nil {
		return err
	}

	res, err := pipeline.BuildBatch(trips, cfg.Pipeline())
	if err != nil {
		return err
	}
	printReports(res.BatchReport, res.ComplianceReport, res.PayerReport)
	for name, rep := range res.ClaimReports {
		if !rep.Valid() {
			fmt.Fprintf(os.Stderr, "%s: %s\n", name, rep)
		}
	}
	if res.EDI == nil {
		return fmt.Errorf("no claim survived the batch; nothing written")
	}

	name := pipeline.Filename(cfg.StateCode, time.Now(), 1, cfg.UsageIndicator != "P")
	full := filepath.Join(dir, name)
	if err := os.WriteFile(full, res.EDI, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s: %d of %d claims emitted\n", full, res.Emitted, len(trips))
	return nil
}

func printReports(reports ...*report.Report) {
	for _, r := range reports {
		if r == nil {
			continue
		}
		fmt.Fprintln(os.Stderr, r.String())
	}
}
