// Package server is the HTTP façade over the conversion pipeline: upload a
// claim or a batch of trips, get back the interchange and every stage
// report. The pipeline itself stays silent; all request logging happens
// here.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kaizen/nemt837/internal/domain/claim"
	"github.com/kaizen/nemt837/internal/domain/pipeline"
	"github.com/kaizen/nemt837/internal/domain/report"
	"github.com/kaizen/nemt837/internal/platform/x12"
)

// Sequencer reserves persisted control numbers and file sequences. Nil is
// allowed; the handler then numbers each interchange from 1.
type Sequencer interface {
	ControlNumbers(ctx context.Context) (*x12.ControlNumbers, error)
	NextFileSequence(ctx context.Context, day string) (int, error)
}

type Handler struct {
	cfg       pipeline.Config
	stateCode string
	seq       Sequencer
	log       zerolog.Logger
}

func NewHandler(cfg pipeline.Config, stateCode string, seq Sequencer, log zerolog.Logger) *Handler {
	return &Handler{cfg: cfg, stateCode: stateCode, seq: seq, log: log}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/convert", h.Convert)
	api.POST("/batch", h.ConvertBatch)
}

type convertResponse struct {
	Valid            bool           `json:"valid"`
	EDI              string         `json:"edi,omitempty"`
	PreReport        *report.Report `json:"pre_report"`
	ComplianceReport *report.Report `json:"compliance_report,omitempty"`
	PayerReport      *report.Report `json:"payer_report,omitempty"`
}

type batchResponse struct {
	Valid            bool                      `json:"valid"`
	RunID            string                    `json:"run_id"`
	Filename         string                    `json:"filename,omitempty"`
	EDI              string                    `json:"edi,omitempty"`
	Emitted          int                       `json:"emitted"`
	BatchReport      *report.Report            `json:"batch_report"`
	ClaimReports     map[string]*report.Report `json:"claim_reports"`
	ComplianceReport *report.Report            `json:"compliance_report,omitempty"`
	PayerReport      *report.Report            `json:"payer_report,omitempty"`
}

// Convert accepts one claim record and returns the interchange with the
// stage reports. A claim that fails pre-submission validation comes back as
// 422 with the report and no bytes.
func (h *Handler) Convert(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read request body")
	}
	cl, err := claim.ParseClaim(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	cfg, err := h.configFor(c.Request().Context())
	if err != nil {
		h.log.Error().Err(err).Msg("reserve control numbers")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "control number sequence unavailable")
	}

	res, err := pipeline.Build(cl, cfg)
	if err != nil {
		h.log.Error().Err(err).Str("claim", cl.Claim.ClmNumber).Msg("emission failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := convertResponse{
		Valid:            res.Valid(),
		EDI:              string(res.EDI),
		PreReport:        res.PreReport,
		ComplianceReport: res.ComplianceReport,
		PayerReport:      res.PayerReport,
	}
	status := http.StatusOK
	if res.EDI == nil {
		status = http.StatusUnprocessableEntity
	}
	h.log.Info().Str("claim", cl.Claim.ClmNumber).Bool("valid", resp.Valid).Msg("convert")
	return c.JSON(status, resp)
}

// ConvertBatch accepts an array of trip records and returns one shared
// interchange plus the batch and per-claim reports.
func (h *Handler) ConvertBatch(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read request body")
	}
	trips, err := claim.ParseTrips(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	cfg, err := h.configFor(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("reserve control numbers")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "control number sequence unavailable")
	}

	res, err := pipeline.BuildBatch(trips, cfg)
	if err != nil {
		h.log.Error().Err(err).Msg("batch emission failed")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := batchResponse{
		Valid:            res.Valid(),
		RunID:            res.RunID,
		EDI:              string(res.EDI),
		Emitted:          res.Emitted,
		BatchReport:      res.BatchReport,
		ClaimReports:     res.ClaimReports,
		ComplianceReport: res.ComplianceReport,
		PayerReport:      res.PayerReport,
	}
	if res.EDI != nil {
		resp.Filename, err = h.filename(ctx, cfg)
		if err != nil {
			h.log.Error().Err(err).Msg("reserve file sequence")
			return echo.NewHTTPError(http.StatusServiceUnavailable, "file sequence unavailable")
		}
	}
	status := http.StatusOK
	if res.EDI == nil {
		status = http.StatusUnprocessableEntity
	}
	h.log.Info().Str("run_id", res.RunID).Int("trips", len(trips)).
		Int("emitted", res.Emitted).Bool("valid", resp.Valid).Msg("batch convert")
	return c.JSON(status, resp)
}

// configFor attaches a reserved control-number state to the pipeline config
// for one emission.
func (h *Handler) configFor(ctx context.Context) (pipeline.Config, error) {
	cfg := h.cfg
	if h.seq != nil {
		cn, err := h.seq.ControlNumbers(ctx)
		if err != nil {
			return cfg, err
		}
		cfg.ControlNumbers = cn
	}
	return cfg, nil
}

func (h *Handler) filename(ctx context.Context, cfg pipeline.Config) (string, error) {
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	seq := 1
	if h.seq != nil {
		var err error
		seq, err = h.seq.NextFileSequence(ctx, now.Format("20060102"))
		if err != nil {
			return "", err
		}
	}
	return pipeline.Filename(h.stateCode, now, seq, cfg.UsageIndicator != "P"), nil
}
