// Package pipeline is the public entry point of the converter: it drives a
// claim (or a batch of trips) through enrichment, pre-submission validation,
// EDI emission, and the post-emission compliance and payer checks, returning
// the bytes alongside every stage report. The pipeline never logs; callers
// own all diagnostics.
package pipeline

import (
	"fmt"
	"time"

	"github.com/kaizen/nemt837/internal/domain/batch"
	"github.com/kaizen/nemt837/internal/domain/claim"
	"github.com/kaizen/nemt837/internal/domain/compliance"
	"github.com/kaizen/nemt837/internal/domain/edi"
	"github.com/kaizen/nemt837/internal/domain/payer"
	"github.com/kaizen/nemt837/internal/domain/report"
	"github.com/kaizen/nemt837/internal/domain/validation"
	"github.com/kaizen/nemt837/internal/platform/x12"
)

// Config selects the interchange parties and writer behavior. Start from
// DefaultConfig and override what the submission context requires.
type Config struct {
	SenderQual     string // ISA05
	SenderID       string // ISA06
	ReceiverQual   string // ISA07
	ReceiverID     string // ISA08
	GSSenderCode   string // GS02
	GSReceiverCode string // GS03
	UsageIndicator string // ISA15: T or P

	// PayerPreset, when set, overrides the claim's receiver payer id/name
	// and the interchange receiver identifiers.
	PayerPreset string

	// UseCR1Locations selects the CR109/CR110 descriptor emission mode.
	// When false the writer falls back to the legacy NTE + location loops.
	UseCR1Locations bool

	ElementSep  string
	SegmentTerm string
	Pretty      bool

	// ControlNumbers is the interchange numbering state. Nil starts a fresh
	// sequence at 1; callers with a persistent sequence pass their own.
	ControlNumbers *x12.ControlNumbers

	// Now fixes the ISA/GS/BHT timestamps. Zero means wall clock.
	Now time.Time
}

// DefaultConfig returns the test-indicator configuration with CR1 location
// descriptors enabled.
func DefaultConfig() Config {
	return Config{
		SenderQual:      "ZZ",
		ReceiverQual:    "ZZ",
		UsageIndicator:  "T",
		UseCR1Locations: true,
	}
}

// Result is the outcome of a single-claim build.
type Result struct {
	EDI              []byte
	PreReport        *report.Report
	ComplianceReport *report.Report
	PayerReport      *report.Report
}

// Valid reports whether every populated stage report passed.
func (r *Result) Valid() bool {
	for _, rep := range []*report.Report{r.PreReport, r.ComplianceReport, r.PayerReport} {
		if rep != nil && !rep.Valid() {
			return false
		}
	}
	return r.EDI != nil
}

// BatchResult is the outcome of a batch build.
type BatchResult struct {
	EDI              []byte
	RunID            string
	BatchReport      *report.Report
	ClaimReports     map[string]*report.Report // keyed by claim number
	ComplianceReport *report.Report
	PayerReport      *report.Report
	Emitted          int
}

// Valid reports whether the batch emitted an interchange that passed both
// post-emission checks with no batch-level errors.
func (r *BatchResult) Valid() bool {
	if r.EDI == nil || !r.BatchReport.Valid() {
		return false
	}
	for _, rep := range []*report.Report{r.ComplianceReport, r.PayerReport} {
		if rep != nil && !rep.Valid() {
			return false
		}
	}
	return true
}

// Build converts one claim record into an interchange. A claim that fails
// pre-submission validation returns its report with no bytes and no error;
// errors are reserved for writer-level failures and bad configuration.
func Build(c *claim.Claim, cfg Config) (*Result, error) {
	if err := applyPreset(c, &cfg); err != nil {
		return nil, err
	}
	claim.Enrich(c)

	res := &Result{PreReport: validation.Validate(c)}
	if !res.PreReport.Valid() {
		return res, nil
	}

	out, err := edi.BuildInterchange([]*claim.Claim{c}, cfg.options(), cfg.controlNumbers())
	if err != nil {
		return res, fmt.Errorf("pipeline: emit claim %s: %w", c.Claim.ClmNumber, err)
	}
	if werr, failed := out.Failures[0]; failed {
		return res, fmt.Errorf("pipeline: emit claim %s: %w", c.Claim.ClmNumber, werr)
	}
	res.EDI = out.Bytes
	res.ComplianceReport = compliance.CheckWith(out.Bytes, cfg.elementSep(), cfg.segmentTerm(), x12.DefaultComponentSep)
	res.PayerReport = payer.ValidateWith(out.Bytes, cfg.PayerPreset, cfg.elementSep(), cfg.segmentTerm(), x12.DefaultComponentSep)
	return res, nil
}

// BuildBatch groups trips into claims and emits them into one shared
// interchange. Claims that fail pre-submission validation are excluded from
// emission and noted in the batch report; their stage reports are returned
// keyed by claim number. When every claim is excluded, no interchange is
// emitted and only reports come back.
func BuildBatch(trips []*claim.Trip, cfg Config) (*BatchResult, error) {
	grouped := batch.Process(trips)
	res := &BatchResult{
		RunID:        grouped.RunID,
		BatchReport:  grouped.Report,
		ClaimReports: map[string]*report.Report{},
	}

	var emit []*claim.Claim
	for _, c := range grouped.Claims {
		if err := applyPreset(c, &cfg); err != nil {
			return nil, err
		}
		claim.Enrich(c)
		pre := validation.Validate(c)
		res.ClaimReports[c.Claim.ClmNumber] = pre
		if !pre.Valid() {
			res.BatchReport.Warn("BATCH_040", "claim",
				"claim %s excluded: %d validation errors", c.Claim.ClmNumber, len(pre.Errors()))
			continue
		}
		emit = append(emit, c)
	}
	if len(emit) == 0 {
		return res, nil
	}

	out, err := edi.BuildInterchange(emit, cfg.options(), cfg.controlNumbers())
	if err != nil {
		for i, werr := range out.Failures {
			res.BatchReport.Error("BATCH_041", "claim",
				"claim %s failed during emission: %v", emit[i].Claim.ClmNumber, werr)
		}
		return res, nil
	}
	for i, werr := range out.Failures {
		res.BatchReport.Error("BATCH_041", "claim",
			"claim %s failed during emission: %v", emit[i].Claim.ClmNumber, werr)
	}
	res.EDI = out.Bytes
	res.Emitted = len(out.Emitted)
	res.ComplianceReport = compliance.CheckWith(out.Bytes, cfg.elementSep(), cfg.segmentTerm(), x12.DefaultComponentSep)
	res.PayerReport = payer.ValidateWith(out.Bytes, cfg.PayerPreset, cfg.elementSep(), cfg.segmentTerm(), x12.DefaultComponentSep)
	return res, nil
}

// applyPreset overrides the claim receiver and the interchange receiver
// identifiers from the configured payer preset.
func applyPreset(c *claim.Claim, cfg *Config) error {
	if cfg.PayerPreset == "" {
		return nil
	}
	p, ok := payer.Lookup(cfg.PayerPreset)
	if !ok {
		return fmt.Errorf("pipeline: unknown payer preset %q", cfg.PayerPreset)
	}
	c.Receiver.PayerID = p.PayerID
	c.Receiver.PayerName = p.PayerName
	c.Receiver.IDQualifier = p.IDQualifier
	if cfg.ReceiverID == "" {
		cfg.ReceiverID = p.ReceiverID
	}
	if cfg.ReceiverQual == "" {
		cfg.ReceiverQual = p.ReceiverQual
	}
	return nil
}

func (c Config) options() edi.Options {
	return edi.Options{
		SenderQual:      c.SenderQual,
		SenderID:        c.SenderID,
		ReceiverQual:    c.ReceiverQual,
		ReceiverID:      c.ReceiverID,
		GSSenderCode:    c.GSSenderCode,
		GSReceiverCode:  c.GSReceiverCode,
		UsageIndicator:  c.UsageIndicator,
		UseCR1Locations: c.UseCR1Locations,
		ElementSep:      c.ElementSep,
		SegmentTerm:     c.SegmentTerm,
		Pretty:          c.Pretty,
		Now:             c.Now,
	}
}

func (c Config) controlNumbers() *x12.ControlNumbers {
	if c.ControlNumbers != nil {
		return c.ControlNumbers
	}
	return x12.NewControlNumbers()
}

func (c Config) elementSep() string {
	if c.ElementSep != "" {
		return c.ElementSep
	}
	return x12.DefaultElementSep
}

func (c Config) segmentTerm() string {
	if c.SegmentTerm != "" {
		return c.SegmentTerm
	}
	return x12.DefaultSegmentTerm
}
