// Package edi assembles 837P interchanges from enriched, validated claims.
// Each claim becomes its own ST/SE transaction set; all claims in one call
// share a single ISA/GS envelope. Claims are rendered into scratch buffers
// first so a writer failure in one claim never poisons the envelope.
package edi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kaizen/nemt837/internal/domain/claim"
	"github.com/kaizen/nemt837/internal/platform/x12"
)

// Options configure envelope identifiers and writer behavior for one
// interchange emission.
type Options struct {
	SenderQual     string // ISA05
	SenderID       string // ISA06
	ReceiverQual   string // ISA07
	ReceiverID     string // ISA08
	GSSenderCode   string // GS02
	GSReceiverCode string // GS03
	UsageIndicator string // ISA15: T test, P production

	// UseCR1Locations selects the default location encoding: pickup and
	// dropoff descriptors ride in CR1 elements 9 and 10 and the legacy
	// NTE + 2310E/F + 2420G/H loops are suppressed. When false the legacy
	// loops are emitted and CR1 carries elements 1-8 only.
	UseCR1Locations bool

	ElementSep  string
	SegmentTerm string
	Pretty      bool

	// Now pins the interchange clock; the zero value means wall time.
	Now time.Time
}

func (o Options) clock() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

func (o Options) newWriter() *x12.Writer {
	w := x12.NewWriter()
	if o.ElementSep != "" {
		w.ElementSep = o.ElementSep
	}
	if o.SegmentTerm != "" {
		w.SegmentTerm = o.SegmentTerm
	}
	w.Pretty = o.Pretty
	return w
}

// Result is the outcome of one interchange emission.
type Result struct {
	Bytes    []byte
	Emitted  []int         // input indices of claims present in the interchange
	Failures map[int]error // input index -> writer error, for skipped claims

	ISACtl int
	GSCtl  int
	STCtls map[int]int // input index -> ST control number
}

// BuildInterchange writes one interchange for the given claims. Claims that
// trip a WriterError are skipped and reported in Result.Failures; the rest
// share the envelope. When no claim survives, Bytes is nil and every failure
// is reported.
func BuildInterchange(claims []*claim.Claim, opts Options, cn *x12.ControlNumbers) (*Result, error) {
	if cn == nil {
		cn = x12.NewControlNumbers()
	}
	now := opts.clock()
	res := &Result{
		Failures: map[int]error{},
		STCtls:   map[int]int{},
	}

	type transaction struct {
		index    int
		segments []string
	}
	var txs []transaction
	for i, c := range claims {
		stCtl := cn.NextST()
		scratch := opts.newWriter()
		writeTransaction(scratch, c, opts, stCtl, now)
		segs, err := scratch.Segments()
		if err != nil {
			res.Failures[i] = err
			continue
		}
		res.STCtls[i] = stCtl
		txs = append(txs, transaction{index: i, segments: segs})
	}
	if len(txs) == 0 {
		return res, fmt.Errorf("edi: no claim survived emission")
	}

	res.ISACtl = cn.NextISA()
	res.GSCtl = cn.NextGS()

	w := opts.newWriter()
	w.ISA(opts.SenderQual, opts.SenderID, opts.ReceiverQual, opts.ReceiverID,
		opts.UsageIndicator, res.ISACtl, now)
	w.GS(opts.GSSenderCode, opts.GSReceiverCode, res.GSCtl, now)
	for _, tx := range txs {
		for _, seg := range tx.segments {
			w.Raw(seg)
		}
		res.Emitted = append(res.Emitted, tx.index)
	}
	w.GE(len(txs), res.GSCtl)
	w.IEA(1, res.ISACtl)

	out, err := w.Bytes()
	if err != nil {
		return res, err
	}
	res.Bytes = out
	return res, nil
}

// writeTransaction emits one ST..SE pair for a claim.
func writeTransaction(w *x12.Writer, c *claim.Claim, opts Options, stCtl int, now time.Time) {
	d := &c.Claim
	guardMandatory(w, c)

	w.ST(stCtl)
	ref := d.ClmNumber
	if ref == "" {
		ref = "REF"
	}
	if len(ref) > 30 {
		ref = ref[:30]
	}
	w.Segment("BHT", "0019", "00", ref, now.Format("20060102"), now.Format("1504"), "CH")

	writeSubmitterReceiver(w, c, opts)
	writeBillingHierarchy(w, c)
	writeSubscriberHierarchy(w, c)
	writeClaimLoop(w, c, opts)
	w.SE(stCtl)
}

// guardMandatory is the writer's last-line defense: validation should have
// rejected these states already.
func guardMandatory(w *x12.Writer, c *claim.Claim) {
	switch {
	case c.Claim.ClmNumber == "":
		w.Fail("CLM", "claim number is empty")
	case c.Claim.From == "":
		w.Fail("DTP", "service-from date is empty")
	case c.BillingProvider.NPI == "":
		w.Fail("NM1", "billing provider NPI is empty")
	case c.Subscriber.MemberID == "":
		w.Fail("NM1", "subscriber member ID is empty")
	case len(c.Services) == 0:
		w.Fail("LX", "claim carries no service lines")
	}
}

func writeSubmitterReceiver(w *x12.Writer, c *claim.Claim, opts Options) {
	qual := c.Submitter.IDQualifier
	if qual == "" {
		qual = "46"
	}
	w.Segment("NM1", "41", "2", c.Submitter.Name, "", "", "", "", qual, c.Submitter.ID)
	if c.Submitter.ContactName != "" || c.Submitter.ContactPhone != "" {
		w.Segment("PER", "IC", c.Submitter.ContactName, "TE", c.Submitter.ContactPhone)
	}
	w.Segment("NM1", "40", "2", c.Receiver.PayerName, "", "", "", "", "46",
		strings.TrimSpace(opts.ReceiverID))
}

func writeBillingHierarchy(w *x12.Writer, c *claim.Claim) {
	bp := &c.BillingProvider
	w.Segment("HL", "1", "", "20", "1")
	if bp.Taxonomy != "" {
		w.Segment("PRV", "BI", "PXC", bp.Taxonomy)
	}
	w.Segment("NM1", "85", "2", bp.Name, "", "", "", "", "XX", bp.NPI)
	w.Segment("N3", bp.Address.Line1, bp.Address.Line2)
	w.Segment("N4", bp.Address.City, bp.Address.State, bp.Address.Zip)
	if bp.TaxID != "" {
		w.Segment("REF", "EI", bp.TaxID)
	}
	if pt := c.PayToPlan; pt != nil && pt.Name != "" {
		w.Segment("NM1", "PE", "2", pt.Name, "", "", "", "", "XX", pt.NPI)
		w.Segment("N3", pt.Address.Line1, pt.Address.Line2)
		w.Segment("N4", pt.Address.City, pt.Address.State, pt.Address.Zip)
	}
}

func writeSubscriberHierarchy(w *x12.Writer, c *claim.Claim) {
	sub := &c.Subscriber
	w.Segment("HL", "2", "1", "22", "0")
	rel := "18"
	if sub.Relationship != "" && sub.Relationship != "self" {
		rel = "01"
	}
	w.Segment("SBR", "P", rel, "", "", "", "", "", "MC")
	w.Segment("NM1", "IL", "1", sub.Name.Last, sub.Name.First, "", "", "", "MI", sub.MemberID)
	if sub.Address != nil {
		w.Segment("N3", sub.Address.Line1, sub.Address.Line2)
		w.Segment("N4", sub.Address.City, sub.Address.State, sub.Address.Zip)
	}
	if sub.DOB != "" {
		w.Segment("DMG", "D8", d8(sub.DOB), sub.Sex)
	} else if sub.Sex != "" {
		w.Segment("DMG", "", "", sub.Sex)
	}
	qual := c.Receiver.IDQualifier
	if qual == "" {
		qual = "PI"
	}
	w.Segment("NM1", "PR", "2", c.Receiver.PayerName, "", "", "", "", qual, c.Receiver.PayerID)
	if c.Receiver.PayerID != "" {
		w.Segment("REF", "2U", c.Receiver.PayerID)
	}
}

func writeClaimLoop(w *x12.Writer, c *claim.Claim, opts Options) {
	d := &c.Claim

	clm05 := w.Composite(pos2(d.POS), "B", d.FrequencyCode)
	w.Segment("CLM", d.ClmNumber, amount(d.TotalCharge), "", "", clm05, "Y", "A", "Y", "Y", "P", "OA")

	if d.From == d.To || d.To == "" {
		w.Segment("DTP", "472", "D8", d8(d.From))
	} else {
		w.Segment("DTP", "472", "RD8", d8(d.From)+"-"+d8(d.To))
	}

	if len(d.ICD10) > 0 {
		comps := []string{w.Composite("ABK", d.ICD10[0])}
		for _, dx := range d.ICD10[1:] {
			comps = append(comps, w.Composite("ABF", dx))
		}
		w.Segment("HI", comps...)
	}

	writeCR1(w, d, opts)

	if d.AuthNumber != "" {
		w.Segment("REF", "G1", d.AuthNumber)
	}
	if d.TrackingNumber != "" {
		w.Segment("REF", "D9", d.TrackingNumber)
	}
	switch d.FrequencyCode {
	case "6", "7", "8":
		w.Segment("REF", "F8", d.OriginalClaimNumber)
	}
	if d.PatientAccount != "" {
		w.Segment("REF", "EA", d.PatientAccount)
	}

	writeClaimK3(w, c)
	writeMemberGroupNTE(w, d)
	if !opts.UseCR1Locations {
		writeTripNTE(w, d)
	}
	writeDeniedAdjustments(w, d)
	writeCOBAmounts(w, c)

	if d.ReceiptDate != "" {
		w.Segment("DTP", "050", "D8", d8(d.ReceiptDate))
	}
	if d.AdjudicationDate != "" {
		w.Segment("DTP", "036", "D8", d8(d.AdjudicationDate))
	}
	if d.PaidDate != "" {
		w.Segment("DTP", "573", "D8", d8(d.PaidDate))
	}

	writeClaimProviders(w, c, opts)
	writeOtherPayers(w, c)

	for i, s := range c.Services {
		if s == nil {
			w.Fail("LX", "service line %d is missing", i+1)
			return
		}
		writeServiceLoop(w, c, s, i+1, opts)
	}
}

// writeCR1 emits the single claim-level ambulance segment. In CR109/CR110
// mode elements 9 and 10 carry the encoded pickup and dropoff descriptors;
// legacy mode stops at element 8 and leaves locations to the NTE and
// 2310E/F loops.
func writeCR1(w *x12.Writer, d *claim.Detail, opts Options) {
	a := d.Ambulance
	if a == nil {
		return
	}
	wu := a.WeightUnit
	if wu == "" && a.PatientWeight > 0 {
		wu = "LB"
	}
	weight := ""
	if a.PatientWeight > 0 {
		weight = units(a.PatientWeight)
	}
	elems := []string{wu, weight, "", "", a.TransportCode, a.TransportReason, "", ""}
	if opts.UseCR1Locations {
		elems = append(elems, pickupDescriptor(a), dropoffDescriptor(a))
	}
	w.Segment("CR1", elems...)
}

func pickupDescriptor(a *claim.Ambulance) string {
	var parts []string
	if a.TripNumber != "" {
		parts = append(parts, "TRIPNUM-"+pad9(a.TripNumber))
	}
	if a.SpecialNeeds != "" {
		parts = append(parts, "SPECNEED-"+a.SpecialNeeds)
	}
	parts = append(parts, locationTags("PU", a.Pickup)...)
	return strings.Join(parts, ";")
}

func dropoffDescriptor(a *claim.Ambulance) string {
	return strings.Join(locationTags("DO", a.Dropoff), ";")
}

// locationTags encodes a location as prefix-tagged fields. The grammar is
// the payer's semicolon-joined TAG-value form used across K3 and NTE.
func locationTags(prefix string, l *claim.Location) []string {
	if l == nil {
		return nil
	}
	var parts []string
	add := func(tag, v string) {
		if v != "" {
			parts = append(parts, prefix+tag+"-"+v)
		}
	}
	add("LOC", l.LocationCode)
	add("ADDR", l.Line1)
	add("CITY", l.City)
	add("ST", l.State)
	add("ZIP", l.Zip)
	if prefix == "PU" {
		add("TIME", l.DepartureTime)
	} else {
		add("TIME", l.ArrivalTime)
	}
	return parts
}

// writeClaimK3 emits the K3 sequence in its mandated order: payment status,
// submission identity, network status, channel, date tracking, then the
// rendering-provider address block.
func writeClaimK3(w *x12.Writer, c *claim.Claim) {
	d := &c.Claim
	if d.PaymentStatus == "P" || d.PaymentStatus == "D" {
		w.Segment("K3", "PYMS-"+d.PaymentStatus)
	}
	var ident []string
	if d.SubscriberInternalID != "" {
		ident = append(ident, "SUB-"+d.SubscriberInternalID)
	}
	if d.IPAddress != "" {
		ident = append(ident, "IPAD-"+d.IPAddress)
	}
	if d.UserID != "" {
		ident = append(ident, "USER-"+d.UserID)
	}
	if len(ident) > 0 {
		w.Segment("K3", strings.Join(ident, ";"))
	}
	if d.NetworkIndicator != "" {
		w.Segment("K3", "SNWK-"+d.NetworkIndicator)
	}
	switch d.SubmissionChannel {
	case "ELECTRONIC", "PAPER":
		w.Segment("K3", "TRPN-ASPUFE"+d.SubmissionChannel)
	}
	var dates []string
	if d.ReceiptDate != "" {
		dates = append(dates, "DREC-"+d8(d.ReceiptDate))
	}
	if d.AdjudicationDate != "" {
		dates = append(dates, "DADJ-"+d8(d.AdjudicationDate))
	}
	if d.PaidDate != "" {
		dates = append(dates, "PAIDDT-"+d8(d.PaidDate))
	}
	if len(dates) > 0 {
		w.Segment("K3", strings.Join(dates, ";"))
	}

	rp := c.RenderingOrBilling()
	if rp.Address.Line1 != "" {
		lines := []string{"AL1-" + rp.Address.Line1}
		if rp.Address.Line2 != "" {
			lines = append(lines, "AL2-"+rp.Address.Line2)
		}
		w.Segment("K3", strings.Join(lines, ";"))
		w.Segment("K3", strings.Join([]string{
			"CY-" + rp.Address.City,
			"ST-" + rp.Address.State,
			"ZIP-" + rp.Address.Zip,
		}, ";"))
	}
}

// writeMemberGroupNTE always emits the member group note; the payer rejects
// claims without it.
func writeMemberGroupNTE(w *x12.Writer, d *claim.Detail) {
	g := d.MemberGroup
	w.Segment("NTE", "ADD", strings.Join([]string{
		"GRP-" + g.GroupID,
		"SGR-" + g.SubGroupID,
		"CLS-" + g.ClassID,
		"PLN-" + g.PlanID,
		"PRD-" + g.ProductID,
	}, ";"))
}

func writeTripNTE(w *x12.Writer, d *claim.Detail) {
	a := d.Ambulance
	if a == nil {
		return
	}
	var parts []string
	if a.TripNumber != "" {
		parts = append(parts, "TRIPNUM-"+pad9(a.TripNumber))
	}
	if a.SpecialNeeds != "" {
		parts = append(parts, "SPECNEED-"+a.SpecialNeeds)
	}
	if len(parts) > 0 {
		w.Segment("NTE", "ADD", strings.Join(parts, ";"))
	}
}

// writeDeniedAdjustments emits claim-level CAS/MOA for denied claims. The
// CAS*CO*45 fallback covers callers that did not supply adjustments.
func writeDeniedAdjustments(w *x12.Writer, d *claim.Detail) {
	if len(d.CAS) > 0 {
		for _, a := range d.CAS {
			w.Segment("CAS", a.Group, a.Reason, amount(a.Amount), a.Quantity)
		}
		if d.PaymentStatus == "D" {
			w.Segment("MOA", "", "MA130")
		}
		return
	}
	if d.PaymentStatus == "D" {
		w.Segment("CAS", "CO", "45", amount(d.TotalCharge))
		w.Segment("MOA", "", "MA130")
	}
}

func writeCOBAmounts(w *x12.Writer, c *claim.Claim) {
	if len(c.OtherPayers) == 0 {
		return
	}
	d := &c.Claim
	if d.RemainingAmount != nil {
		w.Segment("AMT", "EAF", amount(*d.RemainingAmount))
	}
	if d.AllowedAmount != nil {
		w.Segment("AMT", "B6", amount(*d.AllowedAmount))
	}
	if d.CoveredAmount != nil {
		w.Segment("AMT", "AU", amount(*d.CoveredAmount))
	}
	if d.PatientPaid != nil {
		w.Segment("AMT", "F2", amount(*d.PatientPaid))
	}
}

func writeClaimProviders(w *x12.Writer, c *claim.Claim, opts Options) {
	if rf := c.ReferringProvider; rf != nil && (rf.Name.Last != "" || rf.NPI != "") {
		role := rf.Role
		if role == "" {
			role = "DN"
		}
		w.Segment("NM1", role, "1", rf.Name.Last, rf.Name.First, "", "", "", "XX", rf.NPI)
	}

	rp := c.RenderingOrBilling()
	w.Segment("NM1", "82", "2", rp.Name, "", "", "", "", "XX", rp.NPI)
	if rp.Taxonomy != "" {
		w.Segment("PRV", "PE", "PXC", rp.Taxonomy)
	}
	if rp.LegacyID != "" {
		w.Segment("REF", "G2", rp.LegacyID)
	}

	if sf := c.ServiceFacility; sf != nil && sf.Name != "" {
		w.Segment("NM1", "77", "2", sf.Name, "", "", "", "", "XX", sf.NPI)
		w.Segment("N3", sf.Address.Line1, sf.Address.Line2)
		w.Segment("N4", sf.Address.City, sf.Address.State, sf.Address.Zip)
	}

	if sp := c.SupervisingProvider; sp != nil && sp.Name.Last != "" {
		w.Segment("NM1", "DQ", "1", sp.Name.Last, sp.Name.First, "", "", "", "XX", sp.NPI)
		if a := c.Claim.Ambulance; a != nil && a.TripNumber != "" {
			w.Segment("REF", "LU", pad9(a.TripNumber))
		}
	}

	if !opts.UseCR1Locations {
		if a := c.Claim.Ambulance; a != nil {
			writeLocationLoop(w, "PW", a.Pickup)
			writeLocationLoop(w, "45", a.Dropoff)
		}
	}
}

func writeLocationLoop(w *x12.Writer, entity string, l *claim.Location) {
	if l == nil {
		return
	}
	w.Segment("NM1", entity, "2")
	w.Segment("N3", l.Line1, l.Line2)
	w.Segment("N4", l.City, l.State, l.Zip)
}

func writeOtherPayers(w *x12.Writer, c *claim.Claim) {
	for _, op := range c.OtherPayers {
		filing := op.FilingIndicator
		if filing == "" {
			filing = "MC"
		}
		w.Segment("SBR", "S", "18", "", "", "", "", "", filing)
		if op.PaidAmount != nil {
			w.Segment("AMT", "D", amount(*op.PaidAmount))
		}
		w.Segment("OI", "", "", "Y", "", "", "Y")
		w.Segment("NM1", "IL", "1", c.Subscriber.Name.Last, c.Subscriber.Name.First,
			"", "", "", "MI", c.Subscriber.MemberID)
		w.Segment("NM1", "PR", "2", op.PayerName, "", "", "", "", "PI", op.PayerID)
	}
}

func writeServiceLoop(w *x12.Writer, c *claim.Claim, s *claim.Service, n int, opts Options) {
	w.Segment("LX", strconv.Itoa(n))

	comps := append([]string{"HC", s.HCPCS}, s.Modifiers...)
	procedure := w.Composite(comps...)
	emerg := ""
	if s.Emergency != nil && *s.Emergency {
		emerg = "Y"
	}
	u := 1.0
	if s.Units != nil {
		u = *s.Units
	}
	w.Segment("SV1", procedure, amount(s.Charge), "UN", units(u), "", "", pos2(s.POS),
		"", "", "", emerg)

	if s.DOS != "" {
		w.Segment("DTP", "472", "D8", d8(s.DOS))
	}

	// K3 must precede every 2420 loop for this payer.
	if s.PaymentStatus == "P" || s.PaymentStatus == "D" {
		w.Segment("K3", "PYMS-"+s.PaymentStatus)
	}

	if !opts.UseCR1Locations {
		var parts []string
		if s.Pickup != nil {
			if s.Pickup.LocationCode != "" {
				parts = append(parts, "PULOC-"+s.Pickup.LocationCode)
			}
			if s.Pickup.DepartureTime != "" {
				parts = append(parts, "PUTIME-"+s.Pickup.DepartureTime)
			}
		}
		if s.Dropoff != nil {
			if s.Dropoff.LocationCode != "" {
				parts = append(parts, "DOLOC-"+s.Dropoff.LocationCode)
			}
			if s.Dropoff.ArrivalTime != "" {
				parts = append(parts, "DOTIME-"+s.Dropoff.ArrivalTime)
			}
		}
		if len(parts) > 0 {
			w.Segment("NTE", "ADD", strings.Join(parts, ";"))
		}
	}

	if sp := s.Supervising; sp != nil && sp.Name.Last != "" {
		w.Segment("NM1", "DQ", "1", sp.Name.Last, sp.Name.First, "", "", "", "XX", sp.NPI)
		if s.TripNumber != "" {
			w.Segment("REF", "LU", pad9(s.TripNumber))
		}
	}

	if !opts.UseCR1Locations {
		writeLocationLoop(w, "PW", s.Pickup)
		writeLocationLoop(w, "45", s.Dropoff)
	}

	casEmitted := false
	for _, adj := range s.Adjudication {
		payer := adj.PayerID
		if payer == "" {
			payer = c.Receiver.PayerID
		}
		paidUnits := ""
		if adj.PaidUnits != nil {
			paidUnits = units(*adj.PaidUnits)
		}
		w.Segment("SVD", payer, amount(adj.PaidAmount), procedure, "", paidUnits)
		for _, a := range adj.CAS {
			w.Segment("CAS", a.Group, a.Reason, amount(a.Amount), a.Quantity)
			casEmitted = true
		}
		if adj.PaymentDate != "" {
			w.Segment("DTP", "573", "D8", d8(adj.PaymentDate))
		}
	}
	if s.PaymentStatus == "D" && !casEmitted {
		w.Segment("CAS", "CO", "45", amount(s.Charge))
	}
}

// amount renders a monetary value as fixed-point with two decimals.
func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// units renders a quantity without a trailing ".0".
func units(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// d8 converts yyyy-mm-dd to the D8 yyyymmdd form.
func d8(s string) string {
	return strings.ReplaceAll(s, "-", "")
}

// pos2 normalizes a place-of-service code to two digits.
func pos2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// pad9 left-pads a numeric trip number with zeros to nine digits.
func pad9(s string) string {
	for len(s) < 9 {
		s = "0" + s
	}
	return s
}
