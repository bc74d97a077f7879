// Package validation implements the pre-submission checks that run on an
// enriched claim before any EDI is written. Findings are accumulated into a
// report; nothing here mutates the claim.
package validation

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/kaizen/nemt837/internal/domain/claim"
	"github.com/kaizen/nemt837/internal/domain/codes"
	"github.com/kaizen/nemt837/internal/domain/report"
)

var (
	npiRe  = regexp.MustCompile(`^\d{10}$`)
	taxRe  = regexp.MustCompile(`^\d{9}$`)
	zipRe  = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	timeRe = regexp.MustCompile(`^([01]\d|2[0-3])[0-5]\d$`)
)

// ChargeTolerance is the allowed drift between the claim total and the sum
// of service charges.
const ChargeTolerance = 0.01

// Validate runs every pre-submission check against an enriched claim and
// returns the report. The claim is not modified.
func Validate(c *claim.Claim) *report.Report {
	r := report.New("validation")
	checkBillingProvider(r, &c.BillingProvider)
	checkSubscriber(r, &c.Subscriber)
	checkDetail(r, &c.Claim)
	checkServices(r, c)
	checkChargeTotal(r, c)
	checkMileageOrdering(r, c.Services)
	checkLocationAmbiguity(r, c)
	return r
}

func validDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func checkBillingProvider(r *report.Report, bp *claim.Provider) {
	switch {
	case bp.NPI == "":
		r.Error("VAL_001", "billing_provider.npi", "billing provider NPI is required")
	case !npiRe.MatchString(bp.NPI):
		r.Error("VAL_002", "billing_provider.npi", "NPI must be 10 digits, got %q", bp.NPI)
	}
	switch {
	case bp.Name == "":
		r.Error("VAL_003", "billing_provider.name", "billing provider name is required")
	case len(bp.Name) > 60:
		r.Error("VAL_004", "billing_provider.name", "name exceeds 60 characters (%d)", len(bp.Name))
	}
	checkAddress(r, "billing_provider.address", &bp.Address)
	if bp.TaxID != "" && !taxRe.MatchString(bp.TaxID) {
		r.Error("VAL_013", "billing_provider.tax_id", "tax ID must be 9 digits, got %q", bp.TaxID)
	}
}

func checkAddress(r *report.Report, path string, a *claim.Address) {
	switch {
	case a.Line1 == "":
		r.Error("VAL_005", path+".line1", "address line1 is required")
	case len(a.Line1) > 55:
		r.Error("VAL_006", path+".line1", "line1 exceeds 55 characters (%d)", len(a.Line1))
	}
	switch {
	case a.City == "":
		r.Error("VAL_007", path+".city", "city is required")
	case len(a.City) > 30:
		r.Error("VAL_008", path+".city", "city exceeds 30 characters (%d)", len(a.City))
	}
	switch {
	case a.State == "":
		r.Error("VAL_009", path+".state", "state is required")
	case !codes.ValidState(a.State):
		r.Error("VAL_010", path+".state", "%q is not a recognized US state code", a.State)
	}
	switch {
	case a.Zip == "":
		r.Error("VAL_011", path+".zip", "zip is required")
	case !zipRe.MatchString(a.Zip):
		r.Error("VAL_012", path+".zip", "zip must be 12345 or 12345-6789, got %q", a.Zip)
	}
}

func checkSubscriber(r *report.Report, s *claim.Subscriber) {
	switch {
	case s.MemberID == "":
		r.Error("VAL_020", "subscriber.member_id", "member ID is required")
	case len(s.MemberID) > 80:
		r.Error("VAL_021", "subscriber.member_id", "member ID exceeds 80 characters (%d)", len(s.MemberID))
	}
	switch {
	case s.Name.Last == "":
		r.Error("VAL_022", "subscriber.name.last", "last name is required")
	case len(s.Name.Last) > 60:
		r.Error("VAL_023", "subscriber.name.last", "last name exceeds 60 characters (%d)", len(s.Name.Last))
	}
	switch {
	case s.Name.First == "":
		r.Error("VAL_024", "subscriber.name.first", "first name is required")
	case len(s.Name.First) > 35:
		r.Error("VAL_025", "subscriber.name.first", "first name exceeds 35 characters (%d)", len(s.Name.First))
	}
	if s.DOB != "" && !validDate(s.DOB) {
		r.Error("VAL_026", "subscriber.dob", "dob must be yyyy-mm-dd, got %q", s.DOB)
	}
	if s.Sex != "" && !codes.Valid(codes.KindSex, s.Sex) {
		r.Error("VAL_027", "subscriber.sex", "sex must be F, M, or U, got %q", s.Sex)
	}
	if s.Address != nil {
		checkAddress(r, "subscriber.address", s.Address)
	}
}

func checkDetail(r *report.Report, d *claim.Detail) {
	switch {
	case d.ClmNumber == "":
		r.Error("VAL_030", "claim.clm_number", "claim number is required")
	case len(d.ClmNumber) > 30:
		r.Error("VAL_031", "claim.clm_number", "claim number exceeds 30 characters (%d)", len(d.ClmNumber))
	}
	if d.TotalCharge == 0 && d.FrequencyCode != "8" {
		r.Error("VAL_033", "claim.total_charge", "total charge must be greater than zero except on void claims")
	}
	switch {
	case d.From == "":
		r.Error("VAL_034", "claim.from", "service-from date is required")
	case !validDate(d.From):
		r.Error("VAL_035", "claim.from", "from must be yyyy-mm-dd, got %q", d.From)
	}
	if d.To != "" && !validDate(d.To) {
		r.Error("VAL_036", "claim.to", "to must be yyyy-mm-dd, got %q", d.To)
	}
	if d.POS != "" && !codes.Valid(codes.KindPOS, d.POS) {
		r.Error("VAL_037", "claim.pos", "%q is not a recognized place of service", d.POS)
	}
	if d.FrequencyCode != "" && !codes.Valid(codes.KindFrequency, d.FrequencyCode) {
		r.Error("VAL_038", "claim.frequency_code", "frequency must be 1, 6, 7, or 8, got %q", d.FrequencyCode)
	}
	switch d.FrequencyCode {
	case "6", "7", "8":
		if d.OriginalClaimNumber == "" {
			r.Error("VAL_039", "claim.original_claim_number",
				"original claim number is required for frequency code %s", d.FrequencyCode)
		}
	}

	if d.PaymentStatus == "" {
		r.Error("VAL_051", "claim.payment_status", "payment status is required")
	} else if !codes.Valid(codes.KindPaymentStatus, d.PaymentStatus) {
		r.Error("VAL_051", "claim.payment_status", "payment status must be P or D, got %q", d.PaymentStatus)
	}
	if d.SubmissionChannel == "" {
		r.Error("VAL_052", "claim.submission_channel", "submission channel is required")
	} else if !codes.Valid(codes.KindSubmissionChannel, d.SubmissionChannel) {
		r.Error("VAL_052", "claim.submission_channel", "submission channel must be ELECTRONIC or PAPER, got %q", d.SubmissionChannel)
	}
	if d.NetworkIndicator == "" {
		r.Error("VAL_053", "claim.rendering_network_indicator", "network indicator is required")
	} else if !codes.Valid(codes.KindNetworkIndicator, d.NetworkIndicator) {
		r.Error("VAL_053", "claim.rendering_network_indicator", "network indicator must be I or O, got %q", d.NetworkIndicator)
	}

	checkMemberGroup(r, d.MemberGroup)
	if d.Ambulance != nil {
		checkAmbulance(r, d.Ambulance)
	}
	for _, fd := range []struct{ path, v string }{
		{"claim.receipt_date", d.ReceiptDate},
		{"claim.adjudication_date", d.AdjudicationDate},
		{"claim.paid_date", d.PaidDate},
	} {
		if fd.v != "" && !validDate(fd.v) {
			r.Error("VAL_036", fd.path, "date must be yyyy-mm-dd, got %q", fd.v)
		}
	}
}

func checkMemberGroup(r *report.Report, g claim.MemberGroup) {
	missing := []string{}
	for _, f := range []struct{ name, v string }{
		{"group_id", g.GroupID},
		{"sub_group_id", g.SubGroupID},
		{"class_id", g.ClassID},
		{"plan_id", g.PlanID},
		{"product_id", g.ProductID},
	} {
		if f.v == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		r.Error("VAL_054", "claim.member_group", "member group is incomplete, missing %v", missing)
	}
}

func checkAmbulance(r *report.Report, a *claim.Ambulance) {
	if a.WeightUnit != "" && !codes.Valid(codes.KindWeightUnit, a.WeightUnit) {
		r.Error("VAL_055", "claim.ambulance.weight_unit", "weight unit must be LB or KG, got %q", a.WeightUnit)
	}
	if a.TransportCode != "" && !codes.Valid(codes.KindTransport, a.TransportCode) {
		r.Error("VAL_055", "claim.ambulance.transport_code", "%q is not a recognized transport code", a.TransportCode)
	}
	if a.TransportReason != "" && !codes.Valid(codes.KindTransportReason, a.TransportReason) {
		r.Error("VAL_056", "claim.ambulance.transport_reason", "%q is not a recognized transport reason", a.TransportReason)
	}
	if a.Pickup != nil {
		checkLocation(r, "claim.ambulance.pickup", a.Pickup)
	}
	if a.Dropoff != nil {
		checkLocation(r, "claim.ambulance.dropoff", a.Dropoff)
	}
}

func checkLocation(r *report.Report, path string, l *claim.Location) {
	if l.State != "" && !codes.ValidState(l.State) {
		r.Error("VAL_010", path+".state", "%q is not a recognized US state code", l.State)
	}
	if l.Zip != "" && !zipRe.MatchString(l.Zip) {
		r.Error("VAL_012", path+".zip", "zip must be 12345 or 12345-6789, got %q", l.Zip)
	}
	if l.ArrivalTime != "" && !timeRe.MatchString(l.ArrivalTime) {
		r.Error("VAL_057", path+".arrival_time", "time must be HHMM, got %q", l.ArrivalTime)
	}
	if l.DepartureTime != "" && !timeRe.MatchString(l.DepartureTime) {
		r.Error("VAL_057", path+".departure_time", "time must be HHMM, got %q", l.DepartureTime)
	}
}

func checkServices(r *report.Report, c *claim.Claim) {
	if len(c.Services) == 0 {
		r.Error("VAL_040", "services", "at least one service is required")
		return
	}
	for i, s := range c.Services {
		path := fmt.Sprintf("services[%d]", i)
		if s == nil {
			r.Error("VAL_040", path, "service entry is null")
			continue
		}
		switch {
		case s.HCPCS == "":
			r.Error("VAL_041", path+".hcpcs", "HCPCS code is required")
		case len(s.HCPCS) > 5:
			r.Error("VAL_042", path+".hcpcs", "HCPCS exceeds 5 characters, got %q", s.HCPCS)
		case !codes.Valid(codes.KindHCPCS, s.HCPCS):
			r.Warn("VAL_046", path+".hcpcs", "HCPCS %q is not in the known NEMT set", s.HCPCS)
		}
		if len(s.Modifiers) > 4 {
			r.Error("VAL_044", path+".modifiers", "at most 4 modifiers allowed, got %d", len(s.Modifiers))
		}
		for _, mod := range s.Modifiers {
			if len(mod) != 2 {
				r.Error("VAL_045", path+".modifiers", "modifier must be 2 characters, got %q", mod)
			} else if !codes.Valid(codes.KindModifier, mod) {
				r.Warn("VAL_047", path+".modifiers", "modifier %q is not in the known set", mod)
			}
		}
		if s.DOS != "" && !validDate(s.DOS) {
			r.Error("VAL_035", path+".dos", "dos must be yyyy-mm-dd, got %q", s.DOS)
		}
		if s.POS != "" && !codes.Valid(codes.KindPOS, s.POS) {
			r.Error("VAL_037", path+".pos", "%q is not a recognized place of service", s.POS)
		}
		if s.PaymentStatus != "" && !codes.Valid(codes.KindPaymentStatus, s.PaymentStatus) {
			r.Error("VAL_051", path+".payment_status", "payment status must be P or D, got %q", s.PaymentStatus)
		}
		if s.Pickup != nil {
			checkLocation(r, path+".pickup", s.Pickup)
		}
		if s.Dropoff != nil {
			checkLocation(r, path+".dropoff", s.Dropoff)
		}
		if codes.RequiresSupervising(s.HCPCS) && s.Supervising == nil && c.SupervisingProvider == nil {
			r.Warn("VAL_048", path+".supervising_provider",
				"HCPCS %s expects a supervising provider on the claim", s.HCPCS)
		}
	}
}

func checkChargeTotal(r *report.Report, c *claim.Claim) {
	if len(c.Services) == 0 {
		return
	}
	sum := 0.0
	for _, s := range c.Services {
		if s == nil {
			continue
		}
		sum += s.Charge
	}
	if c.Claim.FrequencyCode == "8" && c.Claim.TotalCharge == 0 && sum == 0 {
		return
	}
	if math.Abs(sum-c.Claim.TotalCharge) > ChargeTolerance {
		r.Error("VAL_050", "claim.total_charge",
			"total charge %.2f does not match sum of service charges %.2f", c.Claim.TotalCharge, sum)
	}
}

// checkMileageOrdering enforces the transport-then-mileage rule: a mileage
// line must immediately follow a non-mileage transport line.
func checkMileageOrdering(r *report.Report, services []*claim.Service) {
	for i, s := range services {
		if s == nil || !codes.IsMileage(s.HCPCS) {
			continue
		}
		path := fmt.Sprintf("services[%d].hcpcs", i)
		switch {
		case i == 0:
			r.Error("BATCH_021", path,
				"mileage code %s cannot be the first service line", s.HCPCS)
		case services[i-1] == nil || services[i-1].HCPCS == "":
			r.Error("BATCH_020", path,
				"mileage code %s is not preceded by an identifiable transport line", s.HCPCS)
		case codes.IsMileage(services[i-1].HCPCS):
			r.Error("BATCH_022", path,
				"consecutive mileage codes %s, %s; a transport line must precede mileage", services[i-1].HCPCS, s.HCPCS)
		}
	}
}

// checkLocationAmbiguity warns when pickup/dropoff appear at both the claim
// and service level; downstream parsers may disagree on precedence.
func checkLocationAmbiguity(r *report.Report, c *claim.Claim) {
	a := c.Claim.Ambulance
	if a == nil || (a.Pickup == nil && a.Dropoff == nil) {
		return
	}
	for i, s := range c.Services {
		if s == nil {
			continue
		}
		// Cascaded copies from enrichment are not ambiguous; flag only
		// locations that differ from the claim-level ones.
		if s.Pickup != nil && a.Pickup != nil && *s.Pickup != *a.Pickup {
			r.Warn("VAL_049", fmt.Sprintf("services[%d].pickup", i),
				"pickup supplied at both claim and service level")
		}
		if s.Dropoff != nil && a.Dropoff != nil && *s.Dropoff != *a.Dropoff {
			r.Warn("VAL_049", fmt.Sprintf("services[%d].dropoff", i),
				"dropoff supplied at both claim and service level")
		}
	}
}
