// Package batch groups flattened trip records into claim records ready for
// the pipeline. Grouping is stable: claims come out in the arrival order of
// their grouping keys, and services within a claim keep trip input order.
package batch

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kaizen/nemt837/internal/domain/claim"
	"github.com/kaizen/nemt837/internal/domain/report"
)

// Result is the outcome of one grouping run.
type Result struct {
	RunID  string
	Claims []*claim.Claim
	Report *report.Report
}

type groupKey struct {
	billingNPI   string
	renderingNPI string
	dos          string
	memberID     string
}

// Process validates and groups trips into claims. Trips with missing
// required fields are dropped with an error entry; disagreeing groups are
// dropped whole; duplicate claim triples keep the first claim and drop the
// rest.
func Process(trips []*claim.Trip) *Result {
	res := &Result{
		RunID:  uuid.NewString(),
		Report: report.New("batch"),
	}

	valid := validateTrips(res.Report, trips)

	var order []groupKey
	groups := map[groupKey][]*claim.Trip{}
	for _, t := range valid {
		key := groupKey{
			billingNPI:   npiOf(t.BillingProvider),
			renderingNPI: npiOf(t.RenderingProvider),
			dos:          t.DOS,
			memberID:     t.Member.MemberID,
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], t)
	}

	seen := map[[3]string]bool{}
	seq := 0
	for _, key := range order {
		group := groups[key]
		seq++
		c, ok := buildClaim(res.Report, group, key, seq)
		if !ok {
			continue
		}
		if len(group) > 1 {
			res.Report.Info("BATCH_100", "",
				"grouped %d trips into claim %s (DOS=%s, member=%s)",
				len(group), c.Claim.ClmNumber, key.dos, key.memberID)
		}
		dup := c.DuplicateKey()
		if seen[dup] {
			res.Report.Error("BATCH_010", "claim.clm_number",
				"duplicate claim triple (%s, %s, %s); claim dropped",
				dup[0], dup[1], dup[2])
			continue
		}
		seen[dup] = true
		res.Claims = append(res.Claims, c)
	}
	return res
}

func npiOf(p *claim.Provider) string {
	if p == nil {
		return ""
	}
	return p.NPI
}

func validateTrips(r *report.Report, trips []*claim.Trip) []*claim.Trip {
	var valid []*claim.Trip
	for i, t := range trips {
		ok := true
		if t.DOS == "" {
			r.Error("BATCH_002", fmt.Sprintf("trips[%d].dos", i), "trip is missing its date of service")
			ok = false
		}
		if t.Member.MemberID == "" {
			r.Error("BATCH_003", fmt.Sprintf("trips[%d].member", i), "trip is missing its member")
			ok = false
		}
		switch {
		case t.Service == nil:
			r.Error("BATCH_004", fmt.Sprintf("trips[%d].service", i), "trip is missing its service")
			ok = false
		case t.Service.HCPCS == "":
			r.Error("BATCH_005", fmt.Sprintf("trips[%d].service.hcpcs", i), "trip service has no HCPCS code")
			ok = false
		}
		if ok {
			valid = append(valid, t)
		}
	}
	return valid
}

// buildClaim merges one trip group into a claim. The first trip supplies
// the envelope parties and claim metadata; per-trip fields become service
// lines in input order.
func buildClaim(r *report.Report, group []*claim.Trip, key groupKey, seq int) (*claim.Claim, bool) {
	first := group[0]

	c := &claim.Claim{}
	if first.Submitter != nil {
		c.Submitter = *first.Submitter
	}
	if first.Payer != nil {
		c.Receiver = *first.Payer
	}
	if first.BillingProvider != nil {
		c.BillingProvider = *first.BillingProvider
	}
	if first.RenderingProvider != nil {
		rp := *first.RenderingProvider
		c.RenderingProvider = &rp
	}
	c.Subscriber = first.Member
	c.SupervisingProvider = first.Supervising

	d := &c.Claim
	d.ClmNumber = first.ClmNumber
	if d.ClmNumber == "" {
		d.ClmNumber = fmt.Sprintf("KZN-%s-%03d", compact(first.DOS), seq)
	}
	d.From = first.DOS
	d.FrequencyCode = first.FrequencyCode
	d.OriginalClaimNumber = first.OriginalClaimNumber
	d.AuthNumber = first.AuthNumber
	d.PatientAccount = first.PatientAccount
	d.TrackingNumber = first.TrackingNumber
	d.ReceiptDate = first.ReceiptDate
	d.AdjudicationDate = first.AdjudicationDate
	d.PaidDate = first.PaidDate
	if first.MemberGroup != nil {
		d.MemberGroup = *first.MemberGroup
	}
	if first.Ambulance != nil {
		a := *first.Ambulance
		d.Ambulance = &a
	}
	d.PaymentStatus = first.PaymentStatus
	d.NetworkIndicator = first.NetworkIndicator

	// Aggregate across the group: channel is ELECTRONIC if any trip was;
	// the agreement fields must not disagree.
	total := 0.0
	channel := ""
	for i, t := range group {
		if t.SubmissionChannel == "ELECTRONIC" {
			channel = "ELECTRONIC"
		} else if channel == "" && t.SubmissionChannel != "" {
			channel = t.SubmissionChannel
		}
		if disagrees(t.PaymentStatus, first.PaymentStatus) {
			r.Error("BATCH_030", "trips.payment_status",
				"payment status disagrees within group (claim %s, trip %d)", d.ClmNumber, i)
			return nil, false
		}
		if disagrees(t.NetworkIndicator, first.NetworkIndicator) {
			r.Error("BATCH_030", "trips.rendering_network_indicator",
				"network indicator disagrees within group (claim %s, trip %d)", d.ClmNumber, i)
			return nil, false
		}
		if t.MemberGroup != nil && first.MemberGroup != nil && *t.MemberGroup != *first.MemberGroup {
			r.Error("BATCH_030", "trips.member_group",
				"member group disagrees within group (claim %s, trip %d)", d.ClmNumber, i)
			return nil, false
		}

		s := *t.Service
		if s.DOS == "" {
			s.DOS = t.DOS
		}
		if s.Pickup == nil {
			s.Pickup = t.Pickup
		}
		if s.Dropoff == nil {
			s.Dropoff = t.Dropoff
		}
		if s.Supervising == nil {
			s.Supervising = t.Supervising
		}
		if s.Emergency == nil {
			s.Emergency = t.Emergency
		}
		if s.PaymentStatus == "" {
			s.PaymentStatus = t.PaymentStatus
		}
		if len(s.Adjudication) == 0 {
			s.Adjudication = t.Adjudication
		}
		c.Services = append(c.Services, &s)
		total += s.Charge
	}
	d.SubmissionChannel = channel
	d.TotalCharge = total
	return c, true
}

// disagrees reports a conflict between two populated values.
func disagrees(a, b string) bool {
	return a != "" && b != "" && a != b
}

func compact(date string) string {
	out := make([]byte, 0, len(date))
	for i := 0; i < len(date); i++ {
		if date[i] != '-' {
			out = append(out, date[i])
		}
	}
	return string(out)
}
