package claim

// Enrich fills cascading defaults and derived fields in place. Rules apply
// in a fixed order and the pass is idempotent: enriching an already
// enriched claim changes nothing.
//
// Enrichment never invents member_group, payment_status, or
// submission_channel; a missing value there stays missing for the
// validator to report.
func Enrich(c *Claim) {
	d := &c.Claim

	if d.To == "" {
		d.To = d.From
	}
	if d.POS == "" {
		d.POS = "41"
	}
	if d.FrequencyCode == "" {
		switch d.AdjustmentType {
		case "replacement":
			d.FrequencyCode = "7"
		case "void":
			d.FrequencyCode = "8"
		default:
			d.FrequencyCode = "1"
		}
	}

	for _, s := range c.Services {
		if s == nil {
			continue
		}
		if s.DOS == "" {
			s.DOS = d.From
		}
		if s.POS == "" {
			s.POS = d.POS
		}
		if s.Units == nil {
			one := 1.0
			s.Units = &one
		}
		if s.Emergency == nil {
			f := false
			s.Emergency = &f
		}
		if d.Ambulance != nil {
			if s.TripNumber == "" {
				s.TripNumber = d.Ambulance.TripNumber
			}
			if s.Pickup == nil && d.Ambulance.Pickup != nil {
				loc := *d.Ambulance.Pickup
				s.Pickup = &loc
			}
			if s.Dropoff == nil && d.Ambulance.Dropoff != nil {
				loc := *d.Ambulance.Dropoff
				s.Dropoff = &loc
			}
		}
		if s.PaymentStatus == "" {
			s.PaymentStatus = d.PaymentStatus
		}
	}

	// Kaizen fallback: every claim carries an identified renderer.
	if c.RenderingProvider == nil || (c.RenderingProvider.NPI == "" && c.RenderingProvider.Name == "") {
		bp := c.BillingProvider
		c.RenderingProvider = &bp
	}
}
