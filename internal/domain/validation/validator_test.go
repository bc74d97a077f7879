package validation

import (
	"testing"

	"github.com/kaizen/nemt837/internal/domain/claim"
)

func f64(v float64) *float64 { return &v }

func validClaim() *claim.Claim {
	c := &claim.Claim{
		Submitter: claim.Party{Name: "KAIZEN HEALTH", ID: "KZN01"},
		Receiver:  claim.Receiver{PayerName: "UNITEDHEALTHCARE", PayerID: "87726"},
		BillingProvider: claim.Provider{
			NPI:   "1111111111",
			Name:  "RELIANT TRANSPORT LLC",
			TaxID: "123456789",
			Address: claim.Address{
				Line1: "100 MAIN ST", City: "LOUISVILLE", State: "KY", Zip: "40202",
			},
		},
		Subscriber: claim.Subscriber{
			MemberID: "JOHN123456",
			Name:     claim.PersonName{First: "JOHN", Last: "DOE"},
			DOB:      "1980-04-02",
			Sex:      "M",
		},
		Claim: claim.Detail{
			ClmNumber:         "KZN-20260101-001",
			TotalCharge:       62.50,
			From:              "2026-01-01",
			PaymentStatus:     "P",
			SubmissionChannel: "ELECTRONIC",
			NetworkIndicator:  "I",
			MemberGroup: claim.MemberGroup{
				GroupID: "G1", SubGroupID: "S1", ClassID: "C1", PlanID: "P1", ProductID: "PR1",
			},
		},
		Services: []*claim.Service{
			{HCPCS: "A0130", Charge: 60.00, Units: f64(1)},
			{HCPCS: "A0425", Charge: 2.50, Units: f64(8)},
		},
	}
	claim.Enrich(c)
	return c
}

func TestValidate_CleanClaim(t *testing.T) {
	r := Validate(validClaim())
	if !r.Valid() {
		t.Fatalf("expected valid claim, got:\n%s", r)
	}
	if len(r.Issues) != 0 {
		t.Errorf("expected no issues, got:\n%s", r)
	}
}

// =========== Format Checks ===========

func TestValidate_NPIFormat(t *testing.T) {
	c := validClaim()
	c.BillingProvider.NPI = "123"
	r := Validate(c)
	if !r.HasCode("VAL_002") {
		t.Errorf("expected VAL_002 for short NPI, got:\n%s", r)
	}

	c = validClaim()
	c.BillingProvider.NPI = ""
	r = Validate(c)
	if !r.HasCode("VAL_001") {
		t.Errorf("expected VAL_001 for missing NPI, got:\n%s", r)
	}
}

func TestValidate_AddressFormats(t *testing.T) {
	c := validClaim()
	c.BillingProvider.Address.State = "XX"
	c.BillingProvider.Address.Zip = "4020"
	r := Validate(c)
	if !r.HasCode("VAL_010") || !r.HasCode("VAL_012") {
		t.Errorf("expected VAL_010 and VAL_012, got:\n%s", r)
	}
}

func TestValidate_DateFormats(t *testing.T) {
	c := validClaim()
	c.Claim.From = "01/01/2026"
	r := Validate(c)
	if !r.HasCode("VAL_035") {
		t.Errorf("expected VAL_035 for bad from date, got:\n%s", r)
	}

	c = validClaim()
	c.Subscriber.DOB = "1980-13-40"
	if r := Validate(c); !r.HasCode("VAL_026") {
		t.Error("expected VAL_026 for impossible dob")
	}
}

func TestValidate_ArrivalTimeFormat(t *testing.T) {
	c := validClaim()
	c.Services[0].Pickup = &claim.Location{
		Line1: "1 ELM ST", City: "LOUISVILLE", State: "KY", Zip: "40202",
		ArrivalTime: "2575",
	}
	if r := Validate(c); !r.HasCode("VAL_057") {
		t.Error("expected VAL_057 for invalid HHMM time")
	}
}

// =========== Business Rules ===========

func TestValidate_NoServices(t *testing.T) {
	c := validClaim()
	c.Services = nil
	if r := Validate(c); !r.HasCode("VAL_040") {
		t.Error("expected VAL_040 for empty service list")
	}
}

func TestValidate_NullServiceEntry(t *testing.T) {
	// A null entry in the services array decodes to a nil pointer; the
	// validator must report it, not dereference it.
	c, err := claim.ParseClaim([]byte(`{
	  "claim": {"clm_number": "KZN-20260101-001", "total_charge": 60, "from": "2026-01-01"},
	  "services": [null, {"hcpcs": "A0130", "charge": 60}]
	}`))
	if err != nil {
		t.Fatalf("ParseClaim: %v", err)
	}
	claim.Enrich(c)
	r := Validate(c)
	if !r.HasCode("VAL_040") {
		t.Errorf("expected VAL_040 for null service entry, got:\n%s", r)
	}

	// Nil entries must not trip the charge-sum or adjacency scans either:
	// a mileage line behind a nil predecessor has no identifiable transport.
	c = validClaim()
	c.Services = []*claim.Service{
		{HCPCS: "A0130", Charge: 60.00, Units: f64(1)},
		nil,
		{HCPCS: "A0425", Charge: 2.50, Units: f64(8)},
	}
	r = Validate(c)
	if !r.HasCode("VAL_040") {
		t.Errorf("expected VAL_040 for interior null entry, got:\n%s", r)
	}
	if !r.HasCode("BATCH_020") {
		t.Errorf("mileage behind a null entry must report BATCH_020, got:\n%s", r)
	}
	if r.HasCode("VAL_050") {
		t.Errorf("charge sum must skip null entries, got:\n%s", r)
	}
}

func TestValidate_ModifierRules(t *testing.T) {
	c := validClaim()
	c.Services[0].Modifiers = []string{"RH", "HR", "QN", "GA", "GY"}
	if r := Validate(c); !r.HasCode("VAL_044") {
		t.Error("expected VAL_044 for 5 modifiers")
	}

	c = validClaim()
	c.Services[0].Modifiers = []string{"RHX"}
	if r := Validate(c); !r.HasCode("VAL_045") {
		t.Error("expected VAL_045 for 3-character modifier")
	}

	c = validClaim()
	c.Services[0].Modifiers = []string{"ZZ"}
	r := Validate(c)
	if !r.Valid() {
		t.Errorf("unknown modifier must warn, not reject:\n%s", r)
	}
	if !r.HasCode("VAL_047") {
		t.Error("expected VAL_047 warning for unknown modifier")
	}
}

func TestValidate_UnknownHCPCSWarns(t *testing.T) {
	c := validClaim()
	c.Services[0].HCPCS = "A9999"
	r := Validate(c)
	if !r.Valid() {
		t.Errorf("unknown HCPCS must warn, not reject:\n%s", r)
	}
	if !r.HasCode("VAL_046") {
		t.Error("expected VAL_046 warning for unknown HCPCS")
	}
}

func TestValidate_MemberGroupComplete(t *testing.T) {
	c := validClaim()
	c.Claim.MemberGroup.PlanID = ""
	if r := Validate(c); !r.HasCode("VAL_054") {
		t.Error("expected VAL_054 for incomplete member group")
	}
}

func TestValidate_OriginalClaimNumberForResubmissions(t *testing.T) {
	for _, freq := range []string{"6", "7", "8"} {
		c := validClaim()
		c.Claim.FrequencyCode = freq
		if freq == "8" {
			c.Claim.TotalCharge = 0
			for _, s := range c.Services {
				s.Charge = 0
			}
		}
		if r := Validate(c); !r.HasCode("VAL_039") {
			t.Errorf("frequency %s: expected VAL_039 without original claim number", freq)
		}
	}
}

func TestValidate_VoidAllowsZeroCharges(t *testing.T) {
	c := validClaim()
	c.Claim.FrequencyCode = "8"
	c.Claim.OriginalClaimNumber = "KZN-20260101-001"
	c.Claim.TotalCharge = 0
	for _, s := range c.Services {
		s.Charge = 0
	}
	if r := Validate(c); !r.Valid() {
		t.Errorf("void claim with zero charges must pass:\n%s", r)
	}
}

func TestValidate_ChargeSumMismatch(t *testing.T) {
	c := validClaim()
	c.Claim.TotalCharge = 100.00
	r := Validate(c)
	if !r.HasCode("VAL_050") {
		t.Errorf("expected VAL_050 for charge mismatch, got:\n%s", r)
	}
	if r.Valid() {
		t.Error("charge mismatch must be an error")
	}

	// Within tolerance passes.
	c = validClaim()
	c.Claim.TotalCharge = 62.509
	if r := Validate(c); !r.Valid() {
		t.Errorf("0.009 drift must be tolerated:\n%s", r)
	}
}

// =========== Mileage Adjacency ===========

func TestValidate_MileageFirstLine(t *testing.T) {
	c := validClaim()
	c.Services = []*claim.Service{
		{HCPCS: "A0425", Charge: 2.50, Units: f64(8)},
		{HCPCS: "A0130", Charge: 60.00, Units: f64(1)},
	}
	claim.Enrich(c)
	r := Validate(c)
	if !r.HasCode("BATCH_021") {
		t.Errorf("expected BATCH_021 for mileage-first, got:\n%s", r)
	}
	if r.Valid() {
		t.Error("mileage-first must block the claim")
	}
}

func TestValidate_ConsecutiveMileage(t *testing.T) {
	c := validClaim()
	c.Services = []*claim.Service{
		{HCPCS: "A0130", Charge: 55.00, Units: f64(1)},
		{HCPCS: "A0425", Charge: 2.50, Units: f64(1)},
		{HCPCS: "A0425", Charge: 5.00, Units: f64(2)},
	}
	c.Claim.TotalCharge = 62.50
	claim.Enrich(c)
	if r := Validate(c); !r.HasCode("BATCH_022") {
		t.Errorf("expected BATCH_022 for consecutive mileage lines")
	}
}

// =========== Warnings ===========

func TestValidate_SupervisingExpected(t *testing.T) {
	c := validClaim()
	c.Services[0].HCPCS = "A0110"
	r := Validate(c)
	if !r.Valid() {
		t.Errorf("missing supervising provider must not block:\n%s", r)
	}
	if !r.HasCode("VAL_048") {
		t.Error("expected VAL_048 warning for special-transport HCPCS")
	}

	c = validClaim()
	c.Services[0].HCPCS = "A0110"
	c.SupervisingProvider = &claim.PersonProvider{
		Name: claim.PersonName{First: "SUE", Last: "PERVISOR"}, NPI: "3333333333",
	}
	if r := Validate(c); r.HasCode("VAL_048") {
		t.Error("claim-level supervising provider must satisfy the check")
	}
}

func TestValidate_BothLevelLocationsWarn(t *testing.T) {
	c := validClaim()
	c.Claim.Ambulance = &claim.Ambulance{
		Pickup: &claim.Location{Line1: "1 A ST", City: "LOUISVILLE", State: "KY", Zip: "40202"},
	}
	c.Services[0].Pickup = &claim.Location{Line1: "2 B ST", City: "LEXINGTON", State: "KY", Zip: "40507"}
	r := Validate(c)
	if !r.Valid() {
		t.Errorf("location ambiguity must warn, not reject:\n%s", r)
	}
	if !r.HasCode("VAL_049") {
		t.Error("expected VAL_049 ambiguity warning")
	}
}
