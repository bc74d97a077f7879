package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/kaizen/nemt837/internal/domain/claim"
)

func f64(v float64) *float64 { return &v }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SenderID = "KAIZENSND"
	cfg.ReceiverID = "87726"
	cfg.GSSenderCode = "KAIZEN"
	cfg.GSReceiverCode = "UHC"
	cfg.Now = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	return cfg
}

func testClaim() *claim.Claim {
	return &claim.Claim{
		Submitter: claim.Party{Name: "KAIZEN HEALTH", ID: "KZN01"},
		Receiver:  claim.Receiver{PayerName: "UNITEDHEALTHCARE", PayerID: "87726"},
		BillingProvider: claim.Provider{
			NPI: "1111111111", Name: "RELIANT TRANSPORT LLC", TaxID: "123456789",
			Address: claim.Address{Line1: "100 MAIN ST", City: "LOUISVILLE", State: "KY", Zip: "40202"},
		},
		Subscriber: claim.Subscriber{
			MemberID: "JOHN123456",
			Name:     claim.PersonName{First: "JOHN", Last: "DOE"},
		},
		Claim: claim.Detail{
			ClmNumber: "KZN-20260101-001", TotalCharge: 62.50, From: "2026-01-01",
			PaymentStatus: "P", SubmissionChannel: "ELECTRONIC", NetworkIndicator: "I",
			MemberGroup: claim.MemberGroup{
				GroupID: "G1", SubGroupID: "S1", ClassID: "C1", PlanID: "P1", ProductID: "PR1",
			},
		},
		Services: []*claim.Service{
			{HCPCS: "A0130", Charge: 60.00},
			{HCPCS: "A0425", Charge: 2.50, Units: f64(8)},
		},
	}
}

func testTrip(npi, name, memberID string, charge float64, hcpcs string) *claim.Trip {
	return &claim.Trip{
		BillingProvider: &claim.Provider{
			NPI: npi, Name: name,
			Address: claim.Address{Line1: "100 MAIN ST", City: "LOUISVILLE", State: "KY", Zip: "40202"},
		},
		RenderingProvider: &claim.Provider{
			NPI: npi, Name: name,
			Address: claim.Address{Line1: "100 MAIN ST", City: "LOUISVILLE", State: "KY", Zip: "40202"},
		},
		Member: claim.Subscriber{
			MemberID: memberID,
			Name:     claim.PersonName{First: "JOHN", Last: "DOE"},
		},
		Payer:     &claim.Receiver{PayerName: "UNITEDHEALTHCARE", PayerID: "87726"},
		Submitter: &claim.Party{Name: "KAIZEN HEALTH", ID: "KZN01"},
		DOS:       "2026-01-01",
		Service:   &claim.Service{HCPCS: hcpcs, Charge: charge},

		SubmissionChannel: "ELECTRONIC",
		PaymentStatus:     "P",
		NetworkIndicator:  "I",
		MemberGroup: &claim.MemberGroup{
			GroupID: "G1", SubGroupID: "S1", ClassID: "C1", PlanID: "P1", ProductID: "PR1",
		},
	}
}

// ===== End-to-end scenarios =====

func TestBuildBatch_SingleLegSingleProvider(t *testing.T) {
	trips := []*claim.Trip{
		testTrip("1111111111", "RELIANT TRANSPORT LLC", "JOHN123456", 60.00, "A0130"),
		testTrip("1111111111", "RELIANT TRANSPORT LLC", "JOHN123456", 2.50, "A0425"),
	}
	trips[1].Service.Units = f64(8)

	res, err := BuildBatch(trips, testConfig())
	if err != nil {
		t.Fatalf("BuildBatch: %v", err)
	}
	if !res.Valid() {
		t.Fatalf("batch must be valid:\nbatch: %s\ncompliance: %s\npayer: %s",
			res.BatchReport, res.ComplianceReport, res.PayerReport)
	}
	out := string(res.EDI)
	if n := strings.Count(out, "ST*837*"); n != 1 {
		t.Errorf("expected one transaction set, got %d", n)
	}
	if !strings.Contains(out, "CLM*KZN-20260101-001*62.50*") {
		t.Errorf("expected generated claim number and summed charge in CLM:\n%s", out)
	}
	if n := strings.Count(out, "LX*"); n != 2 {
		t.Errorf("expected 2 LX segments, got %d", n)
	}
	if res.Emitted != 1 {
		t.Errorf("Emitted = %d, want 1", res.Emitted)
	}
}

func TestBuildBatch_ThreeProvidersShareEnvelope(t *testing.T) {
	trips := []*claim.Trip{
		testTrip("2222222222", "CAB CO", "JOHN123456", 180.00, "A0130"),
		testTrip("4444444444", "ABC TRANSIT", "JOHN123456", 225.00, "A0130"),
		testTrip("6666666666", "DEF MEDVAN", "JOHN123456", 220.00, "A0130"),
	}
	res, err := BuildBatch(trips, testConfig())
	if err != nil {
		t.Fatalf("BuildBatch: %v", err)
	}
	if !res.Valid() {
		t.Fatalf("batch must be valid:\nbatch: %s\ncompliance: %s\npayer: %s",
			res.BatchReport, res.ComplianceReport, res.PayerReport)
	}
	out := string(res.EDI)
	if n := strings.Count(out, "ISA*"); n != 1 {
		t.Errorf("expected a single ISA, got %d", n)
	}
	if n := strings.Count(out, "ST*837*"); n != 3 {
		t.Errorf("expected three transaction sets, got %d", n)
	}
	if !strings.Contains(out, "GE*3*") {
		t.Errorf("GE01 must count three transactions:\n%s", out)
	}
	clms := map[string]bool{}
	for _, seg := range strings.Split(out, "~") {
		if strings.HasPrefix(seg, "CLM*") {
			clms[strings.SplitN(seg, "*", 3)[1]] = true
		}
	}
	if len(clms) != 3 {
		t.Errorf("expected three distinct claim numbers, got %v", clms)
	}
}

func TestBuild_ReplacementClaim(t *testing.T) {
	c := testClaim()
	c.Claim.ClmNumber = "ABC-42"
	c.Claim.FrequencyCode = "7"
	c.Claim.OriginalClaimNumber = "ABC-42"
	c.Claim.TotalCharge = 150.00
	c.Services = []*claim.Service{{HCPCS: "A0130", Charge: 150.00}}

	res, err := Build(c, testConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !res.Valid() {
		t.Fatalf("replacement claim must pass:\npre: %s\ncompliance: %s\npayer: %s",
			res.PreReport, res.ComplianceReport, res.PayerReport)
	}
	out := string(res.EDI)
	if !strings.Contains(out, "*41:B:7*") {
		t.Errorf("CLM05-3 must be 7:\n%s", out)
	}
	if !strings.Contains(out, "REF*F8*ABC-42~") {
		t.Errorf("expected REF*F8 with the original claim number:\n%s", out)
	}
}

func TestBuild_VoidClaim(t *testing.T) {
	c := testClaim()
	c.Claim.ClmNumber = "ABC-42"
	c.Claim.FrequencyCode = "8"
	c.Claim.OriginalClaimNumber = "ABC-42"
	c.Claim.TotalCharge = 0
	c.Services = []*claim.Service{{HCPCS: "A0130", Charge: 0}}

	res, err := Build(c, testConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !res.Valid() {
		t.Fatalf("void claim with zero total must pass:\npre: %s", res.PreReport)
	}
	out := string(res.EDI)
	if !strings.Contains(out, "*41:B:8*") {
		t.Errorf("CLM05-3 must be 8:\n%s", out)
	}
	if strings.Contains(out, "CAS*") {
		t.Errorf("void claim must carry no CAS:\n%s", out)
	}
	if !strings.Contains(out, "REF*F8*ABC-42~") {
		t.Errorf("expected REF*F8 on the void:\n%s", out)
	}
}

func TestBuild_DeniedAutoCAS(t *testing.T) {
	c := testClaim()
	c.Claim.PaymentStatus = "D"

	res, err := Build(c, testConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.EDI == nil {
		t.Fatalf("denied claim must still emit:\n%s", res.PreReport)
	}
	out := string(res.EDI)
	if !strings.Contains(out, "CAS*CO*45*62.50~") {
		t.Errorf("expected claim-level auto CAS:\n%s", out)
	}
	if !strings.Contains(out, "MOA**MA130~") {
		t.Errorf("expected MOA remark on denied claim:\n%s", out)
	}
	if !strings.Contains(out, "CAS*CO*45*60.00~") || !strings.Contains(out, "CAS*CO*45*2.50~") {
		t.Errorf("expected per-line auto CAS:\n%s", out)
	}
}

func TestBuild_MileageFirstBlocksEmission(t *testing.T) {
	c := testClaim()
	c.Services = []*claim.Service{
		{HCPCS: "A0425", Charge: 2.50, Units: f64(8)},
		{HCPCS: "A0130", Charge: 60.00},
	}
	c.Claim.TotalCharge = 62.50

	res, err := Build(c, testConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.EDI != nil {
		t.Fatal("mileage-first claim must not emit")
	}
	if !res.PreReport.HasCode("BATCH_021") {
		t.Errorf("expected BATCH_021 in the pre-submission report, got:\n%s", res.PreReport)
	}
}

// ===== Configuration behavior =====

func TestBuild_PayerPresetOverridesReceiver(t *testing.T) {
	c := testClaim()
	c.Receiver = claim.Receiver{PayerName: "WRONG", PayerID: "00000"}

	cfg := testConfig()
	cfg.ReceiverID = "" // let the preset supply ISA08
	cfg.PayerPreset = "UHC_CS"

	res, err := Build(c, cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out := string(res.EDI)
	if !strings.Contains(out, "NM1*PR*2*UNITED HEALTHCARE COMMUNITY & STATE*****PI*87726~") {
		t.Errorf("preset must override the payer loop:\n%s", out)
	}
	if !strings.Contains(out, "*ZZ*87726"+strings.Repeat(" ", 10)+"*") {
		t.Errorf("preset must fill ISA08 when unset:\n%s", out)
	}
}

func TestBuild_UnknownPresetFails(t *testing.T) {
	cfg := testConfig()
	cfg.PayerPreset = "ACME"
	if _, err := Build(testClaim(), cfg); err == nil {
		t.Fatal("unknown preset must fail loudly")
	}
}

func TestBuild_InvalidClaimReturnsReportOnly(t *testing.T) {
	c := testClaim()
	c.BillingProvider.NPI = "123" // not 10 digits

	res, err := Build(c, testConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.EDI != nil {
		t.Fatal("invalid claim must not emit")
	}
	if res.PreReport.Valid() {
		t.Fatal("pre-submission report must carry the NPI error")
	}
	if res.ComplianceReport != nil || res.PayerReport != nil {
		t.Error("post-emission reports must be absent when nothing was emitted")
	}
}

func TestBuildBatch_InvalidClaimExcluded(t *testing.T) {
	good := testTrip("1111111111", "RELIANT TRANSPORT LLC", "JOHN123456", 60.00, "A0130")
	bad := testTrip("123", "SHORT NPI CO", "JANE654321", 55.00, "A0130")

	res, err := BuildBatch([]*claim.Trip{good, bad}, testConfig())
	if err != nil {
		t.Fatalf("BuildBatch: %v", err)
	}
	if res.Emitted != 1 {
		t.Fatalf("only the valid claim should emit, got %d", res.Emitted)
	}
	if !res.BatchReport.HasCode("BATCH_040") {
		t.Errorf("expected BATCH_040 exclusion note:\n%s", res.BatchReport)
	}
	if len(res.ClaimReports) != 2 {
		t.Errorf("expected per-claim reports for both claims, got %d", len(res.ClaimReports))
	}
	if strings.Count(string(res.EDI), "ST*837*") != 1 {
		t.Error("excluded claim must not occupy a transaction set")
	}
}

func TestBuildBatch_AllInvalidReturnsReportsOnly(t *testing.T) {
	bad := testTrip("123", "SHORT NPI CO", "JANE654321", 55.00, "A0130")
	res, err := BuildBatch([]*claim.Trip{bad}, testConfig())
	if err != nil {
		t.Fatalf("BuildBatch: %v", err)
	}
	if res.EDI != nil {
		t.Fatal("all-invalid batch must emit nothing")
	}
	if res.Valid() {
		t.Fatal("all-invalid batch must not report valid")
	}
}
