package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kaizen/nemt837/internal/domain/pipeline"
	"github.com/kaizen/nemt837/internal/platform/x12"
)

const claimJSON = `{
  "submitter": {"name": "KAIZEN HEALTH", "id": "KZN01"},
  "receiver": {"payer_name": "UNITEDHEALTHCARE", "payer_id": "87726"},
  "billing_provider": {
    "npi": "1111111111", "name": "RELIANT TRANSPORT LLC",
    "address": {"line1": "100 MAIN ST", "city": "LOUISVILLE", "state": "KY", "zip": "40202"}
  },
  "subscriber": {"member_id": "JOHN123456", "name": {"first": "JOHN", "last": "DOE"}},
  "claim": {
    "clm_number": "KZN-20260101-001", "total_charge": 62.5, "from": "2026-01-01",
    "payment_status": "P", "submission_channel": "ELECTRONIC", "rendering_network_indicator": "I",
    "member_group": {"group_id": "G1", "sub_group_id": "S1", "class_id": "C1", "plan_id": "P1", "product_id": "PR1"}
  },
  "services": [
    {"hcpcs": "A0130", "charge": 60},
    {"hcpcs": "A0425", "charge": 2.5, "units": 8}
  ]
}`

type fakeSequencer struct {
	isa, gs, file int
}

func (f *fakeSequencer) ControlNumbers(context.Context) (*x12.ControlNumbers, error) {
	f.isa++
	f.gs++
	return &x12.ControlNumbers{ISA: f.isa, GS: f.gs, ST: 1}, nil
}

func (f *fakeSequencer) NextFileSequence(context.Context, string) (int, error) {
	f.file++
	return f.file, nil
}

func testHandler(seq Sequencer) *Handler {
	cfg := pipeline.DefaultConfig()
	cfg.SenderID = "KAIZENSND"
	cfg.ReceiverID = "87726"
	cfg.GSSenderCode = "KAIZEN"
	cfg.GSReceiverCode = "UHC"
	cfg.Now = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	return NewHandler(cfg, "KY", seq, zerolog.Nop())
}

func post(t *testing.T, h echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h(e.NewContext(req, rec)); err != nil {
		e.HTTPErrorHandler(err, e.NewContext(req, rec))
	}
	return rec
}

func TestConvert(t *testing.T) {
	rec := post(t, testHandler(nil).Convert, claimJSON)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body)
	}
	var resp convertResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Valid {
		t.Errorf("expected valid conversion: %s", rec.Body)
	}
	if !strings.HasPrefix(resp.EDI, "ISA*") {
		t.Errorf("EDI missing from response: %q", resp.EDI)
	}
}

func TestConvert_InvalidClaim(t *testing.T) {
	bad := strings.Replace(claimJSON, `"npi": "1111111111"`, `"npi": "123"`, 1)
	rec := post(t, testHandler(nil).Convert, bad)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body: %s", rec.Code, rec.Body)
	}
	var resp convertResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.EDI != "" || resp.Valid {
		t.Error("invalid claim must return reports only")
	}
	if resp.PreReport == nil || resp.PreReport.Valid() {
		t.Error("pre-submission report must carry the error")
	}
}

func TestConvert_MalformedJSON(t *testing.T) {
	rec := post(t, testHandler(nil).Convert, "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestConvertBatch(t *testing.T) {
	trips := `[
  {
    "billing_provider": {"npi": "1111111111", "name": "RELIANT TRANSPORT LLC",
      "address": {"line1": "100 MAIN ST", "city": "LOUISVILLE", "state": "KY", "zip": "40202"}},
    "member": {"member_id": "JOHN123456", "name": {"first": "JOHN", "last": "DOE"}},
    "payer": {"payer_name": "UNITEDHEALTHCARE", "payer_id": "87726"},
    "submitter": {"name": "KAIZEN HEALTH", "id": "KZN01"},
    "dos": "2026-01-01",
    "service": {"hcpcs": "A0130", "charge": 60},
    "submission_channel": "ELECTRONIC", "payment_status": "P", "rendering_network_indicator": "I",
    "member_group": {"group_id": "G1", "sub_group_id": "S1", "class_id": "C1", "plan_id": "P1", "product_id": "PR1"}
  }
]`
	seq := &fakeSequencer{}
	rec := post(t, testHandler(seq).ConvertBatch, trips)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body)
	}
	var resp batchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Emitted != 1 || !resp.Valid {
		t.Errorf("expected one valid emitted claim: %s", rec.Body)
	}
	if resp.Filename != "TEST_INB_KYPROFKZN_01152026_001.dat" {
		t.Errorf("filename = %q", resp.Filename)
	}
	if !strings.Contains(resp.EDI, "ISA*") {
		t.Error("EDI missing from batch response")
	}
	if resp.RunID == "" {
		t.Error("run id missing")
	}
}
