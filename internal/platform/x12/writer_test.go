package x12

import (
	"strings"
	"testing"
	"time"
)

var testTime = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

// =========== Segment Emission ===========

func TestSegment_TrimsTrailingEmpties(t *testing.T) {
	w := NewWriter()
	w.Segment("NM1", "PW", "2", "", "", "")
	out, err := w.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "NM1*PW*2~" {
		t.Errorf("expected %q, got %q", "NM1*PW*2~", string(out))
	}
}

func TestSegment_KeepsInteriorEmpties(t *testing.T) {
	w := NewWriter()
	w.Segment("SV1", "HC:A0425", "2.50", "UN", "8", "", "", "41")
	out, _ := w.Bytes()
	if string(out) != "SV1*HC:A0425*2.50*UN*8***41~" {
		t.Errorf("unexpected segment: %q", string(out))
	}
}

func TestSegment_ReservedSeparatorFails(t *testing.T) {
	w := NewWriter()
	w.Segment("NTE", "ADD", "GRP-1~SGR-2")
	if _, err := w.Bytes(); err == nil {
		t.Fatal("expected WriterError for reserved separator")
	}
	we, ok := w.Err().(*WriterError)
	if !ok {
		t.Fatalf("expected *WriterError, got %T", w.Err())
	}
	if we.Tag != "NTE" {
		t.Errorf("expected tag NTE, got %q", we.Tag)
	}
}

func TestSegment_StickyErrorStopsEmission(t *testing.T) {
	w := NewWriter()
	w.Segment("K3", "bad*value")
	w.Segment("K3", "fine")
	if w.SegmentCount() != 0 {
		t.Errorf("expected no segments after error, got %d", w.SegmentCount())
	}
}

func TestComposite_DropsTrailingEmpties(t *testing.T) {
	w := NewWriter()
	if got := w.Composite("41", "B", "1"); got != "41:B:1" {
		t.Errorf("expected 41:B:1, got %q", got)
	}
	if got := w.Composite("HC", "A0130", "", ""); got != "HC:A0130" {
		t.Errorf("expected HC:A0130, got %q", got)
	}
}

// =========== Envelope ===========

func TestISA_FixedWidth(t *testing.T) {
	w := NewWriter()
	w.ISA("ZZ", "SENDERID", "ZZ", "RECEIVERID", "T", 1, testTime)
	out, _ := w.Bytes()
	seg := string(out)

	if !strings.HasPrefix(seg, "ISA*00*") {
		t.Fatalf("unexpected ISA prefix: %q", seg)
	}
	elems := strings.Split(strings.TrimSuffix(seg, "~"), "*")
	if len(elems) != 17 {
		t.Fatalf("ISA must carry 16 elements, got %d", len(elems)-1)
	}
	if elems[6] != "SENDERID       " {
		t.Errorf("ISA06 must be 15 chars, got %q", elems[6])
	}
	if elems[13] != "000000001" {
		t.Errorf("ISA13 must be zero-padded to 9, got %q", elems[13])
	}
	if elems[16] != ":" {
		t.Errorf("ISA16 must carry the component separator, got %q", elems[16])
	}
}

func TestSE_CountsFromST(t *testing.T) {
	w := NewWriter()
	w.ISA("ZZ", "S", "ZZ", "R", "T", 1, testTime)
	w.GS("S", "R", 1, testTime)
	w.ST(1)
	w.Segment("BHT", "0019", "00", "REF", "20260115", "0930", "CH")
	w.Segment("CLM", "X1", "60.00")
	w.SE(1)
	w.GE(1, 1)
	w.IEA(1, 1)

	out, err := w.Bytes()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// ST + BHT + CLM + SE = 4
	if !strings.Contains(string(out), "SE*4*0001~") {
		t.Errorf("expected SE*4*0001 in %q", string(out))
	}
}

func TestSE_OutsideTransactionFails(t *testing.T) {
	w := NewWriter()
	w.SE(1)
	if w.Err() == nil {
		t.Fatal("expected error for SE without ST")
	}
}

func TestWriter_PrettyMode(t *testing.T) {
	w := NewWriter()
	w.Pretty = true
	w.Segment("GE", "1", "1")
	w.Segment("IEA", "1", "000000001")
	out, _ := w.Bytes()
	if string(out) != "GE*1*1~\nIEA*1*000000001~" {
		t.Errorf("unexpected pretty output: %q", string(out))
	}
}

// =========== Control Numbers ===========

func TestControlNumbers_Monotonic(t *testing.T) {
	cn := NewControlNumbers()
	if cn.NextISA() != 1 || cn.NextISA() != 2 {
		t.Error("ISA counter must advance monotonically")
	}
	if cn.NextST() != 1 || cn.NextST() != 2 || cn.NextST() != 3 {
		t.Error("ST counter must advance monotonically")
	}
	if cn.NextGS() != 1 {
		t.Error("GS counter must start at 1")
	}
}
