// Package compliance re-parses an emitted interchange and verifies the
// structural guarantees the writer is supposed to uphold: envelope balance,
// control-number agreement, required segments, and the NEMT loop-order
// rules. It never trusts the writer's internal counters; everything is
// derived from the bytes.
package compliance

import (
	"strconv"
	"strings"

	"github.com/kaizen/nemt837/internal/domain/codes"
	"github.com/kaizen/nemt837/internal/domain/report"
	"github.com/kaizen/nemt837/internal/platform/x12"
)

// Check parses raw with the default delimiters and runs every compliance
// rule against it.
func Check(raw []byte) *report.Report {
	return CheckWith(raw, x12.DefaultElementSep, x12.DefaultSegmentTerm, x12.DefaultComponentSep)
}

// CheckWith is Check with explicit delimiters, for interchanges written with
// overridden separators.
func CheckWith(raw []byte, elementSep, segmentTerm, componentSep string) *report.Report {
	r := report.New("compliance")
	segs, err := x12.Parse(raw, elementSep, segmentTerm)
	if err != nil {
		r.Error("PARSE_001", "", "interchange does not parse: %v", err)
		return r
	}

	checkEnvelope(r, segs)
	for _, tx := range transactions(segs) {
		checkTransaction(r, tx, componentSep)
	}
	return r
}

func checkEnvelope(r *report.Report, segs []x12.Seg) {
	if segs[0].ID != "ISA" {
		r.Error("ENV_001", "ISA", "interchange must start with ISA, got %s", segs[0].ID)
	}
	if segs[len(segs)-1].ID != "IEA" {
		r.Error("ENV_002", "IEA", "interchange must end with IEA, got %s", segs[len(segs)-1].ID)
	}

	count := func(id string) int {
		n := 0
		for _, s := range segs {
			if s.ID == id {
				n++
			}
		}
		return n
	}
	gs, ge := count("GS"), count("GE")
	if gs != ge {
		r.Error("ENV_003", "GS", "mismatched GS/GE: %d GS vs %d GE", gs, ge)
	}
	st, se := count("ST"), count("SE")
	if st != se {
		r.Error("ENV_004", "ST", "mismatched ST/SE: %d ST vs %d SE", st, se)
	}

	var isa, iea, gsSeg, geSeg *x12.Seg
	for i := range segs {
		switch segs[i].ID {
		case "ISA":
			isa = &segs[i]
		case "IEA":
			iea = &segs[i]
		case "GS":
			gsSeg = &segs[i]
		case "GE":
			geSeg = &segs[i]
		}
	}
	if isa != nil && iea != nil {
		if strings.TrimSpace(isa.Element(13)) != strings.TrimSpace(iea.Element(2)) {
			r.Error("ENV_005", "IEA02", "interchange control number %s does not match ISA13 %s",
				iea.Element(2), isa.Element(13))
		}
		if n, err := strconv.Atoi(iea.Element(1)); err == nil && n != gs {
			r.Error("ENV_010", "IEA01", "IEA01 reports %d groups, interchange carries %d", n, gs)
		}
	}
	if gsSeg != nil && geSeg != nil {
		if gsSeg.Element(6) != geSeg.Element(2) {
			r.Error("ENV_006", "GE02", "group control number %s does not match GS06 %s",
				geSeg.Element(2), gsSeg.Element(6))
		}
		if n, err := strconv.Atoi(geSeg.Element(1)); err == nil && n != st {
			r.Error("ENV_009", "GE01", "GE01 reports %d transaction sets, group carries %d", n, st)
		}
	}
}

// transactions slices the parsed stream into ST..SE spans, inclusive.
func transactions(segs []x12.Seg) [][]x12.Seg {
	var out [][]x12.Seg
	start := -1
	for i, s := range segs {
		switch s.ID {
		case "ST":
			start = i
		case "SE":
			if start >= 0 {
				out = append(out, segs[start:i+1])
				start = -1
			}
		}
	}
	return out
}

func checkTransaction(r *report.Report, tx []x12.Seg, componentSep string) {
	st, se := tx[0], tx[len(tx)-1]

	if st.Element(2) != se.Element(2) {
		r.Error("ENV_007", "SE02", "SE02 %s does not match ST02 %s", se.Element(2), st.Element(2))
	}
	if n, err := strconv.Atoi(se.Element(1)); err == nil && n != len(tx) {
		r.Error("ENV_008", "SE01", "SE01 reports %d segments, transaction carries %d", n, len(tx))
	}

	has := func(id string) bool {
		for _, s := range tx {
			if s.ID == id {
				return true
			}
		}
		return false
	}
	nm1With := func(qual string) []int {
		var idx []int
		for i, s := range tx {
			if s.ID == "NM1" && s.Element(1) == qual {
				idx = append(idx, i)
			}
		}
		return idx
	}

	if !has("BHT") {
		r.Error("LOOP_004", "BHT", "transaction is missing the BHT segment")
	}
	if len(nm1With("85")) == 0 {
		r.Error("LOOP_005", "2010AA", "transaction is missing the billing provider NM1*85")
	}
	if len(nm1With("IL")) == 0 {
		r.Error("LOOP_006", "2010BA", "transaction is missing the subscriber NM1*IL")
	}

	var clmIdx, lxIdx, cr1Idx, sv1Idx []int
	for i, s := range tx {
		switch s.ID {
		case "CLM":
			clmIdx = append(clmIdx, i)
		case "LX":
			lxIdx = append(lxIdx, i)
		case "CR1":
			cr1Idx = append(cr1Idx, i)
		case "SV1":
			sv1Idx = append(sv1Idx, i)
		}
	}
	if len(clmIdx) == 0 {
		r.Error("LOOP_001", "CLM", "transaction carries no claim loop")
		return
	}
	if len(sv1Idx) == 0 {
		r.Error("LOOP_007", "SV1", "claim carries no service line")
	}
	if len(cr1Idx) > 1 {
		r.Error("NEMT_005", "CR1", "at most one CR1 is allowed per claim, found %d", len(cr1Idx))
	}
	if len(cr1Idx) == 0 {
		r.Warn("NEMT_001", "CR1", "no CR1 segment; expected on ambulance claims")
	}

	checkEmergencyIndicator(r, tx, sv1Idx)
	checkServiceLineOrdering(r, tx, lxIdx)
	checkLocationLevels(r, tx, clmIdx[0], lxIdx)
	checkMileageAdjacency(r, tx, sv1Idx, componentSep)
}

// checkEmergencyIndicator rejects SV1 segments carrying the emergency flag
// in element 10; the guide places it in element 11.
func checkEmergencyIndicator(r *report.Report, tx []x12.Seg, sv1Idx []int) {
	for _, i := range sv1Idx {
		s := tx[i]
		if v := s.Element(10); v == "Y" || v == "N" {
			r.Error("NEMT_002", "SV110",
				"emergency indicator found in SV110; it belongs in SV111")
		}
	}
}

// checkServiceLineOrdering verifies K3 precedes every NM1 provider loop
// inside each 2400 span.
func checkServiceLineOrdering(r *report.Report, tx []x12.Seg, lxIdx []int) {
	for n, start := range lxIdx {
		end := len(tx)
		if n+1 < len(lxIdx) {
			end = lxIdx[n+1]
		}
		firstK3, firstNM1 := -1, -1
		for i := start; i < end; i++ {
			switch tx[i].ID {
			case "K3":
				if firstK3 < 0 {
					firstK3 = i
				}
			case "NM1":
				if firstNM1 < 0 {
					firstNM1 = i
				}
			}
		}
		if firstK3 >= 0 && firstNM1 >= 0 && firstK3 > firstNM1 {
			r.Error("ORDER_001", "2400",
				"K3 must precede the provider loops within a service line")
		}
	}
}

// checkLocationLevels warns when pickup or dropoff loops appear at both the
// claim level (2310E/F) and the service level (2420G/H); the qualifiers are
// identical and downstream parsers may disagree on precedence.
func checkLocationLevels(r *report.Report, tx []x12.Seg, clmIdx int, lxIdx []int) {
	if len(lxIdx) == 0 {
		return
	}
	firstLX := lxIdx[0]
	for _, loc := range []struct {
		qual, code, what string
	}{
		{"PW", "LOOP_002", "pickup"},
		{"45", "LOOP_003", "dropoff"},
	} {
		claimLevel, serviceLevel := false, false
		for i, s := range tx {
			if s.ID != "NM1" || s.Element(1) != loc.qual {
				continue
			}
			if i > clmIdx && i < firstLX {
				claimLevel = true
			}
			if i > firstLX {
				serviceLevel = true
			}
		}
		if claimLevel && serviceLevel {
			r.Warn(loc.code, "NM1*"+loc.qual,
				"%s location present at both claim and service level", loc.what)
		}
	}
}

// checkMileageAdjacency re-derives the transport-then-mileage rule from the
// emitted SV1 sequence.
func checkMileageAdjacency(r *report.Report, tx []x12.Seg, sv1Idx []int, componentSep string) {
	hcpcsOf := func(i int) string {
		return tx[i].Component(1, 2, componentSep)
	}
	for n, i := range sv1Idx {
		code := hcpcsOf(i)
		if !codes.IsMileage(code) {
			continue
		}
		if n == 0 {
			r.Error("NEMT_003", "SV1",
				"mileage code %s appears as the first service line", code)
			continue
		}
		if prev := hcpcsOf(sv1Idx[n-1]); codes.IsMileage(prev) {
			r.Warn("NEMT_004", "SV1",
				"consecutive mileage codes %s, %s", prev, code)
		}
	}
}
