package payer

import (
	"regexp"
	"strings"

	"github.com/kaizen/nemt837/internal/domain/codes"
	"github.com/kaizen/nemt837/internal/domain/report"
	"github.com/kaizen/nemt837/internal/platform/x12"
)

// k3Patterns maps each K3 tag to its value grammar. Tags and values are
// case-sensitive; separators are exact.
var k3Patterns = map[string]*regexp.Regexp{
	"PYMS":   regexp.MustCompile(`^(P|D)$`),
	"SNWK":   regexp.MustCompile(`^(I|O)$`),
	"TRPN":   regexp.MustCompile(`^ASPUFE(ELECTRONIC|PAPER)$`),
	"SUB":    regexp.MustCompile(`^.+$`),
	"IPAD":   regexp.MustCompile(`^.+$`),
	"USER":   regexp.MustCompile(`^.+$`),
	"DREC":   regexp.MustCompile(`^\d{8}$`),
	"DADJ":   regexp.MustCompile(`^\d{8}$`),
	"PAIDDT": regexp.MustCompile(`^\d{8}$`),
	"AL1":    regexp.MustCompile(`^.+$`),
	"AL2":    regexp.MustCompile(`^.+$`),
	"CY":     regexp.MustCompile(`^.+$`),
	"ST":     regexp.MustCompile(`^[A-Z]{2}$`),
	"ZIP":    regexp.MustCompile(`^\d{5}(-\d{4})?$`),
}

// Validate runs the payer content rules for the named rule set against an
// emitted interchange. Only "UHC" is defined today; unknown rule sets get
// the same baseline checks.
func Validate(raw []byte, ruleSet string) *report.Report {
	return ValidateWith(raw, ruleSet, x12.DefaultElementSep, x12.DefaultSegmentTerm, x12.DefaultComponentSep)
}

// ValidateWith is Validate with explicit delimiters.
func ValidateWith(raw []byte, ruleSet, elementSep, segmentTerm, componentSep string) *report.Report {
	r := report.New("payer")
	segs, err := x12.Parse(raw, elementSep, segmentTerm)
	if err != nil {
		r.Error("PARSE_001", "", "interchange does not parse: %v", err)
		return r
	}
	_ = ruleSet

	seen := map[[3]string]bool{}
	for _, tx := range transactions(segs) {
		checkK3Grammar(r, tx)
		checkMemberGroupNote(r, tx)
		checkSupervising(r, tx, componentSep)
		checkDeniedAdjustments(r, tx)
		checkDuplicateTriple(r, tx, seen, componentSep)
	}
	return r
}

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

// checkK3Grammar verifies every K3 value is a semicolon-joined sequence of
// known TAG-value pairs with per-tag value grammars.
func checkK3Grammar(r *report.Report, tx []x12.Seg) {
	for _, s := range tx {
		if s.ID != "K3" {
			continue
		}
		value := s.Element(1)
		if value == "" {
			r.Error("UHC_001", "K3", "empty K3 segment")
			continue
		}
		for _, part := range strings.Split(value, ";") {
			tag, rest, ok := strings.Cut(part, "-")
			if !ok {
				r.Error("UHC_001", "K3", "K3 entry %q is not in TAG-value form", part)
				continue
			}
			re, known := k3Patterns[tag]
			if !known {
				r.Error("UHC_001", "K3", "unknown K3 tag %q", tag)
				continue
			}
			if !re.MatchString(rest) {
				r.Error("UHC_001", "K3", "K3 value %q does not match the %s grammar", part, tag)
			}
		}
	}
}

// checkMemberGroupNote requires the NTE*ADD*GRP- member group note on every
// claim.
func checkMemberGroupNote(r *report.Report, tx []x12.Seg) {
	for _, s := range tx {
		if s.ID == "NTE" && s.Element(1) == "ADD" && strings.HasPrefix(s.Element(2), "GRP-") {
			return
		}
	}
	r.Error("UHC_002", "NTE", "claim is missing the member group note (NTE*ADD*GRP-...)")
}

// checkSupervising requires a supervising provider loop (NM1*DQ) when any
// service line bills a special-transport HCPCS.
func checkSupervising(r *report.Report, tx []x12.Seg, componentSep string) {
	needs := ""
	for _, s := range tx {
		if s.ID != "SV1" {
			continue
		}
		if code := s.Component(1, 2, componentSep); codes.RequiresSupervising(code) {
			needs = code
			break
		}
	}
	if needs == "" {
		return
	}
	for _, s := range tx {
		if s.ID == "NM1" && s.Element(1) == "DQ" {
			return
		}
	}
	r.Error("UHC_003", "NM1*DQ",
		"HCPCS %s requires a supervising provider loop", needs)
}

// checkDeniedAdjustments requires a CAS at the level a denial is declared:
// a claim-level PYMS-D needs a CAS before the first LX, a line-level PYMS-D
// needs a CAS within its 2400 span.
func checkDeniedAdjustments(r *report.Report, tx []x12.Seg) {
	firstLX := len(tx)
	for i, s := range tx {
		if s.ID == "LX" {
			firstLX = i
			break
		}
	}

	claimDenied, claimCAS := false, false
	for i := 0; i < firstLX; i++ {
		switch tx[i].ID {
		case "K3":
			if tx[i].Element(1) == "PYMS-D" {
				claimDenied = true
			}
		case "CAS":
			claimCAS = true
		}
	}
	if claimDenied && !claimCAS {
		r.Error("UHC_004", "CAS", "denied claim carries no claim-level CAS adjustment")
	}

	var lxIdx []int
	for i := firstLX; i < len(tx); i++ {
		if tx[i].ID == "LX" {
			lxIdx = append(lxIdx, i)
		}
	}
	for n, start := range lxIdx {
		end := len(tx)
		if n+1 < len(lxIdx) {
			end = lxIdx[n+1]
		}
		denied, cas := false, false
		for i := start; i < end; i++ {
			switch tx[i].ID {
			case "K3":
				if tx[i].Element(1) == "PYMS-D" {
					denied = true
				}
			case "CAS":
				cas = true
			}
		}
		if denied && !cas {
			r.Error("UHC_005", "CAS", "denied service line %d carries no CAS adjustment", n+1)
		}
	}
}

// checkDuplicateTriple enforces the NEMIS duplicate criterion: the triple
// (CLM01, CLM05-3, REF*F8) must be unique within the interchange.
func checkDuplicateTriple(r *report.Report, tx []x12.Seg, seen map[[3]string]bool, componentSep string) {
	var key [3]string
	for _, s := range tx {
		switch s.ID {
		case "CLM":
			key[0] = s.Element(1)
			key[1] = s.Component(5, 3, componentSep)
		case "REF":
			if s.Element(1) == "F8" {
				key[2] = s.Element(2)
			}
		}
	}
	if key[0] == "" {
		return
	}
	if seen[key] {
		r.Error("UHC_010", "CLM",
			"duplicate claim triple (%s, %s, %s) within the interchange", key[0], key[1], key[2])
		return
	}
	seen[key] = true
}
