package x12

import (
	"fmt"
	"strings"
)

// Seg is one parsed segment of an interchange.
type Seg struct {
	ID       string   // segment identifier, e.g. "CLM", "NM1", "K3"
	Elements []string // data elements, excluding the identifier
	Raw      string   // original segment text without terminator
	Index    int      // 0-based position in the interchange
}

// Element returns the 1-based element, or "" when absent.
func (s Seg) Element(n int) string {
	if n < 1 || n > len(s.Elements) {
		return ""
	}
	return s.Elements[n-1]
}

// Component returns the 1-based component of the 1-based element using the
// given component separator.
func (s Seg) Component(n, c int, componentSep string) string {
	el := s.Element(n)
	if el == "" {
		return ""
	}
	comps := strings.Split(el, componentSep)
	if c < 1 || c > len(comps) {
		return ""
	}
	return comps[c-1]
}

// Parse splits raw interchange bytes into segments using the given element
// separator and segment terminator. Whitespace around segments (pretty-mode
// newlines) is ignored. The delimiters normally come from the ISA segment of
// the same interchange; callers that emitted the bytes already know them.
func Parse(raw []byte, elementSep, segmentTerm string) ([]Seg, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("x12: interchange is empty")
	}
	if elementSep == "" {
		elementSep = DefaultElementSep
	}
	if segmentTerm == "" {
		segmentTerm = DefaultSegmentTerm
	}

	var segs []Seg
	for _, chunk := range strings.Split(string(raw), segmentTerm) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		parts := strings.Split(chunk, elementSep)
		segs = append(segs, Seg{
			ID:       parts[0],
			Elements: parts[1:],
			Raw:      chunk,
			Index:    len(segs),
		})
	}
	if len(segs) == 0 {
		return nil, fmt.Errorf("x12: no segments found")
	}
	return segs, nil
}
