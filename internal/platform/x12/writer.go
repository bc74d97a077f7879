package x12

import (
	"fmt"
	"strings"
	"time"
)

// Default delimiters per the 005010 companion guide.
const (
	DefaultElementSep    = "*"
	DefaultSegmentTerm   = "~"
	DefaultComponentSep  = ":"
	DefaultRepetitionSep = "^"
)

// WriterError reports an impossible writer state: a mandatory element missing
// after validation, or element content that collides with the configured
// delimiters. It aborts emission for the claim that caused it.
type WriterError struct {
	Tag string // segment tag being emitted, e.g. "CLM"
	Msg string
}

func (e *WriterError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("x12: segment %s: %s", e.Tag, e.Msg)
	}
	return "x12: " + e.Msg
}

// ControlNumbers holds the interchange, group and transaction-set counters
// for one interchange emission. Counters advance monotonically; the emitter
// owns this value exclusively while writing.
type ControlNumbers struct {
	ISA int
	GS  int
	ST  int
}

// NewControlNumbers returns counters starting at 1.
func NewControlNumbers() *ControlNumbers { return &ControlNumbers{ISA: 1, GS: 1, ST: 1} }

// NextISA returns the current ISA control number and advances it.
func (c *ControlNumbers) NextISA() int { v := c.ISA; c.ISA++; return v }

// NextGS returns the current GS control number and advances it.
func (c *ControlNumbers) NextGS() int { v := c.GS; c.GS++; return v }

// NextST returns the current ST control number and advances it.
func (c *ControlNumbers) NextST() int { v := c.ST; c.ST++; return v }

// Writer emits X12 segments into an in-memory buffer. It owns delimiter
// policy, trims trailing empty elements, and tracks the segment count since
// the most recent ST so the SE trailer can carry an exact total.
//
// The writer uses a sticky error: the first WriterError suppresses all later
// emission and is reported by Err.
type Writer struct {
	ElementSep    string
	SegmentTerm   string
	ComponentSep  string
	RepetitionSep string
	Pretty        bool // newline after each terminator, diagnostics only

	segments []string
	stStart  int // index of the current ST segment, -1 outside a transaction
	err      error
}

// NewWriter returns a writer with the default 005010 delimiters.
func NewWriter() *Writer {
	return &Writer{
		ElementSep:    DefaultElementSep,
		SegmentTerm:   DefaultSegmentTerm,
		ComponentSep:  DefaultComponentSep,
		RepetitionSep: DefaultRepetitionSep,
		stStart:       -1,
	}
}

// Err returns the first emission error, or nil.
func (w *Writer) Err() error { return w.err }

// Fail records a WriterError and suppresses all later emission. Callers use
// this when a record reaches the writer in a state validation should have
// rejected.
func (w *Writer) Fail(tag, format string, args ...interface{}) {
	w.fail(tag, format, args...)
}

// Segments returns the emitted segments, each carrying its terminator.
// Callers use this to splice a scratch transaction into an envelope writer.
func (w *Writer) Segments() ([]string, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.segments, nil
}

// SegmentCount returns the number of segments emitted so far.
func (w *Writer) SegmentCount() int { return len(w.segments) }

// fail records the sticky error if none is set yet.
func (w *Writer) fail(tag, format string, args ...interface{}) {
	if w.err == nil {
		w.err = &WriterError{Tag: tag, Msg: fmt.Sprintf(format, args...)}
	}
}

// checkElement rejects element content containing any reserved delimiter.
func (w *Writer) checkElement(tag, el string) bool {
	for _, sep := range []string{w.ElementSep, w.SegmentTerm, w.RepetitionSep} {
		if sep != "" && strings.Contains(el, sep) {
			w.fail(tag, "element %q contains reserved separator %q", el, sep)
			return false
		}
	}
	return true
}

// Composite joins components with the component separator, dropping trailing
// empty components.
func (w *Writer) Composite(components ...string) string {
	n := len(components)
	for n > 0 && components[n-1] == "" {
		n--
	}
	return strings.Join(components[:n], w.ComponentSep)
}

// Segment emits one segment: the tag, the elements joined with the element
// separator, and the terminator. Trailing empty elements are trimmed so the
// segment truncates at its last populated element.
func (w *Writer) Segment(tag string, elements ...string) {
	if w.err != nil {
		return
	}
	n := len(elements)
	for n > 0 && elements[n-1] == "" {
		n--
	}
	parts := make([]string, 0, n+1)
	parts = append(parts, tag)
	for _, el := range elements[:n] {
		if !w.checkElement(tag, el) {
			return
		}
		parts = append(parts, el)
	}
	w.segments = append(w.segments, strings.Join(parts, w.ElementSep)+w.SegmentTerm)
}

// Raw appends a pre-built segment. The segment must already carry the
// terminator; ISA uses this because its elements are fixed-width and must not
// be trimmed.
func (w *Writer) Raw(seg string) {
	if w.err != nil {
		return
	}
	if !strings.HasSuffix(seg, w.SegmentTerm) {
		w.fail("", "raw segment %q missing terminator", seg)
		return
	}
	w.segments = append(w.segments, seg)
}

// pad right-pads s with spaces to length, truncating if longer.
func pad(s string, length int) string {
	if len(s) > length {
		return s[:length]
	}
	return s + strings.Repeat(" ", length-len(s))
}

// zero left-pads n with zeros to length.
func zero(n, length int) string {
	return fmt.Sprintf("%0*d", length, n)
}

// ISA emits the fixed-width interchange header. All sixteen elements are
// present at their mandated widths; ISA16 carries the component separator.
func (w *Writer) ISA(senderQual, senderID, receiverQual, receiverID, usageIndicator string, controlNumber int, at time.Time) {
	if w.err != nil {
		return
	}
	elems := []string{
		"ISA",
		"00", pad("", 10),
		"00", pad("", 10),
		pad(senderQual, 2), pad(senderID, 15),
		pad(receiverQual, 2), pad(receiverID, 15),
		at.Format("060102"), at.Format("1504"),
		w.RepetitionSep,
		pad("00501", 5),
		zero(controlNumber, 9),
		"0",
		pad(usageIndicator, 1),
		w.ComponentSep,
	}
	w.segments = append(w.segments, strings.Join(elems, w.ElementSep)+w.SegmentTerm)
}

// IEA emits the interchange trailer. numGroups must equal the GS/GE pair
// count and controlNumber must match ISA13.
func (w *Writer) IEA(numGroups, controlNumber int) {
	w.Segment("IEA", fmt.Sprintf("%d", numGroups), zero(controlNumber, 9))
}

// GS emits the functional group header for the 837 professional guide.
func (w *Writer) GS(senderCode, receiverCode string, controlNumber int, at time.Time) {
	w.Segment("GS", "HC", senderCode, receiverCode,
		at.Format("20060102"), at.Format("1504"),
		fmt.Sprintf("%d", controlNumber), "X", "005010X222A1")
}

// GE emits the functional group trailer.
func (w *Writer) GE(numTxSets, controlNumber int) {
	w.Segment("GE", fmt.Sprintf("%d", numTxSets), fmt.Sprintf("%d", controlNumber))
}

// ST opens an 837 transaction set and starts the SE segment count.
func (w *Writer) ST(controlNumber int) {
	w.Segment("ST", "837", zero(controlNumber, 4), "005010X222A1")
	w.stStart = len(w.segments) - 1
}

// SE closes the transaction set. SE01 is the count of segments from ST to SE
// inclusive; SE02 must match ST02.
func (w *Writer) SE(controlNumber int) {
	if w.err != nil {
		return
	}
	if w.stStart < 0 {
		w.fail("SE", "SE emitted outside a transaction set")
		return
	}
	count := len(w.segments) - w.stStart + 1
	w.Segment("SE", fmt.Sprintf("%d", count), zero(controlNumber, 4))
	w.stStart = -1
}

// Bytes assembles the interchange. The result is a single continuous byte
// stream unless Pretty is set, which inserts a newline after each terminator
// for diagnostics.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	sep := ""
	if w.Pretty {
		sep = "\n"
	}
	return []byte(strings.Join(w.segments, sep)), nil
}
