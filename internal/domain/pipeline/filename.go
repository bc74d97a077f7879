package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kaizen/nemt837/internal/domain/codes"
)

// Vendor submission files are named
// INB_<StateCode>PROFKZN_MMDDYYYY_<seq>.dat, with a TEST_ prefix on test
// submissions. The sequence is zero-padded to at least three digits.

var filenameRe = regexp.MustCompile(`^(TEST_)?INB_([A-Za-z]{2})PROFKZN_(\d{8})_(\d{3,})\.dat$`)

// Filename returns the canonical submission file name for a batch.
func Filename(stateCode string, date time.Time, sequence int, test bool) string {
	prefix := "INB_"
	if test {
		prefix = "TEST_" + prefix
	}
	return fmt.Sprintf("%s%sPROFKZN_%s_%03d.dat",
		prefix, strings.ToUpper(stateCode), date.Format("01022006"), sequence)
}

// ValidateFilename checks a submission file name against the vendor
// convention. The test flag states whether a TEST_ prefix is expected.
func ValidateFilename(name string, test bool) error {
	m := filenameRe.FindStringSubmatch(name)
	if m == nil {
		return fmt.Errorf("pipeline: filename %q does not match (TEST_)INB_<ST>PROFKZN_MMDDYYYY_<seq>.dat", name)
	}
	hasTest := m[1] != ""
	if test && !hasTest {
		return fmt.Errorf("pipeline: test submission file must start with TEST_INB_")
	}
	if !test && hasTest {
		return fmt.Errorf("pipeline: production submission file must not carry the TEST_ prefix")
	}
	state := strings.ToUpper(m[2])
	if !codes.ValidState(state) {
		return fmt.Errorf("pipeline: unknown state code %q in filename", state)
	}
	date, err := time.Parse("01022006", m[3])
	if err != nil {
		return fmt.Errorf("pipeline: filename date %q is not MMDDYYYY", m[3])
	}
	if y, max := date.Year(), time.Now().Year()+2; y < 2020 || y > max {
		return fmt.Errorf("pipeline: filename year %d outside the accepted range 2020-%d", y, max)
	}
	return nil
}
