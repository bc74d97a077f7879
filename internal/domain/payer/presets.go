// Package payer carries the payer presets and the payer-specific content
// rules that run against an emitted interchange.
package payer

// Preset maps a symbolic payer key to its identifiers.
type Preset struct {
	Key          string
	PayerID      string
	PayerName    string
	ReceiverID   string // ISA08
	ReceiverQual string // ISA07
	IDQualifier  string // NM109 qualifier, PI or 46
}

var presets = map[string]Preset{
	"UHC_CS": {
		Key:          "UHC_CS",
		PayerID:      "87726",
		PayerName:    "UNITED HEALTHCARE COMMUNITY & STATE",
		ReceiverID:   "87726",
		ReceiverQual: "ZZ",
		IDQualifier:  "PI",
	},
	"UHC_KY": {
		Key:          "UHC_KY",
		PayerID:      "87726",
		PayerName:    "UNITED HEALTHCARE KENTUCKY",
		ReceiverID:   "87726",
		ReceiverQual: "ZZ",
		IDQualifier:  "PI",
	},
	"AVAILITY": {
		Key:          "AVAILITY",
		PayerID:      "030240928",
		PayerName:    "AVAILITY",
		ReceiverID:   "030240928",
		ReceiverQual: "ZZ",
		IDQualifier:  "46",
	},
}

// Lookup returns the preset for a symbolic key.
func Lookup(key string) (Preset, bool) {
	p, ok := presets[key]
	return p, ok
}

// Keys lists the known preset keys.
func Keys() []string {
	out := make([]string, 0, len(presets))
	for k := range presets {
		out = append(out, k)
	}
	return out
}
