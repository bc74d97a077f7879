// Package codes holds the closed code tables used across the pipeline:
// places of service, NEMT HCPCS procedure codes, origin/destination and
// functional modifiers, transport codes and reasons, frequency codes, and
// the small single-letter vocabularies of the companion guide. Tables are
// built once at init and never mutated; lookups are safe for concurrent use.
package codes

// Kind selects a lookup table.
type Kind int

const (
	KindPOS Kind = iota
	KindHCPCS
	KindModifier
	KindFrequency
	KindTransport
	KindTransportReason
	KindWeightUnit
	KindSex
	KindNetworkIndicator
	KindSubmissionChannel
	KindPaymentStatus
)

// PlacesOfService lists the POS codes accepted for NEMT claims. 41 and 42
// are the ambulance codes; the rest are the clinical settings a trip may
// legitimately terminate at.
var PlacesOfService = map[string]string{
	"02": "Telehealth",
	"11": "Office",
	"12": "Home",
	"21": "Inpatient Hospital",
	"22": "On Campus-Outpatient Hospital",
	"23": "Emergency Room - Hospital",
	"31": "Skilled Nursing Facility",
	"32": "Nursing Facility",
	"33": "Custodial Care Facility",
	"41": "Ambulance - Land",
	"42": "Ambulance - Air or Water",
	"49": "Independent Clinic",
	"50": "Federally Qualified Health Center",
	"51": "Inpatient Psychiatric Facility",
	"52": "Psychiatric Facility Partial Hospitalization",
	"53": "Community Mental Health Center",
	"54": "Intermediate Care Facility",
	"55": "Residential Substance Abuse Treatment Facility",
	"56": "Psychiatric Residential Treatment Center",
	"57": "Non-residential Substance Abuse Treatment Facility",
	"60": "Mass Immunization Center",
	"61": "Comprehensive Inpatient Rehabilitation Facility",
	"62": "Comprehensive Outpatient Rehabilitation Facility",
	"65": "End-Stage Renal Disease Treatment Facility",
	"71": "Public Health Clinic",
	"72": "Rural Health Clinic",
	"81": "Independent Laboratory",
	"99": "Other Place of Service",
}

// HCPCS lists the ambulance A-series and NEMT T-series procedure codes.
var HCPCS = map[string]string{
	"A0021": "Ambulance service, outside state per mile, transport",
	"A0080": "Non-emergency transportation, per mile - vehicle provided by volunteer",
	"A0090": "Non-emergency transportation, per mile - vehicle provided by individual",
	"A0100": "Non-emergency transportation; taxi",
	"A0110": "Non-emergency transportation and bus, intra- or inter-state carrier",
	"A0120": "Non-emergency transportation: mini-bus, mountain area transports",
	"A0130": "Non-emergency transportation: wheelchair van",
	"A0140": "Non-emergency transportation and air travel, intra- or inter-state",
	"A0160": "Non-emergency transportation: per mile - case worker or social worker",
	"A0170": "Transportation ancillary: parking fees, tolls, other",
	"A0180": "Non-emergency transportation: ancillary: lodging-recipient",
	"A0190": "Non-emergency transportation: ancillary: meals-recipient",
	"A0200": "Non-emergency transportation: ancillary: lodging-escort",
	"A0210": "Non-emergency transportation: ancillary: meals-escort",
	"A0225": "Ambulance service, neonatal transport, base rate, emergency transport",
	"A0380": "BLS mileage (per mile)",
	"A0382": "BLS specialized service disposable supplies",
	"A0384": "BLS specialized service disposable supplies; defibrillation",
	"A0390": "ALS mileage (per mile)",
	"A0392": "ALS specialized service disposable supplies; defibrillation",
	"A0394": "ALS specialized service disposable supplies; IV drug therapy",
	"A0396": "ALS specialized service disposable supplies; esophageal intubation",
	"A0398": "ALS routine disposable supplies",
	"A0420": "Ambulance waiting time (ALS or BLS), one half hour increments",
	"A0422": "Ambulance (ALS or BLS) oxygen and oxygen supplies",
	"A0424": "Extra ambulance attendant, ground or air",
	"A0425": "Ground mileage, per statute mile",
	"A0426": "Ambulance service, ALS, non-emergency transport, level 1",
	"A0427": "Ambulance service, ALS, emergency transport, level 1",
	"A0428": "Ambulance service, BLS, non-emergency transport",
	"A0429": "Ambulance service, BLS, emergency transport",
	"A0430": "Ambulance service, conventional air services, one way (fixed wing)",
	"A0431": "Ambulance service, conventional air services, one way (rotary wing)",
	"A0432": "Paramedic intercept, rural area",
	"A0433": "Advanced life support, level 2",
	"A0434": "Specialty care transport",
	"A0435": "Fixed wing air mileage, per statute mile",
	"A0436": "Rotary wing air mileage, per statute mile",
	"T2001": "Non-emergency transportation; patient attendant/escort",
	"T2002": "Non-emergency transportation; per diem",
	"T2003": "Non-emergency transportation; encounter/trip",
	"T2004": "Non-emergency transport; commercial carrier, multi-pass",
	"T2005": "Non-emergency transportation; stretcher van",
	"T2007": "Transportation waiting time, one half hour increments",
	"T2049": "Non-emergency transportation; stretcher van, mileage per mile",
}

// originDestLetters are the valid origin and destination letters for
// ambulance modifiers. An origin/destination modifier pairs two distinct
// letters from this set.
var originDestLetters = []string{"D", "E", "G", "H", "I", "J", "N", "P", "R", "S", "X"}

var originDestDescriptions = map[string]string{
	"D": "Diagnostic or therapeutic site",
	"E": "Residential, domiciliary, custodial facility",
	"G": "Hospital-based dialysis facility",
	"H": "Hospital",
	"I": "Site of transfer between ambulance vehicles",
	"J": "Non-hospital-based dialysis facility",
	"N": "Skilled nursing facility",
	"P": "Physician's office",
	"R": "Residence",
	"S": "Scene of accident or acute event",
	"X": "Intermediate stop at physician's office",
}

// functionalModifiers qualify how a service was furnished rather than where.
var functionalModifiers = map[string]string{
	"GA": "Waiver of liability statement issued as required by payer policy",
	"GY": "Item or service statutorily excluded",
	"GZ": "Item or service expected to be denied",
	"QM": "Ambulance service provided under arrangement by a provider of services",
	"QN": "Ambulance service furnished directly by a provider of services",
	"GM": "Multiple patients on one ambulance trip",
	"QL": "Patient pronounced dead after ambulance called",
	"TQ": "Basic life support transport by a volunteer ambulance provider",
}

// Modifiers holds every accepted two-character modifier: the 110
// origin/destination pairs plus the functional set.
var Modifiers = buildModifiers()

func buildModifiers() map[string]string {
	m := make(map[string]string, 120)
	for _, from := range originDestLetters {
		for _, to := range originDestLetters {
			if from == to {
				continue
			}
			m[from+to] = originDestDescriptions[from] + " to " + originDestDescriptions[to]
		}
	}
	for code, desc := range functionalModifiers {
		m[code] = desc
	}
	return m
}

// FrequencyCodes are the CLM05-3 claim frequency values.
var FrequencyCodes = map[string]string{
	"1": "Original claim",
	"6": "Corrected claim",
	"7": "Replacement of prior claim",
	"8": "Void/cancel of prior claim",
}

// TransportCodes are the CR1-05 ambulance transport codes.
var TransportCodes = map[string]string{
	"A": "Patient was transported to nearest facility",
	"B": "Patient was transported for the benefit of a preferred physician",
	"C": "Patient was transported for the nearness of family members",
	"D": "Patient was transported for the care of a specialist",
	"E": "Patient was transported for the care of a preferred facility",
}

// TransportReasonCodes are the CR1-06 transport reasons.
var TransportReasonCodes = map[string]string{
	"A":  "Patient was transported for the purposes of ambulance transport",
	"B":  "Patient was transported for the purposes of medical treatment",
	"C":  "Patient was transported for the purposes of diagnostic procedures",
	"D":  "Patient was transported for the purposes of a medical emergency",
	"DH": "Dialysis patient transported to/from dialysis facility",
	"E":  "Patient was transported for the purposes of surgery",
}

// WeightUnits are the CR1-01 patient weight units.
var WeightUnits = map[string]string{
	"LB": "Pounds",
	"KG": "Kilograms",
}

// Sexes are the DMG03 administrative sex codes.
var Sexes = map[string]string{
	"F": "Female",
	"M": "Male",
	"U": "Unknown",
}

// NetworkIndicators mark the rendering provider's network status.
var NetworkIndicators = map[string]string{
	"I": "In-network",
	"O": "Out-of-network",
}

// SubmissionChannels record how the trip entered the system.
var SubmissionChannels = map[string]string{
	"ELECTRONIC": "Electronic submission",
	"PAPER":      "Paper submission",
}

// PaymentStatuses are the adjudication outcomes carried in K3 PYMS.
var PaymentStatuses = map[string]string{
	"P": "Paid",
	"D": "Denied",
}

// States is the set of recognized US postal state and territory codes.
var States = map[string]struct{}{}

func init() {
	for _, s := range []string{
		"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
		"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
		"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
		"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
		"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
		"DC", "PR", "VI", "GU", "AS", "MP",
	} {
		States[s] = struct{}{}
	}
}

// MileageCodes are the HCPCS codes that bill distance rather than a
// transport. A mileage line must immediately follow a transport line.
var MileageCodes = map[string]struct{}{
	"A0380": {},
	"A0382": {},
	"A0390": {},
	"A0425": {},
	"A0435": {},
	"A0436": {},
	"T2049": {},
}

// SupervisingRequired lists the special-transport HCPCS codes for which the
// payer expects a supervising or attendant provider on the claim.
var SupervisingRequired = map[string]struct{}{
	"A0090": {}, "A0100": {}, "A0110": {}, "A0120": {}, "A0140": {},
	"A0160": {}, "A0170": {}, "A0180": {}, "A0190": {}, "A0200": {},
	"A0210": {}, "T2001": {},
}

var tables = map[Kind]map[string]string{
	KindPOS:               PlacesOfService,
	KindHCPCS:             HCPCS,
	KindModifier:          Modifiers,
	KindFrequency:         FrequencyCodes,
	KindTransport:         TransportCodes,
	KindTransportReason:   TransportReasonCodes,
	KindWeightUnit:        WeightUnits,
	KindSex:               Sexes,
	KindNetworkIndicator:  NetworkIndicators,
	KindSubmissionChannel: SubmissionChannels,
	KindPaymentStatus:     PaymentStatuses,
}

// Lookup returns the description for a code in the given table.
func Lookup(kind Kind, code string) (string, bool) {
	t, ok := tables[kind]
	if !ok {
		return "", false
	}
	desc, ok := t[code]
	return desc, ok
}

// Valid reports whether code exists in the given table.
func Valid(kind Kind, code string) bool {
	_, ok := Lookup(kind, code)
	return ok
}

// ValidState reports whether s is a recognized US postal code.
func ValidState(s string) bool {
	_, ok := States[s]
	return ok
}

// IsMileage reports whether hcpcs is a mileage code.
func IsMileage(hcpcs string) bool {
	_, ok := MileageCodes[hcpcs]
	return ok
}

// RequiresSupervising reports whether hcpcs is in the special-transport set
// that expects a supervising provider.
func RequiresSupervising(hcpcs string) bool {
	_, ok := SupervisingRequired[hcpcs]
	return ok
}
