// Package claim defines the typed claim, service and trip records that flow
// through the conversion pipeline, their JSON input boundary, and the
// enrichment pass that fills cascading defaults. Conversion from free-form
// input happens once here; downstream components operate on typed values
// only.
package claim

import (
	"encoding/json"
	"fmt"
)

// Party identifies the submitting organization (Loop 1000A).
type Party struct {
	Name         string `json:"name"`
	ID           string `json:"id"`
	IDQualifier  string `json:"id_qualifier,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// Receiver identifies the destination payer (Loop 1000B / 2010BB).
type Receiver struct {
	PayerName   string `json:"payer_name"`
	PayerID     string `json:"payer_id"`
	IDQualifier string `json:"id_qualifier,omitempty"` // NM108, PI unless a preset says otherwise
}

// Address is a postal address constrained to X12 N3/N4 element widths.
type Address struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2,omitempty"`
	City  string `json:"city"`
	State string `json:"state"`
	Zip   string `json:"zip"`
}

// Provider is an organizational provider: billing, rendering, pay-to, or
// service facility.
type Provider struct {
	NPI      string  `json:"npi"`
	Name     string  `json:"name"`
	TaxID    string  `json:"tax_id,omitempty"`
	Taxonomy string  `json:"taxonomy,omitempty"`
	LegacyID string  `json:"legacy_id,omitempty"` // REF*G2 commercial number
	Address  Address `json:"address"`
}

// PersonName is a first/last pair constrained to NM1 element widths.
type PersonName struct {
	First string `json:"first"`
	Last  string `json:"last"`
}

// Subscriber is the insured member.
type Subscriber struct {
	MemberID     string     `json:"member_id"`
	Name         PersonName `json:"name"`
	DOB          string     `json:"dob,omitempty"` // yyyy-mm-dd
	Sex          string     `json:"sex,omitempty"` // F, M, U
	Address      *Address   `json:"address,omitempty"`
	Relationship string     `json:"relationship,omitempty"` // "self" unless stated
}

// PersonProvider is an individual provider: supervising or referring.
type PersonProvider struct {
	Name     PersonName `json:"name"`
	NPI      string     `json:"npi,omitempty"`
	Taxonomy string     `json:"taxonomy,omitempty"`
	Role     string     `json:"role,omitempty"` // referring only: DN or P3
}

// MemberGroup carries the payer's member group hierarchy. All five fields
// are required on every claim.
type MemberGroup struct {
	GroupID    string `json:"group_id"`
	SubGroupID string `json:"sub_group_id"`
	ClassID    string `json:"class_id"`
	PlanID     string `json:"plan_id"`
	ProductID  string `json:"product_id"`
}

// Empty reports whether no member group field is populated.
func (g MemberGroup) Empty() bool {
	return g.GroupID == "" && g.SubGroupID == "" && g.ClassID == "" &&
		g.PlanID == "" && g.ProductID == ""
}

// Location is a pickup or dropoff point.
type Location struct {
	Line1         string `json:"line1"`
	Line2         string `json:"line2,omitempty"`
	City          string `json:"city"`
	State         string `json:"state"`
	Zip           string `json:"zip"`
	LocationCode  string `json:"location_code,omitempty"`  // two-letter origin/destination letter pair component
	ArrivalTime   string `json:"arrival_time,omitempty"`   // HHMM
	DepartureTime string `json:"departure_time,omitempty"` // HHMM
}

// Ambulance carries claim-level transport data for the CR1 segment.
type Ambulance struct {
	WeightUnit      string    `json:"weight_unit,omitempty"` // LB, KG
	PatientWeight   float64   `json:"patient_weight,omitempty"`
	TransportCode   string    `json:"transport_code,omitempty"`   // A..E
	TransportReason string    `json:"transport_reason,omitempty"` // A..E, DH
	TripNumber      string    `json:"trip_number,omitempty"`      // numeric, zero-padded to 9 on emit
	SpecialNeeds    string    `json:"special_needs,omitempty"`    // Y, N
	Pickup          *Location `json:"pickup,omitempty"`
	Dropoff         *Location `json:"dropoff,omitempty"`
}

// Adjustment is one CAS entry: group code, reason code, amount, quantity.
type Adjustment struct {
	Group    string  `json:"group"` // CO, PR, OA, PI
	Reason   string  `json:"reason"`
	Amount   float64 `json:"amount"`
	Quantity string  `json:"quantity,omitempty"`
}

// Adjudication is one prior-payer line adjudication for Loop 2430.
type Adjudication struct {
	PayerID     string       `json:"payer_id"`
	PaidAmount  float64      `json:"paid_amount"`
	PaidUnits   *float64     `json:"paid_units,omitempty"`
	CAS         []Adjustment `json:"line_cas,omitempty"`
	PaymentDate string       `json:"payment_date,omitempty"` // yyyy-mm-dd, DTP*573
}

// OtherPayer describes a coordination-of-benefits payer (Loops 2320/2330).
type OtherPayer struct {
	PayerID         string   `json:"payer_id"`
	PayerName       string   `json:"payer_name"`
	Relationship    string   `json:"relationship,omitempty"`
	FilingIndicator string   `json:"filing_indicator,omitempty"` // SBR09, defaults MC
	PaidAmount      *float64 `json:"paid_amount,omitempty"`
}

// Detail is the claim-level record (Loop 2300 content).
type Detail struct {
	ClmNumber           string `json:"clm_number"`
	TotalCharge         float64 `json:"total_charge"`
	From                string `json:"from"` // yyyy-mm-dd
	To                  string `json:"to,omitempty"`
	POS                 string `json:"pos,omitempty"`
	FrequencyCode       string `json:"frequency_code,omitempty"`
	AdjustmentType      string `json:"adjustment_type,omitempty"` // legacy: replacement, void
	OriginalClaimNumber string `json:"original_claim_number,omitempty"`
	PaymentStatus       string `json:"payment_status,omitempty"`      // P, D
	SubmissionChannel   string `json:"submission_channel,omitempty"`  // ELECTRONIC, PAPER
	NetworkIndicator    string `json:"rendering_network_indicator,omitempty"` // I, O

	MemberGroup MemberGroup `json:"member_group"`
	Ambulance   *Ambulance  `json:"ambulance,omitempty"`

	ICD10          []string `json:"icd10,omitempty"`
	AuthNumber     string   `json:"auth_number,omitempty"`
	TrackingNumber string   `json:"tracking_number,omitempty"`
	PatientAccount string   `json:"patient_account,omitempty"`

	SubscriberInternalID string `json:"subscriber_internal_id,omitempty"`
	IPAddress            string `json:"ip_address,omitempty"`
	UserID               string `json:"user_id,omitempty"`

	ReceiptDate      string `json:"receipt_date,omitempty"`      // DTP*050
	AdjudicationDate string `json:"adjudication_date,omitempty"` // DTP*036
	PaidDate         string `json:"paid_date,omitempty"`         // DTP*573

	AllowedAmount    *float64 `json:"allowed_amount,omitempty"`      // AMT*B6
	CoveredAmount    *float64 `json:"covered_amount,omitempty"`      // AMT*AU
	RemainingAmount  *float64 `json:"remaining_amount,omitempty"`    // AMT*EAF
	PatientPaid      *float64 `json:"patient_paid_amount,omitempty"` // AMT*F2

	CAS []Adjustment `json:"cas,omitempty"` // explicit claim-level adjustments
}

// Service is one line item (Loop 2400).
type Service struct {
	HCPCS        string         `json:"hcpcs"`
	Modifiers    []string       `json:"modifiers,omitempty"`
	Charge       float64        `json:"charge"`
	Units        *float64       `json:"units,omitempty"`
	DOS          string         `json:"dos,omitempty"`
	POS          string         `json:"pos,omitempty"`
	Emergency    *bool          `json:"emergency,omitempty"`
	TripNumber   string         `json:"trip_number,omitempty"`
	Pickup       *Location      `json:"pickup,omitempty"`
	Dropoff      *Location      `json:"dropoff,omitempty"`
	Supervising  *PersonProvider `json:"supervising_provider,omitempty"`
	PaymentStatus string        `json:"payment_status,omitempty"`
	Adjudication []Adjudication `json:"adjudication,omitempty"`
}

// Claim is the root record for the single-claim flow.
type Claim struct {
	Submitter       Party     `json:"submitter"`
	Receiver        Receiver  `json:"receiver"`
	BillingProvider Provider  `json:"billing_provider"`
	Subscriber      Subscriber `json:"subscriber"`

	RenderingProvider   *Provider       `json:"rendering_provider,omitempty"`
	SupervisingProvider *PersonProvider `json:"supervising_provider,omitempty"`
	ReferringProvider   *PersonProvider `json:"referring_provider,omitempty"`
	PayToPlan           *Provider       `json:"pay_to_plan,omitempty"`
	ServiceFacility     *Provider       `json:"service_facility,omitempty"`

	Claim       Detail       `json:"claim"`
	Services    []*Service   `json:"services"`
	OtherPayers []OtherPayer `json:"other_payers,omitempty"`
}

// Trip is the flattened per-service record the batch processor groups into
// claims.
type Trip struct {
	BillingProvider   *Provider       `json:"billing_provider,omitempty"`
	RenderingProvider *Provider       `json:"rendering_provider,omitempty"`
	Member            Subscriber      `json:"member"`
	Payer             *Receiver       `json:"payer,omitempty"`
	Submitter         *Party          `json:"submitter,omitempty"`

	DOS     string   `json:"dos"`
	Service *Service `json:"service"`

	ClmNumber           string `json:"clm_number,omitempty"`
	FrequencyCode       string `json:"frequency_code,omitempty"`
	OriginalClaimNumber string `json:"original_claim_number,omitempty"`

	SubmissionChannel string       `json:"submission_channel,omitempty"`
	PaymentStatus     string       `json:"payment_status,omitempty"`
	NetworkIndicator  string       `json:"rendering_network_indicator,omitempty"`
	MemberGroup       *MemberGroup `json:"member_group,omitempty"`
	Ambulance         *Ambulance   `json:"ambulance,omitempty"`

	Pickup      *Location       `json:"pickup,omitempty"`
	Dropoff     *Location       `json:"dropoff,omitempty"`
	Supervising *PersonProvider `json:"supervising_provider,omitempty"`
	Emergency   *bool           `json:"emergency,omitempty"`

	AuthNumber     string `json:"auth_number,omitempty"`
	PatientAccount string `json:"patient_account,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`

	ReceiptDate      string `json:"receipt_date,omitempty"`
	AdjudicationDate string `json:"adjudication_date,omitempty"`
	PaidDate         string `json:"paid_date,omitempty"`

	Adjudication []Adjudication `json:"adjudication,omitempty"`
}

// ParseClaim decodes a claim record from JSON. Unknown fields are ignored;
// missing optional fields take their documented defaults during enrichment.
func ParseClaim(data []byte) (*Claim, error) {
	var c Claim
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("claim: decode claim record: %w", err)
	}
	return &c, nil
}

// ParseTrips decodes a batch of trip records from a JSON array.
func ParseTrips(data []byte) ([]*Trip, error) {
	var trips []*Trip
	if err := json.Unmarshal(data, &trips); err != nil {
		return nil, fmt.Errorf("claim: decode trip records: %w", err)
	}
	return trips, nil
}

// RenderingOrBilling returns the rendering provider, falling back to the
// billing provider when no renderer is identified.
func (c *Claim) RenderingOrBilling() *Provider {
	if c.RenderingProvider != nil && (c.RenderingProvider.NPI != "" || c.RenderingProvider.Name != "") {
		return c.RenderingProvider
	}
	return &c.BillingProvider
}

// DuplicateKey returns the NEMIS duplicate triple for this claim:
// (CLM01, CLM05-3, REF*F8).
func (c *Claim) DuplicateKey() [3]string {
	return [3]string{c.Claim.ClmNumber, c.Claim.FrequencyCode, c.Claim.OriginalClaimNumber}
}
