// Package lnvps implements a client SDK for the LNVPS storefront API.
//
// The storefront sells virtual private servers that are paid for over several
// independent payment rails:
//   - Lightning invoices (polled until settled)
//   - Nostr Wallet Connect pushes (backend pays an invoice from the user's wallet)
//   - Card checkout widgets (the widget reports success or cancel)
//   - Pull-payment addresses (settled out-of-band)
//
// Every API request is authorized with a NIP-98 event signed for the exact
// URL and HTTP method of that request.
//
// Import path: github.com/lnvps/lnvps-go
package lnvps

import (
	"encoding/json"
	"time"
)

// Well-known payment rail names advertised by the backend.
const (
	MethodLightning = "lightning"
	MethodNWC       = "nwc"
	MethodRevolut   = "revolut"
	MethodLNURL     = "lnurl"
	MethodPaypal    = "paypal"
)

// IntervalType is the billing period unit of a cost plan.
type IntervalType string

const (
	IntervalDay   IntervalType = "day"
	IntervalMonth IntervalType = "month"
	IntervalYear  IntervalType = "year"
)

// Money is an amount in a currency, as displayed to the user.
type Money struct {
	// Currency is an ISO-4217 code or "BTC".
	Currency string `json:"currency"`

	// Amount is expressed in major units (e.g. 4.99 EUR).
	Amount float64 `json:"amount"`
}

// PaymentMethod describes a payment rail offered by the backend.
type PaymentMethod struct {
	// Name is the unique rail identifier (e.g. "lightning").
	Name string `json:"name"`

	// Currencies lists the currencies this rail can charge in.
	Currencies []string `json:"currencies"`

	// Metadata contains rail-specific data such as a pull-payment address.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SupportsCurrency reports whether the rail can charge in currency.
func (m PaymentMethod) SupportsCurrency(currency string) bool {
	for _, c := range m.Currencies {
		if c == currency {
			return true
		}
	}
	return false
}

// VmPayment is a payment intent created for a renewal or upgrade.
type VmPayment struct {
	ID       string    `json:"id"`
	Currency string    `json:"currency"`
	Amount   int64     `json:"amount"`
	Tax      int64     `json:"tax"`
	Created  time.Time `json:"created"`
	Expires  time.Time `json:"expires"`
	IsPaid   bool      `json:"is_paid"`

	// Data holds the rail-specific payload (invoice, checkout token, ...).
	Data PaymentData `json:"data"`
}

// Expired reports whether the payment can no longer be settled at now.
func (p *VmPayment) Expired(now time.Time) bool {
	return !p.Expires.IsZero() && now.After(p.Expires)
}

// LightningData is the payload of an invoice-style payment.
type LightningData struct {
	Lightning string `json:"lightning"`
}

// RevolutData is the payload of a card checkout payment.
type RevolutData struct {
	Revolut struct {
		Token string `json:"token"`
	} `json:"revolut"`
}

// LNURLData is the payload of a pull-payment.
type LNURLData struct {
	LNURL struct {
		Address string `json:"address"`
	} `json:"lnurl"`
}

// PaymentData is the union of rail-specific payment payloads.
type PaymentData struct {
	union json.RawMessage
}

// AsLightningData returns the union data as a LightningData.
func (t PaymentData) AsLightningData() (LightningData, error) {
	var body LightningData
	err := json.Unmarshal(t.union, &body)
	return body, err
}

// FromLightningData overwrites the union data with v.
func (t *PaymentData) FromLightningData(v LightningData) error {
	b, err := json.Marshal(v)
	t.union = b
	return err
}

// AsRevolutData returns the union data as a RevolutData.
func (t PaymentData) AsRevolutData() (RevolutData, error) {
	var body RevolutData
	err := json.Unmarshal(t.union, &body)
	return body, err
}

// FromRevolutData overwrites the union data with v.
func (t *PaymentData) FromRevolutData(v RevolutData) error {
	b, err := json.Marshal(v)
	t.union = b
	return err
}

// AsLNURLData returns the union data as a LNURLData.
func (t PaymentData) AsLNURLData() (LNURLData, error) {
	var body LNURLData
	err := json.Unmarshal(t.union, &body)
	return body, err
}

// FromLNURLData overwrites the union data with v.
func (t *PaymentData) FromLNURLData(v LNURLData) error {
	b, err := json.Marshal(v)
	t.union = b
	return err
}

// Raw returns the undecoded payload.
func (t PaymentData) Raw() json.RawMessage {
	return t.union
}

// MarshalJSON serializes the underlying union.
func (t PaymentData) MarshalJSON() ([]byte, error) {
	if len(t.union) == 0 {
		return []byte("null"), nil
	}
	return t.union.MarshalJSON()
}

// UnmarshalJSON loads union data.
func (t *PaymentData) UnmarshalJSON(b []byte) error {
	return t.union.UnmarshalJSON(b)
}

// VmUpgradeRequest lists the resources to increase. A nil field means unchanged.
type VmUpgradeRequest struct {
	CPU    *uint16 `json:"cpu,omitempty"`
	Memory *uint64 `json:"memory,omitempty"`
	Disk   *uint64 `json:"disk,omitempty"`
}

// IsEmpty reports whether the request changes nothing.
func (r VmUpgradeRequest) IsEmpty() bool {
	return r.CPU == nil && r.Memory == nil && r.Disk == nil
}

// VmUpgradeQuote is the server-side pro-rated cost of an upgrade.
type VmUpgradeQuote struct {
	CostDifference Money `json:"cost_difference"`
	Discount       Money `json:"discount"`
	NewRenewalCost Money `json:"new_renewal_cost"`
}

// VmResources is a resource allocation of a VM.
type VmResources struct {
	CPU    uint16 `json:"cpu"`
	Memory uint64 `json:"memory"`
	Disk   uint64 `json:"disk_size"`
}

// VmCostPlan describes how a template is billed.
type VmCostPlan struct {
	ID             uint64       `json:"id"`
	Name           string       `json:"name"`
	Amount         float64      `json:"amount"`
	Currency       string       `json:"currency"`
	IntervalAmount uint64       `json:"interval_amount"`
	IntervalType   IntervalType `json:"interval_type"`
}

// VmTemplate is the product a VM was ordered from.
type VmTemplate struct {
	ID            uint64     `json:"id"`
	Name          string     `json:"name"`
	CPU           uint16     `json:"cpu"`
	Memory        uint64     `json:"memory"`
	DiskSize      uint64     `json:"disk_size"`
	DiskType      string     `json:"disk_type"`
	DiskInterface string     `json:"disk_interface"`
	CostPlan      VmCostPlan `json:"cost_plan"`
	Region        VmRegion   `json:"region"`
}

// VmRegion is a hosting location.
type VmRegion struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// VmStatus is the runtime state reported for a VM.
type VmStatus struct {
	State string `json:"state"`
}

// VmInstance is a VM owned by the authenticated user.
type VmInstance struct {
	ID                 uint64     `json:"id"`
	Created            time.Time  `json:"created"`
	Expires            time.Time  `json:"expires"`
	Template           VmTemplate `json:"template"`
	Status             *VmStatus  `json:"status,omitempty"`
	AutoRenewalEnabled bool       `json:"auto_renewal_enabled"`
}

// Resources returns the current resource allocation of the VM.
func (v *VmInstance) Resources() VmResources {
	return VmResources{
		CPU:    v.Template.CPU,
		Memory: v.Template.Memory,
		Disk:   v.Template.DiskSize,
	}
}

// AccountDetail is the authenticated user's account.
type AccountDetail struct {
	Email               string `json:"email,omitempty"`
	ContactNip17        bool   `json:"contact_nip17"`
	ContactEmail        bool   `json:"contact_email"`
	CountryCode         string `json:"country_code,omitempty"`
	Name                string `json:"name,omitempty"`
	Address1            string `json:"address_1,omitempty"`
	Address2            string `json:"address_2,omitempty"`
	City                string `json:"city,omitempty"`
	State               string `json:"state,omitempty"`
	PostCode            string `json:"postcode,omitempty"`
	TaxID               string `json:"tax_id,omitempty"`
	NwcConnectionString string `json:"nwc_connection_string,omitempty"`
}

// HasWalletConnection reports whether a wallet-push rail can be used.
func (a *AccountDetail) HasWalletConnection() bool {
	return a != nil && a.NwcConnectionString != ""
}

// CustomTemplateParams is a user-driven custom VM configuration.
type CustomTemplateParams struct {
	PricingID     uint64 `json:"pricing_id,omitempty"`
	RegionID      uint64 `json:"region_id" validate:"required"`
	CPU           uint16 `json:"cpu" validate:"required,min=1"`
	Memory        uint64 `json:"memory" validate:"required,min=1"`
	Disk          uint64 `json:"disk" validate:"required,min=1"`
	DiskType      string `json:"disk_type" validate:"required,oneof=hdd ssd"`
	DiskInterface string `json:"disk_interface" validate:"required,oneof=sata scsi pcie"`
}

// CustomPrice is the quoted price of a custom configuration.
type CustomPrice struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// APIResponse is the success envelope returned by the backend.
type APIResponse[T any] struct {
	Data  T      `json:"data"`
	Error string `json:"error,omitempty"`
}

// APIErrorBody is the error envelope returned with non-2xx statuses.
type APIErrorBody struct {
	Error string `json:"error"`
}
