package payment

import (
	"strings"

	"github.com/lnvps/lnvps-go"
)

// RailKind is the settlement detection strategy of a rail.
type RailKind string

const (
	// RailInvoice polls the payment status until it is paid.
	RailInvoice RailKind = "invoice"

	// RailCard waits for the checkout widget to report a result.
	RailCard RailKind = "card"

	// RailPull exposes an address and waits for out-of-band settlement.
	RailPull RailKind = "pull"

	// RailGeneric polls like RailInvoice.
	RailGeneric RailKind = "generic"
)

// Polls reports whether settlement is detected by polling.
func (k RailKind) Polls() bool {
	return k == RailInvoice || k == RailGeneric
}

// DefaultRailKinds maps the well-known rails to their detection strategy.
// Rails not listed are RailGeneric.
var DefaultRailKinds = map[string]RailKind{
	lnvps.MethodLightning: RailInvoice,
	lnvps.MethodRevolut:   RailCard,
	lnvps.MethodLNURL:     RailPull,
}

// KindOf classifies a rail name using kinds, falling back to DefaultRailKinds.
func KindOf(name string, kinds map[string]RailKind) RailKind {
	name = strings.ToLower(name)
	if k, ok := kinds[name]; ok {
		return k
	}
	if k, ok := DefaultRailKinds[name]; ok {
		return k
	}
	return RailGeneric
}

// pullAddress extracts the address to display for a pull rail.
func pullAddress(p *lnvps.VmPayment, method lnvps.PaymentMethod) string {
	if p != nil {
		if data, err := p.Data.AsLNURLData(); err == nil && data.LNURL.Address != "" {
			return data.LNURL.Address
		}
	}
	return method.Metadata["address"]
}
