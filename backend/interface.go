// Package backend defines the storefront operations consumed by the payment
// orchestrator, the pricing engine and the MCP tools.
//
// The HTTP client in package http satisfies Interface; tests substitute
// in-memory fakes.
package backend

import (
	"context"

	"github.com/lnvps/lnvps-go"
)

// PaymentAPI is the subset of the storefront used to create and settle payments.
type PaymentAPI interface {
	// PaymentMethods lists the rails offered by the backend.
	PaymentMethods(ctx context.Context) ([]lnvps.PaymentMethod, error)

	// Account returns the authenticated user's account detail.
	Account(ctx context.Context) (*lnvps.AccountDetail, error)

	// RenewVM creates a renewal payment for intervals billing periods on method.
	RenewVM(ctx context.Context, vmID uint64, intervals uint64, method string) (*lnvps.VmPayment, error)

	// UpgradePayment creates a payment for the given resource increase.
	UpgradePayment(ctx context.Context, vmID uint64, req lnvps.VmUpgradeRequest, method string) (*lnvps.VmPayment, error)

	// PaymentStatus returns the current state of a payment.
	PaymentStatus(ctx context.Context, paymentID string) (*lnvps.VmPayment, error)
}

// PriceQuoter quotes custom VM configurations.
type PriceQuoter interface {
	CustomPrice(ctx context.Context, params lnvps.CustomTemplateParams) (*lnvps.CustomPrice, error)
}

// Interface defines the full storefront contract.
type Interface interface {
	PaymentAPI
	PriceQuoter

	// UpdateAccount replaces the account detail.
	UpdateAccount(ctx context.Context, account lnvps.AccountDetail) (*lnvps.AccountDetail, error)

	// ListVMs lists the VMs owned by the authenticated user.
	ListVMs(ctx context.Context) ([]lnvps.VmInstance, error)

	// GetVM returns a single VM.
	GetVM(ctx context.Context, vmID uint64) (*lnvps.VmInstance, error)

	// UpgradeQuote returns the pro-rated cost of an upgrade without creating a payment.
	UpgradeQuote(ctx context.Context, vmID uint64, req lnvps.VmUpgradeRequest, method string) (*lnvps.VmUpgradeQuote, error)
}
