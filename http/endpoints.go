package http

import (
	"context"
	"net/http"

	"github.com/lnvps/lnvps-go"
	"github.com/lnvps/lnvps-go/backend"
	"github.com/lnvps/lnvps-go/http/internal/helpers"
	"github.com/lnvps/lnvps-go/validation"
)

// Verify that Client implements backend.Interface.
var _ backend.Interface = (*Client)(nil)

// PaymentMethods lists the payment rails offered by the backend.
func (c *Client) PaymentMethods(ctx context.Context) ([]lnvps.PaymentMethod, error) {
	var methods []lnvps.PaymentMethod
	if err := c.Request(ctx, "/api/v1/payment-methods", http.MethodGet, nil, &methods); err != nil {
		return nil, err
	}
	return methods, nil
}

// Account returns the authenticated user's account detail.
func (c *Client) Account(ctx context.Context) (*lnvps.AccountDetail, error) {
	var account lnvps.AccountDetail
	if err := c.Request(ctx, "/api/v1/account", http.MethodGet, nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateAccount replaces the account detail.
func (c *Client) UpdateAccount(ctx context.Context, account lnvps.AccountDetail) (*lnvps.AccountDetail, error) {
	var updated lnvps.AccountDetail
	if err := c.Request(ctx, "/api/v1/account", http.MethodPut, account, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// ListVMs lists the VMs owned by the authenticated user.
func (c *Client) ListVMs(ctx context.Context) ([]lnvps.VmInstance, error) {
	var vms []lnvps.VmInstance
	if err := c.Request(ctx, "/api/v1/vm", http.MethodGet, nil, &vms); err != nil {
		return nil, err
	}
	return vms, nil
}

// GetVM returns a single VM.
func (c *Client) GetVM(ctx context.Context, vmID uint64) (*lnvps.VmInstance, error) {
	path, err := vmPath(vmID, "")
	if err != nil {
		return nil, err
	}
	var vm lnvps.VmInstance
	if err := c.Request(ctx, path, http.MethodGet, nil, &vm); err != nil {
		return nil, err
	}
	return &vm, nil
}

// RenewVM creates a renewal payment. The interval count is not checked here
// since the client does not know the plan; callers validate it against the
// ladder first.
func (c *Client) RenewVM(ctx context.Context, vmID uint64, intervals uint64, method string) (*lnvps.VmPayment, error) {
	path, err := vmPath(vmID, "/renew")
	if err != nil {
		return nil, err
	}
	query, err := helpers.BuildQuery(
		helpers.QueryParam{Name: "intervals", Value: intervals},
		helpers.QueryParam{Name: "method", Value: method},
	)
	if err != nil {
		return nil, lnvps.NewValidationError("invalid renewal parameters", err)
	}

	var payment lnvps.VmPayment
	if err := c.Request(ctx, helpers.WithQuery(path, query), http.MethodGet, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpgradeQuote returns the pro-rated cost of an upgrade.
// A request that increases nothing is rejected without a network call.
func (c *Client) UpgradeQuote(ctx context.Context, vmID uint64, req lnvps.VmUpgradeRequest, method string) (*lnvps.VmUpgradeQuote, error) {
	path, err := c.upgradePath(vmID, "/upgrade/quote", req, method)
	if err != nil {
		return nil, err
	}
	var quote lnvps.VmUpgradeQuote
	if err := c.Request(ctx, path, http.MethodPost, req, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

// UpgradePayment creates an upgrade payment.
// A request that increases nothing is rejected without a network call.
func (c *Client) UpgradePayment(ctx context.Context, vmID uint64, req lnvps.VmUpgradeRequest, method string) (*lnvps.VmPayment, error) {
	path, err := c.upgradePath(vmID, "/upgrade/payment", req, method)
	if err != nil {
		return nil, err
	}
	var payment lnvps.VmPayment
	if err := c.Request(ctx, path, http.MethodPost, req, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// PaymentStatus returns the current state of a payment.
func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (*lnvps.VmPayment, error) {
	if paymentID == "" {
		return nil, lnvps.NewValidationError("payment id cannot be empty", nil)
	}
	id, err := helpers.PathParam("id", paymentID)
	if err != nil {
		return nil, lnvps.NewValidationError("invalid payment id", err)
	}
	var payment lnvps.VmPayment
	if err := c.Request(ctx, "/api/v1/payment/"+id, http.MethodGet, nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CustomPrice quotes a custom VM configuration.
func (c *Client) CustomPrice(ctx context.Context, params lnvps.CustomTemplateParams) (*lnvps.CustomPrice, error) {
	if err := validation.ValidateCustomTemplate(params); err != nil {
		return nil, err
	}
	var price lnvps.CustomPrice
	if err := c.Request(ctx, "/api/v1/vm/custom-template/price", http.MethodPost, params, &price); err != nil {
		return nil, err
	}
	return &price, nil
}

func (c *Client) upgradePath(vmID uint64, suffix string, req lnvps.VmUpgradeRequest, method string) (string, error) {
	if err := validation.ValidateUpgradeRequest(req); err != nil {
		return "", err
	}
	path, err := vmPath(vmID, suffix)
	if err != nil {
		return "", err
	}
	query, err := helpers.BuildQuery(helpers.QueryParam{Name: "method", Value: method})
	if err != nil {
		return "", lnvps.NewValidationError("invalid payment method", err)
	}
	return helpers.WithQuery(path, query), nil
}

func vmPath(vmID uint64, suffix string) (string, error) {
	id, err := helpers.PathParam("id", vmID)
	if err != nil {
		return "", lnvps.NewValidationError("invalid vm id", err)
	}
	return "/api/v1/vm/" + id + suffix, nil
}
