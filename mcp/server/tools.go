package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lnvps/lnvps-go"
	"github.com/lnvps/lnvps-go/validation"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"list_payment_methods",
		mcp.WithDescription("List the payment rails offered by the storefront"),
	), s.listPaymentMethods)

	s.mcpServer.AddTool(mcp.NewTool(
		"get_vm",
		mcp.WithDescription("Show a VM owned by the account"),
		mcp.WithNumber("vm_id", mcp.Required(), mcp.Description("VM id")),
	), s.getVM)

	s.mcpServer.AddTool(mcp.NewTool(
		"renew_vm",
		mcp.WithDescription("Create a renewal payment for a VM"),
		mcp.WithNumber("vm_id", mcp.Required(), mcp.Description("VM id")),
		mcp.WithNumber("intervals", mcp.Description("Billing periods to renew for (default 1)")),
		mcp.WithString("method", mcp.Required(), mcp.Description("Payment rail, e.g. lightning")),
	), s.renewVM)

	s.mcpServer.AddTool(mcp.NewTool(
		"payment_status",
		mcp.WithDescription("Check whether a payment has settled"),
		mcp.WithString("payment_id", mcp.Required(), mcp.Description("Payment id")),
	), s.paymentStatus)

	s.mcpServer.AddTool(mcp.NewTool(
		"upgrade_quote",
		mcp.WithDescription("Quote the pro-rated cost of increasing a VM's resources"),
		mcp.WithNumber("vm_id", mcp.Required(), mcp.Description("VM id")),
		mcp.WithNumber("cpu", mcp.Description("Desired vCPU count")),
		mcp.WithNumber("memory", mcp.Description("Desired memory in bytes")),
		mcp.WithNumber("disk", mcp.Description("Desired disk size in bytes")),
		mcp.WithString("method", mcp.Description("Payment rail used for the quote currency")),
	), s.upgradeQuote)

	s.mcpServer.AddTool(mcp.NewTool(
		"custom_price",
		mcp.WithDescription("Price a custom VM configuration"),
		mcp.WithNumber("region_id", mcp.Required(), mcp.Description("Region id")),
		mcp.WithNumber("cpu", mcp.Required(), mcp.Description("vCPU count")),
		mcp.WithNumber("memory", mcp.Required(), mcp.Description("Memory in bytes")),
		mcp.WithNumber("disk", mcp.Required(), mcp.Description("Disk size in bytes")),
		mcp.WithString("disk_type", mcp.Required(), mcp.Description("hdd or ssd")),
		mcp.WithString("disk_interface", mcp.Required(), mcp.Description("sata, scsi or pcie")),
	), s.customPrice)
}

func (s *Server) listPaymentMethods(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	methods, err := s.api.PaymentMethods(ctx)
	if err != nil {
		return s.toolError("list_payment_methods", err), nil
	}
	return jsonResult(methods)
}

func (s *Server) getVM(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	vmID, ok := uintArg(args, "vm_id")
	if !ok {
		return textError("vm_id is required"), nil
	}
	vm, err := s.api.GetVM(ctx, vmID)
	if err != nil {
		return s.toolError("get_vm", err), nil
	}
	return jsonResult(vm)
}

func (s *Server) renewVM(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	vmID, ok := uintArg(args, "vm_id")
	if !ok {
		return textError("vm_id is required"), nil
	}
	method, _ := args["method"].(string)
	if method == "" {
		return textError("method is required"), nil
	}
	intervals := uint64(1)
	if _, present := args["intervals"]; present {
		if intervals, ok = uintArg(args, "intervals"); !ok {
			return textError("intervals must be a non-negative integer"), nil
		}
	}

	vm, err := s.api.GetVM(ctx, vmID)
	if err != nil {
		return s.toolError("renew_vm", err), nil
	}
	if err := validation.ValidateIntervals(vm.Template.CostPlan.IntervalType, intervals); err != nil {
		return s.toolError("renew_vm", err), nil
	}

	payment, err := s.api.RenewVM(ctx, vmID, intervals, method)
	if err != nil {
		return s.toolError("renew_vm", err), nil
	}
	s.logger.Info("renewal payment created", "vm_id", vmID, "payment_id", payment.ID, "method", method)
	return jsonResult(payment)
}

func (s *Server) paymentStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := req.GetArguments()["payment_id"].(string)
	if id == "" {
		return textError("payment_id is required"), nil
	}
	payment, err := s.api.PaymentStatus(ctx, id)
	if err != nil {
		return s.toolError("payment_status", err), nil
	}
	return jsonResult(payment)
}

func (s *Server) upgradeQuote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	vmID, ok := uintArg(args, "vm_id")
	if !ok {
		return textError("vm_id is required"), nil
	}
	method, _ := args["method"].(string)
	if method == "" {
		method = lnvps.MethodLightning
	}

	vm, err := s.api.GetVM(ctx, vmID)
	if err != nil {
		return s.toolError("upgrade_quote", err), nil
	}
	current := vm.Resources()
	desired := current
	if v, present, err := optionalUintArg(args, "cpu", math.MaxUint16); err != nil {
		return textError(err.Error()), nil
	} else if present {
		desired.CPU = uint16(v)
	}
	if v, present, err := optionalUintArg(args, "memory", math.MaxUint64); err != nil {
		return textError(err.Error()), nil
	} else if present {
		desired.Memory = v
	}
	if v, present, err := optionalUintArg(args, "disk", math.MaxUint64); err != nil {
		return textError(err.Error()), nil
	} else if present {
		desired.Disk = v
	}

	upgrade, err := validation.BuildUpgradeRequest(current, desired)
	if err != nil {
		return s.toolError("upgrade_quote", err), nil
	}
	quote, err := s.api.UpgradeQuote(ctx, vmID, upgrade, method)
	if err != nil {
		return s.toolError("upgrade_quote", err), nil
	}
	return jsonResult(quote)
}

func (s *Server) customPrice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	var p lnvps.CustomTemplateParams
	p.RegionID, _ = uintArg(args, "region_id")
	cpu, _, err := optionalUintArg(args, "cpu", math.MaxUint16)
	if err != nil {
		return textError(err.Error()), nil
	}
	p.CPU = uint16(cpu)
	p.Memory, _ = uintArg(args, "memory")
	p.Disk, _ = uintArg(args, "disk")
	p.DiskType, _ = args["disk_type"].(string)
	p.DiskInterface, _ = args["disk_interface"].(string)

	if err := validation.ValidateCustomTemplate(p); err != nil {
		return s.toolError("custom_price", err), nil
	}
	price, err := s.api.CustomPrice(ctx, p)
	if err != nil {
		return s.toolError("custom_price", err), nil
	}
	return jsonResult(price)
}

// uintArg reads a non-negative integer argument. JSON numbers arrive as float64.
func uintArg(args map[string]any, name string) (uint64, bool) {
	switch v := args[name].(type) {
	case float64:
		if v < 0 || v != float64(uint64(v)) {
			return 0, false
		}
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil || n < 0 {
			return 0, false
		}
		return uint64(n), true
	}
	return 0, false
}

// optionalUintArg reads an optional integer argument no larger than max.
func optionalUintArg(args map[string]any, name string, max uint64) (uint64, bool, error) {
	if _, present := args[name]; !present {
		return 0, false, nil
	}
	v, ok := uintArg(args, name)
	if !ok || v > max {
		return 0, true, fmt.Errorf("%s must be an integer between 0 and %d", name, max)
	}
	return v, true, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(b))},
	}, nil
}

func textError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.NewTextContent(msg)},
	}
}

func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("tool call failed", "tool", tool, "error", err)
	return textError(lnvps.Describe(err))
}
