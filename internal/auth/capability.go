package auth

import (
	"ms-booking/internal/apperr"
	"ms-booking/internal/models"
)

// Action names every privileged operation of the engine. Role checks are
// centralized here instead of being scattered over the entry points.
type Action string

const (
	ActionBookingApprove      Action = "booking:approve"
	ActionBookingReject       Action = "booking:reject"
	ActionBookingPurge        Action = "booking:purge"
	ActionMarkPaymentReceived Action = "booking:mark_payment_received"
	ActionMarkInvoiceIssued   Action = "booking:mark_invoice_issued"
	ActionPaymentVerify       Action = "payment:verify"
	ActionPaymentRefund       Action = "payment:refund"
	ActionSettingsRead        Action = "settings:read"
	ActionSettingsUpdate      Action = "settings:update"
	ActionAuditRead           Action = "audit:read"
)

var capabilities = map[Action][]string{
	ActionBookingApprove:      {models.RoleAdmin, models.RoleManager},
	ActionBookingReject:       {models.RoleAdmin, models.RoleManager},
	ActionBookingPurge:        {models.RoleAdmin},
	ActionMarkPaymentReceived: {models.RoleAdmin, models.RoleManager},
	ActionMarkInvoiceIssued:   {models.RoleAdmin, models.RoleManager},
	ActionPaymentVerify:       {models.RoleAdmin},
	ActionPaymentRefund:       {models.RoleAdmin, models.RoleManager},
	ActionSettingsRead:        {models.RoleAdmin, models.RoleManager},
	ActionSettingsUpdate:      {models.RoleAdmin},
	ActionAuditRead:           {models.RoleAdmin, models.RoleManager},
}

// Can reports whether the principal may perform the action. The system
// principal can do everything: scheduler sweeps reuse the same transition
// functions as interactive requests.
func Can(p models.Principal, action Action) bool {
	if p.Role == models.RoleSystem {
		return true
	}
	for _, role := range capabilities[action] {
		if p.Role == role {
			return true
		}
	}
	return false
}

// Require returns a ForbiddenError when the principal lacks the action.
func Require(p models.Principal, action Action) error {
	if !Can(p, action) {
		return apperr.Forbidden("role %q may not perform %s", p.Role, action)
	}
	return nil
}
