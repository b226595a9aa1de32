package auth_test

import (
	"testing"

	"ms-booking/internal/apperr"
	"ms-booking/internal/auth"
	"ms-booking/internal/models"
)

func TestCan(t *testing.T) {
	cases := []struct {
		role   string
		action auth.Action
		want   bool
	}{
		{models.RoleUser, auth.ActionBookingApprove, false},
		{models.RoleManager, auth.ActionBookingApprove, true},
		{models.RoleAdmin, auth.ActionBookingApprove, true},

		{models.RoleManager, auth.ActionBookingPurge, false},
		{models.RoleAdmin, auth.ActionBookingPurge, true},

		{models.RoleManager, auth.ActionPaymentVerify, false},
		{models.RoleAdmin, auth.ActionPaymentVerify, true},
		{models.RoleManager, auth.ActionPaymentRefund, true},

		{models.RoleManager, auth.ActionSettingsRead, true},
		{models.RoleManager, auth.ActionSettingsUpdate, false},
		{models.RoleAdmin, auth.ActionSettingsUpdate, true},

		{models.RoleUser, auth.ActionAuditRead, false},
		{models.RoleManager, auth.ActionAuditRead, true},
	}

	for _, tc := range cases {
		got := auth.Can(models.Principal{ID: "p", Role: tc.role}, tc.action)
		if got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestSystemCanDoEverything(t *testing.T) {
	system := models.SystemPrincipal()
	actions := []auth.Action{
		auth.ActionBookingApprove,
		auth.ActionBookingReject,
		auth.ActionBookingPurge,
		auth.ActionMarkPaymentReceived,
		auth.ActionMarkInvoiceIssued,
		auth.ActionPaymentVerify,
		auth.ActionPaymentRefund,
		auth.ActionSettingsRead,
		auth.ActionSettingsUpdate,
		auth.ActionAuditRead,
	}
	for _, action := range actions {
		if !auth.Can(system, action) {
			t.Errorf("Expected the system principal to be allowed %s", action)
		}
	}
}

func TestRequire(t *testing.T) {
	user := models.Principal{ID: "alice", Role: models.RoleUser}

	err := auth.Require(user, auth.ActionBookingApprove)
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Errorf("Expected a forbidden error, got %v", err)
	}

	if err := auth.Require(models.Principal{ID: "mgr", Role: models.RoleManager}, auth.ActionBookingApprove); err != nil {
		t.Errorf("Expected no error for a manager, got %v", err)
	}
}
