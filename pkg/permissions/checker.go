// Package permissions provides utilities for checking the permission claims carried in access tokens
// against required permissions with support for wildcards.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "orders.*")
//   - "resource.action" - Specific action (e.g., "orders.read")
//   - "resource.subresource.action" - Nested permission (e.g., "orders.verification.override")
package permissions

import (
	"strings"
)

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "orders.*" matches "orders.read", "orders.create", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true // No permission required
	}

	for _, p := range userPerms {
		if p == "*" {
			return true // Full admin access
		}
		if p == required {
			return true // Exact match
		}
		// Check wildcard patterns like "orders.*"
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// Permissions understood by the order service.
const (
	OrdersCreate               = "orders.create"
	OrdersRead                 = "orders.read"
	OrdersReadAll              = "orders.read_all"
	OrdersVerificationOverride = "orders.verification.override"
	PrescribersRead            = "prescribers.read"
	PrescribersWrite           = "prescribers.write"
	PrescriptionsVerify        = "prescriptions.verify"
)
