// Package ui asks the operator to confirm destructive database operations.
package ui

import "context"

// Approver confirms a destructive operation on a database before it runs.
type Approver interface {
	// RequestApproval reports whether dropping dbName may proceed.
	RequestApproval(ctx context.Context, dbName string) (bool, error)
}
