package ui

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/vvka-141/mssqlretry/pkg/mssqlretry"
)

// ForcedApprover approves after a countdown the operator can interrupt.
// It backs the --force flag.
type ForcedApprover struct {
	output    io.Writer
	countdown time.Duration
	sleepFn   func(time.Duration)
}

// NewForcedApprover writes its countdown to output.
func NewForcedApprover(output io.Writer) *ForcedApprover {
	return &ForcedApprover{
		output:    output,
		countdown: mssqlretry.DefaultForceApprovalCountdown,
		sleepFn:   time.Sleep,
	}
}

// RequestApproval counts down once per second and approves at zero.
func (a *ForcedApprover) RequestApproval(ctx context.Context, dbName string) (bool, error) {
	fmt.Fprintf(a.output, "\nDANGER: database [%s] and all of its data will be dropped.\n", dbName)

	for i := int(a.countdown.Seconds()); i > 0; i-- {
		if err := ctx.Err(); err != nil {
			fmt.Fprintln(a.output)
			return false, err
		}
		fmt.Fprintf(a.output, "\rDropping in: %d seconds... (Press Ctrl+C to cancel)", i)
		a.sleepFn(time.Second)
	}
	if err := ctx.Err(); err != nil {
		fmt.Fprintln(a.output)
		return false, err
	}

	fmt.Fprintf(a.output, "\rProceeding with drop of [%s]                              \n", dbName)
	return true, nil
}

var _ Approver = (*ForcedApprover)(nil)
