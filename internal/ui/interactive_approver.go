package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// InteractiveApprover asks the operator to type the database name.
type InteractiveApprover struct {
	input  io.Reader
	output io.Writer
}

// NewInteractiveApprover prompts on output and reads the answer from input.
func NewInteractiveApprover(input io.Reader, output io.Writer) *InteractiveApprover {
	return &InteractiveApprover{input: input, output: output}
}

// RequestApproval approves only when the typed line equals dbName.
func (a *InteractiveApprover) RequestApproval(ctx context.Context, dbName string) (bool, error) {
	fmt.Fprintf(a.output, "\nWARNING: You are about to DROP the database '%s'.\n", dbName)
	fmt.Fprintln(a.output, "Open sessions will be rolled back and all data deleted.")
	fmt.Fprintf(a.output, "\nTo confirm, type the database name '%s' and press Enter: ", dbName)

	inputChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		line, err := bufio.NewReader(a.input).ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			errChan <- err
			return
		}
		inputChan <- strings.TrimSpace(line)
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case err := <-errChan:
		return false, fmt.Errorf("failed to read input: %w", err)
	case input := <-inputChan:
		if input == dbName {
			fmt.Fprintln(a.output, "Confirmed.")
			return true, nil
		}
		fmt.Fprintf(a.output, "Input '%s' does not match database name '%s'. Operation cancelled.\n", input, dbName)
		return false, nil
	}
}

var _ Approver = (*InteractiveApprover)(nil)
