package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	mssql "github.com/microsoft/go-mssqldb"
)

// SubError is one server or transport error inside a CompositeError.
type SubError struct {
	Number  int32
	State   uint8
	Class   uint8
	Message string

	// Transport is set when Number was derived from a client-side network
	// error rather than reported by the server.
	Transport bool
}

func (s SubError) String() string {
	return fmt.Sprintf("%d: %s", s.Number, s.Message)
}

// CompositeError is a single failure carrying an ordered list of sub-errors.
type CompositeError struct {
	Errors []SubError

	// Throttling is attached while the sub-errors are evaluated.
	Throttling *ThrottlingCondition

	cause error
}

// NewCompositeError builds a composite from explicit sub-errors.
func NewCompositeError(subs ...SubError) *CompositeError {
	return &CompositeError{Errors: subs}
}

func (e *CompositeError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	switch len(e.Errors) {
	case 0:
		return "composite error with no sub-errors"
	case 1:
		return e.Errors[0].Message
	}
	parts := make([]string, len(e.Errors))
	for i, s := range e.Errors {
		parts[i] = s.String()
	}
	return strings.Join(parts, "; ")
}

func (e *CompositeError) Unwrap() error {
	return e.cause
}

func (e *CompositeError) clone() *CompositeError {
	return &CompositeError{
		Errors:     append([]SubError(nil), e.Errors...),
		Throttling: e.Throttling,
		cause:      e,
	}
}

// Codes returns the sub-error numbers in order.
func (e *CompositeError) Codes() []int32 {
	codes := make([]int32, len(e.Errors))
	for i, s := range e.Errors {
		codes[i] = s.Number
	}
	return codes
}

// sqlErrorNumberer is implemented by driver errors that expose a server error number.
type sqlErrorNumberer interface {
	SQLErrorNumber() int32
}

// AsComposite finds the error codes carried by err.
// It returns false when err carries no server or transport code, which the
// classifier treats as Unclassified. An existing *CompositeError is never
// returned as is: the result is a copy wrapping it, so annotating it does not
// touch a value the caller may share between goroutines.
func AsComposite(err error) (*CompositeError, bool) {
	if err == nil {
		return nil, false
	}

	var ce *CompositeError
	if errors.As(err, &ce) {
		return ce.clone(), true
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return fromDriverError(msErr, err), true
	}

	var numbered sqlErrorNumberer
	if errors.As(err, &numbered) {
		return &CompositeError{
			Errors: []SubError{{Number: numbered.SQLErrorNumber(), Message: err.Error()}},
			cause:  err,
		}, true
	}

	if code, ok := transportCode(err); ok {
		return &CompositeError{
			Errors: []SubError{{Number: code, Message: err.Error(), Transport: true}},
			cause:  err,
		}, true
	}

	return nil, false
}

func fromDriverError(msErr mssql.Error, cause error) *CompositeError {
	all := msErr.All
	if len(all) == 0 {
		all = []mssql.Error{msErr}
	}
	subs := make([]SubError, len(all))
	for i, e := range all {
		subs[i] = SubError{Number: e.Number, State: e.State, Class: e.Class, Message: e.Message}
	}
	return &CompositeError{Errors: subs, cause: cause}
}

// transportCode maps client-side network failures onto the codes the server
// tables know about.
func transportCode(err error) (int32, bool) {
	// The caller's own deadline or cancellation is never a transport fault.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return CodeTimeout, true
		}
		return CodeHostNotFound, true
	}

	switch {
	case errors.Is(err, syscall.ECONNRESET):
		return CodeConnectionForciblyClosed, true
	case errors.Is(err, syscall.ECONNABORTED):
		return CodeTransportReceiveFailed, true
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH):
		return CodeNetworkInstanceError, true
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return CodeSevereError, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeTimeout, true
	}

	return driverTransportCode(err.Error())
}

// driverTransportFragments covers dial and I/O failures the driver formats
// into plain text, dropping the underlying network error. First match wins.
var driverTransportFragments = []struct {
	fragment string
	code     int32
}{
	{"no such host", CodeHostNotFound},
	{"i/o timeout", CodeTimeout},
	{"connection reset by peer", CodeConnectionForciblyClosed},
	{"broken pipe", CodeTransportReceiveFailed},
	{"unable to open tcp connection", CodeNetworkInstanceError},
}

func driverTransportCode(msg string) (int32, bool) {
	msg = strings.ToLower(msg)
	for _, f := range driverTransportFragments {
		if strings.Contains(msg, f.fragment) {
			return f.code, true
		}
	}
	return 0, false
}
