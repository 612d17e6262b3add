package retry

// ErrorCategory is the effective classification of an error code.
type ErrorCategory int

const (
	CategoryUnclassified ErrorCategory = iota
	CategoryNetworkConnectivity
	CategoryCloudTransient
	CategoryNonRetryableDataTransfer
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryNetworkConnectivity:
		return "NetworkConnectivity"
	case CategoryCloudTransient:
		return "CloudTransient"
	case CategoryNonRetryableDataTransfer:
		return "NonRetryableDataTransfer"
	default:
		return "Unclassified"
	}
}

// Retryable reports whether errors of this category may be retried.
func (c ErrorCategory) Retryable() bool {
	return c == CategoryNetworkConnectivity || c == CategoryCloudTransient
}

// Classifier answers table-membership questions about error codes.
// It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	tables Tables
}

// NewClassifier creates a classifier over the given tables.
func NewClassifier(tables Tables) *Classifier {
	return &Classifier{tables: tables}
}

// DefaultClassifier uses DefaultTables.
var DefaultClassifier = NewClassifier(DefaultTables())

// Tables returns the tables the classifier consults.
func (c *Classifier) Tables() Tables {
	return c.tables
}

// IsNonRetryableDataTransfer reports membership in the blocklist. Callers
// check it before the other tables; a hit always means do not retry.
func (c *Classifier) IsNonRetryableDataTransfer(code int32) bool {
	return c.tables.NonRetryableDataTransfer.Contains(code)
}

// IsNetworkConnectivityRetryable reports whether code is a retryable
// connection-stage failure on platform. Off the primary platform code 0 is
// reported for every severed connection, so it is not retried there.
func (c *Classifier) IsNetworkConnectivityRetryable(code int32, platform Platform) bool {
	if code == CodeSevereError && !platform.IsPrimary() {
		return false
	}
	return c.tables.NetworkConnectivity.Contains(code)
}

// IsCloudTransientRetryable reports membership in the cloud-transient set,
// which already includes every network-connectivity code.
func (c *Classifier) IsCloudTransientRetryable(code int32) bool {
	return c.tables.CloudTransient.Contains(code)
}

// Classify returns the effective category of code. The blocklist wins over
// any other membership.
func (c *Classifier) Classify(code int32, platform Platform) ErrorCategory {
	switch {
	case c.IsNonRetryableDataTransfer(code):
		return CategoryNonRetryableDataTransfer
	case c.IsNetworkConnectivityRetryable(code, platform):
		return CategoryNetworkConnectivity
	case c.IsCloudTransientRetryable(code):
		return CategoryCloudTransient
	default:
		return CategoryUnclassified
	}
}

// SubErrorTest decides whether a single sub-error may be retried.
type SubErrorTest func(SubError) bool

// CanRetryComposite applies test to every sub-error in order and stops at
// the first one that fails. It returns true only when at least one sub-error
// was evaluated and all passed. A throttling sub-error has its reason decoded
// and attached to ce before it is tested, so ce must not be shared; pass the
// copy returned by AsComposite.
func CanRetryComposite(ce *CompositeError, test SubErrorTest) bool {
	if ce == nil || len(ce.Errors) == 0 {
		return false
	}
	for _, sub := range ce.Errors {
		if ce.Throttling == nil {
			if cond, ok := DecodeThrottling(sub.Number, sub.Message); ok {
				ce.Throttling = cond
			}
		}
		if !test(sub) {
			return false
		}
	}
	return true
}

// IsNetworkConnectivityRetryable uses DefaultClassifier.
func IsNetworkConnectivityRetryable(code int32, platform Platform) bool {
	return DefaultClassifier.IsNetworkConnectivityRetryable(code, platform)
}

// IsCloudTransientRetryable uses DefaultClassifier.
func IsCloudTransientRetryable(code int32) bool {
	return DefaultClassifier.IsCloudTransientRetryable(code)
}

// IsNonRetryableDataTransfer uses DefaultClassifier.
func IsNonRetryableDataTransfer(code int32) bool {
	return DefaultClassifier.IsNonRetryableDataTransfer(code)
}

// Classify uses DefaultClassifier.
func Classify(code int32, platform Platform) ErrorCategory {
	return DefaultClassifier.Classify(code, platform)
}
