package retry

// ErrorDetectionStrategy decides whether a failed operation may be retried.
// The policy loop depends only on this interface, so each stage (opening a
// connection, running a command, reading metadata) plugs in its own rules.
type ErrorDetectionStrategy interface {
	CanRetry(ce *CompositeError) bool
}

// IgnoreDetector is implemented by strategies that recognise failures safe to
// repeat at once, without waiting.
type IgnoreDetector interface {
	ShouldIgnore(ce *CompositeError) bool
}

// NetworkConnectivityStrategy retries connection-stage transport failures.
type NetworkConnectivityStrategy struct {
	Classifier *Classifier
	Platform   Platform
}

// NewNetworkConnectivityStrategy uses DefaultClassifier on the current platform.
func NewNetworkConnectivityStrategy() *NetworkConnectivityStrategy {
	return &NetworkConnectivityStrategy{Classifier: DefaultClassifier, Platform: CurrentPlatform()}
}

func (s *NetworkConnectivityStrategy) CanRetry(ce *CompositeError) bool {
	c := classifierOrDefault(s.Classifier)
	return CanRetryComposite(ce, func(sub SubError) bool {
		if c.IsNonRetryableDataTransfer(sub.Number) {
			return false
		}
		return c.IsNetworkConnectivityRetryable(sub.Number, s.Platform)
	})
}

// CloudTransientStrategy retries any transient fault of a remote operation:
// throttling, resource pressure, deadlocks and dropped connections.
type CloudTransientStrategy struct {
	Classifier *Classifier
}

// NewCloudTransientStrategy uses DefaultClassifier.
func NewCloudTransientStrategy() *CloudTransientStrategy {
	return &CloudTransientStrategy{Classifier: DefaultClassifier}
}

func (s *CloudTransientStrategy) CanRetry(ce *CompositeError) bool {
	c := classifierOrDefault(s.Classifier)
	return CanRetryComposite(ce, func(sub SubError) bool {
		if c.IsNonRetryableDataTransfer(sub.Number) {
			return false
		}
		return c.IsCloudTransientRetryable(sub.Number)
	})
}

// SchemaMetadataStrategy is the cloud-transient strategy plus an ignore rule
// for catalog scans that raced a concurrent DDL statement.
type SchemaMetadataStrategy struct {
	CloudTransientStrategy
	IgnoreCodes map[int32]bool
}

// NewSchemaMetadataStrategy uses DefaultClassifier and ignores code 601.
func NewSchemaMetadataStrategy() *SchemaMetadataStrategy {
	return &SchemaMetadataStrategy{
		CloudTransientStrategy: CloudTransientStrategy{Classifier: DefaultClassifier},
		IgnoreCodes:            map[int32]bool{CodeNoLockScanDataMovement: true},
	}
}

// ShouldIgnore is true when every sub-error is an ignorable metadata race.
func (s *SchemaMetadataStrategy) ShouldIgnore(ce *CompositeError) bool {
	return CanRetryComposite(ce, func(sub SubError) bool {
		return s.IgnoreCodes[sub.Number]
	})
}

// neverRetry backs NoRetryPolicy.
type neverRetry struct{}

func (neverRetry) CanRetry(*CompositeError) bool { return false }

func classifierOrDefault(c *Classifier) *Classifier {
	if c == nil {
		return DefaultClassifier
	}
	return c
}

var (
	_ ErrorDetectionStrategy = (*NetworkConnectivityStrategy)(nil)
	_ ErrorDetectionStrategy = (*CloudTransientStrategy)(nil)
	_ ErrorDetectionStrategy = (*SchemaMetadataStrategy)(nil)
	_ IgnoreDetector         = (*SchemaMetadataStrategy)(nil)
)
