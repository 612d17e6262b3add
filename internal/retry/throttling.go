package retry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ThrottlingCode is the only code whose message carries a decodable reason.
const ThrottlingCode = CodeServiceBusy

// ThrottlingMode is what the service is rejecting while throttled.
type ThrottlingMode int

const (
	ThrottlingModeNone ThrottlingMode = iota
	ThrottlingModeRejectUpdateInsert
	ThrottlingModeRejectAllWrites
	ThrottlingModeRejectAll
	ThrottlingModeUnknown
)

func (m ThrottlingMode) String() string {
	switch m {
	case ThrottlingModeNone:
		return "NoThrottling"
	case ThrottlingModeRejectUpdateInsert:
		return "RejectUpdateInsert"
	case ThrottlingModeRejectAllWrites:
		return "RejectAllWrites"
	case ThrottlingModeRejectAll:
		return "RejectAll"
	default:
		return "Unknown"
	}
}

// ResourceType is a resource the service can throttle on.
type ResourceType int

// Order matches the two-bit groups of the reason code, lowest first.
const (
	ResourcePhysicalDatabaseSpace ResourceType = iota
	ResourcePhysicalLogSpace
	ResourceLogWriteIODelay
	ResourceDataReadIODelay
	ResourceCPU
	ResourceDatabaseSize
	ResourceInternal
	ResourceWorkerThreads
	ResourceSessions
)

var resourceNames = [...]string{
	"PhysicalDatabaseSpace",
	"PhysicalLogSpace",
	"LogWriteIODelay",
	"DataReadIODelay",
	"CPU",
	"DatabaseSize",
	"Internal",
	"WorkerThreads",
	"Sessions",
}

func (r ResourceType) String() string {
	if r >= 0 && int(r) < len(resourceNames) {
		return resourceNames[r]
	}
	return fmt.Sprintf("Resource(%d)", int(r))
}

// ThrottlingType is how hard a resource is throttled.
type ThrottlingType int

const (
	ThrottlingTypeNone ThrottlingType = iota
	ThrottlingTypeSoft
	ThrottlingTypeHard
	ThrottlingTypeUnknown
)

func (t ThrottlingType) String() string {
	switch t {
	case ThrottlingTypeNone:
		return "None"
	case ThrottlingTypeSoft:
		return "Soft"
	case ThrottlingTypeHard:
		return "Hard"
	default:
		return "Unknown"
	}
}

// ThrottledResource pairs a resource with its throttling type.
type ThrottledResource struct {
	Resource ResourceType
	Type     ThrottlingType
}

// ThrottlingCondition is the decoded reason attached to a throttling error.
type ThrottlingCondition struct {
	Mode       ThrottlingMode
	Resources  []ThrottledResource
	ReasonCode int
	// Raw is the payload the condition was decoded from.
	Raw string
}

// UnknownThrottling is returned when the payload carries no usable reason.
func UnknownThrottling(raw string) *ThrottlingCondition {
	return &ThrottlingCondition{Mode: ThrottlingModeUnknown, ReasonCode: -1, Raw: raw}
}

// IsThrottledOn reports whether the resource is throttled at any level.
func (c *ThrottlingCondition) IsThrottledOn(r ResourceType) bool {
	for _, tr := range c.Resources {
		if tr.Resource == r && tr.Type != ThrottlingTypeNone {
			return true
		}
	}
	return false
}

func (c *ThrottlingCondition) String() string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "mode=%s", c.Mode)
	if c.ReasonCode >= 0 {
		fmt.Fprintf(&b, " reason=%d", c.ReasonCode)
	}
	for _, tr := range c.Resources {
		fmt.Fprintf(&b, " %s=%s", tr.Resource, tr.Type)
	}
	return b.String()
}

var reasonCodePattern = regexp.MustCompile(`(?i)\bcode:\s*(\d+)`)

// DecodeThrottling extracts the throttling reason from the message of a
// throttling error. ok is false when code is not the throttling code.
// A message without a parseable reason yields ThrottlingModeUnknown.
func DecodeThrottling(code int32, message string) (cond *ThrottlingCondition, ok bool) {
	if code != ThrottlingCode {
		return nil, false
	}

	m := reasonCodePattern.FindStringSubmatch(message)
	if m == nil {
		return UnknownThrottling(message), true
	}
	reason, err := strconv.Atoi(m[1])
	if err != nil {
		return UnknownThrottling(message), true
	}
	return decodeReason(reason, message), true
}

// decodeReason splits a reason code: the low two bits are the mode, and
// from bit 8 upward each resource takes two bits of throttling type.
func decodeReason(reason int, raw string) *ThrottlingCondition {
	cond := &ThrottlingCondition{
		Mode:       ThrottlingMode(reason & 3),
		ReasonCode: reason,
		Raw:        raw,
	}

	group := reason >> 8
	for r := range resourceNames {
		t := ThrottlingType((group >> (2 * r)) & 3)
		if t != ThrottlingTypeNone {
			cond.Resources = append(cond.Resources, ThrottledResource{Resource: ResourceType(r), Type: t})
		}
	}
	return cond
}
