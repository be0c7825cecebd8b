package enums

import "fmt"

// FlagTargetType maps to the flag_target_type enum in Postgres.
type FlagTargetType string

const (
	FlagTargetProduct FlagTargetType = "product"
	FlagTargetReview  FlagTargetType = "review"
	FlagTargetVendor  FlagTargetType = "vendor"
)

var validFlagTargetTypes = []FlagTargetType{
	FlagTargetProduct,
	FlagTargetReview,
	FlagTargetVendor,
}

// String implements fmt.Stringer.
func (f FlagTargetType) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FlagTargetType.
func (f FlagTargetType) IsValid() bool {
	for _, candidate := range validFlagTargetTypes {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFlagTargetType converts raw input into a FlagTargetType.
func ParseFlagTargetType(value string) (FlagTargetType, error) {
	for _, candidate := range validFlagTargetTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid flag target type %q", value)
}

// FlagStatus maps to the flag_status enum in Postgres.
type FlagStatus string

const (
	FlagStatusOpen      FlagStatus = "open"
	FlagStatusResolved  FlagStatus = "resolved"
	FlagStatusDismissed FlagStatus = "dismissed"
)

var validFlagStatuses = []FlagStatus{
	FlagStatusOpen,
	FlagStatusResolved,
	FlagStatusDismissed,
}

// String implements fmt.Stringer.
func (f FlagStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FlagStatus.
func (f FlagStatus) IsValid() bool {
	for _, candidate := range validFlagStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (f FlagStatus) IsTerminal() bool {
	return f == FlagStatusResolved || f == FlagStatusDismissed
}

// ParseFlagStatus converts raw input into a FlagStatus.
func ParseFlagStatus(value string) (FlagStatus, error) {
	for _, candidate := range validFlagStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid flag status %q", value)
}
