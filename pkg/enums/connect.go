package enums

import "fmt"

// OnboardingStatus tracks Stripe Connect onboarding.
type OnboardingStatus string

const (
	OnboardingStatusPending  OnboardingStatus = "pending"
	OnboardingStatusComplete OnboardingStatus = "complete"
)

var validOnboardingStatuses = []OnboardingStatus{
	OnboardingStatusPending,
	OnboardingStatusComplete,
}

// IsValid reports whether the value matches the canonical onboarding status enum.
func (v OnboardingStatus) IsValid() bool {
	for _, candidate := range validOnboardingStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseOnboardingStatus converts raw input into OnboardingStatus.
func ParseOnboardingStatus(value string) (OnboardingStatus, error) {
	for _, candidate := range validOnboardingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid onboarding status %q", value)
}
