package enums

import "fmt"

// EscrowStatus maps to the escrow_status enum in Postgres.
type EscrowStatus string

const (
	EscrowStatusEscrow    EscrowStatus = "escrow"
	EscrowStatusCompleted EscrowStatus = "completed"
	EscrowStatusDisputed  EscrowStatus = "disputed"
	EscrowStatusCancelled EscrowStatus = "cancelled"
)

var validEscrowStatuses = []EscrowStatus{
	EscrowStatusEscrow,
	EscrowStatusCompleted,
	EscrowStatusDisputed,
	EscrowStatusCancelled,
}

// IsValid reports whether the value matches the canonical escrow status enum.
func (v EscrowStatus) IsValid() bool {
	for _, candidate := range validEscrowStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseEscrowStatus converts raw input into EscrowStatus.
func ParseEscrowStatus(value string) (EscrowStatus, error) {
	for _, candidate := range validEscrowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow status %q", value)
}

// DisputeStatus mirrors the dispute workflow owned by the support tooling.
type DisputeStatus string

const (
	DisputeStatusOpen          DisputeStatus = "open"
	DisputeStatusInvestigating DisputeStatus = "investigating"
	DisputeStatusResolved      DisputeStatus = "resolved"
	DisputeStatusRejected      DisputeStatus = "rejected"
	DisputeStatusClosed        DisputeStatus = "closed"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusInvestigating,
	DisputeStatusResolved,
	DisputeStatusRejected,
	DisputeStatusClosed,
}

// IsValid reports whether the value matches the canonical dispute status enum.
func (v DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseDisputeStatus converts raw input into DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}

// BeaconStatus maps to the pickup_beacon_status enum in Postgres.
type BeaconStatus string

const (
	BeaconStatusActive   BeaconStatus = "active"
	BeaconStatusPickedUp BeaconStatus = "picked_up"
	BeaconStatusExpired  BeaconStatus = "expired"
)

var validBeaconStatuses = []BeaconStatus{
	BeaconStatusActive,
	BeaconStatusPickedUp,
	BeaconStatusExpired,
}

// IsValid reports whether the value matches the canonical beacon status enum.
func (v BeaconStatus) IsValid() bool {
	for _, candidate := range validBeaconStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseBeaconStatus converts raw input into BeaconStatus.
func ParseBeaconStatus(value string) (BeaconStatus, error) {
	for _, candidate := range validBeaconStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid beacon status %q", value)
}

// BlocksRelease reports whether a dispute in this status prevents escrow release.
func (v DisputeStatus) BlocksRelease() bool {
	return v == DisputeStatusOpen || v == DisputeStatusInvestigating
}
