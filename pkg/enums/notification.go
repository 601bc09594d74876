package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeEscrowReleased  NotificationType = "escrow_released"
	NotificationTypeOrderPaid       NotificationType = "order_paid"
	NotificationTypePickupConfirmed NotificationType = "pickup_confirmed"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeEscrowReleased,
	NotificationTypeOrderPaid,
	NotificationTypePickupConfirmed,
}

// IsValid reports whether the value matches the canonical notification type enum.
func (v NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
