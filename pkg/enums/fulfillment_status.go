package enums

import "slices"

// FulfillmentStatus captures shipping progress of a pending listing.
type FulfillmentStatus string

const (
	FulfillmentUnfulfilled FulfillmentStatus = "unfulfilled"
	FulfillmentShipped     FulfillmentStatus = "shipped"
	FulfillmentDelivered   FulfillmentStatus = "delivered"
)

var validFulfillmentStatuses = []FulfillmentStatus{
	FulfillmentUnfulfilled,
	FulfillmentShipped,
	FulfillmentDelivered,
}

// IsValid reports whether the value matches a known fulfillment status.
func (f FulfillmentStatus) IsValid() bool {
	return slices.Contains(validFulfillmentStatuses, f)
}

// ParseFulfillmentStatus converts raw input into FulfillmentStatus.
func ParseFulfillmentStatus(value string) (FulfillmentStatus, error) {
	return parseEnum(value, validFulfillmentStatuses, "fulfillment status")
}
