package enums

import "slices"

// ListingStatus maps to the listing_status_enum enum in Postgres.
type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusPending ListingStatus = "pending"
	ListingStatusSold    ListingStatus = "sold"
	ListingStatusDeleted ListingStatus = "deleted"
)

var validListingStatuses = []ListingStatus{
	ListingStatusActive,
	ListingStatusPending,
	ListingStatusSold,
	ListingStatusDeleted,
}

// IsValid reports whether the value matches a known listing status.
func (l ListingStatus) IsValid() bool {
	return slices.Contains(validListingStatuses, l)
}

// ParseListingStatus converts raw input into ListingStatus.
func ParseListingStatus(value string) (ListingStatus, error) {
	return parseEnum(value, validListingStatuses, "listing status")
}
