package models

import "time"

// PackageSize classifies the item to be transported.
type PackageSize string

const (
	PackageSizeSmall  PackageSize = "small"
	PackageSizeMedium PackageSize = "medium"
	PackageSizeLarge  PackageSize = "large"
)

// Urgency expresses how soon the requester needs the delivery.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
)

// RequestStatus is the lifecycle of a pickup request. Requests are never
// deleted, only transitioned.
type RequestStatus string

const (
	RequestStatusOpen       RequestStatus = "open"
	RequestStatusAccepted   RequestStatus = "accepted"
	RequestStatusInProgress RequestStatus = "in_progress"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusCancelled  RequestStatus = "cancelled"
)

// ValidPackageSize reports whether s is a known package size.
func ValidPackageSize(s PackageSize) bool {
	switch s {
	case PackageSizeSmall, PackageSizeMedium, PackageSizeLarge:
		return true
	}
	return false
}

// ValidUrgency reports whether u is a known urgency level.
func ValidUrgency(u Urgency) bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh:
		return true
	}
	return false
}

// PickupRequest is an offer to pay for transporting an item between two
// locations.
type PickupRequest struct {
	ID               int           `db:"id" json:"id"`
	Title            string        `db:"title" json:"title"`
	Description      string        `db:"description" json:"description"`
	PickupLocation   string        `db:"pickup_location" json:"pickup_location"`
	PickupCity       string        `db:"pickup_city" json:"pickup_city"`
	DeliveryLocation string        `db:"delivery_location" json:"delivery_location"`
	DeliveryCity     string        `db:"delivery_city" json:"delivery_city"`
	PackageSize      PackageSize   `db:"package_size" json:"package_size"`
	Urgency          Urgency       `db:"urgency" json:"urgency"`
	SuggestedPrice   float64       `db:"suggested_price" json:"suggested_price"`
	ContactPhone     string        `db:"contact_phone" json:"contact_phone"`
	Notes            string        `db:"notes" json:"notes,omitempty"`
	RequesterID      int           `db:"requester_id" json:"requester_id"`
	RequesterName    string        `db:"requester_name" json:"requester_name"`
	Status           RequestStatus `db:"status" json:"status"`
	AcceptedBy       *int          `db:"accepted_by" json:"accepted_by,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

// ContactCard is the requester's contact sheet disclosed to the collector
// once the ad gate has opened.
type ContactCard struct {
	RequesterName    string  `json:"requester_name"`
	ContactPhone     string  `json:"contact_phone"`
	PickupLocation   string  `json:"pickup_location"`
	PickupCity       string  `json:"pickup_city"`
	DeliveryLocation string  `json:"delivery_location"`
	DeliveryCity     string  `json:"delivery_city"`
	Description      string  `json:"description"`
	AgreedPrice      float64 `json:"agreed_price"`
}
