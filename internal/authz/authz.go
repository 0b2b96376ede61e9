// Package authz answers whether a principal may act on a resource.
//
// A policy is a disjunction of small predicates; the first satisfied
// predicate allows. Denials carry no detail about the resource so that an
// unauthorized caller learns nothing beyond "not permitted".
package authz

import (
	"fmt"

	"github.com/Clark-Hu/tourbook/internal/domain"
)

// Resource describes the ownership facts of whatever is being acted on.
type Resource struct {
	// OwnerUserID is the booking's user or the review's author.
	OwnerUserID string
	// GuideID is the guide of the tour the resource belongs to, if any.
	GuideID *string
}

// ForTour describes a tour.
func ForTour(t domain.Tour) Resource {
	return Resource{GuideID: t.GuideID}
}

// ForBooking describes a booking on tour t.
func ForBooking(b domain.Booking, t domain.Tour) Resource {
	return Resource{OwnerUserID: b.UserID, GuideID: t.GuideID}
}

// ForReview describes a review.
func ForReview(r domain.Review) Resource {
	return Resource{OwnerUserID: r.UserID}
}

// Predicate is one capability clause.
type Predicate func(p domain.Principal, r Resource) bool

// IsOwner allows the resource's owning user.
func IsOwner(p domain.Principal, r Resource) bool {
	return p.ID != "" && r.OwnerUserID == p.ID
}

// IsAdmin allows administrators.
func IsAdmin(p domain.Principal, _ Resource) bool {
	return p.Role == domain.RoleAdmin
}

// IsTourGuide allows the guide of the tour the resource belongs to.
func IsTourGuide(p domain.Principal, r Resource) bool {
	return p.ID != "" && r.GuideID != nil && *r.GuideID == p.ID
}

// HasRole allows any principal holding one of roles.
func HasRole(roles ...domain.Role) Predicate {
	return func(p domain.Principal, _ Resource) bool {
		for _, role := range roles {
			if p.Role == role {
				return true
			}
		}
		return false
	}
}

// Action names an operation guarded by a policy.
type Action string

const (
	ActionCreateTour          Action = "tour.create"
	ActionUpdateTour          Action = "tour.update"
	ActionDeactivateTour      Action = "tour.deactivate"
	ActionListTourBookings    Action = "tour.bookings"
	ActionViewBooking         Action = "booking.view"
	ActionCancelBooking       Action = "booking.cancel"
	ActionChangeBookingStatus Action = "booking.status"
	ActionEditReview          Action = "review.edit"
	ActionDeleteReview        Action = "review.delete"
)

var policies = map[Action][]Predicate{
	ActionCreateTour:          {HasRole(domain.RoleGuide, domain.RoleAdmin)},
	ActionUpdateTour:          {IsTourGuide, IsAdmin},
	ActionDeactivateTour:      {IsTourGuide, IsAdmin},
	ActionListTourBookings:    {IsTourGuide, IsAdmin},
	ActionViewBooking:         {IsOwner, IsTourGuide, IsAdmin},
	ActionCancelBooking:       {IsOwner, IsAdmin},
	ActionChangeBookingStatus: {IsTourGuide, IsAdmin},
	ActionEditReview:          {IsOwner, IsAdmin},
	ActionDeleteReview:        {IsOwner, IsAdmin},
}

// Any reports whether any predicate allows p on r.
func Any(p domain.Principal, r Resource, preds ...Predicate) bool {
	for _, pred := range preds {
		if pred(p, r) {
			return true
		}
	}
	return false
}

// Authorize returns nil when p may perform action on r, and an error wrapping
// domain.ErrForbidden otherwise. Unknown actions are denied.
func Authorize(p domain.Principal, r Resource, action Action) error {
	preds, ok := policies[action]
	if ok && Any(p, r, preds...) {
		return nil
	}
	return fmt.Errorf("%s: %w", action, domain.ErrForbidden)
}
