// Package access implements the ownership gate run before every mutating
// operation on a spot, review, booking or image.
//
// Callers must load the resource first and turn a missing row into a
// not-found error; only a resource that exists reaches Authorize, so a
// 403 is never returned for an id that does not exist.
package access

import "github.com/iliyamo/spot-rental/internal/repository"

// Owned is implemented by every resource with a single owning or
// authoring user.
type Owned interface {
	OwnedBy() uint64
}

// OwnerID adapts a bare owner id, as returned by joined lookups such as the
// spot owner of an image, to Owned.
type OwnerID uint64

// OwnedBy returns the id itself.
func (o OwnerID) OwnedBy() uint64 { return uint64(o) }

// Authorize returns repository.ErrForbidden unless identity owns resource.
// A zero identity never owns anything.
func Authorize(identity uint64, resource Owned) error {
	if identity == 0 || resource == nil || resource.OwnedBy() != identity {
		return repository.ErrForbidden
	}
	return nil
}

// AuthorizeAny passes when identity owns at least one of the resources.
// Booking cancellation uses it: both the booker and the spot owner may
// cancel.
func AuthorizeAny(identity uint64, resources ...Owned) error {
	for _, r := range resources {
		if Authorize(identity, r) == nil {
			return nil
		}
	}
	return repository.ErrForbidden
}

// Load runs the existence check and then the ownership check in that
// order.  A lookup error, typically a not-found sentinel, is returned
// unchanged.
func Load[T Owned](identity uint64, lookup func() (T, error)) (T, error) {
	res, err := lookup()
	if err != nil {
		return res, err
	}
	if err := Authorize(identity, res); err != nil {
		return res, err
	}
	return res, nil
}
