// Package directory defines the representative directory port.
package directory

import "context"

// Directory answers questions about business representatives. Its answers are
// authoritative for authorization decisions.
type Directory interface {
	// ParentRepresentative returns the first representative ever registered for
	// the business. found is false when the business has none.
	ParentRepresentative(ctx context.Context, businessID string) (repID string, found bool, err error)

	// IsSupportActor reports whether the user holds the support role.
	IsSupportActor(ctx context.Context, userID string) (bool, error)

	// BusinessForRep returns the business the representative belongs to.
	BusinessForRep(ctx context.Context, repID string) (businessID string, found bool, err error)
}
