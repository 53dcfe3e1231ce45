// Package access answers the single authorization question of the engine:
// may this principal read or write medications belonging to this subject?
package access

import (
	"github.com/medtrack/medtrackd/internal/errors"
	"github.com/medtrack/medtrackd/internal/store"
)

// Checker evaluates the access predicate against the connection table.
type Checker struct {
	store *store.Store
}

func New(st *store.Store) *Checker {
	return &Checker{store: st}
}

// CanActOn is true when the principal is the subject, or holds an active
// caregiver edge to the subject. Self-edges are implicit.
func (c *Checker) CanActOn(principal, subject string) (bool, error) {
	if principal == "" || subject == "" {
		return false, nil
	}
	if principal == subject {
		return true, nil
	}
	ok, err := c.store.HasActiveEdge(principal, subject)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrStoreUnavailable.Code, "edge lookup failed")
	}
	return ok, nil
}

// Require returns ErrAccessDenied when the predicate fails. The error carries
// nothing about the subject, so denial does not reveal existence.
func (c *Checker) Require(principal, subject string) error {
	ok, err := c.CanActOn(principal, subject)
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrAccessDenied
	}
	return nil
}
