package authz

import (
	"context"
	"errors"
	"log/slog"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

// Subject is the authoritative account record the verifier reads.
type Subject struct {
	ID     int64
	Email  string
	Name   string
	Role   Role
	Active bool
}

// Liveness is the transient result of re-checking a session subject
// against the account store. It lives for one request only.
type Liveness struct {
	Exists bool
	Active bool
	Role   Role
}

// UserStore is the authoritative account repository. Implementations
// return shared.ErrNotFound when no account matches.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (Subject, error)
}

// Verifier confirms that a session subject still exists and may act,
// and reports the account's current role. Exactly one store read per
// call; no caching across requests.
type Verifier struct {
	store  UserStore
	logger *slog.Logger
}

// NewVerifier constructs a Verifier.
func NewVerifier(store UserStore, logger *slog.Logger) *Verifier {
	return &Verifier{store: store, logger: logger}
}

// Verify looks up the subject by ID. A missing account and a store
// failure both come back as {Exists:false}: an infrastructure fault
// must never widen access. No retries happen here.
func (v *Verifier) Verify(ctx context.Context, id int64) (Subject, Liveness) {
	subject, err := v.store.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) && v.logger != nil {
			v.logger.Error("liveness check failed", slog.Int64("subject_id", id), slog.Any("error", err))
		}
		return Subject{}, Liveness{}
	}
	return subject, Liveness{Exists: true, Active: subject.Active, Role: subject.Role}
}
