package auth

import (
	"context"
	"errors"
)

var (
	// ErrUnauthenticated fires when no principal is attached to the context.
	ErrUnauthenticated = errors.New("auth: not authenticated")
	// ErrForbidden fires when an attached principal fails a partition check.
	// It never reveals whether a referenced resource exists.
	ErrForbidden = errors.New("auth: access denied")
)

type ctxKey struct{}

// WithPrincipal attaches a verified principal to the request context. The
// principal travels as an explicit context value rather than mutable request
// state so every handler sees the same immutable identity.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom returns the attached principal, if any.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

// RequireAuthenticated passes for any attached principal.
func RequireAuthenticated(ctx context.Context) (Principal, error) {
	p, ok := PrincipalFrom(ctx)
	if !ok || p.Acct() == nil {
		return Principal{}, ErrUnauthenticated
	}
	return p, nil
}

// RequirePartition passes only for principals of the given partition.
func RequirePartition(ctx context.Context, partition Partition) (Principal, error) {
	p, err := RequireAuthenticated(ctx)
	if err != nil {
		return Principal{}, err
	}
	if p.Partition != partition {
		return Principal{}, ErrForbidden
	}
	return p, nil
}

// RequireOneOf passes for principals of any of the given partitions. Gates
// short-circuit on the first failure and compose in any order.
func RequireOneOf(ctx context.Context, partitions ...Partition) (Principal, error) {
	p, err := RequireAuthenticated(ctx)
	if err != nil {
		return Principal{}, err
	}
	for _, partition := range partitions {
		if p.Partition == partition {
			return p, nil
		}
	}
	return Principal{}, ErrForbidden
}
