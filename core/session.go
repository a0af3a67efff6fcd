package core

import (
	"context"
	"time"
)

const defaultSessionTTL = 5 * time.Hour

// SessionStore tracks the identity logged in under a transport session id.
// Start overwrites any previous identity for sid; Current returns nil when
// nothing is stored; End removes the identity and retires sid for good.
type SessionStore interface {
	Start(ctx context.Context, sid string, identity Identity) error
	Current(ctx context.Context, sid string) (*Identity, error)
	End(ctx context.Context, sid string) error
}
