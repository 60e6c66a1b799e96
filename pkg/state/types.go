package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable marks a store whose backing storage cannot be reached.
var ErrUnavailable = errors.New("state: store unavailable")

// DefaultDomain is the document domain used by dashboard customizations.
const DefaultDomain = "dashboard"

// Ref identifies one persisted document.
type Ref struct {
	Scope  string
	Domain string
}

// Meta is storage-owned metadata recorded with each document.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads/saves one raw JSON document for a single reference. Load
// reports ok=false when no document exists.
type Store interface {
	Load(ctx context.Context, ref Ref) (doc []byte, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, doc []byte, meta Meta) (Meta, error)
}

// Identifier returns the storage key for r.
func (r Ref) Identifier() (string, error) {
	scope := strings.TrimSpace(r.Scope)
	if scope == "" {
		return "", fmt.Errorf("state: scope is required")
	}
	domain := strings.TrimSpace(r.Domain)
	if domain == "" {
		domain = DefaultDomain
	}
	if strings.Contains(scope, "/") || strings.Contains(domain, "/") {
		return "", fmt.Errorf("state: scope %q and domain %q must not contain '/'", scope, domain)
	}
	return scope + "/" + domain, nil
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}

func stampMeta(meta Meta, now time.Time) Meta {
	out := cloneMeta(meta)
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = now.UTC()
	}
	if out.ETag == "" {
		out.ETag = out.SnapshotID
	}
	return out
}
