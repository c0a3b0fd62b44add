package atproto

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ResolveHandle maps a handle to its DID.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	query := url.Values{}
	query.Set("handle", strings.TrimPrefix(handle, "@"))

	var resp struct {
		DID string `json:"did"`
	}
	if err := c.do(ctx, http.MethodGet, "com.atproto.identity.resolveHandle", "", query, nil, &resp); err != nil {
		return "", fmt.Errorf("resolving handle %s: %w", handle, err)
	}
	if resp.DID == "" {
		return "", fmt.Errorf("resolving handle %s: empty did", handle)
	}
	return resp.DID, nil
}

// HandleResolver resolves handles to DIDs.
type HandleResolver interface {
	ResolveHandle(ctx context.Context, handle string) (string, error)
}

// ResolveListLink turns a bsky.app list link into the list's at:// uri.
func ResolveListLink(ctx context.Context, r HandleResolver, link string) (string, error) {
	actor, rkey, err := ParseListLink(link)
	if err != nil {
		return "", err
	}
	did := actor
	if !strings.HasPrefix(actor, "did:") {
		did, err = r.ResolveHandle(ctx, actor)
		if err != nil {
			return "", err
		}
	}
	return ListURI(did, rkey), nil
}
