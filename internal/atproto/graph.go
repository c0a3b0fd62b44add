package atproto

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/blocksweep/blocksweep/internal/moderation"
)

// ListItem is one member of a list.
type ListItem struct {
	URI        string
	SubjectDID string
}

// RecordKey returns the list item's own record key, used to delete it.
func (li ListItem) RecordKey() string {
	return moderation.RecordKey(li.URI)
}

// CreateListItem adds subject to listURI in the session's own repository and
// returns the new item's uri.
func (c *Client) CreateListItem(ctx context.Context, sess *Session, listURI, subject string) (string, error) {
	if err := CheckSession(sess); err != nil {
		return "", err
	}

	body := map[string]any{
		"repo":       sess.DID,
		"collection": CollectionListItem,
		"record": map[string]any{
			"$type":     CollectionListItem,
			"subject":   subject,
			"list":      listURI,
			"createdAt": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
	var resp struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := c.do(ctx, http.MethodPost, "com.atproto.repo.createRecord", sess.AccessJWT, nil, body, &resp); err != nil {
		return "", fmt.Errorf("adding %s to list: %w", subject, err)
	}
	return resp.URI, nil
}

// GetListItems reads a single page of list membership.
func (c *Client) GetListItems(ctx context.Context, sess *Session, listURI string, limit int) ([]ListItem, error) {
	if err := CheckSession(sess); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("list", listURI)
	query.Set("limit", strconv.Itoa(clampLimit(limit)))

	var resp struct {
		Items []struct {
			URI     string `json:"uri"`
			Subject struct {
				DID string `json:"did"`
			} `json:"subject"`
		} `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "app.bsky.graph.getList", sess.AccessJWT, query, nil, &resp); err != nil {
		return nil, fmt.Errorf("reading list membership: %w", err)
	}

	items := make([]ListItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		items = append(items, ListItem{URI: it.URI, SubjectDID: it.Subject.DID})
	}
	return items, nil
}

// DeleteListItem removes the list item record rkey from the session's repository.
func (c *Client) DeleteListItem(ctx context.Context, sess *Session, rkey string) error {
	if err := CheckSession(sess); err != nil {
		return err
	}

	body := map[string]string{
		"repo":       sess.DID,
		"collection": CollectionListItem,
		"rkey":       rkey,
	}
	if err := c.do(ctx, http.MethodPost, "com.atproto.repo.deleteRecord", sess.AccessJWT, nil, body, nil); err != nil {
		return fmt.Errorf("deleting list item %s: %w", rkey, err)
	}
	return nil
}
