package atproto

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/blocksweep/blocksweep/internal/moderation"
)

const (
	embedImagesView          = "app.bsky.embed.images#view"
	embedRecordWithMediaView = "app.bsky.embed.recordWithMedia#view"
)

type postView struct {
	URI    string `json:"uri"`
	Author struct {
		DID    string `json:"did"`
		Handle string `json:"handle"`
	} `json:"author"`
	Record struct {
		Text string `json:"text"`
	} `json:"record"`
	Embed json.RawMessage `json:"embed"`
}

type embedView struct {
	Type   string          `json:"$type"`
	Images []imageView     `json:"images"`
	Media  json.RawMessage `json:"media"`
}

type imageView struct {
	Thumb    string `json:"thumb"`
	Fullsize string `json:"fullsize"`
	Alt      string `json:"alt"`
}

// SearchPosts returns the first page of posts matching q. Later pages are
// never requested.
func (c *Client) SearchPosts(ctx context.Context, sess *Session, q string, limit int) ([]moderation.Post, error) {
	if err := CheckSession(sess); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("q", q)
	query.Set("limit", strconv.Itoa(clampLimit(limit)))

	var resp struct {
		Posts  []postView `json:"posts"`
		Cursor string     `json:"cursor"`
	}
	if err := c.do(ctx, http.MethodGet, "app.bsky.feed.searchPosts", sess.AccessJWT, query, nil, &resp); err != nil {
		return nil, fmt.Errorf("searching posts for %q: %w", q, err)
	}

	if resp.Cursor != "" {
		slog.Debug("search has further pages, not fetched", "keyword", q, "returned", len(resp.Posts))
	}

	posts := make([]moderation.Post, 0, len(resp.Posts))
	for _, pv := range resp.Posts {
		posts = append(posts, pv.toPost())
	}
	return posts, nil
}

func (pv postView) toPost() moderation.Post {
	return moderation.Post{
		URI:          pv.URI,
		AuthorDID:    pv.Author.DID,
		AuthorHandle: pv.Author.Handle,
		Text:         pv.Record.Text,
		Images:       embedImages(pv.Embed),
	}
}

// embedImages collects image URLs from an images view, or from the media half
// of a record-with-media view.
func embedImages(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var ev embedView
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil
	}

	switch ev.Type {
	case embedImagesView:
		var urls []string
		for _, img := range ev.Images {
			if u := img.url(); u != "" {
				urls = append(urls, u)
			}
		}
		return urls
	case embedRecordWithMediaView:
		return embedImages(ev.Media)
	default:
		return nil
	}
}

func (img imageView) url() string {
	if img.Fullsize != "" {
		return img.Fullsize
	}
	return img.Thumb
}
