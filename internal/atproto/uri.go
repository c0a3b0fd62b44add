package atproto

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/blocksweep/blocksweep/internal/moderation"
)

var (
	ErrInvalidURI  = errors.New("invalid at:// uri")
	ErrInvalidLink = errors.New("invalid blocklist link")
)

var (
	postURIPattern  = regexp.MustCompile(`^at://([^/]+)/` + regexp.QuoteMeta(CollectionPost) + `/(.+)$`)
	listURIPattern  = regexp.MustCompile(`^at://(did:[^/]+)/` + regexp.QuoteMeta(CollectionList) + `/([^/]+)$`)
	listLinkPattern = regexp.MustCompile(`profile/([^/]+)/lists/([^/?#]+)`)
)

// ParsePostURI parses at://<did>/app.bsky.feed.post/<rkey> into a post identity.
func ParsePostURI(uri string) (moderation.PostID, error) {
	m := postURIPattern.FindStringSubmatch(strings.TrimSpace(uri))
	if m == nil {
		return moderation.PostID{}, fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return moderation.PostID{AuthorDID: m[1], RecordKey: m[2]}, nil
}

// ListURI builds the at:// uri of a list record.
func ListURI(did, rkey string) string {
	return "at://" + did + "/" + CollectionList + "/" + rkey
}

// ParseListURI splits a list uri into its owner DID and record key.
func ParseListURI(uri string) (did, rkey string, err error) {
	m := listURIPattern.FindStringSubmatch(strings.TrimSpace(uri))
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return m[1], m[2], nil
}

// ParseListLink extracts the profile (handle or DID) and list id from a web
// link such as https://bsky.app/profile/alice.bsky.social/lists/3kabc.
func ParseListLink(link string) (actor, rkey string, err error) {
	m := listLinkPattern.FindStringSubmatch(link)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidLink, link)
	}
	return m[1], m[2], nil
}
