package models

import (
	"sort"
	"time"

	"github.com/lib/pq"
)

// MediaKind distinguishes photos from videos.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// ConsentType states which media kinds a parent allows.
type ConsentType string

const (
	ConsentPhotos ConsentType = "photos"
	ConsentVideos ConsentType = "videos"
	ConsentBoth   ConsentType = "both"
	ConsentNone   ConsentType = "none"
)

// Covers reports whether t allows media of kind.
func (t ConsentType) Covers(kind MediaKind) bool {
	switch kind {
	case MediaPhoto:
		return t == ConsentPhotos || t == ConsentBoth
	case MediaVideo:
		return t == ConsentVideos || t == ConsentBoth
	default:
		return false
	}
}

// Usage is a purpose a parent may allow media to be used for.
type Usage string

const (
	UsageInternal    Usage = "internal"
	UsageWebsite     Usage = "website"
	UsageSocialMedia Usage = "social_media"
	UsagePromotional Usage = "promotional"
)

// Media is an uploaded photo or video of a child.
type Media struct {
	ID             string    `db:"id" json:"id"`
	ChildID        string    `db:"child_id" json:"child_id"`
	UploadedByID   string    `db:"uploaded_by_id" json:"uploaded_by_id"`
	MediaKind      MediaKind `db:"media_kind" json:"media_kind"`
	FilePath       string    `db:"file_path" json:"file_path"`
	ContentType    string    `db:"content_type" json:"content_type"`
	Caption        string    `db:"caption" json:"caption"`
	ConsentGranted bool      `db:"consent_granted" json:"consent_granted"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// MediaItem is a media row plus a short-lived download link.
type MediaItem struct {
	Media
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"url_expires_at"`
}

// MediaFilter narrows media listings.
type MediaFilter struct {
	ChildID  string
	ChildIDs []string
	Kind     *MediaKind
	Usage    Usage
	Page     int
	PageSize int
}

// UploadMediaRequest describes a multipart upload; the file travels separately.
type UploadMediaRequest struct {
	ChildID string    `form:"child_id" validate:"required"`
	Kind    MediaKind `form:"media_kind" validate:"required,media_kind"`
	Caption string    `form:"caption"`
}

// MediaConsent is a parent's standing decision about media of one child.
type MediaConsent struct {
	ID               string         `db:"id" json:"id"`
	ChildID          string         `db:"child_id" json:"child_id"`
	ParentID         string         `db:"parent_id" json:"parent_id"`
	ConsentGranted   bool           `db:"consent_granted" json:"consent_granted"`
	ConsentType      ConsentType    `db:"consent_type" json:"consent_type"`
	UsagePermissions pq.StringArray `db:"usage_permissions" json:"usage_permissions"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

func (c MediaConsent) OwnerID() string { return c.ParentID }

// Permits reports whether media of kind may be stored or shown. An empty usage
// skips the purpose check.
func (c MediaConsent) Permits(kind MediaKind, usage Usage) bool {
	if !c.ConsentGranted || !c.ConsentType.Covers(kind) {
		return false
	}
	if usage == "" {
		return true
	}
	for _, u := range c.UsagePermissions {
		if Usage(u) == usage {
			return true
		}
	}
	return false
}

// Normalize enforces the stored form: type none is never granted, and usages
// are kept only while granted, deduplicated and sorted.
func (c *MediaConsent) Normalize() {
	if c.ConsentType == ConsentNone {
		c.ConsentGranted = false
	}
	if !c.ConsentGranted {
		c.UsagePermissions = pq.StringArray{}
		return
	}
	seen := make(map[string]struct{}, len(c.UsagePermissions))
	out := make([]string, 0, len(c.UsagePermissions))
	for _, u := range c.UsagePermissions {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	c.UsagePermissions = out
}

// ConsentRequest is the parent payload for granting or revoking consent.
type ConsentRequest struct {
	ChildID          string      `json:"child_id" validate:"required"`
	ConsentGranted   bool        `json:"consent_granted"`
	ConsentType      ConsentType `json:"consent_type" validate:"required,consent_type"`
	UsagePermissions []Usage     `json:"usage_permissions" validate:"dive,usage"`
}
