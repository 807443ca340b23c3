package models

import "time"

// Image is an uploaded original. Width and Height are cached at upload
// time and never rewritten; nil means the upload did not record them.
type Image struct {
	ID          string
	OwnerID     string
	StorageKey  string
	ContentType string
	Width       *int
	Height      *int
	CreatedAt   time.Time
}

// HasDimensions reports whether both cached dimensions are present.
func (i *Image) HasDimensions() bool {
	return i.Width != nil && i.Height != nil && *i.Height > 0
}

// ExpiringLink is a public, time-boxed token bound to one image.
type ExpiringLink struct {
	ID       string
	ImageID  string
	Name     string
	Created  time.Time
	Expiring time.Time
}

// Expired reports whether the link is past its expiry at now.
// A link whose expiry equals now is still redeemable.
func (l *ExpiringLink) Expired(now time.Time) bool {
	return l.Expiring.Before(now)
}
