// Package perks maps stored perk names onto a closed set of capability
// kinds understood by the access engine. Storage keeps arbitrary names;
// anything the catalog does not know becomes Unrecognized and matches
// nothing.
package perks

import (
	"maps"
	"slices"
)

// Kind is the capability class of a perk.
type Kind int

const (
	Unrecognized Kind = iota
	OriginalImage
	Thumbnail
	ExpiringLink
)

func (k Kind) String() string {
	switch k {
	case OriginalImage:
		return "original_image"
	case Thumbnail:
		return "thumbnail"
	case ExpiringLink:
		return "expiring_link"
	default:
		return "unrecognized"
	}
}

// Perk is a recognized capability. Height is set only for Thumbnail.
type Perk struct {
	Kind   Kind
	Height int
}

// Set is a collection of recognized perks. Unrecognized names are never
// stored in it.
type Set map[Perk]struct{}

func (s Set) Has(p Perk) bool {
	if p.Kind == Unrecognized {
		return false
	}
	_, ok := s[p]
	return ok
}

// Catalog is the name table between storage and the engine. Names compare
// by exact, case-sensitive equality.
type Catalog struct {
	byName     map[string]Perk
	thumbnails map[int]string
	original   string
	expiring   string
}

// NewCatalog builds a catalog from the configured perk names and the
// supported thumbnail heights (height to perk name).
func NewCatalog(originalImage, expiringLink string, thumbnails map[int]string) *Catalog {
	c := &Catalog{
		byName:     make(map[string]Perk, len(thumbnails)+2),
		thumbnails: make(map[int]string, len(thumbnails)),
		original:   originalImage,
		expiring:   expiringLink,
	}
	c.byName[originalImage] = Perk{Kind: OriginalImage}
	c.byName[expiringLink] = Perk{Kind: ExpiringLink}
	for h, name := range thumbnails {
		c.thumbnails[h] = name
		c.byName[name] = Perk{Kind: Thumbnail, Height: h}
	}
	return c
}

// Parse maps a stored name to its perk. Unknown names give Unrecognized.
func (c *Catalog) Parse(name string) Perk {
	p, ok := c.byName[name]
	if !ok {
		return Perk{Kind: Unrecognized}
	}
	return p
}

// ParseAll converts stored names into a Set, dropping unknown names.
func (c *Catalog) ParseAll(names []string) Set {
	set := make(Set, len(names))
	for _, n := range names {
		if p := c.Parse(n); p.Kind != Unrecognized {
			set[p] = struct{}{}
		}
	}
	return set
}

// Thumbnail returns the perk gating height. ok is false for heights with
// no table entry.
func (c *Catalog) Thumbnail(height int) (Perk, bool) {
	if _, ok := c.thumbnails[height]; !ok {
		return Perk{Kind: Unrecognized}, false
	}
	return Perk{Kind: Thumbnail, Height: height}, true
}

// Heights returns the supported thumbnail heights in ascending order.
func (c *Catalog) Heights() []int {
	return slices.Sorted(maps.Keys(c.thumbnails))
}

// Name returns the stored name of p, or "" for Unrecognized.
func (c *Catalog) Name(p Perk) string {
	switch p.Kind {
	case OriginalImage:
		return c.original
	case ExpiringLink:
		return c.expiring
	case Thumbnail:
		return c.thumbnails[p.Height]
	default:
		return ""
	}
}
