package domain

import "strings"

// Item is a uniquely owned tradeable unit.
// Descriptive attributes are opaque to the engine beyond identity.
type Item struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	Platform  string `json:"platform" yaml:"platform"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	Year      int    `json:"year,omitempty" yaml:"year,omitempty"`
	Publisher string `json:"publisher,omitempty" yaml:"publisher,omitempty"`

	// Owner is the account that currently owns the item. Exactly one at any instant.
	Owner string `json:"owner" yaml:"owner"`

	// OwnerVersion increases on every ownership change and is never reused.
	OwnerVersion int64 `json:"owner_version" yaml:"-"`
}

// Ownership is the (owner, version) pair the engine reads before a conditional write.
type Ownership struct {
	Owner   string `json:"owner"`
	Version int64  `json:"version"`
}

// Ownership returns the ownership pair of the item.
func (i Item) Ownership() Ownership {
	return Ownership{Owner: i.Owner, Version: i.OwnerVersion}
}

// InitialOwnerVersion is the version assigned to newly created items.
const InitialOwnerVersion int64 = 1

// ItemFilter narrows item listings. Zero fields match everything.
// Text fields match case-insensitive substrings.
type ItemFilter struct {
	Owner     string
	Title     string
	Platform  string
	Publisher string
	Year      int
}

// Match reports whether the item satisfies the filter.
func (f ItemFilter) Match(item Item) bool {
	if f.Owner != "" && item.Owner != f.Owner {
		return false
	}
	if f.Year != 0 && item.Year != f.Year {
		return false
	}
	return containsFold(item.Title, f.Title) &&
		containsFold(item.Platform, f.Platform) &&
		containsFold(item.Publisher, f.Publisher)
}

func containsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ItemPatch changes descriptive attributes of an item. Nil fields are left as is.
// Ownership is not part of a patch: it only moves through conditional owner writes.
type ItemPatch struct {
	Title     *string `json:"title,omitempty"`
	Platform  *string `json:"platform,omitempty"`
	Condition *string `json:"condition,omitempty"`
	Year      *int    `json:"year,omitempty"`
	Publisher *string `json:"publisher,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ItemPatch) Empty() bool {
	return p.Title == nil && p.Platform == nil && p.Condition == nil && p.Year == nil && p.Publisher == nil
}

// Apply copies the set fields onto item.
func (p ItemPatch) Apply(item *Item) {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Platform != nil {
		item.Platform = *p.Platform
	}
	if p.Condition != nil {
		item.Condition = *p.Condition
	}
	if p.Year != nil {
		item.Year = *p.Year
	}
	if p.Publisher != nil {
		item.Publisher = *p.Publisher
	}
}

// ReplaceAttributes returns a patch that sets every descriptive attribute to those of item.
func ReplaceAttributes(item Item) ItemPatch {
	return ItemPatch{
		Title:     &item.Title,
		Platform:  &item.Platform,
		Condition: &item.Condition,
		Year:      &item.Year,
		Publisher: &item.Publisher,
	}
}

// AccountItems groups the items held by one account.
type AccountItems struct {
	Account string `json:"account"`
	Items   []Item `json:"items"`
}
