// Package models defines the domain types shared between the service,
// the durable store adapter and the HTTP layer.
package models

import "time"

// URL represents a shortened URL record. The durable store owns the
// authoritative copy; the resolution cache only ever holds a derived
// (short code -> original URL) pair.
type URL struct {
	// ID is the unique identifier for the shortened URL record.
	ID int64
	// ShortCode is the short code associated with the original URL.
	ShortCode string
	// OriginalURL is the original, full-length URL that the short code points to.
	OriginalURL string
	// IsCustom reports whether the short code was supplied by the caller
	// rather than allocated from the pre-generated pool.
	IsCustom bool
	// IsPublic reports whether the record may appear in public listings.
	IsPublic bool
	// Clicks tracks the number of times the shortened URL has been resolved.
	// It is non-decreasing and mutated only through RecordClick.
	Clicks int64
	// LastClickedAt is the timestamp of the most recent resolution,
	// or nil if the URL has never been resolved.
	LastClickedAt *time.Time
	// Metadata is the opaque client metadata captured at creation time.
	Metadata ClientMetadata
	// CreatedAt is the timestamp indicating when the shortened URL was created.
	CreatedAt time.Time
}

// ClientMetadata carries request metadata captured at the HTTP boundary.
// The core treats it as an opaque payload and passes it through unchanged.
type ClientMetadata struct {
	UserAgent     string `json:"user_agent,omitempty"`
	IPAddress     string `json:"ip_address,omitempty"`
	Referrer      string `json:"referrer,omitempty"`
	Platform      string `json:"sec_ch_ua_platform,omitempty"`
	SecChUA       string `json:"sec_ch_ua,omitempty"`
	SecChUAMobile string `json:"sec_ch_ua_mobile,omitempty"`
}
