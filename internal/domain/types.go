// Package domain holds the regwatch data model shared by the store, monitor and API.
package domain

import "time"

// Source is one tracked regulatory page, unique per (Authority, URL).
type Source struct {
	ID             int64      `db:"id"              json:"id"`
	Authority      string     `db:"authority"       json:"authority"`
	URL            string     `db:"url"             json:"url"`
	Label          string     `db:"label"           json:"label"`
	Category       string     `db:"category"        json:"category"`
	Language       string     `db:"language"        json:"language"`
	Jurisdiction   string     `db:"jurisdiction"    json:"jurisdiction"`
	CurrentVersion int        `db:"current_version" json:"current_version"`
	LastFetchedAt  *time.Time `db:"last_fetched_at" json:"last_fetched_at,omitempty"`
	LastChangedAt  *time.Time `db:"last_changed_at" json:"last_changed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
}

// Version is an immutable snapshot of a source's normalized content.
type Version struct {
	ID          int64          `json:"id"`
	SourceID    int64          `json:"source_id"`
	VersionNo   int            `json:"version"`
	Content     string         `json:"content"`
	Fingerprint string         `json:"fingerprint"`
	CapturedAt  time.Time      `json:"captured_at"`
	Verdict     *ChangeVerdict `json:"verdict,omitempty"`
}

// ChangeVerdict is the classifier's judgement of a content change.
type ChangeVerdict struct {
	IsMeaningfulChange   bool     `json:"is_meaningful_change"`
	Reason               string   `json:"reason"`
	Categories           []string `json:"categories"`
	Changes              []Change `json:"changes"`
	RegenerationRequired bool     `json:"regeneration_required"`
	// Raw holds the completion output when it could not be parsed.
	Raw string `json:"raw,omitempty"`
}

// Change describes one changed region.
type Change struct {
	SectionHint string `json:"section_hint"`
	OldExcerpt  string `json:"old_excerpt"`
	NewExcerpt  string `json:"new_excerpt"`
	Analysis    string `json:"analysis"`
}

// Meaningful reports whether v is non-nil and flags a meaningful change.
func (v *ChangeVerdict) Meaningful() bool {
	return v != nil && v.IsMeaningfulChange
}
