package models

import (
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/julianstephens/studylit/internal/constants"
)

// MaxTitleLen bounds note titles
const MaxTitleLen = 200

// Note is a titled body of study text. ID 0 means the note has not been stored yet.
type Note struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *Note) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("note title cannot be empty")
	}
	return validation.ValidateStruct(n,
		validation.Field(&n.ID, validation.Min(int64(0))),
		validation.Field(&n.Title, validation.RuneLength(1, MaxTitleLen)),
		validation.Field(&n.Tags, validation.Each(validation.Required, validation.By(tagHasNoDelimiter))),
	)
}

// Tags are stored delimiter-joined, so a tag holding the delimiter would not survive a round trip.
func tagHasNoDelimiter(value interface{}) error {
	tag, _ := value.(string)
	if strings.Contains(tag, constants.TagDelimiter) {
		return fmt.Errorf("must not contain %q", constants.TagDelimiter)
	}
	return nil
}

// HasTag reports whether the note carries tag, ignoring case.
func (n *Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Matches reports whether query appears in the title, content or any tag, ignoring case.
func (n *Note) Matches(query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Content), q) {
		return true
	}
	for _, t := range n.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the note.
func (n Note) Clone() Note {
	n.Tags = append([]string{}, n.Tags...)
	return n
}

// NormalizeTags trims, drops empty entries, de-duplicates and sorts tags.
// The result is never nil.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := []string{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseTags splits a comma-delimited tag string into a normalized tag set.
func ParseTags(s string) []string {
	return NormalizeTags(strings.Split(s, constants.TagDelimiter))
}

// FormatTags joins a tag set into its comma-delimited stored form.
func FormatTags(tags []string) string {
	return strings.Join(NormalizeTags(tags), constants.TagDelimiter)
}
