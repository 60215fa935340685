package models

import "strings"

// LeechTag is added to notes whose cards become leeches.
const LeechTag = "leech"

// Note owns one or more cards. The engine only reads its id and tags.
type Note struct {
	ID      int64    `json:"id"`
	GUID    string   `json:"guid"`
	ModelID int64    `json:"model_id"`
	Mod     int64    `json:"mod"`
	USN     int      `json:"usn"`
	Tags    []string `json:"tags"`
	Fields  string   `json:"fields"`
}

// HasTag reports whether the note carries tag, ignoring case.
func (n Note) HasTag(tag string) bool {
	for _, t := range n.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// AddTag adds tag unless it is already present. It reports whether the tags changed.
func (n *Note) AddTag(tag string) bool {
	if n.HasTag(tag) {
		return false
	}
	n.Tags = append(n.Tags, tag)
	return true
}

// RemoveTag drops every case-insensitive match of tag.
func (n *Note) RemoveTag(tag string) bool {
	kept := n.Tags[:0]
	removed := false
	for _, t := range n.Tags {
		if strings.EqualFold(t, tag) {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	n.Tags = kept
	return removed
}

// JoinTags renders tags the way they are stored: space separated with
// surrounding spaces so that LIKE '% tag %' matches whole words.
func JoinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " " + strings.Join(tags, " ") + " "
}

// SplitTags parses the stored representation produced by JoinTags.
func SplitTags(s string) []string {
	return strings.Fields(s)
}
