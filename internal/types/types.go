// Package types holds the finding model shared by every analyzer.
package types

import (
	"fmt"
	"strings"
)

// Level is the severity of a finding.
type Level string

const (
	LevelBlocker    Level = "blocker"
	LevelError      Level = "error"
	LevelWarning    Level = "warning"
	LevelInfo       Level = "info"
	LevelSuggestion Level = "suggestion"
)

// Levels lists every level from most to least severe.
var Levels = []Level{LevelBlocker, LevelError, LevelWarning, LevelInfo, LevelSuggestion}

// IsValid checks if the level value is valid
func (l Level) IsValid() bool {
	switch l {
	case LevelBlocker, LevelError, LevelWarning, LevelInfo, LevelSuggestion:
		return true
	}
	return false
}

// Rank orders levels; lower is more severe.
func (l Level) Rank() int {
	for i, lvl := range Levels {
		if lvl == l {
			return i
		}
	}
	return len(Levels)
}

// ParseLevel converts a string into a Level.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

// Category is the health dimension (or security) a finding belongs to.
type Category string

const (
	CategoryCodeQuality    Category = "code_quality"
	CategoryDocumentation  Category = "documentation"
	CategoryArchitecture   Category = "architecture"
	CategoryAIFriendliness Category = "ai_friendliness"
	CategoryOperations     Category = "operations"
	CategorySecurity       Category = "security"
)

// Categories lists every category in report order.
var Categories = []Category{
	CategoryCodeQuality,
	CategoryDocumentation,
	CategoryArchitecture,
	CategoryAIFriendliness,
	CategoryOperations,
	CategorySecurity,
}

// IsValid checks if the category value is valid
func (c Category) IsValid() bool {
	switch c {
	case CategoryCodeQuality, CategoryDocumentation, CategoryArchitecture,
		CategoryAIFriendliness, CategoryOperations, CategorySecurity:
		return true
	}
	return false
}

// Rank orders categories for grouping.
func (c Category) Rank() int {
	for i, cat := range Categories {
		if cat == c {
			return i
		}
	}
	return len(Categories)
}

// Title returns a display name ("code_quality" -> "Code Quality").
func (c Category) Title() string {
	return Humanize(string(c))
}

// Humanize turns a snake_case identifier into title case words.
func Humanize(id string) string {
	parts := strings.Split(id, "_")
	for i, p := range parts {
		switch strings.ToLower(p) {
		case "ai":
			parts[i] = "AI"
			continue
		}
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}

// Priority orders rules and recommendations.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// DefaultPriorityOrder is used when a document does not declare its own.
var DefaultPriorityOrder = []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank orders priorities; lower is more urgent. Unknown values sort last.
func (p Priority) Rank() int {
	for i, v := range DefaultPriorityOrder {
		if v == p {
			return i
		}
	}
	return len(DefaultPriorityOrder)
}
