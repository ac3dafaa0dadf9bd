package meta

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	availablePattern = regexp.MustCompile(`(?i)Available categories?:\s*(.+?)(?:\s*$|\.)`)
	bracketPattern   = regexp.MustCompile(`\[([^\]]+)\]`)
)

// CategoriesFromError extracts a category list from an error body such as
// {"detail": "Category 'None' not found. Available categories: New Cards, Top Cards"}.
// It also accepts a bracketed list in detail or an available_categories
// array. It returns nil when nothing can be found.
func CategoriesFromError(body []byte) []string {
	var payload struct {
		Detail              any      `json:"detail"`
		AvailableCategories []string `json:"available_categories"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}

	if detail, ok := payload.Detail.(string); ok {
		if m := availablePattern.FindStringSubmatch(detail); m != nil {
			if categories := splitList(m[1]); len(categories) > 0 {
				return categories
			}
		}
		if m := bracketPattern.FindStringSubmatch(detail); m != nil {
			if categories := splitList(m[1]); len(categories) > 0 {
				return categories
			}
		}
	}

	if len(payload.AvailableCategories) > 0 {
		return payload.AvailableCategories
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
