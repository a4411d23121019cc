package commons

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// DefaultThumbWidth is the thumbnail width used when none is configured.
const DefaultThumbWidth = 320

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeCategory canonicalizes a Commons category name: the
// "Category:" prefix is stripped, underscores become spaces, and runs of
// whitespace collapse. Two spellings of the same category must normalize to
// the same string since the name is a cache key.
func NormalizeCategory(value string) string {
	category := strings.TrimSpace(value)
	if category == "" {
		return ""
	}
	if len(category) >= 9 && strings.EqualFold(category[:9], "category:") {
		category = strings.TrimSpace(category[9:])
	}
	category = strings.ReplaceAll(category, "_", " ")
	return whitespaceRe.ReplaceAllString(category, " ")
}

// PetscanCategoryValue renders a normalized category the way PetScan
// expects it, with underscores.
func PetscanCategoryValue(category string) string {
	normalized := NormalizeCategory(category)
	if normalized == "" {
		return ""
	}
	return strings.ReplaceAll(normalized, " ", "_")
}

// CategoryURL returns the Commons wiki page URL for a category.
func CategoryURL(category string) string {
	normalized := NormalizeCategory(category)
	if normalized == "" {
		return ""
	}
	title := strings.ReplaceAll("Category:"+normalized, " ", "_")
	return "https://commons.wikimedia.org/wiki/" + escapeTitle(title)
}

// FileURL returns the Special:FilePath URL for a file name. A leading
// "File:" prefix is stripped.
func FileURL(filename string) string {
	normalized := StripFilePrefix(filename)
	if normalized == "" {
		return ""
	}
	normalized = strings.ReplaceAll(normalized, " ", "_")
	return "https://commons.wikimedia.org/wiki/Special:FilePath/" + url.QueryEscape(normalized)
}

// ThumbURL returns a width-bounded thumbnail URL for a file name.
func ThumbURL(filename string, width int) string {
	base := FileURL(filename)
	if base == "" {
		return ""
	}
	if width <= 0 {
		width = DefaultThumbWidth
	}
	return base + "?width=" + strconv.Itoa(width)
}

// StripFilePrefix removes a leading "File:" namespace prefix.
func StripFilePrefix(filename string) string {
	normalized := strings.TrimSpace(filename)
	if len(normalized) >= 5 && strings.EqualFold(normalized[:5], "file:") {
		normalized = strings.TrimSpace(normalized[5:])
	}
	return normalized
}

// ResolveImage maps a raw image binding (either a bare file name or a full
// URL) to its display URL, thumbnail URL, and file name.
func ResolveImage(value string, width int) (imageURL, thumbURL, name string) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return "", "", ""
	}

	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		imageURL = raw
		if strings.Contains(imageURL, "commons.wikimedia.org/wiki/Special:FilePath/") {
			sep := "?"
			if strings.Contains(imageURL, "?") {
				sep = "&"
			}
			if width <= 0 {
				width = DefaultThumbWidth
			}
			thumbURL = imageURL + sep + "width=" + strconv.Itoa(width)
		} else {
			thumbURL = imageURL
		}

		nameCandidate := strings.SplitN(imageURL, "?", 2)[0]
		nameCandidate = strings.TrimRight(nameCandidate, "/")
		if idx := strings.LastIndex(nameCandidate, "/"); idx >= 0 {
			nameCandidate = nameCandidate[idx+1:]
		}
		if decoded, err := url.QueryUnescape(nameCandidate); err == nil {
			nameCandidate = decoded
		}
		return imageURL, thumbURL, StripFilePrefix(nameCandidate)
	}

	return FileURL(raw), ThumbURL(raw, width), raw
}

// escapeTitle percent-encodes a wiki title, keeping ':' and '/' readable.
func escapeTitle(title string) string {
	escaped := url.QueryEscape(title)
	escaped = strings.ReplaceAll(escaped, "%3A", ":")
	escaped = strings.ReplaceAll(escaped, "%2F", "/")
	return escaped
}

