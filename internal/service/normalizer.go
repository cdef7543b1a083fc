package service

import (
	"math"
	"regexp"
	"strings"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	emailRegex      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// normalizeEmail lowercases and trims the provided email.
func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// sanitizeString collapses whitespace and trims the result.
func sanitizeString(value string) string {
	value = whitespaceRegex.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}

// normalizeGenres sanitizes genre names and drops blanks and duplicates,
// keeping the first spelling seen.
func normalizeGenres(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = sanitizeString(name)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

func normalizePagination(page, pageSize int, limits PageLimits) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = limits.DefaultSize
	}
	if limits.MaxSize > 0 && pageSize > limits.MaxSize {
		pageSize = limits.MaxSize
	}
	return page, pageSize
}

func buildPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
		if total > 0 && totalPages == 0 {
			totalPages = 1
		}
	}
	return PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}
}
