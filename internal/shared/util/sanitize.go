package util

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	maxFileNameRunes = 128
	maxExtensionLen  = 16
)

// SanitizeFileName normalizes an uploaded file name for use in storage keys.
// Path separators become underscores, traversal patterns are rejected,
// control characters are dropped, and overlong names are truncated with the
// extension preserved.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "", errors.New("invalid file name")
	}
	if utf8.RuneCountInString(s) > maxFileNameRunes {
		s = truncateName(s)
	}
	return s, nil
}

func truncateName(s string) string {
	ext := ""
	if idx := strings.LastIndex(s, "."); idx > 0 && len(s)-idx <= maxExtensionLen {
		ext = s[idx:]
	}
	base := []rune(strings.TrimSuffix(s, ext))
	keep := maxFileNameRunes - utf8.RuneCountInString(ext)
	if keep < 1 {
		keep = 1
	}
	if len(base) > keep {
		base = base[:keep]
	}
	return string(base) + ext
}
