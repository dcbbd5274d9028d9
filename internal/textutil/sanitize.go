package textutil

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxFileNameBytes = 120

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName reduces an uploaded filename to a safe base name. Directory
// components are dropped, unsafe characters are replaced, whitespace runs
// become single underscores, and the name is capped while keeping its
// extension. Returns "upload" for empty input.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = filepath.Base(name)
	if name == "." || name == "/" {
		name = ""
	}
	name = fileNameReplacer.Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "upload"
	}
	if len(name) <= maxFileNameBytes {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) > 16 {
		ext = ""
	}
	stem := name[:maxFileNameBytes-len(ext)]
	for !utf8.ValidString(stem) && len(stem) > 0 {
		stem = stem[:len(stem)-1]
	}
	return stem + ext
}

// Extension returns the lowercased extension of name including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
}
