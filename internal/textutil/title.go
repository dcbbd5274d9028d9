package textutil

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TitleFromFilename derives a display title from an uploaded filename:
// "deep_learning-notes.pdf" becomes "Deep Learning Notes".
func TitleFromFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(base)
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return "Podcast"
	}
	// Casers carry state and are not safe to share between goroutines.
	return cases.Title(language.English).String(base)
}
