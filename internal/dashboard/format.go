package dashboard

import (
	"slices"
	"time"

	"docdash/internal/document/model"
)

const shortIDLength = 8

// FormatUserID shortens an identity for display.
func FormatUserID(id string) string {
	r := []rune(id)
	if len(r) <= shortIDLength {
		return id
	}
	return string(r[:shortIDLength]) + "…"
}

func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// sortByLastUpdated orders newest first. Ties keep their snapshot order.
func sortByLastUpdated(docs []model.Document) {
	slices.SortStableFunc(docs, func(a, b model.Document) int {
		return b.LastUpdated.Compare(a.LastUpdated)
	})
}
