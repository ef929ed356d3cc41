package app

import (
	"net/http"
	"sort"
)

// RequireMethod validates that the request uses the specified HTTP method
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// SortEntriesByDate sorts entries by collection date, then bin type
func SortEntriesByDate(entries []CollectionEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CollectionDate.Equal(entries[j].CollectionDate) {
			return entries[i].CollectionDate.Before(entries[j].CollectionDate)
		}
		return entries[i].BinType < entries[j].BinType
	})
}

func sortedStrings(s []string) []string {
	sort.Strings(s)
	return s
}
