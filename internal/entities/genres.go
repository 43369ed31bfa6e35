package entities

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GenreAll is the pseudo-genre used by listings to mean "no filter".
const GenreAll = "All"

// Genres is the list offered when adding a book.
var Genres = []string{
	"Fiction",
	"Non-fiction",
	"Mystery",
	"Thriller",
	"Romance",
	"Science Fiction",
	"Fantasy",
	"Biography",
	"Self-help",
	"Historical",
	"Children's",
	"Adventure",
	"Horror",
	"Poetry",
	"Graphic Novel",
	"Young Adult",
	"Classics",
	"Philosophy",
	"Crime",
}

// NormalizeGenre maps user input onto a known genre when it matches one
// case-insensitively, and title-cases anything else.
func NormalizeGenre(genre string) string {
	genre = strings.Join(strings.Fields(genre), " ")
	if genre == "" {
		return ""
	}
	for _, known := range Genres {
		if strings.EqualFold(known, genre) {
			return known
		}
	}
	// Casers are stateful, so one is built per call.
	return cases.Title(language.English).String(genre)
}
