package insights

import (
	"context"

	"github.com/mrlokans/readinglog/internal/database/books"
)

// Tier buckets a completion percentage for the "currently reading" card.
type Tier int

const (
	JustStarted Tier = iota
	SolidProgress
	PastHalfway
	AlmostThere
	Finished
)

// TierFor returns the tier of a completion percentage.
func TierFor(percent float64) Tier {
	switch {
	case percent < 20:
		return JustStarted
	case percent < 50:
		return SolidProgress
	case percent < 80:
		return PastHalfway
	case percent < 100:
		return AlmostThere
	default:
		return Finished
	}
}

func (t Tier) String() string {
	switch t {
	case JustStarted:
		return "just_started"
	case SolidProgress:
		return "solid_progress"
	case PastHalfway:
		return "past_halfway"
	case AlmostThere:
		return "almost_there"
	default:
		return "finished"
	}
}

// Message is the encouragement shown next to the progress bar.
func (t Tier) Message() string {
	switch t {
	case JustStarted:
		return "You're just getting started, keep going!"
	case SolidProgress:
		return "Great job! You're making solid progress!"
	case PastHalfway:
		return "You're more than halfway there! Keep it up!"
	case AlmostThere:
		return "Almost there, you're so close to finishing!"
	default:
		return "Congratulations on finishing the book!"
	}
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ReadingProgress is one entry of the "currently reading" card.
type ReadingProgress struct {
	BookID     uint    `json:"book_id"`
	Name       string  `json:"name"`
	Author     string  `json:"author"`
	PagesRead  int     `json:"pages_read"`
	TotalPages int     `json:"total_pages"`
	Percent    float64 `json:"percent"`
	Tier       Tier    `json:"tier"`
	Message    string  `json:"message"`
}

// DefaultReadingLimit is the number of books shown when no limit is given.
const DefaultReadingLimit = 3

// CurrentlyReading returns up to limit of the most recently updated books
// that have a known page count.
func (a *Aggregator) CurrentlyReading(ctx context.Context, limit int) ([]ReadingProgress, error) {
	if limit <= 0 {
		limit = DefaultReadingLimit
	}

	all, err := a.books.ListAll(ctx, books.ListOptions{})
	if err != nil {
		return nil, err
	}

	result := []ReadingProgress{}
	for _, b := range all {
		if len(result) == limit {
			break
		}
		if !b.HasPageCount() {
			continue
		}
		percent := round2(100 * float64(b.PagesRead) / float64(*b.TotalPages))
		tier := TierFor(percent)
		result = append(result, ReadingProgress{
			BookID:     b.ID,
			Name:       b.Name,
			Author:     b.Author,
			PagesRead:  b.PagesRead,
			TotalPages: *b.TotalPages,
			Percent:    percent,
			Tier:       tier,
			Message:    tier.Message(),
		})
	}
	return result, nil
}
