package entities

import "time"

// ReadingSession is one contiguous interval during which a book was the
// active view. A row is inserted when the view opens and updated exactly once
// when it closes; until then LastReadPage holds the starting page and
// TotalPagesRead and DurationMs are zero.
type ReadingSession struct {
	ID             uint      `gorm:"column:id;primaryKey" json:"id"`
	BookID         uint      `gorm:"column:bookId" json:"book_id"`
	LastReadPage   int       `gorm:"column:lastReadPage" json:"last_read_page"`
	TotalPagesRead int       `gorm:"column:totalPagesRead" json:"total_pages_read"` // signed, may be negative
	DurationMs     int64     `gorm:"column:duration" json:"duration_ms"`
	CreatedAt      Timestamp `gorm:"column:createdAt;type:TEXT;autoCreateTime:false" json:"created_at"`
	UpdatedAt      Timestamp `gorm:"column:updatedAt;type:TEXT;autoUpdateTime:false" json:"updated_at"`
}

func (ReadingSession) TableName() string {
	return "reading_session"
}

// SessionWithBook is a session row joined with the name of its book.
type SessionWithBook struct {
	ReadingSession
	BookTitle string `gorm:"column:bookTitle" json:"book_title"`
}

// SessionClose carries the values written when a session is reconciled.
type SessionClose struct {
	LastReadPage   int
	TotalPagesRead int
	DurationMs     int64
	ClosedAt       time.Time
}
