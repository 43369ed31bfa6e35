package entities

// Book is a document in the personal library together with its cumulative
// reading progress. Column names follow the legacy camelCase books
// table so that existing databases keep working.
type Book struct {
	ID         uint      `gorm:"column:id;primaryKey" json:"id"`
	CoverRef   string    `gorm:"column:bookCover" json:"cover_ref,omitempty"`
	ContentRef string    `gorm:"column:bookUri" json:"content_ref"`
	SizeBytes  int64     `gorm:"column:bookSize" json:"size_bytes"`
	Name       string    `gorm:"column:bookName" json:"name"`
	Author     string    `gorm:"column:author" json:"author"`
	Genre      string    `gorm:"column:genre" json:"genre"`
	IsComplete bool      `gorm:"column:isComplete" json:"is_complete"`
	PagesRead  int       `gorm:"column:pagesRead" json:"pages_read"`
	TotalPages *int      `gorm:"column:totalPages" json:"total_pages"` // nil until the viewer reports a page count
	CreatedAt  Timestamp `gorm:"column:createdAt;type:TEXT;autoCreateTime:false" json:"created_at"`
	UpdatedAt  Timestamp `gorm:"column:updatedAt;type:TEXT;autoUpdateTime:false" json:"updated_at"`
}

func (Book) TableName() string {
	return "books"
}

// HasPageCount reports whether the viewer has reported a usable page count.
func (b Book) HasPageCount() bool {
	return b.TotalPages != nil && *b.TotalPages > 0
}
