package entities

// Note is the free-text note a reader keeps for a book, one per book.
type Note struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	BookID    uint      `gorm:"column:bookId" json:"book_id"`
	Content   string    `gorm:"column:content" json:"content"`
	UpdatedAt Timestamp `gorm:"column:updatedAt;type:TEXT;autoUpdateTime:false" json:"updated_at"`
}

func (Note) TableName() string {
	return "notes"
}
