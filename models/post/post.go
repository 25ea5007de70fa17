package post

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	TitleMaxLen       = 200
	StoryMaxLen       = 2000
	DisplayNameMaxLen = 120
)

var (
	ErrValidation = errors.New("invalid post")
	ErrNotFound   = errors.New("post not found")
	ErrForbidden  = errors.New("not the post author")
)

// Post is the only durable entity. ImageURL is nil when the post was
// published without a photo, so it serializes as JSON null. Flagged is
// owned by the server; client input never reaches it.
type Post struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	AuthorID          string    `gorm:"index;not null" json:"author_id"`
	AuthorDisplayName string    `gorm:"size:120" json:"author_display_name"`
	Title             string    `gorm:"size:200;not null" json:"title"`
	Story             string    `gorm:"type:text;not null" json:"story"`
	Location          string    `json:"location"`
	ImageURL          *string   `gorm:"type:text" json:"image_url"`
	CreatedAt         time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	Likes             uint      `gorm:"default:0" json:"likes"`
	Flagged           bool      `gorm:"default:false" json:"flagged"`
}

// Draft is the validated input to Publish. ImageURL must point at an
// object that already exists in blob storage; the repository never
// checks it again.
type Draft struct {
	AuthorID          string
	AuthorDisplayName string
	Title             string
	Story             string
	Location          string
	ImageURL          *string
}

func (d *Draft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	d.Story = strings.TrimSpace(d.Story)
	d.Location = strings.TrimSpace(d.Location)

	// Bounds are in characters, not bytes: a Cyrillic or accented
	// title must not count double.
	if d.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if utf8.RuneCountInString(d.Title) > TitleMaxLen {
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, TitleMaxLen)
	}
	if d.Story == "" {
		return fmt.Errorf("%w: story is required", ErrValidation)
	}
	if utf8.RuneCountInString(d.Story) > StoryMaxLen {
		return fmt.Errorf("%w: story exceeds %d characters", ErrValidation, StoryMaxLen)
	}
	if d.AuthorID == "" {
		return fmt.Errorf("%w: author is required", ErrValidation)
	}
	d.AuthorDisplayName = truncateRunes(d.AuthorDisplayName, DisplayNameMaxLen)
	return nil
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
