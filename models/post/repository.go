package post

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Publish validates the draft and inserts it as a single atomic write.
// The id and created_at come back server-assigned on the returned
// record, which is the record the feed must broadcast.
func (r *Repository) Publish(ctx context.Context, draft Draft) (*Post, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	p := Post{
		AuthorID:          draft.AuthorID,
		AuthorDisplayName: draft.AuthorDisplayName,
		Title:             draft.Title,
		Story:             draft.Story,
		Location:          draft.Location,
		ImageURL:          draft.ImageURL,
	}
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("insert post: %w", err)
	}
	return &p, nil
}

// List returns posts ordered by creation time, newest first. The id
// tiebreak keeps pages stable when timestamps collide. Pure read.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Post, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var out []Post
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return out, nil
}

// Recent is the feed snapshot query: the newest n posts.
func (r *Repository) Recent(ctx context.Context, n int) ([]Post, error) {
	return r.List(ctx, n, 0)
}

func (r *Repository) Get(ctx context.Context, id uint) (*Post, error) {
	var p Post
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return &p, nil
}

// Delete removes a post iff callerID matches the recorded author.
func (r *Repository) Delete(ctx context.Context, id uint, callerID string) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.AuthorID != callerID {
		return ErrForbidden
	}
	if err := r.db.WithContext(ctx).Delete(p).Error; err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// Like increments the counter with a conditional update so concurrent
// likes are never lost.
func (r *Repository) Like(ctx context.Context, id uint) (*Post, error) {
	res := r.db.WithContext(ctx).
		Model(&Post{}).
		Where("id = ?", id).
		UpdateColumn("likes", gorm.Expr("likes + ?", 1))
	if res.Error != nil {
		return nil, fmt.Errorf("like post: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

// SetFlagged records the moderation decision. Only moderators reach
// this; the create path never writes client-supplied flag state.
func (r *Repository) SetFlagged(ctx context.Context, id uint, flagged bool) (*Post, error) {
	res := r.db.WithContext(ctx).
		Model(&Post{}).
		Where("id = ?", id).
		UpdateColumn("flagged", flagged)
	if res.Error != nil {
		return nil, fmt.Errorf("flag post: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}
