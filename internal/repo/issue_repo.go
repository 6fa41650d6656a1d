// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// NewsletterIssue model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only persistence
// and query composition.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/postroom/newsletter-backend/internal/domain"
)

// CreateIssue inserts a new NewsletterIssue with a generated UUID and the
// given publish timestamp. It is expected to run inside the claimed
// transaction so the issue and its delivery fan-out commit together.
func CreateIssue(ctx context.Context, db *gorm.DB, title, textContent, htmlContent string, publishedAt time.Time) (*domain.NewsletterIssue, error) {
	issue := &domain.NewsletterIssue{
		ID:          uuid.NewString(),
		Title:       title,
		TextContent: textContent,
		HTMLContent: htmlContent,
		PublishedAt: publishedAt,
	}
	if err := db.WithContext(ctx).Create(issue).Error; err != nil {
		return nil, err
	}
	return issue, nil
}

// GetIssue fetches a single issue by ID, or ErrNotFound.
func GetIssue(ctx context.Context, db *gorm.DB, id string) (*domain.NewsletterIssue, error) {
	var issue domain.NewsletterIssue
	if err := db.WithContext(ctx).Where("id = ?", id).First(&issue).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

// CountIssues returns the total number of published issues.
func CountIssues(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.NewsletterIssue{}).Count(&total).Error
	return total, err
}

// ListIssuesPage returns a paginated slice of issues, most recent first.
// The caller computes offset and limit (e.g., (page-1)*pageSize).
func ListIssuesPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.NewsletterIssue, error) {
	var out []domain.NewsletterIssue
	err := db.WithContext(ctx).
		Order("published_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
