package gorm

import (
	"context"

	"gorm.io/gorm"

	"github.com/thebtf/campus-drift/internal/db"
)

var _ db.Repository = (*Repository)(nil)

// Repository implements db.Repository on a GORM connection or transaction.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository over conn.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

// Transaction runs fn inside a database transaction. Every store call made
// through tx joins the transaction.
func (r *Repository) Transaction(ctx context.Context, fn func(tx db.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}
