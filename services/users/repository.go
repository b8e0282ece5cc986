package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

var ErrDuplicateUser = errors.New("username or email already registered")

// Repository looks users up by identifier, username or email. A missing user
// is reported as (nil, nil).
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) first(ctx context.Context, query string, args ...any) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where(query, args...).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// FindByID accepts the string subject carried in tokens.
func (r *Repository) FindByID(ctx context.Context, id string) (*User, error) {
	numericID, err := strconv.ParseUint(id, 10, 64)
	if err != nil || numericID == 0 {
		return nil, nil
	}
	return r.first(ctx, "id = ?", numericID)
}

func (r *Repository) FindByUsername(ctx context.Context, username string) (*User, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.first(ctx, "email = ?", email)
}

func (r *Repository) FindByUsernameOrEmail(ctx context.Context, account string) (*User, error) {
	user, err := r.FindByUsername(ctx, account)
	if err != nil || user != nil {
		return user, err
	}
	return r.FindByEmail(ctx, account)
}

func (r *Repository) Insert(ctx context.Context, user *User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&User{})
}
