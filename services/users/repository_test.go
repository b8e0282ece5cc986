package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewRepository(db)
	require.NoError(t, repo.Migrate())
	return repo
}

func seedUser(t *testing.T, repo *Repository, username, email string, status int) *User {
	t.Helper()
	user := &User{
		Username: username,
		Email:    email,
		Password: "hash",
		Nickname: username,
		Role:     "USER",
		Status:   status,
	}
	require.NoError(t, repo.Insert(context.Background(), user))
	return user
}

func TestRepository_Lookups(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)
	admin := seedUser(t, repo, "admin", "admin@lab.test", StatusEnabled)

	byID, err := repo.FindByID(ctx, "1")
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, admin.ID, byID.ID)

	byName, err := repo.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "admin@lab.test", byName.Email)

	byEmail, err := repo.FindByEmail(ctx, "admin@lab.test")
	require.NoError(t, err)
	require.NotNil(t, byEmail)

	either, err := repo.FindByUsernameOrEmail(ctx, "admin@lab.test")
	require.NoError(t, err)
	require.NotNil(t, either)
	assert.Equal(t, "admin", either.Username)

	either, err = repo.FindByUsernameOrEmail(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, either)
}

func TestRepository_MissingUserIsNil(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t)

	for _, lookup := range []func() (*User, error){
		func() (*User, error) { return repo.FindByID(ctx, "99") },
		func() (*User, error) { return repo.FindByID(ctx, "not-a-number") },
		func() (*User, error) { return repo.FindByID(ctx, "0") },
		func() (*User, error) { return repo.FindByUsername(ctx, "ghost") },
		func() (*User, error) { return repo.FindByEmail(ctx, "ghost@lab.test") },
		func() (*User, error) { return repo.FindByUsernameOrEmail(ctx, "ghost") },
	} {
		user, err := lookup()
		assert.NoError(t, err)
		assert.Nil(t, user)
	}
}

func TestRepository_InsertDuplicate(t *testing.T) {
	repo := setupRepository(t)
	seedUser(t, repo, "admin", "admin@lab.test", StatusEnabled)

	err := repo.Insert(context.Background(), &User{Username: "admin", Email: "other@lab.test", Password: "x", Role: "USER", Status: StatusEnabled})
	assert.ErrorIs(t, err, ErrDuplicateUser)

	err = repo.Insert(context.Background(), &User{Username: "other", Email: "admin@lab.test", Password: "x", Role: "USER", Status: StatusEnabled})
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestUser_Enabled(t *testing.T) {
	assert.True(t, (&User{Status: StatusEnabled}).Enabled())
	assert.False(t, (&User{Status: StatusDisabled}).Enabled())

	var missing *User
	assert.False(t, missing.Enabled())
}
