package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("creates user with hashed password", func(t *testing.T) {
		repo := newFakeUserRepo()
		service := NewAuthService(repo)

		user, err := service.Register(ctx, RegisterInput{
			FirstName: "Alice",
			LastName:  "Smith",
			Email:     "  Alice@Test.DEV ",
			Password:  "supersecret",
		})
		require.NoError(t, err)
		assert.Equal(t, "alice@test.dev", user.Email)
		assert.NotEqual(t, "supersecret", user.PasswordHash)
		assert.NotEmpty(t, user.PasswordHash)
	})

	t.Run("rejects short password", func(t *testing.T) {
		service := NewAuthService(newFakeUserRepo())

		_, err := service.Register(ctx, RegisterInput{FirstName: "Bob", Email: "bob@test.dev", Password: "short"})
		assert.ErrorIs(t, err, ErrPasswordTooShort)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		service := NewAuthService(newFakeUserRepo())

		_, err := service.Register(ctx, RegisterInput{Email: "bob@test.dev", Password: "supersecret"})
		assert.ErrorIs(t, err, ErrValidationFailed)
	})

	t.Run("duplicate email", func(t *testing.T) {
		repo := newFakeUserRepo()
		service := NewAuthService(repo)

		input := RegisterInput{FirstName: "Alice", Email: "alice@test.dev", Password: "supersecret"}
		_, err := service.Register(ctx, input)
		require.NoError(t, err)

		_, err = service.Register(ctx, input)
		assert.ErrorIs(t, err, ErrUserEmailConflict)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	repo := newFakeUserRepo()
	service := NewAuthService(repo)

	_, err := service.Register(ctx, RegisterInput{FirstName: "Alice", Email: "alice@test.dev", Password: "supersecret"})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		user, err := service.Login(ctx, LoginInput{Email: "Alice@test.dev", Password: "supersecret"})
		require.NoError(t, err)
		assert.Equal(t, "alice@test.dev", user.Email)
		assert.Empty(t, user.PasswordHash, "hash must not leak out of the service")
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := service.Login(ctx, LoginInput{Email: "alice@test.dev", Password: "wrongpass"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := service.Login(ctx, LoginInput{Email: "ghost@test.dev", Password: "supersecret"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}
