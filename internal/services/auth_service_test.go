package services

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthService_SignupAndLogin(t *testing.T) {
	env := setupServiceTestEnv(t)

	user, err := env.auth.Signup(SignupInput{
		Email:    "Dev@Example.com",
		Name:     "Dev",
		Password: "supersecret",
	})
	require.NoError(t, err)
	require.Equal(t, "dev@example.com", user.Email)
	require.NotEqual(t, "supersecret", user.PasswordHash)

	logged, err := env.auth.Login(LoginInput{Email: "dev@example.com", Password: "supersecret"})
	require.NoError(t, err)
	require.Equal(t, user.ID, logged.ID)

	_, err = env.auth.Login(LoginInput{Email: "dev@example.com", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.auth.Login(LoginInput{Email: "nobody@example.com", Password: "supersecret"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_SignupValidation(t *testing.T) {
	env := setupServiceTestEnv(t)

	_, err := env.auth.Signup(SignupInput{Email: "a@b.com", Name: "A", Password: "short"})
	require.ErrorIs(t, err, ErrPasswordTooShort)

	_, err = env.auth.Signup(SignupInput{Email: "", Name: "A", Password: "supersecret"})
	require.ErrorIs(t, err, ErrEmailRequired)

	_, err = env.auth.Signup(SignupInput{Email: "a@b.com", Name: "A", Password: "supersecret"})
	require.NoError(t, err)

	_, err = env.auth.Signup(SignupInput{Email: "A@B.com", Name: "B", Password: "supersecret"})
	require.ErrorIs(t, err, ErrEmailTaken)
}
