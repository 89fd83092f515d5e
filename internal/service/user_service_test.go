package service

import (
	"context"
	"testing"

	"recaudo/internal/middleware"
	"recaudo/internal/model"
	"recaudo/internal/repository"
	"recaudo/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T) (UserService, *middleware.Auth) {
	t.Helper()
	db := testutil.NewDB(t)
	auth := middleware.NewAuth("test-jwt-secret", false)
	return NewUserService(repository.NewUserRepository(db), repository.NewAuditRepository(db), auth), auth
}

func TestCreateUserAndLogin(t *testing.T) {
	svc, auth := newUserService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, CreateUserRequest{
		Username: "lucia",
		FullName: "Lucía Pérez",
		Email:    "lucia@recaudo.test",
		Phone:    "3001112233",
		Password: "secreta123",
		Role:     model.RoleManager,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Lucía Pérez", user.FullName)

	tok, err := svc.Login(ctx, LoginUserRequest{Email: "lucia@recaudo.test", Password: "secreta123"})
	require.NoError(t, err)
	sub, role, err := auth.ParseToken(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), sub)
	assert.Equal(t, model.RoleManager, role)

	_, err = svc.Login(ctx, LoginUserRequest{Email: "lucia@recaudo.test", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginUserRequest{Email: "nobody@recaudo.test", Password: "secreta123"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUser_Validation(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()
	base := CreateUserRequest{Username: "a", Email: "a@recaudo.test", Phone: "1", Password: "123456", Role: model.RoleStaff}
	_, err := svc.CreateUser(ctx, base, nil)
	require.NoError(t, err)

	badRole := base
	badRole.Username, badRole.Email, badRole.Role = "b", "b@recaudo.test", "root"
	dupName := base
	dupName.Email = "c@recaudo.test"
	dupEmail := base
	dupEmail.Username = "d"

	for _, req := range []CreateUserRequest{badRole, dupName, dupEmail} {
		_, err := svc.CreateUser(ctx, req, nil)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "", ""))
	require.NoError(t, svc.EnsureAdmin(ctx, "root@recaudo.test", "bootstrap1"))
	require.NoError(t, svc.EnsureAdmin(ctx, "root@recaudo.test", "bootstrap1"))

	users, total, err := svc.ListUsers(ctx, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, model.RoleAdmin, users[0].Role)
}
