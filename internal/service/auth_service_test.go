package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"trinity/internal/config"
	"trinity/internal/dto"
	"trinity/internal/model"
	"trinity/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type stubUserRepo struct {
	users map[string]*model.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*model.User)}
}

func (r *stubUserRepo) Create(_ context.Context, u *model.User) error {
	if _, ok := r.users[u.Username]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.users[u.Username] = u
	return nil
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := r.users[username]
	if !ok || !u.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

var _ repository.UserRepository = (*stubUserRepo)(nil)

const testSecret = "test_jwt_secret_32_chars_minimum!"

func newAuthCfg() *config.Config {
	return &config.Config{JWTSecret: testSecret, JWTExpirationHours: 8, JWTRefreshHours: 24}
}

func seedUser(t *testing.T, repo *stubUserRepo, username, password, role string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{ID: uuid.New(), Username: username, PasswordHash: string(hash), Role: role, IsActive: true}
	repo.users[username] = u
	return u
}

func parseClaims(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	tok, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) { return []byte(testSecret), nil })
	require.NoError(t, err)
	return tok.Claims.(jwt.MapClaims)
}

func TestLogin_IssuesRoleClaims(t *testing.T) {
	repo := newStubUserRepo()
	u := seedUser(t, repo, "clerk", "s3cret!!", model.RoleStaff)
	svc := NewAuthService(repo, newAuthCfg())

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Username: "clerk", Password: "s3cret!!"})
	require.NoError(t, err)
	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, 8*3600, resp.ExpiresIn)
	assert.Equal(t, model.RoleStaff, resp.User.Role)

	claims := parseClaims(t, resp.AccessToken)
	assert.Equal(t, u.ID.String(), claims["user_id"])
	assert.Equal(t, model.RoleStaff, claims["role"])
	assert.Equal(t, TokenAccess, claims["typ"])
	assert.Equal(t, TokenRefresh, parseClaims(t, resp.RefreshToken)["typ"])
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "clerk", "s3cret!!", model.RoleStaff)
	svc := NewAuthService(repo, newAuthCfg())

	_, err := svc.Login(context.Background(), dto.LoginRequest{Username: "clerk", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), dto.LoginRequest{Username: "ghost", Password: "nope"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "bea", "password1", model.RoleCustomer)
	svc := NewAuthService(repo, newAuthCfg())

	login, err := svc.Login(context.Background(), dto.LoginRequest{Username: "bea", Password: "password1"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// Access tokens cannot be used to refresh.
	_, err = svc.Refresh(context.Background(), login.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_InactiveUserRejected(t *testing.T) {
	repo := newStubUserRepo()
	u := seedUser(t, repo, "bea", "password1", model.RoleCustomer)
	svc := NewAuthService(repo, newAuthCfg()).(*authService)

	login, err := svc.Login(context.Background(), dto.LoginRequest{Username: "bea", Password: "password1"})
	require.NoError(t, err)
	u.IsActive = false

	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	repo := newStubUserRepo()
	seedUser(t, repo, "bea", "password1", model.RoleCustomer)
	svc := NewAuthService(repo, newAuthCfg()).(*authService)
	svc.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }

	login, err := svc.Login(context.Background(), dto.LoginRequest{Username: "bea", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), login.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCreateUser(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewAuthService(repo, newAuthCfg())

	u, err := svc.CreateUser(context.Background(), "admin", "longpassword", model.RoleStaff, nil)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("longpassword")))

	_, err = svc.CreateUser(context.Background(), "admin", "longpassword", model.RoleStaff, nil)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.CreateUser(context.Background(), "x", "longpassword", "root", nil)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}
