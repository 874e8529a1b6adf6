package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/obelousov/authkeeper/internal/common"
	"github.com/obelousov/authkeeper/internal/dbx"
	"github.com/obelousov/authkeeper/internal/logging"
	"github.com/obelousov/authkeeper/internal/server/auth"
	"github.com/obelousov/authkeeper/internal/server/config"
	"github.com/obelousov/authkeeper/internal/server/models"
	refreshtokensrepo "github.com/obelousov/authkeeper/internal/server/repositories/refreshtokens"
	usersrepo "github.com/obelousov/authkeeper/internal/server/repositories/users"
	"github.com/obelousov/authkeeper/internal/server/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memStore is a combined in-memory users + refresh tokens store backing the
// real services in transport tests.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken // by id
	secret map[string]string               // secret -> id
	nextID int
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
		secret: make(map[string]string),
	}
}

func (m *memStore) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *memStore) Users(db dbx.DBTX) usersrepo.Repository { return (*memUsers)(m) }

func (m *memStore) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	return (*memTokens)(m)
}

type memUsers memStore

func (m *memUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return nil, common.ErrEmailTaken
		}
	}
	m.nextID++
	user.ID = "u" + strconv.Itoa(m.nextID)
	m.users[user.ID] = user
	return user, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email && !u.IsDeleted {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.IsDeleted {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (m *memUsers) SoftDelete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.IsDeleted {
		return common.ErrorNotFound
	}
	u.IsDeleted = true
	return nil
}

type memTokens memStore

func (m *memTokens) Create(ctx context.Context, token *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secret[token.Secret]; ok {
		return common.ErrDuplicateSecret
	}
	cp := *token
	m.tokens[token.ID] = &cp
	m.secret[token.Secret] = token.ID
	return nil
}

func (m *memTokens) FindBySecret(ctx context.Context, secret string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.secret[secret]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *m.tokens[id]
	return &cp, nil
}

func (m *memTokens) MarkRotated(ctx context.Context, id string, replacedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok || token.Revoked {
		return common.ErrVersionConflict
	}
	token.Revoked = true
	token.ReplacedBy = &replacedBy
	return nil
}

func (m *memTokens) RevokeAllActive(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, token := range m.tokens {
		if token.UserID == userID && !token.Revoked {
			token.Revoked = true
			n++
		}
	}
	return n, nil
}

// testServer bundles a fully wired router over in-memory storage.
type testServer struct {
	router *gin.Engine
	store  *memStore
	issuer *auth.Issuer
	mock   sqlmock.Sqlmock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	// transport tests exercise several transactional flows; let commits and
	// rollbacks through without scripting each one
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 16; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}

	cfg := &config.Config{
		GinMode:                      gin.TestMode,
		JWTSecretKey:                 "0123456789abcdef0123456789abcdef",
		JWTIssuer:                    "authkeeper",
		JWTAudience:                  "authkeeper-clients",
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenValidityDuration: 7 * 24 * time.Hour,
		AuthRPS:                      1000,
		AuthBurst:                    1000,
	}

	issuer, err := auth.NewIssuer([]byte(cfg.JWTSecretKey), cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTokenValidityDuration)
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	store := newMemStore()
	users := services.NewUserService(db, store, logger)
	tokens := services.NewTokenService(db, store, issuer, cfg, logger)

	return &testServer{
		router: NewRouter(cfg, issuer, users, tokens),
		store:  store,
		issuer: issuer,
		mock:   mock,
	}
}
