package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/campuspoints/loyalty-backend/internal/config"
	"github.com/campuspoints/loyalty-backend/internal/middleware"
	"github.com/campuspoints/loyalty-backend/internal/models"
	"github.com/campuspoints/loyalty-backend/internal/repositories"
	"github.com/campuspoints/loyalty-backend/internal/security"
	"github.com/campuspoints/loyalty-backend/internal/services"
	"github.com/campuspoints/loyalty-backend/pkg/logger"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testEnv struct {
	db     *gorm.DB
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger.Init()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Transaction{},
		&models.TransactionPromotion{},
		&models.Event{},
		&models.EventOrganizer{},
		&models.EventGuest{},
		&models.Promotion{},
		&models.UserPromotion{},
	))

	cfg := &config.Config{
		JWTSecret:        "this_is_a_test_secret_key_with_32_chars_minimum",
		TokenTTLHours:    1,
		PurchaseEarnRate: 4,
	}

	userRepo := repositories.NewUserRepository(db)
	txRepo := repositories.NewTransactionRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	promotionRepo := repositories.NewPromotionRepository(db)

	limiter := middleware.NewRateLimiter(100, time.Minute, time.Minute)
	t.Cleanup(limiter.Stop)
	auth := middleware.NewAuthMiddleware(userRepo, cfg.JWTSecret, WriteError)

	router := NewRouter(
		auth,
		NewAuthHandler(services.NewUserService(userRepo, cfg), limiter),
		NewUserHandler(services.NewUserService(userRepo, cfg)),
		NewTransactionHandler(services.NewTransactionService(db, cfg.PurchaseEarnRate), txRepo),
		NewEventHandler(services.NewEventService(eventRepo, userRepo)),
		NewPromotionHandler(services.NewPromotionService(promotionRepo)),
	)

	return &testEnv{db: db, router: router}
}

func (e *testEnv) seedUser(t *testing.T, utorid string, role models.Role, points int, password string) *models.User {
	t.Helper()

	hashed, err := security.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Utorid:   utorid,
		Name:     "Test " + utorid,
		Email:    utorid + "@mail.utoronto.ca",
		Password: hashed,
		Role:     role,
		Points:   points,
		Verified: true,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, utorid, password string) string {
	t.Helper()

	rec := e.request(t, http.MethodPost, "/auth/tokens", "", map[string]string{
		"utorid":   utorid,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "johndoe1", models.RoleRegular, 0, "Passw0rd!")

	rec := env.request(t, http.MethodPost, "/auth/tokens", "", map[string]string{
		"utorid":   "johndoe1",
		"password": "WrongPass1!",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := env.login(t, "johndoe1", "Passw0rd!")

	rec = env.request(t, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var profile map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "johndoe1", profile["utorid"])

	// No token at all.
	rec = env.request(t, http.MethodGet, "/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPurchaseEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cashier1", models.RoleCashier, 0, "Passw0rd!")
	customer := env.seedUser(t, "custome1", models.RoleRegular, 0, "Passw0rd!")

	token := env.login(t, "cashier1", "Passw0rd!")

	rec := env.request(t, http.MethodPost, "/transactions", token, map[string]interface{}{
		"utorid": "custome1",
		"type":   "purchase",
		"spent":  19.99,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "purchase", resp["type"])
	assert.Equal(t, float64(80), resp["amount"])
	assert.Equal(t, "custome1", resp["utorid"])
	assert.Equal(t, "cashier1", resp["createdBy"])

	var updated models.User
	require.NoError(t, env.db.First(&updated, customer.ID).Error)
	assert.Equal(t, 80, updated.Points)
}

func TestPurchaseEndpoint_RegularForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "regular1", models.RoleRegular, 0, "Passw0rd!")

	token := env.login(t, "regular1", "Passw0rd!")

	rec := env.request(t, http.MethodPost, "/transactions", token, map[string]interface{}{
		"utorid": "regular1",
		"type":   "purchase",
		"spent":  10.0,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRedemptionLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "cashier1", models.RoleCashier, 0, "Passw0rd!")
	customer := env.seedUser(t, "custome1", models.RoleRegular, 100, "Passw0rd!")

	customerToken := env.login(t, "custome1", "Passw0rd!")
	cashierToken := env.login(t, "cashier1", "Passw0rd!")

	rec := env.request(t, http.MethodPost, "/users/me/transactions", customerToken, map[string]interface{}{
		"type":   "redemption",
		"amount": 60,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	txID := int(created["id"].(float64))
	assert.Equal(t, false, created["processed"])
	assert.Nil(t, created["processedBy"])

	// Balance untouched until processed.
	var mid models.User
	require.NoError(t, env.db.First(&mid, customer.ID).Error)
	assert.Equal(t, 100, mid.Points)

	path := "/transactions/" + strconv.Itoa(txID) + "/processed"
	rec = env.request(t, http.MethodPatch, path, cashierToken, map[string]interface{}{"processed": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var processed map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &processed))
	assert.Equal(t, true, processed["processed"])
	assert.Equal(t, "cashier1", processed["processedBy"])

	var after models.User
	require.NoError(t, env.db.First(&after, customer.ID).Error)
	assert.Equal(t, 40, after.Points)

	// Settling twice conflicts.
	rec = env.request(t, http.MethodPatch, path, cashierToken, map[string]interface{}{"processed": true})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTransferEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "senderaa", models.RoleRegular, 100, "Passw0rd!")
	recipient := env.seedUser(t, "receiver", models.RoleRegular, 0, "Passw0rd!")

	token := env.login(t, "senderaa", "Passw0rd!")

	rec := env.request(t, http.MethodPost, "/users/"+strconv.Itoa(int(recipient.ID))+"/transactions", token, map[string]interface{}{
		"type":   "transfer",
		"amount": 30,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var after models.User
	require.NoError(t, env.db.First(&after, recipient.ID).Error)
	assert.Equal(t, 30, after.Points)
}
