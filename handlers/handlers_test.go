package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuwep/config"
	"cuwep/crypto"
	"cuwep/middleware"
	"cuwep/utils"
)

func TestMain(m *testing.M) {
	utils.InitLogging("info")
	os.Exit(m.Run())
}

// =====================
// Test doubles
// =====================

// stubRow satisfies pgx.Row, copying canned values into scan destinations
type stubRow struct {
	vals []any
	err  error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		if i >= len(r.vals) {
			break
		}
		assignValue(d, r.vals[i])
	}
	return nil
}

func assignValue(dest, val any) {
	switch d := dest.(type) {
	case *uuid.UUID:
		*d = val.(uuid.UUID)
	case *string:
		*d = val.(string)
	case *bool:
		*d = val.(bool)
	case *int:
		*d = val.(int)
	case *sql.NullTime:
		if t, ok := val.(time.Time); ok {
			*d = sql.NullTime{Time: t, Valid: true}
		} else {
			*d = sql.NullTime{}
		}
	case *sql.NullString:
		if s, ok := val.(string); ok {
			*d = sql.NullString{String: s, Valid: true}
		} else {
			*d = sql.NullString{}
		}
	case *any:
		*d = val
	default:
		panic(fmt.Sprintf("assignValue: unsupported destination %T", dest))
	}
}

// fakeDB implements database.Database via function fields
type fakeDB struct {
	queryRowFn func(ctx context.Context, sql string, args ...interface{}) pgx.Row
	queryFn    func(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	execFn     func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return f.queryRowFn(ctx, sql, args...)
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return f.queryFn(ctx, sql, args...)
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	if f.execFn != nil {
		return f.execFn(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, fmt.Errorf("not implemented")
}

// fakeRows satisfies pgx.Rows over canned value rows
type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		assignValue(d, row[i])
	}
	return nil
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

// recordingMailer captures async mail requests
type recordingMailer struct {
	mu            sync.Mutex
	confirmations []string
	resets        []string
}

func (m *recordingMailer) SendConfirmationAsync(email, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations = append(m.confirmations, email)
}

func (m *recordingMailer) SendPasswordResetAsync(email, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, email)
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:         []byte("handlers-test-secret-0123456789!!!!"),
		AccessTokenExpire: time.Hour,
		ResetTokenExpire:  time.Hour,
	}
}

func doJSON(t *testing.T, app *fiber.App, method, target string, body any) (*fiber.Map, int) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out fiber.Map
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return &out, resp.StatusCode
}

// userRowValues returns scan values matching getUserByEmail's column order
func userRowValues(id uuid.UUID, email, passwordHash string, active bool, confirmedAt any) []any {
	return []any{id, email, passwordHash, active, confirmedAt, nil, nil, nil, nil}
}

// =====================
// Validation helpers
// =====================

func TestValidatePassword(t *testing.T) {
	assert.True(t, validatePassword("Str0ng!pass"))
	assert.False(t, validatePassword("short1!A"[:7]))
	assert.False(t, validatePassword("alllowercase1!"))
	assert.False(t, validatePassword("ALLUPPERCASE1!"))
	assert.False(t, validatePassword("NoDigits!!"))
	assert.False(t, validatePassword("NoSpecial123a"))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, validEmail("user@example.com"))
	assert.False(t, validEmail("not-an-email"))
	assert.False(t, validEmail("user@example.com, second@example.com"))
	assert.False(t, validEmail(""))
}

func TestBuildOrderClause(t *testing.T) {
	allowed := map[string]bool{"email": true, "created_at": true}

	tests := []struct {
		name    string
		sort    string
		want    string
		wantErr bool
	}{
		{name: "empty", sort: "", want: ""},
		{name: "single column", sort: "email", want: `ORDER BY "email" ASC`},
		{name: "explicit desc", sort: "email:desc", want: `ORDER BY "email" DESC`},
		{name: "multiple", sort: "email:desc,created_at", want: `ORDER BY "email" DESC, "created_at" ASC`},
		{name: "trailing comma", sort: "email,", want: `ORDER BY "email" ASC`},
		{name: "unknown column", sort: "password_hash", wantErr: true},
		{name: "injection attempt", sort: "email;DROP TABLE users", wantErr: true},
		{name: "bad direction", sort: "email:sideways", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildOrderClause(tt.sort, allowed)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPageableResponse(t *testing.T) {
	resp := NewPageableResponse(nil, 10)
	assert.NotNil(t, resp.Items)
	assert.Equal(t, 0, resp.NumItems)
	assert.Equal(t, 10, resp.TotalItems)

	resp = NewPageableResponse([]UserDTO{{Email: "a@b.c"}}, 10)
	assert.Equal(t, 1, resp.NumItems)
}

// =====================
// AuthHandler
// =====================

func TestRegisterRejectsInvalidInput(t *testing.T) {
	h := NewAuthHandler(&fakeDB{}, nil, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Post("/register", h.Register)

	_, status := doJSON(t, app, "POST", "/register", fiber.Map{"email": "bad", "password": "Str0ng!pass"})
	assert.Equal(t, 400, status)

	_, status = doJSON(t, app, "POST", "/register", fiber.Map{"email": "user@example.com", "password": "weak"})
	assert.Equal(t, 400, status)
}

func TestRegisterCreatesInactiveUserAndMailsCode(t *testing.T) {
	userID := uuid.New()
	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{vals: []any{userID, "user@example.com", false, nil, nil, nil}}
		},
	}
	mailer := &recordingMailer{}
	h := NewAuthHandler(db, nil, mailer, testConfig())
	app := fiber.New()
	app.Post("/register", h.Register)

	body, status := doJSON(t, app, "POST", "/register", fiber.Map{
		"email":    "User@Example.com",
		"password": "Str0ng!pass",
	})
	assert.Equal(t, 201, status)
	assert.Equal(t, "user@example.com", (*body)["email"])
	assert.Equal(t, false, (*body)["is_active"])
	assert.Equal(t, []string{"user@example.com"}, mailer.confirmations)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{err: fmt.Errorf(`duplicate key value violates unique constraint "users_email_key"`)}
		},
	}
	h := NewAuthHandler(db, nil, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Post("/register", h.Register)

	_, status := doJSON(t, app, "POST", "/register", fiber.Map{
		"email":    "user@example.com",
		"password": "Str0ng!pass",
	})
	assert.Equal(t, 409, status)
}

func TestLoginUnknownUser(t *testing.T) {
	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{err: pgx.ErrNoRows}
		},
	}
	h := NewAuthHandler(db, nil, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Post("/login", h.Login)

	_, status := doJSON(t, app, "POST", "/login", fiber.Map{"email": "ghost@example.com", "password": "x"})
	assert.Equal(t, 401, status)
}

func TestLoginUnconfirmedUser(t *testing.T) {
	hash, err := crypto.HashPassword("Str0ng!pass")
	require.NoError(t, err)
	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{vals: userRowValues(uuid.New(), "user@example.com", hash, false, nil)}
		},
	}
	h := NewAuthHandler(db, nil, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Post("/login", h.Login)

	_, status := doJSON(t, app, "POST", "/login", fiber.Map{"email": "user@example.com", "password": "Str0ng!pass"})
	assert.Equal(t, 401, status)
}

func TestLoginWrongPassword(t *testing.T) {
	hash, err := crypto.HashPassword("Str0ng!pass")
	require.NoError(t, err)
	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{vals: userRowValues(uuid.New(), "user@example.com", hash, true, time.Now())}
		},
	}
	h := NewAuthHandler(db, nil, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Post("/login", h.Login)

	_, status := doJSON(t, app, "POST", "/login", fiber.Map{"email": "user@example.com", "password": "Wr0ng!pass"})
	assert.Equal(t, 401, status)
}

func TestLoginSuccessReturnsBearerToken(t *testing.T) {
	cfg := testConfig()
	hash, err := crypto.HashPassword("Str0ng!pass")
	require.NoError(t, err)
	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{vals: userRowValues(uuid.New(), "user@example.com", hash, true, time.Now())}
		},
	}
	h := NewAuthHandler(db, nil, &recordingMailer{}, cfg)
	app := fiber.New()
	app.Post("/login", h.Login)

	body, status := doJSON(t, app, "POST", "/login", fiber.Map{"email": "user@example.com", "password": "Str0ng!pass"})
	require.Equal(t, 200, status)
	assert.Equal(t, "bearer", (*body)["token_type"])

	token, _ := (*body)["access_token"].(string)
	subject, err := crypto.ParseAccessToken(token, cfg.SecretKey)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", subject)
}

func TestLogoutRevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := NewAuthHandler(&fakeDB{}, rdb, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Post("/logout", func(c *fiber.Ctx) error {
		c.Locals("token_hash", middleware.TokenHash("some-access-token"))
		return c.Next()
	}, h.Logout)

	_, status := doJSON(t, app, "POST", "/logout", nil)
	assert.Equal(t, 200, status)
	assert.True(t, mr.Exists(middleware.RevokedTokenPrefix+middleware.TokenHash("some-access-token")))
}

func TestLogoutWithoutTokenHash(t *testing.T) {
	h := NewAuthHandler(&fakeDB{}, nil, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Post("/logout", h.Logout)

	_, status := doJSON(t, app, "POST", "/logout", nil)
	assert.Equal(t, 401, status)
}

func TestForgotPasswordUnknownUserStillReturns200(t *testing.T) {
	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{err: pgx.ErrNoRows}
		},
	}
	mailer := &recordingMailer{}
	h := NewAuthHandler(db, nil, mailer, testConfig())
	app := fiber.New()
	app.Post("/forgot_password", h.ForgotPassword)

	_, status := doJSON(t, app, "POST", "/forgot_password", fiber.Map{"email": "ghost@example.com"})
	assert.Equal(t, 200, status)
	assert.Empty(t, mailer.resets, "no email may be sent for unknown accounts")
}

func TestForgotPasswordKnownUserStoresCodeAndMails(t *testing.T) {
	hash, err := crypto.HashPassword("Str0ng!pass")
	require.NoError(t, err)
	var updated bool
	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{vals: userRowValues(uuid.New(), "user@example.com", hash, true, time.Now())}
		},
		execFn: func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
			updated = true
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	mailer := &recordingMailer{}
	h := NewAuthHandler(db, nil, mailer, testConfig())
	app := fiber.New()
	app.Post("/forgot_password", h.ForgotPassword)

	_, status := doJSON(t, app, "POST", "/forgot_password", fiber.Map{"email": "user@example.com"})
	assert.Equal(t, 200, status)
	assert.True(t, updated)
	assert.Equal(t, []string{"user@example.com"}, mailer.resets)
}

func TestConfirmInvalidCode(t *testing.T) {
	code, err := crypto.GenerateResetCode()
	require.NoError(t, err)

	vals := userRowValues(uuid.New(), "user@example.com", "hash", false, nil)
	vals[7] = code.Hash
	vals[8] = time.Now().Add(time.Hour)

	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{vals: vals}
		},
	}
	h := NewAuthHandler(db, nil, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Post("/confirm", h.Confirm)

	_, status := doJSON(t, app, "POST", "/confirm", fiber.Map{"email": "user@example.com", "code": "wrong-code"})
	assert.Equal(t, 401, status)
}

func TestConfirmActivatesUser(t *testing.T) {
	code, err := crypto.GenerateResetCode()
	require.NoError(t, err)

	vals := userRowValues(uuid.New(), "user@example.com", "hash", false, nil)
	vals[7] = code.Hash
	vals[8] = time.Now().Add(time.Hour)

	var activated bool
	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{vals: vals}
		},
		execFn: func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
			activated = true
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	h := NewAuthHandler(db, nil, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Post("/confirm", h.Confirm)

	_, status := doJSON(t, app, "POST", "/confirm", fiber.Map{"email": "user@example.com", "code": code.Code})
	assert.Equal(t, 200, status)
	assert.True(t, activated)
}

func TestConfirmExpiredCode(t *testing.T) {
	code, err := crypto.GenerateResetCode()
	require.NoError(t, err)

	vals := userRowValues(uuid.New(), "user@example.com", "hash", false, nil)
	vals[7] = code.Hash
	vals[8] = time.Now().Add(-time.Minute)

	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{vals: vals}
		},
	}
	h := NewAuthHandler(db, nil, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Post("/confirm", h.Confirm)

	_, status := doJSON(t, app, "POST", "/confirm", fiber.Map{"email": "user@example.com", "code": code.Code})
	assert.Equal(t, 401, status)
}

func TestResetPasswordRejectsSamePassword(t *testing.T) {
	code, err := crypto.GenerateResetCode()
	require.NoError(t, err)
	hash, err := crypto.HashPassword("Str0ng!pass")
	require.NoError(t, err)

	vals := userRowValues(uuid.New(), "user@example.com", hash, true, time.Now())
	vals[7] = code.Hash
	vals[8] = time.Now().Add(time.Hour)

	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{vals: vals}
		},
	}
	h := NewAuthHandler(db, nil, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Post("/reset_password", h.ResetPassword)

	_, status := doJSON(t, app, "POST", "/reset_password", fiber.Map{
		"email":    "user@example.com",
		"password": "Str0ng!pass",
		"code":     code.Code,
	})
	assert.Equal(t, 422, status)
}

func TestResetPasswordIssuesNewToken(t *testing.T) {
	cfg := testConfig()
	code, err := crypto.GenerateResetCode()
	require.NoError(t, err)
	hash, err := crypto.HashPassword("Old!Passw0rd")
	require.NoError(t, err)

	vals := userRowValues(uuid.New(), "user@example.com", hash, true, time.Now())
	vals[7] = code.Hash
	vals[8] = time.Now().Add(time.Hour)

	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{vals: vals}
		},
	}
	h := NewAuthHandler(db, nil, &recordingMailer{}, cfg)
	app := fiber.New()
	app.Post("/reset_password", h.ResetPassword)

	body, status := doJSON(t, app, "POST", "/reset_password", fiber.Map{
		"email":    "user@example.com",
		"password": "New!Passw0rd",
		"code":     code.Code,
	})
	require.Equal(t, 200, status)

	token, _ := (*body)["access_token"].(string)
	subject, err := crypto.ParseAccessToken(token, cfg.SecretKey)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", subject)
}

// =====================
// UsersHandler
// =====================

func TestGetUsersPaginates(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{vals: []any{7}}
		},
		queryFn: func(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
			assert.Equal(t, 2, args[0], "limit")
			assert.Equal(t, 2, args[1], "offset for page 2 size 2")
			return &fakeRows{rows: [][]any{
				{id1, "a@example.com", true, time.Now(), nil, nil},
				{id2, "b@example.com", false, nil, nil, nil},
			}}, nil
		},
	}
	h := NewUsersHandler(db, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Get("/users", h.GetUsers)

	req := httptest.NewRequest("GET", "/users?page=2&size=2", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var out PageableResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.NumItems)
	assert.Equal(t, 7, out.TotalItems)
	assert.Equal(t, "a@example.com", out.Items[0].Email)
}

func TestGetUsersRejectsUnknownSortColumn(t *testing.T) {
	h := NewUsersHandler(&fakeDB{}, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Get("/users", h.GetUsers)

	req := httptest.NewRequest("GET", "/users?sort=password_hash", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}

func TestResendConfirmationUnknownUser(t *testing.T) {
	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{err: pgx.ErrNoRows}
		},
	}
	h := NewUsersHandler(db, &recordingMailer{}, testConfig())
	app := fiber.New()
	app.Post("/users/resend_confirmation", h.ResendConfirmation)

	_, status := doJSON(t, app, "POST", "/users/resend_confirmation", fiber.Map{"email": "ghost@example.com"})
	assert.Equal(t, 404, status)
}

func TestResendConfirmationMailsFreshCode(t *testing.T) {
	var updated bool
	db := &fakeDB{
		queryRowFn: func(ctx context.Context, sql string, args ...interface{}) pgx.Row {
			return stubRow{vals: []any{uuid.New()}}
		},
		execFn: func(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
			updated = true
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
	}
	mailer := &recordingMailer{}
	h := NewUsersHandler(db, mailer, testConfig())
	app := fiber.New()
	app.Post("/users/resend_confirmation", h.ResendConfirmation)

	_, status := doJSON(t, app, "POST", "/users/resend_confirmation", fiber.Map{"email": "user@example.com"})
	assert.Equal(t, 200, status)
	assert.True(t, updated)
	assert.Equal(t, []string{"user@example.com"}, mailer.confirmations)
}
