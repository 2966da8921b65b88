package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func authApp(svc *Service, userID int64) *fiber.App {
	app := fiber.New()
	stubAuth := func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		c.Locals("role", "user")
		c.Locals("user_type", "trekker")
		return c.Next()
	}
	RegisterRoutes(app.Group("/auth"), svc, stubAuth)
	return app
}

func jsonReq(method, target string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegisterHandler(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ana@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "Ana", "ana@example.com", pgxmock.AnyArg(), "email",
			"user", "trekker", (*string)(nil), false).
		WillReturnRows(insertReturningRows(1))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), int64(1), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	app := authApp(NewService("secret", mock, &validatorStub{}, nil), 0)
	resp, err := app.Test(jsonReq(http.MethodPost, "/auth/register", RegisterRequest{
		Name: "Ana", Email: "ana@example.com", Password: "supersecret",
	}))
	if err != nil || resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status: %v %d", err, resp.StatusCode)
	}

	var out struct {
		User   User          `json:"user"`
		Tokens TokenResponse `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.User.ID != 1 || out.Tokens.AccessToken == "" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestRegisterHandlerConflict(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ana@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	app := authApp(NewService("secret", mock, &validatorStub{}, nil), 0)
	resp, _ := app.Test(jsonReq(http.MethodPost, "/auth/register", RegisterRequest{
		Name: "Ana", Email: "ana@example.com", Password: "supersecret",
	}))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict, got %d", resp.StatusCode)
	}
}

func TestLoginHandlerBadRequest(t *testing.T) {
	app := authApp(NewService("secret", newMock(t), &validatorStub{}, nil), 0)
	resp, _ := app.Test(jsonReq(http.MethodPost, "/auth/login", LoginRequest{Email: "a@b.com"}))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}
}

func TestLoginHandlerInvalidCredentials(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE email`).
		WithArgs("a@b.com").
		WillReturnRows(userRows(User{ID: 1, Role: "user", UserType: "trekker"}))

	app := authApp(NewService("secret", mock, &validatorStub{}, nil), 0)
	resp, _ := app.Test(jsonReq(http.MethodPost, "/auth/login", LoginRequest{Email: "a@b.com", Password: "wrong"}))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", resp.StatusCode)
	}
}

func TestLoginHandlerStorageError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE email`).
		WithArgs("a@b.com").
		WillReturnError(errors.New("connection refused"))

	app := authApp(NewService("secret", mock, &validatorStub{}, nil), 0)
	resp, _ := app.Test(jsonReq(http.MethodPost, "/auth/login", LoginRequest{Email: "a@b.com", Password: "supersecret"}))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected internal error, got %d", resp.StatusCode)
	}
}

func TestRegisterHandlerValidation(t *testing.T) {
	app := authApp(NewService("secret", newMock(t), &validatorStub{}, nil), 0)
	resp, _ := app.Test(jsonReq(http.MethodPost, "/auth/register", RegisterRequest{
		Name: "Ana", Email: "ana@example.com", Password: "short",
	}))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request, got %d", resp.StatusCode)
	}
}

func TestRegisterHandlerStorageError(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ana@example.com").
		WillReturnError(errors.New("connection refused"))

	app := authApp(NewService("secret", mock, &validatorStub{}, nil), 0)
	resp, _ := app.Test(jsonReq(http.MethodPost, "/auth/register", RegisterRequest{
		Name: "Ana", Email: "ana@example.com", Password: "supersecret",
	}))
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected internal error, got %d", resp.StatusCode)
	}
}

func TestRefreshHandler(t *testing.T) {
	mock := newMock(t)

	svc := NewService("secret", mock, &validatorStub{}, nil)

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), int64(4), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	tokens, err := svc.GenerateTokens(httptest.NewRequest(http.MethodGet, "/", nil).Context(), User{ID: 4, Role: "user", UserType: "trekker"})
	if err != nil {
		t.Fatalf("generate tokens: %v", err)
	}

	mock.ExpectQuery(`SELECT user_id, expires_at`).
		WithArgs(tokens.RefreshToken).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "expires_at"}).
			AddRow(int64(4), time.Now().Add(time.Hour)))
	mock.ExpectQuery(`FROM users WHERE id`).
		WithArgs(int64(4)).
		WillReturnRows(userRows(User{ID: 4, Role: "user", UserType: "trekker"}))
	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WithArgs(pgxmock.AnyArg(), int64(4), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	app := authApp(svc, 0)
	resp, err := app.Test(jsonReq(http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: tokens.RefreshToken}))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status: %v %d", err, resp.StatusCode)
	}
}

func TestRefreshHandlerInvalidToken(t *testing.T) {
	app := authApp(NewService("secret", newMock(t), &validatorStub{}, nil), 0)
	resp, _ := app.Test(jsonReq(http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: "garbage"}))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", resp.StatusCode)
	}
}

func TestMeHandler(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE id`).
		WithArgs(int64(6)).
		WillReturnRows(userRows(User{ID: 6, Name: "Ana", Role: "user", UserType: "trekker"}))

	app := authApp(NewService("secret", mock, &validatorStub{}, nil), 6)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("me status: %v %d", err, resp.StatusCode)
	}
}

func TestUpdateMeHandler(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM users WHERE id`).
		WithArgs(int64(6)).
		WillReturnRows(userRows(User{ID: 6, Name: "Ana", Email: "a@b.com", Role: "user", UserType: "trekker"}))
	mock.ExpectExec(`UPDATE users SET name`).
		WithArgs(int64(6), "Ana Maria", "a@b.com", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	app := authApp(NewService("secret", mock, &validatorStub{}, nil), 6)
	resp, err := app.Test(jsonReq(http.MethodPut, "/auth/me", ProfileUpdate{Name: "Ana Maria"}))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("update me status: %v %d", err, resp.StatusCode)
	}
}

func TestPhotoHandlers(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`UPDATE users SET photo_url`).
		WithArgs(int64(6), "https://photo").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE users SET photo_url`).
		WithArgs(int64(6), "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	app := authApp(NewService("secret", mock, &validatorStub{}, nil), 6)

	resp, err := app.Test(jsonReq(http.MethodPost, "/auth/me/photo", fiber.Map{"url": "https://photo"}))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("set photo status: %v %d", err, resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/auth/me/photo", nil))
	if err != nil || resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete photo status: %v %d", err, resp.StatusCode)
	}
}
