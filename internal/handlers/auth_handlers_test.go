package handlers

import (
	"net/http"
	"testing"

	"github.com/bucketdrive/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

func TestRegisterLoginMe(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", fiber.Map{
		"email":     "alice@example.com",
		"password":  "supersecret",
		"firstName": "Alice",
		"lastName":  "Smith",
	}, nil)
	assertStatus(t, resp, fiber.StatusCreated)
	body := decodeJSONMap(t, resp)
	data := body["data"].(map[string]any)
	if data["token"] == "" {
		t.Fatal("expected a token on registration")
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", fiber.Map{
		"email":    "alice@example.com",
		"password": "supersecret",
	}, nil)
	assertStatus(t, resp, fiber.StatusOK)
	body = decodeJSONMap(t, resp)
	token := body["data"].(map[string]any)["token"].(string)

	resp = performJSONRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
	body = decodeJSONMap(t, resp)
	me := body["data"].(map[string]any)
	if me["email"] != "alice@example.com" {
		t.Fatalf("me returned %v", me["email"])
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "bob@example.com", "password123", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/register", fiber.Map{
		"email":     "bob@example.com",
		"password":  "password123",
		"firstName": "Bob",
		"lastName":  "Jones",
	}, nil)
	assertStatus(t, resp, fiber.StatusConflict)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := setupTestEnv(t)
	createTestUser(t, env.db, "carol@example.com", "rightpassword", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/auth/login", fiber.Map{
		"email":    "carol@example.com",
		"password": "wrongpassword",
	}, nil)
	assertStatus(t, resp, fiber.StatusUnauthorized)
}

func TestMeRequiresAuth(t *testing.T) {
	env := setupTestEnv(t)

	resp := performJSONRequest(t, env.app, http.MethodGet, "/api/auth/me", nil, nil)
	assertStatus(t, resp, fiber.StatusUnauthorized)
}
