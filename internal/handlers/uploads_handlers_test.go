package handlers

import (
	"net/http"
	"testing"

	"github.com/bucketdrive/backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

func TestGrantsIssuesPresignedURLs(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "uploader@example.com", "password123", models.UserRoleUser)
	bucket := createTestBucket(t, env.db, user.ID)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/uploads/grants", fiber.Map{
		"bucketID": bucket.ID.String(),
		"items": []fiber.Map{
			{"key": "Docs/a.pdf", "name": "a.pdf", "size": "10", "contentType": "application/pdf"},
			{"key": "Docs/b.pdf", "name": "b.pdf", "size": "20", "contentType": "application/pdf"},
		},
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)

	body := decodeJSONMap(t, resp)
	grants := body["data"].(map[string]any)["grants"].([]any)
	if len(grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(grants))
	}

	first := grants[0].(map[string]any)
	if first["fileName"] != "a.pdf" || first["key"] != "Docs/a.pdf" {
		t.Fatalf("grant not in request order: %v", first)
	}
	if first["url"] != "https://storage.test/put/Docs/a.pdf" {
		t.Fatalf("unexpected presigned url %v", first["url"])
	}
}

func TestGrantsRenamesOnCollision(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "collide@example.com", "password123", models.UserRoleUser)
	bucket := createTestBucket(t, env.db, user.ID)
	createTestFile(t, env.db, user.ID, bucket.ID, "a.txt", "Docs/a.txt", nil, 10)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/uploads/grants", fiber.Map{
		"bucketID": bucket.ID.String(),
		"items": []fiber.Map{
			{"key": "Docs/a.txt", "name": "a.txt", "size": "10"},
		},
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)

	body := decodeJSONMap(t, resp)
	grant := body["data"].(map[string]any)["grants"].([]any)[0].(map[string]any)
	if grant["fileName"] != "a(1).txt" {
		t.Fatalf("fileName = %v, want a(1).txt", grant["fileName"])
	}
	if grant["key"] != "Docs/a(1).txt" {
		t.Fatalf("key = %v, want Docs/a(1).txt", grant["key"])
	}
}

func TestGrantsDeduplicatesWithinOneRequest(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "dedupe@example.com", "password123", models.UserRoleUser)
	bucket := createTestBucket(t, env.db, user.ID)

	// two items ask for the same key; no record exists for either yet
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/uploads/grants", fiber.Map{
		"bucketID": bucket.ID.String(),
		"items": []fiber.Map{
			{"key": "Docs/dup.txt", "name": "dup.txt", "size": "1"},
			{"key": "Docs/dup.txt", "name": "dup.txt", "size": "2"},
		},
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)

	body := decodeJSONMap(t, resp)
	grants := body["data"].(map[string]any)["grants"].([]any)
	firstKey := grants[0].(map[string]any)["key"]
	secondKey := grants[1].(map[string]any)["key"]
	if firstKey != "Docs/dup.txt" {
		t.Fatalf("first key = %v", firstKey)
	}
	if secondKey != "Docs/dup(1).txt" {
		t.Fatalf("second key = %v, want Docs/dup(1).txt", secondKey)
	}
}

func TestGrantsRefusesForeignBucket(t *testing.T) {
	env := setupTestEnv(t)
	owner, _ := createTestUser(t, env.db, "owner@example.com", "password123", models.UserRoleUser)
	bucket := createTestBucket(t, env.db, owner.ID)
	_, token := createTestUser(t, env.db, "intruder@example.com", "password123", models.UserRoleUser)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/uploads/grants", fiber.Map{
		"bucketID": bucket.ID.String(),
		"items":    []fiber.Map{{"key": "x.txt", "name": "x.txt", "size": "1"}},
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusForbidden)
}

func TestPrecheckAllowsRunWithinQuota(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "quota-ok@example.com", "password123", models.UserRoleUser)
	bucket := createTestBucket(t, env.db, user.ID)

	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/uploads/precheck", fiber.Map{
		"bucketID":   bucket.ID.String(),
		"totalBytes": "900",
		"fileCount":  3,
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusOK)
}

func TestPrecheckRejectsOversizedRun(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "quota-big@example.com", "password123", models.UserRoleUser)
	bucket := createTestBucket(t, env.db, user.ID)

	// the test quota allows 1000 bytes per run
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/uploads/precheck", fiber.Map{
		"bucketID":   bucket.ID.String(),
		"totalBytes": "2000",
		"fileCount":  3,
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusRequestEntityTooLarge)
}

func TestPrecheckHandlesHugeByteCounts(t *testing.T) {
	env := setupTestEnv(t)
	user, token := createTestUser(t, env.db, "quota-huge@example.com", "password123", models.UserRoleUser)
	bucket := createTestBucket(t, env.db, user.ID)

	// far beyond int64; must be parsed, not overflowed
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/uploads/precheck", fiber.Map{
		"bucketID":   bucket.ID.String(),
		"totalBytes": "99999999999999999999999999999999",
		"fileCount":  1,
	}, authHeaders(token))
	assertStatus(t, resp, fiber.StatusRequestEntityTooLarge)
}
