package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"horse.fit/paperboy/internal/auth"
	"horse.fit/paperboy/internal/cluster"
	"horse.fit/paperboy/internal/store"
)

func testServer(t *testing.T, adminHash string) (*Server, *echo.Echo) {
	t.Helper()
	catalog, err := store.OpenCatalog(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { catalog.Close() })

	cfg, err := cluster.DefaultConfig()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	engine := cluster.NewEngine(catalog, cfg, zerolog.Nop())
	engine.SetLanguageDetector(func(string) string { return "en" })

	srv := NewServer(engine, zerolog.Nop(), Options{AdminTokenHash: adminHash})
	return srv, srv.router()
}

func doJSON(t *testing.T, e *echo.Echo, method, target, token string, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func ingestPayload() string {
	return `{
		"payload_version": "v1",
		"source": "hackernews",
		"records": [
			{
				"source_id": "1",
				"url": "https://example.com/story",
				"title": "A searchable story",
				"raw_tags": ["rustlang"],
				"submitted_at": "2024-04-10T08:00:00Z",
				"source_signal": 42,
				"comment_count": 7
			}
		]
	}`
}

func TestHealth(t *testing.T) {
	t.Parallel()

	_, e := testServer(t, "")
	rec, body := doJSON(t, e, http.MethodGet, "/api/v1/health", "", "")
	if rec.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("unexpected health response: %d %v", rec.Code, body)
	}
}

func TestIngestThenQuery(t *testing.T) {
	t.Parallel()

	token := "super-secret"
	hash, err := auth.HashToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	_, e := testServer(t, hash)

	rec, body := doJSON(t, e, http.MethodPost, "/api/v1/admin/ingest", token, ingestPayload())
	if rec.Code != http.StatusOK {
		t.Fatalf("ingest failed: %d %v", rec.Code, body)
	}
	data := body["data"].(map[string]any)
	if data["accepted"].(float64) != 1 {
		t.Fatalf("expected 1 accepted record, got %v", data)
	}

	rec, body = doJSON(t, e, http.MethodGet, "/api/v1/search?q=searchable", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search failed: %d %v", rec.Code, body)
	}
	items := body["data"].(map[string]any)["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 hit, got %v", items)
	}
	storyID := items[0].(map[string]any)["id"].(string)

	rec, body = doJSON(t, e, http.MethodGet, "/api/v1/stories/"+storyID, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("story lookup failed: %d %v", rec.Code, body)
	}
	st := body["data"].(map[string]any)
	if st["title"] != "A searchable story" {
		t.Fatalf("unexpected story: %v", st)
	}
	tags := st["tags"].([]any)
	if len(tags) != 1 || tags[0] != "rust" {
		t.Fatalf("expected normalized tag, got %v", tags)
	}

	// Tag filter search with the canonical spelling.
	rec, body = doJSON(t, e, http.MethodGet, "/api/v1/search?tags=rust", "", "")
	if rec.Code != http.StatusOK || len(body["data"].(map[string]any)["items"].([]any)) != 1 {
		t.Fatalf("tag search failed: %d %v", rec.Code, body)
	}

	// Domain search accepts the natural label order.
	rec, body = doJSON(t, e, http.MethodGet, "/api/v1/search?domain=example.com", "", "")
	if rec.Code != http.StatusOK || len(body["data"].(map[string]any)["items"].([]any)) != 1 {
		t.Fatalf("domain search failed: %d %v", rec.Code, body)
	}

	rec, body = doJSON(t, e, http.MethodGet, "/api/v1/tags/rust/popularity", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("popularity failed: %d %v", rec.Code, body)
	}
	buckets := body["data"].(map[string]any)["buckets"].([]any)
	if len(buckets) != 1 {
		t.Fatalf("expected one bucket, got %v", buckets)
	}
}

func TestStoryNotFound(t *testing.T) {
	t.Parallel()

	_, e := testServer(t, "")
	rec, _ := doJSON(t, e, http.MethodGet, "/api/v1/stories/2024-04:0000000000000000", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	t.Parallel()

	token := "super-secret"
	hash, err := auth.HashToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	_, e := testServer(t, hash)

	rec, _ := doJSON(t, e, http.MethodPost, "/api/v1/admin/ingest", "", ingestPayload())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	rec, _ = doJSON(t, e, http.MethodPost, "/api/v1/admin/ingest", "wrong", ingestPayload())
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", rec.Code)
	}

	// No hash configured disables the endpoints regardless of token.
	_, disabled := testServer(t, "")
	rec, _ = doJSON(t, disabled, http.MethodPost, "/api/v1/admin/ingest", token, ingestPayload())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when admin is disabled, got %d", rec.Code)
	}
}

func TestIngestRejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	token := "super-secret"
	hash, err := auth.HashToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	_, e := testServer(t, hash)

	rec, _ := doJSON(t, e, http.MethodPost, "/api/v1/admin/ingest", token, `{"payload_version": "v1"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestBackupAndReplayEndpoints(t *testing.T) {
	t.Parallel()

	token := "super-secret"
	hash, err := auth.HashToken(token)
	if err != nil {
		t.Fatalf("hash token: %v", err)
	}
	_, e := testServer(t, hash)

	if rec, body := doJSON(t, e, http.MethodPost, "/api/v1/admin/ingest", token, ingestPayload()); rec.Code != http.StatusOK {
		t.Fatalf("ingest failed: %d %v", rec.Code, body)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/shards/2024-04/backup", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "example.com/story") {
		t.Fatalf("backup failed: %d %q", rec.Code, rec.Body.String())
	}

	rec2, body := doJSON(t, e, http.MethodPost, "/api/v1/admin/shards/2024-04/replay", token, "")
	if rec2.Code != http.StatusConflict {
		t.Fatalf("expected conflict without force, got %d %v", rec2.Code, body)
	}
	rec2, body = doJSON(t, e, http.MethodPost, "/api/v1/admin/shards/2024-04/replay?force=true", token, "")
	if rec2.Code != http.StatusOK {
		t.Fatalf("replay failed: %d %v", rec2.Code, body)
	}
	if body["data"].(map[string]any)["replayed"].(float64) != 1 {
		t.Fatalf("expected 1 replayed record, got %v", body)
	}
}

func TestSearchParamValidation(t *testing.T) {
	t.Parallel()

	_, e := testServer(t, "")
	rec, _ := doJSON(t, e, http.MethodGet, "/api/v1/search?from=yesterday", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad from, got %d", rec.Code)
	}
	rec, _ = doJSON(t, e, http.MethodGet, "/api/v1/search?offset=-1", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative offset, got %d", rec.Code)
	}
}
