package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	// integration tests are opt-in. Set DB_DSN_TEST=1 and DB_DSN to run them.
	if os.Getenv("DB_DSN_TEST") != "1" {
		t.Skip("integration tests are disabled; set DB_DSN_TEST=1 to enable")
	}
	gin.SetMode(gin.TestMode)
	tmp := t.TempDir()
	_ = os.Setenv("UPLOAD_BASE", tmp)
	db, err := openDB()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	migrateDB(db)
	s := newServer(db, []byte("test-secret"))
	r := gin.Default()
	setupRoutes(r, s)
	return r
}

func TestFullFlow(t *testing.T) {
	r := setupTestServer(t)

	// 1. Register user
	regBody, _ := json.Marshal(map[string]string{"username": "user1", "password": "pass123"})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 2. Login
	loginBody, _ := json.Marshal(map[string]string{"username": "user1", "password": "pass123"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(loginBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	// 3. Record a job
	jobBody, _ := json.Marshal(map[string]any{
		"date": "2026-08-01", "client": "Sarah J", "amount": "45.00", "paid": true, "method": "cash",
	})
	resp = performRequest(r, http.MethodPost, "/jobs", bytes.NewBuffer(jobBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create job failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 4. Save an expense from a draft with items and a ticked business line
	expBody, _ := json.Marshal(map[string]any{
		"date": "2026-08-02", "merchant": "Tesco", "category": "Supplies",
		"items": []map[string]any{
			{"label": "Bleach", "amount": "2.50", "is_business": true},
			{"label": "Snacks", "amount": "1.25"},
		},
	})
	resp = performRequest(r, http.MethodPost, "/expenses", bytes.NewBuffer(expBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create expense failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var expResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &expResp)
	if total, _ := expResp["total"].(float64); int64(total) != 375 {
		t.Fatalf("expected finalized total 375 got %v", expResp["total"])
	}
	if biz, _ := expResp["business_portion"].(float64); int64(biz) != 250 {
		t.Fatalf("expected business portion 250 got %v", expResp["business_portion"])
	}

	// 5. Settings round-trip
	resp = performRequest(r, http.MethodGet, "/settings", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("get settings failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	setBody, _ := json.Marshal(map[string]any{"monthly_income_limit": "1000.00", "warn_at_percent": 75})
	resp = performRequest(r, http.MethodPut, "/settings", bytes.NewBuffer(setBody), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("save settings failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 6. Income summary
	resp = performRequest(r, http.MethodGet, "/summary/income", nil, token, "")
	if resp.Code != 200 {
		t.Fatalf("income summary failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 7. CSV exports
	resp = performRequest(r, http.MethodGet, "/export/jobs.csv", nil, token, "")
	if resp.Code != 200 || !bytes.Contains(resp.Body.Bytes(), []byte("Sarah J")) {
		t.Fatalf("jobs export failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, "/export/expenses.csv", nil, token, "")
	if resp.Code != 200 || !bytes.Contains(resp.Body.Bytes(), []byte("Tesco")) {
		t.Fatalf("expenses export failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 8. Upload receipt image
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	w, _ := mw.CreateFormFile("file", "receipt.jpg")
	_, _ = w.Write([]byte("JPEGDATA"))
	_ = mw.Close()
	resp = performRequest(r, http.MethodPost, "/uploads", buf, token, mw.FormDataContentType())
	if resp.Code != 200 {
		t.Fatalf("upload failed status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 9. Unauthorized access to a protected endpoint should be 401
	unauth := performRequest(r, http.MethodGet, "/jobs", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized list jobs got %d", unauth.Code)
	}
}
