package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookkeeping-reconciliation-service/internal/models"
	"bookkeeping-reconciliation-service/internal/reconciler"
	"bookkeeping-reconciliation-service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*gin.Engine, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	service := reconciler.NewService(store, nil, nil)
	return NewServer(service).Router(), store
}

func doRequest(t *testing.T, router *gin.Engine, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func seedTx(t *testing.T, store *storage.MemoryStore, bankID, bookID string) {
	t.Helper()
	date := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateBankTransaction(context.Background(), &models.BankTransaction{
		ID:          bankID,
		AccountID:   "acct-1",
		Amount:      decimal.RequireFromString("100.00"),
		Date:        date,
		Description: "Rent",
	}))
	require.NoError(t, store.CreateBookTransaction(context.Background(), &models.BookTransaction{
		ID:          bookID,
		AccountID:   "acct-1",
		Amount:      decimal.RequireFromString("100.00"),
		Date:        date,
		Description: "Rent",
	}))
}

func createSessionViaAPI(t *testing.T, router *gin.Engine, user string) string {
	t.Helper()
	resp := doRequest(t, router, http.MethodPost, "/api/sessions", user, gin.H{
		"accountId": "acct-1",
		"startDate": "2024-01-01",
		"endDate":   "2024-01-31",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var session models.ReconciliationSession
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &session))
	return session.ID
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestServer(t)

	resp := doRequest(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestMissingUserHeader(t *testing.T) {
	router, _ := newTestServer(t)

	resp := doRequest(t, router, http.MethodGet, "/api/sessions", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateSessionValidatesDateRange(t *testing.T) {
	router, _ := newTestServer(t)

	resp := doRequest(t, router, http.MethodPost, "/api/sessions", "user-1", gin.H{
		"accountId": "acct-1",
		"startDate": "2024-02-01",
		"endDate":   "2024-01-01",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestReconcileFlow(t *testing.T) {
	router, store := newTestServer(t)
	seedTx(t, store, "bank-1", "book-1")

	sessionID := createSessionViaAPI(t, router, "user-1")

	resp := doRequest(t, router, http.MethodPost, "/api/sessions/"+sessionID+"/reconcile", "user-1", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var session models.ReconciliationSession
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &session))
	assert.Equal(t, models.SessionCompleted, session.Status)
	assert.Equal(t, 100, session.ReconciliationScore)

	report := doRequest(t, router, http.MethodGet, "/api/sessions/"+sessionID+"/report", "user-1", nil)
	require.Equal(t, http.StatusOK, report.Code)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(report.Body.Bytes(), &decoded))
	assert.Equal(t, sessionID, decoded["sessionId"])
}

func TestForeignSessionReturns404(t *testing.T) {
	router, _ := newTestServer(t)

	sessionID := createSessionViaAPI(t, router, "user-1")

	// Another user sees 404, not 403, for someone else's session.
	resp := doRequest(t, router, http.MethodGet, "/api/sessions/"+sessionID, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	missing := doRequest(t, router, http.MethodGet, "/api/sessions/nonexistent", "user-2", nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.JSONEq(t, resp.Body.String(), missing.Body.String())
}

func TestCreateManualMatchEndpoint(t *testing.T) {
	router, store := newTestServer(t)
	seedTx(t, store, "bank-1", "book-1")

	sessionID := createSessionViaAPI(t, router, "user-1")

	resp := doRequest(t, router, http.MethodPost, "/api/sessions/"+sessionID+"/matches", "user-1", gin.H{
		"bankTransactionId": "bank-1",
		"bookTransactionId": "book-1",
		"notes":             "verified",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var match models.ReconciliationMatch
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &match))
	assert.Equal(t, models.MatchManual, match.MatchType)
	assert.Equal(t, 1.0, match.Confidence)
}

func TestRuleEndpoints(t *testing.T) {
	router, store := newTestServer(t)
	seedTx(t, store, "bank-1", "book-1")

	created := doRequest(t, router, http.MethodPost, "/api/rules", "user-1", gin.H{
		"name": "Tag rent",
		"conditions": []gin.H{
			{"field": "description", "operator": "contains", "value": "rent"},
		},
		"actions": []gin.H{
			{"type": "tag", "value": "housing"},
		},
		"isActive": true,
		"priority": 5,
	})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())

	list := doRequest(t, router, http.MethodGet, "/api/rules", "user-1", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "Tag rent")

	applied := doRequest(t, router, http.MethodPost, "/api/rules/apply/bank-1", "user-1", nil)
	require.Equal(t, http.StatusOK, applied.Code, applied.Body.String())
	assert.Contains(t, applied.Body.String(), `"applied":true`)
	assert.Equal(t, []string{"housing"}, store.Tags["bank-1"])
}

func TestCreateRuleRejectsUnknownOperator(t *testing.T) {
	router, _ := newTestServer(t)

	resp := doRequest(t, router, http.MethodPost, "/api/rules", "user-1", gin.H{
		"name": "Bad rule",
		"conditions": []gin.H{
			{"field": "description", "operator": "sounds_like", "value": "rent"},
		},
		"actions": []gin.H{
			{"type": "tag", "value": "x"},
		},
		"isActive": true,
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}
