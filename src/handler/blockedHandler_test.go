package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"portfolioexecutor/src/model"
	"portfolioexecutor/src/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLister struct{}

func (failingLister) Active(context.Context) ([]model.BlockedAsset, error) {
	return nil, assert.AnError
}

func TestListBlockedHandler(t *testing.T) {
	now := time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC)
	reg := registry.New(registry.NewMemoryStore(), registry.WithClock(func() time.Time { return now }))
	_, err := reg.Block(context.Background(), "regn", "asset REGN is not active")
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	ListBlockedHandler(reg).ServeHTTP(rr, withOperator(httptest.NewRequest(http.MethodGet, "/blocked", nil)))

	require.Equal(t, http.StatusOK, rr.Code)
	var body []model.BlockedAsset
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "REGN", body[0].Symbol)
	assert.True(t, body[0].ExpiresAt.Equal(now.Add(registry.DefaultTTL)))
}

func TestListBlockedHandlerEmptyIsArray(t *testing.T) {
	reg := registry.New(registry.NewMemoryStore())

	rr := httptest.NewRecorder()
	ListBlockedHandler(reg).ServeHTTP(rr, withOperator(httptest.NewRequest(http.MethodGet, "/blocked", nil)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestListBlockedHandlerErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	ListBlockedHandler(failingLister{}).ServeHTTP(rr, withOperator(httptest.NewRequest(http.MethodGet, "/blocked", nil)))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = httptest.NewRecorder()
	ListBlockedHandler(failingLister{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/blocked", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
