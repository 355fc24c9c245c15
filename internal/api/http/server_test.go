package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "github.com/estate-hub/estate-hub/internal/api/http"
	adminapp "github.com/estate-hub/estate-hub/internal/application/admin"
	"github.com/estate-hub/estate-hub/internal/application/apptest"
	auditapp "github.com/estate-hub/estate-hub/internal/application/audit"
	offerapp "github.com/estate-hub/estate-hub/internal/application/offer"
	"github.com/estate-hub/estate-hub/internal/application/policy"
	propertyapp "github.com/estate-hub/estate-hub/internal/application/property"
	"github.com/estate-hub/estate-hub/internal/domain/user"
	"github.com/estate-hub/estate-hub/internal/infrastructure/sse"
)

var secret = []byte("http-test-secret")

type harness struct {
	env    *apptest.Env
	server *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	env := apptest.New(t)
	lowball, err := policy.NewLowballRule("")
	require.NoError(t, err)
	svc := httpapi.Services{
		Properties: propertyapp.NewService(env.Runner, nil, env.Logger),
		Offers: offerapp.NewService(env.Runner, lowball, offerapp.Config{
			TTL:              72 * time.Hour,
			MaxCounterRounds: 5,
		}, env.Logger),
		Admin: adminapp.NewService(env.Runner, env.Logger),
		Audit: auditapp.NewService(env.Store.Repos().Audit, apptest.SigningKey, env.Logger),
	}
	srv := httptest.NewServer(httpapi.NewServer(svc, sse.NewHub(), secret, env.Logger).Router())
	t.Cleanup(srv.Close)
	return &harness{env: env, server: srv}
}

func (h *harness) do(t *testing.T, actor *user.Actor, method, path string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, &buf)
	require.NoError(t, err)
	if actor != nil {
		token, err := httpapi.IssueToken(secret, *actor, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestRequestsNeedAnActor(t *testing.T) {
	h := newHarness(t)
	status, _ := h.do(t, nil, http.MethodGet, "/v1/properties", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	system := user.System()
	status, _ = h.do(t, &system, http.MethodGet, "/v1/properties", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := h.do(t, nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestParseActorRejectsForeignSignature(t *testing.T) {
	seller := apptest.Seller()
	token, err := httpapi.IssueToken([]byte("someone-else"), seller, time.Hour)
	require.NoError(t, err)
	_, err = httpapi.ParseActor(secret, token)
	assert.Error(t, err)

	token, err = httpapi.IssueToken(secret, seller, time.Hour)
	require.NoError(t, err)
	got, err := httpapi.ParseActor(secret, token)
	require.NoError(t, err)
	assert.Equal(t, seller, got)
}

func TestDraftLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	seller, buyer := apptest.Seller(), apptest.Buyer()

	status, body := h.do(t, &seller, http.MethodPost, "/v1/properties", apptest.Draft(5_000_000))
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "DRAFT", body["status"])
	id := body["id"].(string)

	status, body = h.do(t, &buyer, http.MethodGet, "/v1/properties/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"])

	status, body = h.do(t, &buyer, http.MethodPost, "/v1/properties", apptest.Draft(1))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "NOT_AUTHORIZED", body["error"])

	status, _ = h.do(t, &seller, http.MethodPut, "/v1/properties/not-a-uuid/price", map[string]int64{"price": 1})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = h.do(t, &seller, http.MethodPut, "/v1/properties/"+id+"/price", map[string]interface{}{"cost": 1})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestOfferAcceptanceOverHTTP(t *testing.T) {
	h := newHarness(t)
	seller, buyer := apptest.Seller(), apptest.Buyer()
	p := h.env.ActiveProperty(t, seller, h.env.Agent(t, 5), 10_000_000)

	status, body := h.do(t, &buyer, http.MethodPost, "/v1/properties/"+p.ID.String()+"/offers", map[string]int64{"amount": 9_000_000})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "PENDING", body["status"])
	offerID := body["id"].(string)

	status, body = h.do(t, &buyer, http.MethodPost, "/v1/offers/"+offerID+"/respond", map[string]interface{}{"action": "accept"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "NOT_AUTHORIZED", body["error"])

	status, body = h.do(t, &seller, http.MethodPost, "/v1/offers/"+offerID+"/respond", map[string]interface{}{"action": "accept"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ACCEPTED", body["status"])

	status, body = h.do(t, &seller, http.MethodPost, "/v1/offers/"+offerID+"/respond", map[string]interface{}{"action": "reject"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", body["error"])

	admin := apptest.Admin()
	status, body = h.do(t, &admin, http.MethodGet, "/v1/audit/OFFER/"+offerID+"/walk", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])

	status, _ = h.do(t, &admin, http.MethodGet, "/v1/audit?actor_id=nope", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = h.do(t, &admin, http.MethodGet, "/v1/audit?entity_id="+uuid.NewString(), nil)
	assert.Equal(t, http.StatusOK, status)
}
