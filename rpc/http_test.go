package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"landledger/core"
	"landledger/crypto"
	"landledger/storage"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*Server, *httptest.Server, string) {
	t.Helper()
	db := storage.NewMemDB()
	var admin [20]byte
	admin[0] = 0xAD
	node, err := core.NewNode(db, admin, "", true)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	server, err := NewServer(node, nil, nil, ServerConfig{
		JWTSecret:       testSecret,
		RatePerSecond:   1000,
		RateBurst:       1000,
		IdempotencyPath: filepath.Join(t.TempDir(), "idempotency.db"),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	adminAddr := crypto.MustNewAddress(crypto.LandPrefix, admin[:]).String()
	return server, ts, adminAddr
}

func call(t *testing.T, url, method string, params interface{}, headers map[string]string) (*RPCResponse, int) {
	t.Helper()
	var rawParams []json.RawMessage
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			t.Fatalf("encode params: %v", err)
		}
		rawParams = []json.RawMessage{encoded}
	}
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  rawParams,
	})
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	decoded := &RPCResponse{}
	if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return decoded, resp.StatusCode
}

func authHeaders(t *testing.T) map[string]string {
	t.Helper()
	token, err := IssueToken([]byte(testSecret), "ops", time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestAdminMethodsRequireToken(t *testing.T) {
	_, ts, admin := newTestServer(t)
	params := map[string]interface{}{
		"caller":    admin,
		"symbol":    "LND-1",
		"name":      "Harborview Lofts",
		"maxShares": "1000",
	}
	resp, status := call(t, ts.URL, "assets_register", params, nil)
	if status != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got status %d resp %+v", status, resp)
	}

	resp, status = call(t, ts.URL, "assets_register", params, authHeaders(t))
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("expected success with token, got status %d error %+v", status, resp.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	_, ts, _ := newTestServer(t)
	resp, status := call(t, ts.URL, "assets_destroy", nil, nil)
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found, got status %d resp %+v", status, resp)
	}
}

func TestRegisterMintAndQueryFlow(t *testing.T) {
	_, ts, admin := newTestServer(t)
	headers := authHeaders(t)

	resp, status := call(t, ts.URL, "assets_register", map[string]interface{}{
		"caller":    admin,
		"symbol":    "LND-1",
		"name":      "Harborview Lofts",
		"maxShares": "1000",
	}, headers)
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("register failed: %d %+v", status, resp.Error)
	}

	holder := crypto.MustNewAddress(crypto.LandPrefix, bytes.Repeat([]byte{0x11}, 20)).String()
	resp, status = call(t, ts.URL, "assets_mint", map[string]interface{}{
		"caller":  admin,
		"assetId": 1,
		"holder":  holder,
		"amount":  "250",
	}, headers)
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("mint failed: %d %+v", status, resp.Error)
	}

	resp, status = call(t, ts.URL, "assets_balanceOf", map[string]interface{}{
		"holder":  holder,
		"assetId": 1,
	}, nil)
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("balance failed: %d %+v", status, resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["balance"] != "250" {
		t.Fatalf("unexpected balance result: %+v", resp.Result)
	}

	resp, status = call(t, ts.URL, "assets_get", map[string]interface{}{"assetId": 99}, nil)
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeNotFound {
		t.Fatalf("expected not found, got %d %+v", status, resp)
	}
}

func TestInvalidParamsRejected(t *testing.T) {
	_, ts, _ := newTestServer(t)
	resp, status := call(t, ts.URL, "assets_balanceOf", map[string]interface{}{
		"holder":  "not-an-address",
		"assetId": 1,
	}, nil)
	if status != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %d %+v", status, resp)
	}

	resp, status = call(t, ts.URL, "assets_balanceOf", map[string]interface{}{
		"holder":  "not-an-address",
		"bogus":   true,
		"assetId": 1,
	}, nil)
	if status != http.StatusBadRequest || resp.Error == nil {
		t.Fatalf("expected unknown field rejection, got %d %+v", status, resp)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	_, ts, admin := newTestServer(t)
	headers := authHeaders(t)

	for _, setup := range []struct {
		method string
		params map[string]interface{}
	}{
		{"assets_register", map[string]interface{}{
			"caller": admin, "symbol": "LND-1", "name": "Harborview Lofts", "maxShares": "1000",
		}},
		{"assets_setVerified", map[string]interface{}{"caller": admin, "assetId": 1, "value": true}},
		{"assets_mint", map[string]interface{}{"caller": admin, "assetId": 1, "holder": admin, "amount": "500"}},
	} {
		resp, status := call(t, ts.URL, setup.method, setup.params, headers)
		if status != http.StatusOK || resp.Error != nil {
			t.Fatalf("%s failed: %d %+v", setup.method, status, resp.Error)
		}
	}

	listParams := map[string]interface{}{
		"seller": admin, "assetId": 1, "shares": "100", "pricePerShare": "5",
	}
	withKey := map[string]string{"X-Idempotency-Key": "list-1"}
	resp, status := call(t, ts.URL, "market_list", listParams, withKey)
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("list failed: %d %+v", status, resp.Error)
	}
	first, _ := json.Marshal(resp.Result)

	resp, status = call(t, ts.URL, "market_list", listParams, withKey)
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("replayed list failed: %d %+v", status, resp.Error)
	}
	second, _ := json.Marshal(resp.Result)
	if string(first) != string(second) {
		t.Fatalf("replay returned a different result: %s vs %s", first, second)
	}

	// Only one listing should exist: the retry must not have executed twice.
	resp, status = call(t, ts.URL, "market_openListings", map[string]interface{}{"assetId": 1}, nil)
	if status != http.StatusOK || resp.Error != nil {
		t.Fatalf("open listings failed: %d %+v", status, resp.Error)
	}
	listings, ok := resp.Result.([]interface{})
	if !ok || len(listings) != 1 {
		t.Fatalf("expected one open listing, got %+v", resp.Result)
	}

	// The same key with a different method is a client error.
	resp, status = call(t, ts.URL, "market_cancel", map[string]interface{}{
		"caller": admin, "listingId": 1,
	}, withKey)
	if status != http.StatusConflict || resp.Error == nil || resp.Error.Code != codeDuplicateKey {
		t.Fatalf("expected idempotency conflict, got %d %+v", status, resp)
	}
}

func TestRateLimitRejectsBursts(t *testing.T) {
	db := storage.NewMemDB()
	var admin [20]byte
	admin[0] = 0xAD
	node, err := core.NewNode(db, admin, "", true)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	server, err := NewServer(node, nil, nil, ServerConfig{
		RatePerSecond: 0.001,
		RateBurst:     1,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(server.Router())
	defer ts.Close()

	if resp, status := call(t, ts.URL, "assets_list", nil, nil); status != http.StatusOK || resp.Error != nil {
		t.Fatalf("first request should pass: %d %+v", status, resp)
	}
	resp, status := call(t, ts.URL, "assets_list", nil, nil)
	if status != http.StatusTooManyRequests || resp.Error == nil || resp.Error.Code != codeRateLimited {
		t.Fatalf("expected rate limit, got %d %+v", status, resp)
	}
}

func TestHealthz(t *testing.T) {
	_, ts, _ := newTestServer(t)
	resp, err := http.Get(fmt.Sprintf("%s/healthz", ts.URL))
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
