package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/synchub/backend/internal/domain/connector"
)

// maxResponseSize is the maximum allowed response size from the Odoo API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// jsonRPCRequest is the JSON-RPC 2.0 envelope Odoo expects on /jsonrpc
type jsonRPCRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
	ID      int64          `json:"id"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRPCError   `json:"error"`
}

// call performs one JSON-RPC request against the connection's /jsonrpc
// endpoint and decodes the result into out.
func (a *Adapter) call(ctx context.Context, conn connector.ConnectionInfo, service, method string, args []any, out any) error {
	payload := jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params: map[string]any{
			"service": service,
			"method":  method,
			"args":    args,
		},
		ID: atomic.AddInt64(&a.requestID, 1),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("odoo: failed to encode request: %w", err)
	}

	endpoint := strings.TrimRight(conn.BaseURL, "/") + "/jsonrpc"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("odoo: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", connector.ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("odoo: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP 429", connector.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", connector.ErrAuthExpired, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: HTTP %d", connector.ErrFetchFailed, resp.StatusCode)
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("odoo: malformed response: %w", err)
	}
	if rpcResp.Error != nil {
		return classifyRPCError(rpcResp.Error)
	}
	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("odoo: unexpected result shape: %w", err)
		}
	}
	return nil
}

// classifyRPCError maps Odoo server faults onto the adapter sentinels.
// Odoo reports authentication problems as AccessDenied/AccessError faults
// inside an HTTP 200 response.
func classifyRPCError(rpcErr *jsonRPCError) error {
	name := rpcErr.Data.Name
	msg := rpcErr.Data.Message
	if msg == "" {
		msg = rpcErr.Message
	}
	if strings.Contains(name, "AccessDenied") || strings.Contains(name, "AccessError") ||
		strings.Contains(msg, "Access Denied") {
		return fmt.Errorf("%w: %s", connector.ErrAuthExpired, msg)
	}
	return fmt.Errorf("%w: %s", connector.ErrFetchFailed, msg)
}

// executeKw invokes model methods through the object service. uid is the
// authenticated user id, args the positional arguments and kwargs the
// keyword arguments of the model method.
func (a *Adapter) executeKw(ctx context.Context, conn connector.ConnectionInfo, uid int, model, method string, args []any, kwargs map[string]any, out any) error {
	creds := conn.Credentials
	callArgs := []any{
		creds["database"],
		uid,
		creds["api_key"],
		model,
		method,
		args,
	}
	if kwargs != nil {
		callArgs = append(callArgs, kwargs)
	}
	return a.call(ctx, conn, "object", "execute_kw", callArgs, out)
}

// authenticate resolves the numeric uid for the configured user. Odoo
// returns false (not an error) when the credentials are rejected.
func (a *Adapter) authenticate(ctx context.Context, conn connector.ConnectionInfo) (int, error) {
	creds := conn.Credentials
	var result json.RawMessage
	err := a.call(ctx, conn, "common", "authenticate", []any{
		creds["database"],
		creds["username"],
		creds["api_key"],
		map[string]any{},
	}, &result)
	if err != nil {
		return 0, err
	}

	var uid int
	if err := json.Unmarshal(result, &uid); err != nil || uid <= 0 {
		return 0, fmt.Errorf("%w: credentials rejected by server", connector.ErrAuthExpired)
	}
	return uid, nil
}

// odooTimeLayout is the naive UTC format Odoo uses for datetime fields
const odooTimeLayout = "2006-01-02 15:04:05"

func parseOdooTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(odooTimeLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
