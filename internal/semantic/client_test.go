package semantic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dcruver/orgkeep/internal/errs"
)

func rpcOK(t *testing.T, result interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	resp := rpcResponse{JSONRPC: "2.0", ID: 1, Result: raw}
	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return out
}

func TestSemanticSearchDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(rpcOK(t, map[string]interface{}{
			"notes": []SearchResult{{File: "a.org", Title: "A", Similarity: 0.9, NodeID: "a-1"}},
		}))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	results, err := c.SemanticSearch(context.Background(), "query", 5, 0.5)
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
	if len(results) != 1 || results[0].NodeID != "a-1" {
		t.Fatalf("results = %+v", results)
	}
}

func TestGenerateEmbeddingsExtractsCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(rpcOK(t, "processed 42 notes"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	count, ack, err := c.GenerateEmbeddings(context.Background(), true)
	if err != nil {
		t.Fatalf("GenerateEmbeddings: %v", err)
	}
	if count != 42 {
		t.Fatalf("count = %d, want 42", count)
	}
	if ack == "" {
		t.Fatalf("expected non-empty ack")
	}
}

func TestCallMapsNonTwoXXToServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.SemanticSearch(context.Background(), "q", 1, 0)
	var svcErr *errs.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *errs.ServiceError, got %v", err)
	}
	if svcErr.Code != 500 {
		t.Fatalf("Code = %d, want 500", svcErr.Code)
	}
}

func TestCallMapsRPCErrorObjectToServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := rpcResponse{JSONRPC: "2.0", ID: 1, Error: &rpcError{Code: -32000, Message: "index missing"}}
		out, _ := json.Marshal(resp)
		w.Write(out)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	_, err := c.SemanticSearch(context.Background(), "q", 1, 0)
	var svcErr *errs.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *errs.ServiceError, got %v", err)
	}
	if svcErr.Message != "index missing" {
		t.Fatalf("Message = %q", svcErr.Message)
	}
}

func TestCallMapsTransportFailureToServiceUnavailable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second)
	_, err := c.SemanticSearch(context.Background(), "q", 1, 0)
	var unavailable *errs.ServiceUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected *errs.ServiceUnavailableError, got %v", err)
	}
}

func TestCallMapsContextDeadlineToServiceTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.Write(rpcOK(t, map[string]interface{}{"notes": []SearchResult{}}))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Millisecond)
	_, err := c.SemanticSearch(context.Background(), "q", 1, 0)
	var timeout *errs.ServiceTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected *errs.ServiceTimeoutError, got %v", err)
	}
}
