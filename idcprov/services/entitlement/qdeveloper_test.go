package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"idcprov/idcprov/config"
	"idcprov/idcprov/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.QConfig{
		Endpoint:      srv.URL + "/",
		Region:        "us-east-1",
		SigningName:   "q",
		Target:        "AmazonQDeveloperService.CreateAssignment",
		UserAgent:     "aws-sdk-js/2.1594.0 promise",
		PrincipalType: "USER",
	}, credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""), srv.Client())
	c.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c
}

func TestCreateAssignmentSignedRequest(t *testing.T) {
	var got *http.Request
	var body []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	})

	if err := c.CreateAssignment(context.Background(), "u-123", ""); err != nil {
		t.Fatalf("CreateAssignment: %v", err)
	}

	if got.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", got.Method)
	}
	if got.Header.Get("X-Amz-Target") != "AmazonQDeveloperService.CreateAssignment" {
		t.Errorf("unexpected target %q", got.Header.Get("X-Amz-Target"))
	}
	if got.Header.Get("X-Amz-User-Agent") != "aws-sdk-js/2.1594.0 promise" {
		t.Errorf("unexpected user agent %q", got.Header.Get("X-Amz-User-Agent"))
	}
	if got.Header.Get("Content-Type") != "application/x-amz-json-1.0" {
		t.Errorf("unexpected content type %q", got.Header.Get("Content-Type"))
	}
	auth := got.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20240102/us-east-1/q/aws4_request") {
		t.Errorf("unexpected authorization header %q", auth)
	}
	if got.Header.Get("X-Amz-Date") != "20240102T030405Z" {
		t.Errorf("unexpected date %q", got.Header.Get("X-Amz-Date"))
	}

	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if payload["principalId"] != "u-123" || payload["principalType"] != "USER" {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestCreateAssignmentServiceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"__type":"com.amazon.q#ValidationException","message":"principal not found"}`))
	})

	err := c.CreateAssignment(context.Background(), "u-404", "USER")
	var rerr *types.RemoteCallError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RemoteCallError, got %v", err)
	}
	if rerr.Code != "ValidationException" || rerr.Message != "principal not found" {
		t.Errorf("unexpected code/message %q %q", rerr.Code, rerr.Message)
	}
	if !strings.HasPrefix(rerr.Error(), "HTTP 400 - ") || !strings.Contains(rerr.Error(), "principal not found") {
		t.Errorf("raw error should carry status and body, got %q", rerr.Error())
	}
	if rerr.Operation != "CreateAssignment" {
		t.Errorf("unexpected operation %q", rerr.Operation)
	}
}

func TestCreateAssignmentNonJSONError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("denied"))
	})
	err := c.CreateAssignment(context.Background(), "u-1", "USER")
	if err == nil || err.Error() != "HTTP 403 - denied" {
		t.Errorf("unexpected error %v", err)
	}
}

type failingCreds struct{}

func (failingCreds) Retrieve(context.Context) (aws.Credentials, error) {
	return aws.Credentials{}, errors.New("no credentials")
}

func TestCreateAssignmentCredentialFailure(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	c.credentials = failingCreds{}

	err := c.CreateAssignment(context.Background(), "u-1", "USER")
	if err == nil || !strings.Contains(err.Error(), "no credentials") {
		t.Errorf("expected credentials error, got %v", err)
	}
	if called {
		t.Errorf("request must not be sent without credentials")
	}
}
