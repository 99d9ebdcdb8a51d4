package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/authhub/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(rec *httptest.ResponseRecorder) *gin.Context {
	ctx, _ := gin.CreateTestContext(rec)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return ctx
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := newTestContext(rec)

	Success(ctx, http.StatusCreated, "User registered successfully", gin.H{"id": "abc"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !resp.Success {
		t.Fatal("expected success flag to be true")
	}
	if resp.Message != "User registered successfully" {
		t.Fatalf("unexpected message: %q", resp.Message)
	}
	if resp.Error != nil {
		t.Fatal("expected no error information")
	}
}

func TestSuccessOmitsEmptyData(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := newTestContext(rec)

	Success(ctx, http.StatusOK, "Logout successfully", nil)

	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if _, ok := raw["data"]; ok {
		t.Fatal("expected data to be omitted")
	}
}

func TestFailureKeepsData(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := newTestContext(rec)

	Failure(ctx, appErrors.ErrInvalidOTP, gin.H{"isValid": false})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}

	var resp struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    map[string]bool `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Success || resp.Message != "Invalid OTP" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
	if valid, ok := resp.Data["isValid"]; !ok || valid {
		t.Fatal("expected isValid=false in data")
	}
}

func TestErrorWithAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := newTestContext(rec)

	Error(ctx, appErrors.ErrForbidden)

	if rec.Code != appErrors.ErrForbidden.StatusCode {
		t.Fatalf("expected status %d got %d", appErrors.ErrForbidden.StatusCode, rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Success {
		t.Fatal("expected success to be false")
	}
	if resp.Error == nil || resp.Error.Code != appErrors.ErrForbidden.Code {
		t.Fatal("expected forbidden error code in response")
	}
	if resp.Message != appErrors.ErrForbidden.Message {
		t.Fatalf("expected message to mirror error, got %q", resp.Message)
	}
}

func TestErrorWithGenericError(t *testing.T) {
	rec := httptest.NewRecorder()
	ctx := newTestContext(rec)

	Error(ctx, errors.New("dial tcp 10.0.0.1:5432: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d got %d", http.StatusInternalServerError, rec.Code)
	}

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Message != appErrors.ErrInternalServer.Message {
		t.Fatalf("expected generic message, got %q", resp.Message)
	}
}
