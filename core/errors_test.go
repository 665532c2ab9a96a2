package core

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestIsTerminalRefreshError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline exceeded stays transient", err: context.DeadlineExceeded, want: false},
		{name: "cancellation stays transient", err: context.Canceled, want: false},
		{
			name: "token expired code",
			err:  goerrors.New("expired", goerrors.CategoryExternal).WithTextCode("TOKEN_EXPIRED"),
			want: true,
		},
		{
			name: "auth category",
			err:  goerrors.New("grant rejected", goerrors.CategoryAuth),
			want: true,
		},
		{
			name: "external category stays transient",
			err:  goerrors.New("gateway timeout", goerrors.CategoryExternal),
			want: false,
		},
		{
			name: "explicit transient code wins over category",
			err:  goerrors.New("throttled", goerrors.CategoryAuth).WithTextCode(ErrorCodeRefreshTransient),
			want: false,
		},
		{name: "invalid_grant body", err: fmt.Errorf(`oauth error: {"error":"invalid_grant"}`), want: true},
		{name: "invalid refresh token text", err: fmt.Errorf("invalid refresh token"), want: true},
		{name: "plain upstream error", err: fmt.Errorf("connection reset by peer"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTerminalRefreshError(tc.err); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestIntegrationErrorMapper(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCode     int
		wantTextCode string
	}{
		{
			name:         "provider not registered",
			err:          fmt.Errorf("core: provider not registered: github"),
			wantCode:     http.StatusNotFound,
			wantTextCode: ErrorCodeProviderNotFound,
		},
		{
			name:         "refresh lock held",
			err:          fmt.Errorf("core: refresh lock already held for provider %q", "github"),
			wantCode:     http.StatusConflict,
			wantTextCode: ErrorCodeRefreshLocked,
		},
		{
			name:         "missing input",
			err:          fmt.Errorf("core: provider id is required"),
			wantCode:     http.StatusBadRequest,
			wantTextCode: ErrorCodeBadInput,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mapped := integrationErrorMapper(tc.err)
			if mapped == nil {
				t.Fatal("expected a mapped error")
			}
			if mapped.Code != tc.wantCode {
				t.Fatalf("expected code %d, got %d", tc.wantCode, mapped.Code)
			}
			if mapped.TextCode != tc.wantTextCode {
				t.Fatalf("expected text code %s, got %s", tc.wantTextCode, mapped.TextCode)
			}
		})
	}
}

func TestIntegrationErrorMapper_PreservesRichErrors(t *testing.T) {
	original := goerrors.New("credential already active", goerrors.CategoryConflict).
		WithTextCode(ErrorCodeAlreadyActive)

	mapped := integrationErrorMapper(original)
	if mapped.TextCode != ErrorCodeAlreadyActive {
		t.Fatalf("expected text code preserved, got %s", mapped.TextCode)
	}
	if mapped.Code != http.StatusConflict {
		t.Fatalf("expected conflict status filled in, got %d", mapped.Code)
	}
}

func TestHasErrorCode(t *testing.T) {
	err := errAuthInFlight("github")
	if !HasErrorCode(err, ErrorCodeAlreadyActive) {
		t.Fatal("expected already-active code for an in-flight attempt")
	}
	if HasErrorCode(err, ErrorCodeNotAuthenticated) {
		t.Fatal("expected mismatched code to report false")
	}
	if HasErrorCode(fmt.Errorf("plain"), ErrorCodeAlreadyActive) {
		t.Fatal("expected plain error to report false")
	}
}
