package auth

import (
	"errors"
	"net/http/httptest"
	"testing"

	"easel/internal/testutil/testlog"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty stored token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFuncValidator(t *testing.T) {
	testlog.Start(t)
	validator := FuncValidator(func(token string) error {
		if token != "ok" {
			return ErrUnauthorized
		}
		return nil
	})

	if err := validator.Validate("bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad token, got %v", err)
	}
	if err := validator.Validate("ok"); err != nil {
		t.Fatalf("expected success for ok token, got %v", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name   string
		header map[string]string
		query  string
		want   string
	}{
		{name: "bearer header", header: map[string]string{"Authorization": "Bearer s3cr3t"}, want: "s3cr3t"},
		{name: "custom header", header: map[string]string{"X-Easel-Token": "tok"}, want: "tok"},
		{name: "query fallback", query: "?token=qtok", want: "qtok"},
		{name: "bearer wins over query", header: map[string]string{"Authorization": "Bearer first"}, query: "?token=second", want: "first"},
		{name: "missing", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ws"+tc.query, nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			if got := TokenFromRequest(req); got != tc.want {
				t.Fatalf("expected token %q, got %q", tc.want, got)
			}
		})
	}
}
