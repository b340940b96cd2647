// Kiroku - Anime Journal Engagement and Recommendation Engine
// Copyright 2026 Rin S. (rin-sakamoto)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kiroku-project/kiroku

package auth

import (
	"context"
	"strings"
	"testing"
	"time"
)

const testSecret = "unit-test-secret-at-least-32-chars!!!"

func TestNewJWTManager_RejectsShortSecret(t *testing.T) {
	if _, err := NewJWTManager("short"); err == nil {
		t.Error("NewJWTManager(short secret) error = nil, want error")
	}
	if _, err := NewJWTManager(testSecret); err != nil {
		t.Errorf("NewJWTManager(valid secret) error = %v", err)
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	manager, err := NewJWTManager(testSecret)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}

	token, err := manager.GenerateToken("user-1", "rin", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "user-1" || claims.Handle != "rin" {
		t.Errorf("claims = %+v, want subject user-1 handle rin", claims)
	}
}

func TestJWTManager_ValidateToken_Failures(t *testing.T) {
	manager, err := NewJWTManager(testSecret)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	other, err := NewJWTManager("a-completely-different-32-char-secret!")
	if err != nil {
		t.Fatalf("NewJWTManager(other) error = %v", err)
	}

	expired, err := manager.GenerateToken("user-1", "", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken(expired) error = %v", err)
	}
	foreign, err := other.GenerateToken("user-1", "", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken(foreign) error = %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", foreign},
		{"garbage", "not.a.jwt"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := manager.ValidateToken(tt.token); err == nil {
				t.Error("ValidateToken() error = nil, want error")
			}
		})
	}
}

func TestJWTManager_RejectsMissingSubject(t *testing.T) {
	manager, err := NewJWTManager(testSecret)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	token, err := manager.GenerateToken("", "", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := manager.ValidateToken(token); err == nil ||
		!strings.Contains(err.Error(), "subject") {
		t.Errorf("ValidateToken() error = %v, want missing subject", err)
	}
}

func TestUserIDContext(t *testing.T) {
	ctx := context.Background()
	if got := UserIDFromContext(ctx); got != "" {
		t.Errorf("UserIDFromContext(empty) = %q, want empty", got)
	}
	ctx = ContextWithUserID(ctx, "user-1")
	if got := UserIDFromContext(ctx); got != "user-1" {
		t.Errorf("UserIDFromContext() = %q, want user-1", got)
	}
}
