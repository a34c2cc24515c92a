// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package secrets resolves credentials for the index backends and the
// audit sink.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/awnumar/memguard"
)

// ErrSecretNotFound is returned when a secret is unset or empty.
var ErrSecretNotFound = errors.New("secret not found")

// SecretBackend resolves secrets by key.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type SecretBackend interface {
	// GetSecret returns the secret for key, or an error wrapping
	// ErrSecretNotFound when it is unset.
	GetSecret(ctx context.Context, key string) (string, error)
}

// =============================================================================
// EnvBackend
// =============================================================================

// EnvBackend reads secrets from environment variables.
//
// # Description
//
// Values are cached for ttl. Cached values are sealed in memguard enclaves:
// they are encrypted at rest in memory and only decrypted into a locked
// buffer for the duration of a lookup. A ttl of zero disables caching.
//
// # Thread Safety
//
// Safe for concurrent use.
type EnvBackend struct {
	mu     sync.RWMutex
	cache  map[string]sealedSecret
	ttl    time.Duration
	getenv func(string) string
	now    func() time.Time
}

type sealedSecret struct {
	// enclave is nil for an empty value.
	enclave   *memguard.Enclave
	fetchedAt time.Time
}

// NewEnvBackend creates an environment backend with the given cache TTL.
func NewEnvBackend(ttl time.Duration) *EnvBackend {
	return &EnvBackend{
		cache:  make(map[string]sealedSecret),
		ttl:    ttl,
		getenv: os.Getenv,
		now:    time.Now,
	}
}

// GetSecret implements SecretBackend.
func (e *EnvBackend) GetSecret(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("retrieving secret %q: %w", key, err)
	}

	now := e.now()

	if e.ttl > 0 {
		e.mu.RLock()
		cached, ok := e.cache[key]
		e.mu.RUnlock()
		if ok && now.Sub(cached.fetchedAt) < e.ttl {
			return unseal(key, cached.enclave)
		}
	}

	value := e.getenv(key)

	if e.ttl > 0 {
		entry := sealedSecret{fetchedAt: now}
		if value != "" {
			// NewEnclave wipes the slice it is given.
			entry.enclave = memguard.NewEnclave([]byte(value))
		}
		e.mu.Lock()
		e.cache[key] = entry
		e.mu.Unlock()
	}

	if value == "" {
		return "", fmt.Errorf("secret %q: %w", key, ErrSecretNotFound)
	}
	return value, nil
}

func unseal(key string, enclave *memguard.Enclave) (string, error) {
	if enclave == nil {
		return "", fmt.Errorf("secret %q: %w", key, ErrSecretNotFound)
	}
	buf, err := enclave.Open()
	if err != nil {
		return "", fmt.Errorf("opening secret %q: %w", key, err)
	}
	defer buf.Destroy()
	// String() aliases the locked buffer; copy before Destroy wipes it.
	return string(buf.Bytes()), nil
}

// =============================================================================
// Helpers
// =============================================================================

// Optional returns the secret for key, or "" when key is empty or the secret
// is unset. Other errors are returned.
func Optional(ctx context.Context, backend SecretBackend, key string) (string, error) {
	if key == "" || backend == nil {
		return "", nil
	}
	v, err := backend.GetSecret(ctx, key)
	if errors.Is(err, ErrSecretNotFound) {
		return "", nil
	}
	return v, err
}

// Static is a fixed in-memory backend for tests and embedded use.
type Static map[string]string

// GetSecret implements SecretBackend.
func (s Static) GetSecret(_ context.Context, key string) (string, error) {
	if v, ok := s[key]; ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("secret %q: %w", key, ErrSecretNotFound)
}
