package rest

import (
	"context"
	"errors"
	"fmt"
)

// TokenStore caches at most one token per service for one session.
type TokenStore interface {
	Token(service string) (string, bool, error)
	SetToken(service, token string) error
	ClearToken(service string) error
}

// LoginFunc obtains a fresh token from the service.
type LoginFunc func(ctx context.Context) (string, error)

// Reauth wires the pieces WithReauth needs.
type Reauth struct {
	Service string
	Store   TokenStore
	Login   LoginFunc
	Logger  Logger
}

// WithReauth runs call with the cached token. If the service rejects it with
// ErrUnauthorized, the token is dropped, Login runs exactly once, the new token
// is cached and call runs exactly once more. A second rejection is returned as
// *AuthError; there is never a third attempt.
//
// call must attach the token it is given after any caller-supplied headers so
// that the token always wins.
func WithReauth[T any](ctx context.Context, ra Reauth, call func(ctx context.Context, token string) (T, error)) (T, error) {
	var zero T
	if ra.Login == nil {
		return zero, fmt.Errorf("%s: reauth requires a login func", ra.Service)
	}
	log := EnsureLogger(ra.Logger)
	store := ra.Store
	if store == nil {
		store = discardStore{}
	}

	token, _, err := store.Token(ra.Service)
	if err != nil {
		log.WarnObj("token store read failed", "token_store_error", map[string]any{
			"service": ra.Service,
			"error":   err.Error(),
		})
		token = ""
	}

	out, err := call(ctx, token)
	if err == nil || !errors.Is(err, ErrUnauthorized) {
		return out, err
	}

	log.InfoObj("token rejected, re-authenticating", "reauth", map[string]any{
		"service":      ra.Service,
		"had_token":    token != "",
		"status_code":  StatusCode(err),
		"first_failed": err.Error(),
	})
	if err := store.ClearToken(ra.Service); err != nil {
		log.WarnObj("token store clear failed", "token_store_error", map[string]any{
			"service": ra.Service,
			"error":   err.Error(),
		})
	}

	fresh, err := ra.Login(ctx)
	if err != nil {
		log.ErrorObj("re-authentication failed", "reauth_error", map[string]any{
			"service": ra.Service,
			"error":   err.Error(),
		})
		return zero, err
	}
	if err := store.SetToken(ra.Service, fresh); err != nil {
		log.WarnObj("token store write failed", "token_store_error", map[string]any{
			"service": ra.Service,
			"error":   err.Error(),
		})
	}

	out, err = call(ctx, fresh)
	if err != nil && errors.Is(err, ErrUnauthorized) {
		if err := store.ClearToken(ra.Service); err != nil {
			log.WarnObj("token store clear failed", "token_store_error", map[string]any{
				"service": ra.Service,
				"error":   err.Error(),
			})
		}
		return zero, &AuthError{
			Service:    ra.Service,
			Reason:     "token rejected after re-authentication",
			StatusCode: StatusCode(err),
			Err:        err,
		}
	}
	return out, err
}

type discardStore struct{}

func (discardStore) Token(string) (string, bool, error) { return "", false, nil }
func (discardStore) SetToken(string, string) error      { return nil }
func (discardStore) ClearToken(string) error            { return nil }
