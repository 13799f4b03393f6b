package tenant

import (
	"context"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/hoistlabs/datagate/internal/apperror"
)

// keyPrefixLen is the number of leading api-key characters stored in clear
// for lookup. The full key is only ever stored as a bcrypt hash.
const keyPrefixLen = 8

// Service defines tenant operations used by the request pipeline.
type Service interface {
	// AuthenticateKey validates a raw api key and returns the owning
	// application with its environments loaded.
	AuthenticateKey(ctx context.Context, rawKey string) (*Application, error)
}

// service implements Service.
type service struct {
	repo Repository
}

// NewService creates a new tenant service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// AuthenticateKey validates a raw api key: prefix lookup, then bcrypt verify
// against the stored hash.
func (s *service) AuthenticateKey(ctx context.Context, rawKey string) (*Application, error) {
	if len(rawKey) < keyPrefixLen {
		return nil, apperror.NewForbidden("invalid api key")
	}

	app, err := s.repo.FindByKeyPrefix(ctx, rawKey[:keyPrefixLen])
	if err != nil {
		return nil, apperror.NewForbidden("invalid api key")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(app.APIKeyHash), []byte(rawKey)); err != nil {
		return nil, apperror.NewForbidden("invalid api key")
	}
	return app, nil
}

// SelectEnvironment picks the environment a request addresses. Order of
// precedence:
//
//  1. an overrideEnvironment query value naming an environment token,
//  2. an Origin header whose first host label is <appSlug>-<envName>
//     (the per-environment app domains, e.g. sparkle-motion-dev.app.hoi.io
//     selecting the "dev" environment),
//  3. the application's default environment.
//
// An override or origin that names no environment falls through to the
// default rather than failing the request.
func SelectEnvironment(app *Application, overrideToken, origin string) *Environment {
	if overrideToken != "" {
		for i := range app.Environments {
			if app.Environments[i].Token == overrideToken {
				return &app.Environments[i]
			}
		}
	}

	if name := environmentNameFromOrigin(app.Slug, origin); name != "" {
		for i := range app.Environments {
			if strings.EqualFold(app.Environments[i].Name, name) {
				return &app.Environments[i]
			}
		}
	}

	return app.DefaultEnvironment()
}

// environmentNameFromOrigin extracts the environment name from an Origin
// header of the form http(s)://<slug>-<envName>.<domain>. Returns "" when
// the origin does not match the application's slug.
func environmentNameFromOrigin(slug, origin string) string {
	if origin == "" || origin == "null" || slug == "" {
		return ""
	}
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	label, _, _ := strings.Cut(u.Hostname(), ".")
	rest, found := strings.CutPrefix(label, slug+"-")
	if !found || rest == "" {
		return ""
	}
	return rest
}
