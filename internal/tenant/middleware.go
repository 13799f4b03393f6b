package tenant

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hoistlabs/datagate/internal/apperror"
	"github.com/hoistlabs/datagate/internal/session"
)

// Echo context keys for the authenticated tenant state.
const (
	applicationContextKey = "tenant_application"
	environmentContextKey = "tenant_environment"
	scopeContextKey       = "tenant_scope"
	sessionContextKey     = "tenant_session"
)

// authScheme is the credential scheme of the Authorization header.
const authScheme = "Hoist "

// bucketKeyHeader selects a bucket for the request (and, on success, for
// the rest of the session).
const bucketKeyHeader = "x-bucket-key"

// GetApplication retrieves the authenticated application from the request
// context.
func GetApplication(c echo.Context) *Application {
	app, _ := c.Get(applicationContextKey).(*Application)
	return app
}

// GetEnvironment retrieves the selected environment from the request context.
func GetEnvironment(c echo.Context) *Environment {
	env, _ := c.Get(environmentContextKey).(*Environment)
	return env
}

// GetScope retrieves the resolved tenant scope from the request context.
func GetScope(c echo.Context) (Scope, bool) {
	scope, ok := c.Get(scopeContextKey).(Scope)
	return scope, ok
}

// GetSession retrieves the caller's session, when one exists.
func GetSession(c echo.Context) *session.Session {
	sess, _ := c.Get(sessionContextKey).(*session.Session)
	return sess
}

// RequireApplication returns middleware that authenticates the request via
// the `Authorization: Hoist <apiKey>` credential, selects the environment
// (overrideEnvironment query value, then Origin header, then default), loads
// the caller's session, resolves the tenant scope, and applies a successful
// bucket selection back to the session.
//
// Everything downstream of this middleware trusts the application,
// environment, session, and scope values it stores on the context.
func RequireApplication(svc Service, sessions session.Repository, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return apperror.NewUnauthorized("api key required")
			}
			rawKey := strings.TrimPrefix(authHeader, authScheme)
			if rawKey == authHeader || rawKey == "" {
				return apperror.NewUnauthorized("invalid authorization format, use: Hoist <key>")
			}

			app, err := svc.AuthenticateKey(ctx, rawKey)
			if err != nil {
				return err
			}

			env := SelectEnvironment(app,
				c.QueryParam("overrideEnvironment"),
				c.Request().Header.Get("Origin"),
			)
			if env == nil {
				return apperror.NewInternal(errors.New("application has no environments"))
			}

			sess := loadSession(c, sessions, cookieName, app.ID)
			if sess == nil {
				sess = establishSession(c, sessions, cookieName, app.ID)
			}

			resolution := ResolveScope(env, sess, c.Request().Header.Get(bucketKeyHeader))

			// Apply the persist-bucket effect the resolver asked for. A
			// failed save only loses the stickiness of the selection, not
			// the request's scope, so it is logged rather than fatal.
			if resolution.PersistBucket != nil && sess != nil {
				sess.BucketKey = resolution.PersistBucket.Key
				if err := sessions.Save(ctx, sess); err != nil {
					slog.Error("persisting bucket selection",
						slog.String("session_id", sess.ID),
						slog.Any("error", err),
					)
				}
			}

			c.Set(applicationContextKey, app)
			c.Set(environmentContextKey, env)
			c.Set(sessionContextKey, sess)
			c.Set(scopeContextKey, resolution.Scope)

			return next(c)
		}
	}
}

// loadSession loads the caller's session from the session cookie. A missing
// cookie, an unknown session, or a session belonging to a different
// application all resolve to no session.
func loadSession(c echo.Context, sessions session.Repository, cookieName, applicationID string) *session.Session {
	cookie, err := c.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	sess, err := sessions.Find(c.Request().Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			slog.Warn("loading session", slog.Any("error", err))
		}
		return nil
	}

	// A session minted for another application must never leak bucket
	// state across tenants.
	if sess.ApplicationID != applicationID {
		return nil
	}
	return sess
}

// establishSession mints a fresh session for the application and sets the
// session cookie. When the save fails the request proceeds without a
// session; only bucket stickiness is lost.
func establishSession(c echo.Context, sessions session.Repository, cookieName, applicationID string) *session.Session {
	sess := session.New(applicationID)
	if err := sessions.Save(c.Request().Context(), sess); err != nil {
		slog.Error("establishing session", slog.Any("error", err))
		return nil
	}

	c.SetCookie(&http.Cookie{
		Name:     cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteNoneMode,
		Secure:   true,
	})
	return sess
}
