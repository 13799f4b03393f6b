package document

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hoistlabs/datagate/internal/apperror"
	"github.com/hoistlabs/datagate/internal/pipeline"
	"github.com/hoistlabs/datagate/internal/tenant"
)

// Handler handles the data routes. Handlers are thin: run the pipeline
// steps in order, call the coordinator, render JSON. No binding or scoping
// logic lives here.
type Handler struct {
	service Service
}

// NewHandler creates a new document handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Ping is the liveness endpoint (GET /ping). It bypasses authentication and
// the request pipeline entirely.
func (h *Handler) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "pong")
}

// Write handles POST and PUT to any model path: parse the path, normalize
// the payload, then hand the candidate list to the coordinator. The
// response mirrors the stored form of the submitted shape.
func (h *Handler) Write(c echo.Context) error {
	scope, ok := tenant.GetScope(c)
	if !ok {
		return apperror.NewInternal(errors.New("tenant scope not resolved"))
	}

	params, err := pipeline.ParsePath(c.Request().URL.Path)
	if err != nil {
		return err
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperror.NewBadRequest("request body could not be read")
	}

	payload, err := pipeline.NormalizePayload(
		c.Request().Method,
		c.Request().Header.Get(echo.HeaderContentType),
		body,
		params,
	)
	if err != nil {
		return err
	}

	result, err := h.service.Write(c.Request().Context(), scope, params, payload, memberValue(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Read handles GET to any model path: a single document when the path
// carries an id, otherwise the collection honoring limit/skip/sort.
func (h *Handler) Read(c echo.Context) error {
	scope, ok := tenant.GetScope(c)
	if !ok {
		return apperror.NewInternal(errors.New("tenant scope not resolved"))
	}

	params, err := pipeline.ParsePath(c.Request().URL.Path)
	if err != nil {
		return err
	}

	opts, err := ParseQueryOptions(
		c.QueryParam("limit"),
		c.QueryParam("skip"),
		c.QueryParam("sort"),
	)
	if err != nil {
		return err
	}

	result, err := h.service.Read(c.Request().Context(), scope, params, opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// Delete handles DELETE to any model path. Deleting a collection and
// deleting a single document are distinct store operations; both report the
// removed count.
func (h *Handler) Delete(c echo.Context) error {
	scope, ok := tenant.GetScope(c)
	if !ok {
		return apperror.NewInternal(errors.New("tenant scope not resolved"))
	}

	params, err := pipeline.ParsePath(c.Request().URL.Path)
	if err != nil {
		return err
	}

	removed, err := h.service.Delete(c.Request().Context(), scope, params)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int64{"removed": removed})
}

// memberValue builds the rule-engine view of the authenticated member: the
// session's member resolved against the selected environment's member list.
// Nil when the session carries no member or the member is no longer listed.
func memberValue(c echo.Context) map[string]any {
	sess := tenant.GetSession(c)
	env := tenant.GetEnvironment(c)
	if !sess.HasMember() || env == nil {
		return nil
	}
	for _, m := range env.Members {
		if m.ID == sess.MemberID {
			return map[string]any{
				"id":    m.ID,
				"name":  m.Name,
				"email": m.Email,
			}
		}
	}
	return nil
}
