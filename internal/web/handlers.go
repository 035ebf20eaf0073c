// Package web is the HTTP surface that triggers export and import runs.
// It is glue around the pipelines: upload handling, option overrides from
// query parameters, and report rendering.
package web

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"xmlport/internal/auth"
	"xmlport/internal/config"
	"xmlport/internal/export"
	"xmlport/internal/importer"
	"xmlport/internal/schema"
	"xmlport/internal/store"
)

// Handler serves the transcoding endpoints.
type Handler struct {
	store *store.Store
	cfg   *config.Config
	hooks *importer.Hooks
	log   zerolog.Logger
}

func NewHandler(s *store.Store, cfg *config.Config, hooks *importer.Hooks, log zerolog.Logger) *Handler {
	return &Handler{store: s, cfg: cfg, hooks: hooks, log: log.With().Str("component", "web").Logger()}
}

// RegisterRoutes mounts the public login route and the protected
// transcoding routes.
func RegisterRoutes(app *fiber.App, h *Handler, authMW fiber.Handler) {
	app.Post("/api/login", h.Login)
	app.Post("/api/import", authMW, h.Import)
	app.Get("/api/export/:kind", authMW, h.Export)
}

// Login handles POST /api/login, verifying credentials against the users
// table and issuing an access token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	row, err := h.store.QueryRows(c.Context(),
		"SELECT id, password, block FROM users WHERE username = $1", req.Username)
	if err != nil {
		return err
	}
	if len(row) == 0 || !auth.CheckPassword(req.Password, asString(row[0]["password"])) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")
	}
	// SQLite stores booleans as integers, so check both forms.
	if blocked, _ := row[0]["block"].(bool); blocked || store.ToID(row[0]["block"]) != 0 {
		return fiber.NewError(fiber.StatusForbidden, "account blocked")
	}

	userID := store.ToID(row[0]["id"])

	// Touch lastvisitDate; a failure here never blocks the login.
	if _, err := h.store.Exec(c.Context(),
		"UPDATE users SET lastvisitDate = "+h.store.Dialect.NowExpr()+" WHERE id = $1", userID); err != nil {
		h.log.Warn().Err(err).Int64("user_id", userID).Msg("lastvisitDate update failed")
	}

	token, err := auth.GenerateAccessToken(userID, req.Username, h.cfg.JWTSecret)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"access_token": token})
}

// Import handles POST /api/import. The document arrives either as a
// multipart upload under "file" or as the raw request body, optionally
// gzip-compressed. Per-kind modes from the configured defaults can be
// overridden by query parameters.
func (h *Handler) Import(c *fiber.Ctx) error {
	data, err := importPayload(c)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty import payload")
	}

	rc := &importer.RunContext{
		UserID:  auth.UserID(c),
		Now:     time.Now(),
		Options: h.options(c),
	}
	im := importer.New(h.store, h.hooks, h.log)
	report, err := im.Run(c.Context(), data, rc)
	if errors.Is(err, importer.ErrFormat) {
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(report)
}

// Export handles GET /api/export/:kind?id=1,2,3 and streams the
// assembled document.
func (h *Handler) Export(c *fiber.Ctx) error {
	kind := c.Params("kind")
	if schema.Get(kind) == nil {
		return fiber.NewError(fiber.StatusNotFound, "unknown entity kind")
	}
	ids, err := parseIDs(c.Query("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id list")
	}
	if len(ids) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "missing id list")
	}

	doc := export.NewDocument()
	ex := export.New(h.store, h.options(c), h.log)
	if err := ex.ExportAll(c.Context(), doc, kind, ids); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="export.xml"`)
	return c.SendString(doc.String())
}

// options merges the configured import defaults with per-request query
// overrides.
func (h *Handler) options(c *fiber.Ctx) config.Options {
	o := h.cfg.Import.Options()
	overrideMode(c, "categories", &o.Categories)
	overrideMode(c, "fields", &o.Fields)
	overrideMode(c, "images", &o.Images)
	overrideMode(c, "tags", &o.Tags)
	overrideMode(c, "users", &o.Users)
	overrideMode(c, "usernotes", &o.Usernotes)
	overrideMode(c, "viewlevels", &o.Viewlevels)
	overrideMode(c, "content", &o.Content)
	if v := c.Query("keep_id"); v != "" {
		o.KeepID = v == "1" || strings.EqualFold(v, "true")
	}
	if v := c.Query("context"); v != "" {
		o.Context = v
	}
	if v := c.Query("extension"); v != "" {
		o.Extension = v
	}
	return o
}

func overrideMode(c *fiber.Ctx, name string, dst *int) {
	v := c.Query(name)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 2 {
		*dst = n
	}
}

func importPayload(c *fiber.Ctx) ([]byte, error) {
	file, err := c.FormFile("file")
	if err != nil {
		// No multipart upload; fall back to the raw body.
		return c.Body(), nil
	}
	f, err := file.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "unreadable upload")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "unreadable upload")
	}
	return data, nil
}

func parseIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
