package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/pantry/internal/auth"
	"github.com/sakif/pantry/internal/handler"
	"github.com/sakif/pantry/internal/model"
	"github.com/sakif/pantry/internal/repository/sqlite"
	"github.com/sakif/pantry/internal/service"
)

// =========================================================================
// TEST FIXTURE
// =========================================================================

// fixture wires the real services over an in-memory database, so handler
// tests exercise the same error mapping production does.
type fixture struct {
	repos   service.Repositories
	tokens  *auth.TokenService
	auth    *handler.AuthHandler
	account *handler.AccountHandler
	entity  *handler.EntityHandler
	admin   *handler.AdminHandler
	catalog *service.CatalogService
	logs    *bytes.Buffer // warnings and errors written by handlers and services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelWarn}))
	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(4)

	repos := service.Repositories{
		Allergies:   db.Allergies(),
		Categories:  db.Categories(),
		Ingredients: db.Ingredients(),
		Recipes:     db.Recipes(),
		Users:       db.Users(),
	}
	authService := service.NewAuthService(repos.Users, tokens, passwords, logger)
	catalog := service.NewCatalogService(repos, passwords, logger)

	return &fixture{
		repos:   repos,
		tokens:  tokens,
		auth:    handler.NewAuthHandler(authService, tokens.TTL(), logger),
		account: handler.NewAccountHandler(service.NewAccountService(repos, logger), logger),
		entity:  handler.NewEntityHandler(catalog, logger),
		admin:   handler.NewAdminHandler(catalog, logger),
		catalog: catalog,
		logs:    logs,
	}
}

// save inserts through the catalog service and returns the new id.
func (f *fixture) save(t *testing.T, kind model.Kind, in service.EntityInput) int64 {
	t.Helper()
	e, _, err := f.catalog.Save(context.Background(), kind, in)
	require.NoError(t, err)
	return e.ID()
}

// kitchen seeds: Gluten, Grains, Flour (Grains, Gluten), Bread (2 cups Flour)
// and a user alice.
type kitchen struct {
	gluten, grains, flour, bread, alice int64
}

func (f *fixture) kitchen(t *testing.T) kitchen {
	t.Helper()
	var k kitchen
	k.gluten = f.save(t, model.KindAllergy, service.EntityInput{Name: "Gluten"})
	k.grains = f.save(t, model.KindIngredientCategory, service.EntityInput{Name: "Grains"})
	k.flour = f.save(t, model.KindIngredient, service.EntityInput{
		Name: "Flour", CategoryID: k.grains, AllergyIDs: []int64{k.gluten},
	})
	k.bread = f.save(t, model.KindRecipe, service.EntityInput{
		Name:         "Bread",
		Instructions: "Knead.",
		Contents:     []service.ContentInput{{IngredientID: k.flour, Amount: 2, Units: "cups"}},
	})
	k.alice = f.save(t, model.KindUser, service.EntityInput{Name: "alice", Password: "pw"})
	return k
}

// =========================================================================
// REQUEST HELPERS
// =========================================================================

// request builds a request with chi URL params and, when userID > 0, an
// authenticated identity, the way the router and RequireAuth would.
func request(method, target, body string, params map[string]string, userID int64, admin bool) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID > 0 {
		ctx = auth.WithIdentity(ctx, auth.Identity{UserID: userID, Admin: admin})
	}
	return req.WithContext(ctx)
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}

func decodeList(t *testing.T, rr *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	return out
}
