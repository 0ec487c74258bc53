package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/civicdesk/grievance-service/internal/api/http/handlers"
	"github.com/civicdesk/grievance-service/internal/auth"
	"github.com/civicdesk/grievance-service/internal/classifier"
	"github.com/civicdesk/grievance-service/internal/config"
	"github.com/civicdesk/grievance-service/internal/domain"
	"github.com/civicdesk/grievance-service/internal/events"
	"github.com/civicdesk/grievance-service/internal/intake"
	"github.com/civicdesk/grievance-service/internal/observability"
	"github.com/civicdesk/grievance-service/internal/repository"
	"github.com/civicdesk/grievance-service/internal/service"
)

type testServer struct {
	app      *fiber.App
	authSvc  *service.AuthService
	engine   *intake.Engine
	registry *intake.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	complaintsRepo := repository.NewMemoryComplaintRepository()
	officialsRepo := repository.NewMemoryOfficialRepository()
	secrets := auth.NewSecretManager(bcrypt.MinCost)
	dispatcher := events.NewInMemoryDispatcher()
	cls := classifier.NewKeywordClassifier(nil)

	gate := service.NewMutationGate(service.GateDependencies{
		ComplaintRepo: complaintsRepo,
		Secrets:       secrets,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
	})
	complaints := service.NewComplaintService(service.ComplaintDependencies{
		ComplaintRepo: complaintsRepo,
		Secrets:       secrets,
		Classifier:    cls,
		Gate:          gate,
		Dispatcher:    dispatcher,
	})
	authSvc := service.NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost}, officialsRepo)
	registry := intake.NewRegistry(intake.NewMemorySessionStore(), time.Hour)
	engine := intake.NewEngine(registry, cls, complaints, intake.DefaultRules(), metrics, logger)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("grievance-service", "test", nil),
		Complaints:     handlers.NewComplaintsHandler(complaints, gate),
		Chat:           handlers.NewChatHandler(engine, logger),
		Officials:      handlers.NewOfficialsHandler(authSvc, complaints),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), officialsRepo),
		Metrics:        metrics,
	})
	return &testServer{app: app, authSvc: authSvc, engine: engine, registry: registry}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

func (s *testServer) file(t *testing.T) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/complaints", map[string]any{
		"name":        "Asha",
		"contact":     "asha@example.com",
		"title":       "Garbage not collected",
		"description": "Garbage has not been collected from our street for five days and it stinks",
		"location":    "Ward 4, Lake Road",
		"secret":      "mysecret",
	})
	require.Equal(t, http.StatusCreated, status, body)
	publicID, _ := data(body)["public_id"].(string)
	require.NotEmpty(t, publicID)
	return publicID
}

func TestComplaintRoutes_FileAndTrack(t *testing.T) {
	s := newTestServer(t)
	publicID := s.file(t)

	status, body := s.do(t, http.MethodGet, "/complaints/"+strings.ToLower(publicID), nil)
	require.Equal(t, http.StatusOK, status)
	d := data(body)
	assert.Equal(t, publicID, d["public_id"])
	assert.Equal(t, "sanitation", d["category"])
	assert.Equal(t, "submitted", d["status"])
	assert.NotContains(t, d, "secret_hash")
	assert.NotContains(t, d, "submitter_contact")

	status, body = s.do(t, http.MethodGet, "/complaints/CMP-FFFFFFFF", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestComplaintRoutes_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodPost, "/complaints", map[string]any{
		"title":       "x",
		"description": "y",
		"location":    "z",
		"secret":      "abc",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, _ = s.do(t, http.MethodPost, "/complaints", map[string]any{
		"title":       "   ",
		"description": "something meaningful here",
		"location":    "z",
		"secret":      "abcdef",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestComplaintRoutes_SecretGate(t *testing.T) {
	s := newTestServer(t)
	publicID := s.file(t)
	base := "/complaints/" + publicID

	status, body := s.do(t, http.MethodPost, base+"/authorize", map[string]any{"secret": "wrong!"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AUTH_FAILED", errorCode(body))

	status, _ = s.do(t, http.MethodPost, "/complaints/CMP-FFFFFFFF/authorize", map[string]any{"secret": "mysecret"})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodPost, base+"/authorize", map[string]any{"secret": "mysecret"})
	assert.Equal(t, http.StatusOK, status)

	status, body = s.do(t, http.MethodPatch, base, map[string]any{"secret": "mysecret", "location": "Ward 4, Lake Road, near temple"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Ward 4, Lake Road, near temple", data(body)["location"])

	status, _ = s.do(t, http.MethodPost, base+"/updates", map[string]any{"secret": "mysecret", "status": "closed"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodPost, base+"/withdraw", map[string]any{"secret": "mysecret"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "rejected", data(body)["status"])

	status, body = s.do(t, http.MethodPost, base+"/updates", map[string]any{"secret": "mysecret", "status": "in-progress", "message": "please reopen"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "COMPLAINT_CLOSED", errorCode(body))

	status, body = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "rejected", data(body)["status"])
	updates, _ := data(body)["updates"].([]any)
	assert.Len(t, updates, 1)
}

func TestChatRoute(t *testing.T) {
	s := newTestServer(t)
	sender := "sms:+911234567890"

	turns := []string{
		"hello",
		"There is a huge pothole on MG Road near the bus stand, two bikes fell today",
		"MG Road, near bus stand",
		"mysecret",
	}
	var reply string
	for _, text := range turns {
		status, body := s.do(t, http.MethodPost, "/chat/messages", map[string]any{"sender": sender, "text": text})
		require.Equal(t, http.StatusOK, status)
		reply, _ = body["reply"].(string)
		require.NotEmpty(t, reply)
	}
	assert.Contains(t, reply, "CMP-")

	status, _ := s.do(t, http.MethodPost, "/chat/messages", map[string]any{"sender": " ", "text": "hi"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestChatRoute_CannotReachOtherChannelSessions(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	victim := "telegram:42"

	for _, text := range []string{
		"There is a huge pothole on MG Road near the bus stand, two bikes fell today",
		"MG Road, near bus stand",
	} {
		_, err := s.engine.Handle(ctx, victim, text)
		require.NoError(t, err)
	}
	before, err := s.registry.GetOrCreate(ctx, victim)
	require.NoError(t, err)
	require.Equal(t, intake.StateCollectingSecret, before.State)

	status, body := s.do(t, http.MethodPost, "/chat/messages", map[string]any{"sender": victim, "text": "attackerpw"})
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, body["reply"], "CMP-")

	after, err := s.registry.GetOrCreate(ctx, victim)
	require.NoError(t, err)
	assert.Equal(t, intake.StateCollectingSecret, after.State)
	assert.Equal(t, before.Draft, after.Draft)

	reply, err := s.engine.Handle(ctx, victim, "mysecret")
	require.NoError(t, err)
	publicID := regexp.MustCompile(`CMP-[0-9A-F]{8}`).FindString(reply)
	require.NotEmpty(t, publicID)

	status, _ = s.do(t, http.MethodPost, "/complaints/"+publicID+"/authorize", map[string]any{"secret": "attackerpw"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = s.do(t, http.MethodPost, "/complaints/"+publicID+"/authorize", map[string]any{"secret": "mysecret"})
	assert.Equal(t, http.StatusOK, status)
}

func TestWebhookAddress(t *testing.T) {
	assert.Equal(t, "webhook:sms:+911234567890", handlers.WebhookAddress(" sms:+911234567890 "))
	assert.Equal(t, "webhook:telegram:42", handlers.WebhookAddress("telegram:42"))
}

func TestOfficialRoutes(t *testing.T) {
	s := newTestServer(t)
	publicID := s.file(t)
	_, err := s.authSvc.CreateOfficial(context.Background(), "Ravi", "ravi@city.gov", "correct horse", domain.OfficialRoleOfficer)
	require.NoError(t, err)

	status, body := s.do(t, http.MethodGet, "/officials/complaints", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = s.do(t, http.MethodPost, "/auth/officials/login", map[string]any{"email": "ravi@city.gov", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = s.do(t, http.MethodPost, "/auth/officials/login", map[string]any{"email": "ravi@city.gov", "password": "correct horse"})
	require.Equal(t, http.StatusOK, status)
	token, _ := data(body)["access_token"].(string)
	require.NotEmpty(t, token)
	bearer := []string{"Authorization", "Bearer " + token}

	status, body = s.do(t, http.MethodGet, "/officials/complaints?status=submitted&category=Sanitation", nil, bearer...)
	require.Equal(t, http.StatusOK, status)
	items, _ := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "asha@example.com", items[0].(map[string]any)["submitter_contact"])

	status, body = s.do(t, http.MethodPost, "/officials/complaints/"+publicID+"/status", map[string]any{"status": "resolved", "message": "collected"}, bearer...)
	require.Equal(t, http.StatusOK, status, body)

	status, body = s.do(t, http.MethodPost, "/officials/complaints/"+publicID+"/status", map[string]any{"status": "in-progress"}, bearer...)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "COMPLAINT_CLOSED", errorCode(body))
}

func TestOperationalRoutes(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])

	s.file(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "grievance_")

	status, body = s.do(t, http.MethodGet, "/no-such-route", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}
