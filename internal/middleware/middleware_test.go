package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/classroom-attendance-api/internal/models"
	"github.com/noah-isme/classroom-attendance-api/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func issue(t *testing.T, tokens *service.TokenService, role models.UserRole) (string, string) {
	t.Helper()
	user := &models.User{ID: primitive.NewObjectID(), Role: role}
	token, err := tokens.Issue(user)
	require.NoError(t, err)
	return token, user.ID.Hex()
}

func protectedRouter(tokens *service.TokenService, roles ...models.UserRole) *gin.Engine {
	r := gin.New()
	handlers := []gin.HandlerFunc{JWT(tokens)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		claims, _ := Claims(c)
		c.JSON(http.StatusOK, gin.H{"userId": claims.UserID, "role": claims.Role})
	})
	r.GET("/protected", handlers...)
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestJWTAcceptsRawAndBearerTokens(t *testing.T) {
	tokens := service.NewTokenService(service.TokenConfig{Secret: "secret", Expiry: time.Hour})
	token, userID := issue(t, tokens, models.RoleStudent)
	r := protectedRouter(tokens)

	for _, header := range []string{token, "Bearer " + token, "bearer " + token} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", header)
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, userID, body["userId"])
		assert.Equal(t, "student", body["role"])
	}
}

func TestJWTRejects(t *testing.T) {
	tokens := service.NewTokenService(service.TokenConfig{Secret: "secret", Expiry: time.Hour})
	r := protectedRouter(tokens)

	for name, header := range map[string]string{
		"missing": "",
		"blank":   "   ",
		"garbage": "Bearer abc.def.ghi",
		"bearer":  "Bearer ",
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusUnauthorized, w.Code)
			body := decode(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "Unauthorized, token missing or invalid", body["error"])
		})
	}
}

func TestRequireRoles(t *testing.T) {
	tokens := service.NewTokenService(service.TokenConfig{Secret: "secret", Expiry: time.Hour})
	teacherToken, _ := issue(t, tokens, models.RoleTeacher)
	studentToken, _ := issue(t, tokens, models.RoleStudent)
	r := protectedRouter(tokens, models.RoleTeacher)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", teacherToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", studentToken)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Forbidden, teacher access required", decode(t, w)["error"])
}

func TestRequireRolesWithoutIdentity(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireRoles(models.RoleTeacher), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsMiddlewareLabelsRoutes(t *testing.T) {
	metrics := service.NewMetricsService()
	r := gin.New()
	r.Use(Metrics(metrics))
	r.GET("/class/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/class/a", "/class/b", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, uint64(3), metrics.Snapshot().RequestsTotal)
	out, err := testutil.GatherAndCount(metrics.Registry(), "http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, out)
}

func TestAuditContextPropagatesRequestMeta(t *testing.T) {
	var recorded string
	audit := service.NewAuditService(auditRecorderFunc(func(log *models.AuditLog) { recorded = log.UserAgent }), nil)

	r := gin.New()
	r.Use(AuditContext())
	r.POST("/x", func(c *gin.Context) {
		audit.Record(c.Request.Context(), service.AuditEntry{Action: "X", Resource: "x"})
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(""))
	req.Header.Set("User-Agent", "tester/1.0")
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "tester/1.0", recorded)
}
