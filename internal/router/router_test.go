package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/classroom-attendance-api/internal/handler"
	"github.com/noah-isme/classroom-attendance-api/internal/repository"
	"github.com/noah-isme/classroom-attendance-api/internal/service"
)

type testServer struct {
	engine *gin.Engine
	store  *memStore
	redis  *miniredis.Miniredis
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newMemStore()
	users, classes, records := memUsers{store}, memClasses{store}, memAttendances{store}

	metrics := service.NewMetricsService()
	tokens := service.NewTokenService(service.TokenConfig{Secret: "test-secret", Expiry: time.Hour})
	cache := service.NewCacheService(repository.NewCacheRepository(client), metrics, time.Minute, nil, true)
	audit := service.NewAuditService(nil, nil)
	access := service.NewClassAccess(classes)

	engine := New(Deps{
		Tokens:     tokens,
		Auth:       service.NewAuthService(users, tokens, cache, audit, nil, nil),
		Classes:    service.NewClassService(classes, users, access, cache, audit, nil, nil, time.Minute),
		Attendance: service.NewAttendanceService(repository.NewSessionRepository(client), records, users, access, nil, metrics, audit, nil, nil, time.Hour),
		Metrics:    metrics,
		Dependencies: map[string]handler.Pinger{
			"redis": handler.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() }),
		},
	})
	return &testServer{engine: engine, store: store, redis: mr}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, apiResponse) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var res apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	}
	return w.Code, res
}

func (s *testServer) signupAndLogin(t *testing.T, name, email, role string) (id, token string) {
	t.Helper()
	code, res := s.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": "secret1", "role": role,
	})
	require.Equal(t, http.StatusCreated, code, res.Error)
	var user struct {
		ID string `json:"_id"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &user))

	code, res = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "secret1"})
	require.Equal(t, http.StatusOK, code, res.Error)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &login))
	return user.ID, login.Token
}

func TestTeacherStudentScenario(t *testing.T) {
	s := newTestServer(t)

	teacherID, teacherToken := s.signupAndLogin(t, "Tia", "tia@example.com", "teacher")
	studentID, studentToken := s.signupAndLogin(t, "Sam", "sam@example.com", "student")

	code, res := s.do(t, http.MethodPost, "/class", teacherToken, map[string]string{"className": "Math"})
	require.Equal(t, http.StatusCreated, code, res.Error)
	var class struct {
		ID         string   `json:"_id"`
		TeacherID  string   `json:"teacherId"`
		StudentIDs []string `json:"studentIds"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &class))
	assert.Equal(t, teacherID, class.TeacherID)
	assert.NotNil(t, class.StudentIDs)
	assert.Empty(t, class.StudentIDs)

	code, res = s.do(t, http.MethodPost, "/class/"+class.ID+"/add-student", studentToken, map[string]string{"studentId": studentID})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Forbidden, teacher access required", res.Error)

	code, res = s.do(t, http.MethodPost, "/class/"+class.ID+"/add-student", "Bearer "+teacherToken, map[string]string{"studentId": studentID})
	require.Equal(t, http.StatusOK, code, res.Error)
	require.NoError(t, json.Unmarshal(res.Data, &class))
	assert.Equal(t, []string{studentID}, class.StudentIDs)

	code, res = s.do(t, http.MethodGet, "/class/"+class.ID, studentToken, nil)
	require.Equal(t, http.StatusOK, code, res.Error)
	var detail struct {
		Students []struct {
			ID    string `json:"_id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"students"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &detail))
	require.Len(t, detail.Students, 1)
	assert.Equal(t, "sam@example.com", detail.Students[0].Email)

	code, res = s.do(t, http.MethodGet, "/class/"+class.ID+"/my-attendance", studentToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"classId":"`+class.ID+`","status":null}`, string(res.Data))

	code, _ = s.do(t, http.MethodPost, "/attendance/start", teacherToken, map[string]string{"classId": class.ID})
	require.Equal(t, http.StatusCreated, code)
	code, res = s.do(t, http.MethodPost, "/attendance/start", teacherToken, map[string]string{"classId": class.ID})
	assert.Equal(t, http.StatusConflict, code)

	code, res = s.do(t, http.MethodPost, "/attendance/mark", teacherToken, map[string]string{
		"classId": class.ID, "studentId": studentID, "status": "present",
	})
	require.Equal(t, http.StatusOK, code, res.Error)

	code, res = s.do(t, http.MethodGet, "/attendance/"+class.ID+"/session", teacherToken, nil)
	require.Equal(t, http.StatusOK, code, res.Error)
	assert.Contains(t, string(res.Data), `"present":1`)

	code, res = s.do(t, http.MethodPost, "/attendance/done", teacherToken, map[string]string{"classId": class.ID})
	require.Equal(t, http.StatusOK, code, res.Error)
	assert.JSONEq(t, `{"classId":"`+class.ID+`","sessionId":`+sessionIDFrom(t, res.Data)+`,"present":1,"absent":0,"total":1}`, string(res.Data))

	code, res = s.do(t, http.MethodGet, "/class/"+class.ID+"/my-attendence", studentToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"classId":"`+class.ID+`","status":"present"}`, string(res.Data))

	req := httptest.NewRequest(http.MethodGet, "/class/"+class.ID+"/attendance/export?format=csv", nil)
	req.Header.Set("Authorization", teacherToken)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attendance-"+class.ID+".csv")
	assert.Contains(t, w.Body.String(), "Sam,sam@example.com,present")
}

func sessionIDFrom(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var body struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	out, err := json.Marshal(body.SessionID)
	require.NoError(t, err)
	return string(out)
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.signupAndLogin(t, "Tia", "tia@example.com", "teacher")

	code, res := s.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"name": "Other", "email": "tia@example.com", "password": "secret1", "role": "student",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Email already exists", res.Error)
	assert.Len(t, s.store.users, 1)
}

func TestLoginFailuresShareOneShape(t *testing.T) {
	s := newTestServer(t)
	s.signupAndLogin(t, "Tia", "tia@example.com", "teacher")

	codeA, a := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "tia@example.com", "password": "wrong-pass"})
	codeB, b := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, codeA)
	assert.Equal(t, codeA, codeB)
	assert.Equal(t, a, b)
}

func TestSchemaViolations(t *testing.T) {
	s := newTestServer(t)

	code, res := s.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid request schema", res.Error)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMeAndUnauthenticated(t *testing.T) {
	s := newTestServer(t)
	id, token := s.signupAndLogin(t, "Sam", "sam@example.com", "student")

	for _, method := range []string{http.MethodPost, http.MethodGet} {
		code, res := s.do(t, method, "/auth/me", token, nil)
		require.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"_id":"`+id+`","name":"Sam","email":"sam@example.com","role":"student"}`, string(res.Data))
	}

	code, res := s.do(t, http.MethodPost, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Unauthorized, token missing or invalid", res.Error)
}

func TestClassVisibility(t *testing.T) {
	s := newTestServer(t)
	_, teacherToken := s.signupAndLogin(t, "Tia", "tia@example.com", "teacher")
	_, otherTeacher := s.signupAndLogin(t, "Tom", "tom@example.com", "teacher")
	_, outsider := s.signupAndLogin(t, "Out", "out@example.com", "student")

	code, res := s.do(t, http.MethodPost, "/class", teacherToken, map[string]string{"className": "Math"})
	require.Equal(t, http.StatusCreated, code)
	var class struct {
		ID string `json:"_id"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &class))

	code, res = s.do(t, http.MethodGet, "/class/"+class.ID, outsider, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Forbidden", res.Error)

	code, _ = s.do(t, http.MethodPost, "/attendance/start", otherTeacher, map[string]string{"classId": class.ID})
	assert.Equal(t, http.StatusForbidden, code)

	missing := primitive.NewObjectID().Hex()
	code, res = s.do(t, http.MethodGet, "/class/"+missing, outsider, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Class not found", res.Error)

	code, _ = s.do(t, http.MethodGet, "/class/not-an-id", outsider, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestStudentsDirectoryIsCachedAndInvalidated(t *testing.T) {
	s := newTestServer(t)
	_, teacherToken := s.signupAndLogin(t, "Tia", "tia@example.com", "teacher")
	_, studentToken := s.signupAndLogin(t, "Sam", "sam@example.com", "student")

	code, res := s.do(t, http.MethodGet, "/students", teacherToken, nil)
	require.Equal(t, http.StatusOK, code)
	var list []map[string]string
	require.NoError(t, json.Unmarshal(res.Data, &list))
	require.Len(t, list, 1)
	assert.True(t, s.redis.Exists(service.StudentsCacheKey))

	s.signupAndLogin(t, "Zoe", "zoe@example.com", "student")
	assert.False(t, s.redis.Exists(service.StudentsCacheKey))

	code, res = s.do(t, http.MethodGet, "/students", teacherToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(res.Data, &list))
	assert.Len(t, list, 2)

	code, _ = s.do(t, http.MethodGet, "/students", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	s.redis.SetError("down")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	s.redis.SetError("")

	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPingFuncPropagatesError(t *testing.T) {
	want := errors.New("boom")
	p := handler.PingFunc(func(context.Context) error { return want })
	assert.ErrorIs(t, p.Ping(context.Background()), want)
}
