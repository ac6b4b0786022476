package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/group-study/internal/auth"
	"github.com/sakif/group-study/internal/handler"
	"github.com/sakif/group-study/internal/repository/sqlite"
	"github.com/sakif/group-study/internal/service"
)

const testSecret = "handler-test-secret-0123456789"

type testAPI struct {
	router http.Handler
	tokens *auth.TokenService
}

// newTestAPI wires real services over an in-memory database behind a bare
// chi router, so URL params and the session guard behave as in production.
func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService(testSecret, 0)
	require.NoError(t, err)

	assignments := handler.NewAssignmentHandler(
		service.NewAssignmentService(db.Assignments(), service.AssignmentOptions{}, logger), logger)
	submissions := handler.NewSubmissionHandler(
		service.NewSubmissionService(db.Submissions(), logger), logger)
	sessions := handler.NewAuthHandler(
		service.NewSessionService(tokens, logger), nil, handler.CookieOptions{Secure: true}, "", logger)

	r := chi.NewRouter()
	r.Get("/", handler.HandleHealth)
	r.Get("/assignments", assignments.HandleList)
	r.Get("/assignments/{id}", assignments.HandleGet)
	r.Post("/user/create-assignment", assignments.HandleCreate)
	r.Put("/user/update-assignment/{id}", assignments.HandleUpdate)
	r.Delete("/user/delete-assignment/{id}", assignments.HandleDelete)
	r.Post("/user/submitted_assignment", submissions.HandleCreate)
	r.Put("/user/submitted-assignment/{id}", submissions.HandleGrade)
	r.Post("/jwt", sessions.HandleIssue)
	r.Post("/logout", sessions.HandleLogout)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(tokens, logger))
		r.Get("/user/submitted-assignments", submissions.HandleList)
		r.Get("/user/my-assignments", submissions.HandleListMine)
		r.Get("/user/submitted-assignment/{id}", submissions.HandleGet)
	})

	return &testAPI{router: r, tokens: tokens}
}

func (a *testAPI) do(t *testing.T, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func (a *testAPI) session(t *testing.T, identity string) *http.Cookie {
	t.Helper()
	token, err := a.tokens.Issue(identity)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "body: %s", rr.Body.String())
	return body
}

func createAssignment(t *testing.T, api *testAPI, body string) string {
	t.Helper()
	rr := api.do(t, http.MethodPost, "/user/create-assignment", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	id, _ := decodeBody(t, rr)["insertedId"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "server is running...", rr.Body.String())
}

func TestAssignmentHandlers_CreateAndGet(t *testing.T) {
	api := newTestAPI(t)
	id := createAssignment(t, api, `{"email":"x@y.com","difficulty":"easy","title":"Graphs","marks":50}`)

	rr := api.do(t, http.MethodGet, "/assignments/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Equal(t, id, body["_id"])
	assert.Equal(t, "x@y.com", body["email"])
	assert.Equal(t, "Graphs", body["title"])
	assert.Equal(t, float64(50), body["marks"])
}

func TestAssignmentHandlers_GetMissing(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/assignments/nope", "")

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", decodeBody(t, rr)["error"])
}

func TestAssignmentHandlers_List(t *testing.T) {
	api := newTestAPI(t)
	for _, d := range []string{"easy", "hard", "easy"} {
		createAssignment(t, api, `{"email":"x@y.com","difficulty":"`+d+`"}`)
	}

	rr := api.do(t, http.MethodGet, "/assignments?page=1&limit=10&difficulty=easy", "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decodeBody(t, rr)
	assert.Len(t, body["items"], 2)
	assert.Equal(t, float64(3), body["totalCount"], "totalCount counts the whole collection")
}

func TestAssignmentHandlers_ListBadQuery(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name  string
		query string
		field string
	}{
		{"page zero", "page=0&limit=10", "page"},
		{"negative limit", "page=1&limit=-1", "limit"},
		{"non-numeric page", "page=abc", "page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, http.MethodGet, "/assignments?"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)

			body := decodeBody(t, rr)
			assert.Equal(t, "invalid_argument", body["error"])
			fields, _ := body["fields"].([]any)
			if tt.name != "non-numeric page" {
				require.Len(t, fields, 1)
				assert.Equal(t, tt.field, fields[0].(map[string]any)["field"])
			}
		})
	}
}

func TestAssignmentHandlers_UpdateOwnership(t *testing.T) {
	api := newTestAPI(t)
	id := createAssignment(t, api, `{"email":"x@y.com","title":"Graphs"}`)

	rr := api.do(t, http.MethodPut, "/user/update-assignment/"+id+"?email=z@y.com", `{"title":"Hijacked"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "unauthorized", body["error"])
	assert.Equal(t, "You are not authorized to update this assignment", body["message"])

	rr = api.do(t, http.MethodPut, "/user/update-assignment/"+id+"?email=x@y.com", `{"title":"Trees","email":"z@y.com"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, float64(1), decodeBody(t, rr)["matchedCount"])

	got := decodeBody(t, api.do(t, http.MethodGet, "/assignments/"+id, ""))
	assert.Equal(t, "Trees", got["title"])
	assert.Equal(t, "x@y.com", got["email"], "owner never changes")
}

func TestAssignmentHandlers_UpdateInvalidBody(t *testing.T) {
	api := newTestAPI(t)
	id := createAssignment(t, api, `{"email":"x@y.com"}`)

	rr := api.do(t, http.MethodPut, "/user/update-assignment/"+id+"?email=x@y.com", `["not","an","object"]`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_argument", decodeBody(t, rr)["error"])
}

func TestAssignmentHandlers_NonStringDifficulty(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/user/create-assignment", `{"email":"x@y.com","difficulty":5}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "invalid_argument", body["error"])
	assert.Equal(t, "difficulty must be a string", body["message"])

	id := createAssignment(t, api, `{"email":"x@y.com","difficulty":"hard"}`)
	rr = api.do(t, http.MethodPut, "/user/update-assignment/"+id+"?email=x@y.com", `{"difficulty":{"level":"easy"}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodPut, "/user/update-assignment/"+id+"?email=x@y.com", `{"difficulty":null}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decodeBody(t, api.do(t, http.MethodGet, "/assignments/"+id, ""))
	assert.Equal(t, "", got["difficulty"], "null clears the difficulty")
}

func TestAssignmentHandlers_Delete(t *testing.T) {
	api := newTestAPI(t)
	id := createAssignment(t, api, `{"email":"x@y.com"}`)

	rr := api.do(t, http.MethodDelete, "/user/delete-assignment/"+id+"?email=z@y.com", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "You are not authorized to delete this assignment", decodeBody(t, rr)["message"])

	rr = api.do(t, http.MethodDelete, "/user/delete-assignment/"+id+"?email=x@y.com", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), decodeBody(t, rr)["deletedCount"])

	rr = api.do(t, http.MethodDelete, "/user/delete-assignment/"+id+"?email=x@y.com", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSubmissionHandlers_SessionGuard(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/user/submitted-assignments", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthenticated", decodeBody(t, rr)["error"])

	rr = api.do(t, http.MethodGet, "/user/submitted-assignments", "", api.session(t, "a@b.com"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestSubmissionHandlers_ListMine(t *testing.T) {
	api := newTestAPI(t)
	for _, who := range []string{"a@b.com", "c@d.com", "a@b.com"} {
		rr := api.do(t, http.MethodPost, "/user/submitted_assignment", `{"userEmail":"`+who+`","status":"pending"}`)
		require.Equal(t, http.StatusOK, rr.Code)
	}
	cookie := api.session(t, "a@b.com")

	rr := api.do(t, http.MethodGet, "/user/my-assignments?email=a@b.com", "", cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	var mine []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &mine))
	assert.Len(t, mine, 2)

	rr = api.do(t, http.MethodGet, "/user/my-assignments?email=c@d.com", "", cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "forbidden", decodeBody(t, rr)["error"])
}

func TestSubmissionHandlers_Grade(t *testing.T) {
	api := newTestAPI(t)
	rr := api.do(t, http.MethodPost, "/user/submitted_assignment", `{"userEmail":"a@b.com","status":"pending","pdf":"x.pdf"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	id := decodeBody(t, rr)["insertedId"].(string)

	rr = api.do(t, http.MethodPut, "/user/submitted-assignment/"+id,
		`{"obtainMarks":90,"feedback":"ok","status":"graded","userEmail":"evil@x.com","extraneousField":"x"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = api.do(t, http.MethodGet, "/user/submitted-assignment/"+id, "", api.session(t, "a@b.com"))
	require.Equal(t, http.StatusOK, rr.Code)
	got := decodeBody(t, rr)
	assert.Equal(t, float64(90), got["obtainMarks"])
	assert.Equal(t, "graded", got["status"])
	assert.Equal(t, "a@b.com", got["userEmail"])
	assert.Equal(t, "x.pdf", got["pdf"])
	assert.NotContains(t, got, "extraneousField")
}

func TestSubmissionHandlers_GradeNegativeMarks(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPut, "/user/submitted-assignment/s1", `{"obtainMarks":-5}`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_argument", decodeBody(t, rr)["error"])
}

func TestAuthHandlers_IssueAndLogout(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/jwt", `{"email":"x@y.com","name":"X"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"success":true}`, rr.Body.String())

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, auth.CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
	assert.Equal(t, int(auth.DefaultTokenTTL.Seconds()), c.MaxAge)

	identity, err := api.tokens.Verify(c.Value)
	require.NoError(t, err)
	assert.Equal(t, "x@y.com", identity)

	rr = api.do(t, http.MethodPost, "/logout", "")
	require.Equal(t, http.StatusOK, rr.Code)
	cleared := rr.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
	assert.True(t, cleared[0].MaxAge < 0)
}

func TestAuthHandlers_IssueRejectsBadBody(t *testing.T) {
	api := newTestAPI(t)

	for _, body := range []string{`{}`, `{"email":"  "}`, `not json`, strings.Repeat(" ", 3)} {
		rr := api.do(t, http.MethodPost, "/jwt", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, "body %q", body)
		assert.Empty(t, rr.Result().Cookies(), "no cookie for body %q", body)
	}
}
