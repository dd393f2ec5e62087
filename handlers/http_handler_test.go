package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"linkfeed/auth"
	"linkfeed/errs"
	"linkfeed/events"
	"linkfeed/feed"
	"linkfeed/posts"
	"linkfeed/schemas"
	"linkfeed/storage/inmemory"
	"linkfeed/users"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const userHeader = "System-Design-User-Id"

type apiFixture struct {
	server   *httptest.Server
	verifier *auth.Verifier
	alice    schemas.UserId
	bob      schemas.UserId
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	usersStore := inmemory.NewInMemoryUsersStorage()
	alice, err := usersStore.PutUser(context.Background(), &schemas.User{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)
	bob, err := usersStore.PutUser(context.Background(), &schemas.User{Name: "Bob"})
	require.NoError(t, err)

	postsStore := inmemory.NewInMemoryStorage()
	directory := users.NewDirectory(usersStore, 16, time.Minute)
	handler := NewHTTPHandler(
		posts.NewPostsManager(postsStore, directory, events.Noop{}),
		feed.NewFeedManager(postsStore, directory),
		directory,
	)
	verifier := auth.NewVerifier("test-secret")
	server := httptest.NewServer(NewRouter(handler, RouterOptions{
		Verifier:          verifier,
		TrustedUserHeader: userHeader,
		CORSOrigins:       []string{"*"},
	}))
	t.Cleanup(server.Close)

	return &apiFixture{server: server, verifier: verifier, alice: alice.ID, bob: bob.ID}
}

func (f *apiFixture) do(t *testing.T, method, path string, principal schemas.UserId, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if principal != "" {
		req.Header.Set(userHeader, string(principal))
	}
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (f *apiFixture) createPost(t *testing.T, author schemas.UserId, content string) schemas.PostData {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/posts", author, fmt.Sprintf(`{"content":%q}`, content))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[schemas.PostData](t, resp)
}

func assertError(t *testing.T, resp *http.Response, status int, kind errs.Kind) {
	t.Helper()
	assert.Equal(t, status, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, kind, body.Error)
	assert.NotEmpty(t, body.Message)
}

func TestHealth(t *testing.T) {
	f := newAPI(t)
	resp := f.do(t, http.MethodGet, "/api/health", "", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
	assert.Equal(t, "OK", decode[HealthResponse](t, resp).Status)
}

func TestCreateAndGetPost(t *testing.T) {
	f := newAPI(t)
	created := f.createPost(t, f.alice, "  Hello  ")
	assert.Equal(t, schemas.Text("Hello"), created.Content)
	assert.Equal(t, "Alice", created.Author.Name)

	resp := f.do(t, http.MethodGet, "/api/posts/"+created.ID, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[schemas.PostData](t, resp)
	assert.Equal(t, created.ID, got.ID)
	assert.Zero(t, got.LikeCount)
}

func TestCreateRequiresPrincipal(t *testing.T) {
	f := newAPI(t)

	assertError(t, f.do(t, http.MethodPost, "/api/posts", "", `{"content":"Hello"}`),
		http.StatusUnauthorized, errs.KindAuthRequired)
	assertError(t, f.do(t, http.MethodPost, "/api/posts", f.alice, `{"content":"   "}`),
		http.StatusBadRequest, errs.KindValidation)
	assertError(t, f.do(t, http.MethodPost, "/api/posts", f.alice, `{"content":`),
		http.StatusBadRequest, errs.KindValidation)
}

func TestBearerTokenPrincipal(t *testing.T) {
	f := newAPI(t)
	token, err := f.verifier.Issue(f.bob, time.Minute)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/posts", strings.NewReader(`{"content":"via token"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Bob", decode[schemas.PostData](t, resp).Author.Name)

	expired, err := f.verifier.Issue(f.bob, -time.Minute)
	require.NoError(t, err)
	for _, path := range []string{"/api/posts", "/api/users/" + string(f.alice), "/api/health"} {
		read, err := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
		require.NoError(t, err)
		read.Header.Set("Authorization", "Bearer "+expired)
		readResp, err := f.server.Client().Do(read)
		require.NoError(t, err)
		_ = readResp.Body.Close()
		assert.Equal(t, http.StatusOK, readResp.StatusCode, path)
	}

	bad, err := http.NewRequest(http.MethodPost, f.server.URL+"/api/posts", strings.NewReader(`{"content":"nope"}`))
	require.NoError(t, err)
	bad.Header.Set("Authorization", "Bearer garbage")
	badResp, err := f.server.Client().Do(bad)
	require.NoError(t, err)
	defer badResp.Body.Close()
	assertError(t, badResp, http.StatusUnauthorized, errs.KindAuthRequired)
}

func TestLikeToggle(t *testing.T) {
	f := newAPI(t)
	post := f.createPost(t, f.alice, "Hello")

	resp := f.do(t, http.MethodPut, "/api/posts/"+post.ID+"/like", f.bob, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decode[schemas.PostData](t, resp).LikeCount)

	resp = f.do(t, http.MethodPut, "/api/posts/"+post.ID+"/like", f.bob, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, decode[schemas.PostData](t, resp).LikeCount)

	assertError(t, f.do(t, http.MethodPut, "/api/posts/"+post.ID+"/like", "", ""),
		http.StatusUnauthorized, errs.KindAuthRequired)
	assertError(t, f.do(t, http.MethodPut, "/api/posts/"+schemas.NewPostId().Hex()+"/like", f.bob, ""),
		http.StatusNotFound, errs.KindNotFound)
}

func TestComments(t *testing.T) {
	f := newAPI(t)
	post := f.createPost(t, f.alice, "Hello")

	resp := f.do(t, http.MethodPost, "/api/posts/"+post.ID+"/comments", f.bob, `{"content":"Nice"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	commented := decode[schemas.PostData](t, resp)
	require.Len(t, commented.Comments, 1)
	assert.Equal(t, "Bob", commented.Comments[0].Author.Name)

	long := fmt.Sprintf(`{"content":%q}`, strings.Repeat("x", 501))
	assertError(t, f.do(t, http.MethodPost, "/api/posts/"+post.ID+"/comments", f.bob, long),
		http.StatusBadRequest, errs.KindValidation)
}

func TestOnlyAuthorEditsAndDeletes(t *testing.T) {
	f := newAPI(t)
	post := f.createPost(t, f.alice, "Hello")

	assertError(t, f.do(t, http.MethodPatch, "/api/posts/"+post.ID, f.bob, `{"content":"mine now"}`),
		http.StatusForbidden, errs.KindForbidden)
	assertError(t, f.do(t, http.MethodDelete, "/api/posts/"+post.ID, f.bob, ""),
		http.StatusForbidden, errs.KindForbidden)

	resp := f.do(t, http.MethodPut, "/api/posts/"+post.ID, f.alice, `{"content":"Hello, world"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, schemas.Text("Hello, world"), decode[schemas.PostData](t, resp).Content)

	resp = f.do(t, http.MethodDelete, "/api/posts/"+post.ID, f.alice, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, post.ID, decode[DeletePostResponse](t, resp).ID)

	assertError(t, f.do(t, http.MethodGet, "/api/posts/"+post.ID, "", ""), http.StatusNotFound, errs.KindNotFound)
	assertError(t, f.do(t, http.MethodGet, "/api/posts/not-an-id", "", ""), http.StatusNotFound, errs.KindNotFound)
}

func TestUserPostsPagination(t *testing.T) {
	f := newAPI(t)
	for i := 0; i < 15; i++ {
		f.createPost(t, f.alice, fmt.Sprintf("post %d", i))
	}
	base := "/api/users/" + string(f.alice) + "/posts"

	resp := f.do(t, http.MethodGet, base+"?page=1&limit=10", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[schemas.PostsPageData](t, resp)
	assert.Len(t, first.Items, 10)
	assert.Equal(t, 2, first.TotalPages)
	assert.EqualValues(t, 15, first.TotalCount)

	resp = f.do(t, http.MethodGet, base+"?page=2&limit=10", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[schemas.PostsPageData](t, resp).Items, 5)

	resp = f.do(t, http.MethodGet, base+"?page=9", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[schemas.PostsPageData](t, resp).Items)

	resp = f.do(t, http.MethodGet, "/api/posts?page=1844674407370955162&limit=10", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	far := decode[schemas.PostsPageData](t, resp)
	assert.Empty(t, far.Items)
	assert.EqualValues(t, 15, far.TotalCount)

	assertError(t, f.do(t, http.MethodGet, base+"?page=0", "", ""), http.StatusBadRequest, errs.KindValidation)
	assertError(t, f.do(t, http.MethodGet, base+"?limit=abc", "", ""), http.StatusBadRequest, errs.KindValidation)
	assertError(t, f.do(t, http.MethodGet, "/api/users/ghost/posts", "", ""), http.StatusNotFound, errs.KindNotFound)
}

func TestGlobalFeed(t *testing.T) {
	f := newAPI(t)
	f.createPost(t, f.alice, "first")
	f.createPost(t, f.bob, "second")

	resp := f.do(t, http.MethodGet, "/api/posts", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page := decode[schemas.PostsPageData](t, resp)
	assert.EqualValues(t, 2, page.TotalCount)
	assert.Equal(t, 1, page.CurrentPage)
}

func TestUsersEndpoints(t *testing.T) {
	f := newAPI(t)

	resp := f.do(t, http.MethodGet, "/api/users/"+string(f.alice), "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	profile := decode[schemas.ProfileData](t, resp)
	assert.Equal(t, "Alice", profile.Name)
	assert.Equal(t, "alice@example.com", profile.Email)

	assertError(t, f.do(t, http.MethodGet, "/api/users/ghost", "", ""), http.StatusNotFound, errs.KindNotFound)

	resp = f.do(t, http.MethodGet, "/api/users/search/ALI?page=1&limit=5", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var found struct {
		Users      []schemas.ProfileData `json:"users"`
		TotalCount int64                 `json:"totalCount"`
		TotalPages int                   `json:"totalPages"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&found))
	require.Len(t, found.Users, 1)
	assert.Equal(t, string(f.alice), found.Users[0].ID)
	assert.Equal(t, 1, found.TotalPages)
}

func TestRecovererAndErrorMapping(t *testing.T) {
	handler := WithRequestID(Recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, errs.KindStorage, body.Error)
	assert.Equal(t, "internal error", body.Message)

	rec = httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("driver exploded"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "driver exploded")
}
