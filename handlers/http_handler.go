package handlers

import (
	"encoding/json"
	"errors"
	"github.com/gorilla/mux"
	"io"
	"linkfeed/auth"
	"linkfeed/errs"
	"linkfeed/feed"
	"linkfeed/log"
	"linkfeed/plain"
	"linkfeed/posts"
	"linkfeed/schemas"
	"linkfeed/users"
	"net/http"
	"strconv"
)

const maxBodyBytes = 64 << 10

type HTTPHandler struct {
	posts     *posts.PostsManager
	feed      *feed.FeedManager
	directory *users.Directory
}

func NewHTTPHandler(postsManager *posts.PostsManager, feedManager *feed.FeedManager, directory *users.Directory) *HTTPHandler {
	return &HTTPHandler{
		posts:     postsManager,
		feed:      feedManager,
		directory: directory,
	}
}

type ContentRequestData struct {
	Content string `json:"content"`
}

type DeletePostResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   errs.Kind `json:"error"`
	Message string    `json:"message"`
}

func (h *HTTPHandler) HandleHealth(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, HealthResponse{Status: "OK", Message: "linkfeed is running"})
}

func (h *HTTPHandler) HandleListPosts(rw http.ResponseWriter, r *http.Request) {
	page, err := parsePageRequest(r)
	if err != nil {
		WriteError(rw, r, err)
		return
	}

	result, err := h.feed.Page(r.Context(), plain.PostsFilter{}, page)
	if err != nil {
		WriteError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, result)
}

func (h *HTTPHandler) HandleCreatePost(rw http.ResponseWriter, r *http.Request) {
	principal := auth.ForContext(r.Context())
	if principal == "" {
		WriteError(rw, r, errs.AuthRequired())
		return
	}
	data, err := decodeContent(rw, r)
	if err != nil {
		WriteError(rw, r, err)
		return
	}

	post, err := h.posts.Create(r.Context(), principal, data.Content)
	if err != nil {
		WriteError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusCreated, post)
}

func (h *HTTPHandler) HandleGetPost(rw http.ResponseWriter, r *http.Request) {
	post, err := h.posts.Get(r.Context(), mux.Vars(r)["postId"])
	if err != nil {
		WriteError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, post)
}

func (h *HTTPHandler) HandleEditPost(rw http.ResponseWriter, r *http.Request) {
	principal := auth.ForContext(r.Context())
	if principal == "" {
		WriteError(rw, r, errs.AuthRequired())
		return
	}
	data, err := decodeContent(rw, r)
	if err != nil {
		WriteError(rw, r, err)
		return
	}

	post, err := h.posts.Edit(r.Context(), principal, mux.Vars(r)["postId"], data.Content)
	if err != nil {
		WriteError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, post)
}

func (h *HTTPHandler) HandleDeletePost(rw http.ResponseWriter, r *http.Request) {
	postId := mux.Vars(r)["postId"]
	err := h.posts.Delete(r.Context(), auth.ForContext(r.Context()), postId)
	if err != nil {
		WriteError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, DeletePostResponse{Message: "post deleted", ID: postId})
}

func (h *HTTPHandler) HandleToggleLike(rw http.ResponseWriter, r *http.Request) {
	post, err := h.posts.ToggleLike(r.Context(), auth.ForContext(r.Context()), mux.Vars(r)["postId"])
	if err != nil {
		WriteError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, post)
}

func (h *HTTPHandler) HandleAddComment(rw http.ResponseWriter, r *http.Request) {
	principal := auth.ForContext(r.Context())
	if principal == "" {
		WriteError(rw, r, errs.AuthRequired())
		return
	}
	data, err := decodeContent(rw, r)
	if err != nil {
		WriteError(rw, r, err)
		return
	}

	post, err := h.posts.AddComment(r.Context(), principal, mux.Vars(r)["postId"], data.Content)
	if err != nil {
		WriteError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusCreated, post)
}

func (h *HTTPHandler) HandleSearchUsers(rw http.ResponseWriter, r *http.Request) {
	page, err := parsePageRequest(r)
	if err != nil {
		WriteError(rw, r, err)
		return
	}

	found, err := h.directory.Search(r.Context(), mux.Vars(r)["query"], page)
	if err != nil {
		WriteError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, schemas.UsersListFromUsers(found.Users, found.CurrentPage, found.TotalPages, found.TotalCount))
}

func (h *HTTPHandler) HandleGetUser(rw http.ResponseWriter, r *http.Request) {
	user, err := h.directory.GetProfile(r.Context(), schemas.UserId(mux.Vars(r)["userId"]))
	if err != nil {
		WriteError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, user.ToProfileData())
}

func (h *HTTPHandler) HandleGetUserPosts(rw http.ResponseWriter, r *http.Request) {
	page, err := parsePageRequest(r)
	if err != nil {
		WriteError(rw, r, err)
		return
	}

	filter := plain.PostsFilter{AuthorID: schemas.UserId(mux.Vars(r)["userId"])}
	result, err := h.feed.Page(r.Context(), filter, page)
	if err != nil {
		WriteError(rw, r, err)
		return
	}
	writeJSON(rw, http.StatusOK, result)
}

// parsePageRequest reads page and limit. Absent values mean the first page and the default size.
func parsePageRequest(r *http.Request) (plain.PageRequest, error) {
	query := r.URL.Query()
	req := plain.PageRequest{Page: 1}

	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return req, errs.Validation("invalid page: %s", raw)
		}
		req.Page = page
	}
	if raw := query.Get("limit"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return req, errs.Validation("invalid limit: %s", raw)
		}
		req.Size = size
	}
	return req, nil
}

func decodeContent(rw http.ResponseWriter, r *http.Request) (*ContentRequestData, error) {
	var data ContentRequestData
	err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxBodyBytes)).Decode(&data)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, errs.Validation("request body too large")
		case errors.Is(err, io.EOF):
			return nil, errs.Validation("request body is empty")
		default:
			return nil, errs.Validation("malformed request body")
		}
	}
	return &data, nil
}

func writeJSON(rw http.ResponseWriter, status int, body interface{}) {
	rawResponse, err := json.Marshal(body)
	if err != nil {
		log.Error.Printf("marshal response failed: %s", err)
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if _, err = rw.Write(rawResponse); err != nil {
		log.Warn.Printf("write response failed: %s", err)
	}
}

// WriteError renders err as {"error": kind, "message": detail}. Storage failures are logged and
// reported as internal errors only.
func WriteError(rw http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		log.Error.Printf("request %s %s %s failed: %s", RequestID(r.Context()), r.Method, r.URL.Path, err)
		if kind == "" {
			kind = errs.KindStorage
		}
	}
	writeJSON(rw, status, ErrorResponse{Error: kind, Message: errs.Detail(err)})
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindAuthRequired:
		return http.StatusUnauthorized
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
