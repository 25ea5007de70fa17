package posts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"wander-stories-backend/controllers/authentication"
	"wander-stories-backend/models/post"
	"wander-stories-backend/services/blobstore"
	"wander-stories-backend/services/feed"
	"wander-stories-backend/services/imaging"
)

// Handler owns the publish pipeline: authenticate, normalize, upload,
// insert, propagate. The three network steps run strictly in that
// order; each one gates the next.
type Handler struct {
	Repo     *post.Repository
	Verifier authentication.Verifier
	Uploader *blobstore.Uploader
	Feed     feed.Sync
	Image    imaging.Options
}

func NewHandler(repo *post.Repository, verifier authentication.Verifier, uploader *blobstore.Uploader, sync feed.Sync, image imaging.Options) *Handler {
	return &Handler{Repo: repo, Verifier: verifier, Uploader: uploader, Feed: sync, Image: image}
}

// Posts dispatches /api/posts by method.
func (h *Handler) Posts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.List(w, r)
	case http.MethodPost:
		h.Create(w, r)
	case http.MethodDelete:
		h.Delete(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// List serves the paginated public feed, newest first.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.Repo.List(r.Context(), limit, offset)
	if err != nil {
		log.Printf("list posts: %v", err)
		http.Error(w, "Failed to fetch posts", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []post.Post{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"posts": items})
}

// Create runs the full publish pipeline for one multipart request.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	identity, err := h.authenticate(ctx, r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(4 << 20); err != nil {
		if tooLarge(err) {
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	displayName := strings.TrimSpace(r.FormValue("displayName"))
	if displayName == "" {
		displayName = defaultDisplayName(identity)
	}

	draft := post.Draft{
		AuthorID:          identity.UserID,
		AuthorDisplayName: displayName,
		Title:             r.FormValue("title"),
		Story:             r.FormValue("story"),
		Location:          r.FormValue("location"),
	}
	// Bad metadata must be rejected before any bytes hit blob storage;
	// rejecting afterwards would strand an orphaned object.
	if err := draft.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var imageURL *string
	var objectName string
	file, header, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		url, name, status, upErr := h.uploadImage(ctx, file, header.Filename, header.Size, header.Header.Get("Content-Type"))
		if upErr != nil {
			if ctx.Err() != nil {
				// Client went away mid-upload; nothing to answer.
				return
			}
			log.Printf("upload image: %v", upErr)
			http.Error(w, uploadErrorMessage(upErr), status)
			return
		}
		imageURL = &url
		objectName = name
	case errors.Is(err, http.ErrMissingFile):
		// Text-only post.
	default:
		http.Error(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	draft.ImageURL = imageURL
	created, err := h.Repo.Publish(ctx, draft)
	if err != nil {
		if objectName != "" {
			// Best-effort: don't leave the uploaded object dangling.
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if rmErr := h.Uploader.Remove(cleanupCtx, objectName); rmErr != nil {
				log.Printf("orphan cleanup %s: %v", objectName, rmErr)
			}
		}
		if errors.Is(err, post.ErrValidation) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("publish post: %v", err)
		http.Error(w, "Failed to create post", http.StatusInternalServerError)
		return
	}

	h.Feed.Invalidate()
	writeJSON(w, http.StatusCreated, map[string]interface{}{"post": created})
}

// uploadImage normalizes then uploads, returning the public URL and the
// object name. The status is what the handler should answer on error.
func (h *Handler) uploadImage(ctx context.Context, file io.Reader, filename string, declaredSize int64, contentType string) (string, string, int, error) {
	raw, err := io.ReadAll(file)
	if err != nil {
		return "", "", http.StatusBadRequest, err
	}
	if declaredSize >= 0 && declaredSize != int64(len(raw)) {
		return "", "", http.StatusBadRequest, blobstore.ErrSizeMismatch
	}

	data, reencoded, err := imaging.Normalize(ctx, raw, h.Image)
	if err != nil {
		return "", "", http.StatusInternalServerError, err
	}
	if reencoded {
		// The stored bytes are JPEG now; the object name and type must
		// say so even if the client sent a PNG.
		contentType = "image/jpeg"
		filename = strings.TrimSuffix(filename, path.Ext(filename)) + ".jpg"
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	url, name, err := h.Uploader.Upload(ctx, filename, contentType, int64(len(data)), data)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, blobstore.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		return "", "", status, err
	}
	return url, name, 0, nil
}

// Delete removes a post when the verified caller is its author.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, err := h.authenticate(r.Context(), r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := postID(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	switch err := h.Repo.Delete(r.Context(), id, identity.UserID); {
	case err == nil:
	case errors.Is(err, post.ErrNotFound):
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	case errors.Is(err, post.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	default:
		log.Printf("delete post: %v", err)
		http.Error(w, "Failed to delete post", http.StatusInternalServerError)
		return
	}

	h.Feed.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

// Like increments the like counter atomically.
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.authenticate(r.Context(), r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := postID(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	liked, err := h.Repo.Like(r.Context(), id)
	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			http.Error(w, "Post not found", http.StatusNotFound)
			return
		}
		log.Printf("like post: %v", err)
		http.Error(w, "Failed to like post", http.StatusInternalServerError)
		return
	}

	h.Feed.Invalidate()
	writeJSON(w, http.StatusOK, map[string]interface{}{"post": liked})
}

// Flag sets the moderation marker. Moderator-only; clients cannot
// smuggle flag state through create.
func (h *Handler) Flag(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	identity, err := h.authenticate(r.Context(), r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if identity.Role != "moderator" && identity.Role != "admin" {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	id, err := postID(r)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}
	flagged := r.URL.Query().Get("value") != "false"

	updated, err := h.Repo.SetFlagged(r.Context(), id, flagged)
	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			http.Error(w, "Post not found", http.StatusNotFound)
			return
		}
		log.Printf("flag post: %v", err)
		http.Error(w, "Failed to flag post", http.StatusInternalServerError)
		return
	}

	h.Feed.Invalidate()
	writeJSON(w, http.StatusOK, map[string]interface{}{"post": updated})
}

func (h *Handler) authenticate(ctx context.Context, r *http.Request) (authentication.Identity, error) {
	token, err := authentication.BearerToken(r)
	if err != nil {
		return authentication.Identity{}, err
	}
	return h.Verifier.Verify(ctx, token)
}

func postID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(r.URL.Query().Get("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func defaultDisplayName(identity authentication.Identity) string {
	if identity.DisplayName != "" {
		return identity.DisplayName
	}
	if at := strings.Index(identity.Email, "@"); at > 0 {
		return identity.Email[:at]
	}
	return "Anonymous"
}

func uploadErrorMessage(err error) string {
	switch {
	case errors.Is(err, blobstore.ErrTooLarge):
		return "Image exceeds the upload limit"
	case errors.Is(err, blobstore.ErrSizeMismatch):
		return "Image size mismatch"
	default:
		return "Failed to upload image"
	}
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode response: %v", err)
	}
}
