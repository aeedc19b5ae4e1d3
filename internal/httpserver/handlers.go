package httpserver

import (
	"net/http"

	"github.com/jm-archive/jm-downloader/internal/apperr"
)

// defaultExpireSeconds mirrors original_source/src/models.rs's
// default_expire_seconds(): applied when the request body omits
// expire_seconds entirely. Go's encoding/json has no per-field default, so
// the zero value is distinguished from "absent" with a pointer field and
// the default is applied after decoding.
const defaultExpireSeconds = 600

type getInfoRequest struct {
	ComicID int64 `json:"comic_id"`
}

func (h *handler) getInfo(w http.ResponseWriter, r *http.Request) {
	var req getInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, apperr.BadRequestf("malformed request body: %v", err))
		return
	}
	if req.ComicID <= 0 {
		h.writeError(w, apperr.BadRequestf("comic_id must be positive"))
		return
	}

	info, err := h.svc.GetInfo(req.ComicID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, ok(info))
}

type downloadChapterRequest struct {
	ComicID       int64   `json:"comic_id"`
	ChapterIDs    []int64 `json:"chapter_ids"`
	ExpireSeconds *int64  `json:"expire_seconds"`
}

func (h *handler) downloadChapter(w http.ResponseWriter, r *http.Request) {
	var req downloadChapterRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, apperr.BadRequestf("malformed request body: %v", err))
		return
	}
	if req.ComicID <= 0 {
		h.writeError(w, apperr.BadRequestf("comic_id must be positive"))
		return
	}

	expireSeconds := int64(defaultExpireSeconds)
	if req.ExpireSeconds != nil {
		expireSeconds = *req.ExpireSeconds
	}

	data, err := h.svc.DownloadChapter(req.ComicID, req.ChapterIDs, expireSeconds)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, ok(data))
}

type downloadComicRequest struct {
	ComicID       int64  `json:"comic_id"`
	Merge         bool   `json:"merge"`
	Encrypt       string `json:"encrypt"`
	ExpireSeconds *int64 `json:"expire_seconds"`
}

func (h *handler) downloadComic(w http.ResponseWriter, r *http.Request) {
	var req downloadComicRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, apperr.BadRequestf("malformed request body: %v", err))
		return
	}
	if req.ComicID <= 0 {
		h.writeError(w, apperr.BadRequestf("comic_id must be positive"))
		return
	}

	expireSeconds := int64(defaultExpireSeconds)
	if req.ExpireSeconds != nil {
		expireSeconds = *req.ExpireSeconds
	}

	data, err := h.svc.DownloadComic(req.ComicID, req.Merge, req.Encrypt, expireSeconds)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, ok(data))
}
