package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/dmitrijs2005/dekinai/internal/common"
	"github.com/dmitrijs2005/dekinai/internal/netx"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.files.Ping(r.Context()); err != nil {
		s.logger.Warn(r.Context(), "health check failed", "error", err)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleUpload streams the first file part of a multipart body into the
// file service and answers with [publicURL, deletionURL]. Other parts are
// ignored.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.opts.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadSize)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %w", common.ErrorBadRequest, err))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			s.writeError(w, r, fmt.Errorf("%w: no file in request", common.ErrorBadRequest))
			return
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.writeError(w, r, err)
			} else {
				s.writeError(w, r, fmt.Errorf("%w: %w", common.ErrorBadRequest, err))
			}
			return
		}

		if part.FileName() == "" {
			_ = part.Close()
			continue
		}

		res, err := s.files.Upload(r.Context(), part.FileName(), part)
		_ = part.Close()
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		base := netx.BaseURL(r, s.opts.LocalPort)
		writeJSON(w, http.StatusOK, []string{
			base + res.Filename,
			base + res.Filename + "/" + res.Secret,
		})
		return
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	secret := chi.URLParam(r, "secret")

	if err := s.files.Delete(r.Context(), filename, secret); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, common.DeletedMessage)
}

// Types a browser would render as an active document on our origin.
var activeContentTypes = []string{
	"text/html",
	"application/xhtml+xml",
	"image/svg+xml",
	"text/xml",
	"application/xml",
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	obj, err := s.files.Open(r.Context(), filename)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "sandbox")
	mediaType, _, _ := strings.Cut(obj.ContentType, ";")
	if lo.Contains(activeContentTypes, strings.TrimSpace(mediaType)) {
		w.Header().Set("Content-Disposition", "attachment")
	}

	if rs, ok := obj.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, filename, obj.ModTime, rs)
		return
	}

	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, obj.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
