package main

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/wifi-chat/chatwire"
)

const maxUploadBytes = 100 << 30

var allowedExt = map[string]struct{}{}

func init() {
	for _, ext := range strings.Fields(
		"txt pdf doc docx xls xlsx ppt pptx " +
			"png jpg jpeg gif webp svg bmp tiff " +
			"mp4 avi mov wmv flv webm mkv 3gp " +
			"mp3 wav flac aac ogg m4a wma " +
			"php js html css py java cpp c " +
			"json xml csv sql md log ini cfg " +
			"zip rar 7z tar gz exe dmg pkg") {
		allowedExt[ext] = struct{}{}
	}
}

func extOf(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	return ext
}

func allowedFile(name string) bool {
	ext := extOf(name)
	if ext == "" {
		return false
	}
	_, ok := allowedExt[ext]
	return ok
}

// fileType derives the coarse type classification the client renders by:
// media kinds from the mime registry, then well-known source and document
// extensions, then archive, then plain file.
func fileType(name string) string {
	ext := extOf(name)
	mimeType := mime.TypeByExtension("." + ext)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	}
	// The builtin mime table is sparse; cover the allowed media
	// extensions directly so classification does not depend on the
	// host's mime.types.
	switch ext {
	case "png", "jpg", "jpeg", "gif", "webp", "svg", "bmp", "tiff":
		return "image"
	case "mp4", "avi", "mov", "wmv", "flv", "webm", "mkv", "3gp":
		return "video"
	case "mp3", "wav", "flac", "aac", "ogg", "m4a", "wma":
		return "audio"
	}
	switch ext {
	case "php":
		return "php"
	case "js":
		return "javascript"
	case "py":
		return "python"
	case "html", "css", "java", "cpp", "c", "json", "xml":
		return "code"
	case "pdf":
		return "pdf"
	case "doc", "docx", "txt", "md":
		return "document"
	case "zip", "rar", "7z", "tar", "gz":
		return "archive"
	}
	return "file"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func storedName(display string) string {
	u := uuid.New()
	return hex.EncodeToString(u[:]) + "_" + display
}

// handleUpload accepts one multipart file, stores it under a unique name,
// and answers with the file_info the client turns into a file message. Any
// non-success status is a terminal failure for the uploader.
func handleUpload(w http.ResponseWriter, r *http.Request, dir string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file selected"})
		return
	}
	defer func() { _ = file.Close() }()

	display := sanitizeDisplayName(header.Filename)
	if !allowedFile(display) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "File type not allowed"})
		return
	}

	name := storedName(display)
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		log.Error().Err(err).Msg("[chat] create upload file")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Upload failed"})
		return
	}
	size, err := io.Copy(dst, file)
	cerr := dst.Close()
	if err != nil || cerr != nil {
		_ = os.Remove(filepath.Join(dir, name))
		log.Error().AnErr("copy", err).AnErr("close", cerr).Msg("[chat] store upload")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Upload failed"})
		return
	}

	log.Info().Str("file", display).Int64("size", size).Msg("[chat] upload stored")
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		chatwire.FileInfo
	}{
		Success: true,
		FileInfo: chatwire.FileInfo{
			Filename:     name,
			OriginalName: display,
			FileType:     fileType(display),
			FileSize:     size,
			URL:          "/uploads/" + name,
		},
	})
}

// handleServeUpload serves a stored file by its assigned name.
func handleServeUpload(w http.ResponseWriter, r *http.Request, dir string) {
	name := filepath.Base(chi.URLParam(r, "name"))
	if name == "." || name == "/" || name == ".." {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(dir, name))
}
