package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/wifi-chat/chatwire"
)

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadStoresFileAndReturnsInfo(t *testing.T) {
	dir := t.TempDir()
	body, ctype := multipartBody(t, "photo.png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()

	handleUpload(rec, req, dir)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool `json:"success"`
		chatwire.FileInfo
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "photo.png", resp.OriginalName)
	assert.Equal(t, "image", resp.FileType)
	assert.Equal(t, int64(len("png-bytes")), resp.FileSize)
	assert.True(t, strings.HasSuffix(resp.Filename, "_photo.png"), "got %q", resp.Filename)
	assert.Equal(t, "/uploads/"+resp.Filename, resp.URL)

	// Stored under the unique name, original content intact.
	stored, err := os.ReadFile(filepath.Join(dir, resp.Filename))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(stored))
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	dir := t.TempDir()
	body, ctype := multipartBody(t, "payload.sh", []byte("#!/bin/sh"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()

	handleUpload(rec, req, dir)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "File type not allowed")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadRejectsMissingFile(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=none")
	rec := httptest.NewRecorder()

	handleUpload(rec, req, t.TempDir())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No file selected")
}

func TestUploadSanitizesHostileFilename(t *testing.T) {
	dir := t.TempDir()
	body, ctype := multipartBody(t, "../../<b>evil</b>.txt", []byte("x"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()

	handleUpload(rec, req, dir)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		chatwire.FileInfo
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "evil.txt", resp.OriginalName)
	assert.NotContains(t, resp.Filename, "..")
	assert.NotContains(t, resp.Filename, "/")
}

func TestServeUploadRoundTrip(t *testing.T) {
	h := newHub()
	dir := t.TempDir()
	srv := httptest.NewServer(NewHandler(h, dir))
	defer srv.Close()

	body, ctype := multipartBody(t, "notes.txt", []byte("remember the milk"))
	resp, err := http.Post(srv.URL+"/upload", ctype, body)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info struct {
		chatwire.FileInfo
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))

	got, err := http.Get(srv.URL + info.URL)
	require.NoError(t, err)
	defer func() { _ = got.Body.Close() }()
	require.Equal(t, http.StatusOK, got.StatusCode)
	data, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", string(data))
}

func TestServeUploadRefusesPathEscape(t *testing.T) {
	h := newHub()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.txt"), []byte("ok"), 0o644))
	srv := httptest.NewServer(NewHandler(h, dir))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/uploads/..%2f..%2fetc%2fpasswd")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestFileTypeClassification(t *testing.T) {
	cases := map[string]string{
		"cat.png":      "image",
		"clip.mp4":     "video",
		"song.mp3":     "audio",
		"index.php":    "php",
		"app.js":       "javascript",
		"tool.py":      "python",
		"main.cpp":     "code",
		"data.json":    "code",
		"paper.pdf":    "pdf",
		"readme.md":    "document",
		"backup.zip":   "archive",
		"mystery.bin":  "file",
		"no-extension": "file",
	}
	for name, want := range cases {
		assert.Equal(t, want, fileType(name), "file %q", name)
	}
}

func TestAllowedFile(t *testing.T) {
	assert.True(t, allowedFile("a.png"))
	assert.True(t, allowedFile("A.PDF"))
	assert.True(t, allowedFile("script.py"))
	assert.False(t, allowedFile("a.sh"))
	assert.False(t, allowedFile("noext"))
	assert.False(t, allowedFile(""))
}
