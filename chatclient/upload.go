package chatclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/wifi-chat/chatwire"
)

// ErrUploadFailed marks a terminal upload failure. There is no retry and no
// cancellation; an upload runs to completion or to this.
var ErrUploadFailed = errors.New("chat: upload failed")

// UploadCoordinator runs one upload operation per selected file,
// independently, against the external upload endpoint. All in-flight
// uploads report into the single shared progress surface, so with several
// running at once the most recent report visually wins; that serialization
// weakness is a known product decision, not corrected here.
type UploadCoordinator struct {
	endpoint string
	client   *http.Client
	surface  ProgressSurface
	emit     func(event string, data any) error
	post     func(fn func())
	notify   Notifier
}

func NewUploadCoordinator(endpoint string, client *http.Client, surface ProgressSurface, notify Notifier, emit func(string, any) error, post func(func())) *UploadCoordinator {
	if client == nil {
		client = http.DefaultClient
	}
	return &UploadCoordinator{
		endpoint: endpoint,
		client:   client,
		surface:  surface,
		emit:     emit,
		post:     post,
		notify:   notify,
	}
}

// Upload transfers the file at path and, on success, sends a file message
// through the normal outbound path. The returned channel yields the
// terminal result exactly once.
func (u *UploadCoordinator) Upload(path string) <-chan error {
	done := make(chan error, 1)
	go func() { done <- u.run(path) }()
	return done
}

func (u *UploadCoordinator) run(path string) error {
	name := filepath.Base(path)

	// The surface must come down on every exit path: success, failure, or
	// any fault below.
	defer u.post(u.surface.HideUploadProgress)

	body, contentType, total, err := openMultipart(path)
	if err != nil {
		return u.fail(name, err)
	}
	defer func() { _ = body.Close() }()
	u.post(func() { u.surface.ShowUploadProgress(name, 0) })

	pr := &progressReader{
		r:     body,
		total: total,
		report: func(fraction float64) {
			u.post(func() { u.surface.ShowUploadProgress(name, fraction) })
		},
	}
	req, err := http.NewRequest(http.MethodPost, u.endpoint, pr)
	if err != nil {
		return u.fail(name, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = total

	resp, err := u.client.Do(req)
	if err != nil {
		return u.fail(name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return u.fail(name, fmt.Errorf("endpoint returned %s", resp.Status))
	}

	var info chatwire.FileInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return u.fail(name, fmt.Errorf("decode response: %w", err))
	}

	u.post(func() {
		out := chatwire.SendMessage{
			Body:     info.OriginalName,
			Type:     chatwire.TypeFile,
			FileInfo: &info,
		}
		if err := u.emit(chatwire.EventSendMessage, out); err != nil {
			u.notify.ShowError(fmt.Sprintf("uploaded %s but could not announce it: %v", info.OriginalName, err))
		}
	})
	log.Info().Str("file", info.OriginalName).Int64("size", info.FileSize).Msg("[chat] upload complete")
	return nil
}

// fail surfaces the terminal error; no message is produced.
func (u *UploadCoordinator) fail(name string, cause error) error {
	err := fmt.Errorf("%w: %s: %v", ErrUploadFailed, name, cause)
	log.Warn().Err(cause).Str("file", name).Msg("[chat] upload failed")
	u.post(func() { u.notify.ShowError(err.Error()) })
	return err
}

// openMultipart prepares a multipart request body that streams the file
// from disk: a small buffered part header, then the open file, then the
// closing boundary. The file itself never sits in memory whole, so a
// multi-gigabyte video costs the same as a note. The exact body length is
// known up front from the file size.
func openMultipart(path string) (io.ReadCloser, string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", 0, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, "", 0, err
	}

	var head bytes.Buffer
	w := multipart.NewWriter(&head)
	if _, err := w.CreateFormFile("file", filepath.Base(path)); err != nil {
		_ = f.Close()
		return nil, "", 0, err
	}
	tail := "\r\n--" + w.Boundary() + "--\r\n"
	total := int64(head.Len()) + info.Size() + int64(len(tail))
	body := &multipartStream{
		Reader: io.MultiReader(&head, f, strings.NewReader(tail)),
		f:      f,
	}
	return body, w.FormDataContentType(), total, nil
}

// multipartStream closes the underlying file once the transport is done
// with the body.
type multipartStream struct {
	io.Reader
	f *os.File
}

func (s *multipartStream) Close() error { return s.f.Close() }

// progressReader counts request-body bytes as the transport consumes them
// and reports the fraction transferred, throttled to whole-percent steps.
type progressReader struct {
	r       io.Reader
	total   int64
	sent    int64
	lastPct int
	report  func(fraction float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.sent += int64(n)
		if pct := int(float64(p.sent) / float64(p.total) * 100); pct != p.lastPct {
			p.lastPct = pct
			p.report(float64(p.sent) / float64(p.total))
		}
	}
	return n, err
}
