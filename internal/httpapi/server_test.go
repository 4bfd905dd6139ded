package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layoutsync/internal/datasource/archive"
	"layoutsync/internal/ingest"
	"layoutsync/internal/syncer"
)

type stubSyncer struct{ fail bool }

func (s stubSyncer) SyncBatch(_ context.Context, tables map[string]syncer.Files, _ string) []syncer.Result {
	var out []syncer.Result
	for name := range tables {
		res := syncer.Result{Table: name, Status: syncer.StatusSuccess, NewRecordCount: 1}
		if s.fail {
			res.Status, res.Message = syncer.StatusError, "table does not exist"
		}
		out = append(out, res)
	}
	return out
}

func newTestServer(t *testing.T, s ingest.Syncer, max int64) *Server {
	t.Helper()
	runner := &ingest.Runner{Sync: s, Archive: archive.Options{TempDir: t.TempDir()}}
	srv := NewServer(Config{MaxUploadBytes: max}, runner)
	srv.newID = func() string { return "upload-1" }
	return srv
}

func zipBytes(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, _ = w.Write([]byte("x\n"))
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// multipartBody builds a request body; an empty field skips the file part.
func multipartBody(t *testing.T, field, filename string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("other", "value"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func post(t *testing.T, srv *Server, body io.Reader, contentType string) (*httptest.ResponseRecorder, ingest.Report) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var rep ingest.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep), rec.Body.String())
	return rec, rep
}

func TestUpload_Success(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, stubSyncer{}, 0)
	body, ct := multipartBody(t, "file", "bundle.ZIP", zipBytes(t, "tb_a.txt", "tb_a_layout.txt"))
	rec, rep := post(t, srv, body, ct)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, rep.Success)
	assert.Equal(t, "upload-1", rep.UploadID)
	require.Len(t, rep.Results, 1)
	assert.Equal(t, "tb_a", rep.Results[0].Table)
}

func TestUpload_TableFailureStillOK(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, stubSyncer{fail: true}, 0)
	body, ct := multipartBody(t, "file", "bundle.zip", zipBytes(t, "tb_a.txt", "tb_a_layout.txt"))
	rec, rep := post(t, srv, body, ct)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, rep.Success)
	assert.Equal(t, "1 of 1 tables failed", rep.Message)
}

func TestUpload_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		field      string
		filename   string
		content    []byte
		max        int64
		wantStatus int
		wantMsg    string
	}{
		{name: "no file part", wantStatus: http.StatusBadRequest, wantMsg: msgNoFile},
		{name: "wrong field", field: "upload", filename: "a.zip", content: []byte("x"), wantStatus: http.StatusBadRequest, wantMsg: msgNoFile},
		{name: "blank name", field: "file", filename: " ", content: []byte("x"), wantStatus: http.StatusBadRequest, wantMsg: msgEmptyName},
		{name: "not a zip name", field: "file", filename: "data.txt", content: []byte("x"), wantStatus: http.StatusBadRequest, wantMsg: msgNotZip},
		{name: "corrupt zip", field: "file", filename: "a.zip", content: []byte("garbage"), wantStatus: http.StatusUnprocessableEntity, wantMsg: "invalid archive"},
		{name: "no pairs", field: "file", filename: "a.zip", wantStatus: http.StatusUnprocessableEntity, wantMsg: ingest.ErrNoPairs.Error()},
		{name: "too large", field: "file", filename: "a.zip", content: bytes.Repeat([]byte("z"), 4096), max: 1024, wantStatus: http.StatusRequestEntityTooLarge, wantMsg: msgTooLarge},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			content := tc.content
			if tc.name == "no pairs" {
				content = zipBytes(t, "tb_a.txt")
			}
			srv := newTestServer(t, stubSyncer{}, tc.max)
			body, ct := multipartBody(t, tc.field, tc.filename, content)
			rec, rep := post(t, srv, body, ct)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.False(t, rep.Success)
			assert.Equal(t, "upload-1", rep.UploadID)
			assert.Contains(t, rep.Message, tc.wantMsg)
			assert.NotNil(t, rep.Results)
		})
	}
}

func TestUpload_NotMultipart(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, stubSyncer{}, 0)
	rec, rep := post(t, srv, strings.NewReader("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, msgNoFile, rep.Message)
}

func TestIndexAndHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, stubSyncer{}, 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `name="file"`)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	t.Parallel()

	runner := &ingest.Runner{Sync: stubSyncer{}}
	srv := NewServer(Config{Addr: "127.0.0.1:0"}, runner)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
