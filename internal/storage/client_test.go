package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	"github.com/Gammanik/buildsync/internal/protocol"
)

func TestParseContentDisposition(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "unquoted", input: "attachment; filename=build5FE83BB4.7z", want: "build5FE83BB4.7z"},
		{name: "quoted", input: `attachment; filename="buildDEADBEEF.ext"`, want: "buildDEADBEEF.ext"},
		{name: "extra params", input: `attachment; size=10; filename=buildDEADBEEF.7z`, want: "buildDEADBEEF.7z"},
		{name: "no filename", input: "attachment", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "; ;=", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseContentDisposition(tt.input)
			if tt.wantErr {
				assert.IsError(t, err, ErrMissingFilename)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitStale(t *testing.T) {
	assert.Equal(t, []string(nil), SplitStale(""))
	assert.Equal(t, []string{"a"}, SplitStale("a"))
	assert.Equal(t, []string{"a", "b", "c"}, SplitStale("a|b||c|a"))
}

func TestCheckSendsVersionsAndSplitsBody(t *testing.T) {
	var got *protocol.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/check", r.URL.Path)
		req, err := protocol.Decode(r)
		assert.NoError(t, err)
		got = req
		io.WriteString(w, "a|b")
	}))
	defer server.Close()

	stale, err := New(time.Second).Check(context.Background(), server.URL+"/", "", protocol.VersionList{
		{Component: "a", Tag: "00000001"},
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, stale)
	assert.Equal(t, "", *got.Password)
	assert.Equal(t, protocol.VersionList{{Component: "a", Tag: "00000001"}}, *got.Versions)
}

func TestCheckNonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := New(time.Second).Check(context.Background(), server.URL, "", nil)
	assert.IsError(t, err, ErrUpstreamStatus)
}

func TestDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, err := protocol.Decode(r)
		assert.NoError(t, err)
		assert.Equal(t, "X", *req.Version)
		w.Header().Set("Content-Disposition", "attachment; filename=buildDEADBEEF.7z")
		io.WriteString(w, "0123456789")
	}))
	defer server.Close()

	buf := &bytes.Buffer{}
	info, err := New(time.Second).Download(context.Background(), server.URL, "", "X", buf)
	assert.NoError(t, err)
	assert.Equal(t, "buildDEADBEEF.7z", info.FileName)
	assert.Equal(t, int64(10), info.Size)
	assert.Equal(t, "0123456789", buf.String())
}

func TestDownloadMissingHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data")
	}))
	defer server.Close()

	_, err := New(time.Second).Download(context.Background(), server.URL, "", "X", io.Discard)
	assert.IsError(t, err, ErrMissingFilename)
}

func TestDownloadTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", "attachment; filename=buildDEADBEEF.7z")
		w.Header().Set("Content-Length", "100")
		io.WriteString(w, "short")
	}))
	defer server.Close()

	_, err := New(time.Second).Download(context.Background(), server.URL, "", "X", io.Discard)
	assert.Error(t, err)
}

func TestDownloadTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := New(50*time.Millisecond).Download(context.Background(), server.URL, "", "X", io.Discard)
	assert.Error(t, err)
}
