package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/notekeeper/internal/convert"
	"github.com/and161185/notekeeper/internal/limiter"
	"github.com/and161185/notekeeper/internal/repository/filestore"
	"github.com/and161185/notekeeper/internal/service"
)

// newTestServer wires real services over a file store in a temp dir.
func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	store, err := filestore.New(t.TempDir())
	require.NoError(t, err)

	auth := service.NewAuthService(store.Users(), service.NewMemorySessions(), []byte("test-key"),
		time.Hour, limiter.NewMemory(time.Minute, 3, time.Minute))
	notes := service.NewNoteService(store.Notes(), "https://notes.example")

	ts := httptest.NewServer(New(auth, notes, zaptest.NewLogger(t), opts...))
	t.Cleanup(ts.Close)
	return ts
}

type apiResp struct {
	status int
	header http.Header
	body   []byte
}

func (r apiResp) decode(t *testing.T, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, dst), string(r.body))
}

// send performs one request and reads the whole response. It never touches
// a *testing.T, so it is safe to use from worker goroutines.
func send(ts *httptest.Server, method, path, token string, body any, hdr http.Header) (apiResp, error) {
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return apiResp{}, err
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, rdr)
	if err != nil {
		return apiResp{}, err
	}
	for k, vs := range hdr {
		req.Header[k] = vs
	}
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		return apiResp{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResp{}, fmt.Errorf("read %s %s: %w", method, path, err)
	}
	return apiResp{status: resp.StatusCode, header: resp.Header, body: raw}, nil
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) apiResp {
	t.Helper()
	r, err := send(ts, method, path, token, body, nil)
	require.NoError(t, err)
	return r
}

// signUp registers email and returns the session.
func signUp(t *testing.T, ts *httptest.Server, email string) convert.Session {
	t.Helper()
	r := call(t, ts, http.MethodPost, "/api/auth/signup", "", convert.Credentials{Email: email, Password: "pwd"})
	require.Equal(t, http.StatusCreated, r.status, string(r.body))
	var s convert.Session
	r.decode(t, &s)
	return s
}

func createNote(t *testing.T, ts *httptest.Server, token, title, content string) convert.Note {
	t.Helper()
	r := call(t, ts, http.MethodPost, "/api/notes", token, convert.CreateNote{Title: title, Content: content})
	require.Equal(t, http.StatusCreated, r.status, string(r.body))
	var n convert.Note
	r.decode(t, &n)
	return n
}
