package httpserver

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/notekeeper/internal/convert"
)

func TestHealthz(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	r := call(t, ts, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "ok", string(r.body))
}

func TestAuthFlow(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	s := signUp(t, ts, "alice@example.com")
	assert.NotEmpty(t, s.Token)
	assert.Equal(t, "alice@example.com", s.User.Email)
	assert.True(t, s.ExpiresAt.After(time.Now()))

	r := call(t, ts, http.MethodPost, "/api/auth/signup", "", convert.Credentials{Email: "alice@example.com", Password: "x"})
	assert.Equal(t, http.StatusConflict, r.status)
	assert.JSONEq(t, `{"error":"user already exists"}`, string(r.body))

	r = call(t, ts, http.MethodPost, "/api/auth/signup", "", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, r.status)
	r = call(t, ts, http.MethodPost, "/api/auth/signup", "", convert.Credentials{Email: "", Password: "x"})
	assert.Equal(t, http.StatusBadRequest, r.status)

	r = call(t, ts, http.MethodPost, "/api/auth/signin", "", convert.Credentials{Email: "alice@example.com", Password: "bad"})
	assert.Equal(t, http.StatusUnauthorized, r.status)
	assert.JSONEq(t, `{"error":"invalid credentials"}`, string(r.body))

	r = call(t, ts, http.MethodPost, "/api/auth/signin", "", convert.Credentials{Email: "alice@example.com", Password: "pwd"})
	require.Equal(t, http.StatusOK, r.status)
	var in convert.Session
	r.decode(t, &in)
	assert.Equal(t, s.User.ID, in.User.ID)

	r = call(t, ts, http.MethodGet, "/api/notes", in.Token, nil)
	assert.Equal(t, http.StatusOK, r.status)

	r = call(t, ts, http.MethodPost, "/api/auth/signout", in.Token, nil)
	assert.Equal(t, http.StatusNoContent, r.status)

	r = call(t, ts, http.MethodGet, "/api/notes", in.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, r.status, "revoked token")

	r = call(t, ts, http.MethodGet, "/api/notes", s.Token, nil)
	assert.Equal(t, http.StatusOK, r.status, "other session still live")
}

func TestSignIn_RateLimited(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	signUp(t, ts, "bob@example.com")

	bad := convert.Credentials{Email: "bob@example.com", Password: "nope"}
	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		codes = append(codes, call(t, ts, http.MethodPost, "/api/auth/signin", "", bad).status)
	}
	assert.Equal(t, http.StatusTooManyRequests, codes[len(codes)-1])

	r := call(t, ts, http.MethodPost, "/api/auth/signin", "", convert.Credentials{Email: "bob@example.com", Password: "pwd"})
	assert.Equal(t, http.StatusTooManyRequests, r.status, "blocked even with the right password")
}

func TestSignIn_ForwardedForIsIgnoredByDefault(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	signUp(t, ts, "victim@example.com")

	bad := convert.Credentials{Email: "victim@example.com", Password: "nope"}
	codes := make([]int, 0, 10)
	for i := 0; i < 10; i++ {
		hdr := http.Header{}
		hdr.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		hdr.Set("X-Real-IP", fmt.Sprintf("10.0.1.%d", i))
		r, err := send(ts, http.MethodPost, "/api/auth/signin", "", bad, hdr)
		require.NoError(t, err)
		codes = append(codes, r.status)
	}
	assert.Equal(t, []int{401, 401, 429, 429, 429, 429, 429, 429, 429, 429}, codes,
		"rotating forwarding headers does not reset the lockout")
}

func TestSignIn_TrustedProxyKeysOnForwardedFor(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, WithTrustedProxy())
	signUp(t, ts, "carol@example.com")

	signIn := func(ip, pwd string) int {
		hdr := http.Header{}
		hdr.Set("X-Forwarded-For", ip)
		r, err := send(ts, http.MethodPost, "/api/auth/signin", "",
			convert.Credentials{Email: "carol@example.com", Password: pwd}, hdr)
		require.NoError(t, err)
		return r.status
	}
	for i := 0; i < 4; i++ {
		signIn("203.0.113.7", "nope")
	}
	assert.Equal(t, http.StatusTooManyRequests, signIn("203.0.113.7", "pwd"))
	assert.Equal(t, http.StatusOK, signIn("198.51.100.2", "pwd"), "another client behind the proxy is not blocked")
}

func TestProtectedRoutesNeedBearer(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	for _, rt := range []struct{ method, path string }{
		{http.MethodGet, "/api/notes"},
		{http.MethodPost, "/api/notes"},
		{http.MethodPut, "/api/notes"},
		{http.MethodDelete, "/api/notes?id=x"},
		{http.MethodPost, "/api/auth/signout"},
	} {
		r := call(t, ts, rt.method, rt.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, r.status, rt.path)
		r = call(t, ts, rt.method, rt.path, "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, r.status, rt.path)
	}
}

func TestNotesCRUD(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	tok := signUp(t, ts, "a@example.com").Token

	r := call(t, ts, http.MethodGet, "/api/notes", tok, nil)
	require.Equal(t, http.StatusOK, r.status)
	assert.JSONEq(t, `[]`, string(r.body))

	r = call(t, ts, http.MethodPost, "/api/notes", tok, convert.CreateNote{Content: "no title"})
	assert.Equal(t, http.StatusBadRequest, r.status)

	before := time.Now().Add(-time.Second)
	n := createNote(t, ts, tok, "first", "body")
	assert.False(t, n.Shared)
	assert.EqualValues(t, 1, n.Version)
	assert.False(t, n.CreatedAt.Before(before))

	r = call(t, ts, http.MethodGet, "/api/notes", tok, nil)
	var list []convert.Note
	r.decode(t, &list)
	require.Len(t, list, 1)
	assert.Equal(t, n.ID, list[0].ID)

	title := "renamed"
	r = call(t, ts, http.MethodPut, "/api/notes", tok, convert.UpdateNote{ID: n.ID, Title: &title})
	require.Equal(t, http.StatusOK, r.status, string(r.body))
	var upd convert.Note
	r.decode(t, &upd)
	assert.Equal(t, "renamed", upd.Title)
	assert.Equal(t, "body", upd.Content)
	assert.EqualValues(t, 2, upd.Version)

	stale := int64(1)
	r = call(t, ts, http.MethodPut, "/api/notes", tok, convert.UpdateNote{ID: n.ID, Title: &title, Version: &stale})
	assert.Equal(t, http.StatusConflict, r.status)

	r = call(t, ts, http.MethodPut, "/api/notes", tok, convert.UpdateNote{Title: &title})
	assert.Equal(t, http.StatusBadRequest, r.status, "id is required")

	r = call(t, ts, http.MethodDelete, "/api/notes", tok, nil)
	assert.Equal(t, http.StatusBadRequest, r.status)

	r = call(t, ts, http.MethodDelete, "/api/notes?id="+n.ID, tok, nil)
	assert.Equal(t, http.StatusNoContent, r.status)

	r = call(t, ts, http.MethodGet, "/api/notes", tok, nil)
	assert.JSONEq(t, `[]`, string(r.body))

	r = call(t, ts, http.MethodPut, "/api/notes", tok, convert.UpdateNote{ID: n.ID, Title: &title})
	assert.Equal(t, http.StatusNotFound, r.status)
}

func TestNotes_OwnerIsolation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	alice := signUp(t, ts, "alice@example.com")
	bob := signUp(t, ts, "bob@example.com")
	n := createNote(t, ts, alice.Token, "mine", "secret")

	r := call(t, ts, http.MethodGet, "/api/notes", bob.Token, nil)
	assert.JSONEq(t, `[]`, string(r.body))

	r = call(t, ts, http.MethodGet, "/api/notes?userId="+alice.User.ID, bob.Token, nil)
	assert.Equal(t, http.StatusForbidden, r.status)
	r = call(t, ts, http.MethodGet, "/api/notes?userId="+bob.User.ID, bob.Token, nil)
	assert.Equal(t, http.StatusOK, r.status)
	r = call(t, ts, http.MethodPost, "/api/notes", bob.Token, convert.CreateNote{Title: "x", UserID: alice.User.ID})
	assert.Equal(t, http.StatusForbidden, r.status)

	title := "pwned"
	r = call(t, ts, http.MethodPut, "/api/notes", bob.Token, convert.UpdateNote{ID: n.ID, Title: &title})
	assert.Equal(t, http.StatusNotFound, r.status)

	r = call(t, ts, http.MethodDelete, "/api/notes?id="+n.ID, bob.Token, nil)
	assert.Equal(t, http.StatusNoContent, r.status, "foreign delete is a no-op")

	r = call(t, ts, http.MethodGet, "/api/notes/"+n.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, r.status, "private note is not public")

	r = call(t, ts, http.MethodGet, "/api/notes", alice.Token, nil)
	var list []convert.Note
	r.decode(t, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "mine", list[0].Title)
}

func TestSharing(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	tok := signUp(t, ts, "a@example.com").Token
	n := createNote(t, ts, tok, "Shared <b>title</b>", "# Hi\n<script>alert(1)</script>**x**")

	r := call(t, ts, http.MethodPut, "/api/notes/"+n.ID, tok, `{"shared":"true"}`)
	assert.Equal(t, http.StatusBadRequest, r.status, "string is not a boolean")
	r = call(t, ts, http.MethodPut, "/api/notes/not-a-uuid", tok, `{"shared":true}`)
	assert.Equal(t, http.StatusBadRequest, r.status)

	r = call(t, ts, http.MethodPut, "/api/notes/"+n.ID, tok, `{"shared":true}`)
	require.Equal(t, http.StatusOK, r.status, string(r.body))
	var sn convert.SharedNote
	r.decode(t, &sn)
	assert.True(t, sn.Note.Shared)
	assert.Equal(t, "https://notes.example/share/"+n.ID, sn.ShareURL)

	r = call(t, ts, http.MethodGet, "/api/notes/"+n.ID, "", nil)
	require.Equal(t, http.StatusOK, r.status)

	r = call(t, ts, http.MethodGet, "/api/notes/"+n.ID+"/html", "", nil)
	require.Equal(t, http.StatusOK, r.status)
	var rn convert.RenderedNote
	r.decode(t, &rn)
	assert.Contains(t, rn.HTML, "<h1>Hi</h1>")
	assert.Contains(t, rn.HTML, "<strong>x</strong>")
	assert.NotContains(t, rn.HTML, "<script")

	r = call(t, ts, http.MethodGet, "/share/"+n.ID, "", nil)
	require.Equal(t, http.StatusOK, r.status)
	assert.True(t, strings.HasPrefix(r.header.Get("Content-Type"), "text/html"))
	page := string(r.body)
	assert.Contains(t, page, "Shared &lt;b&gt;title&lt;/b&gt;", "title is escaped")
	assert.Contains(t, page, "<h1>Hi</h1>")
	assert.NotContains(t, page, "<script")

	r = call(t, ts, http.MethodPost, "/api/notes/"+n.ID+"/share/toggle", tok, nil)
	require.Equal(t, http.StatusOK, r.status)
	r.decode(t, &sn)
	assert.False(t, sn.Note.Shared)

	for _, p := range []string{"/api/notes/" + n.ID, "/api/notes/" + n.ID + "/html", "/share/" + n.ID, "/share/garbage"} {
		r = call(t, ts, http.MethodGet, p, "", nil)
		assert.Equal(t, http.StatusNotFound, r.status, p)
	}
}

func TestRenderPreview(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	r := call(t, ts, http.MethodPost, "/api/render", "", convert.RenderRequest{Content: "**bold** and *italic* <img src=x onerror=alert(1)>"})
	require.Equal(t, http.StatusOK, r.status)
	var out struct {
		HTML string `json:"html"`
	}
	r.decode(t, &out)
	assert.Contains(t, out.HTML, "<strong>bold</strong> and <em>italic</em>")
	assert.NotContains(t, out.HTML, "onerror")
}

func TestConcurrentPut_SameVersion_OneWins(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	tok := signUp(t, ts, "a@example.com").Token
	n := createNote(t, ts, tok, "t", "start")

	const workers = 6
	base := int64(1)
	var wg sync.WaitGroup
	statuses := make([]int, workers)
	sendErrs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			content := fmt.Sprintf("writer-%d", i)
			r, err := send(ts, http.MethodPut, "/api/notes", tok,
				convert.UpdateNote{ID: n.ID, Content: &content, Version: &base}, nil)
			statuses[i], sendErrs[i] = r.status, err
		}(i)
	}
	wg.Wait()
	for _, err := range sendErrs {
		require.NoError(t, err)
	}

	winner := -1
	for i, st := range statuses {
		switch st {
		case http.StatusOK:
			require.Equal(t, -1, winner, "more than one writer succeeded")
			winner = i
		default:
			assert.Equal(t, http.StatusConflict, st)
		}
	}
	require.NotEqual(t, -1, winner)

	r := call(t, ts, http.MethodGet, "/api/notes", tok, nil)
	var list []convert.Note
	r.decode(t, &list)
	require.Len(t, list, 1)
	assert.Equal(t, fmt.Sprintf("writer-%d", winner), list[0].Content)
	assert.EqualValues(t, 2, list[0].Version)
}

func TestConcurrentPut_NoVersion_NotTorn(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	tok := signUp(t, ts, "a@example.com").Token
	n := createNote(t, ts, tok, "t", "start")

	const workers = 6
	var wg sync.WaitGroup
	results := make([]apiResp, workers)
	sendErrs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			title, content := fmt.Sprintf("title-%d", i), fmt.Sprintf("content-%d", i)
			results[i], sendErrs[i] = send(ts, http.MethodPut, "/api/notes", tok,
				convert.UpdateNote{ID: n.ID, Title: &title, Content: &content}, nil)
		}(i)
	}
	wg.Wait()
	for i := range results {
		require.NoError(t, sendErrs[i])
		assert.Equal(t, http.StatusOK, results[i].status, string(results[i].body))
	}

	r := call(t, ts, http.MethodGet, "/api/notes", tok, nil)
	var list []convert.Note
	r.decode(t, &list)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, strings.TrimPrefix(got.Title, "title-"), strings.TrimPrefix(got.Content, "content-"),
		"title and content come from the same writer")
	assert.EqualValues(t, 1+workers, got.Version)
}

func TestUnknownRoute(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	r := call(t, ts, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, r.status)
	r = call(t, ts, http.MethodPatch, "/api/notes", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, r.status)
}
