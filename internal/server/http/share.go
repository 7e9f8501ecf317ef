package httpserver

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/notekeeper/internal/errs"
	"github.com/and161185/notekeeper/internal/markdown"
)

var sharePageTmpl = template.Must(template.New("share").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
<article>
<h1>{{.Title}}</h1>
<div class="note-body">{{.Body}}</div>
</article>
</body>
</html>
`))

type sharePageData struct {
	Title string
	// Body is already sanitized by markdown.ToHTML.
	Body template.HTML
}

// sharePage serves the read-only public view of a shared note.
func (s *Server) sharePage(w http.ResponseWriter, r *http.Request) {
	n, err := s.sharedByParam(r)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errs.ErrNotFound) {
			status = http.StatusNotFound
		} else {
			s.log.Error("share page", zap.Error(err))
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	var buf bytes.Buffer
	page := sharePageData{Title: n.Title, Body: template.HTML(markdown.ToHTML(n.Content))} //nolint:gosec // sanitized by ToHTML
	if err := sharePageTmpl.Execute(&buf, page); err != nil {
		s.log.Error("share page render", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	_, _ = buf.WriteTo(w)
}
