// Command nk is a CLI client for the notekeeper service.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/notekeeper/internal/convert"
)

// ---- config/token store ----

type tokenFile struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "notekeeper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "notekeeper")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{Token: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.Token == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (signin required)")
	}
	return tf.Token, nil
}

func dropToken() error {
	err := os.Remove(tokenPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// tokenExpiry prefers the server-reported expiry and falls back to the
// token's own exp claim.
func tokenExpiry(s convert.Session) time.Time {
	if !s.ExpiresAt.IsZero() {
		return s.ExpiresAt
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Now().Add(15 * time.Minute)
}

// ---- utils ----

func readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(p)
}

func printJSON(w io.Writer, v any) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `nk CLI
Usage:
  nk -addr URL [-cacert file | -insecure] <cmd> [args]

Commands:
  version
  signup   -email <email> -password <pwd>       (saves token)
  signin   -email <email> -password <pwd>       (saves token)
  signout
  list
  get      -id <uuid>
  add      -title <title> [-file <md>|-]
  edit     -id <uuid> [-title <title>] [-file <md>|-] [-base <ver>]
  rm       -id <uuid>
  share    -id <uuid> [-off]
  toggle   -id <uuid>
  shared   -id <uuid>                           (public, no token)
  render   -file <md>|-                         (sanitized HTML preview)
`)
}

var errUsage = errors.New("usage")

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands against the HTTP API.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout)
	if errors.Is(err, errUsage) {
		usage(os.Stderr)
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	// global flags
	gf := flag.NewFlagSet("nk", flag.ContinueOnError)
	addr := gf.String("addr", "http://localhost:8080", "server base URL")
	caPath := gf.String("cacert", "", "CA cert (PEM)")
	insecure := gf.Bool("insecure", false, "skip cert verify (dev)")
	gf.Usage = func() {}
	if err := gf.Parse(args); err != nil {
		return errUsage
	}
	if gf.NArg() < 1 {
		return errUsage
	}
	cmd, rest := gf.Arg(0), gf.Args()[1:]

	connect := func(withToken bool) (*client, error) {
		token := ""
		if withToken {
			t, err := loadToken()
			if err != nil {
				return nil, err
			}
			token = t
		}
		return newClient(*addr, *caPath, *insecure, token)
	}

	switch cmd {
	case "version":
		fmt.Fprintf(stdout, "nk %s (%s)\n", version, buildDate)
		return nil

	case "signup", "signin":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *email == "" || *password == "" {
			return errors.New("need -email and -password")
		}
		cl, err := connect(false)
		if err != nil {
			return err
		}
		var sess convert.Session
		if err := cl.do(ctx, http.MethodPost, "/api/auth/"+cmd, convert.Credentials{Email: *email, Password: *password}, &sess); err != nil {
			return err
		}
		if err := saveToken(sess.Token, tokenExpiry(sess)); err != nil {
			return err
		}
		printJSON(stdout, sess.User)
		return nil

	case "signout":
		cl, err := connect(true)
		if err != nil {
			return err
		}
		if err := cl.do(ctx, http.MethodPost, "/api/auth/signout", nil, nil); err != nil {
			return err
		}
		if err := dropToken(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
		return nil

	case "list":
		cl, err := connect(true)
		if err != nil {
			return err
		}
		var notes []convert.Note
		if err := cl.do(ctx, http.MethodGet, "/api/notes", nil, &notes); err != nil {
			return err
		}
		type row struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			Shared    bool   `json:"shared"`
			Version   int64  `json:"version"`
			UpdatedAt string `json:"updated_at"`
		}
		rows := make([]row, 0, len(notes))
		for _, n := range notes {
			rows = append(rows, row{n.ID, n.Title, n.Shared, n.Version, n.UpdatedAt.Format(time.RFC3339)})
		}
		printJSON(stdout, rows)
		return nil

	case "get":
		id, err := idFlag(cmd, rest)
		if err != nil {
			return err
		}
		cl, err := connect(true)
		if err != nil {
			return err
		}
		var notes []convert.Note
		if err := cl.do(ctx, http.MethodGet, "/api/notes", nil, &notes); err != nil {
			return err
		}
		for _, n := range notes {
			if n.ID == id {
				printJSON(stdout, n)
				return nil
			}
		}
		return &apiError{Status: http.StatusNotFound, Message: "not found"}

	case "add":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		title := fs.String("title", "", "note title")
		file := fs.String("file", "", "Markdown file ('-'=stdin)")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *title == "" {
			return errors.New("need -title")
		}
		content := ""
		if *file != "" {
			b, err := readAll(*file)
			if err != nil {
				return err
			}
			content = string(b)
		}
		cl, err := connect(true)
		if err != nil {
			return err
		}
		var n convert.Note
		if err := cl.do(ctx, http.MethodPost, "/api/notes", convert.CreateNote{Title: *title, Content: content}, &n); err != nil {
			return err
		}
		printJSON(stdout, n)
		return nil

	case "edit":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		id := fs.String("id", "", "note id (uuid)")
		title := fs.String("title", "", "new title")
		file := fs.String("file", "", "new Markdown content ('-'=stdin)")
		base := fs.Int64("base", 0, "expected current version")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *id == "" {
			return errors.New("need -id")
		}
		in := convert.UpdateNote{ID: *id}
		var ferr error
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "title":
				in.Title = title
			case "file":
				b, err := readAll(*file)
				if err != nil {
					ferr = err
					return
				}
				s := string(b)
				in.Content = &s
			case "base":
				in.Version = base
			}
		})
		if ferr != nil {
			return ferr
		}
		cl, err := connect(true)
		if err != nil {
			return err
		}
		var n convert.Note
		if err := cl.do(ctx, http.MethodPut, "/api/notes", in, &n); err != nil {
			return err
		}
		printJSON(stdout, n)
		return nil

	case "rm":
		id, err := idFlag(cmd, rest)
		if err != nil {
			return err
		}
		cl, err := connect(true)
		if err != nil {
			return err
		}
		if err := cl.do(ctx, http.MethodDelete, "/api/notes?id="+url.QueryEscape(id), nil, nil); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
		return nil

	case "share":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		id := fs.String("id", "", "note id (uuid)")
		off := fs.Bool("off", false, "stop sharing")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		if *id == "" {
			return errors.New("need -id")
		}
		cl, err := connect(true)
		if err != nil {
			return err
		}
		var out convert.SharedNote
		if err := cl.do(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(*id), map[string]bool{"shared": !*off}, &out); err != nil {
			return err
		}
		printJSON(stdout, out)
		return nil

	case "toggle":
		id, err := idFlag(cmd, rest)
		if err != nil {
			return err
		}
		cl, err := connect(true)
		if err != nil {
			return err
		}
		var out convert.SharedNote
		if err := cl.do(ctx, http.MethodPost, "/api/notes/"+url.PathEscape(id)+"/share/toggle", nil, &out); err != nil {
			return err
		}
		printJSON(stdout, out)
		return nil

	case "shared":
		id, err := idFlag(cmd, rest)
		if err != nil {
			return err
		}
		cl, err := connect(false)
		if err != nil {
			return err
		}
		var out convert.RenderedNote
		if err := cl.do(ctx, http.MethodGet, "/api/notes/"+url.PathEscape(id)+"/html", nil, &out); err != nil {
			return err
		}
		printJSON(stdout, out)
		return nil

	case "render":
		fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
		file := fs.String("file", "-", "Markdown file ('-'=stdin)")
		if err := fs.Parse(rest); err != nil {
			return errUsage
		}
		b, err := readAll(*file)
		if err != nil {
			return err
		}
		cl, err := connect(false)
		if err != nil {
			return err
		}
		var out struct {
			HTML string `json:"html"`
		}
		if err := cl.do(ctx, http.MethodPost, "/api/render", convert.RenderRequest{Content: string(b)}, &out); err != nil {
			return err
		}
		fmt.Fprintln(stdout, out.HTML)
		return nil

	default:
		return errUsage
	}
}

// ---- helpers ----

func idFlag(cmd string, args []string) (string, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	id := fs.String("id", "", "note id (uuid)")
	if err := fs.Parse(args); err != nil {
		return "", errUsage
	}
	if *id == "" {
		return "", errors.New("need -id")
	}
	return *id, nil
}

func fail(err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "api error: status=%d msg=%s\n", ae.Status, ae.Message)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
