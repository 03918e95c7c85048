package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/newsjacker/internal/brief"
	"github.com/TobiSchelling/newsjacker/internal/database"
	"github.com/TobiSchelling/newsjacker/internal/logging"
	"github.com/TobiSchelling/newsjacker/internal/metrics"
	"github.com/TobiSchelling/newsjacker/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Trigger runs a manual search for one owner.
type Trigger interface {
	RunManual(ctx context.Context, ownerID string) (*pipeline.CycleReport, error)
}

// Writer generates briefs and articles.
type Writer interface {
	GenerateBriefs(ctx context.Context, ownerID string, ids []int64, emotion string) ([]brief.Result, error)
	GenerateArticle(ctx context.Context, ownerID string, id int64) (*database.Article, error)
}

// Server is the HTTP dashboard for opportunities and articles.
type Server struct {
	db      *database.DB
	trigger Trigger
	writer  Writer
	pages   map[string]*template.Template
	mux     *http.ServeMux
}

// New creates a new Server. A nil trigger or writer disables the matching
// actions.
func New(db *database.DB, trigger Trigger, writer Writer) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so {{define "content"}} does not collide.
	pageNames := []string{"index.html", "article.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, trigger: trigger, writer: writer, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return metrics.Middleware(s.mux)
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	s.mux.Handle("GET /metrics", metrics.Handler())

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /search", s.handleSearch)
	s.mux.HandleFunc("POST /clear", s.handleClear)
	s.mux.HandleFunc("POST /opportunities/{id}/dismiss", s.handleDismiss)
	s.mux.HandleFunc("POST /opportunities/{id}/brief", s.handleBrief)
	s.mux.HandleFunc("POST /opportunities/{id}/article", s.handleArticle)
	s.mux.HandleFunc("GET /articles/{id}", s.handleShowArticle)
	s.mux.HandleFunc("POST /articles/{id}/publish", s.handlePublish)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner"))
	data := map[string]any{"Owner": owner}

	if owner == "" {
		stats, err := s.db.GetStats()
		if err != nil {
			s.serverError(w, err)
			return
		}
		data["Stats"] = stats
		s.render(w, "index.html", data)
		return
	}

	trendingOnly := r.URL.Query().Get("trending") == "1"
	opps, err := s.db.ListOpportunities(owner, database.OpportunityFilter{TrendingOnly: trendingOnly, Limit: 50})
	if err != nil {
		s.serverError(w, err)
		return
	}
	set, err := s.db.GetActiveSearchTermSet(owner)
	if err != nil {
		logging.Warn("loading active terms", "owner", owner, "error", err)
	}
	articles, err := s.db.ListArticles(owner)
	if err != nil {
		logging.Warn("loading articles", "owner", owner, "error", err)
	}
	lastRun, err := s.db.GetLatestCycleRun()
	if err != nil {
		logging.Warn("loading last cycle run", "error", err)
	}

	data["Opportunities"] = opps
	data["TrendingOnly"] = trendingOnly
	data["Emotions"] = brief.Emotions
	data["Articles"] = articles
	if set != nil {
		data["TermSet"] = set
	}
	if lastRun != nil {
		data["LastRun"] = lastRun
	}
	s.render(w, "index.html", data)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	if s.trigger == nil {
		http.Error(w, "Search is not configured", http.StatusServiceUnavailable)
		return
	}

	report, err := s.trigger.RunManual(r.Context(), owner)
	if err != nil {
		s.serverError(w, err)
		return
	}
	logging.Info("manual search from dashboard", "owner", owner, "summary", report.Summary())
	redirectOwner(w, r, owner, "")
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	n, err := s.db.ClearOpportunities(owner)
	if err != nil {
		s.serverError(w, err)
		return
	}
	logging.Info("opportunities cleared", "owner", owner, "deleted", n)
	redirectOwner(w, r, owner, "")
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := ownerAndID(w, r)
	if !ok {
		return
	}
	if err := s.db.DismissOpportunity(owner, id); err != nil {
		s.lookupError(w, r, err)
		return
	}
	redirectOwner(w, r, owner, "")
}

func (s *Server) handleBrief(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := ownerAndID(w, r)
	if !ok {
		return
	}
	if s.writer == nil {
		http.Error(w, "No LLM provider configured", http.StatusServiceUnavailable)
		return
	}

	results, err := s.writer.GenerateBriefs(r.Context(), owner, []int64{id}, r.FormValue("emotion"))
	if err != nil {
		s.serverError(w, err)
		return
	}
	if len(results) == 1 && results[0].Err != nil {
		s.lookupError(w, r, results[0].Err)
		return
	}
	redirectOwner(w, r, owner, fmt.Sprintf("opp-%d", id))
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := ownerAndID(w, r)
	if !ok {
		return
	}
	if s.writer == nil {
		http.Error(w, "No LLM provider configured", http.StatusServiceUnavailable)
		return
	}

	article, err := s.writer.GenerateArticle(r.Context(), owner, id)
	if err != nil {
		s.lookupError(w, r, err)
		return
	}
	http.Redirect(w, r, articleURL(article.ID, owner), http.StatusFound)
}

func (s *Server) handleShowArticle(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := ownerAndID(w, r)
	if !ok {
		return
	}
	article, err := s.db.GetArticle(owner, id)
	if err != nil {
		s.lookupError(w, r, err)
		return
	}
	s.render(w, "article.html", map[string]any{"Owner": owner, "Article": article})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	owner, id, ok := ownerAndID(w, r)
	if !ok {
		return
	}
	if err := s.db.PublishArticle(owner, id); err != nil {
		s.lookupError(w, r, err)
		return
	}
	http.Redirect(w, r, articleURL(id, owner), http.StatusFound)
}

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner := strings.TrimSpace(r.FormValue("owner"))
	if owner == "" {
		http.Error(w, "owner is required", http.StatusBadRequest)
		return "", false
	}
	return owner, true
}

func ownerAndID(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return "", 0, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return "", 0, false
	}
	return owner, id, true
}

func redirectOwner(w http.ResponseWriter, r *http.Request, owner, anchor string) {
	target := "/?owner=" + url.QueryEscape(owner)
	if anchor != "" {
		target += "#" + anchor
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func articleURL(id int64, owner string) string {
	return fmt.Sprintf("/articles/%d?owner=%s", id, url.QueryEscape(owner))
}

func (s *Server) lookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, database.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	s.serverError(w, err)
}

func (s *Server) serverError(w http.ResponseWriter, err error) {
	logging.Error("request failed", "error", err)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		logging.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		logging.Error("rendering template", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve listens on 127.0.0.1:port until ctx is canceled.
func Serve(ctx context.Context, srv *Server, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- hs.ListenAndServe() }()
	logging.Info("server listening", "url", "http://"+addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}
