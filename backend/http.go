package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "gopkg.in/inconshreveable/log15.v2"
)

type apiHandler struct {
	repo    Repository
	runner  *Runner
	fetcher Fetcher
	logger  log.Logger
}

func NewAPIHandler(repo Repository, runner *Runner, fetcher Fetcher, logger log.Logger) http.Handler {
	h := &apiHandler{repo: repo, runner: runner, fetcher: fetcher, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/subscriptions", h.getSubscriptions)
	r.Post("/subscriptions", h.createSubscription)
	r.Post("/runs", h.createRun)

	return r
}

func (h *apiHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, req)
		h.logger.Info("http request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (h *apiHandler) getSubscriptions(w http.ResponseWriter, req *http.Request) {
	feeds, err := h.repo.GetMonitoredFeeds(req.Context())
	if err != nil {
		h.logger.Error("GetMonitoredFeeds failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if feeds == nil {
		feeds = []MonitoredFeed{}
	}

	h.writeJSON(w, http.StatusOK, feeds)
}

func (h *apiHandler) createSubscription(w http.ResponseWriter, req *http.Request) {
	var sub struct {
		URL  string `json:"url"`
		Kind string `json:"kind"`
	}

	if err := json.NewDecoder(req.Body).Decode(&sub); err != nil {
		w.WriteHeader(422)
		fmt.Fprintf(w, "Error decoding request: %v", err)
		return
	}

	sub.URL = strings.TrimSpace(sub.URL)
	if sub.URL == "" {
		w.WriteHeader(422)
		fmt.Fprintln(w, `Request must include the attribute "url"`)
		return
	}

	var kind FeedKind
	var err error
	if sub.Kind == "" {
		kind, err = DetectKind(req.Context(), h.fetcher, sub.URL)
		if err != nil {
			w.WriteHeader(422)
			fmt.Fprintf(w, "Unable to detect feed kind: %v", err)
			return
		}
	} else {
		kind, err = ParseFeedKind(sub.Kind)
		if err != nil {
			w.WriteHeader(422)
			fmt.Fprintln(w, err)
			return
		}
	}

	id, err := h.repo.AddSub(req.Context(), sub.URL, kind)
	if err != nil {
		var dupErr DuplicationError
		if errors.As(err, &dupErr) {
			w.WriteHeader(http.StatusConflict)
			fmt.Fprintf(w, `"%s" is already taken`, dupErr.Field)
			return
		}
		h.logger.Error("AddSub failed", "url", sub.URL, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, MonitoredFeed{ID: id, URL: sub.URL, Kind: kind})
}

func (h *apiHandler) createRun(w http.ResponseWriter, req *http.Request) {
	var opts RunOptions
	if s := req.URL.Query().Get("dry_run"); s != "" {
		dryRun, err := strconv.ParseBool(s)
		if err != nil {
			w.WriteHeader(422)
			fmt.Fprintf(w, "Bad dry_run: %v", err)
			return
		}
		opts.DryRun = dryRun
	}

	updates, err := h.runner.Run(req.Context(), opts)
	if err != nil {
		h.logger.Error("run failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if updates == nil {
		updates = []Update{}
	}

	h.writeJSON(w, http.StatusOK, updates)
}

func (h *apiHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Encode response failed", "error", err)
	}
}
