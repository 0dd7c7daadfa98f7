package releve

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

// ControlHandler builds the operator HTTP surface: /health open, then
// /status, /summary, /events, /items/{label}, /errors and POST
// /snapshot behind a bearer token. The token is bcrypt-hashed at
// construction so the plaintext never sits in the handler.
func (s *Service) ControlHandler(token string) (http.Handler, error) {
	if token == "" {
		return nil, errors.New("releve: control token required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok", "run_id": s.runID})
	})

	r.Group(func(r chi.Router) {
		r.Use(requireToken(hash))

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			st, err := s.Status(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, st)
		})

		r.Get("/summary", func(w http.ResponseWriter, r *http.Request) {
			sum, err := s.Summary(r.Context())
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, sum)
		})

		r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
			limit := queryInt(r, "limit", 50)
			events, err := s.Events(r.Context(), r.URL.Query().Get("label"), limit)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, events)
		})

		r.Get("/items/{label}", func(w http.ResponseWriter, r *http.Request) {
			// chi hands back the escaped path segment; "Nova%2012" must
			// look up "Nova 12".
			label := chi.URLParam(r, "label")
			if dec, err := url.PathUnescape(label); err == nil {
				label = dec
			}
			det, err := s.ItemDetail(r.Context(), label)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			if det == nil {
				writeJSON(w, 404, map[string]string{"error": "unknown item"})
				return
			}
			writeJSON(w, 200, det)
		})

		r.Get("/errors", func(w http.ResponseWriter, r *http.Request) {
			limit := queryInt(r, "limit", 100)
			items, err := s.ErroredItems(r.Context(), limit)
			if err != nil {
				writeError(w, 500, err)
				return
			}
			writeJSON(w, 200, items)
		})

		r.Post("/snapshot", func(w http.ResponseWriter, _ *http.Request) {
			ack := s.SnapshotNow()
			if ack.Error != "" {
				writeJSON(w, 409, ack)
				return
			}
			writeJSON(w, 200, ack)
		})
	})

	return r, nil
}

// ServeControl runs the operator surface on addr until ctx is
// cancelled, then shuts down draining in-flight requests.
func (s *Service) ServeControl(ctx context.Context, addr, token string) error {
	h, err := s.ControlHandler(token)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control surface listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// requireToken returns 401 JSON unless the bearer token matches hash.
func requireToken(hash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, prefix) {
				writeJSON(w, 401, map[string]string{"error": "missing bearer token"})
				return
			}
			if err := bcrypt.CompareHashAndPassword(hash, []byte(auth[len(prefix):])); err != nil {
				writeJSON(w, 401, map[string]string{"error": "bad token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
