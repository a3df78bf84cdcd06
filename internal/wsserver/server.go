package wsserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/park285/Cheese-LiveBoard/internal/archive"
	"github.com/park285/Cheese-LiveBoard/internal/domain"
	"github.com/park285/Cheese-LiveBoard/internal/obslog"
	"github.com/park285/Cheese-LiveBoard/pkg/boarddto"
)

const (
	timeout = 10 * time.Second
	qrSize  = 320
)

// Server wires the hub and the read-only HTTP routes.
type Server struct {
	Hub       *Hub
	Session   Session
	Archive   archive.Repository
	Version   string
	PublicURL string
}

func securityHeaders(w http.ResponseWriter) {
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	mux := httprouter.New()
	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		obslog.L().Error("http_panic", zap.String("path", r.URL.Path), zap.Any("panic", v))
		writeJSON(w, http.StatusInternalServerError, boarddto.DomainError{Code: "internal", Message: "internal error"})
	}

	mux.GET("/ws", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		s.Hub.ServeWS(w, r)
	})
	mux.GET("/healthz", s.serveHealthCheck)
	mux.GET("/version", s.serveVersion)
	mux.GET("/state", s.serveState)
	mux.GET("/matches", s.serveMatches)
	mux.GET("/qr", s.serveQR)
	return mux
}

func (s *Server) serveHealthCheck(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	securityHeaders(w)
	_, _ = w.Write([]byte("Ok\n"))
}

func (s *Server) serveVersion(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	securityHeaders(w)
	_, _ = w.Write([]byte("liveboard v" + s.Version + "\n"))
}

func (s *Server) serveState(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.Session.Snapshot())
}

func (s *Server) serveMatches(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit := archive.DefaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			writeJSON(w, http.StatusBadRequest, boarddto.DomainError{Code: "bad_limit", Message: "limit must be 1-200"})
			return
		}
		limit = n
	}
	if s.Archive == nil {
		writeJSON(w, http.StatusOK, []boarddto.MatchSummary{})
		return
	}
	recs, err := s.Archive.Recent(r.Context(), limit)
	if err != nil {
		obslog.L().Error("http_matches_error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, boarddto.DomainError{Code: "archive_unavailable"})
		return
	}
	out := make([]boarddto.MatchSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, summarize(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func summarize(rec *domain.MatchRecord) boarddto.MatchSummary {
	return boarddto.MatchSummary{
		MatchID:  rec.MatchID,
		Result:   rec.Result,
		Method:   rec.Method,
		Moves:    len(rec.MovesUCI),
		PGN:      rec.PGN,
		EndedAt:  rec.EndedAt,
		Duration: rec.Duration().Round(time.Second).String(),
	}
}

// serveQR encodes the board URL, taken from PUBLIC_URL or derived from the request.
func (s *Server) serveQR(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	target := s.PublicURL
	if target == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		target = scheme + "://" + r.Host + "/"
	}
	png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	securityHeaders(w)
	_, _ = w.Write(png)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(w)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe runs the HTTP server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, bind string, port int) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(strings.TrimSpace(bind), strconv.Itoa(port)),
		Handler:           s.Handler(),
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		obslog.L().Info("http_listen", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	if s.Hub != nil {
		s.Hub.CloseAll("server shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
