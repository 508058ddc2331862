package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/google/uuid"

	"github.com/githubphadnis/xta/internal/common"
	"github.com/githubphadnis/xta/internal/entity"
	"github.com/githubphadnis/xta/internal/repository"
)

// Importer runs one file through the import flow.
type Importer interface {
	ImportFile(ctx context.Context, filename string, contents []byte) (*entity.ImportBatch, error)
}

// ExpenseReader answers ledger queries.
type ExpenseReader interface {
	List(ctx context.Context, f repository.ListFilter) ([]entity.Expense, error)
}

// BatchReader answers import-batch queries.
type BatchReader interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.ImportBatch, error)
	List(ctx context.Context, limit int) ([]entity.ImportBatch, error)
}

// Exporter renders the ledger as a downloadable file.
type Exporter interface {
	ExportXLSX(ctx context.Context, f repository.ListFilter) ([]byte, error)
	ExportCSV(ctx context.Context, f repository.ListFilter) ([]byte, error)
}

// Server is the HTTP surface over the import and query services.
type Server struct {
	router      *chi.Mux
	importer    Importer
	expenses    ExpenseReader
	batches     BatchReader
	exporter    Exporter
	healthCheck func(ctx context.Context) error
	maxUpload   int64
	logger      *slog.Logger
}

func New(importer Importer, expenses ExpenseReader, batches BatchReader, exporter Exporter,
	healthCheck func(ctx context.Context) error, maxUpload int64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:      chi.NewRouter(),
		importer:    importer,
		expenses:    expenses,
		batches:     batches,
		exporter:    exporter,
		healthCheck: healthCheck,
		maxUpload:   maxUpload,
		logger:      logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(s.propagateRequestID)
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/imports", s.handleImport)
		r.Get("/imports", s.handleListBatches)
		r.Get("/imports/{id}", s.handleGetBatch)
		r.Get("/expenses", s.handleListExpenses)
		r.Get("/expenses/export", s.handleExport)
	})
}

// propagateRequestID copies chi's request ID into our context so downstream
// provider calls log the same id.
func (s *Server) propagateRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimiddleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(common.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe blocks until ctx is canceled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		s.logger.Info("server.shutdown")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("server.write_failed", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorBody{Error: msg})
}
