package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/uuid"

	"github.com/githubphadnis/xta/constants"
	"github.com/githubphadnis/xta/internal/common"
	"github.com/githubphadnis/xta/internal/repository"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthCheck != nil {
		if err := s.healthCheck(r.Context()); err != nil {
			s.logger.Error("server.health.failed", "error", err)
			s.writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleImport accepts one multipart upload under the "file" field and
// runs it through the import flow. The response carries the batch record
// either way; the status code reflects the outcome.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.logger.Error("server.import.bad_upload", "error", err)
		s.writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	batch, err := s.importer.ImportFile(r.Context(), header.Filename, contents)
	if err != nil {
		if batch == nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, common.ErrUnsupportedFormat):
			status = http.StatusUnsupportedMediaType
		case batch.Status == constants.BatchStatusFailed:
			status = http.StatusInternalServerError
		}
		s.writeJSON(w, status, batch)
		return
	}
	s.writeJSON(w, http.StatusCreated, batch)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid batch id")
		return
	}
	batch, err := s.batches.Get(r.Context(), id)
	if errors.Is(err, common.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	if err != nil {
		s.logger.Error("server.batch.get_failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	batches, err := s.batches.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("server.batch.list_failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, batches)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.expenses.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("server.expense.list_failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

// handleExport streams the ledger window as XLSX (default) or CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "xlsx":
		out, err := s.exporter.ExportXLSX(r.Context(), filter)
		if err != nil {
			s.logger.Error("server.export.failed", "format", "xlsx", "error", err)
			s.writeError(w, http.StatusInternalServerError, "export failed")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="expenses.xlsx"`)
		_, _ = w.Write(out)
	case "csv":
		out, err := s.exporter.ExportCSV(r.Context(), filter)
		if err != nil {
			s.logger.Error("server.export.failed", "format", "csv", "error", err)
			s.writeError(w, http.StatusInternalServerError, "export failed")
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="expenses.csv"`)
		_, _ = w.Write(out)
	default:
		s.writeError(w, http.StatusBadRequest, "format must be xlsx or csv")
	}
}

func filterFromQuery(r *http.Request) (repository.ListFilter, error) {
	var f repository.ListFilter
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, errors.New("from must be YYYY-MM-DD")
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return f, errors.New("to must be YYYY-MM-DD")
		}
		f.To = t
	}
	f.Category = q.Get("category")
	f.Vendor = q.Get("vendor")
	return f, nil
}
