package http

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"expensedash/internal/core"
	"expensedash/internal/dashboard"
	"expensedash/internal/dataset"
	"expensedash/internal/export"
	"expensedash/internal/receipts"

	"github.com/go-chi/chi"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view, err := s.ctrl.Dispatch(r.Context(), setFilter(ParseFilter(r.URL.Query())))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard.html", view, nil)
}

func (s *Server) handleDashboardPartial(w http.ResponseWriter, r *http.Request) {
	view, err := s.ctrl.Dispatch(r.Context(), setFilter(ParseFilter(r.URL.Query())))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard_body", view, nil)
}

// handleAddExpenseForm handles the htmx add form. A rejected submission
// re-renders the unchanged dashboard with the error shown.
func (s *Server) handleAddExpenseForm(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Malformed request").Write(w)
		return
	}

	view, err := s.ctrl.Dispatch(r.Context(), dashboard.AddExpense{Input: p.ExpenseInput(), Filter: p.Filter()})
	if err != nil && view.Mode == "" {
		s.renderError(w, r, err)
		return
	}
	resp := NewHTMXResponse()
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		logHandlerError(r, err, status)
		view.Error = userMessage(err)
		resp.TriggerErrorNotification(view.Error)
	} else {
		resp.TriggerFormReset().TriggerSuccessNotification(view.Notice)
	}
	s.render(w, r, status, "dashboard_body", view, resp)
}

func (s *Server) handleRemoveExpenseForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	view, err := s.ctrl.Dispatch(r.Context(), dashboard.RemoveExpense{ID: id, Filter: ParseFilter(r.URL.Query())})
	if err != nil && view.Mode == "" {
		s.renderError(w, r, err)
		return
	}
	resp := NewHTMXResponse()
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		logHandlerError(r, err, status)
		view.Error = userMessage(err)
		resp.TriggerErrorNotification(view.Error)
	} else {
		resp.TriggerExpenseRemoved(id).TriggerSuccessNotification(view.Notice)
	}
	s.render(w, r, status, "dashboard_body", view, resp)
}

func (s *Server) handleRefreshForm(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	view, err := s.ctrl.Dispatch(r.Context(), dashboard.Refresh{Filter: p.Filter()})
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard_body", view, NewHTMXResponse().TriggerDashboardRefresh())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	view, err := s.ctrl.Dispatch(r.Context(), setFilter(ParseFilter(r.URL.Query())))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, view.Rows); err != nil {
		s.renderError(w, r, core.E(core.KindInternal, "export", err))
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+view.Collection+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	view, err := s.ctrl.Dispatch(r.Context(), setFilter(ParseFilter(r.URL.Query())))
	if err != nil {
		writeJSONError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewJSON(view))
}

func (s *Server) handleAPIStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"collection":          s.ctrl.Collection(),
		"cache":               s.ctrl.CacheStats(),
		"rate_limit_hits":     s.metrics.rateLimitHits.Load(),
		"suspicious_requests": s.metrics.suspiciousRequests.Load(),
	})
}

func (s *Server) handleAPIAddExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Err(); err != nil {
		writeJSONError(w, r, core.E(core.KindValidation, "parse_body", err))
		return
	}
	id, err := s.ctrl.AddExpense(r.Context(), p.ExpenseInput())
	if err != nil {
		writeJSONError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleAPIRemoveExpense(w http.ResponseWriter, r *http.Request) {
	removed, err := s.ctrl.RemoveExpense(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeJSONError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) handleAPIRefresh(w http.ResponseWriter, r *http.Request) {
	view, err := s.ctrl.Dispatch(r.Context(), dashboard.Refresh{Filter: ParseFilter(r.URL.Query())})
	if err != nil {
		writeJSONError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toViewJSON(view))
}

func (s *Server) handleAPIUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 2*receipts.MaxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, r, core.Errorf(core.KindValidation, "upload_receipt", "multipart field \"file\" is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, receipts.MaxUploadBytes+1))
	if err != nil {
		writeJSONError(w, r, core.E(core.KindValidation, "upload_receipt", err))
		return
	}
	receipt, err := s.uploader.Upload(r.Context(), data)
	if err != nil {
		writeJSONError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

func setFilter(f dataset.Filter) dashboard.SetFilter {
	return dashboard.SetFilter{Category: f.Category, Month: f.Month}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, view dashboard.ViewState, resp *HTMXResponseBuilder) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, s.page(view)); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "component", "http", "template", name, "error", err)
		ErrorResponse(http.StatusInternalServerError, "Rendering failed").Write(w)
		return
	}
	if resp == nil {
		resp = NewHTMXResponse()
	}
	resp.Status(status).BodyHTML(buf.String()).Write(w)
}

// renderError reports a failure that left no view to render, typically an
// unreachable store.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logHandlerError(r, err, status)
	if status >= 500 {
		s.structured.LogError(r.Context(), "Dashboard unavailable", err, string(core.KindOf(err)), "http", strings.TrimPrefix(r.URL.Path, "/"))
	}
	ErrorResponse(status, userMessage(err)).Write(w)
}
