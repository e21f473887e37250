// Package api exposes the report service over HTTP: submission, lookup by
// code, email delivery, and the admin listing/export surface.
package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/itsupport/csreport/internal/export"
	"github.com/itsupport/csreport/internal/mail"
	"github.com/itsupport/csreport/internal/report"
	"github.com/itsupport/csreport/internal/storage"
)

// Route paths, shared with the CLI client.
const (
	SubmitPath       = "/api/submit"
	QueryPath        = "/api/query"
	EmailPath        = "/api/email"
	AdminReportsPath = "/api/admin/reports"
	AdminExportPath  = "/api/admin/export"
)

const maxSubmitBodySize = 1 << 20 // 1MB
const maxEmailBodySize = 20 << 20 // 20MB, attachments arrive base64-encoded

// MailSender abstracts the SMTP relay for the API layer.
type MailSender interface {
	Send(msg mail.Message) error
}

type Deps struct {
	Service *report.Service
	Store   *storage.Store
	Mail    MailSender // optional; if nil, the email endpoint reports unavailable
	Version string
	Now     func() time.Time // defaults to time.Now
}

func NewHandler(deps Deps) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/", handleHealth(deps))
	r.Get("/health", handleHealth(deps))
	r.Post(SubmitPath, handleSubmit(deps))
	r.Get(QueryPath, handleQuery(deps))
	r.Post(EmailPath, handleEmail(deps))
	r.Get(AdminReportsPath, handleAdminReports(deps))
	r.Get(AdminExportPath, handleAdminExport(deps))

	return r
}

// corsMiddleware allows browser form frontends on other origins to reach the
// API and short-circuits preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"message":   "customer visit report service",
			"version":   deps.Version,
			"timestamp": deps.Now().UTC().Format(time.RFC3339),
		})
	}
}

func handleSubmit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxSubmitBodySize)
		defer r.Body.Close()

		var sub report.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}

		code, err := deps.Service.Submit(r.Context(), sub)
		if err != nil {
			var missing *report.MissingFieldError
			switch {
			case errors.As(err, &missing):
				respondError(w, http.StatusBadRequest, "%s", missing.Error())
			case errors.Is(err, report.ErrInvalidCode):
				respondError(w, http.StatusBadRequest, "custom query code must be 6-12 uppercase letters or digits")
			case errors.Is(err, report.ErrCodeTaken):
				respondError(w, http.StatusConflict, "the requested query code is already in use")
			case errors.Is(err, report.ErrAllocationExhausted):
				slog.Error("submit failed", "error", err)
				respondError(w, http.StatusInternalServerError, "could not allocate a unique query code")
			default:
				slog.Error("submit failed", "error", err)
				respondError(w, http.StatusInternalServerError, "failed to save report")
			}
			return
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"queryCode": code,
			"message":   "report submitted successfully",
		})
	}
}

func handleQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")

		rec, err := deps.Service.Find(r.Context(), code)
		if err != nil {
			switch {
			case errors.Is(err, report.ErrEmptyCode):
				respondError(w, http.StatusBadRequest, "query code is required")
			case errors.Is(err, report.ErrNotFound):
				respondError(w, http.StatusNotFound, "no report found for that query code")
			default:
				slog.Error("query failed", "error", err)
				respondError(w, http.StatusInternalServerError, "failed to look up report")
			}
			return
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    rec,
			"message": "report found",
		})
	}
}

// EmailRequest asks the server to mail the report identified by Code to the
// given recipient, optionally attaching a caller-rendered PDF.
type EmailRequest struct {
	To   string `json:"to"`
	Code string `json:"code"`
	PDF  string `json:"pdf,omitempty"` // base64-encoded
}

func handleEmail(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxEmailBodySize)
		defer r.Body.Close()

		if deps.Mail == nil {
			respondError(w, http.StatusServiceUnavailable, "email delivery is not configured")
			return
		}

		var req EmailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if !mail.ValidAddress(req.To) {
			respondError(w, http.StatusBadRequest, "invalid recipient address")
			return
		}

		rec, err := deps.Service.Find(r.Context(), req.Code)
		if err != nil {
			switch {
			case errors.Is(err, report.ErrEmptyCode):
				respondError(w, http.StatusBadRequest, "query code is required")
			case errors.Is(err, report.ErrNotFound):
				respondError(w, http.StatusNotFound, "no report found for that query code")
			default:
				slog.Error("email lookup failed", "error", err)
				respondError(w, http.StatusInternalServerError, "failed to look up report")
			}
			return
		}

		var attachment []byte
		if req.PDF != "" {
			attachment, err = base64.StdEncoding.DecodeString(req.PDF)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid base64 pdf attachment")
				return
			}
			if !mail.ValidPDF(attachment) {
				respondError(w, http.StatusBadRequest, "attachment is not a readable pdf")
				return
			}
		}

		body, err := mail.BodyHTML(rec)
		if err != nil {
			slog.Error("email render failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to render email")
			return
		}

		msg := mail.Message{
			To:      req.To,
			Subject: mail.Subject(rec),
			HTML:    body,
		}
		if attachment != nil {
			msg.AttachmentName = fmt.Sprintf("visit-report-%s.pdf", rec.LookupCode)
			msg.Attachment = attachment
		}

		sendErr := deps.Mail.Send(msg)
		logEmailAttempt(r, deps, rec.ID, req.To, sendErr)
		if sendErr != nil {
			slog.Error("email send failed", "recipient", req.To, "error", sendErr)
			respondError(w, http.StatusBadGateway, "failed to send email")
			return
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "email sent",
		})
	}
}

// logEmailAttempt records every delivery attempt, sent or failed. Logging
// failures never mask the send result.
func logEmailAttempt(r *http.Request, deps Deps, reportID, recipient string, sendErr error) {
	status := "sent"
	if sendErr != nil {
		status = "failed"
	}
	l := storage.EmailLog{
		ID:        uuid.New().String(),
		ReportID:  reportID,
		Recipient: recipient,
		SentAt:    deps.Now().UTC(),
		Status:    status,
	}
	if err := deps.Store.SaveEmailLog(r.Context(), l); err != nil {
		slog.Error("failed to record email attempt", "error", err)
	}
}

func handleAdminReports(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := deps.Store.ListReports(r.Context())
		if err != nil {
			slog.Error("list reports failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to list reports")
			return
		}
		if reports == nil {
			reports = []storage.Report{}
		}

		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    reports,
			"stats":   computeStats(reports, deps.Now().UTC()),
		})
	}
}

// Stats summarizes submission volume for the admin listing.
type Stats struct {
	Total     int `json:"total"`
	Today     int `json:"today"`
	ThisWeek  int `json:"thisWeek"`
	ThisMonth int `json:"thisMonth"`
}

func computeStats(reports []storage.Report, now time.Time) Stats {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := dayStart.AddDate(0, 0, -int((dayStart.Weekday()+6)%7)) // Monday
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	st := Stats{Total: len(reports)}
	for _, r := range reports {
		created := r.CreatedAt.UTC()
		if !created.Before(dayStart) {
			st.Today++
		}
		if !created.Before(weekStart) {
			st.ThisWeek++
		}
		if !created.Before(monthStart) {
			st.ThisMonth++
		}
	}
	return st
}

func handleAdminExport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reports, err := deps.Store.ListReports(r.Context())
		if err != nil {
			slog.Error("export failed", "error", err)
			respondError(w, http.StatusInternalServerError, "failed to export reports")
			return
		}

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", export.Filename(deps.Now().UTC())))
		if err := export.WriteCSV(w, reports); err != nil {
			slog.Error("export write failed", "error", err)
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, format string, args ...any) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"message": fmt.Sprintf(format, args...),
	})
}
