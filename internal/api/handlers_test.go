package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/itsupport/csreport/internal/codegen"
	"github.com/itsupport/csreport/internal/mail"
	"github.com/itsupport/csreport/internal/report"
	"github.com/itsupport/csreport/internal/storage"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeSender struct {
	sent []mail.Message
	err  error
}

func (f *fakeSender) Send(msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestHandler(t *testing.T, sender MailSender) (http.Handler, *storage.Store) {
	t.Helper()

	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := report.NewService(store, codegen.NewSeeded(42))
	h := NewHandler(Deps{
		Service: svc,
		Store:   store,
		Mail:    sender,
		Version: "test",
		Now:     func() time.Time { return testNow },
	})
	return h, store
}

func validSubmission() map[string]any {
	return map[string]any{
		"companyName":   "Acme Trading Ltd",
		"address":       "12 Harbor Road",
		"contactPerson": "Li Wei",
		"mobile":        "13800138000",
		"companySize":   "50-100",
		"officeSize":    "200sqm",
		"mainBusiness":  "Import and export",
		"products":      "Electronics",
		"serviceNeeds":  "IT outsourcing",
	}
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Error("success should be true")
	}
	if body["version"] != "test" {
		t.Errorf("version = %v", body["version"])
	}
}

func TestSubmitGeneratesCode(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodPost, SubmitPath, validSubmission())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	code, _ := body["queryCode"].(string)
	if !regexp.MustCompile(`^[A-Z0-9]{8}$`).MatchString(code) {
		t.Errorf("queryCode = %q, want 8 uppercase alphanumerics", code)
	}
}

func TestSubmitCustomCode(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	sub := validSubmission()
	sub["customQueryCode"] = "myvisit1"

	rec := doJSON(t, h, http.MethodPost, SubmitPath, sub)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if code := decodeBody(t, rec)["queryCode"]; code != "MYVISIT1" {
		t.Errorf("queryCode = %v, want MYVISIT1", code)
	}

	// Second submission with the same code must be rejected.
	rec = doJSON(t, h, http.MethodPost, SubmitPath, sub)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate custom code status = %d, want 409", rec.Code)
	}
}

func TestSubmitMissingField(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	sub := validSubmission()
	delete(sub, "mobile")

	rec := doJSON(t, h, http.MethodPost, SubmitPath, sub)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if msg, _ := decodeBody(t, rec)["message"].(string); !strings.Contains(msg, "mobile") {
		t.Errorf("message = %q, want mention of mobile", msg)
	}
}

func TestSubmitInvalidCustomCode(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	sub := validSubmission()
	sub["customQueryCode"] = "ab!"

	rec := doJSON(t, h, http.MethodPost, SubmitPath, sub)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestQueryRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	sub := validSubmission()
	sub["customQueryCode"] = "ROUNDTRIP1"
	rec := doJSON(t, h, http.MethodPost, SubmitPath, sub)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d", rec.Code)
	}

	// Lowercase lookup should still resolve.
	rec = doJSON(t, h, http.MethodGet, QueryPath+"?code=roundtrip1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("query status = %d, body = %s", rec.Code, rec.Body.String())
	}
	data, _ := decodeBody(t, rec)["data"].(map[string]any)
	if data["companyName"] != "Acme Trading Ltd" {
		t.Errorf("companyName = %v", data["companyName"])
	}
}

func TestQueryErrors(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodGet, QueryPath, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing code status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, QueryPath+"?code=NOSUCHCODE", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown code status = %d, want 404", rec.Code)
	}
}

func TestEmailUnconfigured(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	rec := doJSON(t, h, http.MethodPost, EmailPath, map[string]any{
		"to": "a@example.com", "code": "ANYCODE1",
	})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestEmailSendAndLog(t *testing.T) {
	sender := &fakeSender{}
	h, store := newTestHandler(t, sender)

	sub := validSubmission()
	sub["customQueryCode"] = "MAILME01"
	if rec := doJSON(t, h, http.MethodPost, SubmitPath, sub); rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, EmailPath, map[string]any{
		"to": "client@example.com", "code": "MAILME01",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "client@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if !strings.Contains(msg.Subject, "Acme Trading Ltd") {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "MAILME01") {
		t.Error("body should carry the lookup code")
	}

	stored, err := store.GetReportByCode(context.Background(), "MAILME01")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	logs, err := store.ListEmailLogs(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("list email logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != "sent" {
		t.Errorf("logs = %+v, want one sent entry", logs)
	}
}

func TestEmailFailureIsLogged(t *testing.T) {
	sender := &fakeSender{err: errors.New("relay down")}
	h, store := newTestHandler(t, sender)

	sub := validSubmission()
	sub["customQueryCode"] = "MAILFAIL1"
	if rec := doJSON(t, h, http.MethodPost, SubmitPath, sub); rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, EmailPath, map[string]any{
		"to": "client@example.com", "code": "MAILFAIL1",
	})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	stored, err := store.GetReportByCode(context.Background(), "MAILFAIL1")
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	logs, err := store.ListEmailLogs(context.Background(), stored.ID)
	if err != nil {
		t.Fatalf("list email logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != "failed" {
		t.Errorf("logs = %+v, want one failed entry", logs)
	}
}

func TestEmailValidation(t *testing.T) {
	sender := &fakeSender{}
	h, _ := newTestHandler(t, sender)

	rec := doJSON(t, h, http.MethodPost, EmailPath, map[string]any{
		"to": "not-an-address", "code": "ANYCODE1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad address status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, EmailPath, map[string]any{
		"to": "a@example.com", "code": "NOSUCHCODE",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown code status = %d, want 404", rec.Code)
	}

	sub := validSubmission()
	sub["customQueryCode"] = "PDFCHECK1"
	if rec := doJSON(t, h, http.MethodPost, SubmitPath, sub); rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, EmailPath, map[string]any{
		"to": "a@example.com", "code": "PDFCHECK1", "pdf": "bm90IGEgcGRm", // "not a pdf"
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("corrupt pdf status = %d, want 400", rec.Code)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d messages, want 0", len(sender.sent))
	}
}

func TestAdminReports(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	for i := 0; i < 3; i++ {
		sub := validSubmission()
		sub["companyName"] = fmt.Sprintf("Company %d", i)
		if rec := doJSON(t, h, http.MethodPost, SubmitPath, sub); rec.Code != http.StatusOK {
			t.Fatalf("submit %d status = %d", i, rec.Code)
		}
	}

	rec := doJSON(t, h, http.MethodGet, AdminReportsPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	data, _ := body["data"].([]any)
	if len(data) != 3 {
		t.Errorf("data length = %d, want 3", len(data))
	}
	stats, _ := body["stats"].(map[string]any)
	if stats["total"] != float64(3) {
		t.Errorf("stats.total = %v, want 3", stats["total"])
	}
	if stats["today"] != float64(3) {
		t.Errorf("stats.today = %v, want 3", stats["today"])
	}
}

func TestAdminExport(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	if rec := doJSON(t, h, http.MethodPost, SubmitPath, validSubmission()); rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, AdminExportPath, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "csreport-export-2025-06-01.csv") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\xEF\xBB\xBF")) {
		t.Error("export should start with a UTF-8 BOM")
	}
	if !strings.Contains(rec.Body.String(), "Acme Trading Ltd") {
		t.Error("export should contain the report row")
	}
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodOptions, SubmitPath, nil)
	req.Header.Set("Origin", "https://forms.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing Access-Control-Allow-Origin")
	}
}

func TestComputeStatsWindows(t *testing.T) {
	// Sunday June 1 2025; the week window starts Monday May 26.
	now := testNow
	mk := func(ts time.Time) storage.Report {
		return storage.Report{CreatedAt: ts}
	}
	reports := []storage.Report{
		mk(now.Add(-1 * time.Hour)),  // today
		mk(now.AddDate(0, 0, -3)),    // May 29: this week, not today or this month
		mk(now.AddDate(0, 0, -10)),   // May 22: outside every window
		mk(time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)),
	}

	st := computeStats(reports, now)
	if st.Total != 4 {
		t.Errorf("Total = %d, want 4", st.Total)
	}
	if st.Today != 1 {
		t.Errorf("Today = %d, want 1", st.Today)
	}
	if st.ThisWeek != 2 {
		t.Errorf("ThisWeek = %d, want 2", st.ThisWeek)
	}
	if st.ThisMonth != 1 {
		t.Errorf("ThisMonth = %d, want 1", st.ThisMonth)
	}
}
