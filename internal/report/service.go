// Package report implements the write and read paths for customer-visit
// reports: payload validation, lookup code allocation, persistence, and
// retrieval by code.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/itsupport/csreport/internal/codegen"
	"github.com/itsupport/csreport/internal/storage"
)

// Store is the storage capability the service depends on. *storage.Store
// satisfies it; tests substitute fakes.
type Store interface {
	CodeExists(ctx context.Context, code string) (bool, error)
	InsertReport(ctx context.Context, r storage.Report) error
	GetReportByCode(ctx context.Context, code string) (storage.Report, error)
}

// Submission is the inbound report payload. Field names mirror the wire
// format; the business fields are pass-through except for the required-field
// check.
type Submission struct {
	ID         string `json:"id,omitempty"`
	CustomCode string `json:"customQueryCode,omitempty"`

	CompanyName   string `json:"companyName"`
	Address       string `json:"address"`
	Phone         string `json:"phone,omitempty"`
	Website       string `json:"website,omitempty"`
	ContactPerson string `json:"contactPerson"`
	Mobile        string `json:"mobile"`
	Wechat        string `json:"wechat,omitempty"`
	CompanySize   string `json:"companySize"`
	OfficeSize    string `json:"officeSize"`
	MainBusiness  string `json:"mainBusiness"`
	Products      string `json:"products"`
	ServiceNeeds  string `json:"serviceNeeds"`
	ChatRecords   string `json:"chatRecords,omitempty"`

	ReportDate string `json:"reportDate,omitempty"`
}

// requiredFields is checked in order; the first empty one fails the submission.
var requiredFields = []struct {
	name string
	get  func(Submission) string
}{
	{"companyName", func(s Submission) string { return s.CompanyName }},
	{"address", func(s Submission) string { return s.Address }},
	{"contactPerson", func(s Submission) string { return s.ContactPerson }},
	{"mobile", func(s Submission) string { return s.Mobile }},
	{"companySize", func(s Submission) string { return s.CompanySize }},
	{"officeSize", func(s Submission) string { return s.OfficeSize }},
	{"mainBusiness", func(s Submission) string { return s.MainBusiness }},
	{"products", func(s Submission) string { return s.Products }},
	{"serviceNeeds", func(s Submission) string { return s.ServiceNeeds }},
}

// Service is the submission pipeline and query resolver. Stateless across
// requests; the store is the only shared resource.
type Service struct {
	store Store
	gen   *codegen.Generator
	alloc *Allocator
	now   func() time.Time
}

func NewService(store Store, gen *codegen.Generator) *Service {
	return &Service{
		store: store,
		gen:   gen,
		alloc: NewAllocator(gen),
		now:   time.Now,
	}
}

// Submit validates sub, allocates a unique lookup code, persists the report,
// and returns the final code. Lookup codes are normalized to uppercase at
// ingestion so that later queries (also uppercased) always match.
func (s *Service) Submit(ctx context.Context, sub Submission) (string, error) {
	for _, f := range requiredFields {
		if strings.TrimSpace(f.get(sub)) == "" {
			return "", &MissingFieldError{Field: f.name}
		}
	}

	custom := strings.ToUpper(strings.TrimSpace(sub.CustomCode))
	if custom != "" && !codegen.ValidCode(custom) {
		return "", ErrInvalidCode
	}

	code, err := s.alloc.Allocate(ctx, custom, s.store.CodeExists)
	if err != nil {
		return "", err
	}

	rec := s.buildRecord(sub, custom, code)
	err = s.store.InsertReport(ctx, rec)
	if errors.Is(err, storage.ErrDuplicateCode) {
		if custom != "" {
			// Lost the race on the caller's code between check and insert.
			return "", ErrCodeTaken
		}
		return s.retrySubmit(ctx, rec)
	}
	if err != nil {
		return "", fmt.Errorf("inserting report: %w", err)
	}
	return code, nil
}

// retrySubmit re-runs allocation once with a fresh generated code after a
// lost insert race. Reusing the collided code would just lose again.
func (s *Service) retrySubmit(ctx context.Context, rec storage.Report) (string, error) {
	code, err := s.alloc.Allocate(ctx, "", s.store.CodeExists)
	if err != nil {
		return "", err
	}
	rec.LookupCode = code

	err = s.store.InsertReport(ctx, rec)
	if errors.Is(err, storage.ErrDuplicateCode) {
		return "", ErrAllocationExhausted
	}
	if err != nil {
		return "", fmt.Errorf("inserting report: %w", err)
	}
	return code, nil
}

func (s *Service) buildRecord(sub Submission, custom, code string) storage.Report {
	now := s.now().UTC()

	id := sub.ID
	if id == "" {
		id = s.gen.RecordID()
	}
	reportDate := strings.TrimSpace(sub.ReportDate)
	if reportDate == "" {
		reportDate = now.Format("2006-01-02")
	}

	return storage.Report{
		ID:               id,
		LookupCode:       code,
		CustomLookupCode: custom,
		CompanyName:      sub.CompanyName,
		Address:          sub.Address,
		Phone:            sub.Phone,
		Website:          sub.Website,
		ContactPerson:    sub.ContactPerson,
		Mobile:           sub.Mobile,
		Wechat:           sub.Wechat,
		CompanySize:      sub.CompanySize,
		OfficeSize:       sub.OfficeSize,
		MainBusiness:     sub.MainBusiness,
		Products:         sub.Products,
		ServiceNeeds:     sub.ServiceNeeds,
		ChatRecords:      sub.ChatRecords,
		ReportDate:       reportDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Find returns the report for a lookup code. The code is treated as opaque
// beyond trimming and uppercasing.
func (s *Service) Find(ctx context.Context, code string) (storage.Report, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return storage.Report{}, ErrEmptyCode
	}

	rec, err := s.store.GetReportByCode(ctx, code)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.Report{}, ErrNotFound
	}
	if err != nil {
		return storage.Report{}, fmt.Errorf("looking up report: %w", err)
	}
	return rec, nil
}
