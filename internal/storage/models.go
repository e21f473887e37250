package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateCode is returned when an insert violates the lookup code
// uniqueness constraint. This is the authoritative collision signal; the
// allocation pre-check above it is only an optimization.
var ErrDuplicateCode = errors.New("lookup code already exists")

// Report is one persisted customer-visit report. LookupCode is the sole
// retrieval key; CustomLookupCode keeps the caller-supplied value when one
// was requested (the two are equal in that case).
type Report struct {
	ID               string `json:"id"`
	LookupCode       string `json:"queryCode"`
	CustomLookupCode string `json:"customQueryCode,omitempty"`

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

	ReportDate string    `json:"reportDate"` // calendar date, YYYY-MM-DD
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// EmailLog records one attempt to email a report, successful or not.
type EmailLog struct {
	ID        string    `json:"id"`
	ReportID  string    `json:"reportId"`
	Recipient string    `json:"recipient"`
	SentAt    time.Time `json:"sentAt"`
	Status    string    `json:"status"` // "sent" or "failed"
}
