// Package export renders stored reports as CSV for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/itsupport/csreport/internal/storage"
)

// utf8BOM lets spreadsheet tools detect the encoding; report fields are
// frequently non-ASCII.
const utf8BOM = "\xEF\xBB\xBF"

var csvHeader = []string{
	"queryCode", "customQueryCode", "companyName", "address", "phone", "website",
	"contactPerson", "mobile", "wechat", "companySize", "officeSize",
	"mainBusiness", "products", "serviceNeeds", "chatRecords",
	"reportDate", "createdAt", "updatedAt",
}

// WriteCSV writes all reports to w as a BOM-prefixed CSV with a header row.
func WriteCSV(w io.Writer, reports []storage.Report) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("writing BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range reports {
		row := []string{
			r.LookupCode, r.CustomLookupCode, r.CompanyName, r.Address, r.Phone, r.Website,
			r.ContactPerson, r.Mobile, r.Wechat, r.CompanySize, r.OfficeSize,
			r.MainBusiness, r.Products, r.ServiceNeeds, r.ChatRecords,
			r.ReportDate,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UpdatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing report %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Filename returns the dated attachment filename for an export.
func Filename(now time.Time) string {
	return fmt.Sprintf("csreport-export-%s.csv", now.UTC().Format("2006-01-02"))
}
