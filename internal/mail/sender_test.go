package mail

import (
	"strings"
	"testing"

	"github.com/itsupport/csreport/internal/storage"
)

func sampleReport() storage.Report {
	return storage.Report{
		ID:            "rep-1",
		LookupCode:    "ABCD1234",
		CompanyName:   "Acme Trading Ltd",
		Address:       "12 Harbour Rd",
		ContactPerson: "Wang Li",
		Mobile:        "13800000000",
		MainBusiness:  "import/export",
		Products:      "electronics",
		ServiceNeeds:  "logistics",
		ReportDate:    "2025-06-01",
	}
}

func TestBodyHTML(t *testing.T) {
	r := sampleReport()
	r.ChatRecords = "met at the trade fair"

	html, err := BodyHTML(r)
	if err != nil {
		t.Fatalf("BodyHTML: %v", err)
	}
	for _, want := range []string{"Acme Trading Ltd", "ABCD1234", "met at the trade fair", "2025-06-01"} {
		if !strings.Contains(html, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestBodyHTML_OmitsEmptyChatRecords(t *testing.T) {
	html, err := BodyHTML(sampleReport())
	if err != nil {
		t.Fatalf("BodyHTML: %v", err)
	}
	if strings.Contains(html, "Chat Records") {
		t.Error("chat records section rendered for empty field")
	}
}

func TestBodyHTML_EscapesFieldValues(t *testing.T) {
	r := sampleReport()
	r.CompanyName = `<script>alert("x")</script>`

	html, err := BodyHTML(r)
	if err != nil {
		t.Fatalf("BodyHTML: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("field value not escaped")
	}
}

func TestSubject(t *testing.T) {
	if got := Subject(sampleReport()); !strings.Contains(got, "Acme Trading Ltd") {
		t.Errorf("Subject = %q, want company name included", got)
	}
}

func TestValidAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"agent@example.com", true},
		{"first.last+tag@example.co", true},
		{"not-an-address", false},
		{"missing@domain@twice.com", false},
		{"", false},
		{"Agent <agent@example.com>", false}, // display names rejected; the API wants a bare address
	}
	for _, tt := range tests {
		if got := ValidAddress(tt.addr); got != tt.want {
			t.Errorf("ValidAddress(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestValidPDF_RejectsJunk(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("hello"), []byte("%PDF-1.4 truncated")} {
		if ValidPDF(data) {
			t.Errorf("ValidPDF(%q) = true, want false", data)
		}
	}
}
