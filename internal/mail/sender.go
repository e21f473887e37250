// Package mail delivers report emails over SMTP and validates attachments.
package mail

import (
	"bytes"
	"fmt"
	"io"
	netmail "net/mail"

	"github.com/ledongthuc/pdf"
	gomail "gopkg.in/gomail.v2"
)

// Message is one outbound report email. Attachment is optional; when set,
// AttachmentName must be set too.
type Message struct {
	To             string
	Subject        string
	HTML           string
	AttachmentName string
	Attachment     []byte
}

// SMTPSender sends messages through a single SMTP relay.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers msg, blocking until the relay accepts or refuses it.
func (s *SMTPSender) Send(msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if msg.AttachmentName != "" {
		m.Attach(msg.AttachmentName, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(msg.Attachment)
			return err
		}))
	}

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("sending mail to %s: %w", msg.To, err)
	}
	return nil
}

// ValidAddress reports whether addr parses as a single RFC 5322 address.
func ValidAddress(addr string) bool {
	parsed, err := netmail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

// ValidPDF reports whether data parses as a PDF with at least one page.
// Corrupt uploads are rejected before they reach a recipient's inbox.
// The parser panics on some malformed inputs; treat that as invalid.
func ValidPDF(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	return r.NumPage() >= 1
}
