package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// Draft describes an unsent reply to render into a raw RFC 5322 message.
type Draft struct {
	From       string
	To         []Address
	Cc         []Address
	Subject    string
	InReplyTo  string
	References []string
	Body       string
}

// BuildDraft renders the draft as a single-part plain-text message and
// returns the raw bytes plus the generated message id.
func BuildDraft(d Draft) ([]byte, string, error) {
	var h mail.Header
	h.SetDate(time.Now().UTC())
	if err := h.GenerateMessageID(); err != nil {
		return nil, "", fmt.Errorf("generate message id: %w", err)
	}
	messageID, err := h.MessageID()
	if err != nil {
		return nil, "", fmt.Errorf("read message id: %w", err)
	}

	h.SetAddressList("From", []*mail.Address{{Address: d.From}})
	h.SetAddressList("To", toMailAddresses(d.To))
	if len(d.Cc) > 0 {
		h.SetAddressList("Cc", toMailAddresses(d.Cc))
	}
	h.SetSubject(d.Subject)
	if d.InReplyTo != "" {
		h.SetMsgIDList("In-Reply-To", []string{d.InReplyTo})
		h.SetMsgIDList("References", d.References)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("create draft writer: %w", err)
	}
	if _, err := io.WriteString(w, d.Body); err != nil {
		_ = w.Close()
		return nil, "", fmt.Errorf("write draft body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close draft writer: %w", err)
	}

	return buf.Bytes(), messageID, nil
}

// parseRawMessage extracts the plain-text body and the References chain
// from a raw message. A message that cannot be parsed as MIME is treated
// as plain text with no references.
func parseRawMessage(raw []byte) (string, []string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), nil
	}
	defer mr.Close()

	references, _ := mr.Header.MsgIDList("References")

	var textBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if !strings.HasPrefix(contentType, "text/plain") {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		textBody = string(body)
	}

	return textBody, references
}

func toMailAddresses(in []Address) []*mail.Address {
	out := make([]*mail.Address, 0, len(in))
	for _, a := range in {
		out = append(out, &mail.Address{Name: a.Name, Address: a.Addr})
	}
	return out
}
