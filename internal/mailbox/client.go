package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"go.uber.org/zap"

	"mailgatekeeper/internal/config"
)

// Summary is the envelope-level view of one inbox message.
type Summary struct {
	SeqNum    uint32
	UID       uint32
	MessageID string
	From      string
	Subject   string
	Date      time.Time
}

// Address is a parsed mailbox address.
type Address struct {
	Name string
	Addr string
}

// Message is a fully fetched message, with just enough structure for
// classification and reply building.
type Message struct {
	UID        uint32
	MessageID  string
	Subject    string
	From       []Address
	To         []Address
	Cc         []Address
	References []string
	TextBody   string
}

// Session is one authenticated IMAP connection with the inbox selected.
// Sessions are scoped to a single scan or draft operation and never reused.
type Session interface {
	// SelectInbox opens the configured inbox read-only and returns the
	// message count.
	SelectInbox() (uint32, error)
	// FetchSummaries fetches envelope data for the sequence range
	// [start, end]; end == 0 means the last message.
	FetchSummaries(start, end uint32) ([]Summary, error)
	// FetchMessage fetches and parses the full message with the given UID.
	FetchMessage(uid uint32) (*Message, error)
	// HasMessageFrom reports whether the folder holds a message whose From
	// header contains sender and whose Message-ID matches one of ids.
	HasMessageFrom(sender string, ids []string) (bool, error)
	// ResolveDraftsFolder picks the drafts destination: the advertised
	// special-use folder, then the well-known Gmail path, then the
	// configured default.
	ResolveDraftsFolder() string
	// AppendDraft stores a raw message into folder with the draft flag set.
	AppendDraft(folder string, raw []byte) error
	Close() error
}

// Client dials and authenticates IMAP sessions.
type Client struct {
	cfg    config.IMAPConfig
	logger *zap.Logger
}

func NewClient(cfg config.IMAPConfig, logger *zap.Logger) *Client {
	return &Client{cfg: cfg, logger: logger}
}

// Connect establishes a connection and authenticates. The caller must Close
// the returned session. The context only guards the dial phase; go-imap
// commands carry their own deadlines via the connection.
func (c *Client) Connect(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := net.JoinHostPort(c.cfg.Host, fmt.Sprintf("%d", c.cfg.Port))

	var cl *imapclient.Client
	var err error
	if c.cfg.UseTLS {
		cl, err = imapclient.DialTLS(addr, &imapclient.Options{
			TLSConfig: &tls.Config{ServerName: c.cfg.Host},
		})
	} else {
		cl, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("imap connect %s: %w", addr, err)
	}

	if err := cl.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("imap login %s: %w", c.cfg.Username, err)
	}

	return &session{client: cl, cfg: c.cfg, logger: c.logger}, nil
}

type session struct {
	client *imapclient.Client
	cfg    config.IMAPConfig
	logger *zap.Logger
}

func (s *session) Close() error {
	if err := s.client.Logout().Wait(); err != nil {
		return s.client.Close()
	}
	return nil
}

func (s *session) SelectInbox() (uint32, error) {
	data, err := s.client.Select(s.cfg.InboxFolder, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return 0, fmt.Errorf("imap select %s: %w", s.cfg.InboxFolder, err)
	}
	return data.NumMessages, nil
}

func (s *session) FetchSummaries(start, end uint32) ([]Summary, error) {
	var seqSet imap.SeqSet
	seqSet.AddRange(start, end)

	fetchOpts := &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	}

	buffers, err := s.client.Fetch(seqSet, fetchOpts).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch summaries: %w", err)
	}

	summaries := make([]Summary, 0, len(buffers))
	for _, buf := range buffers {
		sum := Summary{
			SeqNum: buf.SeqNum,
			UID:    uint32(buf.UID),
			From:   "(unknown)",
		}
		if env := buf.Envelope; env != nil {
			sum.MessageID = env.MessageID
			sum.Subject = env.Subject
			sum.Date = env.Date
			if len(env.From) > 0 {
				sum.From = formatAddress(env.From[0])
			}
		}
		summaries = append(summaries, sum)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SeqNum < summaries[j].SeqNum
	})

	return summaries, nil
}

func (s *session) FetchMessage(uid uint32) (*Message, error) {
	uidSet := imap.UIDSetNum(imap.UID(uid))

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	buffers, err := s.client.Fetch(uidSet, fetchOpts).Collect()
	if err != nil {
		return nil, fmt.Errorf("imap fetch uid %d: %w", uid, err)
	}
	if len(buffers) == 0 {
		return nil, fmt.Errorf("imap fetch uid %d: message not found", uid)
	}

	buf := buffers[0]
	msg := &Message{UID: uint32(buf.UID)}
	if env := buf.Envelope; env != nil {
		msg.MessageID = env.MessageID
		msg.Subject = env.Subject
		msg.From = convertAddresses(env.From)
		msg.To = convertAddresses(env.To)
		msg.Cc = convertAddresses(env.Cc)
	}

	if raw := buf.FindBodySection(bodySection); len(raw) > 0 {
		text, refs := parseRawMessage(raw)
		msg.TextBody = text
		msg.References = refs
	}

	return msg, nil
}

func (s *session) HasMessageFrom(sender string, ids []string) (bool, error) {
	for _, id := range ids {
		criteria := &imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{
				{Key: "From", Value: sender},
				{Key: "Message-ID", Value: id},
			},
		}
		data, err := s.client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return false, fmt.Errorf("imap search: %w", err)
		}
		if len(data.AllUIDs()) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// wellKnownDrafts is the alternate path tried when the server does not
// advertise a \Drafts special-use folder.
const wellKnownDrafts = "[Gmail]/Drafts"

func (s *session) ResolveDraftsFolder() string {
	folders, err := s.client.List("", "*", &imap.ListOptions{SelectSpecialUse: true}).Collect()
	if err == nil {
		for _, f := range folders {
			for _, attr := range f.Attrs {
				if attr == imap.MailboxAttrDrafts {
					s.logger.Debug("using advertised drafts folder", zap.String("folder", f.Mailbox))
					return f.Mailbox
				}
			}
		}
	}

	if _, err := s.client.Status(wellKnownDrafts, &imap.StatusOptions{NumMessages: true}).Wait(); err == nil {
		s.logger.Debug("using well-known drafts folder", zap.String("folder", wellKnownDrafts))
		return wellKnownDrafts
	}

	s.logger.Debug("using configured drafts folder", zap.String("folder", s.cfg.DraftsFolder))
	return s.cfg.DraftsFolder
}

func (s *session) AppendDraft(folder string, raw []byte) error {
	cmd := s.client.Append(folder, int64(len(raw)), &imap.AppendOptions{
		Flags: []imap.Flag{imap.FlagDraft},
	})
	if _, err := cmd.Write(raw); err != nil {
		return fmt.Errorf("imap append write: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("imap append close: %w", err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("imap append %s: %w", folder, err)
	}
	return nil
}

func formatAddress(a imap.Address) string {
	if a.Name != "" {
		return fmt.Sprintf("%s <%s>", a.Name, a.Addr())
	}
	return a.Addr()
}

func convertAddresses(in []imap.Address) []Address {
	out := make([]Address, 0, len(in))
	for _, a := range in {
		out = append(out, Address{Name: a.Name, Addr: a.Addr()})
	}
	return out
}
