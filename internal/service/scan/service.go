package scan

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailgatekeeper/internal/config"
	"mailgatekeeper/internal/mailbox"
	"mailgatekeeper/internal/model"
	"mailgatekeeper/internal/rules"
	"mailgatekeeper/internal/store"
	"mailgatekeeper/pkg/logger"
	"mailgatekeeper/pkg/metrics"
)

// ErrAlertNotFound marks a draft request for an alert id the store has
// never seen. Handlers map it to a client error.
var ErrAlertNotFound = errors.New("alert not found")

const snippetMaxLen = 280

// Dialer opens mailbox sessions. Satisfied by *mailbox.Client.
type Dialer interface {
	Connect(ctx context.Context) (mailbox.Session, error)
}

// DraftResult identifies a stored reply draft.
type DraftResult struct {
	DraftMessageID string `json:"draft_message_id"`
	DraftsFolder   string `json:"drafts_folder"`
	InReplyTo      string `json:"in_reply_to"`
}

// Service runs scan cycles and builds reply drafts. A session is opened,
// used and released within each call; partial progress committed to the
// store before a failure is retained.
type Service struct {
	dialer Dialer
	engine *rules.Engine
	alerts *store.AlertStore
	cfg    config.ScanConfig
	owner  string
	logger *zap.Logger
}

func NewService(
	dialer Dialer,
	engine *rules.Engine,
	alerts *store.AlertStore,
	cfg config.ScanConfig,
	owner string,
	log *zap.Logger,
) *Service {
	return &Service{
		dialer: dialer,
		engine: engine,
		alerts: alerts,
		cfg:    cfg,
		owner:  strings.ToLower(owner),
		logger: log,
	}
}

// Scan inspects the last cfg.Limit inbox messages, classifies each one and
// upserts the alerts that need attention. The returned result lists the
// alerts whose identity was new to the store.
func (s *Service) Scan(ctx context.Context) (*model.ScanResult, error) {
	started := time.Now()
	result, err := s.scan(ctx)
	if err != nil {
		metrics.RecordScan("failed", time.Since(started))
		return nil, err
	}
	metrics.RecordScan("success", time.Since(started))
	return result, nil
}

func (s *Service) scan(ctx context.Context) (*model.ScanResult, error) {
	log := logger.WithScan(ctx, s.logger)

	sess, err := s.dialer.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	defer sess.Close()

	count, err := sess.SelectInbox()
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if count == 0 {
		return &model.ScanResult{NewAlerts: []model.Alert{}}, nil
	}

	start := uint32(1)
	if count > uint32(s.cfg.Limit) {
		start = count - uint32(s.cfg.Limit) + 1
	}

	summaries, err := sess.FetchSummaries(start, 0)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	newAlerts := []model.Alert{}
	for _, sum := range summaries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// One full fetch serves both the snippet and the thread check.
		var msg *mailbox.Message
		snippet := ""
		if s.cfg.FetchBodySnippet {
			msg, err = sess.FetchMessage(sum.UID)
			if err != nil {
				log.Warn("body fetch failed",
					zap.Uint32("uid", sum.UID),
					zap.Error(err),
				)
				msg = nil
			} else {
				snippet = extractSnippet(msg.TextBody, s.cfg.FetchFullBody)
			}
		}

		cl := s.engine.Classify(sum.From, sum.Subject, snippet)

		repliedThread := false
		if s.cfg.IncludeRepliedThreads && cl.Category != model.CategoryActionRequired {
			if msg == nil {
				msg, err = sess.FetchMessage(sum.UID)
				if err != nil {
					log.Warn("thread check fetch failed",
						zap.Uint32("uid", sum.UID),
						zap.Error(err),
					)
				}
			}
			repliedThread = s.ownerRepliedInThread(sess, msg, log)
		}

		if cl.Category != model.CategoryActionRequired && !repliedThread {
			continue
		}

		category, reason := cl.Category, cl.Reason
		if repliedThread && category != model.CategoryActionRequired {
			category = model.CategoryRepliedThread
			reason = "thread with your reply"
		}

		id := sum.MessageID
		if id == "" {
			id = strconv.FormatUint(uint64(sum.UID), 10)
		}
		receivedAt := sum.Date
		if receivedAt.IsZero() {
			receivedAt = time.Now().UTC()
		}

		alert := model.Alert{
			ID:         id,
			From:       sum.From,
			Subject:    sum.Subject,
			ReceivedAt: receivedAt,
			Category:   category,
			Reason:     reason,
			Snippet:    snippet,
			UID:        sum.UID,
		}

		if s.alerts.Upsert(alert) {
			metrics.NewAlerts.WithLabelValues(category).Inc()
			newAlerts = append(newAlerts, alert)
		}
	}

	metrics.MessagesScanned.Add(float64(len(summaries)))
	log.Info("scan completed",
		zap.Int("scanned", len(summaries)),
		zap.Int("new_alerts", len(newAlerts)),
	)

	return &model.ScanResult{
		Scanned:   len(summaries),
		NewCount:  len(newAlerts),
		NewAlerts: newAlerts,
	}, nil
}

// ownerRepliedInThread reports whether the mailbox owner authored a message
// in the candidate's reference chain. Any failure counts as "not replied".
func (s *Service) ownerRepliedInThread(sess mailbox.Session, msg *mailbox.Message, log *zap.Logger) bool {
	if msg == nil || len(msg.References) == 0 {
		return false
	}
	found, err := sess.HasMessageFrom(s.owner, msg.References)
	if err != nil {
		log.Warn("thread reply check failed",
			zap.Uint32("uid", msg.UID),
			zap.Error(err),
		)
		return false
	}
	return found
}

// CreateDraftReply refetches the alerted message, builds a reply-all draft
// with the caller's body and stores it in the resolved drafts folder.
func (s *Service) CreateDraftReply(ctx context.Context, alertID, body, subjectPrefix string) (*DraftResult, error) {
	alert, ok := s.alerts.Get(alertID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
	}

	sess, err := s.dialer.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("draft: %w", err)
	}
	defer sess.Close()

	if _, err := sess.SelectInbox(); err != nil {
		return nil, fmt.Errorf("draft: %w", err)
	}

	original, err := sess.FetchMessage(alert.UID)
	if err != nil {
		return nil, fmt.Errorf("draft: %w", err)
	}

	to, cc := replyRecipients(original, s.owner)
	draft := mailbox.Draft{
		From:    s.owner,
		To:      to,
		Cc:      cc,
		Subject: replySubject(original.Subject, subjectPrefix),
		Body:    body,
	}
	if original.MessageID != "" {
		draft.InReplyTo = original.MessageID
		draft.References = append(append([]string{}, original.References...), original.MessageID)
	}

	raw, draftID, err := mailbox.BuildDraft(draft)
	if err != nil {
		return nil, fmt.Errorf("draft: %w", err)
	}

	folder := sess.ResolveDraftsFolder()
	if err := sess.AppendDraft(folder, raw); err != nil {
		return nil, fmt.Errorf("draft: %w", err)
	}

	s.logger.Info("draft reply created",
		zap.String("alert_id", alertID),
		zap.String("folder", folder),
	)

	return &DraftResult{
		DraftMessageID: draftID,
		DraftsFolder:   folder,
		InReplyTo:      original.MessageID,
	}, nil
}

// replyRecipients builds reply-all recipients: the original sender plus
// every To recipient except the owner, and every Cc recipient except the
// owner. Comparison is case-insensitive.
func replyRecipients(original *mailbox.Message, owner string) (to, cc []mailbox.Address) {
	to = append(to, original.From...)
	for _, a := range original.To {
		if !strings.EqualFold(a.Addr, owner) {
			to = append(to, a)
		}
	}
	for _, a := range original.Cc {
		if !strings.EqualFold(a.Addr, owner) {
			cc = append(cc, a)
		}
	}
	return to, cc
}

// replySubject reuses a subject that already carries a reply marker,
// otherwise prepends the prefix (default "Re: ").
func replySubject(original, prefix string) string {
	if strings.HasPrefix(strings.ToLower(original), "re:") {
		return original
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "Re:"
	}
	return prefix + " " + original
}

func extractSnippet(body string, fullBody bool) string {
	if fullBody {
		return strings.TrimSpace(body)
	}
	text := strings.NewReplacer("\r", " ", "\n", " ").Replace(body)
	text = strings.TrimSpace(text)
	if len(text) > snippetMaxLen {
		text = text[:snippetMaxLen]
	}
	return text
}
