package sources

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
)

// IMAPSource harvests seed URLs from unread inbox messages. The job filter
// is a case-insensitive subject substring. Messages that matched are marked
// seen so recurring jobs do not harvest them twice.
type IMAPSource struct {
	cfg    *common.IMAPSourceConfig
	logger arbor.ILogger
}

var _ interfaces.SeedSource = (*IMAPSource)(nil)

func NewIMAPSource(cfg *common.IMAPSourceConfig, logger arbor.ILogger) *IMAPSource {
	return &IMAPSource{cfg: cfg, logger: logger}
}

func (s *IMAPSource) Type() models.SeedSourceType { return models.SeedSourceIMAP }

// Configured reports whether the minimum connection settings are present.
func (s *IMAPSource) Configured() bool {
	return s.cfg.Host != "" && s.cfg.Username != "" && s.cfg.Password != ""
}

func (s *IMAPSource) Harvest(ctx context.Context, filter string) ([]string, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("imap source not configured")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var c *client.Client
	var err error
	if s.cfg.UseTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}

	mbox, err := c.Select("INBOX", false)
	if err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}
	if mbox.Messages == 0 {
		s.logger.Debug().Msg("No messages in INBOX")
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search for unseen messages: %w", err)
	}
	if len(seqNums) == 0 {
		s.logger.Debug().Msg("No unseen messages")
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(seqNums...)

	// Peek so that unmatched messages keep their unseen flag.
	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, len(seqNums))

	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages)
	}()

	harvested := new(imap.SeqSet)
	matched := 0
	seen := make(map[string]bool)
	var urls []string
	for msg := range messages {
		if msg == nil || msg.Envelope == nil {
			continue
		}

		subject := msg.Envelope.Subject
		if filter != "" && !strings.Contains(strings.ToLower(subject), strings.ToLower(filter)) {
			continue
		}

		body, err := textBody(msg, section)
		if err != nil {
			s.logger.Warn().Err(err).Int64("seq", int64(msg.SeqNum)).Msg("Failed to parse message body")
			continue
		}

		for _, u := range extractURLs(subject + "\n" + body) {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
		harvested.AddNum(msg.SeqNum)
		matched++
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	if matched > 0 {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := c.Store(harvested, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to mark harvested messages as read")
		}
	}

	s.logger.Info().
		Int("unseen", len(seqNums)).
		Int("urls", len(urls)).
		Msg("Inbox harvest completed")
	return urls, nil
}

// textBody extracts the text parts of an IMAP message.
func textBody(msg *imap.Message, section *imap.BodySectionName) (string, error) {
	r := msg.GetBody(section)
	if r == nil {
		return "", fmt.Errorf("no body section")
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return "", fmt.Errorf("failed to create mail reader: %w", err)
	}

	var body strings.Builder
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read next part: %w", err)
		}

		if h, ok := p.Header.(*mail.InlineHeader); ok {
			contentType, _, _ := h.ContentType()
			if strings.HasPrefix(contentType, "text/") {
				b, err := io.ReadAll(p.Body)
				if err != nil {
					return "", fmt.Errorf("failed to read body: %w", err)
				}
				body.Write(b)
				body.WriteString("\n")
			}
		}
	}
	return strings.TrimSpace(body.String()), nil
}
