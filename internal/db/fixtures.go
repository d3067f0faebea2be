package db

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ajramos/tagmail/internal/mail"
	"github.com/ajramos/tagmail/internal/threading"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures/demo.yaml
var demoFixture []byte

// Fixture is the YAML import format of the local mailbox
type Fixture struct {
	Conversations []FixtureConversation `yaml:"conversations"`
}

// FixtureConversation is one conversation with its messages
type FixtureConversation struct {
	Thread   string           `yaml:"thread"`
	Messages []FixtureMessage `yaml:"messages"`
}

// FixtureMessage is one message of a fixture conversation
type FixtureMessage struct {
	ID        string    `yaml:"id"`
	MessageID string    `yaml:"message_id"`
	InReplyTo string    `yaml:"in_reply_to"`
	From      string    `yaml:"from"`
	Subject   string    `yaml:"subject"`
	Date      time.Time `yaml:"date"`
	Tags      []string  `yaml:"tags"`
}

// ImportFixture loads conversations from YAML into the mailbox. Existing
// messages with the same id are replaced. It returns the number of
// messages imported.
func (ms *MailStore) ImportFixture(ctx context.Context, r io.Reader) (int, error) {
	if ms == nil || ms.db == nil {
		return 0, fmt.Errorf("mail store not initialized")
	}
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("failed to parse fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return 0, err
	}

	tx, err := ms.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	n, err := importConversations(ctx, tx, fx.Conversations)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	ms.logger.Info().Int("conversations", len(fx.Conversations)).Int("messages", n).Msg("fixture imported")
	return n, nil
}

// ImportDemo loads the bundled demo mailbox
func (ms *MailStore) ImportDemo(ctx context.Context) (int, error) {
	return ms.ImportFixture(ctx, bytes.NewReader(demoFixture))
}

func (fx Fixture) validate() error {
	seen := make(map[string]string)
	for i, c := range fx.Conversations {
		if strings.TrimSpace(c.Thread) == "" {
			return fmt.Errorf("conversation %d: thread cannot be empty", i)
		}
		if len(c.Messages) == 0 {
			return fmt.Errorf("conversation %s: no messages", c.Thread)
		}
		for _, m := range c.Messages {
			if strings.TrimSpace(m.ID) == "" {
				return fmt.Errorf("conversation %s: message id cannot be empty", c.Thread)
			}
			if other, ok := seen[m.ID]; ok {
				return fmt.Errorf("message %s appears in %s and %s", m.ID, other, c.Thread)
			}
			seen[m.ID] = c.Thread
			for _, tag := range m.Tags {
				if strings.ContainsAny(tag, " \t\n") || tag == "" {
					return fmt.Errorf("message %s: invalid tag %q", m.ID, tag)
				}
			}
		}
	}
	return nil
}

func importConversations(ctx context.Context, tx *sql.Tx, convs []FixtureConversation) (int, error) {
	now := time.Now().Unix()
	n := 0
	for _, c := range convs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO conversations(thread_id, created_at) VALUES(?, ?)`, c.Thread, now); err != nil {
			return 0, fmt.Errorf("failed to insert conversation %s: %w", c.Thread, err)
		}
		for pos, m := range c.Messages {
			_, err := tx.ExecContext(ctx, `INSERT INTO messages(id, thread_id, message_id, in_reply_to, sender, subject, sent_at, position)
VALUES(?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET thread_id=excluded.thread_id, message_id=excluded.message_id,
  in_reply_to=excluded.in_reply_to, sender=excluded.sender, subject=excluded.subject,
  sent_at=excluded.sent_at, position=excluded.position;`,
				m.ID, c.Thread, threading.StripReference(m.MessageID), strings.TrimSpace(m.InReplyTo),
				m.From, m.Subject, m.Date.Unix(), pos)
			if err != nil {
				return 0, fmt.Errorf("failed to insert message %s: %w", m.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM message_tags WHERE message_id = ?`, m.ID); err != nil {
				return 0, fmt.Errorf("failed to reset tags of %s: %w", m.ID, err)
			}
			for _, tag := range mail.SortedTags(m.Tags) {
				if _, err := tx.ExecContext(ctx, `INSERT INTO message_tags(message_id, tag) VALUES(?, ?)`, m.ID, tag); err != nil {
					return 0, fmt.Errorf("failed to tag %s: %w", m.ID, err)
				}
			}
			n++
		}
	}
	return n, nil
}
