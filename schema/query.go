package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/bububa/regulation-agents/components/regulation"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Query is a user question entering the orchestrator
type Query struct {
	// ID unique query id, generated when empty
	ID string `json:"id,omitempty" validate:"omitempty,max=64"`
	// Text the question
	Text string `json:"text" validate:"required,max=8000"`
	// User originating user
	User string `json:"user,omitempty" validate:"max=128"`
	// Session conversation key, enables session memory
	Session string `json:"session,omitempty" validate:"max=128"`
	// Domains explicit domain tags, bypass keyword routing when set
	Domains []regulation.Domain `json:"domains,omitempty" validate:"max=16,dive,required"`
	// History previous turns of the session, oldest first
	History   []Turn    `json:"history,omitempty" validate:"max=32"`
	CreatedAt time.Time `json:"created_at"`
}

// Turn is a previous question and its answer in the same session
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// NewQuery returns a new Query with a generated ID
func NewQuery(text string, domains ...regulation.Domain) *Query {
	return &Query{
		ID:        uuid.NewString(),
		Text:      text,
		Domains:   domains,
		CreatedAt: time.Now(),
	}
}

func (q Query) String() string {
	return q.Text
}

// Normalize trims the text, canonicalizes domain tags and fills ID and CreatedAt
func (q *Query) Normalize() error {
	q.Text = strings.TrimSpace(q.Text)
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	if len(q.Domains) == 0 {
		return nil
	}
	tags := make([]string, 0, len(q.Domains))
	for _, d := range q.Domains {
		tags = append(tags, string(d))
	}
	domains, err := regulation.ParseDomains(tags)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	q.Domains = domains
	return nil
}

// Validate normalizes then validates the query
func (q *Query) Validate() error {
	if err := q.Normalize(); err != nil {
		return err
	}
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return nil
}

// Fingerprint identifies equivalent questions: case and whitespace folded text plus sorted explicit domains
func (q Query) Fingerprint() string {
	text := strings.Join(strings.Fields(strings.ToLower(q.Text)), " ")
	domains := make([]string, 0, len(q.Domains))
	for _, d := range q.Domains {
		domains = append(domains, string(d))
	}
	slices.Sort(domains)
	h := sha256.New()
	h.Write([]byte(text))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(domains, ",")))
	return hex.EncodeToString(h.Sum(nil))
}
