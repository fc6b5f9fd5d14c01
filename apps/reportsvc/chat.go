package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"
)

const (
	chatGoodbye        = "Goodbye! Chat closed."
	chatSessionEnded   = "Session ended. Restart chat."
	chatApology        = "Sorry, I could not answer that right now. Please try again in a moment."
	defaultChatSession = "default"
	maxChatTurns       = 40
)

var (
	chatExitWords  = []string{"exit", "quit", "bye"}
	markdownMarker = regexp.MustCompile("[*_`>#-]+")
)

type chatTurn struct {
	Role string
	Text string
}

// ChatResponder produces the next assistant reply for a conversation.
type ChatResponder interface {
	Reply(ctx context.Context, history []chatTurn, message string) (string, error)
}

type chatSession struct {
	history  []chatTurn
	ended    bool
	lastSeen time.Time
}

type chatSessions struct {
	mu       sync.Mutex
	sessions map[string]*chatSession
	ttl      time.Duration
	now      func() time.Time
}

func newChatSessions(ttl time.Duration) *chatSessions {
	return &chatSessions{
		sessions: make(map[string]*chatSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// converse applies the session rules and asks the responder only for live
// sessions. Responder failures become an apology, never an error.
func (a *App) converse(ctx context.Context, sessionID, message string) string {
	if sessionID == "" {
		sessionID = defaultChatSession
	}

	history, closing, ended := a.chats.open(sessionID, message)
	if ended {
		return chatSessionEnded
	}
	if closing {
		return chatGoodbye
	}

	reply, err := a.responder.Reply(ctx, history, message)
	if err != nil {
		a.log.Error("chat responder failed", "session", sessionID, "err", err)
		a.errors.CaptureException(err)
		return chatApology
	}
	reply = stripMarkdown(reply)
	if reply == "" {
		return chatApology
	}
	a.chats.record(sessionID, message, reply)
	return reply
}

// open touches the session and returns a copy of its history. closing is
// true when message ends the session; ended is true when it already had.
func (s *chatSessions) open(id, message string) (history []chatTurn, closing bool, ended bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		session = &chatSession{}
		s.sessions[id] = session
	}
	session.lastSeen = s.now()

	if session.ended {
		return nil, false, true
	}
	if isExitWord(message) {
		session.ended = true
		session.history = nil
		return nil, true, false
	}
	return append([]chatTurn{}, session.history...), false, false
}

func (s *chatSessions) record(id, message, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || session.ended {
		return
	}
	session.history = append(session.history,
		chatTurn{Role: "user", Text: message},
		chatTurn{Role: "model", Text: reply},
	)
	if len(session.history) > maxChatTurns {
		session.history = append([]chatTurn{}, session.history[len(session.history)-maxChatTurns:]...)
	}
}

func (s *chatSessions) prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if now.Sub(session.lastSeen) >= s.ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (a *App) startChatPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if removed := a.chats.prune(now); removed > 0 {
					a.log.Info("pruned idle chat sessions", "count", removed)
				}
			}
		}
	}()
}

func isExitWord(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	for _, word := range chatExitWords {
		if normalized == word {
			return true
		}
	}
	return false
}

func stripMarkdown(text string) string {
	return strings.TrimSpace(markdownMarker.ReplaceAllString(text, ""))
}

// GeminiResponder answers through the Gemini API, replaying the session
// history as prior turns.
type GeminiResponder struct {
	Model  string
	client *genai.Client
}

type geminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

func newGeminiResponder(ctx context.Context, opts geminiOptions) (*GeminiResponder, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini api key missing")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiResponder{Model: opts.Model, client: client}, nil
}

func (g *GeminiResponder) Reply(ctx context.Context, history []chatTurn, message string) (string, error) {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		contents = append(contents, &genai.Content{Role: turn.Role, Parts: []*genai.Part{{Text: turn.Text}}})
	}
	contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: message}}})

	resp, err := g.client.Models.GenerateContent(ctx, g.Model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", errors.New("gemini returned an empty reply")
	}
	return text.String(), nil
}

type faqEntry struct {
	Keywords []string
	Answer   string
}

// FAQResponder answers from a fixed list of portal questions.
type FAQResponder struct {
	Entries []faqEntry
}

var defaultFAQ = []faqEntry{
	{Keywords: []string{"1930", "helpline", "call", "urgent"}, Answer: "For financial fraud call the national cybercrime helpline 1930 as soon as possible. Quick reporting helps freeze the money."},
	{Keywords: []string{"evidence", "proof", "screenshot", "document", "documents"}, Answer: "Keep screenshots, transaction IDs, bank statements, phone numbers, links and chat logs. Do not delete the original messages."},
	{Keywords: []string{"status", "track", "reference"}, Answer: "Your acknowledgement email carries a reference number. Quote it when you contact the cyber cell about your complaint."},
	{Keywords: []string{"fraud", "money", "bank", "upi", "debited"}, Answer: "Contact your bank to block the card or account, call 1930, and file the complaint here with the transaction details."},
	{Keywords: []string{"hacked", "password", "account", "hack"}, Answer: "Reset the password from a safe device, enable two-factor authentication, sign out of all sessions and then file a complaint."},
	{Keywords: []string{"harass", "harassment", "stalking", "threat", "blackmail"}, Answer: "Do not respond to the sender. Save the evidence, block and report the profile on the platform, and file a complaint here."},
	{Keywords: []string{"file", "complaint", "report", "how"}, Answer: "Fill in the incident details on this page, review them, then confirm. You can download a PDF copy of your complaint."},
	{Keywords: []string{"hello", "hi", "hey", "namaste"}, Answer: "Hello! I can help you file a cybercrime complaint. What happened?"},
}

func (f *FAQResponder) Reply(_ context.Context, _ []chatTurn, message string) (string, error) {
	tokens := tokenizeComplaint(message)
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		seen[token] = struct{}{}
	}
	for _, entry := range f.Entries {
		for _, keyword := range entry.Keywords {
			if _, ok := seen[keyword]; ok {
				return entry.Answer, nil
			}
		}
	}
	return "I can help with filing a complaint, the evidence to keep and the 1930 helpline. Please tell me a little more.", nil
}

// FallbackResponder prioritizes Primary and falls back to Secondary.
type FallbackResponder struct {
	Primary   ChatResponder
	Secondary ChatResponder
	OnError   func(error)
}

func (r *FallbackResponder) Reply(ctx context.Context, history []chatTurn, message string) (string, error) {
	reply, err := r.Primary.Reply(ctx, history, message)
	if err == nil && strings.TrimSpace(reply) != "" {
		return reply, nil
	}
	if err != nil && r.OnError != nil {
		r.OnError(err)
	}
	return r.Secondary.Reply(ctx, history, message)
}
