package main

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	portalTemplateLayoutPath   = "templates/portal/layout.tmpl"
	portalTemplateLoginPath    = "templates/portal/login.tmpl"
	portalTemplateRegisterPath = "templates/portal/register.tmpl"
	portalTemplateHomePath     = "templates/portal/home.tmpl"
	portalTemplateFormPath     = "templates/portal/form.tmpl"

	redirectDelay   = "1.5"
	maxChatEntries  = 50
	chatSenderUser  = "user"
	chatSenderBot   = "bot"
	formStepEdit    = "edit"
	formStepReview  = "review"
	pdfDownloadName = "cybercrime_report.pdf"
)

var reportCategories = []string{
	"Financial Fraud",
	"Online Harassment",
	"Cyberstalking",
	"Phishing",
	"Identity Theft",
	"Hacking",
	"Other Cybercrime",
}

type portalBaseViewData struct {
	Title         string
	SessionEmail  string
	ErrorMessage  string
	NoticeMessage string
	// RedirectURL triggers a client-side navigation after redirectDelay seconds.
	RedirectURL   string
	RedirectDelay string
}

type loginViewData struct {
	portalBaseViewData
	Email string
}

type registerViewData struct {
	portalBaseViewData
	Email string
}

type homeViewData struct {
	portalBaseViewData
}

type reportFields struct {
	Name        string
	Email       string
	Category    string
	Date        string
	Time        string
	Location    string
	Reason      string
	Description string
}

// complete reports whether every field, reason included, is filled in.
func (f reportFields) complete() bool {
	for _, value := range []string{f.Name, f.Email, f.Category, f.Date, f.Time, f.Location, f.Reason, f.Description} {
		if strings.TrimSpace(value) == "" {
			return false
		}
	}
	return true
}

type chatEntry struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// formState is everything the Form page carries between requests. It lives
// in the page itself as form fields and hidden inputs.
type formState struct {
	Fields      reportFields
	Step        string
	Submitted   bool
	ChatOpen    bool
	ChatSession string
	ChatDraft   string
	Chat        []chatEntry
}

func decodeFormState(c *gin.Context) formState {
	state := formState{
		Fields: reportFields{
			Name:        c.PostForm("name"),
			Email:       c.PostForm("email"),
			Category:    c.PostForm("category"),
			Date:        c.PostForm("date"),
			Time:        c.PostForm("time"),
			Location:    c.PostForm("location"),
			Reason:      c.PostForm("reason"),
			Description: c.PostForm("description"),
		},
		Step:        c.PostForm("step"),
		Submitted:   c.PostForm("submitted") == "true",
		ChatOpen:    c.PostForm("chat_open") == "true",
		ChatSession: strings.TrimSpace(c.PostForm("chat_session")),
		ChatDraft:   c.PostForm("chat_draft"),
	}
	if state.Step != formStepReview {
		state.Step = formStepEdit
	}

	if raw := c.PostForm("chat_log"); raw != "" {
		var entries []chatEntry
		if err := json.Unmarshal([]byte(raw), &entries); err == nil {
			state.Chat = entries
		}
	}
	state.trimChat()
	return state
}

func (s *formState) appendChat(sender, text string) {
	s.Chat = append(s.Chat, chatEntry{Sender: sender, Text: text})
	s.trimChat()
}

func (s *formState) trimChat() {
	if len(s.Chat) > maxChatEntries {
		s.Chat = append([]chatEntry{}, s.Chat[len(s.Chat)-maxChatEntries:]...)
	}
}

func (s formState) encodeChatLog() string {
	if len(s.Chat) == 0 {
		return ""
	}
	encoded, err := json.Marshal(s.Chat)
	if err != nil {
		return ""
	}
	return string(encoded)
}

type formViewData struct {
	portalBaseViewData
	formState
	Categories  []string
	ChatLog     string
	CanRetryPDF bool
}
