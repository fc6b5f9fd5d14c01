package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccountAPI struct {
	loginErr    error
	registerErr error
	submitErr   error
	submitted   []reportFields
}

func (f *fakeAccountAPI) Login(context.Context, string, string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return "Login successful", nil
}

func (f *fakeAccountAPI) Register(context.Context, string, string) (string, error) {
	if f.registerErr != nil {
		return "", f.registerErr
	}
	return "Registration successful", nil
}

func (f *fakeAccountAPI) SubmitReport(_ context.Context, report reportFields) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	f.submitted = append(f.submitted, report)
	return "Form submitted successfully", nil
}

type fakeReportService struct {
	pdfErr    error
	chatErr   error
	pdfCalls  int
	chatCalls []string
}

func (f *fakeReportService) GeneratePDF(context.Context, reportFields) ([]byte, error) {
	f.pdfCalls++
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	return []byte("%PDF-1.3 fake"), nil
}

func (f *fakeReportService) Chat(_ context.Context, sessionID, message string) (string, error) {
	f.chatCalls = append(f.chatCalls, sessionID+"|"+message)
	if f.chatErr != nil {
		return "", f.chatErr
	}
	return "Call the 1930 helpline.", nil
}

type portalHarness struct {
	app     *App
	api     *fakeAccountAPI
	reports *fakeReportService
	router  *gin.Engine
}

func newPortalHarness(t *testing.T) *portalHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	api := &fakeAccountAPI{}
	reports := &fakeReportService{}
	app := &App{
		cfg: &Config{
			Env:             "test",
			SigningSecret:   "0123456789abcdef",
			OutboundTimeout: time.Second,
		},
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		api:       api,
		reports:   reports,
		templates: newPortalTemplateRenderer("test", ""),
	}
	router, err := app.routes()
	require.NoError(t, err)
	return &portalHarness{app: app, api: api, reports: reports, router: router}
}

func (h *portalHarness) post(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *portalHarness) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func completeForm(action string) url.Values {
	return url.Values{
		"action":      {action},
		"name":        {"Asha Rao"},
		"email":       {"asha@example.com"},
		"category":    {"Phishing"},
		"date":        {"2026-10-01"},
		"time":        {"10:15"},
		"location":    {"Chennai"},
		"reason":      {"Waited for bank reply"},
		"description": {"Got an SMS with a fake KYC link."},
	}
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == portalSessionCookieName {
			return cookie
		}
	}
	return nil
}

func TestLoginPageRenders(t *testing.T) {
	h := newPortalHarness(t)

	rec := h.get("/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Login to NCRP Portal")
	assert.Contains(t, rec.Body.String(), `href="/register"`)
}

func TestLoginRequiresBothFields(t *testing.T) {
	h := newPortalHarness(t)

	rec := h.post("/login", url.Values{"email": {"a@example.com"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), msgLoginMissing)
}

func TestLoginSuccessSetsSessionAndRedirects(t *testing.T) {
	h := newPortalHarness(t)

	rec := h.post("/login", url.Values{"email": {"asha@example.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, msgLoginSuccess)
	assert.Contains(t, body, `content="1.5;url=/home"`)

	cookie := sessionCookie(t, rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	home := h.get("/home", cookie)
	assert.Contains(t, home.Body.String(), "Signed in as asha@example.com")
}

func TestLoginFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "server message", err: &apiRejection{Status: http.StatusUnauthorized, Message: "Invalid email or password"}, want: "Invalid email or password"},
		{name: "fallback", err: &apiRejection{Status: http.StatusBadGateway}, want: msgLoginFailed},
		{name: "transport", err: errors.New("dial tcp: connection refused"), want: msgConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newPortalHarness(t)
			h.api.loginErr = tt.err

			rec := h.post("/login", url.Values{"email": {"a@example.com"}, "password": {"pw"}})
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Nil(t, sessionCookie(t, rec))
			assert.NotContains(t, rec.Body.String(), "http-equiv")
		})
	}
}

func TestRegisterFlow(t *testing.T) {
	h := newPortalHarness(t)

	rec := h.post("/register", url.Values{"email": {"new@example.com"}})
	assert.Contains(t, rec.Body.String(), msgRegisterMissing)

	h.api.registerErr = &apiRejection{Status: http.StatusConflict, Message: "Email already registered"}
	rec = h.post("/register", url.Values{"email": {"new@example.com"}, "password": {"pw"}})
	assert.Contains(t, rec.Body.String(), "Email already registered")

	h.api.registerErr = nil
	rec = h.post("/register", url.Values{"email": {"new@example.com"}, "password": {"pw"}})
	assert.Contains(t, rec.Body.String(), msgRegisterSuccess)
	assert.Contains(t, rec.Body.String(), `content="1.5;url=/"`)
}

func TestLogoutClearsSession(t *testing.T) {
	h := newPortalHarness(t)

	rec := h.post("/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookie := sessionCookie(t, rec)
	require.NotNil(t, cookie)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestFormReviewRequiresEveryField(t *testing.T) {
	h := newPortalHarness(t)

	form := completeForm(formActionReview)
	form.Set("reason", " ")
	rec := h.post("/form", form)
	assert.Contains(t, rec.Body.String(), msgFormIncomplete)
	assert.NotContains(t, rec.Body.String(), "Review your report")

	rec = h.post("/form", completeForm(formActionReview))
	assert.NotContains(t, rec.Body.String(), msgFormIncomplete)
	assert.Contains(t, rec.Body.String(), "Review your report")
	assert.Contains(t, rec.Body.String(), "Got an SMS with a fake KYC link.")
}

func TestFormEditLeavesReview(t *testing.T) {
	h := newPortalHarness(t)

	rec := h.post("/form", completeForm(formActionEdit))
	assert.Contains(t, rec.Body.String(), "Incident Details")
	assert.Contains(t, rec.Body.String(), `value="Asha Rao"`)
}

func TestFormConfirmSubmitsThenStreamsPDF(t *testing.T) {
	h := newPortalHarness(t)

	rec := h.post("/form", completeForm(formActionConfirm))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="cybercrime_report.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	require.Len(t, h.api.submitted, 1)
	assert.Equal(t, "Waited for bank reply", h.api.submitted[0].Reason)
	assert.Equal(t, 1, h.reports.pdfCalls)
}

func TestFormConfirmAPIFailureSkipsPDF(t *testing.T) {
	h := newPortalHarness(t)
	h.api.submitErr = errors.New("connection refused")

	rec := h.post("/form", completeForm(formActionConfirm))
	assert.Contains(t, rec.Body.String(), msgConnectionFailed)
	assert.Equal(t, 0, h.reports.pdfCalls)
}

func TestFormPDFFailureOffersRetryWithoutResubmitting(t *testing.T) {
	h := newPortalHarness(t)
	h.reports.pdfErr = errors.New("report service error (500)")

	rec := h.post("/form", completeForm(formActionConfirm))
	body := rec.Body.String()
	assert.Contains(t, body, msgReportPDFFailed)
	assert.Contains(t, body, `value="pdf"`)
	assert.Contains(t, body, `name="submitted" value="true"`)
	require.Len(t, h.api.submitted, 1)

	h.reports.pdfErr = nil
	retry := completeForm(formActionPDF)
	retry.Set("submitted", "true")
	rec = h.post("/form", retry)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Len(t, h.api.submitted, 1)
	assert.Equal(t, 2, h.reports.pdfCalls)
}

func TestFormPDFActionRequiresCompleteFields(t *testing.T) {
	h := newPortalHarness(t)

	form := completeForm(formActionPDF)
	form.Set("location", "  ")
	rec := h.post("/form", form)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), msgFormIncomplete)
	assert.Zero(t, h.reports.pdfCalls)
	assert.Empty(t, h.api.submitted)
}

func TestFormPDFFailureBeforeSubmitDoesNotClaimSubmission(t *testing.T) {
	h := newPortalHarness(t)
	h.reports.pdfErr = errors.New("report service error (500)")

	rec := h.post("/form", completeForm(formActionPDF))

	body := rec.Body.String()
	assert.Contains(t, body, msgPDFFailed)
	assert.NotContains(t, body, msgReportPDFFailed)
	assert.Equal(t, 1, h.reports.pdfCalls)
	assert.Empty(t, h.api.submitted)
}

func TestFormChatAppendsReply(t *testing.T) {
	h := newPortalHarness(t)

	form := completeForm(formActionChat)
	form.Set("chat_draft", "How do I report UPI fraud?")
	rec := h.post("/form", form)

	body := rec.Body.String()
	assert.Contains(t, body, "How do I report UPI fraud?")
	assert.Contains(t, body, "Call the 1930 helpline.")
	assert.Contains(t, body, `value="Asha Rao"`)
	require.Len(t, h.reports.chatCalls, 1)
	assert.False(t, strings.HasPrefix(h.reports.chatCalls[0], "|"), "expected a chat session id")
}

func TestFormChatFailureAppendsNotice(t *testing.T) {
	h := newPortalHarness(t)
	h.reports.chatErr = errors.New("timeout")

	form := completeForm(formActionChat)
	form.Set("chat_draft", "hello")
	rec := h.post("/form", form)
	assert.Contains(t, rec.Body.String(), msgChatUnreachable)
}

func TestFormChatHistoryIsCapped(t *testing.T) {
	entries := make([]chatEntry, maxChatEntries)
	for i := range entries {
		entries[i] = chatEntry{Sender: chatSenderUser, Text: "old"}
	}
	raw, err := json.Marshal(entries)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	form := url.Values{"chat_log": {string(raw)}}
	c.Request = httptest.NewRequest(http.MethodPost, "/form", strings.NewReader(form.Encode()))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	state := decodeFormState(c)
	state.appendChat(chatSenderUser, "new")
	state.appendChat(chatSenderBot, "reply")

	require.Len(t, state.Chat, maxChatEntries)
	assert.Equal(t, "reply", state.Chat[len(state.Chat)-1].Text)
	assert.Equal(t, "new", state.Chat[len(state.Chat)-2].Text)
}

func TestFormToggleChat(t *testing.T) {
	h := newPortalHarness(t)

	form := completeForm(formActionToggleChat)
	rec := h.post("/form", form)
	assert.Contains(t, rec.Body.String(), "NCRP Chatbot")

	form.Set("chat_open", "true")
	rec = h.post("/form", form)
	assert.NotContains(t, rec.Body.String(), "NCRP Chatbot")
}

func TestFormPagePrefillsSessionEmail(t *testing.T) {
	h := newPortalHarness(t)
	token, err := h.app.createSessionToken(portalSession{Email: "asha@example.com"}, time.Now())
	require.NoError(t, err)

	rec := h.get("/form", &http.Cookie{Name: portalSessionCookieName, Value: token})
	assert.Contains(t, rec.Body.String(), `value="asha@example.com"`)
}
