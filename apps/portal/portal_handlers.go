package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgLoginMissing        = "Please enter both email and password."
	msgLoginSuccess        = "Login successful. Redirecting..."
	msgLoginFailed         = "Invalid email or password."
	msgRegisterMissing     = "Please fill in all fields."
	msgRegisterSuccess     = "Registration successful. Redirecting to login..."
	msgRegisterFailed      = "Registration failed."
	msgConnectionFailed    = "Error connecting to server."
	msgFormIncomplete      = "Please fill in all required fields before submitting."
	msgReportSubmitFailed  = "Could not submit the report."
	msgReportPDFFailed     = "Report submitted, but the PDF could not be generated. Try again later."
	msgPDFFailed           = "The PDF could not be generated. Try again later."
	msgChatUnreachable     = "Could not reach chatbot."
	msgUnknownFormAction   = "Unknown action."
	formActionReview       = "review"
	formActionEdit         = "edit"
	formActionConfirm      = "confirm"
	formActionPDF          = "pdf"
	formActionChat         = "chat"
	formActionToggleChat   = "toggle-chat"
	contentDispositionFile = `attachment; filename="` + pdfDownloadName + `"`
)

func (a *App) renderPortalTemplate(c *gin.Context, status int, contentTemplatePath string, data any) {
	templates, err := a.templates.templatesForRender(contentTemplatePath)
	if err != nil {
		a.log.Error("load portal template failed", "template", contentTemplatePath, "err", err)
		c.String(http.StatusInternalServerError, "portal template error")
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if executeErr := templates.ExecuteTemplate(c.Writer, "layout", data); executeErr != nil {
		a.log.Error("render portal template failed", "template", contentTemplatePath, "err", executeErr)
		if !c.Writer.Written() {
			c.String(http.StatusInternalServerError, "render failure")
		}
	}
}

func (a *App) baseData(c *gin.Context, title string) portalBaseViewData {
	data := portalBaseViewData{Title: title, RedirectDelay: redirectDelay}
	if session := a.currentSession(c); session != nil {
		data.SessionEmail = session.Email
	}
	return data
}

// outboundContext bounds a single call to the API or the report service.
func (a *App) outboundContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), a.cfg.OutboundTimeout)
}

// failureMessage prefers the server's own message, then fallback. Transport
// failures always read as a connection problem.
func failureMessage(err error, fallback string) string {
	var rejection *apiRejection
	if errors.As(err, &rejection) {
		if msg := strings.TrimSpace(rejection.Message); msg != "" {
			return msg
		}
		return fallback
	}
	return msgConnectionFailed
}

func (a *App) loginPageHandler(c *gin.Context) {
	data := loginViewData{portalBaseViewData: a.baseData(c, "Login")}
	data.Email = data.SessionEmail
	a.renderPortalTemplate(c, http.StatusOK, portalTemplateLoginPath, data)
}

func (a *App) loginSubmitHandler(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	data := loginViewData{portalBaseViewData: a.baseData(c, "Login"), Email: email}

	if email == "" || password == "" {
		data.ErrorMessage = msgLoginMissing
		a.renderPortalTemplate(c, http.StatusBadRequest, portalTemplateLoginPath, data)
		return
	}

	ctx, cancel := a.outboundContext(c)
	defer cancel()
	if _, err := a.api.Login(ctx, email, password); err != nil {
		a.log.Warn("login failed", "err", err)
		data.ErrorMessage = failureMessage(err, msgLoginFailed)
		a.renderPortalTemplate(c, http.StatusOK, portalTemplateLoginPath, data)
		return
	}

	if err := a.startSession(c, email); err != nil {
		a.log.Error("failed to start portal session", "err", err)
	}
	data.NoticeMessage = msgLoginSuccess
	data.RedirectURL = "/home"
	a.renderPortalTemplate(c, http.StatusOK, portalTemplateLoginPath, data)
}

func (a *App) registerPageHandler(c *gin.Context) {
	a.renderPortalTemplate(c, http.StatusOK, portalTemplateRegisterPath, registerViewData{portalBaseViewData: a.baseData(c, "Register")})
}

func (a *App) registerSubmitHandler(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	data := registerViewData{portalBaseViewData: a.baseData(c, "Register"), Email: email}

	if email == "" || password == "" {
		data.ErrorMessage = msgRegisterMissing
		a.renderPortalTemplate(c, http.StatusBadRequest, portalTemplateRegisterPath, data)
		return
	}

	ctx, cancel := a.outboundContext(c)
	defer cancel()
	if _, err := a.api.Register(ctx, email, password); err != nil {
		a.log.Warn("registration failed", "err", err)
		data.ErrorMessage = failureMessage(err, msgRegisterFailed)
		a.renderPortalTemplate(c, http.StatusOK, portalTemplateRegisterPath, data)
		return
	}

	data.NoticeMessage = msgRegisterSuccess
	data.RedirectURL = "/"
	a.renderPortalTemplate(c, http.StatusOK, portalTemplateRegisterPath, data)
}

func (a *App) homePageHandler(c *gin.Context) {
	a.renderPortalTemplate(c, http.StatusOK, portalTemplateHomePath, homeViewData{portalBaseViewData: a.baseData(c, "Home")})
}

func (a *App) logoutHandler(c *gin.Context) {
	a.clearSession(c)
	c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) formPageHandler(c *gin.Context) {
	base := a.baseData(c, "File a Complaint")
	state := formState{Step: formStepEdit}
	state.Fields.Email = base.SessionEmail
	a.renderForm(c, http.StatusOK, base, state, false)
}

func (a *App) formActionHandler(c *gin.Context) {
	base := a.baseData(c, "File a Complaint")
	state := decodeFormState(c)

	switch c.PostForm("action") {
	case formActionReview:
		if !state.Fields.complete() {
			a.renderIncomplete(c, base, state)
			return
		}
		state.Step = formStepReview
		a.renderForm(c, http.StatusOK, base, state, false)

	case formActionEdit:
		state.Step = formStepEdit
		a.renderForm(c, http.StatusOK, base, state, false)

	case formActionConfirm:
		a.confirmReport(c, base, state)

	case formActionPDF:
		if !state.Fields.complete() {
			a.renderIncomplete(c, base, state)
			return
		}
		a.deliverPDF(c, base, state)

	case formActionChat:
		a.sendChatMessage(c, &state)
		a.renderForm(c, http.StatusOK, base, state, false)

	case formActionToggleChat:
		state.ChatOpen = !state.ChatOpen
		a.renderForm(c, http.StatusOK, base, state, false)

	default:
		base.ErrorMessage = msgUnknownFormAction
		a.renderForm(c, http.StatusBadRequest, base, state, false)
	}
}

// confirmReport persists the report first; the PDF is only produced once the
// API has accepted it.
func (a *App) confirmReport(c *gin.Context, base portalBaseViewData, state formState) {
	if !state.Fields.complete() {
		a.renderIncomplete(c, base, state)
		return
	}

	if !state.Submitted {
		ctx, cancel := a.outboundContext(c)
		_, err := a.api.SubmitReport(ctx, state.Fields)
		cancel()
		if err != nil {
			a.log.Warn("report submission failed", "err", err)
			state.Step = formStepReview
			base.ErrorMessage = failureMessage(err, msgReportSubmitFailed)
			a.renderForm(c, http.StatusOK, base, state, false)
			return
		}
		state.Submitted = true
	}

	a.deliverPDF(c, base, state)
}

func (a *App) renderIncomplete(c *gin.Context, base portalBaseViewData, state formState) {
	state.Step = formStepEdit
	base.ErrorMessage = msgFormIncomplete
	a.renderForm(c, http.StatusOK, base, state, false)
}

// deliverPDF streams the report PDF. A failure keeps the review step open
// with a retry that never resubmits.
func (a *App) deliverPDF(c *gin.Context, base portalBaseViewData, state formState) {
	ctx, cancel := a.outboundContext(c)
	defer cancel()

	pdf, err := a.reports.GeneratePDF(ctx, state.Fields)
	if err != nil {
		a.log.Warn("pdf generation failed", "err", err)
		state.Step = formStepReview
		base.ErrorMessage = msgPDFFailed
		if state.Submitted {
			base.ErrorMessage = msgReportPDFFailed
		}
		a.renderForm(c, http.StatusOK, base, state, true)
		return
	}

	c.Header("Content-Disposition", contentDispositionFile)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (a *App) sendChatMessage(c *gin.Context, state *formState) {
	state.ChatOpen = true
	message := strings.TrimSpace(state.ChatDraft)
	if message == "" {
		return
	}
	if state.ChatSession == "" {
		state.ChatSession = uuid.NewString()
	}
	state.appendChat(chatSenderUser, message)
	state.ChatDraft = ""

	ctx, cancel := a.outboundContext(c)
	defer cancel()
	reply, err := a.reports.Chat(ctx, state.ChatSession, message)
	if err != nil {
		a.log.Warn("chat request failed", "err", err)
		state.appendChat(chatSenderBot, msgChatUnreachable)
		return
	}
	state.appendChat(chatSenderBot, reply)
}

func (a *App) renderForm(c *gin.Context, status int, base portalBaseViewData, state formState, canRetryPDF bool) {
	a.renderPortalTemplate(c, status, portalTemplateFormPath, formViewData{
		portalBaseViewData: base,
		formState:          state,
		Categories:         reportCategories,
		ChatLog:            state.encodeChatLog(),
		CanRetryPDF:        canRetryPDF,
	})
}
