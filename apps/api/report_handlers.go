package main

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"ncrp/libs/mailer"

	"github.com/gin-gonic/gin"
)

const (
	maxShortFieldLength   = 200
	maxReasonLength       = 2000
	maxDescriptionLength  = 5000
	ackEmailSendTimeout   = 10 * time.Second
	ackEmailSubjectFormat = "NCRP complaint received - reference %s"
)

type reportPayload struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Category    string `json:"category"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
}

var (
	errMissingReportFields = &apiError{Status: http.StatusBadRequest, Code: "missing_fields", Message: "Missing required fields"}
	errFieldTooLong        = &apiError{Status: http.StatusBadRequest, Code: "field_too_long", Message: "Field exceeds maximum length"}
)

func (p *reportPayload) normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = normalizeEmail(p.Email)
	p.Category = strings.TrimSpace(p.Category)
	p.Date = strings.TrimSpace(p.Date)
	p.Time = strings.TrimSpace(p.Time)
	p.Location = strings.TrimSpace(p.Location)
	p.Reason = strings.TrimSpace(p.Reason)
	p.Description = strings.TrimSpace(p.Description)
}

func (p reportPayload) validate() error {
	required := []string{p.Name, p.Email, p.Category, p.Date, p.Time, p.Location, p.Description}
	for _, value := range required {
		if value == "" {
			return errMissingReportFields
		}
	}

	short := []string{p.Name, p.Email, p.Category, p.Date, p.Time, p.Location}
	for _, value := range short {
		if utf8.RuneCountInString(value) > maxShortFieldLength {
			return errFieldTooLong
		}
	}
	if utf8.RuneCountInString(p.Reason) > maxReasonLength || utf8.RuneCountInString(p.Description) > maxDescriptionLength {
		return errFieldTooLong
	}
	return nil
}

func (a *App) submitFormHandler(c *gin.Context) {
	var payload reportPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		a.writeAPIError(c, errMissingReportFields)
		return
	}
	payload.normalize()
	if err := payload.validate(); err != nil {
		a.writeAPIError(c, err)
		return
	}

	report := IncidentReport{
		ReferenceID: generateReferenceID(),
		Name:        payload.Name,
		Email:       payload.Email,
		Category:    payload.Category,
		Date:        payload.Date,
		Time:        payload.Time,
		Location:    payload.Location,
		Reason:      payload.Reason,
		Description: payload.Description,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storeCallTimeout)
	defer cancel()
	if err := a.store.InsertReport(ctx, &report); err != nil {
		a.writeAPIError(c, err)
		return
	}
	a.log.Info("report submitted", "report_id", report.ID, "reference_id", report.ReferenceID, "category", report.Category)

	if a.cfg.ReportAckEmails {
		a.sendReportAcknowledgement(c.Request.Context(), report)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Form submitted successfully"})
}

// sendReportAcknowledgement never fails the submission; errors end up in the
// log and the error tracker.
func (a *App) sendReportAcknowledgement(ctx context.Context, report IncidentReport) {
	if a.mailer == nil {
		return
	}
	if _, err := mail.ParseAddress(report.Email); err != nil {
		a.log.Warn("skipping acknowledgement email, invalid address", "reference_id", report.ReferenceID)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ackEmailSendTimeout)
	defer cancel()

	result, err := a.mailer.Send(sendCtx, buildReportAcknowledgementEmail(report))
	if err != nil {
		a.log.Error("failed to send acknowledgement email", "reference_id", report.ReferenceID, "err", err)
		a.errors.CaptureException(fmt.Errorf("acknowledgement email for %s: %w", report.ReferenceID, err))
		return
	}
	a.log.Info("acknowledgement email sent",
		"reference_id", report.ReferenceID,
		"provider", a.mailer.ProviderName(),
		"provider_message_id", result.ProviderMessageID,
	)
}

func buildReportAcknowledgementEmail(report IncidentReport) mailer.Message {
	name := html.EscapeString(report.Name)
	reference := html.EscapeString(report.ReferenceID)
	category := html.EscapeString(report.Category)
	when := html.EscapeString(report.Date + " " + report.Time)
	location := html.EscapeString(report.Location)

	body := fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; line-height: 1.6; color: #333;">
			<h2>Dear %s,</h2>
			<p>Your cybercrime complaint has been registered with the National Cybercrime Reporting Portal.</p>
			<table style="border-collapse: collapse; margin: 20px 0;">
				<tr><td style="padding: 4px 12px 4px 0; color: #666;">Reference</td><td><strong>%s</strong></td></tr>
				<tr><td style="padding: 4px 12px 4px 0; color: #666;">Category</td><td>%s</td></tr>
				<tr><td style="padding: 4px 12px 4px 0; color: #666;">Date and time</td><td>%s</td></tr>
				<tr><td style="padding: 4px 12px 4px 0; color: #666;">Location</td><td>%s</td></tr>
			</table>
			<p>Please quote the reference in any follow-up. For urgent financial fraud, call the helpline 1930 immediately.</p>
			<hr style="margin-top: 40px; border: 0; border-top: 1px solid #eee;" />
			<p style="font-size: 12px; color: #999; text-align: center;">This is an automated message. Do not reply.</p>
		</div>
	`, name, reference, category, when, location)

	text := fmt.Sprintf(
		"Dear %s,\n\nYour cybercrime complaint has been registered.\n\nReference: %s\nCategory: %s\nDate and time: %s %s\nLocation: %s\n\nPlease quote the reference in any follow-up. For urgent financial fraud, call the helpline 1930 immediately.",
		report.Name, report.ReferenceID, report.Category, report.Date, report.Time, report.Location,
	)

	return mailer.Message{
		To:      []string{report.Email},
		Subject: fmt.Sprintf(ackEmailSubjectFormat, report.ReferenceID),
		HTML:    body,
		Text:    text,
		Tags:    map[string]string{"type": "report_acknowledgement"},
	}
}
