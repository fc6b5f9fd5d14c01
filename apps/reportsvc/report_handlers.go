package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	pdfContentType  = "application/pdf"
	pdfDownloadName = "cybercrime_report.pdf"
)

var requiredComplaintFields = []string{"complaint", "name", "email", "date", "time", "location"}

func (a *App) generatePDFHandler(c *gin.Context) {
	for _, field := range requiredComplaintFields {
		if strings.TrimSpace(c.PostForm(field)) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing field: " + field})
			return
		}
	}

	info := complaintInfo{
		Complaint: strings.TrimSpace(c.PostForm("complaint")),
		Name:      strings.TrimSpace(c.PostForm("name")),
		Email:     strings.TrimSpace(c.PostForm("email")),
		Date:      strings.TrimSpace(c.PostForm("date")),
		Time:      strings.TrimSpace(c.PostForm("time")),
		Location:  strings.TrimSpace(c.PostForm("location")),
		Reason:    strings.TrimSpace(c.PostForm("reason")),
		Category:  strings.TrimSpace(c.PostForm("category")),
	}

	predicted := classifyComplaint(info.Complaint)
	pdf, err := buildComplaintPDF(info, predicted)
	if err != nil {
		a.log.Error("pdf generation failed", "err", err)
		a.errors.CaptureException(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate report"})
		return
	}

	a.archivePDF(c.Request.Context(), pdf)

	a.log.Info("complaint pdf generated", "predicted_category", predicted, "bytes", len(pdf))
	c.Header("Content-Disposition", `attachment; filename="`+pdfDownloadName+`"`)
	c.Data(http.StatusOK, pdfContentType, pdf)
}

// archivePDF is best effort; the caller always gets its PDF.
func (a *App) archivePDF(ctx context.Context, pdf []byte) {
	if a.archive == nil {
		return
	}
	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveCallTimeout)
	defer cancel()

	key, err := a.archive.Store(archiveCtx, pdf, a.now())
	if err != nil {
		a.log.Error("pdf archive failed", "err", err)
		a.errors.CaptureException(err)
		return
	}
	a.log.Info("pdf archived", "key", key)
}

func (a *App) chatHandler(c *gin.Context) {
	message := strings.TrimSpace(c.PostForm("msg"))
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing field: msg"})
		return
	}
	session := strings.TrimSpace(c.PostForm("session"))

	c.JSON(http.StatusOK, gin.H{"response": a.converse(c.Request.Context(), session, message)})
}
