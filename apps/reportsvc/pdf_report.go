package main

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
)

type complaintInfo struct {
	Complaint string
	Name      string
	Email     string
	Date      string
	Time      string
	Location  string
	Reason    string
	Category  string
}

type categoryGuidance struct {
	Impact          []string
	Recommendations []string
}

var defaultGuidance = categoryGuidance{
	Impact: []string{
		"Financial loss",
		"Unauthorized access to personal information",
		"Legal implications",
	},
	Recommendations: []string{
		"Report the incident to the relevant authorities.",
		"Change passwords and enable two-factor authentication.",
		"Stay cautious and educate others about similar threats.",
	},
}

var guidanceByCategory = map[string]categoryGuidance{
	"Financial Fraud": {
		Impact: []string{"Financial loss", "Unauthorized bank transactions", "Identity theft"},
		Recommendations: []string{
			"Contact your bank immediately.",
			"Report the fraud on the cybercrime portal or call 1930.",
			"Keep records of all fraudulent transactions.",
		},
	},
	"Online Harassment": {
		Impact: []string{"Emotional distress", "Reputational damage", "Legal consequences"},
		Recommendations: []string{
			"Block and report the harasser on the platform.",
			"Save screenshots and chat logs.",
			"File a complaint with the cyber cell.",
		},
	},
	"Cyberstalking": {
		Impact: []string{"Invasion of privacy", "Constant fear or anxiety", "Safety threats"},
		Recommendations: []string{
			"Do not engage with the stalker.",
			"Inform close contacts and change passwords.",
			"File a police report with all records.",
		},
	},
	"Phishing": {
		Impact: []string{"Stolen credentials", "Financial loss", "Further targeted attacks"},
		Recommendations: []string{
			"Do not click further links from the sender.",
			"Change the passwords of any account you entered on the page.",
			"Forward the message to your bank or service provider.",
		},
	},
	"Identity Theft": {
		Impact: []string{"Misuse of personal documents", "Fraudulent accounts or loans", "Reputational damage"},
		Recommendations: []string{
			"Alert the issuers of the affected documents.",
			"Monitor your credit report and bank statements.",
			"Keep copies of all evidence of the misuse.",
		},
	},
	"Hacking": {
		Impact: []string{"Loss of account control", "Data exposure", "Malware spreading to contacts"},
		Recommendations: []string{
			"Recover the account and sign out of all sessions.",
			"Change passwords and enable two-factor authentication.",
			"Scan affected devices for malware.",
		},
	},
}

func guidanceFor(category string) (string, categoryGuidance) {
	summary := fmt.Sprintf("The complaint suggests a case of %s. Such cases can lead to serious consequences.", category)
	if guidance, ok := guidanceByCategory[category]; ok {
		return summary, guidance
	}
	return summary, defaultGuidance
}

// buildComplaintPDF renders the complaint report. Text goes through the
// cp1252 translator because the core fonts are not UTF-8.
func buildComplaintPDF(info complaintInfo, predicted string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Cybercrime Complaint Report", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Cybercrime Complaint Report", "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Helvetica", "", 12)
	details := []string{
		"Name: " + info.Name,
		"Email: " + info.Email,
		"Date & Time: " + strings.TrimSpace(info.Date+" "+info.Time),
		"Location: " + info.Location,
	}
	if info.Reason != "" {
		details = append(details, "Reason for delay: "+info.Reason)
	}
	pdf.MultiCell(0, 8, tr(strings.Join(details, "\n")), "", "L", false)

	writeSection := func(title string) {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
	}

	writeSection("Complaint Description:")
	pdf.MultiCell(0, 8, tr(info.Complaint), "", "L", false)

	writeSection("Category")
	if info.Category != "" {
		pdf.CellFormat(0, 8, tr("Reported Category: "+info.Category), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 8, tr("Predicted Category: "+predicted), "", 1, "L", false, 0, "")

	summary, guidance := guidanceFor(predicted)
	writeSection("Incident Summary:")
	pdf.MultiCell(0, 8, tr(summary), "", "L", false)

	writeSection("Possible Impact:")
	for _, item := range guidance.Impact {
		pdf.CellFormat(0, 8, tr("- "+item), "", 1, "L", false, 0, "")
	}

	writeSection("Recommended Actions:")
	for _, action := range guidance.Recommendations {
		pdf.CellFormat(0, 8, tr("- "+action), "", 1, "L", false, 0, "")
	}

	buffer := bytes.NewBuffer(nil)
	if err := pdf.Output(buffer); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}
