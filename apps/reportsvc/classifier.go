package main

import (
	"strings"
	"unicode"
)

const fallbackCategory = "Other Cybercrime"

type categoryKeywords struct {
	Category string
	Keywords []string
}

// Order matters: ties go to the earlier category.
var complaintCategories = []categoryKeywords{
	{Category: "Financial Fraud", Keywords: []string{
		"bank", "account", "money", "debited", "debit", "credit", "card", "upi", "transaction",
		"transfer", "loan", "payment", "paid", "rupees", "rs", "inr", "wallet", "refund",
		"investment", "scam", "fraud", "atm", "cheque", "lottery", "otp",
	}},
	{Category: "Online Harassment", Keywords: []string{
		"harass", "harassment", "harassing", "abuse", "abusive", "threat", "threatening", "troll",
		"insult", "bully", "bullying", "morphed", "obscene", "blackmail", "defame", "defamation",
		"vulgar", "comments",
	}},
	{Category: "Cyberstalking", Keywords: []string{
		"stalk", "stalking", "stalker", "follow", "following", "tracking", "tracked", "watching",
		"monitor", "monitoring", "location", "repeatedly", "obsessed", "messages",
	}},
	{Category: "Phishing", Keywords: []string{
		"phishing", "link", "click", "clicked", "email", "sms", "kyc", "verify", "verification",
		"fake", "website", "login", "spoof", "spoofed", "impersonating", "reward",
	}},
	{Category: "Identity Theft", Keywords: []string{
		"identity", "aadhaar", "aadhar", "pan", "impersonate", "impersonation", "profile",
		"documents", "photo", "photos", "name", "misuse", "misused", "sim", "duplicate",
	}},
	{Category: "Hacking", Keywords: []string{
		"hack", "hacked", "hacker", "hacking", "password", "compromised", "malware", "virus",
		"ransomware", "breach", "unauthorized", "access", "locked", "takeover", "device",
	}},
}

var complaintStopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "i": {}, "me": {}, "my": {},
	"we": {}, "our": {}, "you": {}, "your": {}, "he": {}, "she": {}, "it": {}, "they": {},
	"them": {}, "is": {}, "was": {}, "were": {}, "be": {}, "been": {}, "am": {}, "are": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "for": {}, "from": {}, "with": {},
	"by": {}, "this": {}, "that": {}, "someone": {}, "some": {}, "has": {}, "have": {},
	"had": {}, "did": {}, "do": {}, "not": {}, "no": {}, "so": {}, "as": {}, "after": {},
	"then": {}, "also": {}, "very": {}, "who": {}, "which": {},
}

func tokenizeComplaint(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, stop := complaintStopWords[field]; stop {
			continue
		}
		tokens = append(tokens, field)
	}
	return tokens
}

// classifyComplaint scores each category by keyword hits in the complaint.
func classifyComplaint(text string) string {
	tokens := tokenizeComplaint(text)
	if len(tokens) == 0 {
		return fallbackCategory
	}
	counts := make(map[string]int, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}

	best := fallbackCategory
	bestScore := 0
	for _, entry := range complaintCategories {
		score := 0
		for _, keyword := range entry.Keywords {
			score += counts[keyword]
		}
		if score > bestScore {
			best = entry.Category
			bestScore = score
		}
	}
	return best
}
