// Package validate scores inbound leads. The deterministic rules run on
// every lead; the semantic pass asks an LLM to re-score borderline leads.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/lead-intake/internal/model"
)

// DefaultValidScore is the minimum final score for a valid lead.
const DefaultValidScore = 50

// Result is the outcome of validating one lead.
type Result struct {
	IsValid bool   `json:"isValid"`
	Reason  string `json:"reason"`
	Score   int    `json:"score"`
	// Disqualified marks a fake or disposable email domain. No later check
	// may admit such a lead.
	Disqualified bool `json:"disqualified,omitempty"`
}

// PassedReason is the reason reported when no issues were found.
const PassedReason = "Lead validation passed"

const personalEmailPrefix = "Personal email"

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	fakeDomains = []string{
		"test.com", "example.com", "fake.com", "invalid.com", "localhost", "noemail.com", "sample.com",
	}
	disposableDomains = []string{
		"tempmail.com", "guerrillamail.com", "mailinator.com", "10minutemail.com", "throwaway.email", "yopmail.com",
	}
	personalDomains = []string{
		"gmail.com", "yahoo.com", "hotmail.com", "outlook.com", "aol.com", "icloud.com", "protonmail.com", "mail.com",
	}
	genericCompanies = []string{
		"test company", "test", "demo", "example", "sample",
		"company", "business", "startup", "n/a", "none",
		"abc", "xyz", "asdf", "qwerty",
	}
)

// DomainCheck classifies an email's domain.
type DomainCheck struct {
	IsValid  bool
	Reason   string
	Severity int
}

// CheckEmailDomain classifies the domain after the first "@".
func CheckEmailDomain(email string) DomainCheck {
	parts := strings.Split(email, "@")
	if len(parts) < 2 || parts[1] == "" {
		return DomainCheck{IsValid: false, Reason: "No domain found", Severity: 20}
	}
	d := strings.ToLower(parts[1])

	switch {
	case slices.Contains(fakeDomains, d):
		return DomainCheck{IsValid: false, Reason: "Test/fake domain", Severity: 25}
	case slices.Contains(disposableDomains, d):
		return DomainCheck{IsValid: false, Reason: "Disposable email provider", Severity: 20}
	case slices.Contains(personalDomains, d):
		return DomainCheck{IsValid: true, Reason: fmt.Sprintf("%s (%s)", personalEmailPrefix, d), Severity: 8}
	}
	return DomainCheck{IsValid: true, Reason: "Company domain"}
}

// ValidEmailFormat reports whether email looks like local@domain.tld.
func ValidEmailFormat(email string) bool {
	return emailRe.MatchString(email)
}

// IsGenericCompanyName reports whether name is a placeholder such as "test".
func IsGenericCompanyName(name string) bool {
	return slices.Contains(genericCompanies, strings.ToLower(strings.TrimSpace(name)))
}

// Rules runs the deterministic validation with a configurable pass mark.
// A zero ValidScore means DefaultValidScore; config only accepts 1..100.
type Rules struct {
	ValidScore int
}

// Validate scores lead with the default pass mark.
func Validate(lead *model.Lead) Result {
	return Rules{ValidScore: DefaultValidScore}.Validate(lead)
}

// Validate starts from 100, subtracts a penalty per issue, averages the
// result with the quality score and clamps to [0,100]. The lead is valid
// when the score reaches the pass mark, at most one issue other than a
// personal email was found, and the email domain is not fake or disposable.
func (r Rules) Validate(lead *model.Lead) Result {
	var (
		issues       []string
		disqualified bool
	)
	score := 100

	if strings.TrimSpace(lead.Company) == "" {
		issues = append(issues, "Missing company name")
		score -= 20
	}
	if strings.TrimSpace(lead.ContactName) == "" {
		issues = append(issues, "Missing contact name")
		score -= 20
	}
	if strings.TrimSpace(lead.Email) == "" {
		issues = append(issues, "Missing email address")
		score -= 20
	}

	if lead.Email != "" {
		if !ValidEmailFormat(lead.Email) {
			issues = append(issues, "Invalid email format")
			score -= 15
		}
		dc := CheckEmailDomain(lead.Email)
		switch {
		case !dc.IsValid:
			issues = append(issues, "Suspicious email: "+dc.Reason)
			score -= dc.Severity
			disqualified = true
		case dc.Severity > 0:
			issues = append(issues, dc.Reason)
			score -= dc.Severity
		}
	}

	if lead.Company != "" && IsGenericCompanyName(lead.Company) {
		issues = append(issues, "Generic company name (possible test/spam)")
		score -= 15
	}

	if lead.LeadScore < 0 {
		issues = append(issues, fmt.Sprintf("Negative lead score (%d)", lead.LeadScore))
		score -= 15
	}

	quality := AssessQuality(lead)
	score = model.ClampScore(int(math.Round(float64(score+quality.Total()) / 2)))

	blocking := 0
	for _, issue := range issues {
		if !strings.HasPrefix(issue, personalEmailPrefix) {
			blocking++
		}
	}

	passMark := r.ValidScore
	if passMark == 0 {
		passMark = DefaultValidScore
	}

	reason := PassedReason
	if len(issues) > 0 {
		reason = strings.Join(issues, "; ")
	}
	return Result{
		IsValid:      score >= passMark && blocking <= 1 && !disqualified,
		Reason:       reason,
		Score:        score,
		Disqualified: disqualified,
	}
}

// Quality is the four-bucket quality breakdown. Each bucket is capped at 25.
type Quality struct {
	BasicInfo  int `json:"basic_info"`
	UseCase    int `json:"use_case"`
	Timeline   int `json:"timeline"`
	Engagement int `json:"engagement"`
}

// Total sums the buckets.
func (q Quality) Total() int {
	return q.BasicInfo + q.UseCase + q.Timeline + q.Engagement
}

// AssessQuality scores completeness, use case specificity, timeline urgency
// and engagement.
func AssessQuality(lead *model.Lead) Quality {
	var q Quality

	if lead.Company != "" {
		q.BasicInfo += 10
	}
	if lead.ContactName != "" {
		q.BasicInfo += 8
	}
	if lead.Email != "" {
		q.BasicInfo += 7
	}

	switch {
	case lead.UseCase != "" && lead.UseCase != "Other":
		q.UseCase = 25
	case lead.UseCase != "":
		q.UseCase = 10
	}

	if lead.Timeline != "" {
		t := strings.ToLower(lead.Timeline)
		switch {
		case containsAny(t, "0-30", "immediate", "asap"):
			q.Timeline = 25
		case containsAny(t, "30-60", "60-90"):
			q.Timeline = 18
		case containsAny(t, "90+", "quarter"):
			q.Timeline = 10
		default:
			q.Timeline = 8
		}
	}

	eng := 0
	switch n := utf8.RuneCountInString(lead.TellUsMore); {
	case n > 30:
		eng += 15
	case n > 10:
		eng += 8
	}
	if lead.Phone != "" {
		eng += 5
	}
	if lead.JobTitle != "" {
		eng += 5
	}
	q.Engagement = min(25, eng)

	return q
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
