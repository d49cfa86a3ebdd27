// Package intake turns Slack lead alerts into persisted leads.
package intake

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/lead-intake/internal/model"
)

// ParsedLead is the structured content of one lead-alert message.
type ParsedLead struct {
	Company     string `json:"company"`
	ContactName string `json:"contact_name"`
	JobTitle    string `json:"job_title"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	State       string `json:"state"`
	Country     string `json:"country"`
	UseCase     string `json:"use_case"`
	Timeline    string `json:"timeline"`
	LeadSource  string `json:"lead_source"`
	LeadScore   int    `json:"lead_score"`
	TellUsMore  string `json:"tell_us_more"`
	RawText     string `json:"raw_text"`
}

type field int

const (
	fieldNone field = iota
	fieldCompany
	fieldContactName
	fieldJobTitle
	fieldPhone
	fieldEmail
	fieldState
	fieldCountry
	fieldUseCase
	fieldTimeline
	fieldLeadSource
	fieldLeadScore
	fieldTellUsMore
)

// labelFields maps folded label text to a field.
var labelFields = map[string]field{
	"company":            fieldCompany,
	"contact name":       fieldContactName,
	"job title":          fieldJobTitle,
	"phone":              fieldPhone,
	"email":              fieldEmail,
	"state":              fieldState,
	"country / region":   fieldCountry,
	"country/region":     fieldCountry,
	"country":            fieldCountry,
	"use case":           fieldUseCase,
	"timeline":           fieldTimeline,
	"lead source":        fieldLeadSource,
	"overall lead score": fieldLeadScore,
	"lead score":         fieldLeadScore,
	"tell us more":       fieldTellUsMore,
}

var labelRe = regexp.MustCompile(`^\*([^*]+):\*\s*(.*)$`)

func lookupLabel(label string) field {
	folded := strings.Join(strings.Fields(cases.Lower(language.Und).String(label)), " ")
	return labelFields[folded]
}

// ParseMessage extracts lead fields from "*Label:* value" lines. Lines that
// do not start a label continue the current field's value. Unknown labels
// are dropped. ParseMessage never fails; absent fields stay empty.
func ParseMessage(text string) ParsedLead {
	p := ParsedLead{RawText: text}

	var (
		current string
		value   strings.Builder
		started bool
	)
	flush := func() {
		if started {
			p.set(lookupLabel(current), strings.TrimSpace(value.String()))
		}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if m := labelRe.FindStringSubmatch(line); m != nil {
			flush()
			current, started = m[1], true
			value.Reset()
			value.WriteString(m[2])
			continue
		}
		if !started {
			continue
		}
		if value.Len() > 0 {
			value.WriteByte('\n')
		}
		value.WriteString(line)
	}
	flush()

	return p
}

func (p *ParsedLead) set(f field, v string) {
	switch f {
	case fieldCompany:
		p.Company = v
	case fieldContactName:
		p.ContactName = v
	case fieldJobTitle:
		p.JobTitle = v
	case fieldPhone:
		p.Phone = v
	case fieldEmail:
		p.Email = v
	case fieldState:
		p.State = v
	case fieldCountry:
		p.Country = v
	case fieldUseCase:
		p.UseCase = v
	case fieldTimeline:
		p.Timeline = v
	case fieldLeadSource:
		p.LeadSource = v
	case fieldLeadScore:
		p.LeadScore = parseLeadingInt(v)
	case fieldTellUsMore:
		p.TellUsMore = v
	}
}

// parseLeadingInt parses an optional sign and the leading decimal digits of
// s, so "75 (High)" yields 75. Anything else yields 0.
func parseLeadingInt(s string) int {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n, digits := 0, 0
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		digits++
		if n > 1_000_000_000 {
			break
		}
	}
	if digits == 0 {
		return 0
	}
	if neg {
		return -n
	}
	return n
}

// CheckRequired lists the required fields that are empty, using lead
// column names. A zero lead score counts as missing.
func CheckRequired(p ParsedLead) []string {
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("company", p.Company)
	check("contact_name", p.ContactName)
	check("job_title", p.JobTitle)
	check("email", p.Email)
	check("use_case", p.UseCase)
	if p.LeadScore == 0 {
		missing = append(missing, "lead_score")
	}
	return missing
}

// MissingFieldsMessage formats the validation note stored on a lead
// rejected at intake.
func MissingFieldsMessage(missing []string) string {
	return "Missing required fields: " + strings.Join(missing, ", ")
}

// ToLead converts the parsed message into a new lead. Leads with missing
// required fields start invalid; all others start pending.
func (p ParsedLead) ToLead() *model.Lead {
	lead := &model.Lead{
		Company:       p.Company,
		ContactName:   p.ContactName,
		JobTitle:      p.JobTitle,
		Phone:         NormalizePhone(p.Phone, p.Country),
		Email:         strings.ToLower(p.Email),
		State:         p.State,
		Country:       p.Country,
		UseCase:       p.UseCase,
		Timeline:      p.Timeline,
		LeadSource:    p.LeadSource,
		LeadScore:     p.LeadScore,
		TellUsMore:    p.TellUsMore,
		RawMessage:    p.RawText,
		Status:        model.LeadStatusPending,
		PipelineStage: model.StageUnassigned,
	}
	if missing := CheckRequired(p); len(missing) > 0 {
		lead.Status = model.LeadStatusInvalid
		lead.ValidationErrors = MissingFieldsMessage(missing)
	}
	return lead
}
