package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-intake/internal/model"
)

func completeLead() *model.Lead {
	return &model.Lead{
		Company:     "Acme Mfg",
		ContactName: "John Doe",
		JobTitle:    "Plant Manager",
		Email:       "john@acme.com",
		Phone:       "+16502530000",
		UseCase:     "Welding",
		Timeline:    "0-30 days",
		LeadScore:   75,
		TellUsMore:  "We run two shifts of MIG welding and want to automate.",
	}
}

func TestValidate_CompleteLead(t *testing.T) {
	res := Validate(completeLead())
	assert.True(t, res.IsValid)
	assert.Equal(t, 100, res.Score)
	assert.Equal(t, PassedReason, res.Reason)
}

func TestValidate_MinimalWeldingLead(t *testing.T) {
	res := Validate(&model.Lead{
		Company:     "Acme Mfg",
		ContactName: "John Doe",
		Email:       "john@acme.com",
		UseCase:     "Welding",
		LeadScore:   75,
	})
	// penalty 100, quality 25+25 → mean 75
	assert.Equal(t, 75, res.Score)
	assert.True(t, res.IsValid)
}

func TestValidate_DisposableNeverValid(t *testing.T) {
	for _, domain := range disposableDomains {
		t.Run(domain, func(t *testing.T) {
			lead := completeLead()
			lead.Email = "john@" + domain
			res := Validate(lead)
			assert.False(t, res.IsValid)
			assert.True(t, res.Disqualified)
			assert.Contains(t, strings.ToLower(res.Reason), "disposable")
			assert.GreaterOrEqual(t, res.Score, 50)
		})
	}
}

func TestValidate_FakeDomain(t *testing.T) {
	lead := completeLead()
	lead.Email = "john@example.com"
	res := Validate(lead)
	assert.False(t, res.IsValid)
	assert.Contains(t, res.Reason, "Suspicious email: Test/fake domain")
}

func TestValidate_PersonalEmailAloneStillValid(t *testing.T) {
	lead := completeLead()
	lead.Email = "john@gmail.com"
	res := Validate(lead)
	assert.True(t, res.IsValid)
	assert.False(t, res.Disqualified)
	assert.Equal(t, 96, res.Score)
	assert.Equal(t, "Personal email (gmail.com)", res.Reason)
}

func TestValidate_PersonalEmailPlusIssue(t *testing.T) {
	lead := completeLead()
	lead.Email = "john@gmail.com"
	lead.Company = "Test"
	res := Validate(lead)
	assert.True(t, res.IsValid, "one blocking issue is tolerated")

	lead.LeadScore = -5
	res = Validate(lead)
	assert.False(t, res.IsValid)
	assert.Equal(t, "Personal email (gmail.com); Generic company name (possible test/spam); Negative lead score (-5)", res.Reason)
}

func TestValidate_MissingFields(t *testing.T) {
	res := Validate(&model.Lead{Email: "someone@gmail.com"})
	// penalty 100-20-20-8 = 52, quality 7 → round(29.5) = 30
	assert.Equal(t, 30, res.Score)
	assert.False(t, res.IsValid)
	assert.True(t, strings.HasPrefix(res.Reason, "Missing company name; Missing contact name"))
}

func TestValidate_InvalidEmailFormat(t *testing.T) {
	lead := completeLead()
	lead.Email = "john at acme"
	res := Validate(lead)
	assert.Contains(t, res.Reason, "Invalid email format")
	assert.Contains(t, res.Reason, "No domain found")
	assert.False(t, res.IsValid)
}

func TestValidate_ScoreAlwaysClamped(t *testing.T) {
	emails := []string{"", "bad", "a@test.com", "a@mailinator.com", "a@gmail.com", "a@acme.com"}
	companies := []string{"", "test", "Acme"}
	scores := []int{-100, 0, 80}
	for _, e := range emails {
		for _, c := range companies {
			for _, s := range scores {
				res := Validate(&model.Lead{Email: e, Company: c, LeadScore: s})
				assert.GreaterOrEqual(t, res.Score, 0)
				assert.LessOrEqual(t, res.Score, 100)
			}
		}
	}
}

func TestRules_CustomPassMark(t *testing.T) {
	lead := &model.Lead{Company: "Acme Mfg", ContactName: "John Doe", Email: "john@acme.com", UseCase: "Welding"}
	assert.True(t, Rules{ValidScore: 70}.Validate(lead).IsValid)
	assert.False(t, Rules{ValidScore: 80}.Validate(lead).IsValid)
}

func TestCheckEmailDomain(t *testing.T) {
	tests := []struct {
		email    string
		valid    bool
		severity int
	}{
		{"a@acme.com", true, 0},
		{"a@GMAIL.com", true, 8},
		{"a@yopmail.com", false, 20},
		{"a@localhost", false, 25},
		{"nodomain", false, 20},
		{"a@", false, 20},
	}
	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			dc := CheckEmailDomain(tt.email)
			assert.Equal(t, tt.valid, dc.IsValid)
			assert.Equal(t, tt.severity, dc.Severity)
		})
	}
}

func TestAssessQuality(t *testing.T) {
	tests := []struct {
		name string
		lead model.Lead
		want Quality
	}{
		{"empty", model.Lead{}, Quality{}},
		{"other use case", model.Lead{UseCase: "Other"}, Quality{UseCase: 10}},
		{"asap", model.Lead{Timeline: "ASAP please"}, Quality{Timeline: 25}},
		{"60-90", model.Lead{Timeline: "60-90 days"}, Quality{Timeline: 18}},
		{"quarter", model.Lead{Timeline: "Next quarter"}, Quality{Timeline: 10}},
		{"vague", model.Lead{Timeline: "someday"}, Quality{Timeline: 8}},
		{"short note", model.Lead{TellUsMore: "need a robot"}, Quality{Engagement: 8}},
		{"engagement capped", model.Lead{
			TellUsMore: strings.Repeat("x", 31), Phone: "1", JobTitle: "CEO",
		}, Quality{Engagement: 25}},
		{"basic info", model.Lead{Company: "a", ContactName: "b", Email: "c"}, Quality{BasicInfo: 25}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lead := tt.lead
			assert.Equal(t, tt.want, AssessQuality(&lead))
		})
	}
}

func TestIsGenericCompanyName(t *testing.T) {
	assert.True(t, IsGenericCompanyName("  N/A "))
	assert.True(t, IsGenericCompanyName("QWERTY"))
	assert.False(t, IsGenericCompanyName("Test Kitchen Inc"))
}
