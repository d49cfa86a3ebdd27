package model

import "time"

// LeadStatus is the processing state of a lead.
type LeadStatus string

const (
	LeadStatusPending     LeadStatus = "pending"
	LeadStatusValidating  LeadStatus = "validating"
	LeadStatusResearching LeadStatus = "researching"
	LeadStatusComplete    LeadStatus = "complete"
	LeadStatusInvalid     LeadStatus = "invalid"
)

// AllLeadStatuses returns every status value in pipeline order.
func AllLeadStatuses() []LeadStatus {
	return []LeadStatus{
		LeadStatusPending,
		LeadStatusValidating,
		LeadStatusResearching,
		LeadStatusComplete,
		LeadStatusInvalid,
	}
}

// Valid reports whether s is one of the enumerated statuses.
func (s LeadStatus) Valid() bool {
	for _, v := range AllLeadStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// forwardTransitions holds the moves the pipeline itself may make.
var forwardTransitions = map[LeadStatus][]LeadStatus{
	LeadStatusPending:     {LeadStatusValidating},
	LeadStatusValidating:  {LeadStatusInvalid, LeadStatusResearching, LeadStatusPending},
	LeadStatusResearching: {LeadStatusComplete, LeadStatusPending},
}

// CanTransition reports whether the pipeline may move a lead from one status
// to another. Operator status overrides through the API are not checked.
func CanTransition(from, to LeadStatus) bool {
	for _, next := range forwardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Pipeline stages for the sales board. These are independent of LeadStatus.
const (
	StageUnassigned  = "unassigned"
	StageNew         = "new"
	StageContacted   = "contacted"
	StageQualified   = "qualified"
	StageProposal    = "proposal"
	StageNegotiation = "negotiation"
	StageWon         = "won"
	StageLost        = "lost"
)

// PipelineStages lists the board columns in display order.
func PipelineStages() []string {
	return []string{
		StageUnassigned, StageNew, StageContacted, StageQualified,
		StageProposal, StageNegotiation, StageWon, StageLost,
	}
}

// ValidPipelineStage reports whether stage is a known board column.
func ValidPipelineStage(stage string) bool {
	for _, s := range PipelineStages() {
		if s == stage {
			return true
		}
	}
	return false
}

// Lead is one inbound inquiry captured from the lead-alert channel.
type Lead struct {
	ID               string     `json:"id"`
	Company          string     `json:"company"`
	ContactName      string     `json:"contact_name"`
	JobTitle         string     `json:"job_title"`
	Phone            string     `json:"phone"`
	Email            string     `json:"email"`
	State            string     `json:"state"`
	Country          string     `json:"country"`
	Website          string     `json:"website"`
	Industry         string     `json:"industry"`
	CompanySize      string     `json:"company_size"`
	UseCase          string     `json:"use_case"`
	Timeline         string     `json:"timeline"`
	LeadSource       string     `json:"lead_source"`
	LeadScore        int        `json:"lead_score"`
	TellUsMore       string     `json:"tell_us_more"`
	RawMessage       string     `json:"raw_message"`
	Status           LeadStatus `json:"status"`
	ValidationErrors string     `json:"validation_errors,omitempty"`

	SlackEventID   string `json:"slack_event_id,omitempty"`
	SlackTimestamp string `json:"slack_timestamp,omitempty"`
	SlackChannel   string `json:"slack_channel,omitempty"`

	AssignedToName    string     `json:"assigned_to_name,omitempty"`
	AssignedToEmail   string     `json:"assigned_to_email,omitempty"`
	AssignedToSlackID string     `json:"assigned_to_slack_id,omitempty"`
	AssignedAt        *time.Time `json:"assigned_at,omitempty"`
	PipelineStage     string     `json:"pipeline_stage"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assignment carries a salesperson assignment for a lead.
type Assignment struct {
	Name          string
	Email         string
	SlackID       string
	PipelineStage string
	AssignedAt    time.Time
}

// LeadDetail bundles a lead with its enrichment output.
type LeadDetail struct {
	Lead    *Lead    `json:"lead"`
	Report  *Report  `json:"report,omitempty"`
	Sources []Source `json:"sources"`
}
