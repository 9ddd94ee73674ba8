package job

import "strings"

// CompanyType is the closed set of company classifications.
type CompanyType string

const (
	CompanyUnknown    CompanyType = "unknown"
	CompanyStartup    CompanyType = "startup"
	CompanyMidsize    CompanyType = "midsize"
	CompanyEnterprise CompanyType = "enterprise"
	CompanyConsulting CompanyType = "consulting"
)

// ExperienceLevel is the closed set of seniority levels.
type ExperienceLevel string

const (
	LevelUnknown ExperienceLevel = "unknown"
	LevelIntern  ExperienceLevel = "intern"
	LevelJunior  ExperienceLevel = "junior"
	LevelMid     ExperienceLevel = "mid"
	LevelSenior  ExperienceLevel = "senior"
	LevelLead    ExperienceLevel = "lead"
)

// ParseCompanyType converts free-form text to a CompanyType.
// Anything unrecognized becomes CompanyUnknown.
func ParseCompanyType(s string) CompanyType {
	switch normalizeEnum(s) {
	case "startup", "start-up":
		return CompanyStartup
	case "midsize", "mid-size", "mid_size", "midsized":
		return CompanyMidsize
	case "enterprise", "large", "corporate":
		return CompanyEnterprise
	case "consulting", "consultancy", "agency", "services":
		return CompanyConsulting
	default:
		return CompanyUnknown
	}
}

// ParseExperienceLevel converts free-form text to an ExperienceLevel.
// Anything unrecognized becomes LevelUnknown.
func ParseExperienceLevel(s string) ExperienceLevel {
	switch normalizeEnum(s) {
	case "intern", "internship":
		return LevelIntern
	case "junior", "entry", "entry-level", "entry_level", "new-grad", "new_grad":
		return LevelJunior
	case "mid", "middle", "mid-level", "mid_level", "intermediate":
		return LevelMid
	case "senior", "sr", "staff", "principal":
		return LevelSenior
	case "lead", "manager", "director", "head":
		return LevelLead
	default:
		return LevelUnknown
	}
}

func normalizeEnum(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsSenior reports whether the level is senior or lead.
func (l ExperienceLevel) IsSenior() bool {
	return l == LevelSenior || l == LevelLead
}

// FlagSet holds signals extracted from posting text. It feeds filtering and
// scoring only and never becomes user-visible text on its own.
type FlagSet struct {
	HasLLM            bool `json:"has_llm"`
	HasRAG            bool `json:"has_rag"`
	HasAgents         bool `json:"has_agents"`
	HasAgentFramework bool `json:"has_agent_framework"`
	HasVoiceAI        bool `json:"has_voice_ai"`
	HasAPIFramework   bool `json:"has_api_framework"`
	HasCloudInfra     bool `json:"has_cloud_infra"`
	HasBackend        bool `json:"has_backend"`

	CompanyType CompanyType `json:"company_type"`
	IsAINative  bool        `json:"is_ai_native"`

	ExperienceLevel      ExperienceLevel `json:"experience_level"`
	RequiresDoctorate    bool            `json:"requires_doctorate"`
	RequiresPublications bool            `json:"requires_publications"`
	YearsRequired        *int            `json:"years_required,omitempty"`

	ResearchHeavy     bool `json:"research_heavy"`
	NarrowDomainHeavy bool `json:"narrow_domain_heavy"`
	IsUnpaid          bool `json:"is_unpaid"`
	OnsiteOnly        bool `json:"onsite_only"`
}

// DefaultFlags returns an all-false FlagSet with unknown enums.
func DefaultFlags() *FlagSet {
	return &FlagSet{
		CompanyType:     CompanyUnknown,
		ExperienceLevel: LevelUnknown,
	}
}

// Normalize replaces empty or unknown enum values and drops negative years.
func (f *FlagSet) Normalize() *FlagSet {
	f.CompanyType = ParseCompanyType(string(f.CompanyType))
	f.ExperienceLevel = ParseExperienceLevel(string(f.ExperienceLevel))
	if f.YearsRequired != nil && *f.YearsRequired < 0 {
		f.YearsRequired = nil
	}
	return f
}

// HasDomainSignal reports whether any AI-domain skill flag is set.
func (f *FlagSet) HasDomainSignal() bool {
	return f.HasLLM || f.HasRAG || f.HasAgents || f.HasAgentFramework
}
