package scoring

import (
	"fmt"

	"github.com/spigell/job-sieve/internal/job"
)

// Component bounds.
const (
	MaxSimilarity    = 40.0
	MaxSkillMatch    = 25.0
	MaxExperienceFit = 15.0
	MaxCompanySignal = 10.0
	AdjustmentBound  = 10.0
)

// Skill flag names usable in the weight table.
const (
	SkillLLM            = "llm"
	SkillRAG            = "rag"
	SkillAgents         = "agents"
	SkillAgentFramework = "agent_framework"
	SkillVoiceAI        = "voice_ai"
	SkillAPIFramework   = "api_framework"
	SkillCloudInfra     = "cloud_infra"
	SkillBackend        = "backend"
)

// SkillWeight awards Points when the named flag is set. Table order decides
// reason order.
type SkillWeight struct {
	Flag   string  `mapstructure:"flag" validate:"required,oneof=llm rag agents agent_framework voice_ai api_framework cloud_infra backend"`
	Points float64 `mapstructure:"points" validate:"gte=0,lte=25"`
	Reason string  `mapstructure:"reason" validate:"required"`
}

// TitlePenalty applies Points when any keyword appears in the title.
type TitlePenalty struct {
	Keywords []string `mapstructure:"keywords" validate:"required,min=1,dive,required"`
	Points   float64  `mapstructure:"points" validate:"lte=0"`
	Reason   string   `mapstructure:"reason" validate:"required"`
}

// Penalties holds the flag-driven adjustments. Negative values penalize.
type Penalties struct {
	ResearchHeavy        float64 `mapstructure:"research-heavy" validate:"lte=0"`
	NarrowDomainHeavy    float64 `mapstructure:"narrow-domain-heavy" validate:"lte=0"`
	RequiresDoctorate    float64 `mapstructure:"requires-doctorate" validate:"lte=0"`
	RequiresPublications float64 `mapstructure:"requires-publications" validate:"lte=0"`
	OnsiteOnly           float64 `mapstructure:"onsite-only" validate:"lte=0"`
	RemoteBonus          float64 `mapstructure:"remote-bonus" validate:"gte=0"`
}

// Config is the tunable part of the scorer.
type Config struct {
	Skills         []SkillWeight  `mapstructure:"skills" validate:"dive"`
	TitlePenalties []TitlePenalty `mapstructure:"title-penalties" validate:"dive"`
	Penalties      Penalties      `mapstructure:"penalties"`
}

func DefaultConfig() Config {
	return Config{
		Skills: []SkillWeight{
			{Flag: SkillLLM, Points: 7, Reason: "LLM experience"},
			{Flag: SkillRAG, Points: 6, Reason: "RAG systems"},
			{Flag: SkillAgents, Points: 6, Reason: "Agentic workflows"},
			{Flag: SkillAgentFramework, Points: 4, Reason: "LangChain/LangGraph"},
			{Flag: SkillVoiceAI, Points: 4, Reason: "Voice AI experience"},
			{Flag: SkillAPIFramework, Points: 2, Reason: "FastAPI"},
			{Flag: SkillCloudInfra, Points: 2, Reason: "AWS"},
		},
		TitlePenalties: []TitlePenalty{
			{Keywords: []string{"fullstack", "full stack", "full-stack"}, Points: -5, Reason: "Fullstack role (not AI-focused)"},
			{Keywords: []string{"mobile", "react native", "ios", "android", "flutter"}, Points: -6, Reason: "Mobile role (not AI-focused)"},
			{Keywords: []string{"devops", "sre", "infrastructure", "platform engineer"}, Points: -5, Reason: "DevOps role (not AI-focused)"},
			{Keywords: []string{"frontend", "front-end", "ui engineer"}, Points: -6, Reason: "Frontend role (not AI-focused)"},
		},
		Penalties: Penalties{
			ResearchHeavy:        -5,
			NarrowDomainHeavy:    -4,
			RequiresDoctorate:    -8,
			RequiresPublications: -5,
			OnsiteOnly:           -3,
			RemoteBonus:          3,
		},
	}
}

// skillSet reports whether the named skill flag is set.
func skillSet(f *job.FlagSet, name string) (bool, error) {
	switch name {
	case SkillLLM:
		return f.HasLLM, nil
	case SkillRAG:
		return f.HasRAG, nil
	case SkillAgents:
		return f.HasAgents, nil
	case SkillAgentFramework:
		return f.HasAgentFramework, nil
	case SkillVoiceAI:
		return f.HasVoiceAI, nil
	case SkillAPIFramework:
		return f.HasAPIFramework, nil
	case SkillCloudInfra:
		return f.HasCloudInfra, nil
	case SkillBackend:
		return f.HasBackend, nil
	default:
		return false, fmt.Errorf("unknown skill flag %q", name)
	}
}
