package flags

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/job-sieve/internal/job"
)

// Keywords extracts flags with deterministic keyword rules. It never fails and
// serves as the fallback when the model-backed extractor is unavailable.
type Keywords struct{}

func words(terms ...string) *regexp.Regexp {
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = regexp.QuoteMeta(term)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

var (
	llmTerms       = words("llm", "llms", "gpt", "large language model", "large language models", "claude", "generative ai", "genai")
	ragTerms       = words("rag", "retrieval augmented", "retrieval-augmented", "vector search", "vector database", "embeddings")
	agentTerms     = words("agent", "agents", "agentic", "autonomous agents")
	frameworkTerms = words("langchain", "langgraph", "llamaindex", "crewai", "autogen")
	voiceTerms     = words("voice", "speech", "tts", "stt", "text-to-speech", "speech-to-text", "conversational ai")
	apiTerms       = words("fastapi", "flask", "django", "express", "gin")
	cloudTerms     = words("aws", "lambda", "s3", "ec2", "sagemaker", "gcp", "azure", "kubernetes")
	backendTerms   = words("backend", "back-end", "api", "apis", "server-side", "microservices")
	aiTerms        = words("ai", "ml", "machine learning", "artificial intelligence")
	aiNativeTerms  = words("ai company", "ai-first", "ai-native", "ai native", "ai startup")

	doctorateTerms    = words("phd required", "phd preferred", "ph.d. required", "doctorate required", "doctoral degree")
	publicationTerms  = words("publications required", "publication record", "first-author publications", "published at neurips", "top-tier publications")
	researchTerms     = words("research scientist", "novel algorithms", "academic research", "publish papers", "theoretical")
	visionTerms       = words("computer vision")
	primaryTerms      = words("primary", "primarily", "focus on")
	onsiteTerms       = words("on-site only", "onsite only", "no remote", "in-office only", "must relocate")
	unpaidTerms       = words("unpaid", "volunteer", "no compensation", "equity only", "equity-only", "credit only", "for course credit")
	apmTitleTerms     = words("associate product manager", "apm", "junior product manager")
	internTerms       = words("intern", "internship", "interns")
	juniorTerms       = words("junior", "0-2 years", "entry level", "entry-level", "new grad", "new graduate")
	seniorTerms       = regexp.MustCompile(`\b(?:senior|staff|principal|lead)\b|\bsr\.|\b(?:5\+|5-7|6\+|7\+|8\+|10\+) years\b`)
	midTerms          = regexp.MustCompile(`\b(?:mid-level|mid level)\b|\b(?:3\+|3-5|4\+|2-4) years\b`)
	startupTerms      = words("startup", "start-up", "seed", "series a")
	enterpriseTerms   = words("enterprise", "fortune 500")
	consultingTerms   = words("consulting", "consultancy", "services firm")
	yearsRequiredExpr = regexp.MustCompile(`\b(\d{1,2})\+?\s*(?:-\s*\d{1,2}\s*)?years?\s+(?:of\s+)?(?:professional\s+|relevant\s+|industry\s+)?experience\b`)
)

func (Keywords) Extract(_ context.Context, rec *job.Record) (*job.FlagSet, error) {
	return FromKeywords(rec), nil
}

// FromKeywords applies the keyword rules to the record's title and description.
func FromKeywords(rec *job.Record) *job.FlagSet {
	text := strings.ToLower(rec.Text())
	title := strings.ToLower(rec.Title)

	flags := job.DefaultFlags()
	flags.HasLLM = llmTerms.MatchString(text)
	flags.HasRAG = ragTerms.MatchString(text)
	flags.HasAgents = agentTerms.MatchString(text) && aiTerms.MatchString(text)
	flags.HasAgentFramework = frameworkTerms.MatchString(text)
	flags.HasVoiceAI = voiceTerms.MatchString(text)
	flags.HasAPIFramework = apiTerms.MatchString(text)
	flags.HasCloudInfra = cloudTerms.MatchString(text)
	flags.HasBackend = backendTerms.MatchString(text)
	flags.IsAINative = aiNativeTerms.MatchString(text)
	flags.RequiresDoctorate = doctorateTerms.MatchString(text)
	flags.RequiresPublications = publicationTerms.MatchString(text)
	flags.ResearchHeavy = researchTerms.MatchString(text)
	flags.NarrowDomainHeavy = visionTerms.MatchString(text) && primaryTerms.MatchString(text)
	flags.IsUnpaid = unpaidTerms.MatchString(text)
	flags.OnsiteOnly = onsiteTerms.MatchString(text)

	switch {
	case apmTitleTerms.MatchString(title):
		flags.ExperienceLevel = job.LevelJunior
	case internTerms.MatchString(text):
		flags.ExperienceLevel = job.LevelIntern
	case juniorTerms.MatchString(text):
		flags.ExperienceLevel = job.LevelJunior
	case seniorTerms.MatchString(text):
		flags.ExperienceLevel = job.LevelSenior
	case midTerms.MatchString(text):
		flags.ExperienceLevel = job.LevelMid
	}

	switch {
	case startupTerms.MatchString(text):
		flags.CompanyType = job.CompanyStartup
	case enterpriseTerms.MatchString(text):
		flags.CompanyType = job.CompanyEnterprise
	case consultingTerms.MatchString(text):
		flags.CompanyType = job.CompanyConsulting
	}

	if m := yearsRequiredExpr.FindStringSubmatch(text); m != nil {
		if years, err := strconv.Atoi(m[1]); err == nil {
			flags.YearsRequired = &years
		}
	}

	return flags
}

// HasUnpaidCue reports whether the text carries an unpaid indicator.
func HasUnpaidCue(text string) bool {
	return unpaidTerms.MatchString(strings.ToLower(text))
}
