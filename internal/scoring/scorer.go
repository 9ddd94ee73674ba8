// Package scoring computes the five-component score of a record.
package scoring

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/job"
	"github.com/spigell/job-sieve/internal/logger"
)

// SimilarityScorer produces the similarity component in [0, 40].
type SimilarityScorer interface {
	Score(ctx context.Context, rec *job.Record) float64
}

type titleRule struct {
	re     *regexp.Regexp
	points float64
	reason string
}

type Scorer struct {
	cfg        Config
	titleRules []titleRule
	similarity SimilarityScorer
	logger     *zap.Logger
}

// New validates the skill table and compiles the title rules. similarity may be
// nil, in which case the component is always zero.
func New(cfg Config, similarity SimilarityScorer, log *zap.Logger) (*Scorer, error) {
	if log == nil {
		log = zap.NewNop()
	}

	probe := job.DefaultFlags()
	for _, w := range cfg.Skills {
		if _, err := skillSet(probe, w.Flag); err != nil {
			return nil, err
		}
	}

	rules := make([]titleRule, 0, len(cfg.TitlePenalties))
	for _, p := range cfg.TitlePenalties {
		quoted := make([]string, 0, len(p.Keywords))
		for _, kw := range p.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				quoted = append(quoted, regexp.QuoteMeta(kw))
			}
		}
		if len(quoted) == 0 {
			return nil, fmt.Errorf("title penalty %q has no keywords", p.Reason)
		}
		rules = append(rules, titleRule{
			re:     regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
			points: p.Points,
			reason: p.Reason,
		})
	}

	return &Scorer{cfg: cfg, titleRules: rules, similarity: similarity, logger: log}, nil
}

// Score computes and stores the breakdown, total and reasons on rec. A record
// without flags is scored with defaults.
func (s *Scorer) Score(ctx context.Context, rec *job.Record) job.ScoreBreakdown {
	flags := rec.Flags
	if flags == nil {
		s.logger.Warn("scoring record without flags, using defaults", logger.RecordFields(rec)...)
		flags = job.DefaultFlags()
		rec.Flags = flags
	}

	var why []string

	similarity := 0.0
	if s.similarity != nil {
		similarity = clamp(s.similarity.Score(ctx, rec), 0, MaxSimilarity)
	}

	skill, skillReasons := s.SkillMatch(flags)
	why = append(why, first(skillReasons, 2)...)

	experience, experienceReason := ExperienceFit(flags)
	if experience >= 10 {
		why = append(why, experienceReason)
	}

	company, companyReasons := CompanySignal(flags, rec.Enrichment)
	if company >= 7 && len(companyReasons) > 0 {
		why = append(why, companyReasons[0])
	}

	adjustments, adjustmentReasons := s.Adjustments(rec, flags)

	breakdown := job.ScoreBreakdown{
		Similarity:    similarity,
		SkillMatch:    skill,
		ExperienceFit: experience,
		CompanySignal: company,
		Adjustments:   adjustments,
	}
	rec.SetScore(breakdown, why)

	s.logger.Debug("record scored", append(logger.RecordFields(rec),
		zap.Float64("score", breakdown.Total()),
		zap.Float64("similarity", similarity),
		zap.Float64("skill_match", skill),
		zap.Float64("experience_fit", experience),
		zap.Float64("company_signal", company),
		zap.Float64("adjustments", adjustments),
		zap.Strings("adjustment_reasons", adjustmentReasons),
	)...)

	return breakdown
}

// SkillMatch sums the weights of the set skill flags, capped at 25.
func (s *Scorer) SkillMatch(flags *job.FlagSet) (float64, []string) {
	score := 0.0
	var reasons []string
	for _, w := range s.cfg.Skills {
		if set, _ := skillSet(flags, w.Flag); set {
			score += w.Points
			reasons = append(reasons, w.Reason)
		}
	}
	return clamp(score, 0, MaxSkillMatch), reasons
}

// ExperienceFit rates seniority against an entry-level candidate. Explicit
// required years override the level.
func ExperienceFit(flags *job.FlagSet) (float64, string) {
	var score float64
	var reason string

	switch flags.ExperienceLevel {
	case job.LevelIntern:
		score, reason = 15, "Intern-level role (perfect fit)"
	case job.LevelJunior:
		score, reason = 15, "Junior-level role (perfect fit)"
	case job.LevelMid:
		score, reason = 5, "Mid-level role (stretch)"
	case job.LevelSenior, job.LevelLead:
		score, reason = 0, "Senior role (mismatch)"
	default:
		score, reason = 10, "Experience level not specified"
	}

	if flags.YearsRequired != nil {
		switch years := *flags.YearsRequired; {
		case years <= 2:
			score = math.Max(score, 12)
		case years <= 4:
			score = math.Min(score, 7)
		default:
			score = math.Min(score, 2)
		}
	}

	return score, reason
}

var earlyFunding = map[string]struct{}{
	"seed":     {},
	"series a": {},
	"series b": {},
}

// CompanySignal prefers enrichment over the flag-derived company type.
func CompanySignal(flags *job.FlagSet, enrichment *job.Enrichment) (float64, []string) {
	score := 0.0
	var reasons []string

	if enrichment != nil {
		switch n := enrichment.EmployeeCount; {
		case n <= 0:
		case n < 200:
			score = 10
			reasons = append(reasons, fmt.Sprintf("Startup (%d employees)", n))
		case n < 2000:
			score = 7
			reasons = append(reasons, fmt.Sprintf("Mid-size (%d employees)", n))
		default:
			score = 4
			reasons = append(reasons, fmt.Sprintf("Enterprise (%d+ employees)", n))
		}

		if enrichment.AINative {
			score = math.Min(score+3, MaxCompanySignal)
			reasons = append(reasons, "AI-native company (verified)")
		}

		stage := strings.ToLower(strings.TrimSpace(enrichment.FundingStage))
		if _, ok := earlyFunding[stage]; ok {
			score = math.Min(score+1, MaxCompanySignal)
			reasons = append(reasons, fmt.Sprintf("%s stage", enrichment.FundingStage))
		}

		if enrichment.Rating >= 4.0 {
			score = math.Min(score+1, MaxCompanySignal)
			reasons = append(reasons, fmt.Sprintf("High employee rating (%.1f)", enrichment.Rating))
		}

		return score, reasons
	}

	switch flags.CompanyType {
	case job.CompanyStartup:
		score = 10
		reasons = append(reasons, "Startup company")
	case job.CompanyMidsize:
		score = 7
		reasons = append(reasons, "Product-focused mid-size company")
	case job.CompanyEnterprise:
		score = 4
		reasons = append(reasons, "Enterprise company")
	case job.CompanyConsulting:
		score = 2
		reasons = append(reasons, "Consulting/services")
	default:
		score = 5
		reasons = append(reasons, "Unknown company type")
	}

	if flags.IsAINative {
		score = math.Min(score+2, MaxCompanySignal)
		reasons = append(reasons, "AI-native company")
	}

	return score, reasons
}

// Adjustments sums penalties and bonuses, then clamps to [-10, 10].
func (s *Scorer) Adjustments(rec *job.Record, flags *job.FlagSet) (float64, []string) {
	p := s.cfg.Penalties
	total := 0.0
	var reasons []string

	apply := func(cond bool, points float64, reason string) {
		if cond && points != 0 {
			total += points
			reasons = append(reasons, reason)
		}
	}

	apply(flags.ResearchHeavy, p.ResearchHeavy, "Research-heavy focus")
	apply(flags.NarrowDomainHeavy, p.NarrowDomainHeavy, "Narrow-domain focus")
	apply(flags.RequiresDoctorate, p.RequiresDoctorate, "Doctorate required")
	apply(flags.RequiresPublications, p.RequiresPublications, "Publications required")
	apply(flags.OnsiteOnly, p.OnsiteOnly, "On-site only")

	title := strings.ToLower(rec.Title)
	for _, rule := range s.titleRules {
		apply(rule.re.MatchString(title), rule.points, rule.reason)
	}

	apply(rec.Remote, p.RemoteBonus, "Remote-friendly")

	return clamp(total, -AdjustmentBound, AdjustmentBound), reasons
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func first(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
