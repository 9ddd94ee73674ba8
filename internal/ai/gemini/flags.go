package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/ai"
	"github.com/spigell/job-sieve/internal/job"
	"github.com/spigell/job-sieve/internal/logger"
	"github.com/spigell/job-sieve/internal/utils"
)

const promptDescriptionRunes = 3000

//go:embed flags_prompt.md
var flagsSystemPrompt string

// FlagExtractor asks a model to classify a posting into a FlagSet.
type FlagExtractor struct {
	generator ai.Generator
	logger    *zap.Logger
}

func NewFlagExtractor(generator ai.Generator, log *zap.Logger) (*FlagExtractor, error) {
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	return &FlagExtractor{
		generator: generator,
		logger:    logger.WithCommonFields(log, ai.ProviderGemini, generator.Model()),
	}, nil
}

func (e *FlagExtractor) Extract(ctx context.Context, rec *job.Record) (*job.FlagSet, error) {
	if rec == nil {
		return nil, errors.New("record is nil")
	}

	prompt := buildFlagsPrompt(rec)
	e.logger.Debug("extracting flags",
		append(logger.RecordFields(rec), zap.String("prompt", utils.TruncateForLog(prompt, 500)))...,
	)

	raw, err := e.generator.GenerateContent(ctx, flagsSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("flags response",
		append(logger.RecordFields(rec), zap.String("response", utils.TruncateForLog(raw, 500)))...,
	)

	flags, err := parseFlags(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing flags response: %w", err)
	}
	return flags, nil
}

func buildFlagsPrompt(rec *job.Record) string {
	requirements := "Not specified"
	if len(rec.Requirements) > 0 {
		requirements = strings.Join(rec.Requirements, ", ")
	}

	var b strings.Builder
	b.WriteString("Parse this job posting:\n\n")
	fmt.Fprintf(&b, "Title: %s\n", rec.Title)
	fmt.Fprintf(&b, "Company: %s\n", rec.Company)
	fmt.Fprintf(&b, "Location: %s\n", rec.Location)
	fmt.Fprintf(&b, "Remote: %t\n\n", rec.Remote)
	fmt.Fprintf(&b, "Description:\n%s\n\n", utils.Preview(rec.Description, promptDescriptionRunes))
	fmt.Fprintf(&b, "Requirements:\n%s\n\n", requirements)
	b.WriteString("Output only the JSON object with extracted flags.")
	return b.String()
}

// extractJSON returns the first JSON object in s, tolerating code fences and
// surrounding prose.
func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		if end := strings.LastIndex(s, "```"); end >= 0 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no json object in response %q", utils.TruncateForLog(s, 100))
	}
	return s[start : end+1], nil
}

func parseFlags(raw string) (*job.FlagSet, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return nil, err
	}

	flags := job.DefaultFlags()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       yesNoHook,
		Result:           flags,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, err
	}

	return flags.Normalize(), nil
}

// yesNoHook accepts "yes"/"no" for boolean fields.
func yesNoHook(from, to reflect.Kind, data any) (any, error) {
	if from != reflect.String || to != reflect.Bool {
		return data, nil
	}
	switch strings.ToLower(strings.TrimSpace(data.(string))) {
	case "yes", "y":
		return true, nil
	case "no", "n", "":
		return false, nil
	}
	return data, nil
}
