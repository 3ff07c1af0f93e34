// Package classifier implements the staged LLM decision procedure that
// turns (condition, resume text) into a tier label.
package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/cvsift/internal/llm"
	"github.com/kalambet/cvsift/internal/manifest"
)

// UnknownName is the sentinel used when name extraction fails. Extraction
// is best effort and never fails the pipeline.
const UnknownName = "Unknown"

// DefaultMaxResumeChars bounds the resume text included in each prompt.
const DefaultMaxResumeChars = 12000

// Decision is the immutable result of one classifier run. Only the label
// is persisted; reason and name are carried for side effects and logging.
type Decision struct {
	Label         manifest.Status
	Reason        string
	CandidateName string
}

// Config tunes the staged evaluation.
type Config struct {
	// StrictMode re-runs Stage 1 on a passed result; disagreement between
	// the two independent evaluations forces rejected.
	StrictMode bool
	// TieringEnabled gates Stages 2 and 3. When false, a Stage 1 pass is
	// final.
	TieringEnabled bool
	// MaxResumeChars truncates resume text per prompt; <= 0 uses the
	// default.
	MaxResumeChars int
}

// Classifier runs the tiered pipeline against an injected chat provider.
// It owns no state; it is a pure function modulo network I/O.
type Classifier struct {
	chat   llm.Chatter
	cfg    Config
	logger *slog.Logger
}

// New creates a Classifier.
func New(chat llm.Chatter, cfg Config) *Classifier {
	if cfg.MaxResumeChars <= 0 {
		cfg.MaxResumeChars = DefaultMaxResumeChars
	}
	return &Classifier{chat: chat, cfg: cfg, logger: slog.Default()}
}

type stage1Result struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
}

type nameResult struct {
	Name string `json:"name"`
}

type stage2Result struct {
	Exceeds bool   `json:"exceeds"`
	Reason  string `json:"reason"`
}

type stage3Result struct {
	Elite  bool   `json:"elite"`
	Reason string `json:"reason"`
}

// Classify runs the staged evaluation. Each stage is strictly gated on the
// previous one; a rejected Stage 1 never triggers Stage 2 or 3 calls.
// Protocol failures (unparsable or out-of-enum responses) are returned as
// errors for the queue's error edge to handle.
func (c *Classifier) Classify(ctx context.Context, condition, resumeText string) (Decision, error) {
	first, err := c.stage1(ctx, condition, resumeText)
	if err != nil {
		return Decision{}, err
	}

	if first.Result == "passed" && c.cfg.StrictMode {
		second, err := c.stage1(ctx, condition, resumeText)
		if err != nil {
			return Decision{}, err
		}
		if second.Result != "passed" {
			c.logger.Debug("strict mode re-check disagreed", "first", first.Result, "second", second.Result)
			return Decision{
				Label:  manifest.StatusRejected,
				Reason: "strict re-check disagreed: " + second.Reason,
			}, nil
		}
	}

	if first.Result == "rejected" {
		return Decision{Label: manifest.StatusRejected, Reason: first.Reason}, nil
	}

	name := c.extractName(ctx, resumeText)

	if !c.cfg.TieringEnabled {
		return Decision{Label: manifest.StatusPassed, Reason: first.Reason, CandidateName: name}, nil
	}

	var s2 stage2Result
	raw, err := c.chat.Chat(ctx, stage2Messages(condition, resumeText, c.cfg.MaxResumeChars), stage2Schema())
	if err != nil {
		return Decision{}, fmt.Errorf("stage 2: %w", err)
	}
	if err := decodeStrict(raw, &s2); err != nil {
		return Decision{}, fmt.Errorf("stage 2: %w", err)
	}
	if !s2.Exceeds {
		return Decision{Label: manifest.StatusPassed, Reason: first.Reason, CandidateName: name}, nil
	}

	var s3 stage3Result
	raw, err = c.chat.Chat(ctx, stage3Messages(condition, resumeText, c.cfg.MaxResumeChars), stage3Schema())
	if err != nil {
		return Decision{}, fmt.Errorf("stage 3: %w", err)
	}
	if err := decodeStrict(raw, &s3); err != nil {
		return Decision{}, fmt.Errorf("stage 3: %w", err)
	}
	if !s3.Elite {
		return Decision{Label: manifest.StatusExceeds, Reason: s2.Reason, CandidateName: name}, nil
	}
	return Decision{Label: manifest.StatusElite, Reason: s3.Reason, CandidateName: name}, nil
}

func (c *Classifier) stage1(ctx context.Context, condition, resumeText string) (stage1Result, error) {
	raw, err := c.chat.Chat(ctx, stage1Messages(condition, resumeText, c.cfg.MaxResumeChars), stage1Schema())
	if err != nil {
		return stage1Result{}, fmt.Errorf("stage 1: %w", err)
	}

	var result stage1Result
	if err := decodeStrict(raw, &result); err != nil {
		return stage1Result{}, fmt.Errorf("stage 1: %w", err)
	}
	if result.Result != "passed" && result.Result != "rejected" {
		return stage1Result{}, fmt.Errorf("stage 1: label %q outside expected enum", result.Result)
	}
	return result, nil
}

func (c *Classifier) extractName(ctx context.Context, resumeText string) string {
	raw, err := c.chat.Chat(ctx, nameMessages(resumeText, c.cfg.MaxResumeChars), nameSchema())
	if err != nil {
		c.logger.Warn("name extraction failed", "error", err)
		return UnknownName
	}
	var result nameResult
	if err := decodeStrict(raw, &result); err != nil {
		c.logger.Warn("name extraction returned malformed JSON", "error", err)
		return UnknownName
	}
	if result.Name == "" {
		return UnknownName
	}
	return result.Name
}
