// Package rules applies caller-supplied transformation rules during
// ingestion. The rule set is a closed tagged union: unknown rule types
// are rejected at the boundary instead of being silently ignored.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/kart-io/databridge/pkg/llm"
	utilerrors "github.com/kart-io/databridge/pkg/utils/errors"
	"github.com/kart-io/databridge/pkg/utils/json"
)

// Rule type discriminators.
const (
	TypeMetadataExtraction = "metadata_extraction"
	TypeNaturalLanguage    = "natural_language"
)

// Rule transforms document text during ingestion. Apply returns
// extracted metadata and, when the rule rewrites text, the rewritten
// full text. An empty rewritten string means the text is unchanged.
type Rule interface {
	Type() string
	Apply(ctx context.Context, text string) (map[string]any, string, error)
}

// Processor parses raw rule definitions and applies them in order.
type Processor struct {
	chat llm.ChatProvider
}

// NewProcessor creates a rule processor backed by the given chat
// provider.
func NewProcessor(chat llm.ChatProvider) *Processor {
	return &Processor{chat: chat}
}

// Parse converts raw rule definitions into typed rules. Unknown types
// fail the whole list.
func (p *Processor) Parse(raw []map[string]any) ([]Rule, error) {
	rules := make([]Rule, 0, len(raw))
	for i, def := range raw {
		ruleType, _ := def["type"].(string)
		switch ruleType {
		case TypeMetadataExtraction:
			schema, _ := def["schema"].(map[string]any)
			if len(schema) == 0 {
				return nil, utilerrors.ErrInvalidParam.WithMessagef("rule %d: metadata_extraction requires a schema", i)
			}
			rules = append(rules, &MetadataExtractionRule{chat: p.chat, Schema: schema})
		case TypeNaturalLanguage:
			prompt, _ := def["prompt"].(string)
			if prompt == "" {
				return nil, utilerrors.ErrInvalidParam.WithMessagef("rule %d: natural_language requires a prompt", i)
			}
			rules = append(rules, &NaturalLanguageRule{chat: p.chat, Prompt: prompt})
		default:
			return nil, utilerrors.ErrRuleUnknownType.WithMessagef("rule %d: unknown rule type %q", i, ruleType)
		}
	}
	return rules, nil
}

// Process parses and applies rules in order against the full text.
// Metadata from later rules wins on key conflict. Each rule sees the
// text as rewritten by the rules before it. The returned text is empty
// when no rule rewrote it.
func (p *Processor) Process(ctx context.Context, text string, raw []map[string]any) (map[string]any, string, error) {
	rules, err := p.Parse(raw)
	if err != nil {
		return nil, "", err
	}

	metadata := map[string]any{}
	current := text
	rewritten := false

	for _, rule := range rules {
		ruleMeta, newText, err := rule.Apply(ctx, current)
		if err != nil {
			return nil, "", utilerrors.ErrRuleApplyFailed.WithCause(err)
		}
		for k, v := range ruleMeta {
			metadata[k] = v
		}
		if newText != "" {
			current = newText
			rewritten = true
		}
	}

	if !rewritten {
		return metadata, "", nil
	}
	return metadata, current, nil
}

const metadataExtractionPrompt = `Extract metadata from the document below according to this schema. For each field, extract the value from the document. Respond with only a JSON object mapping field names to extracted values.

Schema:
%s

Document:
%s`

// MetadataExtractionRule extracts structured metadata fields described
// by a schema.
type MetadataExtractionRule struct {
	chat   llm.ChatProvider
	Schema map[string]any
}

// Type returns the rule discriminator.
func (r *MetadataExtractionRule) Type() string { return TypeMetadataExtraction }

// Apply extracts the schema fields from the text. It never rewrites
// the text.
func (r *MetadataExtractionRule) Apply(ctx context.Context, text string) (map[string]any, string, error) {
	schemaJSON, err := json.Marshal(r.Schema)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal schema: %w", err)
	}

	resp, err := r.chat.Generate(ctx, fmt.Sprintf(metadataExtractionPrompt, schemaJSON, text), "")
	if err != nil {
		return nil, "", err
	}

	metadata, err := parseJSONObject(resp.Content)
	if err != nil {
		return nil, "", fmt.Errorf("malformed metadata extraction output: %w", err)
	}
	return metadata, "", nil
}

const naturalLanguagePrompt = `Your task is to transform the document below according to this instruction: %s

Respond with only the transformed document text.

Document:
%s`

// NaturalLanguageRule rewrites the full text according to a free-form
// instruction.
type NaturalLanguageRule struct {
	chat   llm.ChatProvider
	Prompt string
}

// Type returns the rule discriminator.
func (r *NaturalLanguageRule) Type() string { return TypeNaturalLanguage }

// Apply rewrites the text. It extracts no metadata.
func (r *NaturalLanguageRule) Apply(ctx context.Context, text string) (map[string]any, string, error) {
	resp, err := r.chat.Generate(ctx, fmt.Sprintf(naturalLanguagePrompt, r.Prompt, text), "")
	if err != nil {
		return nil, "", err
	}

	rewritten := strings.TrimSpace(resp.Content)
	if rewritten == "" {
		return nil, "", fmt.Errorf("empty rewrite output")
	}
	return nil, rewritten, nil
}

var jsonObjectRegex = regexp.MustCompile(`\{[\s\S]*\}`)

// parseJSONObject extracts and parses the first JSON object in the
// model output.
func parseJSONObject(s string) (map[string]any, error) {
	match := jsonObjectRegex.FindString(s)
	if match == "" {
		return nil, fmt.Errorf("no JSON object found")
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(match), &result); err != nil {
		return nil, err
	}
	return result, nil
}
