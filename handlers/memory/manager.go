// Package memory implements the long-term memory lifecycle: candidate
// extraction from recent dialog, importance filtering with full regeneration,
// LLM-arbitrated merging, and prompt injection under a character budget.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"

	"deskpet/core"
	"deskpet/services/openai/completion"
	"deskpet/storage"
)

const (
	// DefaultImportanceThreshold drops candidates the model scored below it.
	DefaultImportanceThreshold = 60
	// DefaultInjectBudget caps the rendered memory text injected into the
	// system prompt, in runes.
	DefaultInjectBudget = 800
	// DefaultRecallLimit bounds how many records prompt injection pulls.
	DefaultRecallLimit = 5

	mergeWeight = 70

	generationTemperature = 0.3
	generationMaxTokens   = 1000
	mergeMaxTokens        = 500
)

// Candidate is one memory proposal extracted by the model from recent dialog.
type Candidate struct {
	Category   storage.Category `json:"category"`
	Text       string           `json:"text"`
	Importance int              `json:"importance"` // 0-100
	Reasoning  string           `json:"reasoning"`
}

// Config tunes the lifecycle engine. Zero values fall back to the defaults
// above.
type Config struct {
	ImportanceThreshold int
	InjectBudget        int
	RecallLimit         int
}

// Manager drives the memory lifecycle against a MemoryStore, consulting a
// completion client for extraction, merge arbitration, and compression.
type Manager struct {
	store  storage.MemoryStore
	llm    completion.Client
	config Config
	logger *core.Logger

	// Lifecycle operations rewrite whole scopes, so they are serialized.
	mu sync.Mutex
}

// NewManager wires the lifecycle engine. llm may be nil, in which case the
// engine degrades: no extraction or merging, and oversized prompt injections
// are truncated instead of compressed.
func NewManager(store storage.MemoryStore, llm completion.Client, config Config, logger *core.Logger) *Manager {
	if config.ImportanceThreshold <= 0 {
		config.ImportanceThreshold = DefaultImportanceThreshold
	}
	if config.InjectBudget <= 0 {
		config.InjectBudget = DefaultInjectBudget
	}
	if config.RecallLimit <= 0 {
		config.RecallLimit = DefaultRecallLimit
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Manager{
		store:  store,
		llm:    llm,
		config: config,
		logger: logger.With(map[string]interface{}{"component": "memory"}),
	}
}

// GenerateCandidates asks the model to regenerate the scope's memory set from
// the recent dialog turns plus whatever is already stored. A transport or API
// failure is returned to the caller; unparseable model output yields an empty
// candidate list without error.
func (m *Manager) GenerateCandidates(ctx context.Context, conversationID, assistantID string, recent []storage.Message) ([]Candidate, error) {
	if m.llm == nil {
		return nil, fmt.Errorf("memory: no completion client configured")
	}

	existing, err := m.store.ListByConversation(ctx, conversationID, assistantID, 0)
	if err != nil {
		return nil, fmt.Errorf("memory: load existing memories: %w", err)
	}

	prompt := buildGenerationPrompt(dialogText(recent), existing)
	m.logger.Debug("generating memory candidates", "messages", len(recent), "existing", len(existing))

	content, err := m.llm.Complete(ctx, generationSystemPrompt, prompt, generationTemperature, generationMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("memory: candidate generation: %w", err)
	}

	candidates := parseCandidates(content, m.logger)
	m.logger.Info("memory candidates generated", "count", len(candidates))
	return candidates, nil
}

// parseCandidates decodes the model's JSON array, dropping entries that are
// missing a category, text, or numeric importance. Any decode failure yields
// an empty list.
func parseCandidates(content string, logger *core.Logger) []Candidate {
	var raw []struct {
		Category   string   `json:"category"`
		Text       string   `json:"text"`
		Importance *float64 `json:"importance"`
		Reasoning  string   `json:"reasoning"`
	}
	if err := sonic.Unmarshal([]byte(stripCodeFences(content)), &raw); err != nil {
		logger.Warn("memory candidate output is not a JSON array", "error", err.Error())
		return nil
	}

	var candidates []Candidate
	for _, item := range raw {
		if item.Category == "" || item.Text == "" || item.Importance == nil {
			continue
		}
		candidates = append(candidates, Candidate{
			Category:   storage.Category(item.Category),
			Text:       item.Text,
			Importance: int(*item.Importance),
			Reasoning:  item.Reasoning,
		})
	}
	return candidates
}

// FilterAndSave replaces the scope's memories with the candidates at or above
// the importance threshold. threshold <= 0 uses the configured default. The
// old records are cleared even when no candidate survives the filter.
func (m *Manager) FilterAndSave(ctx context.Context, conversationID, assistantID string, candidates []Candidate, threshold int) ([]storage.LongTermMemory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if threshold <= 0 {
		threshold = m.config.ImportanceThreshold
	}

	cleared, err := m.store.ClearAll(ctx, conversationID, assistantID)
	if err != nil {
		return nil, fmt.Errorf("memory: clear before regeneration: %w", err)
	}
	m.logger.Debug("cleared old memories", "count", cleared)

	var saved []storage.LongTermMemory
	for _, c := range candidates {
		if c.Importance < threshold {
			m.logger.Debug("skipping low-importance candidate", "importance", c.Importance)
			continue
		}
		record, err := m.store.Save(ctx, storage.NewMemory{
			ConversationID: conversationID,
			AssistantID:    assistantID,
			Category:       c.Category,
			Text:           c.Text,
			Weight:         c.Importance,
		})
		if err != nil {
			return saved, fmt.Errorf("memory: save candidate: %w", err)
		}
		saved = append(saved, *record)
	}

	m.logger.Info("memories regenerated", "saved", len(saved), "threshold", threshold)
	return saved, nil
}

// mergeDecision is the model's verdict on where a new piece of information
// belongs.
type mergeDecision struct {
	Action     string `json:"action"` // "merge" or "new"
	TargetID   string `json:"targetId"`
	MergedText string `json:"mergedText"`
	NewWeight  int    `json:"newWeight"`
	Reasoning  string `json:"reasoning"`
}

// MergeOrUpdate folds newText into the scope's same-category memories. With
// no prior memories in the category it saves directly; otherwise the model
// decides between merging into an existing record and creating a new one. A
// failed or unparseable model call leaves the store untouched.
func (m *Manager) MergeOrUpdate(ctx context.Context, conversationID, assistantID, newText string, category storage.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, err := m.store.ListByCategory(ctx, conversationID, assistantID, category, 0)
	if err != nil {
		return fmt.Errorf("memory: load category memories: %w", err)
	}

	if len(existing) == 0 {
		_, err := m.store.Save(ctx, storage.NewMemory{
			ConversationID: conversationID,
			AssistantID:    assistantID,
			Category:       category,
			Text:           newText,
			Weight:         mergeWeight,
		})
		if err != nil {
			return fmt.Errorf("memory: save new memory: %w", err)
		}
		return nil
	}

	if m.llm == nil {
		return fmt.Errorf("memory: no completion client configured")
	}

	content, err := m.llm.Complete(ctx, mergeSystemPrompt, buildMergePrompt(newText, existing), generationTemperature, mergeMaxTokens)
	if err != nil {
		m.logger.Warn("merge arbitration failed, keeping store unchanged", "error", err.Error())
		return nil
	}

	var decision mergeDecision
	if err := sonic.Unmarshal([]byte(stripCodeFences(content)), &decision); err != nil {
		m.logger.Warn("merge decision is not valid JSON, keeping store unchanged", "error", err.Error())
		return nil
	}

	switch {
	case decision.Action == "merge" && decision.TargetID != "":
		weight := decision.NewWeight
		if weight > 100 {
			weight = 100
		}
		if err := m.store.Update(ctx, decision.TargetID, storage.MemoryUpdate{
			Text:   &decision.MergedText,
			Weight: &weight,
		}); err != nil {
			return fmt.Errorf("memory: merge into %s: %w", decision.TargetID, err)
		}
		m.logger.Info("memory merged", "target", decision.TargetID)
	case decision.Action == "new":
		_, err := m.store.Save(ctx, storage.NewMemory{
			ConversationID: conversationID,
			AssistantID:    assistantID,
			Category:       category,
			Text:           newText,
			Weight:         mergeWeight,
		})
		if err != nil {
			return fmt.Errorf("memory: save new memory: %w", err)
		}
		m.logger.Info("memory saved as new record")
	default:
		m.logger.Warn("merge decision has no recognized action, keeping store unchanged", "action", decision.Action)
	}
	return nil
}

// MemoriesForPrompt renders the scope's most recently updated memories as a
// block ready to append to the pet's system prompt. Listings over the inject
// budget are compressed through the model, or truncated when no client is
// available or compression fails.
func (m *Manager) MemoriesForPrompt(ctx context.Context, conversationID, assistantID string) (string, error) {
	recent, err := m.store.ListRecent(ctx, conversationID, assistantID, m.config.RecallLimit)
	if err != nil {
		return "", fmt.Errorf("memory: load recent memories: %w", err)
	}
	if len(recent) == 0 {
		return formatMemoryBlock(""), nil
	}

	memoryText := joinMemoryLines(recent)
	if runes := []rune(memoryText); len(runes) > m.config.InjectBudget {
		m.logger.Debug("memory text over budget", "length", len(runes), "budget", m.config.InjectBudget)
		return formatMemoryBlock(m.shrink(ctx, memoryText, runes)), nil
	}
	return formatMemoryBlock(memoryText), nil
}

// shrink compresses an over-budget listing through the model, falling back to
// a hard truncation.
func (m *Manager) shrink(ctx context.Context, memoryText string, runes []rune) string {
	if m.llm != nil {
		compressed, err := m.llm.Complete(ctx, compressionSystemPrompt,
			buildCompressionPrompt(memoryText, m.config.InjectBudget), generationTemperature, mergeMaxTokens)
		if err == nil && compressed != "" {
			return compressed
		}
		if err != nil {
			m.logger.Warn("memory compression failed, truncating", "error", err.Error())
		}
	}
	return string(runes[:m.config.InjectBudget]) + "..."
}

// Clear wipes every memory in the scope and returns the number removed.
func (m *Manager) Clear(ctx context.Context, conversationID, assistantID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.ClearAll(ctx, conversationID, assistantID)
}

// Stats exposes the store's scoped counters.
func (m *Manager) Stats(ctx context.Context, conversationID, assistantID string) (*storage.MemoryStats, error) {
	return m.store.Stats(ctx, conversationID, assistantID)
}

// All returns every memory in the scope, highest weight first.
func (m *Manager) All(ctx context.Context, conversationID, assistantID string) ([]storage.LongTermMemory, error) {
	return m.store.ListByConversation(ctx, conversationID, assistantID, 0)
}
