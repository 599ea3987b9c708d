// Package registry tracks every known tool's metadata, implementation handle
// and usage statistics, and maintains the hot/cold working set. Hot tools are
// handed to the calling agent loop wholesale; cold tools are discoverable only
// through Search. Promotion is usage-frequency cache admission, not LRU: a
// cold tool that crosses the hot threshold displaces the least-used hot tool
// only when its own count is strictly higher.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/keshwara/gatekit/pkg/store"
)

const (
	// DefaultHotThreshold is the usage count at which a cold tool becomes a
	// promotion candidate.
	DefaultHotThreshold = 10
	// DefaultMaxHotTools caps the hot working set.
	DefaultMaxHotTools = 10
	// DefaultMinHotTools is the floor below which demotion is never allowed.
	DefaultMinHotTools = 5
)

// Options configures registry thresholds. Zero values take defaults.
type Options struct {
	HotThreshold int64
	MaxHotTools  int
	MinHotTools  int
}

type entry struct {
	record  *ToolRecord
	handler ToolHandler
	schema  *gojsonschema.Schema
	seq     int // insertion order, used as the search tiebreaker
}

// Registry is the long-lived tool registry. It is safe for concurrent use;
// usage-count read-modify-write runs under the registry mutex so concurrent
// invocations cannot under-count.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	st           store.Store
	hotThreshold int64
	maxHot       int
	minHot       int
	nextSeq      int
	now          func() time.Time
}

// New creates a registry persisting usage statistics to st.
func New(st store.Store, opts Options) *Registry {
	if opts.HotThreshold <= 0 {
		opts.HotThreshold = DefaultHotThreshold
	}
	if opts.MaxHotTools <= 0 {
		opts.MaxHotTools = DefaultMaxHotTools
	}
	if opts.MinHotTools <= 0 {
		opts.MinHotTools = DefaultMinHotTools
	}

	return &Registry{
		entries:      make(map[string]*entry),
		st:           st,
		hotThreshold: opts.HotThreshold,
		maxHot:       opts.MaxHotTools,
		minHot:       opts.MinHotTools,
		now:          time.Now,
	}
}

// Register inserts or overwrites a tool. Prior usage statistics are restored
// from the store so re-registration on restart does not reset counts; a tool
// whose restored count already meets the hot threshold starts hot.
func (r *Registry) Register(ctx context.Context, def ToolDefinition, opts RegisterOptions) error {
	if def.QualifiedName == "" {
		return fmt.Errorf("tool qualified name cannot be empty")
	}
	if def.IntegrationID == "" {
		return fmt.Errorf("tool integration id cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	schema, err := compileSchema(def.Parameters)
	if err != nil {
		return fmt.Errorf("invalid input shape for %s: %w", def.QualifiedName, err)
	}

	name := strings.TrimPrefix(def.QualifiedName, def.IntegrationID+"_")

	record := &ToolRecord{
		QualifiedName: def.QualifiedName,
		Name:          name,
		IntegrationID: def.IntegrationID,
		Description:   def.Description,
		Parameters:    def.Parameters,
		UserDefined:   opts.UserDefined,
		CreatedAt:     r.now(),
		Version:       opts.Version,
	}

	var usage usageRecord
	found, err := store.GetJSON(ctx, r.st, def.QualifiedName, &usage)
	if err != nil {
		return fmt.Errorf("failed to restore usage for %s: %w", def.QualifiedName, err)
	}
	if found {
		record.UsageCount = usage.UsageCount
		record.LastUsed = usage.LastUsed
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, exists := r.entries[def.QualifiedName]
	e := &entry{record: record, handler: def.Handler, schema: schema}
	if exists {
		e.seq = prev.seq
	} else {
		e.seq = r.nextSeq
		r.nextSeq++
		r.order = append(r.order, def.QualifiedName)
	}
	r.entries[def.QualifiedName] = e

	if record.UsageCount >= r.hotThreshold {
		r.promoteLocked(e)
	}

	log.Info().
		Str("tool", def.QualifiedName).
		Str("integration", def.IntegrationID).
		Bool("hot", record.Hot).
		Int64("usage_count", record.UsageCount).
		Msg("Tool registered")

	return nil
}

// Unregister removes a tool from the registry. Persisted usage statistics are
// kept so a later re-registration restores them.
func (r *Registry) Unregister(qualifiedName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[qualifiedName]; !ok {
		return
	}
	delete(r.entries, qualifiedName)
	for i, n := range r.order {
		if n == qualifiedName {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	log.Info().Str("tool", qualifiedName).Msg("Tool unregistered")
}

// RecordUsage increments the tool's usage count, persists it, and re-evaluates
// hot promotion.
func (r *Registry) RecordUsage(ctx context.Context, qualifiedName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[qualifiedName]
	if !ok {
		return fmt.Errorf("tool not found: %s", qualifiedName)
	}

	e.record.UsageCount++
	e.record.LastUsed = r.now()

	if err := store.SetJSON(ctx, r.st, qualifiedName, usageRecord{
		QualifiedName: qualifiedName,
		UsageCount:    e.record.UsageCount,
		LastUsed:      e.record.LastUsed,
	}); err != nil {
		return fmt.Errorf("failed to persist usage for %s: %w", qualifiedName, err)
	}

	r.promoteLocked(e)
	return nil
}

// promoteLocked applies the hot-set admission policy to a candidate. Caller
// holds r.mu.
func (r *Registry) promoteLocked(e *entry) {
	if e.record.Hot || e.record.UsageCount < r.hotThreshold {
		return
	}

	hot := r.hotLocked()
	if len(hot) < r.maxHot {
		e.record.Hot = true
		log.Debug().Str("tool", e.record.QualifiedName).Msg("Tool promoted to hot set")
		return
	}

	// Hot set is full: swap with the coldest hot tool only when the candidate
	// is strictly more used, and never shrink below the minimum mid-swap.
	if len(hot)-1 < r.minHot {
		return
	}
	coldest := hot[0]
	for _, h := range hot[1:] {
		if h.record.UsageCount < coldest.record.UsageCount {
			coldest = h
		}
	}
	if e.record.UsageCount > coldest.record.UsageCount {
		coldest.record.Hot = false
		e.record.Hot = true
		log.Debug().
			Str("promoted", e.record.QualifiedName).
			Str("demoted", coldest.record.QualifiedName).
			Msg("Hot set swap")
	}
}

func (r *Registry) hotLocked() []*entry {
	var hot []*entry
	for _, name := range r.order {
		if e := r.entries[name]; e.record.Hot {
			hot = append(hot, e)
		}
	}
	return hot
}

// Get returns the record for a qualified name.
func (r *Registry) Get(qualifiedName string) (*ToolRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[qualifiedName]
	if !ok {
		return nil, false
	}
	return e.record, true
}

// Handler returns the implementation handle for a qualified name.
func (r *Registry) Handler(qualifiedName string) (ToolHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[qualifiedName]
	if !ok {
		return nil, false
	}
	return e.handler, true
}

// ValidateInput checks params against the tool's declared input shape.
func (r *Registry) ValidateInput(qualifiedName string, params map[string]interface{}) error {
	r.mu.RLock()
	e, ok := r.entries[qualifiedName]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("tool not found: %s", qualifiedName)
	}
	if e.schema == nil {
		return nil
	}

	result, err := e.schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			msgs = append(msgs, re.String())
		}
		return fmt.Errorf("parameter validation failed: %v", msgs)
	}
	return nil
}

// HotTools returns the definitions of the hot working set, in insertion order.
// This is the tool list handed to the agent loop; cold tools must be found
// through Search.
func (r *Registry) HotTools() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs []ToolDefinition
	for _, e := range r.hotLocked() {
		defs = append(defs, ToolDefinition{
			QualifiedName: e.record.QualifiedName,
			IntegrationID: e.record.IntegrationID,
			Description:   e.record.Description,
			Parameters:    e.record.Parameters,
			Handler:       e.handler,
		})
	}
	return defs
}

// List returns all records in insertion order.
func (r *Registry) List() []*ToolRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ToolRecord, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].record)
	}
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Stats returns a snapshot of registry totals.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{TotalTools: len(r.entries)}
	for _, e := range r.entries {
		if e.record.Hot {
			s.HotTools++
		}
	}
	s.ColdTools = s.TotalTools - s.HotTools
	return s
}

// compileSchema builds a JSON Schema from declared parameters. A tool with no
// parameters gets no schema and accepts any input.
func compileSchema(params []ToolParameter) (*gojsonschema.Schema, error) {
	if len(params) == 0 {
		return nil, nil
	}

	properties := make(map[string]interface{})
	var required []string
	for _, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter name cannot be empty")
		}
		prop := map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}
