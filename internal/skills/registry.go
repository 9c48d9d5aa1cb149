package skills

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"sheetmind/internal/analyzer"
	"sheetmind/internal/config"
	"sheetmind/internal/logging"
	"sheetmind/internal/sheet"
)

// =============================================================================
// REGISTRY
// =============================================================================

// Match is one skill's score against a command.
type Match struct {
	SkillID string
	Score   float64
}

// Selection is the result of skill selection for one command.
type Selection struct {
	Skills             []*Skill
	Matches            []Match
	EstimatedTokenCost int

	// VagueOverride is set when the analyzer forced the conversational skill.
	VagueOverride bool
}

// Registry owns the skill table, instruction overrides, and the workflow
// template cache. Explicitly constructed, no ambient global state.
type Registry struct {
	mu     sync.RWMutex
	skills map[string]*Skill

	minConfidence float64
	maxSkills     int

	overridesPath string
	watcher       *fsnotify.Watcher
	watchDone     chan struct{}

	templates   map[string]string
	templatesAt time.Time
	templateTTL time.Duration
	loadTmpl    func() (map[string]string, error)
}

// NewRegistry builds a registry from config. If an overrides file is
// configured it is applied immediately and watched for changes; a broken
// overrides file degrades to the built-in table with a warning.
func NewRegistry(cfg *config.SkillsConfig) (*Registry, error) {
	r := &Registry{
		skills:        defaultSkills(),
		minConfidence: cfg.MinConfidence,
		maxSkills:     cfg.MaxSkills,
		overridesPath: cfg.OverridesPath,
		templateTTL:   time.Duration(cfg.TemplateTTLSeconds) * time.Second,
	}
	if r.minConfidence <= 0 {
		r.minConfidence = 0.6
	}
	if r.maxSkills <= 0 {
		r.maxSkills = 2
	}
	if r.templateTTL <= 0 {
		r.templateTTL = 5 * time.Minute
	}

	if r.overridesPath != "" {
		if err := r.applyOverrides(); err != nil {
			logging.Get(logging.CategorySkills).Warn("Skill overrides not applied: %v", err)
		}
		if err := r.watchOverrides(); err != nil {
			logging.Get(logging.CategorySkills).Warn("Skill override watch unavailable: %v", err)
		}
	}

	logging.Skills("Registry ready: %d skills, floor=%.2f, max=%d", len(r.skills), r.minConfidence, r.maxSkills)
	return r, nil
}

// Close stops the overrides watcher.
func (r *Registry) Close() error {
	if r.watcher != nil {
		err := r.watcher.Close()
		<-r.watchDone
		return err
	}
	return nil
}

// Get returns a skill by id, or nil.
func (r *Registry) Get(id string) *Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skills[id]
}

// IDs returns all skill ids sorted by priority descending, id ascending.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.skills))
	for id := range r.skills {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r.skills[ids[i]], r.skills[ids[j]]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})
	return ids
}

// CapabilitySummaries returns "id: first instruction line" for every skill,
// used by the AI classification prompt.
func (r *Registry) CapabilitySummaries() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.skills))
	for id := range r.skills {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		first := strings.SplitN(r.skills[id].Instructions, "\n", 2)[0]
		out = append(out, fmt.Sprintf("%s: %s", id, strings.TrimSpace(first)))
	}
	return out
}

// =============================================================================
// SELECTION
// =============================================================================

// Select scores every skill against the command and picks the skills that
// will shape the prompt.
//
// A genuinely vague command selects only the conversational skill no matter
// what else matched, so the model never receives "do this concrete action"
// and "ask a clarifying question" at the same time. Composite-but-specific
// commands still get action skills.
func (r *Registry) Select(command string, ctx *sheet.DataContext, analysis analyzer.Analysis) Selection {
	timer := logging.StartTimer(logging.CategorySkills, "Select")
	defer timer.Stop()

	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]Match, 0, len(r.skills))
	for id, sk := range r.skills {
		matches = append(matches, Match{SkillID: id, Score: sk.Score(command, ctx)})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		a, b := r.skills[matches[i].SkillID], r.skills[matches[j].SkillID]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})

	if analysis.Type == analyzer.TypeVague || analysis.Type == analyzer.TypeQuestion {
		conv := r.skills[ConversationalSkillID]
		logging.SkillsDebug("Vague/question command, conversational only")
		return Selection{
			Skills:             []*Skill{conv},
			Matches:            matches,
			EstimatedTokenCost: conv.TokenCost,
			VagueOverride:      true,
		}
	}

	var selected []*Skill
	cost := 0
	for _, m := range matches {
		if len(selected) >= r.maxSkills {
			break
		}
		if m.Score < r.minConfidence {
			break
		}
		sk := r.skills[m.SkillID]
		if sk.ConflictsWithAny(selected) {
			logging.SkillsDebug("Skipping %s: conflicts with selection", sk.ID)
			continue
		}
		selected = append(selected, sk)
		cost += sk.TokenCost
	}

	if len(selected) == 0 {
		conv := r.skills[ConversationalSkillID]
		selected = []*Skill{conv}
		cost = conv.TokenCost
		logging.SkillsDebug("Nothing cleared floor %.2f, conversational fallback", r.minConfidence)
	}

	return Selection{Skills: selected, Matches: matches, EstimatedTokenCost: cost}
}

// AssemblePrompt concatenates the selected skills' instruction blocks plus
// any worked examples whose keywords overlap the command, strongest overlap
// first.
func (r *Registry) AssemblePrompt(sel Selection, command string) string {
	var b strings.Builder
	for i, sk := range sel.Skills {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## Skill: ")
		b.WriteString(sk.ID)
		b.WriteString("\n")
		b.WriteString(sk.Instructions)
	}

	examples := rankExamples(sel.Skills, command)
	if len(examples) > 0 {
		b.WriteString("\n\n## Examples\n")
		for _, ex := range examples {
			b.WriteString("Command: ")
			b.WriteString(ex.Command)
			b.WriteString("\nResponse: ")
			b.WriteString(ex.Response)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// rankExamples orders worked examples by keyword overlap with the command,
// dropping examples with zero overlap. At most 3 survive.
func rankExamples(selected []*Skill, command string) []WorkedExample {
	lower := strings.ToLower(command)
	type ranked struct {
		ex      WorkedExample
		overlap int
	}
	var all []ranked
	for _, sk := range selected {
		for _, ex := range sk.Examples {
			overlap := 0
			for _, kw := range ex.Keywords {
				if strings.Contains(lower, strings.ToLower(kw)) {
					overlap++
				}
			}
			if overlap > 0 {
				all = append(all, ranked{ex, overlap})
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].overlap > all[j].overlap })
	if len(all) > 3 {
		all = all[:3]
	}
	out := make([]WorkedExample, len(all))
	for i, rk := range all {
		out[i] = rk.ex
	}
	return out
}

// =============================================================================
// OVERRIDES FILE + WATCHER
// =============================================================================

// overrideFile is the YAML shape of a skill-override file: per-skill
// replacement instructions and optional keyword additions.
type overrideFile struct {
	Skills map[string]struct {
		Instructions string   `yaml:"instructions"`
		Keywords     []string `yaml:"keywords"`
		Version      int      `yaml:"version"`
	} `yaml:"skills"`
}

func (r *Registry) applyOverrides() error {
	data, err := os.ReadFile(r.overridesPath)
	if err != nil {
		return fmt.Errorf("read overrides: %w", err)
	}
	var of overrideFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return fmt.Errorf("parse overrides: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	applied := 0
	for id, ov := range of.Skills {
		sk, ok := r.skills[id]
		if !ok {
			logging.Get(logging.CategorySkills).Warn("Override for unknown skill %q ignored", id)
			continue
		}
		if ov.Instructions != "" {
			sk.Instructions = ov.Instructions
		}
		if len(ov.Keywords) > 0 {
			sk.Keywords = append(sk.Keywords, ov.Keywords...)
		}
		if ov.Version > 0 {
			sk.Version = ov.Version
		}
		applied++
	}
	logging.Skills("Applied %d skill overrides from %s", applied, r.overridesPath)
	return nil
}

func (r *Registry) watchOverrides() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(r.overridesPath); err != nil {
		w.Close()
		return err
	}
	r.watcher = w
	r.watchDone = make(chan struct{})

	go func() {
		defer close(r.watchDone)
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					if err := r.applyOverrides(); err != nil {
						logging.Get(logging.CategorySkills).Warn("Override reload failed: %v", err)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logging.Get(logging.CategorySkills).Warn("Override watcher: %v", err)
			}
		}
	}()
	return nil
}

// =============================================================================
// WORKFLOW TEMPLATE CACHE
// =============================================================================
// Reference data that rarely changes. TTL-bounded, concurrently refreshable,
// last writer wins.

// SetTemplateLoader installs the loader used to (re)populate the template
// cache. Without a loader, Templates returns an empty map.
func (r *Registry) SetTemplateLoader(load func() (map[string]string, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadTmpl = load
}

// Templates returns the workflow templates, refreshing from the loader when
// the TTL has lapsed. A failed refresh keeps serving the stale copy.
func (r *Registry) Templates() map[string]string {
	r.mu.RLock()
	fresh := r.templates != nil && time.Since(r.templatesAt) < r.templateTTL
	tmpl, load := r.templates, r.loadTmpl
	r.mu.RUnlock()

	if fresh || load == nil {
		if tmpl == nil {
			return map[string]string{}
		}
		return tmpl
	}

	loaded, err := load()
	if err != nil {
		logging.Get(logging.CategorySkills).Warn("Template refresh failed, serving stale: %v", err)
		if tmpl == nil {
			return map[string]string{}
		}
		return tmpl
	}

	r.mu.Lock()
	r.templates = loaded
	r.templatesAt = time.Now()
	r.mu.Unlock()
	return loaded
}

// Refresh forces an immediate reload of overrides and templates.
func (r *Registry) Refresh() {
	if r.overridesPath != "" {
		if err := r.applyOverrides(); err != nil {
			logging.Get(logging.CategorySkills).Warn("Refresh overrides: %v", err)
		}
	}
	r.Invalidate()
	r.Templates()
}

// Invalidate expires the template cache so the next read refreshes.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	r.templatesAt = time.Time{}
	r.mu.Unlock()
}
