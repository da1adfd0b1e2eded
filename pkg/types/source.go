package types

import "fmt"

// Category is a kind of deployable artifact. Categories double as the
// first path segment under the target root.
type Category string

const (
	CategoryCommands Category = "commands"
	CategoryAgents   Category = "agents"
	CategoryHooks    Category = "hooks"
)

// AllCategories returns the known categories in deterministic order.
func AllCategories() []Category {
	return []Category{CategoryCommands, CategoryAgents, CategoryHooks}
}

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryCommands, CategoryAgents, CategoryHooks:
		return Category(s), nil
	}
	return "", fmt.Errorf("unknown category %q (want commands, agents or hooks)", s)
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}

func (c Category) String() string { return string(c) }

// DeploymentMode selects how a source tree is mapped to target paths.
type DeploymentMode string

const (
	// ModeAutoDetect scans the conventional per-category roots inside
	// the source tree.
	ModeAutoDetect DeploymentMode = "auto-detect"

	// ModeTypeBased maps the whole tree into one declared category,
	// subject to the filtering rules.
	ModeTypeBased DeploymentMode = "type-based"
)

// ParseDeploymentMode validates a mode name.
func ParseDeploymentMode(s string) (DeploymentMode, error) {
	switch DeploymentMode(s) {
	case ModeAutoDetect, ModeTypeBased:
		return DeploymentMode(s), nil
	}
	return "", fmt.Errorf("unknown deployment mode %q (want auto-detect or type-based)", s)
}

// Valid reports whether m is a known mode.
func (m DeploymentMode) Valid() bool {
	_, err := ParseDeploymentMode(string(m))
	return err == nil
}

func (m DeploymentMode) String() string { return string(m) }

// ConflictStrategy decides what happens when a target already exists
// with different content.
type ConflictStrategy string

const (
	StrategySkip      ConflictStrategy = "skip"
	StrategyOverwrite ConflictStrategy = "overwrite"
	StrategyPrompt    ConflictStrategy = "prompt"
)

// ParseConflictStrategy validates a strategy name.
func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	switch ConflictStrategy(s) {
	case StrategySkip, StrategyOverwrite, StrategyPrompt:
		return ConflictStrategy(s), nil
	}
	return "", fmt.Errorf("unknown conflict strategy %q (want skip, overwrite or prompt)", s)
}

// Valid reports whether s is a known strategy.
func (s ConflictStrategy) Valid() bool {
	_, err := ParseConflictStrategy(string(s))
	return err == nil
}

func (s ConflictStrategy) String() string { return string(s) }

// ConflictDecision is the resolver's verdict for one target path.
type ConflictDecision int

const (
	// DecisionSkip leaves the existing target untouched.
	DecisionSkip ConflictDecision = iota

	// DecisionProceed overwrites the existing target.
	DecisionProceed
)

// Source is one registered artifact repository. The registry owns the
// durable copy; everything else consumes Sources read-only.
type Source struct {
	// ID is the stable registry key, unique for the lifetime of the
	// registration. Derived from the repository URL unless overridden.
	ID string `json:"id"`

	// Repository is the git URL the source is synced from. Empty for
	// local-only sources.
	Repository string `json:"repository,omitempty"`

	// RootPath is the local checkout the mapper scans.
	RootPath string `json:"rootPath"`

	// Mode selects the mapping strategy.
	Mode DeploymentMode `json:"mode"`

	// Category is the declared category for type-based sources; unused
	// in auto-detect mode.
	Category Category `json:"category,omitempty"`

	// CategoryPatterns optionally overrides the conventional scan roots
	// per category in auto-detect mode.
	CategoryPatterns map[Category][]string `json:"categoryPatterns,omitempty"`

	// Extensions optionally overrides the type-based extension
	// allow-list for this source.
	Extensions []string `json:"extensions,omitempty"`
}

// Validate checks the structural invariants a Source must satisfy
// before it may be registered or mapped.
func (s *Source) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("source id must not be empty")
	}
	if !s.Mode.Valid() {
		return fmt.Errorf("source %s: invalid deployment mode %q", s.ID, s.Mode)
	}
	if s.Mode == ModeTypeBased && !s.Category.Valid() {
		return fmt.Errorf("source %s: type-based mode requires a valid category, got %q", s.ID, s.Category)
	}
	for cat := range s.CategoryPatterns {
		if !cat.Valid() {
			return fmt.Errorf("source %s: category pattern for unknown category %q", s.ID, cat)
		}
	}
	return nil
}
