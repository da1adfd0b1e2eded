// Package conflict decides what happens when a deployment target already
// exists with different content. The resolver depends only on the
// abstract confirmation port, never on a concrete terminal, so decisions
// are deterministic under test.
package conflict

import (
	"fmt"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/logging"
	"github.com/myokoym/cc-tools-manager-sub001/pkg/types"
)

// Resolver gates transfers onto existing, differing targets. It is only
// consulted when the content actually differs; identical redeploys are
// short-circuited by the engine before reaching here.
type Resolver struct {
	confirmer   types.Confirmer
	interactive bool
}

// New creates a Resolver. confirmer may be nil; interactive reports
// whether a prompt could actually be answered in this run.
func New(confirmer types.Confirmer, interactive bool) *Resolver {
	return &Resolver{confirmer: confirmer, interactive: interactive}
}

// Resolve returns the decision for a target path under the given
// strategy. Under prompt in a non-interactive run the decision degrades
// to skip; an unanswerable prompt is a resolvable condition, not a hang.
func (r *Resolver) Resolve(targetPath string, strategy types.ConflictStrategy) types.ConflictDecision {
	logger := logging.GetLogger("conflict")

	switch strategy {
	case types.StrategySkip:
		return types.DecisionSkip
	case types.StrategyOverwrite:
		return types.DecisionProceed
	case types.StrategyPrompt:
		if !r.interactive || r.confirmer == nil {
			logger.Info().
				Str("target", targetPath).
				Msg("prompt strategy in non-interactive run, skipping")
			return types.DecisionSkip
		}
		if r.confirmer.Confirm(fmt.Sprintf("%s already exists with different content. Overwrite?", targetPath)) {
			return types.DecisionProceed
		}
		return types.DecisionSkip
	}

	logger.Warn().Str("strategy", string(strategy)).Msg("unknown conflict strategy, skipping")
	return types.DecisionSkip
}
