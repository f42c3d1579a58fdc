package strategy

import (
	"fmt"
	"strings"

	"github.com/sawpanic/tradepulse/internal/domain"
)

// actionMarkers are the terminal action clauses a rule must carry.
var actionMarkers = []string{"buy", "sell", "hold"}

// ValidateRule checks a rule blob for the minimal required markers: at
// least one recognized indicator family and a terminal action clause.
// Used on the strategy store's write path, never during evaluation.
func ValidateRule(rule string) error {
	lower := strings.ToLower(rule)

	if strings.TrimSpace(lower) == "" {
		return fmt.Errorf("%w: empty rule", domain.ErrInvalidRule)
	}

	matched := false
	for _, fam := range families {
		if mentions(lower, fam.keywords) {
			matched = true
			break
		}
	}
	if !matched {
		return fmt.Errorf("%w: no recognized indicator family mentioned", domain.ErrInvalidRule)
	}

	if !mentions(lower, actionMarkers) {
		return fmt.Errorf("%w: no terminal action clause (buy/sell/hold)", domain.ErrInvalidRule)
	}

	return nil
}
