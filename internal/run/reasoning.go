package run

import (
	"fmt"
	"strings"

	"github.com/lukemartin/snipebot/internal/domain"
)

// BuildReasoning renders a human-readable explanation of a run's outcome from
// its per-source diagnostics and phase counts. Zero opportunities is a normal
// outcome and the string says why, source by source.
func BuildReasoning(leadsFound, qualified, opportunities int, diags []domain.SourceDiagnostic) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Scouted %d leads across %d sources; %d passed spread qualification; %d opportunities confirmed.",
		leadsFound, len(diags), qualified, opportunities)

	var failed, blocked, empty []string
	for _, d := range diags {
		switch d.Status {
		case domain.SourceError:
			failed = append(failed, d.Source)
		case domain.SourceBlocked:
			blocked = append(blocked, d.Source)
		case domain.SourceEmpty:
			empty = append(empty, d.Source)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, " Sources failing: %s.", strings.Join(failed, ", "))
	}
	if len(blocked) > 0 {
		fmt.Fprintf(&b, " Sources blocking requests: %s.", strings.Join(blocked, ", "))
	}
	if len(empty) > 0 {
		fmt.Fprintf(&b, " Sources returning nothing: %s.", strings.Join(empty, ", "))
	}

	switch {
	case leadsFound == 0 && len(diags) > 0:
		b.WriteString(" No raw leads surfaced; consider widening queries or checking source health.")
	case qualified == 0 && leadsFound > 0:
		b.WriteString(" Leads were found but none cleared the profit and spread thresholds.")
	}

	return b.String()
}
