// ---------------------------------------------------------------------------
// report.go — markdown report rendering for completed analysis results.
//
// When the generation backend is available its synthesized narrative becomes
// the executive summary; everything else in the report is built from the
// structured result so a report is always produced, degraded run or not.
// ---------------------------------------------------------------------------

package report

import (
	"fmt"
	"strings"

	"github.com/logsentinel-project/logsentinel/internal/mitre"
	"github.com/logsentinel-project/logsentinel/internal/orchestrate"
)

// Markdown renders a full analyst report for the result.
func Markdown(res *orchestrate.Result) string {
	var b strings.Builder

	b.WriteString("# Security Analysis Report\n\n")
	fmt.Fprintf(&b, "Request `%s` | generated %s\n\n", res.RequestID, res.GeneratedAt.UTC().Format("2006-01-02 15:04:05 MST"))

	writeSummary(&b, res)
	writeAssessment(&b, res)
	writeTimeline(&b, res)
	writeTechniques(&b, res)
	writeIOCs(&b, res)
	writeRecommendations(&b, res)
	writeSafety(&b, res)

	return b.String()
}

func writeSummary(b *strings.Builder, res *orchestrate.Result) {
	b.WriteString("## Executive Summary\n\n")
	b.WriteString(strings.TrimSpace(res.Summary))
	b.WriteString("\n\n")

	if res.Degraded() {
		fmt.Fprintf(b, "> Partial analysis: the %s stage(s) ran degraded. Findings below may be incomplete.\n\n",
			strings.Join(res.DegradedStages, ", "))
	}
}

func writeAssessment(b *strings.Builder, res *orchestrate.Result) {
	b.WriteString("## Threat Assessment\n\n")
	b.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(b, "| Risk Level | %s |\n", res.RiskLevel)
	fmt.Fprintf(b, "| Severity Score | %d/100 |\n", res.RiskScore)
	fmt.Fprintf(b, "| Confidence | %s |\n", res.Confidence)
	fmt.Fprintf(b, "| Attack Stage | %s |\n", res.AttackStage)
	fmt.Fprintf(b, "| Attack Succeeded | %t |\n", res.AttackSucceeded)
	fmt.Fprintf(b, "| Events Analyzed | %d |\n", res.EventsAnalyzed)
	fmt.Fprintf(b, "| Detected Sequences | %d |\n", len(res.Sequences))
	b.WriteString("\n")

	if len(res.Sequences) == 0 {
		return
	}

	b.WriteString("| Sequence | Severity | Events | Span (min) |\n|----------|----------|--------|------------|\n")
	for _, seq := range res.Sequences {
		fmt.Fprintf(b, "| %s | %d | %d | %.0f |\n",
			seq.Name, seq.Severity, len(seq.Events), seq.TimeSpanMinutes)
	}
	b.WriteString("\n")
}

func writeTimeline(b *strings.Builder, res *orchestrate.Result) {
	if len(res.Timeline) == 0 {
		return
	}

	b.WriteString("## Attack Timeline\n\n")
	b.WriteString("| Time | Severity | Source | Event | Techniques |\n|------|----------|--------|-------|------------|\n")
	for _, entry := range res.Timeline {
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
			entry.Time.UTC().Format("15:04:05"),
			entry.Severity,
			escapeCell(entry.Source),
			escapeCell(entry.Message),
			strings.Join(entry.Techniques, ", "))
	}

	first := res.Timeline[0].Time
	last := res.Timeline[len(res.Timeline)-1].Time
	fmt.Fprintf(b, "\nAttack duration: %.0f minutes from first to last correlated event.\n\n",
		last.Sub(first).Minutes())
}

func writeTechniques(b *strings.Builder, res *orchestrate.Result) {
	if len(res.Techniques) == 0 {
		return
	}

	b.WriteString("## MITRE ATT&CK Techniques\n\n")
	b.WriteString("| Technique | Name | Tactic | Reference |\n|-----------|------|--------|----------|\n")
	for _, tech := range res.Techniques {
		fmt.Fprintf(b, "| %s | %s | %s | %s |\n", tech.ID, tech.Name, tech.Tactic, tech.URL)
	}

	var ics []string
	for _, tech := range res.Techniques {
		if mitre.IsICS(tech.ID) {
			ics = append(ics, tech.ID)
		}
	}
	if len(ics) > 0 {
		fmt.Fprintf(b, "\nICS-specific techniques observed: %s.\n", strings.Join(ics, ", "))
	}
	b.WriteString("\n")
}

func writeIOCs(b *strings.Builder, res *orchestrate.Result) {
	iocs := res.IOCs
	empty := len(iocs.SourceIPs) == 0 && len(iocs.CreatedAccounts) == 0 &&
		len(iocs.Assets) == 0 && iocs.FailedLogins == 0 && iocs.ConfigChanges == 0
	if empty {
		return
	}

	b.WriteString("## Indicators of Compromise\n\n")
	if len(iocs.SourceIPs) > 0 {
		fmt.Fprintf(b, "- Source IPs: %s\n", strings.Join(iocs.SourceIPs, ", "))
	}
	if len(iocs.CreatedAccounts) > 0 {
		fmt.Fprintf(b, "- Created accounts: %s\n", strings.Join(iocs.CreatedAccounts, ", "))
	}
	if len(iocs.Assets) > 0 {
		fmt.Fprintf(b, "- Affected assets: %s\n", strings.Join(iocs.Assets, ", "))
	}
	if iocs.FailedLogins > 0 {
		fmt.Fprintf(b, "- Failed login attempts: %d\n", iocs.FailedLogins)
	}
	if iocs.ConfigChanges > 0 {
		fmt.Fprintf(b, "- Configuration changes: %d\n", iocs.ConfigChanges)
	}
	b.WriteString("\n")
}

func writeRecommendations(b *strings.Builder, res *orchestrate.Result) {
	if len(res.Recommendations) == 0 {
		return
	}

	b.WriteString("## Recommended Actions\n\n")
	for _, tier := range []struct {
		name  string
		title string
	}{
		{orchestrate.TierImmediate, "Immediate (0-1 hour)"},
		{orchestrate.TierShortTerm, "Short-term (1-24 hours)"},
		{orchestrate.TierLongTerm, "Long-term (1-30 days)"},
	} {
		var actions []string
		for _, rec := range res.Recommendations {
			if rec.Tier == tier.name {
				actions = append(actions, rec.Action)
			}
		}
		if len(actions) == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s\n\n", tier.title)
		for i, action := range actions {
			fmt.Fprintf(b, "%d. %s\n", i+1, action)
		}
		b.WriteString("\n")
	}
}

func writeSafety(b *strings.Builder, res *orchestrate.Result) {
	si := res.SafetyImpact
	if si == nil || si.Level == "None" {
		return
	}

	b.WriteString("## Safety Impact\n\n")
	fmt.Fprintf(b, "| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(b, "| Level | %s |\n", si.Level)
	fmt.Fprintf(b, "| Physical damage risk | %t |\n", si.PhysicalDamageRisk)
	fmt.Fprintf(b, "| Personnel risk | %t |\n\n", si.PersonnelRisk)

	if len(si.IdentifiedImpacts) > 0 {
		for _, impact := range si.IdentifiedImpacts {
			fmt.Fprintf(b, "- %s: %s\n", impact.Technique, impact.Impact)
		}
		b.WriteString("\n")
	}
}

// escapeCell keeps pipes in log messages from breaking markdown tables.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
