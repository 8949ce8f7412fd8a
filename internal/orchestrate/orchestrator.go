// ---------------------------------------------------------------------------
// orchestrator.go — runs one analysis request through the state machine:
// received -> routing -> analysis stages -> synthesizing -> complete.
// Stage failures degrade confidence; only programming errors abort.
// ---------------------------------------------------------------------------

package orchestrate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/logsentinel-project/logsentinel/internal/assess"
	"github.com/logsentinel-project/logsentinel/internal/core"
	"github.com/logsentinel-project/logsentinel/internal/correlate"
	"github.com/logsentinel-project/logsentinel/internal/mitre"
)

// Stage routing keywords, checked in order against the lowercased task.
var routingTable = []struct {
	state    State
	keywords []string
}{
	{StateHunt, []string{"anomaly", "anomalies", "unusual", "suspicious", "wrong", "strange"}},
	{StateMapping, []string{"attack", "threat", "mitre", "technique", "tactic", "malicious"}},
	{StateTriage, []string{"search", "find", "show", "where", "when", "what"}},
}

// Orchestrator coordinates the analysis stages for a request. It holds only
// immutable collaborators and configuration; all per-request state lives on
// the stack of Analyze.
type Orchestrator struct {
	matcher   *correlate.Matcher
	retriever Retriever
	generator Generator
	triggers  *TriggerEngine

	retrievalK      int
	externalTimeout time.Duration
	logger          zerolog.Logger
}

// Options configures an Orchestrator.
type Options struct {
	Retriever       Retriever
	Generator       Generator
	MaxFollowups    int
	FollowupWindow  time.Duration
	ExternalTimeout time.Duration
	RetrievalK      int
}

// New creates an Orchestrator.
func New(matcher *correlate.Matcher, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.ExternalTimeout <= 0 {
		opts.ExternalTimeout = 30 * time.Second
	}
	if opts.RetrievalK <= 0 {
		opts.RetrievalK = 8
	}
	return &Orchestrator{
		matcher:         matcher,
		retriever:       opts.Retriever,
		generator:       opts.Generator,
		triggers:        NewTriggerEngine(opts.MaxFollowups, opts.FollowupWindow),
		retrievalK:      opts.RetrievalK,
		externalTimeout: opts.ExternalTimeout,
		logger:          logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Analyze runs the request to completion. An empty event set yields a
// minimal low-risk result, not an error. The context bounds the request;
// cancellation is honored between external calls.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (*Result, error) {
	log := o.logger.With().Str("request_id", req.ID).Logger()
	log.Info().Str("task", req.Task).Int("events", len(req.Events)).Msg("analysis started")

	lc := newLifecycle()
	if err := lc.advance(StateRouting); err != nil {
		return nil, err
	}

	if len(req.Events) == 0 {
		log.Warn().Msg("empty event set, producing minimal result")
		return o.minimalResult(req, lc), nil
	}

	core.SortEvents(req.Events)

	stages := route(req.Task)
	log.Debug().Str("stages", stageNames(stages)).Msg("routed")

	run := &analysisRun{req: &req, lc: lc, log: log}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			// Caller gave up. Synthesize from whatever completed so far.
			log.Warn().Err(err).Msg("context cancelled, synthesizing early")
			break
		}
		if err := lc.advance(st); err != nil {
			return nil, err
		}
		switch st {
		case StateTriage:
			o.runTriage(ctx, run)
		case StateHunt:
			o.runHunt(run)
		case StateMapping:
			o.runMapping(run)
		}
	}

	if err := lc.advance(StateSynthesizing); err != nil {
		return nil, err
	}
	result := o.synthesize(ctx, run)

	if err := lc.advance(StateComplete); err != nil {
		return nil, err
	}
	result.State = lc.current
	result.Trail = lc.trail

	log.Info().
		Int("risk_score", result.RiskScore).
		Str("risk_level", result.RiskLevel).
		Str("attack_stage", result.AttackStage).
		Int("sequences", len(result.Sequences)).
		Int("followups", result.FollowupsRun).
		Msg("analysis complete")
	return result, nil
}

// analysisRun accumulates stage outputs for one request.
type analysisRun struct {
	req *Request
	lc  *lifecycle
	log zerolog.Logger

	relevant     []core.Event
	followupHits []core.Event
	sequences    []correlate.MatchedSequence
	techniques   []mitre.Technique
	followupsRun int
	degraded     []string
}

// route picks the analysis stages for a task. The hunt stage always runs so
// attack sequences are available at synthesis regardless of routing.
func route(task string) []State {
	lower := strings.ToLower(task)
	for _, entry := range routingTable {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				switch entry.state {
				case StateHunt:
					return []State{StateHunt, StateMapping}
				case StateMapping:
					return []State{StateHunt, StateMapping}
				default:
					return []State{StateTriage, StateHunt, StateMapping}
				}
			}
		}
	}
	return []State{StateTriage, StateHunt, StateMapping}
}

func stageNames(states []State) string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.String()
	}
	return strings.Join(names, ",")
}

// stageFollowup is the degradation marker for a failed follow-up batch;
// follow-ups run inside triage but degrade independently of it.
const stageFollowup = "followup"

// runTriage retrieves task-relevant events and executes planned follow-ups,
// one level deep. Retrieval failures, for the task query or for a follow-up
// batch, degrade the result.
func (o *Orchestrator) runTriage(ctx context.Context, run *analysisRun) {
	events, err := callRetrieve(ctx, o.retriever, run.req.Task, o.retrievalK, o.externalTimeout)
	if err != nil {
		run.log.Warn().Err(err).Msg("triage retrieval failed, stage degraded")
		run.degraded = append(run.degraded, StateTriage.String())
		// Fall back to the full event set for follow-up planning.
		events = run.req.Events
	}
	run.relevant = events

	followups := o.triggers.Plan(events)
	for _, fu := range followups {
		failed := false
		for _, q := range fu.Queries {
			if ctx.Err() != nil {
				return
			}
			hits, err := callRetrieve(ctx, o.retriever, q, o.retrievalK, o.externalTimeout)
			if err != nil {
				run.log.Warn().Err(err).Str("query", q).Msg("follow-up retrieval failed, result degraded")
				failed = true
				continue
			}
			run.followupHits = append(run.followupHits, hits...)
		}
		if failed {
			run.degraded = append(run.degraded, stageFollowup)
		}
		run.followupsRun++
	}
}

// runHunt matches the pattern library over the full chronological set.
func (o *Orchestrator) runHunt(run *analysisRun) {
	run.sequences = o.matcher.Match(run.req.Events)
}

// runMapping attributes techniques to every event message.
func (o *Orchestrator) runMapping(run *analysisRun) {
	seen := make(map[string]bool)
	for i := range run.req.Events {
		ev := &run.req.Events[i]
		techs := mitre.MapMessage(ev.Message)
		for _, t := range techs {
			if !ev.HasTechnique(t.ID) {
				ev.Techniques = append(ev.Techniques, t.ID)
			}
			if !seen[t.ID] {
				seen[t.ID] = true
				run.techniques = append(run.techniques, t)
			}
		}
	}
}

// synthesize folds stage outputs into the final result. Generation failures
// fall back to a deterministic summary and degrade the stage.
func (o *Orchestrator) synthesize(ctx context.Context, run *analysisRun) *Result {
	req := run.req

	techniqueIDs := make([]string, len(run.techniques))
	for i, t := range run.techniques {
		techniqueIDs[i] = t.ID
	}

	score := assess.Score(run.sequences, techniqueIDs, req.OTEnvironment)
	res := &Result{
		RequestID:       req.ID,
		Task:            req.Task,
		GeneratedAt:     time.Now().UTC(),
		EventsAnalyzed:  len(req.Events),
		RiskScore:       score,
		RiskLevel:       assess.RiskLevel(score),
		AttackStage:     assess.Classify(run.sequences, techniqueIDs),
		AttackSucceeded: attackSucceeded(run.sequences),
		Sequences:       run.sequences,
		Techniques:      run.techniques,
		Timeline:        buildTimeline(run.sequences, req.Events),
		IOCs:            extractIOCs(req.Events),
		FollowupsRun:    run.followupsRun,
		DegradedStages:  run.degraded,
	}

	allTechniqueIDs := techniqueIDs
	for _, s := range run.sequences {
		allTechniqueIDs = append(allTechniqueIDs, s.Techniques...)
	}
	if req.OTEnvironment {
		impact := assess.AssessSafety(allTechniqueIDs)
		res.SafetyImpact = &impact
	}
	res.Recommendations = recommend(res)

	res.Summary = fallbackSummary(res)
	if o.generator != nil {
		text, err := callGenerate(ctx, o.generator, promptContext(res), o.externalTimeout)
		if err != nil {
			run.log.Warn().Err(err).Msg("generation failed, using deterministic summary")
			res.DegradedStages = append(res.DegradedStages, StateSynthesizing.String())
		} else if strings.TrimSpace(text) != "" {
			res.Summary = text
			res.Generated = true
		}
	}

	res.Confidence = confidence(len(res.DegradedStages))
	return res
}

// attackSucceeded reports whether any matched sequence carries a validated
// access technique, i.e. the attacker got in rather than just trying.
func attackSucceeded(seqs []correlate.MatchedSequence) bool {
	for _, s := range seqs {
		for _, id := range s.Techniques {
			if mitre.IsValidatedAccess(id) {
				return true
			}
		}
	}
	return false
}

// minimalResult is the outcome for an empty event set.
func (o *Orchestrator) minimalResult(req Request, lc *lifecycle) *Result {
	_ = lc.advance(StateSynthesizing)
	_ = lc.advance(StateComplete)
	return &Result{
		RequestID:   req.ID,
		Task:        req.Task,
		GeneratedAt: time.Now().UTC(),
		State:       lc.current,
		RiskScore:   0,
		RiskLevel:   assess.RiskLow,
		AttackStage: assess.StageInitial,
		Confidence:  "Low",
		Summary:     "No events were available for analysis.",
		Trail:       lc.trail,
	}
}

func confidence(degradedStages int) string {
	switch {
	case degradedStages == 0:
		return "High"
	case degradedStages == 1:
		return "Medium"
	default:
		return "Low"
	}
}

// buildTimeline lists the events evidencing matched sequences, or the
// highest-severity events when nothing matched. Entries stay chronological.
func buildTimeline(seqs []correlate.MatchedSequence, events []core.Event) []TimelineEntry {
	var source []core.Event
	if len(seqs) > 0 {
		seen := make(map[string]bool)
		for _, s := range seqs {
			for _, ev := range s.Events {
				if !seen[ev.ID] {
					seen[ev.ID] = true
					source = append(source, ev)
				}
			}
		}
	} else {
		for _, ev := range events {
			if ev.Severity >= core.SeverityHigh {
				source = append(source, ev)
			}
		}
	}
	core.SortEvents(source)

	entries := make([]TimelineEntry, 0, len(source))
	for _, ev := range source {
		entries = append(entries, TimelineEntry{
			Time:       ev.Timestamp,
			Severity:   ev.Severity.String(),
			Message:    ev.Message,
			Source:     ev.Source,
			Techniques: ev.Techniques,
		})
	}
	return entries
}

// extractIOCs pulls network, host, and behavioral indicators from events.
func extractIOCs(events []core.Event) IOCs {
	var iocs IOCs
	seenIP := make(map[string]bool)
	seenAccount := make(map[string]bool)
	seenAsset := make(map[string]bool)

	for _, ev := range events {
		for _, ip := range reIPv4.FindAllString(ev.Message, -1) {
			if !seenIP[ip] {
				seenIP[ip] = true
				iocs.SourceIPs = append(iocs.SourceIPs, ip)
			}
		}
		if reCredFailure.MatchString(ev.Message) {
			iocs.FailedLogins++
		}
		if reSafetyChange.MatchString(ev.Message) {
			iocs.ConfigChanges++
		}
		if acct := createdAccount(ev.Message); acct != "" && !seenAccount[acct] {
			seenAccount[acct] = true
			iocs.CreatedAccounts = append(iocs.CreatedAccounts, acct)
		}
		if assetRegex.MatchString(ev.Message) && ev.Source != "" && !seenAsset[ev.Source] {
			seenAsset[ev.Source] = true
			iocs.Assets = append(iocs.Assets, ev.Source)
		}
	}
	return iocs
}

var (
	accountRegex = regexp.MustCompile(`(?i)(?:user|account)\s+['"]?([A-Za-z0-9_.\-]+)['"]?\s+(?:created|added)`)
	assetRegex   = regexp.MustCompile(`(?i)\b(plc|hmi|scada|rtu|dcs|historian)\b`)
)

func createdAccount(message string) string {
	m := accountRegex.FindStringSubmatch(message)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// recommend selects tiered actions from the result's findings.
func recommend(res *Result) []Recommendation {
	var recs []Recommendation
	add := func(tier, action string) {
		recs = append(recs, Recommendation{Tier: tier, Action: action})
	}

	hasTech := func(pred func(string) bool) bool {
		for _, t := range res.Techniques {
			if pred(t.ID) {
				return true
			}
		}
		for _, s := range res.Sequences {
			for _, id := range s.Techniques {
				if pred(id) {
					return true
				}
			}
		}
		return false
	}

	if len(res.IOCs.SourceIPs) > 0 {
		add(TierImmediate, fmt.Sprintf("Block or isolate attacking source addresses: %s", strings.Join(res.IOCs.SourceIPs, ", ")))
	}
	if hasTech(mitre.IsValidatedAccess) {
		add(TierImmediate, "Reset credentials for accounts with successful logins during the attack window")
	}
	if len(res.IOCs.CreatedAccounts) > 0 {
		add(TierImmediate, fmt.Sprintf("Disable newly created accounts: %s", strings.Join(res.IOCs.CreatedAccounts, ", ")))
	}
	if res.SafetyImpact != nil && res.SafetyImpact.PersonnelRisk {
		add(TierImmediate, "Verify safety instrumented systems and alarm visibility with operations staff")
	}
	if hasTech(mitre.IsSafetySystem) {
		add(TierShortTerm, "Audit controller configuration and restore verified setpoints from known-good baselines")
	}
	if hasTech(mitre.IsPersistence) {
		add(TierShortTerm, "Review scheduled tasks, services, and account changes for persistence mechanisms")
	}
	add(TierShortTerm, "Preserve log evidence and perform forensic review of affected hosts")
	if res.RiskLevel == assess.RiskCritical || res.RiskLevel == assess.RiskHigh {
		add(TierLongTerm, "Segment OT networks from IT and enforce MFA on remote access paths")
	}
	add(TierLongTerm, "Tune detection rules for the observed techniques and brief operators on the incident")
	return recs
}

// fallbackSummary is the deterministic summary used when generation is
// unavailable.
func fallbackSummary(res *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Risk %s (%d/100), attack stage %s. ", res.RiskLevel, res.RiskScore, res.AttackStage)
	if len(res.Sequences) > 0 {
		fmt.Fprintf(&b, "Detected %d attack sequence(s); most severe: %s. ", len(res.Sequences), res.Sequences[0].Name)
	} else {
		b.WriteString("No known attack sequences detected. ")
	}
	if res.SafetyImpact != nil && res.SafetyImpact.Level != "None" {
		fmt.Fprintf(&b, "Process safety impact assessed %s.", res.SafetyImpact.Level)
	}
	return strings.TrimSpace(b.String())
}

// promptContext packages the structured findings for the generator.
func promptContext(res *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\nRisk: %s (%d/100)\nAttack stage: %s\n", res.Task, res.RiskLevel, res.RiskScore, res.AttackStage)
	for _, s := range res.Sequences {
		fmt.Fprintf(&b, "Sequence: %s (severity %d, %d events, techniques %s)\n",
			s.Name, s.Severity, len(s.Events), strings.Join(s.Techniques, " "))
	}
	for _, t := range res.Techniques {
		fmt.Fprintf(&b, "Technique: %s %s (%s)\n", t.ID, t.Name, t.Tactic)
	}
	if res.SafetyImpact != nil {
		fmt.Fprintf(&b, "Safety impact: %s\n", res.SafetyImpact.Level)
	}
	b.WriteString("Write a concise incident summary for a SOC analyst.")
	return b.String()
}
