package recommend

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kindred-app/kindred/internal/config"
	"github.com/kindred-app/kindred/internal/events"
	"github.com/kindred-app/kindred/internal/roster"
	"github.com/kindred-app/kindred/internal/scoring"
	"github.com/kindred-app/kindred/internal/store"
)

var (
	ErrUnknownKid      = errors.New("unknown kid")
	ErrUnknownActivity = errors.New("unknown activity")
	ErrUnknownPreset   = errors.New("unknown preset")
)

// Request is one recommendation invocation: which kid, under what situational
// filter, for which caller.
type Request struct {
	KidID      uuid.UUID
	UserID     uuid.UUID
	CallerRole roster.Role
	Context    scoring.ContextFilter
	Limit      int
}

// Item is one ranked recommendation.
type Item struct {
	ActivityID  uuid.UUID           `json:"activity_id"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Score       float64             `json:"score"`
	Explanation scoring.Explanation `json:"explanation"`
}

// Result is the ordered output of one scoring run. DegradedFactors names any
// factor that fell back to its neutral default because its sub-query failed;
// the run itself still succeeds.
type Result struct {
	Items           []Item   `json:"items"`
	DegradedFactors []string `json:"degraded_factors,omitempty"`
}

// Engine orchestrates a scoring run: fetch candidates, compute all seven
// factor scores per candidate, combine via the caller's weights, sort,
// truncate. Stateless per request apart from a short-TTL weight cache.
type Engine struct {
	store  store.Store
	events events.Client
	cfg    *config.Config
	logger *slog.Logger

	cacheMu     sync.Mutex
	weightCache map[uuid.UUID]cachedWeights
}

type cachedWeights struct {
	weights  scoring.WeightSet
	loadedAt time.Time
}

func New(s store.Store, ev events.Client, cfg *config.Config, logger *slog.Logger) *Engine {
	return &Engine{
		store:       s,
		events:      ev,
		cfg:         cfg,
		logger:      logger,
		weightCache: make(map[uuid.UUID]cachedWeights),
	}
}

// SetupSubscriptions wires event-driven cache invalidation: a weight update
// anywhere drops that user's cached weight set immediately instead of waiting
// out the TTL.
func (e *Engine) SetupSubscriptions() {
	if e.events == nil {
		return
	}
	err := e.events.Subscribe(events.SubjectWeightsUpdated, func(_ string, data []byte) {
		e.handleWeightsUpdated(data)
	})
	if err != nil {
		e.logger.Warn("failed to subscribe to weight updates", "error", err)
	}
}

// Recommend runs one full scoring pass for a kid.
//
// The context filter applies at two levels: as a hard pre-filter removing
// non-matching candidates before scoring, and again as the soft context_match
// factor on the survivors. Both levels are intentional; the live system ran
// them together and the double-counting is preserved.
func (e *Engine) Recommend(ctx context.Context, req Request) (*Result, error) {
	kid, err := e.store.GetKid(ctx, req.KidID)
	if err != nil {
		return nil, err
	}
	if kid == nil {
		return nil, ErrUnknownKid
	}

	weights, err := e.weightsFor(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.store.ListHouseholdActivities(ctx, kid.HouseholdID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Result{Items: []Item{}}, nil
	}

	inputs, err := e.gatherInputs(ctx, kid, candidates, req)
	if err != nil {
		return nil, err
	}

	filterActive := !req.Context.Empty()
	if filterActive {
		var kept []*store.Activity
		for _, a := range candidates {
			if scoring.MatchesContext(inputs.contexts[a.ID], req.Context) {
				kept = append(kept, a)
			}
		}
		candidates = kept
	}
	if len(candidates) == 0 {
		return &Result{Items: []Item{}}, nil
	}

	peerCounts, peerDegraded := e.peerCounts(ctx, req.KidID, candidates)

	scorer := scoring.NewScorer(weights, e.logger)
	now := time.Now()

	// Fan out per candidate; every score lands in its own slot so the sort
	// below is deterministic regardless of completion order.
	results := make([]scoring.ScoringResult, len(candidates))
	var wg sync.WaitGroup
	for i, a := range candidates {
		wg.Add(1)
		go func(i int, a *store.Activity) {
			defer wg.Done()
			cc := &scoring.CandidateContext{
				Activity:          a,
				Preference:        inputs.prefs[a.ID],
				Caregiver:         inputs.caregiver[a.ID],
				PeerCount:         peerCounts[a.ID],
				PeerCountDegraded: peerDegraded[a.ID],
				ObservationCount:  inputs.observations[a.ID],
				FilterActive:      filterActive,
				ContextMatched:    filterActive, // survivors of the hard filter all matched
				Feedback:          inputs.feedback[a.ID],
				Now:               now,
			}
			results[i] = scorer.ScoreCandidate(cc)
		}(i, a)
	}
	wg.Wait()

	byID := make(map[uuid.UUID]*store.Activity, len(candidates))
	for _, a := range candidates {
		byID[a.ID] = a
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].TotalScore != results[j].TotalScore {
			return results[i].TotalScore > results[j].TotalScore
		}
		return strings.Compare(results[i].ActivityID.String(), results[j].ActivityID.String()) < 0
	})

	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.Recommend.DefaultLimit
	}
	if e.cfg.Recommend.MaxLimit > 0 && limit > e.cfg.Recommend.MaxLimit {
		limit = e.cfg.Recommend.MaxLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}

	out := &Result{Items: make([]Item, 0, len(results))}
	for _, r := range results {
		a := byID[r.ActivityID]
		out.Items = append(out.Items, Item{
			ActivityID:  r.ActivityID,
			Name:        a.Name,
			Description: a.Description,
			Score:       r.TotalScore,
			Explanation: r.Explanation,
		})
	}
	if anyDegraded(peerDegraded) {
		out.DegradedFactors = []string{scoring.FactorSimilarKids}
	}

	e.publishServed(req, out)
	return out, nil
}

type candidateInputs struct {
	prefs        map[uuid.UUID]*store.KidPreference
	caregiver    map[uuid.UUID]*store.CaregiverPreference
	contexts     map[uuid.UUID][]*store.ActivityContext
	observations map[uuid.UUID]int
	feedback     map[uuid.UUID]*store.FeedbackSignal
}

// gatherInputs bulk-loads every per-activity fact in one query each; the
// scoring loop never touches the store.
func (e *Engine) gatherInputs(ctx context.Context, kid *store.Kid, candidates []*store.Activity, req Request) (*candidateInputs, error) {
	ids := make([]uuid.UUID, len(candidates))
	for i, a := range candidates {
		ids[i] = a.ID
	}

	prefRows, err := e.store.GetKidPreferences(ctx, kid.ID)
	if err != nil {
		return nil, err
	}
	prefs := make(map[uuid.UUID]*store.KidPreference, len(prefRows))
	for _, p := range prefRows {
		prefs[p.ActivityID] = p
	}

	cgRows, err := e.store.GetCaregiverPreferences(ctx, kid.HouseholdID)
	if err != nil {
		return nil, err
	}
	caregiver := make(map[uuid.UUID]*store.CaregiverPreference, len(cgRows))
	for _, c := range cgRows {
		caregiver[c.ActivityID] = c
	}

	ctxRows, err := e.store.GetActivityContexts(ctx, ids)
	if err != nil {
		return nil, err
	}
	contexts := make(map[uuid.UUID][]*store.ActivityContext)
	for _, t := range ctxRows {
		contexts[t.ActivityID] = append(contexts[t.ActivityID], t)
	}

	// Teachers see every observation; parent-facing calls only count rows
	// flagged visible to parents.
	visibleOnly := req.CallerRole != roster.RoleTeacher
	observations, err := e.store.CountObservationsByActivity(ctx, kid.ID, visibleOnly)
	if err != nil {
		return nil, err
	}

	feedback, err := e.store.GetFeedbackSignals(ctx, kid.ID)
	if err != nil {
		return nil, err
	}

	return &candidateInputs{
		prefs:        prefs,
		caregiver:    caregiver,
		contexts:     contexts,
		observations: observations,
		feedback:     feedback,
	}, nil
}

// peerCounts runs the cross-household similarity query per candidate under
// its own bounded timeout. A slow or failed peer query degrades that one
// candidate's factor to count 0; it never fails the run.
func (e *Engine) peerCounts(ctx context.Context, kidID uuid.UUID, candidates []*store.Activity) (map[uuid.UUID]int, map[uuid.UUID]bool) {
	counts := make(map[uuid.UUID]int, len(candidates))
	degraded := make(map[uuid.UUID]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, a := range candidates {
		wg.Add(1)
		go func(a *store.Activity) {
			defer wg.Done()
			peerCtx, cancel := context.WithTimeout(ctx, e.cfg.PeerTimeout())
			defer cancel()
			n, err := e.store.CountPeerPreferences(peerCtx, a.ID, kidID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Warn("peer similarity query degraded", "activity_id", a.ID, "error", err)
				degraded[a.ID] = true
				return
			}
			counts[a.ID] = n
		}(a)
	}
	wg.Wait()
	return counts, degraded
}

func anyDegraded(m map[uuid.UUID]bool) bool {
	for _, v := range m {
		if v {
			return true
		}
	}
	return false
}

func (e *Engine) publishServed(req Request, res *Result) {
	if e.events == nil {
		return
	}
	ev := events.RecommendationServedEvent{
		KidID:           req.KidID.String(),
		UserID:          req.UserID.String(),
		Count:           len(res.Items),
		DegradedFactors: res.DegradedFactors,
		Timestamp:       time.Now(),
	}
	if len(res.Items) > 0 {
		ev.TopScore = res.Items[0].Score
	}
	if err := e.events.Publish(events.SubjectRecommendationServed(ev.KidID), ev); err != nil {
		e.logger.Warn("failed to publish recommendation event", "error", err)
	}
	if len(res.DegradedFactors) > 0 {
		_ = e.events.Publish(events.SubjectRecommendationDegraded(ev.KidID), ev)
	}
}
