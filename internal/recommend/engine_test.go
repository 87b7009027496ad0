package recommend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kindred-app/kindred/internal/config"
	"github.com/kindred-app/kindred/internal/roster"
	"github.com/kindred-app/kindred/internal/scoring"
	"github.com/kindred-app/kindred/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg, _ := config.Load("")
	return cfg
}

// mockStore is an in-memory Store for engine tests.
type mockStore struct {
	mu sync.Mutex

	kids       map[uuid.UUID]*store.Kid
	activities map[uuid.UUID]*store.Activity
	linked     map[uuid.UUID][]uuid.UUID // household -> activity ids
	prefs      map[uuid.UUID][]*store.KidPreference
	caregiver  map[uuid.UUID][]*store.CaregiverPreference
	contexts   map[uuid.UUID][]*store.ActivityContext
	obsCounts  map[uuid.UUID]int
	obsAll     map[uuid.UUID]int
	peerCounts map[uuid.UUID]int
	signals    map[uuid.UUID]*store.FeedbackSignal
	weights    map[uuid.UUID]map[string]*store.RecommendationWeight
	feedback   []*store.RecommendationFeedback

	peerErr      error
	peerSlow     time.Duration
	weightsCalls int
}

func newMockStore() *mockStore {
	return &mockStore{
		kids:       make(map[uuid.UUID]*store.Kid),
		activities: make(map[uuid.UUID]*store.Activity),
		linked:     make(map[uuid.UUID][]uuid.UUID),
		prefs:      make(map[uuid.UUID][]*store.KidPreference),
		caregiver:  make(map[uuid.UUID][]*store.CaregiverPreference),
		contexts:   make(map[uuid.UUID][]*store.ActivityContext),
		obsCounts:  make(map[uuid.UUID]int),
		obsAll:     make(map[uuid.UUID]int),
		peerCounts: make(map[uuid.UUID]int),
		signals:    make(map[uuid.UUID]*store.FeedbackSignal),
		weights:    make(map[uuid.UUID]map[string]*store.RecommendationWeight),
	}
}

func (m *mockStore) GetKid(_ context.Context, id uuid.UUID) (*store.Kid, error) {
	return m.kids[id], nil
}

func (m *mockStore) GetActivity(_ context.Context, id uuid.UUID) (*store.Activity, error) {
	return m.activities[id], nil
}

func (m *mockStore) ListHouseholdActivities(_ context.Context, householdID uuid.UUID) ([]*store.Activity, error) {
	ids := append([]uuid.UUID(nil), m.linked[householdID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	var out []*store.Activity
	for _, id := range ids {
		out = append(out, m.activities[id])
	}
	return out, nil
}

func (m *mockStore) GetKidPreferences(_ context.Context, kidID uuid.UUID) ([]*store.KidPreference, error) {
	return m.prefs[kidID], nil
}

func (m *mockStore) UpsertKidPreference(_ context.Context, pref *store.KidPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prefs[pref.KidID] {
		if p.ActivityID == pref.ActivityID {
			p.Level = pref.Level
			return nil
		}
	}
	m.prefs[pref.KidID] = append(m.prefs[pref.KidID], pref)
	return nil
}

func (m *mockStore) GetCaregiverPreferences(_ context.Context, householdID uuid.UUID) ([]*store.CaregiverPreference, error) {
	return m.caregiver[householdID], nil
}

func (m *mockStore) GetActivityContexts(_ context.Context, activityIDs []uuid.UUID) ([]*store.ActivityContext, error) {
	var out []*store.ActivityContext
	for _, id := range activityIDs {
		out = append(out, m.contexts[id]...)
	}
	return out, nil
}

func (m *mockStore) CountObservationsByActivity(_ context.Context, _ uuid.UUID, visibleOnly bool) (map[uuid.UUID]int, error) {
	if visibleOnly {
		return m.obsCounts, nil
	}
	return m.obsAll, nil
}

func (m *mockStore) CountPeerPreferences(ctx context.Context, activityID, _ uuid.UUID) (int, error) {
	if m.peerSlow > 0 {
		select {
		case <-time.After(m.peerSlow):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if m.peerErr != nil {
		return 0, m.peerErr
	}
	return m.peerCounts[activityID], nil
}

func (m *mockStore) GetFeedbackSignals(_ context.Context, _ uuid.UUID) (map[uuid.UUID]*store.FeedbackSignal, error) {
	return m.signals, nil
}

func (m *mockStore) CreateFeedback(_ context.Context, fb *store.RecommendationFeedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fb.ID = uuid.New()
	fb.CreatedAt = time.Now()
	m.feedback = append(m.feedback, fb)
	return nil
}

func (m *mockStore) GetFeedback(_ context.Context, id uuid.UUID) (*store.RecommendationFeedback, error) {
	for _, fb := range m.feedback {
		if fb.ID == id {
			return fb, nil
		}
	}
	return nil, nil
}

func (m *mockStore) GetWeights(_ context.Context, userID uuid.UUID) ([]*store.RecommendationWeight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weightsCalls++
	var out []*store.RecommendationWeight
	for _, w := range m.weights[userID] {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FactorName < out[j].FactorName })
	return out, nil
}

func (m *mockStore) UpsertWeight(_ context.Context, w *store.RecommendationWeight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.weights[w.UserID] == nil {
		m.weights[w.UserID] = make(map[string]*store.RecommendationWeight)
	}
	w.UpdatedAt = time.Now()
	m.weights[w.UserID][w.FactorName] = w
	return nil
}

func (m *mockStore) GetStats(_ context.Context) (*store.Stats, error) {
	return &store.Stats{TotalKids: len(m.kids), TotalActivities: len(m.activities), TotalFeedback: len(m.feedback)}, nil
}

func (m *mockStore) Close() error { return nil }

// seedKid creates a kid with n linked activities and returns the kid plus the
// activities in id order.
func seedKid(m *mockStore, n int) (*store.Kid, []*store.Activity) {
	kid := &store.Kid{ID: uuid.New(), HouseholdID: uuid.New(), Name: "Remy", Active: true}
	m.kids[kid.ID] = kid
	for i := 0; i < n; i++ {
		a := &store.Activity{ID: uuid.New(), Name: "activity"}
		m.activities[a.ID] = a
		m.linked[kid.HouseholdID] = append(m.linked[kid.HouseholdID], a.ID)
	}
	activities, _ := m.ListHouseholdActivities(context.Background(), kid.HouseholdID)
	return kid, activities
}

func TestRecommendUnknownKid(t *testing.T) {
	e := New(newMockStore(), nil, testConfig(), discardLogger())
	_, err := e.Recommend(context.Background(), Request{KidID: uuid.New(), UserID: uuid.New()})
	if !errors.Is(err, ErrUnknownKid) {
		t.Errorf("expected ErrUnknownKid, got %v", err)
	}
}

// Scenario: kid loves one activity, no other data, balanced weights.
func TestRecommendLovedActivityScore(t *testing.T) {
	m := newMockStore()
	kid, activities := seedKid(m, 1)
	m.prefs[kid.ID] = []*store.KidPreference{
		{KidID: kid.ID, ActivityID: activities[0].ID, Level: store.LevelLoves},
	}

	e := New(m, nil, testConfig(), discardLogger())
	res, err := e.Recommend(context.Background(), Request{KidID: kid.ID, UserID: uuid.New(), CallerRole: roster.RoleParent})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(res.Items))
	}
	if math.Abs(res.Items[0].Score-0.565) > 0.0001 {
		t.Errorf("expected 0.565, got %f", res.Items[0].Score)
	}
	if res.Items[0].Explanation.PreferenceMatch.Level != "loves" {
		t.Errorf("unexpected explanation: %+v", res.Items[0].Explanation.PreferenceMatch)
	}
	if len(res.DegradedFactors) != 0 {
		t.Errorf("unexpected degraded factors: %v", res.DegradedFactors)
	}
}

func TestRecommendDeterministicTieBreak(t *testing.T) {
	m := newMockStore()
	kid, _ := seedKid(m, 5)

	e := New(m, nil, testConfig(), discardLogger())
	req := Request{KidID: kid.ID, UserID: uuid.New()}

	first, err := e.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}

	// All activities tie on score; order must be ascending by id, every run.
	for i := 1; i < len(first.Items); i++ {
		if first.Items[i-1].ActivityID.String() >= first.Items[i].ActivityID.String() {
			t.Errorf("tie-break order violated at %d", i)
		}
	}

	for run := 0; run < 5; run++ {
		again, err := e.Recommend(context.Background(), req)
		if err != nil {
			t.Fatalf("Recommend failed: %v", err)
		}
		for i := range first.Items {
			if first.Items[i].ActivityID != again.Items[i].ActivityID {
				t.Fatalf("run %d: order differs at %d", run, i)
			}
		}
	}
}

func TestRecommendLimitTruncation(t *testing.T) {
	m := newMockStore()
	kid, _ := seedKid(m, 7)

	e := New(m, nil, testConfig(), discardLogger())
	res, err := e.Recommend(context.Background(), Request{KidID: kid.ID, UserID: uuid.New(), Limit: 3})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(res.Items) != 3 {
		t.Errorf("expected 3 items, got %d", len(res.Items))
	}
}

// A non-empty context filter is a hard pre-filter: unmatched activities never
// appear, however strong their other factors.
func TestRecommendContextHardFilter(t *testing.T) {
	m := newMockStore()
	kid, activities := seedKid(m, 3)

	// activities[0]: loved but unmatched; activities[1]: matched; [2]: untagged
	m.prefs[kid.ID] = []*store.KidPreference{
		{KidID: kid.ID, ActivityID: activities[0].ID, Level: store.LevelLoves},
	}
	m.contexts[activities[0].ID] = []*store.ActivityContext{{ActivityID: activities[0].ID, Name: "Quiet time"}}
	m.contexts[activities[1].ID] = []*store.ActivityContext{{ActivityID: activities[1].ID, Name: "High energy play"}}

	e := New(m, nil, testConfig(), discardLogger())
	res, err := e.Recommend(context.Background(), Request{
		KidID:   kid.ID,
		UserID:  uuid.New(),
		Context: scoring.ContextFilter{Energy: "high"},
	})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("expected only the matching activity, got %d items", len(res.Items))
	}
	if res.Items[0].ActivityID != activities[1].ID {
		t.Errorf("wrong activity survived the filter")
	}
	if res.Items[0].Explanation.ContextMatch == nil || !res.Items[0].Explanation.ContextMatch.Matched {
		t.Errorf("survivor should carry a matched context fragment")
	}
}

func TestRecommendPeerQueryDegrades(t *testing.T) {
	m := newMockStore()
	kid, _ := seedKid(m, 2)
	m.peerErr = errors.New("peer shard down")

	e := New(m, nil, testConfig(), discardLogger())
	res, err := e.Recommend(context.Background(), Request{KidID: kid.ID, UserID: uuid.New()})
	if err != nil {
		t.Fatalf("degraded peer query must not fail the run: %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(res.Items))
	}
	if len(res.DegradedFactors) != 1 || res.DegradedFactors[0] != scoring.FactorSimilarKids {
		t.Errorf("expected similar_kids degraded, got %v", res.DegradedFactors)
	}
}

func TestRecommendPeerQueryTimeout(t *testing.T) {
	m := newMockStore()
	kid, _ := seedKid(m, 1)
	m.peerSlow = 200 * time.Millisecond

	cfg := testConfig()
	cfg.Recommend.PeerTimeoutMs = 20

	e := New(m, nil, cfg, discardLogger())
	res, err := e.Recommend(context.Background(), Request{KidID: kid.ID, UserID: uuid.New()})
	if err != nil {
		t.Fatalf("slow peer query must not fail the run: %v", err)
	}
	if len(res.DegradedFactors) != 1 {
		t.Errorf("expected degraded similar_kids, got %v", res.DegradedFactors)
	}
}

func TestRecommendPeerCountsScored(t *testing.T) {
	m := newMockStore()
	kid, activities := seedKid(m, 2)
	m.peerCounts[activities[0].ID] = 5
	m.peerCounts[activities[1].ID] = 0

	e := New(m, nil, testConfig(), discardLogger())
	res, err := e.Recommend(context.Background(), Request{KidID: kid.ID, UserID: uuid.New()})
	if err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if res.Items[0].ActivityID != activities[0].ID {
		t.Errorf("peer-backed activity should rank first")
	}
	if res.Items[0].Explanation.SimilarKids.Count != 5 {
		t.Errorf("expected count 5 in explanation, got %d", res.Items[0].Explanation.SimilarKids.Count)
	}
}

func TestWeightCacheAvoidsReload(t *testing.T) {
	m := newMockStore()
	kid, _ := seedKid(m, 3)
	userID := uuid.New()

	e := New(m, nil, testConfig(), discardLogger())
	req := Request{KidID: kid.ID, UserID: userID}

	if _, err := e.Recommend(context.Background(), req); err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if _, err := e.Recommend(context.Background(), req); err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if m.weightsCalls != 1 {
		t.Errorf("expected 1 weight load across cached requests, got %d", m.weightsCalls)
	}

	// An update must invalidate the cache immediately, ahead of the TTL.
	if _, err := e.UpdateWeight(context.Background(), userID, scoring.FactorNoveltyBoost, 0.2, true); err != nil {
		t.Fatalf("UpdateWeight failed: %v", err)
	}
	calls := m.weightsCalls
	if _, err := e.Recommend(context.Background(), req); err != nil {
		t.Fatalf("Recommend failed: %v", err)
	}
	if m.weightsCalls <= calls {
		t.Error("expected weight reload after update")
	}
}
