package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrScenarioNotFound is returned when a scenario id is unknown.
var ErrScenarioNotFound = errors.New("scenario not found")

// ErrPlayNotFound is returned when a play id does not belong to the scenario.
var ErrPlayNotFound = errors.New("play not found")

// ErrNotTracked is returned when a tracking key has no live entry.
var ErrNotTracked = errors.New("tracked scenario not found")

// ErrAlreadyTracking is returned when Start is called on a key that is already live.
var ErrAlreadyTracking = errors.New("scenario play already tracked")

// ErrMalformedResponse is returned when the analysis oracle produced output
// that could not be decoded into its structured contract. Callers treat it as
// a soft failure: skip that call's effect, keep the operation going.
var ErrMalformedResponse = errors.New("malformed oracle response")

type AssetClass string

const (
	AssetClassEquity      AssetClass = "equity"
	AssetClassCommodity   AssetClass = "commodity"
	AssetClassFixedIncome AssetClass = "fixed_income"
)

// Alert severities recognised by the presentation layer. The store treats
// severity as an open string so unknown values pass through uninterpreted.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// TrackingKey addresses one tracked (scenario, play) pair. It is the composite
// map key for tracked entries and is stable for the lifetime of the entry.
type TrackingKey struct {
	ScenarioID string `json:"scenario_id"`
	PlayID     string `json:"play_id"`
}

func (k TrackingKey) String() string {
	return fmt.Sprintf("%s:%s", k.ScenarioID, k.PlayID)
}

// Play is a single actionable trade recommendation tied to an asset class.
// ConfidenceScore is the only field that mutates after creation.
type Play struct {
	ID              string     `json:"id"`
	AssetClass      AssetClass `json:"asset_class"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Action          string     `json:"action"`
	Instruments     []string   `json:"instruments"`
	Rationale       string     `json:"rationale"`
	RiskLevel       string     `json:"risk_level"`
	TimeHorizon     string     `json:"time_horizon"`
	ConfidenceScore float64    `json:"confidence_score"`
}

// Scenario is a user-submitted market hypothesis plus the oracle's
// interpretation and candidate plays.
type Scenario struct {
	ID                  string    `json:"id"`
	Description         string    `json:"description"`
	InterpretedScenario string    `json:"interpreted_scenario"`
	Plays               []Play    `json:"plays"`
	CreatedAt           time.Time `json:"created_at"`
	IsTracking          bool      `json:"is_tracking"`
}

// PlayByID finds a play inside the scenario.
func (s Scenario) PlayByID(id string) (Play, bool) {
	for _, p := range s.Plays {
		if p.ID == id {
			return p, true
		}
	}
	return Play{}, false
}

// NewsArticle is the normalized article record shared by all source adapters.
type NewsArticle struct {
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Source         string    `json:"source"`
	PublishedAt    time.Time `json:"published_at"`
	Summary        string    `json:"summary"`
	RelevanceScore float64   `json:"relevance_score"`
}

type Alert struct {
	ID         string    `json:"id"`
	ScenarioID string    `json:"scenario_id"`
	PlayID     string    `json:"play_id"`
	Message    string    `json:"message"`
	Severity   string    `json:"severity"`
	CreatedAt  time.Time `json:"created_at"`
}

// TrackedScenario is the running picture of one tracked (scenario, play) pair.
// NewsArticles holds only the latest aggregation pass; Alerts and PlayUpdates
// are monotonically growing logs.
type TrackedScenario struct {
	Scenario     Scenario      `json:"scenario"`
	Play         Play          `json:"play"`
	NewsArticles []NewsArticle `json:"news_articles"`
	Alerts       []Alert       `json:"alerts"`
	LastUpdated  time.Time     `json:"last_updated"`
	PlayUpdates  []string      `json:"play_updates"`
}

// Key returns the composite tracking key for this entry.
func (t TrackedScenario) Key() TrackingKey {
	return TrackingKey{ScenarioID: t.Scenario.ID, PlayID: t.Play.ID}
}

// ScenarioAnalysis is the oracle's response at scenario creation.
type ScenarioAnalysis struct {
	InterpretedScenario string      `json:"interpreted_scenario"`
	Plays               []PlayDraft `json:"plays"`
}

// PlayDraft is a play as drafted by the oracle, before ids are assigned.
type PlayDraft struct {
	AssetClass      string   `json:"asset_class"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Action          string   `json:"action"`
	Instruments     []string `json:"instruments"`
	Rationale       string   `json:"rationale"`
	RiskLevel       string   `json:"risk_level"`
	TimeHorizon     string   `json:"time_horizon"`
	ConfidenceScore float64  `json:"confidence_score"`
}

// PlayVerdict is the oracle's modification verdict for an active play.
type PlayVerdict struct {
	ShouldModify           bool    `json:"should_modify"`
	Modifications          string  `json:"modifications"`
	UpdatedConfidenceScore float64 `json:"updated_confidence_score"`
}

// AlertDraft is an alert as proposed by the oracle, before ids are assigned.
type AlertDraft struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Clamp01 bounds a score into [0,1]. Confidence and relevance scores are
// always clamped on write regardless of what the oracle returned.
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
