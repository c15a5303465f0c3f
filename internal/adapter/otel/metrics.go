package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "matching"

// Metrics holds all matching-engine metric instruments.
type Metrics struct {
	RunsStarted      metric.Int64Counter
	RunsConfirmed    metric.Int64Counter
	RunsFailed       metric.Int64Counter
	RunsNoAgents     metric.Int64Counter
	MatchesProposed  metric.Int64Counter
	MatchesAccepted  metric.Int64Counter
	MatchesDeclined  metric.Int64Counter
	MatchesTimedOut  metric.Int64Counter
	RunDuration      metric.Float64Histogram
	CandidatesScored metric.Int64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RunsStarted, err = meter.Int64Counter("matching.runs.started",
		metric.WithDescription("Number of matching runs started"))
	if err != nil {
		return nil, err
	}

	m.RunsConfirmed, err = meter.Int64Counter("matching.runs.confirmed",
		metric.WithDescription("Number of requests that reached agent_confirmed"))
	if err != nil {
		return nil, err
	}

	m.RunsFailed, err = meter.Int64Counter("matching.runs.failed",
		metric.WithDescription("Number of requests that reached matching_failed"))
	if err != nil {
		return nil, err
	}

	m.RunsNoAgents, err = meter.Int64Counter("matching.runs.no_agents",
		metric.WithDescription("Number of runs that found no eligible agents"))
	if err != nil {
		return nil, err
	}

	m.MatchesProposed, err = meter.Int64Counter("matching.matches.proposed",
		metric.WithDescription("Number of matches proposed"))
	if err != nil {
		return nil, err
	}

	m.MatchesAccepted, err = meter.Int64Counter("matching.matches.accepted",
		metric.WithDescription("Number of matches accepted"))
	if err != nil {
		return nil, err
	}

	m.MatchesDeclined, err = meter.Int64Counter("matching.matches.declined",
		metric.WithDescription("Number of matches declined"))
	if err != nil {
		return nil, err
	}

	m.MatchesTimedOut, err = meter.Int64Counter("matching.matches.timed_out",
		metric.WithDescription("Number of matches that timed out"))
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram("matching.run.duration_seconds",
		metric.WithDescription("Matching run duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.CandidatesScored, err = meter.Int64Histogram("matching.run.candidates_scored",
		metric.WithDescription("Candidates evaluated per matching run"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
