// Package monitor runs the per-tick pipeline: sample the host, render the
// report, ask for advice and, for the alert tool, mail threshold crossings.
package monitor

import (
	"context"
	"fmt"
	"log"

	"sysadvisor/app/internal/advisor"
	"sysadvisor/app/internal/database"
	"sysadvisor/app/internal/models"
	"sysadvisor/app/internal/report"
)

// Sampler takes one host snapshot.
type Sampler interface {
	Sample(ctx context.Context) (*models.Snapshot, error)
}

// Check is the result of one inspection.
type Check struct {
	Snapshot *models.Snapshot
	// Report is the prose report, including the recommendation section when
	// advice was available.
	Report string
	// Advice is nil when no recommendation could be obtained.
	Advice *advisor.Advice
}

// Inspect samples the host and formats the report. The recommendation is
// best effort: a nil recommender or any recommendation error leaves Advice
// nil without failing the inspection. Only sampling errors are returned.
func Inspect(ctx context.Context, sampler Sampler, rec advisor.Recommender, source string) (*Check, error) {
	snap, err := sampler.Sample(ctx)
	if err != nil {
		log.Printf("Sampling failed: %v", err)
		_ = database.InsertLog(database.LogLevelError, database.LogCategorySample, source, "Sampling failed", err.Error())
		return nil, err
	}

	check := &Check{Snapshot: snap, Report: report.Format(snap)}
	if rec == nil {
		return check, nil
	}

	advice, err := rec.Recommend(ctx, check.Report)
	if err != nil {
		log.Printf("Warning: recommendation unavailable: %v", err)
		_ = database.InsertLog(database.LogLevelWarn, database.LogCategoryRecommend, source, "Recommendation unavailable", err.Error())
		return check, nil
	}

	check.Advice = advice
	check.Report = report.WithRecommendation(check.Report, advice.Text)
	_ = database.InsertLog(database.LogLevelInfo, database.LogCategoryRecommend, source, "Recommendation received",
		fmt.Sprintf("items=%d", len(advice.Items)))
	return check, nil
}
