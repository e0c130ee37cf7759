// Command generation-lambda rolls the availability horizon forward on a
// schedule. It is triggered by an EventBridge rule and, after generating,
// sweeps stale reservation tokens.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wolfman30/booking-engine/cmd/mainconfig"
	"github.com/wolfman30/booking-engine/internal/app/bootstrap"
	appconfig "github.com/wolfman30/booking-engine/internal/config"
	"github.com/wolfman30/booking-engine/internal/generation"
	"github.com/wolfman30/booking-engine/internal/schedule"
	"github.com/wolfman30/booking-engine/pkg/logging"
)

// detail is the optional payload of the scheduled event. Fields left empty
// fall back to the environment.
type detail struct {
	OrgIDs      []string `json:"org_ids,omitempty"`
	StartDate   string   `json:"start_date,omitempty"`
	HorizonDays int      `json:"horizon_days,omitempty"`
	Force       bool     `json:"force,omitempty"`
}

// Result is returned to the Lambda runtime and logged.
type Result struct {
	StartDate string                  `json:"start_date"`
	EndDate   string                  `json:"end_date"`
	Orgs      []*generation.OrgReport `json:"orgs"`
	Failures  int                     `json:"failures"`
	Committed int                     `json:"committed"`
	Released  int                     `json:"released"`
}

type handler struct {
	stack   *bootstrap.Stack
	orgIDs  []string
	horizon int
	now     func() time.Time
	logger  *logging.Logger
}

func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	backends, cleanup, err := mainconfig.ConnectBackends(ctx, cfg, logger)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	stack, err := bootstrap.BuildStack(cfg, backends, prometheus.NewRegistry(), logger)
	if err != nil {
		panic(err)
	}

	h := &handler{
		stack:   stack,
		orgIDs:  cfg.GenerationOrgIDs,
		horizon: cfg.GenerationHorizonDays,
		now:     time.Now,
		logger:  logger,
	}
	lambda.Start(h.handle)
}

func (h *handler) handle(ctx context.Context, evt events.CloudWatchEvent) (*Result, error) {
	var d detail
	if len(evt.Detail) > 0 && string(evt.Detail) != "null" {
		if err := json.Unmarshal(evt.Detail, &d); err != nil {
			return nil, fmt.Errorf("decode event detail: %w", err)
		}
	}

	orgIDs := d.OrgIDs
	if len(orgIDs) == 0 {
		orgIDs = h.orgIDs
	}
	if len(orgIDs) == 0 {
		return nil, errors.New("no organizations configured (GENERATION_ORG_IDS)")
	}

	start := strings.TrimSpace(d.StartDate)
	if start == "" {
		start = h.now().UTC().Format(schedule.DateLayout)
	}
	startDay, err := schedule.ParseDate(start)
	if err != nil {
		return nil, fmt.Errorf("invalid start_date %q: %w", start, err)
	}

	horizon := d.HorizonDays
	if horizon <= 0 {
		horizon = h.horizon
	}
	if horizon <= 0 {
		horizon = 1
	}
	if horizon > generation.MaxRangeDays {
		horizon = generation.MaxRangeDays
	}

	res := &Result{
		StartDate: start,
		EndDate:   startDay.AddDate(0, 0, horizon-1).Format(schedule.DateLayout),
	}
	opts := generation.Options{StartDate: res.StartDate, EndDate: res.EndDate, Force: d.Force}

	var errs []error
	for _, orgID := range orgIDs {
		log := h.logger.ForOrg(orgID)
		rep, err := h.stack.Generator.GenerateForOrganization(ctx, orgID, opts)
		if err != nil {
			log.Error("availability generation failed", "error", err)
			errs = append(errs, fmt.Errorf("org %s: %w", orgID, err))
			continue
		}
		res.Orgs = append(res.Orgs, rep)
		res.Failures += rep.FailureCount()
		log.Info("availability generated",
			"entities", len(rep.Reports),
			"failures", rep.FailureCount(),
			"start_date", res.StartDate,
			"end_date", res.EndDate,
		)
	}

	sweep, err := h.stack.Sweeper.Sweep(ctx, h.now())
	if err != nil {
		h.logger.Error("reservation sweep failed", "error", err)
		errs = append(errs, fmt.Errorf("sweep: %w", err))
	}
	res.Committed = sweep.Committed
	res.Released = sweep.Released

	return res, errors.Join(errs...)
}
