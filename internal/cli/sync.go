package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rust-lang/sync-team/internal/confirm"
	"github.com/rust-lang/sync-team/internal/executor"
	"github.com/rust-lang/sync-team/internal/github"
	"github.com/rust-lang/sync-team/internal/httpclient"
	"github.com/rust-lang/sync-team/internal/plan"
	"github.com/rust-lang/sync-team/internal/store"
	"github.com/rust-lang/sync-team/internal/team"
	"github.com/rust-lang/sync-team/internal/zulip"
)

const (
	userAgent         = "rust-lang teams sync (https://github.com/rust-lang/sync-team)"
	githubBaseURL     = "https://api.github.com/"
	defaultTeamAPIURL = "https://team-api.infra.rust-lang.org/"
)

// service pairs a platform's computed plan with the client that can
// apply it. Diffing and applying are separate phases so the plan can
// be reviewed (and its hash approved) in between.
type service struct {
	name    string
	diff    plan.Diff
	applier executor.Applier
}

func runSync(opts *RootOptions, names []string, cmd *cobra.Command) error {
	log := setupLogging(opts.Verbose)

	dryRun := !opts.Live
	if dryRun {
		log.Warn("sync-team is running in dry mode")
		log.Warn("no changes will be applied; pass --live to apply them")
	}

	orgs, err := loadOrgs(opts)
	if err != nil {
		return err
	}
	log.Info("loaded team repository", "orgs", len(orgs))

	services, diffErrs := buildServices(names, orgs, dryRun, log)

	for _, svc := range services {
		fmt.Fprintf(cmd.OutOrStdout(), "\n--- %s plan (%d actions) ---\n", svc.name, len(svc.diff.Actions))
		svc.diff.RenderTable(cmd.OutOrStdout())
	}

	if len(diffErrs) > 0 {
		// A failed snapshot means the combined hash would not cover
		// the whole run, so nothing is applied.
		return WrapExitError(ExitFailure, "computing the plan failed", errors.Join(diffErrs...))
	}

	diffs := make([]plan.Diff, len(services))
	for i, svc := range services {
		diffs[i] = svc.diff
	}
	hash, err := plan.CombinedHash(diffs)
	if err != nil {
		return WrapExitError(ExitFailure, "hashing the plan failed", err)
	}
	log.Info("plan computed", "hash", hash)

	if opts.OnlyPrintPlan {
		return nil
	}

	journal, finish, err := openJournal(opts.Database, dryRun, log)
	if err != nil {
		return err
	}
	defer finish()

	if opts.RequireConfirmation {
		proceed, err := confirmPlan(diffs, hash, journal, log)
		if err != nil || !proceed {
			recordOutcome(journal, hash, "gated", log)
			return err
		}
	}

	var applyErrs []error
	for _, svc := range services {
		// Platforms fail independently: a github outage must not stop
		// the zulip apply.
		if _, err := executor.Apply(svc.diff, svc.applier, asJournal(journal), log); err != nil {
			applyErrs = append(applyErrs, err)
		}
	}
	if len(applyErrs) > 0 {
		recordOutcome(journal, hash, "failed", log)
		return WrapExitError(ExitFailure, "applying the plan failed", errors.Join(applyErrs...))
	}

	outcome := "applied"
	if dryRun {
		outcome = "dry-run"
	}
	recordOutcome(journal, hash, outcome, log)

	if opts.RequireConfirmation && !dryRun {
		if err := publishApplied(hash, log); err != nil {
			// The apply itself succeeded; a missed announcement is
			// logged, not a failure.
			log.Warn("failed to announce applied plan", "error", err)
		}
	}

	log.Info("sync finished", "outcome", outcome, "hash", hash)
	return nil
}

func setupLogging(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

func loadOrgs(opts *RootOptions) ([]team.Org, error) {
	var source team.Source
	if opts.TeamRepo != "" {
		source = team.LocalSource{Dir: opts.TeamRepo}
	} else {
		url := viper.GetString("team-api-url")
		if url == "" {
			url = defaultTeamAPIURL
		}
		source = team.RemoteSource{URL: url, UserAgent: userAgent}
	}
	orgs, err := source.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "loading the team repository failed", err)
	}
	return orgs, nil
}

// buildServices diffs each requested platform. Diff errors are
// collected per platform so one unreachable service still lets the
// others report their plans.
func buildServices(names []string, orgs []team.Org, dryRun bool, log *slog.Logger) ([]service, []error) {
	var services []service
	var errs []error
	for _, name := range names {
		svc, err := buildService(name, orgs, dryRun, log)
		if err != nil {
			log.Error("service diff failed", "service", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		services = append(services, svc)
	}
	return services, errs
}

func buildService(name string, orgs []team.Org, dryRun bool, log *slog.Logger) (service, error) {
	switch name {
	case github.Platform:
		token, err := requireEnv("github-token", "GITHUB_TOKEN")
		if err != nil {
			return service{}, err
		}
		client := httpclient.New(githubBaseURL, userAgent, httpclient.TokenAuth("token", token), httpclient.WithLogger(log))
		sync := github.NewSync(github.NewRead(client), orgs, ignoredOrgs(), log)
		diff, err := sync.DiffAll()
		if err != nil {
			return service{}, err
		}
		return service{name: name, diff: diff, applier: github.NewWriter(client, dryRun, log)}, nil

	case zulip.Platform:
		api, err := zulipAPI(log)
		if err != nil {
			return service{}, err
		}
		diff, err := zulip.NewSync(api, orgs, log).DiffAll()
		if err != nil {
			return service{}, err
		}
		return service{name: name, diff: diff, applier: zulip.NewWriter(api, dryRun, log)}, nil

	default:
		return service{}, NewExitError(ExitCommandError, fmt.Sprintf("unknown service %q", name))
	}
}

func zulipAPI(log *slog.Logger) (*zulip.API, error) {
	username, err := requireEnv("zulip-username", "ZULIP_USERNAME")
	if err != nil {
		return nil, err
	}
	token, err := requireEnv("zulip-api-token", "ZULIP_API_TOKEN")
	if err != nil {
		return nil, err
	}
	return zulip.NewAPI(zulip.DefaultBaseURL, username, token, userAgent, log), nil
}

func ignoredOrgs() []string {
	var out []string
	for _, org := range strings.Split(viper.GetString("github-ignored-orgs"), ",") {
		if org = strings.TrimSpace(org); org != "" {
			out = append(out, org)
		}
	}
	return out
}

// confirmPlan runs the approval gate. It returns true when the apply
// phase may proceed. A plan awaiting approval or gone stale is a clean
// stop for the proposal case and a failure for the stale one, since
// staleness means an operator believed something else was approved.
func confirmPlan(diffs []plan.Diff, hash string, journal *store.RunJournal, log *slog.Logger) (bool, error) {
	publisher, err := zulipPublisher(log)
	if err != nil {
		return false, err
	}

	var approval *confirm.Approval
	if h := viper.GetString("confirmation-approved-hash"); h != "" {
		approval = &confirm.Approval{
			Hash:     h,
			Approver: viper.GetString("confirmation-approver"),
		}
	}

	rec, err := confirm.Decide(diffs, approval)
	if err != nil {
		return false, WrapExitError(ExitFailure, "evaluating the confirmation gate failed", err)
	}
	if journal != nil {
		if jerr := journal.RecordConfirmation(string(rec.State), rec.Hash, rec.Approver); jerr != nil {
			log.Warn("journal write failed", "error", jerr)
		}
	}

	switch rec.State {
	case confirm.StateApproved:
		log.Info("plan approved", "hash", rec.Hash, "approver", rec.Approver)
		return true, nil
	case confirm.StateStale:
		log.Warn("plan changed since approval", "hash", rec.Hash)
		if perr := publisher.PublishStale(diffs, rec.Hash); perr != nil {
			log.Error("failed to publish stale notice", "error", perr)
		}
		return false, NewExitError(ExitFailure, "the plan changed since it was approved, approve the new plan to proceed")
	default:
		log.Info("plan proposed for approval", "hash", rec.Hash)
		if perr := publisher.PublishProposal(diffs, rec.Hash); perr != nil {
			return false, WrapExitError(ExitFailure, "failed to publish the proposal", perr)
		}
		return false, nil
	}
}

func zulipPublisher(log *slog.Logger) (*confirm.ZulipPublisher, error) {
	stream, err := requireEnv("confirmation-stream", "CONFIRMATION_STREAM")
	if err != nil {
		return nil, err
	}
	topic, err := requireEnv("confirmation-topic", "CONFIRMATION_TOPIC")
	if err != nil {
		return nil, err
	}
	baseURL, err := requireEnv("confirmation-base-url", "CONFIRMATION_BASE_URL")
	if err != nil {
		return nil, err
	}
	api, err := zulipAPI(log)
	if err != nil {
		return nil, err
	}
	return &confirm.ZulipPublisher{API: api, Stream: stream, Topic: topic, BaseURL: baseURL}, nil
}

func publishApplied(hash string, log *slog.Logger) error {
	publisher, err := zulipPublisher(log)
	if err != nil {
		return err
	}
	return publisher.PublishApplied(hash, viper.GetString("confirmation-approver"))
}

// openJournal opens the run journal when a database path was given.
// Without one the run is not journaled; finish is always safe to call.
func openJournal(path string, dryRun bool, log *slog.Logger) (*store.RunJournal, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "opening the run journal failed", err)
	}
	journal, err := st.BeginRun(dryRun)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "starting a journal run failed", err)
	}
	log.Info("journaling run", "run", journal.RunID(), "db", path)
	finish := func() {
		if cerr := st.Close(); cerr != nil {
			log.Warn("closing the run journal failed", "error", cerr)
		}
	}
	return journal, finish, nil
}

// asJournal converts a possibly-nil *RunJournal into the executor's
// interface without producing a non-nil interface around a nil pointer.
func asJournal(j *store.RunJournal) executor.Journal {
	if j == nil {
		return nil
	}
	return j
}

func recordOutcome(journal *store.RunJournal, hash, outcome string, log *slog.Logger) {
	if journal == nil {
		return
	}
	if err := journal.FinishRun(hash, outcome); err != nil {
		log.Warn("journal write failed", "error", err)
	}
}
