// Package provisioner runs the batch: one row at a time, create the user,
// optionally subscribe it, record the outcome.
package provisioner

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"idcprov/idcprov/services/directory"
	"idcprov/idcprov/sources/csvfile"
	"idcprov/idcprov/types"
	"idcprov/idcprov/utils/color"
	"idcprov/idcprov/utils/jsonutils"
	"idcprov/idcprov/utils/logging"
)

const rule = "==================================================="

// Directory creates identities. ListUsers doubles as the reachability probe.
type Directory interface {
	CreateUser(ctx context.Context, storeID string, rec types.UserRecord) (string, error)
	ListUsers(ctx context.Context, storeID string, limit int) ([]string, error)
}

// Entitlements assigns a subscription to an existing identity.
type Entitlements interface {
	CreateAssignment(ctx context.Context, principalID, principalType string) error
}

type Options struct {
	StoreID string
	// StrictUsernames rejects reserved or over-long usernames before the
	// remote call instead of leaving it to the identity store.
	StrictUsernames bool
	// CallTimeout bounds each remote call; zero means no bound.
	CallTimeout   time.Duration
	PrincipalType string
}

type Provisioner struct {
	out  io.Writer
	dir  Directory
	ent  Entitlements
	opts Options
}

// New returns a Provisioner. A nil ent disables subscriptions.
func New(out io.Writer, dir Directory, ent Entitlements, opts Options) *Provisioner {
	if opts.PrincipalType == "" {
		opts.PrincipalType = types.PrincipalTypeUser
	}
	return &Provisioner{out: out, dir: dir, ent: ent, opts: opts}
}

func (p *Provisioner) Subscribing() bool {
	return p.ent != nil
}

// Preflight verifies the identity store answers before any row is touched.
func (p *Provisioner) Preflight(ctx context.Context) error {
	if strings.TrimSpace(p.opts.StoreID) == "" {
		return &types.PrerequisiteError{Check: "identity store id", Err: fmt.Errorf("identity store id is empty")}
	}
	callCtx, cancel := p.callContext(ctx)
	defer cancel()
	if _, err := p.dir.ListUsers(callCtx, p.opts.StoreID, 1); err != nil {
		return &types.PrerequisiteError{Check: "identity store access", Err: err}
	}
	return nil
}

// Run processes rows in order and returns the accumulated summary and the
// per-row results. The error is non-nil only when ctx is cancelled; the
// summary then covers the rows handled so far.
func (p *Provisioner) Run(ctx context.Context, rows []csvfile.Row) (types.BatchSummary, []types.ProvisioningResult, error) {
	var summary types.BatchSummary
	results := make([]types.ProvisioningResult, 0, len(rows))

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return summary, results, err
		}
		fmt.Fprintf(p.out, "[%d/%d] ", i+1, len(rows))
		result := p.processRow(ctx, row)
		results = append(results, result)
		summary = summary.Add(result)
		fmt.Fprintln(p.out)
	}
	return summary, results, nil
}

func (p *Provisioner) processRow(ctx context.Context, row csvfile.Row) types.ProvisioningResult {
	rec := row.Record
	result := types.ProvisioningResult{Record: rec}

	verr := row.Err
	if verr == nil && p.opts.StrictUsernames {
		verr = csvfile.CheckUsername(rec)
	}
	if verr != nil {
		p.printSkip(rec, verr)
		result.Create = types.Failed(verr.Error())
		p.skipSubscription(&result)
		logging.AppLogger.Info("row skipped",
			zap.String("run_id", logging.RunID(ctx)),
			zap.Int("line", rec.Line),
			zap.String("reason", verr.Error()),
		)
		return result
	}

	fmt.Fprintf(p.out, "Creating user: %s (%s)\n", rec.Username, rec.DisplayName)
	callCtx, cancel := p.callContext(ctx)
	userID, err := p.dir.CreateUser(callCtx, p.opts.StoreID, rec)
	cancel()
	if err != nil {
		reason := directory.Describe(err)
		fmt.Fprintln(p.out, color.ColorError(fmt.Sprintf("❌ Failed to create user %s: %s", rec.Username, reason)))
		result.Create = types.Failed(reason)
		p.skipSubscription(&result)
		return result
	}
	fmt.Fprintln(p.out, color.ColorInfo(fmt.Sprintf("✅ Successfully created user: %s (ID: %s)", rec.Username, userID)))
	result.Create = types.Succeeded(userID)
	logging.AppLogger.Info("user created",
		zap.String("run_id", logging.RunID(ctx)),
		zap.Int("line", rec.Line),
		zap.String("username", rec.Username),
		zap.String("user_id", userID),
	)

	if p.Subscribing() {
		outcome := p.subscribe(ctx, rec, userID)
		result.Subscription = &outcome
	}
	return result
}

func (p *Provisioner) subscribe(ctx context.Context, rec types.UserRecord, userID string) types.Outcome {
	fmt.Fprintf(p.out, "  Subscribing user %s to Amazon Q Developer...\n", rec.Username)
	callCtx, cancel := p.callContext(ctx)
	defer cancel()
	if err := p.ent.CreateAssignment(callCtx, userID, p.opts.PrincipalType); err != nil {
		fmt.Fprintln(p.out, color.ColorError(fmt.Sprintf("  ❌ Failed to subscribe user %s: %s", rec.Username, err.Error())))
		return types.Failed(err.Error())
	}
	fmt.Fprintln(p.out, color.ColorInfo(fmt.Sprintf("  ✅ Successfully subscribed user: %s", rec.Username)))
	return types.Succeeded(userID)
}

func (p *Provisioner) skipSubscription(result *types.ProvisioningResult) {
	if !p.Subscribing() {
		return
	}
	outcome := types.Skipped("skipped subscription due to user creation failure")
	result.Subscription = &outcome
}

func (p *Provisioner) printSkip(rec types.UserRecord, verr *types.RowValidationError) {
	if len(verr.Missing) > 0 {
		fmt.Fprintln(p.out, color.ColorWarning(fmt.Sprintf("❌ Skipping row %d with missing fields: [%s]", verr.Line, strings.Join(verr.Missing, ", "))))
		fmt.Fprintf(p.out, "   Row data: %s\n", jsonutils.ToCompactJSON(rec.Fields()))
		return
	}
	fmt.Fprintln(p.out, color.ColorWarning(fmt.Sprintf("❌ Skipping row %d: %s", verr.Line, verr.Reason)))
}

func (p *Provisioner) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.CallTimeout > 0 {
		return context.WithTimeout(ctx, p.opts.CallTimeout)
	}
	return context.WithCancel(ctx)
}

// PrintSummary writes the closing block, including every failed row.
func (p *Provisioner) PrintSummary(summary types.BatchSummary, results []types.ProvisioningResult) {
	title := "Bulk User Creation Summary"
	if summary.Subscribing {
		title = "Bulk User Creation and Subscription Summary"
	}
	fmt.Fprintln(p.out, rule)
	fmt.Fprintln(p.out, color.ColorHeader(title))
	fmt.Fprintln(p.out, rule)
	fmt.Fprintf(p.out, "Total users processed: %d\n", summary.Total)
	fmt.Fprintf(p.out, "Successfully created: %d\n", summary.Succeeded)
	fmt.Fprintf(p.out, "Failed to create: %d\n", summary.Failed)
	if summary.Subscribing {
		fmt.Fprintf(p.out, "Successfully subscribed: %d\n", summary.Subscribed)
		fmt.Fprintf(p.out, "Failed to subscribe: %d\n", summary.SubscribeFailed)
	}
	fmt.Fprintln(p.out)

	if !summary.HasFailures() {
		if summary.Subscribing {
			fmt.Fprintln(p.out, color.ColorFinalSuccess("🎉 All users created and subscribed successfully!"))
		} else {
			fmt.Fprintln(p.out, color.ColorFinalSuccess("🎉 All users created successfully!"))
		}
		return
	}

	fmt.Fprintln(p.out, color.ColorFinalFail("⚠️  Some operations failed. Please check the errors above."))
	if summary.Failed > 0 {
		fmt.Fprintln(p.out, "\nFailed user creations:")
		for _, r := range results {
			if !r.Create.OK() {
				fmt.Fprintf(p.out, "  - %s: %s\n", rowLabel(r.Record), r.Create.Reason)
			}
		}
	}
	subFailures := 0
	for _, r := range results {
		if r.Create.OK() && r.Subscription != nil && !r.Subscription.OK() {
			if subFailures == 0 {
				fmt.Fprintln(p.out, "\nFailed subscriptions:")
			}
			subFailures++
			fmt.Fprintf(p.out, "  - %s: %s\n", rowLabel(r.Record), r.Subscription.Reason)
		}
	}
}

func rowLabel(rec types.UserRecord) string {
	if rec.Username == "" {
		return fmt.Sprintf("row %d", rec.Line)
	}
	return fmt.Sprintf("%s (row %d)", rec.Username, rec.Line)
}
