// Command-line entrypoint: idcprov <csv_file> <identity_store_id>
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"idcprov/idcprov/config"
	"idcprov/idcprov/services/directory"
	"idcprov/idcprov/services/entitlement"
	"idcprov/idcprov/services/provisioner"
	"idcprov/idcprov/services/report"
	"idcprov/idcprov/sources/csvfile"
	"idcprov/idcprov/sources/storage"
	"idcprov/idcprov/types"
	"idcprov/idcprov/utils/color"
	"idcprov/idcprov/utils/logging"
)

const usage = `Usage: idcprov <csv_file> <identity_store_id>

Create IAM Identity Center users from a CSV file.

CSV file format (with header):
email,username,display_name,given_name,family_name

Example:
john.doe@example.com,johndoe,John Doe,John,Doe
jane.smith@example.com,janesmith,Jane Smith,Jane,Smith

Requirements:
- AWS credentials configured (environment, shared config or SSO)
- identitystore:CreateUser and identitystore:ListUsers permissions
- IDCPROV_SUBSCRIBE=true additionally assigns Amazon Q Developer subscriptions
`

type reportUploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type clients struct {
	dir      provisioner.Directory
	ent      provisioner.Entitlements
	uploader reportUploader
}

type clientFactory func(ctx context.Context, cfg config.Config) (clients, error)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, newAWSClients))
}

func run(args []string, out io.Writer, newClients clientFactory) int {
	if len(args) != 2 {
		fmt.Fprint(out, usage)
		return 1
	}
	csvPath, storeID := args[0], args[1]

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(out, "Error loading configuration: %v\n", err)
		return 1
	}
	if cfg.NoColor {
		color.Disable()
	}
	if err := logging.InitLogger(cfg.LogDir); err != nil {
		fmt.Fprintf(out, "Error initializing logs: %v\n", err)
		return 1
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)

	fmt.Fprintln(out, color.ColorHeader("IAM Identity Center Bulk User Creation"))
	fmt.Fprintln(out, "===================================================")
	fmt.Fprintf(out, "CSV File: %s\n", csvPath)
	fmt.Fprintf(out, "Identity Store ID: %s\n", storeID)
	fmt.Fprintf(out, "Run ID: %s\n", runID)
	if cfg.Subscribe {
		fmt.Fprintln(out, "Subscription: Amazon Q Developer")
	}
	fmt.Fprintln(out)
	logging.AppLogger.Info("run started",
		zap.String("run_id", runID),
		zap.String("csv_file", csvPath),
		zap.String("identity_store_id", storeID),
		zap.Bool("subscribe", cfg.Subscribe),
	)

	cl, err := newClients(ctx, cfg)
	if err != nil {
		return fail(out, runID, err)
	}

	rows, err := csvfile.ReadFile(csvPath)
	if err != nil {
		return fail(out, runID, err)
	}

	p := provisioner.New(out, cl.dir, cl.ent, provisioner.Options{
		StoreID:         storeID,
		StrictUsernames: cfg.StrictUsernames,
		CallTimeout:     cfg.CallTimeout,
		PrincipalType:   cfg.Q.PrincipalType,
	})
	if err := p.Preflight(ctx); err != nil {
		return fail(out, runID, err)
	}

	fmt.Fprintf(out, "Found %d rows to process\n\n", len(rows))
	rep := &report.Report{
		RunID:           runID,
		CSVFile:         csvPath,
		IdentityStoreID: storeID,
		StartedAt:       time.Now().UTC(),
	}
	summary, results, runErr := p.Run(ctx, rows)
	rep.FinishedAt = time.Now().UTC()
	rep.Summary = summary
	rep.Results = results

	if runErr != nil {
		fmt.Fprintln(out, color.ColorWarning(fmt.Sprintf("Run interrupted after %d of %d rows: %v", summary.Total, len(rows), runErr)))
	}
	p.PrintSummary(summary, results)
	writeReport(context.WithoutCancel(ctx), out, cfg, cl.uploader, rep)

	logging.AppLogger.Info("run finished",
		zap.String("run_id", runID),
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("subscribed", summary.Subscribed),
		zap.Int("subscribe_failed", summary.SubscribeFailed),
	)
	if runErr != nil || summary.HasFailures() {
		return 1
	}
	return 0
}

func fail(out io.Writer, runID string, err error) int {
	var perr *types.PrerequisiteError
	var ferr *types.FormatError
	switch {
	case errors.As(err, &perr):
		fmt.Fprintln(out, color.ColorError(fmt.Sprintf("❌ %v", perr)))
	case errors.As(err, &ferr):
		fmt.Fprintln(out, color.ColorError(fmt.Sprintf("❌ Error reading CSV file: %v", err)))
	default:
		fmt.Fprintln(out, color.ColorError(fmt.Sprintf("❌ %v", err)))
	}
	logging.ErrorLogger.Error("run aborted", zap.String("run_id", runID), zap.Error(err))
	return 1
}

func writeReport(ctx context.Context, out io.Writer, cfg config.Config, uploader reportUploader, rep *report.Report) {
	if cfg.Report.File != "" {
		if err := rep.WriteFile(cfg.Report.File); err != nil {
			fmt.Fprintln(out, color.ColorWarning(fmt.Sprintf("Could not write report: %v", err)))
			logging.ErrorLogger.Error("report write failed", zap.String("run_id", rep.RunID), zap.Error(err))
		} else {
			fmt.Fprintf(out, "\nReport written to %s\n", cfg.Report.File)
		}
	}
	if uploader == nil {
		return
	}
	data, err := rep.Render(report.FormatJSON)
	if err == nil {
		var loc string
		loc, err = uploader.Upload(ctx, rep.ObjectKey(cfg.Report.Prefix), data, report.ContentType(report.FormatJSON))
		if err == nil {
			fmt.Fprintf(out, "Report uploaded to %s\n", loc)
			return
		}
	}
	fmt.Fprintln(out, color.ColorWarning(fmt.Sprintf("Could not upload report: %v", err)))
	logging.ErrorLogger.Error("report upload failed", zap.String("run_id", rep.RunID), zap.Error(err))
}

// newAWSClients resolves credentials from the ambient AWS environment and
// builds every remote client the run needs.
func newAWSClients(ctx context.Context, cfg config.Config) (clients, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return clients{}, &types.PrerequisiteError{Check: "aws configuration", Err: err}
	}
	if awsCfg.Credentials == nil {
		return clients{}, &types.PrerequisiteError{Check: "aws credentials", Err: errors.New("no credential provider configured")}
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return clients{}, &types.PrerequisiteError{Check: "aws credentials", Err: err}
	}

	cl := clients{dir: directory.NewClient(awsCfg)}
	if cfg.Subscribe {
		cl.ent = entitlement.NewClient(cfg.Q, awsCfg.Credentials, nil)
	}
	if cfg.ReportUploadEnabled() {
		uploader, err := storage.NewMinIOClient(ctx, cfg.Report)
		if err != nil {
			return clients{}, &types.PrerequisiteError{Check: "report storage", Err: err}
		}
		cl.uploader = uploader
	}
	return cl, nil
}
