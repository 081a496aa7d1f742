package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/veritaslabs/mnemo/internal/config"
	"github.com/veritaslabs/mnemo/internal/repository"
	"github.com/veritaslabs/mnemo/internal/service"
	"github.com/veritaslabs/mnemo/internal/storage"
)

func ArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage knowledge archival",
		Long:  "Scan for idle knowledge, unarchive items and export audit logs",
	}

	cmd.AddCommand(ArchiveScanCmd())
	cmd.AddCommand(ArchiveUnarchiveCmd())
	cmd.AddCommand(ArchiveExportCmd())

	return cmd
}

func ArchiveScanCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Archive knowledge unused for 90 days",
		Long:  "Scan the whole store and archive all knowledge items idle past the 90-day threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runArchiveScan(outputFormat, dryRun)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Count eligible items without archiving")

	return cmd
}

func runArchiveScan(outputFormat string, dryRun bool) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := newArchiveService(ctx, pool)

	result, err := svc.ScanAndArchive(ctx, dryRun)
	if err != nil {
		return fmt.Errorf("archive scan failed: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"job_id":      result.JobID,
			"scanned":     result.Scanned,
			"archived":    result.Archived,
			"duration_ms": result.Duration.Milliseconds(),
			"dry_run":     result.DryRun,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if result.DryRun {
			fmt.Printf("Dry run: %d items eligible for archival (job %s)\n", result.Scanned, result.JobID)
		} else {
			fmt.Printf("Archived %d of %d eligible items in %s (job %s)\n",
				result.Archived, result.Scanned, result.Duration, result.JobID)
		}
	}

	return nil
}

func ArchiveUnarchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unarchive <knowledge-id>",
		Short: "Return an archived knowledge item to the active set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnarchive(args[0])
		},
	}

	return cmd
}

func runUnarchive(id string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := newArchiveService(ctx, pool)

	if err := svc.Unarchive(ctx, id); err != nil {
		return fmt.Errorf("failed to unarchive %s: %w", id, err)
	}

	fmt.Printf("Knowledge %s is active\n", id)
	return nil
}

func ArchiveExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <job-id>",
		Short: "Export one scan job's audit log to S3",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArchiveExport(args[0])
		},
	}

	return cmd
}

func runArchiveExport(jobID string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := newArchiveService(ctx, pool)

	key, err := svc.ExportJobLog(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to export job %s: %w", jobID, err)
	}

	fmt.Printf("Exported audit log to %s\n", key)
	return nil
}

func newArchiveService(ctx context.Context, pool *pgxpool.Pool) *service.ArchiveService {
	var exporter service.ArchiveLogExporter
	if cfg, err := config.Load(); err == nil && cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err == nil {
			exporter = s3Client
		}
	}

	return service.NewArchiveService(
		repository.NewKnowledgeStore(pool),
		repository.NewArchiveLogStore(pool),
		repository.NewTxRunner(pool),
		exporter,
	)
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
