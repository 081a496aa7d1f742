package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/veritaslabs/mnemo/internal/repository"
	"github.com/veritaslabs/mnemo/internal/service"
)

func StatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge lifecycle statistics",
		Long:  "Show archive statistics, and duplicate statistics for a project",
	}

	cmd.AddCommand(StatsArchiveCmd())
	cmd.AddCommand(StatsDuplicatesCmd())

	return cmd
}

func StatsArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Show archive counts across the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runStatsArchive(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runStatsArchive(outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := newArchiveService(ctx, pool)

	stats, err := svc.GetArchiveStatistics(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute archive statistics: %w", err)
	}

	if outputFormat == "json" {
		byReason := make(map[string]int64, len(stats.ByReason))
		for reason, n := range stats.ByReason {
			byReason[string(reason)] = n
		}
		data := map[string]interface{}{
			"total_knowledge": stats.TotalKnowledge,
			"active":          stats.Active,
			"archived":        stats.Archived,
			"archived_ratio":  stats.ArchivedRatio,
			"by_reason":       byReason,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Knowledge: %d total, %d active, %d archived (%.1f%%)\n",
			stats.TotalKnowledge, stats.Active, stats.Archived, stats.ArchivedRatio*100)
		for reason, n := range stats.ByReason {
			fmt.Printf("  %s: %d\n", reason, n)
		}
	}

	return nil
}

func StatsDuplicatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicates <project-id>",
		Short: "Show duplicate group counts for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runStatsDuplicates(outputFormat, args[0])
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runStatsDuplicates(outputFormat, projectID string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := service.NewDuplicateService(
		repository.NewKnowledgeStore(pool),
		repository.NewGroupStore(pool),
	)

	stats, err := svc.GetDuplicateStats(ctx, projectID)
	if err != nil {
		return fmt.Errorf("failed to compute duplicate statistics: %w", err)
	}

	if outputFormat == "json" {
		byMethod := make(map[string]int, len(stats.ByMethod))
		for method, n := range stats.ByMethod {
			byMethod[string(method)] = n
		}
		data := map[string]interface{}{
			"total_groups":     stats.TotalGroups,
			"total_duplicates": stats.TotalDuplicates,
			"by_method":        byMethod,
			"duplicate_ratio":  stats.DuplicateRatio,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Duplicate groups: %d (%d duplicates, %.1f%% of project)\n",
			stats.TotalGroups, stats.TotalDuplicates, stats.DuplicateRatio*100)
		for method, n := range stats.ByMethod {
			fmt.Printf("  %s: %d\n", method, n)
		}
	}

	return nil
}
