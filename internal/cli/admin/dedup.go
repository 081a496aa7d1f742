package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/veritaslabs/mnemo/internal/repository"
	"github.com/veritaslabs/mnemo/internal/service"
)

func DedupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Manage duplicate knowledge",
		Long:  "Detect duplicate knowledge and manage duplicate groups",
	}

	cmd.AddCommand(DedupDetectCmd())
	cmd.AddCommand(DedupRemoveCmd())

	return cmd
}

func DedupDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect <project-id> <knowledge-id> [knowledge-id...]",
		Short: "Run duplicate detection for knowledge items",
		Long:  "Run exact, semantic and fuzzy duplicate detection for the given knowledge ids within a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runDedupDetect(outputFormat, args[0], args[1:])
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runDedupDetect(outputFormat, projectID string, knowledgeIDs []string) error {
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

	total, err := svc.DetectDuplicates(ctx, projectID, knowledgeIDs)
	if err != nil {
		return fmt.Errorf("duplicate detection failed: %w", err)
	}

	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(map[string]int{"duplicates_found": total}, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Found %d duplicates across %d items\n", total, len(knowledgeIDs))
	}

	return nil
}

func DedupRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <knowledge-id>",
		Short: "Detach a knowledge item from its duplicate group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDedupRemove(args[0])
		},
	}

	return cmd
}

func runDedupRemove(id string) error {
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

	if err := svc.RemoveDuplicateFromGroup(ctx, id); err != nil {
		return fmt.Errorf("failed to remove %s from its group: %w", id, err)
	}

	fmt.Printf("Knowledge %s detached from its duplicate group\n", id)
	return nil
}
