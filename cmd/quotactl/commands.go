package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aiwriterpros/aiwriter/internal"
	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newRootCmd(open opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "quotactl",
		Short:         "Inspect and adjust AI Writer Pros quotas",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// withApp opens the backends for one command and closes them after.
	withApp := func(cmd *cobra.Command, fn func(a *app) error) error {
		a, err := open(cmd.Context())
		if err != nil {
			return err
		}
		if a.close != nil {
			defer a.close()
		}
		return fn(a)
	}

	rootCmd.AddCommand(
		newPlansCmd(),
		newShowCmd(withApp),
		newStartTrialCmd(withApp),
		newSetPlanCmd(withApp),
		newMigrateCmd(withApp),
	)
	return rootCmd
}

type appRunner func(cmd *cobra.Command, fn func(a *app) error) error

func newPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "Print the plan catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, p := range domain.AllPlans {
				e := domain.Entitlements(p)
				fmt.Fprintf(out, "%s\n", p.DisplayName())
				fmt.Fprintf(out, "  words/month:     %s\n", e.WordLimit)
				fmt.Fprintf(out, "  generations/day: %s\n", e.GenerationLimit)
				fmt.Fprintf(out, "  tools:           %s\n", joinIDs(e.Tools))
				fmt.Fprintf(out, "  features:        %s\n", joinIDs(e.Features))
			}
			return nil
		},
	}
}

func newShowCmd(withApp appRunner) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show USER_ID",
		Short: "Show a user's plan and usage",
		Long:  `Show a user's normalized usage. A Free record is provisioned if the user has none.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				status, err := a.quota.Status(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(status)
				}
				printStatus(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}

func newStartTrialCmd(withApp appRunner) *cobra.Command {
	var plan string

	cmd := &cobra.Command{
		Use:   "start-trial USER_ID",
		Short: "Start a 7-day trial of a paid plan",
		Example: `  quotactl start-trial 5f0c6f1e-8a3e-4a57-9a55-2f3f0a8c1d10 --plan business`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			tier, err := parsePlan(plan)
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				ok, err := a.quota.StartTrial(cmd.Context(), userID, tier)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("trial not started: user must be on Free and the plan must be paid")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started %s trial for %s\n", tier.DisplayName(), userID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&plan, "plan", string(domain.PlanPro), "paid plan to trial (pro or business)")
	return cmd
}

func newSetPlanCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "set-plan USER_ID PLAN",
		Short: "Move a user to a plan, ending any trial",
		Long:  `Apply a plan change the way a billing event would. Usage counters are kept.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			tier, err := parsePlan(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app) error {
				rec, err := a.quota.ChangePlan(cmd.Context(), userID, tier)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now on %s (words %s, generations %s)\n",
					userID, rec.Plan.DisplayName(), rec.WordLimit, rec.GenerationLimit)
				return nil
			})
		},
	}
}

func newMigrateCmd(withApp appRunner) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				if a.db == nil {
					return errNoDatabase
				}
				if err := internal.RunMigrations(a.db); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				version, err := internal.MigrationVersion(a.db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Database at version %d\n", version)
				return nil
			})
		},
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				if a.db == nil {
					return errNoDatabase
				}
				version, err := internal.MigrationVersion(a.db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Database at version %d\n", version)
				return nil
			})
		},
	})
	return migrateCmd
}

func printStatus(out io.Writer, s *domain.UsageStatus) {
	plan := s.PlanName
	if s.IsTrialActive {
		plan = fmt.Sprintf("%s (trial, %d days left)", s.PlanName, s.TrialDaysLeft)
	}
	canGenerate := "no"
	if s.CanGenerate {
		canGenerate = "yes"
	}

	fmt.Fprintf(out, "User:         %s\n", s.UserID)
	fmt.Fprintf(out, "Plan:         %s\n", plan)
	fmt.Fprintf(out, "State:        %s\n", s.State)
	fmt.Fprintf(out, "Words:        %d / %s this month (%s remaining)\n", s.WordsUsedThisMonth, s.WordLimit, s.WordsRemaining)
	fmt.Fprintf(out, "Generations:  %d / %s today\n", s.GenerationsToday, s.GenerationLimit)
	fmt.Fprintf(out, "Can generate: %s\n", canGenerate)
}

func parseUserID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}

func parsePlan(s string) (domain.PlanTier, error) {
	tier, ok := domain.ParsePlanTier(strings.ToLower(s))
	if !ok {
		return "", fmt.Errorf("unknown plan %q (want free, pro or business)", s)
	}
	return tier, nil
}

func joinIDs[T ~string](ids []T) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}
