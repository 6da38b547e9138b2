package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/exman-app/exman-go/entries"
	"github.com/exman-app/exman-go/reports"
	"github.com/exman-app/exman-go/settings"
)

func entryCommand(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Manage work-hour and expense entries",
	}

	var entry entries.Entry
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an entry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			if err := app.requireSession(ctx); err != nil {
				return err
			}
			service, err := entries.NewService(app.api)
			if err != nil {
				return err
			}
			if err := service.Add(ctx, entry); err != nil {
				return err
			}
			fmt.Println("Entry added")
			return nil
		},
	}
	add.Flags().StringVar(&entry.Date, "date", "", "entry date (YYYY-MM-DD)")
	add.Flags().StringVar(&entry.Category, "category", "", "entry category")
	add.Flags().Float64Var(&entry.Hours, "hours", 0, "hours worked")
	add.Flags().Float64Var(&entry.Amount, "amount", 0, "expense amount")
	add.Flags().StringVar(&entry.Note, "note", "", "optional note")

	list := &cobra.Command{
		Use:   "list",
		Short: "List entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			if err := app.requireSession(ctx); err != nil {
				return err
			}
			service, err := entries.NewService(app.api)
			if err != nil {
				return err
			}
			items, err := service.List(ctx)
			if err != nil {
				return err
			}
			for _, item := range items {
				fmt.Printf("%d\t%s\t%s\t%.1fh\t%.2f\t%s\n",
					item.ID, item.Date, item.Category, item.Hours, item.Amount, item.Note)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}

			app, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			if err := app.requireSession(ctx); err != nil {
				return err
			}
			service, err := entries.NewService(app.api)
			if err != nil {
				return err
			}
			if err := service.Delete(ctx, id); err != nil {
				return err
			}
			fmt.Println("Entry deleted")
			return nil
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}

func reportCommand(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show or download reports",
	}

	summary := func(period reports.Period) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			if err := app.requireSession(ctx); err != nil {
				return err
			}
			service, err := reports.NewService(app.api)
			if err != nil {
				return err
			}

			var result *reports.Summary
			if period == reports.PeriodWeekly {
				result, err = service.Weekly(ctx)
			} else {
				result, err = service.Monthly(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Printf("%s: %.1f hours, %.2f spent\n", result.Period, result.TotalHours, result.TotalSpent)
			for category, amount := range result.ByCategory {
				fmt.Printf("  %s\t%.2f\n", category, amount)
			}
			return nil
		}
	}

	var outFile string
	download := &cobra.Command{
		Use:   "download <weekly|monthly>",
		Short: "Download a PDF report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period := reports.Period(args[0])
			if period != reports.PeriodWeekly && period != reports.PeriodMonthly {
				return fmt.Errorf("unknown period %q", args[0])
			}

			app, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			if err := app.requireSession(ctx); err != nil {
				return err
			}
			service, err := reports.NewService(app.api)
			if err != nil {
				return err
			}
			pdf, err := service.DownloadPDF(ctx, period)
			if err != nil {
				return err
			}

			target := outFile
			if target == "" {
				target = fmt.Sprintf("exman-%s-report.pdf", period)
			}
			if err := os.WriteFile(target, pdf, 0o644); err != nil {
				return err
			}
			fmt.Printf("Saved %s\n", target)
			return nil
		},
	}
	download.Flags().StringVarP(&outFile, "out", "o", "", "output file")

	cmd.AddCommand(
		&cobra.Command{Use: "weekly", Short: "Weekly summary", RunE: summary(reports.PeriodWeekly)},
		&cobra.Command{Use: "monthly", Short: "Monthly summary", RunE: summary(reports.PeriodMonthly)},
		download,
	)
	return cmd
}

func settingsCommand(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or update account settings",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show account settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			if err := app.requireSession(ctx); err != nil {
				return err
			}
			service, err := settings.NewService(app.api)
			if err != nil {
				return err
			}
			current, err := service.Get(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s <%s>\n", current.User.DisplayName(), current.User.Email)
			fmt.Printf("Position:\t%s\n", current.User.Position)
			fmt.Printf("Salary:\t%.2f/month\n", current.User.MonthlySalary)
			fmt.Printf("Hours:\t%.1f/week\n", current.User.WorkingHours)
			return nil
		},
	}

	var update = updateSettingsCommand(cfgPath)

	cmd.AddCommand(show, update)
	return cmd
}
