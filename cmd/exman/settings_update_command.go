package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/exman-app/exman-go/auth"
)

// updateSettingsCommand routes profile edits through the engine so the held
// session is replaced with the server-confirmed record.
func updateSettingsCommand(cfgPath *string) *cobra.Command {
	var update auth.ProfileUpdate

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields",
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

			current := app.engine.Session()
			if update.FirstName == "" {
				update.FirstName = current.FirstName
			}
			if update.LastName == "" {
				update.LastName = current.LastName
			}
			if update.Position == "" {
				update.Position = current.Position
			}
			if update.MonthlySalary == 0 {
				update.MonthlySalary = current.MonthlySalary
			}
			if update.WorkingHours == 0 {
				update.WorkingHours = current.WorkingHours
			}

			updated, err := app.engine.UpdateProfile(ctx, update)
			if err != nil {
				return err
			}
			fmt.Printf("Profile updated for %s\n", updated.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&update.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&update.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&update.Position, "position", "", "job title")
	cmd.Flags().Float64Var(&update.MonthlySalary, "monthly-salary", 0, "gross monthly salary")
	cmd.Flags().Float64Var(&update.WorkingHours, "working-hours", 0, "contracted hours per week")
	return cmd
}
