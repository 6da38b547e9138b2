package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/exman-app/exman-go/auth"
)

func loginCommand(cfgPath *string) *cobra.Command {
	var withGoogle bool

	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Log in to the ExMan backend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			if err := app.start(ctx); err != nil {
				return err
			}

			var result *auth.LoginResult
			if withGoogle {
				result, err = app.engine.LoginWithGoogle(ctx)
			} else {
				email := ""
				if len(args) > 0 {
					email = args[0]
				} else if email, err = promptLine("Email: "); err != nil {
					return err
				}
				var password string
				if password, err = promptPassword("Password: "); err != nil {
					return err
				}
				result, err = app.engine.Login(ctx, email, password)
			}
			if err != nil {
				var locked *auth.LockedError
				if errors.As(err, &locked) {
					return fmt.Errorf("%s (try again in %s)", locked.Error(), app.engine.Lockout())
				}
				return err
			}

			if result.NeedsProfile {
				// The federated credential only lives in this process, so
				// the profile has to be completed before we exit.
				fmt.Printf("Welcome %s! Complete your profile to finish signing up.\n", result.Name)
				return finishProfile(ctx, app.engine, auth.SignupData{Email: result.Email})
			}
			fmt.Printf("Logged in as %s\n", result.User.DisplayName())
			return nil
		},
	}
	cmd.Flags().BoolVar(&withGoogle, "google", false, "sign in with Google")
	return cmd
}

func signupCommand(cfgPath *string) *cobra.Command {
	var withGoogle bool
	var data auth.SignupData

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an ExMan account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			if err := app.start(ctx); err != nil {
				return err
			}

			if withGoogle {
				result, err := app.engine.SignupWithGoogle(ctx)
				if err != nil {
					return err
				}
				if result.NeedsProfile {
					fmt.Printf("Google account linked as %s.\n", result.Email)
					data.Email = result.Email
					return finishProfile(ctx, app.engine, data)
				}
				fmt.Printf("Signed up as %s\n", result.User.DisplayName())
				return nil
			}

			if data.Email == "" {
				if data.Email, err = promptLine("Email: "); err != nil {
					return err
				}
			}
			if data.Password == "" {
				if data.Password, err = promptPassword("Password: "); err != nil {
					return err
				}
			}

			result, err := app.engine.Signup(ctx, data)
			if err != nil {
				return err
			}
			if result.User != nil {
				fmt.Printf("Signed up as %s\n", result.User.DisplayName())
			} else {
				fmt.Println("Account created. Run `exman login` to sign in.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withGoogle, "google", false, "sign up with Google")
	cmd.Flags().StringVar(&data.Email, "email", "", "account email")
	cmd.Flags().StringVar(&data.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&data.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&data.Position, "position", "", "job title")
	cmd.Flags().Float64Var(&data.MonthlySalary, "monthly-salary", 0, "gross monthly salary")
	cmd.Flags().Float64Var(&data.WorkingHours, "working-hours", 0, "contracted hours per week")
	return cmd
}

func logoutCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.close()

			ctx := cmd.Context()
			if err := app.start(ctx); err != nil {
				return err
			}
			app.engine.Logout(ctx)
			if err := app.jar.Clear(); err != nil {
				logger.Warn().Err(err).Msg("failed to clear cookie file")
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func whoamiCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.requireSession(cmd.Context()); err != nil {
				return err
			}
			session := app.engine.Session()
			fmt.Printf("%s <%s>\n", session.DisplayName(), session.Email)
			if session.Position != "" {
				fmt.Printf("%s, %.1f h/week\n", session.Position, session.WorkingHours)
			}
			return nil
		},
	}
}

func forgotPasswordCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "forgot-password <email>",
		Short: "Send a password reset email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.close()

			message, err := app.engine.RequestPasswordReset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(message)
			return nil
		},
	}
}

func resetPasswordCommand(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <token>",
		Short: "Set a new password using an emailed reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			defer app.close()

			password, err := promptPassword("New password: ")
			if err != nil {
				return err
			}
			if err := app.engine.ResetPassword(cmd.Context(), args[0], password); err != nil {
				return err
			}
			fmt.Println("Password updated. Run `exman login` to sign in.")
			return nil
		},
	}
}

// finishProfile completes a needs-profile signup continuation in the same
// invocation, prompting for any fields not already supplied.
func finishProfile(ctx context.Context, engine *auth.Engine, data auth.SignupData) error {
	var err error
	if data.FirstName == "" {
		if data.FirstName, err = promptLine("First name: "); err != nil {
			return err
		}
	}
	if data.LastName == "" {
		if data.LastName, err = promptLine("Last name: "); err != nil {
			return err
		}
	}
	if data.Position == "" {
		if data.Position, err = promptLine("Job title: "); err != nil {
			return err
		}
	}
	if data.MonthlySalary == 0 {
		if data.MonthlySalary, err = promptFloat("Gross monthly salary: "); err != nil {
			return err
		}
	}
	if data.WorkingHours == 0 {
		if data.WorkingHours, err = promptFloat("Contracted hours per week: "); err != nil {
			return err
		}
	}

	result, err := engine.Signup(ctx, data)
	if err != nil {
		return err
	}
	fmt.Printf("Signed up as %s\n", result.User.DisplayName())
	return nil
}

func promptLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptFloat(prompt string) (float64, error) {
	line, err := promptLine(prompt)
	if err != nil {
		return 0, err
	}
	if line == "" {
		return 0, nil
	}
	return strconv.ParseFloat(line, 64)
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(password), nil
}
