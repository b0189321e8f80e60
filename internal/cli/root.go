package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/casimir/freon/internal/app"
	"github.com/casimir/freon/internal/config"
	"github.com/casimir/freon/internal/database"
	"github.com/casimir/freon/internal/repository"
	"github.com/casimir/freon/internal/service"
	"github.com/casimir/freon/internal/tools/common"
	"github.com/casimir/freon/internal/tools/doctor"
	"github.com/casimir/freon/internal/version"
)

func NewRootCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "freon",
		Short: "Authentication gateway for wallabag",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return common.LoadEnvFile(envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newVersionCommand())
	cmd.AddCommand(newUpdatePasswordCommand())
	cmd.AddCommand(doctor.NewCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, cleanup, err := app.InitializeApp(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			return a.Run(ctx)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.UserAgent())
		},
	}
}

func newUpdatePasswordCommand() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "update-password",
		Short: "Set a user's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			db, err := database.Open(cfg)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			users := service.NewUserService(repository.NewUserRepository(db))
			if err := users.UpdatePassword(username, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "account to update")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
