package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/gogomarket/rental-backend/internal/app"
	"github.com/gogomarket/rental-backend/internal/common/config"
	"github.com/gogomarket/rental-backend/internal/common/database"
	"github.com/gogomarket/rental-backend/internal/common/logger"
	"github.com/gogomarket/rental-backend/internal/common/utils"
	"github.com/gogomarket/rental-backend/internal/models"
	authService "github.com/gogomarket/rental-backend/internal/service/auth"
)

// openDB 测试中替换为 sqlite
var openDB = func(cfg *config.Config) (*gorm.DB, error) {
	return database.Init(&cfg.Database)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rentalctl",
		Short:         "Rental back-office maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "config file path")

	root.AddCommand(
		migrateCmd(),
		createAdminCmd(),
		listAdminsCmd(),
		adminStatusCmd(),
		expireBindingsCmd(),
		exportBillsCmd(),
	)
	return root
}

// bootstrap 加载配置并连接数据库
func bootstrap(cmd *cobra.Command) (*config.Config, *gorm.DB, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if _, err := logger.Init(&cfg.Logger); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func buildApp(cmd *cobra.Command) (*app.App, error) {
	cfg, db, err := bootstrap(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, db, nil, nil)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			if err := models.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(models.All()))
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a back-office administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			name, _ := cmd.Flags().GetString("name")
			if password == "" {
				password = os.Getenv("RENTAL_ADMIN_PASSWORD")
			}

			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			admin, err := a.Services.Auth.CreateAdmin(cmd.Context(), &authService.CreateAdminRequest{
				Username: username,
				Password: password,
				Name:     name,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created (id=%d)\n", admin.Username, admin.ID)
			return nil
		},
	}
	cmd.Flags().StringP("username", "u", "admin", "login name")
	cmd.Flags().StringP("password", "p", "", "password, falls back to RENTAL_ADMIN_PASSWORD")
	cmd.Flags().String("name", "", "display name")
	return cmd
}

func listAdminsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-admins",
		Short: "List back-office administrators",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			admins, err := a.Services.Auth.ListAdmins(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tACTIVE\tLAST LOGIN")
			for _, admin := range admins {
				last := "-"
				if admin.LastLoginAt != nil {
					last = admin.LastLoginAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", admin.ID, admin.Username, admin.Name,
					admin.Status == models.AdminStatusActive, last)
			}
			return w.Flush()
		},
	}
}

func adminStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin-status USERNAME",
		Short: "Enable or disable an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			disable, _ := cmd.Flags().GetBool("disable")
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			admin, err := a.Services.Auth.SetAdminStatus(cmd.Context(), args[0], !disable)
			if err != nil {
				return err
			}
			state := "enabled"
			if disable {
				state = "disabled"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s %s\n", admin.Username, state)
			return nil
		},
	}
	cmd.Flags().Bool("disable", false, "disable instead of enable")
	return cmd
}

func expireBindingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-bindings",
		Short: "Mark bindings of ended contracts as expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			n, err := a.Services.Contract.ExpireBindings(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d bindings\n", n)
			return nil
		},
	}
}

func exportBillsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-bills",
		Short: "Export a month of bills to an xlsx workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			month, _ := cmd.Flags().GetString("month")
			out, _ := cmd.Flags().GetString("out")

			year, mon, err := utils.ParseYearMonth(month)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd)
			if err != nil {
				return err
			}
			data, filename, err := a.Services.Billing.ExportMonth(cmd.Context(), year, mon)
			if err != nil {
				return err
			}
			if out == "" {
				out = filename
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringP("month", "m", "", "billing month, YYYY-MM")
	cmd.Flags().StringP("out", "o", "", "output file, defaults to the generated name")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}
