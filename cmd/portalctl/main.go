// Command portalctl performs operator tasks directly against the database:
// bootstrapping super-admins and issuing license tokens.
package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dom/tenant-portal/internal/config"
	"github.com/dom/tenant-portal/internal/logging"
	"github.com/dom/tenant-portal/internal/repository"
	"github.com/dom/tenant-portal/internal/repository/postgres"
	"github.com/dom/tenant-portal/internal/service"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	gormlogger "gorm.io/gorm/logger"
)

var (
	appLogger zerolog.Logger
	repos     *repository.Repositories
	auth      *service.AuthService
	licenses  *service.LicenseService
)

var rootCmd = &cobra.Command{
	Use:               "portalctl",
	Short:             "Administer the tenant portal",
	SilenceUsage:      true,
	PersistentPreRunE: connect,
}

func connect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	appLogger = logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := postgres.NewConnection(cfg.DatabaseURL, gormlogger.Silent)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	repos = postgres.NewRepositories(db)

	// No command here touches sessions.
	auth = service.NewAuthService(repos, nil, appLogger)
	licenses = service.NewLicenseService(repos, appLogger)
	return nil
}

var createSuperAdminFlags struct {
	email    string
	password string
	name     string
}

var createSuperAdminCmd = &cobra.Command{
	Use:   "create-superadmin",
	Short: "Create a platform super-admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := auth.CreateUser(cmd.Context(), service.CreateUserInput{
			Email:      createSuperAdminFlags.email,
			Password:   createSuperAdminFlags.password,
			Name:       createSuperAdminFlags.name,
			SuperAdmin: true,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created super-admin %s (%s)\n", user.Email, user.ID)
		return nil
	},
}

var issueLicenseFlags struct {
	issuer          string
	companyID       string
	maxUsers        int
	maxStorageBytes int64
	validFor        time.Duration
}

var issueLicenseCmd = &cobra.Command{
	Use:   "issue-license",
	Short: "Issue a license token",
	RunE: func(cmd *cobra.Command, args []string) error {
		issuer, err := repos.User.GetByEmail(cmd.Context(), issueLicenseFlags.issuer)
		if err != nil {
			return fmt.Errorf("issuer %q: %w", issueLicenseFlags.issuer, err)
		}

		input := service.IssueLicenseInput{
			MaxUsers:        issueLicenseFlags.maxUsers,
			MaxStorageBytes: issueLicenseFlags.maxStorageBytes,
			ExpiresAt:       time.Now().Add(issueLicenseFlags.validFor),
		}
		if issueLicenseFlags.companyID != "" {
			id, err := uuid.Parse(issueLicenseFlags.companyID)
			if err != nil {
				return fmt.Errorf("invalid --company: %w", err)
			}
			input.CompanyID = &id
		}

		license, err := licenses.IssueLicense(cmd.Context(), issuer, input)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), license.Token)
		return nil
	},
}

var listLicensesFlags struct {
	actor     string
	companyID string
}

var listLicensesCmd = &cobra.Command{
	Use:   "list-licenses",
	Short: "List issued licenses",
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := repos.User.GetByEmail(cmd.Context(), listLicensesFlags.actor)
		if err != nil {
			return fmt.Errorf("actor %q: %w", listLicensesFlags.actor, err)
		}

		var companyID *uuid.UUID
		if listLicensesFlags.companyID != "" {
			id, err := uuid.Parse(listLicensesFlags.companyID)
			if err != nil {
				return fmt.Errorf("invalid --company: %w", err)
			}
			companyID = &id
		}

		list, err := licenses.ListLicenses(cmd.Context(), actor, companyID)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCOMPANY\tACTIVE\tUSED\tMAX USERS\tMAX BYTES\tEXPIRES")
		for _, l := range list {
			company := "-"
			if l.CompanyID != nil {
				company = l.CompanyID.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%d\t%d\t%s\n",
				l.ID, company, l.IsActive, l.IsUsed, l.MaxUsers, l.MaxStorageBytes, l.ExpiresAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

func main() {
	cobra.EnableCommandSorting = false

	f := createSuperAdminCmd.Flags()
	f.StringVar(&createSuperAdminFlags.email, "email", "", "login email")
	f.StringVar(&createSuperAdminFlags.password, "password", "", "initial password")
	f.StringVar(&createSuperAdminFlags.name, "name", "", "display name")
	createSuperAdminCmd.MarkFlagRequired("email")
	createSuperAdminCmd.MarkFlagRequired("password")

	f = issueLicenseCmd.Flags()
	f.StringVar(&issueLicenseFlags.issuer, "issuer", "", "email of the issuing super-admin")
	f.StringVar(&issueLicenseFlags.companyID, "company", "", "reserve the license for this company id")
	f.IntVar(&issueLicenseFlags.maxUsers, "max-users", 5, "maximum active users")
	f.Int64Var(&issueLicenseFlags.maxStorageBytes, "max-storage-bytes", 10<<30, "maximum active video bytes")
	f.DurationVar(&issueLicenseFlags.validFor, "valid-for", 365*24*time.Hour, "time until the license expires")
	issueLicenseCmd.MarkFlagRequired("issuer")

	f = listLicensesCmd.Flags()
	f.StringVar(&listLicensesFlags.actor, "as", "", "email of the super-admin running the query")
	f.StringVar(&listLicensesFlags.companyID, "company", "", "only show licenses for this company id")
	listLicensesCmd.MarkFlagRequired("as")

	rootCmd.AddCommand(createSuperAdminCmd)
	rootCmd.AddCommand(issueLicenseCmd)
	rootCmd.AddCommand(listLicensesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
