package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dripsheet/dripsheet/internal/auth"
	"github.com/dripsheet/dripsheet/internal/config"
	"github.com/dripsheet/dripsheet/internal/database"
	"github.com/dripsheet/dripsheet/internal/email"
	"github.com/dripsheet/dripsheet/internal/logger"
	"github.com/dripsheet/dripsheet/internal/repository"
	"github.com/dripsheet/dripsheet/internal/service"
	"github.com/dripsheet/dripsheet/internal/sheets"
	"github.com/dripsheet/dripsheet/internal/template"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "dripsheet",
	Short:         "Send drip campaign emails to contacts listed in a Google Sheet",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./config.yaml)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Format), nil
}

// app holds the wired campaign service and the connections to close after it
type app struct {
	svc     *service.CampaignService
	journal *repository.JournalRepository
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{}

	httpClient, err := auth.NewHTTPClient(ctx, cfg.Google)
	if err != nil {
		return nil, err
	}

	sheetClient, err := sheets.NewClientWithHTTP(ctx, httpClient, cfg.Sheet.SpreadsheetID, cfg.Sheet.Tab, cfg.Sheet.ValueInputOption)
	if err != nil {
		return nil, err
	}

	sender, err := newSender(ctx, cfg, httpClient, log)
	if err != nil {
		return nil, err
	}

	resolver := template.NewResolver(template.NewFileStore(cfg.Campaign.TemplateDir, cfg.Campaign.TemplateExt))

	var journal service.Journal
	if cfg.Database.Enabled {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.journal = repository.NewJournalRepository(db)
		journal = a.journal
		log.Debug().Msg("send journal enabled")
	}

	var locker service.RunLocker
	if cfg.Redis.Enabled {
		rdb, err := database.NewRedis(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		locker = service.NewRedisRunLock(rdb, cfg.Redis.LockTTL)
		log.Debug().Msg("run lock enabled")
	}

	a.svc = service.NewCampaignService(sheetClient, sender, resolver, journal, locker, cfg, log)
	return a, nil
}

// newSender picks the mail provider. A service account key cannot send as
// itself, so without an explicit google.subject Gmail impersonates the
// sender address.
func newSender(ctx context.Context, cfg *config.Config, client *http.Client, log *logger.Logger) (email.Sender, error) {
	switch cfg.Email.Provider {
	case "gmail":
		key, err := auth.ServiceAccountKey(cfg.Google)
		if err != nil {
			return nil, err
		}
		if key != nil && cfg.Google.Subject == "" {
			return email.NewGmailSender(ctx, email.GmailConfig{
				CredentialsJSON: string(key),
				SenderAddress:   cfg.Email.SenderAddress,
				SenderName:      cfg.Email.SenderName,
			})
		}
		return email.NewGmailSenderWithClient(ctx, client, cfg.Email.SenderAddress, cfg.Email.SenderName)
	case "resend":
		return email.NewResendSender(cfg.Email.Resend.APIKey, cfg.Email.SenderAddress, cfg.Email.SenderName)
	case "noop":
		return email.NewNoopSender(log), nil
	}
	return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
}

// errUnreconciled makes the process exit non-zero when sent emails are
// missing from the sheet.
var errUnreconciled = errors.New("some sent emails were not recorded in the sheet; see `dripsheet unreconciled`")
