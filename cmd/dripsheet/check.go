package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dripsheet/dripsheet/internal/config"
	"github.com/dripsheet/dripsheet/internal/database"
	"github.com/dripsheet/dripsheet/internal/model"
	"github.com/dripsheet/dripsheet/internal/template"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check credentials, sheet headers, templates and optional backends",
	Args:  cobra.NoArgs,
	RunE:  runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

// healthReport maps each dependency to "healthy" or the reason it is not
type healthReport map[string]string

func (h healthReport) set(name string, err error) {
	if err != nil {
		h[name] = "unhealthy: " + err.Error()
		return
	}
	h[name] = "healthy"
}

func (h healthReport) healthy() bool {
	for _, s := range h {
		if s != "healthy" {
			return false
		}
	}
	return true
}

func (h healthReport) print(w io.Writer) {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%-10s %s\n", name, h[name])
	}
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	report := healthReport{}

	a, err := newApp(ctx, cfg, log)
	report.set("setup", err)
	if err == nil {
		defer a.Close()
		_, err = a.svc.Load(ctx)
		report.set("sheet", err)
	}

	report.set("templates", checkTemplates(ctx, cfg))

	if cfg.Database.Enabled {
		report.set("postgres", checkPostgres(ctx, cfg))
	}
	if cfg.Redis.Enabled {
		report.set("redis", checkRedis(ctx, cfg))
	}

	report.print(cmd.OutOrStdout())
	if !report.healthy() {
		return errors.New("one or more checks failed")
	}
	return nil
}

// checkTemplates requires a first email for every language.
func checkTemplates(ctx context.Context, cfg *config.Config) error {
	store := template.NewFileStore(cfg.Campaign.TemplateDir, cfg.Campaign.TemplateExt)
	for _, lang := range []model.Language{model.LanguageEN, model.LanguageLV} {
		if _, err := store.Load(ctx, template.Key(lang, 0)); err != nil {
			return err
		}
	}
	return nil
}

func checkPostgres(ctx context.Context, cfg *config.Config) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.HealthCheck(ctx)
}

func checkRedis(ctx context.Context, cfg *config.Config) error {
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	return rdb.HealthCheck(ctx)
}

