package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/esperancehsu/Gestion-Presence/internal/adapters/cache"
	"github.com/esperancehsu/Gestion-Presence/internal/adapters/repository/postgres"
	"github.com/esperancehsu/Gestion-Presence/internal/core/access"
	"github.com/esperancehsu/Gestion-Presence/internal/core/user"
	"github.com/esperancehsu/Gestion-Presence/internal/platform/authz"
	"github.com/esperancehsu/Gestion-Presence/internal/platform/config"
	pg "github.com/esperancehsu/Gestion-Presence/internal/platform/db/postgres"
	"github.com/esperancehsu/Gestion-Presence/internal/platform/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath      = flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
		dryRun          = flag.Bool("dry-run", false, "show planned changes without writing")
		createEmployees = flag.Bool("create-employees", false, "create employee records for accounts without one")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}

	dbPool, err := pg.NewPool(ctx, cfg.Database, pg.WithQueryLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database pool")
	}
	defer dbPool.Close()

	rules, err := authz.LoadRoleRules(cfg.Authz.PolicyPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load role rules")
	}

	svc := user.NewService(postgres.NewUserRepository(dbPool), rules, pg.NewTransactionManager(dbPool, pg.IsolationFromConfig(cfg.Database)))
	result, err := svc.SetupGroups(ctx, user.SetupGroupsInput{DryRun: *dryRun, CreateEmployees: *createEmployees})
	if err != nil {
		logger.Fatal().Err(err).Msg("setup groups failed")
	}

	if !result.DryRun && cfg.Redis.Enabled() {
		stale := staleActors(result)
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("cached actors were not invalidated")
		} else {
			defer client.Close()
			if err := cache.NewActorCache(client, svc, cfg.Redis.ActorCacheTTL).Invalidate(ctx, stale...); err != nil {
				logger.Warn().Err(err).Msg("cached actors were not invalidated")
			}
		}
	}

	if err := printSummary(os.Stdout, result); err != nil {
		logger.Fatal().Err(err).Msg("failed to print summary")
	}
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

// staleActors はグループや社員の紐づきが変わったアカウント ID を返します。
func staleActors(result *user.SetupGroupsResult) []string {
	var ids []string
	for _, a := range result.Assignments {
		if a.Changed {
			ids = append(ids, a.UserID)
		}
	}
	if len(result.EmployeesCreated) == 0 {
		return ids
	}
	created := make(map[string]bool, len(result.EmployeesCreated))
	for _, name := range result.EmployeesCreated {
		created[name] = true
	}
	for _, a := range result.Assignments {
		if !a.Changed && created[a.Username] {
			ids = append(ids, a.UserID)
		}
	}
	return ids
}

func printSummary(out io.Writer, result *user.SetupGroupsResult) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	if result.DryRun {
		fmt.Fprintln(w, "dry run: no changes were written")
	}

	fmt.Fprintln(w, "GROUP\tMEMBERS\tPERMISSIONS")
	for _, g := range result.Groups {
		fmt.Fprintf(w, "%s\t%d\t%s\n", g.Name, result.Members[g.Name], joinPermissions(g.Permissions))
	}
	fmt.Fprintln(w)

	changed := 0
	fmt.Fprintln(w, "USER\tGROUP\tCHANGED")
	for _, a := range result.Assignments {
		fmt.Fprintf(w, "%s\t%s\t%t\n", a.Username, a.Group, a.Changed)
		if a.Changed {
			changed++
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "permissions created:\t%d\n", len(result.PermissionsCreated))
	fmt.Fprintf(w, "groups created:\t%d\n", len(result.GroupsCreated))
	fmt.Fprintf(w, "assignments changed:\t%d/%d\n", changed, len(result.Assignments))
	fmt.Fprintf(w, "employees created:\t%d\n", len(result.EmployeesCreated))
	for _, name := range result.EmployeesCreated {
		fmt.Fprintf(w, "  - %s\n", name)
	}

	return w.Flush()
}

func joinPermissions(perms []access.Permission) string {
	if len(perms) == 0 {
		return "-"
	}
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, string(p))
	}
	return strings.Join(names, ",")
}
