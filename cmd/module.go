package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
	"github.com/iancoleman/strcase"
	"github.com/spf13/cobra"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/internal/database"
	"github.com/priyxstudio/sgo/modules"
	"github.com/priyxstudio/sgo/remote"
)

var moduleArgs struct {
	AuthToken string
	Directory string
	Version   string
}

func newModuleCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "module",
		Short: "Install and scaffold modules.",
	}

	install := &cobra.Command{
		Use:   "install <archive|url>",
		Short: "Install a module from a local archive or a remote URL.",
		Args:  cobra.ExactArgs(1),
		PreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
		},
		RunE: moduleInstallCmdRun,
	}
	install.Flags().StringVar(&moduleArgs.AuthToken, "auth-token", "", "bearer token sent when downloading from a URL")

	scaffold := &cobra.Command{
		Use:   "init <name>",
		Short: "Scaffold a new module folder with a manifest and migration directories.",
		Args:  cobra.ExactArgs(1),
		RunE:  moduleInitCmdRun,
	}
	scaffold.Flags().StringVar(&moduleArgs.Directory, "dir", "", "parent directory to create the module in (defaults to the working directory)")
	scaffold.Flags().StringVar(&moduleArgs.Version, "version", "0.1.0", "initial module version")

	command.AddCommand(install, scaffold)
	return command
}

func moduleInstallCmdRun(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	db, dialect, err := database.Open(cfg.Database, cfg.Debug)
	if err != nil {
		return err
	}
	if sql, err := db.DB(); err == nil {
		defer sql.Close()
	}

	registry := modules.NewRegistry(db, dialect, nil)
	installer := modules.NewInstaller(
		cfg.Modules.Directory,
		cfg.System.TmpDirectory,
		registry,
		modules.NewMigrationRunner(db, dialect, cfg.Modules.TransactionalMigrations),
		newRemoteClient(cfg),
	)

	var res *modules.InstallResult
	if _, err := remote.ValidateURL(args[0]); err == nil {
		res, err = installer.InstallFromURL(cmd.Context(), args[0], moduleArgs.AuthToken)
		if err != nil {
			return err
		}
	} else {
		p, err := filepath.Abs(args[0])
		if err != nil {
			return errors.WithStack(err)
		}
		if res, err = installer.InstallFromFile(cmd.Context(), p); err != nil {
			return err
		}
	}

	fmt.Printf("Installed %s (%s) v%s\n", res.Name, res.Slug, res.Version)
	for _, m := range res.Migrations {
		fmt.Println("  applied migration", m)
	}
	return nil
}

func moduleInitCmdRun(_ *cobra.Command, args []string) error {
	slug := strcase.ToKebab(args[0])
	m := &modules.Manifest{
		Slug:        slug,
		Name:        args[0],
		Version:     moduleArgs.Version,
		Icon:        modules.DefaultIcon,
		Color:       modules.DefaultColor,
		Permissions: []string{},
		ServerPort:  modules.DefaultServerPort,
	}
	if err := m.Validate(); err != nil {
		return err
	}

	parent := moduleArgs.Directory
	if parent == "" {
		parent = "."
	}
	dir := filepath.Join(parent, slug)
	if _, err := os.Stat(filepath.Join(dir, modules.ManifestName)); err == nil {
		return errors.Errorf("module: %s already contains a manifest", dir)
	}

	for _, d := range []string{"dist", "migrations/sqlite", "migrations/postgres"} {
		if err := os.MkdirAll(filepath.Join(dir, filepath.FromSlash(d)), 0o755); err != nil {
			return errors.WithStack(err)
		}
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(filepath.Join(dir, modules.ManifestName), append(b, '\n'), 0o644); err != nil {
		return errors.WithStack(err)
	}
	for _, d := range []string{"migrations/sqlite", "migrations/postgres"} {
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(d), ".gitkeep"), nil, 0o644); err != nil {
			return errors.WithStack(err)
		}
	}

	fmt.Printf("Created module %s in %s\n", slug, dir)
	return nil
}

func newRemoteClient(cfg *config.Configuration) *remote.Client {
	return remote.New(
		remote.WithTimeout(time.Duration(cfg.Api.RemoteDownload.Timeout)*time.Second),
		remote.WithRetries(cfg.Api.RemoteDownload.MaxRetries),
		remote.WithMaxRedirects(cfg.Api.RemoteDownload.MaxRedirects),
		remote.WithDownloadLimit(cfg.Api.RemoteDownload.DownloadLimit),
	)
}
