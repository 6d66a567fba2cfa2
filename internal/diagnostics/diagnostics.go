package diagnostics

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/internal/models"
	"github.com/priyxstudio/sgo/system"
)

// ModuleLister is satisfied by *modules.Registry.
type ModuleLister interface {
	List(ctx context.Context, activeOnly bool) ([]models.Module, error)
}

// GenerateDiagnosticsReport builds a plain text report describing the chassi,
// its configuration and the registered modules. Hosts and credentials are only
// included when includeEndpoints is set. modules may be nil.
func GenerateDiagnosticsReport(ctx context.Context, modules ModuleLister, includeEndpoints bool, includeLogs bool, logLines int) (string, error) {
	cfg := config.Get()
	out := &strings.Builder{}

	printHeader(out, "Versions")
	fmt.Fprintln(out, "      SGO:", system.Version)
	if info, err := system.GetSystemInformation(); err == nil {
		printHeader(out, "System")
		fmt.Fprintln(out, "       OS:", info.System.OS)
		fmt.Fprintln(out, "     Arch:", info.System.Architecture)
		fmt.Fprintln(out, "   Kernel:", info.System.KernelVersion)
		fmt.Fprintln(out, "  Threads:", info.System.CPUThreads)
		fmt.Fprintf(out, "   Memory: %d MiB\n", info.System.MemoryBytes/1024/1024)
	} else {
		fmt.Fprintln(out, "  System information unavailable:", err)
	}

	printHeader(out, "Configuration")
	fmt.Fprintln(out, "         Environment:", cfg.Environment)
	fmt.Fprintln(out, "               Debug:", cfg.Debug)
	fmt.Fprintln(out, "    Database Dialect:", cfg.Database.Dialect)
	fmt.Fprintln(out, "   Modules Directory:", cfg.Modules.Directory)
	fmt.Fprintln(out, "       Public Prefix:", cfg.Modules.PublicPrefix)
	fmt.Fprintln(out, "      Tx Migrations:", cfg.Modules.TransactionalMigrations)
	fmt.Fprintln(out, "   Discovery Enabled:", cfg.DiscoveryActive())
	fmt.Fprintf(out, "     Discovery Ports: %d-%d\n", cfg.Discovery.PortStart, cfg.Discovery.PortEnd)
	fmt.Fprintln(out, "      Log Directory:", cfg.System.LogDirectory)
	fmt.Fprintln(out, "      Tmp Directory:", cfg.System.TmpDirectory)
	if includeEndpoints {
		fmt.Fprintf(out, "                 API: %s:%d\n", cfg.Api.Host, cfg.Api.Port)
		fmt.Fprintln(out, "      Discovery Host:", cfg.Discovery.Host)
		fmt.Fprintln(out, "     Allowed Origins:", strings.Join(cfg.AllowedOrigins, ", "))
		if cfg.Database.Dialect == "sqlite" {
			fmt.Fprintln(out, "       Database Path:", cfg.Database.Path)
		}
	} else {
		fmt.Fprintln(out, "                 API: redacted")
	}
	fmt.Fprintln(out, "         SSL Enabled:", cfg.Api.Ssl.Enabled)

	if modules != nil {
		printHeader(out, "Modules")
		list, err := modules.List(ctx, false)
		if err != nil {
			fmt.Fprintln(out, "Failed to list modules:", err)
		} else if len(list) == 0 {
			fmt.Fprintln(out, "No modules registered.")
		}
		for _, m := range list {
			state := "inactive"
			if m.Active {
				state = "active"
			}
			fmt.Fprintf(out, "%-24s %-10s %-9s %-8s updated %s\n", m.Slug, m.Version, m.Type, state, m.UpdatedAt.Format(time.RFC3339))
		}
	}

	if includeLogs {
		printHeader(out, "Latest SGO Logs")
		lines, err := tailFile(filepath.Join(cfg.System.LogDirectory, "sgo.log"), logLines)
		if err != nil {
			fmt.Fprintln(out, "No logs found or an error occurred while reading the logs:", err)
		}
		for _, l := range lines {
			fmt.Fprintln(out, l)
		}
	}

	return out.String(), nil
}

// tailFile returns the last n lines of the file at p.
func tailFile(p string, n int) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	return ring, errors.WithStack(scanner.Err())
}

func printHeader(w *strings.Builder, title string) {
	fmt.Fprintln(w, "\n|\n|", title)
	fmt.Fprintln(w, "| ------------------------------")
}
