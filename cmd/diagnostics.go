package cmd

import (
	"fmt"

	"github.com/apex/log"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/internal/database"
	"github.com/priyxstudio/sgo/internal/diagnostics"
	"github.com/priyxstudio/sgo/loggers/cli"
	"github.com/priyxstudio/sgo/modules"
)

const DefaultLogLines = 200

var diagnosticsArgs struct {
	IncludeEndpoints   bool
	IncludeLogs        bool
	ReviewBeforeUpload bool
	UploadAPIURL       string
	LogLines           int
}

func newDiagnosticsCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "diagnostics",
		Short: "Collect and report information about this sgo instance to assist in debugging.",
		PreRun: func(cmd *cobra.Command, args []string) {
			initConfig()
			log.SetHandler(cli.Default)
		},
		RunE: diagnosticsCmdRun,
	}

	command.Flags().StringVar(&diagnosticsArgs.UploadAPIURL, "upload-api-url", diagnostics.DefaultUploadAPIURL, "the mclo.gs compatible API endpoint to use for uploads")
	command.Flags().IntVar(&diagnosticsArgs.LogLines, "log-lines", DefaultLogLines, "the number of log lines to include in the report")

	return command
}

// diagnosticsCmdRun collects the version, system, configuration and module
// registry of this instance and optionally uploads the report.
func diagnosticsCmdRun(cmd *cobra.Command, _ []string) error {
	defaultTrue := func() huh.Accessor[bool] {
		accessor := huh.EmbeddedAccessor[bool]{}
		accessor.Set(true)
		return &accessor
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Do you want to include endpoints (hosts, database location and allowed origins)?").
				Value(&diagnosticsArgs.IncludeEndpoints),
			huh.NewConfirm().
				Title("Do you want to include the latest logs?").
				Accessor(defaultTrue()).
				Value(&diagnosticsArgs.IncludeLogs),
			huh.NewConfirm().
				Title(fmt.Sprintf("Do you want to review the collected data before uploading to %s?", diagnosticsArgs.UploadAPIURL)).
				Description("The data, especially the logs, might contain sensitive information, so you should review it. You will be asked again if you want to upload.").
				Accessor(defaultTrue()).
				Value(&diagnosticsArgs.ReviewBeforeUpload),
		),
	)
	if err := form.Run(); err != nil {
		if err == huh.ErrUserAborted {
			return nil
		}
		return err
	}

	var lister diagnostics.ModuleLister
	if db, dialect, err := database.Open(config.Get().Database, false); err != nil {
		log.WithField("error", err).Warn("could not open database, modules are left out of the report")
	} else {
		if sql, err := db.DB(); err == nil {
			defer sql.Close()
		}
		lister = modules.NewRegistry(db, dialect, nil)
	}

	report, err := diagnostics.GenerateDiagnosticsReport(
		cmd.Context(),
		lister,
		diagnosticsArgs.IncludeEndpoints,
		diagnosticsArgs.IncludeLogs,
		diagnosticsArgs.LogLines,
	)
	if err != nil {
		return err
	}

	fmt.Println("\n---------------  generated report  ---------------")
	fmt.Println(report)
	fmt.Print("---------------   end of report    ---------------\n\n")

	if diagnosticsArgs.ReviewBeforeUpload {
		upload := false
		if err := huh.NewConfirm().Title("Upload to " + diagnosticsArgs.UploadAPIURL + "?").Value(&upload).Run(); err != nil || !upload {
			return nil
		}
	}

	u, err := diagnostics.UploadReport(cmd.Context(), diagnosticsArgs.UploadAPIURL, report)
	if err != nil {
		return err
	}
	fmt.Println("Your report is available here: ", u)
	return nil
}
