package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medlog/medlog/internal/config"
	"github.com/medlog/medlog/internal/domain/logbook"
	"github.com/medlog/medlog/internal/domain/medcard"
	"github.com/medlog/medlog/internal/domain/profile"
	"github.com/medlog/medlog/internal/export"
	"github.com/medlog/medlog/internal/migrate"
	"github.com/medlog/medlog/internal/platform/docstore"
	"github.com/medlog/medlog/internal/platform/imaging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "medlog",
		Short:         "Medication logging and reporting for foster care records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles everything a subcommand needs. Construction runs the legacy
// migration first so the repositories never see a half-moved tree.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	store    *docstore.Store
	profiles *profile.Repo
	cards    *medcard.Repo
	logs     *logbook.Repo
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	runner := migrate.NewRunner(cfg.LegacyDataDir, cfg.DataDir, logger)
	if runner.Needed() {
		report, err := runner.Run()
		if err != nil {
			return nil, fmt.Errorf("legacy data migration: %w", err)
		}
		logger.Info().
			Int("copied", len(report.Copied)).
			Int("errors", len(report.Errors)).
			Msg("legacy data migrated")
	}

	store := docstore.New(cfg.DataDir)
	return &app{
		cfg:      cfg,
		log:      logger,
		store:    store,
		profiles: profile.NewRepo(store, logger),
		cards:    medcard.NewRepo(store, imaging.Default(), logger),
		logs:     logbook.NewRepo(store, logger),
	}, nil
}

// ---------------------------------------------------------------------------
// migrate
// ---------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Copy legacy flat-layout data into the current data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			runner := migrate.NewRunner(cfg.LegacyDataDir, cfg.DataDir, logger)

			if runner.Migrated() {
				fmt.Println("Legacy data already migrated; nothing to do.")
				return nil
			}
			if !runner.Needed() {
				fmt.Println("No legacy data found; nothing to do.")
				return nil
			}

			report, err := runner.Run()
			if err != nil {
				return err
			}

			fmt.Printf("Copied %d file(s), %d error(s).\n", len(report.Copied), len(report.Errors))
			for _, e := range report.Errors {
				fmt.Printf("  error: %s\n", e)
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// profile
// ---------------------------------------------------------------------------

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage patient profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			profiles, err := a.profiles.List()
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				fmt.Println("No profiles.")
				return nil
			}

			ids := make([]string, 0, len(profiles))
			for id := range profiles {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			fmt.Printf("%-24s %-24s %s\n", "ID", "NAME", "FOSTER HOME")
			for _, id := range ids {
				p := profiles[id]
				fmt.Printf("%-24s %-24s %s\n", id, p.ChildName, p.FosterHome)
			}
			return nil
		},
	})

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			a, err := newApp()
			if err != nil {
				return err
			}

			f := profile.Fields{ChildName: name}
			f.FosterHome, _ = cmd.Flags().GetString("foster-home")
			f.Allergies, _ = cmd.Flags().GetString("allergies")
			f.PrescriberName, _ = cmd.Flags().GetString("prescriber")
			f.PrescriberPhone, _ = cmd.Flags().GetString("prescriber-phone")
			f.Pharmacy, _ = cmd.Flags().GetString("pharmacy")
			f.PharmacyPhone, _ = cmd.Flags().GetString("pharmacy-phone")

			id, err := a.profiles.Create(f)
			if err != nil {
				if errors.Is(err, profile.ErrDuplicateID) {
					return fmt.Errorf("a profile for %q already exists", name)
				}
				return err
			}
			fmt.Printf("Profile created: %s\n", id)
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Child's full name (required)")
	createCmd.Flags().String("foster-home", "", "Foster home name")
	createCmd.Flags().String("allergies", "", "Allergies and contraindications")
	createCmd.Flags().String("prescriber", "", "Prescriber name")
	createCmd.Flags().String("prescriber-phone", "", "Prescriber phone")
	createCmd.Flags().String("pharmacy", "", "Pharmacy name")
	createCmd.Flags().String("pharmacy-phone", "", "Pharmacy phone")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <profile-id>",
		Short: "Delete a profile record (log files are kept on disk)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.profiles.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Profile deleted: %s\n", args[0])
			return nil
		},
	})

	return cmd
}

// ---------------------------------------------------------------------------
// log
// ---------------------------------------------------------------------------

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect administration logs",
	}

	showCmd := &cobra.Command{
		Use:   "show <profile-id>",
		Short: "Show a patient's logs, or one log in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			medicine, _ := cmd.Flags().GetString("medicine")
			month, _ := cmd.Flags().GetString("month")

			a, err := newApp()
			if err != nil {
				return err
			}

			if medicine == "" || month == "" {
				refs, err := a.logs.ListForProfile(args[0])
				if err != nil {
					return err
				}
				if len(refs) == 0 {
					fmt.Println("No logs.")
					return nil
				}
				fmt.Printf("%-20s %s\n", "MONTH", "MEDICINE")
				for _, ref := range refs {
					fmt.Printf("%-20s %s\n", ref.MonthYear, ref.MedicineName)
				}
				return nil
			}

			l, err := a.logs.Get(args[0], medicine, month)
			if err != nil {
				return err
			}

			fmt.Printf("%s %s (%s), %s\n", l.MedicineName, l.Strength, l.Dosage, l.MonthYear)
			fmt.Printf("%-5s %-12s %-10s %s\n", "DAY", "TIME", "INITIALS", "AMOUNT REMAINING")
			for _, e := range l.Entries {
				fmt.Printf("%-5d %-12s %-10s %s\n", e.Day, e.Time, e.Initials, e.AmountRemaining)
			}
			return nil
		},
	}
	showCmd.Flags().String("medicine", "", "Medicine name")
	showCmd.Flags().String("month", "", `Month label, e.g. "March 2025"`)
	cmd.AddCommand(showCmd)

	return cmd
}

// ---------------------------------------------------------------------------
// export
// ---------------------------------------------------------------------------

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <profile-id>",
		Short: "Render a log as editable, PDF, and spreadsheet documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			medicine, _ := cmd.Flags().GetString("medicine")
			month, _ := cmd.Flags().GetString("month")
			if medicine == "" || month == "" {
				return fmt.Errorf("--medicine and --month are required")
			}

			a, err := newApp()
			if err != nil {
				return err
			}

			p, err := a.profiles.Get(args[0])
			if err != nil {
				return err
			}
			l, err := a.logs.Get(args[0], medicine, month)
			if err != nil {
				return err
			}

			renderer := export.NewRenderer(a.cfg.Template, a.log)
			exporter := export.NewExporter(renderer, export.NewLibreOffice(a.cfg.Converter), a.log)

			opts := export.Options{
				OutputDir: a.cfg.ExportDir,
				Images:    cardImages(a, args[0], medicine),
			}
			opts.PDF, _ = cmd.Flags().GetBool("pdf")
			opts.Tabular, _ = cmd.Flags().GetBool("xlsx")
			if dir, _ := cmd.Flags().GetString("out"); dir != "" {
				opts.OutputDir = dir
			}

			res, err := exporter.ExportLog(context.Background(), p, l, opts)
			if err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", res.EditablePath)
			if res.TabularPath != "" {
				fmt.Printf("Wrote %s\n", res.TabularPath)
			}
			if res.PDFPath != "" {
				fmt.Printf("Wrote %s\n", res.PDFPath)
			}
			if res.PDFErr != nil {
				fmt.Printf("PDF skipped: %v\n", res.PDFErr)
			}
			return nil
		},
	}
	cmd.Flags().String("medicine", "", "Medicine name (required)")
	cmd.Flags().String("month", "", `Month label, e.g. "March 2025" (required)`)
	cmd.Flags().String("out", "", "Output directory (defaults to MEDLOG_EXPORT_DIR)")
	cmd.Flags().Bool("pdf", false, "Also derive a print-ready PDF")
	cmd.Flags().Bool("xlsx", false, "Also write a tabular spreadsheet")
	return cmd
}

// cardImages collects the stored image paths for a medicine's card. A
// missing card just means nothing to attach.
func cardImages(a *app, profileID, medicine string) []string {
	card, err := a.cards.Get(profileID, medicine)
	if err != nil {
		return nil
	}
	paths := make([]string, 0, len(card.Images))
	for _, ref := range card.Images {
		paths = append(paths, a.cards.ImagePath(profileID, medicine, ref.StoredName))
	}
	return paths
}

// ---------------------------------------------------------------------------
// seed
// ---------------------------------------------------------------------------

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Populate the data directory with sample patients and logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			return seedSampleData(a)
		},
	}
}
