package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"registrydash/internal/config"
	"registrydash/internal/dashboard"
	"registrydash/internal/dataprocessing"
	"registrydash/internal/infrastructure"
	"registrydash/internal/services"
	"registrydash/internal/validation"
	"registrydash/pkg/contracts"
	"registrydash/pkg/contracts/domain"
)

// options are the parsed command line flags.
type options struct {
	file       string
	dataDir    string
	sheet      string
	mapFile    string
	view       string
	labels     []string
	explicit   bool
	export     string
	scope      string
	chart      string
	summary    bool
	listLabels bool
	out        string
	logLevel   string
	version    bool
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	if opts.version {
		fmt.Println(contracts.GetVersionString())
		return
	}

	logger := infrastructure.NewLogger(opts.logLevel, os.Stderr)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, opts, os.Stdout, logger); err != nil {
		logger.Error("Report failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var (
		opts   options
		labels string
	)

	fs := flag.NewFlagSet("registry-report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.file, "file", "", "registry workbook (.xlsx) or csv; defaults to the newest file in -data")
	fs.StringVar(&opts.dataDir, "data", "data", "directory searched when -file is not set")
	fs.StringVar(&opts.sheet, "sheet", "", "worksheet name (default: first sheet with the registry headers)")
	fs.StringVar(&opts.mapFile, "map", "", "category mapping yaml file")
	fs.StringVar(&opts.view, "view", string(domain.ViewExecutive), "view to print: overview, creation, modification, services, executive")
	fs.StringVar(&labels, "labels", "", "comma separated label filter; an explicit empty value keeps every row")
	fs.StringVar(&opts.export, "export", "", "export the table instead of a view: csv or xlsx")
	fs.StringVar(&opts.scope, "scope", services.ScopeFiltered, "export scope: filtered or full")
	fs.StringVar(&opts.chart, "chart", "", "render one chart of -view as png")
	fs.BoolVar(&opts.summary, "summary", false, "print headline totals and statistics")
	fs.BoolVar(&opts.listLabels, "list-labels", false, "print every label with its category")
	fs.StringVar(&opts.out, "out", "", "output file (default stdout for json, required for png and xlsx)")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	fs.BoolVar(&opts.version, "version", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "labels" {
			opts.explicit = true
		}
	})
	if opts.explicit {
		opts.labels = []string{labels}
	}

	modes := 0
	for _, set := range []bool{opts.export != "", opts.chart != "", opts.summary, opts.listLabels} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		fmt.Fprintln(stderr, "only one of -export, -chart, -summary and -list-labels may be set")
		return options{}, fmt.Errorf("conflicting modes")
	}
	return opts, nil
}

func run(ctx context.Context, opts options, stdout io.Writer, logger *slog.Logger) error {
	ctx = infrastructure.EnsureTraceID(ctx)
	validator := validation.NewFileValidator(logger)

	path := opts.file
	if path == "" {
		latest, err := validator.FindLatestSource(opts.dataDir)
		if err != nil {
			return err
		}
		path = latest
	}
	if err := validator.ValidateSourceFile(path); err != nil {
		return err
	}

	source, err := dataprocessing.SourceFromPath(path, opts.sheet)
	if err != nil {
		return err
	}
	classifier, err := services.ClassifierFromConfig(config.DataConfig{CategoryMapFile: opts.mapFile})
	if err != nil {
		return err
	}

	svc := services.NewDashboardService(source,
		dataprocessing.NewLoaderWithLogger(classifier, logger),
		services.DashboardOptions{Logger: logger})

	// The CLI has no page to degrade: a load failure ends the run.
	if _, err := svc.Table(ctx); err != nil {
		return err
	}

	sel := svc.ResolveSelection(opts.labels, opts.explicit)

	switch {
	case opts.export != "":
		if opts.export == services.FormatXLSX && opts.out == "" {
			return fmt.Errorf("-out is required for xlsx exports")
		}
		return writeOutput(opts.out, stdout, validator, func(w io.Writer) error {
			return svc.Export(ctx, opts.export, opts.scope, sel, w)
		})

	case opts.chart != "":
		if opts.out == "" {
			return fmt.Errorf("-out is required for chart images")
		}
		return writeOutput(opts.out, stdout, validator, func(w io.Writer) error {
			return svc.RenderChart(ctx, domain.ViewName(opts.view), opts.chart, sel, w)
		})

	case opts.summary:
		sum, err := svc.Summary(ctx)
		if err != nil {
			return err
		}
		return writeOutput(opts.out, stdout, validator, jsonWriter(sum))

	case opts.listLabels:
		labels, err := svc.Labels(ctx)
		if err != nil {
			return err
		}
		return writeOutput(opts.out, stdout, validator, jsonWriter(labels))

	default:
		res, err := svc.View(ctx, domain.ViewName(strings.ToLower(opts.view)), sel)
		if err != nil {
			if errors.Is(err, dashboard.ErrUnknownView) {
				return fmt.Errorf("%w; expected one of %v", err, domain.AllViews)
			}
			return err
		}
		return writeOutput(opts.out, stdout, validator, jsonWriter(res))
	}
}

func jsonWriter(v interface{}) func(io.Writer) error {
	return func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// writeOutput sends write to the file at path, or to stdout when path is
// empty. A failed write removes the partial file.
func writeOutput(path string, stdout io.Writer, validator *validation.FileValidator, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}

	if err := validator.ValidateOutputDirectory(filepath.Dir(path)); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
