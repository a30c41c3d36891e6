// Command pdfannot analyzes a PDF, persists the annotation model to SQLite,
// and prints a summary report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/wudi/pdfannot/analyzer"
	"github.com/wudi/pdfannot/annotate"
	"github.com/wudi/pdfannot/observability"
	"github.com/wudi/pdfannot/ocr"
	"github.com/wudi/pdfannot/ocr/tesseract"
	"github.com/wudi/pdfannot/store"
)

type ocrConfig struct {
	Enabled           bool     `yaml:"enabled"`
	PrimaryLanguage   string   `yaml:"primary_language"`
	FallbackLanguages []string `yaml:"fallback_languages"`
	MaxImageSize      int      `yaml:"max_image_size"`
}

type parserConfig struct {
	ExtractImages      bool    `yaml:"extract_images"`
	ExtractText        bool    `yaml:"extract_text"`
	DetectCaptions     bool    `yaml:"detect_captions"`
	AnalyzeHierarchy   bool    `yaml:"analyze_hierarchy"`
	MaxCaptionDistance float64 `yaml:"max_caption_distance"`
	MinImageSize       int     `yaml:"min_image_size"`
}

type appConfig struct {
	Database string       `yaml:"database"`
	OCR      ocrConfig    `yaml:"ocr"`
	Parser   parserConfig `yaml:"parser"`
}

func defaultConfig() appConfig {
	return appConfig{
		Database: "annotations.db",
		Parser: parserConfig{
			ExtractImages:      true,
			ExtractText:        true,
			DetectCaptions:     true,
			AnalyzeHierarchy:   true,
			MaxCaptionDistance: 50,
			MinImageSize:       32,
		},
	}
}

type options struct {
	pdfPath string
	format  string
	verbose bool
	cfg     appConfig
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfannot: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfannot: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: pdfannot [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	configPath := flag.String("config", "", "YAML configuration file")
	database := flag.String("db", "", "SQLite database path (overrides config)")
	format := flag.String("format", "text", "Report format: text, json, markdown or html")
	enableOCR := flag.Bool("ocr", false, "Enable OCR enrichment (overrides config)")
	lang := flag.String("lang", "", "Primary OCR language (overrides config)")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	opts.pdfPath = flag.Arg(0)
	opts.verbose = *verbose

	switch *format {
	case "text", "json", "markdown", "html":
		opts.format = *format
	default:
		return options{}, fmt.Errorf("unknown format %q", *format)
	}

	opts.cfg = defaultConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return options{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &opts.cfg); err != nil {
			return options{}, fmt.Errorf("parse config %s: %w", *configPath, err)
		}
	}
	if *database != "" {
		opts.cfg.Database = *database
	}
	if *enableOCR {
		opts.cfg.OCR.Enabled = true
	}
	if *lang != "" {
		opts.cfg.OCR.PrimaryLanguage = *lang
	}
	return opts, nil
}

func run(opts options) error {
	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	logger := observability.NewZerologLogger(zl)

	data, err := os.ReadFile(opts.pdfPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.pdfPath, err)
	}

	st := store.New(opts.cfg.Database, store.WithMkdirAll(), store.WithLogger(logger))
	defer st.Close()

	var parserOpts []analyzer.Option
	pc := opts.cfg.Parser
	if !pc.ExtractImages {
		parserOpts = append(parserOpts, analyzer.WithoutImages())
	}
	if !pc.ExtractText {
		parserOpts = append(parserOpts, analyzer.WithoutText())
	}
	if !pc.DetectCaptions {
		parserOpts = append(parserOpts, analyzer.WithoutCaptions())
	}
	if !pc.AnalyzeHierarchy {
		parserOpts = append(parserOpts, analyzer.WithoutHierarchy())
	}
	if pc.MaxCaptionDistance > 0 {
		parserOpts = append(parserOpts, analyzer.WithMaxCaptionDistance(pc.MaxCaptionDistance))
	}
	if pc.MinImageSize > 0 {
		parserOpts = append(parserOpts, analyzer.WithMinImageSize(pc.MinImageSize))
	}
	parserOpts = append(parserOpts, analyzer.WithLogger(logger))
	parser := analyzer.New(parserOpts...)

	svcOpts := []annotate.Option{annotate.WithLogger(logger)}
	if oc := opts.cfg.OCR; oc.Enabled {
		svcOpts = append(svcOpts, annotate.WithRecognizer(func() annotate.Recognizer {
			return ocr.NewAdapter(tesseract.New(),
				ocr.WithPrimaryLanguage(oc.PrimaryLanguage),
				ocr.WithFallbackLanguages(oc.FallbackLanguages...),
				ocr.WithMaxImageSize(oc.MaxImageSize),
				ocr.WithAdapterLogger(logger))
		}))
	}
	svc := annotate.New(parser, st, svcOpts...)

	report, err := svc.Analyze(context.Background(), annotate.Request{
		Name:      opts.pdfPath,
		MediaType: "application/pdf",
		Data:      data,
	})
	if err != nil {
		return err
	}

	switch opts.format {
	case "json":
		out, err := annotate.ExportJSON(report)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	case "markdown":
		fmt.Print(annotate.ExportMarkdown(report))
	case "html":
		out, err := annotate.ExportHTML(report)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	default:
		printSummary(report)
	}
	return nil
}

func printSummary(r *annotate.Report) {
	fmt.Printf("Document %s (%s)\n", r.Name, r.DocumentID)
	fmt.Printf("  Pages:          %d\n", r.PageCount)
	fmt.Printf("  Sections:       %d (%d images, %d text)\n", r.TotalSections, r.TotalImages, r.TotalTextSections)
	fmt.Printf("  With caption:   %d (%.2f%%)\n", r.ImagesWithCaption, r.CaptionPercentage)
	if r.TotalImages > 0 {
		s := r.AverageImageSize
		fmt.Printf("  Avg image size: %.2f x %.2f cm\n", s.WidthCm, s.HeightCm)
	}
	if r.Metadata.OCR.Enabled {
		fmt.Printf("  OCR:            %d images (%s)\n", r.Metadata.OCR.ImageCount, strings.Join(r.Metadata.OCR.Languages, ", "))
	}
	for _, w := range r.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}
