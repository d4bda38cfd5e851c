package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ivlev/bubblecrop/internal/analyzer"
	"github.com/ivlev/bubblecrop/internal/config"
	"github.com/ivlev/bubblecrop/internal/cropper"
	"github.com/ivlev/bubblecrop/internal/engine"
	"github.com/ivlev/bubblecrop/internal/logger"
	"github.com/ivlev/bubblecrop/internal/manifest"
	"github.com/ivlev/bubblecrop/internal/source"
	"github.com/ivlev/bubblecrop/internal/storage"
	"github.com/ivlev/bubblecrop/internal/system"
)

const (
	appName         = "bubblecrop"
	defaultEndpoint = "http://localhost:5000/predict"
	inputDir        = "input"
)

var (
	Version   = "0.1.0"
	CommitSha = "unknown"
)

type options struct {
	output       string
	configPath   string
	classesPath  string
	detector     string
	endpoint     string
	modelPath    string
	manifestPath string
	s3Bucket     string
	s3Prefix     string
	logLevel     string
	logFile      string
	showVersion  bool
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, opts *options, args []string) error {
	if opts.showVersion {
		fmt.Printf("%s version: %s-%s\n", appName, Version, CommitSha)
		return nil
	}

	log, err := logger.New(logger.Options{Level: opts.logLevel, File: opts.logFile})
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfigFromFile(opts.configPath)
	if err != nil {
		return err
	}

	classes, err := config.LoadClasses(opts.classesPath)
	if err != nil {
		return err
	}
	bubbleID, err := classes.BubbleID()
	if err != nil {
		return err
	}

	inputPath := ""
	if len(args) > 0 {
		inputPath = args[0]
	} else {
		latest, err := system.FindLatestInput(inputDir)
		if err != nil {
			return fmt.Errorf("%w. Pass an input path or put files in %s/", err, inputDir)
		}
		inputPath = latest
		log.Infof("[*] Selected input: %s", inputPath)
	}

	det, err := analyzer.NewDetector(opts.detector, analyzer.Options{
		Endpoint:      opts.endpoint,
		ModelPath:     opts.modelPath,
		BubbleClassID: bubbleID,
	})
	if err != nil {
		return err
	}
	if c, ok := det.(io.Closer); ok {
		defer c.Close()
	}
	if hd, ok := det.(*analyzer.HTTPDetector); ok {
		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := hd.CheckHealth(healthCtx); err != nil {
			log.WithField("endpoint", opts.endpoint).Warnf("[!] Inference service health check failed: %v", err)
		}
		cancel()
	}

	outputDir := opts.output
	var sink storage.Sink = storage.LocalSink{}
	if opts.s3Bucket != "" {
		// Object keys are relative to the output directory, so it must be known up front.
		if outputDir == "" {
			outputDir = system.DefaultOutputDir(log)
		}
		mirror, err := storage.NewS3Mirror(sink, outputDir, opts.s3Bucket, opts.s3Prefix)
		if err != nil {
			return err
		}
		sink = mirror
	}

	c := cropper.NewCropper(det, sink, cfg, bubbleID, log)
	project := engine.NewProject(c, source.Options{DPI: cfg.DPI}, log)
	log.WithFields(logrus.Fields{
		"run_id":   project.RunID,
		"detector": opts.detector,
		"format":   cfg.OutputFormat,
	}).Debug("Starting run")

	m, err := project.Process(ctx, inputPath, outputDir)
	if err != nil {
		return err
	}

	if opts.manifestPath != "" {
		if err := manifest.WriteManifest(m, opts.manifestPath); err != nil {
			return fmt.Errorf("writing manifest: %w", err)
		}
		log.Infof("[*] Manifest written to %s", opts.manifestPath)
	}

	color.New(color.FgGreen).Printf("[+] Done: %d bubbles from %d images written to %s\n",
		m.Written(), m.Processed(), m.OutputDir)
	return nil
}

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   appName + " [flags] [input]",
		Short: "Crop comic pages into strips around speech bubbles",
		Long: color.New(color.FgHiMagenta).Sprintf(
			"Detects speech bubbles in a page image, a folder, a zip/cbz archive or a PDF and crops each page into strips. %s",
			color.New(color.FgBlue).Sprintf("(%s)", Version),
		),
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "", "Output directory (default: Documents/BubbleCrop)")
	flags.StringVarP(&opts.configPath, "config", "c", "config.json", "Settings file (.json, .yaml or .toml)")
	flags.StringVar(&opts.classesPath, "classes", "classes.json", "Category map of the detector")
	flags.StringVarP(&opts.detector, "detector", "d", "http", "Detector: http, contrast, onnx")
	flags.StringVar(&opts.endpoint, "endpoint", envOr("BUBBLECROP_INFERENCE_URL", defaultEndpoint), "Inference service URL for the http detector")
	flags.StringVar(&opts.modelPath, "model", "models/best.onnx", "ONNX model for the onnx detector")
	flags.StringVar(&opts.manifestPath, "manifest", "", "Write a YAML run manifest to this path")
	flags.StringVar(&opts.s3Bucket, "s3-bucket", os.Getenv("BUBBLECROP_S3_BUCKET"), "Mirror written strips to this S3 bucket")
	flags.StringVar(&opts.s3Prefix, "s3-prefix", "", "Key prefix for mirrored strips")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.StringVar(&opts.logFile, "log-file", system.DefaultLogFile(), "Rotating log file, empty to disable")
	flags.BoolVarP(&opts.showVersion, "version", "v", false, "Print version and exit")

	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "[-] Error: %v\n", err)
		os.Exit(1)
	}
}
