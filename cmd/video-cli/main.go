// Command video-cli turns a topic into a narrated slideshow video.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/ai-video-generator/internal/awsboot"
	"github.com/fpang/ai-video-generator/internal/cli"
	"github.com/fpang/ai-video-generator/internal/config"
	"github.com/fpang/ai-video-generator/internal/filehandler"
	"github.com/fpang/ai-video-generator/internal/logging"
	"github.com/fpang/ai-video-generator/internal/session"
	"github.com/fpang/ai-video-generator/internal/slideshow"
	"github.com/fpang/ai-video-generator/internal/videogen"
)

// CLI flags
var (
	topicFlag        string
	sizeFlag         string
	voiceFlag        string
	outputDirFlag    string
	refineFlag       bool
	imageBackendFlag string
	concurrencyFlag  int
	configFlag       string
	bundleFlag       bool
	uploadFlag       bool
	verboseFlag      bool
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "video-cli",
	Short: "Generate a narrated slideshow video from a topic",
	Long: `video-cli asks Gemini for a short narration script about a topic, generates
one image per sentence, synthesizes a single voice track for the whole script
and renders the images in equal time slots under the narration with ffmpeg.

Every run writes into its own session directory under the output directory.

Examples:
  video-cli --topic "The process of photosynthesis"
  video-cli -t "How volcanoes form" -s portrait -v deep
  video-cli -t "Black holes" --refine-with-llm --image-backend gemini --concurrency 4
  video-cli  # Interactive mode - prompts for the topic`,
	SilenceUsage: true,
	RunE:         runGenerate,
}

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List the available narration voices",
	Run: func(cmd *cobra.Command, args []string) {
		for _, v := range slideshow.Voices() {
			marker := " "
			if v == slideshow.DefaultVoice {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s %s\n", marker, v.String(), v.Label())
		}
	},
}

var sizesCmd = &cobra.Command{
	Use:   "sizes",
	Short: "List the available video sizes",
	Run: func(cmd *cobra.Command, args []string) {
		for _, r := range slideshow.Resolutions() {
			marker := " "
			if r == slideshow.DefaultResolution {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-10s %-6s %s\n", marker, r.String(), r.AspectRatio(), r.Label())
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "video-cli %s (built %s)\n", commitHash, buildTime)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&topicFlag, "topic", "t", "", "Topic of the video")
	f.StringVarP(&sizeFlag, "size", "s", "", "Video size: square, portrait or landscape (default square)")
	f.StringVarP(&voiceFlag, "voice", "v", "", "Narration voice, see 'video-cli voices' (default narrator)")
	f.StringVarP(&outputDirFlag, "output-dir", "o", "", "Directory for session output (default output)")
	f.BoolVar(&refineFlag, "refine-with-llm", false, "Rewrite each image prompt with the text model")
	f.StringVar(&imageBackendFlag, "image-backend", "", "Image backend: imagen or gemini (default imagen)")
	f.IntVar(&concurrencyFlag, "concurrency", 0, "Image requests in flight (default 1)")
	f.StringVar(&configFlag, "config", "", "YAML config file (default video.yaml when present)")
	f.BoolVar(&bundleFlag, "bundle", false, "Also write a zip bundle of script, audio and video")
	f.BoolVar(&uploadFlag, "upload", false, "Publish artifacts to the configured S3 bucket")
	f.BoolVar(&verboseFlag, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(voicesCmd, sizesCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyFlags overrides cfg with the flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("size") {
		if err := cfg.Resolution.UnmarshalText([]byte(sizeFlag)); err != nil {
			return err
		}
	}
	if f.Changed("voice") {
		if err := cfg.Voice.UnmarshalText([]byte(voiceFlag)); err != nil {
			return err
		}
	}
	if f.Changed("output-dir") {
		cfg.OutputDir = outputDirFlag
	}
	if f.Changed("refine-with-llm") {
		cfg.RefineWithLLM = refineFlag
	}
	if f.Changed("image-backend") {
		cfg.ImageBackend = strings.ToLower(imageBackendFlag)
	}
	if f.Changed("concurrency") {
		cfg.Concurrency = concurrencyFlag
	}
	if f.Changed("bundle") {
		cfg.Bundle = bundleFlag
	}
	return cfg.Validate()
}

// runGenerate is the main execution logic called by Cobra.
func runGenerate(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	logging.Init()
	if verboseFlag {
		logging.SetVerbose()
	}

	cfg, err := config.Load(configFlag)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	if err := filehandler.CheckFFmpegAvailable(); err != nil {
		return err
	}
	ffprobeOK := filehandler.IsFFprobeAvailable()
	if !ffprobeOK {
		log.Warn().Msg("ffprobe not found; narration length will be computed from the audio data")
	}

	topic := topicFlag
	if strings.TrimSpace(topic) == "" {
		topic = cli.PromptForTopic()
	}
	req := slideshow.Request{Topic: slideshow.Topic(topic), Resolution: cfg.Resolution, Voice: cfg.Voice}
	if err := req.Validate(); err != nil {
		return err
	}

	outputDir, err := cli.ResolveOutputDir(cfg.OutputDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := cli.InitGeminiClient(ctx)

	var clients *awsboot.Clients
	if uploadFlag {
		if cfg.AWS.BucketName == "" {
			return errors.New("--upload requires VIDEO_BUCKET_NAME or aws.bucket_name")
		}
		clients, err = awsboot.Init(ctx, cfg.AWS)
		if err != nil {
			return err
		}
	}

	runner := videogen.NewRunner(videogen.NewPipeline(cfg, client), clients)
	runner.Bundle = cfg.Bundle
	runner.RunTimeout = cfg.RunTimeout

	startup := logging.NewStartupLogger("video-cli").
		CommitHash(commitHash).
		BuildTime(buildTime).
		Generation(videogen.StartupSettings(cfg)).
		Media(true, ffprobeOK)
	if clients != nil {
		startup.Resources(awsboot.ResourceSummary(cfg.AWS))
	}
	startup.Log()

	sess := session.New(outputDir)
	log.Info().
		Str("sessionId", sess.ID).
		Str("dir", sess.Dir()).
		Msg("Session created")

	start := time.Now()
	out, err := runner.Run(ctx, sess, req)
	if err != nil {
		printFailure(out, err)
		return err
	}
	printSummary(out, time.Since(start))
	return nil
}

func printSummary(out *videogen.Outcome, elapsed time.Duration) {
	res := out.Result
	fmt.Println()
	fmt.Println("Video ready")
	fmt.Printf("  Video:    %s\n", res.Video.Path)
	fmt.Printf("  Length:   %s\n", cli.FormatDurationShort(time.Duration(res.Video.Duration*float64(time.Second))))
	fmt.Printf("  Images:   %d of %d segments\n", len(res.Images), len(res.Segments))
	for _, skip := range res.Skips {
		fmt.Printf("            %s\n", skip)
	}
	fmt.Printf("  Elapsed:  %s\n", cli.FormatDurationShort(elapsed))
	if bundle := out.Session.BundlePath(); fileExists(bundle) {
		fmt.Printf("  Bundle:   %s\n", bundle)
	}
	for name, url := range out.URLs {
		fmt.Printf("  %-9s %s\n", name+":", url)
	}
}

func printFailure(out *videogen.Outcome, err error) {
	var runErr *slideshow.RunError
	if errors.As(err, &runErr) {
		log.Error().
			Str("kind", runErr.Kind.String()).
			Str("stage", runErr.Stage.String()).
			Msg(runErr.Message)
	}
	if out != nil && out.Result != nil && len(out.Result.Skips) > 0 {
		for _, skip := range out.Result.Skips {
			log.Warn().Msg(skip.String())
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
