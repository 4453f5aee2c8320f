package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/model/video"
	"reelforge/internal/pkg/id"
	"reelforge/internal/service"
	"reelforge/internal/service/task"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate videos synchronously",
	Long: `Run one video generation task in the foreground.
Unset flags fall back to the ui.* defaults from the configuration.`,
	Example: `  reelforge generate --subject "why cats purr"
  reelforge generate --script-file script.txt --source local --material a.mp4 --material b.jpg
  reelforge generate --subject "why cats purr" --script-only`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	flags := generateCmd.Flags()
	flags.String("task-id", "", "task id (default: random uuid)")
	flags.String("subject", "", "video subject")
	flags.String("script", "", "video script, skips script generation")
	flags.String("script-file", "", "read the video script from a file")
	flags.StringSlice("terms", nil, "search terms, skips keyword generation")
	flags.String("language", "", "script language")
	flags.String("source", "", "material source (pexels/pixabay/local)")
	flags.StringArray("material", nil, "local material file, repeatable")
	flags.String("aspect", "", "video aspect (portrait/landscape)")
	flags.String("concat", "", "concat mode (sequential/random)")
	flags.String("transition", "", "transition mode (none/shuffle/fade_in/fade_out/slide_in/slide_out)")
	flags.Int("clip-duration", 0, "max clip duration in seconds")
	flags.Int("count", 1, "number of videos to generate")
	flags.String("voice", "", "voice name, e.g. azure:en-US-JennyNeural")
	flags.Float64("voice-rate", 0, "voice rate")
	flags.String("bgm", "", "background music type (none/random/custom)")
	flags.String("bgm-file", "", "background music file for custom type")
	flags.Bool("no-subtitle", false, "disable subtitles")
	flags.Bool("quiet", false, "do not print progress")
	flags.Bool("script-only", false, "only generate the script, plus search terms for remote sources")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg.App.WorkDir == "" {
		return fmt.Errorf("app.work_dir is required")
	}

	params, err := paramsFromFlags(cmd, cfg.UI)
	if err != nil {
		return err
	}

	taskID, _ := cmd.Flags().GetString("task-id")
	if taskID == "" {
		taskID = id.New()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pipeline, err := service.NewPipeline(ctx, cfg)
	if err != nil {
		return err
	}

	if scriptOnly, _ := cmd.Flags().GetBool("script-only"); scriptOnly {
		return cliError(printScript(ctx, cmd.OutOrStdout(), pipeline.Orchestrator, params))
	}

	var reporters []task.Reporter
	if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
		reporters = append(reporters, progressPrinter(cmd.ErrOrStderr()))
	}
	if !cfg.App.HideLog {
		reporters = append(reporters, task.NewLogReporter(taskID))
	}

	res, err := pipeline.Orchestrator.Start(ctx, taskID, params, task.Multi(reporters...))
	if err != nil {
		return cliError(err)
	}

	out := cmd.OutOrStdout()
	if res.VoiceFallback {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: voice synthesis failed, the fallback voice was used")
	}
	for _, v := range res.Videos {
		fmt.Fprintln(out, v)
	}
	return nil
}

// copywriter 生成文案和关键词
type copywriter interface {
	GenerateScript(ctx context.Context, subject, language string) (string, error)
	GenerateTerms(ctx context.Context, subject, script string) ([]string, error)
}

// printScript 输出文案，远程素材来源时再输出一行逗号分隔的关键词
// 已经给出文案时只生成关键词
func printScript(ctx context.Context, w io.Writer, writer copywriter, p video.VideoParams) error {
	script := strings.TrimSpace(p.VideoScript)
	if script == "" {
		var err error
		if script, err = writer.GenerateScript(ctx, p.VideoSubject, p.VideoLanguage); err != nil {
			return err
		}
	}
	fmt.Fprintln(w, script)

	if !p.VideoSource.IsRemote() {
		return nil
	}
	terms, err := writer.GenerateTerms(ctx, p.VideoSubject, script)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Join(terms, ", "))
	return nil
}

func cliError(err error) error {
	if te, ok := task.AsError(err); ok {
		return fmt.Errorf("%s: %s", te.Kind, te.Message)
	}
	return err
}

// paramsFromFlags 以 ui.* 默认值为底，覆盖命令行显式设置的参数
func paramsFromFlags(cmd *cobra.Command, ui config.UIConfig) (video.VideoParams, error) {
	p := video.FromUIConfig(ui)
	flags := cmd.Flags()

	str := func(name string, apply func(string)) {
		if flags.Changed(name) {
			v, _ := flags.GetString(name)
			apply(strings.TrimSpace(v))
		}
	}

	str("subject", func(v string) { p.VideoSubject = v })
	str("script", func(v string) { p.VideoScript = v })
	str("language", func(v string) { p.VideoLanguage = v })
	str("source", func(v string) { p.VideoSource = video.VideoSource(v) })
	str("aspect", func(v string) { p.VideoAspect = video.Aspect(v) })
	str("concat", func(v string) { p.VideoConcatMode = video.ConcatMode(v) })
	str("transition", func(v string) { p.VideoTransitionMode = video.TransitionMode(v) })
	str("voice", func(v string) { p.VoiceName = v })
	str("bgm", func(v string) { p.BgmType = video.BgmType(v) })
	str("bgm-file", func(v string) {
		p.BgmFile = v
		if !flags.Changed("bgm") {
			p.BgmType = video.BgmCustom
		}
	})

	if flags.Changed("script-file") {
		path, _ := flags.GetString("script-file")
		data, err := os.ReadFile(path)
		if err != nil {
			return p, fmt.Errorf("read script file: %w", err)
		}
		p.VideoScript = strings.TrimSpace(string(data))
	}
	if flags.Changed("terms") {
		p.VideoTerms, _ = flags.GetStringSlice("terms")
	}
	if flags.Changed("material") {
		files, _ := flags.GetStringArray("material")
		p.VideoMaterials = make([]video.MaterialInfo, 0, len(files))
		for _, f := range files {
			p.VideoMaterials = append(p.VideoMaterials, video.MaterialInfo{Provider: string(video.VideoSourceLocal), URL: f})
		}
		if !flags.Changed("source") {
			p.VideoSource = video.VideoSourceLocal
		}
	}
	if flags.Changed("clip-duration") {
		p.VideoClipDuration, _ = flags.GetInt("clip-duration")
	}
	if flags.Changed("count") {
		p.VideoCount, _ = flags.GetInt("count")
	}
	if flags.Changed("voice-rate") {
		p.VoiceRate, _ = flags.GetFloat64("voice-rate")
	}
	if noSub, _ := flags.GetBool("no-subtitle"); noSub {
		p.SubtitleEnabled = false
	}
	return p, nil
}

// progressPrinter 每次进度输出一行
func progressPrinter(w io.Writer) task.Reporter {
	return task.ReporterFunc(func(fraction float64, stage, detail string) {
		const width = 30
		filled := int(fraction * width)
		bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
		fmt.Fprintf(w, "[%s] %3.0f%% %-9s %s\n", bar, fraction*100, stage, detail)
	})
}
