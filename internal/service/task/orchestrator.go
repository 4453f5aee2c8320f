package task

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"reelforge/internal/model/video"
	"reelforge/internal/pkg/logger"
	"reelforge/internal/pkg/videotools"
)

// FallbackVoiceText 配音失败时使用的固定文本
const FallbackVoiceText = "This is a example voice. if you hear this, the voice synthesis failed with the original content."

// Stage 编排阶段
type Stage string

const (
	StageValidate  Stage = "validate"
	StageScript    Stage = "script"
	StageTerms     Stage = "terms"
	StageVoice     Stage = "voice"
	StageMaterials Stage = "materials"
	StageCompose   Stage = "compose"
	StageDone      Stage = "done"
	StageFailed    Stage = "failed"
)

func (s Stage) String() string { return string(s) }

// stageEnd 各阶段完成时的累计进度
var stageEnd = map[Stage]float64{
	StageValidate:  0.05,
	StageScript:    0.15,
	StageTerms:     0.25,
	StageVoice:     0.40,
	StageMaterials: 0.60,
	StageCompose:   0.98,
	StageDone:      1.0,
}

// Composer 合成单个成片
type Composer interface {
	Compose(ctx context.Context, req ComposeRequest) error
}

// ComposeRequest 单个成片的合成输入
type ComposeRequest struct {
	TaskID     string
	Index      int                    // 第几个成片，从 0 开始
	Params     video.VideoParams      // 任务参数（只读副本）
	Narration  string                 // 实际配音的文本，字幕使用
	Voice      videotools.VoiceResult // 配音
	Materials  []video.MaterialInfo   // 已按拼接模式排好序的素材
	Seed       int64                  // 转场等随机选择的种子
	TempDir    string                 // 中间文件目录，任务结束后删除
	OutputPath string                 // 成片路径
}

// Result 任务结果
type Result struct {
	TaskID        string   `json:"task_id"`
	Videos        []string `json:"videos"`
	Script        string   `json:"script"`
	Terms         []string `json:"terms,omitempty"`
	VoiceFallback bool     `json:"voice_fallback"`
}

// Orchestrator 视频生成编排器
// 适配器由宿主环境配置好后注入，编排器本身不读取全局配置
type Orchestrator struct {
	Script    videotools.ScriptGenerator
	Terms     videotools.TermsGenerator
	Voice     videotools.VoiceSynthesizer
	Materials videotools.MaterialResolver
	Composer  Composer
	Keys      KeyChecker

	WorkDir          string // 每个任务使用 WorkDir/<taskID>
	ScriptParagraphs int
	TermsAmount      int

	// NewRand 每个任务一个随机源，测试时可固定
	NewRand func() *rand.Rand
}

// run 单次任务的状态
type run struct {
	o        *Orchestrator
	taskID   string
	params   video.VideoParams
	progress *monotonic
	logger   zerolog.Logger
	rnd      *rand.Rand
	stage    Stage

	taskDir string
	tmpDir  string
	outputs []string

	script    string
	terms     []string
	narration string
	voice     *videotools.VoiceResult
	fallback  bool
	materials []video.MaterialInfo
}

// Start 执行一次视频生成
// 阶段严格串行，任一阶段失败立即返回 *Error，失败时不返回任何成片
func (o *Orchestrator) Start(ctx context.Context, taskID string, params video.VideoParams, reporter Reporter) (res *Result, err error) {
	r := &run{
		o:        o,
		taskID:   taskID,
		params:   params.Clone(),
		progress: newMonotonic(reporter),
		logger:   logger.ForTask(taskID),
		stage:    StageValidate,
	}
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Str("stage", r.stage.String()).
				Msg("task panicked")
			err = newError(KindInternal, r.stage, fmt.Errorf("panic: %v", rec), "unexpected error in stage %s", r.stage)
		}
		r.cleanupTemp()
		if err != nil {
			res = nil
			r.cleanupOutputs()
			te, ok := AsError(err)
			if !ok {
				te = newError(KindInternal, r.stage, err, "unexpected error in stage %s", r.stage)
				err = te
			}
			r.logger.Error().Err(te.Cause).
				Str("kind", string(te.Kind)).
				Str("stage", te.Stage.String()).
				Str("adapter_kind", string(te.AdapterKind())).
				Dur("elapsed", time.Since(start)).
				Msg(te.Message)
			r.progress.Report(r.progress.Last(), StageFailed.String(), te.Message)
		}
	}()

	steps := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageValidate, r.validate},
		{StageScript, r.generateScript},
		{StageTerms, r.generateTerms},
		{StageVoice, r.synthesizeVoice},
		{StageMaterials, r.resolveMaterials},
		{StageCompose, r.compose},
	}
	for _, step := range steps {
		r.stage = step.stage
		r.logger.Debug().Str("stage", step.stage.String()).Msg("stage started")
		if err := step.fn(ctx); err != nil {
			return nil, err
		}
	}

	r.stage = StageDone
	r.progress.Report(stageEnd[StageDone], StageDone.String(), fmt.Sprintf("%d video(s) generated", len(r.outputs)))
	r.logger.Info().
		Strs("videos", r.outputs).
		Bool("voice_fallback", r.fallback).
		Dur("elapsed", time.Since(start)).
		Msg("task succeeded")

	return &Result{
		TaskID:        taskID,
		Videos:        append([]string(nil), r.outputs...),
		Script:        r.script,
		Terms:         r.terms,
		VoiceFallback: r.fallback,
	}, nil
}

// done 阶段完成
func (r *run) done(detail string) {
	r.progress.Report(stageEnd[r.stage], r.stage.String(), detail)
	r.logger.Info().Str("stage", r.stage.String()).Str("detail", detail).Msg("stage completed")
}

// Precheck 只做本地校验，不创建目录也不调用任何外部服务
// 宿主环境可以在排队之前用它同步拒绝非法请求
func (o *Orchestrator) Precheck(taskID string, params video.VideoParams) error {
	if strings.TrimSpace(taskID) == "" {
		return newError(KindValidation, StageValidate, nil, "task id is required")
	}
	if strings.ContainsAny(taskID, `/\`) || taskID == "." || taskID == ".." {
		return newError(KindValidation, StageValidate, nil, "invalid task id %q", taskID)
	}
	if err := params.Validate(); err != nil {
		return newError(KindValidation, StageValidate, err, "%s", strings.TrimPrefix(err.Error(), video.ErrInvalidParams.Error()+": "))
	}
	if params.VideoSource.IsRemote() && (o.Keys == nil || !o.Keys.HasKeys(params.VideoSource)) {
		return newError(KindValidation, StageValidate, nil, "missing %s api key", params.VideoSource)
	}
	return o.checkAdapters(&params)
}

// validate 本地校验通过后创建任务目录
func (r *run) validate(ctx context.Context) error {
	p := &r.params
	if err := r.o.Precheck(r.taskID, *p); err != nil {
		return err
	}
	if r.o.WorkDir == "" {
		return newError(KindInternal, StageValidate, nil, "work dir is not configured")
	}

	r.taskDir = filepath.Join(r.o.WorkDir, r.taskID)
	r.tmpDir = filepath.Join(r.taskDir, "tmp")
	if err := os.MkdirAll(r.tmpDir, 0o755); err != nil {
		return newError(KindInternal, StageValidate, err, "failed to create task directory")
	}
	if r.o.NewRand != nil {
		r.rnd = r.o.NewRand()
	} else {
		r.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	r.done(fmt.Sprintf("source=%s count=%d", p.VideoSource, p.VideoCount))
	return nil
}

// checkAdapters 检查本次任务用到的适配器都已注入
func (o *Orchestrator) checkAdapters(p *video.VideoParams) error {
	var missing []string
	if strings.TrimSpace(p.VideoScript) == "" && o.Script == nil {
		missing = append(missing, "script generator")
	}
	if needTermsGeneration(p) && o.Terms == nil {
		missing = append(missing, "terms generator")
	}
	if o.Voice == nil {
		missing = append(missing, "voice synthesizer")
	}
	if o.Materials == nil {
		missing = append(missing, "material resolver")
	}
	if o.Composer == nil {
		missing = append(missing, "composer")
	}
	if len(missing) > 0 {
		return newError(KindInternal, StageValidate, nil, "not configured: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (r *run) generateScript(ctx context.Context) error {
	if script := strings.TrimSpace(r.params.VideoScript); script != "" {
		r.script = script
		r.done("script supplied")
		return nil
	}

	script, err := r.o.GenerateScript(ctx, r.params.VideoSubject, r.params.VideoLanguage)
	if err != nil {
		return err
	}
	r.script = script
	r.done(fmt.Sprintf("%d characters", len([]rune(script))))
	return nil
}

// termsGuard 关键词阶段的转移条件
type termsGuard int

const (
	termsSkip     termsGuard = iota // 本地素材不需要搜索
	termsSupplied                   // 使用用户提供的关键词
	termsGenerate                   // 调用大模型生成
)

func guardTerms(p *video.VideoParams) termsGuard {
	switch {
	case !p.VideoSource.IsRemote():
		return termsSkip
	case len(p.VideoTerms) > 0:
		return termsSupplied
	default:
		return termsGenerate
	}
}

func needTermsGeneration(p *video.VideoParams) bool {
	return guardTerms(p) == termsGenerate
}

func (r *run) generateTerms(ctx context.Context) error {
	switch guardTerms(&r.params) {
	case termsSkip:
		r.done("skipped for local source")
		return nil
	case termsSupplied:
		r.terms = append([]string(nil), r.params.VideoTerms...)
		r.done(strings.Join(r.terms, ", "))
		return nil
	}

	terms, err := r.o.GenerateTerms(ctx, r.params.VideoSubject, r.script)
	if err != nil {
		return err
	}
	r.terms = terms
	r.done(strings.Join(terms, ", "))
	return nil
}

// GenerateScript 只生成文案，不创建任务
// 任务的文案阶段也走这里
func (o *Orchestrator) GenerateScript(ctx context.Context, subject, language string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", newError(KindValidation, StageScript, nil, "video subject is required")
	}
	if o.Script == nil {
		return "", newError(KindInternal, StageScript, nil, "not configured: script generator")
	}

	script, err := o.Script.GenerateScript(ctx, subject, language, o.ScriptParagraphs)
	if err != nil {
		return "", newError(KindScriptGeneration, StageScript, err, "failed to generate video script")
	}
	if script = strings.TrimSpace(script); script == "" {
		return "", newError(KindScriptGeneration, StageScript,
			videotools.Failuref(videotools.FailureInvalidInput, "script", "empty script"), "failed to generate video script")
	}
	return script, nil
}

// GenerateTerms 根据主题和文案生成素材搜索关键词，结果去掉空白项
func (o *Orchestrator) GenerateTerms(ctx context.Context, subject, script string) ([]string, error) {
	if strings.TrimSpace(script) == "" {
		return nil, newError(KindValidation, StageTerms, nil, "video script is required")
	}
	if o.Terms == nil {
		return nil, newError(KindInternal, StageTerms, nil, "not configured: terms generator")
	}

	terms, err := o.Terms.GenerateTerms(ctx, subject, script, o.TermsAmount)
	if err != nil {
		return nil, newError(KindKeywordGeneration, StageTerms, err, "failed to generate search terms")
	}
	var clean []string
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			clean = append(clean, t)
		}
	}
	if len(clean) == 0 {
		return nil, newError(KindKeywordGeneration, StageTerms,
			videotools.Failuref(videotools.FailureNotFound, "terms", "no search terms"), "failed to generate search terms")
	}
	return clean, nil
}

// synthesizeVoice 配音，失败时用固定文本重试一次
func (r *run) synthesizeVoice(ctx context.Context) error {
	p := &r.params
	res, err := r.synthesize(ctx, r.script, filepath.Join(r.tmpDir, "audio.mp3"))
	if err == nil {
		r.narration, r.voice = r.script, res
		r.done(fmt.Sprintf("%.2fs", res.Duration))
		return nil
	}

	r.logger.Warn().Err(err).Str("voice", p.VoiceName).Msg("voice synthesis failed, retrying with fallback text")
	res, err = r.synthesize(ctx, FallbackVoiceText, filepath.Join(r.tmpDir, "audio-fallback.mp3"))
	if err != nil {
		return newError(KindVoiceSynthesis, StageVoice, err, "failed to synthesize voice with %s", p.VoiceName)
	}
	r.narration, r.voice, r.fallback = FallbackVoiceText, res, true
	r.done(fmt.Sprintf("%.2fs (fallback)", res.Duration))
	return nil
}

// synthesize 调用配音适配器，并把空结果当作失败
func (r *run) synthesize(ctx context.Context, text, audioPath string) (*videotools.VoiceResult, error) {
	p := &r.params
	res, err := r.o.Voice.Synthesize(ctx, text, p.VoiceName, p.VoiceRate, audioPath)
	if err != nil {
		return nil, err
	}
	if res == nil || res.AudioPath == "" || res.Duration <= 0 {
		return nil, videotools.Failuref(videotools.FailureInvalidInput, "voice", "empty voice result")
	}
	if info, statErr := os.Stat(res.AudioPath); statErr != nil || info.Size() == 0 {
		return nil, videotools.Failuref(videotools.FailureInvalidInput, "voice", "audio file %s is missing or empty", res.AudioPath)
	}
	return res, nil
}

func (r *run) resolveMaterials(ctx context.Context) error {
	p := &r.params
	q := videotools.MaterialQuery{
		Source:      p.VideoSource,
		Terms:       r.terms,
		Materials:   p.VideoMaterials,
		Aspect:      p.VideoAspect,
		MinDuration: float64(p.VideoClipDuration),
		MaxTotal:    r.voice.Duration * float64(p.VideoCount),
		Dir:         filepath.Join(r.tmpDir, "materials"),
	}
	materials, err := r.o.Materials.Resolve(ctx, q)
	if err != nil {
		return newError(KindMaterialResolution, StageMaterials, err, "failed to get materials from %s", p.VideoSource)
	}
	if len(materials) == 0 {
		return newError(KindMaterialResolution, StageMaterials,
			videotools.Failuref(videotools.FailureNotFound, string(p.VideoSource), "no usable materials"),
			"no usable materials from %s", p.VideoSource)
	}
	r.materials = materials
	r.done(fmt.Sprintf("%d material(s)", len(materials)))
	return nil
}

func (r *run) compose(ctx context.Context) error {
	p := &r.params
	from := stageEnd[StageMaterials]
	step := (stageEnd[StageCompose] - from) / float64(p.VideoCount)

	for i := 0; i < p.VideoCount; i++ {
		out := filepath.Join(r.taskDir, fmt.Sprintf("final-%d.mp4", i+1))
		req := ComposeRequest{
			TaskID:     r.taskID,
			Index:      i,
			Params:     p.Clone(),
			Narration:  r.narration,
			Voice:      *r.voice,
			Materials:  orderMaterials(p.VideoConcatMode, r.materials, r.rnd),
			Seed:       r.rnd.Int63(),
			TempDir:    filepath.Join(r.tmpDir, fmt.Sprintf("compose-%d", i+1)),
			OutputPath: out,
		}
		if err := os.MkdirAll(req.TempDir, 0o755); err != nil {
			return newError(KindComposition, StageCompose, err, "failed to create compose directory")
		}
		// 先登记，失败时也会被清理
		r.outputs = append(r.outputs, out)

		if err := r.o.Composer.Compose(ctx, req); err != nil {
			return newError(KindComposition, StageCompose, err, "failed to compose video %d", i+1)
		}
		if info, err := os.Stat(out); err != nil || info.Size() == 0 {
			return newError(KindComposition, StageCompose, err, "video %d was not produced", i+1)
		}
		r.progress.Report(from+step*float64(i+1), StageCompose.String(), fmt.Sprintf("video %d/%d", i+1, p.VideoCount))
	}
	r.done(fmt.Sprintf("%d video(s)", len(r.outputs)))
	return nil
}

// orderMaterials 按拼接模式排列素材，random 模式每次调用独立打乱
func orderMaterials(mode video.ConcatMode, materials []video.MaterialInfo, rnd *rand.Rand) []video.MaterialInfo {
	out := append([]video.MaterialInfo(nil), materials...)
	if mode == video.ConcatModeRandom {
		rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

// cleanupTemp 删除中间文件，成片保留
func (r *run) cleanupTemp() {
	if r.tmpDir == "" {
		return
	}
	if err := os.RemoveAll(r.tmpDir); err != nil {
		r.logger.Warn().Err(err).Str("dir", r.tmpDir).Msg("failed to remove temp dir")
	}
}

// cleanupOutputs 失败时删除已生成的成片
func (r *run) cleanupOutputs() {
	for _, out := range r.outputs {
		if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
			r.logger.Warn().Err(err).Str("file", out).Msg("failed to remove output")
		}
	}
	r.outputs = nil
	if r.taskDir != "" {
		// 目录非空时保留
		_ = os.Remove(r.taskDir)
	}
}
