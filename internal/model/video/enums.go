package video

// VideoSource 素材来源
type VideoSource string

const (
	VideoSourcePexels  VideoSource = "pexels"  // Pexels 素材库
	VideoSourcePixabay VideoSource = "pixabay" // Pixabay 素材库
	VideoSourceLocal   VideoSource = "local"   // 用户上传的本地文件
)

// IsRemote 是否需要调用素材搜索服务
func (s VideoSource) IsRemote() bool {
	return s == VideoSourcePexels || s == VideoSourcePixabay
}

// Valid 是否为支持的来源
func (s VideoSource) Valid() bool {
	return s.IsRemote() || s == VideoSourceLocal
}

// ConcatMode 素材拼接顺序
type ConcatMode string

const (
	ConcatModeSequential ConcatMode = "sequential" // 按发现顺序
	ConcatModeRandom     ConcatMode = "random"     // 每个成片独立打乱
)

// Valid 是否为支持的拼接模式
func (m ConcatMode) Valid() bool {
	return m == ConcatModeSequential || m == ConcatModeRandom
}

// TransitionMode 转场模式
type TransitionMode string

const (
	TransitionNone     TransitionMode = "none"
	TransitionShuffle  TransitionMode = "shuffle"
	TransitionFadeIn   TransitionMode = "fade_in"
	TransitionFadeOut  TransitionMode = "fade_out"
	TransitionSlideIn  TransitionMode = "slide_in"
	TransitionSlideOut TransitionMode = "slide_out"
)

// Valid 是否为支持的转场模式
func (m TransitionMode) Valid() bool {
	switch m {
	case TransitionNone, TransitionShuffle, TransitionFadeIn, TransitionFadeOut, TransitionSlideIn, TransitionSlideOut:
		return true
	}
	return false
}

// Aspect 画面比例
type Aspect string

const (
	AspectPortrait  Aspect = "portrait"  // 9:16
	AspectLandscape Aspect = "landscape" // 16:9
)

// Valid 是否为支持的画面比例
func (a Aspect) Valid() bool {
	return a == AspectPortrait || a == AspectLandscape
}

// Resolution 返回输出分辨率
func (a Aspect) Resolution() (width, height int) {
	if a == AspectLandscape {
		return 1920, 1080
	}
	return 1080, 1920
}

// BgmType 背景音乐类型
type BgmType string

const (
	BgmNone   BgmType = "none"
	BgmRandom BgmType = "random"
	BgmCustom BgmType = "custom"
)

// Valid 是否为支持的背景音乐类型
func (t BgmType) Valid() bool {
	return t == BgmNone || t == BgmRandom || t == BgmCustom
}

// SubtitlePosition 字幕位置
type SubtitlePosition string

const (
	SubtitleTop    SubtitlePosition = "top"
	SubtitleCenter SubtitlePosition = "center"
	SubtitleBottom SubtitlePosition = "bottom"
	SubtitleCustom SubtitlePosition = "custom"
)

// Valid 是否为支持的字幕位置
func (p SubtitlePosition) Valid() bool {
	switch p {
	case SubtitleTop, SubtitleCenter, SubtitleBottom, SubtitleCustom:
		return true
	}
	return false
}

// 成片数量上限
const (
	MinVideoCount = 1
	MaxVideoCount = 5
)
