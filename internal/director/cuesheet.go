package director

// CueSheet is the editor-facing export of a sequenced timeline: every scene
// with its frame range and wall-clock time on its track.
type CueSheet struct {
	Version             string  `yaml:"version"`
	Composition         string  `yaml:"composition"`
	StoryID             string  `yaml:"story_id"`
	FPS                 int     `yaml:"fps"`
	SceneDurationFrames int     `yaml:"scene_duration_frames"`
	Placeholder         bool    `yaml:"placeholder,omitempty"`
	Tracks              []Track `yaml:"tracks"`
}

// Track is one column of the sheet, in timeline order.
type Track struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
	Label string `yaml:"label"`
	Cues  []Cue  `yaml:"cues"`
}

type Cue struct {
	Index      int     `yaml:"index"`
	Method     string  `yaml:"method"`
	VideoFile  string  `yaml:"video_file"`
	StartFrame int     `yaml:"start_frame"`
	EndFrame   int     `yaml:"end_frame"` // exclusive
	Start      float64 `yaml:"start"`     // seconds
	End        float64 `yaml:"end"`
}
