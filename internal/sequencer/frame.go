package sequencer

// ColumnFrame is what one column shows at a given frame.
type ColumnFrame struct {
	Index      int       `json:"index"`
	Title      string    `json:"title"`
	Active     bool      `json:"active"`
	Scene      Placement `json:"scene"`
	LocalFrame int       `json:"local_frame"`
	Count      int       `json:"count"`
	CountLabel string    `json:"count_label"`
}

// FrameState is the full paint state for one frame.
type FrameState struct {
	Frame           int           `json:"frame"`
	StoryID         string        `json:"story_id"`
	Heading         string        `json:"heading"`
	Placeholder     bool          `json:"placeholder"`
	PlaceholderText string        `json:"placeholder_text,omitempty"`
	Columns         []ColumnFrame `json:"columns"`
}

// Frame evaluates the layout at one frame. It only reads the layout and is
// safe to call concurrently.
func (l Layout) Frame(frame int) FrameState {
	fs := FrameState{
		Frame:           frame,
		StoryID:         l.StoryID,
		Heading:         l.Heading,
		Placeholder:     l.Placeholder,
		PlaceholderText: l.PlaceholderText,
		Columns:         make([]ColumnFrame, 0, len(l.Columns)),
	}
	for _, c := range l.Columns {
		cf := ColumnFrame{
			Index:      c.Index,
			Title:      c.Title,
			Count:      c.Count,
			CountLabel: c.CountLabel,
		}
		if p, local, ok := c.At(frame); ok {
			cf.Active = true
			cf.Scene = p
			cf.LocalFrame = local
		}
		fs.Columns = append(fs.Columns, cf)
	}
	return fs
}
