// Package timeline holds the manifest data model: a story with an ordered set
// of method tracks, each an ordered list of scene clips.
package timeline

import "fmt"

// SceneBlock is one playable clip. VideoFile is an opaque path or URL.
type SceneBlock struct {
	Method    string `json:"method" yaml:"method"`
	VideoFile string `json:"video_file" yaml:"video_file"`
}

// Track is one named column of scenes. Scene order is playback order.
type Track struct {
	Name   string       `json:"name" yaml:"name"`
	Scenes []SceneBlock `json:"scenes" yaml:"scenes"`
}

// Description is the root manifest document. Track order follows the key
// order of the "methods" object on the wire.
type Description struct {
	StoryID string  `yaml:"story_id"`
	Tracks  []Track `yaml:"methods"`
}

const DefaultStoryID = "preview_default"

// Default is the fallback used when no manifest can be resolved.
func Default() Description {
	return Description{StoryID: DefaultStoryID, Tracks: []Track{}}
}

func (d Description) Empty() bool {
	return len(d.Tracks) == 0
}

// Track looks a track up by name.
func (d Description) Track(name string) (Track, bool) {
	for _, t := range d.Tracks {
		if t.Name == name {
			return t, true
		}
	}
	return Track{}, false
}

// SceneCount is the number of scenes across all tracks.
func (d Description) SceneCount() int {
	n := 0
	for _, t := range d.Tracks {
		n += len(t.Scenes)
	}
	return n
}

// Clone returns a deep copy so callers can never alias a resolved timeline.
func (d Description) Clone() Description {
	out := Description{StoryID: d.StoryID}
	if d.Tracks == nil {
		return out
	}
	out.Tracks = make([]Track, len(d.Tracks))
	for i, t := range d.Tracks {
		out.Tracks[i] = Track{Name: t.Name}
		if t.Scenes != nil {
			out.Tracks[i].Scenes = append([]SceneBlock{}, t.Scenes...)
		}
	}
	return out
}

// Validate checks the invariants a caller-built description must hold:
// unique track names and a media reference on every scene.
func (d Description) Validate() error {
	seen := make(map[string]bool, len(d.Tracks))
	for _, t := range d.Tracks {
		if seen[t.Name] {
			return fmt.Errorf("%w: duplicate track %q", ErrMalformed, t.Name)
		}
		seen[t.Name] = true
		for i, s := range t.Scenes {
			if s.VideoFile == "" {
				return fmt.Errorf("%w: track %q scene %d: video_file is missing", ErrMalformed, t.Name, i)
			}
		}
	}
	return nil
}
