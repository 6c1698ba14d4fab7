package timeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed marks a payload that is not a structurally valid manifest.
var ErrMalformed = errors.New("malformed timeline manifest")

// Decode parses a manifest payload. Every failure wraps ErrMalformed.
func Decode(data []byte) (Description, error) {
	var d Description
	if err := json.Unmarshal(data, &d); err != nil {
		if errors.Is(err, ErrMalformed) {
			return Description{}, err
		}
		return Description{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return d, nil
}

// UnmarshalJSON reads the wire shape. Keys match exactly: "Methods" is not
// "methods", and unknown fields are ignored.
func (d *Description) UnmarshalJSON(data []byte) error {
	root, err := decodeObject(data)
	if err != nil {
		return fmt.Errorf("%w: root must be an object", ErrMalformed)
	}

	storyID := ""
	if raw, ok := root["story_id"]; ok {
		if storyID, err = decodeString(raw); err != nil {
			return fmt.Errorf("%w: story_id must be a string", ErrMalformed)
		}
	}

	methods, ok := root["methods"]
	if !ok {
		return fmt.Errorf("%w: methods is missing", ErrMalformed)
	}
	tracks, err := decodeTracks(methods)
	if err != nil {
		return err
	}

	d.StoryID = storyID
	d.Tracks = tracks
	return nil
}

// decodeObject splits a JSON object into its raw members. null and
// non-object values are rejected.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("not an object")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeString(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", errors.New("not a string")
	}
	var s string
	err := json.Unmarshal(trimmed, &s)
	return s, err
}

// decodeTracks walks the methods object token by token so that the key
// order of the document becomes the track order.
func decodeTracks(raw json.RawMessage) ([]Track, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: methods: %v", ErrMalformed, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: methods must be an object", ErrMalformed)
	}

	tracks := []Track{}
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: methods: %v", ErrMalformed, err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: methods: unexpected token %v", ErrMalformed, tok)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate track %q", ErrMalformed, name)
		}
		seen[name] = true

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: track %q: %v", ErrMalformed, name, err)
		}
		scenes, err := decodeScenes(name, value)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, Track{Name: name, Scenes: scenes})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: methods: %v", ErrMalformed, err)
	}
	return tracks, nil
}

func decodeScenes(track string, raw json.RawMessage) ([]SceneBlock, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: track %q must be an array", ErrMalformed, track)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("%w: track %q: %v", ErrMalformed, track, err)
	}

	scenes := make([]SceneBlock, 0, len(items))
	for i, item := range items {
		obj, err := decodeObject(item)
		if err != nil {
			return nil, fmt.Errorf("%w: track %q scene %d must be an object", ErrMalformed, track, i)
		}
		raw, ok := obj["method"]
		if !ok {
			return nil, fmt.Errorf("%w: track %q scene %d: method is missing", ErrMalformed, track, i)
		}
		method, err := decodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: track %q scene %d: method must be a string", ErrMalformed, track, i)
		}
		raw, ok = obj["video_file"]
		if !ok {
			return nil, fmt.Errorf("%w: track %q scene %d: video_file is missing", ErrMalformed, track, i)
		}
		videoFile, err := decodeString(raw)
		if err != nil || videoFile == "" {
			return nil, fmt.Errorf("%w: track %q scene %d: video_file is missing", ErrMalformed, track, i)
		}
		scenes = append(scenes, SceneBlock{Method: method, VideoFile: videoFile})
	}
	return scenes, nil
}

// MarshalJSON writes the wire shape, keeping track order as object key order.
func (d Description) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	storyID, err := json.Marshal(d.StoryID)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"story_id":`)
	buf.Write(storyID)
	buf.WriteString(`,"methods":{`)

	for i, t := range d.Tracks {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(t.Name)
		if err != nil {
			return nil, err
		}
		scenes := t.Scenes
		if scenes == nil {
			scenes = []SceneBlock{}
		}
		body, err := json.Marshal(scenes)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(body)
	}

	buf.WriteString(`}}`)
	return buf.Bytes(), nil
}
