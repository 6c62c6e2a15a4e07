package mpv

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sync"

	"audio2subs/internal/logging"
)

// Track is one entry of mpv's track-list property.
type Track struct {
	ID               int    `json:"id"`
	Type             string `json:"type"`
	Title            string `json:"title"`
	ExternalFilename string `json:"external-filename"`
	Selected         bool   `json:"selected"`
}

// TrackList returns the current track-list.
func (c *Client) TrackList(ctx context.Context) ([]Track, error) {
	var tracks []Track
	if err := c.GetProperty(ctx, "track-list", &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// FindSubtitleTrack returns the id of the external subtitle track loaded from
// path, or 0.
func FindSubtitleTrack(tracks []Track, path string) int {
	want := filepath.Clean(path)
	for _, t := range tracks {
		if t.Type != "sub" || t.ExternalFilename == "" {
			continue
		}
		if filepath.Clean(t.ExternalFilename) == want {
			return t.ID
		}
	}
	return 0
}

// Subtitles keeps the AI subtitle track loaded in mpv. The first load adds
// the file; later loads reload the same track. Once the user switches away
// from the track, new additions are no longer auto-selected.
type Subtitles struct {
	client     *Client
	autoSelect bool
	logger     *slog.Logger

	mu         sync.Mutex
	trackID    int
	deselected bool
}

// NewSubtitles binds track management to client.
func NewSubtitles(client *Client, autoSelect bool, logger *slog.Logger) *Subtitles {
	return &Subtitles{
		client:     client,
		autoSelect: autoSelect,
		logger:     logging.NewComponentLogger(logger, "mpv"),
	}
}

// TrackID returns the known AI track id, or 0.
func (s *Subtitles) TrackID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackID
}

// Deselected reports whether the user switched away from the AI track.
func (s *Subtitles) Deselected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deselected
}

// Reset forgets the track, used when playback moves to another file.
func (s *Subtitles) Reset() {
	s.mu.Lock()
	s.trackID = 0
	s.deselected = false
	s.mu.Unlock()
}

// Load makes mpv show the current contents of path.
func (s *Subtitles) Load(ctx context.Context, path string) error {
	if id := s.TrackID(); id > 0 {
		if _, err := s.client.Command(ctx, "sub-reload", id); err == nil {
			return nil
		}
		// The track may have been removed by the user or by a file change.
		s.mu.Lock()
		s.trackID = 0
		s.mu.Unlock()
	}

	if tracks, err := s.client.TrackList(ctx); err == nil {
		if id := FindSubtitleTrack(tracks, path); id > 0 {
			s.setTrack(id)
			_, err := s.client.Command(ctx, "sub-reload", id)
			return err
		}
	}

	flag := "auto"
	if s.shouldSelect(ctx) {
		flag = "select"
	}
	data, err := s.client.Command(ctx, "sub-add", path, flag)
	if err != nil {
		return err
	}
	id := addedTrackID(data)
	if id == 0 {
		if tracks, err := s.client.TrackList(ctx); err == nil {
			id = FindSubtitleTrack(tracks, path)
		}
	}
	s.setTrack(id)
	s.logger.Info("subtitle track added",
		logging.String("path", path),
		logging.Int("track_id", id),
		logging.String("flag", flag),
	)
	return nil
}

func (s *Subtitles) setTrack(id int) {
	s.mu.Lock()
	s.trackID = id
	s.mu.Unlock()
}

// shouldSelect selects the new track only when subtitles are already being
// shown and the user has not turned the AI track off.
func (s *Subtitles) shouldSelect(ctx context.Context) bool {
	if !s.autoSelect || s.Deselected() {
		return false
	}
	var sid json.RawMessage
	if err := s.client.GetProperty(ctx, "sid", &sid); err != nil || !trackSelected(sid) {
		return false
	}
	var visible bool
	if err := s.client.GetProperty(ctx, "sub-visibility", &visible); err != nil {
		return false
	}
	return visible
}

// ObserveSID records user deselection from a sid property value.
func (s *Subtitles) ObserveSID(value json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trackID == 0 || s.deselected {
		return
	}
	var id int
	if json.Unmarshal(value, &id) == nil && id == s.trackID {
		return
	}
	s.deselected = true
	s.logger.Info("subtitle track deselected by user", logging.Int("track_id", s.trackID))
}

// trackSelected reports whether a sid value names a track. mpv reports no
// selection as false or "no".
func trackSelected(sid json.RawMessage) bool {
	var id int
	if json.Unmarshal(sid, &id) == nil {
		return id > 0
	}
	return false
}

func addedTrackID(data json.RawMessage) int {
	if len(data) == 0 {
		return 0
	}
	var reply struct {
		ID int `json:"id"`
	}
	if json.Unmarshal(data, &reply) != nil {
		return 0
	}
	return reply.ID
}
