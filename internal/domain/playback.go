package domain

import "math"

type Mode string

const (
	ModeIdle    Mode = "IDLE"
	ModePlaying Mode = "PLAYING"
	ModePaused  Mode = "PAUSED"
)

const MaxVideoRefLength = 2048

// PlaybackState is derived from the event log and never stored on its own.
// AnchorTimestamp is room-clock time in milliseconds, AnchorPosition is in seconds.
type PlaybackState struct {
	VideoRef        string  `json:"video_ref"`
	Mode            Mode    `json:"mode"`
	AnchorPosition  float64 `json:"anchor_position"`
	AnchorTimestamp int64   `json:"anchor_timestamp"`
}

func NewPlaybackState() PlaybackState {
	return PlaybackState{Mode: ModeIdle}
}

func (s PlaybackState) IsLoaded() bool {
	return s.Mode == ModePlaying || s.Mode == ModePaused
}

// PositionAt extrapolates the playback position at room time now.
func (s PlaybackState) PositionAt(now int64) float64 {
	if s.Mode != ModePlaying {
		return s.AnchorPosition
	}

	elapsed := float64(now-s.AnchorTimestamp) / 1000
	if elapsed < 0 {
		elapsed = 0
	}

	return s.AnchorPosition + elapsed
}

// Transition evaluates a playback command committed at room time at.
// Non-playback event types leave the state untouched.
func (s PlaybackState) Transition(t EventType, p Payload, at int64) (PlaybackState, error) {
	if !t.IsPlayback() {
		return s, nil
	}

	if s.Mode != ModeIdle && at <= s.AnchorTimestamp {
		return s, Reject(ReasonStaleState, "timestamp %d is not after anchor %d", at, s.AnchorTimestamp)
	}

	switch t {
	case EventLoad:
		if p.VideoRef == nil {
			return s, Reject(ReasonInvalidPayload, "video_ref is required")
		}
		if len(*p.VideoRef) > MaxVideoRefLength {
			return s, Reject(ReasonInvalidPayload, "video_ref is too long")
		}

		if *p.VideoRef == "" {
			return PlaybackState{
				Mode:            ModeIdle,
				AnchorTimestamp: at,
			}, nil
		}

		return PlaybackState{
			VideoRef:        *p.VideoRef,
			Mode:            ModePaused,
			AnchorPosition:  0,
			AnchorTimestamp: at,
		}, nil
	case EventPlay:
		switch s.Mode {
		case ModePlaying:
			return s, Reject(ReasonStaleState, "already playing")
		case ModeIdle:
			return s, Reject(ReasonStaleState, "no video loaded")
		}

		s.Mode = ModePlaying
		s.AnchorTimestamp = at
		return s, nil
	case EventPause:
		switch s.Mode {
		case ModePaused:
			return s, Reject(ReasonStaleState, "already paused")
		case ModeIdle:
			return s, Reject(ReasonStaleState, "no video loaded")
		}

		s.AnchorPosition = s.PositionAt(at)
		s.Mode = ModePaused
		s.AnchorTimestamp = at
		return s, nil
	case EventSeek:
		if p.Position == nil {
			return s, Reject(ReasonInvalidPayload, "position is required")
		}
		if pos := *p.Position; pos < 0 || math.IsNaN(pos) || math.IsInf(pos, 0) {
			return s, Reject(ReasonInvalidPayload, "position must be a finite non-negative number")
		}
		if s.Mode == ModeIdle {
			return s, Reject(ReasonStaleState, "no video loaded")
		}

		s.AnchorPosition = *p.Position
		s.AnchorTimestamp = at
		return s, nil
	}

	return s, nil
}

// Authorize checks host authority for a proposal.
func Authorize(t EventType, proposerId, hostId string, openControl bool) error {
	if !t.IsPlayback() || openControl {
		return nil
	}

	if proposerId == "" || proposerId != hostId {
		return Reject(ReasonNotHost, "only the host can %s", t)
	}

	return nil
}
