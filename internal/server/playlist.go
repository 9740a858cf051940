package server

import "errors"

// playlistTracks computes (or returns the cached) export ordering for the
// room's full submission set and resolves it to tracks. Same pipeline as
// round scheduling but with no round materialization: the order is a
// permutation of the submission indexes, nothing more. The cache lives on
// the room and is dropped by the reset-to-lobby edge.
//
// The external refine call only happens when a fresh order was just
// computed, and it runs between the two store round-trips so the lock is
// never held across it. If the cached order changed in the meantime the
// suggestion is discarded and the caller gets the unrefined tracks.
func (s *Server) playlistTracks(roomID string) ([]Track, error) {
	var baseline []int
	var tracks []Track
	fresh := false
	if _, err := s.store.UpdateRoom(roomID, func(room *Room) error {
		if len(room.Submissions) == 0 {
			return errors.New("no submissions yet")
		}
		if !isPermutation(room.PlaylistOrder, len(room.Submissions)) {
			room.PlaylistOrder = buildPlayOrder(room.Submissions, s.rng)
			logPersistError("playlist order", s.persistPlaylistOrder(room))
			fresh = true
		}
		baseline = append([]int(nil), room.PlaylistOrder...)
		tracks = playlistFor(room, baseline)
		return nil
	}); err != nil {
		return nil, err
	}
	if !fresh {
		return tracks, nil
	}
	suggestion := s.refineSuggestion(tracks)
	if suggestion == nil {
		return tracks, nil
	}
	refined := tracks
	_, _ = s.store.UpdateRoom(roomID, func(room *Room) error {
		if !sameOrder(room.PlaylistOrder, baseline) {
			return errors.New("order changed")
		}
		room.PlaylistOrder = applySuggestion(baseline, suggestion, room.Submissions)
		logPersistError("playlist order", s.persistPlaylistOrder(room))
		refined = playlistFor(room, room.PlaylistOrder)
		return nil
	})
	return refined, nil
}

func playlistFor(room *Room, order []int) []Track {
	tracks := make([]Track, 0, len(order))
	for _, idx := range order {
		tracks = append(tracks, room.Submissions[idx].Track)
	}
	return tracks
}
