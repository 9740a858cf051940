package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const metadataBatchSize = 50

// tokenCache holds a client-credentials access token until its TTL lapses.
// It is injected into the catalogue client so token lifetime is explicit
// rather than ambient process state.
type tokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	ttl       time.Duration
}

func newTokenCache(ttl time.Duration) *tokenCache {
	return &tokenCache{ttl: ttl}
}

func (c *tokenCache) get(fetch func() (string, error)) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expiresAt) {
		return c.token, nil
	}
	token, err := fetch()
	if err != nil {
		return "", err
	}
	c.token = token
	c.expiresAt = time.Now().Add(c.ttl)
	return token, nil
}

type catalogueClient struct {
	clientID     string
	clientSecret string
	authURL      string
	baseURL      string
	http         *http.Client
	tokens       *tokenCache
}

func newCatalogueClient(clientID, clientSecret string, tokenTTL time.Duration) *catalogueClient {
	return &catalogueClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		authURL:      "https://accounts.spotify.com/api/token",
		baseURL:      "https://api.spotify.com/v1",
		http:         &http.Client{Timeout: 10 * time.Second},
		tokens:       newTokenCache(tokenTTL),
	}
}

func (c *catalogueClient) configured() bool {
	return c != nil && c.clientID != "" && c.clientSecret != ""
}

func (c *catalogueClient) accessToken(ctx context.Context) (string, error) {
	return c.tokens.get(func() (string, error) {
		form := url.Values{"grant_type": {"client_credentials"}}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
		if err != nil {
			return "", err
		}
		basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
		req.Header.Set("Authorization", "Basic "+basic)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.http.Do(req)
		if err != nil {
			return "", fmt.Errorf("failed to reach catalogue auth")
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("catalogue auth failed (%d)", resp.StatusCode)
		}
		var parsed struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", err
		}
		if parsed.AccessToken == "" {
			return "", errors.New("catalogue auth returned no token")
		}
		return parsed.AccessToken, nil
	})
}

type catalogueTrack struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DurationMs int    `json:"duration_ms"`
	Popularity int    `json:"popularity"`
	PreviewURL string `json:"preview_url"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name        string `json:"name"`
		ReleaseDate string `json:"release_date"`
		Images      []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
}

func (t catalogueTrack) toTrack() Track {
	track := Track{
		TrackID:    t.ID,
		Name:       t.Name,
		Album:      t.Album.Name,
		PreviewURL: t.PreviewURL,
		DurationMs: t.DurationMs,
		Popularity: t.Popularity,
	}
	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	if len(t.Album.Images) > 0 {
		track.ArtworkURL = t.Album.Images[0].URL
	}
	if len(t.Album.ReleaseDate) >= 4 {
		var year int
		if _, err := fmt.Sscanf(t.Album.ReleaseDate[:4], "%d", &year); err == nil {
			track.ReleaseYear = year
		}
	}
	return track
}

// Search queries the catalogue for tracks matching the query.
func (c *catalogueClient) Search(ctx context.Context, query string) ([]Track, error) {
	if !c.configured() {
		return nil, errors.New("catalogue is not configured")
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/search?type=track&limit=20&q=%s", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach catalogue")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalogue search failed (%d)", resp.StatusCode)
	}
	var parsed struct {
		Tracks struct {
			Items []catalogueTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	tracks := make([]Track, 0, len(parsed.Tracks.Items))
	for _, item := range parsed.Tracks.Items {
		tracks = append(tracks, item.toTrack())
	}
	return tracks, nil
}

// Metadata fetches popularity, duration, and release data for the given
// track ids, batching requests at the API's 50-id limit.
func (c *catalogueClient) Metadata(ctx context.Context, trackIDs []string) (map[string]Track, error) {
	if !c.configured() {
		return nil, errors.New("catalogue is not configured")
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Track, len(trackIDs))
	for start := 0; start < len(trackIDs); start += metadataBatchSize {
		end := start + metadataBatchSize
		if end > len(trackIDs) {
			end = len(trackIDs)
		}
		endpoint := fmt.Sprintf("%s/tracks?ids=%s", c.baseURL, url.QueryEscape(strings.Join(trackIDs[start:end], ",")))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to reach catalogue")
		}
		var parsed struct {
			Tracks []catalogueTrack `json:"tracks"`
		}
		decodeErr := json.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("catalogue metadata failed (%d)", resp.StatusCode)
		}
		if decodeErr != nil {
			return nil, decodeErr
		}
		for _, item := range parsed.Tracks {
			if item.ID != "" {
				out[item.ID] = item.toTrack()
			}
		}
	}
	return out, nil
}

// enrichRoomSubmissions backfills missing catalogue metadata onto the
// room's submissions. The fetch happens outside the store lock; the result
// is discarded if the room left the submitting phase in the meantime. Best
// effort: on failure the submissions stay bare and ordering falls back to
// a plain shuffle.
func (s *Server) enrichRoomSubmissions(roomID string) {
	if s.catalogue == nil || !s.catalogue.configured() {
		return
	}
	var missing []string
	if _, err := s.store.UpdateRoom(roomID, func(room *Room) error {
		for _, sub := range room.Submissions {
			if sub.Track.Popularity == 0 || sub.Track.DurationMs == 0 || sub.Track.ReleaseYear == 0 {
				missing = append(missing, sub.Track.TrackID)
			}
		}
		return nil
	}); err != nil {
		return
	}
	if len(missing) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	metadata, err := s.catalogue.Metadata(ctx, missing)
	if err != nil {
		return
	}
	_, _ = s.store.UpdateRoom(roomID, func(room *Room) error {
		if room.Status != statusSubmitting {
			return errors.New("room moved on")
		}
		for i := range room.Submissions {
			sub := &room.Submissions[i]
			fetched, ok := metadata[sub.Track.TrackID]
			if !ok {
				continue
			}
			if sub.Track.Popularity == 0 {
				sub.Track.Popularity = fetched.Popularity
			}
			if sub.Track.DurationMs == 0 {
				sub.Track.DurationMs = fetched.DurationMs
			}
			if sub.Track.ReleaseYear == 0 {
				sub.Track.ReleaseYear = fetched.ReleaseYear
			}
		}
		return nil
	})
}
