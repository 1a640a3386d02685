package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"mediamatch/internal/app/media"
)

// Server reads a library section of a Plex Media Server as catalog provider.
type Server struct {
	baseURL   string
	token     string
	sectionID string
	client    *http.Client
}

// NewServer returns a catalog provider for one library section.
func NewServer(baseURL, token, sectionID string) *Server {
	return &Server{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		token:     token,
		sectionID: sectionID,
		client:    &http.Client{Timeout: httpTimeout},
	}
}

// Library JSON shapes, trimmed to the fields the catalog uses.
type libraryContainer struct {
	MediaContainer struct {
		Metadata []libraryItem `json:"Metadata"`
	} `json:"MediaContainer"`
}

type libraryItem struct {
	RatingKey     string     `json:"ratingKey"`
	Title         string     `json:"title"`
	Type          string     `json:"type"`
	Year          int        `json:"year"`
	Duration      int        `json:"duration"`
	Rating        float64    `json:"rating"`
	ContentRating string     `json:"contentRating"`
	Summary       string     `json:"summary"`
	Thumb         string     `json:"thumb"`
	GUID          string     `json:"guid"`
	Genre         []tagField `json:"Genre"`
}

type tagField struct {
	Tag string `json:"tag"`
}

// MediaForRoom lists the section's titles, narrowed by filters.
func (s *Server) MediaForRoom(ctx context.Context, filters []media.Filter) ([]media.Media, error) {
	endpoint := fmt.Sprintf("%s/library/sections/%s/all", s.baseURL, url.PathEscape(s.sectionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build library request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", s.token)

	res, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("library request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("library listing failed (status %d)", res.StatusCode)
	}

	var container libraryContainer
	if err := json.NewDecoder(res.Body).Decode(&container); err != nil {
		return nil, fmt.Errorf("decode library listing: %w", err)
	}

	items := make([]media.Media, 0, len(container.MediaContainer.Metadata))
	for _, item := range container.MediaContainer.Metadata {
		items = append(items, s.toMedia(item))
	}

	return media.ApplyFilters(items, filters), nil
}

// toMedia converts one library item to the wire model. Durations arrive in
// milliseconds and are reported in minutes.
func (s *Server) toMedia(item libraryItem) media.Media {
	genres := make([]string, 0, len(item.Genre))
	for _, g := range item.Genre {
		genres = append(genres, g.Tag)
	}

	posterURL := ""
	if item.Thumb != "" {
		posterURL = fmt.Sprintf("%s%s?X-Plex-Token=%s", s.baseURL, item.Thumb, url.QueryEscape(s.token))
	}

	return media.Media{
		ID:            item.RatingKey,
		Title:         item.Title,
		Year:          item.Year,
		Duration:      item.Duration / 60000,
		Rating:        item.Rating,
		ContentRating: item.ContentRating,
		Genres:        genres,
		Description:   item.Summary,
		PosterURL:     posterURL,
		LinkURL:       fmt.Sprintf("%s/web/index.html#!/server/details?key=/library/metadata/%s", s.baseURL, item.RatingKey),
		Type:          item.Type,
	}
}
