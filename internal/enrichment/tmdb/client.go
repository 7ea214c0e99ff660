package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"reelsync/internal/media"
	"reelsync/internal/services"
)

// Kind is the TMDB media type used in search and detail paths.
type Kind string

const (
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
)

// KindFor maps a catalog category to its TMDB kind.
func KindFor(category media.Category) Kind {
	if category == media.CategorySeries {
		return KindTV
	}
	return KindMovie
}

// DefaultBaseURL is the public v3 API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// SearchResult is a single search match.
type SearchResult struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	Popularity   float64 `json:"popularity"`
}

// SearchResponse models the paginated search response.
type SearchResponse struct {
	Page         int            `json:"page"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

// Named is the {"name": ...} shape TMDB uses for languages, companies,
// countries, genres and creators.
type Named struct {
	Name string `json:"name"`
}

// Season is a season summary embedded in TV details.
type Season struct {
	ID           int64  `json:"id"`
	SeasonNumber int    `json:"season_number"`
	AirDate      string `json:"air_date"`
	EpisodeCount int    `json:"episode_count"`
	Name         string `json:"name"`
	Overview     string `json:"overview"`
	PosterPath   string `json:"poster_path"`
}

// EpisodeRef is the next_episode_to_air object.
type EpisodeRef struct {
	AirDate string `json:"air_date"`
}

// Details is the union of the movie and TV detail payloads.
type Details struct {
	ID                  int64       `json:"id"`
	IMDbID              string      `json:"imdb_id,omitempty"`
	Title               string      `json:"title,omitempty"`
	Name                string      `json:"name,omitempty"`
	Overview            string      `json:"overview"`
	Tagline             string      `json:"tagline"`
	ReleaseDate         string      `json:"release_date,omitempty"`
	FirstAirDate        string      `json:"first_air_date,omitempty"`
	LastAirDate         string      `json:"last_air_date,omitempty"`
	OriginCountry       []string    `json:"origin_country,omitempty"`
	SpokenLanguages     []Named     `json:"spoken_languages,omitempty"`
	ProductionCompanies []Named     `json:"production_companies,omitempty"`
	ProductionCountries []Named     `json:"production_countries,omitempty"`
	Genres              []Named     `json:"genres,omitempty"`
	Popularity          float64     `json:"popularity"`
	VoteAverage         float64     `json:"vote_average"`
	VoteCount           int         `json:"vote_count"`
	Status              string      `json:"status"`
	PosterPath          string      `json:"poster_path"`
	BackdropPath        string      `json:"backdrop_path"`
	Budget              int64       `json:"budget,omitempty"`
	Revenue             int64       `json:"revenue,omitempty"`
	Runtime             int         `json:"runtime,omitempty"`
	CreatedBy           []Named     `json:"created_by,omitempty"`
	NextEpisodeToAir    *EpisodeRef `json:"next_episode_to_air,omitempty"`
	NumberOfEpisodes    int         `json:"number_of_episodes,omitempty"`
	NumberOfSeasons     int         `json:"number_of_seasons,omitempty"`
	InProduction        bool        `json:"in_production,omitempty"`
	Seasons             []Season    `json:"seasons,omitempty"`
	MediaType           Kind        `json:"media_type,omitempty"`
}

// Looker resolves a title to provider details.
type Looker interface {
	Lookup(ctx context.Context, kind Kind, title, year string) (*Details, error)
}

// Client provides rate-limited access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Looker = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMinInterval sets the minimum delay between two requests.
func WithMinInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// New creates a TMDB client. Keys that look like v4 read access tokens are
// sent as a bearer header, v3 keys as the api_key parameter.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Search runs search/movie or search/tv for query.
func (c *Client) Search(ctx context.Context, kind Kind, query, year string) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "tmdb", "search", "query must not be empty", nil)
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "false")
	params.Set("page", "1")
	if year = strings.TrimSpace(year); year != "" {
		params.Set("year", year)
	}
	var payload SearchResponse
	if err := c.get(ctx, "search/"+string(kind), params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Details fetches movie/{id} or tv/{id}.
func (c *Client) Details(ctx context.Context, kind Kind, id int64) (*Details, error) {
	if id <= 0 {
		return nil, services.Wrap(services.ErrValidation, "tmdb", "details", "id must be positive", nil)
	}
	var payload Details
	if err := c.get(ctx, string(kind)+"/"+strconv.FormatInt(id, 10), url.Values{}, &payload); err != nil {
		return nil, err
	}
	payload.MediaType = kind
	return &payload, nil
}

// Lookup searches for title and returns the details of the first result.
func (c *Client) Lookup(ctx context.Context, kind Kind, title, year string) (*Details, error) {
	resp, err := c.Search(ctx, kind, title, year)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "tmdb", "search", fmt.Sprintf("no %s results for %q", kind, title), nil)
	}
	return c.Details(ctx, kind, resp.Results[0].ID)
}

func (c *Client) bearer() bool {
	return strings.HasPrefix(c.apiKey, "eyJ")
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + "/" + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	if !c.bearer() {
		params.Set("api_key", c.apiKey)
	}
	endpoint.RawQuery = params.Encode()

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.bearer() {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrTransient, "tmdb", path, fmt.Sprintf("latency=%v", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return services.Wrap(services.ErrTransient, "tmdb", path, fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	case resp.StatusCode == http.StatusUnauthorized:
		return services.Wrap(services.ErrConfiguration, "tmdb", path, "api key rejected", nil)
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "tmdb", path, "status 404", nil)
	default:
		return services.Wrap(services.ErrExternalTool, "tmdb", path, fmt.Sprintf("status %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrValidation, "tmdb", path, "decode response", err)
	}
	return nil
}
