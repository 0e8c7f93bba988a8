package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"ms-songrequest/internal/config"
	"ms-songrequest/internal/logger"
	"ms-songrequest/internal/models"
)

// ErrSongNotFound covers both "nothing matched" and any transport
// failure: a lookup that cannot produce a playable result is a NotFound
// for admission purposes, never a charge.
var ErrSongNotFound = errors.New("no song found for query")

// Client resolves free-text queries against a primary track-search API
// with a video-search fallback.
type Client struct {
	cfg  config.CatalogConfig
	http *http.Client
	log  *logger.Logger
}

func NewClient(cfg config.CatalogConfig, httpClient *http.Client, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient, log: log}
}

// trackSearchResponse mirrors the track API's search envelope.
type trackSearchResponse struct {
	Data struct {
		List []struct {
			List []struct {
				Name     string `json:"name"`
				PlayTime string `json:"playTime"` // "mm:ss"
				Album    struct {
					ImgList []imageEntry `json:"imgList"`
				} `json:"album"`
				RepresentationArtist struct {
					Name    string       `json:"name"`
					ImgList []imageEntry `json:"imgList"`
				} `json:"representationArtist"`
			} `json:"list"`
		} `json:"list"`
	} `json:"data"`
}

type imageEntry struct {
	Size int    `json:"size"`
	URL  string `json:"url"`
}

type videoSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				High    *thumbnail `json:"high"`
				Medium  *thumbnail `json:"medium"`
				Default *thumbnail `json:"default"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type thumbnail struct {
	URL string `json:"url"`
}

type videoDetailResponse struct {
	Items []struct {
		ContentDetails struct {
			Duration string `json:"duration"` // ISO 8601
		} `json:"contentDetails"`
	} `json:"items"`
}

// Lookup runs the primary search and falls back to video search. Every
// failure mode maps to ErrSongNotFound.
func (c *Client) Lookup(query string) (*models.CatalogSong, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrSongNotFound
	}

	if song, err := c.searchTracks(query); err == nil {
		return song, nil
	}

	song, err := c.searchVideos(query)
	if err != nil {
		c.log.Warn("CATALOG", fmt.Sprintf("lookup failed for %q: %v", query, err))
		return nil, ErrSongNotFound
	}
	return song, nil
}

func (c *Client) searchTracks(query string) (*models.CatalogSong, error) {
	params := url.Values{}
	params.Set("keyword", query)
	params.Set("searchType", "TRACK")
	params.Set("sortType", "ACCURACY")
	params.Set("size", "50")
	params.Set("page", "1")
	params.Set("queryType", "system")

	req, err := http.NewRequest(http.MethodGet, c.cfg.TrackSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")

	var parsed trackSearchResponse
	if err := c.getJSON(req, &parsed); err != nil {
		return nil, err
	}

	if len(parsed.Data.List) == 0 || len(parsed.Data.List[0].List) == 0 {
		return nil, ErrSongNotFound
	}

	track := parsed.Data.List[0].List[0]
	thumb := largestImage(track.Album.ImgList)
	if thumb == "" {
		thumb = largestImage(track.RepresentationArtist.ImgList)
	}

	return &models.CatalogSong{
		Name:      track.Name,
		Artist:    track.RepresentationArtist.Name,
		PlayTime:  parseClock(track.PlayTime),
		Thumbnail: thumb,
	}, nil
}

func (c *Client) searchVideos(query string) (*models.CatalogSong, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("part", "snippet")
	params.Set("maxResults", "1")
	params.Set("key", c.cfg.VideoAPIKey)

	req, err := http.NewRequest(http.MethodGet, c.cfg.VideoSearchURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var search videoSearchResponse
	if err := c.getJSON(req, &search); err != nil {
		return nil, err
	}
	if len(search.Items) == 0 {
		return nil, ErrSongNotFound
	}
	item := search.Items[0]

	detailParams := url.Values{}
	detailParams.Set("id", item.ID.VideoID)
	detailParams.Set("part", "contentDetails")
	detailParams.Set("key", c.cfg.VideoAPIKey)

	detailReq, err := http.NewRequest(http.MethodGet, c.cfg.VideoSearchURL+"/videos?"+detailParams.Encode(), nil)
	if err != nil {
		return nil, err
	}

	playTime := 0
	var detail videoDetailResponse
	if err := c.getJSON(detailReq, &detail); err == nil && len(detail.Items) > 0 {
		playTime = parseISODuration(detail.Items[0].ContentDetails.Duration)
	}

	thumb := ""
	switch {
	case item.Snippet.Thumbnails.High != nil:
		thumb = item.Snippet.Thumbnails.High.URL
	case item.Snippet.Thumbnails.Medium != nil:
		thumb = item.Snippet.Thumbnails.Medium.URL
	case item.Snippet.Thumbnails.Default != nil:
		thumb = item.Snippet.Thumbnails.Default.URL
	}

	return &models.CatalogSong{
		Name:      item.Snippet.Title,
		Artist:    item.Snippet.ChannelTitle,
		PlayTime:  playTime,
		Thumbnail: thumb,
	}, nil
}

func (c *Client) getJSON(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog responded %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func largestImage(images []imageEntry) string {
	if len(images) == 0 {
		return ""
	}
	sorted := make([]imageEntry, len(images))
	copy(sorted, images)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Size > sorted[j].Size })
	return sorted[0].URL
}

// parseClock converts "mm:ss" to seconds.
func parseClock(clock string) int {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0
	}
	minutes, _ := strconv.Atoi(parts[0])
	seconds, _ := strconv.Atoi(parts[1])
	return minutes*60 + seconds
}

var isoDurationRe = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?`)

// parseISODuration converts an ISO 8601 duration like "PT3M45S" to seconds.
func parseISODuration(duration string) int {
	match := isoDurationRe.FindStringSubmatch(duration)
	if match == nil {
		return 0
	}
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	seconds, _ := strconv.Atoi(match[3])
	return hours*3600 + minutes*60 + seconds
}
