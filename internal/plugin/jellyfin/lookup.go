// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package jellyfin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/upstream"
)

const ticksPerSecond = 10_000_000

// GetMovieStream finds the movie by TMDB id and lists or resolves its streams.
func (p *Plugin) GetMovieStream(ctx context.Context, tmdbID string, creds plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	s, err := decode(creds.Settings)
	if err != nil {
		return nil, err
	}

	movie, err := p.findByTMDB(ctx, s, "Movie", tmdbID)
	if err != nil {
		return nil, err
	}
	return p.describe(ctx, s, movie, cfg)
}

// GetEpisodeStream finds the series by TMDB id, then the episode by number.
func (p *Plugin) GetEpisodeStream(ctx context.Context, tmdbID string, season, episode int, creds plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	s, err := decode(creds.Settings)
	if err != nil {
		return nil, err
	}

	series, err := p.findByTMDB(ctx, s, "Series", tmdbID)
	if err != nil {
		return nil, err
	}

	var episodes itemsResponse
	err = p.client.DoJSON(ctx, upstream.Request{
		URL: s.BaseURL + "/Shows/" + url.PathEscape(series.ID) + "/Episodes",
		Query: url.Values{
			"UserId": {s.UserID},
			"Season": {strconv.Itoa(season)},
			"Fields": {"MediaSources,ProviderIds"},
		},
		Header: p.authHeader(s.APIKey),
	}, &episodes)
	if err != nil {
		return nil, fmt.Errorf("jellyfin episodes of %s: %w", series.ID, err)
	}

	ep, ok := lo.Find(episodes.Items, func(it item) bool {
		return it.ParentIndexNumber == season && it.IndexNumber == episode
	})
	if !ok {
		return nil, fmt.Errorf("jellyfin S%02dE%02d of tmdb %s: %w", season, episode, tmdbID, plugin.ErrNotFound)
	}
	return p.describe(ctx, s, ep, cfg)
}

// findByTMDB returns the first item of itemType whose TMDB provider id matches.
func (p *Plugin) findByTMDB(ctx context.Context, s Settings, itemType, tmdbID string) (item, error) {
	var res itemsResponse
	err := p.client.DoJSON(ctx, upstream.Request{
		URL: s.BaseURL + "/Users/" + url.PathEscape(s.UserID) + "/Items",
		Query: url.Values{
			"Recursive":           {"true"},
			"IncludeItemTypes":    {itemType},
			"AnyProviderIdEquals": {"Tmdb." + tmdbID},
			"Fields":              {"ProviderIds,MediaSources"},
		},
		Header: p.authHeader(s.APIKey),
	}, &res)
	if err != nil {
		return item{}, fmt.Errorf("jellyfin %s lookup for tmdb %s: %w", strings.ToLower(itemType), tmdbID, err)
	}

	// Older servers ignore AnyProviderIdEquals, so match the provider id here.
	found, ok := lo.Find(res.Items, func(it item) bool {
		return providerID(it.ProviderIDs, "Tmdb") == tmdbID
	})
	if !ok {
		return item{}, fmt.Errorf("jellyfin %s tmdb %s: %w", strings.ToLower(itemType), tmdbID, plugin.ErrNotFound)
	}
	return found, nil
}

func providerID(ids map[string]string, provider string) string {
	for k, v := range ids {
		if strings.EqualFold(k, provider) {
			return v
		}
	}
	return ""
}

// describe lists candidates for it, or resolves a playable stream when cfg is set.
func (p *Plugin) describe(ctx context.Context, s Settings, it item, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	if cfg == nil {
		if len(it.MediaSources) == 0 {
			return nil, fmt.Errorf("jellyfin item %s has no media sources: %w", it.ID, plugin.ErrNotFound)
		}
		return &plugin.StreamDescriptor{
			Key:        it.ID,
			Title:      it.Name,
			Properties: sourceProperties(it.MediaSources[0]),
			Candidates: lo.Map(it.MediaSources, func(ms mediaSource, _ int) plugin.StreamCandidate {
				return plugin.StreamCandidate{
					Key:        ms.ID,
					Title:      lo.Ternary(ms.Name != "", ms.Name, it.Name),
					Properties: sourceProperties(ms),
				}
			}),
		}, nil
	}
	return p.resolve(ctx, s, it, cfg)
}

func (p *Plugin) resolve(ctx context.Context, s Settings, it item, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	body := playbackInfoRequest{
		UserID:              s.UserID,
		MediaSourceID:       cfg.Key,
		MaxStreamingBitrate: cfg.Bitrate,
		AudioStreamIndex:    cfg.AudioStreamIndex,
		StartTimeTicks:      int64(cfg.ProgressSeconds * ticksPerSecond),
		DeviceProfile:       cfg.DeviceProfile,
		EnableDirectStream:  true,
		EnableTranscoding:   true,
	}

	var info playbackInfoResponse
	err := p.client.DoJSON(ctx, upstream.Request{
		Method: http.MethodPost,
		URL:    s.BaseURL + "/Items/" + url.PathEscape(it.ID) + "/PlaybackInfo",
		Query:  url.Values{"UserId": {s.UserID}},
		Header: p.authHeader(s.APIKey),
		Body:   body,
	}, &info)
	if err != nil {
		return nil, fmt.Errorf("jellyfin playback info for %s: %w", it.ID, err)
	}

	ms, ok := lo.Find(info.MediaSources, func(ms mediaSource) bool {
		return cfg.Key == "" || ms.ID == cfg.Key
	})
	if !ok {
		return nil, fmt.Errorf("jellyfin media source %q of %s: %w", cfg.Key, it.ID, plugin.ErrNotFound)
	}

	desc := &plugin.StreamDescriptor{
		Key:          ms.ID,
		Title:        lo.Ternary(ms.Name != "", ms.Name, it.Name),
		Properties:   sourceProperties(ms),
		AudioStreams: audioStreams(ms),
		Subtitles:    subtitles(it.ID, ms),
	}

	if ms.TranscodingURL != "" {
		desc.URI = strings.TrimPrefix(plugin.StripQueryParams(ms.TranscodingURL, "api_key", "ApiKey"), "/")
		return desc, nil
	}

	q := url.Values{
		"static":        {"true"},
		"mediaSourceId": {ms.ID},
	}
	if info.PlaySessionID != "" {
		q.Set("PlaySessionId", info.PlaySessionID)
	}
	desc.URI = "Videos/" + url.PathEscape(it.ID) + "/stream?" + q.Encode()
	desc.DirectPlay = true
	return desc, nil
}

func sourceProperties(ms mediaSource) []plugin.StreamProperty {
	props := []plugin.StreamProperty{}
	if video, ok := lo.Find(ms.MediaStreams, func(st mediaStream) bool { return st.Type == "Video" }); ok {
		if video.Height > 0 {
			props = append(props, plugin.StreamProperty{
				Label: "Resolution", Value: video.Height,
				FormattedValue: fmt.Sprintf("%dx%d", video.Width, video.Height),
			})
		}
		if video.Codec != "" {
			props = append(props, plugin.StreamProperty{Label: "Video Codec", Value: video.Codec, FormattedValue: strings.ToUpper(video.Codec)})
		}
	}
	if ms.Container != "" {
		props = append(props, plugin.StreamProperty{Label: "Container", Value: ms.Container})
	}
	if ms.Size > 0 {
		props = append(props, plugin.StreamProperty{Label: "Size", Value: ms.Size, FormattedValue: plugin.FormatBytes(ms.Size)})
	}
	if ms.Bitrate > 0 {
		props = append(props, plugin.StreamProperty{Label: "Bitrate", Value: ms.Bitrate, FormattedValue: plugin.FormatBitrate(ms.Bitrate)})
	}
	return props
}

func audioStreams(ms mediaSource) []plugin.AudioStream {
	return lo.FilterMap(ms.MediaStreams, func(st mediaStream, _ int) (plugin.AudioStream, bool) {
		return plugin.AudioStream{
			Index:    st.Index,
			Label:    st.DisplayTitle,
			Language: st.Language,
			Codec:    st.Codec,
			Default:  st.IsDefault,
		}, st.Type == "Audio"
	})
}

func subtitles(itemID string, ms mediaSource) []plugin.Subtitle {
	return lo.FilterMap(ms.MediaStreams, func(st mediaStream, _ int) (plugin.Subtitle, bool) {
		return plugin.Subtitle{
			Index:    st.Index,
			Label:    st.DisplayTitle,
			Language: st.Language,
			Codec:    st.Codec,
			URI:      fmt.Sprintf("Videos/%s/%s/Subtitles/%d/0/Stream.vtt", url.PathEscape(itemID), url.PathEscape(ms.ID), st.Index),
			Default:  st.IsDefault,
		}, st.Type == "Subtitle"
	})
}
