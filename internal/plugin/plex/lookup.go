// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package plex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/tomtom215/reelhub/internal/plugin"
	"github.com/tomtom215/reelhub/internal/upstream"
)

// GetMovieStream finds the movie by TMDB guid and lists or resolves its streams.
func (p *Plugin) GetMovieStream(ctx context.Context, tmdbID string, creds plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	s, err := decode(creds.Settings)
	if err != nil {
		return nil, err
	}
	movie, err := p.findByGuid(ctx, s, typeMovie, tmdbID)
	if err != nil {
		return nil, err
	}
	return p.describe(s, movie, cfg)
}

// GetEpisodeStream finds the show by TMDB guid, then the episode among its leaves.
func (p *Plugin) GetEpisodeStream(ctx context.Context, tmdbID string, season, episode int, creds plugin.Credentials, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	s, err := decode(creds.Settings)
	if err != nil {
		return nil, err
	}
	show, err := p.findByGuid(ctx, s, typeShow, tmdbID)
	if err != nil {
		return nil, err
	}

	var leaves containerResponse
	err = p.client.DoJSON(ctx, upstream.Request{
		URL:    s.BaseURL + "/library/metadata/" + url.PathEscape(show.RatingKey) + "/allLeaves",
		Header: p.headers(s.Token),
	}, &leaves)
	if err != nil {
		return nil, fmt.Errorf("plex episodes of %s: %w", show.RatingKey, err)
	}

	ep, ok := lo.Find(leaves.MediaContainer.Metadata, func(m metadata) bool {
		return m.ParentIndex == season && m.Index == episode
	})
	if !ok {
		return nil, fmt.Errorf("plex S%02dE%02d of tmdb %s: %w", season, episode, tmdbID, plugin.ErrNotFound)
	}
	return p.describe(s, ep, cfg)
}

func (p *Plugin) findByGuid(ctx context.Context, s Settings, itemType, tmdbID string) (metadata, error) {
	want := "tmdb://" + tmdbID

	var res containerResponse
	err := p.client.DoJSON(ctx, upstream.Request{
		URL: s.BaseURL + "/library/all",
		Query: url.Values{
			"type":         {itemType},
			"guid":         {want},
			"includeGuids": {"1"},
		},
		Header: p.headers(s.Token),
	}, &res)
	if err != nil {
		return metadata{}, fmt.Errorf("plex lookup for tmdb %s: %w", tmdbID, err)
	}

	found, ok := lo.Find(res.MediaContainer.Metadata, func(m metadata) bool {
		return lo.ContainsBy(m.Guid, func(g guid) bool { return g.ID == want })
	})
	if !ok {
		return metadata{}, fmt.Errorf("plex tmdb %s: %w", tmdbID, plugin.ErrNotFound)
	}
	return found, nil
}

func (p *Plugin) describe(s Settings, m metadata, cfg *plugin.PlaybackConfig) (*plugin.StreamDescriptor, error) {
	playable := lo.Filter(m.Media, func(md media, _ int) bool { return len(md.Part) > 0 })
	if len(playable) == 0 {
		return nil, fmt.Errorf("plex item %s has no playable media: %w", m.RatingKey, plugin.ErrNotFound)
	}

	if cfg == nil {
		return &plugin.StreamDescriptor{
			Key:        m.RatingKey,
			Title:      m.Title,
			Properties: mediaProperties(playable[0]),
			Candidates: lo.Map(playable, func(md media, _ int) plugin.StreamCandidate {
				return plugin.StreamCandidate{
					Key:        strconv.FormatInt(md.ID, 10),
					Title:      candidateTitle(m.Title, md),
					Properties: mediaProperties(md),
				}
			}),
		}, nil
	}

	md, ok := lo.Find(playable, func(md media) bool {
		return cfg.Key == "" || strconv.FormatInt(md.ID, 10) == cfg.Key
	})
	if !ok {
		return nil, fmt.Errorf("plex media %q of %s: %w", cfg.Key, m.RatingKey, plugin.ErrNotFound)
	}
	pt := md.Part[0]

	desc := &plugin.StreamDescriptor{
		Key:          strconv.FormatInt(md.ID, 10),
		Title:        candidateTitle(m.Title, md),
		Properties:   mediaProperties(md),
		AudioStreams: audioStreams(pt),
		Subtitles:    subtitles(pt),
	}

	// Plex reports bitrate in kbps.
	if cfg.Bitrate > 0 && md.Bitrate*1000 > int64(cfg.Bitrate) {
		_, mediaIndex, _ := lo.FindIndexOf(m.Media, func(x media) bool { return x.ID == md.ID })
		desc.URI = p.transcodeURI(m.RatingKey, mediaIndex, cfg)
		return desc, nil
	}

	desc.URI = strings.TrimPrefix(pt.Key, "/")
	desc.DirectPlay = true
	return desc, nil
}

func (p *Plugin) transcodeURI(ratingKey string, mediaIndex int, cfg *plugin.PlaybackConfig) string {
	q := url.Values{
		"path":                     {"/library/metadata/" + ratingKey},
		"mediaIndex":               {strconv.Itoa(mediaIndex)},
		"partIndex":                {"0"},
		"protocol":                 {"hls"},
		"directPlay":               {"0"},
		"directStream":             {"1"},
		"maxVideoBitrate":          {strconv.Itoa(cfg.Bitrate / 1000)},
		"offset":                   {strconv.Itoa(int(cfg.ProgressSeconds))},
		"X-Plex-Client-Identifier": {p.clientID},
		"X-Plex-Product":           {product},
	}
	if cfg.AudioStreamIndex != nil {
		q.Set("audioStreamID", strconv.Itoa(*cfg.AudioStreamIndex))
	}
	return "video/:/transcode/universal/start.m3u8?" + q.Encode()
}

func candidateTitle(title string, md media) string {
	if md.VideoResolution == "" {
		return title
	}
	res := md.VideoResolution
	if _, err := strconv.Atoi(res); err == nil {
		res += "p"
	}
	return fmt.Sprintf("%s (%s)", title, strings.ToUpper(res))
}

func mediaProperties(md media) []plugin.StreamProperty {
	props := []plugin.StreamProperty{}
	if md.Height > 0 {
		props = append(props, plugin.StreamProperty{
			Label: "Resolution", Value: md.Height,
			FormattedValue: fmt.Sprintf("%dx%d", md.Width, md.Height),
		})
	}
	if md.VideoCodec != "" {
		props = append(props, plugin.StreamProperty{Label: "Video Codec", Value: md.VideoCodec, FormattedValue: strings.ToUpper(md.VideoCodec)})
	}
	if md.Container != "" {
		props = append(props, plugin.StreamProperty{Label: "Container", Value: md.Container})
	}
	if size := lo.SumBy(md.Part, func(pt part) int64 { return pt.Size }); size > 0 {
		props = append(props, plugin.StreamProperty{Label: "Size", Value: size, FormattedValue: plugin.FormatBytes(size)})
	}
	if md.Bitrate > 0 {
		props = append(props, plugin.StreamProperty{Label: "Bitrate", Value: md.Bitrate * 1000, FormattedValue: plugin.FormatBitrate(md.Bitrate * 1000)})
	}
	return props
}

func audioStreams(pt part) []plugin.AudioStream {
	return lo.FilterMap(pt.Stream, func(st stream, _ int) (plugin.AudioStream, bool) {
		return plugin.AudioStream{
			Index:    int(st.ID),
			Label:    st.DisplayTitle,
			Language: st.LanguageCode,
			Codec:    st.Codec,
			Default:  st.Selected,
		}, st.StreamType == streamAudio
	})
}

func subtitles(pt part) []plugin.Subtitle {
	return lo.FilterMap(pt.Stream, func(st stream, _ int) (plugin.Subtitle, bool) {
		return plugin.Subtitle{
			Index:    int(st.ID),
			Label:    st.DisplayTitle,
			Language: st.LanguageCode,
			Codec:    st.Codec,
			URI:      strings.TrimPrefix(st.Key, "/"),
			Default:  st.Selected,
		}, st.StreamType == streamSubtitle
	})
}
