// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package jellyfin

// Subset of the Jellyfin REST API used for lookups.

type itemsResponse struct {
	Items            []item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

type item struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	Type              string            `json:"Type"`
	ProviderIDs       map[string]string `json:"ProviderIds"`
	IndexNumber       int               `json:"IndexNumber"`
	ParentIndexNumber int               `json:"ParentIndexNumber"`
	MediaSources      []mediaSource     `json:"MediaSources"`
}

type mediaSource struct {
	ID                   string        `json:"Id"`
	Name                 string        `json:"Name"`
	Container            string        `json:"Container"`
	Size                 int64         `json:"Size"`
	Bitrate              int64         `json:"Bitrate"`
	SupportsDirectStream bool          `json:"SupportsDirectStream"`
	TranscodingURL       string        `json:"TranscodingUrl"`
	MediaStreams         []mediaStream `json:"MediaStreams"`
}

type mediaStream struct {
	Type         string `json:"Type"`
	Index        int    `json:"Index"`
	Codec        string `json:"Codec"`
	Language     string `json:"Language"`
	DisplayTitle string `json:"DisplayTitle"`
	IsDefault    bool   `json:"IsDefault"`
	Width        int    `json:"Width"`
	Height       int    `json:"Height"`
}

type playbackInfoRequest struct {
	UserID              string         `json:"UserId"`
	MediaSourceID       string         `json:"MediaSourceId,omitempty"`
	MaxStreamingBitrate int            `json:"MaxStreamingBitrate,omitempty"`
	AudioStreamIndex    *int           `json:"AudioStreamIndex,omitempty"`
	StartTimeTicks      int64          `json:"StartTimeTicks,omitempty"`
	DeviceProfile       map[string]any `json:"DeviceProfile,omitempty"`
	EnableDirectStream  bool           `json:"EnableDirectStream"`
	EnableTranscoding   bool           `json:"EnableTranscoding"`
	AutoOpenLiveStream  bool           `json:"AutoOpenLiveStream"`
}

type playbackInfoResponse struct {
	MediaSources  []mediaSource `json:"MediaSources"`
	PlaySessionID string        `json:"PlaySessionId"`
}
