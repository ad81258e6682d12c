// Reelhub - Media Source Aggregation and Streaming Proxy
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/reelhub

package plex

// Plex library item types.
const (
	typeMovie = "1"
	typeShow  = "2"
)

// Plex stream types inside a media part.
const (
	streamVideo    = 1
	streamAudio    = 2
	streamSubtitle = 3
)

type containerResponse struct {
	MediaContainer mediaContainer `json:"MediaContainer"`
}

type mediaContainer struct {
	Size     int        `json:"size"`
	Metadata []metadata `json:"Metadata"`
}

type metadata struct {
	RatingKey   string  `json:"ratingKey"`
	Title       string  `json:"title"`
	Type        string  `json:"type"`
	Index       int     `json:"index"`
	ParentIndex int     `json:"parentIndex"`
	Guid        []guid  `json:"Guid"`
	Media       []media `json:"Media"`
}

type guid struct {
	ID string `json:"id"`
}

type media struct {
	ID              int64  `json:"id"`
	Bitrate         int64  `json:"bitrate"` // kbps
	Container       string `json:"container"`
	VideoCodec      string `json:"videoCodec"`
	VideoResolution string `json:"videoResolution"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Part            []part `json:"Part"`
}

type part struct {
	ID     int64    `json:"id"`
	Key    string   `json:"key"`
	Size   int64    `json:"size"`
	Stream []stream `json:"Stream"`
}

type stream struct {
	ID           int64  `json:"id"`
	StreamType   int    `json:"streamType"`
	Index        int    `json:"index"`
	Codec        string `json:"codec"`
	LanguageCode string `json:"languageCode"`
	DisplayTitle string `json:"displayTitle"`
	Selected     bool   `json:"selected"`
	Key          string `json:"key"`
}
