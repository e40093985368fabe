/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package subsonic implements the Subsonic-compatible REST API under /rest.
package subsonic

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"time"
)

// APIVersion is the Subsonic protocol version this server speaks.
const APIVersion = "1.16.1"

const xmlns = "http://subsonic.org/restapi"

// Subsonic error codes.
const (
	ErrCodeGeneric       = 0
	ErrCodeMissingParam  = 10
	ErrCodeWrongAuth     = 40
	ErrCodeNotAuthorized = 50
	ErrCodeNotFound      = 70
)

// Response is the subsonic-response envelope. Exactly one payload field is
// set per response.
type Response struct {
	XMLName xml.Name `xml:"subsonic-response" json:"-"`
	Xmlns   string   `xml:"xmlns,attr" json:"-"`
	Status  string   `xml:"status,attr" json:"status"`
	Version string   `xml:"version,attr" json:"version"`

	Error         *Error         `xml:"error,omitempty" json:"error,omitempty"`
	License       *License       `xml:"license,omitempty" json:"license,omitempty"`
	MusicFolders  *MusicFolders  `xml:"musicFolders,omitempty" json:"musicFolders,omitempty"`
	Indexes       *Indexes       `xml:"indexes,omitempty" json:"indexes,omitempty"`
	Artists       *Indexes       `xml:"artists,omitempty" json:"artists,omitempty"`
	Artist        *Artist        `xml:"artist,omitempty" json:"artist,omitempty"`
	Album         *Album         `xml:"album,omitempty" json:"album,omitempty"`
	Song          *Child         `xml:"song,omitempty" json:"song,omitempty"`
	Genres        *Genres        `xml:"genres,omitempty" json:"genres,omitempty"`
	AlbumList2    *AlbumList2    `xml:"albumList2,omitempty" json:"albumList2,omitempty"`
	RandomSongs   *Songs         `xml:"randomSongs,omitempty" json:"randomSongs,omitempty"`
	SongsByGenre  *Songs         `xml:"songsByGenre,omitempty" json:"songsByGenre,omitempty"`
	SearchResult3 *SearchResult3 `xml:"searchResult3,omitempty" json:"searchResult3,omitempty"`
	Starred2      *Starred2      `xml:"starred2,omitempty" json:"starred2,omitempty"`
	Playlists     *Playlists     `xml:"playlists,omitempty" json:"playlists,omitempty"`
	Playlist      *Playlist      `xml:"playlist,omitempty" json:"playlist,omitempty"`
	ScanStatus    *ScanStatus    `xml:"scanStatus,omitempty" json:"scanStatus,omitempty"`
	User          *User          `xml:"user,omitempty" json:"user,omitempty"`
	Users         *Users         `xml:"users,omitempty" json:"users,omitempty"`
}

// NewResponse creates an ok envelope.
func NewResponse() *Response {
	return &Response{Xmlns: xmlns, Status: "ok", Version: APIVersion}
}

// NewError creates a failed envelope.
func NewError(code int, message string) *Response {
	resp := NewResponse()
	resp.Status = "failed"
	resp.Error = &Error{Code: code, Message: message}
	return resp
}

// Error carries a Subsonic error code.
type Error struct {
	Code    int    `xml:"code,attr" json:"code"`
	Message string `xml:"message,attr" json:"message"`
}

// License reports licensing state. This server is always licensed.
type License struct {
	Valid bool `xml:"valid,attr" json:"valid"`
}

// MusicFolders lists configured library roots.
type MusicFolders struct {
	MusicFolder []MusicFolder `xml:"musicFolder" json:"musicFolder"`
}

// MusicFolder is one library root.
type MusicFolder struct {
	ID   int    `xml:"id,attr" json:"id"`
	Name string `xml:"name,attr" json:"name"`
}

// Indexes is the alphabetical artist index, shared by getIndexes and
// getArtists.
type Indexes struct {
	LastModified    int64   `xml:"lastModified,attr" json:"lastModified"`
	IgnoredArticles string  `xml:"ignoredArticles,attr" json:"ignoredArticles"`
	Index           []Index `xml:"index" json:"index"`
}

// Index groups artists under one letter.
type Index struct {
	Name   string   `xml:"name,attr" json:"name"`
	Artist []Artist `xml:"artist" json:"artist"`
}

// Artist is an ID3 artist, optionally with its albums.
type Artist struct {
	ID         string     `xml:"id,attr" json:"id"`
	Name       string     `xml:"name,attr" json:"name"`
	CoverArt   string     `xml:"coverArt,attr,omitempty" json:"coverArt,omitempty"`
	AlbumCount int        `xml:"albumCount,attr" json:"albumCount"`
	Starred    *time.Time `xml:"starred,attr,omitempty" json:"starred,omitempty"`
	Album      []Album    `xml:"album,omitempty" json:"album,omitempty"`
}

// Album is an ID3 album, optionally with its songs.
type Album struct {
	ID        string     `xml:"id,attr" json:"id"`
	Name      string     `xml:"name,attr" json:"name"`
	Artist    string     `xml:"artist,attr" json:"artist"`
	ArtistID  string     `xml:"artistId,attr" json:"artistId"`
	CoverArt  string     `xml:"coverArt,attr,omitempty" json:"coverArt,omitempty"`
	SongCount int        `xml:"songCount,attr" json:"songCount"`
	Duration  int        `xml:"duration,attr" json:"duration"`
	PlayCount int64      `xml:"playCount,attr,omitempty" json:"playCount,omitempty"`
	Created   time.Time  `xml:"created,attr" json:"created"`
	Year      int        `xml:"year,attr,omitempty" json:"year,omitempty"`
	Genre     string     `xml:"genre,attr,omitempty" json:"genre,omitempty"`
	Starred   *time.Time `xml:"starred,attr,omitempty" json:"starred,omitempty"`
	Song      []Child    `xml:"song,omitempty" json:"song,omitempty"`
}

// Child is a song entry.
type Child struct {
	ID          string     `xml:"id,attr" json:"id"`
	Parent      string     `xml:"parent,attr,omitempty" json:"parent,omitempty"`
	Title       string     `xml:"title,attr" json:"title"`
	Album       string     `xml:"album,attr,omitempty" json:"album,omitempty"`
	Artist      string     `xml:"artist,attr,omitempty" json:"artist,omitempty"`
	IsDir       bool       `xml:"isDir,attr" json:"isDir"`
	CoverArt    string     `xml:"coverArt,attr,omitempty" json:"coverArt,omitempty"`
	Created     time.Time  `xml:"created,attr" json:"created"`
	Duration    int        `xml:"duration,attr" json:"duration"`
	BitRate     int        `xml:"bitRate,attr,omitempty" json:"bitRate,omitempty"`
	Track       int        `xml:"track,attr,omitempty" json:"track,omitempty"`
	DiscNumber  int        `xml:"discNumber,attr,omitempty" json:"discNumber,omitempty"`
	Year        int        `xml:"year,attr,omitempty" json:"year,omitempty"`
	Genre       string     `xml:"genre,attr,omitempty" json:"genre,omitempty"`
	Size        int64      `xml:"size,attr,omitempty" json:"size,omitempty"`
	Suffix      string     `xml:"suffix,attr,omitempty" json:"suffix,omitempty"`
	ContentType string     `xml:"contentType,attr,omitempty" json:"contentType,omitempty"`
	Path        string     `xml:"path,attr,omitempty" json:"path,omitempty"`
	AlbumID     string     `xml:"albumId,attr,omitempty" json:"albumId,omitempty"`
	ArtistID    string     `xml:"artistId,attr,omitempty" json:"artistId,omitempty"`
	PlayCount   int64      `xml:"playCount,attr,omitempty" json:"playCount,omitempty"`
	Starred     *time.Time `xml:"starred,attr,omitempty" json:"starred,omitempty"`
	UserRating  int        `xml:"userRating,attr,omitempty" json:"userRating,omitempty"`
	Type        string     `xml:"type,attr" json:"type"`
}

// Genres lists catalog genres with usage counts.
type Genres struct {
	Genre []Genre `xml:"genre" json:"genre"`
}

// Genre is one genre entry. The name is element text in XML.
type Genre struct {
	SongCount  int    `xml:"songCount,attr" json:"songCount"`
	AlbumCount int    `xml:"albumCount,attr" json:"albumCount"`
	Name       string `xml:",chardata" json:"value"`
}

// AlbumList2 pages albums for browsing by type.
type AlbumList2 struct {
	Album []Album `xml:"album" json:"album"`
}

// Songs wraps a flat song list (getRandomSongs, getSongsByGenre).
type Songs struct {
	Song []Child `xml:"song" json:"song"`
}

// SearchResult3 is the ID3 search result.
type SearchResult3 struct {
	Artist []Artist `xml:"artist,omitempty" json:"artist,omitempty"`
	Album  []Album  `xml:"album,omitempty" json:"album,omitempty"`
	Song   []Child  `xml:"song,omitempty" json:"song,omitempty"`
}

// Starred2 lists the user's starred items.
type Starred2 struct {
	Artist []Artist `xml:"artist,omitempty" json:"artist,omitempty"`
	Album  []Album  `xml:"album,omitempty" json:"album,omitempty"`
	Song   []Child  `xml:"song,omitempty" json:"song,omitempty"`
}

// Playlists lists playlists visible to the caller.
type Playlists struct {
	Playlist []Playlist `xml:"playlist" json:"playlist"`
}

// Playlist is a playlist, optionally with entries.
type Playlist struct {
	ID        string    `xml:"id,attr" json:"id"`
	Name      string    `xml:"name,attr" json:"name"`
	Comment   string    `xml:"comment,attr,omitempty" json:"comment,omitempty"`
	Owner     string    `xml:"owner,attr,omitempty" json:"owner,omitempty"`
	Public    bool      `xml:"public,attr" json:"public"`
	SongCount int       `xml:"songCount,attr" json:"songCount"`
	Duration  int       `xml:"duration,attr" json:"duration"`
	Created   time.Time `xml:"created,attr" json:"created"`
	Changed   time.Time `xml:"changed,attr" json:"changed"`
	Entry     []Child   `xml:"entry,omitempty" json:"entry,omitempty"`
}

// ScanStatus reports scanner progress.
type ScanStatus struct {
	Scanning bool  `xml:"scanning,attr" json:"scanning"`
	Count    int64 `xml:"count,attr" json:"count"`
}

// User describes an account.
type User struct {
	Username     string `xml:"username,attr" json:"username"`
	Email        string `xml:"email,attr,omitempty" json:"email,omitempty"`
	AdminRole    bool   `xml:"adminRole,attr" json:"adminRole"`
	SettingsRole bool   `xml:"settingsRole,attr" json:"settingsRole"`
	DownloadRole bool   `xml:"downloadRole,attr" json:"downloadRole"`
	UploadRole   bool   `xml:"uploadRole,attr" json:"uploadRole"`
	PlaylistRole bool   `xml:"playlistRole,attr" json:"playlistRole"`
	StreamRole   bool   `xml:"streamRole,attr" json:"streamRole"`
	ScrobbleRole bool   `xml:"scrobbleRole,attr" json:"scrobbleRole"`
}

// Users lists accounts.
type Users struct {
	User []User `xml:"user" json:"user"`
}

// sendResponse writes the envelope in the format the f parameter asks for.
// JSON responses are wrapped in the subsonic-response object; XML gets the
// standard namespace. Unknown formats fall back to XML, matching the
// reference server.
func sendResponse(w http.ResponseWriter, r *http.Request, resp *Response) {
	switch r.URL.Query().Get("f") {
	case "json":
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]*Response{"subsonic-response": resp})
	case "jsonp":
		callback := r.URL.Query().Get("callback")
		if callback == "" {
			callback = "callback"
		}
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		payload, _ := json.Marshal(map[string]*Response{"subsonic-response": resp})
		_, _ = w.Write([]byte(callback + "("))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte(");"))
	default:
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		_, _ = w.Write([]byte(xml.Header))
		_ = xml.NewEncoder(w).Encode(resp)
	}
}

func sendError(w http.ResponseWriter, r *http.Request, code int, message string) {
	sendResponse(w, r, NewError(code, message))
}
