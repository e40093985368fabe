package subsonic

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/bragi_stream/internal/artwork"
	"github.com/friendsincode/bragi_stream/internal/auth"
	"github.com/friendsincode/bragi_stream/internal/cache"
	"github.com/friendsincode/bragi_stream/internal/config"
	dbpkg "github.com/friendsincode/bragi_stream/internal/db"
	"github.com/friendsincode/bragi_stream/internal/events"
	"github.com/friendsincode/bragi_stream/internal/models"
	"github.com/friendsincode/bragi_stream/internal/scanner"
	"github.com/friendsincode/bragi_stream/internal/storage"
)

type testEnv struct {
	api     *API
	db      *gorm.DB
	handler http.Handler
	sealer  *auth.PasswordSealer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := dbpkg.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sealer, err := auth.NewPasswordSealer([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = "127.0.0.1:1" // nothing listens, cache runs disabled
	c, err := cache.New(cacheCfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("cache: %v", err)
	}

	store := storage.NewFilesystemStore(t.TempDir(), zerolog.Nop())
	art := artwork.NewService(store, c, 2, nil, zerolog.Nop())

	musicDir := t.TempDir()
	folders := []config.MusicFolder{{ID: 1, Name: "Music", Path: musicDir}}
	bus := events.NewBus()
	scan := scanner.New(db, nil, art, bus, folders, 2, 10, zerolog.Nop())

	api := New(db, scan, art, c, sealer, bus, folders, zerolog.Nop())
	router := chi.NewRouter()
	api.Routes(router)

	env := &testEnv{api: api, db: db, handler: router, sealer: sealer}
	env.createUser(t, "admin", "adminpass", true)
	env.createUser(t, "alice", "alicepass", false)
	return env
}

func (e *testEnv) createUser(t *testing.T, username, password string, admin bool) models.User {
	t.Helper()
	sealed, err := e.sealer.Seal(password)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	user := models.User{ID: uuid.NewString(), Username: username, SealedPassword: sealed, Admin: admin}
	if err := e.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// seedCatalog inserts one artist with one album of two songs.
func (e *testEnv) seedCatalog(t *testing.T) (models.Artist, models.Album, []models.Song) {
	t.Helper()
	artist := models.Artist{ID: uuid.NewString(), Name: "Seeded Artist"}
	if err := e.db.Create(&artist).Error; err != nil {
		t.Fatalf("create artist: %v", err)
	}
	album := models.Album{ID: uuid.NewString(), ArtistID: artist.ID, Name: "Seeded Album", Year: 1999, Genre: "Rock", SongCount: 2, Duration: 300}
	if err := e.db.Create(&album).Error; err != nil {
		t.Fatalf("create album: %v", err)
	}
	songs := []models.Song{
		{ID: uuid.NewString(), AlbumID: album.ID, ArtistID: artist.ID, Title: "First Song", Track: 1, Duration: 150, Genre: "Rock", Path: "/music/1.mp3", Suffix: "mp3", ContentType: "audio/mpeg"},
		{ID: uuid.NewString(), AlbumID: album.ID, ArtistID: artist.ID, Title: "Second Song", Track: 2, Duration: 150, Genre: "Rock", Path: "/music/2.mp3", Suffix: "mp3", ContentType: "audio/mpeg"},
	}
	for i := range songs {
		if err := e.db.Create(&songs[i]).Error; err != nil {
			t.Fatalf("create song: %v", err)
		}
	}
	return artist, album, songs
}

// get performs an authenticated JSON request and decodes the envelope.
func (e *testEnv) get(t *testing.T, username, password, view string, params url.Values) *Response {
	t.Helper()
	rec := e.getRaw(t, username, password, view, params)
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	var envelope struct {
		Resp *Response `json:"subsonic-response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v\nbody: %s", err, rec.Body.String())
	}
	if envelope.Resp == nil {
		t.Fatalf("missing subsonic-response wrapper: %s", rec.Body.String())
	}
	if envelope.Resp.Version != APIVersion {
		t.Fatalf("expected version %s, got %s", APIVersion, envelope.Resp.Version)
	}
	return envelope.Resp
}

func (e *testEnv) getRaw(t *testing.T, username, password, view string, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	if params == nil {
		params = url.Values{}
	}
	if username != "" {
		salt := "c0ffee"
		sum := md5.Sum([]byte(password + salt))
		params.Set("u", username)
		params.Set("t", hex.EncodeToString(sum[:]))
		params.Set("s", salt)
	}
	if params.Get("f") == "" {
		params.Set("f", "json")
	}

	req := httptest.NewRequest(http.MethodGet, "/rest/"+view+"?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func requireOK(t *testing.T, resp *Response) {
	t.Helper()
	if resp.Status != "ok" {
		t.Fatalf("expected ok response, got %s (error: %+v)", resp.Status, resp.Error)
	}
}

func requireError(t *testing.T, resp *Response, code int) {
	t.Helper()
	if resp.Status != "failed" || resp.Error == nil {
		t.Fatalf("expected failed response, got %+v", resp)
	}
	if resp.Error.Code != code {
		t.Fatalf("expected error code %d, got %d (%s)", code, resp.Error.Code, resp.Error.Message)
	}
}

func TestPing(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "admin", "adminpass", "ping", nil)
	requireOK(t, resp)
}

func TestPing_XMLDefault(t *testing.T) {
	env := newTestEnv(t)
	params := url.Values{}
	salt := "c0ffee"
	sum := md5.Sum([]byte("adminpass" + salt))
	params.Set("u", "admin")
	params.Set("t", hex.EncodeToString(sum[:]))
	params.Set("s", salt)

	req := httptest.NewRequest(http.MethodGet, "/rest/ping.view?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/xml") {
		t.Fatalf("expected XML content type, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `<subsonic-response`) || !strings.Contains(body, `status="ok"`) {
		t.Fatalf("unexpected XML body: %s", body)
	}
}

func TestAuth_MissingUsername(t *testing.T) {
	env := newTestEnv(t)
	rec := env.getRaw(t, "", "", "ping", url.Values{"f": {"json"}})

	var envelope struct {
		Resp *Response `json:"subsonic-response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	requireError(t, envelope.Resp, ErrCodeMissingParam)
}

func TestAuth_WrongToken(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "admin", "wrongpass", "ping", nil)
	requireError(t, resp, ErrCodeWrongAuth)
}

func TestAuth_UnknownUser(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "nobody", "whatever", "ping", nil)
	requireError(t, resp, ErrCodeWrongAuth)
}

func TestAuth_LegacyPassword(t *testing.T) {
	env := newTestEnv(t)
	params := url.Values{}
	params.Set("u", "admin")
	params.Set("p", "enc:"+hex.EncodeToString([]byte("adminpass")))
	params.Set("f", "json")

	req := httptest.NewRequest(http.MethodGet, "/rest/ping?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	var envelope struct {
		Resp *Response `json:"subsonic-response"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	requireOK(t, envelope.Resp)
}

func TestGetLicense(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "alice", "alicepass", "getLicense", nil)
	requireOK(t, resp)
	if resp.License == nil || !resp.License.Valid {
		t.Fatal("expected a valid license")
	}
}

func TestGetMusicFolders(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "alice", "alicepass", "getMusicFolders", nil)
	requireOK(t, resp)
	if resp.MusicFolders == nil || len(resp.MusicFolders.MusicFolder) != 1 {
		t.Fatalf("expected 1 music folder, got %+v", resp.MusicFolders)
	}
	if resp.MusicFolders.MusicFolder[0].Name != "Music" {
		t.Fatalf("unexpected folder name %q", resp.MusicFolders.MusicFolder[0].Name)
	}
}

func TestGetArtistsAndArtist(t *testing.T) {
	env := newTestEnv(t)
	artist, album, _ := env.seedCatalog(t)

	resp := env.get(t, "alice", "alicepass", "getArtists", nil)
	requireOK(t, resp)
	if resp.Artists == nil || len(resp.Artists.Index) == 0 {
		t.Fatalf("expected artist index, got %+v", resp.Artists)
	}
	if resp.Artists.Index[0].Name != "S" {
		t.Fatalf("expected index letter S, got %q", resp.Artists.Index[0].Name)
	}

	resp = env.get(t, "alice", "alicepass", "getArtist", url.Values{"id": {artist.ID}})
	requireOK(t, resp)
	if resp.Artist == nil || resp.Artist.Name != "Seeded Artist" {
		t.Fatalf("unexpected artist %+v", resp.Artist)
	}
	if len(resp.Artist.Album) != 1 || resp.Artist.Album[0].ID != album.ID {
		t.Fatalf("expected the seeded album, got %+v", resp.Artist.Album)
	}
}

func TestGetArtist_NotFound(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "alice", "alicepass", "getArtist", url.Values{"id": {uuid.NewString()}})
	requireError(t, resp, ErrCodeNotFound)
}

func TestGetAlbum(t *testing.T) {
	env := newTestEnv(t)
	_, album, songs := env.seedCatalog(t)

	resp := env.get(t, "alice", "alicepass", "getAlbum", url.Values{"id": {album.ID}})
	requireOK(t, resp)
	if resp.Album == nil || len(resp.Album.Song) != 2 {
		t.Fatalf("expected 2 songs, got %+v", resp.Album)
	}
	if resp.Album.Song[0].ID != songs[0].ID {
		t.Fatalf("expected track order, got %+v", resp.Album.Song)
	}
	if resp.Album.Song[0].Artist != "Seeded Artist" {
		t.Fatalf("expected joined artist name, got %q", resp.Album.Song[0].Artist)
	}
}

func TestGetGenres(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog(t)

	resp := env.get(t, "alice", "alicepass", "getGenres", nil)
	requireOK(t, resp)
	if resp.Genres == nil || len(resp.Genres.Genre) != 1 {
		t.Fatalf("expected 1 genre, got %+v", resp.Genres)
	}
	g := resp.Genres.Genre[0]
	if g.Name != "Rock" || g.SongCount != 2 || g.AlbumCount != 1 {
		t.Fatalf("unexpected genre entry %+v", g)
	}
}

func TestGetAlbumList2(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog(t)

	resp := env.get(t, "alice", "alicepass", "getAlbumList2", nil)
	requireError(t, resp, ErrCodeMissingParam)

	resp = env.get(t, "alice", "alicepass", "getAlbumList2", url.Values{"type": {"newest"}})
	requireOK(t, resp)
	if resp.AlbumList2 == nil || len(resp.AlbumList2.Album) != 1 {
		t.Fatalf("expected 1 album, got %+v", resp.AlbumList2)
	}

	resp = env.get(t, "alice", "alicepass", "getAlbumList2", url.Values{"type": {"byGenre"}, "genre": {"Rock"}})
	requireOK(t, resp)
	if len(resp.AlbumList2.Album) != 1 {
		t.Fatalf("expected byGenre hit, got %+v", resp.AlbumList2)
	}

	resp = env.get(t, "alice", "alicepass", "getAlbumList2", url.Values{"type": {"byGenre"}, "genre": {"Jazz"}})
	requireOK(t, resp)
	if len(resp.AlbumList2.Album) != 0 {
		t.Fatalf("expected no Jazz albums, got %+v", resp.AlbumList2)
	}
}

func TestSearch3(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog(t)

	resp := env.get(t, "alice", "alicepass", "search3", url.Values{"query": {"Seeded"}})
	requireOK(t, resp)
	if resp.SearchResult3 == nil {
		t.Fatal("expected search result")
	}
	if len(resp.SearchResult3.Artist) != 1 || len(resp.SearchResult3.Album) != 1 {
		t.Fatalf("expected artist and album hits, got %+v", resp.SearchResult3)
	}

	resp = env.get(t, "alice", "alicepass", "search3", url.Values{"query": {"First"}})
	requireOK(t, resp)
	if len(resp.SearchResult3.Song) != 1 {
		t.Fatalf("expected 1 song hit, got %+v", resp.SearchResult3)
	}
}

func TestStarAndStarred2(t *testing.T) {
	env := newTestEnv(t)
	_, album, songs := env.seedCatalog(t)

	resp := env.get(t, "alice", "alicepass", "star", url.Values{"id": {songs[0].ID}, "albumId": {album.ID}})
	requireOK(t, resp)

	resp = env.get(t, "alice", "alicepass", "getStarred2", nil)
	requireOK(t, resp)
	if len(resp.Starred2.Song) != 1 || len(resp.Starred2.Album) != 1 {
		t.Fatalf("expected starred song and album, got %+v", resp.Starred2)
	}
	if resp.Starred2.Song[0].Starred == nil {
		t.Fatal("expected starred timestamp on song")
	}

	// Stars are per user.
	resp = env.get(t, "admin", "adminpass", "getStarred2", nil)
	requireOK(t, resp)
	if len(resp.Starred2.Song) != 0 {
		t.Fatalf("stars must not leak between users, got %+v", resp.Starred2)
	}

	resp = env.get(t, "alice", "alicepass", "unstar", url.Values{"id": {songs[0].ID}})
	requireOK(t, resp)
	resp = env.get(t, "alice", "alicepass", "getStarred2", nil)
	requireOK(t, resp)
	if len(resp.Starred2.Song) != 0 {
		t.Fatalf("expected song unstarred, got %+v", resp.Starred2)
	}
}

func TestSetRating(t *testing.T) {
	env := newTestEnv(t)
	_, _, songs := env.seedCatalog(t)

	resp := env.get(t, "alice", "alicepass", "setRating", url.Values{"id": {songs[0].ID}, "rating": {"9"}})
	requireError(t, resp, ErrCodeGeneric)

	resp = env.get(t, "alice", "alicepass", "setRating", url.Values{"id": {songs[0].ID}, "rating": {"4"}})
	requireOK(t, resp)

	resp = env.get(t, "alice", "alicepass", "getSong", url.Values{"id": {songs[0].ID}})
	requireOK(t, resp)
	if resp.Song.UserRating != 4 {
		t.Fatalf("expected rating 4, got %d", resp.Song.UserRating)
	}
}

func TestScrobble(t *testing.T) {
	env := newTestEnv(t)
	_, album, songs := env.seedCatalog(t)

	resp := env.get(t, "alice", "alicepass", "scrobble", url.Values{"id": {songs[0].ID}})
	requireOK(t, resp)

	var song models.Song
	env.db.First(&song, "id = ?", songs[0].ID)
	if song.PlayCount != 1 {
		t.Fatalf("expected play count 1, got %d", song.PlayCount)
	}
	var al models.Album
	env.db.First(&al, "id = ?", album.ID)
	if al.PlayCount != 1 {
		t.Fatalf("expected album play count 1, got %d", al.PlayCount)
	}

	// A now-playing notification must not bump counters.
	resp = env.get(t, "alice", "alicepass", "scrobble", url.Values{"id": {songs[0].ID}, "submission": {"false"}})
	requireOK(t, resp)
	env.db.First(&song, "id = ?", songs[0].ID)
	if song.PlayCount != 1 {
		t.Fatalf("now playing must not increment, got %d", song.PlayCount)
	}
}

func TestPlaylistLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, _, songs := env.seedCatalog(t)

	resp := env.get(t, "alice", "alicepass", "createPlaylist", url.Values{
		"name":   {"Road Trip"},
		"songId": {songs[0].ID, songs[1].ID},
	})
	requireOK(t, resp)
	if resp.Playlist == nil || resp.Playlist.SongCount != 2 {
		t.Fatalf("expected playlist with 2 songs, got %+v", resp.Playlist)
	}
	playlistID := resp.Playlist.ID

	resp = env.get(t, "alice", "alicepass", "getPlaylist", url.Values{"id": {playlistID}})
	requireOK(t, resp)
	if len(resp.Playlist.Entry) != 2 || resp.Playlist.Entry[0].ID != songs[0].ID {
		t.Fatalf("unexpected entries %+v", resp.Playlist.Entry)
	}
	if resp.Playlist.Duration != 300 {
		t.Fatalf("expected duration 300, got %d", resp.Playlist.Duration)
	}

	// Remove the first entry, remaining entry renumbers to position 0.
	resp = env.get(t, "alice", "alicepass", "updatePlaylist", url.Values{
		"playlistId":        {playlistID},
		"songIndexToRemove": {"0"},
	})
	requireOK(t, resp)
	resp = env.get(t, "alice", "alicepass", "getPlaylist", url.Values{"id": {playlistID}})
	requireOK(t, resp)
	if len(resp.Playlist.Entry) != 1 || resp.Playlist.Entry[0].ID != songs[1].ID {
		t.Fatalf("expected only second song, got %+v", resp.Playlist.Entry)
	}

	// Another user cannot touch a private playlist.
	otherUser := env.createUser(t, "bob", "bobpass", false)
	_ = otherUser
	resp = env.get(t, "bob", "bobpass", "getPlaylist", url.Values{"id": {playlistID}})
	requireError(t, resp, ErrCodeNotAuthorized)
	resp = env.get(t, "bob", "bobpass", "deletePlaylist", url.Values{"id": {playlistID}})
	requireError(t, resp, ErrCodeNotAuthorized)

	resp = env.get(t, "alice", "alicepass", "deletePlaylist", url.Values{"id": {playlistID}})
	requireOK(t, resp)
	resp = env.get(t, "alice", "alicepass", "getPlaylist", url.Values{"id": {playlistID}})
	requireError(t, resp, ErrCodeNotFound)
}

func TestUserManagement_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "alice", "alicepass", "createUser", url.Values{"username": {"eve"}, "password": {"x"}})
	requireError(t, resp, ErrCodeNotAuthorized)

	resp = env.get(t, "admin", "adminpass", "createUser", url.Values{"username": {"eve"}, "password": {"evepass"}})
	requireOK(t, resp)

	// The new account can authenticate with token auth.
	resp = env.get(t, "eve", "evepass", "ping", nil)
	requireOK(t, resp)

	resp = env.get(t, "admin", "adminpass", "getUsers", nil)
	requireOK(t, resp)
	if len(resp.Users.User) != 3 {
		t.Fatalf("expected 3 users, got %+v", resp.Users)
	}

	resp = env.get(t, "admin", "adminpass", "deleteUser", url.Values{"username": {"eve"}})
	requireOK(t, resp)
	resp = env.get(t, "eve", "evepass", "ping", nil)
	requireError(t, resp, ErrCodeWrongAuth)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "alice", "alicepass", "changePassword", url.Values{"username": {"admin"}, "password": {"hax"}})
	requireError(t, resp, ErrCodeNotAuthorized)

	resp = env.get(t, "alice", "alicepass", "changePassword", url.Values{"username": {"alice"}, "password": {"newpass"}})
	requireOK(t, resp)

	resp = env.get(t, "alice", "alicepass", "ping", nil)
	requireError(t, resp, ErrCodeWrongAuth)
	resp = env.get(t, "alice", "newpass", "ping", nil)
	requireOK(t, resp)
}

func TestGetScanStatus(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "alice", "alicepass", "getScanStatus", nil)
	requireOK(t, resp)
	if resp.ScanStatus == nil || resp.ScanStatus.Scanning {
		t.Fatalf("expected idle scan status, got %+v", resp.ScanStatus)
	}
}

func TestStartScan_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "alice", "alicepass", "startScan", nil)
	requireError(t, resp, ErrCodeNotAuthorized)
}

func TestStream(t *testing.T) {
	env := newTestEnv(t)
	_, _, songs := env.seedCatalog(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "first.mp3")
	if err := os.WriteFile(path, []byte("pretend-mp3-bytes"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	if err := env.db.Model(&models.Song{}).Where("id = ?", songs[0].ID).Update("path", path).Error; err != nil {
		t.Fatalf("update path: %v", err)
	}

	rec := env.getRaw(t, "alice", "alicepass", "stream", url.Values{"id": {songs[0].ID}, "f": {"json"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "pretend-mp3-bytes" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("expected audio/mpeg, got %q", ct)
	}

	// Range requests are honored.
	params := url.Values{"id": {songs[0].ID}, "f": {"json"}}
	salt := "c0ffee"
	sum := md5.Sum([]byte("alicepass" + salt))
	params.Set("u", "alice")
	params.Set("t", hex.EncodeToString(sum[:]))
	params.Set("s", salt)
	req := httptest.NewRequest(http.MethodGet, "/rest/stream?"+params.Encode(), nil)
	req.Header.Set("Range", "bytes=0-6")
	rangeRec := httptest.NewRecorder()
	env.handler.ServeHTTP(rangeRec, req)
	if rangeRec.Code != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", rangeRec.Code)
	}
	if rangeRec.Body.String() != "pretend" {
		t.Fatalf("unexpected range body %q", rangeRec.Body.String())
	}
}

func TestDownload_SetsDisposition(t *testing.T) {
	env := newTestEnv(t)
	_, _, songs := env.seedCatalog(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "first.mp3")
	if err := os.WriteFile(path, []byte("bytes"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	env.db.Model(&models.Song{}).Where("id = ?", songs[0].ID).Update("path", path)

	rec := env.getRaw(t, "alice", "alicepass", "download", url.Values{"id": {songs[0].ID}, "f": {"json"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("expected attachment disposition, got %q", cd)
	}
}

func TestStream_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	_, _, songs := env.seedCatalog(t)

	resp := env.get(t, "alice", "alicepass", "stream", url.Values{"id": {songs[0].ID}})
	requireError(t, resp, ErrCodeNotFound)
}

func TestGetCoverArt_NotFound(t *testing.T) {
	env := newTestEnv(t)
	resp := env.get(t, "alice", "alicepass", "getCoverArt", url.Values{"id": {"al-" + uuid.NewString()}})
	requireError(t, resp, ErrCodeNotFound)
}

func TestGetRandomSongs(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog(t)

	resp := env.get(t, "alice", "alicepass", "getRandomSongs", url.Values{"size": {"1"}})
	requireOK(t, resp)
	if resp.RandomSongs == nil || len(resp.RandomSongs.Song) != 1 {
		t.Fatalf("expected 1 random song, got %+v", resp.RandomSongs)
	}
}

func TestGetSongsByGenre(t *testing.T) {
	env := newTestEnv(t)
	env.seedCatalog(t)

	resp := env.get(t, "alice", "alicepass", "getSongsByGenre", url.Values{"genre": {"Rock"}})
	requireOK(t, resp)
	if resp.SongsByGenre == nil || len(resp.SongsByGenre.Song) != 2 {
		t.Fatalf("expected 2 rock songs, got %+v", resp.SongsByGenre)
	}
}

func TestIndexLetterBuckets(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"The Beatles", "B"},
		{"beatles", "B"},
		{"2Pac", "#"},
		{"", "#"},
		{"Ärzte", "Ä"},
	}
	for _, tt := range tests {
		if got := indexLetter(tt.name); got != tt.want {
			t.Errorf("indexLetter(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestScrobble_TimeParameter(t *testing.T) {
	env := newTestEnv(t)
	_, _, songs := env.seedCatalog(t)

	played := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	resp := env.get(t, "alice", "alicepass", "scrobble", url.Values{
		"id":   {songs[0].ID},
		"time": {fmt.Sprintf("%d", played.UnixMilli())},
	})
	requireOK(t, resp)

	var history models.PlayHistory
	if err := env.db.First(&history).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	if !history.PlayedAt.Equal(played) {
		t.Fatalf("expected played_at %v, got %v", played, history.PlayedAt)
	}
}
