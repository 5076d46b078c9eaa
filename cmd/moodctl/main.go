// Package main provides the moodctl CLI for controlling a running server.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
)

var (
	app    = kingpin.New("moodctl", "moodbox control client")
	server = app.Flag("server", "Server address").Default("http://localhost:3000").String()

	statusCmd = app.Command("status", "Show the current playback status")
	healthCmd = app.Command("health", "Check server health")
	watchCmd  = app.Command("watch", "Follow the overlay event stream")

	playCmd     = app.Command("play", "Resume playback")
	pauseCmd    = app.Command("pause", "Pause playback")
	toggleCmd   = app.Command("toggle", "Toggle play/pause")
	nextCmd     = app.Command("next", "Skip to the next track")
	previousCmd = app.Command("previous", "Restart or go back a track")
	shuffleCmd  = app.Command("shuffle", "Reshuffle the current playlist")

	playMoodCmd = app.Command("play-mood", "Play a mood playlist")
	playMoodID  = playMoodCmd.Arg("mood-id", "Mood ID").Required().String()

	volumeCmd   = app.Command("volume", "Set playback volume")
	volumeValue = volumeCmd.Arg("value", "Volume between 0 and 1").Required().Float64()

	repeatCmd  = app.Command("repeat", "Set the repeat mode")
	repeatMode = repeatCmd.Arg("mode", "none, one or all").Required().Enum("none", "one", "all")

	moodsCmd = app.Command("moods", "List moods")

	tracksCmd   = app.Command("tracks", "List library tracks")
	tracksQuery = tracksCmd.Flag("query", "Search query").Short('q').String()

	addCmd      = app.Command("add", "Add audio files to the library")
	addPaths    = addCmd.Arg("paths", "File paths").Required().Strings()
	addToMoodID = addCmd.Flag("mood", "Also append to this mood").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch command {
	case statusCmd.FullCommand():
		showStatus()
	case healthCmd.FullCommand():
		showHealth()
	case watchCmd.FullCommand():
		watchEvents()
	case playCmd.FullCommand():
		playbackAction("play")
	case pauseCmd.FullCommand():
		playbackAction("pause")
	case toggleCmd.FullCommand():
		playbackAction("toggle")
	case nextCmd.FullCommand():
		playbackAction("next")
	case previousCmd.FullCommand():
		playbackAction("previous")
	case shuffleCmd.FullCommand():
		playbackAction("shuffle")
	case playMoodCmd.FullCommand():
		playMood(*playMoodID)
	case volumeCmd.FullCommand():
		post("/api/playback/volume", map[string]any{"volume": *volumeValue})
	case repeatCmd.FullCommand():
		post("/api/playback/repeat", map[string]any{"mode": *repeatMode})
	case moodsCmd.FullCommand():
		listMoods()
	case tracksCmd.FullCommand():
		listTracks(*tracksQuery)
	case addCmd.FullCommand():
		addFiles(*addPaths, *addToMoodID)
	}
}

func showStatus() {
	var cur struct {
		IsPlaying   bool           `json:"isPlaying"`
		CurrentTime float64        `json:"currentTime"`
		Duration    float64        `json:"duration"`
		Volume      float64        `json:"volume"`
		Track       map[string]any `json:"track"`
		Mood        map[string]any `json:"mood"`
	}
	get("/api/current", &cur)

	state := "⏸ Paused"
	if cur.IsPlaying {
		state = "▶️  Playing"
	}
	fmt.Println(state)
	if cur.Track != nil {
		fmt.Printf("  %v - %v (%s / %s)\n",
			cur.Track["title"], cur.Track["artist"],
			formatSeconds(cur.CurrentTime), formatSeconds(cur.Duration))
	} else {
		fmt.Println("  No track loaded")
	}
	if cur.Mood != nil {
		fmt.Printf("  Mood: %v\n", cur.Mood["name"])
	}
	fmt.Printf("  Volume: %.0f%%\n", cur.Volume*100)
}

func showHealth() {
	var health struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	get("/health", &health)
	fmt.Printf("Status: %s, overlay connections: %d\n", health.Status, health.Connections)
}

// watchEvents tails the SSE stream and prints one line per frame.
func watchEvents() {
	resp, err := http.Get(*server + "/events")
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()

	fmt.Println("Watching events (Ctrl-C to stop)...")
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var frame struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
			continue
		}
		fmt.Printf("[%s] %-17s %s\n", time.Now().Format(time.TimeOnly), frame.Type, frame.Data)
	}
}

func playbackAction(action string) {
	post("/api/playback/"+action, nil)
	showStatus()
}

func playMood(id string) {
	post("/api/moods/"+id+"/play", nil)
	showStatus()
}

func listMoods() {
	var moods []struct {
		ID     string           `json:"id"`
		Name   string           `json:"name"`
		Effect string           `json:"effect"`
		Tracks []map[string]any `json:"tracks"`
	}
	get("/api/moods", &moods)

	if len(moods) == 0 {
		fmt.Println("No moods yet")
		return
	}
	for _, m := range moods {
		fmt.Printf("%s  %-20s effect=%-8s tracks=%d\n", m.ID, m.Name, m.Effect, len(m.Tracks))
	}
}

func listTracks(query string) {
	path := "/api/tracks"
	if query != "" {
		path += "?q=" + query
	}
	var tracks []struct {
		ID       string  `json:"id"`
		Title    string  `json:"title"`
		Artist   string  `json:"artist"`
		Duration float64 `json:"duration"`
	}
	get(path, &tracks)

	if len(tracks) == 0 {
		fmt.Println("No tracks")
		return
	}
	for _, t := range tracks {
		fmt.Printf("%s  %-30s %-20s %s\n", t.ID, t.Title, t.Artist, formatSeconds(t.Duration))
	}
}

func addFiles(paths []string, moodID string) {
	var result struct {
		Added   any `json:"added"`
		Invalid []struct {
			Path   string `json:"path"`
			Reason string `json:"reason"`
		} `json:"invalid"`
	}
	body := map[string]any{"paths": paths}
	if moodID != "" {
		body["moodId"] = moodID
	}
	postInto("/api/tracks", body, &result)

	switch added := result.Added.(type) {
	case []any:
		fmt.Printf("Added %d tracks\n", len(added))
	case float64:
		fmt.Printf("Added %.0f tracks to mood %s\n", added, moodID)
	}
	for _, inv := range result.Invalid {
		fmt.Printf("Rejected %s: %s\n", inv.Path, inv.Reason)
	}
}

// ---- HTTP helpers ----

func get(path string, out any) {
	resp, err := http.Get(*server + path)
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()
	decode(resp, out)
}

func post(path string, body any) {
	postInto(path, body, nil)
}

func postInto(path string, body, out any) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			fail(err)
		}
	}
	resp, err := http.Post(*server+path, "application/json", &buf)
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()
	decode(resp, out)
}

func decode(resp *http.Response, out any) {
	if resp.StatusCode >= 400 {
		var errBody struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			fail(fmt.Errorf("%s (HTTP %d)", errBody.Error, resp.StatusCode))
		}
		fail(fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func formatSeconds(s float64) string {
	d := time.Duration(s * float64(time.Second)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
