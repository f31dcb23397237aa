// trackwatch 在终端里跟随一次行程的实时推送，用于联调公开追踪页和出行者推送
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"SafeWalk/config"
	"SafeWalk/internal/geo"
	"SafeWalk/internal/realtime"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/token"
)

type frame struct {
	Type     string           `json:"type"`
	Snapshot json.RawMessage  `json:"snapshot"`
	Change   *realtime.Change `json:"change"`
}

type locationRecord struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedAt time.Time `json:"recorded_at"`
}

type journeyRecord struct {
	Status           string    `json:"status"`
	EstimatedArrival time.Time `json:"estimated_arrival"`
}

func main() {
	var (
		baseURL   string
		journeyID string
		userID    int64
	)
	flag.StringVar(&baseURL, "url", "ws://localhost:"+config.Cfg.ServerPort, "server base URL")
	flag.StringVar(&journeyID, "journey", "", "journey ID to follow")
	flag.Int64Var(&userID, "user", 0, "follow as the traveler with this user ID (signs a token with JWT_SECRET)")
	flag.Parse()

	logger.Init()
	defer logger.Sync()

	if journeyID == "" {
		fmt.Fprintln(os.Stderr, "usage: trackwatch -journey <id> [-url ws://host:port] [-user <id>]")
		os.Exit(2)
	}

	target, header, err := streamTarget(baseURL, journeyID, userID)
	if err != nil {
		logger.Logger.Fatal("Invalid stream target", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		logger.Logger.Fatal("Failed to connect", zap.String("url", target), zap.Int("status", status), zap.Error(err))
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	var last *geo.Point
	var walked float64
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Logger.Error("Stream closed", zap.Error(err))
			}
			return
		}

		switch f.Type {
		case "snapshot":
			fmt.Printf("snapshot  %s\n", compact(f.Snapshot))
		case "change":
			if f.Change == nil {
				continue
			}
			render(f.Change, &last, &walked)
		}
	}
}

func streamTarget(baseURL, journeyID string, userID int64) (string, http.Header, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	header := http.Header{}
	if userID == 0 {
		u.Path += "/track/" + url.PathEscape(journeyID) + "/ws"
		return u.String(), header, nil
	}

	tok, err := token.Issue(config.Cfg.JWTSecret, userID, time.Hour)
	if err != nil {
		return "", nil, err
	}
	header.Set("Authorization", "Bearer "+tok)
	u.Path += "/v1/journeys/" + url.PathEscape(journeyID) + "/ws"
	return u.String(), header, nil
}

func render(c *realtime.Change, last **geo.Point, walked *float64) {
	ts := c.CommitTimestamp.Local().Format("15:04:05")

	switch c.Topic {
	case realtime.TopicLocationInserted:
		var loc locationRecord
		if err := json.Unmarshal(c.Record, &loc); err != nil {
			break
		}
		p := geo.Point{Lat: loc.Latitude, Lng: loc.Longitude}
		if *last != nil {
			*walked += geo.Haversine(**last, p)
		}
		*last = &p
		fmt.Printf("%s  location  %.5f, %.5f  walked %s\n", ts, p.Lat, p.Lng, geo.FormatDistance(*walked))
		return

	case realtime.TopicJourneyChanged:
		var j journeyRecord
		if err := json.Unmarshal(c.Record, &j); err != nil {
			break
		}
		fmt.Printf("%s  journey   %s  eta %s\n", ts, j.Status, j.EstimatedArrival.Local().Format("15:04"))
		return
	}

	fmt.Printf("%s  %-9s %s\n", ts, c.Topic, compact(c.Record))
}

func compact(raw json.RawMessage) string {
	s := string(raw)
	if len(s) > 160 {
		return s[:157] + "..."
	}
	return s
}
