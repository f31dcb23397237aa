package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/websocket"
	"go.uber.org/zap"

	"SafeWalk/internal/model"
	"SafeWalk/internal/realtime"
	"SafeWalk/internal/service"
	"SafeWalk/pkg/errors"
	"SafeWalk/pkg/logger"
	"SafeWalk/pkg/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	streamBuf  = 64
)

// 跟踪页由联系人在任意来源打开，链接本身就是凭证
var upgrader = websocket.HertzUpgrader{
	CheckOrigin: func(c *app.RequestContext) bool { return true },
}

// StreamMessage 推送给查看者的帧，第一帧为快照，之后是变更
type StreamMessage struct {
	Type     string           `json:"type"` // snapshot, change
	Snapshot interface{}      `json:"snapshot,omitempty"`
	Change   *realtime.Change `json:"change,omitempty"`
}

var (
	travelerTopics = []realtime.Topic{
		realtime.TopicJourneyChanged,
		realtime.TopicLocationInserted,
		realtime.TopicCheckInPrompted,
		realtime.TopicTrackingWarning,
	}
	publicTopics = []realtime.Topic{
		realtime.TopicJourneyChanged,
		realtime.TopicLocationInserted,
	}
)

// serveStream 先订阅再取快照，快照之后到达的变更不会丢失，重复的由客户端按主键覆盖
func serveStream(ctx context.Context, c *app.RequestContext, journeyID string, topics []realtime.Topic,
	snapshot func(ctx context.Context) (interface{}, error), redact func(realtime.Change) (realtime.Change, bool)) {
	broker := current().Broker
	if broker == nil {
		response.Error(ctx, c, errors.InternalError)
		return
	}

	events := make(chan realtime.Change, streamBuf)
	filter := realtime.ForJourney(journeyID)
	subs := make([]*realtime.Subscription, 0, len(topics))
	for _, topic := range topics {
		subs = append(subs, broker.Subscribe(topic, filter, func(ch realtime.Change) {
			select {
			case events <- ch:
			default:
				logger.Logger.Debug("Stream buffer full, dropping change",
					zap.String("journey_id", journeyID),
					zap.String("topic", string(ch.Topic)),
				)
			}
		}))
	}
	unsubscribe := func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}

	snap, err := snapshot(ctx)
	if err != nil {
		unsubscribe()
		response.Error(ctx, c, err)
		return
	}

	err = upgrader.Upgrade(c, func(conn *websocket.Conn) {
		defer unsubscribe()
		defer conn.Close()
		pump(conn, journeyID, snap, events, redact)
	})
	if err != nil {
		unsubscribe()
		logger.Logger.Debug("Websocket upgrade failed",
			zap.String("journey_id", journeyID),
			zap.Error(err),
		)
		if c.Response.StatusCode() < http.StatusBadRequest {
			c.AbortWithStatus(http.StatusBadRequest)
		}
	}
}

func pump(conn *websocket.Conn, journeyID string, snap interface{}, events <-chan realtime.Change,
	redact func(realtime.Change) (realtime.Change, bool)) {
	closed := make(chan struct{})
	go readLoop(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(StreamMessage{Type: "snapshot", Snapshot: snap}); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return

		case ch := <-events:
			if redact != nil {
				var ok bool
				if ch, ok = redact(ch); !ok {
					continue
				}
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(StreamMessage{Type: "change", Change: &ch}); err != nil {
				logger.Logger.Debug("Stream write failed",
					zap.String("journey_id", journeyID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop 只处理控制帧，连接断开时关闭 closed
func readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// redactPublic 公开流里的行程行换成不含用户标识的字段
func redactPublic(ch realtime.Change) (realtime.Change, bool) {
	if ch.Topic != realtime.TopicJourneyChanged {
		return ch, true
	}
	var j model.Journey
	if err := json.Unmarshal(ch.Record, &j); err != nil {
		return ch, false
	}
	raw, err := json.Marshal(service.PublicJourney(&j))
	if err != nil {
		return ch, false
	}
	ch.Record = raw
	return ch, true
}
