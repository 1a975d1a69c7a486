package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Bus subjects the NATS source listens on.
const (
	SubjectMessage    = "ncb.gateway.message"
	SubjectCommand    = "ncb.gateway.command"
	SubjectDisconnect = "ncb.gateway.disconnect"
)

const commandTimeout = 10 * time.Second

// NATSSource subscribes to the gateway subjects and feeds the dispatcher.
// Command subjects use request-reply: the reply payload is a JSON Reply.
type NATSSource struct {
	conn       *nats.Conn
	dispatcher *Dispatcher
	logger     *slog.Logger
	subs       []*nats.Subscription
}

func NewNATSSource(conn *nats.Conn, dispatcher *Dispatcher, logger *slog.Logger) *NATSSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSSource{
		conn:       conn,
		dispatcher: dispatcher,
		logger:     logger.With(slog.String("component", "gateway_nats")),
	}
}

func (s *NATSSource) Start() error {
	subs := []struct {
		subject string
		handler nats.MsgHandler
	}{
		{SubjectMessage, s.handleMessage},
		{SubjectCommand, s.handleCommand},
		{SubjectDisconnect, s.handleDisconnect},
	}
	for _, spec := range subs {
		sub, err := s.conn.Subscribe(spec.subject, spec.handler)
		if err != nil {
			s.Close()
			return err
		}
		s.subs = append(s.subs, sub)
	}
	return nil
}

func (s *NATSSource) Close() {
	for _, sub := range s.subs {
		_ = sub.Drain()
	}
	s.subs = nil
}

func (s *NATSSource) handleMessage(msg *nats.Msg) {
	var ev MessageEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		s.logger.Warn("failed to decode message event", slog.String("error", err.Error()))
		return
	}
	s.dispatcher.HandleMessage(ev)
}

func (s *NATSSource) handleCommand(msg *nats.Msg) {
	var ev CommandEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		s.logger.Warn("failed to decode command event", slog.String("error", err.Error()))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	reply := s.dispatcher.HandleCommand(ctx, ev)
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Warn("failed to marshal command reply", slog.String("error", err.Error()))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to send command reply", slog.String("error", err.Error()))
	}
}

func (s *NATSSource) handleDisconnect(msg *nats.Msg) {
	var ev DisconnectEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		s.logger.Warn("failed to decode disconnect event", slog.String("error", err.Error()))
		return
	}
	s.dispatcher.HandleDisconnect(ev)
}
