package gateway

import (
	"context"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// RunSocketMode consumes events over Socket Mode instead of the HTTP
// endpoint. Used when the gateway runs without a public URL.
func (s *Server) RunSocketMode(ctx context.Context, botToken, appToken string) error {
	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	client := socketmode.New(api)

	go func() {
		for evt := range client.Events {
			if evt.Type != socketmode.EventTypeEventsAPI {
				continue
			}
			if evt.Request != nil {
				client.Ack(*evt.Request)
			}
			ev, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok || ev.Type != slackevents.CallbackEvent {
				continue
			}
			switch in := ev.InnerEvent.Data.(type) {
			case *slackevents.ReactionAddedEvent:
				if in == nil || in.Item.Type != "message" {
					continue
				}
				go s.handleReactionAdded(ctx, in.Item.Channel, in.Item.Timestamp, in.Reaction)
			case *slackevents.MessageEvent:
				if in == nil || in.SubType != "" || in.BotID != "" {
					continue
				}
				go s.handleMessage(ctx, in.Channel, in.User, in.TimeStamp, in.Text)
			}
		}
	}()
	return client.RunContext(ctx)
}
