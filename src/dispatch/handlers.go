package dispatch

import (
	"context"
	"fmt"
	"line_chatbot/src/intent"
	"line_chatbot/src/logger"
	"line_chatbot/src/model"
	"net/url"
	"strconv"
	"strings"
	"time"
)

func (d *Dispatcher) handleMessage(ctx context.Context, ev model.Event) error {
	if ev.Message == nil {
		return fmt.Errorf("message event without message payload")
	}
	m := ev.Message
	r := d.deps.Replies

	switch m.Type {
	case model.MessageText:
		return d.handleText(ctx, ev)

	case model.MessageImage, model.MessageAudio:
		return d.handleMedia(ctx, ev)

	case model.MessageLocation:
		loc := model.Location{
			Title:     orDefault(m.Title, r.LocationTitle),
			Address:   orDefault(m.Address, r.LocationAddress),
			Latitude:  m.Latitude,
			Longitude: m.Longitude,
		}
		text := strings.NewReplacer(
			"{title}", loc.Title,
			"{lat}", strconv.FormatFloat(m.Latitude, 'f', -1, 64),
			"{lng}", strconv.FormatFloat(m.Longitude, 'f', -1, 64),
		).Replace(r.LocationReceived)
		return d.reply(ctx, ev.ReplyToken,
			model.Message{Type: model.OutboundLocation, Location: &loc},
			model.TextMessage(text))

	case model.MessageSticker:
		text := strings.NewReplacer("{package_id}", m.PackageID, "{sticker_id}", m.StickerID).
			Replace(r.StickerReceived)
		return d.reply(ctx, ev.ReplyToken,
			model.Message{Type: model.OutboundSticker, Sticker: &model.Sticker{
				PackageID: r.Sticker.PackageID,
				StickerID: r.Sticker.StickerID,
			}},
			model.TextMessage(text))

	default:
		logger.Ctx(ctx).Debug().Str("message_type", string(m.Type)).Msg("Message logged only")
		return nil
	}
}

// mediaDefaults is used when the content response carries no Content-Type
var mediaDefaults = map[model.MessageType]string{
	model.MessageImage: "image/png",
	model.MessageAudio: "audio/mpeg",
}

// handleMedia describes image and audio content when a Describer is wired and
// acknowledges the byte count otherwise
func (d *Dispatcher) handleMedia(ctx context.Context, ev model.Event) error {
	m := ev.Message
	r := d.deps.Replies

	content, err := d.deps.Content.Content(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch %s content: %w", m.Type, err)
	}

	if d.deps.Describer != nil {
		prompt := r.DescribeImage
		if m.Type == model.MessageAudio {
			prompt = r.DescribeAudio
		}
		mimeType := orDefault(content.MIMEType, mediaDefaults[m.Type])
		text, err := d.deps.Describer.Describe(ctx, prompt, content.Data, mimeType)
		text = strings.TrimSpace(text)
		switch {
		case err != nil:
			logger.Ctx(ctx).Warn().Err(err).Str("mime_type", mimeType).Msg("Describe failed, acknowledging content")
		case text != "":
			return d.reply(ctx, ev.ReplyToken, model.TextMessage(text))
		}
	}

	text := strings.NewReplacer("{type}", string(m.Type), "{size}", strconv.Itoa(len(content.Data))).
		Replace(r.ContentReceived)
	return d.reply(ctx, ev.ReplyToken, model.TextMessage(text))
}

func (d *Dispatcher) handleText(ctx context.Context, ev model.Event) error {
	text := ev.Message.Text

	if ev.Source.Type != model.SourceUser && mentionsBot(ev.Message.Mention) {
		msg := model.TextMessage(d.deps.Replies.Mention)
		msg.QuoteToken = ev.Message.QuoteToken
		return d.reply(ctx, ev.ReplyToken, msg)
	}

	userID := ev.Source.UserID
	if userID == "" {
		logger.Ctx(ctx).Debug().Msg("Text without user id logged only")
		return nil
	}

	route, err := d.deps.Classifier.Classify(ctx, intent.Input{UserID: userID, Text: text})
	if err != nil {
		return err
	}

	var msgs []model.Message
	switch route {
	case intent.RouteBooking:
		msgs, err = d.deps.Booking.HandleText(ctx, userID, text)
	case intent.RouteBookingStart:
		msgs, err = d.deps.Booking.Start(ctx, userID)
	case intent.RouteViewBookings:
		msgs, err = d.deps.Commands.View(ctx, userID)
	case intent.RouteCancelBooking:
		msgs, err = d.deps.Commands.Cancel(ctx, userID, text)
	case intent.RouteMenu:
		msgs = d.deps.Booking.Menu()
	case intent.RouteChat:
		msgs, err = d.deps.Chat.Handle(ctx, userID, text)
	default:
		return fmt.Errorf("no handler for route %q", route)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", route, err)
	}
	return d.reply(ctx, ev.ReplyToken, msgs...)
}

func (d *Dispatcher) handlePostback(ctx context.Context, ev model.Event) error {
	if ev.Postback == nil {
		return fmt.Errorf("postback event without postback payload")
	}
	data := ev.Postback.Data

	if values, err := url.ParseQuery(data); err == nil && ev.Source.UserID != "" {
		if action := values.Get("action"); action != "" {
			msgs, ok, err := d.deps.Booking.HandlePostback(ctx, ev.Source.UserID, action, ev.Postback.Params)
			if err != nil {
				return fmt.Errorf("booking postback %s: %w", action, err)
			}
			if ok {
				return d.reply(ctx, ev.ReplyToken, msgs...)
			}
		}
	}

	text := strings.NewReplacer("{data}", data).Replace(d.deps.Replies.PostbackEcho)
	return d.reply(ctx, ev.ReplyToken, model.TextMessage(text))
}

func (d *Dispatcher) handleFollow(ctx context.Context, ev model.Event) error {
	profile, err := d.deps.Profiles.Profile(ctx, ev.Source.UserID)
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}

	if d.deps.Recorder != nil {
		if err := d.deps.Recorder.SaveProfile(ctx, *profile); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("Failed to save profile")
		}
	}

	tmpl := d.deps.Replies.Welcome
	if ev.Follow != nil && ev.Follow.IsUnblocked {
		tmpl = d.deps.Replies.WelcomeBack
	}
	text := strings.NewReplacer("{name}", profile.DisplayName).Replace(tmpl)
	return d.reply(ctx, ev.ReplyToken, model.TextMessage(text))
}

func (d *Dispatcher) handleMemberJoined(ctx context.Context, ev model.Event) error {
	if ev.Joined == nil {
		return nil
	}
	users := 0
	for _, m := range ev.Joined.Members {
		if m.Type == model.SourceUser {
			users++
		}
	}
	if users == 0 {
		return nil
	}
	text := strings.NewReplacer("{count}", strconv.Itoa(users)).Replace(d.deps.Replies.MemberWelcome)
	return d.reply(ctx, ev.ReplyToken, model.TextMessage(text))
}

func (d *Dispatcher) handleBeacon(ctx context.Context, ev model.Event) error {
	if ev.Beacon == nil || ev.Beacon.Type != "enter" {
		logger.Ctx(ctx).Debug().Msg("Beacon event logged only")
		return nil
	}

	if d.deps.Recorder != nil && ev.Source.UserID != "" {
		at := d.now()
		if ev.Timestamp > 0 {
			at = time.UnixMilli(ev.Timestamp)
		}
		at = at.In(d.loc)

		created, err := d.deps.Recorder.CheckIn(ctx, model.BeaconCheckin{
			UserID:    ev.Source.UserID,
			Hwid:      ev.Beacon.Hwid,
			Type:      ev.Beacon.Type,
			Timestamp: at.Format(time.RFC3339),
			Year:      at.Year(),
			Month:     int(at.Month()),
			Day:       at.Day(),
		})
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("Failed to record beacon check-in")
		} else {
			logger.Ctx(ctx).Debug().Bool("new_checkin", created).Str("hwid", ev.Beacon.Hwid).Msg("Beacon check-in")
		}
	}

	text := strings.NewReplacer("{hwid}", ev.Beacon.Hwid).Replace(d.deps.Replies.BeaconEnter)
	return d.reply(ctx, ev.ReplyToken, model.TextMessage(text))
}

// mentionsBot reports whether the bot itself or everyone was mentioned
func mentionsBot(m *model.Mention) bool {
	if m == nil {
		return false
	}
	for _, e := range m.Mentionees {
		if e.IsSelf || e.Type == "all" {
			return true
		}
	}
	return false
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
