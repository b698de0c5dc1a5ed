package line

import (
	"line_chatbot/src/model"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// toSDKMessages converts outbound messages to LINE SDK messages
func toSDKMessages(msgs []model.Message) []messaging_api.MessageInterface {
	out := make([]messaging_api.MessageInterface, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toSDKMessage(m))
	}
	return out
}

func toSDKMessage(m model.Message) messaging_api.MessageInterface {
	quickReply := toSDKQuickReply(m.QuickReply)

	switch m.Type {
	case model.OutboundLocation:
		loc := model.Location{}
		if m.Location != nil {
			loc = *m.Location
		}
		return messaging_api.LocationMessage{
			Title:      loc.Title,
			Address:    loc.Address,
			Latitude:   loc.Latitude,
			Longitude:  loc.Longitude,
			QuickReply: quickReply,
		}
	case model.OutboundSticker:
		st := model.Sticker{}
		if m.Sticker != nil {
			st = *m.Sticker
		}
		return messaging_api.StickerMessage{
			PackageId:  st.PackageID,
			StickerId:  st.StickerID,
			QuoteToken: m.QuoteToken,
			QuickReply: quickReply,
		}
	default:
		return messaging_api.TextMessage{
			Text:       m.Text,
			QuoteToken: m.QuoteToken,
			QuickReply: quickReply,
		}
	}
}

func toSDKQuickReply(items []model.QuickReplyItem) *messaging_api.QuickReply {
	if len(items) == 0 {
		return nil
	}
	out := make([]messaging_api.QuickReplyItem, 0, len(items))
	for _, it := range items {
		out = append(out, messaging_api.QuickReplyItem{Action: toSDKAction(it)})
	}
	return &messaging_api.QuickReply{Items: out}
}

func toSDKAction(it model.QuickReplyItem) messaging_api.ActionInterface {
	if it.PickerMode == "" {
		return &messaging_api.MessageAction{Label: it.Label, Text: it.Text}
	}

	mode := messaging_api.DatetimePickerActionMODE_DATETIME
	switch it.PickerMode {
	case model.PickerDate:
		mode = messaging_api.DatetimePickerActionMODE_DATE
	case model.PickerTime:
		mode = messaging_api.DatetimePickerActionMODE_TIME
	}
	return &messaging_api.DatetimePickerAction{Label: it.Label, Data: it.Data, Mode: mode}
}

func fromSDKProfile(p *messaging_api.UserProfileResponse) *model.Profile {
	return &model.Profile{
		UserID:        p.UserId,
		DisplayName:   p.DisplayName,
		PictureURL:    p.PictureUrl,
		StatusMessage: p.StatusMessage,
		Language:      p.Language,
	}
}
