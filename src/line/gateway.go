package line

import (
	"context"
	"errors"
	"fmt"
	"io"
	"line_chatbot/src/model"
	"net/http"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
)

// ErrTooManyMessages is returned when a reply exceeds model.MaxReplyMessages
var ErrTooManyMessages = errors.New("too many messages in one reply")

// Gateway talks to the LINE Messaging API
type Gateway struct {
	bot            *messaging_api.MessagingApiAPI
	blob           *messaging_api.MessagingApiBlobAPI
	loadingSeconds int32
}

func NewGateway(config model.LineConfig) (*Gateway, error) {
	if config.ChannelAccessToken == "" {
		return nil, fmt.Errorf("LINE_CHANNEL_ACCESS_TOKEN is required")
	}
	bot, err := messaging_api.NewMessagingApiAPI(config.ChannelAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging api client: %w", err)
	}
	blob, err := messaging_api.NewMessagingApiBlobAPI(config.ChannelAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging blob client: %w", err)
	}
	return &Gateway{bot: bot, blob: blob, loadingSeconds: int32(config.LoadingSeconds)}, nil
}

// Reply sends msgs with replyToken. An empty reply sends nothing.
func (g *Gateway) Reply(_ context.Context, replyToken string, msgs []model.Message) error {
	if err := checkReply(replyToken, msgs); err != nil || len(msgs) == 0 {
		return err
	}
	_, err := g.bot.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   toSDKMessages(msgs),
	})
	if err != nil {
		return fmt.Errorf("failed to reply: %w", err)
	}
	return nil
}

// ShowLoading displays the loading animation in the user's chat
func (g *Gateway) ShowLoading(_ context.Context, userID string) error {
	_, err := g.bot.ShowLoadingAnimation(&messaging_api.ShowLoadingAnimationRequest{
		ChatId:         userID,
		LoadingSeconds: g.loadingSeconds,
	})
	if err != nil {
		return fmt.Errorf("failed to show loading animation: %w", err)
	}
	return nil
}

func (g *Gateway) Profile(_ context.Context, userID string) (*model.Profile, error) {
	p, err := g.bot.GetProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return fromSDKProfile(p), nil
}

// Content downloads the binary payload of messageID
func (g *Gateway) Content(_ context.Context, messageID string) (*model.Content, error) {
	resp, err := g.blob.GetMessageContent(messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get message content: %w", err)
	}
	defer resp.Body.Close()
	return readContent(resp)
}

func readContent(resp *http.Response) (*model.Content, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message content: %w", err)
	}
	return &model.Content{Data: data, MIMEType: resp.Header.Get("Content-Type")}, nil
}

// ValidSignature checks the X-Line-Signature of body
func ValidSignature(channelSecret, signature string, body []byte) bool {
	return webhook.ValidateSignature(channelSecret, signature, body)
}

func checkReply(replyToken string, msgs []model.Message) error {
	if len(msgs) > model.MaxReplyMessages {
		return fmt.Errorf("%w: %d > %d", ErrTooManyMessages, len(msgs), model.MaxReplyMessages)
	}
	if len(msgs) > 0 && replyToken == "" {
		return fmt.Errorf("reply token is required")
	}
	return nil
}
