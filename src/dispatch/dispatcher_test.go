package dispatch

import (
	"context"
	"errors"
	"line_chatbot/src/booking"
	"line_chatbot/src/flow"
	"line_chatbot/src/intent"
	"line_chatbot/src/model"
	"line_chatbot/src/storage"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID = "U4af4980629"

var bangkok = time.FixedZone("ICT", 7*60*60)

// ----------------------------------------------------
// ================ Fakes ================

type sentReply struct {
	token string
	msgs  []model.Message
}

type fakeReplier struct {
	sent    []sentReply
	failFor string
}

func (f *fakeReplier) Reply(_ context.Context, token string, msgs []model.Message) error {
	if token == f.failFor {
		return errors.New("invalid reply token")
	}
	f.sent = append(f.sent, sentReply{token: token, msgs: msgs})
	return nil
}

func (f *fakeReplier) last(t *testing.T) sentReply {
	t.Helper()
	require.NotEmpty(t, f.sent, "expected a reply")
	return f.sent[len(f.sent)-1]
}

type fakeLoading struct{ users []string }

func (f *fakeLoading) ShowLoading(_ context.Context, userID string) error {
	f.users = append(f.users, userID)
	return errors.New("loading api unavailable")
}

type fakeProfiles struct{}

func (fakeProfiles) Profile(_ context.Context, userID string) (*model.Profile, error) {
	return &model.Profile{UserID: userID, DisplayName: "Somchai"}, nil
}

type fakeContent struct{ mimeType string }

func (f fakeContent) Content(context.Context, string) (*model.Content, error) {
	return &model.Content{Data: make([]byte, 2048), MIMEType: f.mimeType}, nil
}

type describeCall struct {
	prompt   string
	size     int
	mimeType string
}

type fakeDescriber struct {
	calls []describeCall
	reply string
	err   error
}

func (f *fakeDescriber) Describe(_ context.Context, prompt string, data []byte, mimeType string) (string, error) {
	f.calls = append(f.calls, describeCall{prompt: prompt, size: len(data), mimeType: mimeType})
	return f.reply, f.err
}

type fakeChat struct {
	active bool
	texts  []string
	panic  bool
}

func (f *fakeChat) Active(context.Context, string) (bool, error) { return f.active, nil }

func (f *fakeChat) Handle(_ context.Context, _ string, text string) ([]model.Message, error) {
	if f.panic {
		panic("model client is nil")
	}
	f.texts = append(f.texts, text)
	return []model.Message{model.TextMessage("chat: " + text)}, nil
}

type failingClaimer struct{}

func (failingClaimer) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingClaimer) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}

func (failingClaimer) Delete(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

type fixture struct {
	store    *storage.MemoryStore
	replier  *fakeReplier
	loading  *fakeLoading
	chat     *fakeChat
	repo     *booking.MemoryRepository
	calendar *booking.MemoryCalendar
	deps     Deps
	d        *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	def, err := flow.DefaultDefinition()
	require.NoError(t, err)

	f := &fixture{
		store:    storage.NewMemoryStore(),
		replier:  &fakeReplier{},
		loading:  &fakeLoading{},
		chat:     &fakeChat{},
		repo:     booking.NewMemoryRepository(),
		calendar: booking.NewMemoryCalendar(),
	}
	svc := booking.NewService(f.calendar, f.repo, bangkok)
	engine := flow.NewBooking(f.store, def, svc)

	f.deps = Deps{
		Replier:    f.replier,
		Loading:    f.loading,
		Profiles:   fakeProfiles{},
		Content:    fakeContent{},
		Recorder:   f.repo,
		Claimer:    f.store,
		Classifier: intent.New(def, engine, f.chat),
		Booking:    engine,
		Commands:   flow.NewBookingCommands(def, svc),
		Chat:       f.chat,
		Replies:    def.Replies,
	}
	f.d = New(f.deps, Options{Location: bangkok})
	return f
}

func textEvent(id, token, text string) model.Event {
	return model.Event{
		Type:           model.EventMessage,
		WebhookEventID: id,
		ReplyToken:     token,
		Source:         model.Source{Type: model.SourceUser, UserID: userID},
		Message:        &model.InboundMessage{ID: "m-" + id, Type: model.MessageText, Text: text},
	}
}

func postbackEvent(id, token, data string, params *model.PostbackParams) model.Event {
	return model.Event{
		Type:           model.EventPostback,
		WebhookEventID: id,
		ReplyToken:     token,
		Source:         model.Source{Type: model.SourceUser, UserID: userID},
		Postback:       &model.Postback{Data: data, Params: params},
	}
}

// ----------------------------------------------------
// ================ Tests ================

func TestDispatchBookingConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.d.Dispatch(ctx, []model.Event{textEvent("e1", "t1", "จองนัด")})
	require.NoError(t, res.Err)
	assert.Contains(t, f.replier.last(t).msgs[0].Text, "กรุณาเลือกวันนัดหมาย")

	res = f.d.Dispatch(ctx, []model.Event{
		postbackEvent("e2", "t2", "action=selectDate", &model.PostbackParams{Date: "2025-08-01"}),
		textEvent("e3", "t3", "14:00"),
		textEvent("e4", "t4", "ประชุมทีม"),
	})
	require.NoError(t, res.Err)
	assert.Equal(t, 3, res.Handled)
	assert.Contains(t, f.replier.last(t).msgs[0].Text, "เรื่อง: ประชุมทีม")

	res = f.d.Dispatch(ctx, []model.Event{textEvent("e5", "t5", "ยืนยัน")})
	require.NoError(t, res.Err)
	assert.Contains(t, f.replier.last(t).msgs[0].Text, "https://www.google.com/calendar/event?eid=")
	assert.Equal(t, 1, f.calendar.Len())

	list, err := f.repo.ListActive(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ประชุมทีม", list[0].Title)
	assert.Equal(t, "2025-08-01T14:00:00+07:00", list[0].Datetime)

	_, open, err := f.store.Get(ctx, storage.SessionKey(model.FlowBooking, userID))
	require.NoError(t, err)
	assert.False(t, open)

	assert.Empty(t, f.chat.texts)
	assert.Len(t, f.loading.users, 5)
}

func TestDispatchRoutesUnmatchedTextToChat(t *testing.T) {
	f := newFixture(t)

	res := f.d.Dispatch(context.Background(), []model.Event{textEvent("e1", "t1", "สวัสดี")})
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"สวัสดี"}, f.chat.texts)
	assert.Equal(t, "chat: สวัสดี", f.replier.last(t).msgs[0].Text)
}

func TestDispatchViewAndCancelCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.d.Dispatch(ctx, []model.Event{textEvent("e1", "t1", "ดูนัด")})
	assert.Equal(t, "📅 คุณยังไม่มีนัดหมายในระบบค่ะ", f.replier.last(t).msgs[0].Text)

	f.d.Dispatch(ctx, []model.Event{textEvent("e2", "t2", "ยกเลิกนัดหมาย ev-missing")})
	assert.Equal(t, "❌ ไม่พบนัดหมายที่ต้องการยกเลิกค่ะ", f.replier.last(t).msgs[0].Text)
}

func TestDispatchContinuesAfterFailedEvent(t *testing.T) {
	f := newFixture(t)
	f.replier.failFor = "bad"

	res := f.d.Dispatch(context.Background(), []model.Event{
		textEvent("e1", "bad", "สวัสดี"),
		textEvent("e2", "good", "hello"),
	})

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Handled)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "invalid reply token")
	assert.Equal(t, "good", f.replier.last(t).token)
}

func TestDispatchRecoversPanics(t *testing.T) {
	f := newFixture(t)
	f.chat.panic = true

	res := f.d.Dispatch(context.Background(), []model.Event{
		textEvent("e1", "t1", "สวัสดี"),
		{Type: model.EventJoin, ReplyToken: "t2", Source: model.Source{Type: model.SourceGroup, GroupID: "G1"}},
	})

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Handled)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "panic")
	assert.Equal(t, "สวัสดีทุกคน", f.replier.last(t).msgs[0].Text)
}

func TestDispatchSkipsRedeliveredEvents(t *testing.T) {
	f := newFixture(t)
	ev := textEvent("e1", "t1", "สวัสดี")

	first := f.d.Dispatch(context.Background(), []model.Event{ev})
	ev.DeliveryContext = &model.DeliveryContext{IsRedelivery: true}
	second := f.d.Dispatch(context.Background(), []model.Event{ev})

	assert.Equal(t, 1, first.Handled)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, f.chat.texts, 1)
}

func TestDispatchReleasesClaimOfFailedEvent(t *testing.T) {
	f := newFixture(t)
	f.replier.failFor = "t1"
	ev := textEvent("e1", "t1", "สวัสดี")

	first := f.d.Dispatch(context.Background(), []model.Event{ev})
	require.Equal(t, 1, first.Failed)
	_, claimed, err := f.store.Get(context.Background(), storage.EventKey("e1"))
	require.NoError(t, err)
	assert.False(t, claimed)

	f.replier.failFor = ""
	ev.DeliveryContext = &model.DeliveryContext{IsRedelivery: true}
	second := f.d.Dispatch(context.Background(), []model.Event{ev})
	assert.Equal(t, 1, second.Handled)
	assert.Equal(t, "t1", f.replier.last(t).token)

	third := f.d.Dispatch(context.Background(), []model.Event{ev})
	assert.Equal(t, 1, third.Skipped)
}

func TestDispatchClaimLifetime(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	f.deps.Claimer = storage.NewMemoryStoreWithClock(func() time.Time { return now })
	d := New(f.deps, Options{DedupTTL: 10 * time.Minute, ClaimTTL: time.Minute})
	ctx := context.Background()

	// handled events stay claimed for the dedup window
	require.Equal(t, 1, d.Dispatch(ctx, []model.Event{textEvent("e1", "t1", "a")}).Handled)
	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, d.Dispatch(ctx, []model.Event{textEvent("e1", "t1", "a")}).Skipped)

	// a claim left by a crashed worker only lasts ClaimTTL
	ok, err := f.deps.Claimer.SetNX(ctx, storage.EventKey("e2"), claimPending, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, d.Dispatch(ctx, []model.Event{textEvent("e2", "t2", "b")}).Skipped)
	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, d.Dispatch(ctx, []model.Event{textEvent("e2", "t2", "b")}).Handled)
	assert.Equal(t, []string{"a", "b"}, f.chat.texts)
}

func TestDispatchHandlesEventsWhenClaimFails(t *testing.T) {
	f := newFixture(t)
	f.deps.Claimer = failingClaimer{}
	d := New(f.deps, Options{})

	res := d.Dispatch(context.Background(), []model.Event{textEvent("e1", "t1", "a"), textEvent("e1", "t2", "b")})
	assert.Equal(t, 2, res.Handled)
	assert.Equal(t, []string{"a", "b"}, f.chat.texts)
}

func TestLoadingIndicatorOnlyForUsers(t *testing.T) {
	f := newFixture(t)
	group := textEvent("e1", "t1", "สวัสดี")
	group.Source = model.Source{Type: model.SourceGroup, GroupID: "G1", UserID: userID}

	res := f.d.Dispatch(context.Background(), []model.Event{group, textEvent("e2", "t2", "hi")})

	require.NoError(t, res.Err)
	assert.Equal(t, []string{userID}, f.loading.users)
}

func TestOneShotEvents(t *testing.T) {
	group := model.Source{Type: model.SourceGroup, GroupID: "G1", UserID: userID}
	user := model.Source{Type: model.SourceUser, UserID: userID}

	tests := []struct {
		name  string
		event model.Event
		want  []string
	}{
		{
			name:  "follow",
			event: model.Event{Type: model.EventFollow, Source: user, Follow: &model.Follow{}},
			want:  []string{"สวัสดีคุณ Somchai 🙏 ขอบคุณที่เพิ่มเราเป็นเพื่อนค่ะ พิมพ์ 'จองนัด' เพื่อเริ่มนัดหมายได้เลย"},
		},
		{
			name:  "follow after unblock",
			event: model.Event{Type: model.EventFollow, Source: user, Follow: &model.Follow{IsUnblocked: true}},
			want:  []string{"ยินดีต้อนรับกลับมาค่ะคุณ Somchai 🎉"},
		},
		{
			name:  "join",
			event: model.Event{Type: model.EventJoin, Source: group},
			want:  []string{"สวัสดีทุกคน"},
		},
		{
			name: "member joined",
			event: model.Event{Type: model.EventMemberJoined, Source: group, Joined: &model.Members{Members: []model.Source{
				{Type: model.SourceUser, UserID: "U1"},
				{Type: model.SourceUser, UserID: "U2"},
			}}},
			want: []string{"ยินดีต้อนรับสมาชิกใหม่ 2 คนค่ะ อย่าลืมทักทายกันนะ!"},
		},
		{
			name:  "beacon enter",
			event: model.Event{Type: model.EventBeacon, Source: user, Beacon: &model.Beacon{Hwid: "d41d8cd98f", Type: "enter"}},
			want:  []string{"📡 Welcome! You just entered the beacon zone (d41d8cd98f)."},
		},
		{
			name:  "image",
			event: model.Event{Type: model.EventMessage, Source: user, Message: &model.InboundMessage{ID: "m1", Type: model.MessageImage}},
			want:  []string{"เราได้รับไฟล์ image แล้ว ขนาด: 2048 bytes"},
		},
		{
			name: "location without title",
			event: model.Event{Type: model.EventMessage, Source: user, Message: &model.InboundMessage{
				ID: "m2", Type: model.MessageLocation, Latitude: 13.7563, Longitude: 100.5018,
			}},
			want: []string{"", "ได้รับ location: ตำแหน่งที่คุณส่งมา (13.7563, 100.5018)"},
		},
		{
			name: "sticker",
			event: model.Event{Type: model.EventMessage, Source: user, Message: &model.InboundMessage{
				ID: "m3", Type: model.MessageSticker, PackageID: "446", StickerID: "1988",
			}},
			want: []string{"", "ได้รับสติกเกอร์ packageId: 446, stickerId: 1988"},
		},
		{
			name: "mention in group",
			event: model.Event{Type: model.EventMessage, Source: group, Message: &model.InboundMessage{
				ID: "m4", Type: model.MessageText, Text: "@bot hi", QuoteToken: "q1",
				Mention: &model.Mention{Mentionees: []model.Mentionee{{Index: 0, Length: 4, IsSelf: true, Type: "user"}}},
			}},
			want: []string{"ว่ายังไงครับ ถามได้เลย"},
		},
		{
			name:  "unknown postback",
			event: model.Event{Type: model.EventPostback, Source: user, Postback: &model.Postback{Data: "richmenu=page2"}},
			want:  []string{"ได้รับข้อมูล: richmenu=page2"},
		},
		{
			name:  "unfollow",
			event: model.Event{Type: model.EventUnfollow, Source: user},
		},
		{
			name:  "file message",
			event: model.Event{Type: model.EventMessage, Source: user, Message: &model.InboundMessage{ID: "m5", Type: model.MessageFile}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.event.ReplyToken = "token"

			res := f.d.Dispatch(context.Background(), []model.Event{tt.event})
			require.NoError(t, res.Err)

			if tt.want == nil {
				assert.Empty(t, f.replier.sent)
				return
			}
			got := f.replier.last(t).msgs
			require.Len(t, got, len(tt.want))
			for i, text := range tt.want {
				assert.Equal(t, text, got[i].Text)
			}
		})
	}
}

func TestMediaIsDescribedWhenDescriberIsWired(t *testing.T) {
	user := model.Source{Type: model.SourceUser, UserID: userID}
	image := model.Event{Type: model.EventMessage, ReplyToken: "t1", Source: user, Message: &model.InboundMessage{ID: "m1", Type: model.MessageImage}}
	audio := model.Event{Type: model.EventMessage, ReplyToken: "t2", Source: user, Message: &model.InboundMessage{ID: "m2", Type: model.MessageAudio}}

	t.Run("described", func(t *testing.T) {
		f := newFixture(t)
		desc := &fakeDescriber{reply: " ภาพแมวสีส้ม "}
		f.deps.Describer = desc
		f.deps.Content = fakeContent{mimeType: "image/jpeg"}

		res := New(f.deps, Options{}).Dispatch(context.Background(), []model.Event{image, audio})
		require.NoError(t, res.Err)

		require.Len(t, desc.calls, 2)
		assert.Equal(t, describeCall{prompt: "ช่วยบรรยายภาพนี้ให้หน่อย", size: 2048, mimeType: "image/jpeg"}, desc.calls[0])
		assert.Equal(t, "ช่วยบรรยายเสียงนี้ให้หน่อย", desc.calls[1].prompt)
		assert.Equal(t, "ภาพแมวสีส้ม", f.replier.sent[0].msgs[0].Text)
	})

	t.Run("default mime type", func(t *testing.T) {
		f := newFixture(t)
		desc := &fakeDescriber{reply: "เสียงคนพูดทักทาย"}
		f.deps.Describer = desc

		res := New(f.deps, Options{}).Dispatch(context.Background(), []model.Event{audio})
		require.NoError(t, res.Err)
		require.Len(t, desc.calls, 1)
		assert.Equal(t, "audio/mpeg", desc.calls[0].mimeType)
	})

	t.Run("falls back to acknowledgement", func(t *testing.T) {
		f := newFixture(t)
		f.deps.Describer = &fakeDescriber{err: errors.New("quota exceeded")}

		res := New(f.deps, Options{}).Dispatch(context.Background(), []model.Event{image})
		require.NoError(t, res.Err)
		assert.Equal(t, "เราได้รับไฟล์ image แล้ว ขนาด: 2048 bytes", f.replier.last(t).msgs[0].Text)
	})
}

func TestLocationAndStickerPayloads(t *testing.T) {
	f := newFixture(t)
	user := model.Source{Type: model.SourceUser, UserID: userID}

	f.d.Dispatch(context.Background(), []model.Event{
		{Type: model.EventMessage, ReplyToken: "t1", Source: user, Message: &model.InboundMessage{
			ID: "m1", Type: model.MessageLocation, Title: "Siam Paragon", Latitude: 13.74, Longitude: 100.53,
		}},
		{Type: model.EventMessage, ReplyToken: "t2", Source: user, Message: &model.InboundMessage{
			ID: "m2", Type: model.MessageSticker, PackageID: "446", StickerID: "1988",
		}},
	})

	require.Len(t, f.replier.sent, 2)
	loc := f.replier.sent[0].msgs[0]
	assert.Equal(t, model.OutboundLocation, loc.Type)
	require.NotNil(t, loc.Location)
	assert.Equal(t, "Siam Paragon", loc.Location.Title)
	assert.Equal(t, "ไม่ระบุที่อยู่", loc.Location.Address)

	sticker := f.replier.sent[1].msgs[0]
	assert.Equal(t, model.OutboundSticker, sticker.Type)
	assert.Equal(t, &model.Sticker{PackageID: "11537", StickerID: "52002745"}, sticker.Sticker)
}

func TestBeaconCheckInOncePerDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ts := time.Date(2025, 8, 1, 23, 30, 0, 0, time.UTC)

	enter := func(at time.Time) model.Event {
		return model.Event{
			Type:       model.EventBeacon,
			Timestamp:  at.UnixMilli(),
			ReplyToken: "t",
			Source:     model.Source{Type: model.SourceUser, UserID: userID},
			Beacon:     &model.Beacon{Hwid: "d41d8cd98f", Type: "enter"},
		}
	}

	res := f.d.Dispatch(ctx, []model.Event{enter(ts), enter(ts.Add(time.Hour))})
	require.NoError(t, res.Err)
	assert.Len(t, f.replier.sent, 2)

	// 23:30 UTC is already the next day in Bangkok
	created, err := f.repo.CheckIn(ctx, model.BeaconCheckin{UserID: userID, Year: 2025, Month: 8, Day: 2})
	require.NoError(t, err)
	assert.False(t, created)

	created, err = f.repo.CheckIn(ctx, model.BeaconCheckin{UserID: userID, Year: 2025, Month: 8, Day: 1})
	require.NoError(t, err)
	assert.True(t, created)
}
