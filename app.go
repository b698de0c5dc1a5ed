package main

import (
	"context"
	"fmt"
	"line_chatbot/src"
	"line_chatbot/src/booking"
	"line_chatbot/src/conversation"
	"line_chatbot/src/dispatch"
	"line_chatbot/src/flow"
	"line_chatbot/src/intent"
	"line_chatbot/src/line"
	"line_chatbot/src/llm"
	"line_chatbot/src/logger"
	"line_chatbot/src/server"
	"line_chatbot/src/storage"
	"time"

	"github.com/hashicorp/go-multierror"
)

type sessionStore interface {
	storage.SessionStore
	Ping(ctx context.Context) error
	Close() error
}

type bookingRepository interface {
	booking.Repository
	dispatch.Recorder
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// app owns every long-lived client so they can be closed on shutdown
type app struct {
	store  sessionStore
	repo   bookingRepository
	server *server.Server
}

func newApp(ctx context.Context, config *src.Config) (*app, error) {
	def, err := flow.LoadDefinition(config.FlowFile)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(config.BookingConfig.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BOOKING_TIMEZONE: %w", err)
	}

	a := &app{}
	if a.store, err = openStore(ctx, config); err != nil {
		return nil, err
	}
	if a.repo, err = openRepository(ctx, config); err != nil {
		a.Close()
		return nil, err
	}

	calendar, err := openCalendar(ctx, config)
	if err != nil {
		a.Close()
		return nil, err
	}
	bookings := booking.NewService(calendar, a.repo, loc)

	chatModel, err := llm.NewChatModel(ctx, config.LLMConfig)
	if err != nil {
		a.Close()
		return nil, err
	}

	gateway, err := line.NewGateway(config.LineConfig)
	if err != nil {
		a.Close()
		return nil, err
	}

	engine := flow.NewBooking(a.store, def, bookings)
	chat := conversation.NewService(conversation.NewStoreRepository(a.store, def.Chat.TTL()), chatModel, def)
	classifier := intent.New(def, engine, chat)

	deps := dispatch.Deps{
		Replier:    gateway,
		Loading:    gateway,
		Profiles:   line.NewCachedProfiles(gateway, a.store),
		Content:    gateway,
		Recorder:   a.repo,
		Classifier: classifier,
		Booking:    engine,
		Commands:   flow.NewBookingCommands(def, bookings),
		Chat:       chat,
		Replies:    def.Replies,
	}
	if config.DispatchConfig.DedupEnabled {
		deps.Claimer = a.store
	}
	if describer, ok := chatModel.(*llm.GeminiModel); ok {
		deps.Describer = describer
	}
	dispatcher := dispatch.New(deps, dispatch.Options{
		DedupTTL: time.Duration(config.DispatchConfig.DedupTTLSeconds) * time.Second,
		Location: loc,
	})

	opts := server.Options{
		ChannelSecret: config.LineConfig.ChannelSecret,
		Dispatcher:    dispatcher,
		Checks:        map[string]server.Pinger{"store": a.store, "bookings": a.repo},
	}
	if config.GoogleConfig.ClientID != "" {
		opts.OAuth = booking.NewOAuth(config.GoogleConfig)
	}
	if opts.ChannelSecret == "" {
		logger.Warn().Msg("LINE_CHANNEL_SECRET is not set, webhook signatures are not verified")
	}
	a.server = server.New(opts)

	logger.Info().
		Str("store", config.StoreConfig.Backend).
		Str("bookings", config.BookingConfig.Backend).
		Str("llm", config.LLMConfig.Provider).
		Bool("describe_media", deps.Describer != nil).
		Strs("text_routing", classifier.Rules()).
		Msg("Application wired")
	return a, nil
}

func openStore(ctx context.Context, config *src.Config) (sessionStore, error) {
	if config.StoreConfig.Backend == "memory" {
		logger.Warn().Msg("Using in-memory session store, sessions are lost on restart")
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.NewRedisStore(ctx, config.StoreConfig.RedisURL)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openRepository(ctx context.Context, config *src.Config) (bookingRepository, error) {
	if config.BookingConfig.Backend == "memory" {
		return booking.NewMemoryRepository(), nil
	}
	repo, err := booking.NewMongoRepository(ctx, config.BookingConfig.MongoURI, config.BookingConfig.MongoDatabase)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// openCalendar uses Google Calendar once a refresh token has been issued
func openCalendar(ctx context.Context, config *src.Config) (booking.Calendar, error) {
	if config.GoogleConfig.RefreshToken == "" {
		logger.Warn().Msg("GOOGLE_REFRESH_TOKEN is not set, calendar events are kept in memory")
		return booking.NewMemoryCalendar(), nil
	}
	cal, err := booking.NewGoogleCalendar(ctx, config.GoogleConfig, config.BookingConfig.Timezone)
	if err != nil {
		return nil, err
	}
	return cal, nil
}

func (a *app) Close() error {
	var errs *multierror.Error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("session store: %w", err))
		}
	}
	if a.repo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.repo.Close(ctx); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("booking repository: %w", err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		logger.Error().Err(err).Msg("Shutdown errors")
		return err
	}
	return nil
}
