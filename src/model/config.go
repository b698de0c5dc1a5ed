package model

// ----------------------------------------------------
// ================ Config ================

// LogConfig holds configuration for the global logger
type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	Format     string `envconfig:"LOG_FORMAT" default:"json"`
	Output     string `envconfig:"LOG_OUTPUT" default:"stdout"`
	FilePath   string `envconfig:"LOG_FILE_PATH" default:"logs/app.log"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"rfc3339"`
}

// StoreConfig selects and configures the session cache
type StoreConfig struct {
	Backend  string `envconfig:"STORE_BACKEND" default:"redis"` // redis | memory
	RedisURL string `envconfig:"REDIS_URL"`
}

// LineConfig holds LINE Messaging API credentials
type LineConfig struct {
	ChannelSecret      string `envconfig:"LINE_CHANNEL_SECRET"`
	ChannelAccessToken string `envconfig:"LINE_CHANNEL_ACCESS_TOKEN"`
	LoadingSeconds     int    `envconfig:"LINE_LOADING_SECONDS" default:"10"`
}

// LLMConfig holds configuration for the conversational model
type LLMConfig struct {
	Provider    string  `envconfig:"LLM_PROVIDER" default:"openai"` // openai | ark | deepseek | ollama | gemini
	Model       string  `envconfig:"LLM_MODEL" default:"openai/gpt-4o-mini"`
	APIKey      string  `envconfig:"LLM_API_KEY"`
	BaseURL     string  `envconfig:"LLM_BASE_URL" default:"https://openrouter.ai/api/v1"`
	MaxTokens   int     `envconfig:"LLM_MAX_TOKENS" default:"500"`
	Temperature float64 `envconfig:"LLM_TEMPERATURE" default:"0.1"`
}

// GoogleConfig holds OAuth2 credentials for Google Calendar
type GoogleConfig struct {
	ClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	ClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	RedirectURI  string `envconfig:"GOOGLE_REDIRECT_URI"`
	RefreshToken string `envconfig:"GOOGLE_REFRESH_TOKEN"`
	CalendarID   string `envconfig:"GOOGLE_CALENDAR_ID" default:"primary"`
}

// BookingConfig holds configuration for the booking backend
type BookingConfig struct {
	Backend       string `envconfig:"BOOKING_BACKEND" default:"mongo"` // mongo | memory
	MongoURI      string `envconfig:"MONGODB_URI"`
	MongoDatabase string `envconfig:"MONGODB_DATABASE" default:"developer"`
	Timezone      string `envconfig:"BOOKING_TIMEZONE" default:"Asia/Bangkok"`
}

// DispatchConfig holds configuration for webhook event dispatching
type DispatchConfig struct {
	DedupEnabled    bool `envconfig:"DEDUP_ENABLED" default:"true"`
	DedupTTLSeconds int  `envconfig:"DEDUP_TTL_SECONDS" default:"600"`
}
