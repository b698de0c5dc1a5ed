package llm

import (
	"context"
	"fmt"
	"line_chatbot/src/model"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiModel adapts the Gemini API to ChatModel
type GeminiModel struct {
	models      contentGenerator
	modelName   string
	maxTokens   int32
	temperature float32
}

func NewGeminiModel(ctx context.Context, config model.LLMConfig) (*GeminiModel, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("LLM_API_KEY is required for gemini")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating gemini client: %w", err)
	}
	return newGeminiModel(client.Models, config), nil
}

func newGeminiModel(models contentGenerator, config model.LLMConfig) *GeminiModel {
	return &GeminiModel{
		models:      models,
		modelName:   config.Model,
		maxTokens:   int32(config.MaxTokens),
		temperature: float32(config.Temperature),
	}
}

func (g *GeminiModel) Generate(ctx context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	system, contents := toGenaiContents(input)
	if len(contents) == 0 {
		return nil, fmt.Errorf("gemini: no user or assistant messages in input")
	}

	temperature := g.temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       &temperature,
		MaxOutputTokens:   g.maxTokens,
	}

	res, err := g.models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	return schema.AssistantMessage(res.Text(), nil), nil
}

// mediaSafety blocks only high-probability harm when describing user media
var mediaSafety = []*genai.SafetySetting{
	{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
	{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockOnlyHigh},
}

// Describe sends prompt with data as an inline blob and returns the model's text
func (g *GeminiModel) Describe(ctx context.Context, prompt string, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("gemini: empty %s content", mimeType)
	}
	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(data, mimeType),
	}, genai.RoleUser)}

	res, err := g.models.GenerateContent(ctx, g.modelName, contents, &genai.GenerateContentConfig{
		SafetySettings: mediaSafety,
	})
	if err != nil {
		return "", fmt.Errorf("gemini describe %s: %w", mimeType, err)
	}
	return res.Text(), nil
}

// toGenaiContents splits system messages into one system instruction and maps
// the remaining turns to Gemini roles
func toGenaiContents(input []*schema.Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(input))

	for _, m := range input {
		switch m.Role {
		case schema.System:
			if system == nil {
				system = genai.NewContentFromText(m.Content, genai.RoleUser)
			} else {
				system.Parts = append(system.Parts, genai.NewPartFromText(m.Content))
			}
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return system, contents
}
