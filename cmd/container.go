// container.go
package main

import (
	"os"

	"github.com/openai/openai-go/v3/option"
	"github.com/redis/go-redis/v9"

	aiopenai "github.com/Abraxas-365/converse/pkg/ai/providers/openai"

	"github.com/Abraxas-365/converse/pkg/ai/llm"
	"github.com/Abraxas-365/converse/pkg/ai/llm/agentx"
	"github.com/Abraxas-365/converse/pkg/ai/llm/toolx"
	"github.com/Abraxas-365/converse/pkg/ai/tools/videosearch"
	"github.com/Abraxas-365/converse/pkg/chat/chatapi"
	"github.com/Abraxas-365/converse/pkg/chat/chatsrv"
	"github.com/Abraxas-365/converse/pkg/chat/memstore"
	"github.com/Abraxas-365/converse/pkg/config"
	"github.com/Abraxas-365/converse/pkg/logx"
)

// Container holds all application dependencies. Everything long-lived is
// constructed exactly once here and passed down by reference.
type Container struct {
	Config *config.Config

	// Infrastructure
	Redis *redis.Client

	// Domain
	Store       *memstore.Store
	Agent       *agentx.Agent
	ChatService *chatsrv.ChatService

	// API Handlers
	ChatHandlers *chatapi.ChatHandlers
}

// NewContainer initializes the dependency injection container
func NewContainer(cfg *config.Config) *Container {
	logx.Info("Initializing dependency container...")

	c := &Container{
		Config: cfg,
	}

	c.initInfrastructure()
	c.initServices()

	logx.Info("Container initialized")
	return c
}

func (c *Container) initInfrastructure() {
	// Redis is the only backend; the store degrades gracefully when it is
	// down, so no Fatal here
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})

	counter := c.initTokenCounter()
	c.Store = memstore.New(c.Redis, c.Config.Memory.MaxTokens, counter)
	if c.Store.Available() {
		logx.Info("Redis connected, conversation memory enabled")
	}
}

func (c *Container) initTokenCounter() memstore.TokenCounter {
	counter, err := memstore.NewEncodingCounter(c.Config.Memory.Encoding)
	if err != nil {
		logx.Warnf("Token encoding %q unavailable, falling back to character estimate: %v",
			c.Config.Memory.Encoding, err)
		return memstore.EstimateCounter{}
	}
	logx.Infof("Token encoding initialized: %s", c.Config.Memory.Encoding)
	return counter
}

func (c *Container) initServices() {
	c.Agent = c.initAgent()
	c.ChatService = chatsrv.NewChatService(c.Store, c.agentGenerator())
	c.ChatHandlers = chatapi.NewChatHandlers(c.ChatService)
}

// agentGenerator returns nil when no agent could be built; the chat service
// then reports unavailability per request instead of the process dying
func (c *Container) agentGenerator() chatsrv.Generator {
	if c.Agent == nil {
		return nil
	}
	return c.Agent
}

func (c *Container) initAgent() *agentx.Agent {
	if !c.Config.LLM.Configured() {
		logx.Warn("LLM_API_KEY not set, agent will report unavailable")
		return nil
	}

	var requestOpts []option.RequestOption
	if c.Config.LLM.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(c.Config.LLM.BaseURL))
	}
	provider := aiopenai.NewOpenAIProvider(c.Config.LLM.APIKey, requestOpts...)
	client := llm.NewClient(provider)

	agentOpts := []agentx.AgentOption{
		agentx.WithOptions(
			llm.WithModel(c.Config.LLM.Model),
			llm.WithTemperature(float32(c.Config.LLM.Temperature)),
			llm.WithMaxCompletionTokens(c.Config.LLM.MaxCompletionTokens),
		),
	}

	if prompt := c.loadSystemPrompt(); prompt != "" {
		agentOpts = append(agentOpts, agentx.WithSystemPrompt(prompt))
	}

	if c.Config.Search.Enabled {
		searchTool := videosearch.New(c.Config.Search.APIBaseURL)
		agentOpts = append(agentOpts, agentx.WithTools(toolx.FromToolx(searchTool)))
		logx.Infof("Search tool enabled (api: %s)", c.Config.Search.APIBaseURL)
	}

	logx.Infof("Agent initialized (model: %s)", c.Config.LLM.Model)
	return agentx.New(*client, agentOpts...)
}

func (c *Container) loadSystemPrompt() string {
	if c.Config.LLM.PromptFile == "" {
		return ""
	}
	content, err := os.ReadFile(c.Config.LLM.PromptFile)
	if err != nil {
		logx.Warnf("Failed to load prompt file %s: %v", c.Config.LLM.PromptFile, err)
		return ""
	}
	logx.Infof("Loaded prompt file: %s", c.Config.LLM.PromptFile)
	return string(content)
}

// Cleanup closes all connections
func (c *Container) Cleanup() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("Redis connection closed")
		}
	}
}
