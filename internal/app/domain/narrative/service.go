package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	generativeAI "github.com/FACorreiaa/go-genai-sdk/lib"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/FACorreiaa/go-runworld/internal/app/models"
)

var _ Service = (*ServiceImpl)(nil)

// Service generates the AI text surfaces: the one-time reward narrative for
// a finished pro route, and the per-city blurb/teaser shown along a route.
type Service interface {
	RewardNarrative(ctx context.Context, route models.RouteMeta) (*models.RewardNarrative, error)
	CityBlurb(ctx context.Context, routeID, cityName string, route models.RouteMeta) (string, error)
	CityTeaser(ctx context.Context, routeID, cityName string, route models.RouteMeta) (string, error)
}

type ServiceImpl struct {
	aiClient *generativeAI.LLMChatClient
	cache    *cache.Cache
	logger   *zap.Logger
}

func NewServiceImpl(ctx context.Context, apiKey string, logger *zap.Logger) *ServiceImpl {
	aiClient, err := generativeAI.NewLLMChatClient(ctx, apiKey)
	if err != nil {
		logger.Error("Failed to initialize AI client", zap.Any("error", err))
		aiClient = nil
	}

	return &ServiceImpl{
		aiClient: aiClient,
		cache:    cache.New(24*time.Hour, time.Hour),
		logger:   logger,
	}
}

// RewardNarrative produces the completion title and body for a finished
// route. Without a working AI client it degrades to a fixed congratulation
// rather than blocking the reward flow.
func (s *ServiceImpl) RewardNarrative(ctx context.Context, route models.RouteMeta) (*models.RewardNarrative, error) {
	l := s.logger.With(zap.String("method", "RewardNarrative"), zap.String("route", route.Name))

	if s.aiClient == nil {
		l.Warn("AI client unavailable, using fallback narrative")
		return fallbackNarrative(route), nil
	}

	prompt := rewardPrompt(route)
	text, err := s.generate(ctx, prompt, 0.7)
	if err != nil {
		l.Error("LLM request failed", zap.Error(err))
		return nil, err
	}

	narrative, err := parseNarrative(text)
	if err != nil {
		l.Warn("Unparseable narrative response, using fallback", zap.Error(err))
		return fallbackNarrative(route), nil
	}
	return narrative, nil
}

// CityBlurb returns a short encyclopedia-style introduction for an unlocked
// city, generated once per (route, city) and memoized.
func (s *ServiceImpl) CityBlurb(ctx context.Context, routeID, cityName string, route models.RouteMeta) (string, error) {
	return s.cachedCityText(ctx, "city_blurb", routeID, cityName, blurbPrompt(cityName, route), 0.7)
}

// CityTeaser returns the shorter "next stop" teaser for a still-locked city.
func (s *ServiceImpl) CityTeaser(ctx context.Context, routeID, cityName string, route models.RouteMeta) (string, error) {
	return s.cachedCityText(ctx, "city_teaser", routeID, cityName, teaserPrompt(cityName, route), 0.8)
}

func (s *ServiceImpl) cachedCityText(ctx context.Context, kind, routeID, cityName, prompt string, temperature float32) (string, error) {
	key := fmt.Sprintf("%s::%s::%s", kind, routeID, cityName)
	if cached, found := s.cache.Get(key); found {
		return cached.(string), nil
	}

	if s.aiClient == nil {
		return "", fmt.Errorf("AI client unavailable")
	}

	text, err := s.generate(ctx, prompt, temperature)
	if err != nil {
		s.logger.Error("LLM request failed",
			zap.String("kind", kind),
			zap.String("city", cityName),
			zap.Error(err))
		return "", err
	}

	text = strings.TrimSpace(text)
	s.cache.Set(key, text, cache.DefaultExpiration)
	return text, nil
}

func (s *ServiceImpl) generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	response, err := s.aiClient.GenerateResponse(ctx, prompt, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](temperature),
	})
	if err != nil {
		return "", err
	}
	if response == nil || len(response.Candidates) == 0 {
		return "", fmt.Errorf("empty LLM response")
	}

	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(string(part.Text))
		}
	}
	return sb.String(), nil
}

func rewardPrompt(route models.RouteMeta) string {
	return fmt.Sprintf(`你是一个跑步旅行应用的完程贺文编辑。用户刚刚跑完了整条路线「%s」（全程 %.0f 公里，分日累计完成）。
请写一段克制但有仪式感的完程贺文。禁止编造具体数字、年份等难以核验的细节。

只输出 JSON，格式：{"title": "...", "body": "..."}
title：12 字以内的标题；body：100~180 字的正文，自然分段。`, route.Name, route.TotalKm)
}

func blurbPrompt(cityName string, route models.RouteMeta) string {
	return fmt.Sprintf(`你是一个严谨但有温度的旅行百科编辑。为城市写一段简短百科式介绍：客观、克制、信息密度高，但读起来轻松。
禁止编造具体数字/年份/人口/面积等难以核验的细节；禁止虚构景点。

项目：Running World 跑步旅行
路线：%s
城市：%s

请输出 1 段中文简介，80~140 字。最后用一个括号里的 3~6 字关键词收束。`, route.Name, cityName)
}

func teaserPrompt(cityName string, route models.RouteMeta) string {
	return fmt.Sprintf(`你是一个跑步旅行应用的"下一站预告"文案编辑。输出要克制、有画面感，不要编造具体数字/年份；不要虚构景点。
语气像在说：再跑一段就会遇见什么。

项目：Running World 跑步旅行
路线：%s
下一站城市：%s

请写一段中文预告，40~80 字。结尾用一个括号关键词收束（3~6字）。`, route.Name, cityName)
}

// parseNarrative extracts the {"title","body"} object from a model reply,
// tolerating markdown code fences around the JSON.
func parseNarrative(text string) (*models.RewardNarrative, error) {
	cleaned := stripCodeFence(text)

	var narrative models.RewardNarrative
	if err := json.Unmarshal([]byte(cleaned), &narrative); err != nil {
		return nil, fmt.Errorf("parse narrative response: %w", err)
	}
	if strings.TrimSpace(narrative.Title) == "" {
		return nil, fmt.Errorf("narrative response has no title")
	}
	return &narrative, nil
}

func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

func fallbackNarrative(route models.RouteMeta) *models.RewardNarrative {
	body := ""
	if route.Name != "" {
		body = fmt.Sprintf("你用一段段真实的里程，跑完了「%s」的全程。这条路线就此完程。", route.Name)
	}
	return &models.RewardNarrative{
		Title: "你完成了一条 Pro 路线",
		Body:  body,
	}
}
