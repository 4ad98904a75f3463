// Package telegram is a chat front-end for the research and image pipelines.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/priyansh1913/open-deep-research-web/internal/logger"
	"github.com/priyansh1913/open-deep-research-web/internal/models"
)

// defaultMaxMessageChars stays under Telegram's 4096 character limit.
const defaultMaxMessageChars = 4000

const helpText = `Commands:
/research <topic> - comprehensive research report
/fast <topic> - quick research report
/ask <question> - follow-up on your last report
/image <prompt> - generate an image
/refine <prompt> - improve an image prompt`

// BotAPI is the subset of *tgbotapi.BotAPI the bot uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// API is the service surface the bot drives. *service.Service implements it.
type API interface {
	RunResearch(ctx context.Context, topic string, fast bool) (models.PipelineResult, error)
	RunFollowUp(ctx context.Context, req models.FollowUpRequest) (models.StepResult, error)
	RunImageGeneration(ctx context.Context, req models.ImageRequest) (models.PipelineResult, error)
	RefinePrompt(ctx context.Context, prompt string) (string, error)
}

// lastReport is what /ask answers against.
type lastReport struct {
	topic  string
	report string
}

// Bot routes chat commands to the service.
type Bot struct {
	bot      BotAPI
	api      API
	logger   logger.Logger
	maxChars int

	reports sync.Map // chat ID -> lastReport
	wg      sync.WaitGroup
}

// New creates a Bot. maxChars <= 0 uses the Telegram-safe default.
func New(bot BotAPI, api API, maxChars int, log logger.Logger) *Bot {
	if bot == nil || api == nil {
		panic("telegram: bot and api are required")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if maxChars <= 0 {
		maxChars = defaultMaxMessageChars
	}
	return &Bot{bot: bot, api: api, logger: log, maxChars: maxChars}
}

// Run polls for updates until ctx is cancelled. Each update is handled on
// its own goroutine; Run waits for in-flight handlers before returning.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.bot.GetUpdatesChan(u)
	b.logger.Infof("telegram: polling for updates")

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return errors.New("telegram: update channel closed")
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, upd)
			}()
		}
	}
}

// HandleUpdate processes one update synchronously.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if !msg.IsCommand() {
		b.send(chatID, helpText)
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		b.send(chatID, helpText)
	case "research":
		b.research(ctx, chatID, args, false)
	case "fast":
		b.research(ctx, chatID, args, true)
	case "ask":
		b.ask(ctx, chatID, args)
	case "image":
		b.image(ctx, chatID, args)
	case "refine":
		b.refine(ctx, chatID, args)
	default:
		b.send(chatID, "Unknown command. "+helpText)
	}
}

func (b *Bot) research(ctx context.Context, chatID int64, topic string, fast bool) {
	if topic == "" {
		b.send(chatID, "Usage: /research <topic>")
		return
	}
	b.send(chatID, fmt.Sprintf("Researching %q, this can take a few minutes...", topic))

	res, err := b.api.RunResearch(ctx, topic, fast)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.reports.Store(chatID, lastReport{topic: res.Metadata.Subject, report: res.Artifact})
	if res.Degraded() {
		b.send(chatID, "Some research steps were degraded; the report may be incomplete.")
	}
	b.send(chatID, res.Artifact)
}

func (b *Bot) ask(ctx context.Context, chatID int64, question string) {
	if question == "" {
		b.send(chatID, "Usage: /ask <question>")
		return
	}
	v, ok := b.reports.Load(chatID)
	if !ok {
		b.send(chatID, "No report yet. Run /research or /fast first.")
		return
	}
	last := v.(lastReport)

	step, err := b.api.RunFollowUp(ctx, models.FollowUpRequest{
		Topic:       last.topic,
		PriorReport: last.report,
		Question:    question,
	})
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.send(chatID, step.Output)
}

func (b *Bot) image(ctx context.Context, chatID int64, prompt string) {
	if prompt == "" {
		b.send(chatID, "Usage: /image <prompt>")
		return
	}
	b.send(chatID, "Generating image...")

	res, err := b.api.RunImageGeneration(ctx, models.ImageRequest{Prompt: prompt})
	if err != nil {
		b.sendError(chatID, err)
		return
	}

	caption := res.Artifact
	if fin, ok := res.Step(models.StepFinalize); ok && !fin.OK() {
		caption = "Generation failed, showing a placeholder. " + fin.Diagnostic
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "image.png", Bytes: res.Image})
	photo.Caption = truncate(caption, 1000)
	if _, err := b.bot.Send(photo); err != nil {
		b.logger.Warnf("telegram: send photo to %d: %v", chatID, err)
	}
}

func (b *Bot) refine(ctx context.Context, chatID int64, prompt string) {
	if prompt == "" {
		b.send(chatID, "Usage: /refine <prompt>")
		return
	}
	refined, err := b.api.RefinePrompt(ctx, prompt)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.send(chatID, refined)
}

func (b *Bot) sendError(chatID int64, err error) {
	if errors.Is(err, models.ErrInvalidInput) {
		b.send(chatID, "Invalid request: "+err.Error())
		return
	}
	b.logger.Errorf("telegram: chat %d: %v", chatID, err)
	b.send(chatID, "Something went wrong, please try again later.")
}

func (b *Bot) send(chatID int64, text string) {
	for _, chunk := range SplitMessage(text, b.maxChars) {
		if _, err := b.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			b.logger.Warnf("telegram: send to %d: %v", chatID, err)
			return
		}
	}
}

// SplitMessage cuts text into chunks of at most maxChars runes, preferring
// to break after a newline. Empty text yields no chunks.
func SplitMessage(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 {
		maxChars = defaultMaxMessageChars
	}

	var chunks []string
	for utf8.RuneCountInString(text) > maxChars {
		cut := byteOffset(text, maxChars)
		if nl := strings.LastIndexByte(text[:cut], '\n'); nl > 0 {
			cut = nl + 1
		}
		if chunk := strings.TrimSpace(text[:cut]); chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// byteOffset returns the byte index just past the first n runes of s.
func byteOffset(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes-1]) + "…"
}
