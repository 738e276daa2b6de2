package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"yieldpilot/internal/domain"

	tele "gopkg.in/telebot.v3"
)

const botYieldsLimit = 10

type YieldLister interface {
	FetchTopYields(ctx context.Context, minTvlUSD float64, limit int) []domain.YieldOpportunity
}

// StartTelegramBot wires the chat interface. Returns nil when no token is
// configured; the returned dispatcher feeds settlement alerts to subscribers.
func StartTelegramBot(token string, catalog YieldLister) *AlertDispatcher {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	alerts := NewAlertDispatcher(b)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/yields", func(c tele.Context) error {
		if catalog == nil {
			return c.Send("Yield catalog unavailable")
		}

		limit := botYieldsLimit
		if args := c.Args(); len(args) > 0 {
			n, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || n <= 0 || n > 25 {
				return c.Send("Usage: /yields [1-25]")
			}
			limit = n
		}

		pools := catalog.FetchTopYields(context.Background(), 1_000_000, limit)
		if len(pools) == 0 {
			return c.Send("No yield data right now, try again shortly.")
		}
		return c.Send(formatYields(pools))
	})

	b.Handle("/alerts", func(c tele.Context) error {
		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | /alerts off | /alerts status")
		}
		chat := c.Chat()
		if chat == nil {
			return c.Send("Alerts are only available in chats.")
		}

		switch mode {
		case "on":
			if alerts.Subscribe(chat.ID) {
				return c.Send("Rebalance settlement alerts enabled for this chat.")
			}
			return c.Send("Alerts were already enabled here.")
		case "off":
			if alerts.Unsubscribe(chat.ID) {
				return c.Send("Alerts disabled for this chat.")
			}
			return c.Send("Alerts were not enabled here.")
		default:
			if alerts.IsSubscribed(chat.ID) {
				return c.Send("Alerts are ON for this chat.")
			}
			return c.Send("Alerts are OFF for this chat.")
		}
	})

	go b.Start()
	log.Println("Telegram bot started")
	return alerts
}

func formatYields(pools []domain.YieldOpportunity) string {
	lines := make([]string, 0, len(pools)+1)
	lines = append(lines, "Top yields:")
	for i, p := range pools {
		lines = append(lines, fmt.Sprintf("%d. %s on %s (%s): %.2f%% APY, $%.1fM TVL",
			i+1, p.AssetSymbol, p.Project, p.Chain, p.APYTotal, p.TVLUSD/1_000_000))
	}
	return strings.Join(lines, "\n")
}
