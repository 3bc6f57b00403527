package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/fatih/color"

	"interactived/governor"
)

func telegramGetChatID(token string) (int64, error) {
	resp, err := http.Get(fmt.Sprintf("https://api.telegram.org/bot%s/getUpdates?limit=1&offset=-1", token))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var result struct {
		OK     bool `json:"ok"`
		Result []struct {
			Message struct {
				Chat struct {
					ID int64 `json:"id"`
				} `json:"chat"`
			} `json:"message"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	if !result.OK || len(result.Result) == 0 {
		return 0, fmt.Errorf("no messages found — send /start to the configured bot first")
	}
	return result.Result[0].Message.Chat.ID, nil
}

func telegramSend(token string, chatID int64, text string) error {
	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", token)

	form := url.Values{
		"chat_id":    {fmt.Sprintf("%d", chatID)},
		"text":       {text},
		"parse_mode": {"HTML"},
	}

	resp, err := http.PostForm(apiURL, form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error: %s", resp.Status)
	}

	return nil
}

func getLocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// NotifyTelegramStart sends a one-off startup message when enabled.
func NotifyTelegramStart() {
	if !GlobalConfig.Telegram.Enabled {
		return
	}

	go func() {
		chatID := GlobalConfig.Telegram.ChatID
		if chatID == 0 {
			fetchedID, err := telegramGetChatID(GlobalConfig.Telegram.BotToken)
			if err != nil {
				color.New(color.FgYellow).Printf("  [TELEGRAM] startup notify skipped: %v\n", err)
				return
			}
			chatID = fetchedID
			fmt.Print("  ")
			color.New(color.FgHiCyan, color.Bold).Print("[TELEGRAM]")
			color.New(color.FgHiBlack).Printf(" chat id resolved to: ")
			color.New(color.FgGreen).Printf("%d\n", chatID)
			color.New(color.FgHiBlack).Printf("             save this in config.yml for next time.\n")
		}

		now := time.Now().Format("02/01/2006 15:04")
		msg := fmt.Sprintf(GlobalConfig.Telegram.StartupMessage, now)
		if GlobalConfig.Telegram.StartupMessage == "" {
			msg = fmt.Sprintf("[%s] interactived started", now)
		}

		if err := telegramSend(GlobalConfig.Telegram.BotToken, chatID, msg); err != nil {
			log.Printf("telegram startup notify failed: %v", err)
		}
	}()
}

// WatchHotplugAlerts forwards every alert the hot-plug decider raises
// (spec's repeated-failure case) to Telegram, one message per alert.
func WatchHotplugAlerts(ctrl *governor.ControllerContext) {
	if !GlobalConfig.Telegram.Enabled {
		return
	}
	go func() {
		for reason := range ctrl.Alerts {
			chatID := GlobalConfig.Telegram.ChatID
			if chatID == 0 {
				continue
			}
			msg := fmt.Sprintf("interactived alert: %s", reason)
			if err := telegramSend(GlobalConfig.Telegram.BotToken, chatID, msg); err != nil {
				log.Printf("telegram alert send failed: %v", err)
			}
		}
	}()
}
