package server

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// Config is the daemon's on-disk configuration (spec §6's lifecycle and
// config surface, expanded with the admin/alerting surface this daemon
// adds on top of the bare tunables).
type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Auth struct {
		PasswordHash string `yaml:"password_hash"`
	} `yaml:"auth"`

	Governor struct {
		Simulate          bool   `yaml:"simulate"`
		PolicyLayout      string `yaml:"policy_layout"` // "shared" (one policy, all cores) or "per-cpu"
		CoresOnTouch      int    `yaml:"cores_on_touch"`
		HispeedFreq       uint32 `yaml:"hispeed_freq"`         // busy_values.hispeed_freq
		GoHispeedLoad     uint32 `yaml:"go_hispeed_load"`      // busy_values.go_hispeed_load
		IdleHispeedFreq   uint32 `yaml:"idle_hispeed_freq"`    // idle_values.hispeed_freq
		IdleGoHispeedLoad uint32 `yaml:"idle_go_hispeed_load"` // idle_values.go_hispeed_load
	} `yaml:"governor"`

	Telegram struct {
		Enabled        bool   `yaml:"enabled"`
		BotToken       string `yaml:"bot_token"`
		ChatID         int64  `yaml:"chat_id"`
		StartupMessage string `yaml:"startup_message"`
	} `yaml:"telegram"`
}

var GlobalConfig *Config

// LoadConfig reads path, or runs a first-run interactive wizard to
// create it if it doesn't exist yet.
func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return runConfigWizard(path)
		}
		return err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}

	GlobalConfig = cfg
	return nil
}

func runConfigWizard(path string) error {
	dim := color.New(color.FgHiBlack)
	banner := color.New(color.FgHiCyan, color.Bold)
	prompt := color.New(color.FgHiWhite, color.Bold)

	fmt.Println()
	dim.Println("=============================================")
	banner.Println("  interactived first run")
	dim.Println("  Let's set up your config.yml.")
	dim.Println("=============================================")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)

	prompt.Print("  Enter an admin passphrase: ")
	passBytes, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	passStr := strings.TrimSpace(string(passBytes))

	hash := ""
	if passStr != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(passStr), 12)
		if err == nil {
			hash = string(h)
		}
	}

	prompt.Print("\n  Run against simulated hardware instead of real sysfs? (Y/n): ")
	simStr, _ := reader.ReadString('\n')
	simStr = strings.TrimSpace(strings.ToLower(simStr))
	simulate := simStr != "n" && simStr != "no"

	prompt.Print("\n  Enable Telegram alerts for hot-plug failures? (y/N): ")
	tgStr, _ := reader.ReadString('\n')
	tgStr = strings.TrimSpace(strings.ToLower(tgStr))
	tgEnabled := tgStr == "y" || tgStr == "yes"

	tgToken := ""
	var tgChatID int64
	if tgEnabled {
		prompt.Print("    -> Telegram bot token: ")
		token, _ := reader.ReadString('\n')
		tgToken = strings.TrimSpace(token)
	}

	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8745
	cfg.Auth.PasswordHash = hash
	cfg.Governor.Simulate = simulate
	cfg.Governor.PolicyLayout = "shared"
	cfg.Governor.CoresOnTouch = 2
	cfg.Telegram.Enabled = tgEnabled
	cfg.Telegram.BotToken = tgToken
	cfg.Telegram.ChatID = tgChatID
	cfg.Telegram.StartupMessage = "[%s] interactived started"

	cfgData, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, cfgData, 0600); err != nil {
		return err
	}

	GlobalConfig = cfg
	fmt.Println()
	color.New(color.FgGreen, color.Bold).Print("  [SUCCESS]")
	color.New(color.FgHiWhite).Print(" Configuration saved to ")
	color.New(color.FgHiCyan, color.Bold).Printf("%s!\n\n", path)
	return nil
}
