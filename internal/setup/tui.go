// Package setup runs the interactive wizard that writes a tradelens config file.
package setup

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/tradelens/config"
	"github.com/vadiminshakov/tradelens/internal/domain"
	"github.com/vadiminshakov/tradelens/internal/exchange"
)

const title = "TRADELENS CONFIG WIZARD"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers collected by the wizard, all as typed.
type answers struct {
	BackendURL      string
	SnapshotSource  string
	RedisAddr       string
	Preset          string
	Risk            string
	ExitMethod      string
	Symbols         string
	PricingPlatform string
	IndicatorSource string
	PollInterval    string
	WebAddr         string
	TLSDomains      string
}

func defaultAnswers() answers {
	return answers{
		SnapshotSource:  config.SnapshotSourceHTTP,
		Preset:          string(domain.PresetSwing),
		Risk:            string(domain.RiskConservative),
		ExitMethod:      string(domain.ExitFixed),
		PricingPlatform: exchange.PlatformNone,
		IndicatorSource: config.IndicatorSourceFeed,
		PollInterval:    "30s",
		WebAddr:         ":8080",
	}
}

func step(name string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render(title))
	fmt.Println(stepStyle.Render(name))
}

// RunTUI launches the terminal configuration wizard and saves the result to path.
func RunTUI(path string) error {
	a := defaultAnswers()
	var confirm bool

	step("STEP 1: FEED")
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("Base URL of the trading backend (e.g. https://bot.example.com)").
				Value(&a.BackendURL).
				Validate(validateURL),
			huh.NewSelect[string]().
				Title("Snapshot source").
				Options(
					huh.NewOption("HTTP snapshot endpoint", config.SnapshotSourceHTTP),
					huh.NewOption("Redis cache", config.SnapshotSourceRedis),
				).
				Value(&a.SnapshotSource),
		),
	).Run()
	if err != nil {
		return err
	}

	if a.SnapshotSource == config.SnapshotSourceRedis {
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Redis address").
					Description("host:port").
					Value(&a.RedisAddr).
					Validate(notEmpty("redis address")),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	step("STEP 2: STRATEGY")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Strategy preset").
				Options(
					huh.NewOption("Swing (trend following)", string(domain.PresetSwing)),
					huh.NewOption("Intraday (trend + momentum)", string(domain.PresetIntraday)),
					huh.NewOption("Scalp (oscillator)", string(domain.PresetScalp)),
				).
				Value(&a.Preset),
			huh.NewSelect[string]().
				Title("Risk mode").
				Options(
					huh.NewOption("Conservative", string(domain.RiskConservative)),
					huh.NewOption("Aggressive", string(domain.RiskAggressive)),
				).
				Value(&a.Risk),
			huh.NewSelect[string]().
				Title("Exit method").
				Options(
					huh.NewOption("Fixed (oscillator only)", string(domain.ExitFixed)),
					huh.NewOption("Resistance (price must reach resistance)", string(domain.ExitResistance)),
				).
				Value(&a.ExitMethod),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 3: SYMBOLS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Symbols").
				Description("Comma separated (e.g. BTCUSDT,ETHUSDT). Empty means every symbol the feed reports").
				Value(&a.Symbols),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 4: MARKET DATA")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Price balances with").
				Options(
					huh.NewOption("Nothing (use backend values)", exchange.PlatformNone),
					huh.NewOption("Binance", exchange.PlatformBinance),
					huh.NewOption("Bybit", exchange.PlatformBybit),
					huh.NewOption("Hyperliquid", exchange.PlatformHyperliquid),
				).
				Value(&a.PricingPlatform),
			huh.NewSelect[string]().
				Title("Indicators from").
				Options(
					huh.NewOption("Feed live state", config.IndicatorSourceFeed),
					huh.NewOption("Binance candles", exchange.PlatformBinance),
					huh.NewOption("Bybit candles", exchange.PlatformBybit),
					huh.NewOption("Hyperliquid candles", exchange.PlatformHyperliquid),
				).
				Value(&a.IndicatorSource),
		),
	).Run()
	if err != nil {
		return err
	}

	step("STEP 5: TIMING AND WEB")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Poll Interval").
				Description("Duration string (e.g. 15s, 30s, 1m)").
				Value(&a.PollInterval).
				Validate(validateInterval),
			huh.NewInput().
				Title("Web address").
				Value(&a.WebAddr).
				Validate(notEmpty("web address")),
			huh.NewInput().
				Title("TLS domains").
				Description("Comma separated; leave empty to serve plain HTTP").
				Value(&a.TLSDomains),
		),
	).Run()
	if err != nil {
		return err
	}

	step("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Backend: %s (%s snapshots)\nStrategy: %s / %s / %s exit\nSymbols: %s\nPricing: %s\nIndicators: %s\nInterval: %s\n",
		a.BackendURL, a.SnapshotSource, a.Preset, a.Risk, a.ExitMethod,
		orAll(a.Symbols), a.PricingPlatform, a.IndicatorSource, a.PollInterval,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("setup cancelled by user")
	}

	tmp, err := a.toConfigTmp()
	if err != nil {
		return err
	}
	if err := save(path, tmp); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting...", path)))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Secrets are read from the environment or .env"))
	time.Sleep(1500 * time.Millisecond)
	return nil
}

func (a answers) toConfigTmp() (config.ConfigTmp, error) {
	interval, err := time.ParseDuration(strings.TrimSpace(a.PollInterval))
	if err != nil {
		return config.ConfigTmp{}, errors.Wrap(err, "poll interval")
	}
	return config.ConfigTmp{
		BackendURL:      strings.TrimSpace(a.BackendURL),
		SnapshotSource:  a.SnapshotSource,
		RedisAddr:       strings.TrimSpace(a.RedisAddr),
		PollInterval:    interval,
		Preset:          a.Preset,
		Risk:            a.Risk,
		ExitMethod:      a.ExitMethod,
		Symbols:         splitList(a.Symbols, strings.ToUpper),
		PricingPlatform: a.PricingPlatform,
		IndicatorSource: a.IndicatorSource,
		WebAddr:         strings.TrimSpace(a.WebAddr),
		TLSDomains:      splitList(a.TLSDomains, strings.ToLower),
	}, nil
}

func save(path string, tmp config.ConfigTmp) error {
	data, err := yaml.Marshal(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to generate yaml")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to save config file")
	}
	return nil
}

func splitList(s string, norm func(string) string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, norm(part))
		}
	}
	return out
}

func orAll(symbols string) string {
	if strings.TrimSpace(symbols) == "" {
		return "all"
	}
	return symbols
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return errors.New("must be a duration like 30s")
	}
	if d < time.Second {
		return errors.New("must be at least 1s")
	}
	return nil
}

func notEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}
