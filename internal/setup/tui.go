// Package setup implements the interactive `folio init` wizard that writes
// a starter YAML config.
package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/mpared/folio/config"
)

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
			MarginTop(1)
)

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}

func header(step string) {
	clearScreen()
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes the result
// to folio.yaml.
func RunTUI() error {
	var (
		platform       string
		portfoliosStr  string
		quoteAsset     string
		snapshotEvery  string
		alertEvery     string
		dedupWindowStr string
		webhookURL     string
		webAddr        string
		dataDir        string
		confirm        bool
	)

	// defaults
	portfoliosStr = "main"
	quoteAsset = config.DefaultQuoteAsset
	snapshotEvery = "1h"
	alertEvery = "5m"
	dedupWindowStr = "6h"
	webAddr = config.DefaultWebAddr
	dataDir = config.DefaultDataDir

	clearScreen()
	fmt.Println(headerStyle.Render("FOLIO CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's set up your portfolio tracker.\n"))

	fmt.Println(stepStyle.Render("STEP 1: EXCHANGE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where do you hold your assets?").
				Description("Used for live prices and the capital pool").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 2: PORTFOLIOS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Portfolio names").
				Description("Comma-separated (e.g. main,longterm)").
				Value(&portfoliosStr).
				Validate(func(s string) error {
					if len(splitNames(s)) == 0 {
						return fmt.Errorf("at least one portfolio name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Quote asset").
				Description("The stablecoin all values are expressed in").
				Value(&quoteAsset).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("quote asset cannot be empty")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 3: SCHEDULES")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Snapshot interval").
				Description("Duration string (e.g. 30m, 1h)").
				Value(&snapshotEvery).
				Validate(validateDuration),
			huh.NewInput().
				Title("Alert check interval").
				Description("Duration string (e.g. 1m, 5m)").
				Value(&alertEvery).
				Validate(validateDuration),
			huh.NewInput().
				Title("Alert dedup window").
				Description("No repeat alert for a band within this window").
				Value(&dedupWindowStr).
				Validate(validateDuration),
		),
	).Run()
	if err != nil {
		return err
	}

	header("STEP 4: OUTPUT")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Webhook URL").
				Description("Optional; alerts are POSTed here as JSON").
				Value(&webhookURL),
			huh.NewInput().
				Title("Dashboard address").
				Value(&webAddr),
			huh.NewInput().
				Title("Data directory").
				Value(&dataDir),
		),
	).Run()
	if err != nil {
		return err
	}

	header("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Exchange: %s\nPortfolios: %s\nQuote asset: %s\nSnapshots: every %s\nAlert checks: every %s\nDashboard: %s\n",
		platform, portfoliosStr, quoteAsset, snapshotEvery, alertEvery, webAddr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	snapshotInterval, _ := time.ParseDuration(snapshotEvery)
	alertInterval, _ := time.ParseDuration(alertEvery)
	dedupWindow, _ := time.ParseDuration(dedupWindowStr)

	cfg := config.ConfigTmp{
		Platform:         platform,
		Portfolios:       splitNames(portfoliosStr),
		QuoteAsset:       strings.ToUpper(strings.TrimSpace(quoteAsset)),
		SnapshotSchedule: "@every " + snapshotInterval.String(),
		AlertSchedule:    "@every " + alertInterval.String(),
		AlertDedupWindow: dedupWindow,
		WebhookURL:       strings.TrimSpace(webhookURL),
		WebAddr:          webAddr,
		DataDir:          dataDir,
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "folio.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s", filename)))
	return nil
}

func validateDuration(s string) error {
	_, err := time.ParseDuration(s)
	return err
}

func splitNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}
