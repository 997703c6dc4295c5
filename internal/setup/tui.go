// Package setup provides the terminal wizard that generates a config file.
package setup

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/vadiminshakov/coinfolio/config"
	"gopkg.in/yaml.v3"
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
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard and writes config.gen.yaml.
func RunTUI() error {
	var (
		baseCurrency string
		rateURL      string
		eventsFile   string
		listenAddr   string
		walDir       string
		confirm      bool
	)

	// defaults
	rateURL = "http://localhost:7878"
	eventsFile = "events.json"
	listenAddr = ":8087"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("COINFOLIO CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Point the engine at your exported history.\n"))

	fmt.Println(stepStyle.Render("STEP 1: BASE CURRENCY"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Report portfolio values in").
				Options(
					huh.NewOption("US Dollar (USD)", "USD"),
					huh.NewOption("Euro (EUR)", "EUR"),
					huh.NewOption("British Pound (GBP)", "GBP"),
					huh.NewOption("Japanese Yen (JPY)", "JPY"),
				).
				Value(&baseCurrency),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("COINFOLIO CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: RATE SERVICE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Historical rate service URL").
				Description("Base URL of the internal rate API").
				Value(&rateURL).
				Validate(func(s string) error {
					_, err := url.ParseRequestURI(s)
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("COINFOLIO CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: DATA & SERVING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Activity records file").
				Description("JSON with parsed deposits, withdrawals and trades").
				Value(&eventsFile).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("events file cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("API listen address").
				Value(&listenAddr),
			huh.NewInput().
				Title("Rate journal directory").
				Description("Optional; persists resolved rates across runs").
				Value(&walDir),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("COINFOLIO CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Base currency: %s\nRate service: %s\nEvents: %s\nListen: %s\n",
		baseCurrency, rateURL, eventsFile, listenAddr,
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

	cfgTmp := config.ConfigTmp{
		BaseCurrency:   baseCurrency,
		RateServiceURL: rateURL,
		RequestTimeout: 15 * time.Second,
		EventsFile:     eventsFile,
		ListenAddr:     listenAddr,
		WALDir:         walDir,
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render("Saved " + filename))
	return nil
}
