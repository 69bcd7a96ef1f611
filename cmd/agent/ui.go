package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/commitlog/dailyagent/internal/calendar"
	"github.com/commitlog/dailyagent/internal/service"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	subtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
)

func printTitle(s string)   { fmt.Println(titleStyle.Render(s)) }
func printSuccess(s string) { fmt.Println(successStyle.Render("✓ " + s)) }
func printWarn(s string)    { fmt.Println(warnStyle.Render("! " + s)) }
func printSubtle(s string)  { fmt.Println(subtleStyle.Render(s)) }
func printError(s string)   { fmt.Println(errorStyle.Render("✗ " + s)) }

// runSeedForm asks for whatever the flags left empty.
func runSeedForm(input *service.ProvisionInput, defaultZone string) error {
	if input.TimeZone == "" {
		input.TimeZone = defaultZone
	}

	required := func(name string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s is required", name)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Description("Check-ins and summaries are sent here").
				Placeholder("you@example.com").
				Value(&input.Email).
				Validate(func(s string) error {
					_, err := service.NormalizeEmail(s)
					return err
				}),

			huh.NewInput().
				Title("GitHub username").
				Value(&input.GitHubUsername).
				Validate(required("github username")),

			huh.NewInput().
				Title("GitHub token").
				Description("Personal access token with repo read access").
				EchoMode(huh.EchoModePassword).
				Value(&input.GitHubToken).
				Validate(required("github token")),

			huh.NewInput().
				Title("Time zone").
				Description("IANA name, e.g. America/New_York").
				Value(&input.TimeZone).
				Validate(calendar.ValidateZone),
		),
	).WithTheme(huh.ThemeCatppuccin())

	return form.Run()
}
