// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/cohort-dev/cohort/internal/secrets"
	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initHTTPClient is the HTTP client used for API key validation.
// Exposed as a variable so tests can replace it.
var initHTTPClient = &http.Client{Timeout: 10 * time.Second}

// openAIModelsURL is the endpoint probed to validate an API key.
// Exposed as a variable so tests can point it at a httptest server.
var openAIModelsURL = "https://api.openai.com/v1/models"

// ProviderType identifies an embedding provider in the init wizard.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderNone   ProviderType = "none"
)

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepProvider    initWizardStep = iota // select embedding provider
	stepAPIKey                            // enter API key
	stepValidateKey                       // validating key (spinner)
	stepRoster                            // enter roster spreadsheet path
	stepDone                              // wizard complete
	stepError                             // terminal error
)

// initResult holds the collected wizard configuration.
type initResult struct {
	Provider   ProviderType
	APIKey     string
	RosterPath string
}

// --- bubbletea messages ---

type (
	validationSuccessMsg struct{ step initWizardStep }
	validationErrorMsg   struct {
		step initWizardStep
		err  error
	}
)
type configWrittenMsg struct{ path string }

// --- lipgloss styles ---

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

var supportedProviders = []ProviderType{
	ProviderOpenAI,
	ProviderNone,
}

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	providerIdx    int
	apiKeyInput    textinput.Model
	rosterInput    textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	secretStore    secrets.Store
	errFinal       error
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	apiKey := textinput.New()
	apiKey.Placeholder = "paste API key here"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	roster := textinput.New()
	roster.Placeholder = "roster.xlsx"

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepProvider,
		providerIdx: 0,
		apiKeyInput: apiKey,
		rosterInput: roster,
		spinner:     sp,
		secretStore: store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case validationSuccessMsg:
		if msg.step == stepValidateKey {
			m.step = stepRoster
			m.rosterInput.Focus()
			return m, textinput.Blink
		}
		return m, nil

	case validationErrorMsg:
		m.validationErr = msg.err.Error()
		if msg.step == stepValidateKey {
			m.step = stepAPIKey
			m.apiKeyInput.Focus()
		}
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	return m.updateInputs(msg)
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepProvider:
		return m.handleProviderKey(msg)
	case stepAPIKey:
		return m.handleAPIKeyInput(msg)
	case stepRoster:
		return m.handleRosterInput(msg)
	}
	return m, nil
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(supportedProviders)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = supportedProviders[m.providerIdx]
		m.validationErr = ""
		if m.result.Provider == ProviderNone {
			// Substring matching needs no API key.
			m.step = stepRoster
			m.rosterInput.Focus()
			return m, textinput.Blink
		}
		m.step = stepAPIKey
		m.apiKeyInput.SetValue("")
		m.apiKeyInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleAPIKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.apiKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.APIKey = key
		m.validationErr = ""
		m.step = stepValidateKey
		return m, tea.Batch(
			m.spinner.Tick,
			validateAPIKeyCmd(key),
		)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) handleRosterInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		path := strings.TrimSpace(m.rosterInput.Value())
		if path == "" {
			path = "roster.xlsx"
		}
		m.result.RosterPath = path
		m.validationErr = ""
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.rosterInput, cmd = m.rosterInput.Update(msg)
	return m, cmd
}

func (m initModel) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepAPIKey:
		var cmd tea.Cmd
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
		return m, cmd
	case stepRoster:
		var cmd tea.Cmd
		m.rosterInput, cmd = m.rosterInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Cohort Setup Wizard  ") + "\n\n")

	switch m.step {
	case stepProvider:
		b.WriteString(promptStyle.Render("Step 1/2: Choose an embedding provider") + "\n\n")
		for i, p := range supportedProviders {
			label := string(p)
			if p == ProviderNone {
				label = "none (substring matching only)"
			}
			if i == m.providerIdx {
				b.WriteString(selectedStyle.Render("  > "+label) + "\n")
			} else {
				b.WriteString(dimStyle.Render("    "+label) + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(promptStyle.Render("Step 1/2: "+string(m.result.Provider)+" API key") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Validating " + string(m.result.Provider) + " API key…\n")

	case stepRoster:
		b.WriteString(promptStyle.Render("Step 2/2: Roster spreadsheet path") + "\n\n")
		b.WriteString(m.rosterInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to accept (blank uses roster.xlsx)  ctrl+c to quit"))

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("cohort precompute") + " to build embedding snapshots.\n")
		b.WriteString("Run " + promptStyle.Render("cohort start") + " to serve the API.\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

// --- tea.Cmd factories ---

func validateAPIKeyCmd(key string) tea.Cmd {
	return func() tea.Msg {
		if err := validateOpenAIKey(context.Background(), initHTTPClient, key); err != nil {
			return validationErrorMsg{step: stepValidateKey, err: err}
		}
		return validationSuccessMsg{step: stepValidateKey}
	}
}

// validateOpenAIKey probes the models endpoint with the key. A 401 or 403
// means the key is bad; anything else (including network errors) surfaces
// as-is so the user can retry.
func validateOpenAIKey(ctx context.Context, client *http.Client, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, openAIModelsURL, nil)
	if err != nil {
		return cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "building validation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)

	resp, err := client.Do(req)
	if err != nil {
		return cohorterr.Errorf(cohorterr.CodeEmbedUpstreamFailure, "reaching provider: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return cohorterr.New(cohorterr.CodeSecretInvalidInput, "API key rejected by provider")
	case resp.StatusCode >= 400:
		return cohorterr.Errorf(cohorterr.CodeEmbedUpstreamFailure, "provider returned status %d", resp.StatusCode)
	}
	return nil
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

// --- Config generation (exported for tests) ---

// generatedConfig mirrors the config file schema for YAML serialization.
type generatedConfig struct {
	Networking struct {
		Listen string `yaml:"listen"`
	} `yaml:"networking"`
	Storage struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"storage"`
	Roster struct {
		Path string `yaml:"path"`
	} `yaml:"roster"`
	Embedder struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model,omitempty"`
		APIKey   string `yaml:"api_key,omitempty"`
	} `yaml:"embedder"`
}

// GenerateConfigYAML produces a minimal cohort.yaml from the wizard result.
// The API key is referenced via a keyring:// URI; the actual secret is stored
// separately via storeSecretAndWriteConfig.
func GenerateConfigYAML(result initResult) (string, error) {
	var cfg generatedConfig
	cfg.Networking.Listen = "127.0.0.1:8600"
	cfg.Storage.DataDir = "data"
	cfg.Roster.Path = result.RosterPath
	cfg.Embedder.Provider = string(result.Provider)
	if result.Provider == ProviderOpenAI {
		cfg.Embedder.Model = "text-embedding-3-small"
		cfg.Embedder.APIKey = fmt.Sprintf("keyring://%s/%s-api-key", serviceName, result.Provider)
	}

	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return "", cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "serializing config: %w", err)
	}
	return "# Cohort configuration generated by cohort init\n" + string(out), nil
}

// storeSecretAndWriteConfig saves the API key to the OS keyring and writes the
// config YAML to the default config path.
//
// When forceOverwrite is false and the config file already exists, an error is
// returned asking the user to pass --force. When forceOverwrite is true the
// entire config is overwritten (full re-init).
func storeSecretAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	// Store the API key first. If the config write fails below, the orphaned
	// keyring entry is harmless and will be overwritten on a re-run.
	if result.Provider == ProviderOpenAI {
		keyName := string(result.Provider) + "-api-key"
		if err := store.Store(serviceName, keyName, result.APIKey); err != nil {
			return "", cohorterr.Errorf(cohorterr.CodeSecretStoreFailure, "storing %s API key: %w", result.Provider, err)
		}
	}

	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}

	// Check for existing config unless --force is set.
	if !forceOverwrite {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return "", cohorterr.Errorf(cohorterr.CodeConfigAlreadyExists,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", cohorterr.Errorf(cohorterr.CodeConfigLoadReadFailure, "creating config directory %s: %w", dir, err)
	}

	content, err := GenerateConfigYAML(result)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, []byte(content), 0o600); err != nil {
		return "", cohorterr.Errorf(cohorterr.CodeConfigLoadReadFailure, "writing config to %s: %w", cfgPath, err)
	}

	return cfgPath, nil
}

// configPathForWrite returns the default config path. Exported as a variable
// so tests can override it.
var configPathForWrite = defaultConfigPathForWrite

func defaultConfigPathForWrite() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", cohorterr.Errorf(cohorterr.CodeConfigLoadReadFailure, "resolving home directory: %w", err)
	}
	return filepath.Join(home, ".config", "cohort", "cohort.yaml"), nil
}

// --- Cobra command ---

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard for Cohort",
		Long: `Run an interactive TUI wizard that walks you through:
  1. Choosing an embedding provider (OpenAI, or none for substring matching)
  2. Pointing Cohort at the roster spreadsheet

API keys are stored securely in the OS keyring and referenced via
keyring:// URIs in the config file. No secrets are written in plain text.

After completion, run:
  cohort precompute — build embedding snapshots
  cohort start      — serve the API`,
		RunE: runInit,
	}

	cmd.Flags().Bool("force", false, "Overwrite existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	// Refuse to run the wizard without an interactive terminal.
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"cohort init requires an interactive terminal.\n"+
				"To configure Cohort non-interactively, edit ~/.config/cohort/cohort.yaml directly.")
		return cohorterr.New(cohorterr.CodeCLISetupFailure, "cohort init: not an interactive terminal")
	}

	forceOverwrite, _ := cmd.Flags().GetBool("force")

	store := secretStoreFactory()
	m := newInitModel(store)
	m.forceOverwrite = forceOverwrite

	p := tea.NewProgram(m, tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "init wizard error: %w", err)
	}

	fm, ok := finalModel.(initModel)
	if !ok {
		return cohorterr.New(cohorterr.CodeCLISetupFailure, "unexpected model type after wizard")
	}

	if fm.errFinal != nil {
		return cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "init failed: %w", fm.errFinal)
	}

	// A user quitting early is not an error.
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
