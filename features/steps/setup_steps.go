//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tiksound/cmd"
	"tiksound/infrastructure/config"

	"github.com/cucumber/godog"
)

type setupContext struct {
	tempDir         string
	configPath      string
	originalContent string
	output          *bytes.Buffer
	err             error
}

var SharedSetupContext = &setupContext{}

// MockPrompter implements cmd.Prompter for testing. Input answers are matched
// by message prefix; unmatched prompts take their default.
type MockPrompter struct {
	answers          map[string]string
	confirmResponses []bool
	confirmIndex     int
}

func NewMockPrompter(answers map[string]string, confirms []bool) *MockPrompter {
	return &MockPrompter{
		answers:          answers,
		confirmResponses: confirms,
	}
}

func (m *MockPrompter) Input(message string, defaultValue string) (string, error) {
	for prefix, answer := range m.answers {
		if strings.HasPrefix(message, prefix) {
			return answer, nil
		}
	}
	return defaultValue, nil
}

func (m *MockPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	if m.confirmIndex >= len(m.confirmResponses) {
		return defaultValue, nil
	}
	response := m.confirmResponses[m.confirmIndex]
	m.confirmIndex++
	return response, nil
}

func InitializeSetupScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedSetupContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		// Create temp directory for each scenario
		tempDir, err := os.MkdirTemp("", "setup-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.configPath = filepath.Join(tempDir, "config", "config.yaml")
		testCtx.originalContent = ""
		testCtx.output = &bytes.Buffer{}
		testCtx.err = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^no configuration file exists$`, noConfigurationFileExists)
	ctx.Step(`^a configuration file already exists$`, aConfigurationFileAlreadyExists)
	ctx.Step(`^I run setup accepting the defaults$`, iRunSetupAcceptingTheDefaults)
	ctx.Step(`^I run setup answering:$`, iRunSetupAnswering)
	ctx.Step(`^I run setup and decline to overwrite$`, iRunSetupAndDeclineToOverwrite)
	ctx.Step(`^the configuration file should exist$`, theConfigurationFileShouldExist)
	ctx.Step(`^the configuration file should be unchanged$`, theConfigurationFileShouldBeUnchanged)
	ctx.Step(`^the saved "([^"]*)" should be "([^"]*)"$`, theSavedKeyShouldBe)
	ctx.Step(`^the setup output should contain "([^"]*)"$`, theSetupOutputShouldContain)
	ctx.Step(`^setup should fail with "([^"]*)"$`, setupShouldFailWith)
}

func noConfigurationFileExists() error {
	if _, err := os.Stat(SharedSetupContext.configPath); err == nil {
		return fmt.Errorf("config file unexpectedly exists")
	}
	return nil
}

func aConfigurationFileAlreadyExists() error {
	s := SharedSetupContext
	if err := os.MkdirAll(filepath.Dir(s.configPath), 0755); err != nil {
		return err
	}
	s.originalContent = "server:\n  addr: \":9999\"\n"
	return os.WriteFile(s.configPath, []byte(s.originalContent), 0644)
}

func iRunSetupAcceptingTheDefaults() error {
	s := SharedSetupContext
	s.err = cmd.RunSetupWithPrompter(NewMockPrompter(nil, nil), s.configPath, s.output)
	return nil
}

func iRunSetupAnswering(table *godog.Table) error {
	s := SharedSetupContext
	answers := make(map[string]string)
	for i, row := range table.Rows {
		if i == 0 {
			continue // header
		}
		answers[row.Cells[0].Value] = row.Cells[1].Value
	}
	s.err = cmd.RunSetupWithPrompter(NewMockPrompter(answers, nil), s.configPath, s.output)
	return nil
}

func iRunSetupAndDeclineToOverwrite() error {
	s := SharedSetupContext
	s.err = cmd.RunSetupWithPrompter(NewMockPrompter(nil, []bool{false}), s.configPath, s.output)
	return nil
}

func theConfigurationFileShouldExist() error {
	s := SharedSetupContext
	if s.err != nil {
		return fmt.Errorf("setup failed: %v", s.err)
	}
	if _, err := os.Stat(s.configPath); err != nil {
		return fmt.Errorf("config file not created: %v", err)
	}
	return nil
}

func theConfigurationFileShouldBeUnchanged() error {
	s := SharedSetupContext
	data, err := os.ReadFile(s.configPath)
	if err != nil {
		return err
	}
	if string(data) != s.originalContent {
		return fmt.Errorf("config file was modified:\n%s", data)
	}
	return nil
}

func theSavedKeyShouldBe(key, expected string) error {
	s := SharedSetupContext
	if s.err != nil {
		return fmt.Errorf("setup failed: %v", s.err)
	}
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return err
	}
	got, err := config.NewConfigManager(cfg, "").Get(key)
	if err != nil {
		return err
	}
	if got != expected {
		return fmt.Errorf("expected %s=%q, got %q", key, expected, got)
	}
	return nil
}

func theSetupOutputShouldContain(expected string) error {
	s := SharedSetupContext
	if !strings.Contains(s.output.String(), expected) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", expected, s.output.String())
	}
	return nil
}

func setupShouldFailWith(expected string) error {
	s := SharedSetupContext
	if s.err == nil {
		return fmt.Errorf("expected setup to fail")
	}
	if !strings.Contains(s.err.Error(), expected) {
		return fmt.Errorf("expected error containing %q, got: %v", expected, s.err)
	}
	return nil
}
