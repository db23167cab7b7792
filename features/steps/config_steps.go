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

// configContext holds test state for config scenarios
type configContext struct {
	tempDir    string
	configPath string
	output     *bytes.Buffer
	err        error
}

var SharedConfigContext = &configContext{}

func InitializeConfigScenario(ctx *godog.ScenarioContext) {
	c := SharedConfigContext

	ctx.Before(func(goCtx context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "config-test-*")
		if err != nil {
			return goCtx, err
		}
		c.tempDir = tempDir
		c.configPath = filepath.Join(tempDir, "config.yaml")
		c.output = &bytes.Buffer{}
		c.err = nil
		return goCtx, nil
	})

	ctx.After(func(goCtx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if c.tempDir != "" {
			os.RemoveAll(c.tempDir)
		}
		return goCtx, nil
	})

	ctx.Step(`^a configuration file containing:$`, aConfigurationFileContaining)
	ctx.Step(`^I show the configuration$`, iShowTheConfiguration)
	ctx.Step(`^I set config "([^"]*)" to "([^"]*)"$`, iSetConfigTo)
	ctx.Step(`^the config command should succeed$`, theConfigCommandShouldSucceed)
	ctx.Step(`^the config command should fail with "([^"]*)"$`, theConfigCommandShouldFailWith)
	ctx.Step(`^the config output should contain "([^"]*)"$`, theConfigOutputShouldContain)
	ctx.Step(`^the config output should not contain "([^"]*)"$`, theConfigOutputShouldNotContain)
	ctx.Step(`^reloading the configuration gives "([^"]*)" = "([^"]*)"$`, reloadingTheConfigurationGives)
}

func aConfigurationFileContaining(content *godog.DocString) error {
	return os.WriteFile(SharedConfigContext.configPath, []byte(content.Content), 0644)
}

func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(SharedConfigContext.configPath)
}

func iShowTheConfiguration() error {
	c := SharedConfigContext
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c.output.Reset()
	c.err = cmd.RunConfigShowWithDependencies(cfg, c.configPath, c.output)
	return nil
}

func iSetConfigTo(key, value string) error {
	c := SharedConfigContext
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c.err = cmd.RunConfigSetWithDependencies(cfg, c.configPath, key, value, c.output)
	return nil
}

func theConfigCommandShouldSucceed() error {
	if err := SharedConfigContext.err; err != nil {
		return fmt.Errorf("config command failed: %v", err)
	}
	return nil
}

func theConfigCommandShouldFailWith(expected string) error {
	err := SharedConfigContext.err
	if err == nil {
		return fmt.Errorf("expected an error containing %q", expected)
	}
	if !strings.Contains(err.Error(), expected) {
		return fmt.Errorf("expected error containing %q, got: %v", expected, err)
	}
	return nil
}

func theConfigOutputShouldContain(expected string) error {
	out := SharedConfigContext.output.String()
	if !strings.Contains(out, expected) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", expected, out)
	}
	return nil
}

func theConfigOutputShouldNotContain(unexpected string) error {
	out := SharedConfigContext.output.String()
	if strings.Contains(out, unexpected) {
		return fmt.Errorf("expected output not to contain %q, got:\n%s", unexpected, out)
	}
	return nil
}

func reloadingTheConfigurationGives(key, expected string) error {
	cfg, err := config.Load(SharedConfigContext.configPath)
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
