//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tiksound/application/retention"
	"tiksound/cmd"
	domainretention "tiksound/domain/retention"
	"tiksound/infrastructure/filesystem"

	"github.com/cucumber/godog"
)

// retentionContext holds test state for sweep scenarios
type retentionContext struct {
	dir    string
	window time.Duration
	now    time.Time
	output *bytes.Buffer
	err    error
}

// SharedRetentionContext is reset before each scenario via Before hook
var SharedRetentionContext *retentionContext

func getRetentionContext() *retentionContext {
	return SharedRetentionContext
}

func InitializeRetentionScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		SharedRetentionContext = &retentionContext{
			now:    time.Now().Truncate(time.Second),
			output: &bytes.Buffer{},
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if r := getRetentionContext(); r != nil && r.dir != "" {
			os.RemoveAll(r.dir)
		}
		SharedRetentionContext = nil
		return c, nil
	})

	ctx.Step(`^a retention window of "([^"]*)"$`, aRetentionWindowOf)
	ctx.Step(`^the scratch directory holds:$`, theScratchDirectoryHolds)
	ctx.Step(`^(\d+) minutes pass$`, minutesPass)
	ctx.Step(`^I run the sweep$`, iRunTheSweep)
	ctx.Step(`^I run the sweep as a dry run$`, iRunTheSweepAsADryRun)
	ctx.Step(`^the sweep should succeed$`, theSweepShouldSucceed)
	ctx.Step(`^"([^"]*)" should have been swept$`, shouldHaveBeenSwept)
	ctx.Step(`^"([^"]*)" should still exist$`, shouldStillExist)
	ctx.Step(`^the sweep output should contain "([^"]*)"$`, theSweepOutputShouldContain)
}

func aRetentionWindowOf(window string) error {
	d, err := time.ParseDuration(window)
	if err != nil {
		return err
	}
	getRetentionContext().window = d
	return nil
}

func theScratchDirectoryHolds(table *godog.Table) error {
	r := getRetentionContext()
	dir, err := os.MkdirTemp("", "tiksound-retention-*")
	if err != nil {
		return err
	}
	r.dir = dir

	for i, row := range table.Rows {
		if i == 0 {
			continue // header
		}
		name, ageStr, sizeStr := row.Cells[0].Value, row.Cells[1].Value, row.Cells[2].Value
		age, err := time.ParseDuration(ageStr)
		if err != nil {
			return fmt.Errorf("invalid age %q: %w", ageStr, err)
		}
		size, err := strconv.Atoi(sizeStr)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", sizeStr, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
			return err
		}
		modTime := r.now.Add(-age)
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			return err
		}
	}
	return nil
}

func minutesPass(n int) error {
	r := getRetentionContext()
	r.now = r.now.Add(time.Duration(n) * time.Minute)
	return nil
}

func newSweeper() (*retention.Sweeper, error) {
	r := getRetentionContext()
	policy, err := domainretention.NewPolicy(r.window)
	if err != nil {
		return nil, err
	}
	return retention.NewSweeper(filesystem.NewScratchDir(r.dir), policy), nil
}

func iRunTheSweep() error {
	r := getRetentionContext()
	sweeper, err := newSweeper()
	if err != nil {
		return err
	}
	r.err = cmd.RunSweepWithDependencies(sweeper, r.now, false, r.output)
	return nil
}

func iRunTheSweepAsADryRun() error {
	r := getRetentionContext()
	sweeper, err := newSweeper()
	if err != nil {
		return err
	}
	r.err = cmd.RunSweepWithDependencies(sweeper, r.now, true, r.output)
	return nil
}

func theSweepShouldSucceed() error {
	r := getRetentionContext()
	if r.err != nil {
		return fmt.Errorf("sweep failed: %v", r.err)
	}
	return nil
}

func shouldHaveBeenSwept(name string) error {
	r := getRetentionContext()
	if _, err := os.Stat(filepath.Join(r.dir, name)); !os.IsNotExist(err) {
		return fmt.Errorf("expected %s to be deleted", name)
	}
	return nil
}

func shouldStillExist(name string) error {
	r := getRetentionContext()
	if _, err := os.Stat(filepath.Join(r.dir, name)); err != nil {
		return fmt.Errorf("expected %s to exist: %v", name, err)
	}
	return nil
}

func theSweepOutputShouldContain(expected string) error {
	r := getRetentionContext()
	if !strings.Contains(r.output.String(), expected) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", expected, r.output.String())
	}
	return nil
}
