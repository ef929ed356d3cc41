package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChromeStepError(t *testing.T) {
	b := &ChromeBrowser{timeout: 30 * time.Second}

	err := b.stepError("reading schedule", fmt.Errorf("waiting: %w", context.DeadlineExceeded))
	assert.True(t, errors.Is(err, ErrScrapeStructure))
	assert.Contains(t, err.Error(), "30s")

	err = b.stepError("address search", errors.New("websocket: close 1006"))
	assert.True(t, errors.Is(err, ErrEnvironment))
}

func TestSuggestionTextsJS(t *testing.T) {
	js := suggestionTextsJS(`ul.ui-autocomplete li[data-kind="address"]`)
	assert.Contains(t, js, `querySelectorAll("ul.ui-autocomplete li[data-kind=\"address\"]")`)
	assert.True(t, strings.HasSuffix(js, "e.textContent.trim())"))
}

func TestChromeBrowserCloseTwice(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &ChromeBrowser{ctx: ctx, cancelCtx: cancel, cancelAlloc: func() {}}

	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
	assert.Error(t, ctx.Err())
}

func TestNewChromeBrowserMissingBinary(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		b, err := NewChromeBrowser(context.Background(), ChromeOptions{
			ExecPath: "/nonexistent/chrome",
			Headless: true,
			Timeout:  5 * time.Second,
		})
		if b != nil {
			b.Close()
		}
		done <- err
	}()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrEnvironment), "got %v", err)
		assert.Equal(t, ExitEnvironment, ExitCode(err))
	case <-time.After(15 * time.Second):
		t.Fatal("NewChromeBrowser did not return for a missing Chrome binary")
	}
}
