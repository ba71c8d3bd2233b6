package agent

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"charm.land/fantasy"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/agentd/internal/errs"
	"github.com/dotcommander/agentd/internal/mcp"
)

func TestClassifyBare(t *testing.T) {
	for name, tt := range map[string]struct {
		err  error
		want Category
	}{
		"unauthorized":        {&fantasy.ProviderError{StatusCode: 401}, CategoryAuth},
		"forbidden":           {&fantasy.ProviderError{StatusCode: 403}, CategoryAuth},
		"too many requests":   {&fantasy.ProviderError{StatusCode: 429}, CategoryRemote},
		"internal error":      {&fantasy.ProviderError{StatusCode: 500}, CategoryRemote},
		"wrapped provider":    {fmt.Errorf("stream: %w", &fantasy.ProviderError{StatusCode: 401}), CategoryAuth},
		"registration":        {&mcp.RegistrationError{Name: "web", Detail: "missing url"}, CategoryTool},
		"deadline":            {context.DeadlineExceeded, CategoryNetwork},
		"canceled":            {context.Canceled, CategoryNetwork},
		"url error":           {&url.Error{Op: "Post", URL: "https://proxy", Err: errors.New("connection refused")}, CategoryNetwork},
		"garbled response":    {errors.New("unexpected end of JSON input"), CategoryRemote},
		"nil defaults remote": {nil, CategoryRemote},
	} {
		t.Run(name, func(t *testing.T) {
			category, reason := classifyBare(tt.err)
			require.Equal(t, tt.want, category)
			require.NotEmpty(t, reason)
		})
	}
}

func TestClassifyKeepsReason(t *testing.T) {
	err := errs.Error{
		Err:    &fantasy.ProviderError{StatusCode: 401},
		Reason: "Check your proxy credential.",
	}

	category, reason := classify(err)
	require.Equal(t, CategoryAuth, category)
	require.Equal(t, "Check your proxy credential.", reason)
}
