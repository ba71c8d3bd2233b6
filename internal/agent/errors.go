package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"charm.land/fantasy"

	"github.com/dotcommander/agentd/internal/errs"
	"github.com/dotcommander/agentd/internal/mcp"
)

// Category is the coarse failure class attached to an unsuccessful Result.
type Category string

const (
	// CategoryAuth covers rejected credentials (401/403 from the provider).
	CategoryAuth Category = "auth"
	// CategoryNetwork covers transport faults and timeouts before a usable
	// provider response.
	CategoryNetwork Category = "network"
	// CategoryRemote covers provider-side errors and malformed responses.
	CategoryRemote Category = "remote"
	// CategoryTool covers MCP registration, listing, and invocation failures.
	CategoryTool Category = "tool"
)

// classify folds an execution error into a category and a human-readable
// message. Provider status codes win over transport checks because a
// ProviderError means a response did arrive.
func classify(err error) (Category, string) {
	var perr errs.Error
	if errors.As(err, &perr) && perr.Reason != "" {
		category, _ := classifyBare(perr.Err)
		return category, perr.Reason
	}
	return classifyBare(err)
}

func classifyBare(err error) (Category, string) {
	var providerErr *fantasy.ProviderError
	if errors.As(err, &providerErr) {
		reason := fantasy.ErrorTitleForStatusCode(providerErr.StatusCode)
		if reason == "" {
			reason = fmt.Sprintf("Model API error (HTTP %d).", providerErr.StatusCode)
		}
		switch providerErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return CategoryAuth, reason
		default:
			return CategoryRemote, reason
		}
	}

	var regErr *mcp.RegistrationError
	if errors.As(err, &regErr) {
		return CategoryTool, regErr.Error()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryNetwork, "The model API request timed out."
	}
	if errors.Is(err, context.Canceled) {
		return CategoryNetwork, "The model API request was canceled."
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return CategoryNetwork, fmt.Sprintf("Could not reach the model API: %v.", urlErr.Err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return CategoryNetwork, "Could not reach the model API."
	}

	if err == nil {
		return CategoryRemote, "The model API request failed."
	}
	return CategoryRemote, err.Error()
}
