package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/buzzposter/buzzposter/internal/auth/quota"
)

// OnboardingHandler serves the account page: API key, tier, today's usage,
// connection status and the MCP client configuration snippet.
func OnboardingHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("api_key")
		user, err := d.Auth.Authenticate(r.Context(), key)
		if err != nil {
			htmlError(w, http.StatusUnauthorized, "Invalid API key. Please check your API key and try again.")
			return
		}

		var accountsHTML strings.Builder
		status, err := d.Tokens.ConnectionStatus(r.Context(), user)
		switch {
		case err != nil:
			accountsHTML.WriteString("<p>Connection status temporarily unavailable.</p>")
		case !status.Connected:
			accountsHTML.WriteString("<p>Not connected. Use the button below to connect your social accounts.</p>")
		case len(status.Accounts) == 0:
			accountsHTML.WriteString("<p>Connected, but no social accounts linked yet.</p>")
		default:
			accountsHTML.WriteString("<ul>")
			for _, acc := range status.Accounts {
				name := acc.Username
				if name == "" {
					name = acc.Name
				}
				fmt.Fprintf(&accountsHTML, "<li>✅ %s: @%s</li>", acc.Platform, name)
			}
			accountsHTML.WriteString("</ul>")
		}

		usageLine := "unlimited calls/day"
		if limit, capped := quota.Limit(user.Tier); capped {
			count, cerr := d.Limiter.CountToday(r.Context(), user.ID)
			if cerr == nil {
				usageLine = fmt.Sprintf("%d / %d calls today", count, limit)
			} else {
				usageLine = fmt.Sprintf("quota %d calls/day", limit)
			}
		}

		base := d.Cfg.Server.BaseURL
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, onboardingHTML,
			user.Email, strings.ToUpper(user.Tier), usageLine,
			key, accountsHTML.String(), base, key, base, key)
	}
}

const onboardingHTML = `<!DOCTYPE html>
<html>
<head>
	<title>BuzzPoster - Onboarding</title>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; max-width: 800px; margin: 50px auto; padding: 20px; line-height: 1.6; }
		h1 { color: #333; }
		h2 { color: #666; margin-top: 30px; }
		.api-key { background: #f5f5f5; padding: 15px; border-radius: 5px; font-family: monospace; word-break: break-all; margin: 15px 0; }
		pre { background: #f5f5f5; padding: 15px; border-radius: 5px; overflow-x: auto; }
		.button { display: inline-block; background: #007bff; color: white; padding: 12px 24px; text-decoration: none; border-radius: 5px; margin: 10px 10px 10px 0; }
		.tier { background: #e7f3ff; padding: 10px; border-radius: 5px; display: inline-block; font-weight: bold; }
		.status { margin: 20px 0; padding: 15px; background: #f8f9fa; border-radius: 5px; }
	</style>
</head>
<body>
	<h1>🎉 Welcome to BuzzPoster!</h1>

	<h2>📊 Your Account</h2>
	<p><strong>Email:</strong> %s</p>
	<p><strong>Tier:</strong> <span class="tier">%s</span> (%s)</p>

	<h2>🔑 Your API Key</h2>
	<p>Keep this secret! You'll need it to configure your MCP client.</p>
	<div class="api-key">%s</div>

	<h2>🔗 Connected Social Accounts</h2>
	<div class="status">%s</div>
	<a href="%s/auth/late/connect?api_key=%s" class="button">Connect Social Accounts</a>

	<h2>⚙️ MCP Client Configuration</h2>
	<pre>{
    "mcpServers": {
        "buzzposter": {
            "type": "url",
            "url": "%s/mcp",
            "headers": {
                "Authorization": "Bearer %s"
            }
        }
    }
}</pre>
</body>
</html>
`
