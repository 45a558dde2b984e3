/*
Package executor sends chat-completion requests over HTTP.

# Overview

A Client owns one pooled http.Client configured with dial, TLS handshake and
response-header timeouts, plus optional CA, client certificate and
insecure-skip-verify settings. It is shared by every sanity scenario and every
simulated load user.

# Calls

A Call names the path, the JSON body (or a raw body for malformed-payload
cases), the auth mode and whether the response is an event stream:

	result := client.Do(ctx, &executor.Call{
		Path: "/v1/chat/completions",
		Body: map[string]any{
			"model":    "mistral-small-latest",
			"messages": []types.ChatMessage{{Role: "user", Content: "hi"}},
		},
	})

AuthNone omits the Authorization header and AuthInvalid sends a bogus bearer
token; both exist for negative tests.

# Errors

Do never returns a Go error. A request that got no response has Status 0 and
a non-empty Error, so callers record it as a failed result instead of
aborting. Event streams are read until the [DONE] marker, EOF or 1 MiB.

# Thread Safety

Client is safe for concurrent use.
*/
package executor
