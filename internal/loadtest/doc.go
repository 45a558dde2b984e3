/*
Package loadtest drives concurrent simulated users against a chat-completion
endpoint and aggregates latency and error statistics.

# Overview

A load test is defined by a Config (how many users, how fast they start, how
long they run) and a Task (the request every user sends and its expected
outcome). By default each user sends one short user message and expects
HTTP 200, waiting 3 to 6 seconds between requests.

# Driver Design

The Driver starts one goroutine per user through an errgroup:
  - Users start one every 1/SpawnRate seconds
  - Each user loops: rate limiter wait, send, record, random wait
  - An optional global limiter (golang.org/x/time/rate) caps requests/second
  - There are no retries

Each user keeps its samples in its own slice. Run merges the slices after
every user has returned, so there is no shared sample state while the test
is running. Atomic counters feed Progress for live display only.

# Termination

The run ends when:
  - The run time elapses (status "completed")
  - Every user sent RequestsPerUser requests (status "completed")
  - The parent context is cancelled (status "cancelled")

A request still in flight when the run ends is dropped and counted in
Summary.Dropped. Without cutoff the sample count equals
Users × RequestsPerUser.

# Statistics

Computed from the merged samples:
  - Min/max/average latency
  - Percentiles (P50, P90, P95, P99) with linear interpolation
  - Success, network error and validation error counts
  - Error rate as a fraction between 0 and 1
  - Status code histogram and error categories
  - Per-user request and failure counts

# Metrics

When a Metrics value is attached, every request is also recorded on a
Prometheus registry:
  - chatbench_requests_total{outcome}
  - chatbench_request_duration_seconds
  - chatbench_active_users

# Load Profiles

LoadFile reads a YAML profile holding the Config fields and an optional task:

	users: 5
	spawn_rate: 1
	run_time: 30s
	wait_min: 1s
	wait_max: 2s
	task:
	  model: mistral-small-latest
	  request:
	    messages:
	      - role: user
	        content: Hello
	  expect:
	    status: 200
*/
package loadtest
