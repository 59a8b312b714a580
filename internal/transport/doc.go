// Package transport holds the outbound email transports the dispatcher
// hands rendered messages to:
//   - ses.go:       AWS SES v2
//   - sparkpost.go: SparkPost Transmissions API over a retrying client
//   - log.go:       dry run, logs instead of sending
//
// Every transport satisfies dispatch.Transport and is safe for concurrent
// use.
package transport
