// Package notify delivers alert and digest messages over outbound channels
// (SMTP, Telegram). Message bodies carry only aggregate data: scores,
// counts, timestamps and severities, never the observed text itself.
// Credentials are resolved from the environment at send time and treated
// as opaque values.
package notify
