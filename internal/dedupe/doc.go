// Package dedupe remembers recently dispatched Telegram update ids so that a
// redelivered update is acknowledged without being processed twice.
package dedupe
