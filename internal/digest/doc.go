// Package digest computes aggregate mood statistics over the score history
// and mails a daily summary on a cron schedule. Like alert notifications,
// digests contain aggregates only and never the observed text.
package digest
