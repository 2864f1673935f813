// Package triggers starts pipelines and turns each start into a push
// notification for the pipeline owner.
//
// Three sources exist:
//   - webhooks, resolved by token and dispatched by Dispatcher
//   - manual runs requested by the owner
//   - schedules, fired by Scheduler on a cron cadence or a one-shot timer
//
// Every notification passes through the same size gate: payloads whose JSON
// encoding reaches MaxPayloadBytes are replaced by a short pointer message
// telling the client to fetch the data separately.
package triggers
